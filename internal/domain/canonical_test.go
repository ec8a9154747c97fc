package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalize(t *testing.T) {
	c := DefaultCanonicalizer()

	tests := []struct {
		in   string
		want string
	}{
		{"Mainland China", "China"},
		{"US", "United States of America"},
		{"Korea, South", "South Korea"},
		{"Republic of Korea", "South Korea"},
		{" Azerbaijan", "Azerbaijan"},
		{"Italy", "Italy"},
		{"China", "China"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Canonicalize(tt.in))
		})
	}
}

func TestCanonicalizeIdempotent(t *testing.T) {
	c := DefaultCanonicalizer()
	names := []string{"US", "Mainland China", "UK", "Iran (Islamic Republic of)", "Hong Kong SAR", "Germany", "  Italy  "}
	for alias := range c.Aliases() {
		names = append(names, alias)
	}

	for _, name := range names {
		once := c.Canonicalize(name)
		assert.Equal(t, once, c.Canonicalize(once), "canonicalize(%q) is not a fixed point", name)
	}
}

func TestNewCanonicalizer(t *testing.T) {
	t.Run("overlay adds and overrides", func(t *testing.T) {
		c, err := NewCanonicalizer(map[string]string{
			"Viet Nam": "Vietnam",
			"US":       "USA",
		})
		require.NoError(t, err)
		assert.Equal(t, "Vietnam", c.Canonicalize("Viet Nam"))
		assert.Equal(t, "USA", c.Canonicalize("US"))
		assert.Equal(t, "China", c.Canonicalize("Mainland China"))
	})

	t.Run("self mapping removes alias", func(t *testing.T) {
		c, err := NewCanonicalizer(map[string]string{"UK": "UK"})
		require.NoError(t, err)
		assert.Equal(t, "UK", c.Canonicalize("UK"))
		assert.NotContains(t, c.Aliases(), "UK")
	})

	t.Run("chain is rejected", func(t *testing.T) {
		_, err := NewCanonicalizer(map[string]string{"PRC": "Mainland China"})
		require.ErrorIs(t, err, ErrAliasChain)
	})

	t.Run("empty target is rejected", func(t *testing.T) {
		_, err := NewCanonicalizer(map[string]string{"Somewhere": " "})
		require.Error(t, err)
	})

	t.Run("aliases are copied", func(t *testing.T) {
		c := DefaultCanonicalizer()
		a := c.Aliases()
		a["Italy"] = "Elsewhere"
		assert.Equal(t, "Italy", c.Canonicalize("Italy"))
	})
}
