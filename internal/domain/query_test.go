package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func queryFixture(t *testing.T) *IngestionResult {
	t.Helper()
	return mustBuild(t,
		snapshot(t, "03-01-2020",
			row("Mainland China", "Hubei", 100, 40, 10),
			row("Mainland China", "Guangdong", 20, 10, 0),
			row("Italy", "", 50, 0, 5),
			row("Spain", "", 0, 0, 0),
		),
		snapshot(t, "03-02-2020",
			row("Mainland China", "Hubei", 110, 50, 12),
			row("Italy", "", 80, 2, 8),
			row("Spain", "", 30, 0, 1),
		),
		snapshot(t, "03-03-2020",
			row("China", "Hubei", 120, 60, 13),
			row("Italy", "", 120, 5, 12),
			row("Spain", "", 120, 4, 3),
		),
	)
}

func TestGetSeries(t *testing.T) {
	res := queryFixture(t)

	t.Run("province table sums subregions", func(t *testing.T) {
		series, err := GetSeries(res.Observations, "China", Confirmed, 0, 2)
		require.NoError(t, err)
		require.Len(t, series, 3)
		assert.Equal(t, int64(120), series[0].Value)
		assert.Equal(t, int64(110), series[1].Value)
		assert.Equal(t, int64(120), series[2].Value)
		assert.Equal(t, 2, series[2].Ordinal)
	})

	t.Run("sub range", func(t *testing.T) {
		series, err := GetSeries(res.Countries, "Italy", Deaths, 1, 2)
		require.NoError(t, err)
		require.Len(t, series, 2)
		assert.Equal(t, "02/03/2020", series[0].DateKey)
		assert.Equal(t, int64(8), series[0].Value)
	})

	t.Run("world", func(t *testing.T) {
		series, err := GetSeries(res.Countries, WorldRegion, Active, 2, 2)
		require.NoError(t, err)
		require.Len(t, series, 1)
		// China 47 + Italy 103 + Spain 113
		assert.Equal(t, int64(263), series[0].Value)
	})

	t.Run("unknown region", func(t *testing.T) {
		_, err := GetSeries(res.Countries, "Narnia", Confirmed, 0, 2)
		require.ErrorIs(t, err, ErrRegionNotFound)
	})

	t.Run("unknown variable", func(t *testing.T) {
		_, err := GetSeries(res.Countries, "Italy", Variable("hospitalized"), 0, 2)
		require.ErrorIs(t, err, ErrUnknownVariable)
	})

	t.Run("range outside index", func(t *testing.T) {
		_, err := GetSeries(res.Countries, "Italy", Confirmed, 0, 3)
		require.ErrorIs(t, err, ErrInvalidRange)
	})
}

func TestDeathRatios(t *testing.T) {
	res := queryFixture(t)

	ratios, err := DeathRatios(res.Countries, "Spain", 0, 2)
	require.NoError(t, err)
	require.Len(t, ratios, 3)

	assert.False(t, ratios[0].ConfirmedDefined)
	assert.False(t, ratios[0].ClosedDefined)
	assert.Zero(t, ratios[0].OverConfirmed)

	assert.True(t, ratios[1].ConfirmedDefined)
	assert.InDelta(t, 1.0/30.0, ratios[1].OverConfirmed, 1e-12)
	assert.True(t, ratios[1].ClosedDefined)
	assert.InDelta(t, 1.0, ratios[1].OverClosed, 1e-12)

	assert.InDelta(t, 3.0/120.0, ratios[2].OverConfirmed, 1e-12)
	assert.InDelta(t, 3.0/7.0, ratios[2].OverClosed, 1e-12)
}

func TestLatestValues(t *testing.T) {
	res := queryFixture(t)

	key, values, err := LatestValues(res.Countries, Confirmed)
	require.NoError(t, err)
	assert.Equal(t, "03/03/2020", key)
	assert.Equal(t, []RegionValue{
		{Region: "China", Value: 120},
		{Region: "Italy", Value: 120},
		{Region: "Spain", Value: 120},
	}, values)

	_, _, err = LatestValues(res.Countries, Variable("bogus"))
	require.ErrorIs(t, err, ErrUnknownVariable)
}

func TestTopN(t *testing.T) {
	res := queryFixture(t)

	t.Run("by deaths", func(t *testing.T) {
		top, err := TopN(res.Countries, 2, Deaths)
		require.NoError(t, err)
		assert.Equal(t, []string{"China", "Italy"}, top)
	})

	t.Run("ties keep table order", func(t *testing.T) {
		top, err := TopN(res.Countries, 3, Confirmed)
		require.NoError(t, err)
		assert.Equal(t, []string{"China", "Italy", "Spain"}, top)
	})

	t.Run("stable across runs", func(t *testing.T) {
		first, err := TopN(res.Countries, 3, Active)
		require.NoError(t, err)
		for range 10 {
			again, err := TopN(res.Countries, 3, Active)
			require.NoError(t, err)
			assert.Equal(t, first, again)
		}
	})

	t.Run("n larger than regions", func(t *testing.T) {
		top, err := TopN(res.Countries, 50, Confirmed)
		require.NoError(t, err)
		assert.Len(t, top, 3)
	})

	t.Run("n zero", func(t *testing.T) {
		top, err := TopN(res.Countries, 0, Confirmed)
		require.NoError(t, err)
		assert.Empty(t, top)
	})

	t.Run("unknown variable", func(t *testing.T) {
		_, err := TopN(res.Countries, 3, Variable("bogus"))
		require.ErrorIs(t, err, ErrUnknownVariable)
	})
}
