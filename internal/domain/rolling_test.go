package domain

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// consecutive builds one snapshot per day starting 2020-03-01 with a single
// Italy row carrying the given confirmed count.
func consecutive(t *testing.T, confirmed ...int64) *IngestionResult {
	t.Helper()
	start := time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC)
	snaps := make([]Snapshot, len(confirmed))
	for i, c := range confirmed {
		name := start.AddDate(0, 0, i).Format(SnapshotDateLayout)
		snaps[i] = snapshot(t, name, row("Italy", "", c, 0, 0))
	}
	return mustBuild(t, snaps...)
}

func TestGetRolling(t *testing.T) {
	res := consecutive(t, 10, 15, 19, 19, 30, 45, 60, 62)

	t.Run("sum over full range", func(t *testing.T) {
		points, err := GetRolling(res.Countries, "Italy", Confirmed, 0, 7, RollingOptions{})
		require.NoError(t, err)
		require.Len(t, points, 8)

		news := make([]int64, len(points))
		for i, p := range points {
			news[i] = p.New
		}
		assert.Equal(t, []int64{0, 5, 4, 0, 11, 15, 15, 2}, news)
		assert.Equal(t, int64(50), points[6].Windowed)
		assert.Equal(t, int64(52), points[7].Windowed)
		assert.Equal(t, int64(62), points[7].Value)
		assert.Equal(t, "08/03/2020", points[7].DateKey)
	})

	t.Run("average floors", func(t *testing.T) {
		points, err := GetRolling(res.Countries, "Italy", Confirmed, 0, 7, RollingOptions{Window: 7, Average: true})
		require.NoError(t, err)
		assert.Equal(t, int64(7), points[6].Windowed)
		assert.Equal(t, int64(7), points[7].Windowed)
	})

	t.Run("late start reaches back for the window", func(t *testing.T) {
		points, err := GetRolling(res.Countries, "Italy", Confirmed, 5, 7, RollingOptions{})
		require.NoError(t, err)
		require.Len(t, points, 3)
		assert.Equal(t, "06/03/2020", points[0].DateKey)
		assert.Equal(t, int64(15), points[0].New)
		assert.Equal(t, int64(35), points[0].Windowed)
		assert.Equal(t, int64(52), points[2].Windowed)
	})

	t.Run("values do not depend on the requested range", func(t *testing.T) {
		full, err := GetRolling(res.Countries, "Italy", Confirmed, 0, 7, RollingOptions{})
		require.NoError(t, err)
		for ord := range 8 {
			single, err := GetRolling(res.Countries, "Italy", Confirmed, ord, ord, RollingOptions{})
			require.NoError(t, err)
			require.Len(t, single, 1)
			assert.Equal(t, full[ord], single[0], "ordinal %d", ord)
		}

		last, err := GetRolling(res.Countries, "Italy", Confirmed, 7, 7, RollingOptions{})
		require.NoError(t, err)
		assert.Equal(t, int64(2), last[0].New)
		assert.Equal(t, int64(52), last[0].Windowed)
	})

	t.Run("window of one at a later start", func(t *testing.T) {
		points, err := GetRolling(res.Countries, "Italy", Confirmed, 4, 5, RollingOptions{Window: 1})
		require.NoError(t, err)
		require.Len(t, points, 2)
		assert.Equal(t, int64(11), points[0].Windowed)
		assert.Equal(t, int64(15), points[1].Windowed)
	})

	t.Run("first indexed date has no change", func(t *testing.T) {
		points, err := GetRolling(res.Countries, "Italy", Confirmed, 0, 2, RollingOptions{Window: 1})
		require.NoError(t, err)
		assert.Zero(t, points[0].New)
		assert.Equal(t, int64(5), points[1].Windowed)
		assert.Equal(t, int64(4), points[2].Windowed)
	})

	t.Run("invalid window", func(t *testing.T) {
		_, err := GetRolling(res.Countries, "Italy", Confirmed, 0, 7, RollingOptions{Window: -1})
		require.ErrorIs(t, err, ErrInvalidWindow)
	})

	t.Run("unknown region", func(t *testing.T) {
		_, err := GetRolling(res.Countries, "Narnia", Confirmed, 0, 7, RollingOptions{})
		require.ErrorIs(t, err, ErrRegionNotFound)
	})

	t.Run("reversed range", func(t *testing.T) {
		_, err := GetRolling(res.Countries, "Italy", Confirmed, 4, 2, RollingOptions{})
		require.ErrorIs(t, err, ErrInvalidRange)
	})
}

func TestGetRollingWithGaps(t *testing.T) {
	// Spain skips 04/03, so its window over that date holds fewer points.
	var snaps []Snapshot
	values := map[int]int64{0: 10, 1: 15, 2: 19, 4: 30, 5: 45}
	for d := range 6 {
		name := time.Date(2020, 3, 1+d, 0, 0, 0, 0, time.UTC).Format(SnapshotDateLayout)
		rows := []RawRow{row("Italy", "", int64(d), 0, 0)}
		if v, ok := values[d]; ok {
			rows = append(rows, row("Spain", "", v, 0, 0))
		}
		snaps = append(snaps, snapshot(t, name, rows...))
	}
	res := mustBuild(t, snaps...)

	points, err := GetRolling(res.Countries, "Spain", Confirmed, 0, 5, RollingOptions{Window: 2})
	require.NoError(t, err)
	require.Len(t, points, 5)

	got := make([]string, len(points))
	for i, p := range points {
		got[i] = fmt.Sprintf("%s new=%d win=%d", p.DateKey, p.New, p.Windowed)
	}
	assert.Equal(t, []string{
		"01/03/2020 new=0 win=0",
		"02/03/2020 new=5 win=5",
		"03/03/2020 new=4 win=9",
		"05/03/2020 new=11 win=11",
		"06/03/2020 new=15 win=26",
	}, got)
}

func TestRollingWindow(t *testing.T) {
	t.Run("negative average rounds down", func(t *testing.T) {
		news, windowed, err := RollingWindow([]int64{10, 3}, 2, true)
		require.NoError(t, err)
		assert.Equal(t, []int64{0, -7}, news)
		assert.Equal(t, []int64{0, -4}, windowed)
	})

	t.Run("window longer than series", func(t *testing.T) {
		_, windowed, err := RollingWindow([]int64{1, 2, 4}, 30, false)
		require.NoError(t, err)
		assert.Equal(t, []int64{0, 1, 3}, windowed)
	})

	t.Run("empty series", func(t *testing.T) {
		news, windowed, err := RollingWindow(nil, 7, false)
		require.NoError(t, err)
		assert.Empty(t, news)
		assert.Empty(t, windowed)
	})

	t.Run("zero window", func(t *testing.T) {
		_, _, err := RollingWindow([]int64{1}, 0, false)
		require.ErrorIs(t, err, ErrInvalidWindow)
	})
}

func TestFloorDiv(t *testing.T) {
	tests := []struct {
		a, b, want int64
	}{
		{52, 7, 7},
		{49, 7, 7},
		{-7, 2, -4},
		{-8, 2, -4},
		{0, 7, 0},
		{7, -2, -4},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, floorDiv(tt.a, tt.b), "floorDiv(%d, %d)", tt.a, tt.b)
	}
}
