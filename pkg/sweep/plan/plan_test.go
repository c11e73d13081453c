package plan_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/optsweep/pkg/sweep/plan"
)

func TestGenerate_Defaults(t *testing.T) {
	t.Parallel()

	points, err := plan.Generate(plan.DefaultParams())
	require.NoError(t, err)
	require.Len(t, points, 2, "0.8 and 0.9 only, no iteration near 1.0")

	assert.Equal(t, 0, points[0].Index)
	assert.Equal(t, "0.8", plan.FormatDecimal(points[0].Alpha))
	assert.Equal(t, "1.0", plan.FormatDecimal(points[0].AlphaEnd))
	assert.Equal(t, "optim_0.8.log", points[0].LogPath)

	assert.Equal(t, 1, points[1].Index)
	assert.Equal(t, "0.9", plan.FormatDecimal(points[1].Alpha))
	assert.Equal(t, "1.1", plan.FormatDecimal(points[1].AlphaEnd))
	assert.Equal(t, "optim_0.9.log", points[1].LogPath)
}

func TestGenerate_AlphaEndIsTwoIncrements(t *testing.T) {
	t.Parallel()

	p := plan.DefaultParams()
	points, err := plan.Generate(p)
	require.NoError(t, err)

	for _, pt := range points {
		assert.Equal(t, pt.Alpha+2*p.Increment, pt.AlphaEnd)
	}
}

func TestGenerate_DistinctLogPaths(t *testing.T) {
	t.Parallel()

	p := plan.DefaultParams()
	p.Start = 0.1
	p.Stop = 0.95

	points, err := plan.Generate(p)
	require.NoError(t, err)
	require.NotEmpty(t, points)

	seen := make(map[string]bool)
	for _, pt := range points {
		assert.False(t, seen[pt.LogPath], "duplicate log path %s", pt.LogPath)
		seen[pt.LogPath] = true
	}
}

func TestGenerate_LogDir(t *testing.T) {
	t.Parallel()

	p := plan.DefaultParams()
	p.LogDir = filepath.Join("runs", "a")

	points, err := plan.Generate(p)
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, filepath.Join("runs", "a", "optim_0.8.log"), points[0].LogPath)
}

func TestGenerate_EmptyRanges(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*plan.Params)
	}{
		{"zero increment", func(p *plan.Params) { p.Increment = 0 }},
		{"negative increment", func(p *plan.Params) { p.Increment = -0.1 }},
		{"start equals stop", func(p *plan.Params) { p.Start = p.Stop }},
		{"start above stop", func(p *plan.Params) { p.Start = 2 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := plan.DefaultParams()
			tt.mutate(&p)

			points, err := plan.Generate(p)
			require.NoError(t, err)
			assert.Empty(t, points)
		})
	}
}

func TestGenerate_TooManyPoints(t *testing.T) {
	t.Parallel()

	p := plan.DefaultParams()
	p.Start = 0
	p.Stop = 1
	p.Increment = 1e-6

	_, err := plan.Generate(p)
	require.ErrorIs(t, err, plan.ErrTooManyPoints)
}

func TestGenerate_InvalidMode(t *testing.T) {
	t.Parallel()

	p := plan.DefaultParams()
	p.Mode = "linear"

	_, err := plan.Generate(p)
	require.ErrorIs(t, err, plan.ErrInvalidMode)
}

func TestGenerate_CountModeKeepsIterationCount(t *testing.T) {
	t.Parallel()

	p := plan.DefaultParams()
	p.Start = 0
	p.Stop = 1
	p.Increment = 0.1

	floatPoints, err := plan.Generate(p)
	require.NoError(t, err)

	p.Mode = plan.ModeCount
	countPoints, err := plan.Generate(p)
	require.NoError(t, err)

	require.Len(t, countPoints, len(floatPoints))
	for i, pt := range countPoints {
		assert.Equal(t, p.Start+float64(i)*p.Increment, pt.Alpha)
	}
}

func TestFormatDecimal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   float64
		want string
	}{
		{0.8, "0.8"},
		{1, "1.0"},
		{0, "0.0"},
		{-2, "-2.0"},
		{0.1 + 0.2, "0.30000000000000004"},
		{12.5, "12.5"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, plan.FormatDecimal(tt.in))
	}
}

func TestParseLogName(t *testing.T) {
	t.Parallel()

	alpha, ok := plan.ParseLogName("optim_", ".log", "optim_0.9.log")
	require.True(t, ok)
	assert.Equal(t, 0.9, alpha)

	for _, name := range []string{"optim_.log", "other_0.9.log", "optim_0.9.txt", "optim_abc.log"} {
		_, ok := plan.ParseLogName("optim_", ".log", name)
		assert.False(t, ok, name)
	}
}
