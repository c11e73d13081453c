// Package plan computes the parameter points of an optimizer sweep.
//
// A sweep starts at Start and advances by Increment while the control
// value stays below Stop. Each point carries the derived end value and the
// log file name its child process writes to.
package plan

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// Default sweep bounds.
const (
	DefaultStart     = 0.8
	DefaultIncrement = 0.1
	DefaultStop      = 0.95

	// DefaultEndSteps is how many increments alpha_end lies beyond alpha.
	DefaultEndSteps = 2

	// DefaultLogPrefix and DefaultLogSuffix frame the alpha in log names.
	DefaultLogPrefix = "optim_"
	DefaultLogSuffix = ".log"

	// MaxPoints caps the number of points a single sweep may produce.
	MaxPoints = 10000
)

// Mode selects how successive alpha values are computed.
type Mode string

const (
	// ModeFloat accumulates the increment into alpha on every iteration.
	ModeFloat Mode = "float"

	// ModeCount derives alpha as start + i*increment. The number of points
	// is always the one ModeFloat would produce.
	ModeCount Mode = "count"
)

// ErrTooManyPoints is returned when a sweep would exceed MaxPoints.
var ErrTooManyPoints = errors.New("sweep produces too many points")

// ErrInvalidMode is returned for an unknown Mode.
var ErrInvalidMode = errors.New("invalid sweep mode")

// Params describes a sweep.
type Params struct {
	Start     float64 `json:"start" yaml:"start"`
	Increment float64 `json:"increment" yaml:"increment"`
	Stop      float64 `json:"stop" yaml:"stop"`
	EndSteps  int     `json:"end_steps" yaml:"end_steps"`
	Mode      Mode    `json:"mode" yaml:"mode"`

	// LogDir is the directory log files are created in. Empty means the
	// working directory.
	LogDir    string `json:"log_dir,omitempty" yaml:"log_dir,omitempty"`
	LogPrefix string `json:"log_prefix" yaml:"log_prefix"`
	LogSuffix string `json:"log_suffix" yaml:"log_suffix"`
}

// DefaultParams returns the parameters of the standard sweep.
func DefaultParams() Params {
	return Params{
		Start:     DefaultStart,
		Increment: DefaultIncrement,
		Stop:      DefaultStop,
		EndSteps:  DefaultEndSteps,
		Mode:      ModeFloat,
		LogPrefix: DefaultLogPrefix,
		LogSuffix: DefaultLogSuffix,
	}
}

// Point is a single iteration of a sweep.
type Point struct {
	Index    int     `json:"index" yaml:"index"`
	Alpha    float64 `json:"alpha" yaml:"alpha"`
	AlphaEnd float64 `json:"alpha_end" yaml:"alpha_end"`
	LogPath  string  `json:"log_path" yaml:"log_path"`
}

// Generate returns the points of the sweep in iteration order.
// A non-positive increment or an empty range yields no points.
func Generate(p Params) ([]Point, error) {
	mode := p.Mode
	if mode == "" {
		mode = ModeFloat
	}
	if mode != ModeFloat && mode != ModeCount {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMode, p.Mode)
	}

	if !(p.Increment > 0) || !(p.Start < p.Stop) {
		return []Point{}, nil
	}

	alphas, err := floatAlphas(p)
	if err != nil {
		return nil, err
	}

	if mode == ModeCount {
		for i := range alphas {
			alphas[i] = p.Start + float64(i)*p.Increment
		}
	}

	points := make([]Point, len(alphas))
	for i, alpha := range alphas {
		points[i] = Point{
			Index:    i,
			Alpha:    alpha,
			AlphaEnd: EndValue(alpha, p.Increment, p.EndSteps),
			LogPath:  LogPath(p, alpha),
		}
	}
	return points, nil
}

// floatAlphas runs the accumulating loop and collects every alpha.
func floatAlphas(p Params) ([]float64, error) {
	var alphas []float64
	for alpha := p.Start; alpha < p.Stop; alpha += p.Increment {
		if len(alphas) == MaxPoints {
			return nil, fmt.Errorf("%w: more than %d", ErrTooManyPoints, MaxPoints)
		}
		alphas = append(alphas, alpha)
	}
	return alphas, nil
}

// EndValue returns alpha + steps*increment.
func EndValue(alpha, increment float64, steps int) float64 {
	return alpha + float64(steps)*increment
}

// LogName returns the log file name for alpha, e.g. "optim_0.8.log".
func LogName(prefix, suffix string, alpha float64) string {
	return prefix + FormatDecimal(alpha) + suffix
}

// LogPath joins the log directory and the log name for alpha.
func LogPath(p Params, alpha float64) string {
	name := LogName(p.LogPrefix, p.LogSuffix, alpha)
	if p.LogDir == "" {
		return name
	}
	return filepath.Join(p.LogDir, name)
}

// FormatDecimal renders v in its shortest round-trip form, always with a
// fractional part: 1 becomes "1.0", 0.8 stays "0.8".
func FormatDecimal(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".NI") {
		s += ".0"
	}
	return s
}

// ParseLogName extracts alpha from a log file name built by LogName.
func ParseLogName(prefix, suffix, name string) (float64, bool) {
	if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, suffix) {
		return 0, false
	}
	raw := strings.TrimSuffix(strings.TrimPrefix(name, prefix), suffix)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
