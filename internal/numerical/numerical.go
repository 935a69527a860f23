package numerical

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/interp"
	"gonum.org/v1/gonum/stat"
)

// ErrDegenerateFit is returned by LinearFit when x has no spread.
var ErrDegenerateFit = errors.New("numerical: x values have no spread")

func SuppressNaN(num float64) float64 {
	if math.IsNaN(num) {
		return 0
	}
	return num
}

// Shift returns a copy of data with offset added to every element.
func Shift(data []float64, offset float64) []float64 {
	out := make([]float64, len(data))
	copy(out, data)
	floats.AddConst(offset, out)
	return out
}

// Scale returns slope*data + offset as a new slice.
func Scale(data []float64, slope float64, offset float64) []float64 {
	out := make([]float64, len(data))
	copy(out, data)
	floats.Scale(slope, out)
	floats.AddConst(offset, out)
	return out
}

// ApplyMask keeps the elements of data whose mask entry is true. mask must
// be as long as data.
func ApplyMask(data []float64, mask []bool) []float64 {
	out := make([]float64, 0, CountTrue(mask))
	for i, keep := range mask {
		if keep {
			out = append(out, data[i])
		}
	}
	return out
}

// CountTrue returns the number of true entries in mask.
func CountTrue(mask []bool) int {
	n := 0
	for _, m := range mask {
		if m {
			n++
		}
	}
	return n
}

// PadZeros returns data extended with zeros up to length n. Longer data is
// returned unchanged.
func PadZeros(data []float64, n int) []float64 {
	if len(data) >= n {
		return data
	}
	out := make([]float64, n)
	copy(out, data)
	return out
}

// Repeat returns a slice of n copies of v.
func Repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	if v != 0 {
		floats.AddConst(v, out)
	}
	return out
}

// Concat returns a new slice holding a followed by b.
func Concat(a []float64, b []float64) []float64 {
	out := make([]float64, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}

// First and Last return the end samples of data; ok is false for empty data.
func First(data []float64) (float64, bool) {
	if len(data) == 0 {
		return 0, false
	}
	return data[0], true
}

func Last(data []float64) (float64, bool) {
	if len(data) == 0 {
		return 0, false
	}
	return data[len(data)-1], true
}

// Nearest returns the index of the element of data closest to target, and
// the absolute distance to it. data must not be empty.
func Nearest(data []float64, target float64) (int, float64) {
	dist := make([]float64, len(data))
	for i, v := range data {
		dist[i] = math.Abs(v - target)
	}
	i := floats.MinIdx(dist)
	return i, dist[i]
}

// LinearFit fits y = slope*x + intercept by ordinary least squares.
func LinearFit(x []float64, y []float64) (slope float64, intercept float64, err error) {
	if len(x) < 2 || floats.Max(x) == floats.Min(x) {
		return 0, 0, ErrDegenerateFit
	}
	intercept, slope = stat.LinearRegression(x, y, nil, false)
	if math.IsNaN(slope) || math.IsNaN(intercept) {
		return 0, 0, ErrDegenerateFit
	}
	return slope, intercept, nil
}

// Interp evaluates the piecewise-linear function through (xp, fp) at every
// x, holding the end values outside [xp[0], xp[len-1]]. xp must be strictly
// increasing; a single point gives a constant.
func Interp(x []float64, xp []float64, fp []float64) ([]float64, error) {
	out := make([]float64, len(x))
	if len(xp) == 1 {
		for i := range out {
			out[i] = fp[0]
		}
		return out, nil
	}
	var pl interp.PiecewiseLinear
	if err := pl.Fit(xp, fp); err != nil {
		return nil, err
	}
	lo, hi := xp[0], xp[len(xp)-1]
	for i, v := range x {
		switch {
		case v <= lo:
			out[i] = fp[0]
		case v >= hi:
			out[i] = fp[len(fp)-1]
		default:
			out[i] = pl.Predict(v)
		}
	}
	return out, nil
}
