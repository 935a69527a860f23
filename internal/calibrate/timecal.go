// Package calibrate corrects the time axis of a single dataset, either
// against correspondence points with a reference clock or against trigger
// events.
package calibrate

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spectriclabs/ecms-sync/internal/dataset"
	"github.com/spectriclabs/ecms-sync/internal/numerical"
	"github.com/spectriclabs/ecms-sync/internal/taxonomy"
	"github.com/spectriclabs/ecms-sync/internal/timeutil"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

var (
	ErrNoDataset    = errors.New("calibrate: no dataset")
	ErrNoPseudoTime = errors.New("calibrate: pseudotime column not found")
)

type refKind int

const (
	refTime refKind = iota
	refIndex
	refClock
)

// Ref is one side of a calibration point: a raw time, a sample index into
// the time axis, or a "hh:mm:ss" clock reading.
type Ref struct {
	kind  refKind
	time  float64
	index int
	clock string
}

func TimeRef(t float64) Ref { return Ref{kind: refTime, time: t} }

func IndexRef(i int) Ref { return Ref{kind: refIndex, index: i} }

func ClockRef(s string) Ref { return Ref{kind: refClock, clock: s} }

func (r Ref) String() string {
	switch r.kind {
	case refIndex:
		return fmt.Sprintf("index %d", r.index)
	case refClock:
		return fmt.Sprintf("clock %s", r.clock)
	}
	return fmt.Sprintf("time %g", r.time)
}

// UnmarshalJSON accepts a bare number (time), a bare string (clock) or an
// object with exactly one of "time", "index" or "clock".
func (r *Ref) UnmarshalJSON(b []byte) error {
	var t float64
	if err := json.Unmarshal(b, &t); err == nil {
		*r = TimeRef(t)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*r = ClockRef(s)
		return nil
	}
	var obj struct {
		Time  *float64 `json:"time"`
		Index *int     `json:"index"`
		Clock *string  `json:"clock"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return fmt.Errorf("calibration reference: %w", err)
	}
	switch {
	case obj.Time != nil && obj.Index == nil && obj.Clock == nil:
		*r = TimeRef(*obj.Time)
	case obj.Index != nil && obj.Time == nil && obj.Clock == nil:
		*r = IndexRef(*obj.Index)
	case obj.Clock != nil && obj.Time == nil && obj.Index == nil:
		*r = ClockRef(*obj.Clock)
	default:
		return fmt.Errorf("calibration reference %s: need exactly one of time, index or clock", string(b))
	}
	return nil
}

// Point pairs a reference in the dataset being calibrated with the
// corresponding reference in the reference dataset.
type Point struct {
	Data Ref `json:"data"`
	Ref  Ref `json:"ref"`
}

// resolve turns r into a time on axis. Index references need an axis.
func (r Ref) resolve(axis []float64) (float64, error) {
	switch r.kind {
	case refIndex:
		if axis == nil {
			return 0, fmt.Errorf("%s: no time axis to index", r)
		}
		if r.index < 0 || r.index >= len(axis) {
			return 0, fmt.Errorf("%s: out of range for %d samples", r, len(axis))
		}
		return axis[r.index], nil
	case refClock:
		return timeutil.TimestampToSeconds(r.clock)
	}
	return r.time, nil
}

type TimeCalOptions struct {
	TimeCol       string // default "t"
	PseudoTimeCol string // default TimeCol
	RefTimeCol    string // default "time/s"
	Logger        *zap.Logger
}

// TimeCalResult describes the calibration applied:
// time = Slope*pseudotime + Intercept, where Intercept includes Offset.
type TimeCalResult struct {
	Applied   bool    `json:"applied"`
	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`
	Offset    float64 `json:"offset"` // reference tstamp minus dataset tstamp
	Used      int     `json:"used"`
	Dropped   int     `json:"dropped"`
}

// TimeCal calibrates a time column of data against ref. A nil ref means the
// reference times are absolute epoch times. tstamps are never changed.
func TimeCal(data *dataset.Dataset, ref *dataset.Dataset, points []Point, opts TimeCalOptions) (TimeCalResult, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if data == nil {
		return TimeCalResult{}, ErrNoDataset
	}
	timecol := opts.TimeCol
	if timecol == "" {
		timecol = taxonomy.XrayTimeCol
	}
	pseudocol := opts.PseudoTimeCol
	if pseudocol == "" {
		pseudocol = timecol
	}
	refcol := opts.RefTimeCol
	if refcol == "" {
		refcol = taxonomy.ECTimeCol
	}

	pt, ok := data.Col(pseudocol)
	if !ok {
		return TimeCalResult{}, fmt.Errorf("%s in %q: %w", pseudocol, data.Title, ErrNoPseudoTime)
	}

	var result TimeCalResult
	var refAxis []float64
	switch {
	case ref == nil:
		log.Info("time calibration referenced to absolute time")
		if data.HasTstamp() {
			result.Offset = -*data.Tstamp
		} else {
			log.Info("dataset has no tstamp; taking absolute reference times as relative")
		}
	case !ref.HasTstamp() || !data.HasTstamp():
		log.Info("missing tstamp; assuming reference times are relative to the same tstamp")
		refAxis, _ = ref.Col(refcol)
	default:
		result.Offset = *ref.Tstamp - *data.Tstamp
		log.Info("tstamp offset", zap.Float64("offset", result.Offset))
		refAxis, _ = ref.Col(refcol)
	}

	var x, y []float64
	for _, p := range points {
		px, err := p.Data.resolve(pt)
		if err == nil {
			var py float64
			py, err = p.Ref.resolve(refAxis)
			if err == nil {
				x = append(x, px)
				y = append(y, py)
				continue
			}
		}
		result.Dropped++
		log.Info("dropping calibration point", zap.Error(err))
	}
	result.Used = len(x)
	log.Info("resolved calibration points", zap.Int("used", result.Used), zap.Int("of", len(points)))

	switch len(x) {
	case 0:
		log.Info("no usable calibration points; time column left untouched", zap.String("timecol", timecol))
		return result, nil
	case 1:
		result.Slope, result.Intercept = 1, y[0]-x[0]
	default:
		slope, intercept, err := numerical.LinearFit(x, y)
		if errors.Is(err, numerical.ErrDegenerateFit) {
			log.Info("calibration points share one pseudotime; falling back to a shift")
			diff := make([]float64, len(x))
			floats.SubTo(diff, y, x)
			slope, intercept = 1, stat.Mean(diff, nil)
		}
		result.Slope, result.Intercept = slope, intercept
	}
	log.Debug(
		"time calibration with respect to reference tstamp",
		zap.Float64("slope", result.Slope),
		zap.Float64("intercept", result.Intercept),
	)
	result.Intercept += result.Offset
	result.Applied = true

	data.SetCol(timecol, numerical.Scale(pt, result.Slope, result.Intercept))
	return result, nil
}
