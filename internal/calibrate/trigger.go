package calibrate

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spectriclabs/ecms-sync/internal/dataset"
	"github.com/spectriclabs/ecms-sync/internal/numerical"
	"github.com/spectriclabs/ecms-sync/internal/taxonomy"
	"go.uber.org/zap"
)

const (
	// DefaultThreshold is the analog level above which a trigger is on.
	DefaultThreshold = 2.5
	// GapTolerance is the largest sampling gap, in seconds, not taken as a
	// trigger when gap detection is on.
	GapTolerance = 2.0
	DefaultLabel = "Analog In"
	DefaultEdge  = 2.0

	SelectorCol = "selector"
	LoopCol     = "loop number"
	CycleCol    = "cycle number"
)

var ErrNoTriggerChannel = errors.New("calibrate: no trigger channel")

// TriggerTimes returns the x values at which y rises above threshold. The
// first sample counts when it is already above. With gap set, samples
// followed by a sampling gap longer than GapTolerance count as well, since
// some instruments stop logging while the trigger is on.
func TriggerTimes(x []float64, y []float64, threshold float64, gap bool) []float64 {
	times := []float64{}
	for i := range x {
		on := y[i] > threshold
		start := on && (i == 0 || !(y[i-1] > threshold))
		if gap && i+1 < len(x) && x[i] < x[i+1]-GapTolerance {
			start = true
		}
		if start {
			times = append(times, x[i])
		}
	}
	return times
}

// GetTriggerTimes finds the analog trigger channel of d, detects its
// triggers and stores them in d.Triggers. ycol may be left empty to search
// data_cols for label (case-insensitive, DefaultLabel when empty); xcol
// defaults to the time column of ycol.
func GetTriggerTimes(d *dataset.Dataset, xcol string, ycol string, label string, threshold float64) ([]float64, error) {
	if ycol == "" {
		if label == "" {
			label = DefaultLabel
		}
		needle := strings.ToLower(label)
		for _, col := range d.DataCols {
			if strings.Contains(strings.ToLower(col), needle) {
				ycol = col
				break
			}
		}
		if ycol == "" {
			return nil, fmt.Errorf("%q has no column labelled %q: %w", d.Title, label, ErrNoTriggerChannel)
		}
	}
	if xcol == "" {
		var ok bool
		if xcol, ok = taxonomy.TimeCol(ycol); !ok {
			return nil, fmt.Errorf("no time column for %q: %w", ycol, ErrNoTriggerChannel)
		}
	}
	x, okx := d.Col(xcol)
	y, oky := d.Col(ycol)
	if !okx || !oky || len(x) != len(y) {
		return nil, fmt.Errorf("%q needs %q and %q of equal length: %w", d.Title, xcol, ycol, ErrNoTriggerChannel)
	}
	d.Triggers = TriggerTimes(x, y, threshold, true)
	return d.Triggers, nil
}

// MakeSelector folds file, loop and cycle numbers, whichever are present,
// into one selector column whose value changes whenever any of them does.
// It reports whether a selector was made.
func MakeSelector(d *dataset.Dataset) bool {
	weights := []struct {
		col    string
		weight float64
	}{
		{dataset.FileNumberCol, 1e6},
		{LoopCol, 1e3},
		{CycleCol, 1},
	}

	var selector []float64
	for _, w := range weights {
		values, ok := d.Col(w.col)
		if !ok {
			continue
		}
		if selector == nil {
			selector = make([]float64, len(values))
		}
		if len(values) != len(selector) {
			continue
		}
		for i, v := range values {
			selector[i] += w.weight * v
		}
	}
	if selector == nil {
		return false
	}
	d.SetCol(SelectorCol, selector)
	return true
}

type TriggerCalOptions struct {
	// Triggers defaults to the dataset's own, detected when absent.
	Triggers      []float64
	PseudoTimeCol string
	TimeCol       string
	ShiftCol      string  // default "selector"
	Edge          *float64 // default DefaultEdge
	Logger        *zap.Logger
}

type triggerPair struct {
	pseudo  float64
	trigger float64
}

// TriggerCal calibrates a pseudotime column of d so that triggers line up
// with the instants where the shift column changes value, and returns the
// name of the calibrated column. Samples before the first matched trigger
// and after the last one are shifted; samples in between are interpolated.
func TriggerCal(d *dataset.Dataset, opts TriggerCalOptions) (string, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if d == nil {
		return "", ErrNoDataset
	}
	edge := DefaultEdge
	if opts.Edge != nil {
		edge = *opts.Edge
	}
	shiftcol := opts.ShiftCol
	if shiftcol == "" {
		shiftcol = SelectorCol
	}

	pseudocol := opts.PseudoTimeCol
	switch {
	case pseudocol != "":
	case d.PtStr != "":
		pseudocol = d.PtStr
	case d.TStr != "":
		pseudocol = d.TStr
	default:
		pseudocol = taxonomy.ECTimeCol
	}
	timecol := opts.TimeCol
	switch {
	case timecol != "":
	case pseudocol == d.TStr:
		timecol = pseudocol + "*"
	case d.TStr != "":
		timecol = d.TStr
	default:
		timecol = pseudocol + "*"
	}

	triggers := opts.Triggers
	if triggers == nil {
		if d.Triggers == nil {
			if _, err := GetTriggerTimes(d, "", "", "", DefaultThreshold); err != nil {
				return "", err
			}
		}
		triggers = d.Triggers
	}

	pt, ok := d.Col(pseudocol)
	if !ok || len(pt) == 0 {
		return "", fmt.Errorf("%s in %q: %w", pseudocol, d.Title, ErrNoPseudoTime)
	}

	if shiftcol == SelectorCol {
		if _, ok := d.Col(SelectorCol); !ok {
			MakeSelector(d)
		}
	}

	if len(triggers) == 0 {
		log.Info("no triggers in this dataset; no calibration")
		return pseudocol, nil
	}
	lo, hi := pt[0]-edge, pt[len(pt)-1]+edge
	inRange := make([]float64, 0, len(triggers))
	for _, tr := range triggers {
		if lo < tr && tr < hi {
			inRange = append(inRange, tr)
		}
	}
	log.Info(
		"triggers in time range",
		zap.Int("triggers", len(triggers)),
		zap.Int("in_range", len(inRange)),
		zap.Float64("from", lo),
		zap.Float64("to", hi),
	)
	if len(inRange) == 0 {
		log.Info("no triggers in time range; can't calibrate")
		d.TStr = pseudocol
		return pseudocol, nil
	}

	shift, ok := d.Col(shiftcol)
	if !ok {
		if len(inRange) > 1 {
			log.Info(
				"no shift column; taking the first trigger as the start of the file and ignoring the rest",
				zap.String("shiftcol", shiftcol),
				zap.Int("ignored", len(inRange)-1),
			)
		} else {
			log.Info("no shift column; taking the trigger as the start of the file", zap.String("shiftcol", shiftcol))
		}
		d.SetCol(timecol, numerical.Shift(pt, inRange[0]-pt[0]))
		d.Register(pseudocol)
		d.PtStr, d.TStr = pseudocol, timecol
		return timecol, nil
	}
	if len(shift) != len(pt) {
		return "", fmt.Errorf("shift column %q has %d samples, pseudotime %q has %d", shiftcol, len(shift), pseudocol, len(pt))
	}

	var changes []float64
	for i, v := range shift {
		if i == 0 || v != shift[i-1] {
			changes = append(changes, pt[i])
		}
	}

	claimed := make(map[int]int)
	var pairs []triggerPair
	for _, tr := range inRange {
		idx, dist := numerical.Nearest(changes, tr)
		if dist > edge {
			log.Info(
				"large offset between trigger and shift column change",
				zap.Float64("trigger", tr),
				zap.Float64("change", changes[idx]),
				zap.String("shiftcol", shiftcol),
			)
		}
		if at, ok := claimed[idx]; ok {
			log.Info(
				"several triggers match one change; keeping the latest as the others look like false starts",
				zap.Float64("change", changes[idx]),
				zap.Float64("dropped_trigger", pairs[at].trigger),
			)
			pairs[at].trigger = tr
			continue
		}
		claimed[idx] = len(pairs)
		pairs = append(pairs, triggerPair{pseudo: changes[idx], trigger: tr})
	}
	sort.SliceStable(pairs, func(a, b int) bool { return pairs[a].pseudo < pairs[b].pseudo })
	log.Info("matched triggers to shift column changes", zap.Int("pairs", len(pairs)), zap.String("shiftcol", shiftcol))

	first, last := pairs[0], pairs[len(pairs)-1]
	xp := make([]float64, len(pairs))
	fp := make([]float64, len(pairs))
	for i, p := range pairs {
		xp[i], fp[i] = p.pseudo, p.trigger
	}

	t := make([]float64, len(pt))
	var middle []int
	for i, v := range pt {
		switch {
		case v >= last.pseudo:
			t[i] = v + last.trigger - last.pseudo
		case v <= first.pseudo:
			t[i] = v + first.trigger - first.pseudo
		default:
			middle = append(middle, i)
		}
	}
	if len(middle) > 0 {
		at := make([]float64, len(middle))
		for j, i := range middle {
			at[j] = pt[i]
		}
		interpolated, err := numerical.Interp(at, xp, fp)
		if err != nil {
			return "", fmt.Errorf("interpolating %q: %w", pseudocol, err)
		}
		for j, i := range middle {
			t[i] = interpolated[j]
		}
	}

	d.SetCol(timecol, t)
	d.Register(pseudocol)
	d.PtStr, d.TStr = pseudocol, timecol
	return timecol, nil
}
