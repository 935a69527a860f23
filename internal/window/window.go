// Package window cuts datasets to a time window and moves their time zero.
package window

import (
	"fmt"
	"sort"

	"github.com/spectriclabs/ecms-sync/internal/confirm"
	"github.com/spectriclabs/ecms-sync/internal/dataset"
	"github.com/spectriclabs/ecms-sync/internal/numerical"
	"github.com/spectriclabs/ecms-sync/internal/taxonomy"
	"go.uber.org/zap"
)

// Options controls the diagnostics and the escalation of suspicious cuts.
type Options struct {
	// Override skips the confirmation when a cut leaves nothing.
	Override bool
	Confirm  confirm.Func
	Logger   *zap.Logger
}

func (o Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

// Mask selects the samples of t strictly inside (lo, hi).
func Mask(t []float64, lo float64, hi float64) []bool {
	mask := make([]bool, len(t))
	for i, v := range t {
		mask[i] = lo < v && v < hi
	}
	return mask
}

// Cut keeps the (x, y) pairs with x strictly inside tspan. A nil tspan
// returns the input unchanged. When x and y differ in length only the
// first min(len(x), len(y)) pairs are considered. The mask used is returned as well, nil when
// nothing was cut.
func Cut(x []float64, y []float64, tspan *dataset.Span, opts Options) ([]float64, []float64, []bool, error) {
	if tspan == nil {
		return x, y, nil, nil
	}
	log := opts.logger()
	if len(x) != len(y) {
		n := len(x)
		if len(y) < n {
			n = len(y)
		}
		log.Info(
			"x and y differ in length; cutting the shared part",
			zap.Int("x_len", len(x)),
			zap.Int("y_len", len(y)),
		)
		x, y = x[:n], y[:n]
	}
	if len(x) == 0 {
		log.Info("cut received an empty input")
		if err := confirm.Ask(opts.Confirm, "cut received an empty input"); err != nil {
			return nil, nil, nil, err
		}
	}

	mask := Mask(x, tspan[0], tspan[1])
	if len(x) > 0 && numerical.CountTrue(mask) == 0 && !opts.Override {
		log.Info(
			"cutting leaves an empty dataset",
			zap.Float64("x_first", x[0]),
			zap.Float64("x_last", x[len(x)-1]),
			zap.Float64s("tspan", tspan[:]),
		)
		reason := fmt.Sprintf(
			"cutting to (%g, %g) leaves an empty dataset: x goes from %g to %g",
			tspan[0], tspan[1], x[0], x[len(x)-1],
		)
		if err := confirm.Ask(opts.Confirm, reason); err != nil {
			return nil, nil, nil, err
		}
	}
	return numerical.ApplyMask(x, mask), numerical.ApplyMask(y, mask), mask, nil
}

type zeroKind int

const (
	zeroNone zeroKind = iota
	zeroWindowStart
	zeroAt
)

// Zero is the instant subtracted from the time columns after a cut.
type Zero struct {
	kind zeroKind
	at   float64
}

var (
	// NoShift keeps the time columns as they are.
	NoShift = Zero{}
	// StartOfWindow puts t=0 at the start of the dataset's tspan.
	StartOfWindow = Zero{kind: zeroWindowStart}
)

// At puts t=0 at the given instant, in the dataset's own time frame.
func At(t float64) Zero {
	return Zero{kind: zeroAt, at: t}
}

func (z Zero) instant(d *dataset.Dataset) float64 {
	switch z.kind {
	case zeroWindowStart:
		if d.Tspan != nil {
			return d.Tspan[0]
		}
	case zeroAt:
		return z.at
	}
	return 0
}

// Timeshift subtracts the zero instant from every time column of d and
// from its tspan, in place.
func Timeshift(d *dataset.Dataset, zero Zero) *dataset.Dataset {
	t0 := zero.instant(d)
	if t0 == 0 {
		return d
	}
	for _, col := range d.DataCols {
		if !taxonomy.IsTime(col) {
			continue
		}
		if v, ok := d.Col(col); ok {
			d.Columns[col] = numerical.Shift(v, -t0)
		}
	}
	if d.Tspan != nil {
		d.Tspan = &dataset.Span{d.Tspan[0] - t0, d.Tspan[1] - t0}
	}
	return d
}

// CutDataset returns a copy of d keeping only the samples whose time lies
// strictly inside tspan, then re-zeroed according to zero. Every column is
// cut with the mask of its own time column; columns of different time
// columns keep their own lengths. Columns that cannot be matched to a time
// column of the right length are dropped.
func CutDataset(d *dataset.Dataset, tspan *dataset.Span, zero Zero, opts Options) *dataset.Dataset {
	out := d.Copy()
	if tspan == nil {
		return out
	}
	log := opts.logger()

	masks := make(map[string][]bool)
	for _, col := range d.DataCols {
		timecol, ok := taxonomy.TimeCol(col)
		if !ok {
			log.Info("no time column for column; dropping it", zap.String("col", col))
			out.RemoveCol(col)
			continue
		}
		mask, ok := masks[timecol]
		if !ok {
			t, found := d.Col(timecol)
			if !found {
				log.Info(
					"time column missing; dropping column",
					zap.String("col", col),
					zap.String("timecol", timecol),
				)
				out.RemoveCol(col)
				continue
			}
			mask = Mask(t, tspan[0], tspan[1])
			masks[timecol] = mask
		}
		values, _ := d.Col(col)
		if len(values) != len(mask) {
			log.Info(
				"column length differs from its time column; dropping it",
				zap.String("col", col),
				zap.String("timecol", timecol),
				zap.Int("len", len(values)),
				zap.Int("timecol_len", len(mask)),
			)
			out.RemoveCol(col)
			continue
		}
		out.Columns[col] = numerical.ApplyMask(values, mask)
	}

	w := *tspan
	out.Tspan = &w
	return Timeshift(out, zero)
}

// SortTime reorders the columns of the given instrument kinds (EC when
// none is given) by their time column, in place. Columns of other kinds are
// kept as they are; sortable columns whose length does not match their
// time column are dropped.
func SortTime(d *dataset.Dataset, log *zap.Logger, kinds ...taxonomy.Kind) *dataset.Dataset {
	if log == nil {
		log = zap.NewNop()
	}
	if len(kinds) == 0 {
		kinds = []taxonomy.Kind{taxonomy.EC}
	}
	sortable := make(map[taxonomy.Kind]bool, len(kinds))
	for _, k := range kinds {
		sortable[k] = true
	}

	if notes, ok := d.Meta["NOTES"].(string); ok {
		d.Meta["NOTES"] = notes + "\nTime-Sorted\n"
	} else {
		d.Meta["NOTES"] = "Time-Sorted\n"
	}

	orders := make(map[string][]int)
	cols := d.DataCols
	d.DataCols = make([]string, 0, len(cols))
	for _, col := range cols {
		c := taxonomy.Resolve(col)
		if !sortable[c.Kind] {
			d.Register(col)
			continue
		}
		order, ok := orders[c.TimeCol]
		if !ok {
			t, found := d.Col(c.TimeCol)
			if !found {
				log.Debug("time column missing; not sorting", zap.String("col", col), zap.String("timecol", c.TimeCol))
				delete(d.Columns, col)
				continue
			}
			order = argsort(t)
			orders[c.TimeCol] = order
			log.Debug("sorting by time column", zap.String("timecol", c.TimeCol))
		}
		values := d.Columns[col]
		if len(values) != len(order) {
			log.Debug(
				"column is not the same length as its time column; leaving it out",
				zap.String("col", col),
			)
			delete(d.Columns, col)
			continue
		}
		sorted := make([]float64, len(values))
		for i, j := range order {
			sorted[i] = values[j]
		}
		d.Columns[col] = sorted
		d.Register(col)
	}
	return d
}

func argsort(t []float64) []int {
	order := make([]int, len(t))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return t[order[a]] < t[order[b]] })
	return order
}
