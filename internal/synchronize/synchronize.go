// Package synchronize merges datasets recorded by independent instruments
// onto one absolute time axis.
package synchronize

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spectriclabs/ecms-sync/internal/confirm"
	"github.com/spectriclabs/ecms-sync/internal/dataset"
	"github.com/spectriclabs/ecms-sync/internal/numerical"
	"github.com/spectriclabs/ecms-sync/internal/taxonomy"
	"github.com/spectriclabs/ecms-sync/internal/timeutil"
	"github.com/spectriclabs/ecms-sync/internal/window"
	"go.uber.org/zap"
)

var ErrMissingTstamp = errors.New("synchronize: dataset has no tstamp")

// Reserved keys of the combined dataset are never overwritten by source
// metadata.
var Reserved = map[string]bool{
	"title":               true,
	"data_type":           true,
	"data_cols":           true,
	"tspan":               true,
	"tspan_0":             true,
	"tspan_1":             true,
	"tstamp":              true,
	"timestamp":           true,
	"first":               true,
	"last":                true,
	"start":               true,
	"finish":              true,
	"combining_number":    true,
	dataset.FileNumberCol: true,
}

// source is one input dataset as seen by the two passes.
type source struct {
	nd      int
	data    *dataset.Dataset
	t0      float64
	start   float64
	finish  float64
	hasData bool
}

// Synchronize combines the datasets carried by sources into one dataset
// whose time columns all count from a common time zero. Datasets sharing
// column names are appended or kept apart with suffixed names, depending on
// opts.Append.
func Synchronize(sources []dataset.Holder, opts Options) (*dataset.Dataset, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	var datasets []*dataset.Dataset
	for i, h := range sources {
		if h == nil || h.Data() == nil {
			log.Info("can't get data from source", zap.Int("index", i))
			continue
		}
		datasets = append(datasets, h.Data())
	}
	o := opts.resolve(datasets)
	log.Info("synchronizing", zap.Int("datasets", len(datasets)), zap.Bool("append", o.append))

	// first pass: spans of each dataset and of the overlap
	tFirst, tLast := math.Inf(1), math.Inf(-1)
	tStart, tFinish := math.Inf(-1), math.Inf(1)
	var title strings.Builder
	srcs := make([]*source, len(datasets))
	nonEmpty := 0
	for nd, d := range datasets {
		d.SetCombiningNumber(nd)
		s := &source{nd: nd, data: d}
		srcs[nd] = s
		if d.IsEmpty() {
			log.Info("dataset is empty", zap.String("title", d.Title), zap.Int("combining_number", nd))
			continue
		}
		if title.Len() > 0 {
			title.WriteString(", ")
			if nd == len(datasets)-1 {
				title.WriteString("and ")
			}
		}
		fmt.Fprintf(&title, "(%s) as %d", d.Title, nd)

		t0, err := tstampOf(d, o)
		if err != nil {
			return nil, err
		}
		s.t0 = t0
		log.Info("working on dataset", zap.String("title", d.Title), zap.Float64("tstamp", t0))

		s.start, s.finish = math.Inf(1), math.Inf(-1)
		for _, col := range d.DataCols {
			if !taxonomy.IsTime(col) {
				continue
			}
			t, _ := d.Col(col)
			first, ok := numerical.First(t)
			if !ok {
				log.Debug("time column has no data", zap.String("title", d.Title), zap.String("col", col))
				continue
			}
			last, _ := numerical.Last(t)
			s.start = math.Min(s.start, t0+first)
			s.finish = math.Max(s.finish, t0+last)
			s.hasData = true
		}
		if !s.hasData {
			log.Info("dataset has no time data; treating it as empty", zap.String("title", d.Title))
			continue
		}
		nonEmpty++
		tFirst = math.Min(tFirst, t0)
		tLast = math.Max(tLast, t0)
		tStart = math.Max(tStart, s.start)
		tFinish = math.Min(tFinish, s.finish)
	}
	log.Info(
		"spans",
		zap.Float64("first", tFirst),
		zap.Float64("last", tLast),
		zap.Float64("start", tStart),
		zap.Float64("finish", tFinish),
	)

	if tStart > tFinish && !o.override {
		log.Info("no overlap", zap.Float64("start", tStart), zap.Float64("finish", tFinish))
		if err := confirm.Ask(o.Confirm, "No overlap. Check your files."); err != nil {
			return nil, err
		}
	}

	switch nonEmpty {
	case 0:
		log.Info("no dataset has data; returning an empty dataset")
		combined := dataset.NewCombined()
		combined.Title = title.String()
		return combined, nil
	case 1:
		for _, s := range srcs {
			if s.hasData {
				log.Info("only one dataset has data; returning it", zap.String("title", s.data.Title))
				return s.data, nil
			}
		}
	}

	var tZero float64
	switch o.TimeZero.kind {
	case zeroFirst:
		tZero = tFirst
	case zeroLast:
		tZero = tLast
	case zeroFinish:
		tZero = tFinish
	case zeroAt:
		tZero = o.TimeZero.at
	default:
		tZero = tStart
	}

	combined := dataset.NewCombined()
	combined.Title = title.String()
	combined.Tspan0 = &dataset.Span{tStart, tFinish}
	combined.Tspan1 = &dataset.Span{tStart - tFirst, tFinish - tFirst}
	combined.Tspan = &dataset.Span{tStart - tZero, tFinish - tZero}
	combined.SetTstamp(tZero)
	combined.Timestamp = timeutil.EpochToTimestamp(tZero, o.Location)
	combined.Meta["first"] = tFirst - tZero
	combined.Meta["last"] = tLast - tZero
	combined.Meta["start"] = tStart - tZero
	combined.Meta["finish"] = tFinish - tZero

	// second pass, in order of recording start
	order := make([]*source, 0, nonEmpty)
	for _, s := range srcs {
		if s.hasData {
			order = append(order, s)
		}
	}
	sort.SliceStable(order, func(i, j int) bool { return order[i].start < order[j].start })

	m := &merger{
		opts:     o,
		log:      log,
		combined: combined,
		tStart:   tStart,
		tFinish:  tFinish,
		tZero:    tZero,
	}
	if o.append {
		for _, d := range datasets {
			if d.DataType == o.FileNumberType {
				if timecol, ok := taxonomy.TimeColForType(o.FileNumberType); ok {
					m.fileNumbers = []float64{}
					m.fnTimeCol = timecol
				} else {
					log.Info("no time column for file number type", zap.String("data_type", o.FileNumberType))
				}
				break
			}
		}
	}
	for i, s := range order {
		m.add(i, s)
	}
	m.finish()

	if o.Update {
		for _, h := range sources {
			if u, ok := h.(dataset.Updater); ok {
				u.SetData(combined)
			}
		}
	}
	log.Info("synchronize finished", zap.String("title", combined.Title), zap.Int("columns", len(combined.DataCols)))
	return combined, nil
}

// tstampOf returns the dataset's t=0 in epoch seconds, deriving it from
// date and timestamp when tstamp is missing.
func tstampOf(d *dataset.Dataset, o resolved) (float64, error) {
	if d.HasTstamp() {
		return *d.Tstamp, nil
	}
	o.Logger.Info("no tstamp in dataset; reading it from date and timestamp", zap.String("title", d.Title))

	var loc *time.Location
	switch o.MissingTstamp {
	case MissingTstampError:
		return 0, fmt.Errorf("%q: %w", d.Title, ErrMissingTstamp)
	case MissingTstampLocal:
		loc = o.Location
	default:
		loc = time.UTC
	}
	if d.Timestamp == "" {
		return 0, fmt.Errorf("%q has no timestamp either: %w", d.Title, ErrMissingTstamp)
	}
	t0, err := timeutil.TimestampToEpoch(d.Timestamp, d.Date, loc)
	if err != nil {
		return 0, fmt.Errorf("%q: %v: %w", d.Title, err, ErrMissingTstamp)
	}
	return t0, nil
}

// merger accumulates sources into the combined dataset.
type merger struct {
	opts     resolved
	log      *zap.Logger
	combined *dataset.Dataset

	tStart, tFinish, tZero float64

	// fileNumbers is nil unless file numbers are tracked.
	fileNumbers []float64
	fnTimeCol   string

	// timeOf maps renamed columns to their renamed time column, for names
	// that no longer resolve by themselves (generic Xray columns).
	timeOf map[string]string
}

// prepare cuts and offsets the columns of s. Columns whose time column is
// unknown, absent or of a different length are left out.
func (m *merger) prepare(s *source) ([]string, map[string][]float64) {
	d := s.data
	offset := s.t0 - m.tZero

	var masks map[string][]bool
	if m.opts.Cut {
		masks = make(map[string][]bool)
		lo := m.tStart - m.opts.cutBuffer - s.t0
		hi := m.tFinish + m.opts.cutBuffer - s.t0
		for _, col := range d.DataCols {
			if taxonomy.IsTime(col) {
				t, _ := d.Col(col)
				masks[col] = window.Mask(t, lo, hi)
				m.log.Debug("prepared mask to cut by time column", zap.String("timecol", col))
			}
		}
	}

	cols := make([]string, 0, len(d.DataCols))
	out := make(map[string][]float64, len(d.DataCols))
	for _, col := range d.DataCols {
		c := taxonomy.Resolve(col)
		values, _ := d.Col(col)
		t, ok := d.Col(c.TimeCol)
		if !c.Known || !ok || !d.HasCol(c.TimeCol) {
			m.log.Info(
				"column's time column is not in dataset; leaving it out",
				zap.String("col", col),
				zap.String("timecol", c.TimeCol),
				zap.Int("combining_number", s.nd),
			)
			continue
		}
		if len(values) != len(t) {
			m.log.Info(
				"column length differs from its time column; leaving it out",
				zap.String("col", col),
				zap.Int("len", len(values)),
				zap.Int("timecol_len", len(t)),
			)
			continue
		}
		if mask, ok := masks[c.TimeCol]; ok {
			values = numerical.ApplyMask(values, mask)
		} else {
			values = append([]float64(nil), values...)
		}
		if c.IsTime {
			values = numerical.Shift(values, offset)
		}
		cols = append(cols, col)
		out[col] = values
	}
	return cols, out
}

func (m *merger) add(i int, s *source) {
	m.log.Info("merging dataset", zap.String("title", s.data.Title), zap.Int("combining_number", s.nd))
	cols, values := m.prepare(s)
	if m.opts.append {
		m.appendColumns(i, s, cols, values)
	} else {
		m.separateColumns(s, cols, values)
	}
	m.mergeMetadata(s)
}

// appendColumns joins the columns of s onto the combined columns of the
// same name. A combined column that is shorter than its time column, because
// earlier datasets lacked it, is zero-filled first.
func (m *merger) appendColumns(i int, s *source, cols []string, values map[string][]float64) {
	c := m.combined
	oldLen := make(map[string]int)
	for _, col := range c.DataCols {
		if taxonomy.IsTime(col) {
			oldLen[col] = len(c.Columns[col])
		}
	}
	addLen := make(map[string]int)
	for _, col := range cols {
		if taxonomy.IsTime(col) {
			addLen[col] = len(values[col])
		}
	}

	if m.fileNumbers != nil && s.data.DataType == m.opts.FileNumberType {
		n := addLen[m.fnTimeCol]
		m.fileNumbers = numerical.Concat(m.fileNumbers, numerical.Repeat(float64(i), n))
		m.log.Debug("file numbers", zap.Int("len", len(m.fileNumbers)))
	}

	for _, col := range cols {
		if m.fileNumbers != nil && col == dataset.FileNumberCol {
			m.log.Debug("replacing source file number column", zap.Int("combining_number", s.nd))
			continue
		}
		timecol, _ := taxonomy.TimeCol(col)
		data := values[col]
		old := c.Columns[col]
		if want := oldLen[timecol] + addLen[timecol]; want > len(old)+len(data) {
			old = numerical.PadZeros(old, want-len(data))
		}
		c.SetCol(col, numerical.Concat(old, data))
	}
}

// separateColumns adds the columns of s under their own names. When any
// name of a time column group is taken, the whole group gets the
// _<combining number> suffix so its members still resolve to each other.
func (m *merger) separateColumns(s *source, cols []string, values map[string][]float64) {
	c := m.combined
	groups := make(map[string][]string)
	var timecols []string
	for _, col := range cols {
		timecol, _ := taxonomy.TimeCol(col)
		if _, ok := groups[timecol]; !ok {
			timecols = append(timecols, timecol)
		}
		groups[timecol] = append(groups[timecol], col)
	}

	for _, timecol := range timecols {
		members := groups[timecol]
		suffix := ""
		for taken(c, members, suffix) {
			suffix += "_" + strconv.Itoa(s.nd)
		}
		if suffix != "" {
			m.log.Info(
				"conflicting versions of columns; adding subscripts",
				zap.String("timecol", timecol),
				zap.String("suffix", suffix),
			)
		}
		for _, col := range members {
			c.SetCol(col+suffix, values[col])
			if suffix == "" {
				continue
			}
			if resolved, ok := taxonomy.TimeCol(col + suffix); !ok || resolved != timecol+suffix {
				if m.timeOf == nil {
					m.timeOf = make(map[string]string)
				}
				m.timeOf[col+suffix] = timecol + suffix
			}
		}
	}
}

func taken(c *dataset.Dataset, cols []string, suffix string) bool {
	for _, col := range cols {
		if _, ok := c.Columns[col+suffix]; ok {
			return true
		}
	}
	return false
}

// mergeMetadata copies the metadata of s. Keys marked as provenance are
// nested by combining number, last write winning. Other keys are exposed at
// top level, unless reserved, with the latest source winning, and also
// nested under the marked key, where an existing entry is kept.
func (m *merger) mergeMetadata(s *source) {
	c := m.combined
	nd := s.nd
	for _, f := range s.data.Fields() {
		if c.HasCol(f.Key) {
			continue
		}
		if dataset.IsProvenanceKey(f.Key) {
			p, existed := c.Provenance(f.Key, false)
			if !existed {
				p, _ = c.Provenance(f.Key, true)
				m.log.Info("nesting metadata", zap.String("key", f.Key), zap.Int("combining_number", nd))
			} else if _, ok := p[nd]; ok {
				m.log.Debug("overwriting nested metadata", zap.String("key", f.Key), zap.Int("combining_number", nd))
			}
			p[nd] = f.Value
			continue
		}

		if !Reserved[f.Key] {
			c.SetField(f.Key, f.Value)
		}
		key := dataset.ProvenanceMarker + f.Key
		p, existed := c.Provenance(key, false)
		if !existed {
			m.log.Debug("metadata from sources stored as", zap.String("key", key))
			p, _ = c.Provenance(key, true)
		}
		if _, ok := p[nd]; ok {
			m.log.Info("key has nested metadata; skipping unnested", zap.String("key", key), zap.Int("combining_number", nd))
			continue
		}
		p[nd] = f.Value
	}
}

// finish zero-fills columns left short by the last datasets, adds the file
// number column and sets the default time column.
func (m *merger) finish() {
	c := m.combined
	if m.fileNumbers != nil {
		c.SetCol(dataset.FileNumberCol, m.fileNumbers)
	}
	for _, col := range c.DataCols {
		timecol, ok := taxonomy.TimeCol(col)
		if renamed, isRenamed := m.timeOf[col]; isRenamed {
			timecol, ok = renamed, true
		}
		t, found := c.Col(timecol)
		if !ok || !found {
			m.log.Info("can't find time column; skipping", zap.String("col", col))
			continue
		}
		if len(t) > len(c.Columns[col]) {
			m.log.Debug("zero-filling column", zap.String("col", col), zap.Int("to", len(t)))
			c.Columns[col] = numerical.PadZeros(c.Columns[col], len(t))
		}
	}
	if c.HasCol(taxonomy.ECTimeCol) {
		c.TStr = taxonomy.ECTimeCol
	}
	if c.IsEmpty() {
		m.log.Info("the input did not have recognizable data; returning an empty dataset")
	}
}
