package dataset

import (
	"sort"
	"strings"
)

// Data types used as the data_type tag of a dataset.
const (
	TypeEC       = "EC"
	TypeMS       = "MS"
	TypeXray     = "Xray"
	TypeCinfdata = "cinfdata"
	TypeCombined = "combined"
)

// ProvenanceMarker prefixes metadata keys that hold per-source values keyed
// by combining number.
const ProvenanceMarker = "_"

// FileNumberCol records, per sample, which appended dataset a sample came from.
const FileNumberCol = "file number"

// Span is a [start, finish] pair of instants.
type Span [2]float64

// Provenance holds one metadata value per source dataset, keyed by the
// source's combining number.
type Provenance map[int]interface{}

// Dataset is one instrument's recording session: a set of named sample
// columns sharing the absolute reference instant Tstamp, plus metadata.
type Dataset struct {
	Title     string
	DataType  string
	Tstamp    *float64 // epoch seconds at t=0 of the time columns
	Timestamp string   // hh:mm:ss rendering of Tstamp
	Date      string

	DataCols []string
	Columns  map[string][]float64

	Tspan  *Span
	Tspan0 *Span
	Tspan1 *Span

	TStr  string // default calibrated time column
	PtStr string // default uncalibrated time column

	Triggers        []float64
	CombiningNumber *int

	// Meta holds every other field of the record.
	Meta map[string]interface{}
}

// New returns an empty dataset with the given title and data type.
func New(title string, dataType string) *Dataset {
	return &Dataset{
		Title:    title,
		DataType: dataType,
		DataCols: []string{},
		Columns:  make(map[string][]float64),
		Meta:     make(map[string]interface{}),
	}
}

// NewCombined returns the empty result of a synchronization.
func NewCombined() *Dataset {
	return New("", TypeCombined)
}

// Data lets a raw dataset be used wherever a Holder is expected.
func (d *Dataset) Data() *Dataset {
	return d
}

// HasTstamp reports whether the absolute reference instant is known.
func (d *Dataset) HasTstamp() bool {
	return d.Tstamp != nil
}

// SetTstamp sets the absolute reference instant.
func (d *Dataset) SetTstamp(t float64) {
	d.Tstamp = &t
}

// SetCombiningNumber tags the dataset with its synchronization ordinal.
func (d *Dataset) SetCombiningNumber(n int) {
	d.CombiningNumber = &n
}

// HasCol reports whether name is registered in DataCols.
func (d *Dataset) HasCol(name string) bool {
	for _, c := range d.DataCols {
		if c == name {
			return true
		}
	}
	return false
}

// Col returns the samples of a column.
func (d *Dataset) Col(name string) ([]float64, bool) {
	if d.Columns == nil {
		return nil, false
	}
	v, ok := d.Columns[name]
	return v, ok
}

// SetCol stores a column and registers it in DataCols if needed.
func (d *Dataset) SetCol(name string, values []float64) {
	if d.Columns == nil {
		d.Columns = make(map[string][]float64)
	}
	d.Columns[name] = values
	d.Register(name)
}

// Register appends name to DataCols unless it is already there.
func (d *Dataset) Register(name string) {
	if !d.HasCol(name) {
		d.DataCols = append(d.DataCols, name)
	}
}

// RemoveCol drops a column and its DataCols entry.
func (d *Dataset) RemoveCol(name string) {
	delete(d.Columns, name)
	cols := d.DataCols[:0]
	for _, c := range d.DataCols {
		if c != name {
			cols = append(cols, c)
		}
	}
	d.DataCols = cols
}

// IsEmpty reports whether the dataset has no data columns.
func (d *Dataset) IsEmpty() bool {
	return len(d.DataCols) == 0
}

// Copy returns a copy that can be modified without touching d. Column
// slices are copied too.
func (d *Dataset) Copy() *Dataset {
	c := *d
	c.DataCols = append([]string{}, d.DataCols...)
	c.Columns = make(map[string][]float64, len(d.Columns))
	for k, v := range d.Columns {
		c.Columns[k] = append([]float64(nil), v...)
	}
	c.Meta = make(map[string]interface{}, len(d.Meta))
	for k, v := range d.Meta {
		c.Meta[k] = v
	}
	if d.Tstamp != nil {
		c.SetTstamp(*d.Tstamp)
	}
	if d.Tspan != nil {
		s := *d.Tspan
		c.Tspan = &s
	}
	if d.Tspan0 != nil {
		s := *d.Tspan0
		c.Tspan0 = &s
	}
	if d.Tspan1 != nil {
		s := *d.Tspan1
		c.Tspan1 = &s
	}
	if d.CombiningNumber != nil {
		c.SetCombiningNumber(*d.CombiningNumber)
	}
	c.Triggers = append([]float64(nil), d.Triggers...)
	return &c
}

// Field is one named metadata value of a dataset.
type Field struct {
	Key   string
	Value interface{}
}

// Fields lists the metadata of the dataset (everything but the columns and
// the column list) in a stable order: typed fields first, then Meta sorted
// by key.
func (d *Dataset) Fields() []Field {
	fields := []Field{
		{Key: "title", Value: d.Title},
		{Key: "data_type", Value: d.DataType},
	}
	if d.Tstamp != nil {
		fields = append(fields, Field{Key: "tstamp", Value: *d.Tstamp})
	}
	if d.Timestamp != "" {
		fields = append(fields, Field{Key: "timestamp", Value: d.Timestamp})
	}
	if d.Date != "" {
		fields = append(fields, Field{Key: "date", Value: d.Date})
	}
	if d.Tspan != nil {
		fields = append(fields, Field{Key: "tspan", Value: *d.Tspan})
	}
	if d.Tspan0 != nil {
		fields = append(fields, Field{Key: "tspan_0", Value: *d.Tspan0})
	}
	if d.Tspan1 != nil {
		fields = append(fields, Field{Key: "tspan_1", Value: *d.Tspan1})
	}
	if d.TStr != "" {
		fields = append(fields, Field{Key: "t_str", Value: d.TStr})
	}
	if d.PtStr != "" {
		fields = append(fields, Field{Key: "pt_str", Value: d.PtStr})
	}
	if d.Triggers != nil {
		fields = append(fields, Field{Key: "triggers", Value: d.Triggers})
	}
	if d.CombiningNumber != nil {
		fields = append(fields, Field{Key: "combining_number", Value: *d.CombiningNumber})
	}

	keys := make([]string, 0, len(d.Meta))
	for k := range d.Meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fields = append(fields, Field{Key: k, Value: d.Meta[k]})
	}
	return fields
}

// Field returns the metadata value stored under key.
func (d *Dataset) Field(key string) (interface{}, bool) {
	for _, f := range d.Fields() {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// SetField stores a metadata value. Keys with a typed home are assigned to
// it when the value has the matching type; everything else goes to Meta.
func (d *Dataset) SetField(key string, value interface{}) {
	switch key {
	case "title":
		if s, ok := value.(string); ok {
			d.Title = s
			return
		}
	case "data_type":
		if s, ok := value.(string); ok {
			d.DataType = s
			return
		}
	case "tstamp":
		if f, ok := value.(float64); ok {
			d.SetTstamp(f)
			return
		}
	case "timestamp":
		if s, ok := value.(string); ok {
			d.Timestamp = s
			return
		}
	case "date":
		if s, ok := value.(string); ok {
			d.Date = s
			return
		}
	case "tspan", "tspan_0", "tspan_1":
		if s, ok := value.(Span); ok {
			switch key {
			case "tspan":
				d.Tspan = &s
			case "tspan_0":
				d.Tspan0 = &s
			default:
				d.Tspan1 = &s
			}
			return
		}
	case "t_str":
		if s, ok := value.(string); ok {
			d.TStr = s
			return
		}
	case "pt_str":
		if s, ok := value.(string); ok {
			d.PtStr = s
			return
		}
	case "triggers":
		if f, ok := value.([]float64); ok {
			d.Triggers = f
			return
		}
	case "combining_number":
		if n, ok := value.(int); ok {
			d.SetCombiningNumber(n)
			return
		}
	}
	if d.Meta == nil {
		d.Meta = make(map[string]interface{})
	}
	d.Meta[key] = value
}

// IsProvenanceKey reports whether key carries the provenance marker.
func IsProvenanceKey(key string) bool {
	return strings.HasPrefix(key, ProvenanceMarker)
}

// Provenance returns the per-source table stored under key, creating it
// when create is set. A table decoded from JSON (string keys) is converted
// in place.
func (d *Dataset) Provenance(key string, create bool) (Provenance, bool) {
	if v, ok := d.Meta[key]; ok {
		if p, ok := toProvenance(v); ok {
			d.Meta[key] = p
			return p, true
		}
	}
	if !create {
		return nil, false
	}
	p := Provenance{}
	d.SetField(key, p)
	return p, true
}
