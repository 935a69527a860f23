package dataset

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
)

// MarshalJSON writes the dataset as one flat object: metadata fields and
// every column side by side, keyed by name.
func (d *Dataset) MarshalJSON() ([]byte, error) {
	flat := make(map[string]interface{}, len(d.Meta)+len(d.Columns)+8)
	for _, f := range d.Fields() {
		flat[f.Key] = f.Value
	}
	cols := d.DataCols
	if cols == nil {
		cols = []string{}
	}
	flat["data_cols"] = cols
	for _, c := range d.DataCols {
		if v, ok := d.Columns[c]; ok {
			flat[c] = v
		}
	}
	return json.Marshal(flat)
}

// UnmarshalJSON reads the flat object written by MarshalJSON. Every name in
// data_cols must have a numeric array.
func (d *Dataset) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*d = *New("", "")

	if v, ok := raw["data_cols"]; ok {
		if err := json.Unmarshal(v, &d.DataCols); err != nil {
			return fmt.Errorf("data_cols: %w", err)
		}
		delete(raw, "data_cols")
	}
	for _, c := range d.DataCols {
		v, ok := raw[c]
		if !ok {
			return fmt.Errorf("column %q listed in data_cols has no data", c)
		}
		var values []float64
		if err := json.Unmarshal(v, &values); err != nil {
			return fmt.Errorf("column %q: %w", c, err)
		}
		d.Columns[c] = values
		delete(raw, c)
	}

	for key, v := range raw {
		if err := d.unmarshalField(key, v); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}
	return nil
}

func (d *Dataset) unmarshalField(key string, v json.RawMessage) error {
	switch key {
	case "title":
		return json.Unmarshal(v, &d.Title)
	case "data_type":
		return json.Unmarshal(v, &d.DataType)
	case "tstamp":
		var t *float64
		if err := json.Unmarshal(v, &t); err != nil {
			return err
		}
		d.Tstamp = t
		return nil
	case "timestamp":
		return json.Unmarshal(v, &d.Timestamp)
	case "date":
		return json.Unmarshal(v, &d.Date)
	case "tspan":
		return json.Unmarshal(v, &d.Tspan)
	case "tspan_0":
		return json.Unmarshal(v, &d.Tspan0)
	case "tspan_1":
		return json.Unmarshal(v, &d.Tspan1)
	case "t_str":
		return json.Unmarshal(v, &d.TStr)
	case "pt_str":
		return json.Unmarshal(v, &d.PtStr)
	case "triggers":
		return json.Unmarshal(v, &d.Triggers)
	case "combining_number":
		return json.Unmarshal(v, &d.CombiningNumber)
	}

	var value interface{}
	if err := json.Unmarshal(v, &value); err != nil {
		return err
	}
	if IsProvenanceKey(key) {
		if p, ok := toProvenance(value); ok {
			value = p
		}
	}
	d.Meta[key] = value
	return nil
}

// toProvenance accepts a Provenance or a decoded JSON object whose keys are
// all combining numbers.
func toProvenance(v interface{}) (Provenance, bool) {
	switch t := v.(type) {
	case Provenance:
		return t, true
	case map[string]interface{}:
		p := make(Provenance, len(t))
		for k, val := range t {
			n, err := strconv.Atoi(k)
			if err != nil {
				return nil, false
			}
			p[n] = val
		}
		return p, true
	}
	return nil, false
}

// Decode reads one dataset from r.
func Decode(r io.Reader) (*Dataset, error) {
	d := &Dataset{}
	if err := json.NewDecoder(r).Decode(d); err != nil {
		return nil, err
	}
	return d, nil
}

// Encode writes d to w.
func Encode(w io.Writer, d *Dataset) error {
	return json.NewEncoder(w).Encode(d)
}
