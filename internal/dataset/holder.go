package dataset

// Holder is anything that carries a dataset, such as an imaging session
// object wrapping its synchronized data. *Dataset is itself a Holder.
type Holder interface {
	Data() *Dataset
}

// Updater is a Holder whose dataset can be replaced, e.g. by the result of
// a synchronization.
type Updater interface {
	Holder
	SetData(*Dataset)
}

// Session is a minimal Updater, used when a caller wants the combined data
// written back onto its own object.
type Session struct {
	Name    string
	Dataset *Dataset
}

func (s *Session) Data() *Dataset {
	return s.Dataset
}

func (s *Session) SetData(d *Dataset) {
	s.Dataset = d
}

// Holders wraps raw datasets for functions taking Holders.
func Holders(datasets ...*Dataset) []Holder {
	h := make([]Holder, len(datasets))
	for i, d := range datasets {
		h[i] = d
	}
	return h
}
