package synchronize

import (
	"testing"
	"time"

	"github.com/spectriclabs/ecms-sync/internal/confirm"
	"github.com/spectriclabs/ecms-sync/internal/dataset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seq(from float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = from + float64(i)
	}
	return out
}

func ecData(title string, tstamp float64, n int) *dataset.Dataset {
	d := dataset.New(title, dataset.TypeEC)
	d.SetTstamp(tstamp)
	d.SetCol("time/s", seq(0, n))
	d.SetCol("Ewe/V", seq(10, n))
	return d
}

func msData(title string, tstamp float64, n int) *dataset.Dataset {
	d := dataset.New(title, dataset.TypeMS)
	d.SetTstamp(tstamp)
	d.SetCol("M32-x", seq(0, n))
	d.SetCol("M32-y", seq(100, n))
	return d
}

func TestTwoECAppend(t *testing.T) {
	a := ecData("A", 100, 5)
	b := ecData("B", 102, 3)

	combined, err := Synchronize(dataset.Holders(b, a), Options{})
	require.NoError(t, err)

	// B was given first, but A started recording first
	assert.Equal(t, []float64{-2, -1, 0, 1, 2, 0, 1, 2}, combined.Columns["time/s"])
	assert.Equal(t, []float64{10, 11, 12, 13, 14, 10, 11, 12}, combined.Columns["Ewe/V"])
	assert.Equal(t, []float64{0, 0, 0, 0, 0, 1, 1, 1}, combined.Columns["file number"])
	assert.Equal(t, []string{"time/s", "Ewe/V", "file number"}, combined.DataCols)

	assert.Equal(t, dataset.TypeCombined, combined.DataType)
	assert.Equal(t, "(B) as 0, and (A) as 1", combined.Title)
	assert.Equal(t, 102.0, *combined.Tstamp)
	assert.Equal(t, dataset.Span{102, 104}, *combined.Tspan0)
	assert.Equal(t, dataset.Span{0, 2}, *combined.Tspan)
	assert.Equal(t, dataset.Span{2, 4}, *combined.Tspan1)
	assert.Equal(t, -2.0, combined.Meta["first"])
	assert.Equal(t, 0.0, combined.Meta["last"])
	assert.Equal(t, "time/s", combined.TStr)

	assert.Equal(t, 1, *a.CombiningNumber)
	assert.Equal(t, 0, *b.CombiningNumber)
	assert.Equal(t, []float64{0, 1, 2, 3, 4}, a.Columns["time/s"])
}

func TestAppendZeroFillsMissingColumn(t *testing.T) {
	full := ecData("full", 100, 5)
	full.SetCol("I/mA", []float64{1, 2, 3, 4, 5})
	partial := ecData("ocv", 200, 3)

	combined, err := Synchronize(dataset.Holders(full, partial), Options{})
	require.NoError(t, err)
	assert.Len(t, combined.Columns["time/s"], 8)
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 0, 0, 0}, combined.Columns["I/mA"])

	// and the other way around, zero-filling before appending
	partial = ecData("ocv", 100, 3)
	full = ecData("full", 200, 5)
	full.SetCol("I/mA", []float64{1, 2, 3, 4, 5})
	combined, err = Synchronize(dataset.Holders(partial, full), Options{})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0, 1, 2, 3, 4, 5}, combined.Columns["I/mA"])
}

func TestAppendLengthInvariant(t *testing.T) {
	a := ecData("a", 0, 4)
	a.SetCol("I/mA", seq(0, 4))
	b := ecData("b", 10, 6)
	b.SetCol("cycle number", seq(0, 6))
	c := ecData("c", 20, 2)
	c.SetCol("I/mA", seq(0, 2))
	ms := msData("ms", 0, 30)

	combined, err := Synchronize(dataset.Holders(a, b, c, ms), Options{Append: Bool(true)})
	require.NoError(t, err)
	for _, col := range []string{"time/s", "Ewe/V", "I/mA", "cycle number", "file number"} {
		assert.Len(t, combined.Columns[col], 12, col)
	}
	assert.Len(t, combined.Columns["M32-y"], 30)
	// ms sorts second, so the EC ordinals skip 1
	assert.Equal(t, []float64{0, 0, 0, 0, 2, 2, 2, 2, 2, 2, 3, 3}, combined.Columns["file number"])
}

func TestSeparateOverlapAndOffset(t *testing.T) {
	ec := ecData("ec", 100, 11)
	ms := msData("ms", 105, 11)

	combined, err := Synchronize(dataset.Holders(ec, ms), Options{})
	require.NoError(t, err)

	assert.Equal(t, dataset.Span{105, 110}, *combined.Tspan0)
	assert.Equal(t, 105.0, *combined.Tstamp)
	assert.Equal(t, seq(-5, 11), combined.Columns["time/s"])
	assert.Equal(t, seq(0, 11), combined.Columns["M32-x"])
	assert.Equal(t, seq(100, 11), combined.Columns["M32-y"])
	_, ok := combined.Columns["file number"]
	assert.False(t, ok)
}

func TestSeparateRenamesWholeGroup(t *testing.T) {
	a := ecData("a", 100, 3)
	b := ecData("b", 90, 3)
	b.SetCol("M32-x", seq(0, 3))
	b.SetCol("M32-y", seq(0, 3))

	combined, err := Synchronize(dataset.Holders(a, b), Options{
		Append:   Bool(false),
		Override: Bool(true),
	})
	require.NoError(t, err)

	// b records first, so a's group collides and takes a's combining number
	assert.Equal(t, []string{"time/s", "Ewe/V", "M32-x", "M32-y", "time/s_0", "Ewe/V_0"}, combined.DataCols)
	assert.Equal(t, seq(-10, 3), combined.Columns["time/s"])
	assert.Equal(t, seq(0, 3), combined.Columns["time/s_0"])
}

func TestSeparateXrayScansKeepTheirLengths(t *testing.T) {
	xray := func(title string, tstamp float64, n int, from float64) *dataset.Dataset {
		d := dataset.New(title, dataset.TypeXray)
		d.SetTstamp(tstamp)
		d.SetCol("t", seq(0, n))
		d.SetCol("I0", seq(from, n))
		return d
	}
	ec := ecData("ec", 100, 20)
	long := xray("long", 100, 6, 10)
	short := xray("short", 101, 3, 1)

	combined, err := Synchronize(dataset.Holders(ec, long, short), Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"time/s", "Ewe/V", "t", "I0", "t_2", "I0_2"}, combined.DataCols)
	assert.Equal(t, seq(-1, 6), combined.Columns["t"])
	assert.Equal(t, seq(10, 6), combined.Columns["I0"])
	assert.Equal(t, []float64{0, 1, 2}, combined.Columns["t_2"])
	assert.Equal(t, []float64{1, 2, 3}, combined.Columns["I0_2"])
}

func TestTimeZeroPolicies(t *testing.T) {
	expected := []struct {
		Zero   TimeZero
		Tstamp float64
	}{
		{Zero: Start, Tstamp: 105},
		{Zero: First, Tstamp: 100},
		{Zero: Last, Tstamp: 105},
		{Zero: Finish, Tstamp: 110},
		{Zero: At(50), Tstamp: 50},
	}

	for _, exp := range expected {
		combined, err := Synchronize(
			dataset.Holders(ecData("ec", 100, 11), msData("ms", 105, 11)),
			Options{TimeZero: exp.Zero},
		)
		require.NoError(t, err)
		if *combined.Tstamp != exp.Tstamp {
			t.Errorf("time zero %s gave tstamp %f instead of %f", exp.Zero, *combined.Tstamp, exp.Tstamp)
		}
		assert.Equal(t, 100-exp.Tstamp, combined.Columns["time/s"][0])
	}
}

func TestParseTimeZero(t *testing.T) {
	z, err := ParseTimeZero("first")
	require.NoError(t, err)
	assert.Equal(t, First, z)
	z, err = ParseTimeZero("1500000000.5")
	require.NoError(t, err)
	assert.Equal(t, At(1500000000.5), z)
	_, err = ParseTimeZero("soon")
	assert.Error(t, err)
}

func TestSingleInputShortcut(t *testing.T) {
	d := ecData("only", 100, 5)
	before := d.Copy()

	combined, err := Synchronize(dataset.Holders(d), Options{TimeZero: First})
	require.NoError(t, err)
	assert.Same(t, d, combined)
	assert.Equal(t, 100.0, *combined.Tstamp)
	require.NotNil(t, d.CombiningNumber)
	assert.Equal(t, 0, *d.CombiningNumber)

	d.CombiningNumber = nil
	assert.Equal(t, before, d)

	// empty companions don't count
	empty := dataset.New("empty", dataset.TypeMS)
	combined, err = Synchronize(dataset.Holders(empty, d), Options{})
	require.NoError(t, err)
	assert.Same(t, d, combined)
}

func TestNoData(t *testing.T) {
	combined, err := Synchronize(dataset.Holders(dataset.New("a", dataset.TypeEC)), Options{})
	require.NoError(t, err)
	assert.True(t, combined.IsEmpty())
	assert.Nil(t, combined.Tspan)
	assert.Nil(t, combined.Tstamp)

	noTime := dataset.New("b", dataset.TypeEC)
	noTime.SetTstamp(0)
	noTime.SetCol("time/s", []float64{})
	combined, err = Synchronize(dataset.Holders(noTime, nil), Options{})
	require.NoError(t, err)
	assert.True(t, combined.IsEmpty())
}

func TestNoOverlap(t *testing.T) {
	sources := func() []dataset.Holder {
		return dataset.Holders(ecData("ec", 100, 5), msData("ms", 1000, 5))
	}

	_, err := Synchronize(sources(), Options{})
	assert.ErrorIs(t, err, confirm.ErrAborted)

	asked := ""
	combined, err := Synchronize(sources(), Options{Confirm: func(reason string) bool {
		asked = reason
		return true
	}})
	require.NoError(t, err)
	assert.Contains(t, asked, "No overlap")
	assert.Equal(t, dataset.Span{1000, 104}, *combined.Tspan0)

	_, err = Synchronize(sources(), Options{Override: Bool(true)})
	assert.NoError(t, err)

	// appending implies override
	_, err = Synchronize(dataset.Holders(ecData("a", 100, 5), ecData("b", 1000, 5)), Options{})
	assert.NoError(t, err)
}

func TestCutToOverlap(t *testing.T) {
	ec := ecData("ec", 100, 11)
	ms := msData("ms", 105, 11)

	combined, err := Synchronize(dataset.Holders(ec, ms), Options{Cut: true, CutBuffer: Float(0)})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3, 4}, combined.Columns["time/s"])
	assert.Equal(t, []float64{16, 17, 18, 19}, combined.Columns["Ewe/V"])
	assert.Equal(t, []float64{1, 2, 3, 4}, combined.Columns["M32-x"])

	combined, err = Synchronize(dataset.Holders(ecData("ec", 100, 11), msData("ms", 105, 11)), Options{Cut: true, CutBuffer: Float(2)})
	require.NoError(t, err)
	assert.Equal(t, seq(-1, 7), combined.Columns["time/s"])
}

func TestFileNumberCountsAfterCut(t *testing.T) {
	a := ecData("a", 100, 10)
	b := ecData("b", 105, 10)

	combined, err := Synchronize(dataset.Holders(a, b), Options{Cut: true, CutBuffer: Float(0)})
	require.NoError(t, err)
	assert.Len(t, combined.Columns["time/s"], 6)
	assert.Len(t, combined.Columns["file number"], 6)
}

func TestOrphanColumnsDropped(t *testing.T) {
	ms := msData("ms", 100, 5)
	ms.SetCol("M44-y", seq(0, 5))
	ec := ecData("ec", 100, 5)

	combined, err := Synchronize(dataset.Holders(ec, ms), Options{})
	require.NoError(t, err)
	assert.False(t, combined.HasCol("M44-y"))
	assert.True(t, ms.HasCol("M44-y"))
}

func TestMetadataMerge(t *testing.T) {
	a := ecData("a", 100, 3)
	a.Meta["notes"] = "from a"
	a.Meta["_flag"] = "nested a"
	a.Meta["flag"] = "plain a"
	b := ecData("b", 101, 3)
	b.Meta["notes"] = "from b"
	b.Meta["tspan"] = "should not win"

	combined, err := Synchronize(dataset.Holders(a, b), Options{})
	require.NoError(t, err)

	// top level: last seen in recording order
	assert.Equal(t, "from b", combined.Meta["notes"])
	assert.Equal(t, "plain a", combined.Meta["flag"])
	notes, ok := combined.Provenance("_notes", false)
	require.True(t, ok)
	assert.Equal(t, dataset.Provenance{0: "from a", 1: "from b"}, notes)

	// the explicitly nested value claims _flag[0] first
	flag, ok := combined.Provenance("_flag", false)
	require.True(t, ok)
	assert.Equal(t, dataset.Provenance{0: "nested a"}, flag)

	// reserved keys keep the combined values but are still nested
	assert.Equal(t, dataset.Span{0, 1}, *combined.Tspan)
	titles, _ := combined.Provenance("_title", false)
	assert.Equal(t, dataset.Provenance{0: "a", 1: "b"}, titles)
	tstamps, _ := combined.Provenance("_tstamp", false)
	assert.Equal(t, dataset.Provenance{0: 100.0, 1: 101.0}, tstamps)
}

func TestUpdateWritesBackToWrappers(t *testing.T) {
	session := &dataset.Session{Name: "scan", Dataset: msData("ms", 100, 5)}
	raw := ecData("ec", 100, 5)

	combined, err := Synchronize([]dataset.Holder{session, raw}, Options{Update: true})
	require.NoError(t, err)
	assert.Same(t, combined, session.Dataset)
	assert.Equal(t, "ec", raw.Title)

	session.Dataset = msData("ms", 100, 5)
	_, err = Synchronize([]dataset.Holder{session, ecData("ec", 100, 5)}, Options{})
	require.NoError(t, err)
	assert.Equal(t, "ms", session.Dataset.Title)
}

func TestMissingTstamp(t *testing.T) {
	build := func() *dataset.Dataset {
		d := msData("ms", 0, 5)
		d.Tstamp = nil
		d.Date = "2020-01-02"
		d.Timestamp = "00:00:10"
		return d
	}
	ref := time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC).Unix()

	_, err := Synchronize(dataset.Holders(ecData("ec", 0, 5), build()), Options{MissingTstamp: MissingTstampError})
	assert.ErrorIs(t, err, ErrMissingTstamp)

	combined, err := Synchronize(
		dataset.Holders(ecData("ec", float64(ref), 20), build()),
		Options{Location: time.UTC},
	)
	require.NoError(t, err)
	assert.Equal(t, float64(ref)+10, *combined.Tstamp)
	assert.Equal(t, "00:00:10", combined.Timestamp)

	noClock := build()
	noClock.Timestamp = ""
	_, err = Synchronize(dataset.Holders(ecData("ec", 0, 5), noClock), Options{})
	assert.ErrorIs(t, err, ErrMissingTstamp)
}

func TestParseMissingTstamp(t *testing.T) {
	p, err := ParseMissingTstamp("")
	require.NoError(t, err)
	assert.Equal(t, MissingTstampUTC, p)
	p, err = ParseMissingTstamp("Local")
	require.NoError(t, err)
	assert.Equal(t, MissingTstampLocal, p)
	_, err = ParseMissingTstamp("guess")
	assert.Error(t, err)
}
