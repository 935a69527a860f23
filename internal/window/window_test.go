package window

import (
	"testing"

	"github.com/spectriclabs/ecms-sync/internal/confirm"
	"github.com/spectriclabs/ecms-sync/internal/dataset"
	"github.com/spectriclabs/ecms-sync/internal/taxonomy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ecmsDataset() *dataset.Dataset {
	d := dataset.New("ecms", dataset.TypeEC)
	d.SetTstamp(1000)
	d.SetCol("time/s", []float64{0, 1, 2, 3, 4, 5})
	d.SetCol("Ewe/V", []float64{10, 11, 12, 13, 14, 15})
	d.SetCol("M32-x", []float64{0.5, 2.5, 4.5})
	d.SetCol("M32-y", []float64{1e-9, 2e-9, 3e-9})
	return d
}

func TestMask(t *testing.T) {
	assert.Equal(
		t,
		[]bool{false, false, true, true, false},
		Mask([]float64{0, 1, 2, 3, 4}, 1, 4),
	)
}

func TestCut(t *testing.T) {
	x := []float64{0, 1, 2, 3, 4}
	y := []float64{5, 6, 7, 8, 9}

	cx, cy, mask, err := Cut(x, y, nil, Options{})
	require.NoError(t, err)
	assert.Equal(t, x, cx)
	assert.Equal(t, y, cy)
	assert.Nil(t, mask)

	cx, cy, _, err = Cut(x, y, &dataset.Span{0.5, 3}, Options{})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, cx)
	assert.Equal(t, []float64{6, 7}, cy)
}

func TestCutLengthMismatch(t *testing.T) {
	x := []float64{0, 1, 2, 3, 4}
	y := []float64{5, 6, 7}

	cx, cy, mask, err := Cut(x, y, &dataset.Span{0.5, 10}, Options{})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, cx)
	assert.Equal(t, []float64{6, 7}, cy)
	assert.Len(t, mask, 3)

	cx, cy, _, err = Cut(y, x, &dataset.Span{5.5, 10}, Options{})
	require.NoError(t, err)
	assert.Equal(t, []float64{6, 7}, cx)
	assert.Equal(t, []float64{1, 2}, cy)
}

func TestCutEmptyResult(t *testing.T) {
	x := []float64{0, 1, 2}
	y := []float64{0, 1, 2}
	w := &dataset.Span{10, 20}

	_, _, _, err := Cut(x, y, w, Options{})
	assert.ErrorIs(t, err, confirm.ErrAborted)

	cx, _, _, err := Cut(x, y, w, Options{Confirm: confirm.Continue})
	require.NoError(t, err)
	assert.Empty(t, cx)

	cx, _, _, err = Cut(x, y, w, Options{Override: true})
	require.NoError(t, err)
	assert.Empty(t, cx)

	_, _, _, err = Cut(nil, nil, w, Options{})
	assert.ErrorIs(t, err, confirm.ErrAborted)
}

func TestCutDataset(t *testing.T) {
	d := ecmsDataset()
	w := &dataset.Span{1.5, 4.8}

	cut := CutDataset(d, w, NoShift, Options{})
	assert.Equal(t, []float64{2, 3, 4}, cut.Columns["time/s"])
	assert.Equal(t, []float64{12, 13, 14}, cut.Columns["Ewe/V"])
	assert.Equal(t, []float64{2.5, 4.5}, cut.Columns["M32-x"])
	assert.Equal(t, []float64{2e-9, 3e-9}, cut.Columns["M32-y"])
	assert.Equal(t, dataset.Span{1.5, 4.8}, *cut.Tspan)

	// the input is untouched
	assert.Len(t, d.Columns["time/s"], 6)
	assert.Nil(t, d.Tspan)
}

func TestCutDatasetNilWindow(t *testing.T) {
	d := ecmsDataset()
	cut := CutDataset(d, nil, StartOfWindow, Options{})
	assert.Equal(t, d, cut)
	assert.NotSame(t, d, cut)
}

func TestCutDatasetIdempotent(t *testing.T) {
	w := &dataset.Span{0.5, 4.2}
	once := CutDataset(ecmsDataset(), w, NoShift, Options{})
	twice := CutDataset(once, w, NoShift, Options{})
	assert.Equal(t, once, twice)
}

func TestCutDatasetRezero(t *testing.T) {
	cut := CutDataset(ecmsDataset(), &dataset.Span{1.5, 4.8}, StartOfWindow, Options{})
	assert.InDeltaSlice(t, []float64{0.5, 1.5, 2.5}, cut.Columns["time/s"], 1e-12)
	assert.InDeltaSlice(t, []float64{1, 3}, cut.Columns["M32-x"], 1e-12)
	assert.Equal(t, []float64{12, 13, 14}, cut.Columns["Ewe/V"])
	assert.InDelta(t, 0.0, cut.Tspan[0], 1e-12)
	assert.InDelta(t, 3.3, cut.Tspan[1], 1e-12)

	cut = CutDataset(ecmsDataset(), &dataset.Span{1.5, 4.8}, At(2), Options{})
	assert.Equal(t, []float64{0, 1, 2}, cut.Columns["time/s"])
}

func TestCutDatasetDropsOrphans(t *testing.T) {
	d := ecmsDataset()
	d.SetCol("M44-y", []float64{1, 2, 3})
	d.SetCol("I/mA", []float64{1, 2})

	cut := CutDataset(d, &dataset.Span{-1, 10}, NoShift, Options{})
	assert.False(t, cut.HasCol("M44-y"))
	assert.False(t, cut.HasCol("I/mA"))
	assert.True(t, cut.HasCol("M32-y"))
	assert.True(t, d.HasCol("M44-y"))
}

func TestTimeshift(t *testing.T) {
	d := ecmsDataset()
	d.Tspan = &dataset.Span{1, 4}
	Timeshift(d, StartOfWindow)
	assert.Equal(t, []float64{-1, 0, 1, 2, 3, 4}, d.Columns["time/s"])
	assert.Equal(t, []float64{10, 11, 12, 13, 14, 15}, d.Columns["Ewe/V"])
	assert.Equal(t, dataset.Span{0, 3}, *d.Tspan)

	Timeshift(d, NoShift)
	assert.Equal(t, dataset.Span{0, 3}, *d.Tspan)
}

func TestSortTime(t *testing.T) {
	d := dataset.New("ec", dataset.TypeEC)
	d.SetCol("time/s", []float64{2, 0, 1})
	d.SetCol("Ewe/V", []float64{20, 0, 10})
	d.SetCol("I/mA", []float64{1, 2})
	d.SetCol("M32-x", []float64{3, 1})
	d.SetCol("M32-y", []float64{30, 10})

	SortTime(d, nil)
	assert.Equal(t, []float64{0, 1, 2}, d.Columns["time/s"])
	assert.Equal(t, []float64{0, 10, 20}, d.Columns["Ewe/V"])
	assert.False(t, d.HasCol("I/mA"))
	assert.Equal(t, []float64{30, 10}, d.Columns["M32-y"])
	assert.Equal(t, "Time-Sorted\n", d.Meta["NOTES"])

	SortTime(d, nil, taxonomy.EC, taxonomy.MS)
	assert.Equal(t, []float64{10, 30}, d.Columns["M32-y"])
	assert.Equal(t, "Time-Sorted\n\nTime-Sorted\n", d.Meta["NOTES"])
	assert.Equal(t, []string{"time/s", "Ewe/V", "M32-x", "M32-y"}, d.DataCols)
}
