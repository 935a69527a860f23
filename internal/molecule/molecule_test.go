package molecule

import (
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore(t *testing.T) {
	s := &FileStore{Dir: filepath.Join(t.TempDir(), "molecules")}

	names, err := s.List()
	require.NoError(t, err)
	assert.Empty(t, names)

	co2 := &Molecule{Name: "CO2", Formula: "CO2", M: 44.01, Spectrum: map[string]float64{"M44": 1, "M28": 0.1}}
	co2.AddCalibration(Calibration{Title: "2017-01-12_sniff", Mass: "M44", FCal: 0.35}, true)
	require.NoError(t, s.Put(co2))
	require.NoError(t, s.Put(&Molecule{Name: "H2", M: 2.016}))

	names, err = s.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"CO2", "H2"}, names)

	got, err := s.Get("CO2")
	require.NoError(t, err)
	assert.Equal(t, co2, got)
	assert.Equal(t, "M44", got.Primary)

	h2, err := s.Get("H2")
	require.NoError(t, err)
	assert.Equal(t, "H2", h2.Formula)

	_, err = s.Get("O2")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Get("../etc/passwd")
	assert.Error(t, err)
}

func TestGetHandWritten(t *testing.T) {
	dir := t.TempDir()
	body := []byte("formula: CO\nM: 28.01\nprimary: M28\nF_cal: 0.9\n" +
		"calibrations:\n  - title: a\n    mass: M28\n    F_cal: 0.8\n  - title: b\n    mass: M12\n    F_cal: 0.05\n")
	require.NoError(t, ioutil.WriteFile(filepath.Join(dir, "CO.yml"), body, 0644))

	m, err := (&FileStore{Dir: dir}).Get("CO")
	require.NoError(t, err)
	assert.Equal(t, "CO", m.Name)
	assert.Len(t, m.Calibrations, 2)

	expected := []struct {
		Mass string
		FCal float64
		OK   bool
	}{
		{"M28", 0.8, true},
		{"M12", 0.05, true},
		{"M44", 0, false},
	}
	for _, exp := range expected {
		f, ok := m.Cal(exp.Mass)
		assert.Equal(t, exp.OK, ok, exp.Mass)
		assert.Equal(t, exp.FCal, f, exp.Mass)
	}

	m.Calibrations = nil
	f, ok := m.Cal("M28")
	assert.True(t, ok)
	assert.Equal(t, 0.9, f)
}
