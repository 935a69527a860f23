package datasource

import (
	"context"
	"errors"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spectriclabs/ecms-sync/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const caJSON = `{"title": "CA 01", "data_type": "EC", "tstamp": 1000,
	"data_cols": ["time/s", "Ewe/V"], "time/s": [0, 1], "Ewe/V": [0.1, 0.2]}`

func testSource(t *testing.T) (*Source, string) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "ec"), 0755))
	require.NoError(t, ioutil.WriteFile(filepath.Join(dir, "ec", "ca.json"), []byte(caJSON), 0644))
	require.NoError(t, ioutil.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))

	cfg := &config.Configuration{LocationDetails: []config.Location{
		{LocationName: "lab", LocationType: config.LocalFile, Path: dir},
		{LocationName: "tape", LocationType: "tape"},
		{LocationName: "archive", LocationType: config.Minio, MinioBucket: "ecms"},
	}}
	return &Source{Cfg: cfg}, dir
}

func TestLoadDataset(t *testing.T) {
	s, _ := testSource(t)
	d, err := s.LoadDataset(context.Background(), "lab", "ec/ca.json")
	require.NoError(t, err)
	assert.Equal(t, "CA 01", d.Title)
	assert.Equal(t, []float64{0.1, 0.2}, d.Columns["Ewe/V"])

	// paths cannot climb out of the location
	d, err = s.LoadDataset(context.Background(), "lab", "../../ec/ca.json")
	require.NoError(t, err)
	assert.Equal(t, "CA 01", d.Title)

	_, err = s.LoadDataset(context.Background(), "lab", "notes.txt")
	assert.Error(t, err)

	_, err = s.LoadDataset(context.Background(), "lab", "ec/missing.json")
	assert.True(t, errors.Is(err, os.ErrNotExist))

	_, err = s.LoadDataset(context.Background(), "home", "ca.json")
	assert.ErrorIs(t, err, ErrUnknownLocation)

	_, err = s.LoadDataset(context.Background(), "tape", "ca.json")
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestList(t *testing.T) {
	s, _ := testSource(t)
	files, isFile, err := s.List("lab", "")
	require.NoError(t, err)
	assert.False(t, isFile)
	assert.Equal(t, []File{{"ec", "directory"}, {"notes.txt", "file"}}, files)

	_, isFile, err = s.List("lab", "ec/ca.json")
	require.NoError(t, err)
	assert.True(t, isFile)

	_, _, err = s.List("archive", "")
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestVersion(t *testing.T) {
	s, dir := testSource(t)
	v1, ok, err := s.Version("lab", "ec/ca.json")
	require.NoError(t, err)
	assert.True(t, ok)

	later := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "ec", "ca.json"), later, later))
	v2, _, err := s.Version("lab", "ec/ca.json")
	require.NoError(t, err)
	assert.NotEqual(t, v1, v2)

	_, ok, err = s.Version("archive", "ec/ca.json")
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = s.Version("lab", "ec/missing.json")
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestLoadFiles(t *testing.T) {
	_, dir := testSource(t)
	datasets, err := LoadFiles([]string{filepath.Join(dir, "ec", "ca.json")})
	require.NoError(t, err)
	require.Len(t, datasets, 1)
	assert.Equal(t, "EC", datasets[0].DataType)

	_, err = LoadFiles([]string{filepath.Join(dir, "notes.txt")})
	assert.Error(t, err)
}
