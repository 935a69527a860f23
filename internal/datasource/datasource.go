// Package datasource reads dataset files from the configured locations:
// local directories and MinIO buckets.
package datasource

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/spectriclabs/ecms-sync/internal/cache"
	"github.com/spectriclabs/ecms-sync/internal/config"
	"github.com/spectriclabs/ecms-sync/internal/dataset"
	"go.uber.org/zap"
)

var (
	ErrUnknownLocation = errors.New("datasource: unknown location")
	ErrUnsupported     = errors.New("datasource: unsupported location type")
)

type File struct {
	Filename string `json:"filename"`
	Type     string `json:"type"`
}

type Source struct {
	Cfg    *config.Configuration
	Cache  *cache.Cache
	Logger *zap.Logger
}

func (s *Source) log() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

func (s *Source) location(name string) (config.Location, error) {
	loc, ok := s.Cfg.FindLocation(name)
	if !ok {
		return loc, fmt.Errorf("%s: %w", name, ErrUnknownLocation)
	}
	return loc, nil
}

// join keeps filePath inside root.
func join(root string, filePath string) string {
	return path.Join(root, path.Clean("/"+filePath))
}

// Open returns the contents of filePath in the named location.
func (s *Source) Open(ctx context.Context, locationName string, filePath string) (io.ReadCloser, error) {
	loc, err := s.location(locationName)
	if err != nil {
		return nil, err
	}
	switch loc.LocationType {
	case config.LocalFile:
		fullFilepath := join(loc.Path, filePath)
		s.log().Debug(
			"Reading local file",
			zap.String("location", locationName),
			zap.String("full_path", fullFilepath),
		)
		return os.Open(fullFilepath)
	case config.Minio:
		data, err := s.minioObject(ctx, loc, filePath)
		if err != nil {
			return nil, err
		}
		return ioutil.NopCloser(bytes.NewReader(data)), nil
	}
	return nil, fmt.Errorf("%s in %s: %w", loc.LocationType, loc.LocationName, ErrUnsupported)
}

func (s *Source) minioObject(ctx context.Context, loc config.Location, filePath string) ([]byte, error) {
	objectPath := strings.TrimPrefix(join(loc.Path, filePath), "/")
	cacheFileName := cache.FileName(fmt.Sprintf("%s/%s", loc.MinioBucket, objectPath))
	useCache := s.Cfg.UseCache && s.Cache != nil
	if useCache {
		if data, err := s.Cache.GetDataFromCache(cacheFileName, cache.MinioDir); err == nil {
			return data, nil
		}
		s.log().Debug("Minio file not in local file cache, need to fetch", zap.String("object", objectPath))
	}

	start := time.Now()
	minioClient, err := minio.New(
		loc.Location,
		&minio.Options{
			Creds:  credentials.NewStaticV4(loc.MinioAccessKey, loc.MinioSecretKey, ""),
			Secure: false,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to minio at %s: %w", loc.Location, err)
	}

	object, err := minioClient.GetObject(ctx, loc.MinioBucket, objectPath, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer object.Close()
	data, err := ioutil.ReadAll(object)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("%s/%s: %w", loc.MinioBucket, objectPath, os.ErrNotExist)
		}
		return nil, err
	}
	s.log().Info(
		"Fetched minio object",
		zap.String("bucket", loc.MinioBucket),
		zap.String("object", objectPath),
		zap.Int("bytes", len(data)),
		zap.Duration("elapsed", time.Since(start)),
	)

	if useCache {
		if err := s.Cache.PutItemInCache(cacheFileName, cache.MinioDir, data); err != nil {
			s.log().Warn("Error caching minio object", zap.String("object", objectPath), zap.Error(err))
		}
	}
	return data, nil
}

// Version identifies the current contents of a file in a local location by
// its modification time and size. Files in other locations have no version
// and report ok=false.
func (s *Source) Version(locationName string, filePath string) (string, bool, error) {
	loc, err := s.location(locationName)
	if err != nil {
		return "", false, err
	}
	if loc.LocationType != config.LocalFile {
		return "", false, nil
	}
	fi, err := os.Stat(join(loc.Path, filePath))
	if err != nil {
		return "", false, err
	}
	return fmt.Sprintf("%d-%d", fi.ModTime().UnixNano(), fi.Size()), true, nil
}

// LoadDataset reads one JSON dataset file.
func (s *Source) LoadDataset(ctx context.Context, locationName string, filePath string) (*dataset.Dataset, error) {
	r, err := s.Open(ctx, locationName, filePath)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	d, err := dataset.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decoding %s in %s: %w", filePath, locationName, err)
	}
	return d, nil
}

// List returns the entries of a directory in a local location, or the
// contents of filePath when it names a file.
func (s *Source) List(locationName string, filePath string) ([]File, bool, error) {
	loc, err := s.location(locationName)
	if err != nil {
		return nil, false, err
	}
	if loc.LocationType != config.LocalFile {
		return nil, false, fmt.Errorf("listing files is only supported for %s locations, %s provided: %w",
			config.LocalFile, loc.LocationType, ErrUnsupported)
	}
	fullPath := join(loc.Path, filePath)
	fi, err := os.Stat(fullPath)
	if err != nil {
		return nil, false, err
	}
	if fi.Mode().IsRegular() {
		return nil, true, nil
	}

	files, err := ioutil.ReadDir(fullPath)
	if err != nil {
		return nil, false, err
	}
	filelist := make([]File, len(files))
	for i, file := range files {
		filelist[i].Filename = file.Name()
		if file.IsDir() {
			filelist[i].Type = "directory"
		} else {
			filelist[i].Type = "file"
		}
	}
	return filelist, false, nil
}

// LoadFiles decodes local dataset files given by path, for the command line.
func LoadFiles(paths []string) ([]*dataset.Dataset, error) {
	datasets := make([]*dataset.Dataset, 0, len(paths))
	for _, p := range paths {
		f, err := os.Open(filepath.Clean(p))
		if err != nil {
			return nil, err
		}
		d, err := dataset.Decode(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("decoding %s: %w", p, err)
		}
		datasets = append(datasets, d)
	}
	return datasets, nil
}
