package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	// Prefix marks files owned by the cache; CheckCache removes nothing else.
	Prefix = "ecsync"

	MinioDir    = "miniocache"
	ResponseDir = "responses"
)

type Cache struct {
	Location string
	Logger   *zap.Logger
}

func (c *Cache) log() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

// FileName turns a cache key, such as a url with its query string, into a
// cached file name. Distinct keys get distinct names.
func FileName(key string) string {
	sum := sha256.Sum256([]byte(key))
	return Prefix + "_" + hex.EncodeToString(sum[:])
}

func (c *Cache) fullPath(cacheFileName string, subDir string) string {
	return filepath.Join(c.Location, subDir, cacheFileName)
}

// GetDataFromCache retrieves data from a provided `cacheFileName`
// within a `subDir` directory
func (c *Cache) GetDataFromCache(cacheFileName string, subDir string) ([]byte, error) {
	return ioutil.ReadFile(c.fullPath(cacheFileName, subDir))
}

// PutItemInCache places `data` into file denoted by `cacheFileName`
// within `subDir`
func (c *Cache) PutItemInCache(cacheFileName string, subDir string, data []byte) error {
	fullPath := c.fullPath(cacheFileName, subDir)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return err
	}
	if err := ioutil.WriteFile(fullPath, data, 0644); err != nil {
		return err
	}
	c.log().Debug("Stored item in cache", zap.String("file", fullPath), zap.Int("bytes", len(data)))
	return nil
}

// Purge removes the oldest cache file in cachePath when the directory holds
// more than maxBytes. It reports whether a file was removed.
func Purge(cachePath string, maxBytes int64, logger *zap.Logger) (bool, error) {
	files, err := ioutil.ReadDir(cachePath)
	if err != nil {
		return false, err
	}

	var currentBytes int64
	var oldestFile os.FileInfo
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		currentBytes += file.Size()
		if !strings.HasPrefix(file.Name(), Prefix) {
			continue
		}
		if oldestFile == nil || file.ModTime().Before(oldestFile.ModTime()) {
			oldestFile = file
		}
	}
	if currentBytes <= maxBytes {
		return false, nil
	}
	if oldestFile == nil {
		logger.Warn(
			"Cache over maximum but holds no cache files. Don't put other files in the cache dir",
			zap.String("cache_path", cachePath),
		)
		return false, nil
	}

	logger.Info(
		"Cache over maximum. Removing old file",
		zap.String("file", oldestFile.Name()),
		zap.Int64("cache_bytes", currentBytes),
	)
	if err := os.Remove(filepath.Join(cachePath, oldestFile.Name())); err != nil {
		return false, err
	}
	return true, nil
}

// CheckCache runs a check every `checkInterval` seconds
// and purges while the current cache size exceeds `maxBytes`.
// It returns when ctx is done.
func CheckCache(ctx context.Context, cachePath string, checkInterval int, maxBytes int64, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	nextRun := time.Now()
	for {
		if nextRun.Before(time.Now()) {
			removed, err := Purge(cachePath, maxBytes, logger)
			if err != nil {
				logger.Error("CheckCache error", zap.String("cache_path", cachePath), zap.Error(err))
			}
			if !removed {
				nextRun = nextRun.Add(time.Second * time.Duration(checkInterval))
			}
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(5 * time.Second):
		}
	}
}
