package config

import (
	"fmt"

	"github.com/spectriclabs/ecms-sync/internal/synchronize"
	"github.com/spectriclabs/ecms-sync/internal/timeutil"
)

const (
	LocalFile = "localFile"
	Minio     = "minio"
)

type Location struct {
	LocationName   string `mapstructure:"location_name" json:"location_name"`
	LocationType   string `mapstructure:"location_type" json:"location_type"`
	Path           string `mapstructure:"path" json:"path,omitempty"`
	MinioBucket    string `mapstructure:"minio_bucket" json:"minio_bucket,omitempty"`
	Location       string `mapstructure:"location" json:"location,omitempty"`
	MinioAccessKey string `mapstructure:"minio_access_key" json:"-"`
	MinioSecretKey string `mapstructure:"minio_secret_key" json:"-"`
}

// Configuration Struct for Configuraion File
type Configuration struct {
	Host            string     `mapstructure:"host"`
	Port            int        `mapstructure:"port"`
	Debug           bool       `mapstructure:"debug"`
	UseCache        bool       `mapstructure:"use_cache"`
	CacheLocation   string     `mapstructure:"cache_location"`
	CacheMaxBytes   int64      `mapstructure:"cache_max_bytes"`
	CheckCacheEvery int        `mapstructure:"check_cache_every"`
	Timezone        string     `mapstructure:"timezone"`
	MissingTstamp   string     `mapstructure:"missing_tstamp"`
	CutBuffer       float64    `mapstructure:"cut_buffer"`
	FileNumberType  string     `mapstructure:"file_number_type"`
	MoleculeDir     string     `mapstructure:"molecule_dir"`
	LocationDetails []Location `mapstructure:"location_details"`
}

// FindLocation returns the configured location called name.
func (c *Configuration) FindLocation(name string) (Location, bool) {
	for _, loc := range c.LocationDetails {
		if loc.LocationName == name {
			return loc, true
		}
	}
	return Location{}, false
}

// SyncDefaults turns the configured defaults into synchronize options.
// Request-specific fields are left for the caller.
func (c *Configuration) SyncDefaults() (synchronize.Options, error) {
	opts := synchronize.Options{FileNumberType: c.FileNumberType}

	loc, err := timeutil.ParseLocation(c.Timezone)
	if err != nil {
		return opts, fmt.Errorf("timezone: %w", err)
	}
	opts.Location = loc

	policy, err := synchronize.ParseMissingTstamp(c.MissingTstamp)
	if err != nil {
		return opts, err
	}
	opts.MissingTstamp = policy

	if c.CutBuffer > 0 {
		opts.CutBuffer = synchronize.Float(c.CutBuffer)
	}
	return opts, nil
}
