package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/spectriclabs/ecms-sync/internal/cache"
	"github.com/spectriclabs/ecms-sync/internal/confirm"
	"github.com/spectriclabs/ecms-sync/internal/dataset"
	"github.com/spectriclabs/ecms-sync/internal/synchronize"
	"github.com/spectriclabs/ecms-sync/internal/timeutil"
	"github.com/spectriclabs/ecms-sync/internal/window"
	"go.uber.org/zap"
)

var errNoDataset = errors.New("request carries no dataset")

type SourceRef struct {
	Location string `json:"location"`
	Path     string `json:"path"`
}

type SyncOptions struct {
	TimeZero       string   `json:"t_zero,omitempty"`
	Append         *bool    `json:"append,omitempty"`
	Cut            bool     `json:"cut,omitempty"`
	CutBuffer      *float64 `json:"cut_buffer,omitempty"`
	Override       *bool    `json:"override,omitempty"`
	FileNumberType string   `json:"file_number_type,omitempty"`
	MissingTstamp  string   `json:"missing_tstamp,omitempty"`
	Timezone       string   `json:"timezone,omitempty"`
}

type SyncRequest struct {
	Datasets []*dataset.Dataset `json:"datasets"`
	Sources  []SourceRef        `json:"sources"`
	Options  SyncOptions        `json:"options"`
}

// options layers the request options over the configured defaults.
func (a *API) options(o SyncOptions) (synchronize.Options, error) {
	opts, err := a.Cfg.SyncDefaults()
	if err != nil {
		return opts, err
	}
	if opts.TimeZero, err = synchronize.ParseTimeZero(o.TimeZero); err != nil {
		return opts, err
	}
	opts.Append = o.Append
	opts.Cut = o.Cut
	if o.CutBuffer != nil {
		opts.CutBuffer = o.CutBuffer
	}
	opts.Override = o.Override
	if o.FileNumberType != "" {
		opts.FileNumberType = o.FileNumberType
	}
	if o.MissingTstamp != "" {
		if opts.MissingTstamp, err = synchronize.ParseMissingTstamp(o.MissingTstamp); err != nil {
			return opts, err
		}
	}
	if o.Timezone != "" {
		if opts.Location, err = timeutil.ParseLocation(o.Timezone); err != nil {
			return opts, err
		}
	}
	opts.Confirm = confirm.Abort
	opts.Logger = a.Logger
	return opts, nil
}

// cacheKey names the cached response of a request that only refers to
// stored datasets. Requests with inline datasets are not cached. Local
// files enter the key with their version, so edited files miss the cache.
func (a *API) cacheKey(req *SyncRequest) (string, bool) {
	if !a.Cfg.UseCache || len(req.Datasets) > 0 || len(req.Sources) == 0 {
		return "", false
	}
	versions := make([]string, len(req.Sources))
	for i, src := range req.Sources {
		v, _, err := a.Source.Version(src.Location, src.Path)
		if err != nil {
			return "", false
		}
		versions[i] = v
	}
	key, err := json.Marshal(struct {
		Sources  []SourceRef
		Versions []string
		Options  SyncOptions
	}{req.Sources, versions, req.Options})
	if err != nil {
		return "", false
	}
	return cache.FileName("synchronize?" + string(key)), true
}

// PostSynchronize combines the posted and referenced datasets into one.
func (a *API) PostSynchronize(c echo.Context) error {
	req := &SyncRequest{}
	if err := c.Bind(req); err != nil {
		return a.fail(c, err)
	}

	key, cached := a.cacheKey(req)
	if cached {
		if body, err := a.Cache.GetDataFromCache(key, cache.ResponseDir); err == nil {
			a.Logger.Debug("Serving synchronize response from cache", zap.String("cache_file", key))
			return c.JSONBlob(http.StatusOK, body)
		}
	}

	opts, err := a.options(req.Options)
	if err != nil {
		return a.fail(c, err)
	}

	datasets := make([]*dataset.Dataset, 0, len(req.Datasets)+len(req.Sources))
	for _, d := range req.Datasets {
		if d != nil {
			datasets = append(datasets, d)
		}
	}
	for _, src := range req.Sources {
		d, err := a.Source.LoadDataset(c.Request().Context(), src.Location, src.Path)
		if err != nil {
			return a.fail(c, err)
		}
		datasets = append(datasets, d)
	}

	combined, err := synchronize.Synchronize(dataset.Holders(datasets...), opts)
	if err != nil {
		return a.fail(c, err)
	}

	body, err := encode(combined, combined)
	if err != nil {
		return c.String(http.StatusInternalServerError, err.Error())
	}
	if cached {
		if err := a.Cache.PutItemInCache(key, cache.ResponseDir, body); err != nil {
			a.Logger.Warn("Error caching synchronize response", zap.Error(err))
		}
	}
	return c.JSONBlob(http.StatusOK, body)
}

type CutRequest struct {
	Dataset  *dataset.Dataset `json:"dataset"`
	Tspan    *dataset.Span    `json:"tspan"`
	TimeZero string           `json:"t_zero"`
}

// parseZero reads "" (no shift), "start" (start of the window) or a time.
func parseZero(s string) (window.Zero, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return window.NoShift, nil
	case "start":
		return window.StartOfWindow, nil
	}
	t, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return window.Zero{}, fmt.Errorf("t_zero %q: want none, start or a time", s)
	}
	return window.At(t), nil
}

// PostCut returns the posted dataset restricted to tspan.
func (a *API) PostCut(c echo.Context) error {
	req := &CutRequest{}
	if err := c.Bind(req); err != nil {
		return a.fail(c, err)
	}
	if req.Dataset == nil {
		return a.fail(c, errNoDataset)
	}
	zero, err := parseZero(req.TimeZero)
	if err != nil {
		return a.fail(c, err)
	}
	out := window.CutDataset(req.Dataset, req.Tspan, zero, window.Options{Logger: a.Logger})
	return a.respond(c, out, out)
}
