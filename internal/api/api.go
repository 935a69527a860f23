package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/spectriclabs/ecms-sync/internal/cache"
	"github.com/spectriclabs/ecms-sync/internal/confirm"
	"github.com/spectriclabs/ecms-sync/internal/config"
	"github.com/spectriclabs/ecms-sync/internal/dataset"
	"github.com/spectriclabs/ecms-sync/internal/datasource"
	"github.com/spectriclabs/ecms-sync/internal/molecule"
	"github.com/spectriclabs/ecms-sync/internal/numerical"
	"go.uber.org/zap"
)

type API struct {
	Cfg       *config.Configuration
	Cache     *cache.Cache
	Source    *datasource.Source
	Molecules molecule.Store
	Logger    *zap.Logger
}

func NewSyncAPI(cfg *config.Configuration, logger *zap.Logger) *API {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &cache.Cache{Location: cfg.CacheLocation, Logger: logger}
	return &API{
		Cfg:       cfg,
		Cache:     c,
		Source:    &datasource.Source{Cfg: cfg, Cache: c, Logger: logger},
		Molecules: &molecule.FileStore{Dir: cfg.MoleculeDir},
		Logger:    logger,
	}
}

// Register adds the API routes to e.
func (a *API) Register(e *echo.Echo) {
	g := e.Group("/sync")
	g.GET("/fs", a.GetFileLocations)
	g.GET("/fs/:location/*", a.GetFileOrDirectory)
	g.GET("/dataset/:location/*", a.GetDataset)
	g.POST("/synchronize", a.PostSynchronize)
	g.POST("/cut", a.PostCut)
	g.POST("/timecal", a.PostTimeCal)
	g.POST("/triggercal", a.PostTriggerCal)
	g.GET("/molecules", a.GetMolecules)
	g.GET("/molecules/:name", a.GetMolecule)
}

// status maps an error to the response code it deserves.
func status(err error) int {
	switch {
	case errors.Is(err, confirm.ErrAborted):
		return http.StatusConflict
	case errors.Is(err, os.ErrNotExist),
		errors.Is(err, molecule.ErrNotFound),
		errors.Is(err, datasource.ErrUnknownLocation):
		return http.StatusNotFound
	}
	return http.StatusBadRequest
}

func (a *API) fail(c echo.Context, err error) error {
	code := status(err)
	a.Logger.Info(
		"Request failed",
		zap.String("path", c.Request().URL.Path),
		zap.Int("status", code),
		zap.Error(err),
	)
	return c.String(code, err.Error())
}

// encode renders v as JSON. NaN samples, which JSON cannot carry, are sent
// as zero.
func encode(v interface{}, datasets ...*dataset.Dataset) ([]byte, error) {
	for _, d := range datasets {
		if d == nil {
			continue
		}
		for _, values := range d.Columns {
			for i := range values {
				values[i] = numerical.SuppressNaN(values[i])
			}
		}
	}
	return json.Marshal(v)
}

func (a *API) respond(c echo.Context, v interface{}, datasets ...*dataset.Dataset) error {
	body, err := encode(v, datasets...)
	if err != nil {
		a.Logger.Error("Error encoding response", zap.Error(err))
		return c.String(http.StatusInternalServerError, err.Error())
	}
	return c.JSONBlob(http.StatusOK, body)
}
