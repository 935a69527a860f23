package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

func (a *API) GetFileLocations(c echo.Context) error {
	return c.JSON(http.StatusOK, a.Cfg.LocationDetails)
}

// GetFileOrDirectory lists a directory of a local location, or streams the
// file when the path names one.
func (a *API) GetFileOrDirectory(c echo.Context) error {
	filePath := c.Param("*")
	locationName := c.Param("location")

	files, isFile, err := a.Source.List(locationName, filePath)
	if err != nil {
		return a.fail(c, err)
	}
	if !isFile {
		a.Logger.Debug("Path is a directory; returning directory listing", zap.String("path", filePath))
		return c.JSON(http.StatusOK, files)
	}

	a.Logger.Debug("Path is a file; returning contents in raw mode", zap.String("path", filePath))
	reader, err := a.Source.Open(c.Request().Context(), locationName, filePath)
	if err != nil {
		return a.fail(c, err)
	}
	defer reader.Close()

	contentType := "application/octet-stream"
	if strings.HasSuffix(filePath, ".json") {
		contentType = echo.MIMEApplicationJSON
	}
	return c.Stream(http.StatusOK, contentType, reader)
}

// GetDataset decodes one dataset file and returns it in canonical form.
func (a *API) GetDataset(c echo.Context) error {
	d, err := a.Source.LoadDataset(c.Request().Context(), c.Param("location"), c.Param("*"))
	if err != nil {
		return a.fail(c, err)
	}
	return a.respond(c, d, d)
}
