package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

func (a *API) GetMolecules(c echo.Context) error {
	names, err := a.Molecules.List()
	if err != nil {
		return a.fail(c, err)
	}
	return c.JSON(http.StatusOK, names)
}

func (a *API) GetMolecule(c echo.Context) error {
	m, err := a.Molecules.Get(c.Param("name"))
	if err != nil {
		return a.fail(c, err)
	}
	return c.JSON(http.StatusOK, m)
}
