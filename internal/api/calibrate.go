package api

import (
	"github.com/labstack/echo/v4"
	"github.com/spectriclabs/ecms-sync/internal/calibrate"
	"github.com/spectriclabs/ecms-sync/internal/dataset"
)

type TimeCalRequest struct {
	Dataset       *dataset.Dataset  `json:"dataset"`
	Reference     *dataset.Dataset  `json:"reference"`
	Points        []calibrate.Point `json:"points"`
	TimeCol       string            `json:"timecol"`
	PseudoTimeCol string            `json:"pseudotimecol"`
	RefTimeCol    string            `json:"reftimecol"`
}

type TimeCalResponse struct {
	Dataset *dataset.Dataset        `json:"dataset"`
	Result  calibrate.TimeCalResult `json:"result"`
}

// PostTimeCal calibrates a time column of the posted dataset against a
// reference dataset, or against absolute epoch times without one.
func (a *API) PostTimeCal(c echo.Context) error {
	req := &TimeCalRequest{}
	if err := c.Bind(req); err != nil {
		return a.fail(c, err)
	}
	if req.Dataset == nil {
		return a.fail(c, errNoDataset)
	}
	res, err := calibrate.TimeCal(req.Dataset, req.Reference, req.Points, calibrate.TimeCalOptions{
		TimeCol:       req.TimeCol,
		PseudoTimeCol: req.PseudoTimeCol,
		RefTimeCol:    req.RefTimeCol,
		Logger:        a.Logger,
	})
	if err != nil {
		return a.fail(c, err)
	}
	return a.respond(c, TimeCalResponse{Dataset: req.Dataset, Result: res}, req.Dataset)
}

type TriggerCalRequest struct {
	Dataset       *dataset.Dataset `json:"dataset"`
	Triggers      []float64        `json:"triggers"`
	PseudoTimeCol string           `json:"pseudotimecol"`
	TimeCol       string           `json:"timecol"`
	ShiftCol      string           `json:"shiftcol"`
	Edge          *float64         `json:"edge"`
}

type TriggerCalResponse struct {
	Dataset *dataset.Dataset `json:"dataset"`
	TimeCol string           `json:"timecol"`
}

// PostTriggerCal lines a pseudotime column up with trigger times. Without
// triggers in the request they are detected from the dataset's analog
// trigger channel.
func (a *API) PostTriggerCal(c echo.Context) error {
	req := &TriggerCalRequest{}
	if err := c.Bind(req); err != nil {
		return a.fail(c, err)
	}
	if req.Dataset == nil {
		return a.fail(c, errNoDataset)
	}
	timecol, err := calibrate.TriggerCal(req.Dataset, calibrate.TriggerCalOptions{
		Triggers:      req.Triggers,
		PseudoTimeCol: req.PseudoTimeCol,
		TimeCol:       req.TimeCol,
		ShiftCol:      req.ShiftCol,
		Edge:          req.Edge,
		Logger:        a.Logger,
	})
	if err != nil {
		return a.fail(c, err)
	}
	return a.respond(c, TriggerCalResponse{Dataset: req.Dataset, TimeCol: timecol}, req.Dataset)
}
