package synchronize

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spectriclabs/ecms-sync/internal/confirm"
	"github.com/spectriclabs/ecms-sync/internal/dataset"
	"go.uber.org/zap"
)

// DefaultCutBuffer is the margin, in seconds, kept around the overlap when
// cutting.
const DefaultCutBuffer = 60.0

type zeroKind int

const (
	zeroStart zeroKind = iota
	zeroFirst
	zeroLast
	zeroFinish
	zeroAt
)

// TimeZero picks the absolute instant that becomes t=0 of the combined
// dataset:
//
//	dataset1 | *----------------------------*
//	dataset2 |       *-----------------------------------------*
//	dataset3              |     *----------------------*
//	t =      first        last  start      finish
//
// where | is a tstamp and *--* the recorded data.
type TimeZero struct {
	kind zeroKind
	at   float64
}

var (
	Start  = TimeZero{kind: zeroStart}
	First  = TimeZero{kind: zeroFirst}
	Last   = TimeZero{kind: zeroLast}
	Finish = TimeZero{kind: zeroFinish}
)

// At uses an explicit epoch time as t=0.
func At(epoch float64) TimeZero {
	return TimeZero{kind: zeroAt, at: epoch}
}

// ParseTimeZero reads "start", "first", "last", "finish" or an epoch time.
func ParseTimeZero(s string) (TimeZero, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "start":
		return Start, nil
	case "first":
		return First, nil
	case "last":
		return Last, nil
	case "finish":
		return Finish, nil
	}
	epoch, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return TimeZero{}, fmt.Errorf("time zero %q: want start, first, last, finish or an epoch time", s)
	}
	return At(epoch), nil
}

func (z TimeZero) String() string {
	switch z.kind {
	case zeroFirst:
		return "first"
	case zeroLast:
		return "last"
	case zeroFinish:
		return "finish"
	case zeroAt:
		return strconv.FormatFloat(z.at, 'f', -1, 64)
	}
	return "start"
}

// MissingTstamp says what to do with a dataset that has no tstamp.
type MissingTstamp string

const (
	// MissingTstampUTC derives the tstamp from date and timestamp read as UTC.
	MissingTstampUTC MissingTstamp = "utc"
	// MissingTstampLocal reads date and timestamp in Options.Location.
	MissingTstampLocal MissingTstamp = "local"
	// MissingTstampError refuses to synchronize.
	MissingTstampError MissingTstamp = "error"
)

// ParseMissingTstamp validates a configured policy name.
func ParseMissingTstamp(s string) (MissingTstamp, error) {
	switch p := MissingTstamp(strings.ToLower(s)); p {
	case "":
		return MissingTstampUTC, nil
	case MissingTstampUTC, MissingTstampLocal, MissingTstampError:
		return p, nil
	}
	return "", fmt.Errorf("missing tstamp policy %q: want utc, local or error", s)
}

type Options struct {
	TimeZero TimeZero
	// Append joins identically named columns. nil appends when all sources
	// share one data type.
	Append *bool
	// Cut keeps only data within CutBuffer of the overlap.
	Cut       bool
	CutBuffer *float64
	// Override skips the no-overlap confirmation. nil takes the value of
	// Append, since appended datasets are not expected to overlap.
	Override *bool
	// FileNumberType is the data type whose time column the file number
	// column is aligned with when appending.
	FileNumberType string
	// Update writes the result back onto sources implementing
	// dataset.Updater.
	Update bool
	// Location is the zone for the combined timestamp.
	Location      *time.Location
	MissingTstamp MissingTstamp
	Confirm       confirm.Func
	Logger        *zap.Logger
}

// Bool and Float make optional option values.
func Bool(b bool) *bool { return &b }

func Float(f float64) *float64 { return &f }

type resolved struct {
	Options
	append    bool
	override  bool
	cutBuffer float64
}

func (o Options) resolve(datasets []*dataset.Dataset) resolved {
	r := resolved{Options: o}
	if r.Logger == nil {
		r.Logger = zap.NewNop()
	}
	if r.Location == nil {
		r.Location = time.Local
	}
	if r.MissingTstamp == "" {
		r.MissingTstamp = MissingTstampUTC
	}
	if r.FileNumberType == "" {
		r.FileNumberType = dataset.TypeEC
	}
	r.cutBuffer = DefaultCutBuffer
	if o.CutBuffer != nil {
		r.cutBuffer = *o.CutBuffer
	}

	if o.Append != nil {
		r.append = *o.Append
	} else {
		types := make(map[string]bool)
		for _, d := range datasets {
			types[d.DataType] = true
		}
		r.append = len(types) == 1
	}
	r.override = r.append
	if o.Override != nil {
		r.override = *o.Override
	}
	return r
}
