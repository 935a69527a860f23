package taxonomy

import (
	"regexp"
	"strings"
)

// Kind is the instrument family a column name belongs to.
type Kind int

const (
	Unknown Kind = iota
	EC
	MS
	Xray
	Cinfdata
)

func (k Kind) String() string {
	switch k {
	case EC:
		return "EC"
	case MS:
		return "MS"
	case Xray:
		return "Xray"
	case Cinfdata:
		return "cinfdata"
	default:
		return "unknown"
	}
}

// DefaultMSTimeCol is used when only the MS data type is known. M4 is the
// channel least likely to be missing from MS data.
const DefaultMSTimeCol = "M4-x"

// ECTimeCol is the time column shared by every electrochemical channel.
const ECTimeCol = "time/s"

// XrayTimeCol is the time column of imaging data.
const XrayTimeCol = "t"

// ECColumns is the vocabulary of known electrochemical channel names.
var ECColumns = map[string]bool{
	"mode":                      true,
	"ox/red":                    true,
	"error":                     true,
	"control changes":           true,
	"time/s":                    true,
	"control/V":                 true,
	"control/V/mA":              true,
	"Ewe/V":                     true,
	"<Ewe>/V":                   true,
	"Ece/V":                     true,
	"<Ece>/V":                   true,
	"Ewe-Ece/V":                 true,
	"I/mA":                      true,
	"<I>/mA":                    true,
	"I/A":                       true,
	"control/mA":                true,
	"(Q-Qo)/C":                  true,
	"(Q-Qo)/mA.h":               true,
	"dQ/C":                      true,
	"dq/mA.h":                   true,
	"Q charge/discharge/mA.h":   true,
	"Q charge/mA.h":             true,
	"Q discharge/mA.h":          true,
	"Capacity/mA.h":             true,
	"half cycle":                true,
	"P/W":                       true,
	"Energy charge/W.h":         true,
	"Energy discharge/W.h":      true,
	"Efficiency/%":              true,
	"Capacitance charge/µF":     true,
	"Capacitance discharge/µF":  true,
	"Rcmp/Ohm":                  true,
	"R/Ohm":                     true,
	"Ns changes":                true,
	"Ns":                        true,
	"counter inc.":              true,
	"cycle number":              true,
	"loop number":               true,
	"file number":               true,
	"file_number":               true,
	"selector":                  true,
	"U vs RHE / [V]":            true,
	"J /[mA/cm^2]":              true,
	"J / [mA/cm^2]":             true,
	"I/mA/cm^2":                 true,
	"Ewe/V vs RHE":              true,
	"<Ewe/V> vs RHE":            true,
	"analog in 1/V":             true,
	"Analog IN 1/V":             true,
	"cycle time/s":              true,
	"step time/s":               true,
	"Analog IN 2/V":             true,
	"freq/Hz":                   true,
	"Re(Z)/Ohm":                 true,
	"-Im(Z)/Ohm":                true,
	"|Z|/Ohm":                   true,
	"Phase(Z)/deg":              true,
	"|Ewe|/V":                   true,
	"|I|/A":                     true,
	"Cs/µF":                     true,
	"Cp/µF":                     true,
	"control/mV":                true,
	"Temperature/°C":            true,
	"Ewe-Ece/V vs RHE":          true,
	"Q-Qo/C":                    true,
	"cycle number (half cycle)": true,
}

var (
	msPattern     = regexp.MustCompile(`^M[0-9]+-[xy]`)
	dedupePattern = regexp.MustCompile(`_[0-9]+$`)
)

// Column is the resolved meaning of a column name.
type Column struct {
	Name    string
	Kind    Kind
	TimeCol string
	IsTime  bool
	// Known is false when the naming convention could not place the column.
	// Such columns must be dropped by the caller, not treated as fatal.
	Known bool
}

func isEC(name string) bool {
	if ECColumns[name] {
		return true
	}
	return strings.HasSuffix(name, "*") && ECColumns[strings.TrimSuffix(name, "*")]
}

func isMS(name string) bool {
	return msPattern.MatchString(name)
}

func hasXY(name string) bool {
	return strings.HasSuffix(name, "-x") || strings.HasSuffix(name, "-y")
}

// Classify places a column name into an instrument family by naming
// convention. Rules are checked in order: EC vocabulary, MS channel,
// cinfdata x/y pair, then Xray as the fallback.
func Classify(name string) Kind {
	switch {
	case name == "":
		return Unknown
	case isEC(name):
		return EC
	case isMS(name):
		return MS
	case hasXY(name):
		return Cinfdata
	default:
		return Xray
	}
}

// splitDedupe splits a trailing _<integer> suffix added when merging
// colliding columns, e.g. "time/s_1" -> ("time/s", "_1").
func splitDedupe(name string) (base, suffix string, ok bool) {
	loc := dedupePattern.FindStringIndex(name)
	if loc == nil || loc[0] == 0 {
		return name, "", false
	}
	return name[:loc[0]], name[loc[0]:], true
}

// dedupeBase returns the base of a suffixed name when the base carries
// its own naming convention (anything but a generic Xray name, except t).
func dedupeBase(name string) (base, suffix string, ok bool) {
	if isEC(name) {
		return name, "", false
	}
	base, suffix, ok = splitDedupe(name)
	if !ok {
		return name, "", false
	}
	if Classify(base) == Xray && base != XrayTimeCol {
		return name, "", false
	}
	return base, suffix, true
}

func isTimeByRule(name string, kind Kind) bool {
	switch kind {
	case EC:
		return strings.HasPrefix(name, "time")
	case MS, Cinfdata:
		return strings.HasSuffix(name, "-x")
	case Xray:
		return name == XrayTimeCol
	}
	return false
}

// IsTime reports whether name is a time column.
func IsTime(name string) bool {
	return Resolve(name).IsTime
}

// TimeCol returns the time column name is measured against. The second
// return is false when the convention cannot determine one.
func TimeCol(name string) (string, bool) {
	c := Resolve(name)
	return c.TimeCol, c.TimeCol != ""
}

func timeColByRule(name string, kind Kind) string {
	switch kind {
	case EC:
		return ECTimeCol
	case MS, Cinfdata:
		if hasXY(name) {
			return name[:len(name)-2] + "-x"
		}
	case Xray:
		return XrayTimeCol
	}
	return ""
}

// Resolve classifies name and resolves its time column. It is total: every
// name gets an answer, unknown ones with Known=false.
func Resolve(name string) Column {
	if base, suffix, ok := dedupeBase(name); ok {
		c := Resolve(base)
		c.Name = name
		if c.TimeCol != "" {
			c.TimeCol += suffix
		}
		return c
	}
	kind := Classify(name)
	c := Column{Name: name, Kind: kind}
	if kind == Unknown {
		return c
	}
	c.IsTime = isTimeByRule(name, kind)
	c.TimeCol = timeColByRule(name, kind)
	c.Known = c.TimeCol != ""
	return c
}

// TimeColForType is the default time column of a whole data type, e.g. the
// column the file number of appended EC data is aligned with.
func TimeColForType(dataType string) (string, bool) {
	switch dataType {
	case "EC":
		return ECTimeCol, true
	case "MS":
		return DefaultMSTimeCol, true
	case "Xray":
		return XrayTimeCol, true
	}
	return "", false
}
