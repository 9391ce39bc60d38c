// Package qeng decodes the Quectel +QENG "servingcell" report into a typed
// field set. The report is a single comma-separated line whose layout depends
// on the radio access technology the modem is camped on (GSM, WCDMA or LTE).
package qeng

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"i4.energy/across/cellinfo/at"
)

var (
	// ErrNoReport is returned when no +QENG line is present in the command
	// response. This also covers exchanges terminated by ERROR, which carry
	// no report line at all.
	ErrNoReport = errors.New("qeng: no +QENG report in response")

	// ErrShortReport is returned when the report line carries fewer fields
	// than its RAT requires. No partial result is returned.
	ErrShortReport = errors.New("qeng: malformed report: too few fields")
)

// Commander issues one AT command exchange and returns the response lines
// collected before the terminator.
type Commander interface {
	Command(ctx context.Context, cmd string) ([]string, error)
}

// Info maps serving-cell field names to their decoded values (string or
// int). "state" and "rat" are always present; every other key depends on the
// RAT. An Info is created fresh per query and not mutated afterwards.
type Info map[string]any

// Filter returns the subset of info whose keys appear in include. The
// literal entry "any" selects the full field set.
func (info Info) Filter(include []string) Info {
	if slices.Contains(include, "any") {
		return info
	}
	out := Info{}
	for _, name := range include {
		if v, ok := info[name]; ok {
			out[name] = v
		}
	}
	return out
}

// QueryServingCell issues AT+QENG="servingcell" and decodes the report.
func QueryServingCell(ctx context.Context, c Commander) (Info, error) {
	lines, err := c.Command(ctx, at.CmdServingCell)
	if err != nil {
		return nil, err
	}
	return Decode(lines)
}

// Decode locates the +QENG report line in a command response and decodes it.
func Decode(lines []string) (Info, error) {
	report, ok := lookup(lines, at.QengServingCell)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoReport, lines)
	}

	// Field 0 is the `+QENG: "servingcell"` preamble; the cursor starts
	// past it, mirroring the report layout in the EG2x AT manual.
	r := reader{fields: strings.Split(report, ",")}

	info := Info{}
	info["state"] = r.quoted()
	rat := r.quoted()
	info["rat"] = rat

	// Unknown RATs are not an error: the caller gets state/rat only.
	for _, f := range fieldsFor(rat) {
		switch f.kind {
		case integer:
			info[f.name] = str2int(r.next(), f.fallback)
		case quoted:
			info[f.name] = r.quoted()
		default:
			info[f.name] = r.next()
		}
	}

	if r.err != nil {
		return nil, r.err
	}
	return info, nil
}

// lookup returns the first line with the given prefix.
func lookup(lines []string, prefix string) (string, bool) {
	for _, line := range lines {
		if strings.HasPrefix(line, prefix) {
			return line, true
		}
	}
	return "", false
}

// reader is a bounds-checked cursor over the comma-separated report fields.
// Overruns set err instead of panicking; subsequent reads return "".
type reader struct {
	fields []string
	pos    int
	err    error
}

func (r *reader) next() string {
	r.pos++
	if r.pos >= len(r.fields) {
		r.err = ErrShortReport
		return ""
	}
	return r.fields[r.pos]
}

func (r *reader) quoted() string {
	return strings.Trim(r.next(), `"`)
}

// str2int parses a report integer. The modem reports "-" for fields it
// cannot measure; that and any other unparsable token yield the fallback.
func str2int(s string, fallback int) int {
	if s == "-" {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}

type kind int

const (
	raw     kind = iota // kept as the reported string (MCC, MNC, ids)
	quoted              // quote-stripped string
	integer             // parsed with str2int
)

type field struct {
	name     string
	kind     kind
	fallback int
}

func fieldsFor(rat string) []field {
	switch rat {
	case "GSM":
		return gsmFields
	case "WCDMA":
		return wcdmaFields
	case "LTE":
		return lteFields
	}
	return nil
}

// MCC/MNC/LAC/TAC/cellid stay raw strings: they are identifiers with
// significant leading zeros and hex digits, not quantities.
var gsmFields = []field{
	{name: "mcc"},
	{name: "mnc"},
	{name: "lac"},
	{name: "cellid"},
	{name: "bsic", kind: integer},
	{name: "arfcn", kind: integer},
	{name: "band", kind: integer, fallback: -1},
	{name: "rxlev", kind: integer, fallback: -1},
	{name: "txp", kind: integer},
	{name: "rla", kind: integer},
	{name: "drx", kind: integer},
	{name: "c1", kind: integer},
	{name: "c2", kind: integer},
	{name: "gprs", kind: integer, fallback: -1},
	{name: "tch", kind: integer},
	{name: "ts", kind: integer},
	{name: "ta", kind: integer},
	{name: "maio", kind: integer},
	{name: "hsn", kind: integer},
	{name: "rxlevsub", kind: integer, fallback: -1},
	{name: "rxlevfull", kind: integer, fallback: -1},
	{name: "rxqualsub", kind: integer, fallback: -1},
	{name: "rxqualfull", kind: integer, fallback: -1},
	{name: "voicecodec", kind: quoted},
}

var wcdmaFields = []field{
	{name: "mcc"},
	{name: "mnc"},
	{name: "lac"},
	{name: "cellid"},
	{name: "uarfcn", kind: integer},
	{name: "psc", kind: integer},
	{name: "rac", kind: integer, fallback: -1},
	{name: "rscp", kind: integer},
	{name: "ecio", kind: integer},
	{name: "phych", kind: integer, fallback: -1},
	{name: "sf", kind: integer, fallback: 8},
	{name: "slot", kind: integer, fallback: -1},
	{name: "speech_code"},
	{name: "commod", kind: integer, fallback: -1},
}

var lteFields = []field{
	{name: "duplex", kind: quoted},
	{name: "mcc"},
	{name: "mnc"},
	{name: "cellid"},
	{name: "pcid", kind: integer},
	{name: "earfcn", kind: integer},
	{name: "band", kind: integer},
	{name: "ul_bandwidth", kind: integer},
	{name: "dl_bandwidth", kind: integer},
	{name: "tac"},
	{name: "rsrp", kind: integer},
	{name: "rsrq", kind: integer},
	{name: "rssi", kind: integer},
	{name: "sinr", kind: integer},
	{name: "rxlev", kind: integer},
}
