package qeng

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

const lteReport = `+QENG: "servingcell","NOCONN","LTE","FDD",440,10,2FDA502,229,1850,3,3,3,8C50,-95,-9,-63,10,38`

func TestDecode(t *testing.T) {
	tests := []struct {
		name     string
		lines    []string
		expected Info
	}{
		{
			name:  "LTE",
			lines: []string{lteReport},
			expected: Info{
				"state":        "NOCONN",
				"rat":          "LTE",
				"duplex":       "FDD",
				"mcc":          "440",
				"mnc":          "10",
				"cellid":       "2FDA502",
				"pcid":         229,
				"earfcn":       1850,
				"band":         3,
				"ul_bandwidth": 3,
				"dl_bandwidth": 3,
				"tac":          "8C50",
				"rsrp":         -95,
				"rsrq":         -9,
				"rssi":         -63,
				"sinr":         10,
				"rxlev":        38,
			},
		},
		{
			name: "GSM with unmeasured fields",
			lines: []string{
				`+QENG: "servingcell","NOCONN","GSM",460,00,550A,25F1,31,40,-,-69,255,255,0,38,31,1,-,-,-,-,-,-,-,-,-,"-"`,
			},
			expected: Info{
				"state":      "NOCONN",
				"rat":        "GSM",
				"mcc":        "460",
				"mnc":        "00",
				"lac":        "550A",
				"cellid":     "25F1",
				"bsic":       31,
				"arfcn":      40,
				"band":       -1, // "-" with fallback -1
				"rxlev":      -69,
				"txp":        255,
				"rla":        255,
				"drx":        0,
				"c1":         38,
				"c2":         31,
				"gprs":       1,
				"tch":        0,
				"ts":         0,
				"ta":         0,
				"maio":       0,
				"hsn":        0,
				"rxlevsub":   -1,
				"rxlevfull":  -1,
				"rxqualsub":  -1,
				"rxqualfull": -1,
				"voicecodec": "-",
			},
		},
		{
			name: "WCDMA with unmeasured fields",
			lines: []string{
				`+QENG: "servingcell","CONNECT","WCDMA",460,01,B33D,9A2F651,10738,8,1,-58,-7,-,-,-,-,-`,
			},
			expected: Info{
				"state":       "CONNECT",
				"rat":         "WCDMA",
				"mcc":         "460",
				"mnc":         "01",
				"lac":         "B33D",
				"cellid":      "9A2F651",
				"uarfcn":      10738,
				"psc":         8,
				"rac":         1,
				"rscp":        -58,
				"ecio":        -7,
				"phych":       -1,
				"sf":          8, // "-" with fallback 8
				"slot":        -1,
				"speech_code": "-",
				"commod":      -1,
			},
		},
		{
			name:  "Unknown RAT yields state and rat only",
			lines: []string{`+QENG: "servingcell","SEARCH","NR5G-SA",448,...`},
			expected: Info{
				"state": "SEARCH",
				"rat":   "NR5G-SA",
			},
		},
		{
			name: "Report located among other lines",
			lines: []string{
				`AT+QENG="servingcell"`, // command echo
				`+QENG: "servingcell","SEARCH","UNKNOWN"`,
			},
			expected: Info{
				"state": "SEARCH",
				"rat":   "UNKNOWN",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := Decode(tt.lines)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(info, tt.expected) {
				t.Errorf("decoded info mismatch\nexpected: %#v\ngot:      %#v", tt.expected, info)
			}
		})
	}
}

func TestDecodeErrors(t *testing.T) {
	t.Run("ErrNoReport when prefix not found", func(t *testing.T) {
		_, err := Decode([]string{"+CSQ: 15,99"})
		if !errors.Is(err, ErrNoReport) {
			t.Errorf("expected ErrNoReport, got: %v", err)
		}
	})

	t.Run("ErrNoReport on empty response", func(t *testing.T) {
		_, err := Decode(nil)
		if !errors.Is(err, ErrNoReport) {
			t.Errorf("expected ErrNoReport, got: %v", err)
		}
	})

	t.Run("ErrShortReport on truncated LTE line", func(t *testing.T) {
		info, err := Decode([]string{`+QENG: "servingcell","NOCONN","LTE","FDD",440,10`})
		if !errors.Is(err, ErrShortReport) {
			t.Errorf("expected ErrShortReport, got: %v", err)
		}
		if info != nil {
			t.Errorf("expected no partial info, got: %v", info)
		}
	})

	t.Run("ErrShortReport when state is missing", func(t *testing.T) {
		_, err := Decode([]string{`+QENG: "servingcell"`})
		if !errors.Is(err, ErrShortReport) {
			t.Errorf("expected ErrShortReport, got: %v", err)
		}
	})
}

func TestStr2Int(t *testing.T) {
	tests := []struct {
		input    string
		fallback int
		expected int
	}{
		{input: "-", fallback: 0, expected: 0},
		{input: "-", fallback: -1, expected: -1},
		{input: "-", fallback: 8, expected: 8},
		{input: "abc", fallback: 0, expected: 0},
		{input: "abc", fallback: -1, expected: -1},
		{input: "", fallback: 7, expected: 7},
		{input: "42", fallback: 0, expected: 42},
		{input: "42", fallback: -1, expected: 42},
		{input: "-95", fallback: 0, expected: -95},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := str2int(tt.input, tt.fallback); got != tt.expected {
				t.Errorf("str2int(%q, %d) = %d, want %d", tt.input, tt.fallback, got, tt.expected)
			}
		})
	}
}

func TestFilter(t *testing.T) {
	info := Info{"state": "NOCONN", "rat": "LTE", "band": 3, "rsrp": -95}

	t.Run("Keeps only included keys", func(t *testing.T) {
		got := info.Filter([]string{"rat", "band"})
		want := Info{"rat": "LTE", "band": 3}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("expected %v, got %v", want, got)
		}
	})

	t.Run("Unknown names are ignored", func(t *testing.T) {
		got := info.Filter([]string{"rat", "nosuchfield"})
		want := Info{"rat": "LTE"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("expected %v, got %v", want, got)
		}
	})

	t.Run("any returns the full set", func(t *testing.T) {
		got := info.Filter([]string{"any"})
		if !reflect.DeepEqual(got, info) {
			t.Errorf("expected full set, got %v", got)
		}
	})

	t.Run("any among other names returns the full set", func(t *testing.T) {
		got := info.Filter([]string{"rat", "any"})
		if !reflect.DeepEqual(got, info) {
			t.Errorf("expected full set, got %v", got)
		}
	})

	t.Run("Empty include yields empty result", func(t *testing.T) {
		got := info.Filter(nil)
		if len(got) != 0 {
			t.Errorf("expected empty result, got %v", got)
		}
	})
}

type commanderFunc func(ctx context.Context, cmd string) ([]string, error)

func (f commanderFunc) Command(ctx context.Context, cmd string) ([]string, error) {
	return f(ctx, cmd)
}

func TestQueryServingCell(t *testing.T) {
	t.Run("Issues the serving cell query and decodes", func(t *testing.T) {
		var issued string
		c := commanderFunc(func(ctx context.Context, cmd string) ([]string, error) {
			issued = cmd
			return []string{lteReport}, nil
		})

		info, err := QueryServingCell(context.Background(), c)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if issued != `AT+QENG="servingcell"` {
			t.Errorf("unexpected command issued: %q", issued)
		}
		if info["rat"] != "LTE" || info["band"] != 3 {
			t.Errorf("unexpected info: %v", info)
		}
	})

	t.Run("Propagates command errors", func(t *testing.T) {
		cmdErr := errors.New("transport down")
		c := commanderFunc(func(ctx context.Context, cmd string) ([]string, error) {
			return nil, cmdErr
		})

		_, err := QueryServingCell(context.Background(), c)
		if !errors.Is(err, cmdErr) {
			t.Errorf("expected command error, got: %v", err)
		}
	})

	t.Run("ErrNoReport on ERROR-terminated exchange", func(t *testing.T) {
		// The command layer does not distinguish OK from ERROR; an
		// ERROR-terminated exchange just has no report line.
		c := commanderFunc(func(ctx context.Context, cmd string) ([]string, error) {
			return nil, nil
		})

		_, err := QueryServingCell(context.Background(), c)
		if !errors.Is(err, ErrNoReport) {
			t.Errorf("expected ErrNoReport, got: %v", err)
		}
	})
}
