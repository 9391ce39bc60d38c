package at

const (
	// Terminal Control
	CRLF = "\r\n"

	// Response Codes
	OK        = "OK"
	ERROR     = "ERROR"
	NoCarrier = "NO CARRIER"

	// Commands
	CmdServingCell = `AT+QENG="servingcell"`

	// Report prefixes
	QengServingCell = "+QENG:"
)

// IsFinal reports whether line terminates a command exchange. The modem
// closes every exchange with the expected terminator (usually OK), ERROR,
// or NO CARRIER. Which of the three matched is not distinguished; the
// collected payload lines decide what the exchange meant.
func IsFinal(line, expected string) bool {
	switch line {
	case expected, ERROR, NoCarrier:
		return true
	}
	return false
}
