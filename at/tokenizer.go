package at

import (
	"bufio"
	"bytes"
)

// Splitter is used for tokenizing AT command modem responses. It uses
// the signature of bufio.SplitFunc so it can be directly used with
// bufio.Scanner.
//
// It splits the input by CRLF line endings and strips the terminator from
// each token. Bare LF line endings are accepted as well, since some
// firmware revisions emit them for report lines.
//
// Important: This splitter assumes "No Echo" mode (ATE0). If echo is
// enabled, the echoed command appears as its own token and is collected
// into the response like any other line.
//
// The atEOF parameter indicates whether any more data will be available.
// When true, any remaining data is returned as the final token.
func Splitter(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}

	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		return i + 1, bytes.TrimRight(data[0:i], "\r"), nil
	}

	if atEOF {
		return len(data), bytes.TrimRight(data, "\r"), nil
	}
	return 0, nil, nil
}

var _ bufio.SplitFunc = Splitter
