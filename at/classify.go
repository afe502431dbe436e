package at

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformedFrame is reported when a +IPD marker is present but its
// header cannot be parsed or its declared length exceeds the bytes that
// actually arrived.
var ErrMalformedFrame = errors.New("malformed +IPD frame")

// Frame is a length-prefixed block of inbound connection data.
type Frame struct {
	Channel int
	Length  int
	Payload []byte
}

// Response is the classification of one drained chunk of module output.
type Response struct {
	Kind  ResponseKind
	Token string // set for KindToken
	Frame Frame  // set for KindFrame
	Text  string // raw text for frames and malformed frames, "Unk: "-prefixed raw text otherwise
}

// Err returns ErrMalformedFrame for malformed responses and nil otherwise.
func (r Response) Err() error {
	if r.Kind == KindMalformed {
		return ErrMalformedFrame
	}
	return nil
}

// Contains reports whether search occurs in text as an exact, case-sensitive
// byte sequence. The empty string is contained in every text.
func Contains(text, search string) bool {
	return strings.Contains(text, search)
}

// Classify identifies the nature of a drained module response. The checks
// run in a fixed order and the first match wins, because the module often
// emits several of these tokens in the same burst.
func Classify(raw string) Response {
	switch {
	case raw == "":
		return Response{Kind: KindEmpty}
	case Contains(raw, NoChange):
		return Response{Kind: KindToken, Token: NoChange}
	case Contains(raw, Link):
		return Response{Kind: KindToken, Token: Link}
	case Contains(raw, Unlink):
		return Response{Kind: KindToken, Token: Unlink}
	case Contains(raw, IPD):
		frame, err := ParseFrame(raw)
		if err != nil {
			return Response{Kind: KindMalformed, Text: raw}
		}
		return Response{Kind: KindFrame, Frame: frame, Text: raw}
	default:
		return Response{Kind: KindUnrecognized, Text: Unknown + raw}
	}
}

// ParseFrame extracts the first +IPD frame from raw. Both the
// multi-connection header (+IPD,<ch>,<len>:) and the single-connection
// header (+IPD,<len>:) are accepted; the comma after the marker is
// optional. Single-connection frames report channel 0.
//
// The payload is exactly the declared number of bytes following the colon.
// If fewer bytes are present the frame is rejected rather than truncated.
func ParseFrame(raw string) (Frame, error) {
	i := strings.Index(raw, IPD)
	if i < 0 {
		return Frame{}, fmt.Errorf("%w: no %s marker", ErrMalformedFrame, IPD)
	}
	rest := strings.TrimPrefix(raw[i+len(IPD):], ",")

	colon := strings.IndexByte(rest, ':')
	if colon < 0 {
		return Frame{}, fmt.Errorf("%w: header not terminated", ErrMalformedFrame)
	}
	header, body := rest[:colon], rest[colon+1:]

	channel, lenField := 0, header
	if c := strings.IndexByte(header, ','); c >= 0 {
		n, ok := parseDigits(header[:c])
		if !ok {
			return Frame{}, fmt.Errorf("%w: bad channel %q", ErrMalformedFrame, header[:c])
		}
		channel, lenField = n, header[c+1:]
	}

	length, ok := parseDigits(lenField)
	if !ok {
		return Frame{}, fmt.Errorf("%w: bad length %q", ErrMalformedFrame, lenField)
	}
	if length > len(body) {
		return Frame{}, fmt.Errorf("%w: declared %d bytes, %d present", ErrMalformedFrame, length, len(body))
	}

	return Frame{
		Channel: channel,
		Length:  length,
		Payload: []byte(body[:length]),
	}, nil
}

// parseDigits accepts only a non-empty run of ASCII digits.
func parseDigits(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	return n, err == nil
}
