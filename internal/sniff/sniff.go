// Package sniff inspects the head of a delimited-text stream: it infers the
// field separator from the first line and recognizes UTF-16 byte-order marks
// so the caller can decide whether the stream needs transcoding.
package sniff

import (
	"io"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// delimiter candidates in priority order; ties break toward the earlier one.
var candidates = []rune{',', ';', '\t', '|'}

// DetectDelimiter infers the field separator of a delimited source from its
// first line. It counts occurrences of each candidate (comma, semicolon, tab,
// pipe) and returns the one with the highest count; exact ties resolve by the
// candidate priority above.
//
// Only the supplied line is examined. Callers must rewind the stream so the
// same line is re-read as data.
func DetectDelimiter(firstLine string) rune {
	best := candidates[0]
	bestN := strings.Count(firstLine, string(candidates[0]))
	for _, c := range candidates[1:] {
		if n := strings.Count(firstLine, string(c)); n > bestN {
			best, bestN = c, n
		}
	}
	return best
}

// Encoding identifies the detected byte encoding of a stream head.
type Encoding int

const (
	EncodingUTF8 Encoding = iota
	EncodingUTF16LE
	EncodingUTF16BE
)

// DetectEncoding inspects the leading bytes of a stream for a UTF-16
// byte-order mark. Anything without one is treated as UTF-8.
func DetectEncoding(head []byte) Encoding {
	if len(head) >= 2 {
		switch {
		case head[0] == 0xFF && head[1] == 0xFE:
			return EncodingUTF16LE
		case head[0] == 0xFE && head[1] == 0xFF:
			return EncodingUTF16BE
		}
	}
	return EncodingUTF8
}

// DecodeReader wraps r in a UTF-16 to UTF-8 transcoding filter when enc is a
// UTF-16 variant. UTF-8 input is returned unchanged; the UTF-16 decoders
// consume the byte-order mark themselves.
func DecodeReader(r io.Reader, enc Encoding) io.Reader {
	switch enc {
	case EncodingUTF16LE:
		return transform.NewReader(r, unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder())
	case EncodingUTF16BE:
		return transform.NewReader(r, unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewDecoder())
	default:
		return r
	}
}
