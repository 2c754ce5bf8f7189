package sniff

import (
	"io"
	"strings"
	"testing"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

func TestDetectDelimiter_TableDriven(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		line string
		want rune
	}{
		{name: "comma", line: "id,name,amount", want: ','},
		{name: "semicolon", line: "id;name;amount", want: ';'},
		{name: "tab", line: "id\tname\tamount", want: '\t'},
		{name: "pipe", line: "id|name|amount", want: '|'},
		{name: "mixed_semicolon_wins", line: "a;b;c,d", want: ';'},
		{name: "tie_comma_beats_semicolon", line: "a,b;c", want: ','},
		{name: "tie_semicolon_beats_tab", line: "a;b\tc", want: ';'},
		{name: "tie_tab_beats_pipe", line: "a\tb|c", want: '\t'},
		{name: "no_candidates_defaults_comma", line: "single", want: ','},
		{name: "empty_line_defaults_comma", line: "", want: ','},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectDelimiter(tt.line); got != tt.want {
				t.Fatalf("DetectDelimiter(%q) = %q, want %q", tt.line, got, tt.want)
			}
		})
	}
}

func TestDetectEncoding(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		head []byte
		want Encoding
	}{
		{name: "utf16le_bom", head: []byte{0xFF, 0xFE, 'a', 0x00}, want: EncodingUTF16LE},
		{name: "utf16be_bom", head: []byte{0xFE, 0xFF, 0x00, 'a'}, want: EncodingUTF16BE},
		{name: "plain_ascii", head: []byte("id,name"), want: EncodingUTF8},
		{name: "utf8_bom_stays_utf8", head: []byte{0xEF, 0xBB, 0xBF, 'a'}, want: EncodingUTF8},
		{name: "short_head", head: []byte{0xFF}, want: EncodingUTF8},
		{name: "empty", head: nil, want: EncodingUTF8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectEncoding(tt.head); got != tt.want {
				t.Fatalf("DetectEncoding(% x) = %v, want %v", tt.head, got, tt.want)
			}
		})
	}
}

func TestDecodeReader_UTF16RoundTrip(t *testing.T) {
	t.Parallel()

	const text = "id,naam\n1,Ann\n"

	enc := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder()
	raw, _, err := transform.String(enc, text)
	if err != nil {
		t.Fatalf("encode utf16: %v", err)
	}

	head := []byte(raw)[:2]
	if got := DetectEncoding(head); got != EncodingUTF16LE {
		t.Fatalf("DetectEncoding = %v, want EncodingUTF16LE", got)
	}

	decoded, err := io.ReadAll(DecodeReader(strings.NewReader(raw), EncodingUTF16LE))
	if err != nil {
		t.Fatalf("read decoded: %v", err)
	}
	if string(decoded) != text {
		t.Fatalf("decoded %q, want %q", decoded, text)
	}
}

func TestDecodeReader_UTF8Passthrough(t *testing.T) {
	t.Parallel()

	in := strings.NewReader("plain")
	if out := DecodeReader(in, EncodingUTF8); out != io.Reader(in) {
		t.Fatalf("DecodeReader should return the input reader unchanged for UTF-8")
	}
}
