// Package textenc decodes external tool output whose encoding is not known
// in advance. Tools on Chinese-locale Windows hosts commonly emit GBK.
package textenc

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/unicode"

	"github.com/guiyumin/streamscribe/internal/core/errs"
)

// Codec is a named decoder tried in order by Decode.
type Codec struct {
	Name string
	enc  encoding.Encoding // nil means strict UTF-8
}

var (
	UTF8    = Codec{Name: "utf-8"}
	GB18030 = Codec{Name: "gb18030", enc: simplifiedchinese.GB18030}
	GBK     = Codec{Name: "gbk", enc: simplifiedchinese.GBK}
	Latin1  = Codec{Name: "latin1", enc: charmap.ISO8859_1}
)

// Default is the order used for process output.
var Default = []Codec{UTF8, GB18030, GBK}

// Lenient appends Latin-1, which accepts any byte sequence.
var Lenient = []Codec{UTF8, GB18030, GBK, Latin1}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Decode tries each codec in order and returns the first clean decoding.
// When every codec fails it returns a placeholder describing the payload and
// a DecodeFailure error; callers should keep going with the placeholder.
func Decode(raw []byte, codecs ...Codec) (string, string, error) {
	if len(codecs) == 0 {
		codecs = Default
	}
	if len(raw) == 0 {
		return "", UTF8.Name, nil
	}
	for _, c := range codecs {
		if s, ok := c.decode(raw); ok {
			return s, c.Name, nil
		}
	}
	return Placeholder(len(raw)), "", errs.New(errs.KindDecodeFailure, "decode", "%d bytes matched none of %d encodings", len(raw), len(codecs))
}

// String is Decode without the codec name or error.
func String(raw []byte, codecs ...Codec) string {
	s, _, _ := Decode(raw, codecs...)
	return s
}

// Placeholder is the text substituted for undecodable output.
func Placeholder(n int) string {
	return fmt.Sprintf("<%d bytes of undecodable output>", n)
}

// StripBOM removes a leading byte order mark from decoded text.
func StripBOM(s string) string {
	return strings.TrimPrefix(s, "\uFEFF")
}

func (c Codec) decode(raw []byte) (string, bool) {
	if c.enc == nil {
		raw = bytes.TrimPrefix(raw, utf8BOM)
		if !utf8.Valid(raw) {
			return "", false
		}
		return string(raw), true
	}
	out, err := c.enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", false
	}
	// x/text decoders substitute U+FFFD for invalid sequences instead of failing.
	if bytes.ContainsRune(out, utf8.RuneError) {
		return "", false
	}
	return string(out), true
}

// UTF16 decodes data that starts with a UTF-16 byte order mark. Subtitle files
// exported on Windows are sometimes saved this way.
func UTF16(raw []byte) (string, bool) {
	if len(raw) < 2 {
		return "", false
	}
	var e encoding.Encoding
	switch {
	case raw[0] == 0xFF && raw[1] == 0xFE:
		e = unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM)
	case raw[0] == 0xFE && raw[1] == 0xFF:
		e = unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM)
	default:
		return "", false
	}
	out, err := e.NewDecoder().Bytes(raw)
	if err != nil {
		return "", false
	}
	return string(out), true
}
