package models

import (
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/quotedprintable"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// Overview field hygiene: values emitted in OVER/XOVER rows must not
// contain the characters that structure the response.

var overviewSeparators = strings.NewReplacer(
	"\r", " ",
	"\n", " ",
	"\t", " ",
	"\x00", " ",
)

// SanitizeOverviewField replaces CR, LF, TAB and NUL with spaces and
// repairs the charset so the row stays one tab-separated line.
func SanitizeOverviewField(value string) string {
	return overviewSeparators.Replace(ConvertToUTF8(value))
}

// ConvertToUTF8 decodes RFC 2047 encoded-words and repairs legacy
// charsets so header values render as valid UTF-8.
func ConvertToUTF8(text string) string {
	decoder := mime.WordDecoder{}
	decoded, err := decoder.DecodeHeader(text)
	if err != nil {
		// Standard decoding chokes on charsets outside the stdlib
		// table; retry with the extended htmlindex set.
		decoded = decodeUnsupportedMIME(text)
	}

	if utf8.ValidString(decoded) {
		return decoded
	}

	// Raw 8-bit header, most likely Latin-1.
	latin1 := charmap.ISO8859_1.NewDecoder()
	result, _, err := transform.String(latin1, decoded)
	if err != nil {
		return strings.ToValidUTF8(decoded, "�")
	}
	return result
}

// mimeWordRegex matches an RFC 2047 encoded-word: =?charset?enc?text?=
var mimeWordRegex = regexp.MustCompile(`=\?([^?]+)\?([QqBb])\?([^?]*)\?=`)

// decodeUnsupportedMIME decodes encoded-words whose charsets the
// stdlib mime.WordDecoder does not know (ISO-8859-15 and friends).
func decodeUnsupportedMIME(text string) string {
	return mimeWordRegex.ReplaceAllStringFunc(text, func(match string) string {
		parts := mimeWordRegex.FindStringSubmatch(match)
		if len(parts) != 4 {
			return match
		}

		charset := strings.ToLower(strings.TrimSpace(parts[1]))
		var decoded []byte
		var err error
		switch strings.ToUpper(parts[2]) {
		case "B":
			decoded, err = base64.StdEncoding.DecodeString(parts[3])
		case "Q":
			qp := strings.ReplaceAll(parts[3], "_", " ")
			decoded, err = io.ReadAll(quotedprintable.NewReader(strings.NewReader(qp)))
		default:
			return match
		}
		if err != nil {
			return match
		}

		utf8Text, err := decodeCharsetToUTF8(decoded, charset)
		if err != nil {
			latin1 := charmap.ISO8859_1.NewDecoder()
			if result, _, fbErr := transform.String(latin1, string(decoded)); fbErr == nil {
				return result
			}
			return strings.ToValidUTF8(string(decoded), "�")
		}
		return utf8Text
	})
}

// decodeCharsetToUTF8 converts bytes from the named charset using the
// htmlindex table, which covers far more legacy charsets than the
// stdlib alone.
func decodeCharsetToUTF8(data []byte, charset string) (string, error) {
	if charset == "utf-8" || charset == "utf8" || charset == "us-ascii" || charset == "ascii" {
		return string(data), nil
	}
	enc, err := htmlindex.Get(charset)
	if err != nil || enc == nil {
		return "", fmt.Errorf("unsupported charset: %s", charset)
	}
	result, _, err := transform.String(enc.NewDecoder(), string(data))
	if err != nil {
		return "", fmt.Errorf("failed to decode from %s: %w", charset, err)
	}
	return result, nil
}
