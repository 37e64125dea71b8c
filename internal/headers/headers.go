// Package headers parses RFC 5536 article header blocks while keeping
// the exact wire bytes around, so that injection-time edits can remove
// or rewrite a header line without disturbing the rest of the block.
package headers

import (
	"errors"
	"strings"
)

// ErrInvalidHeader is returned when a line in the header block is
// neither a "Name: value" line nor a folded continuation line.
var ErrInvalidHeader = errors.New("invalid header line")

// Header is a single parsed header. Value has continuation lines
// unfolded with a single space. Raw holds the original line(s) exactly
// as received, CRLF separated, without a trailing CRLF.
type Header struct {
	Name  string
	Value string
	Raw   string
}

// Block is an ordered header block with case-insensitive lookup.
type Block struct {
	Headers []*Header
	byName  map[string][]*Header
}

// validHeaderName checks one or more printable ASCII characters
// (0x21-0x7E) excluding the colon.
func validHeaderName(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		ch := name[i]
		if ch < 0x21 || ch > 0x7e || ch == ':' {
			return false
		}
	}
	return true
}

// Parse parses a raw header block (CRLF or LF separated lines, no
// terminating blank line required). A line starting with space or tab
// continues the previous header; its leading whitespace collapses to a
// single space in the unfolded value.
func Parse(raw string) (*Block, error) {
	block := &Block{byName: make(map[string][]*Header)}

	var current *Header
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if line == "" {
			continue
		}
		if line[0] == ' ' || line[0] == '\t' {
			if current == nil {
				return nil, ErrInvalidHeader
			}
			current.Value += " " + strings.TrimLeft(line, " \t")
			current.Raw += "\r\n" + line
			continue
		}

		idx := strings.Index(line, ": ")
		name := ""
		value := ""
		if idx < 0 {
			// Allow a bare "Name:" with empty value.
			if !strings.HasSuffix(line, ":") {
				return nil, ErrInvalidHeader
			}
			name = line[:len(line)-1]
		} else {
			name = line[:idx]
			value = line[idx+2:]
		}
		if !validHeaderName(name) {
			return nil, ErrInvalidHeader
		}

		current = &Header{Name: name, Value: value, Raw: line}
		block.Headers = append(block.Headers, current)
		key := strings.ToLower(name)
		block.byName[key] = append(block.byName[key], current)
	}
	return block, nil
}

// Get returns the unfolded value of the first header with the given
// name (case-insensitive), or "" if absent.
func (b *Block) Get(name string) string {
	if h := b.first(name); h != nil {
		return h.Value
	}
	return ""
}

// Has reports whether a header with the given name is present.
func (b *Block) Has(name string) bool {
	return b.first(name) != nil
}

// RawLine returns the original wire line(s) of the first header with
// the given name, for exact removal or replacement.
func (b *Block) RawLine(name string) string {
	if h := b.first(name); h != nil {
		return h.Raw
	}
	return ""
}

func (b *Block) first(name string) *Header {
	hs := b.byName[strings.ToLower(name)]
	if len(hs) == 0 {
		return nil
	}
	return hs[0]
}

// String re-serializes the block from the stored raw lines. The result
// reproduces the original bytes up to CRLF line termination.
func (b *Block) String() string {
	var sb strings.Builder
	for _, h := range b.Headers {
		sb.WriteString(h.Raw)
		sb.WriteString("\r\n")
	}
	return sb.String()
}
