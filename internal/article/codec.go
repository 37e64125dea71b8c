// Package article converts posted messages between their on-wire form
// and the structured Article record, applying the header hygiene rules
// of RFC 5536/5537 at injection time.
package article

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/go-while/go-mcnttp/internal/headers"
	"github.com/go-while/go-mcnttp/internal/models"
)

// Domains for generated message identifiers.
const (
	DomainAuto    = "mcnttp.auto"    // Message-ID was absent
	DomainInvalid = "mcnttp.invalid" // Message-ID was malformed
)

// DateLayout is the format written into a defaulted Date header.
const DateLayout = "02 Jan 2006 15:04:05 +0000"

// ErrPostingRejected covers every validation failure of an incoming
// posting; the wrapping message names the failed check.
var ErrPostingRejected = errors.New("posting rejected")

// msgIDRegex is the Usenet Message-ID grammar: <local@domain>, no
// whitespace or angle brackets inside either part.
var msgIDRegex = regexp.MustCompile(`^<[^<>@\s]+@[^<>@\s]+>$`)

// fromRegex accepts "Display Name <box@domain>" or a bare address,
// optionally as a comma-separated list.
var fromRegex = regexp.MustCompile(
	`^((\s*\w+)*\s+<[^@]+@[^>]+>|[^@<>]+@[^>]+)(\s*,\s*((\s*\w+)*\s+<[^@]+@[^>]+>|[^@<>]+@[^>]+))*$`)

// dateLayouts are the formats seen in the wild on Usenet Date headers.
var dateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"2 Jan 2006 15:04:05 -0700",
	"02 Jan 2006 15:04:05 -0700",
	time.RFC822,
	time.RFC822Z,
}

// ValidMessageID reports whether the token satisfies the Message-ID
// grammar.
func ValidMessageID(id string) bool {
	return msgIDRegex.MatchString(id)
}

// ValidFrom reports whether the From header satisfies the RFC 5322
// §3.4 address forms this server accepts.
func ValidFrom(from string) bool {
	return fromRegex.MatchString(from)
}

// GenerateMessageID returns a fresh identifier <32hex@domain>.
func GenerateMessageID(domain string) string {
	hex := strings.ReplaceAll(uuid.New().String(), "-", "")
	return "<" + hex + "@" + domain + ">"
}

// ParseDate parses a Date header into UTC, trying the layouts common
// on Usenet. The zero time is returned when nothing fits.
func ParseDate(value string) time.Time {
	value = strings.TrimSpace(value)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// Parse converts a raw posted message into an Article. The input is
// the accumulated POST payload: CRLF-separated lines, already
// de-stuffed, without the terminating "." line. Validation follows
// the injection order; the first failure wins.
func Parse(raw string, now time.Time) (*models.Article, error) {
	rawHead, body := splitMessage(raw)

	block, err := headers.Parse(rawHead)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPostingRejected, err)
	}

	from := block.Get("From")
	if from == "" || !ValidFrom(from) {
		return nil, fmt.Errorf("%w: missing or malformed From", ErrPostingRejected)
	}
	if !block.Has("Newsgroups") || block.Get("Newsgroups") == "" {
		return nil, fmt.Errorf("%w: missing Newsgroups", ErrPostingRejected)
	}
	if !block.Has("Subject") {
		return nil, fmt.Errorf("%w: missing Subject", ErrPostingRejected)
	}

	a := &models.Article{
		Subject:       block.Get("Subject"),
		FromHeader:    from,
		Newsgroups:    block.Get("Newsgroups"),
		Path:          block.Get("Path"),
		DateString:    block.Get("Date"),
		References:    block.Get("References"),
		Control:       block.Get("Control"),
		Supersedes:    block.Get("Supersedes"),
		Approved:      block.Get("Approved"),
		Distribution:  block.Get("Distribution"),
		InjectionDate: block.Get("Injection-Date"),
		FollowupTo:    block.Get("Followup-To"),
		Xref:          block.Get("Xref"),
		RawHeaders:    strings.TrimSuffix(block.String(), "\r\n"),
		BodyText:      body,
		Bytes:         len(body),
		Lines:         countLines(body),
	}

	// Message-ID policy: keep a valid identifier, replace a malformed
	// one under mcnttp.invalid, mint one under mcnttp.auto if absent.
	// The final identifier is always written back into RawHeaders.
	switch id := block.Get("Message-ID"); {
	case id == "" && !block.Has("Message-ID"):
		a.MessageID = GenerateMessageID(DomainAuto)
	case ValidMessageID(id):
		a.MessageID = id
	default:
		a.MessageID = GenerateMessageID(DomainInvalid)
	}
	SetHeader(a, "Message-ID", a.MessageID)

	if a.DateString == "" {
		a.DateString = now.UTC().Format(DateLayout)
		SetHeader(a, "Date", a.DateString)
		a.DateSent = now.UTC().Truncate(time.Second)
	} else {
		a.DateSent = ParseDate(a.DateString)
	}

	return a, nil
}

// splitMessage separates the header block from the body at the first
// blank line. Lines may arrive CRLF or bare-LF separated; the body is
// normalized to CRLF.
func splitMessage(raw string) (rawHead, body string) {
	normalized := strings.ReplaceAll(raw, "\r\n", "\n")
	if idx := strings.Index(normalized, "\n\n"); idx >= 0 {
		rawHead = strings.ReplaceAll(normalized[:idx], "\n", "\r\n")
		body = strings.ReplaceAll(normalized[idx+2:], "\n", "\r\n")
		return rawHead, body
	}
	return strings.ReplaceAll(normalized, "\n", "\r\n"), ""
}

func countLines(body string) int {
	if body == "" {
		return 0
	}
	return strings.Count(body, "\r\n") + 1
}

// SetHeader rewrites (or appends) a header line inside RawHeaders,
// preserving every other byte of the block.
func SetHeader(a *models.Article, name, value string) {
	line := name + ": " + value
	block, err := headers.Parse(a.RawHeaders)
	if err != nil || !block.Has(name) {
		if a.RawHeaders == "" {
			a.RawHeaders = line
		} else {
			a.RawHeaders += "\r\n" + line
		}
		return
	}
	a.RawHeaders = strings.Replace(a.RawHeaders, block.RawLine(name), line, 1)
}

// RemoveHeader deletes a header line (with its continuations) from
// RawHeaders. Removing an absent header is a no-op.
func RemoveHeader(a *models.Article, name string) {
	block, err := headers.Parse(a.RawHeaders)
	if err != nil || !block.Has(name) {
		return
	}
	raw := block.RawLine(name)
	a.RawHeaders = strings.Replace(a.RawHeaders, raw+"\r\n", "", 1)
	// The header may have been the last line, without a trailing CRLF.
	a.RawHeaders = strings.TrimSuffix(strings.Replace(a.RawHeaders, raw, "", 1), "\r\n")
}

// HeaderValue extracts an arbitrary header from RawHeaders, for HDR
// and XPAT on headers outside the tracked set.
func HeaderValue(a *models.Article, name string) string {
	block, err := headers.Parse(a.RawHeaders)
	if err != nil {
		return ""
	}
	return block.Get(name)
}
