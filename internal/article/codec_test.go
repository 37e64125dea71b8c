package article

import (
	"errors"
	"strings"
	"testing"
	"time"
)

var testNow = time.Date(2024, 5, 17, 12, 30, 0, 0, time.UTC)

func TestParseMinimal(t *testing.T) {
	raw := "From: a@b.invalid\r\nNewsgroups: misc.test\r\nSubject: hi\r\nMessage-ID: <t1@x>\r\n\r\nbody"
	a, err := Parse(raw, testNow)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if a.MessageID != "<t1@x>" {
		t.Errorf("MessageID = %q, want <t1@x>", a.MessageID)
	}
	if a.BodyText != "body" || a.Lines != 1 {
		t.Errorf("body = %q lines = %d", a.BodyText, a.Lines)
	}
	if groups := a.NewsgroupList(); len(groups) != 1 || groups[0] != "misc.test" {
		t.Errorf("NewsgroupList = %v", groups)
	}
}

func TestParseValidationOrder(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"bad header block", "not a header\r\n\r\nbody", "invalid header"},
		{"missing from", "Subject: hi\r\nNewsgroups: misc.test\r\n\r\nx", "From"},
		{"malformed from", "From: no-at-sign\r\nNewsgroups: misc.test\r\nSubject: s\r\n\r\nx", "From"},
		{"missing newsgroups", "From: a@b.invalid\r\nSubject: hi\r\n\r\nx", "Newsgroups"},
		{"missing subject", "From: a@b.invalid\r\nNewsgroups: misc.test\r\n\r\nx", "Subject"},
	}
	for _, tt := range tests {
		_, err := Parse(tt.raw, testNow)
		if !errors.Is(err, ErrPostingRejected) {
			t.Errorf("%s: err = %v, want ErrPostingRejected", tt.name, err)
			continue
		}
		if !strings.Contains(err.Error(), tt.want) {
			t.Errorf("%s: err = %v, want mention of %q", tt.name, err, tt.want)
		}
	}
}

func TestMessageIDPolicy(t *testing.T) {
	// Absent: generated under mcnttp.auto.
	a, err := Parse("From: a@b.invalid\r\nNewsgroups: misc.test\r\nSubject: s\r\n\r\nx", testNow)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !strings.HasSuffix(a.MessageID, "@"+DomainAuto+">") {
		t.Errorf("absent id: got %q, want @%s", a.MessageID, DomainAuto)
	}
	if !strings.Contains(a.RawHeaders, "Message-ID: "+a.MessageID) {
		t.Error("generated id not written back into RawHeaders")
	}

	// Malformed: regenerated under mcnttp.invalid.
	a, err = Parse("From: a@b.invalid\r\nNewsgroups: misc.test\r\nSubject: s\r\nMessage-ID: not valid\r\n\r\nx", testNow)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !strings.HasSuffix(a.MessageID, "@"+DomainInvalid+">") {
		t.Errorf("malformed id: got %q, want @%s", a.MessageID, DomainInvalid)
	}
	if strings.Contains(a.RawHeaders, "not valid") {
		t.Error("malformed id line should have been rewritten")
	}
}

func TestDateDefault(t *testing.T) {
	a, err := Parse("From: a@b.invalid\r\nNewsgroups: misc.test\r\nSubject: s\r\nMessage-ID: <d@x>\r\n\r\nx", testNow)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := "17 May 2024 12:30:00 +0000"
	if a.DateString != want {
		t.Errorf("DateString = %q, want %q", a.DateString, want)
	}
	if !strings.Contains(a.RawHeaders, "Date: "+want) {
		t.Error("defaulted Date not written into RawHeaders")
	}
	if !a.DateSent.Equal(testNow) {
		t.Errorf("DateSent = %v, want %v", a.DateSent, testNow)
	}
}

func TestParseDateFormats(t *testing.T) {
	tests := []string{
		"Fri, 17 May 2024 12:30:00 +0000",
		"Fri, 17 May 2024 14:30:00 +0200",
		"17 May 2024 12:30:00 +0000",
	}
	for _, in := range tests {
		got := ParseDate(in)
		if got.IsZero() {
			t.Errorf("ParseDate(%q) failed", in)
			continue
		}
		if !got.Equal(testNow) {
			t.Errorf("ParseDate(%q) = %v, want %v", in, got, testNow)
		}
	}
	if !ParseDate("yesterday").IsZero() {
		t.Error("garbage date should parse to zero time")
	}
}

func TestIdempotentRoundTrip(t *testing.T) {
	raw := "From: Some One <a@b.invalid>\r\nNewsgroups: misc.test\r\nSubject: folded\r\n subject\r\nMessage-ID: <r@x>\r\nDate: 17 May 2024 12:30:00 +0000\r\nOrganization: none\r\n\r\nline one\r\nline two"
	a, err := Parse(raw, testNow)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	head, _, _ := strings.Cut(raw, "\r\n\r\n")
	if a.RawHeaders != head {
		t.Errorf("RawHeaders changed on already-normalized input:\n got %q\nwant %q", a.RawHeaders, head)
	}
	if a.BodyText != "line one\r\nline two" {
		t.Errorf("BodyText = %q", a.BodyText)
	}
}

func TestSetAndRemoveHeader(t *testing.T) {
	raw := "From: a@b.invalid\r\nNewsgroups: misc.test\r\nSubject: s\r\nMessage-ID: <e@x>\r\nXref: old.example misc.test:4\r\n\r\nx"
	a, err := Parse(raw, testNow)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	SetHeader(a, "Xref", "news.example misc.test:9")
	if !strings.Contains(a.RawHeaders, "Xref: news.example misc.test:9") ||
		strings.Contains(a.RawHeaders, "old.example") {
		t.Errorf("SetHeader did not rewrite in place: %q", a.RawHeaders)
	}

	RemoveHeader(a, "Xref")
	if strings.Contains(a.RawHeaders, "Xref") {
		t.Errorf("RemoveHeader left the line behind: %q", a.RawHeaders)
	}
	if strings.Contains(a.RawHeaders, "\r\n\r\n") {
		t.Errorf("RemoveHeader left a blank line: %q", a.RawHeaders)
	}

	SetHeader(a, "Injection-Date", "17 May 2024 12:30:00 +0000")
	if !strings.HasSuffix(a.RawHeaders, "Injection-Date: 17 May 2024 12:30:00 +0000") {
		t.Errorf("SetHeader append failed: %q", a.RawHeaders)
	}

	if got := HeaderValue(a, "newsgroups"); got != "misc.test" {
		t.Errorf("HeaderValue(newsgroups) = %q", got)
	}
}

func TestValidFrom(t *testing.T) {
	valid := []string{
		"a@b.invalid",
		"Some One <user@example.org>",
		"a@b.invalid, c@d.invalid",
	}
	invalid := []string{
		"",
		"no-address-here",
		"<broken@",
	}
	for _, f := range valid {
		if !ValidFrom(f) {
			t.Errorf("ValidFrom(%q) = false, want true", f)
		}
	}
	for _, f := range invalid {
		if ValidFrom(f) {
			t.Errorf("ValidFrom(%q) = true, want false", f)
		}
	}
}
