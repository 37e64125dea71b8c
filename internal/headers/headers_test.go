package headers

import (
	"errors"
	"testing"
)

func TestParseSimple(t *testing.T) {
	raw := "From: a@b.invalid\r\nNewsgroups: misc.test\r\nSubject: hi\r\n"
	b, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := b.Get("from"); got != "a@b.invalid" {
		t.Errorf("Get(from) = %q", got)
	}
	if got := b.Get("SUBJECT"); got != "hi" {
		t.Errorf("Get(SUBJECT) = %q", got)
	}
	if !b.Has("Newsgroups") || b.Has("References") {
		t.Error("Has() gave wrong presence")
	}
	if len(b.Headers) != 3 {
		t.Errorf("want 3 headers, got %d", len(b.Headers))
	}
}

func TestParseFolding(t *testing.T) {
	raw := "Subject: a very\r\n\tlong subject\r\n  over three lines\r\n"
	b, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := "a very long subject over three lines"
	if got := b.Get("Subject"); got != want {
		t.Errorf("unfolded value = %q, want %q", got, want)
	}
	// Raw keeps the folded wire form for exact removal.
	wantRaw := "Subject: a very\r\n\tlong subject\r\n  over three lines"
	if got := b.RawLine("Subject"); got != wantRaw {
		t.Errorf("RawLine = %q, want %q", got, wantRaw)
	}
}

func TestParseInvalid(t *testing.T) {
	for _, raw := range []string{
		"\tleading continuation\r\n",
		"No Colon Here\r\n",
		"Bad Name: value\r\n", // space inside the header name
		": empty name\r\n",
	} {
		if _, err := Parse(raw); !errors.Is(err, ErrInvalidHeader) {
			t.Errorf("Parse(%q) err = %v, want ErrInvalidHeader", raw, err)
		}
	}
}

func TestParseEmptyValue(t *testing.T) {
	b, err := Parse("X-Empty:\r\nX-Space: \r\n")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if b.Get("X-Empty") != "" || b.Get("X-Space") != "" {
		t.Error("empty values should parse to empty strings")
	}
}

func TestRoundTrip(t *testing.T) {
	raw := "From: a@b.invalid\r\nSubject: folded\r\n over two lines\r\nMessage-ID: <t@x>\r\n"
	b, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := b.String(); got != raw {
		t.Errorf("round trip mismatch:\n got %q\nwant %q", got, raw)
	}
}
