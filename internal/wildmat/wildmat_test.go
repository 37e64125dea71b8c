package wildmat

import (
	"testing"
)

func TestMatchBasics(t *testing.T) {
	tests := []struct {
		name    string
		wildmat string
		want    bool
	}{
		{"comp.lang.go", "*", true},
		{"a", "*", true},
		{"comp.lang.go", "comp.*", true},
		{"comp.", "comp.*", false}, // a run is at least one character
		{"comp.lang.go", "comp.lang.g?", true},
		{"comp.lang.go", "comp.lang.??", true},
		{"comp.lang.go", "comp.lang.???", false},
		{"rec.autos", "comp.*", false},
		{"misc.test", "misc.test", true},
		{"misc.test", "misc.tes", false},
		{"alt.binaries.x", "alt.[ab]inaries.*", true},
		{"alt.cinaries.x", "alt.[ab]inaries.*", false},
		{"news.admin9", "news.admin[0-9]", true},
		{"news.adminx", "news.admin[0-9]", false},
	}
	for _, tt := range tests {
		if got := Match(tt.name, tt.wildmat); got != tt.want {
			t.Errorf("Match(%q, %q) = %v, want %v", tt.name, tt.wildmat, got, tt.want)
		}
	}
}

func TestMatchNegation(t *testing.T) {
	// "!*" applies to exactly the names "*" does not match: the empty one.
	if !Match("", "!*") {
		t.Error("Match(\"\", \"!*\") = false, want true")
	}
	for _, name := range []string{"a", "misc.test", "comp.lang.go"} {
		if Match(name, "!*") {
			t.Errorf("Match(%q, \"!*\") = true, want false", name)
		}
	}

	// Last match wins: the exclusion removes a.b but nothing else
	// matched by the leading pattern.
	if Match("a.b", "a.*,!a.b") {
		t.Error("a.b should be excluded by !a.b")
	}
	if !Match("a.bc", "a.*,!a.b") {
		t.Error("a.bc should still match a.*")
	}
}

func TestMatchCommaLists(t *testing.T) {
	wm := "comp.*,rec.*,!rec.autos"
	tests := []struct {
		name string
		want bool
	}{
		{"comp.lang.go", true},
		{"rec.crafts", true},
		{"rec.autos", false},
	}
	for _, tt := range tests {
		if got := Match(tt.name, wm); got != tt.want {
			t.Errorf("Match(%q, %q) = %v, want %v", tt.name, wm, got, tt.want)
		}
	}
}

func TestParseRange(t *testing.T) {
	tests := []struct {
		token string
		low   int64
		high  int64
		ok    bool
	}{
		{"5", 5, 5, true},
		{"5-", 5, Unbounded, true},
		{"5-9", 5, 9, true},
		{"9-5", 0, 0, false},
		{"", 0, 0, false},
		{"-5", 0, 0, false},
		{"x", 0, 0, false},
		{"5-x", 0, 0, false},
		{"1-1", 1, 1, true},
	}
	for _, tt := range tests {
		r, ok := ParseRange(tt.token)
		if ok != tt.ok {
			t.Errorf("ParseRange(%q) ok = %v, want %v", tt.token, ok, tt.ok)
			continue
		}
		if !ok {
			continue
		}
		if r.Low != tt.low || r.High != tt.high {
			t.Errorf("ParseRange(%q) = (%d,%d), want (%d,%d)", tt.token, r.Low, r.High, tt.low, tt.high)
		}
	}
}

func TestClamp(t *testing.T) {
	r, _ := ParseRange("3-")
	r = r.Clamp(7)
	if r.Low != 3 || r.High != 7 {
		t.Errorf("Clamp: got (%d,%d), want (3,7)", r.Low, r.High)
	}
	r, _ = ParseRange("2-4")
	r = r.Clamp(100)
	if r.High != 4 {
		t.Errorf("Clamp must not widen a bounded range: got high=%d", r.High)
	}
}
