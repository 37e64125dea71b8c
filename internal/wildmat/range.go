package wildmat

import (
	"strconv"
	"strings"
)

// Unbounded marks the high end of an open range like "3-".
const Unbounded int64 = 1<<63 - 1

// ArticleRange is a parsed NNTP range token. Both ends are inclusive.
type ArticleRange struct {
	Low  int64
	High int64
}

// ParseRange parses the NNTP range forms "n", "n-" and "n-m".
// "n-" yields High == Unbounded; callers clamp to the group's high
// watermark. Malformed tokens (including "n-m" with n > m) return false.
func ParseRange(token string) (ArticleRange, bool) {
	if token == "" {
		return ArticleRange{}, false
	}
	dash := strings.IndexByte(token, '-')
	if dash < 0 {
		n, err := strconv.ParseInt(token, 10, 64)
		if err != nil || n < 0 {
			return ArticleRange{}, false
		}
		return ArticleRange{Low: n, High: n}, true
	}

	low, err := strconv.ParseInt(token[:dash], 10, 64)
	if err != nil || low < 0 {
		return ArticleRange{}, false
	}
	rest := token[dash+1:]
	if rest == "" {
		return ArticleRange{Low: low, High: Unbounded}, true
	}
	high, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || high < low {
		return ArticleRange{}, false
	}
	return ArticleRange{Low: low, High: high}, true
}

// Clamp bounds an open range to the given high watermark.
func (r ArticleRange) Clamp(high int64) ArticleRange {
	if r.High == Unbounded || r.High > high {
		r.High = high
	}
	return r
}

// Contains reports whether n falls inside the range.
func (r ArticleRange) Contains(n int64) bool {
	return n >= r.Low && n <= r.High
}
