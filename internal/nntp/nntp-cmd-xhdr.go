package nntp

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-while/go-mcnttp/internal/article"
	"github.com/go-while/go-mcnttp/internal/models"
	"github.com/go-while/go-mcnttp/internal/wildmat"
)

// handleHdr serves HDR (225) and XHDR (221): one "number value" line
// per selected article for a single header.
func (c *ClientConnection) handleHdr(code int, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return c.sendResponse(501, "Syntax error")
	}
	rangeArg := ""
	if len(args) == 2 {
		rangeArg = args[1]
	}
	rows, errResp := c.collectHeaderRows(args[0], rangeArg)
	if errResp != nil {
		return errResp()
	}
	return c.sendMultiline(code, "Header information follows", rows)
}

// handleXPat is HDR filtered by one or more wildmats on the value.
func (c *ClientConnection) handleXPat(args []string) error {
	if len(args) < 3 {
		return c.sendResponse(501, "Syntax error")
	}
	rows, errResp := c.collectHeaderRows(args[0], args[1])
	if errResp != nil {
		return errResp()
	}
	patterns := args[2:]
	var filtered []string
	for _, row := range rows {
		_, value, _ := strings.Cut(row, " ")
		if wildmat.MatchAny(value, patterns) {
			filtered = append(filtered, row)
		}
	}
	return c.sendMultiline(221, "Header information follows", filtered)
}

// collectHeaderRows resolves the range-or-id argument and builds the
// "number value" rows. A non-nil errResp is a deferred error reply to
// send instead.
func (c *ClientConnection) collectHeaderRows(header, rangeArg string) ([]string, func() error) {
	// Message-id form: number is 0 unless in the current catalog.
	if strings.HasPrefix(rangeArg, "<") {
		a, num, _, err := c.lookupByMessageID(rangeArg)
		if err != nil {
			return nil, func() error { return c.sendStoreError("HDR", err) }
		}
		if a == nil {
			return nil, func() error { return c.sendResponse(430, "No article with that message-id") }
		}
		return []string{fmt.Sprintf("%d %s", num, headerValueFor(a, header))}, nil
	}

	if c.currentGroup == nil {
		return nil, func() error { return c.sendResponse(412, "No newsgroup selected") }
	}

	var r wildmat.ArticleRange
	if rangeArg == "" {
		if c.currentArticle == 0 {
			return nil, func() error { return c.sendResponse(420, "Current article number is invalid") }
		}
		r = wildmat.ArticleRange{Low: c.currentArticle, High: c.currentArticle}
	} else {
		parsed, ok := wildmat.ParseRange(rangeArg)
		if !ok {
			return nil, func() error { return c.sendResponse(501, "Syntax error in range") }
		}
		r = parsed
	}

	arts, err := c.server.DB.RangeArticles(c.currentGroup, r)
	if err != nil {
		return nil, func() error { return c.sendStoreError("HDR", err) }
	}
	if len(arts) == 0 {
		if rangeArg == "" {
			return nil, func() error { return c.sendResponse(420, "Current article number is invalid") }
		}
		return nil, func() error { return c.sendResponse(423, "No articles in that range") }
	}

	rows := make([]string, len(arts))
	for i, na := range arts {
		rows[i] = fmt.Sprintf("%d %s", na.Num, headerValueFor(na.Article, header))
	}
	return rows, nil
}

// headerValueFor extracts a header value for HDR/XPAT. The tracked
// fields answer directly; anything else is parsed out of RawHeaders.
// The metadata pseudo-headers :bytes and :lines are supported too.
func headerValueFor(a *models.Article, header string) string {
	var value string
	switch strings.ToLower(header) {
	case ":bytes":
		return strconv.Itoa(a.Bytes * 2)
	case ":lines":
		return strconv.Itoa(a.Lines)
	case "subject":
		value = a.Subject
	case "from":
		value = a.FromHeader
	case "date":
		value = a.DateString
	case "message-id":
		value = a.MessageID
	case "references":
		value = a.References
	case "newsgroups":
		value = a.Newsgroups
	case "path":
		value = a.Path
	case "control":
		value = a.Control
	case "supersedes":
		value = a.Supersedes
	case "approved":
		value = a.Approved
	case "distribution":
		value = a.Distribution
	case "injection-date":
		value = a.InjectionDate
	case "followup-to":
		value = a.FollowupTo
	case "xref":
		value = a.Xref
	default:
		value = article.HeaderValue(a, header)
	}
	return models.SanitizeOverviewField(value)
}
