package nntp

import (
	"fmt"
	"strings"

	"github.com/go-while/go-mcnttp/internal/models"
	"github.com/go-while/go-mcnttp/internal/wildmat"
)

// handleOver serves OVER and XOVER: one tab-separated overview row per
// selected article.
func (c *ClientConnection) handleOver(args []string) error {
	if len(args) > 1 {
		return c.sendResponse(501, "Syntax error")
	}

	// Message-id form: one row, number 0 unless the article sits in
	// the current catalog.
	if len(args) == 1 && strings.HasPrefix(args[0], "<") {
		a, num, _, err := c.lookupByMessageID(args[0])
		if err != nil {
			return c.sendStoreError("OVER", err)
		}
		if a == nil {
			return c.sendResponse(430, "No article with that message-id")
		}
		row := overviewFromArticle(a, num)
		return c.sendMultiline(224, "Overview information follows", []string{formatOverviewRow(row)})
	}

	if c.currentGroup == nil {
		return c.sendResponse(412, "No newsgroup selected")
	}

	var r wildmat.ArticleRange
	if len(args) == 1 {
		parsed, ok := wildmat.ParseRange(args[0])
		if !ok {
			return c.sendResponse(501, "Syntax error in range")
		}
		r = parsed
	} else {
		if c.currentArticle == 0 {
			return c.sendResponse(420, "Current article number is invalid")
		}
		r = wildmat.ArticleRange{Low: c.currentArticle, High: c.currentArticle}
	}

	rows, err := c.server.DB.Overviews(c.currentGroup, r)
	if err != nil {
		return c.sendStoreError("OVER", err)
	}
	if len(rows) == 0 {
		if len(args) == 0 {
			return c.sendResponse(420, "Current article number is invalid")
		}
		return c.sendResponse(423, "No articles in that range")
	}

	lines := make([]string, len(rows))
	for i, row := range rows {
		lines[i] = formatOverviewRow(row)
	}
	return c.sendMultiline(224, "Overview information follows", lines)
}

// overviewFromArticle builds an overview row straight from an article,
// used for the message-id form. The byte count doubles the stored body
// length, like the precomputed rows.
func overviewFromArticle(a *models.Article, num int64) *models.Overview {
	return &models.Overview{
		ArticleNum: num,
		Subject:    a.Subject,
		FromHeader: a.FromHeader,
		DateString: a.DateString,
		MessageID:  a.MessageID,
		References: a.References,
		Bytes:      a.Bytes * 2,
		Lines:      a.Lines,
	}
}

func formatOverviewRow(o *models.Overview) string {
	return fmt.Sprintf("%d\t%s\t%s\t%s\t%s\t%s\t%d\t%d",
		o.ArticleNum,
		models.SanitizeOverviewField(o.Subject),
		models.SanitizeOverviewField(o.FromHeader),
		models.SanitizeOverviewField(o.DateString),
		models.SanitizeOverviewField(o.MessageID),
		models.SanitizeOverviewField(o.References),
		o.Bytes, o.Lines)
}
