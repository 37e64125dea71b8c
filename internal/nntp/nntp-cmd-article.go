package nntp

import (
	"strconv"
	"strings"

	"github.com/go-while/go-mcnttp/internal/config"
	"github.com/go-while/go-mcnttp/internal/models"
)

// handleArticleCmd serves ARTICLE, HEAD, BODY and STAT. The argument
// is a message-id, an article number in the current catalog, or absent
// (current article).
func (c *ClientConnection) handleArticleCmd(verb string, args []string) error {
	if len(args) > 1 {
		return c.sendResponse(501, "Syntax error")
	}

	var a *models.Article
	var num int64

	switch {
	case len(args) == 1 && strings.HasPrefix(args[0], "<"):
		found, foundNum, refs, err := c.lookupByMessageID(args[0])
		if err != nil {
			return c.sendStoreError(verb, err)
		}
		if found == nil {
			return c.sendResponse(430, "No article with that message-id")
		}
		// Without a selected catalog the number comes from the
		// article's own placement.
		if foundNum == 0 && c.currentGroup == nil {
			foundNum = placementNumber(c.principal, refs)
		}
		a, num = found, foundNum

	case len(args) == 1:
		n, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || n < 1 {
			return c.sendResponse(501, "Syntax error")
		}
		if c.currentGroup == nil {
			return c.sendResponse(412, "No newsgroup selected")
		}
		a, err = c.server.DB.GetArticle(c.currentGroup, n)
		if err != nil {
			if isNotFound(err) {
				return c.sendResponse(423, "No article with that number")
			}
			return c.sendStoreError(verb, err)
		}
		c.currentArticle = n
		num = n

	default:
		if c.currentGroup == nil {
			return c.sendResponse(412, "No newsgroup selected")
		}
		if c.currentArticle == 0 {
			return c.sendResponse(420, "Current article number is invalid")
		}
		var err error
		a, err = c.server.DB.GetArticle(c.currentGroup, c.currentArticle)
		if err != nil {
			if isNotFound(err) {
				return c.sendResponse(420, "Current article number is invalid")
			}
			return c.sendStoreError(verb, err)
		}
		num = c.currentArticle
	}

	switch verb {
	case "STAT":
		return c.sendResponse(223, "%d %s", num, a.MessageID)
	case "HEAD":
		return c.sendMultiline(221, statLine(num, a.MessageID), headerLines(a))
	case "BODY":
		return c.sendMultiline(222, statLine(num, a.MessageID), a.BodyLines())
	default:
		lines := headerLines(a)
		lines = append(lines, "")
		lines = append(lines, a.BodyLines()...)
		return c.sendMultiline(220, statLine(num, a.MessageID), lines)
	}
}

func statLine(num int64, msgid string) string {
	return strconv.FormatInt(num, 10) + " " + msgid
}

func headerLines(a *models.Article) []string {
	if a.RawHeaders == "" {
		return []string{}
	}
	return strings.Split(a.RawHeaders, config.CRLF)
}

// lookupByMessageID fetches an article by message-id and decides
// whether this session may see it. An article is visible when any of
// its placements is live, or when the principal holds the capability
// matching a cancelled or pending placement. The returned number is
// the article's number in the current catalog, 0 otherwise; callers
// that need a number without a selected catalog fall back to
// placementNumber on the returned refs.
func (c *ClientConnection) lookupByMessageID(msgid string) (*models.Article, int64, []*models.ArticleRef, error) {
	a, refs, err := c.server.DB.GetArticleByID(msgid)
	if err != nil {
		if isNotFound(err) {
			return nil, 0, nil, nil
		}
		return nil, 0, nil, err
	}

	visible := false
	for _, ref := range refs {
		if refVisible(c.principal, ref) {
			visible = true
		}
	}
	if !visible {
		return nil, 0, nil, nil
	}

	var num int64
	if c.currentGroup != nil {
		for _, ref := range refs {
			if !strings.EqualFold(ref.Newsgroup, c.currentGroup.BaseName) {
				continue
			}
			if refInView(ref, c.currentGroup) {
				num = ref.ArticleNum
			}
		}
	}
	return a, num, refs, nil
}

// refVisible reports whether the principal may see this placement.
func refVisible(p *models.Principal, ref *models.ArticleRef) bool {
	switch {
	case !ref.Cancelled && !ref.Pending:
		return true
	case ref.Cancelled:
		return p != nil && p.CanCancel
	default:
		return p.CanApprove(ref.Newsgroup)
	}
}

// placementNumber picks the article's number from its placements when
// no catalog is selected: the first live placement wins, then the
// first the principal may see by capability.
func placementNumber(p *models.Principal, refs []*models.ArticleRef) int64 {
	for _, ref := range refs {
		if !ref.Cancelled && !ref.Pending {
			return ref.ArticleNum
		}
	}
	for _, ref := range refs {
		if refVisible(p, ref) {
			return ref.ArticleNum
		}
	}
	return 0
}

// refInView reports whether a placement belongs to the catalog's view.
func refInView(ref *models.ArticleRef, g *models.Newsgroup) bool {
	switch {
	case g.ViewCancelled:
		return ref.Cancelled
	case g.ViewPending:
		return ref.Pending && !ref.Cancelled
	default:
		return !ref.Cancelled && !ref.Pending
	}
}
