package nntp

import (
	"fmt"

	"github.com/go-while/go-mcnttp/internal/wildmat"
)

// handleGroup selects the current catalog and resets the current
// article number to its low watermark.
func (c *ClientConnection) handleGroup(args []string) error {
	if len(args) != 1 {
		return c.sendResponse(501, "Syntax error")
	}
	g, err := c.server.DB.LookupCatalog(args[0], c.principal)
	if err != nil {
		if isNotFound(err) {
			return c.sendResponse(411, "No such newsgroup")
		}
		return c.sendStoreError("GROUP", err)
	}

	c.currentGroup = g
	if g.MessageCount > 0 {
		c.currentArticle = g.LowWater
	} else {
		c.currentArticle = 0
	}
	return c.sendResponse(211, "%d %d %d %s", g.MessageCount, g.LowWater, g.HighWater, g.Name)
}

// handleListGroup is GROUP plus the article numbers, one per line.
func (c *ClientConnection) handleListGroup(args []string) error {
	g := c.currentGroup
	r := wildmat.ArticleRange{Low: 1, High: wildmat.Unbounded}

	if len(args) > 2 {
		return c.sendResponse(501, "Syntax error")
	}
	if len(args) >= 1 {
		looked, err := c.server.DB.LookupCatalog(args[0], c.principal)
		if err != nil {
			if isNotFound(err) {
				return c.sendResponse(411, "No such newsgroup")
			}
			return c.sendStoreError("LISTGROUP", err)
		}
		g = looked
	}
	if g == nil {
		return c.sendResponse(412, "No newsgroup selected")
	}
	if len(args) == 2 {
		parsed, ok := wildmat.ParseRange(args[1])
		if !ok {
			return c.sendResponse(501, "Syntax error in range")
		}
		r = parsed
	}

	nums, err := c.server.DB.ArticleNumbers(g, r)
	if err != nil {
		return c.sendStoreError("LISTGROUP", err)
	}

	// LISTGROUP with a group argument also selects it.
	c.currentGroup = g
	if g.MessageCount > 0 {
		c.currentArticle = g.LowWater
	} else {
		c.currentArticle = 0
	}

	lines := make([]string, len(nums))
	for i, n := range nums {
		lines[i] = fmt.Sprintf("%d", n)
	}
	head := fmt.Sprintf("%d %d %d %s list follows", g.MessageCount, g.LowWater, g.HighWater, g.Name)
	return c.sendMultiline(211, head, lines)
}

// handleLastNext moves the current article pointer to the adjacent
// article in the current catalog. The pointer does not move when the
// boundary is hit.
func (c *ClientConnection) handleLastNext(forward bool) error {
	if c.currentGroup == nil {
		return c.sendResponse(412, "No newsgroup selected")
	}
	if c.currentArticle == 0 {
		return c.sendResponse(420, "Current article number is invalid")
	}

	var num int64
	var msgid string
	var err error
	if forward {
		num, msgid, err = c.server.DB.NextArticle(c.currentGroup, c.currentArticle)
	} else {
		num, msgid, err = c.server.DB.PrevArticle(c.currentGroup, c.currentArticle)
	}
	if err != nil {
		if isNotFound(err) {
			if forward {
				return c.sendResponse(421, "No next article in this group")
			}
			return c.sendResponse(422, "No previous article in this group")
		}
		return c.sendStoreError("LAST/NEXT", err)
	}

	c.currentArticle = num
	return c.sendResponse(223, "%d %s", num, msgid)
}
