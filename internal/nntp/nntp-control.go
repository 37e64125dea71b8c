package nntp

import (
	"log"
	"strings"
	"time"

	"github.com/go-while/go-mcnttp/internal/article"
	"github.com/go-while/go-mcnttp/internal/models"
)

// controlVerb extracts the lower-cased verb of a Control header.
func controlVerb(control string) string {
	fields := strings.Fields(control)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToLower(fields[0])
}

// controlAllowed gates a control verb on the session's capabilities.
// Anonymous sessions and unknown verbs are always denied.
func (c *ClientConnection) controlAllowed(verb string) bool {
	if c.principal == nil {
		return false
	}
	switch verb {
	case "cancel":
		return c.principal.CanCancel
	case "newgroup":
		return c.principal.CanCreateCatalogs
	case "rmgroup":
		return c.principal.CanDeleteCatalogs
	case "checkgroups":
		return c.principal.CanCheckCatalogs
	default:
		return false
	}
}

// dispatchControl applies the side effect of an already-stored control
// article. Permission was checked before storage; failures here are
// logged, the posting reply stays 240.
func (c *ClientConnection) dispatchControl(a *models.Article) {
	fields := strings.Fields(a.Control)
	verb := controlVerb(a.Control)

	switch verb {
	case "cancel":
		if len(fields) < 2 || !article.ValidMessageID(fields[1]) {
			log.Printf("Malformed cancel control from %s: %q", c.conn.RemoteAddr(), a.Control)
			return
		}
		n, err := c.server.DB.MarkCancelled(fields[1])
		if err != nil {
			log.Printf("Cancel of %s failed: %v", fields[1], err)
			return
		}
		// The cancel article itself goes down with its target.
		if _, err := c.server.DB.MarkCancelled(a.MessageID); err != nil {
			log.Printf("Self-cancel of %s failed: %v", a.MessageID, err)
		}
		if n > 0 {
			c.server.Stats.ArticleCancelled()
		}
		log.Printf("Cancelled %s (%d placements) by %s", fields[1], n, c.principal.Username)

	case "newgroup":
		if len(fields) < 2 || !strings.Contains(fields[1], ".") {
			log.Printf("Malformed newgroup control from %s: %q", c.conn.RemoteAddr(), a.Control)
			return
		}
		g := &models.Newsgroup{
			Name:        fields[1],
			Moderated:   len(fields) > 2 && strings.EqualFold(fields[2], "moderated"),
			CreatedAt:   time.Now().UTC(),
			CreatedBy:   c.principal.Username,
			Description: groupDescriptionFromBody(fields[1], a.BodyText),
		}
		if err := c.server.DB.CreateCatalog(g); err != nil {
			log.Printf("newgroup %s failed: %v", g.Name, err)
			return
		}
		log.Printf("Created catalog %s by %s", g.Name, c.principal.Username)

	case "rmgroup":
		if len(fields) < 2 {
			log.Printf("Malformed rmgroup control from %s: %q", c.conn.RemoteAddr(), a.Control)
			return
		}
		if err := c.server.DB.RemoveCatalog(fields[1]); err != nil {
			log.Printf("rmgroup %s failed: %v", fields[1], err)
			return
		}
		log.Printf("Removed catalog %s by %s", fields[1], c.principal.Username)

	case "checkgroups":
		// The catalog set is authoritative here; the directive is
		// acknowledged and logged for the operator.
		log.Printf("checkgroups control from %s (%d body lines), no action taken",
			c.principal.Username, a.Lines)
	}
}

// groupDescriptionFromBody pulls the one-line description out of a
// newsgroup control body of the classic form
// "For your newsgroups file:\n<name>\t<description>".
func groupDescriptionFromBody(name, body string) string {
	for _, line := range strings.Split(body, "\r\n") {
		rest, found := strings.CutPrefix(line, name)
		if !found {
			continue
		}
		if desc := strings.TrimSpace(rest); desc != "" {
			return desc
		}
	}
	return ""
}
