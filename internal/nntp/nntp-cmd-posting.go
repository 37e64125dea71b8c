package nntp

import (
	"log"
	"strings"
	"time"

	"github.com/go-while/go-mcnttp/internal/article"
	"github.com/go-while/go-mcnttp/internal/config"
	"github.com/go-while/go-mcnttp/internal/database"
	"github.com/go-while/go-mcnttp/internal/models"
)

// handlePost enters the Posting state: a continuation consumes every
// line until the lone dot, then the pipeline runs on the buffer.
func (c *ClientConnection) handlePost() error {
	if !c.server.Config.Server.NNTP.AllowPosting {
		return c.sendResponse(440, "Posting not allowed")
	}
	if err := c.sendResponse(340, "Send article to be posted, end with <CR-LF>.<CR-LF>"); err != nil {
		return err
	}

	maxSize := c.server.Config.Server.NNTP.MaxArtSize
	if maxSize <= 0 {
		maxSize = config.DefaultMaxArticleSize
	}

	var buf strings.Builder
	overflow := false

	c.inProcess = func(line string) (lineResult, error) {
		if line == config.DOT {
			if overflow {
				return lineDone, c.sendResponse(441, "Posting failed (article too large)")
			}
			return lineDone, c.processPosting(buf.String())
		}
		// Undo dot-stuffing on body lines.
		if strings.HasPrefix(line, "..") {
			line = line[1:]
		}
		if buf.Len()+len(line)+2 > maxSize {
			overflow = true
			return lineContinue, nil
		}
		buf.WriteString(line)
		buf.WriteString(config.CRLF)
		return lineContinue, nil
	}
	return nil
}

// processPosting runs the acceptance pipeline on a complete posting.
// Every reply it sends is terminal for this posting; returned errors
// are write failures only.
func (c *ClientConnection) processPosting(raw string) error {
	now := time.Now().UTC()
	a, err := article.Parse(strings.TrimSuffix(raw, config.CRLF), now)
	if err != nil {
		log.Printf("Posting rejected from %s: %v", c.conn.RemoteAddr(), err)
		return c.sendResponse(441, "Posting failed")
	}

	// Header hygiene by capability.
	if c.principal == nil {
		article.RemoveHeader(a, "Approved")
		a.Approved = ""
	}
	if c.principal == nil || !c.principal.CanCancel {
		article.RemoveHeader(a, "Supersedes")
		a.Supersedes = ""
	}
	if c.principal == nil || !c.principal.CanInject {
		a.InjectionDate = now.Format(article.DateLayout)
		article.SetHeader(a, "Injection-Date", a.InjectionDate)
		article.RemoveHeader(a, "Injection-Info")
		article.RemoveHeader(a, "Xref")
		a.Xref = ""
		if a.FollowupTo != "" && a.FollowupTo == a.Newsgroups {
			article.RemoveHeader(a, "Followup-To")
			a.FollowupTo = ""
		}
	}

	// Control messages demand the capability for their verb.
	if a.Control != "" && !c.controlAllowed(controlVerb(a.Control)) {
		return c.sendResponse(480, "Permission denied")
	}

	// Moderation shortcut: an APPROVE body referencing stored articles
	// releases them instead of being stored itself.
	if c.approveShortcut(a) {
		return c.sendResponse(240, "Article received OK")
	}

	targets := c.resolveTargets(a)
	if len(targets) > 0 {
		if _, err := c.server.DB.InsertArticle(a, targets, c.server.Config.Server.Hostname); err != nil {
			log.Printf("Posting failed for %s from %s: %v", a.MessageID, c.conn.RemoteAddr(), err)
			return c.sendResponse(441, "Posting failed")
		}
		c.server.Stats.ArticlePosted()
	} else {
		log.Printf("Posting %s from %s matched no catalogs", a.MessageID, c.conn.RemoteAddr())
	}

	if a.Control != "" {
		c.dispatchControl(a)
	}
	if a.Supersedes != "" && article.ValidMessageID(a.Supersedes) {
		if n, err := c.server.DB.MarkCancelled(a.Supersedes); err != nil {
			log.Printf("Supersede of %s failed: %v", a.Supersedes, err)
		} else if n > 0 {
			c.server.Stats.ArticleCancelled()
		}
	}

	return c.sendResponse(240, "Article received OK")
}

// resolveTargets maps the Newsgroups header to insert targets.
// Unknown catalogs, virtual views and catalogs denying local posting
// are skipped with a log line, per the silent-skip rule.
func (c *ClientConnection) resolveTargets(a *models.Article) []database.InsertTarget {
	var targets []database.InsertTarget
	for _, name := range a.NewsgroupList() {
		if _, suffix := models.SplitVirtualName(name); suffix != "" {
			log.Printf("Skipping posting target %s: virtual catalog", name)
			continue
		}
		g, err := c.server.DB.LookupCatalog(name, c.principal)
		if err != nil {
			log.Printf("Skipping posting target %s: %v", name, err)
			continue
		}
		if g.DenyLocalPosting {
			log.Printf("Skipping posting target %s: local posting denied", name)
			continue
		}
		pending := g.Moderated && !c.principal.CanApprove(g.Name)
		targets = append(targets, database.InsertTarget{Newsgroup: g, Pending: pending})
	}
	return targets
}

// approveShortcut releases pending articles named in References when
// the body is an APPROVE directive from a principal who moderates (or
// globally approves) the target catalogs. Returns true when the
// posting was consumed as an approval.
func (c *ClientConnection) approveShortcut(a *models.Article) bool {
	body := a.BodyText
	if !strings.HasPrefix(body, "APPROVE\r\n") && !strings.HasPrefix(body, "APPROVED\r\n") &&
		body != "APPROVE" && body != "APPROVED" {
		return false
	}
	if a.References == "" || c.principal == nil {
		return false
	}

	approver := c.approverMailbox()
	applied := false
	for _, group := range a.NewsgroupList() {
		if !c.principal.CanApprove(group) {
			continue
		}
		for _, msgid := range strings.Fields(a.References) {
			err := c.server.DB.MarkApproved(group, msgid, approver)
			if err == nil {
				log.Printf("Approved %s in %s by %s", msgid, group, approver)
				applied = true
			} else if !isNotFound(err) {
				log.Printf("Approve of %s in %s failed: %v", msgid, group, err)
			}
		}
	}
	return applied
}

// approverMailbox is the identity recorded in the Approved header.
func (c *ClientConnection) approverMailbox() string {
	if c.principal.Mailbox != "" {
		return c.principal.Mailbox
	}
	return c.principal.Username + "@" + c.server.Config.Server.Hostname
}
