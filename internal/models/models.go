// Package models defines core data structures for go-mcnttp.
package models

import (
	"strings"
	"time"
)

// Catalog status letters for LIST ACTIVE.
const (
	StatusPosting   = "y" // posting allowed
	StatusModerated = "m" // moderated
	StatusNoPost    = "n" // read-only
	StatusNoPeer    = "x" // peer posting denied
	StatusNoLocal   = "j" // local posting denied
)

// Virtual catalog suffixes. Each real newsgroup X exposes X.deleted
// (cancelled subset) and X.pending (pending subset) to principals with
// the matching capability; both share the parent's numbering.
const (
	SuffixDeleted = ".deleted"
	SuffixPending = ".pending"
)

// Article is an immutable record after acceptance. RawHeaders holds
// the exact wire bytes of the header block (CRLF lines, without the
// blank separator line) so the article can be retransmitted verbatim.
// Injection-time edits rewrite RawHeaders in place.
type Article struct {
	ID            int64     `json:"id" db:"id"`
	MessageID     string    `json:"message_id" db:"message_id"`
	Subject       string    `json:"subject" db:"subject"`
	FromHeader    string    `json:"from_header" db:"from_header"`
	Newsgroups    string    `json:"newsgroups" db:"newsgroups"` // as posted, space or comma separated
	Path          string    `json:"path" db:"path"`
	DateString    string    `json:"date_string" db:"date_string"`
	DateSent      time.Time `json:"date_sent" db:"date_sent"` // parsed, UTC
	References    string    `json:"references" db:"references"`
	Control       string    `json:"control" db:"control"`
	Supersedes    string    `json:"supersedes" db:"supersedes"`
	Approved      string    `json:"approved" db:"approved"`
	Distribution  string    `json:"distribution" db:"distribution"`
	InjectionDate string    `json:"injection_date" db:"injection_date"`
	FollowupTo    string    `json:"followup_to" db:"followup_to"`
	Xref          string    `json:"xref" db:"xref"`
	RawHeaders    string    `json:"raw_headers" db:"raw_headers"`
	BodyText      string    `json:"body_text" db:"body_text"` // CRLF joined, de-stuffed
	Bytes         int       `json:"bytes" db:"bytes"`
	Lines         int       `json:"lines" db:"lines"`
	ImportedAt    time.Time `json:"imported_at" db:"imported_at"`
}

// NewsgroupList splits the Newsgroups header into individual catalog
// names. Both space and comma separation occur in the wild.
func (a *Article) NewsgroupList() []string {
	var groups []string
	for _, field := range strings.FieldsFunc(a.Newsgroups, func(r rune) bool {
		return r == ' ' || r == ',' || r == '\t'
	}) {
		if field != "" {
			groups = append(groups, field)
		}
	}
	return groups
}

// BodyLines splits the body into lines without terminators.
func (a *Article) BodyLines() []string {
	if a.BodyText == "" {
		return []string{}
	}
	return strings.Split(a.BodyText, "\r\n")
}

// Newsgroup represents a catalog of articles. The counters are derived
// from the store at lookup time and never materialized.
type Newsgroup struct {
	ID               int64     `json:"id" db:"id"`
	Name             string    `json:"name" db:"name"`
	Description      string    `json:"description" db:"description"`
	Moderated        bool      `json:"moderated" db:"moderated"`
	DenyLocalPosting bool      `json:"deny_local_posting" db:"deny_local_posting"`
	DenyPeerPosting  bool      `json:"deny_peer_posting" db:"deny_peer_posting"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	CreatedBy        string    `json:"created_by" db:"created_by"`

	MessageCount int64 `json:"message_count" db:"-"`
	LowWater     int64 `json:"low_water" db:"-"`
	HighWater    int64 `json:"high_water" db:"-"`

	// Virtual view selection. For X.deleted / X.pending the Name keeps
	// the suffix; a real catalog has BaseName == Name.
	BaseName      string `json:"-" db:"-"`
	ViewCancelled bool   `json:"-" db:"-"`
	ViewPending   bool   `json:"-" db:"-"`
}

// Status returns the LIST ACTIVE status letter.
func (g *Newsgroup) Status() string {
	switch {
	case g.Moderated:
		return StatusModerated
	case g.DenyLocalPosting && g.DenyPeerPosting:
		return StatusNoPost
	case g.DenyPeerPosting:
		return StatusNoPeer
	case g.DenyLocalPosting:
		return StatusNoLocal
	default:
		return StatusPosting
	}
}

// IsVirtual reports whether this catalog is a .deleted/.pending view.
func (g *Newsgroup) IsVirtual() bool {
	return g.ViewCancelled || g.ViewPending
}

// ArticleRef is the (article, catalog, number) association. Numbers
// are catalog-local, strictly monotonic at insertion and never reused
// after cancel.
type ArticleRef struct {
	NewsgroupID int64  `json:"newsgroup_id" db:"newsgroup_id"`
	Newsgroup   string `json:"newsgroup" db:"-"`
	ArticleID   int64  `json:"article_id" db:"article_id"`
	ArticleNum  int64  `json:"article_num" db:"article_num"`
	Cancelled   bool   `json:"cancelled" db:"cancelled"`
	Pending     bool   `json:"pending" db:"pending"`
}

// Overview is one OVER/XOVER row before formatting.
type Overview struct {
	ArticleNum int64  `json:"article_num" db:"article_num"`
	Subject    string `json:"subject" db:"subject"`
	FromHeader string `json:"from_header" db:"from_header"`
	DateString string `json:"date_string" db:"date_string"`
	MessageID  string `json:"message_id" db:"message_id"`
	References string `json:"references" db:"references"`
	Bytes      int    `json:"bytes" db:"bytes"`
	Lines      int    `json:"lines" db:"lines"`
}

// Principal is an authenticated identity with named capabilities.
type Principal struct {
	ID                int64      `json:"id" db:"id"`
	Username          string     `json:"username" db:"username"`
	Secret            string     `json:"-" db:"secret"` // bcrypt or legacy salted SHA-512
	Mailbox           string     `json:"mailbox" db:"mailbox"`
	CanApproveAny     bool       `json:"can_approve_any" db:"can_approve_any"`
	CanCancel         bool       `json:"can_cancel" db:"can_cancel"`
	CanCreateCatalogs bool       `json:"can_create_catalogs" db:"can_create_catalogs"`
	CanDeleteCatalogs bool       `json:"can_delete_catalogs" db:"can_delete_catalogs"`
	CanCheckCatalogs  bool       `json:"can_check_catalogs" db:"can_check_catalogs"`
	CanInject         bool       `json:"can_inject" db:"can_inject"`
	LocalAuthOnly     bool       `json:"local_auth_only" db:"local_auth_only"`
	Moderates         []string   `json:"moderates" db:"-"` // newsgroup names
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`
	LastLogin         *time.Time `json:"last_login" db:"last_login"`
}

// CanApprove reports whether the principal may approve postings in the
// given newsgroup, either globally or as its moderator.
func (p *Principal) CanApprove(group string) bool {
	if p == nil {
		return false
	}
	if p.CanApproveAny {
		return true
	}
	for _, g := range p.Moderates {
		if strings.EqualFold(g, group) {
			return true
		}
	}
	return false
}

// CanSeeView reports whether the principal may address the virtual
// .deleted/.pending views.
func (p *Principal) CanSeeView(g *Newsgroup) bool {
	if !g.IsVirtual() {
		return true
	}
	if p == nil {
		return false
	}
	if g.ViewCancelled {
		return p.CanCancel
	}
	return p.CanApprove(g.BaseName)
}

// DistributionPattern is one LIST DISTRIB.PATS row.
type DistributionPattern struct {
	Weight       int    `json:"weight" toml:"weight"`
	Wildmat      string `json:"wildmat" toml:"wildmat"`
	Distribution string `json:"distribution" toml:"distribution"`
}

// Distribution is one LIST DISTRIBUTIONS row.
type Distribution struct {
	Name        string `json:"name" toml:"name"`
	Description string `json:"description" toml:"description"`
}

// SplitVirtualName splits a catalog name into its base name and view
// suffix. "misc.test.deleted" yields ("misc.test", SuffixDeleted).
func SplitVirtualName(name string) (base string, suffix string) {
	if strings.HasSuffix(name, SuffixDeleted) && len(name) > len(SuffixDeleted) {
		return name[:len(name)-len(SuffixDeleted)], SuffixDeleted
	}
	if strings.HasSuffix(name, SuffixPending) && len(name) > len(SuffixPending) {
		return name[:len(name)-len(SuffixPending)], SuffixPending
	}
	return name, ""
}
