package database

import (
	"errors"
	"time"

	"github.com/go-while/go-mcnttp/internal/models"
	"github.com/go-while/go-mcnttp/internal/wildmat"
)

// Sentinel errors returned by the store. The NNTP layer maps them to
// response codes; anything else is treated as a backend fault (403).
var (
	ErrNotFound      = errors.New("not found")
	ErrDuplicate     = errors.New("duplicate")
	ErrNoSuchCatalog = errors.New("no such catalog")
)

// InsertTarget names one catalog an accepted article is filed into.
type InsertTarget struct {
	Newsgroup *models.Newsgroup
	Pending   bool // held for moderation
}

// NumberedArticle pairs an article with its number in some catalog.
type NumberedArticle struct {
	Num     int64
	Article *models.Article
}

// Store is the persistence interface the NNTP layer runs against. The
// SQLite Database is the only implementation; the interface exists so
// command handlers can be exercised with small fakes in tests.
type Store interface {
	// Catalogs. Virtual .deleted/.pending names resolve through
	// LookupCatalog only when the principal holds the matching
	// capability; everything else sees ErrNoSuchCatalog.
	LookupCatalog(name string, p *models.Principal) (*models.Newsgroup, error)
	ListCatalogs(pattern string) ([]*models.Newsgroup, error)
	CatalogsSince(since time.Time) ([]*models.Newsgroup, error)
	CreateCatalog(g *models.Newsgroup) error
	RemoveCatalog(name string) error

	// Articles, addressed by catalog-local number or message-id.
	GetArticle(g *models.Newsgroup, num int64) (*models.Article, error)
	GetArticleByID(messageID string) (*models.Article, []*models.ArticleRef, error)
	RangeArticles(g *models.Newsgroup, r wildmat.ArticleRange) ([]*NumberedArticle, error)
	ArticleNumbers(g *models.Newsgroup, r wildmat.ArticleRange) ([]int64, error)
	ArticlesSince(since time.Time, pattern string) ([]string, error)
	PrevArticle(g *models.Newsgroup, current int64) (int64, string, error)
	NextArticle(g *models.Newsgroup, current int64) (int64, string, error)
	Overviews(g *models.Newsgroup, r wildmat.ArticleRange) ([]*models.Overview, error)

	// Posting pipeline and moderation.
	InsertArticle(a *models.Article, targets []InsertTarget, pathHost string) ([]*models.ArticleRef, error)
	MarkCancelled(messageID string) (int, error)
	MarkApproved(catalog, messageID, approvedBy string) error

	// Principals.
	Authenticate(username, password string) (*models.Principal, error)
}

var _ Store = (*Database)(nil)
