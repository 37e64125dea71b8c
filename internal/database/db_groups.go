package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/go-while/go-mcnttp/internal/models"
	"github.com/go-while/go-mcnttp/internal/wildmat"
)

// viewWhere returns the article_groups filter for the catalog's view.
// The normal view hides cancelled and pending placements; the virtual
// views expose exactly one of those subsets.
func viewWhere(g *models.Newsgroup) string {
	switch {
	case g.ViewCancelled:
		return "cancelled = 1"
	case g.ViewPending:
		return "pending = 1 AND cancelled = 0"
	default:
		return "cancelled = 0 AND pending = 0"
	}
}

const newsgroupCols = "id, name, description, moderated, deny_local_posting, deny_peer_posting, created_at, created_by"

func scanNewsgroup(scan func(dest ...interface{}) error) (*models.Newsgroup, error) {
	g := &models.Newsgroup{}
	err := scan(&g.ID, &g.Name, &g.Description, &g.Moderated,
		&g.DenyLocalPosting, &g.DenyPeerPosting, &g.CreatedAt, &g.CreatedBy)
	if err != nil {
		return nil, err
	}
	g.BaseName = g.Name
	return g, nil
}

// loadCounters fills MessageCount/LowWater/HighWater for the group's
// view. An empty view reports 0 0 0.
func (db *Database) loadCounters(g *models.Newsgroup) error {
	query := fmt.Sprintf(`SELECT COUNT(*), COALESCE(MIN(article_num), 0), COALESCE(MAX(article_num), 0)
		FROM article_groups WHERE newsgroup_id = ? AND %s`, viewWhere(g))
	return retryableQueryRowScan(db.mainDB, query, []interface{}{g.ID},
		&g.MessageCount, &g.LowWater, &g.HighWater)
}

// LookupCatalog resolves a catalog name, including the virtual
// X.deleted and X.pending views. A virtual name resolves only for a
// principal holding the matching capability; to everyone else it does
// not exist. Counters are loaded for the resolved view.
func (db *Database) LookupCatalog(name string, p *models.Principal) (*models.Newsgroup, error) {
	base, suffix := models.SplitVirtualName(name)

	g, err := db.getNewsgroupByName(base)
	if err != nil {
		// A real catalog may itself end in .deleted or .pending.
		if suffix != "" {
			if direct, directErr := db.getNewsgroupByName(name); directErr == nil {
				g, suffix = direct, ""
				err = nil
			}
		}
		if err != nil {
			return nil, err
		}
	}

	if suffix != "" {
		g.Name = base + suffix
		g.ViewCancelled = suffix == models.SuffixDeleted
		g.ViewPending = suffix == models.SuffixPending
		if !p.CanSeeView(g) {
			return nil, ErrNoSuchCatalog
		}
	}

	if err := db.loadCounters(g); err != nil {
		return nil, fmt.Errorf("failed to load counters for %s: %w", g.Name, err)
	}
	return g, nil
}

func (db *Database) getNewsgroupByName(name string) (*models.Newsgroup, error) {
	query := "SELECT " + newsgroupCols + " FROM newsgroups WHERE name = ?"
	row := db.mainDB.QueryRow(query, name)
	g, err := scanNewsgroup(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNoSuchCatalog
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load newsgroup %s: %w", name, err)
	}
	return g, nil
}

// ListCatalogs returns the real catalogs matching the wildmat, sorted
// by name, counters loaded. Virtual views are never listed. An empty
// pattern matches everything.
func (db *Database) ListCatalogs(pattern string) ([]*models.Newsgroup, error) {
	rows, err := retryableQuery(db.mainDB,
		"SELECT "+newsgroupCols+" FROM newsgroups ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to list newsgroups: %w", err)
	}
	defer rows.Close()

	var groups []*models.Newsgroup
	for rows.Next() {
		g, err := scanNewsgroup(rows.Scan)
		if err != nil {
			return nil, err
		}
		if pattern != "" && !wildmat.Match(g.Name, pattern) {
			continue
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, g := range groups {
		if err := db.loadCounters(g); err != nil {
			return nil, err
		}
	}
	return groups, nil
}

// CatalogsSince returns catalogs created at or after the given time,
// for NEWGROUPS.
func (db *Database) CatalogsSince(since time.Time) ([]*models.Newsgroup, error) {
	rows, err := retryableQuery(db.mainDB,
		"SELECT "+newsgroupCols+" FROM newsgroups WHERE created_at >= ? ORDER BY name", since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to list new newsgroups: %w", err)
	}
	defer rows.Close()

	var groups []*models.Newsgroup
	for rows.Next() {
		g, err := scanNewsgroup(rows.Scan)
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, g := range groups {
		if err := db.loadCounters(g); err != nil {
			return nil, err
		}
	}
	return groups, nil
}

// CreateCatalog inserts a new catalog. Names that collide with the
// virtual view namespace are rejected outright.
func (db *Database) CreateCatalog(g *models.Newsgroup) error {
	if strings.HasSuffix(g.Name, models.SuffixDeleted) || strings.HasSuffix(g.Name, models.SuffixPending) {
		return fmt.Errorf("catalog name %s collides with a virtual view", g.Name)
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now().UTC()
	}
	result, err := retryableExec(db.mainDB,
		`INSERT OR IGNORE INTO newsgroups (name, description, moderated, deny_local_posting, deny_peer_posting, created_at, created_by)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		g.Name, g.Description, g.Moderated, g.DenyLocalPosting, g.DenyPeerPosting, g.CreatedAt, g.CreatedBy)
	if err != nil {
		return fmt.Errorf("failed to create newsgroup %s: %w", g.Name, err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return ErrDuplicate
	}
	row := db.mainDB.QueryRow("SELECT id FROM newsgroups WHERE name = ?", g.Name)
	return row.Scan(&g.ID)
}

// RemoveCatalog deletes a catalog and its article placements. The
// articles themselves stay: they may be filed in other catalogs and
// remain reachable by message-id.
func (db *Database) RemoveCatalog(name string) error {
	result, err := retryableExec(db.mainDB, "DELETE FROM newsgroups WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("failed to remove newsgroup %s: %w", name, err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return ErrNoSuchCatalog
	}
	return nil
}
