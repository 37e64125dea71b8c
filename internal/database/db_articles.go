package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/go-while/go-mcnttp/internal/article"
	"github.com/go-while/go-mcnttp/internal/models"
	"github.com/go-while/go-mcnttp/internal/wildmat"
)

const articleCols = `a.id, a.message_id, a.subject, a.from_header, a.newsgroups, a.path,
	a.date_string, a.date_sent, a.references_list, a.control, a.supersedes, a.approved,
	a.distribution, a.injection_date, a.followup_to, a.xref, a.raw_headers, a.body_text,
	a.bytes, a.lines, a.imported_at`

func scanArticle(scan func(dest ...interface{}) error) (*models.Article, error) {
	a := &models.Article{}
	var dateSent sql.NullTime
	err := scan(&a.ID, &a.MessageID, &a.Subject, &a.FromHeader, &a.Newsgroups, &a.Path,
		&a.DateString, &dateSent, &a.References, &a.Control, &a.Supersedes, &a.Approved,
		&a.Distribution, &a.InjectionDate, &a.FollowupTo, &a.Xref, &a.RawHeaders, &a.BodyText,
		&a.Bytes, &a.Lines, &a.ImportedAt)
	if err != nil {
		return nil, err
	}
	if dateSent.Valid {
		a.DateSent = dateSent.Time.UTC()
	}
	return a, nil
}

// GetArticle fetches the article filed under the given number in the
// catalog's view.
func (db *Database) GetArticle(g *models.Newsgroup, num int64) (*models.Article, error) {
	query := fmt.Sprintf(`SELECT %s FROM articles a
		JOIN article_groups ag ON ag.article_id = a.id
		WHERE ag.newsgroup_id = ? AND ag.article_num = ? AND %s`, articleCols, viewWhere(g))
	row := db.mainDB.QueryRow(query, g.ID, num)
	a, err := scanArticle(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load article %s:%d: %w", g.Name, num, err)
	}
	return a, nil
}

// GetArticleByID fetches an article by message-id together with all of
// its catalog placements, cancelled and pending ones included. The
// caller decides visibility from the placement flags.
func (db *Database) GetArticleByID(messageID string) (*models.Article, []*models.ArticleRef, error) {
	row := db.mainDB.QueryRow(
		"SELECT "+articleCols+" FROM articles a WHERE a.message_id = ?", messageID)
	a, err := scanArticle(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load article %s: %w", messageID, err)
	}

	rows, err := retryableQuery(db.mainDB,
		`SELECT ag.newsgroup_id, g.name, ag.article_id, ag.article_num, ag.cancelled, ag.pending
		 FROM article_groups ag JOIN newsgroups g ON g.id = ag.newsgroup_id
		 WHERE ag.article_id = ? ORDER BY g.name`, a.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load placements for %s: %w", messageID, err)
	}
	defer rows.Close()

	var refs []*models.ArticleRef
	for rows.Next() {
		ref := &models.ArticleRef{}
		if err := rows.Scan(&ref.NewsgroupID, &ref.Newsgroup, &ref.ArticleID,
			&ref.ArticleNum, &ref.Cancelled, &ref.Pending); err != nil {
			return nil, nil, err
		}
		refs = append(refs, ref)
	}
	return a, refs, rows.Err()
}

// RangeArticles returns the articles in the catalog's view whose
// numbers fall inside the range, ordered by ascending number.
func (db *Database) RangeArticles(g *models.Newsgroup, r wildmat.ArticleRange) ([]*NumberedArticle, error) {
	query := fmt.Sprintf(`SELECT ag.article_num, %s FROM articles a
		JOIN article_groups ag ON ag.article_id = a.id
		WHERE ag.newsgroup_id = ? AND ag.article_num >= ? AND ag.article_num <= ? AND %s
		ORDER BY ag.article_num`, articleCols, viewWhere(g))
	rows, err := retryableQuery(db.mainDB, query, g.ID, r.Low, r.High)
	if err != nil {
		return nil, fmt.Errorf("failed to range articles in %s: %w", g.Name, err)
	}
	defer rows.Close()

	var out []*NumberedArticle
	for rows.Next() {
		var num int64
		a, err := scanArticle(func(dest ...interface{}) error {
			return rows.Scan(append([]interface{}{&num}, dest...)...)
		})
		if err != nil {
			return nil, err
		}
		out = append(out, &NumberedArticle{Num: num, Article: a})
	}
	return out, rows.Err()
}

// ArticleNumbers returns the article numbers present in the catalog's
// view inside the range, ascending, for LISTGROUP.
func (db *Database) ArticleNumbers(g *models.Newsgroup, r wildmat.ArticleRange) ([]int64, error) {
	query := fmt.Sprintf(`SELECT article_num FROM article_groups
		WHERE newsgroup_id = ? AND article_num >= ? AND article_num <= ? AND %s
		ORDER BY article_num`, viewWhere(g))
	rows, err := retryableQuery(db.mainDB, query, g.ID, r.Low, r.High)
	if err != nil {
		return nil, fmt.Errorf("failed to list numbers in %s: %w", g.Name, err)
	}
	defer rows.Close()

	nums := []int64{}
	for rows.Next() {
		var n int64
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		nums = append(nums, n)
	}
	return nums, rows.Err()
}

// ArticlesSince returns the message-ids of articles whose parsed Date
// is at or after the given time, in catalogs matching the wildmat, for
// NEWNEWS. Cancelled and pending placements are not reported.
func (db *Database) ArticlesSince(since time.Time, pattern string) ([]string, error) {
	rows, err := retryableQuery(db.mainDB,
		`SELECT DISTINCT a.message_id, a.id, g.name FROM articles a
		 JOIN article_groups ag ON ag.article_id = a.id
		 JOIN newsgroups g ON g.id = ag.newsgroup_id
		 WHERE a.date_sent >= ? AND ag.cancelled = 0 AND ag.pending = 0
		 ORDER BY a.id`, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to list new articles: %w", err)
	}
	defer rows.Close()

	seen := make(map[string]bool)
	var ids []string
	for rows.Next() {
		var msgid, group string
		var id int64
		if err := rows.Scan(&msgid, &id, &group); err != nil {
			return nil, err
		}
		if seen[msgid] || (pattern != "" && !wildmat.Match(group, pattern)) {
			continue
		}
		seen[msgid] = true
		ids = append(ids, msgid)
	}
	return ids, rows.Err()
}

// PrevArticle returns the closest article below current in the
// catalog's view. ErrNotFound means current is already the first.
func (db *Database) PrevArticle(g *models.Newsgroup, current int64) (int64, string, error) {
	return db.adjacentArticle(g, current, "<", "DESC")
}

// NextArticle returns the closest article above current in the
// catalog's view. ErrNotFound means current is already the last.
func (db *Database) NextArticle(g *models.Newsgroup, current int64) (int64, string, error) {
	return db.adjacentArticle(g, current, ">", "ASC")
}

func (db *Database) adjacentArticle(g *models.Newsgroup, current int64, cmp, order string) (int64, string, error) {
	query := fmt.Sprintf(`SELECT ag.article_num, a.message_id FROM article_groups ag
		JOIN articles a ON a.id = ag.article_id
		WHERE ag.newsgroup_id = ? AND ag.article_num %s ? AND %s
		ORDER BY ag.article_num %s LIMIT 1`, cmp, viewWhere(g), order)
	var num int64
	var msgid string
	err := retryableQueryRowScan(db.mainDB, query, []interface{}{g.ID, current}, &num, &msgid)
	if err == sql.ErrNoRows {
		return 0, "", ErrNotFound
	}
	if err != nil {
		return 0, "", fmt.Errorf("failed to step in %s: %w", g.Name, err)
	}
	return num, msgid, nil
}

// Overviews returns the OVER rows for the range in the catalog's view.
// The reported byte count is twice the stored body length.
func (db *Database) Overviews(g *models.Newsgroup, r wildmat.ArticleRange) ([]*models.Overview, error) {
	query := fmt.Sprintf(`SELECT ag.article_num, a.subject, a.from_header, a.date_string,
		a.message_id, a.references_list, a.bytes, a.lines
		FROM articles a JOIN article_groups ag ON ag.article_id = a.id
		WHERE ag.newsgroup_id = ? AND ag.article_num >= ? AND ag.article_num <= ? AND %s
		ORDER BY ag.article_num`, viewWhere(g))
	rows, err := retryableQuery(db.mainDB, query, g.ID, r.Low, r.High)
	if err != nil {
		return nil, fmt.Errorf("failed to load overviews for %s: %w", g.Name, err)
	}
	defer rows.Close()

	var out []*models.Overview
	for rows.Next() {
		o := &models.Overview{}
		if err := rows.Scan(&o.ArticleNum, &o.Subject, &o.FromHeader, &o.DateString,
			&o.MessageID, &o.References, &o.Bytes, &o.Lines); err != nil {
			return nil, err
		}
		o.Bytes *= 2
		out = append(out, o)
	}
	return out, rows.Err()
}

// InsertArticle files an accepted article into its target catalogs in
// one transaction. Each catalog hands out MAX(article_num)+1, so the
// numbering stays strictly monotonic per catalog and survives cancels.
// With a non-empty pathHost, the Xref header is produced from the
// allocated numbers before the row is finalized. A duplicate
// message-id yields ErrDuplicate and nothing is filed.
func (db *Database) InsertArticle(a *models.Article, targets []InsertTarget, pathHost string) ([]*models.ArticleRef, error) {
	if len(targets) == 0 {
		return nil, fmt.Errorf("no target catalogs for %s", a.MessageID)
	}
	var refs []*models.ArticleRef

	err := retryableTransactionExec(db.mainDB, func(tx *sql.Tx) error {
		refs = refs[:0]
		result, err := tx.Exec(
			`INSERT OR IGNORE INTO articles (message_id, subject, from_header, newsgroups, path,
				date_string, date_sent, references_list, control, supersedes, approved,
				distribution, injection_date, followup_to, xref, raw_headers, body_text, bytes, lines)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			a.MessageID, a.Subject, a.FromHeader, a.Newsgroups, a.Path,
			a.DateString, nullableTime(a.DateSent), a.References, a.Control, a.Supersedes,
			a.Approved, a.Distribution, a.InjectionDate, a.FollowupTo, a.Xref,
			a.RawHeaders, a.BodyText, a.Bytes, a.Lines)
		if err != nil {
			return err
		}
		affected, _ := result.RowsAffected()
		if affected == 0 {
			return ErrDuplicate
		}
		articleID, err := result.LastInsertId()
		if err != nil {
			return err
		}
		a.ID = articleID

		for _, target := range targets {
			g := target.Newsgroup
			var num int64
			row := tx.QueryRow(
				"SELECT COALESCE(MAX(article_num), 0) + 1 FROM article_groups WHERE newsgroup_id = ?", g.ID)
			if err := row.Scan(&num); err != nil {
				return err
			}
			if _, err := tx.Exec(
				`INSERT INTO article_groups (newsgroup_id, article_id, article_num, cancelled, pending)
				 VALUES (?, ?, ?, 0, ?)`, g.ID, articleID, num, target.Pending); err != nil {
				return err
			}
			refs = append(refs, &models.ArticleRef{
				NewsgroupID: g.ID,
				Newsgroup:   g.BaseName,
				ArticleID:   articleID,
				ArticleNum:  num,
				Pending:     target.Pending,
			})
		}

		if pathHost != "" {
			xref := pathHost
			for _, ref := range refs {
				xref += fmt.Sprintf(" %s:%d", ref.Newsgroup, ref.ArticleNum)
			}
			a.Xref = xref
			article.SetHeader(a, "Xref", xref)
			if _, err := tx.Exec("UPDATE articles SET xref = ?, raw_headers = ? WHERE id = ?",
				a.Xref, a.RawHeaders, articleID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return refs, nil
}

func nullableTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}

// MarkCancelled flags every placement of the article as cancelled and
// returns how many placements changed. The placements stay in the
// store: their numbers are burned and the .deleted view shows them.
func (db *Database) MarkCancelled(messageID string) (int, error) {
	result, err := retryableExec(db.mainDB,
		`UPDATE article_groups SET cancelled = 1
		 WHERE cancelled = 0 AND article_id = (SELECT id FROM articles WHERE message_id = ?)`,
		messageID)
	if err != nil {
		return 0, fmt.Errorf("failed to cancel %s: %w", messageID, err)
	}
	affected, _ := result.RowsAffected()
	return int(affected), nil
}

// MarkApproved releases a pending placement in the named catalog and
// records the approver in the stored headers.
func (db *Database) MarkApproved(catalog, messageID, approvedBy string) error {
	return retryableTransactionExec(db.mainDB, func(tx *sql.Tx) error {
		result, err := tx.Exec(
			`UPDATE article_groups SET pending = 0, approved_by = ?
			 WHERE pending = 1
			   AND newsgroup_id = (SELECT id FROM newsgroups WHERE name = ?)
			   AND article_id = (SELECT id FROM articles WHERE message_id = ?)`,
			approvedBy, catalog, messageID)
		if err != nil {
			return err
		}
		affected, _ := result.RowsAffected()
		if affected == 0 {
			return ErrNotFound
		}

		row := tx.QueryRow(
			"SELECT approved, raw_headers FROM articles WHERE message_id = ?", messageID)
		var approved, rawHeaders string
		if err := row.Scan(&approved, &rawHeaders); err != nil {
			return err
		}
		if approved != "" {
			return nil
		}
		a := &models.Article{RawHeaders: rawHeaders}
		article.SetHeader(a, "Approved", approvedBy)
		_, err = tx.Exec("UPDATE articles SET approved = ?, raw_headers = ? WHERE message_id = ?",
			approvedBy, a.RawHeaders, messageID)
		return err
	})
}
