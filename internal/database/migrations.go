package database

import "fmt"

// Schema for the main database. article_groups carries the per-catalog
// numbering: numbers are handed out as MAX(article_num)+1 inside the
// insert transaction and rows are never deleted on cancel, so a number
// is never reused even after the highest article is cancelled.
var mainSchema = []string{
	`CREATE TABLE IF NOT EXISTS newsgroups (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT '',
		moderated INTEGER NOT NULL DEFAULT 0,
		deny_local_posting INTEGER NOT NULL DEFAULT 0,
		deny_peer_posting INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		created_by TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS articles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		message_id TEXT NOT NULL UNIQUE,
		subject TEXT NOT NULL DEFAULT '',
		from_header TEXT NOT NULL DEFAULT '',
		newsgroups TEXT NOT NULL DEFAULT '',
		path TEXT NOT NULL DEFAULT '',
		date_string TEXT NOT NULL DEFAULT '',
		date_sent TIMESTAMP,
		references_list TEXT NOT NULL DEFAULT '',
		control TEXT NOT NULL DEFAULT '',
		supersedes TEXT NOT NULL DEFAULT '',
		approved TEXT NOT NULL DEFAULT '',
		distribution TEXT NOT NULL DEFAULT '',
		injection_date TEXT NOT NULL DEFAULT '',
		followup_to TEXT NOT NULL DEFAULT '',
		xref TEXT NOT NULL DEFAULT '',
		raw_headers TEXT NOT NULL DEFAULT '',
		body_text TEXT NOT NULL DEFAULT '',
		bytes INTEGER NOT NULL DEFAULT 0,
		lines INTEGER NOT NULL DEFAULT 0,
		imported_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS article_groups (
		newsgroup_id INTEGER NOT NULL REFERENCES newsgroups(id) ON DELETE CASCADE,
		article_id INTEGER NOT NULL REFERENCES articles(id),
		article_num INTEGER NOT NULL,
		cancelled INTEGER NOT NULL DEFAULT 0,
		pending INTEGER NOT NULL DEFAULT 0,
		approved_by TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (newsgroup_id, article_num)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_article_groups_article
		ON article_groups(article_id)`,
	`CREATE INDEX IF NOT EXISTS idx_articles_date_sent
		ON articles(date_sent)`,
	`CREATE TABLE IF NOT EXISTS principals (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		secret TEXT NOT NULL,
		mailbox TEXT NOT NULL DEFAULT '',
		can_approve_any INTEGER NOT NULL DEFAULT 0,
		can_cancel INTEGER NOT NULL DEFAULT 0,
		can_create_catalogs INTEGER NOT NULL DEFAULT 0,
		can_delete_catalogs INTEGER NOT NULL DEFAULT 0,
		can_check_catalogs INTEGER NOT NULL DEFAULT 0,
		can_inject INTEGER NOT NULL DEFAULT 0,
		local_auth_only INTEGER NOT NULL DEFAULT 0,
		moderates TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		last_login TIMESTAMP
	)`,
}

// Migrate applies the schema. Every statement is idempotent.
func (db *Database) Migrate() error {
	for _, stmt := range mainSchema {
		if _, err := db.mainDB.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}
