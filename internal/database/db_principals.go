package database

import (
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"database/sql"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/go-while/go-mcnttp/internal/models"
)

const principalCols = `id, username, secret, mailbox, can_approve_any, can_cancel,
	can_create_catalogs, can_delete_catalogs, can_check_catalogs, can_inject,
	local_auth_only, moderates, created_at, last_login`

func scanPrincipal(scan func(dest ...interface{}) error) (*models.Principal, error) {
	p := &models.Principal{}
	var moderates string
	var lastLogin sql.NullTime
	err := scan(&p.ID, &p.Username, &p.Secret, &p.Mailbox, &p.CanApproveAny, &p.CanCancel,
		&p.CanCreateCatalogs, &p.CanDeleteCatalogs, &p.CanCheckCatalogs, &p.CanInject,
		&p.LocalAuthOnly, &moderates, &p.CreatedAt, &lastLogin)
	if err != nil {
		return nil, err
	}
	p.Moderates = splitModerates(moderates)
	if lastLogin.Valid {
		t := lastLogin.Time.UTC()
		p.LastLogin = &t
	}
	return p, nil
}

func splitModerates(s string) []string {
	return strings.Fields(s)
}

// InsertPrincipal creates a new principal with a bcrypt-hashed secret.
func (db *Database) InsertPrincipal(p *models.Principal, password string) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	p.Secret = string(hashed)
	return db.insertPrincipalRow(p)
}

// InsertLegacyPrincipal creates a principal with the salted SHA-512
// secret format kept for accounts migrated from older servers:
// base64(salt) ":" base64(sha512(base64(salt) || password)).
func (db *Database) InsertLegacyPrincipal(p *models.Principal, password string) error {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("failed to generate salt: %w", err)
	}
	saltB64 := base64.StdEncoding.EncodeToString(salt)
	sum := sha512.Sum512([]byte(saltB64 + password))
	p.Secret = saltB64 + ":" + base64.StdEncoding.EncodeToString(sum[:])
	return db.insertPrincipalRow(p)
}

func (db *Database) insertPrincipalRow(p *models.Principal) error {
	result, err := retryableExec(db.mainDB,
		`INSERT OR IGNORE INTO principals (username, secret, mailbox, can_approve_any, can_cancel,
			can_create_catalogs, can_delete_catalogs, can_check_catalogs, can_inject,
			local_auth_only, moderates)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Username, p.Secret, p.Mailbox, p.CanApproveAny, p.CanCancel,
		p.CanCreateCatalogs, p.CanDeleteCatalogs, p.CanCheckCatalogs, p.CanInject,
		p.LocalAuthOnly, strings.Join(p.Moderates, " "))
	if err != nil {
		return fmt.Errorf("failed to insert principal %s: %w", p.Username, err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return ErrDuplicate
	}
	p.ID, _ = result.LastInsertId()
	return nil
}

// GetPrincipalByUsername loads a principal. ErrNotFound when absent.
func (db *Database) GetPrincipalByUsername(username string) (*models.Principal, error) {
	row := db.mainDB.QueryRow(
		"SELECT "+principalCols+" FROM principals WHERE username = ?", username)
	p, err := scanPrincipal(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load principal %s: %w", username, err)
	}
	return p, nil
}

// ListPrincipals returns every principal, sorted by username.
func (db *Database) ListPrincipals() ([]*models.Principal, error) {
	rows, err := retryableQuery(db.mainDB,
		"SELECT "+principalCols+" FROM principals ORDER BY username")
	if err != nil {
		return nil, fmt.Errorf("failed to list principals: %w", err)
	}
	defer rows.Close()

	var out []*models.Principal
	for rows.Next() {
		p, err := scanPrincipal(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Authenticate verifies a username/password pair against the stored
// secret, accepting both bcrypt and the legacy salted SHA-512 format,
// and records the login time on success. Failure is always the same
// ErrNotFound so callers cannot distinguish a bad user from a bad
// password.
func (db *Database) Authenticate(username, password string) (*models.Principal, error) {
	p, err := db.GetPrincipalByUsername(username)
	if err != nil {
		return nil, ErrNotFound
	}
	if !verifySecret(p.Secret, password) {
		return nil, ErrNotFound
	}
	now := time.Now().UTC()
	if _, err := retryableExec(db.mainDB,
		"UPDATE principals SET last_login = ? WHERE id = ?", now, p.ID); err != nil {
		return nil, fmt.Errorf("failed to record login for %s: %w", username, err)
	}
	p.LastLogin = &now
	return p, nil
}

func verifySecret(secret, password string) bool {
	if strings.HasPrefix(secret, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(secret), []byte(password)) == nil
	}
	saltB64, wantB64, ok := strings.Cut(secret, ":")
	if !ok {
		return false
	}
	sum := sha512.Sum512([]byte(saltB64 + password))
	got := base64.StdEncoding.EncodeToString(sum[:])
	return subtle.ConstantTimeCompare([]byte(got), []byte(wantB64)) == 1
}

// UpdatePrincipalSecret rehashes the secret with bcrypt.
func (db *Database) UpdatePrincipalSecret(username, password string) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	result, err := retryableExec(db.mainDB,
		"UPDATE principals SET secret = ? WHERE username = ?", string(hashed), username)
	if err != nil {
		return fmt.Errorf("failed to update secret for %s: %w", username, err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdatePrincipalGrants rewrites the capability columns and moderated
// catalog list of an existing principal.
func (db *Database) UpdatePrincipalGrants(p *models.Principal) error {
	result, err := retryableExec(db.mainDB,
		`UPDATE principals SET mailbox = ?, can_approve_any = ?, can_cancel = ?,
			can_create_catalogs = ?, can_delete_catalogs = ?, can_check_catalogs = ?,
			can_inject = ?, local_auth_only = ?, moderates = ?
		 WHERE username = ?`,
		p.Mailbox, p.CanApproveAny, p.CanCancel,
		p.CanCreateCatalogs, p.CanDeleteCatalogs, p.CanCheckCatalogs,
		p.CanInject, p.LocalAuthOnly, strings.Join(p.Moderates, " "), p.Username)
	if err != nil {
		return fmt.Errorf("failed to update grants for %s: %w", p.Username, err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeletePrincipal removes a principal.
func (db *Database) DeletePrincipal(username string) error {
	result, err := retryableExec(db.mainDB,
		"DELETE FROM principals WHERE username = ?", username)
	if err != nil {
		return fmt.Errorf("failed to delete principal %s: %w", username, err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
