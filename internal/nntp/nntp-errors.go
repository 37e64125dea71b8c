package nntp

import (
	"errors"
	"log"

	"github.com/go-while/go-mcnttp/internal/database"
)

// sendStoreError logs a backend failure and tells the client the store
// is down. The session continues.
func (c *ClientConnection) sendStoreError(context string, err error) error {
	log.Printf("Store error (%s) from %s: %v", context, c.conn.RemoteAddr(), err)
	return c.sendResponse(403, "Archive server temporarily offline")
}

// isNotFound folds the store's miss sentinels into one check.
func isNotFound(err error) bool {
	return errors.Is(err, database.ErrNotFound) || errors.Is(err, database.ErrNoSuchCatalog)
}
