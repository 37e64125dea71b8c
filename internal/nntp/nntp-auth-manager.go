package nntp

import (
	"fmt"
	"net"

	"github.com/go-while/go-mcnttp/internal/database"
	"github.com/go-while/go-mcnttp/internal/models"
)

// AuthManager verifies AUTHINFO credentials against the store and
// enforces the loopback restriction on locally-bound accounts.
type AuthManager struct {
	store database.Store
}

// NewAuthManager creates a new authentication manager
func NewAuthManager(store database.Store) *AuthManager {
	return &AuthManager{store: store}
}

// Authenticate verifies the credentials. The remote address matters:
// a principal flagged LocalAuthOnly may only log in from loopback.
func (am *AuthManager) Authenticate(username, password string, remote net.Addr) (*models.Principal, error) {
	p, err := am.store.Authenticate(username, password)
	if err != nil {
		return nil, err
	}
	if p.LocalAuthOnly && !isLoopback(remote) {
		return nil, fmt.Errorf("principal %s is restricted to loopback", username)
	}
	return p, nil
}

func isLoopback(addr net.Addr) bool {
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		host = addr.String()
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
