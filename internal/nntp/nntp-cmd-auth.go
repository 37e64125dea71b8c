package nntp

import (
	"crypto/tls"
	"log"
	"strings"
)

// handleAuthInfo implements the AUTHINFO USER/PASS sequence. USER
// stores the name and demands PASS as the very next command; the
// dispatch loop rejects anything else with 482.
func (c *ClientConnection) handleAuthInfo(args []string) error {
	if len(args) < 2 {
		return c.sendResponse(501, "Syntax error")
	}

	switch strings.ToUpper(args[0]) {
	case "USER":
		if c.principal != nil {
			return c.sendResponse(502, "Already authenticated")
		}
		c.authUsername = args[1]
		c.awaitingPass = true
		return c.sendResponse(381, "Password required")

	case "PASS":
		if !c.awaitingPass {
			return c.sendResponse(482, "Authentication commands out of sequence")
		}
		c.awaitingPass = false
		username := c.authUsername
		c.authUsername = ""

		// The secret may contain spaces; take the raw remainder.
		password := strings.Join(args[1:], " ")
		p, err := c.server.AuthManager.Authenticate(username, password, c.conn.RemoteAddr())
		if err != nil {
			c.server.Stats.AuthAttempt(false)
			log.Printf("Authentication failed for %s from %s", username, c.conn.RemoteAddr())
			return c.sendResponse(481, "Authentication failed")
		}
		c.principal = p
		c.server.Stats.AuthAttempt(true)
		log.Printf("Authenticated %s from %s", username, c.conn.RemoteAddr())
		return c.sendResponse(281, "Authentication accepted")

	default:
		return c.sendResponse(501, "Syntax error")
	}
}

// handleStartTLS upgrades the connection in place. State gathered on
// the clear-text socket (auth, current group) is discarded.
func (c *ClientConnection) handleStartTLS() error {
	if c.isTLS {
		return c.sendResponse(502, "TLS already active")
	}
	if c.server.tlsConfig == nil {
		return c.sendResponse(580, "Can not initiate TLS negotiation")
	}

	if err := c.sendResponse(382, "Continue with TLS negotiation"); err != nil {
		return err
	}

	tlsConn := tls.Server(c.conn, c.server.tlsConfig)
	if err := tlsConn.Handshake(); err != nil {
		log.Printf("TLS handshake failed from %s: %v", c.conn.RemoteAddr(), err)
		c.sendResponse(580, "TLS negotiation failed")
		return err
	}

	c.conn = tlsConn
	c.reader.Reset(tlsConn)
	c.writer.Reset(tlsConn)
	c.isTLS = true
	c.principal = nil
	c.awaitingPass = false
	c.authUsername = ""
	c.currentGroup = nil
	c.currentArticle = 0
	return nil
}
