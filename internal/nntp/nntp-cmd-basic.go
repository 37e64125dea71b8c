package nntp

import (
	"strings"
	"time"
)

// handleCapabilities responds to the CAPABILITIES command
func (c *ClientConnection) handleCapabilities() error {
	return c.sendMultiline(101, "Capability list:", c.getServerCapabilities())
}

// handleMode handles MODE READER
func (c *ClientConnection) handleMode(args []string) error {
	if len(args) != 1 || !strings.EqualFold(args[0], "READER") {
		return c.sendResponse(501, "Syntax error")
	}
	if c.server.Config.Server.NNTP.AllowPosting {
		return c.sendResponse(200, "Posting allowed")
	}
	return c.sendResponse(201, "Posting prohibited")
}

// handleDate responds with the server's UTC clock
func (c *ClientConnection) handleDate() error {
	return c.sendResponse(111, "%s", time.Now().UTC().Format("20060102150405"))
}

// handleQuit closes the session
func (c *ClientConnection) handleQuit() error {
	c.sendResponse(205, "Connection closing")
	return errQuit
}

var helpLines = []string{
	"ARTICLE [message-id|number]",
	"AUTHINFO USER name | PASS password",
	"BODY [message-id|number]",
	"CAPABILITIES",
	"DATE",
	"GROUP newsgroup",
	"HDR header [range|message-id]",
	"HEAD [message-id|number]",
	"HELP",
	"LAST",
	"LIST [ACTIVE|ACTIVE.TIMES|NEWSGROUPS|OVERVIEW.FMT|DISTRIB.PATS|DISTRIBUTIONS|HEADERS|MOTD]",
	"LISTGROUP [newsgroup [range]]",
	"MODE READER",
	"NEWGROUPS [yy]yymmdd hhmmss [GMT]",
	"NEWNEWS wildmat [yy]yymmdd hhmmss [GMT]",
	"NEXT",
	"OVER [range|message-id]",
	"POST",
	"QUIT",
	"STARTTLS",
	"STAT [message-id|number]",
	"XFEATURE COMPRESS GZIP [TERMINATOR]",
	"XHDR header [range|message-id]",
	"XOVER [range]",
	"XPAT header range|message-id wildmat [wildmat ...]",
}

// handleHelp lists the recognized commands
func (c *ClientConnection) handleHelp() error {
	return c.sendMultiline(100, "Legal commands", helpLines)
}

// handleXFeature negotiates the compression extension. Only
// COMPRESS GZIP (with optional TERMINATOR) is known; any other token
// sequence is rejected.
func (c *ClientConnection) handleXFeature(args []string) error {
	if len(args) < 2 || len(args) > 3 ||
		!strings.EqualFold(args[0], "COMPRESS") || !strings.EqualFold(args[1], "GZIP") {
		return c.sendResponse(501, "Unknown feature")
	}
	if len(args) == 3 && !strings.EqualFold(args[2], "TERMINATOR") {
		return c.sendResponse(501, "Unknown feature")
	}
	c.compressed = true
	return c.sendResponse(290, "feature enabled")
}
