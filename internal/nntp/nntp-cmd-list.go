package nntp

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// handleList dispatches LIST by keyword. No keyword means ACTIVE.
func (c *ClientConnection) handleList(args []string) error {
	keyword := "ACTIVE"
	if len(args) > 0 {
		keyword = strings.ToUpper(args[0])
		args = args[1:]
	}

	switch keyword {
	case "ACTIVE":
		return c.handleListActive(args)
	case "ACTIVE.TIMES":
		return c.handleListActiveTimes(args)
	case "NEWSGROUPS":
		return c.handleListNewsgroups(args)
	case "OVERVIEW.FMT":
		return c.sendMultiline(215, "Order of fields in overview database", []string{
			"Subject:", "From:", "Date:", "Message-ID:", "References:", ":bytes", ":lines",
		})
	case "DISTRIB.PATS":
		return c.handleListDistribPats()
	case "DISTRIBUTIONS":
		if len(args) > 0 {
			return c.sendResponse(501, "Syntax error")
		}
		return c.handleListDistributions()
	case "HEADERS":
		return c.sendMultiline(215, "Headers supported", []string{
			"Subject", "From", "Date", "Message-ID", "References",
			"Newsgroups", "Path", "Control", "Supersedes", "Approved",
			"Distribution", "Injection-Date", "Followup-To", "Xref",
			":bytes", ":lines",
		})
	case "MOTD":
		return c.handleListMOTD()
	default:
		return c.sendResponse(501, "Unknown LIST keyword")
	}
}

func (c *ClientConnection) handleListActive(args []string) error {
	pattern := ""
	if len(args) > 0 {
		pattern = args[0]
	}
	groups, err := c.server.DB.ListCatalogs(pattern)
	if err != nil {
		return c.sendStoreError("LIST ACTIVE", err)
	}
	lines := make([]string, len(groups))
	for i, g := range groups {
		lines[i] = fmt.Sprintf("%s %d %d %s", g.Name, g.HighWater, g.LowWater, g.Status())
	}
	return c.sendMultiline(215, "list of newsgroups follows", lines)
}

func (c *ClientConnection) handleListActiveTimes(args []string) error {
	pattern := ""
	if len(args) > 0 {
		pattern = args[0]
	}
	groups, err := c.server.DB.ListCatalogs(pattern)
	if err != nil {
		return c.sendStoreError("LIST ACTIVE.TIMES", err)
	}
	lines := make([]string, len(groups))
	for i, g := range groups {
		creator := g.CreatedBy
		if creator == "" {
			creator = "-"
		}
		lines[i] = fmt.Sprintf("%s %d %s", g.Name, g.CreatedAt.Unix(), creator)
	}
	return c.sendMultiline(215, "information follows", lines)
}

func (c *ClientConnection) handleListNewsgroups(args []string) error {
	pattern := ""
	if len(args) > 0 {
		pattern = args[0]
	}
	groups, err := c.server.DB.ListCatalogs(pattern)
	if err != nil {
		return c.sendStoreError("LIST NEWSGROUPS", err)
	}
	lines := make([]string, len(groups))
	for i, g := range groups {
		lines[i] = g.Name + "\t" + g.Description
	}
	return c.sendMultiline(215, "list of newsgroups follows", lines)
}

func (c *ClientConnection) handleListDistribPats() error {
	var lines []string
	for _, p := range c.server.Config.DistribPats {
		lines = append(lines, fmt.Sprintf("%d:%s:%s", p.Weight, p.Wildmat, p.Distribution))
	}
	return c.sendMultiline(215, "information follows", lines)
}

func (c *ClientConnection) handleListDistributions() error {
	var lines []string
	for _, d := range c.server.Config.Distributions {
		lines = append(lines, d.Name+" "+d.Description)
	}
	return c.sendMultiline(215, "information follows", lines)
}

func (c *ClientConnection) handleListMOTD() error {
	path := c.server.Config.Server.NNTP.MOTDFile
	if path == "" {
		return c.sendResponse(503, "No MOTD available")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return c.sendResponse(503, "No MOTD available")
	}
	lines := strings.Split(strings.ReplaceAll(strings.TrimRight(string(data), "\r\n"), "\r\n", "\n"), "\n")
	return c.sendMultiline(215, "Message of the day follows", lines)
}

// handleNewGroups lists catalogs created at or after the given time.
func (c *ClientConnection) handleNewGroups(args []string) error {
	since, ok := parseNNTPDateTime(args)
	if !ok {
		return c.sendResponse(501, "Syntax error")
	}
	groups, err := c.server.DB.CatalogsSince(since)
	if err != nil {
		return c.sendStoreError("NEWGROUPS", err)
	}
	lines := make([]string, len(groups))
	for i, g := range groups {
		lines[i] = fmt.Sprintf("%s %d %d %s", g.Name, g.HighWater, g.LowWater, g.Status())
	}
	return c.sendMultiline(231, "list of new newsgroups follows", lines)
}

// handleNewNews lists message-ids of articles dated at or after the
// given time in catalogs matching the wildmat.
func (c *ClientConnection) handleNewNews(args []string) error {
	if len(args) < 3 {
		return c.sendResponse(501, "Syntax error")
	}
	since, ok := parseNNTPDateTime(args[1:])
	if !ok {
		return c.sendResponse(501, "Syntax error")
	}
	ids, err := c.server.DB.ArticlesSince(since, args[0])
	if err != nil {
		return c.sendStoreError("NEWNEWS", err)
	}
	return c.sendMultiline(230, "list of new articles follows", ids)
}

// parseNNTPDateTime parses the "[yy]yymmdd hhmmss [GMT]" argument form
// of NEWGROUPS and NEWNEWS. Without the GMT keyword the stamp is taken
// in server local time and converted.
func parseNNTPDateTime(args []string) (time.Time, bool) {
	if len(args) < 2 || len(args) > 3 {
		return time.Time{}, false
	}
	dateTok, timeTok := args[0], args[1]
	gmt := len(args) == 3 && strings.EqualFold(args[2], "GMT")
	if len(args) == 3 && !gmt {
		return time.Time{}, false
	}

	layout := ""
	switch len(dateTok) {
	case 6:
		layout = "060102"
	case 8:
		layout = "20060102"
	default:
		return time.Time{}, false
	}
	if len(timeTok) != 6 {
		return time.Time{}, false
	}

	loc := time.Local
	if gmt {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(layout+"150405", dateTok+timeTok, loc)
	if err != nil {
		return time.Time{}, false
	}
	// Two-digit years land in the century time.Parse picks (69 rule).
	return t.UTC(), true
}
