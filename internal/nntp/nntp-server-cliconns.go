package nntp

import (
	"bufio"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"strings"
	"time"

	"github.com/go-while/go-mcnttp/internal/config"
	"github.com/go-while/go-mcnttp/internal/models"
)

// errQuit signals a client-initiated graceful close.
var errQuit = errors.New("quit")

// lineResult is what an in-process command handler reports after
// consuming a line.
type lineResult int

const (
	lineContinue lineResult = iota // still consuming
	lineDone                       // restore normal dispatch
	lineQuit                       // terminate the session
)

// lineHandler is the continuation installed by POST: while set, every
// input line bypasses normal dispatch.
type lineHandler func(line string) (lineResult, error)

// ClientConnection represents a client connection to the NNTP server
type ClientConnection struct {
	conn   net.Conn
	reader *bufio.Reader
	writer *bufio.Writer
	server *NNTPServer
	isTLS  bool

	// Session state.
	compressed     bool // XFEATURE COMPRESS GZIP accepted
	awaitingPass   bool // AUTHINFO USER seen, PASS must follow
	authUsername   string
	principal      *models.Principal
	currentGroup   *models.Newsgroup
	currentArticle int64 // 0 = no current article

	inProcess lineHandler

	created     time.Time
	lastCommand time.Time
}

// NewClientConnection creates a new client connection
func NewClientConnection(conn net.Conn, server *NNTPServer, isTLS bool) *ClientConnection {
	return &ClientConnection{
		conn:        conn,
		reader:      bufio.NewReaderSize(conn, config.MaxArticleLine),
		writer:      bufio.NewWriter(conn),
		server:      server,
		isTLS:       isTLS,
		created:     time.Now(),
		lastCommand: time.Now(),
	}
}

func (c *ClientConnection) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

func (c *ClientConnection) UpdateDeadlines() {
	timeout := c.server.Config.Server.NNTP.IdleTimeout
	if timeout <= 0 {
		timeout = config.DefaultIdleTimeout
	}
	c.conn.SetReadDeadline(time.Now().Add(timeout))
	c.conn.SetWriteDeadline(time.Now().Add(timeout))
}

// Handle processes the client connection
func (c *ClientConnection) Handle() error {
	if err := c.sendWelcome(); err != nil {
		return fmt.Errorf("failed to send welcome: %w", err)
	}

	for {
		c.UpdateDeadlines()
		line, err := c.readLine()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("failed to read command: %w", err)
		}
		c.lastCommand = time.Now()

		// An installed continuation (POST body) intercepts every line.
		if c.inProcess != nil {
			result, err := c.inProcess(line)
			if err != nil {
				return err
			}
			switch result {
			case lineDone:
				c.inProcess = nil
			case lineQuit:
				return nil
			}
			continue
		}

		if err := c.dispatch(line); err != nil {
			if err == errQuit {
				return nil
			}
			return err
		}
	}
}

// readLine reads one CRLF-terminated line, enforcing the line length
// cap. Commands are capped at 512 octets; article transfer uses the
// larger cap.
func (c *ClientConnection) readLine() (string, error) {
	maxLen := config.MaxCommandLine
	if c.inProcess != nil {
		maxLen = config.MaxArticleLine
	}

	var buf []byte
	for {
		chunk, isPrefix, err := c.reader.ReadLine()
		if err != nil {
			return "", err
		}
		buf = append(buf, chunk...)
		if len(buf) > maxLen {
			return "", fmt.Errorf("line exceeds %d octets", maxLen)
		}
		if !isPrefix {
			return string(buf), nil
		}
	}
}

// sendWelcome sends the initial greeting
func (c *ClientConnection) sendWelcome() error {
	if c.server.Config.Server.NNTP.AllowPosting {
		return c.sendResponse(200, "Service available, posting allowed")
	}
	return c.sendResponse(201, "Service available, posting prohibited")
}

// dispatch parses a command line, routes it to its handler and maps
// an escaped error to a 403 close per the recovery policy.
func (c *ClientConnection) dispatch(line string) error {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return c.sendResponse(500, "Unknown command")
	}

	command := strings.ToUpper(parts[0])
	args := parts[1:]

	c.server.Stats.CommandExecuted(command)

	// AUTHINFO USER demands AUTHINFO PASS as the very next command.
	if c.awaitingPass && (command != "AUTHINFO" || len(args) == 0 || !strings.EqualFold(args[0], "PASS")) {
		c.awaitingPass = false
		c.authUsername = ""
		return c.sendResponse(482, "Authentication commands out of sequence")
	}

	err := c.handleCommand(command, args)
	if err != nil && err != errQuit {
		log.Printf("Command error from %s: %v", c.conn.RemoteAddr(), err)
		c.sendResponse(403, "Archive server temporarily offline")
		return err
	}
	return err
}

func (c *ClientConnection) handleCommand(command string, args []string) error {
	switch command {
	case "CAPABILITIES":
		return c.handleCapabilities()
	case "MODE":
		return c.handleMode(args)
	case "DATE":
		return c.handleDate()
	case "HELP":
		return c.handleHelp()
	case "QUIT":
		return c.handleQuit()
	case "AUTHINFO":
		return c.handleAuthInfo(args)
	case "STARTTLS":
		return c.handleStartTLS()
	case "XFEATURE":
		return c.handleXFeature(args)
	case "GROUP":
		return c.handleGroup(args)
	case "LISTGROUP":
		return c.handleListGroup(args)
	case "LAST":
		return c.handleLastNext(false)
	case "NEXT":
		return c.handleLastNext(true)
	case "LIST":
		return c.handleList(args)
	case "NEWGROUPS":
		return c.handleNewGroups(args)
	case "NEWNEWS":
		return c.handleNewNews(args)
	case "ARTICLE":
		return c.handleArticleCmd("ARTICLE", args)
	case "HEAD":
		return c.handleArticleCmd("HEAD", args)
	case "BODY":
		return c.handleArticleCmd("BODY", args)
	case "STAT":
		return c.handleArticleCmd("STAT", args)
	case "OVER", "XOVER":
		return c.handleOver(args)
	case "HDR":
		return c.handleHdr(225, args)
	case "XHDR":
		return c.handleHdr(221, args)
	case "XPAT":
		return c.handleXPat(args)
	case "POST":
		return c.handlePost()
	default:
		return c.sendResponse(500, "Unknown command")
	}
}

// sendResponse sends a single-line response
func (c *ClientConnection) sendResponse(code int, format string, args ...interface{}) error {
	message := format
	if len(args) > 0 {
		message = fmt.Sprintf(format, args...)
	}
	if _, err := fmt.Fprintf(c.writer, "%d %s%s", code, message, config.CRLF); err != nil {
		return err
	}
	return c.writer.Flush()
}

// sendMultiline sends a status line followed by a dot-terminated data
// block. With compression enabled, the block (including its terminating
// dot line) is emitted as one gzip blob followed by CRLF.CRLF.
func (c *ClientConnection) sendMultiline(code int, message string, lines []string) error {
	if _, err := fmt.Fprintf(c.writer, "%d %s%s", code, message, config.CRLF); err != nil {
		return err
	}

	if c.compressed {
		zw := gzip.NewWriter(c.writer)
		for _, line := range lines {
			if _, err := io.WriteString(zw, dotStuff(line)+config.CRLF); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(zw, config.DOT+config.CRLF); err != nil {
			return err
		}
		if err := zw.Close(); err != nil {
			return err
		}
		if _, err := io.WriteString(c.writer, config.CRLF+config.DOT+config.CRLF); err != nil {
			return err
		}
		return c.writer.Flush()
	}

	for _, line := range lines {
		if _, err := io.WriteString(c.writer, dotStuff(line)+config.CRLF); err != nil {
			return err
		}
	}
	if _, err := io.WriteString(c.writer, config.DOT+config.CRLF); err != nil {
		return err
	}
	return c.writer.Flush()
}

// dotStuff prepends the extra dot required on data lines beginning
// with a dot.
func dotStuff(line string) string {
	if strings.HasPrefix(line, config.DOT) {
		return config.DOT + line
	}
	return line
}

// getServerCapabilities returns the capability list for this session.
func (c *ClientConnection) getServerCapabilities() []string {
	caps := []string{
		"VERSION 2",
		"IMPLEMENTATION mcnttp " + config.AppVersion,
		"READER",
		"NEWNEWS",
		"HDR",
		"OVER MSGID",
		"LIST ACTIVE NEWSGROUPS ACTIVE.TIMES DISTRIB.PATS HEADERS OVERVIEW.FMT",
		"MODE-READER",
	}
	if c.server.Config.Server.NNTP.AllowPosting {
		caps = append(caps, "POST")
	}
	if c.principal == nil {
		caps = append(caps, "AUTHINFO USER PASS")
	}
	if c.server.tlsConfig != nil && !c.isTLS {
		caps = append(caps, "STARTTLS")
	}
	caps = append(caps, "XFEATURE-COMPRESS GZIP TERMINATOR")
	return caps
}
