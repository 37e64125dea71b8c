package nntp

import (
	"bufio"
	"net"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/go-while/go-mcnttp/internal/config"
	"github.com/go-while/go-mcnttp/internal/database"
	"github.com/go-while/go-mcnttp/internal/models"
)

// session drives one NNTP connection over net.Pipe.
type session struct {
	t      *testing.T
	conn   net.Conn
	reader *bufio.Reader
}

func newTestServer(t *testing.T) (*NNTPServer, *database.Database) {
	t.Helper()
	db, err := database.OpenDatabase(database.DefaultDBConfig(filepath.Join(t.TempDir(), "nntp.sq3")))
	if err != nil {
		t.Fatalf("OpenDatabase: %v", err)
	}
	t.Cleanup(func() { db.Shutdown() })

	cfg := config.NewDefaultConfig()
	cfg.Server.Hostname = "news.example"
	var wg sync.WaitGroup
	srv, err := NewNNTPServer(db, cfg, &wg)
	if err != nil {
		t.Fatalf("NewNNTPServer: %v", err)
	}
	return srv, db
}

func dial(t *testing.T, srv *NNTPServer) *session {
	t.Helper()
	serverSide, clientSide := net.Pipe()
	srv.wg.Add(1)
	go srv.handleConnection(serverSide, false)
	s := &session{t: t, conn: clientSide, reader: bufio.NewReader(clientSide)}
	t.Cleanup(func() { clientSide.Close() })
	return s
}

func (s *session) send(line string) {
	s.t.Helper()
	if _, err := s.conn.Write([]byte(line + "\r\n")); err != nil {
		s.t.Fatalf("write %q: %v", line, err)
	}
}

func (s *session) readLine() string {
	s.t.Helper()
	line, err := s.reader.ReadString('\n')
	if err != nil {
		s.t.Fatalf("read: %v", err)
	}
	return strings.TrimRight(line, "\r\n")
}

// expect reads one line and requires the given prefix.
func (s *session) expect(prefix string) string {
	s.t.Helper()
	line := s.readLine()
	if !strings.HasPrefix(line, prefix) {
		s.t.Fatalf("got %q, want prefix %q", line, prefix)
	}
	return line
}

// readBlock reads a multiline data block up to the lone dot.
func (s *session) readBlock() []string {
	s.t.Helper()
	var lines []string
	for {
		line := s.readLine()
		if line == "." {
			return lines
		}
		lines = append(lines, strings.TrimPrefix(line, "."))
	}
}

func (s *session) post(headers []string, body []string) {
	s.t.Helper()
	s.send("POST")
	s.expect("340")
	for _, h := range headers {
		s.send(h)
	}
	s.send("")
	for _, b := range body {
		s.send(b)
	}
	s.send(".")
}

func TestGreetingAndCapabilities(t *testing.T) {
	srv, _ := newTestServer(t)
	s := dial(t, srv)

	s.expect("200 Service available, posting allowed")
	s.send("CAPABILITIES")
	s.expect("101 Capability list:")
	block := strings.Join(s.readBlock(), "\n")
	for _, want := range []string{"VERSION 2", "POST", "READER", "OVER MSGID", "XFEATURE-COMPRESS GZIP TERMINATOR"} {
		if !strings.Contains(block, want) {
			t.Errorf("capabilities missing %q:\n%s", want, block)
		}
	}

	s.send("QUIT")
	s.expect("205")
}

func TestUnknownCommand(t *testing.T) {
	srv, _ := newTestServer(t)
	s := dial(t, srv)
	s.expect("200")
	s.send("FOO")
	s.expect("500 Unknown command")
}

func TestGroupSelection(t *testing.T) {
	srv, db := newTestServer(t)
	if err := db.CreateCatalog(&models.Newsgroup{Name: "misc.test"}); err != nil {
		t.Fatal(err)
	}
	s := dial(t, srv)
	s.expect("200")

	s.send("GROUP misc.test")
	s.expect("211 0 0 0 misc.test")

	s.send("GROUP no.such.group")
	s.expect("411")

	s.send("ARTICLE")
	s.expect("420")
}

func TestPostAndRetrieve(t *testing.T) {
	srv, db := newTestServer(t)
	if err := db.CreateCatalog(&models.Newsgroup{Name: "misc.test"}); err != nil {
		t.Fatal(err)
	}
	s := dial(t, srv)
	s.expect("200")

	s.post([]string{
		"From: a@b.invalid",
		"Newsgroups: misc.test",
		"Subject: hi",
		"Message-ID: <t1@x>",
	}, []string{"body"})
	s.expect("240 Article received OK")

	// No catalog selected: the number comes from the placement.
	s.send("STAT <t1@x>")
	s.expect("223 1 <t1@x>")

	s.send("GROUP misc.test")
	s.expect("211 1 1 1 misc.test")
	s.send("STAT <t1@x>")
	s.expect("223 1 <t1@x>")

	s.send("ARTICLE 1")
	s.expect("220 1 <t1@x>")
	block := s.readBlock()
	joined := strings.Join(block, "\n")
	if !strings.Contains(joined, "Subject: hi") || !strings.Contains(joined, "body") {
		t.Errorf("ARTICLE block missing content:\n%s", joined)
	}
	// Injection-Date was stamped for the anonymous poster.
	if !strings.Contains(joined, "Injection-Date: ") {
		t.Errorf("no Injection-Date in stored article:\n%s", joined)
	}

	s.send("HEAD 1")
	s.expect("221 1 <t1@x>")
	if head := strings.Join(s.readBlock(), "\n"); strings.Contains(head, "body") {
		t.Errorf("HEAD leaked the body:\n%s", head)
	}

	s.send("BODY 1")
	s.expect("222 1 <t1@x>")
	if body := s.readBlock(); len(body) != 1 || body[0] != "body" {
		t.Errorf("BODY = %v", body)
	}
}

func TestCrosspostIndependentNumbers(t *testing.T) {
	srv, db := newTestServer(t)
	for _, name := range []string{"a.b", "c.d"} {
		if err := db.CreateCatalog(&models.Newsgroup{Name: name}); err != nil {
			t.Fatal(err)
		}
	}
	s := dial(t, srv)
	s.expect("200")

	s.post([]string{
		"From: a@b.invalid",
		"Newsgroups: a.b",
		"Subject: seeding",
		"Message-ID: <t0@x>",
	}, []string{"x"})
	s.expect("240")
	s.post([]string{
		"From: a@b.invalid",
		"Newsgroups: a.b,c.d",
		"Subject: crossing",
		"Message-ID: <t2@x>",
	}, []string{"x"})
	s.expect("240")

	// Without a selected catalog the first placement's number answers.
	s.send("STAT <t2@x>")
	s.expect("223 2 <t2@x>")

	s.send("GROUP a.b")
	s.expect("211 2 1 2 a.b")
	s.send("STAT <t2@x>")
	s.expect("223 2 <t2@x>")
	s.send("GROUP c.d")
	s.expect("211 1 1 1 c.d")
	s.send("STAT <t2@x>")
	s.expect("223 1 <t2@x>")
}

func TestXOverRange(t *testing.T) {
	srv, db := newTestServer(t)
	if err := db.CreateCatalog(&models.Newsgroup{Name: "misc.test"}); err != nil {
		t.Fatal(err)
	}
	s := dial(t, srv)
	s.expect("200")

	for _, id := range []string{"<o1@x>", "<o2@x>", "<o3@x>"} {
		s.post([]string{
			"From: a@b.invalid",
			"Newsgroups: misc.test",
			"Subject: overview",
			"Message-ID: " + id,
			"Date: 17 May 2024 12:30:00 +0000",
		}, []string{"12345678"})
		s.expect("240")
	}

	s.send("GROUP misc.test")
	s.expect("211 3 1 3 misc.test")
	s.send("XOVER 1-2")
	s.expect("224 Overview information follows")
	rows := s.readBlock()
	if len(rows) != 2 {
		t.Fatalf("XOVER rows = %d, want 2", len(rows))
	}
	fields := strings.Split(rows[0], "\t")
	if len(fields) != 8 {
		t.Fatalf("overview fields = %d, want 8: %q", len(fields), rows[0])
	}
	if fields[0] != "1" || fields[1] != "overview" || fields[4] != "<o1@x>" {
		t.Errorf("row = %q", rows[0])
	}
	// Body is 8 bytes stored; the wire reports double.
	if fields[6] != "16" {
		t.Errorf("bytes field = %s, want 16", fields[6])
	}

	s.send("XOVER 9-")
	s.expect("423")
}

func TestHdrAndXPat(t *testing.T) {
	srv, db := newTestServer(t)
	if err := db.CreateCatalog(&models.Newsgroup{Name: "misc.test"}); err != nil {
		t.Fatal(err)
	}
	s := dial(t, srv)
	s.expect("200")

	s.post([]string{
		"From: a@b.invalid",
		"Newsgroups: misc.test",
		"Subject: alpha",
		"Message-ID: <h1@x>",
		"Organization: acme",
	}, []string{"x"})
	s.expect("240")
	s.post([]string{
		"From: a@b.invalid",
		"Newsgroups: misc.test",
		"Subject: beta",
		"Message-ID: <h2@x>",
	}, []string{"x"})
	s.expect("240")

	s.send("GROUP misc.test")
	s.expect("211")

	s.send("HDR Subject 1-")
	s.expect("225")
	if rows := s.readBlock(); len(rows) != 2 || rows[0] != "1 alpha" || rows[1] != "2 beta" {
		t.Errorf("HDR rows = %v", rows)
	}

	// A header outside the tracked set comes from RawHeaders.
	s.send("XHDR Organization 1")
	s.expect("221")
	if rows := s.readBlock(); len(rows) != 1 || rows[0] != "1 acme" {
		t.Errorf("XHDR rows = %v", rows)
	}

	s.send("XPAT Subject 1- al*")
	s.expect("221")
	if rows := s.readBlock(); len(rows) != 1 || rows[0] != "1 alpha" {
		t.Errorf("XPAT rows = %v", rows)
	}
}

func TestLastNextInverse(t *testing.T) {
	srv, db := newTestServer(t)
	if err := db.CreateCatalog(&models.Newsgroup{Name: "misc.test"}); err != nil {
		t.Fatal(err)
	}
	s := dial(t, srv)
	s.expect("200")

	for _, id := range []string{"<n1@x>", "<n2@x>"} {
		s.post([]string{
			"From: a@b.invalid",
			"Newsgroups: misc.test",
			"Subject: s",
			"Message-ID: " + id,
		}, []string{"x"})
		s.expect("240")
	}

	s.send("GROUP misc.test")
	s.expect("211")
	s.send("NEXT")
	s.expect("223 2 <n2@x>")
	s.send("LAST")
	s.expect("223 1 <n1@x>")
	s.send("LAST")
	s.expect("422")
	// The failed LAST must not have moved the pointer.
	s.send("STAT")
	s.expect("223 1 <n1@x>")
}

func TestAuthSequencing(t *testing.T) {
	srv, db := newTestServer(t)
	p := &models.Principal{Username: "alice"}
	if err := db.InsertPrincipal(p, "secret"); err != nil {
		t.Fatal(err)
	}
	s := dial(t, srv)
	s.expect("200")

	// PASS before USER is out of sequence.
	s.send("AUTHINFO PASS secret")
	s.expect("482")

	// Any command between USER and PASS is out of sequence.
	s.send("AUTHINFO USER alice")
	s.expect("381")
	s.send("DATE")
	s.expect("482")

	s.send("AUTHINFO USER alice")
	s.expect("381")
	s.send("AUTHINFO PASS wrong")
	s.expect("481")

	s.send("AUTHINFO USER alice")
	s.expect("381")
	s.send("AUTHINFO PASS secret")
	s.expect("281")

	s.send("AUTHINFO USER alice")
	s.expect("502")
}

func TestModerationFlow(t *testing.T) {
	srv, db := newTestServer(t)
	if err := db.CreateCatalog(&models.Newsgroup{Name: "mod.test", Moderated: true}); err != nil {
		t.Fatal(err)
	}
	mod := &models.Principal{Username: "mod", Mailbox: "mod@example.org", Moderates: []string{"mod.test"}}
	if err := db.InsertPrincipal(mod, "secret"); err != nil {
		t.Fatal(err)
	}

	// Anonymous post lands pending: accepted but invisible.
	s := dial(t, srv)
	s.expect("200")
	s.post([]string{
		"From: a@b.invalid",
		"Newsgroups: mod.test",
		"Subject: held",
		"Message-ID: <m1@x>",
	}, []string{"please"})
	s.expect("240")
	s.send("GROUP mod.test")
	s.expect("211 0 0 0 mod.test")
	s.send("STAT <m1@x>")
	s.expect("430")

	// The moderator sees it in .pending and approves it.
	m := dial(t, srv)
	m.expect("200")
	m.send("AUTHINFO USER mod")
	m.expect("381")
	m.send("AUTHINFO PASS secret")
	m.expect("281")
	m.send("GROUP mod.test.pending")
	m.expect("211 1 1 1 mod.test.pending")
	m.post([]string{
		"From: mod@example.org",
		"Newsgroups: mod.test",
		"Subject: approval",
		"Message-ID: <ap1@x>",
		"References: <m1@x>",
	}, []string{"APPROVE"})
	m.expect("240")

	// Now it is live for everyone, with its original number.
	s.send("GROUP mod.test")
	s.expect("211 1 1 1 mod.test")
	s.send("STAT <m1@x>")
	s.expect("223 1 <m1@x>")
	s.send("HEAD 1")
	s.expect("221")
	if head := strings.Join(s.readBlock(), "\n"); !strings.Contains(head, "Approved: mod@example.org") {
		t.Errorf("approval not recorded in headers:\n%s", head)
	}

	// The pending view is gone for the anonymous reader all along.
	s.send("GROUP mod.test.pending")
	s.expect("411")
}

func TestCancelControl(t *testing.T) {
	srv, db := newTestServer(t)
	if err := db.CreateCatalog(&models.Newsgroup{Name: "misc.test"}); err != nil {
		t.Fatal(err)
	}
	admin := &models.Principal{Username: "admin", CanCancel: true}
	if err := db.InsertPrincipal(admin, "secret"); err != nil {
		t.Fatal(err)
	}

	s := dial(t, srv)
	s.expect("200")
	s.post([]string{
		"From: a@b.invalid",
		"Newsgroups: misc.test",
		"Subject: doomed",
		"Message-ID: <v1@x>",
	}, []string{"x"})
	s.expect("240")

	// Anonymous cancel is refused.
	s.post([]string{
		"From: a@b.invalid",
		"Newsgroups: misc.test",
		"Subject: cmsg cancel <v1@x>",
		"Control: cancel <v1@x>",
		"Message-ID: <c0@x>",
	}, []string{"cancel"})
	s.expect("480")

	a := dial(t, srv)
	a.expect("200")
	a.send("AUTHINFO USER admin")
	a.expect("381")
	a.send("AUTHINFO PASS secret")
	a.expect("281")
	a.post([]string{
		"From: admin@example.org",
		"Newsgroups: misc.test",
		"Subject: cmsg cancel <v1@x>",
		"Control: cancel <v1@x>",
		"Message-ID: <c1@x>",
	}, []string{"cancel"})
	a.expect("240")

	// Gone from the normal view; the number is burned.
	s.send("GROUP misc.test")
	s.expect("211 0 0 0 misc.test")
	s.send("STAT <v1@x>")
	s.expect("430")

	// The admin still reaches it through the .deleted view.
	a.send("GROUP misc.test.deleted")
	line := a.expect("211")
	if !strings.Contains(line, "misc.test.deleted") {
		t.Errorf("GROUP .deleted = %q", line)
	}
	a.send("STAT <v1@x>")
	a.expect("223")
}

func TestListKeywords(t *testing.T) {
	srv, db := newTestServer(t)
	if err := db.CreateCatalog(&models.Newsgroup{Name: "misc.test", Description: "testing here"}); err != nil {
		t.Fatal(err)
	}
	s := dial(t, srv)
	s.expect("200")

	s.send("LIST")
	s.expect("215")
	if rows := s.readBlock(); len(rows) != 1 || rows[0] != "misc.test 0 0 y" {
		t.Errorf("LIST ACTIVE rows = %v", rows)
	}

	s.send("LIST NEWSGROUPS")
	s.expect("215")
	if rows := s.readBlock(); len(rows) != 1 || rows[0] != "misc.test\ttesting here" {
		t.Errorf("LIST NEWSGROUPS rows = %v", rows)
	}

	s.send("LIST OVERVIEW.FMT")
	s.expect("215")
	if rows := s.readBlock(); len(rows) != 7 || rows[0] != "Subject:" {
		t.Errorf("OVERVIEW.FMT rows = %v", rows)
	}

	s.send("LIST DISTRIB.PATS")
	s.expect("215")
	if rows := s.readBlock(); len(rows) != 1 || rows[0] != "10:*:world" {
		t.Errorf("DISTRIB.PATS rows = %v", rows)
	}

	s.send("LIST DISTRIBUTIONS anything")
	s.expect("501")

	s.send("LIST ACTIVE misc.*")
	s.expect("215")
	if rows := s.readBlock(); len(rows) != 1 {
		t.Errorf("filtered LIST rows = %v", rows)
	}
	s.send("LIST ACTIVE alt.*")
	s.expect("215")
	if rows := s.readBlock(); len(rows) != 0 {
		t.Errorf("non-matching LIST rows = %v", rows)
	}
}

func TestListGroupAndDate(t *testing.T) {
	srv, db := newTestServer(t)
	if err := db.CreateCatalog(&models.Newsgroup{Name: "misc.test"}); err != nil {
		t.Fatal(err)
	}
	s := dial(t, srv)
	s.expect("200")

	s.send("LISTGROUP")
	s.expect("412")

	s.post([]string{
		"From: a@b.invalid",
		"Newsgroups: misc.test",
		"Subject: s",
		"Message-ID: <lg1@x>",
	}, []string{"x"})
	s.expect("240")

	s.send("LISTGROUP misc.test")
	s.expect("211 1 1 1 misc.test")
	if rows := s.readBlock(); len(rows) != 1 || rows[0] != "1" {
		t.Errorf("LISTGROUP rows = %v", rows)
	}

	s.send("DATE")
	line := s.expect("111 ")
	if len(line) != len("111 ")+14 {
		t.Errorf("DATE = %q", line)
	}

	s.send("MODE READER")
	s.expect("200")
	s.send("HELP")
	s.expect("100")
	s.readBlock()
}

func TestXFeatureNegotiation(t *testing.T) {
	srv, _ := newTestServer(t)
	s := dial(t, srv)
	s.expect("200")

	s.send("XFEATURE COMPRESS LZW")
	s.expect("501")
	s.send("XFEATURE COMPRESS GZIP BOGUS")
	s.expect("501")
	s.send("XFEATURE COMPRESS GZIP TERMINATOR EXTRA")
	s.expect("501")
	s.send("XFEATURE COMPRESS GZIP TERMINATOR")
	s.expect("290")
}
