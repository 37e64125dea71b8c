package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	prof "github.com/go-while/go-cpu-mem-profiler"

	"github.com/go-while/go-mcnttp/internal/config"
	"github.com/go-while/go-mcnttp/internal/database"
	"github.com/go-while/go-mcnttp/internal/nntp"
	"github.com/go-while/go-mcnttp/internal/web"
)

var (
	configPath   string
	hostname     string
	nntptcpport  int
	nntptlsport  int
	nntpcertFile string
	nntpkeyFile  string
	mainDBPath   string
	webPort      int
	maxConns     int
	noPosting    bool
	pprofWeb     string
)

var Prof *prof.Profiler

var appVersion = "-unset-"

func main() {
	config.AppVersion = appVersion
	log.Printf("Starting go-mcnttp NNTP server (version: %s)", appVersion)

	flag.StringVar(&configPath, "config", "", "path to TOML configuration file")
	flag.StringVar(&hostname, "hostname", "", "server hostname used in generated ids and Xref")
	flag.IntVar(&nntptcpport, "nntptcpport", 0, "NNTP TCP port (overrides config)")
	flag.IntVar(&nntptlsport, "nntptlsport", 0, "NNTP TLS port (overrides config)")
	flag.StringVar(&nntpcertFile, "nntpcertfile", "", "NNTP TLS certificate file (/path/to/fullchain.pem)")
	flag.StringVar(&nntpkeyFile, "nntpkeyfile", "", "NNTP TLS key file (/path/to/privkey.pem)")
	flag.StringVar(&mainDBPath, "maindb", "", "path to the sqlite database file (overrides config)")
	flag.IntVar(&webPort, "webport", 0, "status API port (overrides config, 0 disables)")
	flag.IntVar(&maxConns, "maxconnections", 0, "allow max of N connections (overrides config)")
	flag.BoolVar(&noPosting, "noposting", false, "refuse POST on all ports")
	flag.StringVar(&pprofWeb, "pprofweb", "", "start pprof web server on addr (e.g. :51111)")
	flag.Parse()

	mainConfig, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Command-line flags win over the config file.
	if hostname != "" {
		mainConfig.Server.Hostname = hostname
	}
	if nntptcpport > 0 {
		mainConfig.Server.NNTP.Port = nntptcpport
	}
	if nntptlsport > 0 {
		mainConfig.Server.NNTP.TLSPort = nntptlsport
	}
	if nntpcertFile != "" {
		mainConfig.Server.NNTP.TLSCert = nntpcertFile
		mainConfig.Server.NNTP.TLSKey = nntpkeyFile
	}
	if mainDBPath != "" {
		mainConfig.Database.MainDB = mainDBPath
	}
	if webPort > 0 {
		mainConfig.Web.ListenPort = webPort
	}
	if maxConns > 0 {
		mainConfig.Server.NNTP.MaxConns = maxConns
	}
	if noPosting {
		mainConfig.Server.NNTP.AllowPosting = false
	}

	if mainConfig.Server.Hostname == "" {
		log.Fatalf("Error: hostname must be set (flag -hostname or config)!")
	}
	if mainConfig.Server.NNTP.MaxConns > config.NNTPServerMaxConns {
		log.Printf("WARNING! Setting max connections to %d: you may hit filedescriptor limits, raise ulimit -n!",
			mainConfig.Server.NNTP.MaxConns)
	}

	if pprofWeb != "" {
		Prof = prof.NewProf()
		go Prof.PprofWeb(pprofWeb)
	}

	db, err := database.OpenDatabase(database.DefaultDBConfig(mainConfig.Database.MainDB))
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Shutdown()

	wg := &sync.WaitGroup{}
	nntpServer, err := nntp.NewNNTPServer(db, mainConfig, wg)
	if err != nil {
		log.Fatalf("Failed to create NNTP server: %v", err)
	}
	if err := nntpServer.Start(); err != nil {
		log.Fatalf("Failed to start NNTP server: %v", err)
	}

	statusServer := web.NewStatusServer(mainConfig, db, nntpServer.Stats)
	if statusServer != nil {
		if err := statusServer.Start(); err != nil {
			log.Fatalf("Failed to start status API: %v", err)
		}
	}

	// Wait for interrupt signal to gracefully shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down...")
	if err := nntpServer.Stop(); err != nil {
		log.Printf("Error shutting down NNTP server: %v", err)
	}
	if statusServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := statusServer.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down status API: %v", err)
		}
		cancel()
	}
	wg.Wait()
	log.Println("go-mcnttp stopped")
}
