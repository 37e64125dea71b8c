// Package nntp implements the NNTP reader/poster protocol engine:
// listeners, per-connection sessions, the command dispatcher and the
// posting pipeline.
package nntp

import (
	"crypto/tls"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"github.com/go-while/go-mcnttp/internal/config"
	"github.com/go-while/go-mcnttp/internal/database"
)

// NNTPServer represents the main NNTP server
type NNTPServer struct {
	Config      *config.MainConfig
	DB          database.Store
	Listener    net.Listener
	TLSListener net.Listener
	AuthManager *AuthManager
	Stats       *ServerStats
	tlsConfig   *tls.Config // nil when no certificate is available
	shutdown    chan struct{}
	wg          *sync.WaitGroup // external waitgroup for coordination
	mu          sync.RWMutex
	running     bool
}

// NewNNTPServer creates a new NNTP server instance
func NewNNTPServer(store database.Store, cfg *config.MainConfig, mainWG *sync.WaitGroup) (*NNTPServer, error) {
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if cfg == nil {
		return nil, fmt.Errorf("server config cannot be nil")
	}
	if mainWG == nil {
		return nil, fmt.Errorf("main waitgroup cannot be nil")
	}

	server := &NNTPServer{
		Config:      cfg,
		DB:          store,
		AuthManager: NewAuthManager(store),
		Stats:       NewServerStats(),
		shutdown:    make(chan struct{}),
		wg:          mainWG,
	}
	return server, nil
}

// Start starts the NNTP server on the configured ports
func (s *NNTPServer) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("server is already running")
	}

	tlsConfig, err := loadTLSConfig(&s.Config.Server)
	if err != nil {
		return err
	}
	s.tlsConfig = tlsConfig

	// Start regular NNTP listener
	if s.Config.Server.NNTP.Port > 0 {
		listener, err := net.Listen("tcp", fmt.Sprintf(":%d", s.Config.Server.NNTP.Port))
		if err != nil {
			return fmt.Errorf("failed to start NNTP listener on port %d: %w", s.Config.Server.NNTP.Port, err)
		}
		s.Listener = listener
		log.Printf("NNTP server listening on port %d", s.Config.Server.NNTP.Port)

		s.wg.Add(1)
		go s.serve(s.Listener, false)
	}

	// Start implicit-TLS listener if configured
	if s.Config.Server.NNTP.TLSPort > 0 {
		if s.tlsConfig == nil {
			return fmt.Errorf("TLS port %d configured without a certificate", s.Config.Server.NNTP.TLSPort)
		}
		listener, err := tls.Listen("tcp", fmt.Sprintf(":%d", s.Config.Server.NNTP.TLSPort), s.tlsConfig)
		if err != nil {
			return fmt.Errorf("failed to start NNTP TLS listener on port %d: %w", s.Config.Server.NNTP.TLSPort, err)
		}
		s.TLSListener = listener
		log.Printf("NNTP TLS server listening on port %d", s.Config.Server.NNTP.TLSPort)

		s.wg.Add(1)
		go s.serve(s.TLSListener, true)
	}

	s.running = true
	log.Println("NNTP server started successfully")
	return nil
}

// serve handles incoming connections on the given listener
func (s *NNTPServer) serve(listener net.Listener, isTLS bool) {
	defer s.wg.Done()

	for {
		select {
		case <-s.shutdown:
			return
		default:
			conn, err := listener.Accept()
			if err != nil {
				select {
				case <-s.shutdown:
					return
				default:
					log.Printf("Error accepting connection: %v", err)
					continue
				}
			}

			// Check connection limits
			if s.Stats.GetActiveConnections() >= s.Config.Server.NNTP.MaxConns {
				log.Printf("Connection limit reached, rejecting connection from %s", conn.RemoteAddr())
				conn.Close()
				continue
			}

			s.wg.Add(1)
			go s.handleConnection(conn, isTLS)
		}
	}
}

// handleConnection processes a single client connection
func (s *NNTPServer) handleConnection(conn net.Conn, isTLS bool) {
	defer s.wg.Done()
	defer conn.Close()

	s.Stats.ConnectionStarted()
	defer s.Stats.ConnectionEnded()

	client := NewClientConnection(conn, s, isTLS)
	if err := client.Handle(); err != nil {
		log.Printf("Connection error from %s: %v", conn.RemoteAddr(), err)
	}
}

// Stop gracefully shuts down the NNTP server
func (s *NNTPServer) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	log.Println("Shutting down NNTP server...")
	close(s.shutdown)

	if s.Listener != nil {
		s.Listener.Close()
	}
	if s.TLSListener != nil {
		s.TLSListener.Close()
	}

	// Give active sessions a moment to notice the shutdown; the main
	// waitgroup is waited on by the caller.
	deadline := time.Now().Add(5 * time.Second)
	for s.Stats.GetActiveConnections() > 0 && time.Now().Before(deadline) {
		time.Sleep(100 * time.Millisecond)
	}

	s.running = false
	log.Println("NNTP server shut down")
	return nil
}

// IsRunning returns whether the server is currently running
func (s *NNTPServer) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}
