package nntp

import (
	"sync"
	"time"
)

// ServerStats tracks NNTP server statistics
type ServerStats struct {
	mux               sync.RWMutex
	startTime         time.Time
	activeConnections int64
	totalConnections  int64
	commandCounts     map[string]int64
	authSuccesses     int64
	authFailures      int64
	articlesPosted    int64
	articlesCancelled int64
}

// NewServerStats creates a new server statistics tracker
func NewServerStats() *ServerStats {
	return &ServerStats{
		startTime:     time.Now(),
		commandCounts: make(map[string]int64),
	}
}

// ConnectionStarted increments the connection counters
func (s *ServerStats) ConnectionStarted() {
	s.mux.Lock()
	defer s.mux.Unlock()
	s.activeConnections++
	s.totalConnections++
}

// ConnectionEnded decrements the active connection counter
func (s *ServerStats) ConnectionEnded() {
	s.mux.Lock()
	defer s.mux.Unlock()
	s.activeConnections--
}

// GetActiveConnections returns the current number of active connections
func (s *ServerStats) GetActiveConnections() int {
	s.mux.RLock()
	defer s.mux.RUnlock()
	return int(s.activeConnections)
}

// CommandExecuted increments the counter for a specific command
func (s *ServerStats) CommandExecuted(command string) {
	s.mux.Lock()
	defer s.mux.Unlock()
	s.commandCounts[command]++
}

// AuthAttempt records an authentication outcome
func (s *ServerStats) AuthAttempt(success bool) {
	s.mux.Lock()
	defer s.mux.Unlock()
	if success {
		s.authSuccesses++
	} else {
		s.authFailures++
	}
}

// ArticlePosted increments the accepted-posting counter
func (s *ServerStats) ArticlePosted() {
	s.mux.Lock()
	defer s.mux.Unlock()
	s.articlesPosted++
}

// ArticleCancelled increments the cancel counter
func (s *ServerStats) ArticleCancelled() {
	s.mux.Lock()
	defer s.mux.Unlock()
	s.articlesCancelled++
}

// StatsSnapshot is a point-in-time copy for the status API.
type StatsSnapshot struct {
	UptimeSeconds     int64            `json:"uptime_seconds"`
	ActiveConnections int64            `json:"active_connections"`
	TotalConnections  int64            `json:"total_connections"`
	CommandCounts     map[string]int64 `json:"command_counts"`
	AuthSuccesses     int64            `json:"auth_successes"`
	AuthFailures      int64            `json:"auth_failures"`
	ArticlesPosted    int64            `json:"articles_posted"`
	ArticlesCancelled int64            `json:"articles_cancelled"`
}

// Snapshot returns a copy of all counters.
func (s *ServerStats) Snapshot() StatsSnapshot {
	s.mux.RLock()
	defer s.mux.RUnlock()
	counts := make(map[string]int64, len(s.commandCounts))
	for k, v := range s.commandCounts {
		counts[k] = v
	}
	return StatsSnapshot{
		UptimeSeconds:     int64(time.Since(s.startTime).Seconds()),
		ActiveConnections: s.activeConnections,
		TotalConnections:  s.totalConnections,
		CommandCounts:     counts,
		AuthSuccesses:     s.authSuccesses,
		AuthFailures:      s.authFailures,
		ArticlesPosted:    s.articlesPosted,
		ArticlesCancelled: s.articlesCancelled,
	}
}
