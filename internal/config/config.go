// Package config provides configuration management for go-mcnttp.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/go-while/go-mcnttp/internal/models"
)

var AppVersion = "-unset-" // set at build time

const (
	// NNTP protocol constants
	DOT  = "."
	CR   = "\r"
	LF   = "\n"
	CRLF = CR + LF

	// Command lines are capped at 512 octets per RFC 3977; article
	// transfer uses a larger cap.
	MaxCommandLine = 512
	MaxArticleLine = 4096

	// Default connection settings
	DefaultIdleTimeout    = 10 * time.Minute
	DefaultMaxArticleSize = 1 << 20 // 1 MB

	// NNTPServer defaults
	NNTPServerMaxConns = 500
)

// MainConfig holds the main configuration for go-mcnttp.
type MainConfig struct {
	AppVersion string `toml:"-"`

	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Web      WebConfig      `toml:"web"`

	// LIST DISTRIBUTIONS / LIST DISTRIB.PATS content.
	Distributions []models.Distribution        `toml:"distributions"`
	DistribPats   []models.DistributionPattern `toml:"distrib_pats"`
}

// ServerConfig holds the NNTP server configuration.
type ServerConfig struct {
	Hostname string `toml:"hostname"` // used in Path, Xref and generated ids

	NNTP struct {
		Port         int           `toml:"port"`     // clear text (STARTTLS allowed when cert present)
		TLSPort      int           `toml:"tls_port"` // implicit TLS
		MaxConns     int           `toml:"max_connections"`
		AllowPosting bool          `toml:"allow_posting"`
		TLSCert      string        `toml:"tls_cert"` // empty: self-signed at startup
		TLSKey       string        `toml:"tls_key"`
		MaxArtSize   int           `toml:"max_article_size"`
		IdleTimeout  time.Duration `toml:"idle_timeout"`
		MOTDFile     string        `toml:"motd_file"`
	} `toml:"nntp"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	MainDB string `toml:"main_db"` // path to the sqlite file
}

// WebConfig holds the status API configuration.
type WebConfig struct {
	ListenPort int  `toml:"listen_port"` // 0 disables the status API
	Debug      bool `toml:"debug"`
}

// NewDefaultConfig returns a configuration with sensible defaults.
func NewDefaultConfig() *MainConfig {
	cfg := &MainConfig{
		AppVersion: AppVersion,
		Database: DatabaseConfig{
			MainDB: "data/mcnttp.sq3",
		},
		Web: WebConfig{
			ListenPort: 0,
		},
		Distributions: []models.Distribution{
			{Name: "local", Description: "Local to this site"},
			{Name: "world", Description: "Everywhere"},
		},
		DistribPats: []models.DistributionPattern{
			{Weight: 10, Wildmat: "*", Distribution: "world"},
		},
	}
	cfg.Server.NNTP.Port = 1119
	cfg.Server.NNTP.TLSPort = 0
	cfg.Server.NNTP.MaxConns = NNTPServerMaxConns
	cfg.Server.NNTP.AllowPosting = true
	cfg.Server.NNTP.MaxArtSize = DefaultMaxArticleSize
	cfg.Server.NNTP.IdleTimeout = DefaultIdleTimeout
	return cfg
}

// LoadConfig reads a TOML file over the defaults. A missing path is
// not an error: callers then run on defaults plus flags.
func LoadConfig(path string) (*MainConfig, error) {
	cfg := NewDefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}
