package config

import (
	"net"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/clientmap/internal/boundary"
	"github.com/nao1215/clientmap/internal/lifecycle"
	"github.com/nao1215/clientmap/internal/profile"
)

// Snapshot modes select the reconciliation snapshot provider.
const (
	// SnapshotModeHTTP fetches the scan target and parses the served HTML.
	SnapshotModeHTTP = "http"

	// SnapshotModeBrowser renders the target in headless Chromium and reads
	// the live DOM.
	SnapshotModeBrowser = "browser"
)

// Spawn policies select how reconciliation runs are started.
const (
	// SpawnPolicyGo starts one goroutine per run, untracked.
	SpawnPolicyGo = "go"

	// SpawnPolicyPool hands runs to a bounded worker pool.
	SpawnPolicyPool = "pool"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "clientmap"

	// DefaultListenAddress is where the telemetry API listens. It is bound
	// to loopback because the browser extension and proxy run locally.
	DefaultListenAddress = "127.0.0.1:8089"

	// DefaultSnapshotTimeout bounds one reconciliation snapshot.
	DefaultSnapshotTimeout = 30 * time.Second

	// DefaultWorkers and DefaultQueueSize size the pool spawn policy.
	DefaultWorkers   = 2
	DefaultQueueSize = 8

	// DefaultMaxBodySize limits how much of a snapshot page is read.
	DefaultMaxBodySize = 10 * 1024 * 1024 // 10MB
)

// Config holds all configuration options for clientmap.
// This struct is populated from the config file and CLI flags and passed
// through the application via dependency injection rather than global state.
//
// Design decision: We use a single flat struct instead of nested structs
// for simplicity. The YAML file is nested for readability and is
// flattened into Config by File.Apply.
type Config struct {
	// ListenAddress is the telemetry API address in "host:port" format.
	ListenAddress string

	// ControlPrefixes are the URL prefixes of the tool's own control
	// channel. Matching traffic never reaches the tree or the history.
	ControlPrefixes []string

	// Topic is the publisher name scan lifecycle events arrive on.
	Topic string

	// SnapshotMode is SnapshotModeHTTP or SnapshotModeBrowser.
	SnapshotMode string

	// SnapshotTimeout bounds a single reconciliation snapshot.
	SnapshotTimeout time.Duration

	// ProxyAddress is an optional SOCKS5 proxy ("host:port") snapshot
	// requests are routed through.
	ProxyAddress string

	// UserAgent is sent with HTTP snapshot requests. Empty means the
	// crawler default.
	UserAgent string

	// MaxBodySize is the maximum snapshot page size in bytes.
	// Set to 0 to use the default.
	MaxBodySize int64

	// SameSiteOnly drops snapshot URLs that leave the target host.
	SameSiteOnly bool

	// SpawnPolicy is SpawnPolicyGo or SpawnPolicyPool.
	SpawnPolicy string

	// Workers and QueueSize size the pool spawn policy.
	Workers   int
	QueueSize int

	// ProfileName is the browser profile kept in sync at startup.
	ProfileName string

	// ProfileRoot overrides the directory browser profiles live in.
	// Empty means the platform default.
	ProfileRoot string

	// SkipProfileSync disables the startup profile synchronization.
	SkipProfileSync bool

	// DBDir is the directory of the history database.
	// Defaults to the XDG data directory (~/.local/share/clientmap on Linux).
	DBDir string

	// SaveToDB archives every accepted reported object and the tree.
	SaveToDB bool

	// Verbose enables debug log output. When false, only warnings and
	// errors are logged.
	Verbose bool

	// JSONLog switches log output to JSON.
	JSONLog bool

	// SensitiveKeys are masked in logs in addition to the built-in keys.
	SensitiveKeys []string

	// ConfigFilePath is the path to the configuration file.
	// If empty, the tool searches for .clientmap in the current directory
	// and then in the user's home directory.
	ConfigFilePath string

	// Sites holds per-host snapshot settings loaded from the config file.
	Sites *File
}

// NewConfig creates a new Config with default values.
//
// Design decision: We use a constructor function instead of relying on
// zero values because many defaults are non-zero. This also serves as
// documentation of what the defaults are.
func NewConfig() *Config {
	return &Config{
		ListenAddress:   DefaultListenAddress,
		ControlPrefixes: boundary.Default().Prefixes(),
		Topic:           lifecycle.DefaultTopic,
		SnapshotMode:    SnapshotModeHTTP,
		SnapshotTimeout: DefaultSnapshotTimeout,
		MaxBodySize:     DefaultMaxBodySize,
		SameSiteOnly:    true,
		SpawnPolicy:     SpawnPolicyGo,
		Workers:         DefaultWorkers,
		QueueSize:       DefaultQueueSize,
		ProfileName:     profile.DefaultProfileName,
		DBDir:           XDGDataDir(),
		SaveToDB:        true,
	}
}

// XDGDataDir returns the XDG data directory for clientmap.
// On Linux: ~/.local/share/clientmap
// On macOS: ~/Library/Application Support/clientmap
// On Windows: %LOCALAPPDATA%\clientmap
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for clientmap.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns the first problem found.
func (c *Config) Validate() error {
	if _, _, err := net.SplitHostPort(c.ListenAddress); err != nil {
		return ErrInvalidListenAddress
	}

	hasPrefix := false
	for _, p := range c.ControlPrefixes {
		if strings.TrimSpace(p) != "" {
			hasPrefix = true
			break
		}
	}
	if !hasPrefix {
		return ErrNoControlPrefix
	}

	if strings.TrimSpace(c.Topic) == "" {
		return ErrEmptyTopic
	}

	switch c.SnapshotMode {
	case SnapshotModeHTTP, SnapshotModeBrowser:
	default:
		return ErrInvalidSnapshotMode
	}

	if c.SnapshotTimeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}

	switch c.SpawnPolicy {
	case SpawnPolicyGo:
	case SpawnPolicyPool:
		if c.Workers <= 0 || c.QueueSize <= 0 {
			return ErrInvalidWorkers
		}
	default:
		return ErrInvalidSpawnPolicy
	}

	if strings.TrimSpace(c.ProfileName) == "" {
		return ErrEmptyProfileName
	}

	return nil
}
