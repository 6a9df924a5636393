package config

import (
	"strings"
	"time"
)

// SiteConfig holds snapshot settings for a single host.
// This allows reconciliation to authenticate against or skip parts of a
// particular application.
type SiteConfig struct {
	// Cookie is sent with snapshot requests to this site.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are custom HTTP headers to include in snapshot requests.
	Headers map[string]string `yaml:"headers,omitempty"`

	// IgnorePatterns are URL path globs dropped from snapshots.
	IgnorePatterns []string `yaml:"ignorePatterns,omitempty"`

	// FollowPatterns, if set, keep only snapshot URLs whose path matches.
	FollowPatterns []string `yaml:"followPatterns,omitempty"`
}

// File represents the structure of the .clientmap configuration file.
// Zero values leave the corresponding Config field untouched.
type File struct {
	Server struct {
		Listen string `yaml:"listen,omitempty"`
	} `yaml:"server,omitempty"`

	Boundary struct {
		ControlPrefixes []string `yaml:"controlPrefixes,omitempty"`
	} `yaml:"boundary,omitempty"`

	Bus struct {
		Topic string `yaml:"topic,omitempty"`
	} `yaml:"bus,omitempty"`

	Snapshot struct {
		Mode         string        `yaml:"mode,omitempty"`
		Timeout      time.Duration `yaml:"timeout,omitempty"`
		Proxy        string        `yaml:"proxy,omitempty"`
		UserAgent    string        `yaml:"userAgent,omitempty"`
		MaxBodySize  int64         `yaml:"maxBodySize,omitempty"`
		SameSiteOnly *bool         `yaml:"sameSiteOnly,omitempty"`
	} `yaml:"snapshot,omitempty"`

	Spawn struct {
		Policy    string `yaml:"policy,omitempty"`
		Workers   int    `yaml:"workers,omitempty"`
		QueueSize int    `yaml:"queueSize,omitempty"`
	} `yaml:"spawn,omitempty"`

	Profile struct {
		Name string `yaml:"name,omitempty"`
		Root string `yaml:"root,omitempty"`
		Skip bool   `yaml:"skip,omitempty"`
	} `yaml:"profile,omitempty"`

	History struct {
		Dir      string `yaml:"dir,omitempty"`
		Disabled bool   `yaml:"disabled,omitempty"`
	} `yaml:"history,omitempty"`

	Log struct {
		JSON          bool     `yaml:"json,omitempty"`
		SensitiveKeys []string `yaml:"sensitiveKeys,omitempty"`
	} `yaml:"log,omitempty"`

	// Sites maps host names (e.g. "app.example.com") to their settings.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults apply to every site unless overridden.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// Apply copies every value set in the file onto cfg and keeps the file for
// per-site lookups.
func (cf *File) Apply(cfg *Config) {
	if cf.Server.Listen != "" {
		cfg.ListenAddress = cf.Server.Listen
	}
	if len(cf.Boundary.ControlPrefixes) > 0 {
		cfg.ControlPrefixes = append([]string(nil), cf.Boundary.ControlPrefixes...)
	}
	if cf.Bus.Topic != "" {
		cfg.Topic = cf.Bus.Topic
	}

	if cf.Snapshot.Mode != "" {
		cfg.SnapshotMode = strings.ToLower(cf.Snapshot.Mode)
	}
	if cf.Snapshot.Timeout != 0 {
		cfg.SnapshotTimeout = cf.Snapshot.Timeout
	}
	if cf.Snapshot.Proxy != "" {
		cfg.ProxyAddress = cf.Snapshot.Proxy
	}
	if cf.Snapshot.UserAgent != "" {
		cfg.UserAgent = cf.Snapshot.UserAgent
	}
	if cf.Snapshot.MaxBodySize != 0 {
		cfg.MaxBodySize = cf.Snapshot.MaxBodySize
	}
	if cf.Snapshot.SameSiteOnly != nil {
		cfg.SameSiteOnly = *cf.Snapshot.SameSiteOnly
	}

	if cf.Spawn.Policy != "" {
		cfg.SpawnPolicy = strings.ToLower(cf.Spawn.Policy)
	}
	if cf.Spawn.Workers != 0 {
		cfg.Workers = cf.Spawn.Workers
	}
	if cf.Spawn.QueueSize != 0 {
		cfg.QueueSize = cf.Spawn.QueueSize
	}

	if cf.Profile.Name != "" {
		cfg.ProfileName = cf.Profile.Name
	}
	if cf.Profile.Root != "" {
		cfg.ProfileRoot = cf.Profile.Root
	}
	if cf.Profile.Skip {
		cfg.SkipProfileSync = true
	}

	if cf.History.Dir != "" {
		cfg.DBDir = cf.History.Dir
	}
	if cf.History.Disabled {
		cfg.SaveToDB = false
	}

	if cf.Log.JSON {
		cfg.JSONLog = true
	}
	cfg.SensitiveKeys = append(cfg.SensitiveKeys, cf.Log.SensitiveKeys...)

	cfg.Sites = cf
}

// GetSiteConfig returns the configuration for a host.
// It merges the site-specific configuration with defaults.
func (cf *File) GetSiteConfig(host string) SiteConfig {
	result := cf.Defaults
	if len(cf.Defaults.Headers) > 0 {
		result.Headers = make(map[string]string, len(cf.Defaults.Headers))
		for k, v := range cf.Defaults.Headers {
			result.Headers[k] = v
		}
	}

	siteConfig, ok := cf.Sites[strings.ToLower(host)]
	if !ok {
		return result
	}

	if siteConfig.Cookie != "" {
		result.Cookie = siteConfig.Cookie
	}
	if len(siteConfig.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string)
		}
		for k, v := range siteConfig.Headers {
			result.Headers[k] = v
		}
	}
	if len(siteConfig.IgnorePatterns) > 0 {
		result.IgnorePatterns = siteConfig.IgnorePatterns
	}
	if len(siteConfig.FollowPatterns) > 0 {
		result.FollowPatterns = siteConfig.FollowPatterns
	}
	return result
}
