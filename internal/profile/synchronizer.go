package profile

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// DefaultProfileName is the profile the telemetry extension runs in.
const DefaultProfileName = "clientmap-client-profile"

// PreferencesFileName is the extension preference file inside the profile.
const PreferencesFileName = "extension-preferences.json"

//go:embed resources/extension-preferences.json
var defaultPreferences []byte

// Result describes what one Sync did. Errors lists every failed step; the
// steps that follow a failure still run when they can.
type Result struct {
	ProfileName string
	ProfileDir  string

	ProfileCreated     bool
	PreferencesCreated bool

	// MakeDefault is set when the preference file was created in this run,
	// meaning the browser launcher should start this profile by default.
	MakeDefault bool

	RegistryPath      string
	Registered        bool
	AlreadyRegistered bool

	Errors []error
}

// OK reports whether every step succeeded.
func (r Result) OK() bool {
	return len(r.Errors) == 0
}

// Synchronizer prepares the browser profile.
type Synchronizer struct {
	name        string
	locator     Locator
	preferences []byte
	logger      *slog.Logger
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithProfileName sets the profile name.
func WithProfileName(name string) Option {
	return func(s *Synchronizer) {
		if name != "" {
			s.name = name
		}
	}
}

// WithLocator sets the path strategy. The default is FirefoxLocator.
func WithLocator(l Locator) Option {
	return func(s *Synchronizer) {
		s.locator = l
	}
}

// WithPreferences replaces the embedded preference template.
func WithPreferences(content []byte) Option {
	return func(s *Synchronizer) {
		s.preferences = content
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Synchronizer) {
		s.logger = logger
	}
}

// NewSynchronizer creates a Synchronizer.
func NewSynchronizer(opts ...Option) *Synchronizer {
	s := &Synchronizer{
		name:        DefaultProfileName,
		preferences: defaultPreferences,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.locator == nil {
		s.locator = FirefoxLocator()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Sync runs the three steps. It never fails; problems are logged and
// collected in Result.Errors.
func (s *Synchronizer) Sync() Result {
	res := Result{ProfileName: s.name}

	dir, err := s.locator.ProfileDir(s.name)
	if err != nil {
		s.fail(&res, fmt.Errorf("failed to locate profile %s: %w", s.name, err))
		return res
	}
	res.ProfileDir = dir

	created, err := ensureDir(dir)
	if err != nil {
		s.fail(&res, fmt.Errorf("failed to create profile directory %s: %w", dir, err))
		return res
	}
	res.ProfileCreated = created

	if created, err := s.ensurePreferences(dir); err != nil {
		s.fail(&res, fmt.Errorf("failed to write %s: %w", PreferencesFileName, err))
	} else if created {
		res.PreferencesCreated = true
		res.MakeDefault = true
	}

	s.ensureRegistered(dir, &res)
	return res
}

func (s *Synchronizer) fail(res *Result, err error) {
	s.logger.Error("browser profile sync failed", "profile", s.name, "error", err)
	res.Errors = append(res.Errors, err)
}

func ensureDir(dir string) (bool, error) {
	info, err := os.Stat(dir)
	if err == nil {
		if !info.IsDir() {
			return false, fmt.Errorf("%s is not a directory", dir)
		}
		return false, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return false, err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return false, err
	}
	return true, nil
}

// ensurePreferences writes the template byte-for-byte when the file is
// absent. An existing file is never inspected or replaced.
func (s *Synchronizer) ensurePreferences(dir string) (bool, error) {
	path := filepath.Join(dir, PreferencesFileName)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if errors.Is(err, fs.ErrExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if _, err := f.Write(s.preferences); err != nil {
		_ = f.Close()      //nolint:errcheck // the write error is the one worth reporting
		_ = os.Remove(path) //nolint:errcheck // best effort, a partial file would never be repaired
		return false, err
	}
	if err := f.Close(); err != nil {
		return false, err
	}
	s.logger.Info("created extension preferences", "path", path)
	return true, nil
}

// ensureRegistered appends a registry section for the profile unless one
// exists.
func (s *Synchronizer) ensureRegistered(dir string, res *Result) {
	candidates := s.locator.RegistryCandidates(dir)
	path := ""
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && info.Mode().IsRegular() {
			path = c
			break
		}
	}
	if path == "" {
		last := ""
		if len(candidates) > 0 {
			last = candidates[len(candidates)-1]
		}
		s.fail(res, fmt.Errorf("%w: last attempt was %s", ErrRegistryNotFound, last))
		return
	}
	res.RegistryPath = path

	data, err := os.ReadFile(path)
	if err != nil {
		s.fail(res, fmt.Errorf("failed to read %s: %w", path, err))
		return
	}

	scan, err := scanRegistry(data, s.name)
	if err != nil {
		s.fail(res, fmt.Errorf("failed to read %s: %w", path, err))
		return
	}
	for _, h := range scan.badHeaders {
		s.logger.Warn("ignoring malformed profile header", "registry", path, "header", h)
	}
	if scan.found {
		res.AlreadyRegistered = true
		return
	}

	rel, err := relativePath(path, dir)
	if err != nil {
		s.fail(res, fmt.Errorf("failed to relate %s to %s: %w", dir, path, err))
		return
	}

	section := registrySection(scan.maxIndex+1, s.name, rel, !scan.endsNewline)
	if err := appendRegistry(path, section); err != nil {
		if errors.Is(err, fs.ErrPermission) {
			err = fmt.Errorf("%w: %s does not contain %s: %w", ErrRegistryReadOnly, path, s.name, err)
		} else {
			err = fmt.Errorf("failed to update %s: %w", path, err)
		}
		s.fail(res, err)
		return
	}

	res.Registered = true
	s.logger.Info("registered browser profile", "registry", path, "profile", s.name, "index", scan.maxIndex+1)
}

// Preferences returns the embedded preference template.
func Preferences() []byte {
	return bytes.Clone(defaultPreferences)
}
