package profile

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/adrg/xdg"
)

// RegistryFileName is the name of the browser's profile registry.
const RegistryFileName = "profiles.ini"

// Locator decides where profile files live.
type Locator interface {
	// ProfileDir returns the directory of the named profile.
	ProfileDir(name string) (string, error)

	// RegistryCandidates returns the possible registry paths for a profile
	// directory, most likely first.
	RegistryCandidates(profileDir string) []string
}

// DirLocator keeps profiles directly below Root. The registry is looked for
// next to the profile directory first and one level higher second, which
// covers layouts where profiles live in a "Profiles" subdirectory.
type DirLocator struct {
	Root string
}

var _ Locator = DirLocator{}

// ProfileDir implements Locator.
func (l DirLocator) ProfileDir(name string) (string, error) {
	return filepath.Join(l.Root, name), nil
}

// RegistryCandidates implements Locator.
func (l DirLocator) RegistryCandidates(profileDir string) []string {
	parent := filepath.Dir(profileDir)
	return []string{
		filepath.Join(parent, RegistryFileName),
		filepath.Join(filepath.Dir(parent), RegistryFileName),
	}
}

// FirefoxLocator returns the DirLocator for the current user's Firefox data
// directory on this platform.
func FirefoxLocator() DirLocator {
	return DirLocator{Root: firefoxRoot(runtime.GOOS, xdg.Home, os.Getenv("APPDATA"))}
}

// firefoxRoot returns the directory Firefox keeps profiles in.
func firefoxRoot(goos, home, appData string) string {
	switch goos {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "Firefox", "Profiles")
	case "windows":
		if appData == "" {
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		return filepath.Join(appData, "Mozilla", "Firefox", "Profiles")
	default:
		return filepath.Join(home, ".mozilla", "firefox")
	}
}
