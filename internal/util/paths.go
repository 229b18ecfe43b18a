package util

import (
	"os"
	"path/filepath"
	"strings"
)

// HomeDir returns the user's home directory
func HomeDir() string {
	home, _ := os.UserHomeDir()
	return home
}

// AssetsyncConfigPath returns the directory holding assetsync's own files
func AssetsyncConfigPath() string {
	return filepath.Join(HomeDir(), ".assetsync")
}

// DefaultRoot returns the default directory artifacts are installed into
func DefaultRoot() string {
	return filepath.Join(AssetsyncConfigPath(), "root")
}

// ExpandPath expands a leading ~ to the home directory and resolves
// relative paths against baseDir. An empty path stays empty.
func ExpandPath(path, baseDir string) string {
	if path == "" {
		return ""
	}
	if path == "~" {
		return HomeDir()
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(HomeDir(), path[2:])
	}
	if filepath.IsAbs(path) || baseDir == "" {
		return filepath.Clean(path)
	}
	return filepath.Join(baseDir, path)
}
