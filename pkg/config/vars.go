package config

import (
	"path/filepath"
)

var (
	// AppName is used in generating file system paths.
	AppName = "catdb"

	// DatabaseFile is the default name of the SQLite database.
	DatabaseFile = "courses.db"
)

// ConfigDir returns the directory path for configuration files.
// Returns ~/.config/catdb by default.
func ConfigDir(homeDir string) string {
	return filepath.Join(homeDir, ".config", AppName)
}

// DataDir returns the directory path for the SQLite database.
// Returns ~/.local/share/catdb by default.
func DataDir(homeDir string) string {
	return filepath.Join(homeDir, ".local", "share", AppName)
}

// LogDir returns the directory path for log files.
// Returns ~/.local/share/catdb/logs by default.
func LogDir(homeDir string) string {
	return filepath.Join(DataDir(homeDir), "logs")
}

// ConfigFilePath returns the full path to the config.yaml file.
// Returns ~/.config/catdb/config.yaml by default.
func ConfigFilePath(homeDir string) string {
	return filepath.Join(ConfigDir(homeDir), "config.yaml")
}

// DatabasePath returns the default SQLite database file.
// Returns ~/.local/share/catdb/courses.db by default.
func DatabasePath(homeDir string) string {
	return filepath.Join(DataDir(homeDir), DatabaseFile)
}
