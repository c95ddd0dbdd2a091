package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// AppName is the directory wlog keeps its archives under.
const AppName = "wlog"

// DefaultDataDir is where archives go when no data_dir is configured. When
// the home directory is unknown it is "data" under the working directory.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "data"
	}
	return filepath.Join(dataHome(runtime.GOOS, home, os.Getenv), AppName)
}

// dataHome is the per-user application data root for goos:
// XDG_DATA_HOME or ~/.local/share on Unix, Application Support on macOS and
// APPDATA on Windows.
func dataHome(goos, home string, getenv func(string) string) string {
	switch goos {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support")
	case "windows":
		if dir := getenv("APPDATA"); dir != "" {
			return dir
		}
		return filepath.Join(home, "AppData", "Roaming")
	}
	if dir := getenv("XDG_DATA_HOME"); dir != "" {
		return dir
	}
	return filepath.Join(home, ".local", "share")
}

// ArchivePath is the SQLite archive inside dataDir.
func ArchivePath(dataDir string) string {
	return filepath.Join(dataDir, AppName+".db")
}

// JournalDir holds one journal file per channel.
func JournalDir(dataDir string) string {
	return filepath.Join(dataDir, "journal")
}
