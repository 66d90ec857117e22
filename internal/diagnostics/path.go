package diagnostics

import "path/filepath"

// LogFileName is the name of the persisted diagnostic trail.
const LogFileName = "mcp-server-perplexity.log"

// DefaultLogPath derives the log file location from a home directory and
// a GOOS value.
func DefaultLogPath(home, goos string) string {
	switch goos {
	case "darwin":
		return filepath.Join(home, "Library", "Logs", "Claude", LogFileName)
	case "windows":
		return filepath.Join(home, "AppData", "Roaming", "Claude", "logs", LogFileName)
	default:
		return filepath.Join(home, ".local", "state", "claude", "logs", LogFileName)
	}
}
