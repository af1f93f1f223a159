package logging

import (
	"fmt"
	"os"
	"path/filepath"
)

// LogFileName is the name of the log file inside the log directory.
const LogFileName = "codesync.log"

// LogDir returns the log directory under dataDir.
func LogDir(dataDir string) string {
	return filepath.Join(dataDir, "logs")
}

// LogPath returns the log file path under dataDir.
func LogPath(dataDir string) string {
	return filepath.Join(LogDir(dataDir), LogFileName)
}

// FindLogFile returns explicit when given, otherwise the log file under
// dataDir. It fails when the file does not exist.
func FindLogFile(explicit, dataDir string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("log file not found: %s", explicit)
		}
		return explicit, nil
	}

	path := LogPath(dataDir)
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("no log file found, run a command with --debug first.\nExpected at: %s", path)
	}
	return path, nil
}
