package utils

import (
	"os"
	"runtime"
)

// IsAdmin checks if the current process has administrative/root privileges
func IsAdmin() bool {
	if runtime.GOOS == "windows" {
		// Opening the raw device only succeeds when elevated
		f, err := os.Open("\\\\.\\PHYSICALDRIVE0")
		if err != nil {
			return false
		}
		f.Close()
		return true
	}
	return os.Geteuid() == 0
}

// PrivilegeWarning explains what a standard user loses for the given
// operation, or returns "" when running elevated.
func PrivilegeWarning(operation string) string {
	if IsAdmin() {
		return ""
	}
	switch operation {
	case "processes":
		return "Running as standard user: executables of other users' processes will be skipped."
	case "media", "sweep":
		return "Running as standard user: unreadable files on mounted volumes will be skipped."
	default:
		return ""
	}
}
