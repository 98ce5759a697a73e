//go:build linux

package mpv

import (
	"io/fs"
	"os"
	"path/filepath"
)

// binaryCandidates lists where mpv is installed on common distributions,
// highest priority first
func binaryCandidates() []string {
	candidates := []string{"mpv", "/usr/bin/mpv", "/usr/local/bin/mpv", "/snap/bin/mpv"}

	// Flatpak exports a launcher in the user or system installation
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".local/share/flatpak/exports/bin/io.mpv.Mpv"))
	}
	return append(candidates, "/var/lib/flatpak/exports/bin/io.mpv.Mpv")
}

func executableMode(info fs.FileInfo) bool {
	return info.Mode()&0o111 != 0
}
