//go:build !linux && !windows

package mpv

import "io/fs"

// binaryCandidates covers Homebrew and the macOS app bundle
func binaryCandidates() []string {
	return []string{
		"mpv",
		"/opt/homebrew/bin/mpv",
		"/usr/local/bin/mpv",
		"/Applications/mpv.app/Contents/MacOS/mpv",
	}
}

func executableMode(info fs.FileInfo) bool {
	return info.Mode()&0o111 != 0
}
