//go:build windows

package mpv

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

func binaryCandidates() []string {
	candidates := []string{"mpv.exe", "mpv.com"}
	for _, env := range []string{"ProgramFiles", "ProgramFiles(x86)", "LOCALAPPDATA"} {
		if dir := os.Getenv(env); dir != "" {
			candidates = append(candidates, filepath.Join(dir, "mpv", "mpv.exe"))
		}
	}
	return candidates
}

func executableMode(info fs.FileInfo) bool {
	ext := strings.ToLower(filepath.Ext(info.Name()))
	return ext == ".exe" || ext == ".com"
}
