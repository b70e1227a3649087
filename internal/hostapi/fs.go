package hostapi

import (
	"os"
	"path/filepath"
	"strings"
)

// FS exposes the filesystem capability. All paths expand a leading "~"
// to the invoking user's home directory before any call.
type FS struct{}

// ExpandPath expands "~" and "~/..." to the user's home directory.
// Paths that do not start with a tilde, and "~user" forms, are returned
// unchanged, as is everything when the home directory cannot be determined.
func ExpandPath(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if path == "~" {
		return home
	}
	return filepath.Join(home, path[2:])
}

// Exists reports whether a file or directory exists at path.
func (f *FS) Exists(path string) bool {
	_, err := os.Stat(ExpandPath(path))
	return err == nil
}

// ReadText reads the file at path as UTF-8 text.
func (f *FS) ReadText(path string) (string, error) {
	data, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		if os.IsNotExist(err) {
			return "", notFoundErr("fs.readText", err)
		}
		return "", ioErr("fs.readText", err)
	}
	return string(data), nil
}

// WriteText writes text to the file at path, creating parent
// directories as needed. Files are created with 0600 permissions.
func (f *FS) WriteText(path, text string) error {
	expanded := ExpandPath(path)
	dir := filepath.Dir(expanded)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return ioErr("fs.writeText", err)
		}
	}
	if err := os.WriteFile(expanded, []byte(text), 0600); err != nil {
		return ioErr("fs.writeText", err)
	}
	return nil
}
