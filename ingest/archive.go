package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Archiver moves a committed source file out of the input directory.
type Archiver interface {
	Archive(path string) error
}

// DirArchiver moves files into a processed directory. A name collision in
// the destination gets a timestamp suffix instead of overwriting the
// earlier file.
type DirArchiver struct {
	Dest string
}

func (a *DirArchiver) Archive(path string) error {
	if err := os.MkdirAll(a.Dest, 0o755); err != nil {
		return fmt.Errorf("create archive dir: %w", err)
	}

	base := filepath.Base(path)
	target := filepath.Join(a.Dest, base)
	if _, err := os.Stat(target); err == nil {
		ext := filepath.Ext(base)
		stem := strings.TrimSuffix(base, ext)
		target = filepath.Join(a.Dest, fmt.Sprintf("%s_%s%s", stem, time.Now().UTC().Format("20060102T150405"), ext))
	}

	if err := os.Rename(path, target); err != nil {
		return fmt.Errorf("archive %s: %w", path, err)
	}
	return nil
}
