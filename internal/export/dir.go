package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// DirDestination writes snapshots to a file in a local directory. The write
// goes through a temp file and rename so readers never see a partial
// snapshot.
type DirDestination struct {
	dir  string
	file string
}

// NewDirDestination creates a directory destination writing to dir/file.
func NewDirDestination(dir, file string) *DirDestination {
	return &DirDestination{dir: dir, file: file}
}

// Write replaces the snapshot file with data.
func (d *DirDestination) Write(_ context.Context, data []byte) error {
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", d.dir, err)
	}

	tmp, err := os.CreateTemp(d.dir, d.file+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close snapshot: %w", err)
	}

	if err := os.Rename(tmpName, filepath.Join(d.dir, d.file)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}
