package graph

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/graphannis-go/graphannis/pkg/graphannis"
	"github.com/graphannis-go/graphannis/pkg/updatelog"
)

// Save writes the graph's current state to disk and truncates the
// update log, using a rename-based swap so a crash at any point still
// leaves a recoverable directory:
//
//  1. current/ is renamed to backup/ (atomic on the same filesystem).
//  2. A fresh current/ is written: loaded components are serialized,
//     untouched ones are copied verbatim from backup/.
//  3. backup/ is removed and the update log is truncated.
//
// If the process dies between steps 1 and 3, Open's recovery finds
// backup/ still present and promotes it back to current/, exactly
// undoing step 1 -- the save is retried from scratch on next Open.
func (g *Graph) Save() error {
	g.saveMu.Lock()
	defer g.saveMu.Unlock()

	currentDir := filepath.Join(g.directory, currentDirName)
	backupDir := filepath.Join(g.directory, backupDirName)

	if _, err := os.Stat(currentDir); err == nil {
		if err := os.RemoveAll(backupDir); err != nil {
			return fmt.Errorf("graph: save: clear stale backup: %w", err)
		}
		if err := os.Rename(currentDir, backupDir); err != nil {
			return fmt.Errorf("graph: save: prepare backup: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("graph: save: stat current: %w", err)
	}

	if err := g.writeCurrent(currentDir, backupDir); err != nil {
		return fmt.Errorf("graph: save: write current: %w", err)
	}

	if err := os.RemoveAll(backupDir); err != nil {
		return fmt.Errorf("graph: save: remove backup: %w", err)
	}

	watermark := g.ChangeCounter()
	walPath := filepath.Join(g.directory, walFileName)
	if g.wal != nil {
		if err := g.wal.Close(); err != nil {
			return fmt.Errorf("graph: save: close wal: %w", err)
		}
	}
	if err := updatelog.Truncate(walPath); err != nil {
		return fmt.Errorf("graph: save: truncate wal: %w", err)
	}
	wal, err := updatelog.Open(walPath, updatelog.SyncImmediate, watermark)
	if err != nil {
		return err
	}
	g.wal = wal
	return nil
}

func (g *Graph) writeCurrent(currentDir, backupDir string) error {
	if err := os.MkdirAll(currentDir, 0o755); err != nil {
		return err
	}
	if err := g.nodeAnnos.SaveAnnotationsTo(filepath.Join(currentDir, nodesDirName)); err != nil {
		return err
	}

	g.mu.RLock()
	comps := make([]graphannis.Component, 0, len(g.components))
	for c := range g.components {
		comps = append(comps, c)
	}
	g.mu.RUnlock()

	for _, c := range comps {
		entry, ok := g.entryFor(c)
		if !ok {
			continue
		}
		dstDir := componentDir(currentDir, c)
		entry.mu.Lock()
		if entry.loaded {
			err := g.registry.Serialize(entry.storage, dstDir)
			entry.mu.Unlock()
			if err != nil {
				return fmt.Errorf("component %s: %w", c, err)
			}
			continue
		}
		entry.mu.Unlock()

		srcDir := componentDir(backupDir, c)
		if err := copyDir(srcDir, dstDir); err != nil {
			return fmt.Errorf("component %s: copy unloaded state: %w", c, err)
		}
	}
	return nil
}

// copyDir recursively copies src to dst. Used to carry forward
// components that were never loaded this session, so saving does not
// force every component to be read into memory.
func copyDir(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, in)
	return err
}
