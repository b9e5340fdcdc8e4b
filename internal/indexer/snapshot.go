package indexer

import (
	"fmt"
	"os"
	"strings"
	"time"

	"asset-preview/internal/logging"
)

// snapshot is the cheap view of the library used for change polling: the
// root's modification time and the visible top-level entries. Reading it
// costs two syscalls plus one per top-level folder, never a recursive walk.
type snapshot struct {
	rootMod time.Time
	entries int
	folders map[string]time.Time
}

func takeSnapshot(root string) (snapshot, error) {
	info, err := os.Stat(root)
	if err != nil {
		return snapshot{}, fmt.Errorf("failed to stat library directory: %w", err)
	}
	dirents, err := os.ReadDir(root)
	if err != nil {
		return snapshot{}, fmt.Errorf("failed to read library directory: %w", err)
	}

	s := snapshot{rootMod: info.ModTime(), folders: make(map[string]time.Time)}
	for _, d := range dirents {
		if strings.HasPrefix(d.Name(), ".") {
			continue
		}
		s.entries++
		if !d.IsDir() {
			continue
		}
		if fi, err := d.Info(); err == nil {
			s.folders[d.Name()] = fi.ModTime()
		}
	}
	return s, nil
}

// changedSince names the first difference from prev, or "" when none is
// visible at this depth. The zero snapshot differs from everything.
func (s snapshot) changedSince(prev snapshot) string {
	if s.rootMod.After(prev.rootMod) {
		return "library root modified"
	}
	if s.entries != prev.entries {
		return fmt.Sprintf("top-level entries %d -> %d", prev.entries, s.entries)
	}
	for name, mod := range s.folders {
		if last, ok := prev.folders[name]; !ok || mod.After(last) {
			return "folder " + name + " modified"
		}
	}
	return ""
}

// detectChanges compares the library against the snapshot taken after the
// last index.
func (idx *Indexer) detectChanges() (bool, error) {
	now, err := takeSnapshot(idx.libraryDir)
	if err != nil {
		return false, err
	}
	idx.stateMu.RLock()
	prev := idx.lastSnapshot
	idx.stateMu.RUnlock()

	if why := now.changedSince(prev); why != "" {
		logging.Debug("Library change: %s", why)
		return true, nil
	}
	return false, nil
}

// rememberSnapshot records the library's current state as the baseline.
func (idx *Indexer) rememberSnapshot() {
	s, err := takeSnapshot(idx.libraryDir)
	if err != nil {
		logging.Warn("Failed to snapshot library for change polling: %v", err)
		return
	}
	idx.stateMu.Lock()
	idx.lastSnapshot = s
	idx.stateMu.Unlock()
}
