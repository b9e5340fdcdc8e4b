package startup

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"asset-preview/internal/assets"
	"asset-preview/internal/logging"
)

// ensureDirectory creates path if missing and fails if it is not a
// directory.
func ensureDirectory(path, name string) error {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		logging.Debug("  [OK] Created %s directory: %s", name, path)
		return nil
	case err != nil:
		return fmt.Errorf("failed to stat directory: %w", err)
	case !info.IsDir():
		return fmt.Errorf("%s exists but is not a directory", path)
	}

	if name == "library" && logging.IsDebugEnabled() {
		logLibraryContents(path)
	}
	return nil
}

// logLibraryContents counts the top level of the library by asset type.
func logLibraryContents(path string) {
	entries, err := os.ReadDir(path)
	if err != nil {
		logging.Debug("  Cannot list library: %v", err)
		return
	}
	dirs := 0
	byType := make(map[assets.FileType]int)
	for _, e := range entries {
		if e.IsDir() {
			dirs++
			continue
		}
		if t := assets.ClassifyPath(e.Name()); t.IsAsset() {
			byType[t]++
		}
	}
	logging.Debug("  Library top level: %d directories, assets by type %v", dirs, byType)
}

// testWriteAccess creates and removes a scratch file in dir.
func testWriteAccess(dir string) error {
	f, err := os.CreateTemp(dir, ".write-test-*")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	if err := os.Remove(name); err != nil {
		logging.Warn("failed to remove write test file %s: %v", name, err)
	}
	return nil
}
