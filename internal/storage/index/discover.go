package index

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	herrors "github.com/xtxerr/hivestore/internal/errors"
)

// Discover finds the index governing path. It checks path itself and then
// each ancestor; the first directory holding filename is the index root.
// The returned labels are the path components between the root and path.
//
// A path naming a file is treated as its directory. The ascent is
// iterative and stops at the filesystem root with ErrIndexNotFound.
func Discover(path, filename string) (string, []string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", nil, fmt.Errorf("resolve %s: %w", path, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil, herrors.NewPathNotFound(path)
		}
		return "", nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.IsDir() {
		abs = filepath.Dir(abs)
	}

	for dir := abs; ; {
		if hasIndex(dir, filename) {
			return dir, relLabels(dir, abs), nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil, fmt.Errorf("no %s at or above %s: %w", filename, path, herrors.ErrIndexNotFound)
		}
		dir = parent
	}
}

func hasIndex(dir, filename string) bool {
	info, err := os.Stat(filepath.Join(dir, filename))
	return err == nil && info.Mode().IsRegular()
}

func relLabels(base, target string) []string {
	rel, err := filepath.Rel(base, target)
	if err != nil || rel == "." {
		return nil
	}
	var labels []string
	for _, seg := range strings.Split(filepath.ToSlash(rel), "/") {
		if seg != "" && seg != "." {
			labels = append(labels, seg)
		}
	}
	return labels
}
