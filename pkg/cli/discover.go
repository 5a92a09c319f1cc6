package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrNoImagesFound is returned when the input folder holds no file with an accepted
// extension. It is reported before any image is processed.
var ErrNoImagesFound = errors.New("no images found")

// FindImages walks root recursively and returns, in lexical order, every regular file
// whose extension matches one of exts. Matching ignores case and a leading dot.
func FindImages(root string, exts []string) ([]string, error) {
	want := make(map[string]bool, len(exts))
	for _, e := range exts {
		want[strings.ToLower(strings.TrimPrefix(e, "."))] = true
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("read input folder %q: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("read input folder %q: not a directory", root)
	}

	var paths []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
		if want[ext] {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk input folder %q: %w", root, err)
	}
	return paths, nil
}
