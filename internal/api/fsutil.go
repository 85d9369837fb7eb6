package api

import (
	"os"
	"path/filepath"
)

// walk visits every regular file under root, calling fn with its path
// relative to root using forward slashes.
func walk(root string, fn func(relPath string)) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		fn(filepath.ToSlash(rel))
		return nil
	})
}

func readFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}
