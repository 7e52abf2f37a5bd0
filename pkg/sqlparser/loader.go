package sqlparser

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

var baseFS fs.FS

// SetBaseFS sets the base filesystem for reading migration files.
// Use an embed.FS to read from embedded files.
// Pass nil to revert to the OS filesystem.
func SetBaseFS(fsys fs.FS) {
	baseFS = fsys
}

func BaseFS() fs.FS {
	return baseFS
}

// ReadFiles replays every .sql file under dir, recursively, in sorted path
// order, and returns the accumulated schema plus the statements that matched
// no supported form. Later files observe the mutations of earlier ones.
func ReadFiles(dir string) (Result, error) {
	var err error
	var files []string
	if baseFS != nil {
		files, err = fromFS(baseFS, dir)
	} else {
		files, err = fromDir(dir)
	}
	if err != nil {
		return Result{}, err
	}

	in := NewInterpreter()
	for _, path := range files {
		var content []byte
		if baseFS != nil {
			content, err = fs.ReadFile(baseFS, path)
		} else {
			content, err = os.ReadFile(filepath.Clean(path))
		}
		if err != nil {
			return Result{}, fmt.Errorf("read %s: %w", path, err)
		}
		in.Apply(path, string(content))
	}
	return in.Result(), nil
}

// fromDir lists all .sql files under a directory tree
func fromDir(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(strings.ToLower(path), ".sql") {
			return err
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.Sort(files)
	return files, nil
}

// fromFS lists all .sql files from an fs.FS
func fromFS(fsys fs.FS, dir string) ([]string, error) {
	var files []string
	err := fs.WalkDir(fsys, dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(strings.ToLower(path), ".sql") {
			return err
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.Sort(files)
	return files, nil
}
