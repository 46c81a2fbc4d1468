package store

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Seed stores every regular file under dir in ts. A template is named by
// its slash-separated path relative to dir without the extension, so
// "mail/welcome.tmpl" becomes "mail/welcome". Hidden files and directories
// are skipped. It returns the number of templates stored.
func Seed(ctx context.Context, ts TemplateStore, dir string) (int, error) {
	count := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(strings.TrimSuffix(rel, filepath.Ext(rel)))

		body, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if err := ts.Put(ctx, name, string(body)); err != nil {
			return fmt.Errorf("template %s: %w", name, err)
		}
		count++
		return nil
	})
	if err != nil {
		return count, fmt.Errorf("failed to seed templates from %s: %w", dir, err)
	}
	return count, nil
}
