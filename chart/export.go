package chart

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/YuminosukeSato/modelbench/pkg/errors"
)

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// FileName turns a figure title into a file name stem.
func FileName(title string) string {
	stem := strings.Trim(unsafeName.ReplaceAllString(strings.ToLower(title), "_"), "_")
	if stem == "" {
		return "figure"
	}
	return stem
}

// Export saves the figure as dir/name.format and, when withJSON is set, its
// series as dir/name.json. It returns the written paths.
func Export(f *Figure, dir, name, format string, withJSON bool) ([]string, error) {
	image := filepath.Join(dir, name+"."+strings.ToLower(format))
	if err := f.Save(image); err != nil {
		return nil, err
	}
	paths := []string{image}
	if !withJSON {
		return paths, nil
	}

	jsonPath := filepath.Join(dir, name+".json")
	file, err := os.Create(jsonPath)
	if err != nil {
		return paths, errors.Wrapf(err, "chart: creating %s", jsonPath)
	}
	if err := f.WriteJSON(file); err != nil {
		file.Close()
		return paths, err
	}
	if err := file.Close(); err != nil {
		return paths, errors.Wrapf(err, "chart: closing %s", jsonPath)
	}
	return append(paths, jsonPath), nil
}
