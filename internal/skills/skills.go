// Package skills implements on-demand loading of named prompt
// fragments a hat's instructions can pull in at composition time. A
// skill is just a markdown file under the skills directory; hatloop
// never interprets its content, only locates and returns it verbatim.
package skills

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	apperrors "github.com/hatloop/hatloop/pkg/errors"
)

const extension = ".md"

// Load returns the raw content of the named skill under dir.
func Load(dir, name string) (string, error) {
	data, err := os.ReadFile(filepath.Join(dir, name+extension))
	if err != nil {
		if os.IsNotExist(err) {
			return "", apperrors.NewHatNotFoundError("no such skill: " + name)
		}
		return "", apperrors.NewIoError("read skill", err)
	}
	return string(data), nil
}

// List enumerates every available skill name (file name, extension
// stripped) under dir, sorted alphabetically. A missing directory
// yields an empty list rather than an error.
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, apperrors.NewIoError("list skills directory", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), extension) {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), extension))
	}
	sort.Strings(names)
	return names, nil
}
