package subprocess

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/wagiedev/siteos-go/internal/errors"
)

// resolve locates name. A name containing a path separator is used as is. Other
// names are looked up in PATH, then matched against the running executable so
// "siteos-relay guest" works from an uninstalled build.
func resolve(name string) (string, error) {
	if strings.ContainsRune(name, filepath.Separator) {
		if _, err := os.Stat(name); err != nil {
			return "", &errors.CommandNotFoundError{Name: name, SearchedPaths: []string{name}}
		}

		return name, nil
	}

	if path, err := exec.LookPath(name); err == nil {
		return path, nil
	}

	searched := []string{"$PATH"}

	if self, err := os.Executable(); err == nil {
		searched = append(searched, self)

		if strings.TrimSuffix(filepath.Base(self), ".exe") == name {
			return self, nil
		}
	}

	return "", &errors.CommandNotFoundError{Name: name, SearchedPaths: searched}
}
