package config

import (
	"errors"
	"io/fs"

	"github.com/joho/godotenv"
)

// LoadDotenv loads KEY=VALUE files into the process env without overriding
// variables that are already set. Missing files are skipped; the names of the
// files actually loaded are returned.
func LoadDotenv(paths ...string) ([]string, error) {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	var loaded []string
	for _, p := range paths {
		err := godotenv.Load(p)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return loaded, err
		}
		loaded = append(loaded, p)
	}
	return loaded, nil
}
