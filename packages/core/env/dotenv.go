package env

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// LoadDotEnv parses a .env file and returns key-value pairs without
// touching the process environment. Reloader exports them.
func LoadDotEnv(path string) (map[string]string, error) {
	vars, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read env file: %w", err)
	}
	return vars, nil
}

// Reloader exports a .env file and, on later loads, refreshes the keys it
// set itself. Variables that came from the real environment are left alone.
type Reloader struct {
	path  string
	owned map[string]bool
}

// NewReloader returns a Reloader for path; nothing is read until Load
func NewReloader(path string) *Reloader {
	return &Reloader{path: path, owned: make(map[string]bool)}
}

// Path returns the file the Reloader reads
func (r *Reloader) Path() string {
	return r.path
}

// Load reads the file and exports its values
func (r *Reloader) Load() (map[string]string, error) {
	vars, err := LoadDotEnv(r.path)
	if err != nil {
		return nil, err
	}

	for k, v := range vars {
		if _, set := os.LookupEnv(k); set && !r.owned[k] {
			continue
		}
		_ = os.Setenv(k, v)
		r.owned[k] = true
	}

	return vars, nil
}
