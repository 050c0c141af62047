package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// DefaultEnvFiles are read by LoadEnvFiles when no paths are given.
// Earlier files win: godotenv never overrides a variable already set.
var DefaultEnvFiles = []string{".env.local", ".env"}

// LoadEnvFiles copies variables from dotenv files into the process
// environment. Missing files are skipped.
func LoadEnvFiles(paths ...string) error {
	if len(paths) == 0 {
		paths = DefaultEnvFiles
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("config: load %s: %w", p, err)
		}
	}
	return nil
}
