// Package prompts provides the instruction templates sent to the generation
// provider. Built-in defaults can be replaced by files on disk.
package prompts

import (
	"embed"
	"fmt"
	"os"
	"strings"
)

//go:embed defaults/*.txt
var defaultsFS embed.FS

// Names of the built-in templates.
const (
	Command  = "recon_run"
	Analysis = "recon_analysis"
)

// Default returns the built-in template called name.
func Default(name string) (string, error) {
	b, err := defaultsFS.ReadFile("defaults/" + name + ".txt")
	if err != nil {
		return "", fmt.Errorf("unknown prompt %q", name)
	}
	return string(b), nil
}

// Load returns the contents of path, or the built-in template name when
// path is empty.
func Load(path, name string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return Default(name)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s prompt: %w", name, err)
	}
	if strings.TrimSpace(string(b)) == "" {
		return "", fmt.Errorf("%s prompt file %s is empty", name, path)
	}
	return string(b), nil
}
