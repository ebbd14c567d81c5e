//go:build darwin

package config

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

const defaultsDomain = "com.aist.app"

func defaultDataDir() string {
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, "Library", "Application Support", "aist")
	}
	return "aist-data"
}

func apiKeyHint() string {
	return " or macOS Keychain (service: " + secretService + ", account: openrouter_api_key)"
}

// defaultsBackend reads and writes the aist UserDefaults domain through the
// `defaults` tool, so `defaults write com.aist.app loop.max_words -int 800`
// is an equivalent way to configure aist.
type defaultsBackend struct {
	domain string
}

func newPlatformBackend() ConfigBackend {
	return &defaultsBackend{domain: defaultsDomain}
}

// run invokes `defaults <verb> <domain> args...`. A missing key makes
// `defaults` exit with status 1, reported as ok=false.
func (b *defaultsBackend) run(verb string, args ...string) (string, bool, error) {
	cmd := exec.Command("defaults", append([]string{verb, b.domain}, args...)...)
	out, err := cmd.CombinedOutput()
	s := strings.TrimSpace(string(out))
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 && verb != "write" {
			return "", false, nil
		}
		return "", false, fmt.Errorf("defaults %s %s: %w: %s", verb, strings.Join(args, " "), err, s)
	}
	return s, true, nil
}

func (b *defaultsBackend) GetString(key string) (string, bool, error) {
	return b.run("read", key)
}

func (b *defaultsBackend) GetInt(key string) (int, bool, error) {
	s, ok, err := b.run("read", key)
	if !ok || err != nil {
		return 0, ok, err
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, true, fmt.Errorf("invalid integer for %s: %w", key, err)
	}
	return i, true, nil
}

// GetBool accepts what `defaults read` prints for a -bool value ("1"/"0")
// as well as strings written by hand ("true", "no").
func (b *defaultsBackend) GetBool(key string) (bool, bool, error) {
	s, ok, err := b.run("read", key)
	if !ok || err != nil {
		return false, ok, err
	}
	switch strings.ToLower(s) {
	case "yes":
		return true, true, nil
	case "no":
		return false, true, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, true, fmt.Errorf("invalid boolean for %s: %w", key, err)
	}
	return v, true, nil
}

func (b *defaultsBackend) SetString(key, val string) error {
	_, _, err := b.run("write", key, "-string", val)
	return err
}

func (b *defaultsBackend) SetInt(key string, val int) error {
	_, _, err := b.run("write", key, "-int", strconv.Itoa(val))
	return err
}

func (b *defaultsBackend) SetBool(key string, val bool) error {
	_, _, err := b.run("write", key, "-bool", strconv.FormatBool(val))
	return err
}

// Delete removes key; deleting a key that was never set is not an error.
func (b *defaultsBackend) Delete(key string) error {
	_, _, err := b.run("delete", key)
	return err
}
