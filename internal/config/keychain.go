package config

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// platformKeychain reads and writes the platform secret store: macOS
// Keychain via the security CLI, or a 0600 secrets file elsewhere.
type platformKeychain struct{}

// NewKeychain returns the secret store for the current platform.
func NewKeychain() Keychain {
	return platformKeychain{}
}

func (platformKeychain) Get(service, account string) (string, error) {
	out, err := keychainGet(service, account)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

func (platformKeychain) Set(service, account, value string) error {
	return keychainSet(service, account, value)
}

// GetAPIToken returns the bearer token guarding the local HTTP API,
// generating and storing one on first use.
func GetAPIToken(kc Keychain) (string, error) {
	if tok, err := kc.Get(secretService, "api_token"); err == nil && tok != "" {
		return tok, nil
	}
	tok := strings.ReplaceAll(uuid.NewString(), "-", "")
	if err := kc.Set(secretService, "api_token", tok); err != nil {
		return "", fmt.Errorf("storing API token: %w", err)
	}
	return tok, nil
}
