// Keyring-backed secret storage. Resolution order for the LLM API key:
//  1. OS keyring (Linux: Secret Service, macOS: Keychain, Windows:
//     Credential Manager)
//  2. ASSISTANT_API_KEY / OPENAI_API_KEY environment variables
//  3. config.yaml value (plaintext on disk, least preferred)
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"syscall"

	"github.com/zalando/go-keyring"
	"golang.org/x/term"
)

const (
	// keyringService is the service name used in the OS keyring.
	keyringService = "assistant24"

	// keyringAPIKey is the key name for the LLM API key.
	keyringAPIKey = "api_key"
)

// StoreKeyring saves a secret to the OS keyring.
func StoreKeyring(key, value string) error {
	return keyring.Set(keyringService, key, value)
}

// GetKeyring retrieves a secret from the OS keyring, empty when absent.
func GetKeyring(key string) string {
	val, err := keyring.Get(keyringService, key)
	if err != nil {
		return ""
	}
	return val
}

// DeleteKeyring removes a secret from the OS keyring.
func DeleteKeyring(key string) error {
	return keyring.Delete(keyringService, key)
}

// KeyringAvailable checks whether the OS keyring is usable by doing a
// write+delete cycle with a test key.
func KeyringAvailable() bool {
	testKey := "__assistant24_test__"
	if err := keyring.Set(keyringService, testKey, "test"); err != nil {
		return false
	}
	_ = keyring.Delete(keyringService, testKey)
	return true
}

// ResolveAPIKey fills cfg.LLM.APIKey from the priority chain, updating the
// config in place.
func ResolveAPIKey(cfg *Config, logger *slog.Logger) {
	if val := GetKeyring(keyringAPIKey); val != "" {
		cfg.LLM.APIKey = val
		logger.Debug("API key loaded from OS keyring")
		return
	}

	for _, name := range []string{"ASSISTANT_API_KEY", "OPENAI_API_KEY"} {
		if val := os.Getenv(name); val != "" {
			cfg.LLM.APIKey = val
			logger.Debug("API key loaded from environment", "var", name)
			return
		}
	}

	if cfg.LLM.APIKey != "" {
		logger.Debug("API key loaded from config")
		return
	}
	logger.Warn("no API key found. Run: assistant setup")
}

// StoreAPIKey saves the LLM API key to the keyring.
func StoreAPIKey(apiKey string, logger *slog.Logger) error {
	if err := StoreKeyring(keyringAPIKey, apiKey); err != nil {
		return fmt.Errorf("storing in keyring: %w", err)
	}
	logger.Info("API key stored in OS keyring", "service", keyringService)
	return nil
}

// ReadSecret prompts for a secret without echoing when stdin is a terminal,
// falling back to a plain line read otherwise.
func ReadSecret(prompt string) (string, error) {
	fmt.Print(prompt)
	if term.IsTerminal(int(syscall.Stdin)) {
		data, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			return "", fmt.Errorf("reading secret: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	}

	var line string
	if _, err := fmt.Scanln(&line); err != nil {
		return "", fmt.Errorf("reading secret: %w", err)
	}
	return strings.TrimSpace(line), nil
}
