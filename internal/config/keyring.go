package config

import (
	"fmt"

	"github.com/zalando/go-keyring"
)

// KeyringService is the service name in the OS keychain.
const KeyringService = "CodeAtlas"

func keyringItem(provider string) string {
	if provider == "" {
		provider = "gemini"
	}
	return provider + "-api-key"
}

// SaveAPIKey stores a provider API key in the OS keychain (Keychain
// Access on macOS, Credential Manager on Windows, Secret Service on
// Linux).
func SaveAPIKey(provider, apiKey string) error {
	if apiKey == "" {
		return fmt.Errorf("api key cannot be empty")
	}
	if err := keyring.Set(KeyringService, keyringItem(provider), apiKey); err != nil {
		return fmt.Errorf("save to OS keychain: %w", err)
	}
	return nil
}

// GetAPIKey retrieves a provider API key. A missing entry returns empty
// with no error.
func GetAPIKey(provider string) (string, error) {
	key, err := keyring.Get(KeyringService, keyringItem(provider))
	if err == keyring.ErrNotFound {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read from OS keychain: %w", err)
	}
	return key, nil
}

// DeleteAPIKey removes a provider API key; missing entries are not an
// error.
func DeleteAPIKey(provider string) error {
	err := keyring.Delete(KeyringService, keyringItem(provider))
	if err != nil && err != keyring.ErrNotFound {
		return fmt.Errorf("delete from OS keychain: %w", err)
	}
	return nil
}
