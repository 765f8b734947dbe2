package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Credentials holds the four secrets used to sign API requests.
type Credentials struct {
	Application struct {
		ConsumerKey    string `yaml:"consumer_key"`
		ConsumerSecret string `yaml:"consumer_secret"`
	} `yaml:"application"`
	User struct {
		Key    string `yaml:"key"`
		Secret string `yaml:"secret"`
	} `yaml:"user"`
}

// LoadCredentials reads and validates the credentials file. Missing secrets
// are a fatal configuration error at startup.
func LoadCredentials(path string) (*Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials: %w", err)
	}
	var creds Credentials
	if err := yaml.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("failed to parse credentials: %w", err)
	}
	if creds.Application.ConsumerKey == "" || creds.Application.ConsumerSecret == "" {
		return nil, fmt.Errorf("credentials missing application consumer key/secret")
	}
	if creds.User.Key == "" || creds.User.Secret == "" {
		return nil, fmt.Errorf("credentials missing user key/secret")
	}
	return &creds, nil
}
