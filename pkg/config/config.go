// Package config loads settings from the environment and an optional config
// file.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/japaniel/kindlenotion/pkg/dictionary"
	"github.com/spf13/viper"
)

// Keys, as environment variable names.
const (
	KeyAPIKey        = "API_KEY"
	KeyNotionToken   = "TOKEN_V2"
	KeyWordTableID   = "WORD_TABLE_ID"
	KeyLookupTableID = "LOOKUP_TABLE_ID"
	KeySystemUser    = "SYSTEM_USER"
	KeyArchivePath   = "ARCHIVE_PATH"
	KeyDictionaryURL = "DICTIONARY_URL"
	KeyNotionURL     = "NOTION_URL"
	KeyHTTPTimeout   = "HTTP_TIMEOUT"
)

var allKeys = []string{
	KeyAPIKey, KeyNotionToken, KeyWordTableID, KeyLookupTableID,
	KeySystemUser, KeyArchivePath, KeyDictionaryURL, KeyNotionURL, KeyHTTPTimeout,
}

// DefaultHTTPTimeout bounds every outbound request.
const DefaultHTTPTimeout = 30 * time.Second

// ErrInvalid is returned by the Validate methods.
var ErrInvalid = errors.New("invalid configuration")

// Config holds the resolved settings.
type Config struct {
	APIKey        string
	NotionToken   string
	WordTableID   string
	LookupTableID string
	SystemUser    string
	ArchivePath   string
	DictionaryURL string
	// NotionURL overrides the Notion API base URL. Empty uses the public API.
	NotionURL   string
	HTTPTimeout time.Duration
}

// Load reads the environment and, when path is non-empty, the config file at
// path. Environment variables take precedence over the file.
func Load(path string) (*Config, error) {
	v := viper.New()
	for _, k := range allKeys {
		if err := v.BindEnv(k); err != nil {
			return nil, fmt.Errorf("bind %s: %w", k, err)
		}
	}
	v.SetDefault(KeyDictionaryURL, dictionary.DefaultURL)
	v.SetDefault(KeyHTTPTimeout, DefaultHTTPTimeout.String())

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	timeout := v.GetDuration(KeyHTTPTimeout)
	if timeout <= 0 {
		return nil, fmt.Errorf("%w: %s must be a positive duration, got %q", ErrInvalid, KeyHTTPTimeout, v.GetString(KeyHTTPTimeout))
	}

	return &Config{
		APIKey:        v.GetString(KeyAPIKey),
		NotionToken:   v.GetString(KeyNotionToken),
		WordTableID:   v.GetString(KeyWordTableID),
		LookupTableID: v.GetString(KeyLookupTableID),
		SystemUser:    v.GetString(KeySystemUser),
		ArchivePath:   v.GetString(KeyArchivePath),
		DictionaryURL: v.GetString(KeyDictionaryURL),
		NotionURL:     v.GetString(KeyNotionURL),
		HTTPTimeout:   timeout,
	}, nil
}

// Validate checks the settings every run needs.
func (c *Config) Validate() error {
	return missing(map[string]string{
		KeyNotionToken:   c.NotionToken,
		KeyWordTableID:   c.WordTableID,
		KeyLookupTableID: c.LookupTableID,
	})
}

// ValidateDictionary checks the settings needed to sync words.
func (c *Config) ValidateDictionary() error {
	return missing(map[string]string{
		KeyAPIKey:        c.APIKey,
		KeyDictionaryURL: c.DictionaryURL,
	})
}

func missing(values map[string]string) error {
	var keys []string
	for _, k := range allKeys {
		if v, ok := values[k]; ok && strings.TrimSpace(v) == "" {
			keys = append(keys, k)
		}
	}
	if len(keys) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalid, strings.Join(keys, ", "))
	}
	return nil
}

// ArchiveDir returns the directory daily export copies go to, or "" when
// neither ARCHIVE_PATH nor SYSTEM_USER is set.
func (c *Config) ArchiveDir() string {
	if c.ArchivePath != "" {
		return c.ArchivePath
	}
	if c.SystemUser == "" {
		return ""
	}
	return filepath.Join("/Users", c.SystemUser, "Documents", "Kindle_Vocabulary_Builder")
}
