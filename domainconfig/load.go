package domainconfig

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/spf13/viper"
)

// Load reads a DomainConfig from a file://, cloud:// or plain path
// source URI using viper, supplementing the distilled spec with
// original_source/.../config/{file,cloud}.rs's file-vs-cloud split.
// A cloud:// URI is fetched over HTTP first (an external collaborator
// contract only — no real cloud SDK call) and then parsed the same way
// a local file would be.
func Load(sourceURI string) (DomainConfig, error) {
	v := viper.New()

	kind, location := splitSource(sourceURI)

	switch kind {
	case SourceCloud:
		body, err := fetchCloudConfig(location)
		if err != nil {
			return DomainConfig{}, fmt.Errorf("fetching cloud config: %w", err)
		}
		v.SetConfigType("yaml")
		if err := v.ReadConfig(strings.NewReader(body)); err != nil {
			return DomainConfig{}, fmt.Errorf("parsing cloud config: %w", err)
		}
	case SourceFile:
		v.SetConfigFile(location)
		if err := v.ReadInConfig(); err != nil {
			return DomainConfig{}, fmt.Errorf("reading config file %s: %w", location, err)
		}
	}

	var cfg DomainConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return DomainConfig{}, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.Source = Source{Kind: kind, URI: sourceURI}

	if err := cfg.Valid(); err != nil {
		return DomainConfig{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func splitSource(uri string) (SourceKind, string) {
	if strings.HasPrefix(uri, "cloud://") {
		return SourceCloud, strings.TrimPrefix(uri, "cloud://")
	}
	return SourceFile, strings.TrimPrefix(uri, "file://")
}

func fetchCloudConfig(location string) (string, error) {
	resp, err := http.Get("https://" + location)
	if err != nil {
		return "", fmt.Errorf("cloud config endpoint unavailable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("cloud config endpoint returned HTTP %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading cloud config body: %w", err)
	}
	return string(body), nil
}
