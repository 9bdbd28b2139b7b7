// Package profiles keeps the named credential profiles a user can connect
// with. Profiles are held in insertion order, one of them may be active, and
// the whole set can be persisted to a YAML file and exported or imported as
// a portable document.
package profiles

import (
	"strings"
	"time"

	"github.com/damacus/iron-studio/internal/errs"
	"github.com/damacus/iron-studio/internal/storage"
)

// Config is the connection part of a profile.
type Config struct {
	Provider        storage.Provider `yaml:"provider,omitempty" json:"provider,omitempty"`
	AccessKeyID     string           `yaml:"accessKeyId" json:"accessKeyId"`
	SecretAccessKey string           `yaml:"secretAccessKey" json:"secretAccessKey"`
	SessionToken    string           `yaml:"sessionToken,omitempty" json:"sessionToken,omitempty"`
	Region          string           `yaml:"region" json:"region"`
	Bucket          string           `yaml:"bucket" json:"bucket"`
	Endpoint        string           `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	// UseSSL is derived from the endpoint when unset.
	UseSSL *bool  `yaml:"useSSL,omitempty" json:"useSSL,omitempty"`
	Root   string `yaml:"root,omitempty" json:"root,omitempty"`
}

// Profile is a named Config.
type Profile struct {
	ID        string    `yaml:"id" json:"id"`
	Name      string    `yaml:"name" json:"name"`
	Config    Config    `yaml:"config" json:"config"`
	CreatedAt time.Time `yaml:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `yaml:"updatedAt" json:"updatedAt"`
}

// Normalize trims every field, fills in the provider and checks the fields
// the provider needs. An empty provider means s3.
func Normalize(cfg Config) (Config, error) {
	out := Config{
		Provider:        storage.Provider(strings.ToLower(strings.TrimSpace(string(cfg.Provider)))),
		AccessKeyID:     strings.TrimSpace(cfg.AccessKeyID),
		SecretAccessKey: strings.TrimSpace(cfg.SecretAccessKey),
		SessionToken:    strings.TrimSpace(cfg.SessionToken),
		Region:          strings.TrimSpace(cfg.Region),
		Bucket:          strings.TrimSpace(cfg.Bucket),
		Endpoint:        strings.TrimSpace(cfg.Endpoint),
		UseSSL:          cfg.UseSSL,
		Root:            strings.TrimSpace(cfg.Root),
	}
	if out.Provider == "" {
		out.Provider = storage.ProviderS3
	}
	if !out.Provider.Valid() {
		return Config{}, errs.New(errs.KindInvalidInput, "unknown provider "+string(out.Provider))
	}

	var missing []string
	require := func(field, value string) {
		if value == "" {
			missing = append(missing, field)
		}
	}
	switch out.Provider {
	case storage.ProviderMinIO:
		out.Endpoint = stripScheme(&out)
		require("endpoint", out.Endpoint)
		require("accessKeyId", out.AccessKeyID)
		require("bucket", out.Bucket)
	case storage.ProviderS3:
		require("accessKeyId", out.AccessKeyID)
		require("region", out.Region)
		require("bucket", out.Bucket)
	case storage.ProviderLocal:
		require("root", out.Root)
	}
	if len(missing) > 0 {
		return Config{}, errs.New(errs.KindInvalidInput, "profile must include "+strings.Join(missing, ", "))
	}
	return out, nil
}

// stripScheme turns "https://host:port" into "host:port" and records the
// scheme in UseSSL when it was not set explicitly.
func stripScheme(cfg *Config) string {
	for scheme, secure := range map[string]bool{"https://": true, "http://": false} {
		if rest, ok := strings.CutPrefix(cfg.Endpoint, scheme); ok {
			if cfg.UseSSL == nil {
				cfg.UseSSL = &secure
			}
			return strings.TrimSuffix(rest, "/")
		}
	}
	return cfg.Endpoint
}

// Redacted returns a copy without credentials, for display.
func (c Config) Redacted() Config {
	c.SecretAccessKey = ""
	c.SessionToken = ""
	return c
}

// Target describes where the profile points, e.g. "photos @ play.min.io:9000".
func (c Config) Target() string {
	switch c.Provider {
	case storage.ProviderLocal:
		return c.Root
	case storage.ProviderMinIO:
		return c.Bucket + " @ " + c.Endpoint
	}
	if c.Endpoint != "" {
		return c.Bucket + " @ " + c.Endpoint
	}
	return c.Bucket + " (" + c.Region + ")"
}

// TestStatus is the state of a profile's connection test.
type TestStatus string

const (
	TestIdle    TestStatus = "idle"
	TestRunning TestStatus = "testing"
	TestSuccess TestStatus = "success"
	TestError   TestStatus = "error"
)

// TestResult is the last connection test outcome. It is kept in memory only.
type TestResult struct {
	Status   TestStatus
	Message  string
	TestedAt time.Time
}
