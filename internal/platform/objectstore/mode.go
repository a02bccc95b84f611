// Package objectstore provides the Google Cloud Storage backed object store
// used for direct uploads, and its storage mode configuration.
package objectstore

import (
	"fmt"
	"net/url"
	"strings"

	"google.golang.org/api/option"
)

type Mode string

const (
	ModeGCS         Mode = "gcs"
	ModeGCSEmulator Mode = "gcs_emulator"
)

// Config selects the storage backend and bucket.
type Config struct {
	Mode         Mode
	Bucket       string
	EmulatorHost string
	// Credentials is a service account key, as a file path or inline JSON.
	// Empty means application default credentials.
	Credentials string
}

func (c Config) IsEmulator() bool {
	return c.Mode == ModeGCSEmulator
}

type ConfigErrorCode string

const (
	ConfigErrorInvalidMode         ConfigErrorCode = "invalid_mode"
	ConfigErrorMissingBucket       ConfigErrorCode = "missing_bucket"
	ConfigErrorMissingEmulatorHost ConfigErrorCode = "missing_emulator_host"
	ConfigErrorInvalidEmulatorHost ConfigErrorCode = "invalid_emulator_host"
)

type ConfigError struct {
	Code         ConfigErrorCode
	Mode         string
	EmulatorHost string
	Cause        error
}

func (e *ConfigError) Error() string {
	switch e.Code {
	case ConfigErrorInvalidMode:
		return fmt.Sprintf("invalid object storage mode %q (allowed: %q, %q)", e.Mode, ModeGCS, ModeGCSEmulator)
	case ConfigErrorMissingBucket:
		return "object storage bucket is required"
	case ConfigErrorMissingEmulatorHost:
		return fmt.Sprintf("object storage mode %q requires an emulator host", ModeGCSEmulator)
	case ConfigErrorInvalidEmulatorHost:
		return fmt.Sprintf("invalid emulator host %q; expected absolute URL like http://fake-gcs:4443", e.EmulatorHost)
	default:
		return "invalid object storage config"
	}
}

func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// Validate checks that the mode is known, a bucket is named and, in emulator
// mode, that the emulator host is an absolute URL.
func (c Config) Validate() error {
	switch c.Mode {
	case ModeGCS, ModeGCSEmulator:
	default:
		return &ConfigError{Code: ConfigErrorInvalidMode, Mode: string(c.Mode)}
	}
	if strings.TrimSpace(c.Bucket) == "" {
		return &ConfigError{Code: ConfigErrorMissingBucket, Mode: string(c.Mode)}
	}
	if !c.IsEmulator() {
		return nil
	}
	if strings.TrimSpace(c.EmulatorHost) == "" {
		return &ConfigError{Code: ConfigErrorMissingEmulatorHost, Mode: string(c.Mode)}
	}
	u, err := url.Parse(c.EmulatorHost)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return &ConfigError{
			Code:         ConfigErrorInvalidEmulatorHost,
			Mode:         string(c.Mode),
			EmulatorHost: c.EmulatorHost,
			Cause:        err,
		}
	}
	return nil
}

// ClientOptions turns a credentials setting into client options.
func ClientOptions(creds string) []option.ClientOption {
	creds = strings.TrimSpace(creds)
	if creds == "" {
		return nil
	}
	if strings.HasPrefix(creds, "{") {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(creds))}
	}
	return []option.ClientOption{option.WithCredentialsFile(creds)}
}
