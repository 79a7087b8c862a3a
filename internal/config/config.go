// Package config loads the device configuration with viper. Every key has a
// default, so a missing file yields a working setup.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to environment overrides, e.g. BYTELEVEL_MQTT_HOST.
const EnvPrefix = "BYTELEVEL"

// DefaultFile is used when no path is given.
const DefaultFile = "config.json"

// Provider offers typed lookups on dotted keys.
type Provider struct {
	v *viper.Viper
}

// New returns a Provider holding only defaults.
func New() *Provider {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return &Provider{v: v}
}

// Open reads path into a new Provider. A missing file is not an error.
func Open(path string) (*Provider, error) {
	p := New()
	if path == "" {
		path = DefaultFile
	}
	p.v.SetConfigFile(path)
	if err := p.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || isNotExist(err) {
			return p, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return p, nil
}

// Bool returns key as a bool.
func (p *Provider) Bool(key string) bool { return p.v.GetBool(key) }

// Int returns key as an int.
func (p *Provider) Int(key string) int { return p.v.GetInt(key) }

// Float returns key as a float64.
func (p *Provider) Float(key string) float64 { return p.v.GetFloat64(key) }

// String returns key as a string.
func (p *Provider) String(key string) string { return p.v.GetString(key) }

// IsSet reports whether key has a value from any source.
func (p *Provider) IsSet(key string) bool { return p.v.IsSet(key) }

// Set overrides key for the rest of the process lifetime.
func (p *Provider) Set(key string, value any) { p.v.Set(key, value) }

// Duration reads an integer number of milliseconds.
func (p *Provider) Duration(key string) time.Duration {
	return time.Duration(p.v.GetInt64(key)) * time.Millisecond
}

// Save writes the current configuration to path.
func (p *Provider) Save(path string) error {
	if path == "" {
		path = DefaultFile
	}
	if err := p.v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

// File returns the file the configuration was read from, if any.
func (p *Provider) File() string {
	return p.v.ConfigFileUsed()
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
