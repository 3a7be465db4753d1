/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import (
	"fmt"
	"time"

	"github.com/acronis/go-notifygate/config"
)

const cfgDefaultKeyPrefix = "rateLimiting"

const (
	cfgKeyLimits               = "limits"
	cfgKeyExcludedRecipients   = "excludedRecipients"
	cfgKeyStoreShards          = "store.shards"
	cfgKeyStoreMaxKeys         = "store.maxKeys"
	cfgKeyStoreCleanupInterval = "store.cleanupInterval"
)

const (
	defaultStoreCleanupInterval  = time.Minute
	defaultStoreMaxKeysUnlimited = 0
)

// Config represents a set of configuration parameters for rate limiting of notifications.
// Configuration can be loaded in different formats (YAML, JSON) using config.Loader, viper,
// or with json.Unmarshal/yaml.Unmarshal functions directly.
type Config struct {
	// Limits maps notification type to its policy.
	// Keys are matched case-sensitively, but note that config.Loader lowercases all keys read from files.
	Limits map[string]PolicyConfig `mapstructure:"limits" yaml:"limits" json:"limits"`

	// ExcludedRecipients is a list of glob patterns (e.g. "*@ops.example.com").
	// Notifications to matching recipients bypass rate limiting.
	ExcludedRecipients []string `mapstructure:"excludedRecipients" yaml:"excludedRecipients" json:"excludedRecipients"`

	Store StoreConfig `mapstructure:"store" yaml:"store" json:"store"`

	keyPrefix string
}

var _ config.Config = (*Config)(nil)
var _ config.KeyPrefixProvider = (*Config)(nil)

// PolicyConfig represents a configuration of the rate limit policy for a single notification type.
type PolicyConfig struct {
	Limit  int                 `mapstructure:"limit" yaml:"limit" json:"limit"`
	Period config.TimeDuration `mapstructure:"period" yaml:"period" json:"period"`
}

// StoreConfig represents a configuration of the counter store.
type StoreConfig struct {
	// Shards is a number of shards. Must be a power of two.
	Shards int `mapstructure:"shards" yaml:"shards" json:"shards"`

	// MaxKeys limits the total number of counters. Zero means no limit.
	MaxKeys int `mapstructure:"maxKeys" yaml:"maxKeys" json:"maxKeys"`

	// CleanupInterval is an interval of the periodic removal of expired counters. Zero disables it.
	CleanupInterval config.TimeDuration `mapstructure:"cleanupInterval" yaml:"cleanupInterval" json:"cleanupInterval"`
}

// ConfigOption is a type for functional options for the Config.
type ConfigOption func(*configOptions)

type configOptions struct {
	keyPrefix string
}

// WithKeyPrefix returns a ConfigOption that sets a key prefix for parsing configuration parameters.
// This prefix will be used by config.Loader.
func WithKeyPrefix(keyPrefix string) ConfigOption {
	return func(o *configOptions) {
		o.keyPrefix = keyPrefix
	}
}

// NewConfig creates a new instance of the Config.
func NewConfig(options ...ConfigOption) *Config {
	opts := configOptions{keyPrefix: cfgDefaultKeyPrefix}
	for _, opt := range options {
		opt(&opts)
	}
	return &Config{keyPrefix: opts.keyPrefix}
}

// NewDefaultConfig creates a new instance of the Config with default values.
func NewDefaultConfig(options ...ConfigOption) *Config {
	cfg := NewConfig(options...)
	cfg.Limits = map[string]PolicyConfig{}
	cfg.Store = StoreConfig{
		Shards:          DefaultStoreShards,
		MaxKeys:         defaultStoreMaxKeysUnlimited,
		CleanupInterval: config.TimeDuration(defaultStoreCleanupInterval),
	}
	return cfg
}

// KeyPrefix returns a key prefix with which all configuration parameters should be presented.
// Implements config.KeyPrefixProvider interface.
func (c *Config) KeyPrefix() string {
	if c.keyPrefix == "" {
		return cfgDefaultKeyPrefix
	}
	return c.keyPrefix
}

// SetProviderDefaults sets default configuration values for rate limiting in config.DataProvider.
// Implements config.Config interface.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyStoreShards, DefaultStoreShards)
	dp.SetDefault(cfgKeyStoreMaxKeys, defaultStoreMaxKeysUnlimited)
	dp.SetDefault(cfgKeyStoreCleanupInterval, defaultStoreCleanupInterval)
}

// Set sets rate limiting configuration values from config.DataProvider.
// Implements config.Config interface.
func (c *Config) Set(dp config.DataProvider) error {
	var limits map[string]PolicyConfig
	if err := dp.UnmarshalKey(cfgKeyLimits, &limits, config.WithTextUnmarshalerHook()); err != nil {
		return err
	}
	if limits == nil {
		limits = map[string]PolicyConfig{}
	}
	for notificationType, policyCfg := range limits {
		if err := policyCfg.policy().Validate(); err != nil {
			return dp.WrapKeyErr(cfgKeyLimits+"."+notificationType, err)
		}
	}
	c.Limits = limits

	var err error
	if c.ExcludedRecipients, err = dp.GetStringSlice(cfgKeyExcludedRecipients); err != nil {
		return err
	}

	return c.Store.Set(dp)
}

// Set sets counter store configuration values from config.DataProvider.
func (s *StoreConfig) Set(dp config.DataProvider) error {
	var err error

	if s.Shards, err = dp.GetInt(cfgKeyStoreShards); err != nil {
		return err
	}
	if s.Shards < 1 || s.Shards > MaxStoreShards || s.Shards&(s.Shards-1) != 0 {
		return dp.WrapKeyErr(cfgKeyStoreShards,
			fmt.Errorf("must be a power of two in range [1, %d], got %d", MaxStoreShards, s.Shards))
	}

	if s.MaxKeys, err = dp.GetInt(cfgKeyStoreMaxKeys); err != nil {
		return err
	}
	if s.MaxKeys < 0 {
		return dp.WrapKeyErr(cfgKeyStoreMaxKeys, fmt.Errorf("must not be negative"))
	}

	var dur time.Duration
	if dur, err = dp.GetDuration(cfgKeyStoreCleanupInterval); err != nil {
		return err
	}
	if dur < 0 {
		return dp.WrapKeyErr(cfgKeyStoreCleanupInterval, fmt.Errorf("must not be negative"))
	}
	s.CleanupInterval = config.TimeDuration(dur)

	return nil
}

// NewPolicyTable builds an immutable PolicyTable from the configured limits.
func (c *Config) NewPolicyTable() (*PolicyTable, error) {
	policies := make(map[string]Policy, len(c.Limits))
	for notificationType, policyCfg := range c.Limits {
		policies[notificationType] = policyCfg.policy()
	}
	return NewPolicyTable(policies)
}

// StoreOpts returns options for the CounterStore based on the configuration.
func (c *Config) StoreOpts() StoreOpts {
	return StoreOpts{Shards: c.Store.Shards, MaxKeys: c.Store.MaxKeys}
}

func (pc PolicyConfig) policy() Policy {
	return Policy{Limit: pc.Limit, Period: time.Duration(pc.Period)}
}
