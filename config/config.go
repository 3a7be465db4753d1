/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package config loads configuration sections of the notification gateway
// (server, log, rateLimiting) from YAML/JSON files and NOTIFYGATE_* environment variables.
package config

// Config is a common interface for configuration sections that may be used by Loader.
type Config interface {
	SetProviderDefaults(dp DataProvider)
	Set(dp DataProvider) error
}

// KeyPrefixProvider is an interface for providing key prefix that will be used for configuration parameters.
// All keys requested by the section are looked up under this prefix.
type KeyPrefixProvider interface {
	KeyPrefix() string
}

// DataProviderFor returns the data provider that should be passed to the configuration section.
// If the section implements KeyPrefixProvider, the provider is wrapped with KeyPrefixedDataProvider.
func DataProviderFor(dp DataProvider, cfg Config) DataProvider {
	if kp, ok := cfg.(KeyPrefixProvider); ok && kp.KeyPrefix() != "" {
		return NewKeyPrefixedDataProvider(dp, kp.KeyPrefix())
	}
	return dp
}
