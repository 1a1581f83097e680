package cli

import _ "embed"

// defaultConfigurationContent documents every configuration key with its default value.
//
//go:embed default_config.yaml
var defaultConfigurationContent []byte

// DefaultConfigurationContent returns a copy of the embedded default configuration file.
func DefaultConfigurationContent() []byte {
	return append([]byte(nil), defaultConfigurationContent...)
}
