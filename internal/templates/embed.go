// Package templates holds files shipped inside the redditor binary.
package templates

import _ "embed"

//go:embed config.yaml
var defaultConfig string

// DefaultConfig returns the commented config file written by
// "redditor config init".
func DefaultConfig() string {
	return defaultConfig
}
