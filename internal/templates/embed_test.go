package templates

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaultConfig_ParsesAsYAML(t *testing.T) {
	var doc map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(DefaultConfig()), &doc))

	for _, section := range []string{"reddit", "ai", "database", "server"} {
		require.Contains(t, doc, section)
	}
	require.Equal(t, "INFO", doc["log_level"])
}

func TestDefaultConfig_KeepsSecretsCommentedOut(t *testing.T) {
	for _, line := range strings.Split(DefaultConfig(), "\n") {
		trimmed := strings.TrimSpace(line)
		for _, key := range []string{"client_secret:", "password:", "anthropic_api_key:", "openai_api_key:"} {
			if strings.HasPrefix(trimmed, key) {
				t.Fatalf("secret %s should not be set in the template: %q", key, line)
			}
		}
	}
}
