package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseJob(t *testing.T) {
	job, err := ParseJob([]byte(`
name: digest
schedule: "0 8 * * *"
params:
  subreddit: golang
  limit: 5
`))
	require.NoError(t, err)
	require.Equal(t, "digest", job.Name)
	require.Equal(t, "0 8 * * *", job.Schedule)
	require.True(t, job.Enabled)
	require.Equal(t, "golang", job.Params.String("subreddit", ""))
	require.Equal(t, 5, job.Params.Int("limit", 0))
}

func TestParseJob_Disabled(t *testing.T) {
	job, err := ParseJob([]byte("name: monitor\nenabled: false\n"))
	require.NoError(t, err)
	require.False(t, job.Enabled)
	require.Empty(t, job.Params)
}

func TestParseJob_Invalid(t *testing.T) {
	_, err := ParseJob([]byte("schedule: daily\n"))
	require.ErrorContains(t, err, "name is required")

	_, err = ParseJob([]byte("name: [unterminated"))
	require.Error(t, err)
}

func TestLoadJob(t *testing.T) {
	path := filepath.Join(t.TempDir(), "digest.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: digest\nparams:\n  subreddit: rust\n"), 0o600))

	job, err := LoadJob(path)
	require.NoError(t, err)
	require.Equal(t, "rust", job.Params.String("subreddit", ""))

	_, err = LoadJob(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestJob_Merge(t *testing.T) {
	job := Job{Name: "digest", Params: Config{"subreddit": "golang", "limit": 5}}

	merged := job.Merge(Config{"limit": 20})
	require.Equal(t, Config{"subreddit": "golang", "limit": 20}, merged)
	require.Equal(t, 5, job.Params["limit"])
}
