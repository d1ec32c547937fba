package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/flatsite/internal/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault_MatchesConventionalLayout(t *testing.T) {
	cfg := Default()

	require.Equal(t, 8000, cfg.Port)
	require.Equal(t, "build", cfg.Output)
	require.Equal(t, ".", cfg.Pages.Root)
	require.Equal(t, []string{".html", ".xml"}, cfg.Pages.Extensions)
	require.Equal(t, []string{"post/", "static/", "templates/", "build/"}, cfg.Pages.Excludes)
	require.Equal(t, "post", cfg.Posts.Root)
	require.Equal(t, []string{".markdown", ".md"}, cfg.Posts.Extensions)
	require.True(t, cfg.PruningEnabled())
	require.True(t, cfg.RemoveExtraEnabled())
}

func TestLoad_MissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	require.True(t, errors.IsCategory(err, errors.CategoryConfig))
}

func TestLoad_LegacyPrunningSpellingAccepted(t *testing.T) {
	cfg, err := Load(writeConfig(t, "prunning: false\n"))
	require.NoError(t, err)
	require.False(t, cfg.PruningEnabled())
}

func TestLoad_ExpandsEnvironmentVariables(t *testing.T) {
	t.Setenv("FLATSITE_TEST_OUTPUT", "dist")

	cfg, err := Load(writeConfig(t, "output: ${FLATSITE_TEST_OUTPUT}\n"))
	require.NoError(t, err)
	require.Equal(t, "dist", cfg.Output)
	// Default excludes track the configured output dir.
	require.Contains(t, cfg.Pages.Excludes, "dist/")
}

func TestValidate_RejectsBadValues(t *testing.T) {
	for _, content := range []string{
		"port: 70000\n",
		"encoding: no-such-encoding\n",
		"pages:\n  extensions: [html]\n", // missing dot prefix
	} {
		_, err := Load(writeConfig(t, content))
		require.Error(t, err, content)
	}
}

func TestWriteStarter_RefusesToOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	require.NoError(t, WriteStarter(path, false))
	require.Error(t, WriteStarter(path, false))
	require.NoError(t, WriteStarter(path, true))

	// The starter config loads and validates.
	cfg, err := Load(path)
	require.NoError(t, err)
	require.True(t, cfg.Debug)
}
