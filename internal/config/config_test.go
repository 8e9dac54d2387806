package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brogergvhs/comicdl/internal/config"
)

// pointConfigRoot sends every config path under a throwaway directory.
// Tests here share process env, so no t.Parallel.
func pointConfigRoot(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	t.Setenv("APPDATA", "")
	t.Setenv("XDG_CONFIG_HOME", dir)

	return filepath.Join(dir, "comicdl")
}

func TestLoadMerged(t *testing.T) {
	t.Run("no config on disk falls back to defaults", func(t *testing.T) {
		pointConfigRoot(t)

		cfg, src, err := config.LoadMerged(config.Options{})
		require.NoError(t, err)

		assert.Contains(t, src, "default config in memory")
		assert.Equal(t, ".", cfg.Output)
		assert.Equal(t, 4, cfg.PageWorkers)
		assert.Equal(t, 3, cfg.Retries)
		assert.Equal(t, "30s", cfg.Timeout)
		assert.Equal(t, 1000, cfg.MaxPages)
		assert.Equal(t, "gallery", cfg.Mode)
	})

	t.Run("options win over file values", func(t *testing.T) {
		pointConfigRoot(t)

		_, err := config.InitDefaultConfig()
		require.NoError(t, err)

		cfg, src, err := config.LoadMerged(config.Options{
			Output:    "/downloads",
			Mode:      "linked",
			RateLimit: 2.5,
		})
		require.NoError(t, err)

		assert.Contains(t, src, "Default.yaml")
		assert.Equal(t, "/downloads", cfg.Output)
		assert.Equal(t, "linked", cfg.Mode)
		assert.Equal(t, 2.5, cfg.RateLimit)
		assert.Equal(t, 3, cfg.Retries, "untouched fields keep file values")
	})

	t.Run("ignore-config skips the file entirely", func(t *testing.T) {
		pointConfigRoot(t)

		path, err := config.InitDefaultConfig()
		require.NoError(t, err)

		saved := config.DefaultConfig()
		saved.Output = "/from-file"
		require.NoError(t, config.SaveYAML(saved, path))

		cfg, src, err := config.LoadMerged(config.Options{IgnoreConfig: true})
		require.NoError(t, err)

		assert.Contains(t, src, "ignored config")
		assert.Equal(t, ".", cfg.Output)
	})

	t.Run("negative counts fall back to defaults", func(t *testing.T) {
		pointConfigRoot(t)

		path, err := config.InitDefaultConfig()
		require.NoError(t, err)

		saved := config.DefaultConfig()
		saved.PageWorkers = -1
		saved.Retries = -2
		saved.MaxPages = -5
		require.NoError(t, config.SaveYAML(saved, path))

		cfg, _, err := config.LoadMerged(config.Options{})
		require.NoError(t, err)

		assert.Equal(t, 4, cfg.PageWorkers)
		assert.Equal(t, 3, cfg.Retries)
		assert.Equal(t, 1000, cfg.MaxPages)
	})

	t.Run("saved values round-trip through yaml", func(t *testing.T) {
		pointConfigRoot(t)

		path, err := config.InitDefaultConfig()
		require.NoError(t, err)

		saved := config.DefaultConfig()
		saved.ImageSelector = "div.reader img"
		saved.URLAttr = "data-url"
		saved.NextSelector = "a.comic-nav-next"
		saved.NumberAttr = "id"
		saved.NumberPattern = `page-(\d+)`
		saved.NamePattern = `chapter-(\d+)`
		saved.NameNumber = true
		saved.NamePadding = 4
		saved.DefaultURL = "https://example.com/comic"
		require.NoError(t, config.SaveYAML(saved, path))

		cfg, _, err := config.LoadMerged(config.Options{})
		require.NoError(t, err)

		assert.Equal(t, "div.reader img", cfg.ImageSelector)
		assert.Equal(t, "data-url", cfg.URLAttr)
		assert.Equal(t, "a.comic-nav-next", cfg.NextSelector)
		assert.Equal(t, "id", cfg.NumberAttr)
		assert.Equal(t, `page-(\d+)`, cfg.NumberPattern)
		assert.Equal(t, `chapter-(\d+)`, cfg.NamePattern)
		assert.True(t, cfg.NameNumber)
		assert.Equal(t, 4, cfg.NamePadding)
		assert.Equal(t, "https://example.com/comic", cfg.DefaultURL)
	})
}

func TestProfiles(t *testing.T) {
	t.Run("init creates and activates Default", func(t *testing.T) {
		root := pointConfigRoot(t)

		path, err := config.InitDefaultConfig()
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(root, "configs", "Default.yaml"), path)
		assert.FileExists(t, path)

		label, err := config.CurrentLabel()
		require.NoError(t, err)
		assert.Equal(t, "Default", label)
	})

	t.Run("second init reports the existing file", func(t *testing.T) {
		pointConfigRoot(t)

		_, err := config.InitDefaultConfig()
		require.NoError(t, err)

		_, err = config.InitDefaultConfig()
		assert.ErrorIs(t, err, os.ErrExist)
	})

	t.Run("add, switch, list, remove", func(t *testing.T) {
		pointConfigRoot(t)

		_, err := config.InitDefaultConfig()
		require.NoError(t, err)

		_, err = config.CreateEmptyConfig("site-a")
		require.NoError(t, err)

		require.NoError(t, config.SwitchConfig("site-a"))
		label, err := config.CurrentLabel()
		require.NoError(t, err)
		assert.Equal(t, "site-a", label)

		infos, err := config.ListConfigs()
		require.NoError(t, err)
		require.Len(t, infos, 2)
		assert.Equal(t, "Default", infos[0].Label)
		assert.False(t, infos[0].Active)
		assert.Equal(t, "site-a", infos[1].Label)
		assert.True(t, infos[1].Active)

		// removing the active profile falls back to Default
		require.NoError(t, config.RemoveConfig("site-a", true))
		label, err = config.CurrentLabel()
		require.NoError(t, err)
		assert.Equal(t, "Default", label)
	})

	t.Run("Default cannot be removed", func(t *testing.T) {
		pointConfigRoot(t)

		_, err := config.InitDefaultConfig()
		require.NoError(t, err)

		assert.Error(t, config.RemoveConfig("Default", true))
	})

	t.Run("rename keeps the active label pointed right", func(t *testing.T) {
		pointConfigRoot(t)

		_, err := config.InitDefaultConfig()
		require.NoError(t, err)

		_, err = config.CreateEmptyConfig("site-a")
		require.NoError(t, err)
		require.NoError(t, config.SwitchConfig("site-a"))

		require.NoError(t, config.RenameConfig("site-a", "site-b"))

		label, err := config.CurrentLabel()
		require.NoError(t, err)
		assert.Equal(t, "site-b", label)

		_, err = config.ConfigPathByLabel("site-a")
		assert.Error(t, err)
	})

	t.Run("duplicate labels are rejected", func(t *testing.T) {
		pointConfigRoot(t)

		_, err := config.CreateEmptyConfig("site-a")
		require.NoError(t, err)

		_, err = config.CreateEmptyConfig("site-a")
		assert.Error(t, err)
	})
}
