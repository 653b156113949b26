package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/gargbot/archivist/config"
	"github.com/gargbot/archivist/core"
	"github.com/gargbot/archivist/remote/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func testApp(t *testing.T) (*cli.App, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	app := newApp()
	app.Writer = &stdout
	app.ErrWriter = &stderr
	return app, &stdout, &stderr
}

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := "database:\n" +
		"  driver: sqlite\n" +
		"  path: " + filepath.Join(dir, "archive.db") + "\n" +
		"pictures:\n" +
		"  checkpoint_dir: " + filepath.Join(dir, "checkpoints") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func findCommand(t *testing.T, app *cli.App, name string) *cli.Command {
	t.Helper()
	for _, cmd := range app.Commands {
		if cmd.Name == name {
			return cmd
		}
	}
	t.Fatalf("command %q not found", name)
	return nil
}

func TestGlobalFlags(t *testing.T) {
	app := newApp()

	t.Run("secrets bind to environment", func(t *testing.T) {
		envs := map[string][]string{}
		for _, flag := range app.Flags {
			if f, ok := flag.(*cli.StringFlag); ok {
				envs[f.Name] = f.EnvVars
			}
		}
		assert.Equal(t, []string{"ARCHIVIST_DB_PASSWORD"}, envs["db-password"])
		assert.Equal(t, []string{"ARCHIVIST_DROPBOX_TOKEN"}, envs["dropbox-token"])
		assert.Equal(t, []string{"ARCHIVIST_CONFIG"}, envs["config"])
	})

	t.Run("add-local requires folder and topic", func(t *testing.T) {
		cmd := findCommand(t, app, "add-local")
		required := map[string]bool{}
		for _, flag := range cmd.Flags {
			if f, ok := flag.(*cli.StringFlag); ok {
				required[f.Name] = f.Required
			}
		}
		assert.True(t, required["folder"])
		assert.True(t, required["topic"])
		assert.False(t, required["root"])
	})
}

func TestInvalidLogLevel(t *testing.T) {
	app, _, _ := testApp(t)
	err := app.Run([]string{"archivist", "--log-level", "loud", "migrate"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestLoadConfig_FlagOverrides(t *testing.T) {
	t.Setenv("ARCHIVIST_DB_PASSWORD", "hunter2")
	t.Setenv("ARCHIVIST_DROPBOX_TOKEN", "sl.token")

	app, _, _ := testApp(t)
	var cfg *config.Config
	cmd := findCommand(t, app, "classify")
	cmd.Action = func(c *cli.Context) error {
		var err error
		cfg, err = loadConfig(c)
		return err
	}

	err := app.Run([]string{"archivist", "-c", writeConfig(t), "-l", "DEBUG",
		"classify", "--pool-size", "3", "--rate-limit", "2.5", "--incremental", "--dedupe"})
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "hunter2", cfg.Database.Password)
	assert.Equal(t, "sl.token", cfg.Dropbox.Token)
	assert.Equal(t, 3, cfg.Pictures.PoolSize)
	assert.Equal(t, 2.5, cfg.Pictures.RateLimit)
	assert.True(t, cfg.Pictures.Incremental)
	assert.True(t, cfg.Pictures.Dedupe)
	assert.True(t, cfg.Logs.Dedupe)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadConfig_IncrementalImpliesPictureDedupe(t *testing.T) {
	app, _, _ := testApp(t)
	var cfg *config.Config

	cmd := findCommand(t, app, "classify")
	cmd.Action = func(c *cli.Context) error {
		var err error
		cfg, err = loadConfig(c)
		return err
	}

	require.NoError(t, app.Run([]string{"archivist", "-c", writeConfig(t), "classify", "--incremental"}))
	require.NotNil(t, cfg)
	assert.True(t, cfg.Pictures.Incremental)
	assert.True(t, cfg.Pictures.Dedupe)
	assert.False(t, cfg.Logs.Dedupe)
}

func TestMigrateCommand(t *testing.T) {
	app, stdout, _ := testApp(t)
	err := app.Run([]string{"archivist", "--config", writeConfig(t), "migrate"})
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "Schema version: 2")
}

func TestImportLogsCommand(t *testing.T) {
	dir := t.TempDir()
	archive := `<?xml version="1.0"?>
<Log FirstSessionID="1" LastSessionID="1">
<Message Date="01.02.2005" Time="20:15:03" DateTime="2005-02-01T19:15:03.437Z" SessionID="1"><From><User FriendlyName="Alice" LogonName="alice@hotmail.com"/></From><To><User FriendlyName="Bob" LogonName="bob@hotmail.com"/></To><Text Style="">hei</Text></Message>
</Log>`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bob.xml"), []byte(archive), 0o644))

	cfgPath := writeConfig(t)
	f, err := os.OpenFile(cfgPath, os.O_APPEND|os.O_WRONLY, 0)
	require.NoError(t, err)
	_, err = f.WriteString("logs:\n  allowed_participants: [alice@hotmail.com, bob@hotmail.com]\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	app, stdout, _ := testApp(t)
	err = app.Run([]string{"archivist", "--config", cfgPath, "import-logs", "--dir", dir})
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "Archives: 1")
	assert.Contains(t, stdout.String(), "Messages: 1")
}

func TestAddLocalCommand(t *testing.T) {
	folder := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(folder, "a.jpg"), mock.PlainJPEG(), 0o644))

	t.Run("stores pictures", func(t *testing.T) {
		app, stdout, _ := testApp(t)
		err := app.Run([]string{"archivist", "--config", writeConfig(t),
			"add-local", "--folder", folder, "--topic", "LARK"})
		require.NoError(t, err)
		assert.Contains(t, stdout.String(), "Stored: 1 of 1")
	})

	t.Run("rejects unknown topic", func(t *testing.T) {
		app, _, _ := testApp(t)
		err := app.Run([]string{"archivist", "--config", writeConfig(t),
			"add-local", "--folder", folder, "--topic", "beach"})
		assert.ErrorIs(t, err, core.ErrUnknownTopic)
	})

	t.Run("folder is required", func(t *testing.T) {
		app, _, _ := testApp(t)
		err := app.Run([]string{"archivist", "--config", writeConfig(t), "add-local", "--topic", "fe"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "folder")
	})
}

func TestClassifyCommand_NoToken(t *testing.T) {
	t.Setenv("ARCHIVIST_DROPBOX_TOKEN", "")
	app, _, _ := testApp(t)
	err := app.Run([]string{"archivist", "--config", writeConfig(t), "classify"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "remote store required")
}
