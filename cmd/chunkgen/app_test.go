package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/phrazzld/chunkgen/internal/command"
	"github.com/phrazzld/chunkgen/internal/config"
	"github.com/phrazzld/chunkgen/internal/platform/filestore"
	"github.com/phrazzld/chunkgen/internal/platform/logger"
	"github.com/phrazzld/chunkgen/internal/task"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testConfig returns a valid configuration using a file store in a
// temporary directory.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Log: config.LogConfig{Level: "error", Format: "text"},
		Defaults: config.DefaultsConfig{
			World:  "world",
			Radius: 2,
		},
		Task: config.TaskConfig{
			CheckpointEvery: 4,
			ReportInterval:  time.Hour,
		},
		Store: config.StoreConfig{
			Backend: config.BackendFile,
			File:    config.FileStoreConfig{Path: filepath.Join(t.TempDir(), "progress.yaml")},
		},
		World: config.WorldConfig{Names: []string{"world", "world_nether"}},
	}
}

func newTestApplication(t *testing.T, cfg *config.Config, out io.Writer) *application {
	t.Helper()
	app, err := newApplication(context.Background(), cfg, logger.DiscardLogger(), out)
	require.NoError(t, err)
	return app
}

// consoleCmd returns a command whose input is in and whose output is out.
func consoleCmd(in string, out io.Writer) *cobra.Command {
	cmd := &cobra.Command{}
	cmd.SetIn(strings.NewReader(in))
	cmd.SetOut(out)
	return cmd
}

func savedRecord(t *testing.T, cfg *config.Config, region string) (task.Progress, bool) {
	t.Helper()
	s, err := filestore.Open(cfg.Store.File.Path, logger.DiscardLogger())
	require.NoError(t, err)
	for _, p := range mustLoadAll(t, s) {
		if p.Region == region {
			return p, true
		}
	}
	return task.Progress{}, false
}

func mustLoadAll(t *testing.T, s task.ProgressStore) []task.Progress {
	t.Helper()
	records, err := s.LoadAll(context.Background())
	require.NoError(t, err)
	return records
}

func TestNewApplication(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Defaults.World = "WORLD_NETHER"
	cfg.Defaults.CenterX = 10
	cfg.Defaults.CenterZ = -10
	cfg.Defaults.QuietSeconds = 2
	cfg.Defaults.Silent = true

	app := newTestApplication(t, cfg, io.Discard)
	defer app.cleanup()

	p := app.manager.Defaults()
	assert.Equal(t, "world_nether", p.Region)
	assert.Equal(t, int64(10), p.CenterX)
	assert.Equal(t, int64(-10), p.CenterZ)
	assert.Equal(t, 2, p.Radius)
	assert.Equal(t, 2*time.Second, p.Quiet)
	assert.True(t, app.manager.Silent())
}

func TestNewApplication_UnknownDefaultWorld(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Defaults.World = "mars"

	_, err := newApplication(context.Background(), cfg, logger.DiscardLogger(), io.Discard)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid default world")
}

func TestNewApplication_RedisBackend(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.Store = config.StoreConfig{
		Backend: config.BackendRedis,
		Redis:   config.RedisStoreConfig{Addr: mr.Addr(), KeyPrefix: "test:"},
	}
	cfg.Defaults.QuietSeconds = 3600

	var out bytes.Buffer
	app := newTestApplication(t, cfg, &out)
	defer app.cleanup()

	ctx := context.Background()
	require.NoError(t, app.console.Execute(ctx, "start"))
	require.NoError(t, app.shutdown(ctx))

	records := mustLoadAll(t, app.progressStore)
	require.Len(t, records, 1)
	assert.Equal(t, "world", records[0].Region)
	assert.Equal(t, task.StatePaused, records[0].State)
	assert.True(t, mr.Exists("test:progress:data:world"))
}

func TestRunConsole_PausesOnExit(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	// One cell per hour parks the task after its first cell.
	cfg.Defaults.QuietSeconds = 3600

	var out bytes.Buffer
	app := newTestApplication(t, cfg, &out)

	err := runConsole(context.Background(), app, consoleCmd("start\nexit\n", &out), false)
	require.NoError(t, err)

	assert.Contains(t, out.String(), command.Prefix+" Task started for world at 0, 0 with radius 2.")

	rec, ok := savedRecord(t, cfg, "world")
	require.True(t, ok)
	assert.Equal(t, task.StatePaused, rec.State)
	assert.Equal(t, 2, rec.Radius)
	assert.LessOrEqual(t, rec.Offset, int64(1))
}

func TestRunConsole_ContinueAtBoot(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Defaults.QuietSeconds = 3600

	s, err := filestore.Open(cfg.Store.File.Path, logger.DiscardLogger())
	require.NoError(t, err)
	require.NoError(t, s.Save(context.Background(), task.Progress{
		Region: "world_nether",
		Radius: 3,
		Offset: 7,
		State:  task.StateRunning,
	}))

	var out bytes.Buffer
	app := newTestApplication(t, cfg, &out)

	err = runConsole(context.Background(), app, consoleCmd("", &out), true)
	require.NoError(t, err)

	assert.Contains(t, out.String(), command.Prefix+" Task continuing for world_nether.")

	rec, ok := savedRecord(t, cfg, "world_nether")
	require.True(t, ok)
	assert.Equal(t, task.StatePaused, rec.State)
	assert.Equal(t, 3, rec.Radius)
	assert.GreaterOrEqual(t, rec.Offset, int64(7))
}

func TestRunContinue_RunsToCompletion(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	s, err := filestore.Open(cfg.Store.File.Path, logger.DiscardLogger())
	require.NoError(t, err)
	require.NoError(t, s.Save(context.Background(), task.Progress{
		Region: "world",
		Radius: 1,
		Offset: 3,
		State:  task.StatePaused,
	}))

	var out bytes.Buffer
	app := newTestApplication(t, cfg, &out)

	require.NoError(t, runContinue(context.Background(), app, []string{"world"}))

	assert.Contains(t, out.String(), "Task continuing for world.")
	assert.Contains(t, out.String(), "Task finished for world. Processed: 9 cells (100.00%)")
	assert.Equal(t, int64(6), app.host.Generated("world"))

	_, ok := savedRecord(t, cfg, "world")
	assert.False(t, ok, "completed task must not leave a record")
}

func TestRunContinue_NothingSaved(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	var out bytes.Buffer
	app := newTestApplication(t, cfg, &out)

	require.NoError(t, runContinue(context.Background(), app, nil))
	assert.Equal(t, command.Prefix+" "+command.MessageNothingAtAll+"\n", out.String())
}

func TestRootCmd(t *testing.T) {
	cfg := testConfig(t)
	configPath := filepath.Join(t.TempDir(), "chunkgen.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(`log:
  level: error
store:
  backend: file
  file:
    path: `+cfg.Store.File.Path+`
`), 0o600))

	t.Run("status", func(t *testing.T) {
		var out bytes.Buffer
		root := newRootCmd()
		root.SetOut(&out)
		root.SetArgs([]string{"status", "--config", configPath})

		require.NoError(t, root.Execute())
		assert.Contains(t, out.String(), command.MessageNoTasks)
		assert.Contains(t, out.String(), command.MessageNothingToSave)
	})

	t.Run("migrate requires postgres", func(t *testing.T) {
		root := newRootCmd()
		root.SetOut(io.Discard)
		root.SetArgs([]string{"migrate", "--config", configPath})

		err := root.Execute()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "requires the postgres store backend")
	})

	t.Run("missing config file", func(t *testing.T) {
		root := newRootCmd()
		root.SetOut(io.Discard)
		root.SetArgs([]string{"status", "--config", filepath.Join(t.TempDir(), "missing.yaml")})

		err := root.Execute()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to load configuration")
	})

	t.Run("version", func(t *testing.T) {
		var out bytes.Buffer
		root := newRootCmd()
		root.SetOut(&out)
		root.SetArgs([]string{"--version"})

		require.NoError(t, root.Execute())
		assert.Equal(t, "chunkgen version dev\n", out.String())
	})
}
