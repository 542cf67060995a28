package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/kathakali/internal/store"
)

// writeTestConfig points the store into a temp dir and turns the log file
// off so commands never touch the home directory.
func writeTestConfig(t *testing.T, extra string) (configPath, dbPath string) {
	t.Helper()

	dir := t.TempDir()
	dbPath = filepath.Join(dir, "data", "kathakali.db")
	configPath = filepath.Join(dir, "config.yaml")
	content := "store:\n  path: " + dbPath + "\nlog:\n  dir: \"\"\n  console: false\n" + extra
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))
	return configPath, dbPath
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	cmd.SetContext(t.Context())
	err := cmd.Execute()
	return out.String(), err
}

func TestChannelsCommand(t *testing.T) {
	configPath, dbPath := writeTestConfig(t, "mapping:\n  tongueOut: jawOpen\n")

	st, err := store.New(dbPath)
	require.NoError(t, err)
	require.NoError(t, st.Mappings().Create(&store.Mapping{ID: "m1", Source: "_custom", Target: "browInnerUp"}))
	require.NoError(t, st.Close())

	out, err := runCommand(t, "--config", configPath, "channels")
	require.NoError(t, err)

	assert.Contains(t, out, "52 channels")
	assert.Contains(t, out, "DRIVEN BY")
	assert.Regexp(t, `jawOpen\s+│\s+jawOpen, tongueOut`, out)
	assert.Regexp(t, `browInnerUp\s+│\s+_custom, browInnerUp`, out)
	assert.Contains(t, out, "Head")
}

func TestChannelsCommand_MissingModel(t *testing.T) {
	configPath, _ := writeTestConfig(t, "")

	_, err := runCommand(t, "--config", configPath, "channels", filepath.Join(t.TempDir(), "missing.glb"))
	assert.Error(t, err)
}

func TestSessionsCommand(t *testing.T) {
	configPath, dbPath := writeTestConfig(t, "")

	out, err := runCommand(t, "--config", configPath, "sessions")
	require.NoError(t, err)
	assert.Contains(t, out, "No tracking sessions recorded.")

	st, err := store.New(dbPath)
	require.NoError(t, err)
	start := time.Now().Add(-time.Minute)
	require.NoError(t, st.Sessions().Start(&store.Session{ID: "a", StartedAt: start, Status: "loading"}))
	require.NoError(t, st.Sessions().Finish(&store.Session{ID: "a", Status: "camera_failed", Error: "denied"}))
	require.NoError(t, st.Close())

	out, err = runCommand(t, "--config", configPath, "sessions", "-n", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "camera_failed")
	assert.Contains(t, out, "denied")

	_, err = runCommand(t, "--config", configPath, "sessions", "-n", "0")
	assert.Error(t, err)
}

func TestRootCommand_BadConfig(t *testing.T) {
	configPath, _ := writeTestConfig(t, "render:\n  fps: 0\n")

	_, err := runCommand(t, "--config", configPath, "sessions")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "render.fps")
}

func TestRootCommand_FlagOverridesConfig(t *testing.T) {
	configPath, _ := writeTestConfig(t, "log:\n  level: warn\n")

	ctx := &commandContext{configFile: configPath}
	cmd := newRootCommand()
	require.NoError(t, cmd.ParseFlags([]string{"--log-level", "debug", "--smoothing", "8"}))
	require.NoError(t, ctx.load(cmd))
	defer ctx.close()

	assert.Equal(t, "debug", ctx.cfg.Log.Level)
	assert.Equal(t, 8.0, ctx.cfg.Render.Smoothing)
}

func TestSettingsURL(t *testing.T) {
	assert.Equal(t, "http://localhost:8080/", settingsURL(":8080"))
	assert.Equal(t, "http://127.0.0.1:9000/", settingsURL("127.0.0.1:9000"))
}

func TestFindWebDir(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, dir, findWebDir(dir))

	got := findWebDir(filepath.Join(dir, "missing"))
	assert.False(t, strings.HasSuffix(got, "missing"))
}
