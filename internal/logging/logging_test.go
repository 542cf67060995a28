package logging

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zerolog.Level
		wantErr bool
	}{
		{in: "", want: zerolog.InfoLevel},
		{in: "debug", want: zerolog.DebugLevel},
		{in: " WARN ", want: zerolog.WarnLevel},
		{in: "warning", want: zerolog.WarnLevel},
		{in: "error", want: zerolog.ErrorLevel},
		{in: "verbose", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNew_FileAndConsole(t *testing.T) {
	dir := t.TempDir()
	var console bytes.Buffer

	l, err := New(Config{Level: "info", Dir: dir, Console: true, Out: &console})
	require.NoError(t, err)

	tracker := l.Component("tracker")
	tracker.Info().Str("session", "abc").Msg("tracking started")
	l.Debug().Msg("hidden at info")
	require.NoError(t, l.Close())

	data, err := os.ReadFile(l.Path())
	require.NoError(t, err)
	file := string(data)

	assert.Contains(t, file, `"component":"tracker"`)
	assert.Contains(t, file, `"message":"tracking started"`)
	assert.NotContains(t, file, "hidden at info")
	assert.True(t, strings.HasPrefix(l.Path(), dir))

	assert.Contains(t, console.String(), "tracking started")
	assert.NotContains(t, console.String(), "hidden at info")
}

func TestNew_NoOutputs(t *testing.T) {
	l, err := New(Config{})
	require.NoError(t, err)

	l.Info().Msg("discarded")
	assert.Empty(t, l.Path())
	assert.NoError(t, l.Close())
}

func TestNew_BadLevel(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	assert.Error(t, err)
}
