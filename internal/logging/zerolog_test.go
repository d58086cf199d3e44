package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		m := map[string]any{}
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestZerologLogger_FiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewZerologLogger(&buf, LevelWarn, false)
	ctx := context.Background()

	log.Debug(ctx, "dbg")
	log.Info(ctx, "inf")
	log.Warn(ctx, "wrn", "attempt", 2)
	log.Error(ctx, "err")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "warn", lines[0]["level"])
	assert.Equal(t, "wrn", lines[0]["message"])
	assert.EqualValues(t, 2, lines[0]["attempt"])
	assert.Equal(t, "error", lines[1]["level"])
}

func TestZerologLogger_CriticalDoesNotExit(t *testing.T) {
	var buf bytes.Buffer
	log := NewZerologLogger(&buf, LevelError, false)

	log.With("module", "supervisor").Critical(context.Background(), "privilege lost")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "fatal", lines[0]["level"])
	assert.Equal(t, "supervisor", lines[0]["module"])
}

func TestNew_SelectsBackend(t *testing.T) {
	l, err := New(Options{Backend: BackendZerolog, Output: &bytes.Buffer{}})
	require.NoError(t, err)
	assert.IsType(t, &ZerologLogger{}, l)

	l, err = New(Options{Output: &bytes.Buffer{}})
	require.NoError(t, err)
	assert.IsType(t, &SlogLogger{}, l)

	_, err = New(Options{Backend: "syslog"})
	require.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{in: "error", want: LevelError},
		{in: "WARN", want: LevelWarn},
		{in: "info", want: LevelInfo},
		{in: "debug", want: LevelDebug},
		{in: "trace", want: LevelTrace},
		{in: "0", want: LevelError},
		{in: "2", want: LevelInfo},
		{in: "5", want: LevelTrace},
		{in: "6", wantErr: true},
		{in: "loud", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
