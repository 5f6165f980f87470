package main

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestParseLogLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, parseLogLevel("debug"))
	require.Equal(t, slog.LevelWarn, parseLogLevel("warn"))
	require.Equal(t, slog.LevelError, parseLogLevel("error"))
	require.Equal(t, slog.LevelInfo, parseLogLevel("verbose"))
}

func TestHashSecret(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, hashSecret(nil, strings.NewReader("s3cret\n"), &out))

	hash := strings.TrimSpace(out.String())
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("s3cret")))

	require.Error(t, hashSecret(nil, strings.NewReader("\n"), &out))
}

func TestEnsureDBDir(t *testing.T) {
	require.NoError(t, ensureDBDir(":memory:"))

	path := filepath.Join(t.TempDir(), "nested", "olympiad.db")
	require.NoError(t, ensureDBDir(path))
	info, err := os.Stat(filepath.Dir(path))
	require.NoError(t, err)
	require.True(t, info.IsDir())
}

func TestLogFileWriter_Trims(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "olympiad.log")
	w, file, err := newLogFileWriter(path)
	require.NoError(t, err)
	defer file.Close()
	w.max, w.keep = 64, 32

	for i := 0; i < 10; i++ {
		_, err := w.Write([]byte("0123456789\n"))
		require.NoError(t, err)
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.LessOrEqual(t, len(data), 64)
	require.True(t, strings.HasSuffix(string(data), "0123456789\n"))
}
