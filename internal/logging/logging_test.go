package logging

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_WritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "smart_trainer.log")
	logger, closeFn, err := New(Options{File: path, MaxSizeMB: 1})
	require.NoError(t, err)

	logger.Println("ConnectionManager: trainer connected")
	require.NoError(t, closeFn())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "ConnectionManager: trainer connected")
}

func TestNew_CopiesToExtraWriters(t *testing.T) {
	var pane bytes.Buffer
	path := filepath.Join(t.TempDir(), "app.log")
	logger, closeFn, err := New(Options{
		File:      path,
		MaxSizeMB: 1,
		Extra:     []io.Writer{&pane},
	})
	require.NoError(t, err)
	defer closeFn()

	logger.Printf("Aggregator: %s", "hello")
	assert.Contains(t, pane.String(), "Aggregator: hello")

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, pane.String(), string(raw))
}
