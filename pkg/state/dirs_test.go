package state

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureStateDirsCreatesPaths(t *testing.T) {
	root := t.TempDir()
	p := PathsFor(filepath.Join(root, "data", "webhooks")+"/", " ")
	assert.Equal(t, filepath.Join(root, "data", "webhooks"), p.WebhookLog)
	assert.Empty(t, p.Audit)
	require.Len(t, p.List(), 1)

	require.NoError(t, EnsureStateDirs(p))
	fi, err := os.Stat(p.WebhookLog)
	require.NoError(t, err)
	assert.True(t, fi.IsDir())
}

func TestEnsureStateDirsRejectsFilesAndSymlinks(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "file")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))
	assert.Error(t, EnsureStateDirs(PathsFor(file, "")))

	link := filepath.Join(root, "link")
	require.NoError(t, os.Symlink(root, link))
	assert.Error(t, EnsureStateDirs(PathsFor("", link)))
}
