package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockConfigThenLoad(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "line:\n  channel_secret: s\n  access_token: t\n")

	manifest, err := LockConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 1, manifest.Version)
	assert.Len(t, manifest.Hashes["config.yaml"], 64)

	info, err := os.Stat(filepath.Join(dir, ".checksums"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	_, err = load(path, map[string]string{})
	require.NoError(t, err)
}

func TestLoadDetectsTamperedConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "line:\n  channel_secret: s\n  access_token: t\n")
	_, err := LockConfig(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("line:\n  channel_secret: evil\n  access_token: t\n"), 0o600))

	_, err = load(path, map[string]string{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hash mismatch for config.yaml")
}

func TestVerifyConfigHashWithoutManifest(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "line: {}\n")
	assert.NoError(t, VerifyConfigHash(path))
}

func TestVerifyConfigHashUnlistedFile(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "line: {}\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".checksums"), []byte("version: 1\nhashes: {}\n"), 0o600))

	err := VerifyConfigHash(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no hash in checksums")
}

func TestLoadChecksumsRejectsUnknownVersion(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".checksums"), []byte("version: 2\n"), 0o600))

	_, err := LoadChecksums(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported checksums version")
}

func TestComputeBlake3HashDeterministic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f")
	require.NoError(t, os.WriteFile(path, []byte("payload"), 0o600))

	a, err := ComputeBlake3Hash(path)
	require.NoError(t, err)
	b, err := ComputeBlake3Hash(path)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}
