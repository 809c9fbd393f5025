package projectroot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir switches the working directory for the duration of the test.
func chdir(t *testing.T, dir string) {
	t.Helper()
	original, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() {
		if err := os.Chdir(original); err != nil {
			t.Logf("Failed to restore working directory: %v", err)
		}
	})
}

// newTree creates root/a/b and writes the given marker files into root.
func newTree(t *testing.T, markers ...string) (root string, nested string) {
	t.Helper()
	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	nested = filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	for _, marker := range markers {
		require.NoError(t, os.WriteFile(filepath.Join(root, marker), []byte(""), 0o644))
	}
	return root, nested
}

func TestFindTraversesUpward(t *testing.T) {
	clearCIEnv(t)
	root, nested := newTree(t, "sqitch.conf")
	chdir(t, nested)

	got, err := Find(nil, "sqitch.conf", GoModFile)
	require.NoError(t, err)
	assert.Equal(t, root, got)
}

func TestFindPrefersEarlierMarker(t *testing.T) {
	clearCIEnv(t)
	root, nested := newTree(t, GoModFile)
	// sqitch.conf sits below go.mod, closer to the working directory
	require.NoError(t, os.WriteFile(filepath.Join(root, "a", "sqitch.conf"), []byte(""), 0o644))
	chdir(t, nested)

	got, err := Find(nil, "sqitch.conf", GoModFile)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "a"), got)

	got, err = Find(nil, GoModFile)
	require.NoError(t, err)
	assert.Equal(t, root, got)
}

func TestFindExplicitOverride(t *testing.T) {
	clearCIEnv(t)
	root, _ := newTree(t)
	t.Setenv(EnvProjectRoot, root)

	got, err := Find(nil, "sqitch.conf")
	require.NoError(t, err)
	assert.Equal(t, root, got)
}

func TestFindExplicitOverrideMissingDir(t *testing.T) {
	clearCIEnv(t)
	t.Setenv(EnvProjectRoot, filepath.Join(t.TempDir(), "does-not-exist"))

	_, err := Find(nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidProjectRoot)
}

func TestFindGitHubWorkspaceFallback(t *testing.T) {
	clearCIEnv(t)
	root, nested := newTree(t)
	chdir(t, nested)
	t.Setenv(EnvGitHubActions, "true")
	t.Setenv(EnvGitHubWorkspace, root)

	got, err := Find(nil, "pgunit-marker-that-does-not-exist.conf")
	require.NoError(t, err)
	assert.Equal(t, root, got)
}

func TestFindPrefersMarkerOverCIWorkspace(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "github actions", env: map[string]string{EnvGitHubActions: "true", EnvGitHubWorkspace: ""}},
		{name: "gitlab ci", env: map[string]string{EnvGitLabCI: "true", EnvGitLabProjectDir: ""}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			clearCIEnv(t)
			workspace, _ := newTree(t)
			db := filepath.Join(workspace, "db")
			require.NoError(t, os.MkdirAll(db, 0o755))
			require.NoError(t, os.WriteFile(filepath.Join(db, "sqitch.conf"), []byte(""), 0o644))
			chdir(t, db)
			for name, value := range tc.env {
				if value == "" {
					value = workspace
				}
				t.Setenv(name, value)
			}

			got, err := Find(nil, "sqitch.conf", GoModFile)
			require.NoError(t, err)
			assert.Equal(t, db, got)
		})
	}
}

func TestFindNotFound(t *testing.T) {
	clearCIEnv(t)
	_, nested := newTree(t)
	chdir(t, nested)

	_, err := Find(nil, "pgunit-marker-that-does-not-exist.conf")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProjectRootNotFound)
}
