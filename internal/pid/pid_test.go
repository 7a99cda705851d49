package pid

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"codeberg.org/mutker/rahoverlay/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathDefaultsToTempDir(t *testing.T) {
	assert.Equal(t, filepath.Join(os.TempDir(), pidFile), Path(""))
	assert.Equal(t, filepath.Join("/run/user", pidFile), Path("/run/user"))
}

func TestWriteAndRemove(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, Write(dir))

	data, err := os.ReadFile(Path(dir))
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), string(data))

	// our own PID in the file is not a conflict
	require.NoError(t, Write(dir))

	require.NoError(t, Remove(dir))
	_, err = os.Stat(Path(dir))
	assert.True(t, os.IsNotExist(err))

	// removing twice is fine
	require.NoError(t, Remove(dir))
}

func TestWriteOverwritesStaleFile(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"garbage", "not-a-pid"},
		{"negative", "-4"},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(Path(dir), []byte(tt.content), 0o600))

			require.NoError(t, Write(dir))

			data, err := os.ReadFile(Path(dir))
			require.NoError(t, err)
			assert.Equal(t, strconv.Itoa(os.Getpid()), string(data))
		})
	}
}

func TestWriteFailsWhileOtherInstanceAlive(t *testing.T) {
	dir := t.TempDir()
	// the test runner's parent process is alive for the duration of the test
	require.NoError(t, os.WriteFile(Path(dir), []byte(strconv.Itoa(os.Getppid())), 0o600))

	err := Write(dir)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrAlreadyRunning))
}
