package cli

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guiyumin/streamscribe/internal/core/logging"
)

func testDaemon(t *testing.T) (*daemon, *logging.Logger) {
	log := logging.NewTest()
	return &daemon{
		dir:        filepath.Join(t.TempDir(), "state"),
		log:        log,
		executable: func() (string, error) { return "/usr/local/bin/streamscribe", nil },
		configPath: func() (string, error) { return "/etc/streamscribe/config.yml", nil },
	}, log
}

func TestDaemonChildCommand(t *testing.T) {
	d, _ := testDaemon(t)
	assert.Equal(t, []string{"serve", "-p", "9000", "-o", "/data/notes", "--debug"}, d.childArgs(9000, "/data/notes", true))
	assert.Equal(t, []string{"serve", "-p", "8080"}, d.childArgs(8080, "", false))

	env := d.childEnv()
	assert.Equal(t, "STREAMSCRIBE_CONFIG=/etc/streamscribe/config.yml", env[len(env)-1])

	d.configPath = func() (string, error) { return "", errors.New("no config home") }
	assert.NotContains(t, d.childEnv(), "STREAMSCRIBE_CONFIG=/etc/streamscribe/config.yml")
}

func TestDaemonClaim(t *testing.T) {
	d, log := testDaemon(t)
	assert.False(t, d.running())
	assert.Zero(t, d.pid())

	release, err := d.claim()
	require.NoError(t, err)
	assert.True(t, d.running())
	assert.Equal(t, os.Getpid(), d.pid())

	_, err = d.claim()
	assert.ErrorContains(t, err, "already running (PID "+strconv.Itoa(os.Getpid())+")")

	require.NoError(t, d.status())
	assert.Contains(t, log.Output(), "server is running")

	release()
	assert.False(t, d.running())
	assert.NoFileExists(t, d.pidPath())
}

func TestDaemonStopWhenNotRunning(t *testing.T) {
	d, log := testDaemon(t)
	require.NoError(t, os.MkdirAll(d.dir, 0o755))
	require.NoError(t, os.WriteFile(d.pidPath(), []byte("424242"), 0o644))

	assert.ErrorContains(t, d.stop(), "not running")
	assert.NoFileExists(t, d.pidPath(), "stale pid file removed")

	require.NoError(t, d.status())
	assert.Contains(t, log.Output(), "server is not running")
}

func TestWaitFor(t *testing.T) {
	assert.True(t, waitFor(time.Second, func() bool { return true }, nil))
	assert.False(t, waitFor(150*time.Millisecond, func() bool { return false }, nil))

	abort := make(chan error, 1)
	abort <- errors.New("exit status 1")
	start := time.Now()
	assert.False(t, waitFor(5*time.Second, func() bool { return false }, abort))
	assert.Less(t, time.Since(start), time.Second)
}
