package cli

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/adrg/xdg"
	"github.com/gofrs/flock"

	"github.com/guiyumin/streamscribe/internal/core/config"
	"github.com/guiyumin/streamscribe/internal/core/logging"
)

const (
	serveLockFile = "serve.lock"
	servePIDFile  = "serve.pid"
	serveLogFile  = "serve.log"

	daemonStartWait = 5 * time.Second
	// longer than the server's own 10s shutdown budget
	daemonStopWait = 12 * time.Second
)

// daemon tracks the serve process. A running server holds an exclusive
// flock on serve.lock and records its pid next to it, so liveness never
// depends on a stale pid file.
type daemon struct {
	dir        string
	log        *logging.Logger
	executable func() (string, error)
	configPath func() (string, error)
}

func newDaemon(log *logging.Logger) *daemon {
	return &daemon{
		dir:        filepath.Join(xdg.StateHome, config.AppDirName),
		log:        log,
		executable: os.Executable,
		configPath: config.ConfigPath,
	}
}

func (d *daemon) lockPath() string { return filepath.Join(d.dir, serveLockFile) }
func (d *daemon) pidPath() string  { return filepath.Join(d.dir, servePIDFile) }
func (d *daemon) logPath() string  { return filepath.Join(d.dir, serveLogFile) }

// claim takes the serve lock for the calling process and writes its pid.
// The returned func releases both.
func (d *daemon) claim() (func(), error) {
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state dir: %w", err)
	}
	fl := flock.New(d.lockPath())
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock %s: %w", d.lockPath(), err)
	}
	if !ok {
		return nil, fmt.Errorf("server already running (PID %d)", d.pid())
	}
	if err := os.WriteFile(d.pidPath(), []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		_ = fl.Unlock()
		return nil, fmt.Errorf("failed to write PID file: %w", err)
	}
	return func() {
		_ = os.Remove(d.pidPath())
		if err := fl.Unlock(); err != nil {
			d.log.Warn("failed to release serve lock", "path", d.lockPath(), "err", err)
		}
	}, nil
}

// running reports whether some process holds the serve lock.
func (d *daemon) running() bool {
	if _, err := os.Stat(d.lockPath()); err != nil {
		return false
	}
	fl := flock.New(d.lockPath())
	ok, err := fl.TryLock()
	if err != nil {
		return false
	}
	if ok {
		_ = fl.Unlock()
		return false
	}
	return true
}

// pid returns the recorded server pid, or 0.
func (d *daemon) pid() int {
	data, err := os.ReadFile(d.pidPath())
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0
	}
	return pid
}

// childArgs re-runs serve in the foreground with the resolved settings.
func (d *daemon) childArgs(port int, outputDir string, debug bool) []string {
	args := []string{"serve", "-p", strconv.Itoa(port)}
	if outputDir != "" {
		args = append(args, "-o", outputDir)
	}
	if debug {
		args = append(args, "--debug")
	}
	return args
}

// childEnv pins the config file the parent resolved, so the detached
// server reads the same settings regardless of its working directory.
func (d *daemon) childEnv() []string {
	env := os.Environ()
	if path, err := d.configPath(); err == nil && path != "" {
		env = append(env, config.EnvConfigPath+"="+path)
	}
	return env
}

func (d *daemon) start(port int, outputDir string, debug bool) error {
	if d.running() {
		return fmt.Errorf("server already running (PID %d)", d.pid())
	}
	exe, err := d.executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create state dir: %w", err)
	}
	logFile, err := os.OpenFile(d.logPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer logFile.Close()

	cmd := exec.Command(exe, d.childArgs(port, outputDir, debug)...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.Env = d.childEnv()
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	exited := make(chan error, 1)
	go func() { exited <- cmd.Wait() }()
	if !waitFor(daemonStartWait, d.running, exited) {
		return fmt.Errorf("server did not start, see %s", d.logPath())
	}

	d.log.Info("server started in background", "pid", cmd.Process.Pid, "port", port, "output", outputDir, "log", d.logPath())
	d.log.Info("stop it with: streamscribe serve stop")
	return nil
}

func (d *daemon) stop() error {
	if !d.running() {
		_ = os.Remove(d.pidPath())
		return fmt.Errorf("server is not running")
	}
	pid := d.pid()
	if pid <= 0 {
		return fmt.Errorf("server is running but %s is unreadable", d.pidPath())
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("server process %d not found: %w", pid, err)
	}
	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}
	if !waitFor(daemonStopWait, func() bool { return !d.running() }, nil) {
		return fmt.Errorf("server (PID %d) did not stop within %s", pid, daemonStopWait)
	}
	d.log.Info("server stopped", "pid", pid)
	return nil
}

func (d *daemon) status() error {
	if !d.running() {
		d.log.Info("server is not running")
		return nil
	}
	d.log.Info("server is running", "pid", d.pid(), "log", d.logPath())
	return nil
}

// waitFor polls cond until it holds or timeout passes. A value on abort
// ends the wait early with false.
func waitFor(timeout time.Duration, cond func() bool, abort <-chan error) bool {
	deadline := time.After(timeout)
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	for {
		if cond() {
			return true
		}
		select {
		case <-deadline:
			return false
		case <-abort:
			return cond()
		case <-tick.C:
		}
	}
}
