package overlay

import (
	"context"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"codeberg.org/mutker/rahoverlay/internal/errors"
	"codeberg.org/mutker/rahoverlay/internal/logger"
)

const closeGrace = 2 * time.Second

// Handle is a running overlay window
type Handle interface {
	Alive() bool
	Close() error
}

// Launcher opens overlay windows
type Launcher interface {
	Launch(ctx context.Context, o Overlay) (Handle, error)
}

// ExecLauncher opens each overlay window as a child process of an external
// renderer command, passing --url, --width and --height.
type ExecLauncher struct {
	command []string
	log     logger.Logger
}

func NewExecLauncher(command string, log logger.Logger) *ExecLauncher {
	return &ExecLauncher{
		command: strings.Fields(command),
		log:     log,
	}
}

func (l *ExecLauncher) Launch(_ context.Context, o Overlay) (Handle, error) {
	errFactory := errors.New()

	if len(l.command) == 0 {
		return nil, errFactory.New(ErrLauncherUnavailable)
	}

	args := append(l.command[1:len(l.command):len(l.command)],
		"--url", o.URL,
		"--width", strconv.Itoa(o.Resolution.Width),
		"--height", strconv.Itoa(o.Resolution.Height),
	)

	// windows outlive the request that opened them
	cmd := exec.Command(l.command[0], args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return nil, errFactory.Wrap(ErrLaunchFailed, err)
	}

	h := &processHandle{cmd: cmd, done: make(chan struct{})}
	go h.wait(l.log, o.Name)

	l.log.Info().
		Str("overlay", o.Name).
		Int("pid", cmd.Process.Pid).
		Msg("Overlay window started")

	return h, nil
}

type processHandle struct {
	cmd  *exec.Cmd
	done chan struct{}
	once sync.Once
	err  error
}

func (h *processHandle) wait(log logger.Logger, name string) {
	err := h.cmd.Wait()
	h.err = err
	close(h.done)
	log.Debug().Err(err).Str("overlay", name).Msg("Overlay window exited")
}

func (h *processHandle) Alive() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

// Close asks the window to exit and kills it after a grace period
func (h *processHandle) Close() error {
	var closeErr error
	h.once.Do(func() {
		if !h.Alive() {
			return
		}
		if err := h.cmd.Process.Signal(os.Interrupt); err != nil {
			closeErr = h.cmd.Process.Kill()
			return
		}
		select {
		case <-h.done:
		case <-time.After(closeGrace):
			closeErr = h.cmd.Process.Kill()
		}
	})
	if closeErr != nil && !errors.Is(closeErr, os.ErrProcessDone) {
		return errors.New().Wrap(ErrCloseFailed, closeErr)
	}
	return nil
}
