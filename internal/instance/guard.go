// Package instance enforces the single running copy of the application.
//
// The first launch claims a pidfile and listens on a unix socket next to
// it. Later launches find the live pid, forward an "activate" message over
// the socket and exit silently. A duplicate launch is expected control
// flow, not an error to show the user.
package instance

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/pipcast/backend/internal/logging"
)

// ErrAlreadyRunning reports that another instance holds the lock. The
// caller must exit without further initialization.
var ErrAlreadyRunning = errors.New("another instance is already running")

const (
	pidFile  = "pipcast.pid"
	sockFile = "pipcast.sock"

	dialTimeout = 2 * time.Second
)

type message struct {
	Type string `json:"type"`
}

// Guard is the held single-instance lock.
type Guard struct {
	pidPath  string
	sockPath string
	listener net.Listener
	log      *logging.Logger

	mu         sync.Mutex
	onActivate func()
	closed     bool
}

// Acquire claims the process-wide lock rooted at dir. When another live
// instance holds it, the relaunch is forwarded to it and ErrAlreadyRunning
// is returned.
func Acquire(dir string, log *logging.Logger) (*Guard, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create runtime dir: %w", err)
	}

	g := &Guard{
		pidPath:  filepath.Join(dir, pidFile),
		sockPath: filepath.Join(dir, sockFile),
		log:      log,
	}

	if pid, alive := g.existingPid(); alive {
		log.Debug("instance already running, forwarding activate", zap.Int("pid", pid))
		g.forward("activate")
		return nil, ErrAlreadyRunning
	}

	// Stale leftovers from a crashed instance.
	os.Remove(g.pidPath)
	os.Remove(g.sockPath)

	if err := os.WriteFile(g.pidPath, []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		return nil, fmt.Errorf("write pidfile: %w", err)
	}

	listener, err := net.Listen("unix", g.sockPath)
	if err != nil {
		os.Remove(g.pidPath)
		return nil, fmt.Errorf("listen on instance socket: %w", err)
	}
	g.listener = listener

	go g.acceptLoop()
	return g, nil
}

// OnActivate installs the handler run when a duplicate launch is
// forwarded here. The handler must bring the main window to the
// foreground, creating it first if absent.
func (g *Guard) OnActivate(fn func()) {
	g.mu.Lock()
	g.onActivate = fn
	g.mu.Unlock()
}

// Release drops the lock and removes the pidfile and socket.
func (g *Guard) Release() {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	g.closed = true
	g.mu.Unlock()

	if g.listener != nil {
		g.listener.Close()
	}
	os.Remove(g.sockPath)
	os.Remove(g.pidPath)
}

// existingPid reads the pidfile and checks whether that process is alive.
func (g *Guard) existingPid() (int, bool) {
	data, err := os.ReadFile(g.pidPath)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return 0, false
	}
	// FindProcess always succeeds on unix; signal 0 probes liveness.
	if err := proc.Signal(syscall.Signal(0)); err != nil {
		return pid, false
	}
	return pid, true
}

// forward sends one message to the running instance, best effort.
func (g *Guard) forward(msgType string) {
	conn, err := net.DialTimeout("unix", g.sockPath, dialTimeout)
	if err != nil {
		g.log.Debug("forward to running instance failed", zap.Error(err))
		return
	}
	defer conn.Close()

	raw, _ := json.Marshal(message{Type: msgType})
	raw = append(raw, '\n')
	_ = conn.SetWriteDeadline(time.Now().Add(dialTimeout))
	if _, err := conn.Write(raw); err != nil {
		g.log.Debug("forward write failed", zap.Error(err))
	}
}

func (g *Guard) acceptLoop() {
	for {
		conn, err := g.listener.Accept()
		if err != nil {
			g.mu.Lock()
			closed := g.closed
			g.mu.Unlock()
			if closed {
				return
			}
			continue
		}
		go g.handle(conn)
	}
}

func (g *Guard) handle(conn net.Conn) {
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		var msg message
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			continue
		}
		if msg.Type != "activate" {
			continue
		}
		g.mu.Lock()
		fn := g.onActivate
		g.mu.Unlock()
		if fn != nil {
			fn()
		}
	}
}
