// Package inference talks to Python model helpers over a stdin/stdout pipe.
//
// Each request is a 4-byte big-endian length followed by a JPEG frame; each
// response is a single line of JSON.
package inference

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/roadpilot/internal/logger"
)

// DefaultIdleTimeout is how long the helper may sit unused before it is stopped.
const DefaultIdleTimeout = 30 * time.Second

// ErrScriptNotFound is returned when the helper script cannot be located.
var ErrScriptNotFound = errors.New("inference script not found")

// Service manages a lazily started helper process.
type Service struct {
	script      string
	args        []string
	idleTimeout time.Duration
	log         *logger.Logger

	cmd       *exec.Cmd
	stdin     io.WriteCloser
	stdout    *bufio.Reader
	mu        sync.Mutex
	started   bool
	lastUsed  time.Time
	idleTimer *time.Timer
}

// NewService locates scriptName and returns a Service that starts it on first use.
// args are appended to the helper's command line.
func NewService(scriptName string, args []string, log *logger.Logger) (*Service, error) {
	script := FindScript(scriptName)
	if script == "" {
		return nil, fmt.Errorf("%w: %s", ErrScriptNotFound, scriptName)
	}

	return &Service{
		script:      script,
		args:        args,
		idleTimeout: DefaultIdleTimeout,
		log:         logger.Or(log),
	}, nil
}

// Script returns the resolved script path.
func (s *Service) Script() string {
	return s.script
}

// Infer encodes frame as JPEG, sends it and decodes the JSON reply into out.
func (s *Service) Infer(frame *gocv.Mat, out interface{}) error {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	return s.InferBytes(buf.GetBytes(), out)
}

// InferBytes sends an already encoded image and decodes the reply into out.
func (s *Service) InferBytes(data []byte, out interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureStarted(); err != nil {
		return err
	}

	if err := Exchange(s.stdin, s.stdout, data, out); err != nil {
		// A broken pipe leaves the helper unusable; restart on the next call.
		s.log.Warning("inference helper %s failed: %v", filepath.Base(s.script), err)
		s.shutdown()
		return err
	}

	s.lastUsed = time.Now()
	s.resetIdleTimer()
	return nil
}

// Close shuts down the helper process.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shutdown()
}

// Exchange writes one framed request to w and decodes one JSON line from r into out.
func Exchange(w io.Writer, r *bufio.Reader, data []byte, out interface{}) error {
	length := make([]byte, 4)
	binary.BigEndian.PutUint32(length, uint32(len(data)))

	if _, err := w.Write(length); err != nil {
		return fmt.Errorf("write length: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write data: %w", err)
	}

	line, err := r.ReadBytes('\n')
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if err := json.Unmarshal(line, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}

	return nil
}

func (s *Service) ensureStarted() error {
	if s.started {
		return nil
	}

	pythonPath := FindVenvPython()
	if pythonPath == "" {
		pythonPath = "python3"
	}

	args := append([]string{s.script}, s.args...)
	s.cmd = exec.Command(pythonPath, args...)

	stdin, err := s.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}

	stdout, err := s.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}

	s.cmd.Stderr = os.Stderr

	if err := s.cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", filepath.Base(s.script), err)
	}

	s.stdin = stdin
	s.stdout = bufio.NewReader(stdout)
	s.started = true
	s.lastUsed = time.Now()
	s.log.Debug("started inference helper %s", s.script)

	return nil
}

func (s *Service) shutdown() error {
	if !s.started {
		return nil
	}

	if s.idleTimer != nil {
		s.idleTimer.Stop()
		s.idleTimer = nil
	}

	if s.stdin != nil {
		s.stdin.Close()
	}

	err := s.cmd.Wait()
	s.started = false
	s.cmd = nil
	s.stdin = nil
	s.stdout = nil

	return err
}

func (s *Service) resetIdleTimer() {
	if s.idleTimer != nil {
		s.idleTimer.Stop()
	}
	s.idleTimer = time.AfterFunc(s.idleTimeout, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.log.Debug("inference helper idle for %s, stopping", s.idleTimeout)
		s.shutdown()
	})
}

// FindScript searches the usual install locations for a helper script.
// An existing absolute or relative path is returned as-is.
func FindScript(name string) string {
	if name == "" {
		return ""
	}

	execPath, err := os.Executable()
	var execDir string
	if err == nil {
		execDir = filepath.Dir(execPath)
	}

	candidates := []string{
		name,
		filepath.Join("scripts", name),
		filepath.Join("..", "scripts", name),
		filepath.Join(execDir, "scripts", name),
		filepath.Join(os.Getenv("HOME"), ".roadpilot", "scripts", name),
	}

	return firstExisting(candidates)
}

// FindVenvPython looks for a Python interpreter in a virtual environment.
func FindVenvPython() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}
	execDir := filepath.Dir(execPath)

	candidates := []string{
		"venv/bin/python",
		"../venv/bin/python",
		"../../venv/bin/python",
		filepath.Join(execDir, "venv/bin/python"),
		filepath.Join(os.Getenv("HOME"), ".roadpilot/venv/bin/python"),
	}

	return firstExisting(candidates)
}

func firstExisting(candidates []string) string {
	for _, path := range candidates {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		if absPath, err := filepath.Abs(path); err == nil {
			return absPath
		}
		return path
	}
	return ""
}
