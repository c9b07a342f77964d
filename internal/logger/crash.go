// Package logger captures panics to crash log files so a failed poll cycle
// leaves a report behind even when nobody is watching the terminal.
package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strings"
	"sync"
	"time"
)

const (
	// crashLogDir is the crash log directory relative to the base path.
	crashLogDir = "crash_logs"

	// maxCrashLogs is how many crash logs are kept before the oldest rotate out.
	maxCrashLogs = 10
)

type crashContext struct {
	mu       sync.RWMutex
	command  string
	repo     string
	version  string
	basePath string
}

var globalContext = &crashContext{}

// SetBasePath sets where crash logs land (typically the .mcp_coder directory).
func SetBasePath(path string) {
	globalContext.mu.Lock()
	defer globalContext.mu.Unlock()
	globalContext.basePath = path
}

// SetVersion records the binary version for crash reports.
func SetVersion(version string) {
	globalContext.mu.Lock()
	defer globalContext.mu.Unlock()
	globalContext.version = version
}

// SetCommand records the subcommand currently executing.
func SetCommand(cmd string) {
	globalContext.mu.Lock()
	defer globalContext.mu.Unlock()
	globalContext.command = cmd
}

// SetRepo records the repository a poll cycle was working when it crashed.
func SetRepo(repo string) {
	globalContext.mu.Lock()
	defer globalContext.mu.Unlock()
	globalContext.repo = repo
}

// CrashLog is one captured panic.
type CrashLog struct {
	Timestamp  time.Time
	Version    string
	Command    string
	Repo       string
	PanicValue string
	StackTrace string
	GoVersion  string
	OS         string
	Arch       string
}

// HandlePanic recovers a panic, writes a crash log, and exits non-zero.
// Usage: defer logger.HandlePanic()
func HandlePanic() {
	r := recover()
	if r == nil {
		return
	}
	log := newCrashLog(r)
	if err := writeCrashLog(log); err != nil {
		fmt.Fprintf(os.Stderr, "\n[CRASH] failed to write crash log: %v\n", err)
		fmt.Fprintf(os.Stderr, "[CRASH] panic: %v\n%s\n", r, debug.Stack())
	} else {
		fmt.Fprintf(os.Stderr, "\ncoordinator hit an unexpected error; a crash log was saved to:\n  %s\n",
			crashLogPath(log.Timestamp))
	}
	os.Exit(1)
}

func newCrashLog(panicValue any) CrashLog {
	globalContext.mu.RLock()
	defer globalContext.mu.RUnlock()

	return CrashLog{
		Timestamp:  time.Now(),
		Version:    globalContext.version,
		Command:    globalContext.command,
		Repo:       globalContext.repo,
		PanicValue: fmt.Sprintf("%v", panicValue),
		StackTrace: string(debug.Stack()),
		GoVersion:  runtime.Version(),
		OS:         runtime.GOOS,
		Arch:       runtime.GOARCH,
	}
}

func writeCrashLog(log CrashLog) error {
	dir := crashDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create crash log dir: %w", err)
	}
	if err := rotateCrashLogs(dir); err != nil {
		// Non-fatal; the new log still gets written.
		fmt.Fprintf(os.Stderr, "[WARN] failed to rotate crash logs: %v\n", err)
	}
	path := crashLogPath(log.Timestamp)
	if err := os.WriteFile(path, []byte(formatCrashLog(log)), 0o644); err != nil {
		return fmt.Errorf("write crash log: %w", err)
	}
	return nil
}

func crashDir() string {
	globalContext.mu.RLock()
	basePath := globalContext.basePath
	globalContext.mu.RUnlock()

	if basePath == "" {
		basePath = ".mcp_coder"
	}
	return filepath.Join(basePath, crashLogDir)
}

func crashLogPath(t time.Time) string {
	return filepath.Join(crashDir(), fmt.Sprintf("crash_%s.log", t.Format("20060102_150405")))
}

func formatCrashLog(log CrashLog) string {
	var sb strings.Builder
	rule := strings.Repeat("-", 80)

	sb.WriteString("COORDINATOR CRASH LOG\n")
	sb.WriteString(rule + "\n")
	fmt.Fprintf(&sb, "Timestamp: %s\n", log.Timestamp.Format(time.RFC3339))
	fmt.Fprintf(&sb, "Version:   %s\n", log.Version)
	fmt.Fprintf(&sb, "Command:   %s\n", log.Command)
	if log.Repo != "" {
		fmt.Fprintf(&sb, "Repo:      %s\n", log.Repo)
	}
	fmt.Fprintf(&sb, "Go:        %s\n", log.GoVersion)
	fmt.Fprintf(&sb, "OS/Arch:   %s/%s\n", log.OS, log.Arch)

	sb.WriteString("\nPANIC VALUE\n" + rule + "\n")
	sb.WriteString(log.PanicValue + "\n")

	sb.WriteString("\nSTACK TRACE\n" + rule + "\n")
	sb.WriteString(log.StackTrace)
	return sb.String()
}

// rotateCrashLogs removes the oldest crash logs beyond maxCrashLogs. The
// timestamped filenames sort chronologically, and os.ReadDir returns entries
// sorted by name.
func rotateCrashLogs(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var logs []os.DirEntry
	for _, e := range entries {
		if isCrashLogName(e) {
			logs = append(logs, e)
		}
	}
	if len(logs) < maxCrashLogs {
		return nil
	}
	toRemove := len(logs) - maxCrashLogs + 1
	for i := range toRemove {
		path := filepath.Join(dir, logs[i].Name())
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("remove old crash log %s: %w", logs[i].Name(), err)
		}
	}
	return nil
}

func isCrashLogName(e os.DirEntry) bool {
	return !e.IsDir() && strings.HasPrefix(e.Name(), "crash_") && strings.HasSuffix(e.Name(), ".log")
}

// ListCrashLogs returns the paths of all kept crash logs, oldest first.
func ListCrashLogs() ([]string, error) {
	dir := crashDir()
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var logs []string
	for _, e := range entries {
		if isCrashLogName(e) {
			logs = append(logs, filepath.Join(dir, e.Name()))
		}
	}
	return logs, nil
}
