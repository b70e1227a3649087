package hostapi

import (
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"
)

// Names resolvable by every Host regardless of configuration.
var baseEnvAllowlist = []string{
	"HOME",
	"USER",
	"SHELL",
	"XDG_CONFIG_HOME",
	"XDG_DATA_HOME",
	"CODEX_HOME",
	"CLAUDE_CONFIG_DIR",
	"USAGEBAR_DEBUG_MODE",
	"USAGEBAR_DEBUG_SLEEP_MS",
}

// Env exposes the whitelisted environment lookup. GUI-launched
// processes on macOS do not inherit the login shell environment, so a
// miss in the process environment falls back to a one-time login-shell
// resolution cached for the process lifetime; changing a value in the
// shell configuration requires an application restart to be observed.
type Env struct {
	allowed map[string]struct{}

	once     sync.Once
	shellEnv map[string]string
}

func newEnv(extra []string) *Env {
	allowed := make(map[string]struct{}, len(baseEnvAllowlist)+len(extra))
	for _, name := range baseEnvAllowlist {
		allowed[name] = struct{}{}
	}
	for _, name := range extra {
		name = strings.TrimSpace(name)
		if name != "" {
			allowed[name] = struct{}{}
		}
	}
	return &Env{allowed: allowed}
}

// Get resolves name if it is on the allow-list. Names off the list
// report absent, never an error.
func (e *Env) Get(name string) (string, bool) {
	if _, ok := e.allowed[name]; !ok {
		return "", false
	}
	if v := os.Getenv(name); v != "" {
		return v, true
	}
	if runtime.GOOS != "darwin" {
		return "", false
	}
	e.once.Do(e.loadShellEnv)
	v, ok := e.shellEnv[name]
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func (e *Env) loadShellEnv() {
	e.shellEnv = map[string]string{}

	shell := os.Getenv("SHELL")
	if shell == "" {
		shell = "/bin/zsh"
	}
	out, err := exec.Command(shell, "-l", "-i", "-c", "env").Output()
	if err != nil {
		slog.Debug("login shell environment resolution failed", "shell", shell, "error", err)
		return
	}

	for _, line := range strings.Split(string(out), "\n") {
		key, value, found := strings.Cut(line, "=")
		if !found || key == "" {
			continue
		}
		e.shellEnv[key] = value
	}
	slog.Debug("login shell environment cached", "vars", len(e.shellEnv))
}
