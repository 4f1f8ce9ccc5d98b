package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	charmLog "github.com/charmbracelet/log"
	"github.com/evanschultz/dragboard/internal/config"
)

const defaultDevLogDir = ".dragboard/log"

// logSink is one destination of the runtime logger.
type logSink struct {
	*charmLog.Logger
	console bool
}

// runtimeLogger writes CLI and engine events to the terminal and, in dev mode, to a daily logfmt
// file in the workspace. It satisfies app.Logger.
type runtimeLogger struct {
	sinks []logSink
	// muted silences the console sink while the board owns the terminal.
	muted bool
	file  *os.File
}

func newRuntimeLogger(stderr io.Writer, appName string, devMode bool, cfg config.LoggingConfig, now func() time.Time) (*runtimeLogger, error) {
	level, err := charmLog.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parse logging level %q: %w", cfg.Level, err)
	}
	if stderr == nil {
		stderr = io.Discard
	}
	if now == nil {
		now = time.Now
	}

	l := &runtimeLogger{
		sinks: []logSink{{Logger: newSinkLogger(stderr, appName, level, charmLog.TextFormatter), console: true}},
	}
	if !devMode || !cfg.DevFile.Enabled {
		return l, nil
	}

	f, err := openDevLogFile(cfg.DevFile.Dir, appName, now().UTC())
	if err != nil {
		return nil, err
	}
	l.file = f
	l.sinks = append(l.sinks, logSink{Logger: newSinkLogger(f, appName, level, charmLog.LogfmtFormatter)})
	return l, nil
}

func newSinkLogger(w io.Writer, appName string, level charmLog.Level, formatter charmLog.Formatter) *charmLog.Logger {
	return charmLog.NewWithOptions(w, charmLog.Options{
		Level:           level,
		Prefix:          appName,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Formatter:       formatter,
	})
}

// openDevLogFile creates the day's dev log file, appending when it already exists.
func openDevLogFile(dir, appName string, day time.Time) (*os.File, error) {
	path, err := dailyLogPath(dir, appName, day)
	if err != nil {
		return nil, fmt.Errorf("resolve dev log file path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create dev log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open dev log file: %w", err)
	}
	return f, nil
}

// DevLogPath returns the dev log file path, or "" when file logging is off.
func (l *runtimeLogger) DevLogPath() string {
	if l == nil || l.file == nil {
		return ""
	}
	return l.file.Name()
}

func (l *runtimeLogger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}

// MuteConsole stops console output; the dev file keeps receiving events.
func (l *runtimeLogger) MuteConsole() {
	if l != nil {
		l.muted = true
	}
}

func (l *runtimeLogger) consoleActive() bool {
	return l != nil && !l.muted
}

// With returns a logger that adds keyvals to every event. It shares the dev file of l.
func (l *runtimeLogger) With(keyvals ...any) *runtimeLogger {
	if l == nil {
		return nil
	}
	out := &runtimeLogger{muted: l.muted, file: l.file, sinks: make([]logSink, 0, len(l.sinks))}
	for _, sink := range l.sinks {
		out.sinks = append(out.sinks, logSink{Logger: sink.With(keyvals...), console: sink.console})
	}
	return out
}

func (l *runtimeLogger) log(level charmLog.Level, msg any, keyvals []any) {
	if l == nil {
		return
	}
	for _, sink := range l.sinks {
		if sink.console && l.muted {
			continue
		}
		sink.Log(level, msg, keyvals...)
	}
}

func (l *runtimeLogger) Debug(msg any, keyvals ...any) { l.log(charmLog.DebugLevel, msg, keyvals) }
func (l *runtimeLogger) Info(msg any, keyvals ...any)  { l.log(charmLog.InfoLevel, msg, keyvals) }
func (l *runtimeLogger) Warn(msg any, keyvals ...any)  { l.log(charmLog.WarnLevel, msg, keyvals) }
func (l *runtimeLogger) Error(msg any, keyvals ...any) { l.log(charmLog.ErrorLevel, msg, keyvals) }

// dailyLogPath names <dir>/<app>-YYYYMMDD.log. A relative dir is anchored at the workspace root.
func dailyLogPath(dir, appName string, day time.Time) (string, error) {
	base := strings.TrimSpace(dir)
	if base == "" {
		base = defaultDevLogDir
	}
	if !filepath.IsAbs(base) {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("resolve working dir: %w", err)
		}
		base = filepath.Join(findWorkspaceRoot(cwd), base)
	}
	name := logFileStem(appName) + "-" + day.Format("20060102") + ".log"
	return filepath.Join(filepath.Clean(base), name), nil
}

// findWorkspaceRoot returns the closest ancestor of start holding go.mod or .git, or start itself.
func findWorkspaceRoot(start string) string {
	start = filepath.Clean(strings.TrimSpace(start))
	for dir := start; ; {
		for _, marker := range []string{"go.mod", ".git"} {
			if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
				return dir
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return start
		}
		dir = parent
	}
}

// logFileStem turns an app name into a file-name segment.
func logFileStem(appName string) string {
	stem := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', ' ':
			return '-'
		}
		return r
	}, strings.TrimSpace(appName))
	if stem = strings.Trim(stem, "-"); stem == "" {
		return defaultAppName
	}
	return stem
}
