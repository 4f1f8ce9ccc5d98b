package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/fang"
	"github.com/evanschultz/dragboard/internal/adapters/storage/sqlite"
	"github.com/evanschultz/dragboard/internal/app"
	"github.com/evanschultz/dragboard/internal/config"
	"github.com/evanschultz/dragboard/internal/platform"
	"github.com/evanschultz/dragboard/internal/tui"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

const defaultAppName = "dragboard"

var version = "dev"

// program is the part of *tea.Program the CLI drives.
type program interface {
	Run() (tea.Model, error)
}

var programFactory = func(m tea.Model) program {
	return tea.NewProgram(m)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := fang.Execute(ctx, newRootCommand(os.Stdout, os.Stderr), fang.WithVersion(version))
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// run executes the command tree without fang's styled output.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root := newRootCommand(stdout, stderr)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// globalFlags holds the persistent flags shared by every command.
type globalFlags struct {
	configPath string
	appName    string
	devMode    bool
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}

	flags := &globalFlags{appName: defaultAppName, devMode: version == "dev"}
	if envDev, ok := parseBoolEnv("DRAGBOARD_DEV_MODE"); ok {
		flags.devMode = envDev
	}
	if envApp := strings.TrimSpace(os.Getenv("DRAGBOARD_APP_NAME")); envApp != "" {
		flags.appName = envApp
	}

	root := &cobra.Command{
		Use:           "dragboard",
		Short:         "A kanban board you rearrange by dragging",
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBoard(cmd.Context(), flags, stderr)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "path to config TOML")
	root.PersistentFlags().StringVar(&flags.appName, "app", flags.appName, "application name for config/data path resolution")
	root.PersistentFlags().BoolVar(&flags.devMode, "dev", flags.devMode, "use dev mode paths (<app>-dev) and the dev log file")

	root.AddCommand(
		newPathsCommand(flags),
		newExportCommand(flags, stderr),
		newReplayCommand(flags, stderr),
	)
	return root
}

func newPathsCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print resolved config and data paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			paths, err := platform.DefaultPathsWithOptions(platform.Options{AppName: flags.appName, DevMode: flags.devMode})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "app: %s\n", flags.appName)
			_, _ = fmt.Fprintf(out, "dev_mode: %t\n", flags.devMode)
			_, _ = fmt.Fprintf(out, "config: %s\n", flags.resolveConfigPath(paths))
			_, _ = fmt.Fprintf(out, "data_dir: %s\n", paths.DataDir)
			_, _ = fmt.Fprintf(out, "log_dir: %s\n", paths.LogDir)
			return nil
		},
	}
}

func newExportCommand(flags *globalFlags, stderr io.Writer) *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the seeded board as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := openSession(flags, stderr)
			if err != nil {
				return err
			}
			defer sess.close(stderr)

			svc, closeSvc, err := sess.newService(cmd.Context())
			if err != nil {
				return err
			}
			defer closeSvc()

			sess.logger.Info("command flow start", "command", "export", "out", outPath)
			if err := writeExport(svc.ExportBoard(), outPath, cmd.OutOrStdout()); err != nil {
				sess.logger.Error("command flow failed", "command", "export", "err", err)
				return fmt.Errorf("run export command: %w", err)
			}
			sess.logger.Info("command flow complete", "command", "export")
			return nil
		},
	}
	cmd.Flags().StringVar(&outPath, "out", "-", "output file path ('-' for stdout)")
	return cmd
}

func writeExport(board app.BoardExport, outPath string, stdout io.Writer) error {
	encoded, err := json.MarshalIndent(board, "", "  ")
	if err != nil {
		return fmt.Errorf("encode board json: %w", err)
	}
	encoded = append(encoded, '\n')

	if outPath == "" || outPath == "-" {
		if _, err := stdout.Write(encoded); err != nil {
			return fmt.Errorf("write board to stdout: %w", err)
		}
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create export output dir: %w", err)
	}
	if err := os.WriteFile(outPath, encoded, 0o644); err != nil {
		return fmt.Errorf("write export file: %w", err)
	}
	return nil
}

func runBoard(ctx context.Context, flags *globalFlags, stderr io.Writer) error {
	sess, err := openSession(flags, stderr)
	if err != nil {
		return err
	}
	// The board owns the terminal; runtime logs only reach the dev file.
	sess.logger.MuteConsole()
	defer sess.close(stderr)

	svc, closeSvc, err := sess.newService(ctx)
	if err != nil {
		return err
	}
	defer closeSvc()

	m := tui.NewModel(
		svc,
		tui.WithContext(ctx),
		tui.WithActivityLimit(sess.cfg.Activity.Limit),
	)
	sess.logger.Info("starting tui program loop")
	if _, err := programFactory(m).Run(); err != nil {
		sess.logger.Error("tui program terminated with error", "err", err)
		return fmt.Errorf("run tui program: %w", err)
	}
	sess.logger.Info("command flow complete", "command", "tui")
	return nil
}

// session is the resolved runtime state for one command invocation.
type session struct {
	cfg    config.Config
	logger *runtimeLogger
}

func openSession(flags *globalFlags, stderr io.Writer) (*session, error) {
	paths, err := platform.DefaultPathsWithOptions(platform.Options{AppName: flags.appName, DevMode: flags.devMode})
	if err != nil {
		return nil, err
	}
	configPath := flags.resolveConfigPath(paths)
	cfg, err := config.Load(configPath, config.Default())
	if err != nil {
		return nil, fmt.Errorf("load config %q: %w", configPath, err)
	}
	logger, err := newRuntimeLogger(stderr, flags.appName, flags.devMode, cfg.Logging, time.Now)
	if err != nil {
		return nil, fmt.Errorf("configure runtime logger: %w", err)
	}

	logger.Info("startup configuration resolved", "app", flags.appName, "dev_mode", flags.devMode)
	logger.Debug("runtime paths resolved", "config_path", configPath, "data_dir", paths.DataDir, "log_dir", paths.LogDir)
	logger.Info("configuration loaded", "config_path", configPath, "seed", cfg.SeedMode(), "log_level", cfg.Logging.Level)
	if devPath := logger.DevLogPath(); devPath != "" {
		logger.Info("dev file logging enabled", "path", devPath)
	}
	return &session{cfg: cfg, logger: logger}, nil
}

func (s *session) close(stderr io.Writer) {
	if err := s.logger.Close(); err != nil && s.logger.consoleActive() {
		_, _ = fmt.Fprintf(stderr, "warning: close runtime log sink: %v\n", err)
	}
}

// newService builds a seeded board service. The returned func releases the activity ledger.
func (s *session) newService(ctx context.Context) (*app.Service, func(), error) {
	opts := []app.Option{app.WithLogger(s.logger)}
	closeLedger := func() {}
	if s.cfg.Activity.Enabled {
		ledger, err := sqlite.OpenActivityLedger(s.cfg.Activity.Limit)
		if err != nil {
			s.logger.Error("activity ledger open failed", "err", err)
			return nil, nil, fmt.Errorf("open activity ledger: %w", err)
		}
		opts = append(opts, app.WithActivityLog(ledger))
		closeLedger = func() {
			if err := ledger.Close(); err != nil {
				s.logger.Warn("activity ledger close failed", "err", err)
			}
		}
		s.logger.Debug("activity ledger ready", "retain", s.cfg.Activity.Limit)
	}

	svc := app.NewService(uuid.NewString, time.Now, app.ServiceConfig{
		StrictColumnRefs:  s.cfg.Board.StrictColumnRefs,
		RollbackOnCancel:  s.cfg.Drag.RollbackOnCancel,
		LiveColumnReorder: s.cfg.Drag.LiveColumnReorder,
		AssertInvariants:  s.cfg.Engine.AssertInvariants,
	}, opts...)

	if s.cfg.SeedMode() == config.SeedSample {
		if err := svc.Reset(ctx, app.SampleColumns(), app.SampleTasks()); err != nil {
			closeLedger()
			return nil, nil, fmt.Errorf("seed board: %w", err)
		}
	}
	s.logger.Debug("application service initialized", "seed", s.cfg.SeedMode(), "columns", len(svc.Snapshot().Columns))
	return svc, closeLedger, nil
}

// resolveConfigPath picks the --config flag, then DRAGBOARD_CONFIG, then the platform default.
func (f *globalFlags) resolveConfigPath(paths platform.Paths) string {
	if p := strings.TrimSpace(f.configPath); p != "" {
		return p
	}
	if envPath := strings.TrimSpace(os.Getenv("DRAGBOARD_CONFIG")); envPath != "" {
		return envPath
	}
	return paths.ConfigPath
}

// parseBoolEnv reports the parsed value and whether name held a valid bool.
func parseBoolEnv(name string) (bool, bool) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
