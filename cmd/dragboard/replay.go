package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/evanschultz/dragboard/internal/script"
	"github.com/fsnotify/fsnotify"
	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

const replayDebounce = 150 * time.Millisecond

var errReplayFailed = errors.New("replay failed")

func newReplayCommand(flags *globalFlags, stderr io.Writer) *cobra.Command {
	var (
		format string
		watch  bool
	)
	cmd := &cobra.Command{
		Use:   "replay <script.toml>",
		Short: "Replay a gesture script against a fresh board",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch format {
			case "text", "json":
			default:
				return fmt.Errorf("unknown format %q (want text or json)", format)
			}
			sess, err := openSession(flags, stderr)
			if err != nil {
				return err
			}
			defer sess.close(stderr)

			path := args[0]
			out := cmd.OutOrStdout()
			ctx := cmd.Context()
			if !watch {
				return replayOnce(ctx, sess, path, format, out)
			}

			sess.logger.Info("watching gesture script", "path", path)
			report := func() {
				if err := replayOnce(ctx, sess, path, format, out); err != nil {
					_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "replay: %v\n", err)
				}
			}
			report()
			return watchScript(ctx, path, replayDebounce, report)
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "output format: text or json")
	cmd.Flags().BoolVar(&watch, "watch", false, "re-run the script whenever the file changes")
	return cmd
}

// replayOnce loads path, replays it against a freshly seeded board and reports the result.
func replayOnce(ctx context.Context, sess *session, path, format string, out io.Writer) error {
	s, err := script.Load(path)
	if err != nil {
		return err
	}
	// Engine diagnostics during the replay carry the script name.
	scoped := &session{cfg: sess.cfg, logger: sess.logger.With("script", s.Name)}
	svc, closeSvc, err := scoped.newService(ctx)
	if err != nil {
		return err
	}
	defer closeSvc()

	res, err := script.Run(ctx, svc, s)
	if err != nil {
		scoped.logger.Error("replay aborted", "err", err)
		return fmt.Errorf("replay %s: %w", s.Name, err)
	}
	scoped.logger.Info("replay complete", "steps", len(res.Steps), "passed", res.Passed())

	if format == "json" {
		err = writeResultJSON(out, res)
	} else {
		err = writeResultText(out, res)
	}
	if err != nil {
		return err
	}
	if !res.Passed() {
		return fmt.Errorf("%w: %s", errReplayFailed, s.Name)
	}
	return nil
}

func writeResultJSON(w io.Writer, res script.Result) error {
	encoded, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result json: %w", err)
	}
	encoded = append(encoded, '\n')
	_, err = w.Write(encoded)
	return err
}

func writeResultText(w io.Writer, res script.Result) error {
	var b strings.Builder
	fmt.Fprintf(&b, "script: %s\n", res.Name)
	for _, st := range res.Steps {
		fmt.Fprintf(&b, "  %2d %-15s r%d", st.Index, st.Action, st.Revision)
		switch {
		case st.Err != "":
			fmt.Fprintf(&b, " error: %s", st.Err)
		case st.Changed:
			b.WriteString(" changed")
		}
		b.WriteByte('\n')
	}

	final := res.Final()
	b.WriteString("board:\n")
	for _, col := range final.Columns {
		ids := make([]string, 0)
		for _, task := range final.ColumnTasks(col.ID) {
			ids = append(ids, task.ID)
		}
		fmt.Fprintf(&b, "  %s: [%s]\n", col.ID, strings.Join(ids, " "))
	}
	if final.Active != nil {
		fmt.Fprintf(&b, "active: %s %s\n", final.Active.Kind(), final.Active.EntityID())
	}

	for _, m := range res.Mismatches {
		fmt.Fprintf(&b, "mismatch: %s\n", m)
	}
	if res.Passed() {
		b.WriteString("PASS\n")
	} else {
		b.WriteString("FAIL\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// watchScript calls onChange after path is written, debounced by delay, until ctx is done.
// The parent directory is watched so editors that replace the file by rename still trigger.
func watchScript(ctx context.Context, path string, delay time.Duration, onChange func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()
	if err := w.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	target := filepath.Base(path)
	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(delay)
			} else {
				timer.Reset(delay)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			onChange()
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watch %s: %w", path, err)
		}
	}
}
