package main

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/jingkaihe/skillctl/pkg/config"
	"github.com/jingkaihe/skillctl/pkg/logger"
	"github.com/jingkaihe/skillctl/pkg/presenter"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// FileEvent is a change under a watched tree
type FileEvent struct {
	Path string
	Op   fsnotify.Op
	Time time.Time
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-lint the corpus whenever a skill file changes",
	Long: `Lint the corpus, then watch the skill trees and lint again after every burst
of changes. Changes are batched until no event arrives for the debounce period.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		if cfg.Watch.Debounce < 0 {
			return errors.Errorf("debounce time cannot be negative: %s", cfg.Watch.Debounce)
		}
		return runWatch(ctx, cfg, cmd.OutOrStdout())
	},
}

func init() {
	watchCmd.Flags().DurationP("debounce", "d", 500*time.Millisecond, "Quiet period before re-linting after a change")
	viper.BindPFlag("watch.debounce", watchCmd.Flags().Lookup("debounce"))
}

func runWatch(ctx context.Context, c config.Config, out io.Writer) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create file watcher")
	}
	defer watcher.Close()

	dirs := 0
	for _, tree := range c.Trees {
		treeDir := filepath.Join(c.Root, filepath.FromSlash(tree))
		if _, err := os.Stat(treeDir); err != nil {
			logger.G(ctx).WithField("tree", tree).Debug("skill tree not found, not watching")
			continue
		}
		n, err := addRecursive(watcher, treeDir)
		if err != nil {
			return errors.Wrapf(err, "failed to watch tree %s", tree)
		}
		dirs += n
	}
	if dirs == 0 {
		return errors.New("none of the configured trees exist")
	}

	events := make(chan FileEvent)
	batches := make(chan []string)
	go debounceFileEvents(ctx, events, batches, c.Watch.Debounce)
	go forwardEvents(ctx, watcher, events)

	relint(ctx, c, out)
	presenter.Info(fmt.Sprintf("Watching %d directories for changes... Press Ctrl+C to stop", dirs))

	for {
		select {
		case paths := <-batches:
			logger.G(ctx).WithField("files", paths).Debug("change detected")
			presenter.Separator()
			presenter.Info(fmt.Sprintf("Change detected: %s", strings.Join(paths, ", ")))
			relint(ctx, c, out)
		case <-ctx.Done():
			presenter.Info("Stopped watching")
			return nil
		}
	}
}

// relint runs one lint pass. Failures are reported and watching continues.
func relint(ctx context.Context, c config.Config, out io.Writer) {
	start := time.Now()
	rep, err := runLint(ctx, c, LintRunConfig{}, out)
	if err != nil {
		if ctx.Err() == nil {
			presenter.Error(err, "lint failed")
		}
		return
	}
	presenter.Stats(&presenter.RunStats{
		Skills:   rep.SkillCount,
		Errors:   rep.Summary.Errors,
		Warnings: rep.Summary.Warnings,
		Infos:    rep.Summary.Infos,
		Duration: time.Since(start),
	})
}

// addRecursive watches dir and every non-hidden directory below it
func addRecursive(watcher *fsnotify.Watcher, dir string) (int, error) {
	count := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		count++
		return watcher.Add(path)
	})
	return count, err
}

func forwardEvents(ctx context.Context, watcher *fsnotify.Watcher, events chan<- FileEvent) {
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if strings.HasPrefix(filepath.Base(event.Name), ".") {
				continue
			}
			// new skill directories need their own watch
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if _, err := addRecursive(watcher, event.Name); err != nil {
						logger.G(ctx).WithError(err).WithField("directory", event.Name).Warn("failed to watch new directory")
					}
				}
			}
			select {
			case events <- FileEvent{Path: event.Name, Op: event.Op, Time: time.Now()}:
			case <-ctx.Done():
				return
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.G(ctx).WithError(err).Error("error watching files")
		case <-ctx.Done():
			return
		}
	}
}

// debounceFileEvents collects events until none arrives for delay, then
// emits the sorted set of changed paths
func debounceFileEvents(ctx context.Context, input <-chan FileEvent, output chan<- []string, delay time.Duration) {
	pending := make(map[string]struct{})
	timer := time.NewTimer(delay)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case event, ok := <-input:
			if !ok {
				return
			}
			pending[event.Path] = struct{}{}
			timer.Reset(delay)
		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			sort.Strings(paths)
			pending = make(map[string]struct{})

			select {
			case output <- paths:
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
