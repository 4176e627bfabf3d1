// watch.go implements the 'sledgehammer watch' command.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fsnotify/fsnotify"

	"github.com/kolkov/sledgehammer/cmd/sledgehammer/instrument"
)

// watchCommand implements the 'sledgehammer watch' command.
//
// It rewrites a package directory into the output directory once, then
// re-instruments each .go file as it changes until interrupted. Errors in
// a single file are reported and the watch continues; the previous output
// for that file is left in place.
//
// Example:
//
//	sledgehammer watch -o /tmp/traced ./cmd/app
func watchCommand(args []string) {
	config, err := parseRewriteArgs(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := config.applyProject(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := watch(ctx, config); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// sourceWatcher mirrors one package directory into an output directory.
type sourceWatcher struct {
	config *rewriteConfig
	dir    string
}

// newSourceWatcher validates config for watching.
func newSourceWatcher(config *rewriteConfig) (*sourceWatcher, error) {
	if config.outputDir == "" {
		return nil, fmt.Errorf("watch requires an output directory (-o or %s output)", configFileName)
	}
	if len(config.sources) != 1 {
		return nil, fmt.Errorf("watch takes exactly one directory, got %d", len(config.sources))
	}

	dir := config.sources[0]
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(config.workDir, dir)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot access %s: %w", config.sources[0], err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", config.sources[0])
	}

	outDir, err := filepath.Abs(config.outputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", config.outputDir, err)
	}
	if filepath.Clean(outDir) == filepath.Clean(dir) {
		return nil, fmt.Errorf("output directory must differ from the watched directory")
	}

	return &sourceWatcher{config: config, dir: dir}, nil
}

// watch runs the initial rewrite and then follows file changes until ctx
// is cancelled.
func watch(ctx context.Context, config *rewriteConfig) error {
	sw, err := newSourceWatcher(config)
	if err != nil {
		return err
	}

	if err := rewriteSources(config, os.Stdout); err != nil {
		return err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	defer func() { _ = w.Close() }()

	if err := w.Add(sw.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", sw.dir, err)
	}

	fmt.Printf("Watching %s (Ctrl+C to stop)\n", sw.dir)
	return watchLoop(ctx, w.Events, w.Errors, sw.handle)
}

// watchLoop dispatches events to handle until ctx is done or a channel is
// closed. Handler and watcher errors are reported, never fatal.
func watchLoop(ctx context.Context, events <-chan fsnotify.Event, errs <-chan error, handle func(fsnotify.Event) error) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := handle(ev); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}
		case err, ok := <-errs:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "Watch error: %v\n", err)
		}
	}
}

// handle re-instruments or removes the output for one source event.
func (sw *sourceWatcher) handle(ev fsnotify.Event) error {
	if !sw.tracked(ev.Name) {
		return nil
	}

	if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
		if _, err := os.Stat(ev.Name); errors.Is(err, os.ErrNotExist) {
			outPath := filepath.Join(sw.config.outputDir, filepath.Base(ev.Name))
			if err := os.Remove(outPath); err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("failed to remove %s: %w", outPath, err)
			}
			fmt.Printf("Removed: %s\n", outPath)
			return nil
		}
	}

	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
		return nil
	}

	result, err := instrument.InstrumentFile(ev.Name, nil)
	if err != nil {
		return fmt.Errorf("failed to instrument %s: %w", ev.Name, err)
	}
	outPath, err := writeRewritten(ev.Name, sw.config.outputDir, result.Code)
	if err != nil {
		return err
	}

	fmt.Printf("Instrumented: %s -> %s\n", ev.Name, outPath)
	if sw.config.verbose {
		printStats(result.Stats)
	}
	return nil
}

// tracked reports whether path is a non-test .go file directly inside the
// watched directory and not excluded by the project configuration.
func (sw *sourceWatcher) tracked(path string) bool {
	if filepath.Ext(path) != ".go" || strings.HasSuffix(path, "_test.go") {
		return false
	}
	if filepath.Clean(filepath.Dir(path)) != filepath.Clean(sw.dir) {
		return false
	}
	return !sw.config.project.excluded(path, sw.config.workDir)
}
