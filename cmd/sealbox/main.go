package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/akiel/sealbox/internal/config"
	"github.com/akiel/sealbox/internal/engine"
	"github.com/akiel/sealbox/internal/event"
	"github.com/akiel/sealbox/internal/fileset"
	"github.com/akiel/sealbox/internal/kdf"
	"github.com/akiel/sealbox/internal/password"
	"github.com/akiel/sealbox/internal/resolve"
	"github.com/akiel/sealbox/internal/stats"
	"github.com/akiel/sealbox/internal/ui"
)

var version = "dev"

func main() {
	os.Exit(run())
}

// batchFlags holds the flag values shared by encrypt and decrypt.
type batchFlags struct {
	files           []string
	directory       string
	patterns        []string
	output          string
	passwordFlag    string
	passwordEnv     string
	parallel        int
	onConflict      string
	chunkSizeStr    string
	streamThreshold string
	iterations      int
	forceStream     bool
	compress        bool
	preserve        bool
	dryRun          bool
	verbose         bool
	quiet           bool
	logFile         string
}

func (f *batchFlags) register(cmd *cobra.Command) {
	cmd.Flags().
		StringSliceVarP(&f.files, "files", "f", nil, "input files (repeatable; positional arguments work too)")
	cmd.Flags().StringVarP(&f.directory, "directory", "d", "", "collect input files from DIR")
	cmd.Flags().
		StringSliceVar(&f.patterns, "pattern", nil, "glob pattern applied under --directory (repeatable, default **/*)")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "write outputs under DIR instead of alongside inputs")
	cmd.Flags().
		StringVar(&f.passwordFlag, "password", "", "password (visible in process list; prefer --password-env or the prompt)")
	cmd.Flags().
		StringVar(&f.passwordEnv, "password-env", "", "read the password from this environment variable")
	cmd.Flags().
		IntVarP(&f.parallel, "parallel", "n", 0, "number of file workers (default: min(NumCPU*2, 32))")
	cmd.Flags().
		StringVar(&f.onConflict, "on-conflict", "skip", "existing-output strategy: skip, overwrite, rename, backup, newer, older")
	cmd.Flags().
		StringVar(&f.chunkSizeStr, "chunk-size", "", "streaming chunk size (e.g. 64K, 1M)")
	cmd.Flags().
		StringVar(&f.streamThreshold, "stream-threshold", "", "stream files larger than SIZE (e.g. 10M)")
	cmd.Flags().BoolVar(&f.forceStream, "stream", false, "force chunked streaming regardless of size")
	cmd.Flags().BoolVarP(&f.preserve, "preserve", "p", false, "preserve mode and mtime on outputs")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "show what would be processed without writing")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "verbose output")
	cmd.Flags().BoolVarP(&f.quiet, "quiet", "q", false, "suppress all output except errors")
	cmd.Flags().StringVar(&f.logFile, "log", "", "write structured JSON log to FILE")
}

func run() int {
	var showVersion bool

	rootCmd := &cobra.Command{
		Use:           "sealbox",
		Short:         "Password-based batch file encryption",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if showVersion {
				fmt.Fprintf(os.Stdout, "sealbox %s\n", version)
				return nil
			}
			return cmd.Help()
		},
	}
	rootCmd.Flags().BoolVar(&showVersion, "version", false, "print version and exit")

	rootCmd.AddCommand(newEncryptCmd())
	rootCmd.AddCommand(newDecryptCmd())
	rootCmd.AddCommand(docsCmd)

	if err := rootCmd.Execute(); err != nil {
		if exitErr, ok := err.(*exitError); ok {
			return exitErr.code
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}

	return 0
}

//nolint:gocyclo // CLI entry point orchestrates flag parsing and wiring
func runBatch(cmd *cobra.Command, args []string, f *batchFlags, op engine.Op) error {
	// Load optional config file and apply defaults for flags not
	// explicitly set on the CLI.
	cfg, err := config.Load()
	if err != nil {
		slog.Warn("failed to load config", "error", err)
	}
	applyConfigDefaults(cmd, cfg.Defaults, f)

	// Configure logging.
	logLevel := slog.LevelWarn
	if f.verbose {
		logLevel = slog.LevelDebug
	} else if !f.quiet {
		logLevel = slog.LevelInfo
	}
	textHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})
	var logHandler slog.Handler = textHandler
	if f.logFile != "" {
		lf, lfErr := os.Create(f.logFile)
		if lfErr != nil {
			return fmt.Errorf("open log file: %w", lfErr)
		}
		defer lf.Close()
		jsonHandler := slog.NewJSONHandler(lf, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
		logHandler = ui.NewMultiHandler(textHandler, jsonHandler)
	}
	slog.SetDefault(slog.New(logHandler))

	files, err := collectInputs(args, f)
	if err != nil {
		return err
	}

	strategy, err := resolve.ParseStrategy(f.onConflict)
	if err != nil {
		return fmt.Errorf("invalid --on-conflict: %w", err)
	}

	var chunkSize int64
	if f.chunkSizeStr != "" {
		chunkSize, err = fileset.ParseSize(f.chunkSizeStr)
		if err != nil {
			return fmt.Errorf("invalid --chunk-size: %w", err)
		}
	}
	var streamThreshold int64
	if f.streamThreshold != "" {
		streamThreshold, err = fileset.ParseSize(f.streamThreshold)
		if err != nil {
			return fmt.Errorf("invalid --stream-threshold: %w", err)
		}
	}

	workers := f.parallel
	if workers <= 0 {
		workers = min(runtime.NumCPU()*2, 32)
	}

	pw, err := readPassword(f, op)
	if err != nil {
		return err
	}
	defer kdf.Zero(pw)

	if f.dryRun {
		slog.Info("dry run mode")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	collector := stats.NewCollector()
	events := make(chan event.Event, 256)

	// When --log is set, tee events through a logging goroutine that
	// writes structured records before forwarding to the presenter.
	presenterEvents := (<-chan event.Event)(events)
	if f.logFile != "" {
		teed := make(chan event.Event, 256)
		go func() {
			for ev := range events {
				attrs := []slog.Attr{
					slog.String("type", ev.Type.String()),
					slog.String("path", ev.Path),
					slog.String("output", ev.OutputPath),
					slog.Int64("bytes", ev.BytesDone),
				}
				if ev.Error != nil {
					attrs = append(attrs, slog.String("error", ev.Error.Error()))
				}
				slog.LogAttrs(context.Background(), slog.LevelInfo, "sealbox.event", attrs...)
				teed <- ev
			}
			close(teed)
		}()
		presenterEvents = teed
	}

	presenter := ui.NewPresenter(ui.Config{
		Writer:    os.Stdout,
		ErrWriter: os.Stderr,
		Stats:     collector,
		Quiet:     f.quiet,
		Verbose:   f.verbose,
	})

	engineCfg := engine.Config{
		Op:              op,
		Files:           files,
		OutputDir:       f.output,
		Password:        pw,
		Workers:         workers,
		ChunkSize:       int(chunkSize),
		StreamThreshold: streamThreshold,
		Iterations:      f.iterations,
		ForceStream:     f.forceStream,
		Compress:        f.compress,
		Preserve:        f.preserve,
		DryRun:          f.dryRun,
		OnConflict:      strategy,
		Events:          events,
		Stats:           collector,
	}

	slog.Debug("starting batch",
		"op", op.String(),
		"files", len(files),
		"workers", workers,
		"conflict", string(strategy),
	)

	var presenterErr error
	var presenterWg sync.WaitGroup
	presenterWg.Add(1)
	go func() {
		defer presenterWg.Done()
		presenterErr = presenter.Run(presenterEvents)
	}()

	result := engine.Run(ctx, engineCfg)
	stop()
	close(events)
	presenterWg.Wait()
	if presenterErr != nil {
		fmt.Fprintf(os.Stderr, "presenter: %v\n", presenterErr)
	}

	if !f.quiet {
		summary := presenter.Summary()
		if summary != "" {
			fmt.Fprintln(os.Stderr, summary)
		}
	}

	if result.Err != nil {
		slog.Error("batch failed", "error", result.Err)
		if result.Successful > 0 {
			return &exitError{code: 1}
		}
		return &exitError{code: 2}
	}
	if result.Failed > 0 {
		if result.Successful > 0 {
			return &exitError{code: 1} // partial failure
		}
		return &exitError{code: 2} // total failure
	}

	return nil
}

// collectInputs merges explicit file arguments with a --directory glob
// walk. Order is explicit args first, then collected files.
func collectInputs(args []string, f *batchFlags) ([]string, error) {
	files := make([]string, 0, len(args)+len(f.files))
	files = append(files, args...)
	files = append(files, f.files...)

	if f.directory != "" {
		collected, err := fileset.Collect(f.directory, f.patterns)
		if err != nil {
			return nil, fmt.Errorf("collect %s: %w", f.directory, err)
		}
		files = append(files, collected...)
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("no input files: pass file arguments or --directory")
	}
	return files, nil
}

// readPassword picks the password source: flag, environment variable,
// or interactive prompt. Encryption prompts twice to catch typos.
func readPassword(f *batchFlags, op engine.Op) ([]byte, error) {
	var src password.Source
	switch {
	case f.passwordFlag != "":
		src = password.Static(f.passwordFlag)
	case f.passwordEnv != "":
		src = password.Env(f.passwordEnv)
	default:
		src = &password.Terminal{Confirm: op == engine.OpEncrypt}
	}
	pw, err := src.Password()
	if err != nil {
		return nil, fmt.Errorf("read password: %w", err)
	}
	return pw, nil
}

// applyConfigDefaults applies config file defaults for flags not explicitly set on the CLI.
func applyConfigDefaults(cmd *cobra.Command, defaults config.DefaultsConfig, f *batchFlags) {
	if !cmd.Flags().Changed("parallel") && defaults.Parallel != nil {
		f.parallel = *defaults.Parallel
	}
	if !cmd.Flags().Changed("chunk-size") && defaults.ChunkSize != nil {
		f.chunkSizeStr = *defaults.ChunkSize
	}
	if !cmd.Flags().Changed("stream-threshold") && defaults.StreamThreshold != nil {
		f.streamThreshold = *defaults.StreamThreshold
	}
	if !cmd.Flags().Changed("on-conflict") && defaults.OnConflict != nil {
		f.onConflict = *defaults.OnConflict
	}
	if !cmd.Flags().Changed("preserve") && defaults.Preserve != nil {
		f.preserve = *defaults.Preserve
	}
	if fl := cmd.Flags().Lookup("compress"); fl != nil && !fl.Changed && defaults.Compress != nil {
		f.compress = *defaults.Compress
	}
}

type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit code %d", e.code)
}
