// Package engine orchestrates batch encryption and decryption: it
// decides per file between whole-file and chunked processing, runs files
// under a bounded worker pool, resolves destination conflicts, and
// aggregates per-file outcomes into a batch result.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/akiel/sealbox/internal/crypt"
	"github.com/akiel/sealbox/internal/event"
	"github.com/akiel/sealbox/internal/kdf"
	"github.com/akiel/sealbox/internal/resolve"
	"github.com/akiel/sealbox/internal/stats"
)

const (
	// DefaultWorkers bounds concurrent file tasks.
	DefaultWorkers = 4

	// DefaultStreamThreshold is the size above which files are
	// encrypted in chunked mode.
	DefaultStreamThreshold = 10 * 1024 * 1024
)

// ErrInvalidInput wraps batch-construction failures: nothing has been
// processed when it is returned.
var ErrInvalidInput = errors.New("invalid input")

// Config describes a batch operation.
type Config struct {
	Op              Op
	Files           []string
	OutputDir       string
	Password        []byte
	Workers         int   // 0 means DefaultWorkers
	ChunkSize       int   // 0 means crypt.DefaultChunkSize
	StreamThreshold int64 // 0 means DefaultStreamThreshold
	Iterations      int   // 0 means kdf.DefaultIterations
	ForceStream     bool
	Compress        bool
	Preserve        bool
	DryRun          bool
	OnConflict      resolve.Strategy // empty means resolve.Skip
	Events          chan<- event.Event
	Stats           *stats.Collector
}

// Run executes a batch, blocking until all files are processed or ctx
// is cancelled. One file's failure never aborts the batch; only input
// validation does.
func Run(ctx context.Context, cfg Config) Result {
	applyDefaults(&cfg)

	if err := validate(cfg); err != nil {
		return Result{Err: err}
	}

	codec, err := crypt.New(
		crypt.WithChunkSize(cfg.ChunkSize),
		crypt.WithIterations(cfg.Iterations),
		crypt.WithCompression(cfg.Compress),
	)
	if err != nil {
		return Result{Err: fmt.Errorf("%w: %v", ErrInvalidInput, err)}
	}

	resolver, err := resolve.New(cfg.OnConflict)
	if err != nil {
		return Result{Err: fmt.Errorf("%w: %v", ErrInvalidInput, err)}
	}

	tasks, err := buildTasks(cfg)
	if err != nil {
		return Result{Err: err}
	}

	collector := cfg.Stats
	if collector == nil {
		collector = stats.NewCollector()
	}
	var totalBytes int64
	for _, t := range tasks {
		totalBytes += t.Size
	}
	collector.SetTotals(int64(len(tasks)), totalBytes)

	emit(cfg.Events, event.Event{Type: event.BatchStarted, BytesTotal: totalBytes})

	w := &worker{
		op:       cfg.Op,
		password: cfg.Password,
		codec:    codec,
		resolver: resolver,
		dryRun:   cfg.DryRun,
		preserve: cfg.Preserve,
		stats:    collector,
		events:   cfg.Events,
	}

	results := make([]FileResult, len(tasks))
	defer CleanupTmpFiles()

	pool{workers: cfg.Workers}.run(ctx, len(tasks), func(ctx context.Context, i int) {
		results[i] = w.process(ctx, tasks[i])
	})

	// Tasks never dispatched because of cancellation have an empty
	// result slot; record the cancellation so the batch accounting
	// stays consistent.
	if ctx.Err() != nil {
		for i := range results {
			if results[i].InputPath == "" {
				results[i] = FileResult{
					InputPath:    tasks[i].InputPath,
					OutputPath:   tasks[i].OutputPath,
					OriginalSize: tasks[i].Size,
					Err:          ctx.Err(),
				}
				collector.AddFilesFailed(1)
			}
		}
	}

	res := aggregate(results, collector)
	res.Err = ctx.Err()
	emit(cfg.Events, event.Event{Type: event.BatchCompleted, BytesDone: res.BytesIn, BytesTotal: totalBytes})
	return res
}

func applyDefaults(cfg *Config) {
	if cfg.Workers == 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = crypt.DefaultChunkSize
	}
	if cfg.StreamThreshold == 0 {
		cfg.StreamThreshold = DefaultStreamThreshold
	}
	if cfg.Iterations == 0 {
		cfg.Iterations = kdf.DefaultIterations
	}
	if cfg.OnConflict == "" {
		cfg.OnConflict = resolve.Skip
	}
}

func validate(cfg Config) error {
	if len(cfg.Files) == 0 {
		return fmt.Errorf("%w: no input files", ErrInvalidInput)
	}
	if len(cfg.Password) == 0 {
		return fmt.Errorf("%w: empty password", ErrInvalidInput)
	}
	if cfg.Workers < 1 {
		return fmt.Errorf("%w: concurrency must be positive, got %d", ErrInvalidInput, cfg.Workers)
	}
	if cfg.ChunkSize < 0 {
		return fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidInput, cfg.ChunkSize)
	}
	if cfg.StreamThreshold < 0 {
		return fmt.Errorf("%w: stream threshold must be positive, got %d", ErrInvalidInput, cfg.StreamThreshold)
	}
	return nil
}

// buildTasks stats every input up front: a missing or irregular input
// fails the whole batch before any work starts.
func buildTasks(cfg Config) ([]FileTask, error) {
	tasks := make([]FileTask, 0, len(cfg.Files))
	for _, path := range cfg.Files {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		if !info.Mode().IsRegular() {
			return nil, fmt.Errorf("%w: %s is not a regular file", ErrInvalidInput, path)
		}

		task := FileTask{
			InputPath: path,
			Size:      info.Size(),
			Mode:      info.Mode(),
			ModTime:   info.ModTime(),
		}
		switch cfg.Op {
		case OpEncrypt:
			task.OutputPath = EncryptedPath(path, cfg.OutputDir)
			task.Stream = cfg.ForceStream || info.Size() > cfg.StreamThreshold
		case OpDecrypt:
			task.OutputPath = DecryptedPath(path, cfg.OutputDir)
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

func aggregate(results []FileResult, collector *stats.Collector) Result {
	res := Result{
		Total: len(results),
		Files: results,
	}
	for _, fr := range results {
		switch {
		case fr.Success && fr.Skipped:
			res.Successful++
			res.Skipped++
		case fr.Success:
			res.Successful++
		default:
			res.Failed++
		}
		if fr.Streamed && fr.Success && !fr.Skipped {
			res.Streamed++
		}
		if fr.Success && !fr.Skipped {
			res.BytesIn += fr.OriginalSize
			res.BytesOut += fr.ResultSize
		}
	}
	res.Elapsed = collector.Elapsed()
	return res
}

func emit(ch chan<- event.Event, e event.Event) {
	if ch == nil {
		return
	}
	e.Timestamp = time.Now()
	select {
	case ch <- e:
	default:
	}
}
