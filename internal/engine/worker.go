package engine

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/akiel/sealbox/internal/crypt"
	"github.com/akiel/sealbox/internal/event"
	"github.com/akiel/sealbox/internal/platform"
	"github.com/akiel/sealbox/internal/resolve"
	"github.com/akiel/sealbox/internal/stats"
)

// worker processes individual file tasks. One worker value is shared by
// all pool goroutines; it holds no per-task state.
type worker struct {
	op       Op
	password []byte
	codec    *crypt.Codec
	resolver *resolve.Resolver
	dryRun   bool
	preserve bool
	stats    *stats.Collector
	events   chan<- event.Event
}

func (w *worker) process(ctx context.Context, task FileTask) FileResult {
	res := FileResult{
		InputPath:    task.InputPath,
		OutputPath:   task.OutputPath,
		OriginalSize: task.Size,
		Streamed:     task.Stream,
	}

	w.emit(event.Event{Type: event.FileStarted, Path: task.InputPath, BytesTotal: task.Size})

	if c := w.resolver.Detect(task.InputPath, task.OutputPath, w.op.String()); c != nil {
		r, err := w.resolver.Resolve(c)
		if err != nil {
			return w.fail(res, err)
		}
		if r.Action == resolve.Skipped {
			res.Success = true
			res.Skipped = true
			w.stats.AddFilesProcessed(1)
			w.stats.AddFilesSkipped(1)
			w.emit(event.Event{Type: event.FileSkipped, Path: task.InputPath, OutputPath: task.OutputPath})
			return res
		}
		res.OutputPath = r.Destination
		res.BackupPath = r.BackupPath
		w.emit(event.Event{Type: event.ConflictResolved, Path: task.InputPath, OutputPath: r.Destination})
		if r.BackupPath != "" {
			w.emit(event.Event{Type: event.BackupCreated, Path: task.InputPath, OutputPath: r.BackupPath})
		}
	}

	if w.dryRun {
		res.Success = true
		w.stats.AddFilesProcessed(1)
		w.emit(event.Event{Type: event.FileCompleted, Path: task.InputPath, OutputPath: res.OutputPath})
		return res
	}

	if err := w.writeOutput(ctx, task, &res); err != nil {
		return w.fail(res, err)
	}

	res.Success = true
	w.stats.AddFilesProcessed(1)
	w.stats.AddBytesIn(task.Size)
	w.stats.AddBytesOut(res.ResultSize)
	if res.Streamed {
		w.stats.AddFilesStreamed(1)
	}
	w.emit(event.Event{
		Type:       event.FileCompleted,
		Path:       task.InputPath,
		OutputPath: res.OutputPath,
		BytesDone:  task.Size,
		BytesTotal: task.Size,
		Streamed:   res.Streamed,
	})
	return res
}

func (w *worker) fail(res FileResult, err error) FileResult {
	res.Err = err
	w.stats.AddFilesFailed(1)
	w.emit(event.Event{Type: event.FileFailed, Path: res.InputPath, OutputPath: res.OutputPath, Error: err})
	return res
}

// writeOutput runs the codec from the input file into a temporary file
// next to the destination, then renames atomically. A failure at any
// point removes the temporary, so a half-written container can never be
// taken for a successful output.
func (w *worker) writeOutput(ctx context.Context, task FileTask, res *FileResult) error {
	in, err := os.Open(task.InputPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", task.InputPath, err)
	}
	defer in.Close()

	dir := filepath.Dir(res.OutputPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir %s: %w", dir, err)
	}

	tmpPath := filepath.Join(dir, fmt.Sprintf(".%s.%s.sealbox-tmp", filepath.Base(res.OutputPath), uuid.New().String()[:8]))
	registerTmp(tmpPath)
	defer func() {
		deregisterTmp(tmpPath)
		_ = os.Remove(tmpPath) // no-op if rename succeeded
	}()

	out, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("create tmp %s: %w", tmpPath, err)
	}

	// The container is within a few KiB of the input size either way, so
	// the input size is a good enough allocation hint.
	platform.Preallocate(out, task.Size)

	bw := bufio.NewWriter(out)
	cw := &countingWriter{w: bw}
	progress := func(done, total int64) {
		w.emit(event.Event{
			Type:       event.FileProgress,
			Path:       task.InputPath,
			BytesDone:  done,
			BytesTotal: total,
		})
	}

	if err := w.runCodec(ctx, task, in, cw, res, progress); err != nil {
		out.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		out.Close()
		return fmt.Errorf("flush %s: %w", tmpPath, err)
	}

	if w.preserve {
		if err := preserveMetadata(tmpPath, task.Mode, task.ModTime); err != nil {
			out.Close()
			return err
		}
	}

	if err := out.Close(); err != nil {
		return fmt.Errorf("close tmp %s: %w", tmpPath, err)
	}

	res.ResultSize = cw.n

	// When overwriting, an existing output that already matches byte for
	// byte is kept as is. Re-running a decrypt over its own previous
	// output then touches nothing.
	if resolve.HasConflict(res.OutputPath) {
		same, idErr := resolve.FilesIdentical(tmpPath, res.OutputPath)
		if idErr == nil && same {
			return nil
		}
	}

	if err := os.Rename(tmpPath, res.OutputPath); err != nil {
		return fmt.Errorf("rename %s -> %s: %w", tmpPath, res.OutputPath, err)
	}
	return nil
}

func (w *worker) runCodec(ctx context.Context, task FileTask, in io.Reader, out io.Writer, res *FileResult, progress crypt.ProgressFunc) error {
	switch w.op {
	case OpEncrypt:
		if task.Stream {
			return w.codec.EncryptStream(ctx, in, out, w.password, task.Size, progress)
		}
		plaintext, err := io.ReadAll(in)
		if err != nil {
			return fmt.Errorf("read %s: %w", task.InputPath, err)
		}
		sealed, err := w.codec.Encrypt(plaintext, w.password)
		if err != nil {
			return err
		}
		if _, err := out.Write(sealed); err != nil {
			return fmt.Errorf("write container: %w", err)
		}
		progress(task.Size, task.Size)
		return nil

	case OpDecrypt:
		info, err := w.codec.DecryptStream(ctx, in, out, w.password, task.Size, progress)
		if err != nil {
			return err
		}
		res.Streamed = info.Streamed
		return nil

	default:
		return fmt.Errorf("unknown operation %d", w.op)
	}
}

func (w *worker) emit(e event.Event) {
	if w.events == nil {
		return
	}
	e.Timestamp = time.Now()
	select {
	case w.events <- e:
	default:
	}
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
