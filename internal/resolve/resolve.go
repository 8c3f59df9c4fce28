// Package resolve decides what happens when an operation's destination
// path already exists.
package resolve

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Strategy names a conflict-resolution policy.
type Strategy string

const (
	// Skip leaves the existing destination untouched and reports the
	// task as skipped.
	Skip Strategy = "skip"
	// Overwrite proceeds, replacing the destination.
	Overwrite Strategy = "overwrite"
	// Rename finds an unused numbered variant of the destination.
	Rename Strategy = "rename"
	// Backup moves the existing destination aside before proceeding.
	Backup Strategy = "backup"
	// Newer proceeds only when the source is newer than the destination.
	Newer Strategy = "newer"
	// Older proceeds only when the source is older than the destination.
	Older Strategy = "older"
)

// ErrUnresolved is returned when a strategy cannot produce a usable
// destination (rename attempts exhausted, unknown strategy).
var ErrUnresolved = errors.New("conflict unresolved")

// ParseStrategy validates a strategy name from config or CLI.
func ParseStrategy(s string) (Strategy, error) {
	switch st := Strategy(strings.ToLower(s)); st {
	case Skip, Overwrite, Rename, Backup, Newer, Older:
		return st, nil
	default:
		return "", fmt.Errorf("%w: unknown strategy %q", ErrUnresolved, s)
	}
}

// Action is the resolver's verdict for one conflict.
type Action int

const (
	// Proceed writes to the (possibly renamed) destination.
	Proceed Action = iota
	// Skipped leaves the destination alone; not an error.
	Skipped
)

// Conflict records a detected destination collision. Ephemeral; never
// persisted.
type Conflict struct {
	Source      string
	Destination string
	Operation   string
}

// Resolution is the outcome of resolving a Conflict.
type Resolution struct {
	Action      Action
	Destination string // final destination when Action == Proceed
	BackupPath  string // set when the existing file was moved aside
}

// Resolver applies a configured strategy to destination collisions.
type Resolver struct {
	strategy     Strategy
	maxAttempts  int
	backupSuffix string
}

const defaultMaxAttempts = 1000

// New creates a Resolver for the given strategy.
func New(strategy Strategy) (*Resolver, error) {
	if _, err := ParseStrategy(string(strategy)); err != nil {
		return nil, err
	}
	return &Resolver{
		strategy:     strategy,
		maxAttempts:  defaultMaxAttempts,
		backupSuffix: ".bak",
	}, nil
}

// Strategy returns the configured strategy.
func (r *Resolver) Strategy() Strategy { return r.strategy }

// HasConflict reports whether path already exists.
func HasConflict(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// Detect returns a Conflict when destination already exists, nil
// otherwise.
func (r *Resolver) Detect(source, destination, operation string) *Conflict {
	if !HasConflict(destination) {
		return nil
	}
	return &Conflict{Source: source, Destination: destination, Operation: operation}
}

// Resolve applies the strategy to a detected conflict. For Backup the
// existing destination is moved aside as a side effect.
func (r *Resolver) Resolve(c *Conflict) (Resolution, error) {
	switch r.strategy {
	case Skip:
		return Resolution{Action: Skipped, Destination: c.Destination}, nil

	case Overwrite:
		return Resolution{Action: Proceed, Destination: c.Destination}, nil

	case Rename:
		dst, err := r.numberedVariant(c.Destination)
		if err != nil {
			return Resolution{}, err
		}
		return Resolution{Action: Proceed, Destination: dst}, nil

	case Backup:
		backup, err := r.numberedVariant(c.Destination + r.backupSuffix)
		if err != nil {
			return Resolution{}, err
		}
		if err := os.Rename(c.Destination, backup); err != nil {
			return Resolution{}, fmt.Errorf("move %s aside: %w", c.Destination, err)
		}
		return Resolution{Action: Proceed, Destination: c.Destination, BackupPath: backup}, nil

	case Newer, Older:
		proceed, err := r.compareTimes(c)
		if err != nil {
			return Resolution{}, err
		}
		action := Skipped
		if proceed {
			action = Proceed
		}
		return Resolution{Action: action, Destination: c.Destination}, nil

	default:
		return Resolution{}, fmt.Errorf("%w: strategy %q", ErrUnresolved, r.strategy)
	}
}

// numberedVariant finds an unused path derived from base by inserting a
// numbered suffix before the extension. The base itself is tried first.
func (r *Resolver) numberedVariant(base string) (string, error) {
	if !HasConflict(base) {
		return base, nil
	}
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	for i := 1; i <= r.maxAttempts; i++ {
		candidate := fmt.Sprintf("%s (%d)%s", stem, i, ext)
		if !HasConflict(candidate) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: no free name for %s after %d attempts", ErrUnresolved, base, r.maxAttempts)
}

func (r *Resolver) compareTimes(c *Conflict) (bool, error) {
	srcInfo, err := os.Stat(c.Source)
	if err != nil {
		return false, fmt.Errorf("stat source: %w", err)
	}
	dstInfo, err := os.Stat(c.Destination)
	if err != nil {
		return false, fmt.Errorf("stat destination: %w", err)
	}
	if r.strategy == Newer {
		return srcInfo.ModTime().After(dstInfo.ModTime()), nil
	}
	return srcInfo.ModTime().Before(dstInfo.ModTime()), nil
}
