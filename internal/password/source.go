// Package password provides the capability that hands the engine a
// plain password, whether it came from a flag, the environment, or an
// interactive prompt.
package password

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// ErrUnavailable is returned when a source cannot produce a password
// (unset env var, closed terminal). An unavailable source is an ordinary
// failure, never a crash.
var ErrUnavailable = errors.New("password unavailable")

var ErrEmpty = errors.New("password must not be empty")

// ErrMismatch is returned when the confirmation prompt does not match.
var ErrMismatch = errors.New("passwords do not match")

// Source produces a password for one batch run. The returned buffer is
// owned by the caller, which should zero it after use.
type Source interface {
	Password() ([]byte, error)
}

// Static wraps a password already in hand (e.g. a --password flag).
type Static []byte

func (s Static) Password() ([]byte, error) {
	if len(s) == 0 {
		return nil, ErrEmpty
	}
	return bytes.Clone(s), nil
}

// Env reads the password from a named environment variable.
type Env string

func (e Env) Password() ([]byte, error) {
	v, ok := os.LookupEnv(string(e))
	if !ok {
		return nil, fmt.Errorf("%w: environment variable %s not set", ErrUnavailable, string(e))
	}
	if v == "" {
		return nil, ErrEmpty
	}
	return []byte(v), nil
}

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

// Terminal prompts on the user's terminal without echo. With Confirm
// set the password is read twice and both reads must match (used for
// encryption, where a typo would lock the data away).
type Terminal struct {
	Out     io.Writer
	Confirm bool
}

func (p *Terminal) Password() ([]byte, error) {
	out := p.Out
	if out == nil {
		out = os.Stderr
	}

	pw, err := p.prompt(out, "Enter password: ")
	if err != nil {
		return nil, err
	}
	if len(pw) == 0 {
		return nil, ErrEmpty
	}

	if p.Confirm {
		again, err := p.prompt(out, "Confirm password: ")
		if err != nil {
			return nil, err
		}
		match := bytes.Equal(pw, again)
		for i := range again {
			again[i] = 0
		}
		if !match {
			return nil, ErrMismatch
		}
	}
	return pw, nil
}

func (p *Terminal) prompt(out io.Writer, msg string) ([]byte, error) {
	if _, err := fmt.Fprint(out, msg); err != nil {
		return nil, err
	}
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(out)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return pw, nil
}
