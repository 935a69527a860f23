// Package confirm provides the continue-or-abort decision taken when a
// synchronization or cut runs into a condition that is probably a mistake.
package confirm

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrAborted is returned when the decision function declines to continue.
var ErrAborted = errors.New("aborted")

// Func decides whether to carry on after the problem described by reason.
type Func func(reason string) bool

// Abort never continues. It is the default for unattended callers.
func Abort(string) bool { return false }

// Continue always carries on.
func Continue(string) bool { return true }

// Prompt asks on out and reads the answer from in. Only an explicit "n"
// aborts; an empty answer or end of input continues.
func Prompt(in io.Reader, out io.Writer) Func {
	reader := bufio.NewReader(in)
	return func(reason string) bool {
		fmt.Fprintf(out, "%s\ncontinue? y/n\n", reason)
		answer, err := reader.ReadString('\n')
		if err != nil && answer == "" {
			return true
		}
		return strings.TrimSpace(strings.ToLower(answer)) != "n"
	}
}

// Ask consults f (Abort when nil) and returns ErrAborted, wrapped with
// reason, when it declines.
func Ask(f Func, reason string) error {
	if f == nil {
		f = Abort
	}
	if f(reason) {
		return nil
	}
	return fmt.Errorf("%s: %w", reason, ErrAborted)
}
