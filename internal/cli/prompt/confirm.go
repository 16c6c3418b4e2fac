// Package prompt provides interactive CLI prompts for user input.
package prompt

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	"github.com/thoreinstein/pnpm-catalog/internal/errors"
)

// ErrSelectionCancelled indicates the user aborted a prompt.
var ErrSelectionCancelled = errors.New("selection cancelled")

// Confirmer asks the user a yes/no question.
type Confirmer interface {
	Confirm(message string) (bool, error)
}

// LineConfirmer reads a y/N answer from a line-oriented reader. Only "y" or
// "yes" (case-insensitive) confirm; EOF declines.
type LineConfirmer struct {
	reader *bufio.Reader
	writer io.Writer
}

// NewLineConfirmer creates a LineConfirmer for r and w.
func NewLineConfirmer(r io.Reader, w io.Writer) *LineConfirmer {
	return &LineConfirmer{reader: bufio.NewReader(r), writer: w}
}

// Confirm prints message with a [y/N] suffix and reads one line.
func (c *LineConfirmer) Confirm(message string) (bool, error) {
	fmt.Fprintf(c.writer, "%s [y/N]: ", message)

	response, err := c.reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, errors.Wrap(err, "reading confirmation")
	}

	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes", nil
}

// HuhConfirmer renders a terminal confirm dialog.
type HuhConfirmer struct{}

// Confirm shows message with Yes/No choices defaulting to No. Aborting the
// dialog (Ctrl+C or Esc) declines.
func (HuhConfirmer) Confirm(message string) (bool, error) {
	var ok bool
	err := huh.NewConfirm().
		Title(message).
		Affirmative("Yes").
		Negative("No").
		Value(&ok).
		Run()
	if err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, nil
		}
		return false, errors.Wrap(err, "running confirm prompt")
	}
	return ok, nil
}

// AssumeYes confirms everything without asking.
type AssumeYes struct{}

// Confirm always returns true.
func (AssumeYes) Confirm(string) (bool, error) {
	return true, nil
}

// New returns the Confirmer and Picker for one invocation. Outside a
// terminal both read from a single buffered reader so answers piped on
// stdin are consumed in order.
func New(in io.Reader, out io.Writer, yes bool) (Confirmer, Picker) {
	if isTerminal(in) && isTerminal(out) {
		if yes {
			return AssumeYes{}, FuzzyPicker{}
		}
		return HuhConfirmer{}, FuzzyPicker{}
	}

	br := bufio.NewReader(in)
	var c Confirmer = NewLineConfirmer(br, out)
	if yes {
		c = AssumeYes{}
	}
	return c, NewSelector(br, out)
}

func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
