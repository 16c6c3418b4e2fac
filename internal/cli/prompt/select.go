package prompt

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ktr0731/go-fuzzyfinder"

	"github.com/thoreinstein/pnpm-catalog/internal/errors"
)

// Sentinel errors for item selection.
var (
	ErrNoItems          = errors.New("no items to select from")
	ErrInvalidSelection = errors.New("invalid selection")
)

// Picker chooses one of several labelled items and returns its index.
// preview, when non-nil, describes item i in more detail.
type Picker interface {
	Pick(title string, labels []string, preview func(i int) string) (int, error)
}

// Selector is a Picker that prints a numbered list and reads the choice
// from a line-oriented reader.
type Selector struct {
	reader *bufio.Reader
	writer io.Writer
}

// NewSelector creates a Selector with the given reader and writer.
func NewSelector(r io.Reader, w io.Writer) *Selector {
	return &Selector{reader: bufio.NewReader(r), writer: w}
}

// Pick prompts the user to choose from labels.
//
// Returns:
//   - ErrNoItems if the list is empty
//   - 0 if only one item exists (auto-selects without prompting)
//   - The selected index based on user input, defaulting to the first item
//   - ErrInvalidSelection if the selection is out of range
//   - ErrSelectionCancelled if input is EOF (e.g., Ctrl+D)
func (s *Selector) Pick(title string, labels []string, _ func(int) string) (int, error) {
	if len(labels) == 0 {
		return -1, ErrNoItems
	}

	if len(labels) == 1 {
		return 0, nil
	}

	fmt.Fprintf(s.writer, "%s:\n", title)
	for i, label := range labels {
		fmt.Fprintf(s.writer, "  [%d] %s\n", i+1, label)
	}
	fmt.Fprintf(s.writer, "Select [1]: ")

	input, err := s.reader.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && strings.TrimSpace(input) == "" {
			return -1, ErrSelectionCancelled
		}
		if !errors.Is(err, io.EOF) {
			return -1, errors.Wrap(err, "reading selection")
		}
	}

	input = strings.TrimSpace(input)
	if input == "" {
		return 0, nil
	}

	selection, err := strconv.Atoi(input)
	if err != nil {
		return -1, errors.Wrapf(ErrInvalidSelection, "%q is not a number", input)
	}

	if selection < 1 || selection > len(labels) {
		return -1, errors.Wrapf(ErrInvalidSelection, "%d is out of range [1-%d]", selection, len(labels))
	}

	return selection - 1, nil
}

// FuzzyPicker is a full-screen fuzzy finder.
type FuzzyPicker struct{}

// Pick opens the finder over labels. Escape or Ctrl+C yields
// ErrSelectionCancelled.
func (FuzzyPicker) Pick(title string, labels []string, preview func(int) string) (int, error) {
	if len(labels) == 0 {
		return -1, ErrNoItems
	}

	opts := []fuzzyfinder.Option{fuzzyfinder.WithHeader(title)}
	if preview != nil {
		opts = append(opts, fuzzyfinder.WithPreviewWindow(func(i, _, _ int) string {
			if i == -1 {
				return ""
			}
			return preview(i)
		}))
	}

	idx, err := fuzzyfinder.Find(labels, func(i int) string { return labels[i] }, opts...)
	if err != nil {
		if errors.Is(err, fuzzyfinder.ErrAbort) {
			return -1, ErrSelectionCancelled
		}
		return -1, errors.Wrap(err, "interactive selection failed")
	}
	return idx, nil
}
