package clip

import (
	"fmt"
	"runtime"

	"github.com/atotto/clipboard"
)

type execPort struct{}

// newExec returns a Port that shells out to the platform clipboard tools.
func newExec() (Port, error) {
	if clipboard.Unsupported {
		return nil, fmt.Errorf("%w: no clipboard utility found on %s", ErrUnavailable, runtime.GOOS)
	}
	return execPort{}, nil
}

func (execPort) Name() string { return "exec (github.com/atotto/clipboard)" }

func (execPort) Read() (string, error) {
	text, err := clipboard.ReadAll()
	if err != nil {
		return "", fmt.Errorf("%w: read: %v", ErrUnavailable, err)
	}
	return text, nil
}

func (execPort) Write(text string) error {
	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("%w: write: %v", ErrUnavailable, err)
	}
	return nil
}
