package clip

import (
	"fmt"

	"golang.design/x/clipboard"
)

type nativePort struct{}

// newNative initialises golang.design/x/clipboard. Init is called here
// rather than in init() so that CLI sub-commands that never touch the
// clipboard don't fail on headless systems.
func newNative() (Port, error) {
	if err := clipboard.Init(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nativePort{}, nil
}

func (nativePort) Name() string { return "native (golang.design/x/clipboard)" }

func (nativePort) Read() (string, error) {
	return string(clipboard.Read(clipboard.FmtText)), nil
}

func (nativePort) Write(text string) error {
	clipboard.Write(clipboard.FmtText, []byte(text))
	return nil
}
