package auth

import (
	"fmt"
	"io"

	"github.com/pkg/browser"
)

// OpenBrowser opens url in the user's default browser.
func OpenBrowser(url string) error {
	// pkg/browser echoes the launcher's output to its own writers by default.
	browser.Stdout = io.Discard
	browser.Stderr = io.Discard
	if err := browser.OpenURL(url); err != nil {
		return fmt.Errorf("opening browser: %w", err)
	}
	return nil
}
