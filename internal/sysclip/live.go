package sysclip

import (
	"fmt"
	"sync"

	"golang.design/x/clipboard"

	"clipd/internal/clip"
)

var initOnce sync.Once
var initErr error

// Live is the real system clipboard via golang.design/x/clipboard.
// Image content is read and written as PNG.
type Live struct{}

// NewLive initializes the clipboard bindings once and returns the live
// device. Fails on headless systems without clipboard access.
func NewLive() (*Live, error) {
	initOnce.Do(func() {
		initErr = clipboard.Init()
	})
	if initErr != nil {
		return nil, fmt.Errorf("init system clipboard: %w", initErr)
	}
	return &Live{}, nil
}

func (l *Live) Read() (clip.Payload, error) {
	// Image takes precedence: a copied image often carries a text
	// representation (file name) alongside.
	if img := clipboard.Read(clipboard.FmtImage); len(img) > 0 {
		return clip.Payload{Image: img}, nil
	}
	if text := clipboard.Read(clipboard.FmtText); len(text) > 0 {
		return clip.Payload{Text: string(text)}, nil
	}
	return clip.Payload{}, nil
}

func (l *Live) Write(p clip.Payload) error {
	if p.IsImage() {
		clipboard.Write(clipboard.FmtImage, p.Image)
		return nil
	}
	clipboard.Write(clipboard.FmtText, []byte(p.Text))
	return nil
}
