// Package qrcode renders verification URLs as scannable PNG images.
package qrcode

import (
	"errors"
	"fmt"

	goqrcode "github.com/skip2/go-qrcode"
)

const DefaultSize = 256

var ErrEmptyContent = errors.New("qrcode: empty content")

type Renderer struct {
	Size  int
	Level goqrcode.RecoveryLevel
}

// NewRenderer returns a renderer producing size x size PNGs with medium error
// recovery. A non-positive size falls back to DefaultSize.
func NewRenderer(size int) *Renderer {
	if size <= 0 {
		size = DefaultSize
	}
	return &Renderer{Size: size, Level: goqrcode.Medium}
}

// PNG encodes content. The output depends only on content and the renderer's
// settings.
func (r *Renderer) PNG(content string) ([]byte, error) {
	if content == "" {
		return nil, ErrEmptyContent
	}
	png, err := goqrcode.Encode(content, r.Level, r.Size)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return png, nil
}
