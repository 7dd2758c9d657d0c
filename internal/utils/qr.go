package utils

import (
	"fmt"

	"github.com/skip2/go-qrcode"
)

const minQRSize = 64

// RenderQRCode encodes content as a PNG QR image of size x size pixels.
func RenderQRCode(content string, size int) ([]byte, error) {
	if content == "" {
		return nil, fmt.Errorf("qr content is empty")
	}
	if size < minQRSize {
		size = minQRSize
	}

	qr, err := qrcode.New(content, qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("failed to encode qr code: %w", err)
	}
	png, err := qr.PNG(size)
	if err != nil {
		return nil, fmt.Errorf("failed to render qr code: %w", err)
	}
	return png, nil
}
