package render

import (
	"fmt"
	"image"

	qrcode "github.com/skip2/go-qrcode"
)

// QRImage encodes value as a square QR code of size pixels.
func QRImage(value string, size int) (image.Image, error) {
	if size < 21 {
		size = 21
	}
	q, err := qrcode.New(value, qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return q.Image(size), nil
}

// QRPNG encodes value as a PNG QR code.
func QRPNG(value string, size int) ([]byte, error) {
	png, err := qrcode.Encode(value, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return png, nil
}
