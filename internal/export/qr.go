package export

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/skip2/go-qrcode"
)

// ShareURL is the public link of a trip.
func ShareURL(baseURL, tripID string) string {
	return strings.TrimRight(baseURL, "/") + "/api/trips/" + url.PathEscape(tripID)
}

// QRCode encodes content as a size x size PNG.
func QRCode(content string, size int) ([]byte, error) {
	if size <= 0 {
		size = 256
	}
	png, err := qrcode.Encode(content, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encoding QR code: %w", err)
	}
	return png, nil
}
