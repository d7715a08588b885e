// Package qr renders the join code an artist shows on stage so the audience
// can open the live gig page.
package qr

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/skip2/go-qrcode"
)

const DefaultSize = 256

type Generator struct {
	baseURL string
	size    int
}

func NewGenerator(baseURL string, size int) *Generator {
	if size <= 0 {
		size = DefaultSize
	}
	return &Generator{baseURL: strings.TrimRight(baseURL, "/"), size: size}
}

// JoinURL is the audience link for a gig.
func (g *Generator) JoinURL(gigID string) string {
	return fmt.Sprintf("%s/gig/%s", g.baseURL, url.PathEscape(gigID))
}

// PNG encodes the gig's join link as a QR code image.
func (g *Generator) PNG(gigID string) ([]byte, error) {
	if strings.TrimSpace(gigID) == "" {
		return nil, fmt.Errorf("qr: empty gig id")
	}
	png, err := qrcode.Encode(g.JoinURL(gigID), qrcode.Medium, g.size)
	if err != nil {
		return nil, fmt.Errorf("qr: encode %s: %w", gigID, err)
	}
	return png, nil
}
