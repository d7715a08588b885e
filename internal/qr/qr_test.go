package qr

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoinURL(t *testing.T) {
	g := NewGenerator("https://gigs.example.com/", 0)
	assert.Equal(t, "https://gigs.example.com/gig/abc123", g.JoinURL("abc123"))
	assert.Equal(t, "https://gigs.example.com/gig/a%2Fb", g.JoinURL("a/b"))
}

func TestPNG(t *testing.T) {
	g := NewGenerator("https://gigs.example.com", 300)
	data, err := g.PNG("abc123")
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 300, img.Bounds().Dx())
	assert.Equal(t, 300, img.Bounds().Dy())

	_, err = g.PNG(" ")
	assert.Error(t, err)
}
