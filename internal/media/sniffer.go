// Package media identifies uploaded image formats from their leading bytes.
package media

import (
	"bytes"
	"errors"
	"io"
	"strings"
)

// ImageType names an accepted logo format.
type ImageType string

const (
	TypeJPEG ImageType = "jpeg"
	TypePNG  ImageType = "png"
	TypeWEBP ImageType = "webp"
	TypeSVG  ImageType = "svg"
)

// ErrUnsupportedType is returned for anything other than png, jpeg, webp or svg.
var ErrUnsupportedType = errors.New("unsupported image type")

// Result describes a detected image.
type Result struct {
	Type      ImageType
	MIME      string
	Extension string
}

// Detect reads up to 512 bytes from r and identifies the format. The consumed head
// is returned so the caller can replay it.
func Detect(r io.Reader) (Result, []byte, error) {
	head := make([]byte, 512)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return Result{}, nil, err
	}
	head = head[:n]
	result, err := DetectHead(head)
	return result, head, err
}

// DetectHead identifies the format of head.
func DetectHead(head []byte) (Result, error) {
	switch {
	case len(head) == 0:
		return Result{}, ErrUnsupportedType
	case isJPEG(head):
		return Result{Type: TypeJPEG, MIME: "image/jpeg", Extension: ".jpg"}, nil
	case isPNG(head):
		return Result{Type: TypePNG, MIME: "image/png", Extension: ".png"}, nil
	case isWEBP(head):
		return Result{Type: TypeWEBP, MIME: "image/webp", Extension: ".webp"}, nil
	case isSVG(head):
		return Result{Type: TypeSVG, MIME: "image/svg+xml", Extension: ".svg"}, nil
	}
	return Result{}, ErrUnsupportedType
}

func isJPEG(head []byte) bool {
	return len(head) > 3 && head[0] == 0xff && head[1] == 0xd8 && head[2] == 0xff
}

func isPNG(head []byte) bool {
	magic := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
	return len(head) >= len(magic) && bytes.Equal(head[:len(magic)], magic)
}

func isWEBP(head []byte) bool {
	return len(head) >= 12 && bytes.Equal(head[:4], []byte("RIFF")) && bytes.Equal(head[8:12], []byte("WEBP"))
}

func isSVG(head []byte) bool {
	trimmed := strings.TrimSpace(string(head))
	if strings.HasPrefix(trimmed, "<svg") {
		return true
	}
	return strings.HasPrefix(trimmed, "<?xml") && strings.Contains(trimmed, "<svg")
}
