package qrcode

import (
	"errors"
	"fmt"

	skipqr "github.com/skip2/go-qrcode"
)

const DefaultPNGSize = 320

var ErrEmptyContent = errors.New("qr content is empty")

// Encoder turns a check-in URL into a scannable code.
type Encoder interface {
	PNG(content string, size int) ([]byte, error)
	Terminal(content string) (string, error)
}

type SkipEncoder struct {
	level skipqr.RecoveryLevel
}

// NewEncoder uses medium error correction, which keeps codes small enough
// for a projector while tolerating glare.
func NewEncoder() *SkipEncoder {
	return &SkipEncoder{level: skipqr.Medium}
}

func (e *SkipEncoder) PNG(content string, size int) ([]byte, error) {
	if content == "" {
		return nil, ErrEmptyContent
	}
	if size <= 0 {
		size = DefaultPNGSize
	}
	png, err := skipqr.Encode(content, e.level, size)
	if err != nil {
		return nil, fmt.Errorf("encode qr png: %w", err)
	}
	return png, nil
}

// Terminal renders the code with half-block characters for a text console.
func (e *SkipEncoder) Terminal(content string) (string, error) {
	if content == "" {
		return "", ErrEmptyContent
	}
	q, err := skipqr.New(content, e.level)
	if err != nil {
		return "", fmt.Errorf("encode qr: %w", err)
	}
	return q.ToSmallString(false), nil
}
