package display

import (
	"errors"
	"fmt"
	"os"
)

// DefaultFramebufferPath is the first Linux framebuffer device, the usual
// console display on single-board computers.
const DefaultFramebufferPath = "/dev/fb0"

// Sink errors.
var (
	// ErrSinkClosed is returned when presenting to a closed sink.
	ErrSinkClosed = errors.New("display: sink is closed")

	// ErrBadFrame is returned when the presented pixel slice does not
	// match the stated dimensions.
	ErrBadFrame = errors.New("display: frame size does not match dimensions")
)

// PresentSink receives completed frames. Present is the swap step of the
// pipeline: it blocks until the frame has been handed to the underlying
// device, and frame pacing is whatever that device imposes.
//
// pix holds height rows of stride bytes each, BGRA byte order
// (see TargetFormat).
type PresentSink interface {
	Present(pix []byte, width, height, stride int) error
	Close() error
}

// FramebufferSink presents frames by writing them to a Linux framebuffer
// device. The device is assumed to be in a 32bpp XRGB mode whose scanline
// pitch equals width*4, the common case for full-screen modes on SBCs;
// BGRA target bytes then map 1:1 onto the framebuffer with no conversion.
type FramebufferSink struct {
	f      *os.File
	path   string
	closed bool
}

// NewFramebufferSink opens the framebuffer device at path for writing.
func NewFramebufferSink(path string) (*FramebufferSink, error) {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("display: open framebuffer %s: %w", path, err)
	}
	return &FramebufferSink{f: f, path: path}, nil
}

// Present writes the frame to the framebuffer starting at offset 0.
func (s *FramebufferSink) Present(pix []byte, width, height, stride int) error {
	if s.closed {
		return ErrSinkClosed
	}
	if len(pix) != height*stride || stride < width*4 {
		return fmt.Errorf("%w: %d bytes for %dx%d stride %d",
			ErrBadFrame, len(pix), width, height, stride)
	}
	if _, err := s.f.WriteAt(pix, 0); err != nil {
		return fmt.Errorf("display: write framebuffer %s: %w", s.path, err)
	}
	return nil
}

// Close closes the framebuffer device. Safe to call more than once.
func (s *FramebufferSink) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.f.Close()
}

// DiscardSink drops every frame. Used for headless runs and benchmarks
// where no display device is attached.
type DiscardSink struct{}

// Present discards the frame after validating its dimensions.
func (DiscardSink) Present(pix []byte, width, height, stride int) error {
	if len(pix) != height*stride || stride < width*4 {
		return fmt.Errorf("%w: %d bytes for %dx%d stride %d",
			ErrBadFrame, len(pix), width, height, stride)
	}
	return nil
}

// Close is a no-op.
func (DiscardSink) Close() error { return nil }

var (
	_ PresentSink = (*FramebufferSink)(nil)
	_ PresentSink = DiscardSink{}
)
