// Package frame runs the render loop: clear, draw the triangle, present.
// It repeats forever, until the context is cancelled.
package frame

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/firstlight"
	"github.com/gogpu/firstlight/display"
	"github.com/gogpu/firstlight/scene"
)

// frameTimeout bounds the per-frame fence wait.
const frameTimeout = 5 * time.Second

// copyPitchAlignment is the row alignment required for texture-to-buffer
// copies (WebGPU and DX12 mandate 256 bytes).
const copyPitchAlignment = 256

// Config controls loop output.
type Config struct {
	// Out receives the per-frame elapsed-microseconds line.
	// Nil means os.Stdout.
	Out io.Writer

	// FirstFrameDump, when non-empty, writes the first presented frame to
	// this path as a BMP image. A bring-up verification aid.
	FirstFrameDump string
}

// Loop owns the per-run frame state. Create with New, drive with Run.
// Loop is single-threaded by design: all GPU work and presentation happen
// on the calling goroutine.
type Loop struct {
	display *display.Display
	scn     *scene.Scene

	out      io.Writer
	dumpPath string

	frames uint64

	// pix is the reusable presentation buffer: height rows of width*4
	// BGRA bytes, repacked from the aligned readback buffer.
	pix []byte
	// readback is the reusable staging readback buffer (aligned rows).
	readback []byte
}

// New creates a frame loop over a bootstrapped display and a set-up scene.
func New(d *display.Display, s *scene.Scene, cfg Config) *Loop {
	out := cfg.Out
	if out == nil {
		out = os.Stdout
	}
	w, h := d.Size()
	return &Loop{
		display:  d,
		scn:      s,
		out:      out,
		dumpPath: cfg.FirstFrameDump,
		pix:      make([]byte, int(w)*int(h)*4),
		readback: make([]byte, int(alignedRowBytes(w))*int(h)),
	}
}

// Run executes the frame loop until ctx is cancelled, then returns nil.
// Each iteration computes the wall-clock microseconds elapsed since the
// previous one and passes it to Step. Any frame error stops the loop and
// is returned to the caller, whose policy decides whether to abort.
func (l *Loop) Run(ctx context.Context) error {
	prev := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		now := time.Now()
		delta := deltaMicros(prev, now)
		prev = now
		if err := l.Step(delta); err != nil {
			return err
		}
	}
}

// Step renders and presents exactly one frame: one clear, one draw of the
// triangle's 3 vertices, one present, in that order. delta is the elapsed
// time since the previous frame in microseconds; it is printed but drives
// no behavior. The hook exists for future animation.
func (l *Loop) Step(delta int64) error {
	fmt.Fprintf(l.out, "%d microseconds\n", delta)

	if err := l.encodeAndSubmit(); err != nil {
		return err
	}
	if err := l.present(); err != nil {
		return err
	}
	l.frames++
	return nil
}

// Frames returns the number of frames presented so far.
func (l *Loop) Frames() uint64 { return l.frames }

// encodeAndSubmit records the frame's render pass (load-op clear plus one
// triangle draw), copies the target into a staging buffer, submits, waits
// for the GPU, and reads the pixels back.
func (l *Loop) encodeAndSubmit() error {
	dev := l.display.Device()
	w, h := l.display.Size()

	encoder, err := dev.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: "firstlight_frame",
	})
	if err != nil {
		return fmt.Errorf("frame: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("frame"); err != nil {
		return fmt.Errorf("frame: begin encoding: %w", err)
	}

	rp := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: "firstlight_frame_pass",
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:       l.display.TargetView(),
			LoadOp:     gputypes.LoadOpClear,
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: gputypes.Color{R: 0, G: 0, B: 0, A: 1},
		}},
	})
	rp.SetPipeline(l.scn.Pipeline())
	rp.SetViewport(0, 0, float32(w), float32(h), 0, 1)
	rp.SetVertexBuffer(l.scn.VertexSlot(), l.scn.VertexBuffer(), 0)
	rp.Draw(l.scn.VertexCount(), 1, 0, 0)
	rp.End()

	// The render pass leaves the target in attachment layout; the copy
	// below needs it as a transfer source. No-op on backends without
	// explicit layouts.
	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: l.display.Target(),
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageRenderAttachment,
			NewUsage: gputypes.TextureUsageCopySrc,
		},
	}})

	aligned := alignedRowBytes(w)
	staging, err := dev.CreateBuffer(&hal.BufferDescriptor{
		Label: "firstlight_staging",
		Size:  uint64(aligned) * uint64(h),
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		encoder.DiscardEncoding()
		return fmt.Errorf("frame: create staging buffer: %w", err)
	}
	defer dev.DestroyBuffer(staging)

	encoder.CopyTextureToBuffer(l.display.Target(), staging, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{Offset: 0, BytesPerRow: aligned, RowsPerImage: h},
		TextureBase:  hal.ImageCopyTexture{Texture: l.display.Target(), MipLevel: 0},
		Size:         hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	}})

	// Return the target to attachment layout for the next frame's pass.
	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: l.display.Target(),
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageCopySrc,
			NewUsage: gputypes.TextureUsageRenderAttachment,
		},
	}})

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("frame: end encoding: %w", err)
	}
	defer dev.FreeCommandBuffer(cmdBuf)

	fence, err := dev.CreateFence()
	if err != nil {
		return fmt.Errorf("frame: create fence: %w", err)
	}
	defer dev.DestroyFence(fence)

	if err := l.display.Queue().Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return fmt.Errorf("frame: submit: %w", err)
	}
	ok, err := dev.Wait(fence, 1, frameTimeout)
	if err != nil || !ok {
		return fmt.Errorf("frame: wait for GPU: ok=%v err=%w", ok, err)
	}

	if err := l.display.Queue().ReadBuffer(staging, 0, l.readback); err != nil {
		return fmt.Errorf("frame: readback: %w", err)
	}

	unpadRows(l.pix, l.readback, int(w)*4, int(aligned), int(h))
	return nil
}

// present hands the repacked frame to the sink. The first presented frame
// is optionally dumped to disk for inspection.
func (l *Loop) present() error {
	w, h := l.display.Size()
	stride := int(w) * 4

	if err := l.display.Sink().Present(l.pix, int(w), int(h), stride); err != nil {
		return fmt.Errorf("frame: present: %w", err)
	}

	if l.frames == 0 && l.dumpPath != "" {
		if err := dumpBMP(l.dumpPath, l.pix, int(w), int(h)); err != nil {
			// Diagnostic only. A failed dump must not stop the loop.
			firstlight.Logger().Warn("frame: first-frame dump", "err", err)
		} else {
			firstlight.Logger().Info("frame: first-frame dump written",
				"path", l.dumpPath)
		}
	}
	return nil
}

// deltaMicros returns the elapsed wall-clock time from prev to now in
// microseconds. Signed: a clock step backwards yields a negative delta.
func deltaMicros(prev, now time.Time) int64 {
	return now.Sub(prev).Microseconds()
}

// alignedRowBytes rounds a row of width BGRA pixels up to the copy pitch
// alignment.
func alignedRowBytes(width uint32) uint32 {
	row := width * 4
	return (row + copyPitchAlignment - 1) &^ (copyPitchAlignment - 1)
}

// unpadRows repacks aligned readback rows into tight rows.
func unpadRows(dst, src []byte, rowBytes, alignedRowBytes, rows int) {
	if rowBytes == alignedRowBytes {
		copy(dst, src[:rowBytes*rows])
		return
	}
	for r := 0; r < rows; r++ {
		copy(dst[r*rowBytes:(r+1)*rowBytes], src[r*alignedRowBytes:r*alignedRowBytes+rowBytes])
	}
}
