package display

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
)

// newNoopInstance creates a noop backend instance for testing.
func newNoopInstance(t *testing.T) hal.Instance {
	t.Helper()
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	return instance
}

func TestBootstrapInstanceFixedSize(t *testing.T) {
	instance := newNoopInstance(t)

	d, err := BootstrapInstance(instance, Config{
		Width:  1920,
		Height: 1080,
		Sink:   DiscardSink{},
	})
	if err != nil {
		instance.Destroy()
		t.Fatalf("BootstrapInstance failed: %v", err)
	}
	defer d.Close()

	w, h := d.Size()
	if w != 1920 || h != 1080 {
		t.Errorf("Size() = %dx%d, want 1920x1080", w, h)
	}
	if d.Device() == nil {
		t.Error("expected non-nil device after bring-up")
	}
	if d.Queue() == nil {
		t.Error("expected non-nil queue after bring-up")
	}
	if d.Target() == nil || d.TargetView() == nil {
		t.Error("expected non-nil color target and view after bring-up")
	}
	if d.Sink() == nil {
		t.Error("expected non-nil sink after bring-up")
	}
}

func TestBootstrapInstanceVerbose(t *testing.T) {
	instance := newNoopInstance(t)

	d, err := BootstrapInstance(instance, Config{
		Width:   640,
		Height:  480,
		Sink:    DiscardSink{},
		Verbose: true,
	})
	if err != nil {
		instance.Destroy()
		t.Fatalf("BootstrapInstance failed: %v", err)
	}
	d.Close()
}

func TestDisplayCloseIdempotent(t *testing.T) {
	instance := newNoopInstance(t)

	d, err := BootstrapInstance(instance, Config{
		Width:  320,
		Height: 240,
		Sink:   DiscardSink{},
	})
	if err != nil {
		instance.Destroy()
		t.Fatalf("BootstrapInstance failed: %v", err)
	}

	d.Close()
	d.Close() // must not panic or double-free

	if d.Target() != nil || d.TargetView() != nil {
		t.Error("expected nil target after Close")
	}
	if d.Device() != nil {
		t.Error("expected nil device after Close")
	}
}

func TestResolveSizeExplicit(t *testing.T) {
	tests := []struct {
		name   string
		cfg    Config
		wantW  uint32
		wantH  uint32
		wantOK bool
	}{
		{"fullhd", Config{Width: 1920, Height: 1080}, 1920, 1080, true},
		{"small panel", Config{Width: 480, Height: 320}, 480, 320, true},
		{"square", Config{Width: 720, Height: 720}, 720, 720, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h, err := resolveSize(tt.cfg)
			if (err == nil) != tt.wantOK {
				t.Fatalf("resolveSize error = %v, want ok=%v", err, tt.wantOK)
			}
			if w != tt.wantW || h != tt.wantH {
				t.Errorf("resolveSize = %dx%d, want %dx%d", w, h, tt.wantW, tt.wantH)
			}
		})
	}
}

func TestProvider(t *testing.T) {
	instance := newNoopInstance(t)

	d, err := BootstrapInstance(instance, Config{
		Width:  800,
		Height: 600,
		Sink:   DiscardSink{},
	})
	if err != nil {
		instance.Destroy()
		t.Fatalf("BootstrapInstance failed: %v", err)
	}
	defer d.Close()

	p := d.Provider()
	if p.SurfaceFormat() != gputypes.TextureFormatBGRA8Unorm {
		t.Errorf("SurfaceFormat = %v, want BGRA8Unorm", p.SurfaceFormat())
	}
	dev, ok := p.HalDevice().(hal.Device)
	if !ok || dev == nil {
		t.Error("HalDevice did not return a hal.Device")
	}
	q, ok := p.HalQueue().(hal.Queue)
	if !ok || q == nil {
		t.Error("HalQueue did not return a hal.Queue")
	}
	if p.Device() != nil || p.Queue() != nil || p.Adapter() != nil {
		t.Error("framework-level accessors must return nil")
	}
}

func TestBootstrapInstanceSinkFailureAborts(t *testing.T) {
	instance := newNoopInstance(t)

	// Point the default sink at a device that does not exist. Bring-up
	// must fail at that step immediately, with no retry and no fallback
	// sink, and must not hand back a partially built Display.
	d, err := BootstrapInstance(instance, Config{
		Width:           320,
		Height:          240,
		FramebufferPath: filepath.Join(t.TempDir(), "fb-missing"),
	})
	if err == nil {
		d.Close()
		t.Fatal("expected error for a missing framebuffer device")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("error lost its cause: %v", err)
	}
	if d != nil {
		t.Error("expected nil Display on bring-up failure")
	}
	// The caller keeps instance ownership when bring-up fails.
	instance.Destroy()
}

func TestBootstrapInstanceFramebufferPath(t *testing.T) {
	instance := newNoopInstance(t)

	// A plain file stands in for the framebuffer device.
	path := filepath.Join(t.TempDir(), "fb1")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("create fake framebuffer: %v", err)
	}

	d, err := BootstrapInstance(instance, Config{
		Width:           320,
		Height:          240,
		FramebufferPath: path,
	})
	if err != nil {
		instance.Destroy()
		t.Fatalf("BootstrapInstance failed: %v", err)
	}
	defer d.Close()

	if _, ok := d.Sink().(*FramebufferSink); !ok {
		t.Errorf("default sink is %T, want *FramebufferSink", d.Sink())
	}
}

func TestBringUpErrorsAreTyped(t *testing.T) {
	// A wrapped ErrNoDisplay must still match with errors.Is so callers
	// can keep the abort decision to themselves.
	_, _, err := resolveSize(Config{Width: 100}) // height missing -> detection path
	if err != nil && !errors.Is(err, ErrNoDisplay) {
		t.Errorf("expected ErrNoDisplay lineage, got %v", err)
	}
}
