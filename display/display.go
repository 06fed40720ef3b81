// Package display brings up the GPU and the on-screen presentation target.
//
// Bootstrap performs the classic embedded bring-up sequence: look up the
// registered graphics backend, create an instance, pick an adapter, open a
// device, detect the physical display resolution, and allocate a
// full-screen BGRA8 color target that frames are rendered into and
// presented from. Every step either succeeds or returns a typed error;
// whether a failure aborts the process is the caller's decision.
package display

import (
	"errors"
	"fmt"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/kbinani/screenshot"

	// Import Vulkan backend so it registers via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"

	"github.com/gogpu/firstlight"
)

// Bring-up errors.
var (
	// ErrNoBackend is returned when no GPU backend is registered.
	ErrNoBackend = errors.New("display: no GPU backend registered")

	// ErrNoAdapter is returned when the instance exposes no adapters.
	ErrNoAdapter = errors.New("display: no GPU adapters found")

	// ErrNoDisplay is returned when no physical display can be detected
	// and no explicit resolution was configured.
	ErrNoDisplay = errors.New("display: cannot detect display resolution")

	// ErrClosed is returned when operating on a closed Display.
	ErrClosed = errors.New("display: display is closed")
)

// TargetFormat is the pixel format of the presentation target: 8 bits per
// channel BGRA, the byte order of little-endian XRGB framebuffers.
const TargetFormat = gputypes.TextureFormatBGRA8Unorm

// setupTimeout bounds the fence wait for the initial clear submission.
const setupTimeout = 5 * time.Second

// Config controls Bootstrap. The zero value detects the primary display's
// resolution and presents to the default framebuffer device.
type Config struct {
	// Width and Height override the detected display resolution when both
	// are nonzero. Used for fixed-mode panels and for tests.
	Width  uint32
	Height uint32

	// Sink receives presented frames. Nil selects a FramebufferSink on
	// FramebufferPath.
	Sink PresentSink

	// FramebufferPath is the framebuffer device opened when Sink is nil.
	// Empty means DefaultFramebufferPath.
	FramebufferPath string

	// Verbose enables bring-up diagnostics on the package logger.
	// It mirrors the inert verbose switch of classic bring-up demos:
	// zero-valued unless a caller opts in programmatically.
	Verbose bool
}

// Display owns every display-side resource for the process lifetime:
// the instance (display connection), device and queue (rendering context),
// and the full-screen color target (presentation surface). All fields are
// set once during Bootstrap and are read-only afterwards.
//
// Display is NOT safe for concurrent use. The whole program is a single
// thread of execution by design.
type Display struct {
	width  uint32
	height uint32

	instance hal.Instance
	device   hal.Device
	queue    hal.Queue

	adapterName string

	target     hal.Texture
	targetView hal.TextureView

	sink   PresentSink
	closed bool
}

// Bootstrap acquires the GPU and sizes the presentation target to the
// physical display. On success the returned Display is fully initialized
// and its target has been cleared to opaque black once.
//
// No step is retried and no fallback configuration is negotiated: the
// first failure surfaces immediately as an error.
func Bootstrap(cfg Config) (*Display, error) {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, ErrNoBackend
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("display: create instance: %w", err)
	}
	d, err := BootstrapInstance(instance, cfg)
	if err != nil {
		instance.Destroy()
		return nil, err
	}
	return d, nil
}

// BootstrapInstance finishes bring-up on an already created instance.
// Split from Bootstrap so tests can drive the sequence with a noop
// backend instance. The caller keeps ownership of instance on error.
func BootstrapInstance(instance hal.Instance, cfg Config) (*Display, error) {
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		return nil, ErrNoAdapter
	}

	// Prefer a real GPU over software implementations.
	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}

	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		return nil, fmt.Errorf("display: open device: %w", err)
	}

	d := &Display{
		instance:    instance,
		device:      openDev.Device,
		queue:       openDev.Queue,
		adapterName: selected.Info.Name,
		sink:        cfg.Sink,
	}

	d.width, d.height, err = resolveSize(cfg)
	if err != nil {
		d.device.Destroy()
		return nil, err
	}

	if err := d.createTarget(); err != nil {
		d.device.Destroy()
		return nil, err
	}

	// Clear the surface to opaque black once, before the first frame.
	if err := d.clearOnce(); err != nil {
		d.destroyTarget()
		d.device.Destroy()
		return nil, err
	}

	// The default sink opens a device file, so it is created last: an
	// earlier bring-up failure must not leave the file open.
	if d.sink == nil {
		path := cfg.FramebufferPath
		if path == "" {
			path = DefaultFramebufferPath
		}
		sink, err := NewFramebufferSink(path)
		if err != nil {
			d.destroyTarget()
			d.device.Destroy()
			return nil, err
		}
		d.sink = sink
	}

	if cfg.Verbose {
		firstlight.Logger().Info("display: bring-up complete",
			"adapter", d.adapterName, "width", d.width, "height", d.height)
	}
	return d, nil
}

// resolveSize returns the configured resolution, or detects the primary
// physical display's pixel dimensions.
func resolveSize(cfg Config) (uint32, uint32, error) {
	if cfg.Width != 0 && cfg.Height != 0 {
		return cfg.Width, cfg.Height, nil
	}
	if screenshot.NumActiveDisplays() == 0 {
		return 0, 0, ErrNoDisplay
	}
	bounds := screenshot.GetDisplayBounds(0)
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("%w: reported %dx%d", ErrNoDisplay, w, h)
	}
	return uint32(w), uint32(h), nil
}

// createTarget allocates the full-screen color texture and its view.
// Single-sampled: a bring-up triangle needs no MSAA.
func (d *Display) createTarget() error {
	tex, err := d.device.CreateTexture(&hal.TextureDescriptor{
		Label:         "firstlight_target",
		Size:          hal.Extent3D{Width: d.width, Height: d.height, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        TargetFormat,
		Usage:         gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc,
	})
	if err != nil {
		return fmt.Errorf("display: create color target: %w", err)
	}
	d.target = tex

	view, err := d.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label: "firstlight_target_view",
	})
	if err != nil {
		d.device.DestroyTexture(tex)
		d.target = nil
		return fmt.Errorf("display: create target view: %w", err)
	}
	d.targetView = view
	return nil
}

// clearOnce submits a render pass that only clears the target to opaque
// black. The frame loop performs its own clear every iteration; this one
// exists so the target never presents uninitialized memory.
func (d *Display) clearOnce() error {
	encoder, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: "firstlight_initial_clear",
	})
	if err != nil {
		return fmt.Errorf("display: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("initial_clear"); err != nil {
		return fmt.Errorf("display: begin encoding: %w", err)
	}

	rp := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: "firstlight_initial_clear_pass",
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:       d.targetView,
			LoadOp:     gputypes.LoadOpClear,
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: gputypes.Color{R: 0, G: 0, B: 0, A: 1},
		}},
	})
	rp.End()

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("display: end encoding: %w", err)
	}
	defer d.device.FreeCommandBuffer(cmdBuf)

	fence, err := d.device.CreateFence()
	if err != nil {
		return fmt.Errorf("display: create fence: %w", err)
	}
	defer d.device.DestroyFence(fence)

	if err := d.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return fmt.Errorf("display: submit initial clear: %w", err)
	}
	ok, err := d.device.Wait(fence, 1, setupTimeout)
	if err != nil || !ok {
		return fmt.Errorf("display: wait for initial clear: ok=%v err=%w", ok, err)
	}
	return nil
}

// Size returns the presentation target dimensions in pixels.
func (d *Display) Size() (width, height uint32) {
	return d.width, d.height
}

// AdapterName returns the name of the selected GPU adapter.
func (d *Display) AdapterName() string { return d.adapterName }

// Device returns the opened HAL device.
func (d *Display) Device() hal.Device { return d.device }

// Queue returns the device's command queue.
func (d *Display) Queue() hal.Queue { return d.queue }

// Target returns the full-screen color texture frames render into.
func (d *Display) Target() hal.Texture { return d.target }

// TargetView returns the render-attachment view of the color target.
func (d *Display) TargetView() hal.TextureView { return d.targetView }

// Sink returns the present sink frames are delivered to.
func (d *Display) Sink() PresentSink { return d.sink }

func (d *Display) destroyTarget() {
	if d.targetView != nil {
		d.device.DestroyTextureView(d.targetView)
		d.targetView = nil
	}
	if d.target != nil {
		d.device.DestroyTexture(d.target)
		d.target = nil
	}
}

// Close releases the target, device, instance and sink, in reverse order
// of creation. Safe to call more than once.
func (d *Display) Close() {
	if d.closed {
		return
	}
	d.closed = true

	d.destroyTarget()
	if d.device != nil {
		d.device.Destroy()
		d.device = nil
		d.queue = nil
	}
	if d.instance != nil {
		d.instance.Destroy()
		d.instance = nil
	}
	if d.sink != nil {
		if err := d.sink.Close(); err != nil {
			firstlight.Logger().Warn("display: sink close", "err", err)
		}
		d.sink = nil
	}
}
