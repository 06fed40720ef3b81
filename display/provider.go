package display

import (
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
)

// Provider exposes the bring-up device through the gpucontext ecosystem
// interfaces, so renderers that accept a shared device (via
// gpucontext.DeviceProvider plus the HalDevice/HalQueue duck type) can run
// on the device this demo opened instead of creating their own.
//
// firstlight works at the HAL layer only, so the framework-level Device,
// Queue and Adapter accessors return nil; consumers that need raw HAL
// handles use HalDevice and HalQueue.
type Provider struct {
	d *Display
}

// Provider returns a device provider backed by this display.
func (d *Display) Provider() *Provider { return &Provider{d: d} }

// Device returns nil: firstlight holds no framework-level device wrapper.
func (*Provider) Device() gpucontext.Device { return nil }

// Queue returns nil: firstlight holds no framework-level queue wrapper.
func (*Provider) Queue() gpucontext.Queue { return nil }

// Adapter returns nil: firstlight holds no framework-level adapter wrapper.
func (*Provider) Adapter() gpucontext.Adapter { return nil }

// SurfaceFormat returns the pixel format of the presentation target.
func (*Provider) SurfaceFormat() gputypes.TextureFormat { return TargetFormat }

// HalDevice returns the opened hal.Device as an untyped value.
func (p *Provider) HalDevice() any { return p.d.device }

// HalQueue returns the device queue as an untyped value.
func (p *Provider) HalQueue() any { return p.d.queue }

var _ gpucontext.DeviceProvider = (*Provider)(nil)
