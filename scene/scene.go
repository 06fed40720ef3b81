// Package scene performs the one-time scene setup of the bring-up demo:
// compile the two trivial shaders, link them into a render pipeline, and
// upload the single triangle into a GPU vertex buffer.
package scene

import (
	_ "embed"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/firstlight"
	"github.com/gogpu/firstlight/display"
)

//go:embed shaders/vertex.wgsl
var vertexShaderSource string

//go:embed shaders/fragment.wgsl
var fragmentShaderSource string

// ErrEmptyShader is returned when an embedded shader source is missing.
var ErrEmptyShader = errors.New("scene: embedded shader source is empty")

// vertexStride is the byte stride per vertex: 3 x float32 (x, y, z),
// tightly packed, no normalization.
const vertexStride = 12

// vertexCount is the number of vertices in the scene. One triangle.
const vertexCount = 3

// vertexSlot is the shader location the `vertex` input is bound to.
// Declared as @location(0) in vertex.wgsl and resolved once at link time
// into the pipeline's vertex buffer layout.
const vertexSlot = 0

// triangleVertexData is the whole scene: one counter-clockwise triangle.
var triangleVertexData = [9]float32{
	-1.0, -1.0, 0.0, // lower left
	1.0, -1.0, 0.0, // lower right
	0.0, 1.0, 0.0, // top center
}

// Config controls Setup diagnostics.
type Config struct {
	// Verbose logs shader translation results (sizes and errors) on the
	// package logger. A debugging aid only: translation problems are not
	// branched on here, they surface through pipeline creation.
	Verbose bool
}

// Scene holds the linked pipeline and the triangle vertex buffer. Both are
// created once by Setup and immutable for the run.
type Scene struct {
	device hal.Device

	pipeline   hal.RenderPipeline
	pipeLayout hal.PipelineLayout
	vertexBuf  hal.Buffer
}

// Setup compiles the vertex and fragment shaders, links them into one
// render pipeline, discards the shader modules (they are not needed after
// linking), and uploads the triangle vertex data as a static buffer in
// GPU memory.
func Setup(d *display.Display, cfg Config) (*Scene, error) {
	if vertexShaderSource == "" || fragmentShaderSource == "" {
		return nil, ErrEmptyShader
	}
	if cfg.Verbose {
		logShaderDiagnostics("vertex", vertexShaderSource)
		logShaderDiagnostics("fragment", fragmentShaderSource)
	}

	dev := d.Device()
	s := &Scene{device: dev}

	vmod, err := dev.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "triangle_vertex",
		Source: hal.ShaderSource{WGSL: vertexShaderSource},
	})
	if err != nil {
		return nil, fmt.Errorf("scene: compile vertex shader: %w", err)
	}

	fmod, err := dev.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "triangle_fragment",
		Source: hal.ShaderSource{WGSL: fragmentShaderSource},
	})
	if err != nil {
		dev.DestroyShaderModule(vmod)
		return nil, fmt.Errorf("scene: compile fragment shader: %w", err)
	}

	err = s.link(vmod, fmod)
	// Shader modules are no longer needed after linking.
	dev.DestroyShaderModule(vmod)
	dev.DestroyShaderModule(fmod)
	if err != nil {
		return nil, err
	}

	if err := s.uploadTriangle(d.Queue()); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// link creates the render pipeline from the two compiled modules:
// triangle-list topology, no culling, single-sampled, one float32x3
// vertex attribute at the resolved slot, no blend state.
func (s *Scene) link(vmod, fmod hal.ShaderModule) error {
	layout, err := s.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "triangle_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{},
	})
	if err != nil {
		return fmt.Errorf("scene: create pipeline layout: %w", err)
	}
	s.pipeLayout = layout

	pipeline, err := s.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  "triangle_pipeline",
		Layout: s.pipeLayout,
		Vertex: hal.VertexState{
			Module:     vmod,
			EntryPoint: "vs_main",
			Buffers: []gputypes.VertexBufferLayout{
				{
					ArrayStride: vertexStride,
					StepMode:    gputypes.VertexStepModeVertex,
					Attributes: []gputypes.VertexAttribute{
						{
							Format:         gputypes.VertexFormatFloat32x3,
							Offset:         0,
							ShaderLocation: vertexSlot,
						},
					},
				},
			},
		},
		Fragment: &hal.FragmentState{
			Module:     fmod,
			EntryPoint: "fs_main",
			Targets: []gputypes.ColorTargetState{
				{
					Format:    display.TargetFormat,
					WriteMask: gputypes.ColorWriteMaskAll,
				},
			},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		s.device.DestroyPipelineLayout(s.pipeLayout)
		s.pipeLayout = nil
		return fmt.Errorf("scene: link pipeline: %w", err)
	}
	s.pipeline = pipeline
	return nil
}

// uploadTriangle creates the vertex buffer and writes the triangle into
// GPU memory. The buffer is static: written once, never modified.
func (s *Scene) uploadTriangle(queue hal.Queue) error {
	data := VertexBytes()
	buf, err := s.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "triangle_vbo",
		Size:  uint64(len(data)),
		Usage: gputypes.BufferUsageVertex | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("scene: create vertex buffer: %w", err)
	}
	queue.WriteBuffer(buf, 0, data)
	s.vertexBuf = buf
	return nil
}

// logShaderDiagnostics runs source through the naga translator and logs
// the outcome. Equivalent to printing the driver compile log in classic
// GLES bring-up demos: informational regardless of success or failure.
func logShaderDiagnostics(name, source string) {
	spirv, err := naga.Compile(source)
	if err != nil {
		firstlight.Logger().Debug("scene: shader translation",
			"shader", name, "err", err)
		return
	}
	firstlight.Logger().Debug("scene: shader translation",
		"shader", name, "spirv_bytes", len(spirv))
}

// Pipeline returns the linked render pipeline.
func (s *Scene) Pipeline() hal.RenderPipeline { return s.pipeline }

// VertexBuffer returns the GPU-resident triangle vertex buffer.
func (s *Scene) VertexBuffer() hal.Buffer { return s.vertexBuf }

// VertexSlot returns the vertex buffer slot the pipeline binds the
// `vertex` input to.
func (s *Scene) VertexSlot() uint32 { return vertexSlot }

// VertexCount returns the number of vertices drawn per frame.
func (s *Scene) VertexCount() uint32 { return vertexCount }

// VertexBytes returns the triangle vertex data encoded as the vertex
// buffer expects it: 9 float32 values, little-endian.
func VertexBytes() []byte {
	data := make([]byte, 0, len(triangleVertexData)*4)
	for _, v := range triangleVertexData {
		data = binary.LittleEndian.AppendUint32(data, math.Float32bits(v))
	}
	return data
}

// Close releases the pipeline, its layout and the vertex buffer. The
// frame loop must have stopped before Close is called. Safe to call more
// than once.
func (s *Scene) Close() {
	if s.pipeline != nil {
		s.device.DestroyRenderPipeline(s.pipeline)
		s.pipeline = nil
	}
	if s.pipeLayout != nil {
		s.device.DestroyPipelineLayout(s.pipeLayout)
		s.pipeLayout = nil
	}
	if s.vertexBuf != nil {
		s.device.DestroyBuffer(s.vertexBuf)
		s.vertexBuf = nil
	}
}
