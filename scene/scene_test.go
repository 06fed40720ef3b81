package scene

import (
	"encoding/binary"
	"math"
	"strings"
	"testing"

	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/firstlight/display"
)

// newNoopDisplay brings up a Display on the noop backend for testing.
func newNoopDisplay(t *testing.T) *display.Display {
	t.Helper()
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	d, err := display.BootstrapInstance(instance, display.Config{
		Width:  640,
		Height: 480,
		Sink:   display.DiscardSink{},
	})
	if err != nil {
		instance.Destroy()
		t.Fatalf("BootstrapInstance failed: %v", err)
	}
	t.Cleanup(d.Close)
	return d
}

func TestShaderSourcesNonEmpty(t *testing.T) {
	tests := []struct {
		name   string
		source string
	}{
		{"vertex", vertexShaderSource},
		{"fragment", fragmentShaderSource},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.source == "" {
				t.Errorf("%s shader source is empty", tt.name)
			}
		})
	}
}

func TestShaderSourcesContainExpectedContent(t *testing.T) {
	tests := []struct {
		name     string
		source   string
		required []string
	}{
		{
			name:   "vertex",
			source: vertexShaderSource,
			required: []string{
				"@vertex",
				"vs_main",
				"@location(0) vertex",
				"vec3<f32>",
			},
		},
		{
			name:   "fragment",
			source: fragmentShaderSource,
			required: []string{
				"@fragment",
				"fs_main",
				"vec4<f32>(0.0, 0.0, 1.0, 0.5)",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, req := range tt.required {
				if !strings.Contains(tt.source, req) {
					t.Errorf("%s shader missing required element: %q", tt.name, req)
				}
			}
		})
	}
}

// TestShaderSourcesCompile verifies both fixed shader sources always
// translate cleanly, independent of any GPU.
func TestShaderSourcesCompile(t *testing.T) {
	for _, tt := range []struct {
		name   string
		source string
	}{
		{"vertex", vertexShaderSource},
		{"fragment", fragmentShaderSource},
	} {
		t.Run(tt.name, func(t *testing.T) {
			spirv, err := naga.Compile(tt.source)
			if err != nil {
				t.Fatalf("naga.Compile failed: %v", err)
			}
			if len(spirv) == 0 {
				t.Error("expected non-empty SPIR-V output")
			}
		})
	}
}

func TestVertexBytes(t *testing.T) {
	data := VertexBytes()
	if len(data) != 36 {
		t.Fatalf("VertexBytes length = %d, want 36 (9 float32)", len(data))
	}

	want := []float32{
		-1.0, -1.0, 0.0,
		1.0, -1.0, 0.0,
		0.0, 1.0, 0.0,
	}
	for i, w := range want {
		bits := binary.LittleEndian.Uint32(data[i*4:])
		if got := math.Float32frombits(bits); got != w {
			t.Errorf("vertex float %d = %v, want %v", i, got, w)
		}
	}
}

func TestSetup(t *testing.T) {
	d := newNoopDisplay(t)

	s, err := Setup(d, Config{})
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	defer s.Close()

	if s.Pipeline() == nil {
		t.Error("expected non-nil pipeline after Setup")
	}
	if s.VertexBuffer() == nil {
		t.Error("expected non-nil vertex buffer after Setup")
	}
	if s.VertexSlot() != 0 {
		t.Errorf("VertexSlot = %d, want 0", s.VertexSlot())
	}
	if s.VertexCount() != 3 {
		t.Errorf("VertexCount = %d, want 3", s.VertexCount())
	}
}

func TestSetupVerbose(t *testing.T) {
	d := newNoopDisplay(t)

	s, err := Setup(d, Config{Verbose: true})
	if err != nil {
		t.Fatalf("Setup with Verbose failed: %v", err)
	}
	s.Close()
}

func TestSceneCloseIdempotent(t *testing.T) {
	d := newNoopDisplay(t)

	s, err := Setup(d, Config{})
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}

	s.Close()
	s.Close() // must not panic or double-free

	if s.Pipeline() != nil {
		t.Error("expected nil pipeline after Close")
	}
	if s.VertexBuffer() != nil {
		t.Error("expected nil vertex buffer after Close")
	}
}
