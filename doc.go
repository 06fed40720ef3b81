// Package firstlight is a minimal GPU bring-up demo for embedded
// single-board computers: open the GPU, build one trivial render pipeline,
// upload one triangle, and present frames forever.
//
// The program is a linear three-stage pipeline:
//
//	display.Bootstrap  — GPU instance/adapter/device, full-screen color target
//	scene.Setup        — two trivial shaders, one pipeline, one vertex buffer
//	frame.Loop         — clear, draw 3 vertices, present, repeat
//
// There is no scene graph, no input handling and no animation. Every
// interesting behavior (device negotiation, shader translation,
// rasterization) happens inside the gogpu/wgpu HAL; this repository only
// sequences the calls, which is exactly what a bring-up test should do.
//
// The root package holds shared infrastructure (logging). See cmd/firstlight
// for the executable.
package firstlight
