// Package gfx defines the graphics device capability surface used by the
// compositing pipeline.
//
// A Device creates and destroys GPU resources (textures, framebuffers,
// shader programs) and executes full-screen-quad draw operations. The
// pipeline, render passes and texture cache all receive an explicit Device
// at construction; there is no ambient global context.
//
// Two implementations ship with this module:
//
//   - backend/wgpu: the real GPU device on github.com/gogpu/wgpu/hal
//   - backend/soft: a CPU reference device for headless use and tests
package gfx
