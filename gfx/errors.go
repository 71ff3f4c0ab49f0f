package gfx

import "fmt"

// ContextCreationError reports that a graphics device could not be
// created or that a required GPU context was missing.
type ContextCreationError struct {
	Reason string
}

func (e *ContextCreationError) Error() string {
	return fmt.Sprintf("gfx: context creation failed: %s", e.Reason)
}

// ShaderCompileError reports a shader stage that failed to compile.
// Stage is "vertex" or "fragment".
type ShaderCompileError struct {
	Stage   string
	Message string
}

func (e *ShaderCompileError) Error() string {
	return fmt.Sprintf("gfx: %s shader compile failed: %s", e.Stage, e.Message)
}

// ProgramLinkError reports a program whose stages compiled but could not
// be linked into a usable pipeline.
type ProgramLinkError struct {
	Message string
}

func (e *ProgramLinkError) Error() string {
	return fmt.Sprintf("gfx: program link failed: %s", e.Message)
}

// FramebufferIncompleteError reports a framebuffer that could not be
// completed, most commonly because of non-positive dimensions.
type FramebufferIncompleteError struct {
	Width  int
	Height int
	Reason string
}

func (e *FramebufferIncompleteError) Error() string {
	return fmt.Sprintf("gfx: framebuffer incomplete (%dx%d): %s", e.Width, e.Height, e.Reason)
}

// TextureLoadError reports a texture that failed to decode or upload.
type TextureLoadError struct {
	Key   string
	Cause error
}

func (e *TextureLoadError) Error() string {
	return fmt.Sprintf("gfx: texture load %q failed: %v", e.Key, e.Cause)
}

func (e *TextureLoadError) Unwrap() error { return e.Cause }

// InvalidSlotError reports a texture slot index outside the configured range.
type InvalidSlotError struct {
	Slot  int
	Count int
}

func (e *InvalidSlotError) Error() string {
	return fmt.Sprintf("gfx: slot %d out of range (have %d slots)", e.Slot, e.Count)
}
