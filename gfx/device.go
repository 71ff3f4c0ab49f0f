package gfx

// Texture is an opaque handle to a device texture.
type Texture interface {
	Width() int
	Height() int
}

// Framebuffer is an opaque handle to an offscreen render destination
// backed by a color texture.
type Framebuffer interface {
	// ColorTexture returns the texture that receives draws into this
	// framebuffer. It is valid as a draw input once the draw completed.
	ColorTexture() Texture
}

// Program is an opaque handle to a compiled shader program.
type Program interface {
	// Layout describes the program's uniform block.
	Layout() *UniformLayout
	// InputCount reports how many texture inputs the program samples.
	InputCount() int
}

// TextureDescriptor describes a texture to create.
type TextureDescriptor struct {
	Label  string
	Width  int
	Height int

	// RenderTarget marks the texture as attachable to a Framebuffer in
	// addition to being sampled.
	RenderTarget bool
}

// ProgramDescriptor describes a shader program to compile.
type ProgramDescriptor struct {
	Label          string
	VertexSource   string
	FragmentSource string

	// Uniforms declares the program's uniform block members in
	// declaration order. May be empty.
	Uniforms []UniformSpec

	// Inputs is the number of textures the fragment stage samples.
	Inputs int
}

// DrawOp describes one full-screen-quad draw.
type DrawOp struct {
	Program Program

	// Inputs are bound in order as the program's texture inputs. A nil
	// entry binds nothing and the program must not sample that input.
	Inputs []Texture

	// Uniforms is the packed uniform block, laid out per the program's
	// UniformLayout. Ignored when the program has no uniforms.
	Uniforms []byte

	// Target is the destination framebuffer; nil draws to the surface.
	Target Framebuffer

	// Width and Height give the destination viewport in pixels.
	Width  int
	Height int

	// Clear clears the destination to ClearColor before drawing.
	Clear      bool
	ClearColor [4]float32
}

// Device is the graphics capability surface the compositing pipeline
// renders through. Implementations must be safe for use from a single
// goroutine; callers serialize access.
type Device interface {
	// CompileProgram compiles and links a shader program. Returns
	// *ShaderCompileError or *ProgramLinkError on failure.
	CompileProgram(desc ProgramDescriptor) (Program, error)
	DestroyProgram(p Program)

	// CreateTexture allocates a texture. Contents are undefined until
	// UploadTexture or a draw targets it.
	CreateTexture(desc TextureDescriptor) (Texture, error)
	// UploadTexture replaces the full contents of t with tightly packed
	// RGBA8 pixels (len = width*height*4).
	UploadTexture(t Texture, pixels []byte) error
	DestroyTexture(t Texture)

	// CreateFramebuffer wraps a render-target texture as a draw
	// destination. Returns *FramebufferIncompleteError if the texture
	// cannot be attached.
	CreateFramebuffer(color Texture) (Framebuffer, error)
	DestroyFramebuffer(fb Framebuffer)

	// Draw executes one full-screen-quad draw.
	Draw(op DrawOp) error

	// SurfaceSize reports the current presentation surface size in pixels.
	SurfaceSize() (width, height int)

	// Destroy releases all device resources. Idempotent.
	Destroy()
}
