package compose

import _ "embed"

// Built-in shader sources. The vertex stage is shared; each pass pairs
// it with its own fragment stage.

//go:embed shaders/fullscreen.wgsl
var fullscreenVertexWGSL string

//go:embed shaders/background.wgsl
var backgroundFragmentWGSL string

//go:embed shaders/composite.wgsl
var compositeFragmentWGSL string

//go:embed shaders/blit.wgsl
var blitFragmentWGSL string
