// Package debugdraw draws the octree overlay with OpenGL line primitives.
//
// Every function must be called from the goroutine owning the current
// context.
package debugdraw

import (
	"strings"
	"unsafe"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	gl "github.com/go-gl/gl/v4.1-core/gl"

	"render-octree/core"
	"render-octree/math"
	"render-octree/renderer"
)

const vertSrc = `
#version 410 core
layout(location = 0) in vec3 inPosition;

uniform mat4 mvp;

void main() {
    gl_Position = mvp * vec4(inPosition, 1.0);
}
` + "\x00"

const fragSrc = `
#version 410 core
uniform vec4 color;

out vec4 outColor;

void main() {
    outColor = color;
}
` + "\x00"

// Drawer uploads line batches to a dynamic vertex buffer and draws them.
type Drawer struct {
	program  uint32
	mvpLoc   int32
	colorLoc int32

	vao      uint32
	vbo      uint32
	capacity int
}

// New initialises OpenGL and the line shader. The window context must be
// current.
func New() (*Drawer, error) {
	if err := gl.Init(); err != nil {
		return nil, errors.New("initializing opengl failed").Wrap(err)
	}

	logs.WithTag("version", gl.GoStr(gl.GetString(gl.VERSION))).
		WithTag("renderer", gl.GoStr(gl.GetString(gl.RENDERER))).
		Info("opengl initialized")

	prog, err := newProgram(vertSrc, fragSrc)
	if err != nil {
		return nil, err
	}

	gl.Enable(gl.DEPTH_TEST)
	gl.DepthFunc(gl.LEQUAL)

	d := &Drawer{
		program:  prog,
		mvpLoc:   gl.GetUniformLocation(prog, gl.Str("mvp\x00")),
		colorLoc: gl.GetUniformLocation(prog, gl.Str("color\x00")),
	}

	gl.GenVertexArrays(1, &d.vao)
	gl.GenBuffers(1, &d.vbo)
	gl.BindVertexArray(d.vao)
	gl.BindBuffer(gl.ARRAY_BUFFER, d.vbo)
	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointer(0, 3, gl.FLOAT, false, 3*4, gl.PtrOffset(0))
	gl.BindVertexArray(0)
	return d, nil
}

// SetViewport resizes the OpenGL viewport.
func (d *Drawer) SetViewport(width, height int) {
	gl.Viewport(0, 0, int32(width), int32(height))
}

// BeginFrame clears the framebuffer with the given colour.
func (d *Drawer) BeginFrame(bg core.Color) {
	gl.ClearColor(bg.R, bg.G, bg.B, bg.A)
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)
}

// Draw draws the batches with the given view-projection matrix.
func (d *Drawer) Draw(batches []renderer.LineBatch, viewProj math.Mat4) {
	gl.UseProgram(d.program)

	// Rows of a row-vector matrix are the columns GLSL expects.
	gl.UniformMatrix4fv(d.mvpLoc, 1, false, (*float32)(unsafe.Pointer(&viewProj[0][0])))

	gl.BindVertexArray(d.vao)
	gl.BindBuffer(gl.ARRAY_BUFFER, d.vbo)
	for _, b := range batches {
		if len(b.Vertices) == 0 {
			continue
		}
		d.upload(b.Vertices)
		gl.Uniform4f(d.colorLoc, b.Color.R, b.Color.G, b.Color.B, b.Color.A)
		gl.DrawArrays(gl.LINES, 0, int32(len(b.Vertices)/3))
	}
	gl.BindVertexArray(0)
}

// upload copies vertices into the bound buffer, growing it when needed.
func (d *Drawer) upload(vertices []float32) {
	size := len(vertices) * 4
	if size > d.capacity {
		d.capacity = max(size, 2*d.capacity)
		gl.BufferData(gl.ARRAY_BUFFER, d.capacity, nil, gl.DYNAMIC_DRAW)
	}
	gl.BufferSubData(gl.ARRAY_BUFFER, 0, size, gl.Ptr(vertices))
}

// Destroy releases all GPU resources.
func (d *Drawer) Destroy() {
	gl.DeleteVertexArrays(1, &d.vao)
	gl.DeleteBuffers(1, &d.vbo)
	gl.DeleteProgram(d.program)
}

func newProgram(vertSrc, fragSrc string) (uint32, error) {
	vert, err := compileShader(vertSrc, gl.VERTEX_SHADER)
	if err != nil {
		return 0, errors.New("compiling vertex shader failed").Wrap(err)
	}
	frag, err := compileShader(fragSrc, gl.FRAGMENT_SHADER)
	if err != nil {
		return 0, errors.New("compiling fragment shader failed").Wrap(err)
	}

	prog := gl.CreateProgram()
	gl.AttachShader(prog, vert)
	gl.AttachShader(prog, frag)
	gl.LinkProgram(prog)

	var status int32
	gl.GetProgramiv(prog, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var logLen int32
		gl.GetProgramiv(prog, gl.INFO_LOG_LENGTH, &logLen)
		log := strings.Repeat("\x00", int(logLen+1))
		gl.GetProgramInfoLog(prog, logLen, nil, gl.Str(log))
		return 0, errors.New("linking shader program failed").
			WithTag("log", strings.TrimRight(log, "\x00"))
	}

	gl.DeleteShader(vert)
	gl.DeleteShader(frag)
	return prog, nil
}

func compileShader(src string, shaderType uint32) (uint32, error) {
	shader := gl.CreateShader(shaderType)
	csrc, free := gl.Strs(src)
	gl.ShaderSource(shader, 1, csrc, nil)
	free()
	gl.CompileShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLen int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &logLen)
		log := strings.Repeat("\x00", int(logLen+1))
		gl.GetShaderInfoLog(shader, logLen, nil, gl.Str(log))
		gl.DeleteShader(shader)
		return 0, errors.New("shader compile failed").
			WithTag("log", strings.TrimRight(log, "\x00"))
	}
	return shader, nil
}
