package opengl

import (
	"fmt"

	gl "github.com/go-gl/gl/v4.1-core/gl"

	"mve-tagger/gpu"
)

// framebuffer is an offscreen color + depth target used to render views at
// their photograph's resolution.
type framebuffer struct {
	fbo      uint32
	colorTex uint32
	depthTex uint32
}

// CreateFramebuffer allocates an RGBA8 color texture and a 32-bit float
// depth texture of width×height.
func (d *Device) CreateFramebuffer(width, height int) (gpu.Handle, error) {
	fb := &framebuffer{}

	gl.GenTextures(1, &fb.colorTex)
	gl.BindTexture(gl.TEXTURE_2D, fb.colorTex)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA8,
		int32(width), int32(height), 0, gl.RGBA, gl.UNSIGNED_BYTE, nil)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.NEAREST)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.NEAREST)

	gl.GenTextures(1, &fb.depthTex)
	gl.BindTexture(gl.TEXTURE_2D, fb.depthTex)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.DEPTH_COMPONENT32F,
		int32(width), int32(height), 0, gl.DEPTH_COMPONENT, gl.FLOAT, nil)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.NEAREST)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.NEAREST)
	gl.BindTexture(gl.TEXTURE_2D, 0)

	gl.GenFramebuffers(1, &fb.fbo)
	gl.BindFramebuffer(gl.FRAMEBUFFER, fb.fbo)
	gl.FramebufferTexture2D(gl.FRAMEBUFFER, gl.COLOR_ATTACHMENT0, gl.TEXTURE_2D, fb.colorTex, 0)
	gl.FramebufferTexture2D(gl.FRAMEBUFFER, gl.DEPTH_ATTACHMENT, gl.TEXTURE_2D, fb.depthTex, 0)

	status := gl.CheckFramebufferStatus(gl.FRAMEBUFFER)
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)

	if status != gl.FRAMEBUFFER_COMPLETE {
		fb.release()
		return 0, fmt.Errorf("offscreen FBO incomplete: status=0x%X", status)
	}

	h := gpu.Handle(fb.fbo)
	d.framebuffers[h] = fb
	return h, nil
}

func (d *Device) BindFramebuffer(framebuffer gpu.Handle) {
	gl.BindFramebuffer(gl.FRAMEBUFFER, uint32(framebuffer))
}

func (d *Device) DeleteFramebuffer(framebuffer gpu.Handle) {
	fb, ok := d.framebuffers[framebuffer]
	if !ok {
		return
	}
	fb.release()
	delete(d.framebuffers, framebuffer)
}

func (fb *framebuffer) release() {
	if fb.fbo != 0 {
		gl.DeleteFramebuffers(1, &fb.fbo)
		fb.fbo = 0
	}
	if fb.colorTex != 0 {
		gl.DeleteTextures(1, &fb.colorTex)
		fb.colorTex = 0
	}
	if fb.depthTex != 0 {
		gl.DeleteTextures(1, &fb.depthTex)
		fb.depthTex = 0
	}
}
