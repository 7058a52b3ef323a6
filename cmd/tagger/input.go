package main

import (
	"mve-tagger/core"
	"mve-tagger/core/window"
	"mve-tagger/gpu"
	"mve-tagger/project"
)

// dragMode is chosen when a button goes down and kept until it is released.
type dragMode int

const (
	dragNone dragMode = iota
	dragOrient
	dragRoll
	dragMove
	dragSelect
)

type click struct {
	x, y float64
	add  bool
}

// input maps window events onto project operations. Selection clicks are
// queued and resolved right after the next render, while the depth buffer
// still holds that frame.
type input struct {
	w    *window.Window
	p    *project.Project
	d    gpu.Device
	save string

	mode         dragMode
	add          bool
	lastX, lastY float64
	clicks       []click
}

func newInput(w *window.Window, p *project.Project, d gpu.Device, save string) *input {
	return &input{w: w, p: p, d: d, save: save}
}

var displayRatios = map[int]float64{
	window.KeyGraveAccent: 0,
	window.Key1:           0.001,
	window.Key2:           0.01,
	window.Key3:           0.02,
	window.Key4:           0.05,
	window.Key5:           0.1,
	window.Key6:           0.15,
	window.Key7:           0.25,
	window.Key8:           0.5,
	window.Key9:           0.75,
	window.Key0:           1,
}

func (in *input) bind() {
	in.w.SetKeyCallback(in.key)
	in.w.SetButtonCallback(in.button)
	in.w.SetCursorCallback(in.cursor)
	in.w.SetScrollCallback(func(_, dy float64) {
		in.p.ZoomCamera(dy)
	})
}

func (in *input) key(key int, shift, ctrl bool) {
	p := in.p
	if ratio, ok := displayRatios[key]; ok {
		p.SetDisplayRatio(ratio)
		return
	}
	const step = 0.25
	switch key {
	case window.KeyEscape:
		in.w.SetShouldClose(true)
	case window.KeyO:
		p.SetCameraMode(project.ModeOrtho)
	case window.KeyP:
		p.SetCameraMode(project.ModePerspective)
	case window.KeyV:
		p.SetCameraMode(project.ModeView)
	case window.KeyRightBracket:
		p.TogglePicture()
	case window.KeyComma:
		p.SetCameraView(-1)
	case window.KeyPeriod:
		p.SetCameraView(1)
	case window.KeyI:
		p.SetCameraAtOrigin(shift)
	case window.KeyW:
		p.MoveCamera(0, 0, -step)
	case window.KeyS:
		p.MoveCamera(0, 0, step)
	case window.KeyA:
		p.MoveCamera(-step, 0, 0)
	case window.KeyD:
		p.MoveCamera(step, 0, 0)
	case window.KeyR:
		p.MoveCamera(0, step, 0)
	case window.KeyF:
		p.MoveCamera(0, -step, 0)
	case window.KeyX:
		p.RemoveCurrentView()
	case window.KeyB:
		p.ToggleBBox()
	case window.KeyL:
		p.ToggleLocation()
	case window.KeyH:
		p.ToggleAxis()
	case window.KeyG:
		p.TogglePlane()
	case window.KeyEnter:
		p.Preselect()
	case window.KeyF5:
		in.saveProject()
	}
}

func (in *input) saveProject() {
	if in.save == "" {
		core.Logger().Warn("no project file to save to, use --save")
		return
	}
	if err := in.p.Save(in.save); err != nil {
		core.Logger().Error("save failed", "err", err)
	}
}

func (in *input) button(button int, pressed bool, x, y float64, shift, ctrl bool) {
	if !pressed {
		in.mode = dragNone
		return
	}
	in.lastX, in.lastY = x, y
	switch {
	case button == window.MouseLeft && ctrl:
		in.mode = dragSelect
		in.add = !shift
		in.queue(x, y)
	case button == window.MouseLeft && shift:
		in.mode = dragRoll
	case button == window.MouseLeft:
		in.mode = dragOrient
	case button == window.MouseRight:
		in.mode = dragMove
	}
}

func (in *input) cursor(x, y float64) {
	dx, dy := x-in.lastX, y-in.lastY
	in.lastX, in.lastY = x, y
	switch in.mode {
	case dragOrient:
		in.p.OrientCamera(dx/3, dy/3, 0)
	case dragRoll:
		in.p.OrientCamera(0, dy/3, dx/3)
	case dragMove:
		in.p.MoveCamera(-dx/10, dy/10, 0)
	case dragSelect:
		in.queue(x, y)
	}
}

// queue records a selection click in framebuffer pixels.
func (in *input) queue(x, y float64) {
	sx, sy := in.w.ContentScale()
	in.clicks = append(in.clicks, click{x: x * sx, y: y * sy, add: in.add})
}

func (in *input) pending() bool { return len(in.clicks) > 0 }

// resolve applies the queued clicks against the frame just rendered.
func (in *input) resolve(width, height int) {
	for _, c := range in.clicks {
		in.p.SelectAt(in.d, int(c.x), int(c.y), width, height, c.add)
	}
	in.clicks = in.clicks[:0]
}
