package project

import (
	"time"

	"github.com/go-gl/mathgl/mgl64"
)

// subtractiveScale widens removals so that they clear the fringe left by
// the additive brush.
const subtractiveScale = 1.25

// Selection is one brush stroke: every point within Radius of Point is
// added to or removed from the selection.
type Selection struct {
	Point  [3]float64 `json:"pt"`
	Radius float64    `json:"radius"`
	Add    bool       `json:"add"`
	// Time is the click time in Unix milliseconds.
	Time int64 `json:"time"`
}

// NewClick returns the stroke for a click at p with the brush radius.
func NewClick(p mgl64.Vec3, radius float64, add bool, at time.Time) Selection {
	if !add {
		radius *= subtractiveScale
	}
	return Selection{Point: p, Radius: radius, Add: add, Time: at.UnixMilli()}
}

// Equal compares strokes ignoring their time.
func (s Selection) Equal(o Selection) bool {
	return s.Point == o.Point && s.Radius == o.Radius && s.Add == o.Add
}

func (s Selection) Center() mgl64.Vec3 { return s.Point }
