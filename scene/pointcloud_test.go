package scene

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cloudData(n int) ([]float32, []uint8) {
	positions := make([]float32, 3*n)
	colors := make([]uint8, 3*n)
	for i := range n {
		positions[3*i] = float32(i)
		colors[3*i] = uint8(i)
	}
	return positions, colors
}

func TestPointCloudSetData(t *testing.T) {
	pc := NewPointCloud("cloud", 2, 1)
	assert.False(t, pc.points.Enabled)

	pos, col := cloudData(10)
	require.NoError(t, pc.SetData(10, pos, col, 3))
	assert.True(t, pc.points.Enabled)
	assert.Equal(t, 10, pc.Len())
	assert.NotNil(t, pc.Vertices().Attribute("color3"))
	assert.Equal(t, Ints(3), pc.Vertices().Uniforms["colors"])

	assert.Error(t, pc.SetData(10, pos[:3], col, 3))
	assert.Error(t, pc.SetData(10, pos, col, 2))
	assert.Error(t, pc.SetData(10, pos, col[:5], 3))

	require.NoError(t, pc.SetData(0, nil, nil, 0))
	assert.False(t, pc.points.Enabled)
	assert.Equal(t, Ints(0), pc.Vertices().Uniforms["colors"])
}

func TestPointCloudSelectionIsIdempotent(t *testing.T) {
	pc := NewPointCloud("cloud", 2, 1)
	pos, col := cloudData(8)
	require.NoError(t, pc.SetData(8, pos, col, 3))
	pc.selection.dirty = false

	assert.True(t, pc.UpdateSelection([]int{1, 3, 5}, true))
	assert.True(t, pc.selection.Dirty())
	assert.Equal(t, []int{1, 3, 5}, pc.SelectedIndices())

	pc.selection.dirty = false
	assert.False(t, pc.UpdateSelection([]int{1, 3}, true))
	assert.False(t, pc.selection.Dirty())
	assert.Equal(t, 3, pc.SelectedCount())

	assert.True(t, pc.UpdateSelection([]int{3, 6}, false))
	assert.Equal(t, []int{1, 5}, pc.SelectedIndices())
	assert.False(t, pc.UpdateSelection([]int{3, 6, 42, -1}, false))

	pc.ClearSelection()
	assert.Zero(t, pc.SelectedCount())
	assert.Empty(t, pc.SelectedIndices())
	assert.Equal(t, make([]byte, 8), pc.selection.Attribute("selection").Data)
}

func TestPointCloudVisibleCount(t *testing.T) {
	pc := NewPointCloud("cloud", 2, 1)
	pos, col := cloudData(10)
	require.NoError(t, pc.SetData(10, pos, col, 3))

	for _, tc := range []struct {
		ratio float64
		want  int
	}{
		{1, 10}, {0.5, 5}, {0.11, 2}, {0, 0}, {1.5, 10}, {-1, 0},
	} {
		pc.DisplayRatio = tc.ratio
		assert.Equal(t, tc.want, pc.VisibleCount(), "ratio %v", tc.ratio)
	}
}

func TestPointCloudPointSize(t *testing.T) {
	pc := NewPointCloud("cloud", 2, 1)
	pc.preRender()
	assert.Equal(t, Floats(2, 0), pc.points.Uniforms["pointSize"])

	pc.DisplayRatio = 0.5
	pc.preRender()
	assert.InDelta(t, 2+math.Ln2, pc.points.Uniforms["pointSize"].Values[0], 1e-6)

	// sizes stop growing below a quarter of the points
	pc.DisplayRatio = 0.01
	pc.preRender()
	assert.InDelta(t, 2+math.Log(4), pc.points.Uniforms["pointSize"].Values[0], 1e-6)
}

func TestPointCloudRender(t *testing.T) {
	s, d := newTestScene(t)
	p := s.AddPass("cloud", 0)
	pc := s.AddPointCloud("cloud", 2, 0.5, 0)
	p.AttachNode(pc.Node())

	pos, col := cloudData(10)
	require.NoError(t, pc.SetData(10, pos, col, 3))
	pc.UpdateSelection([]int{0}, true)

	require.NoError(t, s.Render(d, 8, 8, Uniforms{}))
	require.Len(t, d.Draws, 1)
	assert.Equal(t, 5, d.Draws[0].Count)
	assert.Equal(t, []string{"color3", "selection", "vertex3"}, d.Draws[0].Attribs)
	assert.Equal(t, []float32{float32(DefaultSelectedPointSize)}, d.Uniform(d.Draws[0].Program, "selectedPointSize"))

	data := d.Buffers[d.Attribs["selection"].Buffer]
	assert.Equal(t, []byte{1, 0, 0, 0, 0, 0, 0, 0, 0, 0}, data)
}
