// Package viewport implements the pan/zoom affine mapping between screen
// and world coordinates: screen = world*k + translate.
package viewport

import (
	"math"
	"sync"

	"github.com/patchbay-dev/patchbay/pkg/models"
)

const (
	// MinScale and MaxScale clamp the zoom factor.
	MinScale = 0.2
	MaxScale = 3.0

	// ZoomStep is the multiplicative factor applied per zoom action.
	ZoomStep = 1.2

	// FitPadding is added around the node bounding box by FitToScreen.
	FitPadding = 80.0
)

// Viewport holds the current transform for one canvas along with the
// viewport size the transform is computed against.
type Viewport struct {
	mu sync.RWMutex

	transform models.CanvasTransform
	width     float64
	height    float64

	subs    map[int]func(models.CanvasTransform)
	nextSub int
}

// New creates a viewport of the given pixel size with the identity
// transform.
func New(width, height float64) *Viewport {
	return &Viewport{
		transform: models.CanvasTransform{X: 0, Y: 0, K: 1},
		width:     width,
		height:    height,
		subs:      make(map[int]func(models.CanvasTransform)),
	}
}

// Subscribe registers a transform observer and returns its unsubscribe
// function.
func (v *Viewport) Subscribe(fn func(models.CanvasTransform)) func() {
	v.mu.Lock()
	defer v.mu.Unlock()

	id := v.nextSub
	v.nextSub++
	v.subs[id] = fn

	return func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		delete(v.subs, id)
	}
}

func (v *Viewport) notify(t models.CanvasTransform) {
	v.mu.RLock()
	subs := make([]func(models.CanvasTransform), 0, len(v.subs))
	for _, fn := range v.subs {
		subs = append(subs, fn)
	}
	v.mu.RUnlock()

	for _, fn := range subs {
		fn(t)
	}
}

// Current returns the transform.
func (v *Viewport) Current() models.CanvasTransform {
	v.mu.RLock()
	defer v.mu.RUnlock()

	return v.transform
}

// SetSize records a viewport resize. The transform is left as-is; callers
// re-fit explicitly when they want re-centering.
func (v *Viewport) SetSize(width, height float64) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.width = width
	v.height = height
}

// Restore applies a persisted transform, clamping the scale into range.
func (v *Viewport) Restore(t models.CanvasTransform) {
	v.mu.Lock()
	t.K = clampScale(t.K)
	v.transform = t
	v.mu.Unlock()

	v.notify(t)
}

// ZoomIn zooms one step toward the viewport center.
func (v *Viewport) ZoomIn() models.CanvasTransform {
	return v.zoomBy(ZoomStep)
}

// ZoomOut zooms one step away from the viewport center.
func (v *Viewport) ZoomOut() models.CanvasTransform {
	return v.zoomBy(1 / ZoomStep)
}

// zoomBy rescales around the viewport center so the point currently under
// the center stays fixed.
func (v *Viewport) zoomBy(factor float64) models.CanvasTransform {
	v.mu.Lock()

	oldK := v.transform.K
	newK := clampScale(oldK * factor)

	if newK != oldK {
		cx := v.width / 2
		cy := v.height / 2

		// World point under the center, re-projected at the new scale.
		wx := (cx - v.transform.X) / oldK
		wy := (cy - v.transform.Y) / oldK

		v.transform = models.CanvasTransform{
			X: cx - wx*newK,
			Y: cy - wy*newK,
			K: newK,
		}
	}

	t := v.transform
	v.mu.Unlock()

	v.notify(t)

	return t
}

// FitToScreen scales and centers the node bounding box, plus padding,
// inside the viewport. It is a pure function of the nodes and viewport
// size: identical inputs always produce an identical transform.
func (v *Viewport) FitToScreen(nodes []*models.Node) models.CanvasTransform {
	v.mu.Lock()

	if len(nodes) == 0 {
		v.transform = models.CanvasTransform{X: 0, Y: 0, K: 1}
	} else {
		minX, minY := math.Inf(1), math.Inf(1)
		maxX, maxY := math.Inf(-1), math.Inf(-1)

		for _, node := range nodes {
			minX = math.Min(minX, node.X)
			minY = math.Min(minY, node.Y)
			maxX = math.Max(maxX, node.X+models.NodeWidth)
			maxY = math.Max(maxY, node.Y+models.NodeHeight)
		}

		minX -= FitPadding
		minY -= FitPadding
		maxX += FitPadding
		maxY += FitPadding

		boundsW := maxX - minX
		boundsH := maxY - minY

		k := clampScale(math.Min(v.width/boundsW, v.height/boundsH))

		v.transform = models.CanvasTransform{
			X: (v.width-boundsW*k)/2 - minX*k,
			Y: (v.height-boundsH*k)/2 - minY*k,
			K: k,
		}
	}

	t := v.transform
	v.mu.Unlock()

	v.notify(t)

	return t
}

// ResetPosition restores scale 1 and centers on the leftmost node, or the
// origin when the canvas is empty. The reference node is deterministic:
// smallest x, ties broken by id.
func (v *Viewport) ResetPosition(nodes []*models.Node) models.CanvasTransform {
	v.mu.Lock()

	if len(nodes) == 0 {
		v.transform = models.CanvasTransform{X: 0, Y: 0, K: 1}
	} else {
		ref := nodes[0]
		for _, node := range nodes[1:] {
			if node.X < ref.X || (node.X == ref.X && node.ID < ref.ID) {
				ref = node
			}
		}

		v.transform = models.CanvasTransform{
			X: v.width/2 - (ref.X + models.NodeWidth/2),
			Y: v.height/2 - (ref.Y + models.NodeHeight/2),
			K: 1,
		}
	}

	t := v.transform
	v.mu.Unlock()

	v.notify(t)

	return t
}

// ScreenToWorld maps a screen point into world coordinates.
func (v *Viewport) ScreenToWorld(sx, sy float64) (float64, float64) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	return (sx - v.transform.X) / v.transform.K, (sy - v.transform.Y) / v.transform.K
}

// WorldToScreen maps a world point into screen coordinates.
func (v *Viewport) WorldToScreen(wx, wy float64) (float64, float64) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	return wx*v.transform.K + v.transform.X, wy*v.transform.K + v.transform.Y
}

func clampScale(k float64) float64 {
	if k < MinScale {
		return MinScale
	}

	if k > MaxScale {
		return MaxScale
	}

	return k
}
