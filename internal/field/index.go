package field

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/cxd309/apf-engine/internal/geometry"
	"github.com/dhconnelly/rtreego"
)

// minExtent keeps rtree rectangles non-degenerate for horizontal or vertical
// zero-width obstacles.
const minExtent = 1e-9

// indexed wraps an obstacle with the bounds it was inserted under, so it can
// be found again for deletion after the obstacle itself has moved.
type indexed struct {
	obstacle *geometry.Obstacle
	seq      int
	bounds   rtreego.Rect
	inTree   bool
}

func (x *indexed) Bounds() rtreego.Rect { return x.bounds }

// ObstacleIndex is an R-tree of obstacle bounding boxes. It is safe for
// concurrent use: loops query it every tick while obstacles are added or moved.
//
// An indexed obstacle re-indexes itself whenever it moves, whether through
// Move or a direct SetPos. An obstacle belongs to at most one index.
type ObstacleIndex struct {
	mu    sync.RWMutex
	tree  *rtreego.Rtree
	byID  map[geometry.ObstacleID]*indexed
	order []*indexed
	seq   int
}

// NewObstacleIndex returns an empty index.
func NewObstacleIndex() *ObstacleIndex {
	return &ObstacleIndex{
		tree: rtreego.NewTree(2, 8, 32),
		byID: make(map[geometry.ObstacleID]*indexed),
	}
}

func obstacleRect(o *geometry.Obstacle) (rtreego.Rect, error) {
	b := o.Bound()
	for _, v := range []float64{b.Min[0], b.Min[1], b.Max[0], b.Max[1]} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return rtreego.Rect{}, errors.New("non-finite bounds")
		}
	}
	return rtreego.NewRect(
		rtreego.Point{b.Min[0], b.Min[1]},
		[]float64{math.Max(b.Max[0]-b.Min[0], minExtent), math.Max(b.Max[1]-b.Min[1], minExtent)},
	)
}

// Add inserts o. IDs must be unique.
func (x *ObstacleIndex) Add(o *geometry.Obstacle) error {
	rect, err := obstacleRect(o)
	if err != nil {
		return fmt.Errorf("obstacle %q bounds: %w", o.ID, err)
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	if _, exists := x.byID[o.ID]; exists {
		return fmt.Errorf("obstacle %q already exists", o.ID)
	}
	entry := &indexed{obstacle: o, seq: x.seq, bounds: rect, inTree: true}
	x.seq++
	x.tree.Insert(entry)
	x.byID[o.ID] = entry
	x.order = append(x.order, entry)
	o.OnMove(x.reindex)
	return nil
}

// Move sets new endpoints for the obstacle with the given ID. The obstacle is
// re-indexed by its move listener.
func (x *ObstacleIndex) Move(id geometry.ObstacleID, a, b geometry.Vec) error {
	x.mu.RLock()
	entry, ok := x.byID[id]
	x.mu.RUnlock()
	if !ok {
		return fmt.Errorf("obstacle %q not found", id)
	}
	entry.obstacle.SetPos(a, b)

	x.mu.RLock()
	inTree := entry.inTree
	x.mu.RUnlock()
	if !inTree {
		return fmt.Errorf("obstacle %q bounds: non-finite endpoints %v, %v", id, a, b)
	}
	return nil
}

// reindex replaces o's rectangle with one built from its current endpoints.
// An obstacle whose bounds cannot form a rectangle (NaN endpoints) leaves
// the tree until it is moved somewhere valid.
func (x *ObstacleIndex) reindex(o *geometry.Obstacle) {
	x.mu.Lock()
	defer x.mu.Unlock()
	entry, ok := x.byID[o.ID]
	if !ok || entry.obstacle != o {
		return
	}
	if entry.inTree {
		x.tree.Delete(entry)
		entry.inTree = false
	}
	rect, err := obstacleRect(o)
	if err != nil {
		return
	}
	entry.bounds = rect
	x.tree.Insert(entry)
	entry.inTree = true
}

// All returns every obstacle in insertion order.
func (x *ObstacleIndex) All() []*geometry.Obstacle {
	x.mu.RLock()
	defer x.mu.RUnlock()
	out := make([]*geometry.Obstacle, len(x.order))
	for i, e := range x.order {
		out[i] = e.obstacle
	}
	return out
}

// Len returns the number of obstacles.
func (x *ObstacleIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.order)
}

// Near returns, in insertion order, the obstacles whose bounds intersect the
// square of half-side reach around p. It is a superset of the obstacles
// within clearance reach of p.
func (x *ObstacleIndex) Near(p geometry.Vec, reach float64) []*geometry.Obstacle {
	side := math.Max(2*reach, minExtent)
	rect, err := rtreego.NewRect(rtreego.Point{p.X - reach, p.Y - reach}, []float64{side, side})
	if err != nil {
		return x.All()
	}

	x.mu.RLock()
	hits := x.tree.SearchIntersect(rect)
	x.mu.RUnlock()

	entries := make([]*indexed, 0, len(hits))
	for _, h := range hits {
		entries = append(entries, h.(*indexed))
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })

	out := make([]*geometry.Obstacle, len(entries))
	for i, e := range entries {
		out[i] = e.obstacle
	}
	return out
}
