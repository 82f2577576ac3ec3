package geometry

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// segmentDistance is a straightforward point-to-segment distance used as a
// reference for the rotated-frame implementation.
func segmentDistance(p, a, b Vec) float64 {
	ab := b.Sub(a)
	l2 := ab.Dot(ab)
	if l2 == 0 {
		return p.Dist(a)
	}
	t := math.Max(0, math.Min(1, p.Sub(a).Dot(ab)/l2))
	return p.Dist(a.Add(ab.Mul(t)))
}

func TestObstacle_DerivedFields(t *testing.T) {
	o := NewObstacle("wall", Vec{0, 0}, Vec{10, 10}, 4)
	assert.InDelta(t, math.Pi/4, o.Angle(), 1e-12)

	minX, maxX := o.Span()
	assert.InDelta(t, 0, minX, 1e-9)
	assert.InDelta(t, math.Sqrt(200), maxX, 1e-9)

	o.SetPos(Vec{10, 0}, Vec{0, 0})
	a, b := o.Endpoints()
	assert.Equal(t, Vec{10, 0}, a)
	assert.Equal(t, Vec{0, 0}, b)
	assert.InDelta(t, math.Pi, o.Angle(), 1e-12)
	minX, maxX = o.Span()
	assert.InDelta(t, -10, minX, 1e-9)
	assert.InDelta(t, 0, maxX, 1e-9)

	bound := o.Bound()
	assert.Equal(t, -4.0, bound.Min[0])
	assert.Equal(t, 14.0, bound.Max[0])
}

func TestDistanceToObstacle(t *testing.T) {
	o := NewObstacle("h", Vec{0, 0}, Vec{10, 0}, 2)

	tests := []struct {
		name      string
		p         Vec
		radius    float64
		wantDist  float64
		wantAngle float64
	}{
		{"above middle", Vec{5, 10}, 1, 7, math.Pi / 2},
		{"below middle", Vec{5, -10}, 1, 7, -math.Pi / 2},
		{"beyond B", Vec{20, 0}, 1, 7, 0},
		{"before A", Vec{-3, 4}, 0, 3, math.Atan2(4, -3)},
		{"inside capsule", Vec{5, 1}, 1, 0, math.Pi / 2},
		{"on span boundary", Vec{0, 5}, 0, 3, math.Pi / 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, a := DistanceToObstacle(tt.p, tt.radius, o)
			assert.InDelta(t, tt.wantDist, d, 1e-9)
			assert.InDelta(t, tt.wantAngle, a, 1e-9)
		})
	}
}

func TestDistanceToObstacle_MatchesTrueClearance(t *testing.T) {
	obstacles := []*Obstacle{
		NewObstacle("diag", Vec{100, 400}, Vec{300, 400}, 8),
		NewObstacle("slant", Vec{300, 230}, Vec{400, 330}, 8),
		NewObstacle("steep", Vec{100, 50}, Vec{50, 200}, 3),
		NewObstacle("dot", Vec{200, 200}, Vec{200, 200}, 5),
	}
	const r = 8.0

	for _, o := range obstacles {
		a, b := o.Endpoints()
		for x := 0.0; x <= 512; x += 17 {
			for y := 0.0; y <= 512; y += 19 {
				p := Vec{x, y}
				d, _ := DistanceToObstacle(p, r, o)
				require.GreaterOrEqual(t, d, 0.0)

				want := math.Max(0, segmentDistance(p, a, b)-o.Width-r)
				require.InDelta(t, want, d, 1e-6, "obstacle %s point %v", o.ID, p)
				if segmentDistance(p, a, b) <= o.Width+r {
					require.Zero(t, d)
				}
			}
		}
	}
}

func TestDistanceToObstacle_AnglePointsAway(t *testing.T) {
	o := NewObstacle("slant", Vec{300, 230}, Vec{400, 330}, 8)
	p := Vec{300, 300}
	d0, angle := DistanceToObstacle(p, 0, o)
	require.Positive(t, d0)

	// Stepping along the returned angle increases clearance.
	d1, _ := DistanceToObstacle(p.Add(Polar(1, angle)), 0, o)
	assert.Greater(t, d1, d0)
}

func TestDistanceToAgent(t *testing.T) {
	d, a, ok := DistanceToAgent(Vec{10, 0}, 2, Vec{0, 0}, 3)
	require.True(t, ok)
	assert.Equal(t, 5.0, d)
	assert.Equal(t, 0.0, a)

	d, _, ok = DistanceToAgent(Vec{1, 0}, 2, Vec{0, 0}, 3)
	require.True(t, ok)
	assert.Zero(t, d)

	_, _, ok = DistanceToAgent(Vec{4, 4}, 1, Vec{4, 4}, 1)
	assert.False(t, ok)
}
