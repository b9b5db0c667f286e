package segment

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	rserrors "github.com/rsdeploy/rsdeploy/pkg/errors"
)

// Polyline is an immutable sequence of projected 2D coordinates.
// Polyline 是不可变的二维投影坐标序列。
type Polyline struct {
	coords orb.LineString
}

// NewPolyline validates and copies coords. At least two finite vertices are required.
// NewPolyline 校验并复制坐标，至少需要两个有限值顶点。
func NewPolyline(coords orb.LineString) (Polyline, error) {
	if err := validate(coords); err != nil {
		return Polyline{}, err
	}
	return Polyline{coords: coords.Clone()}, nil
}

// MustPolyline is NewPolyline for literals known to be valid.
func MustPolyline(coords orb.LineString) Polyline {
	p, err := NewPolyline(coords)
	if err != nil {
		panic(err)
	}
	return p
}

func validate(coords orb.LineString) error {
	if len(coords) < 2 {
		return rserrors.NewGeometryError("polyline needs at least 2 coordinates")
	}
	for i, c := range coords {
		if !finite(c[0]) || !finite(c[1]) {
			return rserrors.NewVertexError(i, "non-finite coordinate")
		}
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// LineString returns a copy of the coordinates.
// LineString 返回坐标的副本。
func (p Polyline) LineString() orb.LineString {
	return p.coords.Clone()
}

// NumPoints returns the number of vertices.
func (p Polyline) NumPoints() int {
	return len(p.coords)
}

// Length is the sum of the Euclidean edge lengths.
// Length 是所有边欧氏长度之和。
func (p Polyline) Length() float64 {
	return planar.Length(p.coords)
}

// Project returns the arc-length parameter of the point on the line nearest to pt.
// Ties resolve to the earliest position along the line.
// Project 返回线上距离 pt 最近点的弧长参数，距离相同时取沿线最靠前的位置。
func (p Polyline) Project(pt orb.Point) float64 {
	best := math.Inf(1)
	bestParam := 0.0
	travelled := 0.0
	for i := 1; i < len(p.coords); i++ {
		a, b := p.coords[i-1], p.coords[i]
		edge := planar.Distance(a, b)
		t := 0.0
		if edge > 0 {
			t = ((pt[0]-a[0])*(b[0]-a[0]) + (pt[1]-a[1])*(b[1]-a[1])) / (edge * edge)
			t = math.Max(0, math.Min(1, t))
		}
		nearest := orb.Point{a[0] + t*(b[0]-a[0]), a[1] + t*(b[1]-a[1])}
		if d := planar.Distance(pt, nearest); d < best {
			best = d
			bestParam = travelled + t*edge
		}
		travelled += edge
	}
	return bestParam
}

// Interpolate returns the point at arc length d, clamped to the ends of the line.
// Interpolate 返回弧长 d 处的点，超出范围时截取到端点。
func (p Polyline) Interpolate(d float64) orb.Point {
	return interpolate(p.coords, vertexParams(p.coords), d)
}

// vertexParams returns the cumulative arc length at each vertex.
func vertexParams(coords orb.LineString) []float64 {
	params := make([]float64, len(coords))
	for i := 1; i < len(coords); i++ {
		params[i] = params[i-1] + planar.Distance(coords[i-1], coords[i])
	}
	return params
}

func interpolate(coords orb.LineString, params []float64, d float64) orb.Point {
	if len(coords) == 0 {
		return orb.Point{}
	}
	if d <= 0 {
		return coords[0]
	}
	last := len(coords) - 1
	if d >= params[last] {
		return coords[last]
	}
	for i := 1; i <= last; i++ {
		if params[i] < d {
			continue
		}
		span := params[i] - params[i-1]
		if span == 0 {
			return coords[i]
		}
		t := (d - params[i-1]) / span
		a, b := coords[i-1], coords[i]
		return orb.Point{a[0] + t*(b[0]-a[0]), a[1] + t*(b[1]-a[1])}
	}
	return coords[last]
}
