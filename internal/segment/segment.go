// Package segment cuts projected polylines into pieces no longer than a given distance.
// Package segment 将投影折线切分为不超过给定距离的片段。
package segment

import (
	"context"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/rsdeploy/rsdeploy/internal/utils/logger"
	rserrors "github.com/rsdeploy/rsdeploy/pkg/errors"
)

// DefaultTolerance is the relative tolerance for treating a vertex as lying exactly at the cut distance.
// DefaultTolerance 是判定顶点恰好位于切分距离上的相对容差。
const DefaultTolerance = 1e-9

// Options controls how lines are cut.
// Options 控制切分行为。
type Options struct {
	// Tolerance is scaled by max(1, distance). Zero means exact float equality.
	// Tolerance 按 max(1, distance) 缩放，为 0 时使用精确浮点相等。
	Tolerance float64
}

// DefaultOptions returns the options used by Cut.
func DefaultOptions() Options {
	return Options{Tolerance: DefaultTolerance}
}

// Segmenter cuts polylines with a fixed set of options.
// Segmenter 使用固定选项切分折线。
type Segmenter struct {
	opts Options
}

// NewSegmenter creates a Segmenter. A negative tolerance is treated as zero.
func NewSegmenter(opts Options) *Segmenter {
	if opts.Tolerance < 0 || math.IsNaN(opts.Tolerance) {
		opts.Tolerance = 0
	}
	return &Segmenter{opts: opts}
}

// Cut splits line into consecutive pieces with the default options.
// Cut 使用默认选项将折线切分为连续片段。
func Cut(line Polyline, distance float64) ([]Polyline, error) {
	return NewSegmenter(DefaultOptions()).Cut(context.Background(), line, distance)
}

// Cut splits line into consecutive pieces of at most distance units, walking
// from the start. A vertex lying at the cut distance (within tolerance) ends
// the walk with a two-way split there; otherwise a cut point is interpolated
// and the remainder is cut again. Only the final piece may be shorter.
// A non-positive distance, or one at least the line length, returns the line unchanged.
//
// Cut 从起点开始将折线切分为最长 distance 的连续片段。
func (s *Segmenter) Cut(ctx context.Context, line Polyline, distance float64) ([]Polyline, error) {
	if err := validate(line.coords); err != nil {
		return nil, err
	}
	if math.IsNaN(distance) || math.IsInf(distance, 0) {
		return nil, rserrors.NewDistanceError(distance)
	}
	total := line.Length()
	if distance <= 0 || distance >= total {
		return []Polyline{line}, nil
	}

	log := logger.Get(ctx)
	tol := s.opts.Tolerance * math.Max(1, distance)

	var out []Polyline
	cur := line.coords
	curLen := total
	for {
		params := vertexParams(cur)
		next, pieces, done := s.step(cur, params, distance, tol)
		out = append(out, pieces...)
		if done {
			break
		}

		nextLen := planar.Length(next)
		if nextLen <= distance {
			out = append(out, Polyline{coords: next})
			break
		}
		if nextLen >= curLen {
			// Rounding stopped the remainder from shrinking.
			log.Debugf("segment: remainder did not shrink (%.12g >= %.12g), emitting as final piece", nextLen, curLen)
			out = append(out, Polyline{coords: next})
			break
		}
		cur, curLen = next, nextLen
	}

	log.Debugf("segment: cut line of length %.3f into %d pieces at distance %.3f", total, len(out), distance)
	return out, nil
}

// step performs one cut on cur. It returns the pieces to emit, and either the
// remainder to keep cutting or done=true when the walk has finished.
func (s *Segmenter) step(cur orb.LineString, params []float64, distance, tol float64) (orb.LineString, []Polyline, bool) {
	last := len(cur) - 1
	for i := 1; i <= last; i++ {
		pd := params[i]
		if math.Abs(pd-distance) <= tol {
			if i == last {
				return nil, []Polyline{{coords: cur.Clone()}}, true
			}
			head := append(orb.LineString{}, cur[:i+1]...)
			tail := append(orb.LineString{}, cur[i:]...)
			return nil, []Polyline{{coords: head}, {coords: tail}}, true
		}
		if pd > distance {
			cp := interpolate(cur, params, distance)
			head := make(orb.LineString, 0, i+1)
			head = append(head, cur[:i]...)
			head = append(head, cp)

			rest := make(orb.LineString, 0, len(cur)-i+1)
			rest = append(rest, cp)
			rest = append(rest, cur[i:]...)
			return rest, []Polyline{{coords: head}}, false
		}
	}

	// No vertex passed the cut distance; keep what is left as the final piece.
	return nil, []Polyline{{coords: cur.Clone()}}, true
}

// CutMulti cuts every part of mls and returns all pieces in part order.
// CutMulti 切分 mls 的每个部分，并按部分顺序返回所有片段。
func (s *Segmenter) CutMulti(ctx context.Context, mls orb.MultiLineString, distance float64) ([]Polyline, error) {
	var out []Polyline
	for i, part := range mls {
		line, err := NewPolyline(part)
		if err != nil {
			return nil, fmt.Errorf("part %d: %w", i, err)
		}
		pieces, err := s.Cut(ctx, line, distance)
		if err != nil {
			return nil, err
		}
		out = append(out, pieces...)
	}
	return out, nil
}
