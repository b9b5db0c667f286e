package segment

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rserrors "github.com/rsdeploy/rsdeploy/pkg/errors"
)

const eps = 1e-6

func lengths(pieces []Polyline) []float64 {
	out := make([]float64, len(pieces))
	for i, p := range pieces {
		out[i] = p.Length()
	}
	return out
}

// joined concatenates pieces, dropping the shared first point of every piece after the first.
func joined(t *testing.T, pieces []Polyline) orb.LineString {
	t.Helper()
	var out orb.LineString
	for i, p := range pieces {
		ls := p.LineString()
		if i == 0 {
			out = append(out, ls...)
			continue
		}
		require.Equal(t, out[len(out)-1], ls[0], "piece %d does not start where piece %d ends", i, i-1)
		out = append(out, ls[1:]...)
	}
	return out
}

// isSubsequence reports whether every point of want appears in got, in order.
func isSubsequence(want, got orb.LineString) bool {
	j := 0
	for _, p := range got {
		if j < len(want) && p == want[j] {
			j++
		}
	}
	return j == len(want)
}

func assertLineNear(t *testing.T, want, got orb.LineString) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		assert.InDelta(t, want[i][0], got[i][0], eps, "x of point %d", i)
		assert.InDelta(t, want[i][1], got[i][1], eps, "y of point %d", i)
	}
}

// TestCut_StraightLine tests the 250 / 100 scenario
// TestCut_StraightLine 测试 250 长直线按 100 切分
func TestCut_StraightLine(t *testing.T) {
	line := MustPolyline(orb.LineString{{0, 0}, {250, 0}})

	pieces, err := Cut(line, 100)
	require.NoError(t, err)
	require.Len(t, pieces, 3)
	assert.InDeltaSlice(t, []float64{100, 100, 50}, lengths(pieces), eps)

	assertLineNear(t, orb.LineString{{0, 0}, {100, 0}}, pieces[0].LineString())
	assertLineNear(t, orb.LineString{{100, 0}, {200, 0}}, pieces[1].LineString())
	assertLineNear(t, orb.LineString{{200, 0}, {250, 0}}, pieces[2].LineString())
}

// TestCut_NoSegmentation tests distances that leave the line unchanged
// TestCut_NoSegmentation 测试不需要切分的距离
func TestCut_NoSegmentation(t *testing.T) {
	line := MustPolyline(orb.LineString{{0, 0}, {30, 40}, {60, 80}})

	for _, d := range []float64{0, -5, 100, 1000} {
		pieces, err := Cut(line, d)
		require.NoError(t, err)
		require.Len(t, pieces, 1, "distance %v", d)
		assert.Equal(t, line.LineString(), pieces[0].LineString())
	}
}

// TestCut_ExactVertex tests the split at a vertex lying exactly at the distance
// TestCut_ExactVertex 测试顶点恰好位于切分距离时的切分
func TestCut_ExactVertex(t *testing.T) {
	line := MustPolyline(orb.LineString{{0, 0}, {100, 0}, {300, 0}})

	pieces, err := Cut(line, 100)
	require.NoError(t, err)
	require.Len(t, pieces, 2)
	assert.Equal(t, orb.LineString{{0, 0}, {100, 0}}, pieces[0].LineString())
	// The walk stops after an exact split; the suffix is not cut again.
	// 精确切分后停止，后缀不再继续切分。
	assert.Equal(t, orb.LineString{{100, 0}, {300, 0}}, pieces[1].LineString())
}

// TestCut_ExactVertexWithinTolerance tests the tolerance-based vertex match
// TestCut_ExactVertexWithinTolerance 测试基于容差的顶点匹配
func TestCut_ExactVertexWithinTolerance(t *testing.T) {
	line := MustPolyline(orb.LineString{{0, 0}, {100 + 1e-9, 0}, {250, 0}})

	pieces, err := Cut(line, 100)
	require.NoError(t, err)
	require.Len(t, pieces, 2)
	assert.Equal(t, orb.LineString{{0, 0}, {100 + 1e-9, 0}}, pieces[0].LineString())
	assert.Equal(t, orb.LineString{{100 + 1e-9, 0}, {250, 0}}, pieces[1].LineString())

	// With zero tolerance the vertex is passed and a cut point is interpolated.
	// 容差为 0 时会越过该顶点并插值切点。
	exact := NewSegmenter(Options{Tolerance: 0})
	pieces, err = exact.Cut(context.Background(), line, 100)
	require.NoError(t, err)
	require.Len(t, pieces, 3)
	assert.InDelta(t, 100, pieces[0].LineString()[1][0], eps)
	assert.InDeltaSlice(t, []float64{100, 100, 50}, lengths(pieces), eps)
}

// TestCut_ExactVertexInRemainder tests an exact match found while cutting a remainder
// TestCut_ExactVertexInRemainder 测试在剩余部分中遇到精确匹配
func TestCut_ExactVertexInRemainder(t *testing.T) {
	line := MustPolyline(orb.LineString{{0, 0}, {200, 0}, {300, 0}, {600, 0}})

	pieces, err := Cut(line, 100)
	require.NoError(t, err)
	require.Len(t, pieces, 3)
	assert.InDeltaSlice(t, []float64{100, 100, 400}, lengths(pieces), eps)
	assert.Equal(t, orb.LineString{{100, 0}, {200, 0}}, pieces[1].LineString())
	assert.Equal(t, orb.LineString{{200, 0}, {300, 0}, {600, 0}}, pieces[2].LineString())
}

// TestCut_Bend tests cuts that fall inside different edges of a bent line
// TestCut_Bend 测试折线在不同边上的切分
func TestCut_Bend(t *testing.T) {
	line := MustPolyline(orb.LineString{{0, 0}, {0, 60}, {80, 60}})

	pieces, err := Cut(line, 50)
	require.NoError(t, err)
	require.Len(t, pieces, 3)
	assert.InDeltaSlice(t, []float64{50, 50, 40}, lengths(pieces), eps)
	assertLineNear(t, orb.LineString{{0, 0}, {0, 50}}, pieces[0].LineString())
	assertLineNear(t, orb.LineString{{0, 50}, {0, 60}, {40, 60}}, pieces[1].LineString())
	assertLineNear(t, orb.LineString{{40, 60}, {80, 60}}, pieces[2].LineString())
}

// TestCut_DoesNotMutateInput tests that the input line is left untouched
// TestCut_DoesNotMutateInput 测试输入折线不会被修改
func TestCut_DoesNotMutateInput(t *testing.T) {
	coords := orb.LineString{{0, 0}, {250, 0}}
	line := MustPolyline(coords)

	_, err := Cut(line, 100)
	require.NoError(t, err)
	assert.Equal(t, orb.LineString{{0, 0}, {250, 0}}, line.LineString())

	// Mutating the returned copy does not affect the polyline
	// 修改返回的副本不影响折线本身
	ls := line.LineString()
	ls[0] = orb.Point{9, 9}
	assert.Equal(t, orb.Point{0, 0}, line.LineString()[0])
}

// TestCut_InvalidInput tests validation errors
// TestCut_InvalidInput 测试校验错误
func TestCut_InvalidInput(t *testing.T) {
	line := MustPolyline(orb.LineString{{0, 0}, {10, 0}})

	_, err := Cut(line, math.NaN())
	assert.True(t, errors.Is(err, rserrors.ErrInvalidArgument))
	assert.False(t, errors.Is(err, rserrors.ErrInvalidGeometry))

	_, err = Cut(line, math.Inf(1))
	assert.True(t, errors.Is(err, rserrors.ErrInvalidArgument))

	_, err = Cut(Polyline{}, 10)
	assert.True(t, errors.Is(err, rserrors.ErrInvalidGeometry))

	_, err = NewPolyline(orb.LineString{{0, 0}})
	assert.True(t, errors.Is(err, rserrors.ErrInvalidGeometry))

	_, err = NewPolyline(orb.LineString{{0, 0}, {1, 1}, {math.NaN(), 2}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, rserrors.ErrInvalidArgument))
	assert.Contains(t, err.Error(), "vertex=2")
}

// TestCut_Properties tests reconstruction and length bounds on random lines
// TestCut_Properties 在随机折线上测试重建与长度约束
func TestCut_Properties(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 7))

	for n := 0; n < 200; n++ {
		nv := 2 + rng.IntN(15)
		coords := make(orb.LineString, nv)
		for i := range coords {
			coords[i] = orb.Point{rng.Float64() * 1000, rng.Float64() * 1000}
		}
		line := MustPolyline(coords)
		d := line.Length() * (0.01 + 0.9*rng.Float64())

		pieces, err := Cut(line, d)
		require.NoError(t, err)
		require.NotEmpty(t, pieces)

		sum := 0.0
		for i, p := range pieces {
			l := p.Length()
			sum += l
			if i < len(pieces)-1 {
				assert.LessOrEqual(t, l, d+eps, "case %d piece %d", n, i)
			}
		}
		assert.InDelta(t, line.Length(), sum, eps*float64(len(pieces)), "case %d", n)

		all := joined(t, pieces)
		assert.True(t, isSubsequence(coords, all), "case %d: original vertices lost", n)
		assert.Equal(t, coords[0], all[0])
		assert.Equal(t, coords[len(coords)-1], all[len(all)-1])
		for _, p := range all {
			assert.InDelta(t, 0, distanceToLine(line, p), eps, "case %d: cut point off the line", n)
		}
	}
}

func distanceToLine(line Polyline, p orb.Point) float64 {
	q := line.Interpolate(line.Project(p))
	return math.Hypot(p[0]-q[0], p[1]-q[1])
}

// TestCut_Deterministic tests that repeated cuts give identical output
// TestCut_Deterministic 测试重复切分结果一致
func TestCut_Deterministic(t *testing.T) {
	line := MustPolyline(orb.LineString{{0, 0}, {13, 7}, {40, -3}, {90, 22}})
	a, err := Cut(line, 17)
	require.NoError(t, err)
	b, err := Cut(line, 17)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

// TestStep_NoVertexPastDistance tests the fallback when rounding hides the cut
// TestStep_NoVertexPastDistance 测试舍入导致无顶点超过距离时的回退
func TestStep_NoVertexPastDistance(t *testing.T) {
	s := NewSegmenter(Options{})
	cur := orb.LineString{{0, 0}, {10, 0}}

	next, pieces, done := s.step(cur, vertexParams(cur), 10.5, 0)
	assert.True(t, done)
	assert.Nil(t, next)
	require.Len(t, pieces, 1)
	assert.Equal(t, cur, pieces[0].LineString())
}

// TestCutMulti tests cutting every part of a MultiLineString
// TestCutMulti 测试切分 MultiLineString 的每个部分
func TestCutMulti(t *testing.T) {
	s := NewSegmenter(DefaultOptions())
	mls := orb.MultiLineString{
		{{0, 0}, {250, 0}},
		{{0, 10}, {50, 10}},
	}

	pieces, err := s.CutMulti(context.Background(), mls, 100)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{100, 100, 50, 50}, lengths(pieces), eps)

	_, err = s.CutMulti(context.Background(), orb.MultiLineString{{{0, 0}}}, 100)
	assert.True(t, errors.Is(err, rserrors.ErrInvalidGeometry))
	assert.Contains(t, err.Error(), "part 0")
}

// TestNewSegmenter_NegativeTolerance tests tolerance normalization
// TestNewSegmenter_NegativeTolerance 测试容差规范化
func TestNewSegmenter_NegativeTolerance(t *testing.T) {
	assert.Equal(t, 0.0, NewSegmenter(Options{Tolerance: -1}).opts.Tolerance)
	assert.Equal(t, 0.0, NewSegmenter(Options{Tolerance: math.NaN()}).opts.Tolerance)
}
