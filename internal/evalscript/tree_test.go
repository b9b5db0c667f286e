package evalscript

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rserrors "github.com/rsdeploy/rsdeploy/pkg/errors"
)

// nestedTree splits on B01 and, on the left, on B02.
func nestedTree() Node {
	return &Split{
		Feature:   0,
		Threshold: 0.5,
		Op:        OpLessEqual,
		Left: &Split{
			Feature:   1,
			Threshold: 2,
			Op:        OpLess,
			Left:      &Leaf{Value: 0.1},
			Right:     &Leaf{Value: 0.2},
		},
		Right: &Leaf{Value: -0.3},
	}
}

type bogusNode struct{}

func (bogusNode) isNode() {}

// TestOp_Compare tests every supported comparison
// TestOp_Compare 测试所有支持的比较运算
func TestOp_Compare(t *testing.T) {
	tests := []struct {
		op       Op
		value    float64
		expected bool
	}{
		{OpLessEqual, 1, true},
		{OpLessEqual, 1.5, false},
		{OpLess, 1, false},
		{OpLess, 0.5, true},
		{OpGreater, 1, false},
		{OpGreater, 2, true},
		{OpGreaterEqual, 1, true},
		{OpGreaterEqual, 0, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.op), func(t *testing.T) {
			assert.True(t, tt.op.Valid())
			assert.Equal(t, tt.expected, tt.op.Compare(tt.value, 1))
		})
	}

	assert.False(t, Op("==").Valid())
	assert.False(t, Op("==").Compare(1, 1))
	// NaN fails every comparison and routes right.
	// NaN 与任何值比较均为假，进入右子树。
	assert.False(t, OpLessEqual.Compare(math.NaN(), 1))
}

// TestEvaluate tests direct tree evaluation
// TestEvaluate 测试直接遍历树求值
func TestEvaluate(t *testing.T) {
	tree := nestedTree()

	tests := []struct {
		name     string
		features []float64
		expected float64
	}{
		{"left left", []float64{0.5, 1}, 0.1},
		{"left right", []float64{0.1, 2}, 0.2},
		{"right", []float64{0.6, 0}, -0.3},
		{"nan goes right", []float64{math.NaN(), 0}, -0.3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := Evaluate(tree, tt.features)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, v)
		})
	}
}

// TestEvaluate_Errors tests malformed trees and short feature vectors
// TestEvaluate_Errors 测试畸形树和过短的特征向量
func TestEvaluate_Errors(t *testing.T) {
	_, err := Evaluate(nestedTree(), []float64{0.1})
	assert.True(t, errors.Is(err, rserrors.ErrIndexOutOfRange))
	assert.Contains(t, err.Error(), "node=root.left")

	_, err = Evaluate(&Split{Feature: 0, Op: "==", Left: &Leaf{}, Right: &Leaf{}}, []float64{1})
	assert.True(t, errors.Is(err, rserrors.ErrMalformedTree))

	_, err = Evaluate(bogusNode{}, []float64{1})
	assert.True(t, errors.Is(err, rserrors.ErrMalformedTree))

	_, err = Evaluate(&Split{Feature: 0, Op: OpLessEqual, Threshold: 1, Right: &Leaf{}}, []float64{0})
	assert.True(t, errors.Is(err, rserrors.ErrMalformedTree))
	assert.Contains(t, err.Error(), "root.left")
}

// TestEvaluate_Cycle tests that a cyclic tree fails instead of looping
// TestEvaluate_Cycle 测试环形树返回错误而非死循环
func TestEvaluate_Cycle(t *testing.T) {
	s := &Split{Feature: 0, Op: OpLessEqual, Threshold: 1, Right: &Leaf{}}
	s.Left = s

	_, err := Evaluate(s, []float64{0})
	assert.True(t, errors.Is(err, rserrors.ErrMalformedTree))
}

// TestEnsemble_Predict tests the logistic aggregation
// TestEnsemble_Predict 测试逻辑汇总
func TestEnsemble_Predict(t *testing.T) {
	ens := &Ensemble{
		Trees:        []Node{&Leaf{Value: 0.25}, &Leaf{Value: -0.25}},
		FeatureNames: []string{"B01"},
	}
	assert.Equal(t, 1.0, ens.Sigmoid())

	raw, err := ens.RawScore([]float64{0})
	require.NoError(t, err)
	assert.Equal(t, 0.0, raw)

	p, err := ens.Predict([]float64{0})
	require.NoError(t, err)
	assert.Equal(t, 0.5, p)

	ens.Trees = []Node{&Leaf{Value: 1}}
	ens.SigmoidCoefficient = 2
	p, err = ens.Predict([]float64{0})
	require.NoError(t, err)
	assert.InDelta(t, 1/(1+math.Exp(-2)), p, 1e-12)

	ens.Trees = []Node{nestedTree()}
	_, err = ens.Predict([]float64{0})
	assert.True(t, errors.Is(err, rserrors.ErrIndexOutOfRange))
	assert.Contains(t, err.Error(), "tree[0].root")
}

// TestEnsemble_NumNodes tests node counting across trees
// TestEnsemble_NumNodes 测试跨树的节点计数
func TestEnsemble_NumNodes(t *testing.T) {
	ens := &Ensemble{Trees: []Node{nestedTree(), &Leaf{Value: 1}}}
	assert.Equal(t, 6, ens.NumNodes())
	assert.Equal(t, 0, (&Ensemble{}).NumNodes())
}
