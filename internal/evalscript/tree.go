// Package evalscript turns a gradient-boosted tree ensemble into a raster evalscript.
// Package evalscript 将梯度提升树集成模型转换为栅格 evalscript 脚本。
package evalscript

import (
	"fmt"
	"math"

	"github.com/rsdeploy/rsdeploy/internal/utils/fmtutil"
	rserrors "github.com/rsdeploy/rsdeploy/pkg/errors"
)

// maxDepth bounds a single root-to-leaf walk so a cyclic tree fails instead of looping.
const maxDepth = 1 << 16

// Op is the comparison applied at a split: feature <op> threshold selects the left child.
// Op 是分裂节点的比较运算：feature <op> threshold 为真时进入左子树。
type Op string

const (
	OpLessEqual    Op = "<="
	OpLess         Op = "<"
	OpGreater      Op = ">"
	OpGreaterEqual Op = ">="
)

// Valid reports whether o is a supported comparison.
func (o Op) Valid() bool {
	switch o {
	case OpLessEqual, OpLess, OpGreater, OpGreaterEqual:
		return true
	}
	return false
}

// Compare applies the comparison to a feature value and a threshold.
// Compare 对特征值和阈值执行比较。
func (o Op) Compare(value, threshold float64) bool {
	switch o {
	case OpLessEqual:
		return value <= threshold
	case OpLess:
		return value < threshold
	case OpGreater:
		return value > threshold
	case OpGreaterEqual:
		return value >= threshold
	}
	return false
}

// Node is either a *Leaf or a *Split.
// Node 为 *Leaf 或 *Split 之一。
type Node interface {
	isNode()
}

// Leaf holds the score contributed by a tree when a sample reaches it.
// Leaf 保存样本到达该叶子时树贡献的分数。
type Leaf struct {
	Value float64
}

// Split routes a sample left when Features[Feature] <Op> Threshold holds, right otherwise.
// Split 当 Features[Feature] <Op> Threshold 成立时向左，否则向右。
type Split struct {
	Feature   int
	Threshold float64
	Op        Op
	Left      Node
	Right     Node
}

func (*Leaf) isNode()  {}
func (*Split) isNode() {}

// Ensemble is a fitted additive tree model together with its feature and band naming.
// Ensemble 是已拟合的加性树模型及其特征与波段命名。
type Ensemble struct {
	// Trees are summed in order; index i is emitted as pt<i>.
	// Trees 按顺序求和；索引 i 生成为 pt<i>。
	Trees []Node
	// FeatureNames maps Split.Feature to an identifier.
	// FeatureNames 将 Split.Feature 映射为标识符。
	FeatureNames []string
	// Bands are the raw input bands read from each sample.
	// Bands 是从每个样本读取的原始输入波段。
	Bands []string
	// Objective is the training objective as recorded in the model dump.
	Objective string
	// SigmoidCoefficient scales the summed score before the logistic transform; zero means 1.
	// SigmoidCoefficient 在逻辑变换前缩放求和分数；为 0 时视为 1。
	SigmoidCoefficient float64
}

// Sigmoid returns the effective logistic coefficient.
func (e *Ensemble) Sigmoid() float64 {
	if e.SigmoidCoefficient == 0 {
		return 1
	}
	return e.SigmoidCoefficient
}

// RawScore sums the scores of all trees for one feature vector.
// RawScore 计算单个特征向量在所有树上的分数之和。
func (e *Ensemble) RawScore(features []float64) (float64, error) {
	sum := 0.0
	for i, tree := range e.Trees {
		v, err := evaluate(tree, features, treePath(i), fmtutil.NoRounding, fmtutil.NoRounding)
		if err != nil {
			return 0, err
		}
		sum += v
	}
	return sum, nil
}

// Predict applies the logistic transform to RawScore, mirroring the generated predict function.
// Predict 对 RawScore 应用逻辑变换，与生成的 predict 函数一致。
func (e *Ensemble) Predict(features []float64) (float64, error) {
	sum, err := e.RawScore(features)
	if err != nil {
		return 0, err
	}
	return 1 / (1 + math.Exp(-e.Sigmoid()*sum)), nil
}

// NumNodes counts splits and leaves across all trees. Nil children are not counted.
// NumNodes 统计所有树中的分裂节点和叶子节点数量，nil 子节点不计入。
func (e *Ensemble) NumNodes() int {
	count := 0
	stack := append([]Node(nil), e.Trees...)
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		switch n := node.(type) {
		case *Leaf:
			if n != nil {
				count++
			}
		case *Split:
			if n != nil {
				count++
				stack = append(stack, n.Left, n.Right)
			}
		}
	}
	return count
}

// Evaluate walks a single tree and returns the reached leaf value.
// Evaluate 遍历单棵树并返回到达的叶子值。
func Evaluate(root Node, features []float64) (float64, error) {
	return evaluate(root, features, "root", fmtutil.NoRounding, fmtutil.NoRounding)
}

// evaluate walks root with thresholds and leaf values rounded as they would be emitted.
func evaluate(root Node, features []float64, path string, leafDigits, thresholdDigits int) (float64, error) {
	node := root
	for depth := 0; depth < maxDepth; depth++ {
		switch n := node.(type) {
		case *Leaf:
			if n == nil {
				return 0, rserrors.NewNodeError(path, "nil leaf")
			}
			return fmtutil.RoundTo(n.Value, leafDigits), nil
		case *Split:
			if n == nil {
				return 0, rserrors.NewNodeError(path, "nil split")
			}
			if n.Feature < 0 || n.Feature >= len(features) {
				return 0, rserrors.NewIndexError(path, n.Feature, len(features))
			}
			if !n.Op.Valid() {
				return 0, rserrors.NewNodeError(path, fmt.Sprintf("unsupported operator %q", n.Op))
			}
			if n.Op.Compare(features[n.Feature], fmtutil.RoundTo(n.Threshold, thresholdDigits)) {
				node, path = n.Left, path+".left"
			} else {
				node, path = n.Right, path+".right"
			}
		default:
			return 0, rserrors.NewNodeError(path, fmt.Sprintf("unexpected node type %T", node))
		}
	}
	return 0, rserrors.NewNodeError(path, "tree deeper than supported (cycle?)")
}

func treePath(i int) string {
	return fmt.Sprintf("tree[%d].root", i)
}
