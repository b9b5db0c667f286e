package errors

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrInvalidGeometry wraps ErrInvalidArgument so callers may match either.
	// ErrInvalidGeometry 包装了 ErrInvalidArgument，调用方可以匹配任意一个。
	ErrInvalidGeometry = fmt.Errorf("%w: invalid geometry", ErrInvalidArgument)
	ErrIndexOutOfRange = errors.New("index out of range")
	ErrMalformedTree   = errors.New("malformed tree")
	ErrConfigInvalid   = errors.New("invalid configuration")
	ErrVerifyMismatch  = errors.New("generated expression does not match tree")
	ErrExpressionEval  = errors.New("generated expression could not be evaluated")
	ErrInvalidFilePath = errors.New("invalid file path")
)

// NewVertexError reports a problem with a specific polyline vertex.
// NewVertexError 报告特定折线顶点的问题。
func NewVertexError(index int, reason string) error {
	return fmt.Errorf("%w: vertex=%d: %s", ErrInvalidGeometry, index, reason)
}

func NewGeometryError(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidGeometry, reason)
}

func NewDistanceError(distance float64) error {
	return fmt.Errorf("%w: distance=%v", ErrInvalidArgument, distance)
}

func NewArgumentError(field string, value interface{}) error {
	return fmt.Errorf("%w: %s=%v", ErrInvalidArgument, field, value)
}

// NewIndexError reports a feature index outside the feature-name list.
// NewIndexError 报告超出特征名称列表范围的特征索引。
func NewIndexError(node string, index, length int) error {
	return fmt.Errorf("%w: node=%s feature_index=%d features=%d", ErrIndexOutOfRange, node, index, length)
}

func NewNodeError(node string, reason string) error {
	return fmt.Errorf("%w: node=%s: %s", ErrMalformedTree, node, reason)
}

func NewConfigError(field string, value interface{}) error {
	return fmt.Errorf("%w: field=%s value=%v", ErrConfigInvalid, field, value)
}

func NewVerifyError(tree int, sample int, want, got float64) error {
	return fmt.Errorf("%w: tree=%d sample=%d want=%v got=%v", ErrVerifyMismatch, tree, sample, want, got)
}

// NewPredictError reports a combined predict value that drifted from the model.
// NewPredictError 报告组合后的 predict 值与模型不一致。
func NewPredictError(sample int, want, got float64) error {
	return fmt.Errorf("%w: predict sample=%d want=%v got=%v", ErrVerifyMismatch, sample, want, got)
}

// NewExpressionError reports a generated tree expression that expr could not
// compile or run, as opposed to one that evaluated to a different value.
// NewExpressionError 报告 expr 无法编译或运行的树表达式，区别于结果不一致。
func NewExpressionError(tree int, stage string, reason error) error {
	return fmt.Errorf("%w: tree=%d: %s: %v", ErrExpressionEval, tree, stage, reason)
}

func NewFilePathError(path string, reason error) error {
	return fmt.Errorf("%w: %s: %w", ErrInvalidFilePath, path, reason)
}
