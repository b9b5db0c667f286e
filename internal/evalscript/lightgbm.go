package evalscript

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rsdeploy/rsdeploy/internal/utils/fileutil"
	"github.com/rsdeploy/rsdeploy/internal/utils/logger"
	rserrors "github.com/rsdeploy/rsdeploy/pkg/errors"
)

// lgbmModel is the subset of a LightGBM dump_model() document that the compiler reads.
type lgbmModel struct {
	NumClass     int        `json:"num_class"`
	Objective    string     `json:"objective"`
	FeatureNames []string   `json:"feature_names"`
	TreeInfo     []lgbmTree `json:"tree_info"`
}

type lgbmTree struct {
	TreeIndex     int       `json:"tree_index"`
	NumLeaves     int       `json:"num_leaves"`
	TreeStructure *lgbmNode `json:"tree_structure"`
}

// lgbmNode is either a split (split_feature set) or a leaf (leaf_value set).
type lgbmNode struct {
	SplitFeature *int            `json:"split_feature"`
	Threshold    json.RawMessage `json:"threshold"`
	DecisionType string          `json:"decision_type"`
	LeftChild    *lgbmNode       `json:"left_child"`
	RightChild   *lgbmNode       `json:"right_child"`
	LeafValue    *float64        `json:"leaf_value"`
	LeafIndex    *int            `json:"leaf_index"`
}

// LoadLightGBMFile reads a LightGBM JSON dump from path ("-" for stdin).
// LoadLightGBMFile 从 path 读取 LightGBM JSON 模型转储（"-" 表示标准输入）。
func LoadLightGBMFile(ctx context.Context, stdin io.Reader, path string) (*Ensemble, error) {
	data, err := fileutil.ReadInput(stdin, path)
	if err != nil {
		return nil, err
	}
	return LoadLightGBM(ctx, bytes.NewReader(data))
}

// LoadLightGBM parses a LightGBM dump_model() JSON document into an Ensemble.
// Only single-output models are supported. Bands are left empty for the caller to fill.
// LoadLightGBM 将 LightGBM dump_model() JSON 文档解析为 Ensemble，仅支持单输出模型。
func LoadLightGBM(ctx context.Context, r io.Reader) (*Ensemble, error) {
	log := logger.Get(ctx)

	var m lgbmModel
	dec := json.NewDecoder(r)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("%w: decode model dump: %v", rserrors.ErrInvalidArgument, err)
	}
	if m.NumClass > 1 {
		return nil, rserrors.NewArgumentError("num_class", m.NumClass)
	}
	if len(m.FeatureNames) == 0 {
		return nil, rserrors.NewArgumentError("feature_names", "[]")
	}
	if len(m.TreeInfo) == 0 {
		return nil, rserrors.NewArgumentError("tree_info", "[]")
	}

	coef, binary, err := parseObjective(m.Objective)
	if err != nil {
		return nil, err
	}
	if !binary {
		log.Warnf("lightgbm: objective %q is not binary; predict() still applies a sigmoid", m.Objective)
	}

	ens := &Ensemble{
		Trees:              make([]Node, len(m.TreeInfo)),
		FeatureNames:       append([]string(nil), m.FeatureNames...),
		Objective:          m.Objective,
		SigmoidCoefficient: coef,
	}
	nodes := 0
	for i, info := range m.TreeInfo {
		root, n, err := convertTree(info.TreeStructure, treePath(i))
		if err != nil {
			return nil, err
		}
		ens.Trees[i] = root
		nodes += n
	}

	log.Debugf("lightgbm: loaded %d trees, %d nodes, %d features", len(ens.Trees), nodes, len(ens.FeatureNames))
	return ens, nil
}

// parseObjective extracts the sigmoid coefficient from strings like "binary sigmoid:1".
func parseObjective(objective string) (coef float64, binary bool, err error) {
	fields := strings.Fields(objective)
	if len(fields) == 0 {
		return 0, false, nil
	}
	switch fields[0] {
	case "binary", "cross_entropy", "xentropy":
		binary = true
	}
	for _, f := range fields[1:] {
		v, ok := strings.CutPrefix(f, "sigmoid:")
		if !ok {
			continue
		}
		coef, err = strconv.ParseFloat(v, 64)
		if err != nil || coef <= 0 {
			return 0, binary, rserrors.NewArgumentError("objective", objective)
		}
	}
	return coef, binary, nil
}

type convertTask struct {
	raw  *lgbmNode
	path string
	dst  *Node
}

// convertTree builds the Node tree iteratively and returns the number of nodes.
func convertTree(raw *lgbmNode, path string) (Node, int, error) {
	var root Node
	count := 0
	stack := []convertTask{{raw: raw, path: path, dst: &root}}

	for len(stack) > 0 {
		t := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		count++

		if t.raw == nil {
			return nil, 0, rserrors.NewNodeError(t.path, "missing node")
		}

		switch {
		case t.raw.SplitFeature != nil:
			op, err := decisionOp(t.raw.DecisionType)
			if err != nil {
				return nil, 0, rserrors.NewNodeError(t.path, err.Error())
			}
			var threshold float64
			if err := json.Unmarshal(t.raw.Threshold, &threshold); err != nil {
				return nil, 0, rserrors.NewNodeError(t.path, fmt.Sprintf("threshold %s is not a number", string(t.raw.Threshold)))
			}
			s := &Split{Feature: *t.raw.SplitFeature, Threshold: threshold, Op: op}
			*t.dst = s
			stack = append(stack,
				convertTask{raw: t.raw.RightChild, path: t.path + ".right", dst: &s.Right},
				convertTask{raw: t.raw.LeftChild, path: t.path + ".left", dst: &s.Left},
			)

		case t.raw.LeafValue != nil:
			*t.dst = &Leaf{Value: *t.raw.LeafValue}

		default:
			return nil, 0, rserrors.NewNodeError(t.path, "neither split_feature nor leaf_value present")
		}
	}
	return root, count, nil
}

func decisionOp(decisionType string) (Op, error) {
	switch decisionType {
	case "", "<=":
		return OpLessEqual, nil
	case "==":
		return "", fmt.Errorf("categorical split %q is not supported", decisionType)
	}
	op := Op(decisionType)
	if !op.Valid() {
		return "", fmt.Errorf("unsupported decision_type %q", decisionType)
	}
	return op, nil
}
