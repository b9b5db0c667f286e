package evalscript

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/rsdeploy/rsdeploy/internal/utils/fmtutil"
	"github.com/rsdeploy/rsdeploy/internal/utils/logger"
	rserrors "github.com/rsdeploy/rsdeploy/pkg/errors"
)

// NoRounding emits literals at full precision.
// NoRounding 表示以完整精度输出字面量。
const NoRounding = fmtutil.NoRounding

const (
	DefaultLeafPrecision      = 4
	DefaultThresholdPrecision = NoRounding
	DefaultUnits              = "REFLECTANCE"
)

// Options controls literal rounding and the evaluation harness.
// Options 控制字面量舍入和评估外壳。
type Options struct {
	// LeafPrecision is the number of fractional digits kept for leaf scores.
	// LeafPrecision 是叶子分数保留的小数位数。
	LeafPrecision int
	// ThresholdPrecision is the number of fractional digits kept for split thresholds.
	// ThresholdPrecision 是分裂阈值保留的小数位数。
	ThresholdPrecision int
	// Units is the sample unit requested in setup().
	Units string
	// DerivedFeatures maps a feature name to a JavaScript expression over sample bands.
	// DerivedFeatures 将特征名映射为基于 sample 波段的 JavaScript 表达式。
	DerivedFeatures map[string]string
}

// DefaultOptions returns four-digit leaves, unrounded thresholds and reflectance units.
func DefaultOptions() Options {
	return Options{
		LeafPrecision:      DefaultLeafPrecision,
		ThresholdPrecision: DefaultThresholdPrecision,
		Units:              DefaultUnits,
	}
}

var identifierRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

var treeFuncRe = regexp.MustCompile(`^pt[0-9]+$`)

// reservedNames clash with the harness or with JavaScript itself.
var reservedNames = map[string]bool{
	"sample": true, "setup": true, "predict": true, "evaluatePixel": true, "Math": true,
	"NaN": true, "Infinity": true, "undefined": true, "null": true, "true": true, "false": true,
	"let": true, "var": true, "const": true, "function": true, "return": true, "if": true,
	"else": true, "for": true, "while": true, "new": true, "this": true, "in": true,
}

// Compiler emits evalscript source for tree ensembles.
// Compiler 为树集成模型生成 evalscript 源代码。
type Compiler struct {
	opts Options
}

// NewCompiler creates a Compiler.
func NewCompiler(opts Options) *Compiler {
	if opts.Units == "" {
		opts.Units = DefaultUnits
	}
	return &Compiler{opts: opts}
}

// Options returns the compiler options.
func (c *Compiler) Options() Options {
	return c.opts
}

// FormatLeaf renders a leaf score literal.
// FormatLeaf 输出叶子分数字面量。
func (c *Compiler) FormatLeaf(v float64) string {
	return fmtutil.FormatLiteral(fmtutil.RoundTo(v, c.opts.LeafPrecision))
}

// FormatThreshold renders a split threshold literal.
// FormatThreshold 输出分裂阈值字面量。
func (c *Compiler) FormatThreshold(v float64) string {
	return fmtutil.FormatLiteral(fmtutil.RoundTo(v, c.opts.ThresholdPrecision))
}

// compileTask is one unit of pending output: either literal text or a node to expand.
type compileTask struct {
	text   string
	node   Node
	path   string
	wrap   bool
	isText bool
}

// Subtree renders node as a nested conditional expression:
//
//	(feature<op>threshold)?<left>:<right>
//
// When brackets is true every split, including node itself, is wrapped in one
// more pair of parentheses; child splits are always wrapped. Leaves never are.
//
// Subtree 将节点渲染为嵌套的条件表达式。brackets 为真时，节点本身也额外加一层括号；子分裂节点始终加括号。
func (c *Compiler) Subtree(node Node, featureNames []string, brackets bool) (string, error) {
	return c.subtree(node, featureNames, brackets, "root")
}

func (c *Compiler) subtree(root Node, featureNames []string, brackets bool, rootPath string) (string, error) {
	var b strings.Builder
	seen := make(map[*Split]bool)
	stack := []compileTask{{node: root, path: rootPath, wrap: brackets}}

	for len(stack) > 0 {
		t := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if t.isText {
			b.WriteString(t.text)
			continue
		}

		switch n := t.node.(type) {
		case *Leaf:
			if n == nil {
				return "", rserrors.NewNodeError(t.path, "nil leaf")
			}
			if math.IsNaN(n.Value) || math.IsInf(n.Value, 0) {
				return "", rserrors.NewNodeError(t.path, fmt.Sprintf("non-finite leaf value %v", n.Value))
			}
			b.WriteString(c.FormatLeaf(n.Value))

		case *Split:
			if n == nil {
				return "", rserrors.NewNodeError(t.path, "nil split")
			}
			if seen[n] {
				return "", rserrors.NewNodeError(t.path, "node reachable twice")
			}
			seen[n] = true

			if n.Feature < 0 || n.Feature >= len(featureNames) {
				return "", rserrors.NewIndexError(t.path, n.Feature, len(featureNames))
			}
			if !n.Op.Valid() {
				return "", rserrors.NewNodeError(t.path, fmt.Sprintf("unsupported operator %q", n.Op))
			}
			if math.IsNaN(n.Threshold) || math.IsInf(n.Threshold, 0) {
				return "", rserrors.NewNodeError(t.path, fmt.Sprintf("non-finite threshold %v", n.Threshold))
			}
			if n.Left == nil || n.Right == nil {
				return "", rserrors.NewNodeError(t.path, "split without two children")
			}

			if t.wrap {
				b.WriteByte('(')
			}
			b.WriteByte('(')
			b.WriteString(featureNames[n.Feature])
			b.WriteString(string(n.Op))
			b.WriteString(c.FormatThreshold(n.Threshold))
			b.WriteString(")?")

			// Pushed in reverse: left, ":", right, then the closing bracket.
			if t.wrap {
				stack = append(stack, compileTask{text: ")", isText: true})
			}
			stack = append(stack,
				compileTask{node: n.Right, path: t.path + ".right", wrap: true},
				compileTask{text: ":", isText: true},
				compileTask{node: n.Left, path: t.path + ".left", wrap: true},
			)

		default:
			return "", rserrors.NewNodeError(t.path, fmt.Sprintf("unexpected node type %T", t.node))
		}
	}
	return b.String(), nil
}

// Tree renders one per-tree function named pt<index>. The parameter list is
// the full feature list, identical for every tree.
// Tree 生成名为 pt<index> 的单棵树函数，参数列表为完整特征列表。
func (c *Compiler) Tree(root Node, index int, featureNames []string) (string, error) {
	body, err := c.subtree(root, featureNames, false, treePath(index))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("function %s(%s) {\n  return %s;\n}\n", treeFuncName(index), paramList(featureNames), body), nil
}

// Compile renders the complete evalscript for ens. Output depends only on
// ens and the compiler options.
// Compile 为 ens 生成完整的 evalscript，输出只取决于 ens 和编译选项。
func (c *Compiler) Compile(ctx context.Context, ens *Ensemble) (string, error) {
	if ens == nil || len(ens.Trees) == 0 {
		return "", rserrors.NewArgumentError("trees", 0)
	}
	if err := ValidateFeatureNames(ens.FeatureNames); err != nil {
		return "", err
	}
	log := logger.Get(ctx)

	var b strings.Builder
	bands := c.inputBands(ens)
	writeHeader(&b, bands, c.opts.Units)

	for i, tree := range ens.Trees {
		fn, err := c.Tree(tree, i, ens.FeatureNames)
		if err != nil {
			return "", err
		}
		b.WriteString("\n")
		b.WriteString(fn)
	}

	b.WriteString("\n")
	writePredict(&b, len(ens.Trees), ens.FeatureNames, ens.Sigmoid())

	b.WriteString("\n")
	unresolved := writeEvaluatePixel(&b, ens.FeatureNames, bandSet(c.declaredBands(ens)), c.opts.DerivedFeatures)
	if len(unresolved) > 0 {
		log.Warnf("evalscript: derived features left as NaN placeholders: %s", strings.Join(unresolved, ", "))
	}

	log.Debugf("evalscript: compiled %d trees over %d features (%d bands)", len(ens.Trees), len(ens.FeatureNames), len(bands))
	return b.String(), nil
}

// Unresolved lists features that are neither input bands nor configured derived features.
// Unresolved 列出既不是输入波段也未配置派生表达式的特征。
func (c *Compiler) Unresolved(ens *Ensemble) []string {
	bands := bandSet(c.declaredBands(ens))
	var out []string
	for _, name := range ens.FeatureNames {
		if bands[name] {
			continue
		}
		if src, ok := c.opts.DerivedFeatures[name]; ok && strings.TrimSpace(src) != "" {
			continue
		}
		out = append(out, name)
	}
	return out
}

// declaredBands returns the ensemble's bands, or every non-derived feature when none are given.
func (c *Compiler) declaredBands(ens *Ensemble) []string {
	if len(ens.Bands) > 0 {
		return ens.Bands
	}
	var out []string
	for _, name := range ens.FeatureNames {
		if _, ok := c.opts.DerivedFeatures[name]; !ok {
			out = append(out, name)
		}
	}
	return out
}

var sampleRefRe = regexp.MustCompile(`\bsample\.([A-Za-z_][A-Za-z0-9_]*)`)

// inputBands is the band list requested in setup(): declared bands, bands read by
// derived expressions (in feature order), then dataMask.
func (c *Compiler) inputBands(ens *Ensemble) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	for _, band := range c.declaredBands(ens) {
		add(band)
	}
	for _, name := range ens.FeatureNames {
		src, ok := c.opts.DerivedFeatures[name]
		if !ok {
			continue
		}
		for _, m := range sampleRefRe.FindAllStringSubmatch(src, -1) {
			add(m[1])
		}
	}
	add("dataMask")
	return out
}

func bandSet(bands []string) map[string]bool {
	set := make(map[string]bool, len(bands))
	for _, b := range bands {
		set[b] = true
	}
	return set
}

// ValidateFeatureNames checks that names are unique identifiers usable as
// function parameters in the generated script.
// ValidateFeatureNames 检查特征名是否为唯一且可用作生成脚本参数的标识符。
func ValidateFeatureNames(names []string) error {
	seen := make(map[string]int, len(names))
	for i, name := range names {
		if !identifierRe.MatchString(name) {
			return rserrors.NewArgumentError(fmt.Sprintf("feature_names[%d]", i), fmt.Sprintf("%q (not an identifier)", name))
		}
		if reservedNames[name] || treeFuncRe.MatchString(name) {
			return rserrors.NewArgumentError(fmt.Sprintf("feature_names[%d]", i), fmt.Sprintf("%q (reserved)", name))
		}
		if j, dup := seen[name]; dup {
			return rserrors.NewArgumentError(fmt.Sprintf("feature_names[%d]", i), fmt.Sprintf("%q (duplicate of feature_names[%d])", name, j))
		}
		seen[name] = i
	}
	return nil
}

func treeFuncName(index int) string {
	return fmt.Sprintf("pt%d", index)
}

func paramList(featureNames []string) string {
	return strings.Join(featureNames, ", ")
}
