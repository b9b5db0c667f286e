package evalscript

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/rsdeploy/rsdeploy/internal/utils/fmtutil"
	"github.com/rsdeploy/rsdeploy/internal/utils/logger"
	rserrors "github.com/rsdeploy/rsdeploy/pkg/errors"
)

// DefaultVerifySamples is the number of feature vectors checked per tree.
const DefaultVerifySamples = 256

// Fixed seeds keep verification reproducible between runs.
const (
	verifySeed1 = 0x5eed
	verifySeed2 = 0xe7a1
)

// VerifyReport summarises a successful verification run.
// VerifyReport 汇总一次成功的校验。
type VerifyReport struct {
	Trees   int `json:"trees"`
	Samples int `json:"samples"`
	Checks  int `json:"checks"`
	// PredictChecks counts samples whose combined score was compared against
	// Ensemble.Predict. Zero when thresholds are rounded.
	// PredictChecks 统计与 Ensemble.Predict 比较过组合分数的样本数；阈值舍入时为 0。
	PredictChecks int `json:"predict_checks"`
}

// Verify compiles ens with opts and checks every tree expression; see Compiler.Verify.
func Verify(ctx context.Context, ens *Ensemble, opts Options, samples int) (VerifyReport, error) {
	return NewCompiler(opts).Verify(ctx, ens, samples)
}

// Verify evaluates each generated tree expression with expr and compares the
// result against walking the tree directly, with thresholds and leaves
// rounded exactly as they are emitted. Sample vectors are built from the
// split thresholds so both sides of every boundary are exercised.
//
// When thresholds are emitted unrounded, the logistic transform of the summed
// tree results is also compared against Ensemble.Predict, within the error
// that leaf rounding allows.
//
// Verify 使用 expr 计算每棵树生成的表达式，并与直接遍历树（按输出时的舍入规则）的结果比较。
// 样本向量由分裂阈值构造，以覆盖每个边界的两侧。
// 阈值未舍入时，还会将各树结果之和的逻辑变换与 Ensemble.Predict 比较，允许叶子舍入带来的误差。
func (c *Compiler) Verify(ctx context.Context, ens *Ensemble, samples int) (VerifyReport, error) {
	if ens == nil || len(ens.Trees) == 0 {
		return VerifyReport{}, rserrors.NewArgumentError("trees", 0)
	}
	if samples <= 0 {
		return VerifyReport{}, rserrors.NewArgumentError("samples", samples)
	}
	if err := ValidateFeatureNames(ens.FeatureNames); err != nil {
		return VerifyReport{}, err
	}
	log := logger.Get(ctx)

	env := make(map[string]interface{}, len(ens.FeatureNames))
	for _, name := range ens.FeatureNames {
		env[name] = 0.0
	}

	programs := make([]*vm.Program, len(ens.Trees))
	for i, tree := range ens.Trees {
		src, err := c.subtree(tree, ens.FeatureNames, false, treePath(i))
		if err != nil {
			return VerifyReport{}, err
		}
		// Deep trees exceed expr's default node budget
		// 深度较大的树会超出 expr 默认的节点上限
		program, err := expr.Compile(src, expr.Env(env), expr.AsFloat64(), expr.MaxNodes(0))
		if err != nil {
			return VerifyReport{}, rserrors.NewExpressionError(i, "compile", err)
		}
		programs[i] = program
	}

	vectors := c.sampleVectors(ens, samples)
	report := VerifyReport{Trees: len(ens.Trees), Samples: len(vectors)}
	checkPredict := c.opts.ThresholdPrecision < 0
	tolerance := predictTolerance(ens, c.opts.LeafPrecision)

	for s, features := range vectors {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		for j, name := range ens.FeatureNames {
			env[name] = features[j]
		}
		sum := 0.0
		for i, tree := range ens.Trees {
			want, err := evaluate(tree, features, treePath(i), c.opts.LeafPrecision, c.opts.ThresholdPrecision)
			if err != nil {
				return report, err
			}
			out, err := expr.Run(programs[i], env)
			if err != nil {
				return report, rserrors.NewExpressionError(i, fmt.Sprintf("run sample=%d", s), err)
			}
			got, ok := out.(float64)
			if !ok || got != want {
				return report, rserrors.NewVerifyError(i, s, want, got)
			}
			sum += got
			report.Checks++
		}
		if !checkPredict {
			continue
		}
		want, err := ens.Predict(features)
		if err != nil {
			return report, err
		}
		got := 1 / (1 + math.Exp(-ens.Sigmoid()*sum))
		if math.Abs(got-want) > tolerance {
			return report, rserrors.NewPredictError(s, want, got)
		}
		report.PredictChecks++
	}

	log.Debugf("evalscript: verified %d trees on %d samples", report.Trees, report.Samples)
	return report, nil
}

// predictTolerance bounds how far the emitted predict can drift from the exact
// model: each tree's leaf moves by at most half a unit in the last kept digit,
// and the logistic slope never exceeds k/4.
func predictTolerance(ens *Ensemble, leafDigits int) float64 {
	const slack = 1e-9
	if leafDigits < 0 {
		return slack
	}
	perTree := 0.5 * math.Pow10(-leafDigits)
	return math.Abs(ens.Sigmoid())/4*perTree*float64(len(ens.Trees)) + slack
}

// sampleVectors returns n deterministic feature vectors. Each value is an emitted
// threshold of that feature, nudged below, onto or above it; features that are
// never split on get a value in [0, 1).
func (c *Compiler) sampleVectors(ens *Ensemble, n int) [][]float64 {
	thresholds := c.splitThresholds(ens)
	rng := rand.New(rand.NewPCG(verifySeed1, verifySeed2))

	vectors := make([][]float64, n)
	for s := range vectors {
		v := make([]float64, len(ens.FeatureNames))
		for j := range v {
			ts := thresholds[j]
			if len(ts) == 0 {
				v[j] = rng.Float64()
				continue
			}
			t := ts[rng.IntN(len(ts))]
			delta := math.Max(math.Abs(t), 1) * 1e-6
			switch rng.IntN(5) {
			case 0:
				v[j] = t
			case 1:
				v[j] = math.Nextafter(t, math.Inf(-1))
			case 2:
				v[j] = math.Nextafter(t, math.Inf(1))
			case 3:
				v[j] = t - delta
			default:
				v[j] = t + delta
			}
		}
		vectors[s] = v
	}
	return vectors
}

// splitThresholds collects the sorted, de-duplicated emitted thresholds per feature index.
func (c *Compiler) splitThresholds(ens *Ensemble) [][]float64 {
	sets := make([]map[float64]bool, len(ens.FeatureNames))
	stack := append([]Node(nil), ens.Trees...)
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		s, ok := node.(*Split)
		if !ok || s == nil || s.Feature < 0 || s.Feature >= len(sets) {
			continue
		}
		if sets[s.Feature] == nil {
			sets[s.Feature] = make(map[float64]bool)
		}
		sets[s.Feature][fmtutil.RoundTo(s.Threshold, c.opts.ThresholdPrecision)] = true
		stack = append(stack, s.Left, s.Right)
	}

	out := make([][]float64, len(sets))
	for i, set := range sets {
		for t := range set {
			out[i] = append(out[i], t)
		}
		sort.Float64s(out[i])
	}
	return out
}
