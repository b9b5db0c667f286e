package commands

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rsdeploy/rsdeploy/internal/config"
	"github.com/rsdeploy/rsdeploy/internal/evalscript"
	"github.com/rsdeploy/rsdeploy/internal/metrics"
	rserrors "github.com/rsdeploy/rsdeploy/pkg/errors"
)

// TestCompileCommand tests compiling a model dump into a file.
// TestCompileCommand 测试将模型转储编译到文件。
func TestCompileCommand(t *testing.T) {
	out := filepath.Join(t.TempDir(), "model.js")
	collector := metrics.New()

	output, err := executeCommand(NewRootCmd(collector), "compile", "testdata/model.json", "--bands", "B04,B08", "-o", out)
	require.NoError(t, err)
	assert.Empty(t, output)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	script := string(data)
	assert.True(t, strings.HasPrefix(script, evalscript.VersionLine+"\n"))
	assert.Contains(t, script, `bands: ["B04", "B08", "dataMask"],`)
	assert.Contains(t, script, "  return (B08<=0.25)?-0.1235:((B04<=0.1)?0.5:0.05);\n")
	assert.Contains(t, script, "function pt1(B04, B08) {\n  return 0.01;\n}\n")
	assert.Contains(t, script, "1/(1+Math.exp(-1*(pt0(B04, B08)+pt1(B04, B08))))")

	assertMetric(t, collector, "rsdeploy_trees_compiled_total 2")
	assertMetric(t, collector, "rsdeploy_nodes_compiled_total 6")
}

// TestCompileCommand_Stdin tests reading the model from stdin with flag overrides.
// TestCompileCommand_Stdin 测试从标准输入读取模型并使用标志覆盖。
func TestCompileCommand_Stdin(t *testing.T) {
	model, err := os.ReadFile("testdata/model.json")
	require.NoError(t, err)

	output, err := executeCommandWithInput(NewRootCmd(metrics.New()), strings.NewReader(string(model)),
		"compile", "--leaf-precision", "2", "--units", "DN")
	require.NoError(t, err)
	assert.Contains(t, output, "(B08<=0.25)?-0.12:((B04<=0.1)?0.5:0.05)")
	assert.Contains(t, output, `units: "DN"`)
}

// TestCompileCommand_Deterministic tests that two runs produce identical output.
// TestCompileCommand_Deterministic 测试两次运行输出完全一致。
func TestCompileCommand_Deterministic(t *testing.T) {
	first, err := executeCommand(NewRootCmd(metrics.New()), "compile", "testdata/model.json")
	require.NoError(t, err)
	second, err := executeCommand(NewRootCmd(metrics.New()), "compile", "testdata/model.json")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

// TestCompileCommand_Config tests compiler settings from the configuration file.
// TestCompileCommand_Config 测试来自配置文件的编译设置。
func TestCompileCommand_Config(t *testing.T) {
	path := writeConfig(t, `
compiler:
  leaf_precision: 1
  bands: [B04]
  derived_features:
    B08: "sample.B8A"
`)
	output, err := executeCommand(NewRootCmd(metrics.New()), "-c", path, "compile", "testdata/model.json")
	require.NoError(t, err)
	assert.Contains(t, output, `bands: ["B04", "B8A", "dataMask"],`)
	assert.Contains(t, output, "(B08<=0.25)?-0.1:((B04<=0.1)?0.5:0.1)")
	assert.Contains(t, output, "let B08 = sample.B8A;")
}

// TestCompileCommand_Verify tests the --verify pre-check.
// TestCompileCommand_Verify 测试 --verify 预先校验。
func TestCompileCommand_Verify(t *testing.T) {
	collector := metrics.New()
	output, err := executeCommand(NewRootCmd(collector), "compile", "testdata/model.json", "--verify", "--samples", "8")
	require.NoError(t, err)
	assert.Contains(t, output, "function predict(B04, B08)")
	assertMetric(t, collector, "rsdeploy_verify_checks_total 16")
}

// TestCompileCommand_Errors tests rejected flags and input.
// TestCompileCommand_Errors 测试被拒绝的标志和输入。
func TestCompileCommand_Errors(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		sentinel error
	}{
		{"leaf precision", []string{"compile", "testdata/model.json", "--leaf-precision", "40"}, rserrors.ErrConfigInvalid},
		{"derived statement", []string{"compile", "testdata/model.json", "--derived", "X=1;2"}, rserrors.ErrConfigInvalid},
		{"missing model", []string{"compile", "testdata/missing.json"}, rserrors.ErrInvalidFilePath},
		{"not a model", []string{"compile", "testdata/roads.geojson"}, rserrors.ErrInvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := executeCommand(NewRootCmd(metrics.New()), tt.args...)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.sentinel), "got %v", err)
		})
	}
}

// TestCompileCommand_MetricsTextfile tests exporting metrics after a run.
// TestCompileCommand_MetricsTextfile 测试运行后导出指标。
func TestCompileCommand_MetricsTextfile(t *testing.T) {
	prom := filepath.Join(t.TempDir(), "rsdeploy.prom")
	path := writeConfig(t, "metrics:\n  enabled: true\n  textfile_path: "+prom+"\n")

	_, err := executeCommand(NewRootCmd(metrics.New()), "-c", path, "compile", "testdata/model.json")
	require.NoError(t, err)

	data, err := os.ReadFile(prom)
	require.NoError(t, err)
	assert.Contains(t, string(data), "rsdeploy_trees_compiled_total 2\n")
	assert.Contains(t, string(data), `rsdeploy_last_run_timestamp_seconds{command="compile"}`)
}

// TestCompilerFlagsApply tests that flag overrides are stored in the manager.
// TestCompilerFlagsApply 测试标志覆盖值会写回配置管理器。
func TestCompilerFlagsApply(t *testing.T) {
	newCmd := func(args ...string) (*cobra.Command, *compilerFlags) {
		cmd := &cobra.Command{Use: "compile"}
		flags := &compilerFlags{}
		flags.register(cmd)
		require.NoError(t, cmd.ParseFlags(args))
		return cmd, flags
	}

	cm := config.NewConfigManager(filepath.Join(t.TempDir(), "missing.yaml"))
	cmd, flags := newCmd("--leaf-precision", "2", "--samples", "8", "--bands", "B04,B08")
	opts, cc, err := flags.apply(cmd, cm)
	require.NoError(t, err)
	assert.Equal(t, 2, opts.LeafPrecision)
	assert.Equal(t, evalscript.DefaultThresholdPrecision, opts.ThresholdPrecision)
	assert.Equal(t, 8, verifySamples(cc))
	assert.Equal(t, []string{"B04", "B08"}, cc.Bands)
	assert.Equal(t, cc.LeafPrecision, cm.GetCompilerConfig().LeafPrecision)
	assert.Equal(t, config.DefaultConfig().Segment, cm.GetSegmentConfig())

	// Rejected overrides leave the manager untouched
	// 被拒绝的覆盖值不会写入管理器
	cmd, flags = newCmd("--leaf-precision", "40")
	_, _, err = flags.apply(cmd, cm)
	assert.True(t, errors.Is(err, rserrors.ErrConfigInvalid))
	assert.Equal(t, 2, cm.GetCompilerConfig().LeafPrecision)
}

// TestVerifyCommand tests the verification report.
// TestVerifyCommand 测试校验报告。
func TestVerifyCommand(t *testing.T) {
	output, err := executeCommand(NewRootCmd(metrics.New()), "verify", "testdata/model.json", "--samples", "16")
	require.NoError(t, err)
	assert.Equal(t, "[OK] 2 trees verified: 16 samples, 32 checks, 16 predict checks\n", output)

	output, err = executeCommand(NewRootCmd(metrics.New()), "verify", "testdata/model.json", "--json", "--leaf-precision", "-1")
	require.NoError(t, err)
	var report evalscript.VerifyReport
	require.NoError(t, json.Unmarshal([]byte(output), &report))
	assert.Equal(t, evalscript.VerifyReport{
		Trees:         2,
		Samples:       evalscript.DefaultVerifySamples,
		Checks:        2 * evalscript.DefaultVerifySamples,
		PredictChecks: evalscript.DefaultVerifySamples,
	}, report)

	output, err = executeCommand(NewRootCmd(metrics.New()), "verify", "testdata/model.json", "--json", "--threshold-precision", "2")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(output), &report))
	assert.Zero(t, report.PredictChecks)

	_, err = executeCommand(NewRootCmd(metrics.New()), "verify", "testdata/model.json", "--samples", "-1")
	assert.True(t, errors.Is(err, rserrors.ErrConfigInvalid))
}
