package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rsdeploy/rsdeploy/internal/config"
	"github.com/rsdeploy/rsdeploy/internal/evalscript"
	"github.com/rsdeploy/rsdeploy/internal/utils/fileutil"
	"github.com/rsdeploy/rsdeploy/internal/utils/logger"
)

// newVerifyCmd implements the 'verify' command
// newVerifyCmd 实现 'verify' 命令
func newVerifyCmd(state *cliState) *cobra.Command {
	flags := &compilerFlags{}
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "verify [model.json|-]",
		Short: "Check generated tree expressions against the model",
		// Short: 校验生成的树表达式与模型一致
		Long: `Compile every tree of a LightGBM model dump, evaluate the generated
expressions on sample vectors built around each split threshold, and compare
the results with walking the trees directly. With unrounded thresholds the
combined predict value is also checked against the model. Exits non-zero on
the first mismatch.`,
		// Long: 编译模型中的每棵树，在每个分裂阈值附近构造的样本上计算生成的表达式，
		// 并与直接遍历树的结果比较。阈值未舍入时还会校验组合后的 predict 值。
		// 出现第一个不一致时以非零状态退出。
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := fileutil.StdioPath
			if len(args) == 1 {
				input = args[0]
			}
			return NewCommandExecutor(cmd, state).Do(func(ctx context.Context, cm *config.ConfigManager) error {
				opts, cc, err := flags.apply(cmd, cm)
				if err != nil {
					return err
				}
				ens, err := loadEnsemble(ctx, cmd, input, cc.Bands)
				if err != nil {
					return err
				}

				report, err := evalscript.Verify(ctx, ens, opts, verifySamples(cc))
				if err != nil {
					return err
				}
				state.collector.ObserveVerify(report.Checks)
				logger.Get(ctx).Debugf("[verify] %+v", report)

				out := cmd.OutOrStdout()
				if asJSON {
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					return enc.Encode(report)
				}
				_, err = fmt.Fprintf(out, "[OK] %d trees verified: %d samples, %d checks, %d predict checks\n",
					report.Trees, report.Samples, report.Checks, report.PredictChecks)
				return err
			})
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")
	return cmd
}
