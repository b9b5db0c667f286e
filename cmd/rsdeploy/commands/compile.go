package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/rsdeploy/rsdeploy/internal/config"
	"github.com/rsdeploy/rsdeploy/internal/evalscript"
	"github.com/rsdeploy/rsdeploy/internal/utils/fileutil"
	"github.com/rsdeploy/rsdeploy/internal/utils/logger"
)

// compilerFlags are shared by compile and verify.
// compilerFlags 由 compile 和 verify 共用。
type compilerFlags struct {
	bands              []string
	leafPrecision      int
	thresholdPrecision int
	units              string
	derived            map[string]string
	samples            int
}

func (f *compilerFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringSliceVar(&f.bands, "bands", nil, "Input band identifiers, in order (default from compiler.bands)")
	flags.IntVar(&f.leafPrecision, "leaf-precision", config.DefaultLeafPrecision, "Fractional digits kept for leaf scores, -1 for full precision")
	flags.IntVar(&f.thresholdPrecision, "threshold-precision", evalscript.DefaultThresholdPrecision, "Fractional digits kept for split thresholds, -1 for full precision")
	flags.StringVar(&f.units, "units", config.DefaultUnits, "Sample units requested in setup()")
	flags.StringToStringVar(&f.derived, "derived", nil, "Derived feature expressions, e.g. NDVI=(sample.B08-sample.B04)/(sample.B08+sample.B04)")
	flags.IntVar(&f.samples, "samples", config.DefaultVerifySamples, "Sample vectors evaluated per tree when verifying")
}

// apply overlays the flags the user set onto the compiler section, validates
// the result and stores it back in cm for the rest of the run.
// apply 将用户设置的标志叠加到编译配置上，校验后写回 cm，供本次运行后续使用。
func (f *compilerFlags) apply(cmd *cobra.Command, cm *config.ConfigManager) (evalscript.Options, config.CompilerConfig, error) {
	cfg := cm.GetConfig()
	cc := &cfg.Compiler
	changed := cmd.Flags().Changed

	if changed("bands") {
		cc.Bands = f.bands
	}
	if changed("leaf-precision") {
		cc.LeafPrecision = f.leafPrecision
	}
	if changed("threshold-precision") {
		cc.ThresholdPrecision = f.thresholdPrecision
	}
	if changed("units") {
		cc.Units = f.units
	}
	if changed("samples") {
		cc.VerifySamples = f.samples
	}
	if changed("derived") {
		if cc.DerivedFeatures == nil {
			cc.DerivedFeatures = make(map[string]string, len(f.derived))
		}
		for name, src := range f.derived {
			cc.DerivedFeatures[name] = src
		}
	}
	if err := cfg.Validate(); err != nil {
		return evalscript.Options{}, config.CompilerConfig{}, err
	}
	cm.UpdateConfig(cfg)

	merged := cm.GetCompilerConfig()
	return evalscript.Options{
		LeafPrecision:      merged.LeafPrecision,
		ThresholdPrecision: merged.ThresholdPrecision,
		Units:              merged.Units,
		DerivedFeatures:    merged.DerivedFeatures,
	}, merged, nil
}

// loadEnsemble reads a model dump and attaches the band list.
func loadEnsemble(ctx context.Context, cmd *cobra.Command, input string, bands []string) (*evalscript.Ensemble, error) {
	ens, err := evalscript.LoadLightGBMFile(ctx, cmd.InOrStdin(), input)
	if err != nil {
		return nil, err
	}
	if len(bands) > 0 {
		ens.Bands = bands
	}
	return ens, nil
}

// verifySamples returns the configured sample count; zero means the default.
func verifySamples(cc config.CompilerConfig) int {
	if cc.VerifySamples == 0 {
		return evalscript.DefaultVerifySamples
	}
	return cc.VerifySamples
}

// newCompileCmd implements the 'compile' command
// newCompileCmd 实现 'compile' 命令
func newCompileCmd(state *cliState) *cobra.Command {
	flags := &compilerFlags{}
	var (
		output string
		verify bool
	)

	cmd := &cobra.Command{
		Use:   "compile [model.json|-]",
		Short: "Compile a LightGBM model dump into an evalscript",
		// Short: 将 LightGBM 模型导出编译为 evalscript
		Long: `Compile a binary LightGBM model (the JSON written by dump_model()) into a
self-contained evalscript: one function per tree, a logistic predict() and an
evaluatePixel() that reads the input bands from each sample.`,
		// Long: 将二分类 LightGBM 模型（dump_model() 输出的 JSON）编译为独立的 evalscript。
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := fileutil.StdioPath
			if len(args) == 1 {
				input = args[0]
			}
			return NewCommandExecutor(cmd, state).Do(func(ctx context.Context, cm *config.ConfigManager) error {
				log := logger.Get(ctx)

				opts, cc, err := flags.apply(cmd, cm)
				if err != nil {
					return err
				}
				ens, err := loadEnsemble(ctx, cmd, input, cc.Bands)
				if err != nil {
					return err
				}

				compiler := evalscript.NewCompiler(opts)
				if verify {
					report, err := compiler.Verify(ctx, ens, verifySamples(cc))
					if err != nil {
						return err
					}
					state.collector.ObserveVerify(report.Checks)
					log.Infof("[OK] Verified %d trees with %d samples", report.Trees, report.Samples)
				}

				script, err := compiler.Compile(ctx, ens)
				if err != nil {
					return err
				}
				if err := fileutil.WriteOutput(cmd.OutOrStdout(), output, []byte(script)); err != nil {
					return err
				}
				state.collector.ObserveCompile(len(ens.Trees), ens.NumNodes(), len(script))

				if missing := compiler.Unresolved(ens); len(missing) > 0 {
					log.Warnf("[WARN] %d features have no band or derived expression: %v", len(missing), missing)
				}
				log.Infof("[OK] Compiled %d trees (%d bytes)", len(ens.Trees), len(script))
				return nil
			})
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", fileutil.StdioPath, "Output file, - for stdout")
	cmd.Flags().BoolVar(&verify, "verify", false, "Verify every tree expression before writing the output")
	return cmd
}
