// Package commands implements the rsdeploy command line.
// Package commands 实现 rsdeploy 命令行。
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rsdeploy/rsdeploy/internal/config"
	"github.com/rsdeploy/rsdeploy/internal/metrics"
	"github.com/rsdeploy/rsdeploy/internal/runtime"
	"github.com/rsdeploy/rsdeploy/internal/utils/logger"
)

// RootCmd is the rsdeploy command tree used by main.
var RootCmd = NewRootCmd(metrics.Default)

// NewRootCmd builds a fresh command tree recording into collector.
// NewRootCmd 构建一棵新的命令树，指标记录到 collector。
func NewRootCmd(collector *metrics.Collector) *cobra.Command {
	state := &cliState{collector: collector}

	root := &cobra.Command{
		Use:   "rsdeploy",
		Short: "Prepare vector data and tree models for remote sensing deployment",
		// Short: 为遥感部署准备矢量数据和树模型
		Long: `rsdeploy cuts line geometries into fixed-length segments and compiles
gradient-boosted tree models into self-contained evalscript programs.
rsdeploy 将线几何切分为固定长度的片段，并将梯度提升树模型编译为独立的 evalscript 程序。`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// An explicit --config must exist; the default path is optional
			// 显式指定的 --config 必须存在；默认路径可选
			cm := config.NewConfigManager(config.GetConfigPath())
			if err := cm.LoadConfig(runtime.ConfigPath != ""); err != nil {
				return err
			}
			state.cm = cm

			if runtime.LogLevel != "" {
				cfg := cm.GetConfig()
				cfg.Logging.Level = runtime.LogLevel
				cm.UpdateConfig(cfg)
				if err := cm.Validate(); err != nil {
					return err
				}
			}
			logger.Init(cm.GetLoggingConfig())

			// Inject logger into context
			// 将 Logger 注入 Context
			ctx := logger.WithContext(cmd.Context(), logger.Get(nil))
			cmd.SetContext(ctx)
			logger.Get(ctx).Debugf("[CONFIG] Using %s (from file: %v)", cm.GetConfigPath(), cm.FromFile())
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logger.Sync()
		},
	}

	// Config file path
	// 配置文件路径
	root.PersistentFlags().StringVarP(&runtime.ConfigPath, "config", "c", "", fmt.Sprintf("Path to configuration file (default: %s)", config.DefaultConfigPath))

	// Log level override
	// 日志级别覆盖
	root.PersistentFlags().StringVar(&runtime.LogLevel, "log-level", "", "Override logging.level (debug, info, warn, error)")

	root.AddCommand(newSegmentCmd(state)) // segment - 切分线几何
	root.AddCommand(newCompileCmd(state)) // compile - 编译树模型
	root.AddCommand(newVerifyCmd(state))  // verify - 校验生成的表达式
	root.AddCommand(newInitCmd())         // init - 初始化配置
	root.AddCommand(newVersionCmd())      // version - 显示版本

	// Replace the default completion command with one without powershell
	// 用不含 powershell 的自定义补全命令替换默认命令
	root.CompletionOptions.DisableDefaultCmd = true
	root.AddCommand(createCustomCompletionCmd(root))

	return root
}

// createCustomCompletionCmd creates a custom completion command without powershell.
// createCustomCompletionCmd 创建不含 powershell 的自定义补全命令。
func createCustomCompletionCmd(root *cobra.Command) *cobra.Command {
	return &cobra.Command{
		Use:   "completion [bash|zsh|fish]",
		Short: "Generate shell autocompletion script",
		Long: `Generate shell autocompletion script for rsdeploy.
生成 rsdeploy 的 shell 自动补全脚本。

Supported shells:
  bash - Generate for bash
  zsh  - Generate for zsh
  fish - Generate for fish

Examples:
  rsdeploy completion bash > /etc/bash_completion.d/rsdeploy
  rsdeploy completion zsh  > "${fpath[1]}/_rsdeploy"
  rsdeploy completion fish > ~/.config/fish/completions/rsdeploy.fish`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"bash", "zsh", "fish"},
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return root.GenBashCompletionV2(out, true)
			case "zsh":
				return root.GenZshCompletion(out)
			case "fish":
				return root.GenFishCompletion(out, true)
			default:
				return fmt.Errorf("unsupported shell: %s (supported: bash, zsh, fish)", args[0])
			}
		},
	}
}

// Execute runs RootCmd and exits non-zero on failure.
// Execute 运行 RootCmd，失败时以非零状态退出。
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
