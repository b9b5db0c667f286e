package commands

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/rsdeploy/rsdeploy/internal/config"
	"github.com/rsdeploy/rsdeploy/internal/metrics"
	"github.com/rsdeploy/rsdeploy/internal/utils/fmtutil"
	"github.com/rsdeploy/rsdeploy/internal/utils/logger"
)

// cliState is shared by the commands of one root command.
// cliState 由同一根命令下的子命令共享。
type cliState struct {
	cm        *config.ConfigManager
	collector *metrics.Collector
}

// manager returns the loaded configuration manager. Before the root hook runs
// it is an unloaded manager, which serves the defaults.
func (s *cliState) manager() *config.ConfigManager {
	if s.cm == nil {
		s.cm = config.NewConfigManager(config.GetConfigPath())
	}
	return s.cm
}

// CommandExecutor runs a command body and records its outcome
// CommandExecutor 统一的命令执行器，处理运行耗时、错误计数和指标导出
type CommandExecutor struct {
	cmd   *cobra.Command
	name  string
	state *cliState
}

// NewCommandExecutor creates a new command executor
// NewCommandExecutor 创建新的命令执行器
func NewCommandExecutor(cmd *cobra.Command, state *cliState) *CommandExecutor {
	return &CommandExecutor{cmd: cmd, name: cmd.Name(), state: state}
}

// Do runs fn with the command context and configuration manager. The run is
// recorded and, when metrics are enabled, exported; export failures are only logged.
// Do 使用命令上下文和配置管理器运行 fn，记录本次运行，并在启用指标时导出；导出失败仅记录日志。
func (e *CommandExecutor) Do(fn func(ctx context.Context, cm *config.ConfigManager) error) error {
	ctx := e.cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	log := logger.Get(ctx)
	cm := e.state.manager()

	start := time.Now()
	err := fn(ctx, cm)
	e.state.collector.ObserveRun(e.name, start, err)
	elapsed := fmtutil.FormatDuration(time.Since(start))
	if err != nil {
		log.Debugf("[%s] failed after %s: %v", e.name, elapsed, err)
	} else {
		log.Debugf("[%s] finished in %s", e.name, elapsed)
	}

	if mc := cm.GetMetricsConfig(); mc.Enabled {
		// Export even after a failed run so the error counter is visible
		// 运行失败后依然导出，以便错误计数可见
		exportErr := e.state.collector.Export(ctx, metrics.ExportOptions{
			TextfilePath:    mc.TextfilePath,
			PushGatewayAddr: mc.PushGatewayAddr,
			Job:             mc.Job,
		})
		if exportErr != nil {
			log.Warnf("[WARN] Metrics export failed: %v", exportErr)
		}
	}
	return err
}
