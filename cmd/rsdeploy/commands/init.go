package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rsdeploy/rsdeploy/internal/config"
)

// newInitCmd implements the 'init' command
// newInitCmd 实现 'init' 命令
func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration",
		// Short: 初始化配置
		Long: `Write the commented default configuration to the --config path.

An existing file is upgraded in place instead: keys it lacks are added with
their defaults, while its values and comments are kept. Use --force to replace
it with the default template.`,
		// Long: 将带注释的默认配置写入 --config 路径。
		// 已存在的文件会被原地升级：补齐缺少的键，保留原有值与注释。使用 --force 以默认模板覆盖。
		Args: cobra.NoArgs,
		// The file may not exist yet, so the root configuration hook is skipped
		// 配置文件可能尚不存在，因此跳过根命令的配置加载
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.GetConfigPath()
			err := config.WriteDefaultConfig(path, force)
			if errors.Is(err, os.ErrExist) {
				if err := upgradeConfig(path); err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "[OK] Configuration updated at %s\n", path)
				return err
			}
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "[OK] Configuration written to %s\n", path)
			return err
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing configuration file with the default template")
	return cmd
}

// upgradeConfig rewrites an existing file through the manager so missing keys
// get their defaults. An invalid file is reported, not replaced.
func upgradeConfig(path string) error {
	cm := config.NewConfigManager(path)
	if err := cm.LoadConfig(true); err != nil {
		return err
	}
	return cm.SaveConfig()
}
