package config

import (
	"errors"
	"io/fs"
	"sync"

	"github.com/rsdeploy/rsdeploy/internal/runtime"
	"github.com/rsdeploy/rsdeploy/internal/utils/logger"
)

// GetConfigPath resolves the configuration file path.
// It prioritizes the CLI flag (runtime.ConfigPath) over the default.
// GetConfigPath 解析配置文件路径，优先使用 CLI 标志 (runtime.ConfigPath)，其次是默认值。
func GetConfigPath() string {
	if runtime.ConfigPath != "" {
		return runtime.ConfigPath
	}
	return DefaultConfigPath
}

// ConfigManager holds the loaded configuration for the lifetime of a command.
// ConfigManager 在命令运行期间持有已加载的配置。
type ConfigManager struct {
	configPath string
	mutex      sync.RWMutex
	config     *GlobalConfig
	fromFile   bool
}

// NewConfigManager creates a new configuration manager instance
// NewConfigManager 创建新的配置管理器实例
func NewConfigManager(configPath string) *ConfigManager {
	return &ConfigManager{
		configPath: configPath,
	}
}

// LoadConfig loads the configuration file. A missing file is only an error
// when required is true; otherwise the defaults are used.
// LoadConfig 加载配置文件。仅当 required 为真时文件缺失才视为错误，否则使用默认值。
func (cm *ConfigManager) LoadConfig(required bool) error {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	cfg, err := LoadGlobalConfig(cm.configPath)
	if err != nil {
		if !required && errors.Is(err, fs.ErrNotExist) {
			cm.config = DefaultConfig()
			cm.fromFile = false
			return nil
		}
		return err
	}

	cm.config = cfg
	cm.fromFile = true
	return nil
}

// SaveConfig saves the current configuration to the configured path
// SaveConfig 将当前配置保存到配置路径
func (cm *ConfigManager) SaveConfig() error {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	if cm.config == nil {
		return nil
	}
	return SaveGlobalConfig(cm.configPath, cm.config)
}

// GetConfig returns a copy of the current configuration, or the defaults before LoadConfig.
// GetConfig 返回当前配置的副本；LoadConfig 之前返回默认值。
func (cm *ConfigManager) GetConfig() *GlobalConfig {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	if cm.config == nil {
		return DefaultConfig()
	}

	cfgCopy := *cm.config
	cfgCopy.Compiler.Bands = append([]string(nil), cm.config.Compiler.Bands...)
	cfgCopy.Compiler.DerivedFeatures = make(map[string]string, len(cm.config.Compiler.DerivedFeatures))
	for k, v := range cm.config.Compiler.DerivedFeatures {
		cfgCopy.Compiler.DerivedFeatures[k] = v
	}
	return &cfgCopy
}

// UpdateConfig replaces the current configuration
// UpdateConfig 替换当前配置
func (cm *ConfigManager) UpdateConfig(newConfig *GlobalConfig) {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	cm.config = newConfig
}

// GetLoggingConfig returns the logging configuration
// GetLoggingConfig 返回日志配置
func (cm *ConfigManager) GetLoggingConfig() logger.LoggingConfig {
	return cm.GetConfig().Logging
}

// GetSegmentConfig returns the segmenter configuration
// GetSegmentConfig 返回分段配置
func (cm *ConfigManager) GetSegmentConfig() SegmentConfig {
	return cm.GetConfig().Segment
}

// GetCompilerConfig returns the compiler configuration
// GetCompilerConfig 返回编译配置
func (cm *ConfigManager) GetCompilerConfig() CompilerConfig {
	return cm.GetConfig().Compiler
}

// GetMetricsConfig returns the metrics configuration
// GetMetricsConfig 返回指标配置
func (cm *ConfigManager) GetMetricsConfig() MetricsConfig {
	return cm.GetConfig().Metrics
}

// GetConfigPath returns the configuration file path
// GetConfigPath 返回配置文件路径
func (cm *ConfigManager) GetConfigPath() string {
	return cm.configPath
}

// FromFile reports whether the last LoadConfig read an actual file.
func (cm *ConfigManager) FromFile() bool {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()
	return cm.fromFile
}

// Validate validates the current configuration
// Validate 验证当前配置
func (cm *ConfigManager) Validate() error {
	return cm.GetConfig().Validate()
}
