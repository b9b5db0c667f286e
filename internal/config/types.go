package config

import (
	"github.com/rsdeploy/rsdeploy/internal/utils/logger"
)

// DefaultConfigTemplate is written by "rsdeploy init". Unmarshalling it yields DefaultConfig().
const DefaultConfigTemplate = `# rsdeploy Configuration File / rsdeploy 配置文件
#
# Command-line flags override every value below.
# 命令行标志会覆盖以下所有值。

# Logging Configuration / 日志配置
logging:
  # Write logs to a rotated file instead of stderr.
  # 将日志写入轮转文件而不是 stderr。
  enabled: false
  # Log level: debug, info, warn, error / 日志级别
  level: "info"
  path: "/var/log/rsdeploy/rsdeploy.log"
  # Max size in MB before rotation / 轮转前的最大大小（MB）
  max_size: 10
  max_backups: 3
  # Max age in days / 最大保留天数
  max_age: 30
  compress: true

# Segmenter Configuration / 分段配置
segment:
  # Maximum segment length, in the unit of the input coordinates.
  # 最大分段长度，单位与输入坐标一致。
  distance: 100
  # Tolerance for treating a vertex as lying exactly at the cut distance
  # (scaled by max(1, distance)). 0 requires exact equality.
  # 将顶点视为恰好位于切分距离的容差（按 max(1, distance) 缩放）。0 表示精确相等。
  tolerance: 1e-9

# Model Compiler Configuration / 模型编译配置
compiler:
  # Fractional digits kept for leaf scores; -1 keeps full precision.
  # 叶子分数保留的小数位数；-1 表示完整精度。
  leaf_precision: 4
  # Fractional digits kept for split thresholds; -1 keeps full precision.
  # 分裂阈值保留的小数位数；-1 表示完整精度。
  threshold_precision: -1
  # Input bands read from each sample. Empty means every model feature
  # without a derived expression is a band.
  # 从每个样本读取的输入波段。为空时，所有没有派生表达式的特征都视为波段。
  bands: []
  # Sample units requested in setup() / setup() 中请求的样本单位
  units: "REFLECTANCE"
  # JavaScript expressions for features computed from bands, e.g.
  # 由波段计算的特征的 JavaScript 表达式，例如：
  #   NDVI: "(sample.B08-sample.B04)/(sample.B08+sample.B04)"
  derived_features: {}
  # Feature vectors checked per tree by "rsdeploy verify" / 每棵树校验的特征向量数
  verify_samples: 256

# Metrics Configuration / 指标配置
metrics:
  # Export run metrics after each command / 每次命令结束后导出运行指标
  enabled: false
  # node_exporter textfile collector path / node_exporter textfile 路径
  textfile_path: ""
  # Pushgateway address, e.g. http://localhost:9091 / Pushgateway 地址
  push_gateway_addr: ""
  job: "rsdeploy"
`

// GlobalConfig is the top-level configuration file structure.
// GlobalConfig 是配置文件的顶层结构。
type GlobalConfig struct {
	Logging  logger.LoggingConfig `yaml:"logging"`
	Segment  SegmentConfig        `yaml:"segment"`
	Compiler CompilerConfig       `yaml:"compiler"`
	Metrics  MetricsConfig        `yaml:"metrics"`
}

// SegmentConfig configures the segment command.
// SegmentConfig 配置 segment 命令。
type SegmentConfig struct {
	Distance  float64 `yaml:"distance"`
	Tolerance float64 `yaml:"tolerance"`
}

// CompilerConfig configures the compile and verify commands.
// CompilerConfig 配置 compile 和 verify 命令。
type CompilerConfig struct {
	LeafPrecision      int               `yaml:"leaf_precision"`
	ThresholdPrecision int               `yaml:"threshold_precision"`
	Bands              []string          `yaml:"bands"`
	Units              string            `yaml:"units"`
	DerivedFeatures    map[string]string `yaml:"derived_features"`
	VerifySamples      int               `yaml:"verify_samples"`
}

// MetricsConfig configures run metrics export.
// MetricsConfig 配置运行指标导出。
type MetricsConfig struct {
	Enabled         bool   `yaml:"enabled"`
	TextfilePath    string `yaml:"textfile_path"`
	PushGatewayAddr string `yaml:"push_gateway_addr"`
	Job             string `yaml:"job"`
}

// DefaultConfig returns the configuration used when no file is present.
// DefaultConfig 返回没有配置文件时使用的配置。
func DefaultConfig() *GlobalConfig {
	return &GlobalConfig{
		Logging: logger.LoggingConfig{
			Enabled:    false,
			Level:      "info",
			Path:       DefaultLogPath,
			MaxSize:    10, // 10MB
			MaxBackups: 3,
			MaxAge:     30, // 30 days
			Compress:   true,
		},
		Segment: SegmentConfig{
			Distance:  DefaultSegmentDistance,
			Tolerance: DefaultSegmentTolerance,
		},
		Compiler: CompilerConfig{
			LeafPrecision:      DefaultLeafPrecision,
			ThresholdPrecision: -1,
			Bands:              []string{},
			Units:              DefaultUnits,
			DerivedFeatures:    map[string]string{},
			VerifySamples:      DefaultVerifySamples,
		},
		Metrics: MetricsConfig{
			Job: DefaultMetricsJob,
		},
	}
}
