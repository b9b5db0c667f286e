package config

const (
	// DefaultConfigPath is where rsdeploy looks for its configuration when --config is not given.
	// DefaultConfigPath 是未指定 --config 时 rsdeploy 查找配置文件的位置。
	DefaultConfigPath = "rsdeploy.yaml"

	// DefaultSegmentDistance is the segment length used when neither flag nor config sets one.
	// DefaultSegmentDistance 是未通过标志或配置设置时使用的分段长度。
	DefaultSegmentDistance = 100.0

	DefaultSegmentTolerance = 1e-9
	DefaultLeafPrecision    = 4
	DefaultUnits            = "REFLECTANCE"
	DefaultVerifySamples    = 256
	DefaultMetricsJob       = "rsdeploy"
	DefaultLogPath          = "/var/log/rsdeploy/rsdeploy.log"
)
