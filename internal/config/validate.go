package config

import (
	"errors"
	"math"
	"net/url"
	"strings"

	rserrors "github.com/rsdeploy/rsdeploy/pkg/errors"
)

// maxPrecision keeps 10^digits finite and meaningful for float64.
const maxPrecision = 17

// Validate checks every section and returns all problems joined.
// Validate 校验所有配置段并返回合并后的全部错误。
func (c *GlobalConfig) Validate() error {
	var errs []error
	add := func(field string, value interface{}) {
		errs = append(errs, rserrors.NewConfigError(field, value))
	}

	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		add("logging.level", c.Logging.Level)
	}
	if c.Logging.Enabled && c.Logging.Path == "" {
		add("logging.path", `""`)
	}

	if math.IsNaN(c.Segment.Distance) || math.IsInf(c.Segment.Distance, 0) || c.Segment.Distance < 0 {
		add("segment.distance", c.Segment.Distance)
	}
	if math.IsNaN(c.Segment.Tolerance) || math.IsInf(c.Segment.Tolerance, 0) || c.Segment.Tolerance < 0 {
		add("segment.tolerance", c.Segment.Tolerance)
	}

	if c.Compiler.LeafPrecision < -1 || c.Compiler.LeafPrecision > maxPrecision {
		add("compiler.leaf_precision", c.Compiler.LeafPrecision)
	}
	if c.Compiler.ThresholdPrecision < -1 || c.Compiler.ThresholdPrecision > maxPrecision {
		add("compiler.threshold_precision", c.Compiler.ThresholdPrecision)
	}
	if c.Compiler.VerifySamples < 0 {
		add("compiler.verify_samples", c.Compiler.VerifySamples)
	}
	for name, src := range c.Compiler.DerivedFeatures {
		if strings.Contains(src, ";") || strings.Contains(src, "\n") {
			add("compiler.derived_features."+name, src)
		}
	}

	if c.Metrics.PushGatewayAddr != "" {
		u, err := url.Parse(c.Metrics.PushGatewayAddr)
		if err != nil || u.Scheme == "" || u.Host == "" {
			add("metrics.push_gateway_addr", c.Metrics.PushGatewayAddr)
		}
	}

	return errors.Join(errs...)
}
