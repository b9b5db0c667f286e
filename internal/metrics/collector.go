// Package metrics records per-run counters for the segment and compile commands.
// Package metrics 记录 segment 和 compile 命令每次运行的计数器。
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector owns a registry and the rsdeploy metrics registered on it.
// Collector 持有一个注册表以及注册在其上的 rsdeploy 指标。
type Collector struct {
	Registry *prometheus.Registry

	// Segmenter metrics
	LinesTotal    prometheus.Counter
	SegmentsTotal prometheus.Counter
	LengthTotal   prometheus.Counter

	// Compiler metrics
	TreesTotal        prometheus.Counter
	NodesTotal        prometheus.Counter
	VerifyChecksTotal prometheus.Counter
	ScriptBytes       prometheus.Gauge

	// Run metrics
	ErrorsTotal *prometheus.CounterVec
	RunDuration *prometheus.GaugeVec
	LastRunTime *prometheus.GaugeVec
}

// New creates a Collector on a fresh registry.
func New() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		Registry: reg,
		LinesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "rsdeploy_lines_total",
			Help: "Number of input lines segmented",
		}),
		SegmentsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "rsdeploy_segments_total",
			Help: "Number of segments produced",
		}),
		LengthTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "rsdeploy_segment_length_total",
			Help: "Summed length of all produced segments, in input units",
		}),
		TreesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "rsdeploy_trees_compiled_total",
			Help: "Number of trees compiled into evalscript functions",
		}),
		NodesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "rsdeploy_nodes_compiled_total",
			Help: "Number of tree nodes compiled",
		}),
		VerifyChecksTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "rsdeploy_verify_checks_total",
			Help: "Number of expression evaluations compared against direct tree evaluation",
		}),
		ScriptBytes: factory.NewGauge(prometheus.GaugeOpts{
			Name: "rsdeploy_script_bytes",
			Help: "Size of the last generated evalscript",
		}),
		ErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rsdeploy_errors_total",
			Help: "Number of failed runs by command",
		}, []string{"command"}),
		RunDuration: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rsdeploy_run_duration_seconds",
			Help: "Wall time of the last run by command",
		}, []string{"command"}),
		LastRunTime: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rsdeploy_last_run_timestamp_seconds",
			Help: "Unix time at which the last run of each command finished",
		}, []string{"command"}),
	}
}

// Default is the process-wide collector used by the CLI.
var Default = New()

// ObserveSegments records a batch of segmented input lines.
// ObserveSegments 记录一批已切分的输入线。
func (c *Collector) ObserveSegments(lines, segments int, length float64) {
	c.LinesTotal.Add(float64(lines))
	c.SegmentsTotal.Add(float64(segments))
	if length > 0 {
		c.LengthTotal.Add(length)
	}
}

// ObserveCompile records one compiled ensemble.
// ObserveCompile 记录一次集成模型编译。
func (c *Collector) ObserveCompile(trees, nodes, scriptBytes int) {
	c.TreesTotal.Add(float64(trees))
	c.NodesTotal.Add(float64(nodes))
	c.ScriptBytes.Set(float64(scriptBytes))
}

// ObserveVerify records the number of verified evaluations.
func (c *Collector) ObserveVerify(checks int) {
	c.VerifyChecksTotal.Add(float64(checks))
}

// ObserveRun records the outcome and duration of a command.
// ObserveRun 记录命令的结果与耗时。
func (c *Collector) ObserveRun(command string, start time.Time, err error) {
	if err != nil {
		c.ErrorsTotal.WithLabelValues(command).Inc()
	}
	now := time.Now()
	c.RunDuration.WithLabelValues(command).Set(now.Sub(start).Seconds())
	c.LastRunTime.WithLabelValues(command).Set(float64(now.Unix()))
}
