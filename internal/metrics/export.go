package metrics

import (
	"bytes"
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/prometheus/common/expfmt"

	"github.com/rsdeploy/rsdeploy/internal/utils/fileutil"
	"github.com/rsdeploy/rsdeploy/internal/utils/logger"
)

// DefaultJob is the Pushgateway job name used when none is configured.
const DefaultJob = "rsdeploy"

// ExportOptions selects where a finished run's metrics go.
// ExportOptions 指定运行结束后指标的导出位置。
type ExportOptions struct {
	// TextfilePath is written in the node_exporter textfile format when set.
	// TextfilePath 不为空时以 node_exporter textfile 格式写入。
	TextfilePath string
	// PushGatewayAddr is pushed to when set.
	// PushGatewayAddr 不为空时推送到该地址。
	PushGatewayAddr string
	Job             string
}

// Encode renders all gathered metrics in the Prometheus text exposition format.
func (c *Collector) Encode() ([]byte, error) {
	mfs, err := c.Registry.Gather()
	if err != nil {
		return nil, fmt.Errorf("gather metrics: %w", err)
	}

	var buf bytes.Buffer
	enc := expfmt.NewEncoder(&buf, expfmt.Format("text/plain; version=0.0.4"))
	for _, mf := range mfs {
		if err := enc.Encode(mf); err != nil {
			return nil, fmt.Errorf("encode %s: %w", mf.GetName(), err)
		}
	}
	return buf.Bytes(), nil
}

// WriteTextfile atomically writes the metrics to path.
// WriteTextfile 将指标原子写入 path。
func (c *Collector) WriteTextfile(path string) error {
	data, err := c.Encode()
	if err != nil {
		return err
	}
	return fileutil.AtomicWriteFile(path, data, 0644)
}

// Push sends the metrics to a Pushgateway, replacing the job's previous group.
// Push 将指标推送到 Pushgateway，替换该 job 之前的分组。
func (c *Collector) Push(ctx context.Context, addr, job string) error {
	if job == "" {
		job = DefaultJob
	}
	return push.New(addr, job).
		Gatherer(c.Registry).
		PushContext(ctx)
}

// Export writes the textfile and pushes, as configured. Both targets are
// attempted; the first error is returned.
// Export 按配置写入 textfile 并推送，两者都会尝试，返回第一个错误。
func (c *Collector) Export(ctx context.Context, opts ExportOptions) error {
	log := logger.Get(ctx)
	var firstErr error

	if opts.TextfilePath != "" {
		if err := c.WriteTextfile(opts.TextfilePath); err != nil {
			log.Errorf("metrics: write textfile %s: %v", opts.TextfilePath, err)
			firstErr = err
		} else {
			log.Debugf("metrics: wrote %s", opts.TextfilePath)
		}
	}

	if opts.PushGatewayAddr != "" {
		if err := c.Push(ctx, opts.PushGatewayAddr, opts.Job); err != nil {
			log.Errorf("metrics: push to %s: %v", opts.PushGatewayAddr, err)
			if firstErr == nil {
				firstErr = err
			}
		} else {
			log.Debugf("metrics: pushed to %s", opts.PushGatewayAddr)
		}
	}
	return firstErr
}
