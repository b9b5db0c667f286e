package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/paulmach/orb/geojson"
	"github.com/spf13/cobra"

	"github.com/rsdeploy/rsdeploy/internal/config"
	"github.com/rsdeploy/rsdeploy/internal/geoio"
	"github.com/rsdeploy/rsdeploy/internal/segment"
	"github.com/rsdeploy/rsdeploy/internal/utils/fileutil"
	"github.com/rsdeploy/rsdeploy/internal/utils/fmtutil"
	"github.com/rsdeploy/rsdeploy/internal/utils/logger"
	rserrors "github.com/rsdeploy/rsdeploy/pkg/errors"
)

type segmentOptions struct {
	distance  float64
	tolerance float64
	output    string
	follow    bool
	poll      bool
	fromEnd   bool
}

// newSegmentCmd implements the 'segment' command
// newSegmentCmd 实现 'segment' 命令
func newSegmentCmd(state *cliState) *cobra.Command {
	opts := &segmentOptions{}

	cmd := &cobra.Command{
		Use:   "segment [input.geojson|-]",
		Short: "Cut line geometries into fixed-length segments",
		// Short: 将线几何切分为固定长度的片段
		Long: `Cut every LineString and MultiLineString of a GeoJSON input into
segments no longer than --distance. The output is a FeatureCollection whose
features carry source_index, segment_index and length plus the source properties.

With --follow the input is read as newline-delimited GeoJSON features and
segments are written as newline-delimited features until interrupted.`,
		// Long: 将 GeoJSON 输入中的每条 LineString 和 MultiLineString 切分为不超过 --distance 的片段。
		// 使用 --follow 时按行读取 GeoJSON 要素并持续输出，直到被中断。
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := fileutil.StdioPath
			if len(args) == 1 {
				input = args[0]
			}
			return NewCommandExecutor(cmd, state).Do(func(ctx context.Context, cm *config.ConfigManager) error {
				applySegmentConfig(cmd, opts, cm.GetSegmentConfig())

				seg := segment.NewSegmenter(segment.Options{Tolerance: opts.tolerance})
				if opts.follow {
					return runSegmentFollow(ctx, cmd, state, seg, opts, input)
				}
				return runSegmentBatch(ctx, cmd, state, seg, opts, input)
			})
		},
	}

	flags := cmd.Flags()
	flags.Float64VarP(&opts.distance, "distance", "d", config.DefaultSegmentDistance, "Maximum segment length in input units (default from segment.distance)")
	flags.Float64Var(&opts.tolerance, "tolerance", config.DefaultSegmentTolerance, "Relative tolerance for cuts that land on a vertex (default from segment.tolerance)")
	flags.StringVarP(&opts.output, "output", "o", fileutil.StdioPath, "Output file, - for stdout")
	flags.BoolVarP(&opts.follow, "follow", "f", false, "Follow a growing newline-delimited GeoJSON file")
	flags.BoolVar(&opts.poll, "poll", false, "Poll for file changes instead of using inotify (with --follow)")
	flags.BoolVar(&opts.fromEnd, "from-end", false, "Start at the end of the file (with --follow)")

	return cmd
}

// applySegmentConfig fills options the user did not set from the configuration.
func applySegmentConfig(cmd *cobra.Command, opts *segmentOptions, cfg config.SegmentConfig) {
	if !cmd.Flags().Changed("distance") {
		opts.distance = cfg.Distance
	}
	if !cmd.Flags().Changed("tolerance") {
		opts.tolerance = cfg.Tolerance
	}
}

func runSegmentBatch(ctx context.Context, cmd *cobra.Command, state *cliState, seg *segment.Segmenter, opts *segmentOptions, input string) error {
	log := logger.Get(ctx)

	data, err := fileutil.ReadInput(cmd.InOrStdin(), input)
	if err != nil {
		return err
	}
	features, err := geoio.ReadFeatures(data)
	if err != nil {
		return err
	}

	out, stats, err := geoio.SegmentFeatures(ctx, seg, features, opts.distance, 0)
	if err != nil {
		return err
	}
	state.collector.ObserveSegments(stats.Lines, stats.Segments, stats.Length)

	encoded, err := geoio.MarshalFeatureCollection(out)
	if err != nil {
		return err
	}
	if err := fileutil.WriteOutput(cmd.OutOrStdout(), opts.output, encoded); err != nil {
		return err
	}

	log.Infof("[OK] Segmented %s (distance %g)", segmentSummary(stats), opts.distance)
	return nil
}

// runSegmentFollow tails input and writes segments as they arrive. Records
// that fail to decode or cut are logged and skipped.
// runSegmentFollow 跟随读取输入并实时输出片段，无法解码或切分的记录会被记录日志并跳过。
func runSegmentFollow(ctx context.Context, cmd *cobra.Command, state *cliState, seg *segment.Segmenter, opts *segmentOptions, input string) error {
	log := logger.Get(ctx)
	if input == fileutil.StdioPath {
		return rserrors.NewArgumentError("input", "--follow needs a file path")
	}

	out, closeOut, err := openStream(cmd.OutOrStdout(), opts.output)
	if err != nil {
		return err
	}
	defer closeOut()

	// Wait for exit signal (Ctrl+C, etc)
	// 等待退出信号
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		total   geoio.Stats
		next    int
		skipped int
	)
	tailer := geoio.NewTailer(input, geoio.TailConfig{Follow: true, Poll: opts.poll, FromEnd: opts.fromEnd})
	err = tailer.Run(ctx, func(lineNo int, text string) error {
		segments, stats, err := segmentRecord(ctx, seg, text, opts.distance, next)
		if err != nil {
			skipped++
			log.Warnf("[WARN] Skipping %s line %d: %v", input, lineNo, err)
			return nil
		}
		next += stats.Lines
		total.Add(stats)
		state.collector.ObserveSegments(stats.Lines, stats.Segments, stats.Length)
		return geoio.WriteNDJSON(out, segments)
	})
	if err != nil {
		return err
	}

	log.Infof("[OK] Segmented %s, skipped %d records", segmentSummary(total), skipped)
	return nil
}

// segmentSummary renders run totals for the completion log line.
func segmentSummary(stats geoio.Stats) string {
	return fmt.Sprintf("%s lines into %s segments, total length %s",
		fmtutil.FormatNumber(uint64(stats.Lines)),
		fmtutil.FormatNumber(uint64(stats.Segments)),
		fmtutil.FormatLength(stats.Length))
}

// segmentRecord decodes and cuts one newline-delimited record.
func segmentRecord(ctx context.Context, seg *segment.Segmenter, text string, distance float64, firstIndex int) ([]*geojson.Feature, geoio.Stats, error) {
	features, err := geoio.ReadFeatures([]byte(text))
	if err != nil {
		return nil, geoio.Stats{}, err
	}
	return geoio.SegmentFeatures(ctx, seg, features, distance, firstIndex)
}

// openStream returns w for "-" or an append-mode file otherwise.
func openStream(w io.Writer, path string) (io.Writer, func(), error) {
	if path == "" || path == fileutil.StdioPath {
		return w, func() {}, nil
	}
	safePath := filepath.Clean(path)
	f, err := os.OpenFile(safePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644) // #nosec G304 // path is sanitized with filepath.Clean
	if err != nil {
		return nil, nil, rserrors.NewFilePathError(safePath, err)
	}
	return f, func() {
		if err := f.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: close %s: %v\n", safePath, err)
		}
	}, nil
}
