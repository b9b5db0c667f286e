// Package geoio reads and writes the GeoJSON consumed and produced by the segment command.
// Package geoio 读写 segment 命令使用的 GeoJSON。
package geoio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/rsdeploy/rsdeploy/internal/segment"
	"github.com/rsdeploy/rsdeploy/internal/utils/logger"
	rserrors "github.com/rsdeploy/rsdeploy/pkg/errors"
)

// Output property names attached to every segment.
// 附加到每个片段的输出属性名。
const (
	PropSourceIndex  = "source_index"
	PropSegmentIndex = "segment_index"
	PropLength       = "length"
)

// Stats counts the work done by SegmentFeatures.
// Stats 统计 SegmentFeatures 的处理量。
type Stats struct {
	Lines    int
	Segments int
	Length   float64
}

// Add accumulates other into s.
func (s *Stats) Add(other Stats) {
	s.Lines += other.Lines
	s.Segments += other.Segments
	s.Length += other.Length
}

// ReadFeatures decodes a FeatureCollection, a single Feature or a bare geometry.
// ReadFeatures 解码 FeatureCollection、单个 Feature 或裸几何对象。
func ReadFeatures(data []byte) ([]*geojson.Feature, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("%w: decode geojson: %v", rserrors.ErrInvalidArgument, err)
	}

	switch head.Type {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, fmt.Errorf("%w: decode feature collection: %v", rserrors.ErrInvalidArgument, err)
		}
		return fc.Features, nil
	case "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, fmt.Errorf("%w: decode feature: %v", rserrors.ErrInvalidArgument, err)
		}
		return []*geojson.Feature{f}, nil
	case "":
		return nil, rserrors.NewArgumentError("type", `""`)
	default:
		g, err := geojson.UnmarshalGeometry(data)
		if err != nil {
			return nil, fmt.Errorf("%w: decode geometry: %v", rserrors.ErrInvalidArgument, err)
		}
		return []*geojson.Feature{geojson.NewFeature(g.Geometry())}, nil
	}
}

// SegmentFeatures cuts every line of features. Source indexes start at firstIndex
// so that streamed input keeps counting across records.
// SegmentFeatures 切分 features 中的每条线，源索引从 firstIndex 开始，以便流式输入跨记录连续计数。
func SegmentFeatures(ctx context.Context, seg *segment.Segmenter, features []*geojson.Feature, distance float64, firstIndex int) ([]*geojson.Feature, Stats, error) {
	log := logger.Get(ctx)
	var (
		out   []*geojson.Feature
		stats Stats
	)

	for i, f := range features {
		sourceIndex := firstIndex + i
		if f == nil || f.Geometry == nil {
			return nil, stats, fmt.Errorf("feature %d: %w", sourceIndex, rserrors.NewGeometryError("missing geometry"))
		}

		var (
			pieces []segment.Polyline
			err    error
		)
		switch g := f.Geometry.(type) {
		case orb.LineString:
			var line segment.Polyline
			line, err = segment.NewPolyline(g)
			if err == nil {
				pieces, err = seg.Cut(ctx, line, distance)
			}
		case orb.MultiLineString:
			pieces, err = seg.CutMulti(ctx, g, distance)
		default:
			err = rserrors.NewGeometryError(fmt.Sprintf("unsupported geometry type %s", f.Geometry.GeoJSONType()))
		}
		if err != nil {
			return nil, stats, fmt.Errorf("feature %d: %w", sourceIndex, err)
		}

		for j, p := range pieces {
			length := p.Length()
			nf := geojson.NewFeature(p.LineString())
			nf.Properties = f.Properties.Clone()
			if nf.Properties == nil {
				nf.Properties = geojson.Properties{}
			}
			nf.Properties[PropSourceIndex] = sourceIndex
			nf.Properties[PropSegmentIndex] = j
			nf.Properties[PropLength] = length
			out = append(out, nf)
			stats.Length += length
		}
		stats.Lines++
		stats.Segments += len(pieces)
	}

	log.Debugf("geoio: %d features -> %d segments", stats.Lines, stats.Segments)
	return out, stats, nil
}

// MarshalFeatureCollection encodes features as an indented FeatureCollection.
// MarshalFeatureCollection 将 features 编码为带缩进的 FeatureCollection。
func MarshalFeatureCollection(features []*geojson.Feature) ([]byte, error) {
	fc := geojson.NewFeatureCollection()
	fc.Features = append(fc.Features, features...)

	raw, err := fc.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// WriteNDJSON writes one compact Feature per line.
// WriteNDJSON 每行写入一个紧凑的 Feature。
func WriteNDJSON(w io.Writer, features []*geojson.Feature) error {
	for _, f := range features {
		raw, err := f.MarshalJSON()
		if err != nil {
			return err
		}
		raw = append(raw, '\n')
		if _, err := w.Write(raw); err != nil {
			return err
		}
	}
	return nil
}
