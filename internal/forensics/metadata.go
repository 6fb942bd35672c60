package forensics

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/nao1215/deepcheck/internal/config"
	"github.com/nao1215/deepcheck/internal/media"
	"github.com/nao1215/deepcheck/internal/model"
)

// futureTolerance absorbs timezone-less timestamps written in local time.
const futureTolerance = 24 * time.Hour

// timeLayouts are the creation time formats written by muxers and cameras.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000000Z",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006:01:02 15:04:05",
	"2006:01:02 15:04:05-07:00",
	"2006-01-02",
}

// hardwareFields are the tag names that identify a capture device.
var hardwareFields = []string{"make", "model", "manufacturer"}

// creationFields are the tag names that carry a creation timestamp.
var creationFields = []string{"creation_time", "creationdate", "datetimeoriginal", "date"}

// technicalFields describe the encoding rather than the capture and do not
// count toward the descriptive tag total.
var technicalFields = []string{
	"name", "codec", "profile", "encoder", "major_brand", "minor_version",
	"compatible_brands", "handler_name", "vendor_id", "language", "duration",
}

// MetadataAnalyzer applies fixed-severity rules to container and EXIF tags.
type MetadataAnalyzer struct {
	source media.MetadataSource
	cfg    config.Metadata
	now    func() time.Time
}

// NewMetadataAnalyzer creates a metadata analyzer.
func NewMetadataAnalyzer(source media.MetadataSource, cfg config.Metadata) *MetadataAnalyzer {
	return &MetadataAnalyzer{source: source, cfg: cfg, now: time.Now}
}

// WithClock returns a copy of the analyzer that reads the current time from now.
func (m *MetadataAnalyzer) WithClock(now func() time.Time) *MetadataAnalyzer {
	cp := *m
	cp.now = now
	return &cp
}

// Channel implements ChannelAnalyzer.
func (m *MetadataAnalyzer) Channel() model.Channel {
	return model.ChannelMetadata
}

// Analyze implements ChannelAnalyzer. The metadata channel is never
// not-applicable: every container has a format description.
func (m *MetadataAnalyzer) Analyze(ctx context.Context, asset model.MediaAsset) model.ChannelResult {
	tags, err := m.source.Tags(ctx, asset)
	if err != nil {
		return resultFromError(ctx, model.ChannelMetadata, err, "")
	}
	return m.Evaluate(tags, m.now())
}

// Evaluate applies the metadata rules to a flat tag map. Keys are expected in
// lower case, optionally prefixed (stream.video., exif.).
func (m *MetadataAnalyzer) Evaluate(tags map[string]string, now time.Time) model.ChannelResult {
	keys := make([]string, 0, len(tags))
	for k, v := range tags {
		if strings.TrimSpace(v) != "" {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)

	var anomalies []model.Anomaly
	add := func(kind model.AnomalyKind, note string, measured float64) {
		sev := m.cfg.Severity(kind)
		if sev <= 0 {
			return
		}
		anomalies = append(anomalies, model.NewAnomaly(kind, model.SequenceIndex, sev, note).WithMeasured(measured))
	}

	if !hasField(keys, hardwareFields) {
		add(model.KindMissingHardwareSignature, "no capture device make or model recorded", 0)
	}

	if key, sig, ok := m.generatorSignature(keys, tags); ok {
		add(model.KindSynthesisToolSignature, fmt.Sprintf("%s names generator %q", key, sig), 1)
	}

	if key, sig, ok := m.transcoderSignature(keys, tags); ok {
		add(model.KindReencodeSignature, fmt.Sprintf("%s names transcoder %q", key, sig), 1)
	}

	if key, value, ok := customQuantMatrix(keys, tags); ok {
		add(model.KindQuantizationTable, fmt.Sprintf("%s carries cqm=%s", key, value), 1)
	}

	if key, reason, year, ok := m.creationTimeAnomaly(keys, tags, now); ok {
		add(model.KindCreationTimeAnomaly, fmt.Sprintf("%s %s", key, reason), float64(year))
	}

	descriptive := 0
	for _, k := range keys {
		if !slices.Contains(technicalFields, fieldName(k)) {
			descriptive++
		}
	}
	if descriptive < m.cfg.MinTags {
		add(model.KindSparseMetadata, fmt.Sprintf("%d descriptive tags, expected at least %d", descriptive, m.cfg.MinTags), float64(descriptive))
	}

	summary := map[string]float64{
		"tag_count":         float64(len(keys)),
		"descriptive_tags":  float64(descriptive),
		"hardware_detected": boolToFloat(hasField(keys, hardwareFields)),
	}
	return model.Succeeded(model.ChannelMetadata, anomalies, 1, summary)
}

func (m *MetadataAnalyzer) generatorSignature(keys []string, tags map[string]string) (string, string, bool) {
	for _, k := range keys {
		value := strings.ToLower(tags[k])
		for _, sig := range m.cfg.GeneratorSignatures {
			if sig != "" && strings.Contains(value, strings.ToLower(sig)) {
				return k, sig, true
			}
		}
	}
	return "", "", false
}

func (m *MetadataAnalyzer) transcoderSignature(keys []string, tags map[string]string) (string, string, bool) {
	for _, k := range keys {
		if fieldName(k) != "encoder" && fieldName(k) != "software" {
			continue
		}
		value := strings.ToLower(strings.TrimSpace(tags[k]))
		for _, sig := range m.cfg.TranscoderSignatures {
			if sig != "" && strings.HasPrefix(value, strings.ToLower(sig)) {
				return k, sig, true
			}
		}
	}
	return "", "", false
}

// customQuantMatrix finds encoder settings with a cqm option other than the
// flat matrix ("0" or "flat").
func customQuantMatrix(keys []string, tags map[string]string) (string, string, bool) {
	for _, k := range keys {
		value := strings.ToLower(tags[k])
		idx := strings.Index(value, "cqm=")
		if idx < 0 {
			continue
		}
		rest := value[idx+len("cqm="):]
		end := strings.IndexAny(rest, " /:;,")
		if end >= 0 {
			rest = rest[:end]
		}
		if rest == "" || rest == "0" || rest == "flat" {
			continue
		}
		return k, rest, true
	}
	return "", "", false
}

func (m *MetadataAnalyzer) creationTimeAnomaly(keys []string, tags map[string]string, now time.Time) (string, string, int, bool) {
	for _, k := range keys {
		if !slices.Contains(creationFields, fieldName(k)) {
			continue
		}
		raw := strings.TrimSpace(tags[k])
		ts, ok := parseTimestamp(raw)
		switch {
		case !ok:
			return k, fmt.Sprintf("is unparsable: %q", raw), 0, true
		case ts.After(now.Add(futureTolerance)):
			return k, fmt.Sprintf("is in the future: %s", ts.Format(time.RFC3339)), ts.Year(), true
		case ts.Year() < m.cfg.EarliestYear:
			return k, fmt.Sprintf("predates %d: %s", m.cfg.EarliestYear, ts.Format(time.RFC3339)), ts.Year(), true
		}
	}
	return "", "", 0, false
}

func parseTimestamp(raw string) (time.Time, bool) {
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// fieldName returns the last dotted segment of a tag key.
func fieldName(key string) string {
	if i := strings.LastIndexByte(key, '.'); i >= 0 {
		return key[i+1:]
	}
	return key
}

func hasField(keys []string, fields []string) bool {
	for _, k := range keys {
		if slices.Contains(fields, fieldName(k)) {
			return true
		}
	}
	return false
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
