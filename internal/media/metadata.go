package media

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"

	exif "github.com/dsoprea/go-exif/v3"

	"github.com/nao1215/deepcheck/internal/model"
)

// ProbeMetadata builds the metadata tag map from ffprobe output and EXIF
// blocks carved from the head of the file.
type ProbeMetadata struct {
	prober        Prober
	exifScanBytes int
	logger        *slog.Logger
}

// NewProbeMetadata returns a metadata source. exifScanBytes bounds how much
// of the file is searched for an EXIF block; zero disables EXIF carving.
func NewProbeMetadata(prober Prober, exifScanBytes int, logger *slog.Logger) *ProbeMetadata {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProbeMetadata{prober: prober, exifScanBytes: exifScanBytes, logger: logger}
}

// Tags returns the flattened tag map of asset. A probe failure is returned
// as is; an EXIF failure only drops the exif.* keys.
func (m *ProbeMetadata) Tags(ctx context.Context, asset model.MediaAsset) (map[string]string, error) {
	result, err := m.prober.Probe(ctx, asset.Path)
	if err != nil {
		return nil, err
	}
	tags := result.FlatTags()

	if m.exifScanBytes > 0 {
		exifTags, err := ExifTags(asset.Path, m.exifScanBytes)
		switch {
		case err == nil:
			for k, v := range exifTags {
				tags[k] = v
			}
		case errors.Is(err, exif.ErrNoExif):
		default:
			m.logger.Debug("exif carving failed", "path", asset.Path, "error", err)
		}
	}
	return tags, nil
}

// ExifTags searches the first maxBytes of the file for an EXIF block and
// returns its tags as "exif.<lower-cased tag name>".
func ExifTags(path string, maxBytes int) (map[string]string, error) {
	f, err := os.Open(path) //nolint:gosec // path is the file under analysis
	if err != nil {
		return nil, err
	}
	defer f.Close()

	head, err := io.ReadAll(io.LimitReader(f, int64(maxBytes)))
	if err != nil {
		return nil, err
	}

	rawExif, err := exif.SearchAndExtractExif(head)
	if err != nil {
		return nil, err
	}

	entries, _, err := exif.GetFlatExifData(rawExif, nil)
	if err != nil {
		return nil, err
	}

	tags := make(map[string]string, len(entries))
	for _, entry := range entries {
		if entry.TagName == "" {
			continue
		}
		tags["exif."+strings.ToLower(entry.TagName)] = strings.TrimSpace(entry.Formatted)
	}
	return tags, nil
}
