package model

import (
	"path/filepath"
	"strings"
)

// MediaKind classifies an asset by the streams it is expected to carry.
type MediaKind string

const (
	// MediaKindAudio is an audio-only file.
	MediaKindAudio MediaKind = "audio"

	// MediaKindVideo is a video file without an audio stream.
	MediaKindVideo MediaKind = "video"

	// MediaKindAudiovisual is a video file that also carries audio.
	MediaKindAudiovisual MediaKind = "audiovisual"
)

// HasAudio reports whether assets of this kind carry an audio stream.
func (k MediaKind) HasAudio() bool {
	return k == MediaKindAudio || k == MediaKindAudiovisual
}

// HasVideo reports whether assets of this kind carry a video stream.
func (k MediaKind) HasVideo() bool {
	return k == MediaKindVideo || k == MediaKindAudiovisual
}

// audioExtensions and videoExtensions list the container extensions accepted
// for analysis. Anything else is rejected before a channel runs.
var (
	audioExtensions = map[string]struct{}{
		".mp3": {}, ".wav": {}, ".m4a": {}, ".flac": {}, ".ogg": {}, ".aac": {}, ".wma": {},
	}
	videoExtensions = map[string]struct{}{
		".mp4": {}, ".avi": {}, ".mov": {}, ".mkv": {}, ".flv": {}, ".wmv": {}, ".webm": {},
	}
)

// KindFromExtension guesses the media kind from the file extension.
// Video containers are assumed audiovisual until a probe says otherwise.
// Returns ErrUnsupportedFormat for unknown extensions.
func KindFromExtension(path string) (MediaKind, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if _, ok := audioExtensions[ext]; ok {
		return MediaKindAudio, nil
	}
	if _, ok := videoExtensions[ext]; ok {
		return MediaKindAudiovisual, nil
	}
	return "", ErrUnsupportedFormat
}

// IsSupported reports whether the file extension is accepted for analysis.
func IsSupported(path string) bool {
	_, err := KindFromExtension(path)
	return err == nil
}

// MediaAsset describes the file under analysis.
// It is created once per run by the engine and never modified afterwards.
type MediaAsset struct {
	// Path is the file path as given by the caller.
	Path string `json:"path"`

	// Fingerprint is the hex SHA3-256 digest of the file contents.
	// It identifies the asset in the history store independent of its path.
	Fingerprint string `json:"fingerprint"`

	// Kind is the detected media kind.
	Kind MediaKind `json:"kind"`

	// FormatName is the container format reported by the prober (e.g. "mov,mp4,m4a").
	FormatName string `json:"format_name,omitempty"`

	// DurationSeconds is the container duration; zero when unknown.
	DurationSeconds float64 `json:"duration_seconds"`

	// SizeBytes is the file size on disk.
	SizeBytes int64 `json:"size_bytes"`

	// Width and Height are the dimensions of the first video stream.
	Width  int `json:"width,omitempty"`
	Height int `json:"height,omitempty"`
}

// Name returns the base file name of the asset.
func (a MediaAsset) Name() string {
	return filepath.Base(a.Path)
}
