// Package media adapts the external decoding and probing tools to the
// interfaces consumed by the forensic analyzers.
//
// FFprobe describes containers and their tags, FFmpegAudio decodes mono PCM
// into analysis windows, FFmpegVideo samples evenly spaced frames and
// ProbeMetadata merges container tags with EXIF carved from the file head.
// Descriptor computation (spectra, Laplacian variance, edge and noise
// statistics) runs on bounded errgroup worker pools; the tools themselves are
// started with the caller's context so cancellation kills them.
package media
