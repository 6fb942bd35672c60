// Package pipeline runs the analysis of media files.
//
// A single file goes through three steps: inspect (extension check,
// fingerprint, probe), channels (the audio, video and metadata analyzers run
// concurrently under an errgroup limit) and aggregate (scoring). Engine wires
// the steps to the ffmpeg and ffprobe adapters; tests swap in fake sources.
//
// Channel failures are recorded as Failed results and never abort the run.
// Cancellation of the context kills outstanding decoders and the run returns
// model.ErrCancelled without a report.
//
// BatchProcessor fans an Engine out over many files with bounded
// concurrency, keeping results in input order.
package pipeline
