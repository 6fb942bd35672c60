// Package model defines the core data structures used throughout deepcheck.
//
// This package contains the following main types:
//   - MediaAsset: The file under analysis, immutable once probed
//   - AudioWindow / VideoFrame: Transient feature descriptors produced by extractors
//   - Anomaly: A single piece of typed, severity-scored evidence
//   - ChannelResult: The outcome of one analysis channel (succeeded, failed, not applicable)
//   - AnalysisReport: The aggregated score and verdict for one asset
//   - SimpleReport: A summarized, human-readable view of an AnalysisReport
//
// Models live in their own package so that the forensics, scoring, pipeline and
// report packages can share them without import cycles. All report types are
// serializable to JSON with stable snake_case field names.
package model
