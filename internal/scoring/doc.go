// Package scoring aggregates per-channel evidence into a confidence score.
//
// Every anomaly kind present in a channel contributes one evidence level
// (see KindEvidence). The channel sub-score is the kind-weighted sum of
// those levels capped at 1, so more evidence never lowers it. Channel weights are redistributed over the channels that
// actually produced evidence by EffectiveWeights, a pure function, and the
// confidence score is the weighted sum of sub-scores clamped to [0,1].
//
// A file is reported as likely synthetic when its confidence score reaches
// the configured threshold; the comparison is inclusive. When no channel
// produced evidence the outcome is indeterminate and no score is returned.
package scoring
