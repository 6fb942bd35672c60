// Package forensics implements the per-channel deepfake evidence analyzers.
//
// # Analyzer Model
//
// Each evidence channel (audio, video, metadata) has one ChannelAnalyzer.
// An analyzer pulls features from a media source, applies its rule set and
// returns a model.ChannelResult in one of three states:
//
//   - Succeeded: the rules ran; the result lists zero or more anomalies
//   - Failed: the stream could not be decoded or a tool could not be invoked
//   - NotApplicable: the asset has nothing for the channel to analyze
//
// Failures never abort sibling channels. The Suite registers one analyzer per
// channel and logs each outcome.
//
// # Rules
//
// Audio rules look at rolling spectral variance (centroid, rolloff,
// zero-crossing rate), onset and energy regularity, energy jumps and the
// amplitude distribution of each window. Video rules look at sharpness and
// motion statistics across the sampled sequence, splices against the local
// median delta, and per-frame color, checkerboard and noise descriptors.
// Metadata rules are fixed-severity checks over the flattened tag map.
//
// Every threshold comes from config.Analysis. Rule evaluation is exposed as
// Evaluate methods so the rules can be tested on synthetic descriptors
// without external tools.
package forensics
