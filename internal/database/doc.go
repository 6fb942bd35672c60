// Package database provides SQLite-based storage for analysis history.
//
// ReportDB stores every completed AnalysisReport as JSON together with the
// columns needed to list and compare runs: the asset fingerprint, the time
// of analysis, the confidence score and the verdict. Runs that ended without
// a report (indeterminate, cancelled, decode failures) are kept in a
// separate table so repeated failures on the same asset remain visible.
//
// Assets are keyed by the SHA3-256 fingerprint of their contents, so a file
// that was renamed or moved still shares its history.
//
// The database is a single file opened through the CGO-free
// modernc.org/sqlite driver with WAL enabled.
package database
