// Package report renders analysis reports.
//
// Writers implement the Writer interface for each output format:
//   - SimpleWriter: plain text for terminal display
//   - JSONWriter: the schema-conforming JSON payload
//   - MarkdownWriter: Markdown with tables and a mermaid chart
//
// The JSON Schema of the report is embedded and exposed through Validate.
// Batch runs are summarized with Summarize and printed with WriteBatch.
package report
