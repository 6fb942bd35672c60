// Package main provides the entry point for the deepcheck CLI.
//
// deepcheck inspects audio and video files for forensic signs of synthetic
// generation or manipulation and reports an explainable confidence score.
//
// Usage:
//
//	deepcheck analyze <media-file>
//	deepcheck analyze --dir <directory> --output-dir <reports>
//
// See --help for all available options.
package main

// main is the entry point for deepcheck.
func main() {
	Execute()
}
