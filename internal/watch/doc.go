// Package watch monitors directories for new media files.
//
// A Watcher listens for fsnotify create and write events, keeps the
// supported media files among them pending until they have not changed for
// a settle interval, and then hands their paths to the caller. The watch
// command analyzes every emitted path and stores the report.
package watch
