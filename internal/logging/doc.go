// Package logging configures structured logging for codesync.
//
// Without --debug, logs go to stderr at the configured level. With --debug,
// JSON logs are also written to <data dir>/logs/codesync.log, rotated by
// size, and can be read back with the Viewer.
package logging
