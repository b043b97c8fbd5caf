// Package logging provides opt-in file-based logging with rotation for
// the codeindex CLI and core. When the --debug flag is set, structured
// JSON logs are written to ~/.codeindex/logs/ with size-based rotation,
// and the viewer can tail, filter, and follow them.
//
// By default (without --debug), logging is minimal and goes to stderr
// only.
package logging
