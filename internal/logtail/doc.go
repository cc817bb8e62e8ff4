// Package logtail reads the tail of the application's glog files for the
// dashboard's log view.
//
// # Overview
//
// The dashboard owns the terminal, so glog writes to files under the
// configured log directory and maintains a quad.INFO symlink to the newest
// INFO file. The log view polls that file with Read and renders the result.
//
// # Reading Log Files
//
// Read uses a ring buffer of size maxLines:
//
//   - Scans the file sequentially (one pass)
//   - Uses O(maxLines) memory, not O(file size)
//   - Returns lines in correct chronological order
//
// A missing file yields no lines and no error, which is the normal state
// before the first log line is flushed.
//
// Example usage:
//
//	lines, err := logtail.Read(cfg.InfoLogPath(), 400)
//	if err != nil {
//		glog.Warningf("read log: %v", err)
//	}
//
// # glog Line Format
//
// Parse splits the standard glog header:
//
//	I0320 12:00:01.123456   4242 channel.go:164] push: connected
//	^^^^^ ^^^^^^^^^^^^^^^   ^^^^ ^^^^^^^^^^^^^^  ^^^^^^^^^^^^^^^
//	sev+date  time          tid  source          message
//
// Lines without a header (the file preamble, wrapped messages) keep Unknown
// severity. Filter drops entries below a minimum severity so the log view
// can toggle between everything and warnings only.
package logtail
