// Package output renders CLI results.
//
// Results print as tables by default, or as JSON or YAML for scripts. Tables
// for arbitrary data are derived from its JSON form, so the names a value
// uses on the wire are the names shown in the header. Spinner and
// ProgressBar give feedback on slow requests and downloads.
package output
