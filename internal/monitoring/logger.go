package monitoring

import "log"

// Logf is the package-level diagnostic logger used by the analysis packages
// for fit and grouping diagnostics. It defaults to log.Printf; tests mute it
// and tools redirect it via SetLogger.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the diagnostic logger. A nil argument installs a no-op
// logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}
