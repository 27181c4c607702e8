// Package exitcode defines process exit codes for the dermbill commands.
package exitcode

const (
	Success         = 0
	UsageError      = 1
	ValidationError = 2
	DBConnError     = 3
	ExtractionError = 4
	AnalysisError   = 5
	ExportError     = 6
	PartialSuccess  = 7
)
