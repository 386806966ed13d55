package core

// diagnosticHook is the single process-wide optional panic/diagnostic
// sink spec §9 "Global state" names. It is nil by default; nothing is
// reported unless a host installs one, mirroring
// _examples/drpcorg-chotki/debug.go's package-level dump/log helpers
// rather than a per-Document callback, since the hook is meant for
// crash diagnostics that outlive any single document instance.
var diagnosticHook func(format string, args ...any)

// SetDiagnosticHook installs the process-wide diagnostic sink. Passing
// nil disables it. Not safe to call concurrently with document
// mutation, matching the rest of this package's single-threaded
// contract (spec §5).
func SetDiagnosticHook(h func(format string, args ...any)) {
	diagnosticHook = h
}

func diagf(format string, args ...any) {
	if diagnosticHook != nil {
		diagnosticHook(format, args...)
	}
}
