package runner

// TimeoutOutput replaces the captured output of a run that was killed
// by the timeout.
const TimeoutOutput = "timeout"

// Result holds the output of a command execution.
type Result struct {
	RunID     string // unique identifier for this run
	ExitCode  int    // process exit code; negated signal number if killed
	Stdout    []byte // captured stdout (may be truncated)
	Stderr    []byte // captured stderr (may be truncated)
	Truncated bool   // true if output exceeded the size cap
	TimedOut  bool   // true if the process was killed by the timeout
}

// Output returns stdout and stderr joined by a newline, or
// TimeoutOutput if the run timed out.
func (r *Result) Output() string {
	if r.TimedOut {
		return TimeoutOutput
	}
	return string(r.Stdout) + "\n" + string(r.Stderr)
}
