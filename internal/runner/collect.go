package runner

import (
	"bytes"
	"context"
)

// Result is a status stream folded into its outputs and outcome.
type Result struct {
	Stdout []byte
	Stderr []byte
	Status Status // the terminal status
}

// ExitCode returns the exit code for Completed results and -1 otherwise.
func (r Result) ExitCode() int {
	if r.Status.State != StateCompleted {
		return -1
	}
	return int(r.Status.Code)
}

// Collect drains ch. If the stream closes without a terminal status the
// result is Failed.
func Collect(ch <-chan Status) Result {
	var stdout, stderr bytes.Buffer
	res := Result{Status: failed("status stream ended early")}
	for st := range ch {
		if !st.Terminal() {
			if st.Stream == Stderr {
				stderr.Write(st.Chunk)
			} else {
				stdout.Write(st.Chunk)
			}
			continue
		}
		res.Status = st
	}
	res.Stdout = stdout.Bytes()
	res.Stderr = stderr.Bytes()
	return res
}

// Run starts cmd and collects its result.
func (r *Runner) Run(ctx context.Context, cmd Command) (Result, error) {
	ch, err := r.Execute(ctx, cmd)
	if err != nil {
		return Result{}, err
	}
	return Collect(ch), nil
}
