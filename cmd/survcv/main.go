package main

import (
	"errors"
	"fmt"
	"os"
)

// Exit codes for different failure modes
const (
	ExitSuccess  = 0 // Evaluation completed at the primary tier
	ExitDegraded = 1 // Evaluation completed, but only after falling back
	ExitError    = 2 // Configuration or runtime error
)

// DegradedRunError indicates that the evaluation produced a usable outcome,
// but not at the primary tier: a fallback configuration had to step in.
type DegradedRunError struct {
	Message string
}

func (e *DegradedRunError) Error() string {
	return e.Message
}

func main() {
	if err := execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)

		var degraded *DegradedRunError
		if errors.As(err, &degraded) {
			os.Exit(ExitDegraded)
		}

		os.Exit(ExitError)
	}
}
