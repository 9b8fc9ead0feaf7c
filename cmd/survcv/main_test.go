package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDegradedRunError(t *testing.T) {
	err := &DegradedRunError{
		Message: "evaluation completed at tier reduced",
	}

	assert.Equal(t, "evaluation completed at tier reduced", err.Error())
}

func TestErrorTypeDetection(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantType string
	}{
		{
			name:     "DegradedRunError",
			err:      &DegradedRunError{Message: "degraded"},
			wantType: "DegradedRunError",
		},
		{
			name:     "regular error",
			err:      errors.New("config error"),
			wantType: "other",
		},
		{
			name:     "wrapped DegradedRunError",
			err:      errors.Join(&DegradedRunError{Message: "degraded"}, errors.New("additional context")),
			wantType: "DegradedRunError",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var degradedErr *DegradedRunError
			isDegraded := errors.As(tt.err, &degradedErr)

			if tt.wantType == "DegradedRunError" {
				assert.True(t, isDegraded, "expected error to be detected as DegradedRunError")
			} else {
				assert.False(t, isDegraded, "expected error NOT to be detected as DegradedRunError")
			}
		})
	}
}
