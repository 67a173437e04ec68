package sources

import "fmt"

// SourceError represents a failure reading one source. The aggregator logs
// it and carries on without that source.
type SourceError struct {
	Source  string
	Message string
	Cause   error
}

func (e *SourceError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Source, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Source, e.Message)
}

func (e *SourceError) Unwrap() error {
	return e.Cause
}
