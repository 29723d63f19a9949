package resilience

import "time"

// Failure records a per-record operation that still failed after retries.
// Passes collect these instead of aborting.
type Failure struct {
	Operation string    `json:"operation"`
	Key       string    `json:"key"`
	Error     string    `json:"error"`
	Class     string    `json:"class"`
	At        time.Time `json:"at"`
}

// NewFailure builds a Failure for operation on key.
func NewFailure(operation, key string, err error) Failure {
	f := Failure{
		Operation: operation,
		Key:       key,
		Class:     ClassifyError(err),
		At:        time.Now().UTC(),
	}
	if err != nil {
		f.Error = err.Error()
	}
	return f
}

// Transient reports whether the failure was classified transient, meaning a
// re-run of the pass may succeed.
func (f Failure) Transient() bool { return f.Class == ClassTransient }
