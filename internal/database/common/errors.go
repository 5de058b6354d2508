package common

import "fmt"

// SQLExecutionError reports a statement the store rejected.
type SQLExecutionError struct {
	Statement string
	Err       error
}

func (e *SQLExecutionError) Error() string {
	return fmt.Sprintf("failed to execute %q: %v", abbreviate(e.Statement, 160), e.Err)
}

func (e *SQLExecutionError) Unwrap() error {
	return e.Err
}

func abbreviate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
