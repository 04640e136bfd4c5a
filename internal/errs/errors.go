package errs

import "fmt"

// ValidationError rejects a request before any work starts.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// TemplateError covers bad anchors and unreadable template images. When the
// template itself is broken it is fatal for the whole job since every ticket
// shares it; an anchor problem on a single composite is reported per ticket.
type TemplateError struct {
	TemplateID string
	Reason     string
	Err        error
}

func (e *TemplateError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("template %s: %s: %v", e.TemplateID, e.Reason, e.Err)
	}
	return fmt.Sprintf("template %s: %s", e.TemplateID, e.Reason)
}

func (e *TemplateError) Unwrap() error { return e.Err }

// RenderError is a per-ticket document encoding failure. It never aborts the
// job, it only increments the failed count.
type RenderError struct {
	Code string
	Err  error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("failed to render document for ticket %s: %v", e.Code, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// StorageError reports a persistence failure after retries were exhausted.
type StorageError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed after %d attempts: %v", e.Op, e.Attempts, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
