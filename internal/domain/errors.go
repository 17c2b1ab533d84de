package domain

import "fmt"

// UpstreamError marks a failure of a downstream service (WhatsApp Graph API
// or the AI provider). The gateway collapses these to a bare 500; the
// service name only shows up in logs and the journal.
type UpstreamError struct {
	Service string
	Err     error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %v", e.Service, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Upstream wraps err as an UpstreamError for the given service.
func Upstream(service string, err error) error {
	return &UpstreamError{Service: service, Err: err}
}
