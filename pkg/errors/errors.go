package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeNetwork represents transport failures and timeouts
	ErrorTypeNetwork ErrorType = "network"
	// ErrorTypeServer represents 5xx responses
	ErrorTypeServer ErrorType = "server"
	// ErrorTypeHTTPStatus represents 4xx responses other than 429
	ErrorTypeHTTPStatus ErrorType = "http_status"
	// ErrorTypeRateLimit represents 429 responses and blocked hosts
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypeRobots represents paths disallowed by robots.txt
	ErrorTypeRobots ErrorType = "robots"
	// ErrorTypeParsing represents a page missing a required field
	ErrorTypeParsing ErrorType = "parsing"
	// ErrorTypeUnknownHost represents a URL with no registered extractor
	ErrorTypeUnknownHost ErrorType = "unknown_host"
	// ErrorTypeConflict represents a lost race on the unique product URL
	ErrorTypeConflict ErrorType = "conflict"
	// ErrorTypeNotify represents email transport or event publishing errors
	ErrorTypeNotify ErrorType = "notify"
	// ErrorTypeValidation represents invalid records or arguments
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeConfiguration represents configuration errors
	ErrorTypeConfiguration ErrorType = "configuration"
)

// PipelineError is an error raised somewhere between fetch and notify
type PipelineError struct {
	Type    ErrorType
	Source  string
	Message string
	Err     error
	Time    time.Time
}

// Error implements the error interface
func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s - %v", e.Type, e.Source, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, e.Source, e.Message)
}

// Unwrap returns the underlying error
func (e *PipelineError) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is worth trying again later
func (e *PipelineError) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeNetwork, ErrorTypeServer, ErrorTypeConflict:
		return true
	default:
		return false
	}
}

// New creates a new PipelineError
func New(errType ErrorType, source, message string, err error) *PipelineError {
	return &PipelineError{
		Type:    errType,
		Source:  source,
		Message: message,
		Err:     err,
		Time:    time.Now(),
	}
}

// NewNetwork creates a new network error
func NewNetwork(source, message string, err error) *PipelineError {
	return New(ErrorTypeNetwork, source, message, err)
}

// NewServer creates an error for a 5xx response
func NewServer(source string, status int) *PipelineError {
	return New(ErrorTypeServer, source, fmt.Sprintf("unexpected status code: %d", status), nil)
}

// NewHTTPStatus creates an error for a 4xx response
func NewHTTPStatus(source string, status int) *PipelineError {
	return New(ErrorTypeHTTPStatus, source, fmt.Sprintf("unexpected status code: %d", status), nil)
}

// NewRateLimit creates a new rate limit error
func NewRateLimit(source string, duration time.Duration) *PipelineError {
	return New(ErrorTypeRateLimit, source, fmt.Sprintf("rate limited for %v", duration), nil)
}

// NewRobots creates an error for a path disallowed by robots.txt
func NewRobots(source, path string) *PipelineError {
	return New(ErrorTypeRobots, source, "blocked by robots.txt: "+path, nil)
}

// NewParsing creates a new parsing error
func NewParsing(source, message string, err error) *PipelineError {
	return New(ErrorTypeParsing, source, message, err)
}

// NewUnknownHost creates an error for a host without extractor
func NewUnknownHost(host string) *PipelineError {
	return New(ErrorTypeUnknownHost, host, "no extractor registered", nil)
}

// NewConflict creates an error for a lost unique-key race
func NewConflict(source, message string) *PipelineError {
	return New(ErrorTypeConflict, source, message, nil)
}

// NewNotify creates a new notification error
func NewNotify(source, message string, err error) *PipelineError {
	return New(ErrorTypeNotify, source, message, err)
}

// NewValidation creates a new validation error
func NewValidation(source, message string) *PipelineError {
	return New(ErrorTypeValidation, source, message, nil)
}

// NewConfiguration creates a new configuration error
func NewConfiguration(message string, err error) *PipelineError {
	return New(ErrorTypeConfiguration, "", message, err)
}

// KindOf returns the type of the first PipelineError in err's chain,
// or an empty ErrorType if there is none.
func KindOf(err error) ErrorType {
	var pe *PipelineError
	if stderrors.As(err, &pe) {
		return pe.Type
	}
	return ""
}

// Is reports whether err carries a PipelineError of the given type
func Is(err error, errType ErrorType) bool {
	return err != nil && KindOf(err) == errType
}

// IsPermanentFetch reports whether a fetch failed in a way that marks the page gone
func IsPermanentFetch(err error) bool {
	return Is(err, ErrorTypeHTTPStatus)
}

// IsParsing reports whether err is a parse failure
func IsParsing(err error) bool {
	return Is(err, ErrorTypeParsing)
}
