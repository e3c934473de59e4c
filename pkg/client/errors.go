package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// RateLimitReason is the exception text the search endpoint returns with
// HTTP 429 while the previous group request is still being processed.
const RateLimitReason = "Дождитесь результата предыдущего группового запроса"

// Common errors returned by the client.
var (
	// ErrEmptyToken is returned by New when no API token is configured.
	ErrEmptyToken = errors.New("api token is required")

	// ErrEmptyTask is returned when a task id is missing.
	ErrEmptyTask = errors.New("empty task id")

	// ErrMissingCode is returned when a status response carries no code.
	ErrMissingCode = errors.New("status response has no code")
)

// ErrorClass represents a classification of failed calls.
type ErrorClass string

const (
	// ErrorClassRateLimited is HTTP 429 with RateLimitReason: the previous
	// batch is still being processed.
	ErrorClassRateLimited ErrorClass = "rate_limited"

	// ErrorClassClient represents any other 4xx response.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx and other unexpected status codes.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassNetwork represents transport failures and timeouts.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassProtocol represents a 200 response with an unusable body.
	ErrorClassProtocol ErrorClass = "protocol"
)

// APIError describes a call that did not produce a usable result.
type APIError struct {
	Endpoint   string
	StatusCode int
	Class      ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fssp %s %s error (status %d): %s: %v",
			e.Endpoint, e.Class, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("fssp %s %s error (status %d): %s",
		e.Endpoint, e.Class, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// ClassOf returns the error class of err, or "" if err is not an *APIError.
func ClassOf(err error) ErrorClass {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Class
	}
	return ""
}

// IsRateLimited reports whether err is the service's "wait for previous group
// request" signal.
func IsRateLimited(err error) bool {
	return ClassOf(err) == ErrorClassRateLimited
}

// classifyResponse builds the error for a non-200 response.
func classifyResponse(endpoint string, resp *http.Response, body []byte) *APIError {
	var env exceptionBody
	_ = json.Unmarshal(body, &env)

	message := strings.TrimSpace(env.Exception)
	if message == "" {
		message = resp.Status
	}

	e := &APIError{
		Endpoint:   endpoint,
		StatusCode: resp.StatusCode,
		Message:    message,
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests && strings.TrimSpace(env.Exception) == RateLimitReason:
		e.Class = ErrorClassRateLimited
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		e.Class = ErrorClassClient
	default:
		e.Class = ErrorClassServer
	}

	return e
}
