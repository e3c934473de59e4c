package client

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"testing"
)

func TestClassifyResponse(t *testing.T) {
	tests := []struct {
		name        string
		statusCode  int
		body        string
		wantClass   ErrorClass
		wantMessage string
	}{
		{
			name:        "429 with reason is rate limited",
			statusCode:  http.StatusTooManyRequests,
			body:        `{"status":"error","code":429,"exception":"` + RateLimitReason + `"}`,
			wantClass:   ErrorClassRateLimited,
			wantMessage: RateLimitReason,
		},
		{
			name:        "429 with other reason is a client error",
			statusCode:  http.StatusTooManyRequests,
			body:        `{"exception":"Превышен лимит запросов"}`,
			wantClass:   ErrorClassClient,
			wantMessage: "Превышен лимит запросов",
		},
		{
			name:        "429 without body is a client error",
			statusCode:  http.StatusTooManyRequests,
			body:        ``,
			wantClass:   ErrorClassClient,
			wantMessage: "429 Too Many Requests",
		},
		{
			name:        "401 is a client error",
			statusCode:  http.StatusUnauthorized,
			body:        `{"exception":"Неверный токен"}`,
			wantClass:   ErrorClassClient,
			wantMessage: "Неверный токен",
		},
		{
			name:        "503 is a server error",
			statusCode:  http.StatusServiceUnavailable,
			body:        `<html>down</html>`,
			wantClass:   ErrorClassServer,
			wantMessage: "503 Service Unavailable",
		},
		{
			name:        "204 is treated as a server error",
			statusCode:  http.StatusNoContent,
			body:        ``,
			wantClass:   ErrorClassServer,
			wantMessage: "204 No Content",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := &http.Response{
				StatusCode: tt.statusCode,
				Status:     fmt.Sprintf("%d %s", tt.statusCode, http.StatusText(tt.statusCode)),
			}

			err := classifyResponse(EndpointSearchGroup, resp, []byte(tt.body))
			if err.Class != tt.wantClass {
				t.Errorf("Class = %q, want %q", err.Class, tt.wantClass)
			}
			if err.Message != tt.wantMessage {
				t.Errorf("Message = %q, want %q", err.Message, tt.wantMessage)
			}
			if err.StatusCode != tt.statusCode {
				t.Errorf("StatusCode = %d, want %d", err.StatusCode, tt.statusCode)
			}
		})
	}
}

func TestAPIError_Error(t *testing.T) {
	tests := []struct {
		name     string
		apiError *APIError
		expected string
	}{
		{
			name: "error with wrapped error",
			apiError: &APIError{
				Endpoint:   EndpointStatus,
				StatusCode: 0,
				Class:      ErrorClassNetwork,
				Message:    "request failed",
				Err:        io.EOF,
			},
			expected: "fssp status network error (status 0): request failed: EOF",
		},
		{
			name: "error without wrapped error",
			apiError: &APIError{
				Endpoint:   EndpointSearchGroup,
				StatusCode: 500,
				Class:      ErrorClassServer,
				Message:    "500 Internal Server Error",
			},
			expected: "fssp search/group server error (status 500): 500 Internal Server Error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.apiError.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestAPIError_Unwrap(t *testing.T) {
	inner := errors.New("boom")
	err := fmt.Errorf("submit: %w", &APIError{Class: ErrorClassNetwork, Err: inner})

	if !errors.Is(err, inner) {
		t.Error("errors.Is() did not find the wrapped error")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatal("errors.As() did not find *APIError")
	}
	if apiErr.Class != ErrorClassNetwork {
		t.Errorf("Class = %q, want %q", apiErr.Class, ErrorClassNetwork)
	}
}

func TestClassOf(t *testing.T) {
	rateLimited := fmt.Errorf("wrapped: %w", &APIError{Class: ErrorClassRateLimited})

	if got := ClassOf(rateLimited); got != ErrorClassRateLimited {
		t.Errorf("ClassOf() = %q, want %q", got, ErrorClassRateLimited)
	}
	if !IsRateLimited(rateLimited) {
		t.Error("IsRateLimited() = false, want true")
	}
	if IsRateLimited(&APIError{Class: ErrorClassClient}) {
		t.Error("IsRateLimited() = true for client error")
	}
	if got := ClassOf(errors.New("plain")); got != "" {
		t.Errorf("ClassOf(plain) = %q, want empty", got)
	}
	if IsRateLimited(nil) {
		t.Error("IsRateLimited(nil) = true")
	}
}
