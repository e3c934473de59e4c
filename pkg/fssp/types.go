// Package fssp defines the domain types shared by the enforcement-record
// search pipeline: people to look up, request items sent to the search
// service, task identifiers and flattened result records.
package fssp

import (
	"strings"
	"time"
)

// DateLayout is the wire format for dates (dd.mm.yyyy).
const DateLayout = "02.01.2006"

// SearchType selects what kind of subject a request item searches for.
type SearchType int

const (
	// SearchIndividual searches for a natural person by name and birth date.
	SearchIndividual SearchType = 1

	// SearchLegalEntity searches for an organization by name and region.
	SearchLegalEntity SearchType = 2

	// SearchIPNumber searches by enforcement proceeding number.
	SearchIPNumber SearchType = 3
)

// Task status codes reported by the status endpoint.
const (
	// StatusDone means the task finished and results are available.
	StatusDone = 0

	// StatusPartial means the task finished with some sub-requests failing.
	// Results are still available.
	StatusPartial = 3
)

// IsReady reports whether a status code means results can be fetched.
func IsReady(code int) bool {
	return code == StatusDone || code == StatusPartial
}

// Person is one roster entry to look up.
type Person struct {
	LastName   string
	FirstName  string
	Patronymic string

	// BirthDate carries only the calendar date; the time component is ignored.
	BirthDate time.Time
}

// BirthDateString formats the birth date for the wire protocol. An unknown
// birth date yields "".
func (p Person) BirthDateString() string {
	if p.BirthDate.IsZero() {
		return ""
	}
	return p.BirthDate.Format(DateLayout)
}

// FullName returns "Last First Patronymic".
func (p Person) FullName() string {
	return strings.TrimSpace(strings.Join([]string{p.LastName, p.FirstName, p.Patronymic}, " "))
}

// FullNameWithBirthDate returns the full name followed by the birth date.
func (p Person) FullNameWithBirthDate() string {
	if p.BirthDate.IsZero() {
		return p.FullName()
	}
	return p.FullName() + " " + p.BirthDateString()
}

// RequestItem is a single (person, region) search request.
type RequestItem struct {
	Region     int
	LastName   string
	FirstName  string
	Patronymic string
	BirthDate  string
	Type       SearchType
}

// NewRequestItem builds an individual search item for person in region.
func NewRequestItem(p Person, region int) RequestItem {
	return RequestItem{
		Region:     region,
		LastName:   p.LastName,
		FirstName:  p.FirstName,
		Patronymic: p.Patronymic,
		BirthDate:  p.BirthDateString(),
		Type:       SearchIndividual,
	}
}

// Batch is an ordered group of request items sent in one submission call.
type Batch []RequestItem

// TaskID identifies one accepted batch on the search service.
type TaskID string

// Record is one flattened enforcement-case entry.
type Record struct {
	FullName       string `json:"full_name"`
	OrderNumber    string `json:"order_number"`
	Details        string `json:"details"`
	Subject        string `json:"subject"`
	BailiffName    string `json:"bailiff_name"`
	AdditionalInfo string `json:"additional_info"`
}

// Fields returns the record as column name to value, keyed by the JSON names.
func (r Record) Fields() map[string]string {
	return map[string]string{
		"full_name":       r.FullName,
		"order_number":    r.OrderNumber,
		"details":         r.Details,
		"subject":         r.Subject,
		"bailiff_name":    r.BailiffName,
		"additional_info": r.AdditionalInfo,
	}
}
