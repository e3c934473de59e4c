package client

import "github.com/Sternrassler/fssp-client/pkg/fssp"

// searchGroupRequest is the POST search/group body.
type searchGroupRequest struct {
	Token   string       `json:"token"`
	Request []searchItem `json:"request"`
}

type searchItem struct {
	Type   fssp.SearchType `json:"type"`
	Params searchParams    `json:"params"`
}

type searchParams struct {
	Region     int    `json:"region"`
	FirstName  string `json:"firstname"`
	LastName   string `json:"lastname"`
	SecondName string `json:"secondname"`
	BirthDate  string `json:"birthdate,omitempty"`
}

func newSearchGroupRequest(token string, b fssp.Batch) searchGroupRequest {
	items := make([]searchItem, len(b))
	for i, it := range b {
		items[i] = searchItem{
			Type: it.Type,
			Params: searchParams{
				Region:     it.Region,
				FirstName:  it.FirstName,
				LastName:   it.LastName,
				SecondName: it.Patronymic,
				BirthDate:  it.BirthDate,
			},
		}
	}
	return searchGroupRequest{Token: token, Request: items}
}

type searchGroupResponse struct {
	Response struct {
		Task string `json:"task"`
	} `json:"response"`
}

type statusResponse struct {
	Code *int `json:"code"`
}

type resultResponse struct {
	Response struct {
		Result []ResultElement `json:"result"`
	} `json:"response"`
}

// exceptionBody is the error envelope of non-200 responses.
type exceptionBody struct {
	Exception string `json:"exception"`
}

// ResultPayload is the decoded body of a result call: one element per
// request item of the submitted batch.
type ResultPayload struct {
	Elements []ResultElement
}

// ResultElement holds the matches for one request item.
type ResultElement struct {
	Status int         `json:"status"`
	Result []CaseEntry `json:"result"`
}

// CaseEntry is one enforcement case matched for a request item.
type CaseEntry struct {
	Name          string `json:"name"`
	ExeProduction string `json:"exe_production"`
	Details       string `json:"details"`
	Subject       string `json:"subject"`
	Bailiff       string `json:"bailiff"`
	IPEnd         string `json:"ip_end"`
}
