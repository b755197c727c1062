package entrez

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/seqgate/seqgate/internal/port/outbound"
)

// esearchResponse is the subset of the esearch JSON envelope we read.
type esearchResponse struct {
	Result *struct {
		Count  string   `json:"count"`
		IDList []string `json:"idlist"`
		Error  string   `json:"ERROR"`
	} `json:"esearchresult"`
	Error string `json:"error"`
}

// Parser decodes esearch JSON bodies.
type Parser struct{}

// NewParser returns a Parser.
func NewParser() *Parser { return &Parser{} }

// ParseIdentifiers extracts esearchresult.idlist, preserving order and
// duplicates. An empty idlist yields an empty, non-nil slice.
func (p *Parser) ParseIdentifiers(body []byte) ([]string, error) {
	var resp esearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("invalid search response: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("search rejected: %s", resp.Error)
	}
	if resp.Result == nil {
		return nil, errors.New("search response missing esearchresult")
	}
	if resp.Result.Error != "" {
		return nil, fmt.Errorf("search rejected: %s", resp.Result.Error)
	}
	if resp.Result.IDList == nil {
		return []string{}, nil
	}
	return resp.Result.IDList, nil
}

var _ outbound.ResponseParser = (*Parser)(nil)
