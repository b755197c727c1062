// Package outbound defines the outbound port interfaces for reaching the
// remote sequence database.
package outbound

import "context"

// SearchField selects the index a search runs against.
type SearchField string

const (
	FieldOrganism SearchField = "Organism"
	FieldAuthor   SearchField = "Author"
)

// RecordFormat selects the representation a fetch returns.
type RecordFormat string

const (
	// FormatGenBank is the annotated GenBank flat file.
	FormatGenBank RecordFormat = "gb"
	// FormatFASTA is the bare sequence.
	FormatFASTA RecordFormat = "fasta"
)

// RemoteClient performs raw calls against the remote API.
// Implementations honor ctx cancellation and return the body verbatim.
type RemoteClient interface {
	Search(ctx context.Context, query string, field SearchField) ([]byte, error)
	Fetch(ctx context.Context, id string, format RecordFormat) ([]byte, error)
}

// ResponseParser decodes a search response body into record identifiers,
// preserving remote order and duplicates.
type ResponseParser interface {
	ParseIdentifiers(body []byte) ([]string, error)
}
