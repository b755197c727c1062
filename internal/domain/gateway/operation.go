package gateway

// OperationKind enumerates the request shapes the gateway serves.
type OperationKind int

const (
	// SearchByOrganism searches the remote index by organism name.
	SearchByOrganism OperationKind = iota + 1
	// SearchByAuthor searches the remote index by author name.
	SearchByAuthor
	// FetchDetails retrieves one record in two representations.
	FetchDetails
)

func (k OperationKind) String() string {
	switch k {
	case SearchByOrganism:
		return "search_organism"
	case SearchByAuthor:
		return "search_author"
	case FetchDetails:
		return "fetch_details"
	default:
		return "unknown"
	}
}

// Operation is one request to execute. Param is the organism, author, or
// record identifier depending on Kind.
type Operation struct {
	Kind  OperationKind
	Param string
}

// NewSearchByOrganism returns a SearchByOrganism operation.
func NewSearchByOrganism(query string) Operation {
	return Operation{Kind: SearchByOrganism, Param: query}
}

// NewSearchByAuthor returns a SearchByAuthor operation.
func NewSearchByAuthor(query string) Operation {
	return Operation{Kind: SearchByAuthor, Param: query}
}

// NewFetchDetails returns a FetchDetails operation.
func NewFetchDetails(id string) Operation {
	return Operation{Kind: FetchDetails, Param: id}
}

// RecordDetails holds one record in both remote formats, verbatim.
type RecordDetails struct {
	GenBank string `json:"genbank"`
	FASTA   string `json:"fasta"`
}

// FetchResult is the outcome of a successful operation. Searches fill
// Identifiers in remote order (duplicates kept); FetchDetails fills Details.
type FetchResult struct {
	Identifiers []string
	Details     *RecordDetails
}
