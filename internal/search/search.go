package search

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultContract ResultType = "contract"
	ResultTemplate ResultType = "template"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type       ResultType `json:"type"`
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Snippet    string     `json:"snippet"`
	TemplateID string     `json:"templateId,omitempty"`
	UserID     string     `json:"userId,omitempty"`
}

// Query describes a search request.
type Query struct {
	Text         string
	FilterType   ResultType // empty = all types
	FilterUserID string
	Limit        int
	Offset       int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// Indexer can push entities into a search index.
type Indexer interface {
	IndexContract(c ContractRecord) error
	IndexTemplate(t TemplateRecord) error
	DeleteContract(id string) error
}

// ContractRecord is the data we index for a saved contract.
type ContractRecord struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Body       string `json:"body"`
	TemplateID string `json:"templateId"`
	Variant    string `json:"variant"`
	UserID     string `json:"userId"`
}

// TemplateRecord is the data we index for a contract template.
type TemplateRecord struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Variants string `json:"variants"`
}
