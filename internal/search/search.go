package search

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultOCG     ResultType = "ocg"
	ResultSection ResultType = "section"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type     ResultType `json:"type"`
	ID       string     `json:"id"`
	Title    string     `json:"title"`
	Snippet  string     `json:"snippet"`
	OCGID    string     `json:"ocgId"`
	ClientID string     `json:"clientId"`
	Status   string     `json:"status,omitempty"`
}

// Query describes a search request.
type Query struct {
	Text           string
	FilterType     ResultType // empty = all types
	FilterClientID string
	FilterOCGID    string
	Limit          int
	Offset         int
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
	IndexOCG(rec OCGRecord) error
	IndexSection(rec SectionRecord) error
	DeleteOCG(id string) error
	DeleteSection(id string) error
}

// OCGRecord is the data we index for a guideline document.
type OCGRecord struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	ClientID string `json:"clientId"`
	Status   string `json:"status"`
	Version  int    `json:"version"`
}

// SectionRecord is the data we index for a guideline section.
type SectionRecord struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Content      string `json:"content"`
	OCGID        string `json:"ocgId"`
	ClientID     string `json:"clientId"`
	IsNegotiable bool   `json:"isNegotiable"`
}
