package search

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultProperty ResultType = "property"
	ResultComment  ResultType = "comment"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type       ResultType `json:"type"`
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Snippet    string     `json:"snippet"`
	PropertyID string     `json:"propertyId"`
	SectionID  string     `json:"sectionId,omitempty"`
	Stage      string     `json:"stage,omitempty"`
}

// Query describes a search request.
type Query struct {
	Text        string
	FilterType  ResultType // empty = all types
	FilterStage string
	Limit       int
	Offset      int
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
	IndexProperty(p PropertyRecord) error
	IndexComments(comments []CommentRecord) error
	DeleteProperty(id string) error
	DeleteComment(id string) error
}

// PropertyRecord is the data we index for a property.
type PropertyRecord struct {
	ID         string `json:"id"`
	Address    string `json:"address"`
	PostalCode string `json:"postalCode"`
	City       string `json:"city"`
	Stage      string `json:"stage"`
}

// CommentRecord is the data we index for one section's review comment.
// ID is "<propertyID>:<sectionID>" so re-indexing a property replaces
// its previous comments in place.
type CommentRecord struct {
	ID           string `json:"id"`
	PropertyID   string `json:"propertyId"`
	SectionID    string `json:"sectionId"`
	SectionTitle string `json:"sectionTitle"`
	Comments     string `json:"comments"`
	Address      string `json:"address"`
}
