package search

// Result is a single search hit returned to the caller.
type Result struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	DomainURL   string `json:"domain_url"`
	Description string `json:"description"`
	Snippet     string `json:"snippet,omitempty"`
}

// Query describes a search request.
type Query struct {
	Text  string
	Limit int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// ServiceRecord is the indexed representation of a dashboard service.
type ServiceRecord struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	DomainURL   string `json:"domainUrl"`
	Description string `json:"description"`
}
