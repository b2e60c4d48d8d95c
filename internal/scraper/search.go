// Path: internal/scraper/search.go
package scraper

const (
	overFetchFactor = 4
	minPageSize     = 50
	maxPageSize     = 200
	defaultMaxPages = 5
	defaultTag      = "lora"
)

// Criterion is one filter clause of a search request.
type Criterion struct {
	Category  string   `json:"category"`
	Predicate string   `json:"predicate"`
	Values    []string `json:"values"`
}

// SearchBody is the JSON body PUT to the search endpoint for one page.
type SearchBody struct {
	PageSize        int         `json:"PageSize"`
	PageNumber      int         `json:"PageNumber"`
	SortBy          string      `json:"SortBy"`
	Target          string      `json:"Target"`
	Criterion       []Criterion `json:"Criterion"`
	SingleCriterion []Criterion `json:"SingleCriterion"`
}

// BuildSearchBody builds the request body for one page. The tag clause is
// always present; the task clause only when task is set.
func BuildSearchBody(pageSize int, tag, task string, pageNumber int) SearchBody {
	body := SearchBody{
		PageSize:   pageSize,
		PageNumber: pageNumber,
		SortBy:     "Default",
		Target:     "",
		Criterion: []Criterion{
			{Category: "tags", Predicate: "contains", Values: []string{tag}},
		},
		SingleCriterion: []Criterion{},
	}
	if task != "" {
		body.Criterion = append(body.Criterion, Criterion{Category: "tasks", Predicate: "contains", Values: []string{task}})
	}
	return body
}

// Query describes one aggregation run.
type Query struct {
	Limit    int
	Tag      string
	Task     string
	PageSize int
	MaxPages int
}

// DefaultPageSize is limit*4 clamped to [50, 200].
func DefaultPageSize(limit int) int {
	size := limit * overFetchFactor
	if size < minPageSize {
		return minPageSize
	}
	if size > maxPageSize {
		return maxPageSize
	}
	return size
}

func (q Query) withDefaults() Query {
	if q.Tag == "" {
		q.Tag = defaultTag
	}
	if q.PageSize <= 0 {
		q.PageSize = DefaultPageSize(q.Limit)
	}
	if q.MaxPages <= 0 {
		q.MaxPages = defaultMaxPages
	}
	return q
}
