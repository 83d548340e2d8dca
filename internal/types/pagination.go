package types

const (
	SortAsc  = "asc"
	SortDesc = "desc"

	DefaultPageSize = 10
	MaxPageSize     = 100
)

type PageRequest struct {
	Page        int    `form:"page"`
	PageSize    int    `form:"page_size"`
	OrderField  string `form:"order_field"`
	SortType    string `form:"sort_type"`
	Search      string `form:"search"`
	Prioritized *bool  `form:"prioritized"`
}

// Normalize clamps the request into usable bounds. Page is 1-based.
func (r *PageRequest) Normalize() {
	if r.Page < 1 {
		r.Page = 1
	}
	if r.PageSize < 1 {
		r.PageSize = DefaultPageSize
	}
	if r.PageSize > MaxPageSize {
		r.PageSize = MaxPageSize
	}
	if r.SortType != SortAsc && r.SortType != SortDesc {
		r.SortType = SortAsc
	}
}

func (r *PageRequest) Offset() int {
	return (r.Page - 1) * r.PageSize
}

type PageResult[T any] struct {
	TotalItems int64 `json:"totalItems"`
	TotalPages int64 `json:"totalPages"`
	Results    []T   `json:"results"`
}

func NewPageResult[T any](total int64, pageSize int, results []T) PageResult[T] {
	if results == nil {
		results = []T{}
	}
	return PageResult[T]{
		TotalItems: total,
		TotalPages: TotalPages(total, pageSize),
		Results:    results,
	}
}

// TotalPages is ceil(total/pageSize) without floating point.
func TotalPages(total int64, pageSize int) int64 {
	if pageSize <= 0 || total <= 0 {
		return 0
	}
	return (total + int64(pageSize) - 1) / int64(pageSize)
}
