// Package pagination pages GORM queries into a data + meta envelope.
package pagination

import "gorm.io/gorm"

const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// Meta defines the structure for pagination metadata.
type Meta struct {
	TotalItems  int64 `json:"total_items"`
	TotalPages  int   `json:"total_pages"`
	CurrentPage int   `json:"current_page"`
	PageSize    int   `json:"page_size"`
}

// Response defines the structure for a paginated list of any type.
type Response[T any] struct {
	Data []T  `json:"data"`
	Meta Meta `json:"meta"`
}

// Params is a requested page. Use Normalize before querying.
type Params struct {
	Page  int
	Limit int
}

// Normalize clamps page to >= 1 and limit to [1, MaxLimit].
func (p Params) Normalize() Params {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	return p
}

// Offset returns the number of rows to skip.
func (p Params) Offset() int {
	return (p.Page - 1) * p.Limit
}

// New creates a new Response.
func New[T any](data []T, totalItems int64, page, limit int) Response[T] {
	if limit <= 0 {
		limit = 1
	}
	if data == nil {
		data = []T{}
	}
	return Response[T]{
		Data: data,
		Meta: Meta{
			TotalItems:  totalItems,
			TotalPages:  (int(totalItems) + limit - 1) / limit,
			CurrentPage: page,
			PageSize:    limit,
		},
	}
}

// Paginate executes a paginated query and returns the results. The query may
// carry filters and ordering; ordering is ignored for the count.
func Paginate[T any](db *gorm.DB, params Params) (*Response[T], error) {
	params = params.Normalize()
	db = db.Session(&gorm.Session{})

	var totalItems int64
	if err := db.Model(new(T)).Count(&totalItems).Error; err != nil {
		return nil, err
	}

	results := []T{}
	if err := db.Offset(params.Offset()).Limit(params.Limit).Find(&results).Error; err != nil {
		return nil, err
	}

	response := New(results, totalItems, params.Page, params.Limit)
	return &response, nil
}
