package utils

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Page struct {
	Number int
	Size   int
}

func (p Page) Skip() int64 { return int64(p.Size * (p.Number - 1)) }

func (p Page) Limit() int64 { return int64(p.Size) }

// Pages returns the page count for total records.
func (p Page) Pages(total int64) int {
	if p.Size <= 0 {
		return 0
	}
	return int(math.Ceil(float64(total) / float64(p.Size)))
}

// ParsePage reads pageNumber (or page) and pageSize from the query string.
func ParsePage(r *http.Request, defaultSize int) Page {
	q := r.URL.Query()

	number, _ := strconv.Atoi(q.Get("pageNumber"))
	if number < 1 {
		number, _ = strconv.Atoi(q.Get("page"))
	}
	if number < 1 {
		number = 1
	}

	size, _ := strconv.Atoi(q.Get("pageSize"))
	if size < 1 || size > 100 {
		size = defaultSize
	}
	return Page{Number: number, Size: size}
}

// Pagination is the X-Pagination header payload.
type Pagination struct {
	Page         int   `json:"Page"`
	PageSize     int   `json:"PageSize"`
	TotalRecords int64 `json:"TotalRecords"`
	TotalPages   int   `json:"TotalPages"`
}

func SetPaginationHeader(w http.ResponseWriter, p Page, total int64) {
	data, err := json.Marshal(Pagination{
		Page:         p.Number,
		PageSize:     p.Size,
		TotalRecords: total,
		TotalPages:   p.Pages(total),
	})
	if err != nil {
		return
	}
	w.Header().Set("X-Pagination", string(data))
}

// Paged is the inline {data, page, pages} listing shape.
type Paged[T any] struct {
	Data  []T `json:"data"`
	Page  int `json:"page"`
	Pages int `json:"pages"`
}

// ParseObjectID reads a hex ObjectID path value. Malformed ids are reported
// as notFound, since no document can carry them.
func ParseObjectID(raw, notFound string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.NilObjectID, NotFound(notFound)
	}
	return id, nil
}
