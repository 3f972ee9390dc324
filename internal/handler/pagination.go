package handler

import (
	"net/http"
	"strconv"
)

const (
	DefaultLimit = 50
	MaxLimit     = 200
)

type PaginationParams struct {
	Page  int
	Limit int
}

func ParsePagination(r *http.Request) PaginationParams {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	if page < 1 {
		page = 1
	}

	if limit <= 0 || limit > MaxLimit {
		limit = DefaultLimit
	}

	return PaginationParams{
		Page:  page,
		Limit: limit,
	}
}
