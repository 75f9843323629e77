package pkg

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/simp-lee/innkeeper/internal/docstore"
	"github.com/simp-lee/innkeeper/internal/domain"
)

// QueryLimits caps the caller-controlled parts of a read. Zero disables a cap.
type QueryLimits struct {
	MaxLimit int
	MaxDepth int
}

// reservedParams lists query parameter names that shape a read rather than filter it.
var reservedParams = map[string]bool{
	"page":        true,
	"limit":       true,
	"sortBy":      true,
	"select":      true,
	"populate":    true,
	"depth":       true,
	"withDeleted": true,
	"force":       true,
}

// ParseQuery extracts the filter and query options from query params.
// Malformed numbers fall back to their defaults; populate accepts either a
// comma-separated list of paths or a JSON array of {"path","fields"}
// objects. Every other non-empty parameter becomes a filter entry, repeated
// parameters match any of their values.
func ParseQuery(c *gin.Context, limits QueryLimits) (docstore.Filter, domain.QueryOptions, error) {
	q := c.Request.URL.Query()

	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	depth, _ := strconv.Atoi(q.Get("depth"))

	opts := domain.QueryOptions{
		SortBy:      strings.TrimSpace(q.Get("sortBy")),
		Select:      strings.TrimSpace(q.Get("select")),
		WithDeleted: flag(q.Get("withDeleted")),
		Force:       flag(q.Get("force")),
	}
	opts.Page, opts.Limit = docstore.PageBounds(page, limit)
	if limits.MaxLimit > 0 && opts.Limit > limits.MaxLimit {
		opts.Limit = limits.MaxLimit
	}
	if depth < 0 {
		depth = 0
	}
	if limits.MaxDepth > 0 && depth > limits.MaxDepth {
		depth = limits.MaxDepth
	}
	opts.Depth = depth

	populate, err := parsePopulate(q.Get("populate"))
	if err != nil {
		return nil, domain.QueryOptions{}, err
	}
	opts.Populate = populate

	filter := make(docstore.Filter)
	for key, values := range q {
		if reservedParams[key] {
			continue
		}
		var kept []string
		for _, v := range values {
			if v != "" {
				kept = append(kept, v)
			}
		}
		switch len(kept) {
		case 0:
		case 1:
			filter[key] = kept[0]
		default:
			filter[key] = kept
		}
	}
	return filter, opts, nil
}

func parsePopulate(raw string) ([]domain.PopulateOption, error) {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "[") {
		return docstore.ParsePopulate(raw), nil
	}
	var out []domain.PopulateOption
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, domain.NewAppError(domain.CodeValidation, "invalid populate", err)
	}
	return out, nil
}

// flag reports whether a boolean query parameter is set.
func flag(v string) bool {
	b, _ := strconv.ParseBool(strings.TrimSpace(v))
	return b
}
