package docstore

import (
	"fmt"
	"regexp"
	"slices"
	"sort"
	"strconv"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"

	"github.com/simp-lee/innkeeper/internal/domain"
)

// Filter selects documents by field. Keys are JSON paths or columns;
// a "__like" suffix matches substrings, a nil value matches NULL and a
// slice value matches any of its elements.
type Filter map[string]any

const (
	likeSuffix = "__like"
	likeEscape = `\`
)

// likeEscaper makes LIKE wildcards in a substring match literal.
var likeEscaper = strings.NewReplacer(likeEscape, likeEscape+likeEscape, "%", likeEscape+"%", "_", likeEscape+"_")

// validFieldName matches dotted JSON paths and column names.
var validFieldName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_.]*$`)

// ByID is a filter matching a single primary key.
func ByID(id any) Filter {
	return Filter{"id": id}
}

// where validates filter against the collection and returns a scope that
// applies it. Unknown fields are rejected so a typo never widens a delete.
func (c *Collection) where(filter Filter) (func(*gorm.DB) *gorm.DB, error) {
	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	exprs := make([]clause.Expression, 0, len(keys))
	for _, key := range keys {
		value := filter[key]
		name, like := strings.CutSuffix(key, likeSuffix)
		if !validFieldName.MatchString(name) {
			return nil, domain.NewAppError(domain.CodeValidation, "invalid filter field "+key, nil)
		}
		column := c.filterColumn(name)
		if column == "" {
			return nil, domain.NewAppError(domain.CodeValidation, fmt.Sprintf("unknown filter field %s on %s", key, c.name), nil)
		}
		col := clause.Column{Table: clause.CurrentTable, Name: column}
		switch {
		case like:
			exprs = append(exprs, clause.Expr{
				SQL:  "? LIKE ? ESCAPE ?",
				Vars: []any{col, "%" + likeEscaper.Replace(fmt.Sprint(value)) + "%", likeEscape},
			})
		case isList(value):
			values := toValues(value)
			for i := range values {
				values[i] = c.coerce(column, values[i])
			}
			exprs = append(exprs, clause.IN{Column: col, Values: values})
		default:
			exprs = append(exprs, clause.Eq{Column: col, Value: c.coerce(column, value)})
		}
	}

	return func(db *gorm.DB) *gorm.DB {
		for _, e := range exprs {
			db = db.Where(e)
		}
		return db
	}, nil
}

func (c *Collection) filterColumn(name string) string {
	if name == "id" {
		return c.primaryColumn()
	}
	f, ok := c.Field(name)
	if !ok || f.Column == "" {
		return ""
	}
	return f.Column
}

// coerce converts a string value to the type of column, so values taken
// from a query string compare correctly on strict databases.
func (c *Collection) coerce(column string, v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	f := c.schema.LookUpField(column)
	if f == nil {
		return v
	}
	switch f.DataType {
	case schema.Bool:
		if b, err := strconv.ParseBool(s); err == nil {
			return b
		}
	case schema.Int:
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
	case schema.Uint:
		if n, err := strconv.ParseUint(s, 10, 64); err == nil {
			return n
		}
	case schema.Float:
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			return n
		}
	}
	return v
}

func isList(v any) bool {
	switch v.(type) {
	case []any, []string, []int, []uint, []int64:
		return true
	}
	return false
}

func toValues(v any) []any {
	switch list := v.(type) {
	case []any:
		return list
	case []string:
		return toAny(list)
	case []int:
		return toAny(list)
	case []uint:
		return toAny(list)
	case []int64:
		return toAny(list)
	}
	return []any{v}
}

func toAny[E any](list []E) []any {
	out := make([]any, len(list))
	for i, v := range list {
		out[i] = v
	}
	return out
}

// orderBy parses "field:dir[,field:dir]". "desc" sorts descending, any
// other direction ascending; unknown fields are ignored. Without usable
// criteria the creation timestamp is used. The primary key is appended as
// a tiebreaker so pages are stable.
func (c *Collection) orderBy(sortBy string) clause.OrderBy {
	var cols []clause.OrderByColumn
	var seen []string
	for _, part := range strings.Split(sortBy, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		field, dir, _ := strings.Cut(part, ":")
		column := c.filterColumn(strings.TrimSpace(field))
		if column == "" || slices.Contains(seen, column) {
			continue
		}
		seen = append(seen, column)
		cols = append(cols, clause.OrderByColumn{
			Column: clause.Column{Table: clause.CurrentTable, Name: column},
			Desc:   strings.EqualFold(strings.TrimSpace(dir), "desc"),
		})
	}
	if len(cols) == 0 {
		if f := c.schema.LookUpField("created_at"); f != nil {
			seen = append(seen, f.DBName)
			cols = append(cols, clause.OrderByColumn{Column: clause.Column{Table: clause.CurrentTable, Name: f.DBName}})
		}
	}
	if pk := c.primaryColumn(); !slices.Contains(seen, pk) {
		cols = append(cols, clause.OrderByColumn{Column: clause.Column{Table: clause.CurrentTable, Name: pk}})
	}
	return clause.OrderBy{Columns: cols}
}

// selection is the parsed select option: the columns to fetch and the top
// level output keys to keep.
type selection struct {
	columns []string
	keys    []string
}

func (s selection) empty() bool { return len(s.keys) == 0 }

// selectFields parses a comma-separated allow-list. The primary key and the
// foreign keys needed by preloads are always fetched.
func (c *Collection) selectFields(sel string, preloads []preload) selection {
	var s selection
	for _, name := range strings.Split(sel, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		cols := c.columns(name)
		if len(cols) == 0 {
			continue
		}
		for _, col := range cols {
			if !slices.Contains(s.columns, col) {
				s.columns = append(s.columns, col)
			}
		}
		key, _, _ := strings.Cut(name, ".")
		if f, ok := c.Field(name); ok {
			key, _, _ = strings.Cut(f.JSONName, ".")
		}
		if !slices.Contains(s.keys, key) {
			s.keys = append(s.keys, key)
		}
	}
	if s.empty() {
		return selection{}
	}

	need := []string{c.primaryColumn()}
	for _, p := range preloads {
		if strings.Contains(p.field, ".") {
			continue
		}
		need = append(need, ownedKeys(p.rel, false)...)
		if !slices.Contains(s.keys, p.field) {
			s.keys = append(s.keys, p.field)
		}
	}
	for _, col := range need {
		if !slices.Contains(s.columns, col) {
			s.columns = append(s.columns, col)
		}
	}
	if f, ok := c.Field(c.primaryColumn()); ok && !slices.Contains(s.keys, f.JSONName) {
		s.keys = append(s.keys, f.JSONName)
	}
	return s
}

// ParsePopulate splits a comma-separated populate string into options.
func ParsePopulate(s string) []domain.PopulateOption {
	var out []domain.PopulateOption
	for _, path := range strings.Split(s, ",") {
		if path = strings.TrimSpace(path); path != "" {
			out = append(out, domain.PopulateOption{Path: path})
		}
	}
	return out
}
