package docstore

import (
	"slices"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"

	"github.com/simp-lee/innkeeper/internal/domain"
)

// RelationNode is one reference field to expand, with the expansion of the
// referenced collection below it.
type RelationNode struct {
	Field      string // JSON name of the reference field
	Path       string // gorm preload path, e.g. "Hotel.Owner"
	Collection string // referenced collection
	IsArray    bool
	Children   []RelationNode
}

// BuildExpansionPlan returns the reference fields of collection to expand
// up to depth levels. A collection already on the current path is expanded
// one level but not descended into. Targets missing from the catalog are
// skipped with a warning.
func (c *Catalog) BuildExpansionPlan(collection string, depth int) []RelationNode {
	return c.expand(collection, depth, "", nil)
}

// expand receives visited by value: each branch extends its own copy.
func (c *Catalog) expand(name string, depth int, prefix string, visited []string) []RelationNode {
	if depth <= 0 || slices.Contains(visited, name) {
		return nil
	}
	col, ok := c.Lookup(name)
	if !ok {
		return nil
	}
	onPath := append(slices.Clone(visited), name)

	var nodes []RelationNode
	for _, f := range col.fields {
		if !f.IsReference() {
			continue
		}
		if _, ok := c.Lookup(f.Target); !ok {
			c.logger.Warn("unresolved reference",
				"collection", name,
				"field", f.JSONName,
				"target", f.Target,
			)
			continue
		}
		path := joinPath(prefix, f.Name)
		nodes = append(nodes, RelationNode{
			Field:      f.JSONName,
			Path:       path,
			Collection: f.Target,
			IsArray:    f.IsArray,
			Children:   c.expand(f.Target, depth-1, path, onPath),
		})
	}
	return nodes
}

// PreloadPaths flattens a plan into preload paths, parents first.
func PreloadPaths(plan []RelationNode) []string {
	var paths []string
	var walk func([]RelationNode)
	walk = func(nodes []RelationNode) {
		for _, n := range nodes {
			paths = append(paths, n.Path)
			walk(n.Children)
		}
	}
	walk(plan)
	return paths
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

// preload is one gorm preload with its column restriction.
type preload struct {
	path    string
	field   string // dotted JSON path of the expanded field
	target  *Collection
	rel     *schema.Relationship
	columns []string
}

func (p preload) apply(db *gorm.DB) *gorm.DB {
	return db.Preload(p.path, func(tx *gorm.DB) *gorm.DB {
		tx = tx.Scopes(p.target.Visible(Live))
		if len(p.columns) > 0 {
			tx = tx.Select(p.columns)
		}
		return tx
	})
}

// planPreloads turns an expansion plan of root into preloads.
func (c *Catalog) planPreloads(root *Collection, plan []RelationNode) []preload {
	var out []preload
	var walk func(owner *Collection, nodes []RelationNode, prefix string)
	walk = func(owner *Collection, nodes []RelationNode, prefix string) {
		for _, n := range nodes {
			target, ok := c.Lookup(n.Collection)
			if !ok {
				continue
			}
			f, _ := owner.Field(n.Field)
			field := joinPath(prefix, n.Field)
			out = append(out, preload{path: n.Path, field: field, target: target, rel: f.relation})
			walk(target, n.Children, field)
		}
	}
	walk(root, plan, "")
	return out
}

// populatePreloads resolves explicit populate options against col. Each
// option path is a dotted list of reference fields; intermediate segments
// are loaded in full, the last one is restricted to the requested fields.
func (c *Catalog) populatePreloads(col *Collection, opts []domain.PopulateOption) ([]preload, error) {
	var out []preload
	index := make(map[string]int)
	for _, opt := range opts {
		segments := strings.Split(strings.TrimSpace(opt.Path), ".")
		owner := col
		goPath, jsonPath := "", ""
		for i, seg := range segments {
			seg = strings.TrimSpace(seg)
			f, ok := owner.Field(seg)
			if !ok || !f.IsReference() {
				return nil, domain.NewAppError(domain.CodeValidation, "cannot populate "+opt.Path+" on "+col.name, nil)
			}
			target, ok := c.Lookup(f.Target)
			if !ok {
				c.logger.Warn("unresolved reference",
					"collection", owner.name,
					"field", f.JSONName,
					"target", f.Target,
				)
				break
			}
			goPath = joinPath(goPath, f.Name)
			jsonPath = joinPath(jsonPath, f.JSONName)
			p := preload{path: goPath, field: jsonPath, target: target, rel: f.relation}
			if i == len(segments)-1 {
				for _, name := range opt.Fields {
					p.columns = append(p.columns, target.columns(strings.TrimSpace(name))...)
				}
			}
			if at, seen := index[goPath]; seen {
				if i == len(segments)-1 {
					out[at].columns = p.columns
				}
			} else {
				index[goPath] = len(out)
				out = append(out, p)
			}
			owner = target
		}
	}
	return linkColumns(out), nil
}

// linkColumns adds the key columns gorm needs to stitch restricted
// preloads back to their parents and children.
func linkColumns(preloads []preload) []preload {
	for i := range preloads {
		p := &preloads[i]
		if len(p.columns) == 0 {
			continue
		}
		need := []string{p.target.primaryColumn()}
		need = append(need, ownedKeys(p.rel, true)...)
		for _, child := range preloads {
			if strings.HasPrefix(child.path, p.path+".") && !strings.Contains(child.path[len(p.path)+1:], ".") {
				need = append(need, ownedKeys(child.rel, false)...)
			}
		}
		for _, col := range need {
			if !slices.Contains(p.columns, col) {
				p.columns = append(p.columns, col)
			}
		}
	}
	return preloads
}

// ownedKeys returns the foreign key columns of rel stored on the related
// side (target=true) or on the owning side (target=false).
func ownedKeys(rel *schema.Relationship, target bool) []string {
	if rel == nil || rel.Type == schema.Many2Many {
		return nil
	}
	var cols []string
	for _, ref := range rel.References {
		if ref.ForeignKey == nil || ref.ForeignKey.DBName == "" {
			continue
		}
		// OwnPrimaryKey: the key lives on the related table (has one/many).
		if ref.OwnPrimaryKey == target {
			cols = append(cols, ref.ForeignKey.DBName)
		}
	}
	return cols
}
