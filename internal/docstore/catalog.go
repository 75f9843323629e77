// Package docstore implements the document lifecycle shared by every entity:
// reference expansion, soft deletion with reference integrity, paginated
// listing and private field sanitization.
package docstore

import (
	"fmt"
	"log/slog"
	"reflect"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"

	"github.com/simp-lee/innkeeper/internal/domain"
)

// DefaultDeletedAtField is the column that carries the deletion marker.
const DefaultDeletedAtField = "deleted_at"

// RevisionField is the internal revision counter stripped from every output.
const RevisionField = "revision"

var timeType = reflect.TypeOf(time.Time{})

// Field describes one persisted attribute of a collection.
type Field struct {
	Name     string // Go struct field name
	JSONName string // dotted JSON path, e.g. "guest.access_code"
	Column   string // empty for reference fields
	Target   string // referenced collection, empty for plain fields
	IsArray  bool
	Private  bool
	Optional bool

	relation *schema.Relationship
}

// IsReference reports whether the field points at another collection.
func (f Field) IsReference() bool {
	return f.Target != ""
}

// ReferenceRule names a field of another collection that may hold
// references to documents of the owning collection.
type ReferenceRule struct {
	Collection string
	Field      string
}

func (r ReferenceRule) String() string {
	return r.Collection + "." + r.Field
}

// Option configures a collection at registration.
type Option func(*Collection)

// WithDeletedAtField overrides the deletion marker column.
func WithDeletedAtField(column string) Option {
	return func(c *Collection) {
		c.deletedAt = column
	}
}

// WithoutSoftDelete makes every delete physical.
func WithoutSoftDelete() Option {
	return func(c *Collection) {
		c.softDelete = false
	}
}

// WithReferenceRules declares where documents of the collection are referenced.
func WithReferenceRules(rules ...ReferenceRule) Option {
	return func(c *Collection) {
		c.rules = append(c.rules, rules...)
	}
}

// WithTransform sets a function that rewrites the JSON projection of a
// document before private fields are removed.
func WithTransform(fn func(doc map[string]any)) Option {
	return func(c *Collection) {
		c.transform = fn
	}
}

// WithPrivateFields marks additional dotted JSON paths as private.
func WithPrivateFields(paths ...string) Option {
	return func(c *Collection) {
		for _, p := range paths {
			if p != "" {
				c.private = append(c.private, strings.Split(p, "."))
			}
		}
	}
}

// Collection is the registered schema of one entity type.
type Collection struct {
	name       string
	schema     *schema.Schema
	fields     []Field
	deletedAt  string
	softDelete bool
	rules      []ReferenceRule
	transform  func(map[string]any)
	private    [][]string
	catalog    *Catalog

	marker   *schema.Field
	revision *schema.Field
}

// Name returns the collection name, which is also its table name.
func (c *Collection) Name() string { return c.name }

// SoftDelete reports whether deletes without force only set the marker.
func (c *Collection) SoftDelete() bool { return c.softDelete }

// DeletedAtField returns the marker column.
func (c *Collection) DeletedAtField() string { return c.deletedAt }

// Rules returns the declared reference rules.
func (c *Collection) Rules() []ReferenceRule { return slices.Clone(c.rules) }

// Fields returns the ordered field descriptors.
func (c *Collection) Fields() []Field { return slices.Clone(c.fields) }

// References returns the reference fields in declaration order.
func (c *Collection) References() []Field {
	var refs []Field
	for _, f := range c.fields {
		if f.IsReference() {
			refs = append(refs, f)
		}
	}
	return refs
}

// Field looks a field up by JSON path, Go name or column.
func (c *Collection) Field(name string) (Field, bool) {
	for _, f := range c.fields {
		if f.JSONName == name || f.Name == name || (f.Column != "" && f.Column == name) {
			return f, true
		}
	}
	return Field{}, false
}

// PrivatePaths returns the dotted paths removed by Sanitize.
func (c *Collection) PrivatePaths() []string {
	out := make([]string, 0, len(c.private))
	for _, p := range c.private {
		out = append(out, strings.Join(p, "."))
	}
	sort.Strings(out)
	return out
}

// columns resolves a name to the columns it covers. A JSON group such as
// "guest" covers every embedded column below it.
func (c *Collection) columns(name string) []string {
	if f, ok := c.Field(name); ok {
		if f.Column == "" {
			return nil
		}
		return []string{f.Column}
	}
	var cols []string
	prefix := name + "."
	for _, f := range c.fields {
		if f.Column != "" && strings.HasPrefix(f.JSONName, prefix) {
			cols = append(cols, f.Column)
		}
	}
	return cols
}

// updateColumns resolves the writable columns of an update. The revision
// column is always written; protected and unknown fields are rejected.
func (c *Collection) updateColumns(fields []string) ([]string, error) {
	protected := []string{c.primaryColumn(), "created_at", "updated_at"}
	if c.softDelete {
		protected = append(protected, c.deletedAt)
	}
	var cols []string
	for _, name := range fields {
		found := c.columns(name)
		if len(found) == 0 {
			return nil, domain.NewAppError(domain.CodeValidation, fmt.Sprintf("unknown field %s on %s", name, c.name), nil)
		}
		for _, col := range found {
			if slices.Contains(protected, col) {
				return nil, domain.NewAppError(domain.CodeValidation, fmt.Sprintf("field %s on %s is read-only", name, c.name), nil)
			}
			if !slices.Contains(cols, col) {
				cols = append(cols, col)
			}
		}
	}
	if c.revision != nil && !slices.Contains(cols, c.revision.DBName) {
		cols = append(cols, c.revision.DBName)
	}
	return cols, nil
}

func (c *Collection) primaryColumn() string {
	if pk := c.schema.PrioritizedPrimaryField; pk != nil {
		return pk.DBName
	}
	return "id"
}

func (c *Collection) newModel() any {
	return reflect.New(c.schema.ModelType).Interface()
}

// Catalog is the registry of collections, built once at startup.
type Catalog struct {
	mu          sync.RWMutex
	collections map[string]*Collection
	logger      *slog.Logger
}

// NewCatalog creates an empty catalog. Unresolved reference warnings are
// written to logger, or to slog.Default() when logger is nil.
func NewCatalog(logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Catalog{
		collections: make(map[string]*Collection),
		logger:      logger,
	}
}

// Register parses model with gorm and adds it to the catalog under its
// table name.
func (c *Catalog) Register(db *gorm.DB, model any, opts ...Option) (*Collection, error) {
	stmt := &gorm.Statement{DB: db}
	if err := stmt.Parse(model); err != nil {
		return nil, fmt.Errorf("docstore: parse %T: %w", model, err)
	}
	sch := stmt.Schema

	col := &Collection{
		name:       sch.Table,
		schema:     sch,
		deletedAt:  DefaultDeletedAtField,
		softDelete: true,
		catalog:    c,
	}
	for _, opt := range opts {
		opt(col)
	}

	byBind := make(map[string]*schema.Field, len(sch.Fields))
	for _, f := range sch.Fields {
		byBind[strings.Join(f.BindNames, ".")] = f
	}
	col.collectFields(sch.ModelType, nil, nil, byBind)

	if col.softDelete {
		col.marker = sch.LookUpField(col.deletedAt)
		if col.marker == nil {
			return nil, fmt.Errorf("docstore: %s has no deletion marker column %q", col.name, col.deletedAt)
		}
		if f, ok := col.Field(col.deletedAt); ok && !f.Private {
			col.private = append(col.private, strings.Split(f.JSONName, "."))
		}
	}
	col.revision = sch.LookUpField(RevisionField)

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, dup := c.collections[col.name]; dup {
		return nil, fmt.Errorf("docstore: collection %q already registered", col.name)
	}
	c.collections[col.name] = col
	return col, nil
}

// Lookup returns the named collection.
func (c *Catalog) Lookup(name string) (*Collection, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	col, ok := c.collections[name]
	return col, ok
}

// Names returns the registered collection names in sorted order.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.collections))
	for name := range c.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks that every reference rule names a registered collection
// and a reference field that targets the rule owner.
func (c *Catalog) Validate() error {
	for _, name := range c.Names() {
		col, _ := c.Lookup(name)
		for _, rule := range col.rules {
			if _, err := c.bindRule(col, rule); err != nil {
				return err
			}
		}
	}
	return nil
}

// boundRule is a reference rule resolved against the catalog.
type boundRule struct {
	ReferenceRule
	owner *Collection
	field Field
}

func (c *Catalog) bindRule(target *Collection, rule ReferenceRule) (boundRule, error) {
	owner, ok := c.Lookup(rule.Collection)
	if !ok {
		return boundRule{}, fmt.Errorf("docstore: rule %s on %s: collection not registered", rule, target.name)
	}
	f, ok := owner.Field(rule.Field)
	if !ok || !f.IsReference() {
		return boundRule{}, fmt.Errorf("docstore: rule %s on %s: not a reference field", rule, target.name)
	}
	if f.Target != target.name {
		return boundRule{}, fmt.Errorf("docstore: rule %s on %s: field references %s", rule, target.name, f.Target)
	}
	return boundRule{ReferenceRule: rule, owner: owner, field: f}, nil
}

// collectFields walks the model struct in declaration order. bind tracks Go
// field names the way gorm joins them, path tracks JSON names.
func (c *Collection) collectFields(t reflect.Type, bind, path []string, byBind map[string]*schema.Field) {
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		name, omitempty, skip := jsonName(sf)
		if skip {
			continue
		}
		b := append(slices.Clone(bind), sf.Name)
		ft := indirect(sf.Type)

		if sf.Anonymous && name == "" && ft.Kind() == reflect.Struct {
			c.collectFields(ft, b, path, byBind)
			continue
		}
		if name == "" {
			name = sf.Name
		}
		p := append(slices.Clone(path), name)
		private := isPrivate(sf)
		if private {
			c.private = append(c.private, p)
		}

		if rel, ok := c.schema.Relationships.Relations[sf.Name]; ok && len(path) == 0 {
			c.fields = append(c.fields, Field{
				Name:     sf.Name,
				JSONName: name,
				Target:   rel.FieldSchema.Table,
				IsArray:  rel.Type == schema.HasMany || rel.Type == schema.Many2Many,
				Private:  private,
				Optional: true,
				relation: rel,
			})
			continue
		}

		gf, ok := byBind[strings.Join(b, ".")]
		if !ok && len(path) == 0 {
			gf, ok = c.schema.FieldsByName[sf.Name]
		}
		if ok && gf.DBName != "" {
			c.fields = append(c.fields, Field{
				Name:     sf.Name,
				JSONName: strings.Join(p, "."),
				Column:   gf.DBName,
				Private:  private,
				Optional: omitempty || sf.Type.Kind() == reflect.Pointer || !gf.NotNull,
			})
			// Serialized structs keep their own private tags.
			if elem := elemStruct(sf.Type); elem != nil && !private {
				c.private = append(c.private, privateTags(elem, p, 0)...)
			}
			continue
		}

		if ft.Kind() == reflect.Struct && ft != timeType {
			c.collectFields(ft, b, p, byBind)
		}
	}
}

func jsonName(sf reflect.StructField) (name string, omitempty, skip bool) {
	tag := sf.Tag.Get("json")
	if tag == "-" {
		return "", false, true
	}
	name, opts, _ := strings.Cut(tag, ",")
	return name, strings.Contains(opts, "omitempty"), false
}

func isPrivate(sf reflect.StructField) bool {
	for _, opt := range strings.Split(sf.Tag.Get("doc"), ",") {
		if strings.TrimSpace(opt) == "private" {
			return true
		}
	}
	return false
}

func indirect(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

// elemStruct returns the struct type stored in a column of type t, looking
// through pointers and slices.
func elemStruct(t reflect.Type) reflect.Type {
	t = indirect(t)
	if t.Kind() == reflect.Slice || t.Kind() == reflect.Array {
		t = indirect(t.Elem())
	}
	if t.Kind() == reflect.Struct && t != timeType {
		return t
	}
	return nil
}

func privateTags(t reflect.Type, path []string, depth int) [][]string {
	if depth > 8 {
		return nil
	}
	var out [][]string
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		name, _, skip := jsonName(sf)
		if skip {
			continue
		}
		if sf.Anonymous && name == "" {
			if elem := elemStruct(sf.Type); elem != nil {
				out = append(out, privateTags(elem, path, depth+1)...)
			}
			continue
		}
		if name == "" {
			name = sf.Name
		}
		p := append(slices.Clone(path), name)
		if isPrivate(sf) {
			out = append(out, p)
			continue
		}
		if elem := elemStruct(sf.Type); elem != nil {
			out = append(out, privateTags(elem, p, depth+1)...)
		}
	}
	return out
}
