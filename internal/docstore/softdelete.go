package docstore

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"

	"github.com/simp-lee/innkeeper/internal/domain"
)

// Visibility selects which documents a read sees.
type Visibility int

const (
	// Live hides soft-deleted documents.
	Live Visibility = iota
	// All includes soft-deleted documents.
	All
	// DeletedOnly returns soft-deleted documents only.
	DeletedOnly
)

func (v Visibility) String() string {
	switch v {
	case Live:
		return "live"
	case All:
		return "all"
	case DeletedOnly:
		return "deleted"
	}
	return fmt.Sprintf("Visibility(%d)", int(v))
}

// VisibilityOf maps the withDeleted query option to a visibility.
func VisibilityOf(opts domain.QueryOptions) Visibility {
	if opts.WithDeleted {
		return All
	}
	return Live
}

// Visible returns a scope restricting reads to v.
func (c *Collection) Visible(v Visibility) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if !c.softDelete {
			if v == DeletedOnly {
				return db.Where("1 = 0")
			}
			return db
		}
		col := clause.Column{Table: clause.CurrentTable, Name: c.deletedAt}
		switch v {
		case Live:
			return db.Where(clause.Eq{Column: col, Value: nil})
		case DeletedOnly:
			return db.Where(clause.Neq{Column: col, Value: nil})
		}
		return db
	}
}

// DetachError reports a force delete whose reference detach phase failed.
// The document itself was not removed; retrying is safe because detaching
// an already detached reference is a no-op.
type DetachError struct {
	Collection string
	ID         any
	Detached   []ReferenceRule
	Pending    []ReferenceRule
	Err        error
}

func (e *DetachError) Error() string {
	pending := make([]string, len(e.Pending))
	for i, r := range e.Pending {
		pending[i] = r.String()
	}
	return fmt.Sprintf("detach references to %s %v: %d detached, pending [%s]: %v",
		e.Collection, e.ID, len(e.Detached), strings.Join(pending, ", "), e.Err)
}

func (e *DetachError) Unwrap() error {
	return e.Err
}

// documentID returns the primary key value of doc, a pointer to a model.
func (c *Collection) documentID(ctx context.Context, doc any) (any, bool) {
	pk := c.schema.PrioritizedPrimaryField
	if pk == nil {
		return nil, false
	}
	v, zero := pk.ValueOf(ctx, reflect.Indirect(reflect.ValueOf(doc)))
	return v, !zero
}

// IsDeleted reports whether doc carries the deletion marker.
func (c *Collection) IsDeleted(ctx context.Context, doc any) bool {
	if c.marker == nil {
		return false
	}
	_, zero := c.marker.ValueOf(ctx, reflect.Indirect(reflect.ValueOf(doc)))
	return !zero
}

// markDeleted persists the deletion marker of doc and mirrors it in memory.
// A nil at clears the marker.
func (c *Collection) markDeleted(ctx context.Context, db *gorm.DB, doc any, at *time.Time) error {
	id, ok := c.documentID(ctx, doc)
	if !ok {
		return domain.NewAppError(domain.CodeValidation, "document has no primary key", nil)
	}
	var value any
	if at != nil {
		value = *at
	}
	err := db.WithContext(ctx).
		Model(c.newModel()).
		Where(clause.Eq{Column: clause.Column{Table: clause.CurrentTable, Name: c.primaryColumn()}, Value: id}).
		UpdateColumn(c.deletedAt, value).Error
	if err != nil {
		return err
	}
	return c.setMarker(ctx, doc, at)
}

func (c *Collection) setMarker(ctx context.Context, doc any, at *time.Time) error {
	rv := reflect.Indirect(reflect.ValueOf(doc))
	fv := c.marker.ReflectValueOf(ctx, rv)
	if fv.Kind() == reflect.Pointer && fv.Type().Elem() == timeType {
		if at == nil {
			fv.Set(reflect.Zero(fv.Type()))
		} else {
			fv.Set(reflect.ValueOf(at))
		}
		return nil
	}
	if at == nil {
		return c.marker.Set(ctx, rv, nil)
	}
	return c.marker.Set(ctx, rv, *at)
}

// boundRules resolves the reference rules of c.
func (c *Collection) boundRules() ([]boundRule, error) {
	rules := make([]boundRule, 0, len(c.rules))
	for _, r := range c.rules {
		b, err := c.catalog.bindRule(c, r)
		if err != nil {
			return nil, err
		}
		rules = append(rules, b)
	}
	return rules, nil
}

// countReferences counts how many times rule references the document id.
func (c *Collection) countReferences(ctx context.Context, db *gorm.DB, rule boundRule, id any) (int64, error) {
	rel := rule.field.relation
	var n int64
	var err error
	switch rel.Type {
	case schema.Many2Many:
		err = db.WithContext(ctx).
			Table(rel.JoinTable.Table).
			Where(clause.Eq{Column: clause.Column{Name: joinColumn(rel, false)}, Value: id}).
			Count(&n).Error
	case schema.BelongsTo:
		err = db.WithContext(ctx).
			Model(rule.owner.newModel()).
			Where(clause.Eq{Column: clause.Column{Table: clause.CurrentTable, Name: foreignKey(rel)}, Value: id}).
			Count(&n).Error
	default:
		// has one / has many: the key sits on this document's own row.
		err = db.WithContext(ctx).
			Model(c.newModel()).
			Where(clause.Eq{Column: clause.Column{Table: clause.CurrentTable, Name: c.primaryColumn()}, Value: id}).
			Where(clause.Neq{Column: clause.Column{Table: clause.CurrentTable, Name: foreignKey(rel)}, Value: nil}).
			Count(&n).Error
	}
	return n, err
}

// detachRule removes every reference of rule to id: array references are
// pulled, scalar references are unset.
func (c *Collection) detachRule(ctx context.Context, db *gorm.DB, rule boundRule, id any) error {
	rel := rule.field.relation
	switch rel.Type {
	case schema.Many2Many:
		return db.WithContext(ctx).Exec("DELETE FROM ? WHERE ? = ?",
			clause.Table{Name: rel.JoinTable.Table},
			clause.Column{Name: joinColumn(rel, false)},
			id,
		).Error
	case schema.BelongsTo:
		fk := foreignKey(rel)
		return db.WithContext(ctx).
			Model(rule.owner.newModel()).
			Where(clause.Eq{Column: clause.Column{Table: clause.CurrentTable, Name: fk}, Value: id}).
			UpdateColumn(fk, nil).Error
	default:
		fk := foreignKey(rel)
		return db.WithContext(ctx).
			Model(c.newModel()).
			Where(clause.Eq{Column: clause.Column{Table: clause.CurrentTable, Name: c.primaryColumn()}, Value: id}).
			UpdateColumn(fk, nil).Error
	}
}

// isReferenced reports whether any rule currently references id.
func (c *Collection) isReferenced(ctx context.Context, db *gorm.DB, id any) (bool, error) {
	rules, err := c.boundRules()
	if err != nil {
		return false, err
	}
	for _, rule := range rules {
		n, err := c.countReferences(ctx, db, rule, id)
		if err != nil {
			return false, err
		}
		if n > 0 {
			return true, nil
		}
	}
	return false, nil
}

// detachAll runs the first phase of a force delete. On failure it returns a
// *DetachError listing the rules already detached and those still pending.
func (c *Collection) detachAll(ctx context.Context, db *gorm.DB, id any) error {
	rules, err := c.boundRules()
	if err != nil {
		return err
	}
	var detached []ReferenceRule
	fail := func(i int, err error) error {
		pending := make([]ReferenceRule, 0, len(rules)-i)
		for _, r := range rules[i:] {
			pending = append(pending, r.ReferenceRule)
		}
		return &DetachError{Collection: c.name, ID: id, Detached: detached, Pending: pending, Err: err}
	}
	for i, rule := range rules {
		n, err := c.countReferences(ctx, db, rule, id)
		if err != nil {
			return fail(i, err)
		}
		if n == 0 {
			continue
		}
		if err := c.detachRule(ctx, db, rule, id); err != nil {
			return fail(i, err)
		}
		detached = append(detached, rule.ReferenceRule)
	}
	return nil
}

// remove runs the second phase of a force delete: the document's own join
// rows and then the document.
func (c *Collection) remove(ctx context.Context, db *gorm.DB, id any) error {
	for _, f := range c.fields {
		if f.relation == nil || f.relation.Type != schema.Many2Many {
			continue
		}
		err := db.WithContext(ctx).Exec("DELETE FROM ? WHERE ? = ?",
			clause.Table{Name: f.relation.JoinTable.Table},
			clause.Column{Name: joinColumn(f.relation, true)},
			id,
		).Error
		if err != nil {
			return err
		}
	}
	return db.WithContext(ctx).
		Where(clause.Eq{Column: clause.Column{Table: clause.CurrentTable, Name: c.primaryColumn()}, Value: id}).
		Delete(c.newModel()).Error
}

// deleteDocument soft-deletes doc, or removes it when force is set or the
// collection has no soft delete.
func (c *Collection) deleteDocument(ctx context.Context, db *gorm.DB, doc any, force bool) error {
	if c.softDelete && !force {
		now := time.Now()
		return c.markDeleted(ctx, db, doc, &now)
	}
	id, ok := c.documentID(ctx, doc)
	if !ok {
		return domain.NewAppError(domain.CodeValidation, "document has no primary key", nil)
	}
	if err := c.detachAll(ctx, db, id); err != nil {
		return err
	}
	return c.remove(ctx, db, id)
}

// foreignKey returns the key column of a belongs-to or has-one/many relation.
func foreignKey(rel *schema.Relationship) string {
	for _, ref := range rel.References {
		if ref.ForeignKey != nil && ref.ForeignKey.DBName != "" {
			return ref.ForeignKey.DBName
		}
	}
	return ""
}

// joinColumn returns the join table column pointing at the owner of rel
// (own=true) or at the related collection (own=false).
func joinColumn(rel *schema.Relationship, own bool) string {
	for _, ref := range rel.References {
		if ref.OwnPrimaryKey == own && ref.ForeignKey != nil {
			return ref.ForeignKey.DBName
		}
	}
	return ""
}

// Delete deletes every document matching filter, soft-deleted ones
// included. Without force a document only gets the deletion marker; with
// force its references are detached and it is removed. The affected
// documents are returned; on error those processed before the failure.
func (r *Repository[T]) Delete(ctx context.Context, filter Filter, opts domain.QueryOptions) ([]T, error) {
	docs, err := r.find(ctx, filter, All, domain.QueryOptions{})
	if err != nil {
		return nil, err
	}
	for i := range docs {
		if err := r.col.deleteDocument(ctx, r.db, &docs[i], opts.Force); err != nil {
			return docs[:i], mapError(err)
		}
	}
	return docs, nil
}

// DeleteOne deletes the first document matching filter.
func (r *Repository[T]) DeleteOne(ctx context.Context, filter Filter, opts domain.QueryOptions) (*T, error) {
	q, err := r.query(ctx, filter, All, domain.QueryOptions{})
	if err != nil {
		return nil, err
	}
	var doc T
	if err := q.Clauses(r.col.orderBy("")).Take(&doc).Error; err != nil {
		return nil, mapError(err)
	}
	if err := r.col.deleteDocument(ctx, r.db, &doc, opts.Force); err != nil {
		return nil, mapError(err)
	}
	return &doc, nil
}

// DeleteByID deletes the document id.
func (r *Repository[T]) DeleteByID(ctx context.Context, id any, opts domain.QueryOptions) (*T, error) {
	return r.DeleteOne(ctx, ByID(id), opts)
}

// Restore clears the deletion marker of every soft-deleted document
// matching filter. It fails with NotFound when nothing matches and with
// AlreadyActive when every match is live.
func (r *Repository[T]) Restore(ctx context.Context, filter Filter) ([]T, error) {
	if !r.col.softDelete {
		return nil, domain.NewAppError(domain.CodeValidation, r.col.name+" does not support restore", nil)
	}
	docs, err := r.find(ctx, filter, All, domain.QueryOptions{})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, domain.ErrNotFound
	}
	restored := make([]T, 0, len(docs))
	for i := range docs {
		if !r.col.IsDeleted(ctx, &docs[i]) {
			continue
		}
		if err := r.col.markDeleted(ctx, r.db, &docs[i], nil); err != nil {
			return restored, mapError(err)
		}
		restored = append(restored, docs[i])
	}
	if len(restored) == 0 {
		return nil, domain.ErrAlreadyActive
	}
	return restored, nil
}

// RestoreByID restores the document id.
func (r *Repository[T]) RestoreByID(ctx context.Context, id any) (*T, error) {
	docs, err := r.Restore(ctx, ByID(id))
	if err != nil {
		return nil, err
	}
	return &docs[0], nil
}
