package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ClareAI/astra-crm-service/internal/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// column qualifies name with the statement's own table, so tenant and id
// predicates stay unambiguous when a query joins other tables.
func column(name string) clause.Column {
	return clause.Column{Table: clause.CurrentTable, Name: name}
}

// TenantScope limits a query on a tenant-owned table to one customer.
func TenantScope(customerID string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(clause.Eq{Column: column("customer_id"), Value: customerID})
	}
}

// Paginate applies the offset and limit of p.
func Paginate(p domain.PageRequest) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Offset(p.Offset()).Limit(p.PerPage)
	}
}

// likePattern builds a case-insensitive substring pattern, escaping LIKE wildcards.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + strings.ToLower(r.Replace(s)) + "%"
}

// searchAny matches term as a case-insensitive substring of any of columns.
// It uses LOWER/LIKE instead of ILIKE so the same SQL runs on postgres and sqlite.
func searchAny(term string, columns ...string) clause.Expression {
	pattern := likePattern(term)
	exprs := make([]clause.Expression, 0, len(columns))
	for _, c := range columns {
		exprs = append(exprs, clause.Expr{SQL: "LOWER(" + c + ") LIKE ? ESCAPE '\\'", Vars: []interface{}{pattern}})
	}
	return clause.Or(exprs...)
}

// scopedStore holds the tenant-filtered primitives shared by every repository
// of a tenant-owned entity T. Every method takes the customer id; there is no
// unscoped variant.
type scopedStore[T any] struct {
	db     *gorm.DB
	entity string
}

func newScopedStore[T any](db *gorm.DB, entity string) scopedStore[T] {
	return scopedStore[T]{db: db, entity: entity}
}

func (s scopedStore[T]) query(ctx context.Context, customerID string) *gorm.DB {
	return s.db.WithContext(ctx).Model(new(T)).Scopes(TenantScope(customerID))
}

// get returns the row with id inside the tenant, or NotFound. Rows of other
// tenants are reported exactly like missing rows.
func (s scopedStore[T]) get(ctx context.Context, customerID, id string) (*T, error) {
	var item T
	err := s.db.WithContext(ctx).
		Scopes(TenantScope(customerID)).
		Where(clause.Eq{Column: column("id"), Value: id}).
		First(&item).Error
	if err != nil {
		return nil, s.translate(err, "get")
	}
	return &item, nil
}

// getForUpdate is get with a row lock held until the surrounding transaction ends.
func (s scopedStore[T]) getForUpdate(ctx context.Context, customerID, id string) (*T, error) {
	var item T
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Scopes(TenantScope(customerID)).
		Where(clause.Eq{Column: column("id"), Value: id}).
		First(&item).Error
	if err != nil {
		return nil, s.translate(err, "get")
	}
	return &item, nil
}

// exists reports whether id is a row of the tenant.
func (s scopedStore[T]) exists(ctx context.Context, customerID, id string) (bool, error) {
	var count int64
	if err := s.query(ctx, customerID).Where(clause.Eq{Column: column("id"), Value: id}).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check if %s exists: %w", s.entity, err)
	}
	return count > 0, nil
}

// list counts q, then loads the requested page of it ordered by order.
func (s scopedStore[T]) list(q *gorm.DB, p domain.PageRequest, order string) ([]*T, int64, error) {
	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count %ss: %w", s.entity, err)
	}

	items := make([]*T, 0)
	if total == 0 {
		return items, 0, nil
	}
	if err := q.Session(&gorm.Session{}).Order(order).Scopes(Paginate(p)).Find(&items).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list %ss: %w", s.entity, err)
	}
	return items, total, nil
}

// update applies updates to the tenant row id and returns the fresh row.
// updated_at is always refreshed, even when updates is empty.
func (s scopedStore[T]) update(ctx context.Context, customerID, id string, updates map[string]interface{}) (*T, error) {
	item, err := s.getForUpdate(ctx, customerID, id)
	if err != nil {
		return nil, err
	}

	updates["updated_at"] = time.Now().UTC()
	if err := s.db.WithContext(ctx).Model(item).Updates(updates).Error; err != nil {
		return nil, s.translate(err, "update")
	}

	return s.get(ctx, customerID, id)
}

// delete removes the tenant row id, or reports NotFound.
func (s scopedStore[T]) delete(ctx context.Context, customerID, id string) error {
	result := s.db.WithContext(ctx).
		Scopes(TenantScope(customerID)).
		Where(clause.Eq{Column: column("id"), Value: id}).
		Delete(new(T))
	if result.Error != nil {
		return s.translate(result.Error, "delete")
	}
	if result.RowsAffected == 0 {
		return domain.NotFound("%s not found", s.entity)
	}
	return nil
}

// translate maps store errors onto the domain taxonomy.
func (s scopedStore[T]) translate(err error, op string) error {
	return translateError(err, s.entity, op)
}

func translateError(err error, entity, op string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return domain.NotFound("%s not found", entity)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return domain.Conflict("%s already exists", entity)
	}
	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}
	return fmt.Errorf("failed to %s %s: %w", op, entity, err)
}

func datatypesMap(m map[string]interface{}) datatypes.JSONMap {
	if m == nil {
		return datatypes.JSONMap{}
	}
	return datatypes.JSONMap(m)
}

func stringSlice(s []string) datatypes.JSONSlice[string] {
	if s == nil {
		return datatypes.JSONSlice[string]{}
	}
	return datatypes.JSONSlice[string](s)
}
