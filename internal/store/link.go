package store

import (
	"context"
	"fmt"

	"github.com/coderisedev/cs-sub003/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

type relationTable struct {
	table   string
	subject string
	object  string

	// subjectUUID marks tenant_id subjects; ids travel as text and are cast.
	subjectUUID bool
}

func (t relationTable) subjectParam(n int) string {
	if t.subjectUUID {
		return fmt.Sprintf("$%d::text::uuid", n)
	}
	return fmt.Sprintf("$%d::text", n)
}

// Each relation has its own join table with a composite primary key on
// (subject, object). tenant_sales_channels also keeps each channel unique.
var relationTables = map[domain.Relation]relationTable{
	domain.RelationTenantSalesChannel:  {table: "tenant_sales_channels", subject: "tenant_id", object: "sales_channel_id", subjectUUID: true},
	domain.RelationTenantProduct:       {table: "tenant_products", subject: "tenant_id", object: "product_id", subjectUUID: true},
	domain.RelationProductSalesChannel: {table: "product_sales_channels", subject: "product_id", object: "sales_channel_id"},
}

func tableFor(rel domain.Relation) (relationTable, error) {
	t, ok := relationTables[rel]
	if !ok {
		return relationTable{}, fmt.Errorf("unknown relation %q", rel)
	}
	return t, nil
}

type LinkStore struct {
	db *pgxpool.Pool
}

func NewLinkStore(db *pgxpool.Pool) *LinkStore {
	return &LinkStore{db: db}
}

func (s *LinkStore) Link(ctx context.Context, rel domain.Relation, subjectID, objectID string) error {
	t, err := tableFor(rel)
	if err != nil {
		return err
	}
	// Only the (subject, object) key is idempotent; any other unique
	// violation is a conflict.
	_, err = s.db.Exec(ctx,
		fmt.Sprintf(`INSERT INTO %s (%s, %s) VALUES (%s, $2::text) ON CONFLICT (%s, %s) DO NOTHING`,
			t.table, t.subject, t.object, t.subjectParam(1), t.subject, t.object),
		subjectID, objectID,
	)
	switch {
	case err == nil:
		return nil
	case isPgError(err, pgForeignKeyViolation):
		return ErrNotFound
	case isPgError(err, pgUniqueViolation):
		return ErrLinkTaken
	}
	return err
}

func (s *LinkStore) Unlink(ctx context.Context, rel domain.Relation, subjectID, objectID string) error {
	t, err := tableFor(rel)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE %s = %s AND %s = $2::text`,
			t.table, t.subject, t.subjectParam(1), t.object),
		subjectID, objectID,
	)
	return err
}

func (s *LinkStore) Objects(ctx context.Context, rel domain.Relation, subjectID string) ([]string, error) {
	t, err := tableFor(rel)
	if err != nil {
		return nil, err
	}
	return s.column(ctx,
		fmt.Sprintf(`SELECT %s::text FROM %s WHERE %s = %s ORDER BY created_at, %s`,
			t.object, t.table, t.subject, t.subjectParam(1), t.object),
		subjectID,
	)
}

func (s *LinkStore) Subjects(ctx context.Context, rel domain.Relation, objectID string) ([]string, error) {
	t, err := tableFor(rel)
	if err != nil {
		return nil, err
	}
	return s.column(ctx,
		fmt.Sprintf(`SELECT %s::text FROM %s WHERE %s = $1::text ORDER BY created_at, %s`,
			t.subject, t.table, t.object, t.subject),
		objectID,
	)
}

func (s *LinkStore) column(ctx context.Context, query string, arg string) ([]string, error) {
	rows, err := s.db.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
