package review

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// TableName is the table both layouts live in
const TableName = "reviews"

// Layout detection errors
var (
	// ErrNoLayout means the reviews table does not exist yet
	ErrNoLayout = errors.New("reviews table does not exist")
	// ErrUnknownLayout means the table exists but matches neither layout
	ErrUnknownLayout = errors.New("reviews table matches no known column layout")
)

// MigrateFunc applies the embedded migrations
type MigrateFunc func() error

// Querier is the subset of pgxpool.Pool the review package needs
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Schema identifies which column-naming layout backs the reviews table.
// It is resolved once at start-up and handed to NewStore.
type Schema int

const (
	// SchemaA is the legacy English layout
	SchemaA Schema = iota + 1
	// SchemaB is the newer French layout
	SchemaB
)

// Columns names the physical column for each canonical field
type Columns struct {
	Name        string
	Rating      string
	Message     string
	DeleteToken string
	Date        string
}

var (
	columnsA = Columns{Name: "name", Rating: "rating", Message: "message", DeleteToken: "delete_token", Date: "date"}
	columnsB = Columns{Name: "nom", Rating: "notation", Message: "message", DeleteToken: "supprimer_jeton", Date: "date"}
)

// Columns returns the physical column names of the layout
func (s Schema) Columns() Columns {
	if s == SchemaB {
		return columnsB
	}
	return columnsA
}

// Alternate returns the other layout, used as a fallback when reading rows
func (s Schema) Alternate() Schema {
	if s == SchemaB {
		return SchemaA
	}
	return SchemaB
}

// Valid reports whether s is one of the known layouts
func (s Schema) Valid() bool {
	return s == SchemaA || s == SchemaB
}

func (s Schema) String() string {
	switch s {
	case SchemaA:
		return "A"
	case SchemaB:
		return "B"
	default:
		return fmt.Sprintf("Schema(%d)", int(s))
	}
}

func (c Columns) all() []string {
	return []string{c.Name, c.Rating, c.Message, c.DeleteToken, c.Date}
}

// Detect reads information_schema once and resolves the active layout
func Detect(ctx context.Context, db Querier) (Schema, error) {
	rows, err := db.Query(ctx, `
		SELECT column_name
		FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = $1
	`, TableName)
	if err != nil {
		return 0, fmt.Errorf("failed to read reviews columns: %w", err)
	}

	columns, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return 0, fmt.Errorf("failed to scan reviews columns: %w", err)
	}

	return ResolveSchema(columns)
}

// ResolveSchema picks the layout whose columns are all present.
// The newer layout wins when both are.
func ResolveSchema(columns []string) (Schema, error) {
	if len(columns) == 0 {
		return 0, ErrNoLayout
	}

	present := make(map[string]bool, len(columns))
	for _, c := range columns {
		present[c] = true
	}

	hasAll := func(s Schema) bool {
		if !present["id"] {
			return false
		}
		for _, c := range s.Columns().all() {
			if !present[c] {
				return false
			}
		}
		return true
	}

	switch {
	case hasAll(SchemaB):
		return SchemaB, nil
	case hasAll(SchemaA):
		return SchemaA, nil
	default:
		return 0, ErrUnknownLayout
	}
}

// DetectOrMigrate resolves the layout, applying migrations first when the
// table is missing or matches neither layout (such as the early
// (id, name, message, date) table). A layout that is still unknown after
// migrating is returned as ErrUnknownLayout.
func DetectOrMigrate(ctx context.Context, db Querier, migrate MigrateFunc) (Schema, error) {
	schema, err := Detect(ctx, db)
	if err == nil || (!errors.Is(err, ErrNoLayout) && !errors.Is(err, ErrUnknownLayout)) {
		return schema, err
	}

	if err := migrate(); err != nil {
		return 0, fmt.Errorf("failed to migrate reviews table: %w", err)
	}
	return Detect(ctx, db)
}
