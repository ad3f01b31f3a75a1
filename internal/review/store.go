package review

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	apierrors "github.com/sitefreelance/backend/internal/errors"
	"github.com/sitefreelance/backend/internal/models"
)

// DefaultQueryTimeout bounds a single statement, connection acquisition included
const DefaultQueryTimeout = 5 * time.Second

// Options tunes a Store
type Options struct {
	QueryTimeout time.Duration
	// NewToken generates delete tokens; defaults to a random UUID
	NewToken func() string
}

// Store is the CRUD surface over the reviews table
type Store struct {
	db       Querier
	schema   Schema
	cols     Columns
	timeout  time.Duration
	newToken func() string
}

// CreateInput carries an author-supplied review
type CreateInput struct {
	Name    string
	Rating  int
	Message string
}

// Created is returned once, at creation: the only time the token is revealed
type Created struct {
	ID          int64     `json:"id"`
	DeleteToken string    `json:"delete_token"`
	Date        time.Time `json:"date"`
}

// NewStore creates a store bound to one column layout for its lifetime
func NewStore(db Querier, schema Schema, opts Options) *Store {
	if !schema.Valid() {
		schema = SchemaA
	}
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = DefaultQueryTimeout
	}
	if opts.NewToken == nil {
		opts.NewToken = uuid.NewString
	}
	return &Store{
		db:       db,
		schema:   schema,
		cols:     schema.Columns(),
		timeout:  opts.QueryTimeout,
		newToken: opts.NewToken,
	}
}

// Schema returns the layout the store reads and writes
func (s *Store) Schema() Schema {
	return s.schema
}

// Validate checks an author-supplied review
func (in *CreateInput) Validate() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Message = strings.TrimSpace(in.Message)

	if in.Name == "" || in.Message == "" || in.Rating == 0 {
		return apierrors.NewFieldError("review", "name, rating and message are required")
	}
	if in.Rating < models.MinRating || in.Rating > models.MaxRating {
		return apierrors.NewFieldError("rating", fmt.Sprintf("rating must be between %d and %d", models.MinRating, models.MaxRating))
	}
	return nil
}

// Create inserts a review under the active layout and issues its delete token
func (s *Store) Create(ctx context.Context, in CreateInput) (*Created, error) {
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("create review: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	created := &Created{DeleteToken: s.newToken()}
	query := fmt.Sprintf(
		`INSERT INTO %s (%s, %s, %s, %s, %s) VALUES ($1, $2, $3, $4, NOW()) RETURNING id, %s`,
		TableName, ident(s.cols.Name), ident(s.cols.Rating), ident(s.cols.Message),
		ident(s.cols.DeleteToken), ident(s.cols.Date), ident(s.cols.Date),
	)
	err := s.db.QueryRow(ctx, query, in.Name, in.Rating, in.Message, created.DeleteToken).
		Scan(&created.ID, &created.Date)
	if err != nil {
		return nil, storageError("create review", err)
	}

	return created, nil
}

// List returns every review newest first, without delete tokens
func (s *Store) List(ctx context.Context) ([]models.Review, error) {
	reviews, err := s.list(ctx)
	if err != nil {
		return nil, err
	}
	for i := range reviews {
		reviews[i] = reviews[i].Public()
	}
	return reviews, nil
}

// AdminList returns every review newest first, delete tokens included
func (s *Store) AdminList(ctx context.Context) ([]models.Review, error) {
	return s.list(ctx)
}

func (s *Store) list(ctx context.Context) ([]models.Review, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	query := fmt.Sprintf(`SELECT * FROM %s ORDER BY %s DESC, id DESC`, TableName, ident(s.cols.Date))
	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, storageError("list reviews", err)
	}

	raw, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, storageError("scan reviews", err)
	}

	reviews := make([]models.Review, 0, len(raw))
	for _, row := range raw {
		r, err := Normalize(row, s.schema)
		if err != nil {
			return nil, storageError("normalize review", err)
		}
		reviews = append(reviews, r)
	}
	return reviews, nil
}

// DeleteBySelf removes a review only when both id and token match.
// A mismatch is a normal outcome and reports false without an error.
func (s *Store) DeleteBySelf(ctx context.Context, id int64, token string) (bool, error) {
	if id <= 0 || token == "" {
		return false, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1 AND %s = $2`, TableName, ident(s.cols.DeleteToken))
	tag, err := s.db.Exec(ctx, query, id, token)
	if err != nil {
		return false, storageError("delete review", err)
	}
	return tag.RowsAffected() > 0, nil
}

// AdminDelete removes a review by id alone
func (s *Store) AdminDelete(ctx context.Context, id int64) (bool, error) {
	if id <= 0 {
		return false, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	tag, err := s.db.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, TableName), id)
	if err != nil {
		return false, storageError("admin delete review", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Stats aggregates the rating distribution and its average
func (s *Store) Stats(ctx context.Context) (*models.ReviewStats, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rating := ident(s.cols.Rating)
	query := fmt.Sprintf(`SELECT %s, COUNT(*) FROM %s WHERE %s IS NOT NULL GROUP BY %s`,
		rating, TableName, rating, rating)
	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, storageError("review stats", err)
	}

	counts := make(map[int64]int64)
	var value, n int64
	_, err = pgx.ForEachRow(rows, []any{&value, &n}, func() error {
		counts[value] += n
		return nil
	})
	if err != nil {
		return nil, storageError("scan review stats", err)
	}

	return computeStats(counts), nil
}

// computeStats derives count, average (one decimal) and the 1..5 distribution
func computeStats(counts map[int64]int64) *models.ReviewStats {
	stats := &models.ReviewStats{Distribution: make(map[int]int64, models.MaxRating)}
	for r := models.MinRating; r <= models.MaxRating; r++ {
		stats.Distribution[r] = 0
	}

	sum := decimal.Zero
	for rating, n := range counts {
		stats.Count += n
		sum = sum.Add(decimal.NewFromInt(rating).Mul(decimal.NewFromInt(n)))
		if rating >= models.MinRating && rating <= models.MaxRating {
			stats.Distribution[int(rating)] += n
		}
	}

	if stats.Count > 0 {
		stats.Average = sum.Div(decimal.NewFromInt(stats.Count)).Round(1).InexactFloat64()
	}
	return stats
}

func ident(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func storageError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, apierrors.ErrStorage, err)
}
