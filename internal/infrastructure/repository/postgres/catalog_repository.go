package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/food-recommender/internal/core/domain"
)

type CatalogRepository struct {
	db *sql.DB
}

func NewCatalogRepository(db *sql.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *CatalogRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026083101)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS foods (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT NOT NULL,
	cuisine TEXT NOT NULL,
	meal_type TEXT NOT NULL,
	course TEXT NOT NULL,
	tags JSONB NOT NULL DEFAULT '[]'::jsonb,
	allergens JSONB NOT NULL DEFAULT '[]'::jsonb,
	diets JSONB NOT NULL DEFAULT '[]'::jsonb,
	nutrition JSONB NOT NULL DEFAULT '{}'::jsonb,
	prep_time_mins INTEGER NOT NULL,
	spice_level TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_foods_cuisine ON foods(cuisine);

CREATE TABLE IF NOT EXISTS chat_sessions (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	title TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chat_sessions_user ON chat_sessions(user_id, updated_at DESC);

CREATE TABLE IF NOT EXISTS chat_turns (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL REFERENCES chat_sessions(id),
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	recommendations JSONB NOT NULL DEFAULT '[]'::jsonb,
	incomplete BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chat_turns_session ON chat_turns(session_id, created_at);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// Upsert replaces the whole record for an existing id. There is no partial
// merge: re-ingesting an item is how it gets updated.
func (r *CatalogRepository) Upsert(ctx context.Context, item *domain.FoodItem) error {
	tagsJSON, err := json.Marshal(item.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	allergensJSON, err := json.Marshal(item.Allergens)
	if err != nil {
		return fmt.Errorf("marshal allergens: %w", err)
	}
	dietsJSON, err := json.Marshal(item.Diets)
	if err != nil {
		return fmt.Errorf("marshal diets: %w", err)
	}
	nutritionJSON, err := json.Marshal(item.Nutrition)
	if err != nil {
		return fmt.Errorf("marshal nutrition: %w", err)
	}

	now := time.Now().UTC()
	_, err = r.db.ExecContext(ctx, `
INSERT INTO foods (
	id, name, description, cuisine, meal_type, course, tags, allergens, diets, nutrition, prep_time_mins, spice_level, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
ON CONFLICT (id) DO UPDATE SET
	name = EXCLUDED.name,
	description = EXCLUDED.description,
	cuisine = EXCLUDED.cuisine,
	meal_type = EXCLUDED.meal_type,
	course = EXCLUDED.course,
	tags = EXCLUDED.tags,
	allergens = EXCLUDED.allergens,
	diets = EXCLUDED.diets,
	nutrition = EXCLUDED.nutrition,
	prep_time_mins = EXCLUDED.prep_time_mins,
	spice_level = EXCLUDED.spice_level,
	updated_at = EXCLUDED.updated_at
`,
		item.ID, item.Name, item.Description, item.Cuisine, item.MealType, item.Course,
		tagsJSON, allergensJSON, dietsJSON, nutritionJSON,
		item.PrepTimeMins, string(item.SpiceLevel), item.CreatedAt, now,
	)
	if err != nil {
		return domain.WrapError(domain.ErrStoreUnavailable, "catalog.upsert", err)
	}
	return nil
}

func (r *CatalogRepository) GetByID(ctx context.Context, id string) (*domain.FoodItem, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, name, description, cuisine, meal_type, course, tags, allergens, diets, nutrition, prep_time_mins, spice_level, created_at
FROM foods
WHERE id = $1
`, id)

	var item domain.FoodItem
	var tagsRaw, allergensRaw, dietsRaw, nutritionRaw []byte
	var spiceLevel string

	err := row.Scan(
		&item.ID, &item.Name, &item.Description, &item.Cuisine, &item.MealType, &item.Course,
		&tagsRaw, &allergensRaw, &dietsRaw, &nutritionRaw,
		&item.PrepTimeMins, &spiceLevel, &item.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "catalog.get", fmt.Errorf("food %s", id))
		}
		return nil, domain.WrapError(domain.ErrStoreUnavailable, "catalog.get", err)
	}

	if err := json.Unmarshal(tagsRaw, &item.Tags); err != nil {
		return nil, fmt.Errorf("unmarshal tags: %w", err)
	}
	if err := json.Unmarshal(allergensRaw, &item.Allergens); err != nil {
		return nil, fmt.Errorf("unmarshal allergens: %w", err)
	}
	if err := json.Unmarshal(dietsRaw, &item.Diets); err != nil {
		return nil, fmt.Errorf("unmarshal diets: %w", err)
	}
	if err := json.Unmarshal(nutritionRaw, &item.Nutrition); err != nil {
		return nil, fmt.Errorf("unmarshal nutrition: %w", err)
	}
	item.SpiceLevel = domain.SpiceLevel(spiceLevel)
	return &item, nil
}

func (r *CatalogRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM foods`).Scan(&count); err != nil {
		return 0, domain.WrapError(domain.ErrStoreUnavailable, "catalog.count", err)
	}
	return count, nil
}
