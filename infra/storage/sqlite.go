// Package storage persists the ingredient table and the recipe book in SQLite
// so that fill levels survive restarts.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/kilianp07/mixbot/core/inventory"
	"github.com/kilianp07/mixbot/core/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS ingredients (
    id INTEGER PRIMARY KEY,
    name TEXT NOT NULL,
    kind TEXT NOT NULL,
    level REAL NOT NULL DEFAULT 0,
    channel INTEGER
);
CREATE TABLE IF NOT EXISTS recipes (
    id INTEGER PRIMARY KEY,
    name TEXT NOT NULL,
    alcoholic INTEGER NOT NULL DEFAULT 0,
    serving_ml REAL NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS recipe_ingredients (
    recipe_id INTEGER NOT NULL REFERENCES recipes(id) ON DELETE CASCADE,
    ingredient_id INTEGER NOT NULL,
    amount REAL NOT NULL,
    PRIMARY KEY (recipe_id, ingredient_id)
);`

const ingredientColumns = `id, name, kind, level, channel`

// SQLiteStore implements inventory.Store and recipe.Book. Every level change
// is a single UPDATE statement, so read-modify-write cycles are atomic per
// ingredient.
type SQLiteStore struct {
	db   *sql.DB
	opts inventory.Options
}

// NewSQLiteStore opens or creates the database at path and ensures schema.
func NewSQLiteStore(path string, opts inventory.Options) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// a single connection keeps :memory: databases shared and avoids
	// SQLITE_BUSY between writers
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, err
	}
	return &SQLiteStore{db: db, opts: opts}, nil
}

// Seed upserts the catalog. Names, kinds and channels follow the catalog
// while stored levels of known ingredients are kept. Ingredients missing from
// the catalog are removed and recipes are replaced.
func (s *SQLiteStore) Seed(ctx context.Context, ingredients []model.Ingredient, recipes []model.Recipe) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	// drop stale rows first so a reassigned channel never has two owners
	keep := make([]string, len(ingredients))
	args := make([]any, len(ingredients))
	for i, ing := range ingredients {
		keep[i] = "?"
		args[i] = ing.ID
	}
	stale := `DELETE FROM ingredients`
	if len(keep) > 0 {
		stale += ` WHERE id NOT IN (` + strings.Join(keep, ", ") + `)`
	}
	if _, err = tx.ExecContext(ctx, stale, args...); err != nil {
		return fmt.Errorf("drop stale ingredients: %w", err)
	}
	for _, ing := range ingredients {
		var ch sql.NullInt64
		if c, ok := ing.ChannelIndex(); ok {
			ch = sql.NullInt64{Int64: int64(c), Valid: true}
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO ingredients (`+ingredientColumns+`) VALUES (?, ?, ?, ?, ?)
            ON CONFLICT(id) DO UPDATE SET name = excluded.name, kind = excluded.kind, channel = excluded.channel`,
			ing.ID, ing.Name, ing.Kind.String(), model.ClampLevel(ing.LevelML, 0), ch)
		if err != nil {
			return fmt.Errorf("seed ingredient %d: %w", ing.ID, err)
		}
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM recipe_ingredients`); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM recipes`); err != nil {
		return err
	}
	for _, r := range recipes {
		_, err = tx.ExecContext(ctx, `INSERT INTO recipes (id, name, alcoholic, serving_ml) VALUES (?, ?, ?, ?)`,
			r.ID, r.Name, r.Alcoholic, r.ServingML)
		if err != nil {
			return fmt.Errorf("seed recipe %d: %w", r.ID, err)
		}
		for _, id := range r.IngredientIDs() {
			_, err = tx.ExecContext(ctx, `INSERT INTO recipe_ingredients (recipe_id, ingredient_id, amount) VALUES (?, ?, ?)`,
				r.ID, id, r.Amounts[id])
			if err != nil {
				return fmt.Errorf("seed recipe %d ingredient %d: %w", r.ID, id, err)
			}
		}
	}
	return tx.Commit()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanIngredient(row scanner) (model.Ingredient, error) {
	var (
		ing  model.Ingredient
		kind string
		ch   sql.NullInt64
	)
	if err := row.Scan(&ing.ID, &ing.Name, &kind, &ing.LevelML, &ch); err != nil {
		return model.Ingredient{}, err
	}
	k, err := model.ParseKind(kind)
	if err != nil {
		return model.Ingredient{}, err
	}
	ing.Kind = k
	if ch.Valid {
		ing.Channel = model.ChannelPtr(int(ch.Int64))
	}
	return ing, nil
}

func (s *SQLiteStore) one(ctx context.Context, id int, query string, args ...any) (model.Ingredient, error) {
	ing, err := scanIngredient(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Ingredient{}, inventory.NotFound(id)
	}
	return ing, err
}

// Ingredient returns the stored ingredient.
func (s *SQLiteStore) Ingredient(ctx context.Context, id int) (model.Ingredient, error) {
	return s.one(ctx, id, `SELECT `+ingredientColumns+` FROM ingredients WHERE id = ?`, id)
}

// Ingredients returns every ingredient ordered by id.
func (s *SQLiteStore) Ingredients(ctx context.Context) ([]model.Ingredient, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+ingredientColumns+` FROM ingredients ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []model.Ingredient
	for rows.Next() {
		ing, err := scanIngredient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ing)
	}
	return out, rows.Err()
}

// Level returns the current level of the ingredient.
func (s *SQLiteStore) Level(ctx context.Context, id int) (float64, error) {
	ing, err := s.Ingredient(ctx, id)
	if err != nil {
		return 0, err
	}
	return ing.LevelML, nil
}

// SetLevel stores an absolute level, clamping negative values to zero.
func (s *SQLiteStore) SetLevel(ctx context.Context, id int, ml float64) (model.Ingredient, error) {
	if err := inventory.ValidateVolume(ml); err != nil {
		return model.Ingredient{}, err
	}
	return s.one(ctx, id, `UPDATE ingredients SET level = MAX(0, ?) WHERE id = ? RETURNING `+ingredientColumns, ml, id)
}

// AdjustLevel adds delta under the capacity policy of inventory.Adjusted.
func (s *SQLiteStore) AdjustLevel(ctx context.Context, id int, delta float64) (model.Ingredient, error) {
	if err := inventory.ValidateVolume(delta); err != nil {
		return model.Ingredient{}, err
	}
	capacity := s.opts.MaxCapacityML
	return s.one(ctx, id, `UPDATE ingredients SET level = CASE
            WHEN level + ? < 0 THEN 0
            WHEN ? > 0 AND ? > 0 AND level + ? > ? THEN MAX(?, level)
            ELSE level + ? END
        WHERE id = ? RETURNING `+ingredientColumns,
		delta, delta, capacity, delta, capacity, capacity, delta, id)
}

// DecrementAfterUse subtracts a dispensed amount, never going below zero.
func (s *SQLiteStore) DecrementAfterUse(ctx context.Context, id int, ml float64) (model.Ingredient, error) {
	if err := inventory.ValidateUsage(ml); err != nil {
		return model.Ingredient{}, err
	}
	return s.one(ctx, id, `UPDATE ingredients SET level = MAX(0, level - ?) WHERE id = ? RETURNING `+ingredientColumns, ml, id)
}

// BulkSetLevel sets every ingredient to ml.
func (s *SQLiteStore) BulkSetLevel(ctx context.Context, ml float64) (int, error) {
	if err := inventory.ValidateVolume(ml); err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE ingredients SET level = MAX(0, ?)`, ml)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// Recipe returns the recipe with the given id.
func (s *SQLiteStore) Recipe(ctx context.Context, id int) (model.Recipe, error) {
	r := model.Recipe{ID: id, Amounts: map[int]float64{}}
	err := s.db.QueryRowContext(ctx, `SELECT name, alcoholic, serving_ml FROM recipes WHERE id = ?`, id).
		Scan(&r.Name, &r.Alcoholic, &r.ServingML)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Recipe{}, fmt.Errorf("cocktail %d: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return model.Recipe{}, err
	}
	if err := s.loadAmounts(ctx, &r); err != nil {
		return model.Recipe{}, err
	}
	return r, nil
}

// Recipes returns all recipes ordered by id.
func (s *SQLiteStore) Recipes(ctx context.Context) ([]model.Recipe, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, alcoholic, serving_ml FROM recipes ORDER BY id`)
	if err != nil {
		return nil, err
	}
	var out []model.Recipe
	for rows.Next() {
		r := model.Recipe{Amounts: map[int]float64{}}
		if err := rows.Scan(&r.ID, &r.Name, &r.Alcoholic, &r.ServingML); err != nil {
			_ = rows.Close()
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	// the single connection must be released before the amount queries
	_ = rows.Close()
	for i := range out {
		if err := s.loadAmounts(ctx, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *SQLiteStore) loadAmounts(ctx context.Context, r *model.Recipe) error {
	rows, err := s.db.QueryContext(ctx, `SELECT ingredient_id, amount FROM recipe_ingredients WHERE recipe_id = ?`, r.ID)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var (
			id     int
			amount float64
		)
		if err := rows.Scan(&id, &amount); err != nil {
			return err
		}
		r.Amounts[id] = amount
	}
	return rows.Err()
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
