package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kilianp07/mixbot/core/inventory"
	"github.com/kilianp07/mixbot/core/inventory/inventorytest"
	"github.com/kilianp07/mixbot/core/model"
	"github.com/kilianp07/mixbot/core/recipe"
)

func newStore(t *testing.T, ings []model.Ingredient, opts inventory.Options) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "mixbot.db"), opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Seed(context.Background(), ings, nil))
	return s
}

func TestSQLiteStoreContract(t *testing.T) {
	inventorytest.Run(t, func(t *testing.T, ings []model.Ingredient, opts inventory.Options) inventory.Store {
		return newStore(t, ings, opts)
	})
}

func TestSeedKeepsStoredLevels(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "mixbot.db")
	s, err := NewSQLiteStore(path, inventory.Options{})
	require.NoError(t, err)
	require.NoError(t, s.Seed(ctx, inventorytest.Fixture(), nil))
	_, err = s.DecrementAfterUse(ctx, 1, 250)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = NewSQLiteStore(path, inventory.Options{})
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	renamed := inventorytest.Fixture()
	renamed[0].Name = "Cola Zero"
	require.NoError(t, s.Seed(ctx, renamed, nil))

	ing, err := s.Ingredient(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, "Cola Zero", ing.Name)
	require.Equal(t, 750.0, ing.LevelML)
	ch, ok := ing.ChannelIndex()
	require.True(t, ok)
	require.Equal(t, 0, ch)
}

func TestSeedDropsRemovedIngredients(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, []model.Ingredient{
		{ID: 1, Name: "Cola", Kind: model.KindLiquid, LevelML: 1000, Channel: model.ChannelPtr(0)},
		{ID: 2, Name: "Rum", Kind: model.KindLiquid, LevelML: 700, Channel: model.ChannelPtr(1)},
	}, inventory.Options{})
	_, err := s.DecrementAfterUse(ctx, 1, 100)
	require.NoError(t, err)

	require.NoError(t, s.Seed(ctx, []model.Ingredient{
		{ID: 1, Name: "Cola", Kind: model.KindLiquid, LevelML: 1000, Channel: model.ChannelPtr(0)},
		{ID: 3, Name: "Gin", Kind: model.KindLiquid, LevelML: 700, Channel: model.ChannelPtr(1)},
	}, nil))

	_, err = s.Ingredient(ctx, 2)
	require.ErrorIs(t, err, model.ErrNotFound)
	ings, err := s.Ingredients(ctx)
	require.NoError(t, err)
	require.Len(t, ings, 2)
	owners := map[int]string{}
	for _, ing := range ings {
		ch, ok := ing.ChannelIndex()
		require.True(t, ok)
		_, taken := owners[ch]
		require.False(t, taken, "channel %d has two ingredients", ch)
		owners[ch] = ing.Name
	}
	require.Equal(t, "Gin", owners[1])

	level, err := s.Level(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 900.0, level, "surviving ingredient keeps its level")

	n, err := s.BulkSetLevel(ctx, 500)
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func TestDecrementRejectsNegative(t *testing.T) {
	s := newStore(t, inventorytest.Fixture(), inventory.Options{})
	_, err := s.DecrementAfterUse(context.Background(), 1, -5)
	require.True(t, errors.Is(err, model.ErrValidation))
}

func TestRecipeBook(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, nil, inventory.Options{})
	recipes := []model.Recipe{
		{ID: 2, Name: "Gin Tonic", Alcoholic: true, ServingML: 350, Amounts: map[int]float64{13: 40, 9: 160}},
		{ID: 1, Name: "Virgin Colada", ServingML: 350, Amounts: map[int]float64{6: 120, 8: 30}},
	}
	require.NoError(t, s.Seed(ctx, inventorytest.Fixture(), recipes))

	var book recipe.Book = s
	r, err := book.Recipe(ctx, 2)
	require.NoError(t, err)
	require.True(t, r.Alcoholic)
	require.Equal(t, map[int]float64{13: 40, 9: 160}, r.Amounts)

	all, err := book.Recipes(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, "Virgin Colada", all[0].Name)
	require.Equal(t, 30.0, all[0].Amounts[8])

	_, err = book.Recipe(ctx, 99)
	require.ErrorIs(t, err, model.ErrNotFound)

	// reseeding replaces the book
	require.NoError(t, s.Seed(ctx, inventorytest.Fixture(), recipes[:1]))
	all, err = book.Recipes(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
}
