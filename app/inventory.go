package app

import (
	"context"
	"fmt"

	"github.com/kilianp07/mixbot/config"
	"github.com/kilianp07/mixbot/core/inventory"
	"github.com/kilianp07/mixbot/core/recipe"
	"github.com/kilianp07/mixbot/infra/storage"
)

// Inventory bundles the ingredient store and the recipe book of the
// configured backend.
type Inventory struct {
	Store inventory.Store
	Book  recipe.Book
	close func() error
}

// Close releases the backend.
func (i *Inventory) Close() error {
	if i.close == nil {
		return nil
	}
	return i.close()
}

// OpenInventory loads the catalog, validates it against channels and opens
// the inventory backend. The sqlite backend is seeded from the catalog while
// keeping levels stored by a previous run.
func OpenInventory(ctx context.Context, cfg *config.Config, channels int) (*Inventory, error) {
	cat, err := config.LoadCatalog(cfg.Catalog.Path)
	if err != nil {
		return nil, err
	}
	if err := cat.Validate(channels); err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	ings, recs := cat.Model(cfg.Mixing.GlassSizeML)

	switch cfg.Inventory.Backend {
	case "sqlite":
		st, err := storage.NewSQLiteStore(cfg.Inventory.Path, cfg.Inventory.Options())
		if err != nil {
			return nil, fmt.Errorf("open inventory: %w", err)
		}
		if err := st.Seed(ctx, ings, recs); err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("seed inventory: %w", err)
		}
		return &Inventory{Store: st, Book: st, close: st.Close}, nil
	default:
		st, err := inventory.NewMemoryStore(ings, cfg.Inventory.Options())
		if err != nil {
			return nil, err
		}
		book, err := recipe.NewMemoryBook(recs)
		if err != nil {
			return nil, err
		}
		return &Inventory{Store: st, Book: book}, nil
	}
}
