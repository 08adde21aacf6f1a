package cmd

import (
	"context"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kilianp07/mixbot/app"
	"github.com/kilianp07/mixbot/core/factory"
	"github.com/kilianp07/mixbot/core/model"
	"github.com/kilianp07/mixbot/infra/actuator"
)

var inventoryCmd = &cobra.Command{
	Use:     "inventory",
	Aliases: []string{"inv"},
	Short:   "Inspect and change fill levels",
	RunE:    runInventoryList,
}

var inventorySetCmd = &cobra.Command{
	Use:   "set <ingredient> <ml>",
	Short: "Set an absolute fill level",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withIngredient(cmd, args, func(ctx context.Context, inv *app.Inventory, id int, ml float64) (model.Ingredient, error) {
			return inv.Store.SetLevel(ctx, id, ml)
		})
	},
}

var inventoryRefillCmd = &cobra.Command{
	Use:   "refill <ingredient> <ml>",
	Short: "Add to a fill level",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withIngredient(cmd, args, func(ctx context.Context, inv *app.Inventory, id int, ml float64) (model.Ingredient, error) {
			return inv.Store.AdjustLevel(ctx, id, ml)
		})
	},
}

var inventoryRefillAllCmd = &cobra.Command{
	Use:   "refill-all [ml]",
	Short: "Set every ingredient to the same level",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRefillAll,
}

func init() {
	inventoryCmd.AddCommand(inventorySetCmd, inventoryRefillCmd, inventoryRefillAllCmd)
	rootCmd.AddCommand(inventoryCmd)
}

func openInventory(ctx context.Context) (*app.Inventory, float64, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, 0, err
	}
	// the board is not opened here, its size comes from the backend config
	var board struct {
		Channels int   `json:"channels"`
		Pins     []int `json:"pins"`
	}
	if err := factory.Decode(cfg.Actuation.Backend.Conf, &board); err != nil {
		return nil, 0, err
	}
	channels := actuator.DefaultChannels
	switch {
	case board.Channels > 0:
		channels = board.Channels
	case len(board.Pins) > 0:
		channels = len(board.Pins)
	}
	inv, err := app.OpenInventory(ctx, cfg, channels)
	if err != nil {
		return nil, 0, err
	}
	return inv, cfg.Inventory.RefillAllDefaultML, nil
}

func printIngredients(cmd *cobra.Command, ings ...model.Ingredient) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tKIND\tCHANNEL\tLEVEL")
	for _, ing := range ings {
		ch := "-"
		if c, ok := ing.ChannelIndex(); ok {
			ch = strconv.Itoa(c)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%g\n", ing.ID, ing.Name, ing.Kind, ch, ing.LevelML)
	}
	_ = w.Flush()
}

func runInventoryList(cmd *cobra.Command, _ []string) error {
	inv, _, err := openInventory(cmd.Context())
	if err != nil {
		return err
	}
	defer inv.Close()
	ings, err := inv.Store.Ingredients(cmd.Context())
	if err != nil {
		return err
	}
	printIngredients(cmd, ings...)
	return nil
}

func withIngredient(cmd *cobra.Command, args []string, fn func(context.Context, *app.Inventory, int, float64) (model.Ingredient, error)) error {
	id, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid ingredient id %q", args[0])
	}
	ml, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("invalid amount %q", args[1])
	}
	inv, _, err := openInventory(cmd.Context())
	if err != nil {
		return err
	}
	defer inv.Close()
	ing, err := fn(cmd.Context(), inv, id, ml)
	if err != nil {
		return err
	}
	printIngredients(cmd, ing)
	return nil
}

func runRefillAll(cmd *cobra.Command, args []string) error {
	inv, level, err := openInventory(cmd.Context())
	if err != nil {
		return err
	}
	defer inv.Close()
	if len(args) == 1 {
		if level, err = strconv.ParseFloat(args[0], 64); err != nil {
			return fmt.Errorf("invalid level %q", args[0])
		}
	}
	if level < 0 {
		return fmt.Errorf("level must not be negative")
	}
	n, err := inv.Store.BulkSetLevel(cmd.Context(), level)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d ingredients set to %gml\n", n, level)
	return nil
}
