// Package cocktails exposes the mixer over HTTP under /api.
package cocktails

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/kilianp07/mixbot/core/actuation"
	"github.com/kilianp07/mixbot/core/availability"
	"github.com/kilianp07/mixbot/core/inventory"
	"github.com/kilianp07/mixbot/core/logger"
	"github.com/kilianp07/mixbot/core/mixing"
	"github.com/kilianp07/mixbot/core/mixing/journal"
	"github.com/kilianp07/mixbot/core/model"
)

// Menu lists recipes and turns them into plans.
type Menu interface {
	Recipes(ctx context.Context) ([]model.Recipe, error)
	Plan(ctx context.Context, rec model.Recipe) (model.DispensingPlan, error)
	Resolve(ctx context.Context, cocktailID int) (model.DispensingPlan, error)
}

// Checker reports shortages of a plan.
type Checker interface {
	Shortages(ctx context.Context, plan model.DispensingPlan) ([]availability.Shortage, error)
}

// Mixer accepts orders and exposes job state.
type Mixer interface {
	StartMix(ctx context.Context, cocktailID int) (mixing.Order, error)
	Job(id string) (mixing.Job, bool)
	Jobs() []mixing.Job
	IsMixing() bool
}

// Tester runs a diagnostic actuation of one channel.
type Tester interface {
	TestChannel(ctx context.Context, channel int, d time.Duration) error
}

// Options holds presentation defaults and limits.
type Options struct {
	GlassSizeML        float64
	ImageDir           string
	RefillAllDefaultML float64
	TestDuration       time.Duration
	Version            string
	// OrderLimiter throttles POST /api/order; nil disables throttling.
	OrderLimiter *rate.Limiter
}

// Handler serves the cocktail API.
type Handler struct {
	menu      Menu
	checker   Checker
	inventory inventory.Store
	mixer     Mixer
	tester    Tester
	journal   journal.Store
	opts      Options
	log       logger.Logger
	mux       *http.ServeMux
}

// NewHandler wires the routes. A nil journal disables /api/journal.
func NewHandler(menu Menu, checker Checker, inv inventory.Store, mixer Mixer, tester Tester, js journal.Store, opts Options, log logger.Logger) *Handler {
	if opts.GlassSizeML <= 0 {
		opts.GlassSizeML = 350
	}
	if opts.ImageDir == "" {
		opts.ImageDir = "../images"
	}
	if opts.RefillAllDefaultML <= 0 {
		opts.RefillAllDefaultML = 2000
	}
	if opts.TestDuration <= 0 {
		opts.TestDuration = 2 * time.Second
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	if log == nil {
		log = logger.Nop{}
	}
	h := &Handler{menu: menu, checker: checker, inventory: inv, mixer: mixer, tester: tester, journal: js, opts: opts, log: log}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", h.banner)
	mux.HandleFunc("GET /api/cocktails", h.listCocktails)
	mux.HandleFunc("GET /api/cocktails/{id}/ingredients", h.cocktailIngredients)
	mux.HandleFunc("GET /api/ingredients", h.listIngredients)
	mux.HandleFunc("POST /api/ingredients/set", h.setLevel)
	mux.HandleFunc("POST /api/ingredients/refill", h.refill)
	mux.HandleFunc("POST /api/ingredients/refill_all", h.refillAll)
	mux.HandleFunc("POST /api/order", h.order)
	mux.HandleFunc("GET /api/status", h.status)
	mux.HandleFunc("POST /api/test-pump/{id}", h.testPump)
	mux.HandleFunc("GET /api/jobs", h.listJobs)
	mux.HandleFunc("GET /api/jobs/{id}", h.getJob)
	if js != nil {
		mux.Handle("GET /api/journal", NewJournalHandler(js))
	}
	h.mux = mux
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	if r.Method == http.MethodOptions {
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.WriteHeader(http.StatusNoContent)
		return
	}
	h.mux.ServeHTTP(w, r)
}

var endpoints = map[string]string{
	"cocktails":   "/api/cocktails",
	"ingredients": "/api/ingredients",
	"set":         "/api/ingredients/set",
	"refill":      "/api/ingredients/refill",
	"refill_all":  "/api/ingredients/refill_all",
	"order":       "/api/order",
	"status":      "/api/status",
	"test_pump":   "/api/test-pump/{id}",
	"jobs":        "/api/jobs",
	"journal":     "/api/journal",
}

func (h *Handler) banner(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message":   "mixbot API",
		"version":   h.opts.Version,
		"endpoints": endpoints,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}

// Cocktail is one entry of the menu.
type Cocktail struct {
	ID                  int                 `json:"id"`
	Name                string              `json:"name"`
	ImagePath           string              `json:"image_path"`
	Liquid              []model.LiquidEntry `json:"liquid_recipe"`
	Manual              []model.ManualEntry `json:"manual_ingredients"`
	Alcoholic           bool                `json:"alkoholisch"`
	GlassSizeML         float64             `json:"glass_size_ml"`
	RequiresManualSteps bool                `json:"requires_manual_steps"`
}

func (h *Handler) view(p model.DispensingPlan) Cocktail {
	glass := p.ServingML
	if glass <= 0 {
		glass = h.opts.GlassSizeML
	}
	return Cocktail{
		ID:                  p.CocktailID,
		Name:                p.Name,
		ImagePath:           path.Join(h.opts.ImageDir, p.Name+".png"),
		Liquid:              p.Liquid,
		Manual:              p.Manual,
		Alcoholic:           p.Alcoholic,
		GlassSizeML:         glass,
		RequiresManualSteps: p.RequiresManualSteps(),
	}
}

// available returns the cocktails that can be made right now. A nil filter
// keeps both kinds.
func (h *Handler) available(ctx context.Context, alcoholic *bool) ([]Cocktail, error) {
	recs, err := h.menu.Recipes(ctx)
	if err != nil {
		return nil, err
	}
	out := []Cocktail{}
	for _, rec := range recs {
		if alcoholic != nil && rec.Alcoholic != *alcoholic {
			continue
		}
		plan, err := h.menu.Plan(ctx, rec)
		if err != nil {
			h.log.Warnf("skip cocktail %d: %v", rec.ID, err)
			continue
		}
		short, err := h.checker.Shortages(ctx, plan)
		if err != nil {
			return nil, err
		}
		if len(short) == 0 {
			out = append(out, h.view(plan))
		}
	}
	return out, nil
}

func parseAlcoholic(r *http.Request) (*bool, error) {
	q := r.URL.Query()
	v := q.Get("alcoholic")
	if v == "" {
		v = q.Get("alkoholisch")
	}
	if v == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil, fmt.Errorf("alcoholic must be true or false")
	}
	return &b, nil
}

func (h *Handler) listCocktails(w http.ResponseWriter, r *http.Request) {
	filter, err := parseAlcoholic(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := h.available(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) cocktailIngredients(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid cocktail id")
		return
	}
	plan, err := h.menu.Resolve(r.Context(), id)
	if errors.Is(err, model.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	short, err := h.checker.Shortages(r.Context(), plan)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"cocktail":  h.view(plan),
		"available": len(short) == 0,
		"shortages": short,
	})
}

// IngredientStatus is one row of GET /api/ingredients.
type IngredientStatus struct {
	model.Ingredient
	Liquid bool `json:"is_liquid"`
}

func (h *Handler) ingredientsStatus(ctx context.Context) ([]IngredientStatus, error) {
	ings, err := h.inventory.Ingredients(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]IngredientStatus, 0, len(ings))
	for _, ing := range ings {
		out = append(out, IngredientStatus{Ingredient: ing, Liquid: ing.IsLiquid()})
	}
	return out, nil
}

func (h *Handler) listIngredients(w http.ResponseWriter, r *http.Request) {
	out, err := h.ingredientsStatus(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type levelRequest struct {
	IngredientID *int     `json:"ingredient_id"`
	Level        *float64 `json:"level"`
	Amount       *float64 `json:"amount"`
}

func decode(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (h *Handler) setLevel(w http.ResponseWriter, r *http.Request) {
	var req levelRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.IngredientID == nil || req.Level == nil {
		writeError(w, http.StatusBadRequest, "ingredient_id and level are required")
		return
	}
	if *req.Level < 0 {
		writeError(w, http.StatusBadRequest, "level must not be negative")
		return
	}
	ing, err := h.inventory.SetLevel(r.Context(), *req.IngredientID, *req.Level)
	switch {
	case errors.Is(err, model.ErrNotFound), errors.Is(err, model.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"ingredient_id": ing.ID,
		"new_level":     ing.LevelML,
		"message":       fmt.Sprintf("%s set to %gml", ing.Name, ing.LevelML),
	})
}

func (h *Handler) refill(w http.ResponseWriter, r *http.Request) {
	var req levelRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.IngredientID == nil || req.Amount == nil {
		writeError(w, http.StatusBadRequest, "ingredient_id and amount are required")
		return
	}
	ing, err := h.inventory.AdjustLevel(r.Context(), *req.IngredientID, *req.Amount)
	switch {
	case errors.Is(err, model.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, model.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"ingredient_id": ing.ID,
		"added_amount":  *req.Amount,
		"new_level":     ing.LevelML,
		"message":       fmt.Sprintf("%s: %+gml", ing.Name, *req.Amount),
	})
}

func (h *Handler) refillAll(w http.ResponseWriter, r *http.Request) {
	var req levelRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	level := h.opts.RefillAllDefaultML
	if req.Level != nil {
		level = *req.Level
	}
	if level < 0 {
		writeError(w, http.StatusBadRequest, "level must be a positive number")
		return
	}
	n, err := h.inventory.BulkSetLevel(r.Context(), level)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if n == 0 {
		writeError(w, http.StatusNotFound, "no ingredients found")
		return
	}
	status, err := h.ingredientsStatus(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":            true,
		"level_set":          level,
		"updated_count":      n,
		"ingredients_status": status,
		"message":            fmt.Sprintf("all %d ingredients set to %gml", n, level),
	})
}

func (h *Handler) order(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CocktailID *int `json:"cocktail_id"`
	}
	if err := decode(r, &req); err != nil || req.CocktailID == nil {
		writeError(w, http.StatusBadRequest, "cocktail_id is required")
		return
	}
	if h.opts.OrderLimiter != nil && !h.opts.OrderLimiter.Allow() {
		writeError(w, http.StatusTooManyRequests, "too many orders")
		return
	}
	order, err := h.mixer.StartMix(r.Context(), *req.CocktailID)
	if err != nil {
		h.orderError(w, err)
		return
	}
	plan := order.Plan
	glass := plan.ServingML
	if glass <= 0 {
		glass = h.opts.GlassSizeML
	}
	resp := map[string]any{
		"status":             "mixing",
		"job_id":             order.JobID,
		"cocktail":           plan.Name,
		"alkoholisch":        plan.Alcoholic,
		"volume":             fmt.Sprintf("%gml", glass),
		"liquid_ingredients": plan.Liquid,
		"manual_steps":       plan.Manual,
	}
	if plan.RequiresManualSteps() {
		resp["message"] = "Mixing. Please add the following by hand:"
		resp["instructions"] = order.Instructions
	}
	writeJSON(w, http.StatusAccepted, resp)
}

func (h *Handler) orderError(w http.ResponseWriter, err error) {
	var ue *mixing.UnavailableError
	switch {
	case errors.As(err, &ue):
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "cocktail not available", "shortages": ue.Shortages})
	case errors.Is(err, mixing.ErrCocktailUnavailable):
		writeError(w, http.StatusBadRequest, "cocktail not available")
	case errors.Is(err, mixing.ErrBusy), errors.Is(err, mixing.ErrClosed):
		w.Header().Set("Retry-After", "30")
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		h.log.Errorf("order failed: %v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	all, err := h.available(r.Context(), nil)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	alcoholic := 0
	for _, c := range all {
		if c.Alcoholic {
			alcoholic++
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"is_mixing":               h.mixer.IsMixing(),
		"total_cocktails":         len(all),
		"alcoholic_cocktails":     alcoholic,
		"non_alcoholic_cocktails": len(all) - alcoholic,
	})
}

func (h *Handler) testPump(w http.ResponseWriter, r *http.Request) {
	ch, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid pump id")
		return
	}
	err = h.tester.TestChannel(r.Context(), ch, h.opts.TestDuration)
	resp := map[string]any{"success": err == nil, "pump_id": ch}
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, resp)
	case errors.Is(err, model.ErrInvalidChannel):
		resp["error"] = err.Error()
		writeJSON(w, http.StatusBadRequest, resp)
	case errors.Is(err, actuation.ErrChannelBusy):
		resp["error"] = err.Error()
		writeJSON(w, http.StatusConflict, resp)
	default:
		resp["error"] = err.Error()
		writeJSON(w, http.StatusInternalServerError, resp)
	}
}

func (h *Handler) listJobs(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.mixer.Jobs())
}

func (h *Handler) getJob(w http.ResponseWriter, r *http.Request) {
	j, ok := h.mixer.Job(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, j)
}
