package cocktails

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/kilianp07/mixbot/core/actuation"
	"github.com/kilianp07/mixbot/core/availability"
	"github.com/kilianp07/mixbot/core/inventory"
	"github.com/kilianp07/mixbot/core/mixing"
	"github.com/kilianp07/mixbot/core/mixing/journal"
	"github.com/kilianp07/mixbot/core/model"
	"github.com/kilianp07/mixbot/core/recipe"
)

type fakeMixer struct {
	mu     sync.Mutex
	err    error
	plans  *recipe.Resolver
	orders []int
	mixing bool
	jobs   map[string]mixing.Job
}

func (f *fakeMixer) StartMix(ctx context.Context, id int) (mixing.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return mixing.Order{}, f.err
	}
	plan, err := f.plans.Resolve(ctx, id)
	if err != nil {
		return mixing.Order{}, err
	}
	f.orders = append(f.orders, id)
	return mixing.Order{JobID: "job-1", Plan: plan, Instructions: plan.Instructions()}, nil
}

func (f *fakeMixer) fail(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func (f *fakeMixer) accepted() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.orders)
}

func (f *fakeMixer) Job(id string) (mixing.Job, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[id]
	return j, ok
}

func (f *fakeMixer) Jobs() []mixing.Job {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []mixing.Job{}
	for _, j := range f.jobs {
		out = append(out, j)
	}
	return out
}

func (f *fakeMixer) IsMixing() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mixing
}

type fakeTester struct {
	mu       sync.Mutex
	err      error
	channel  int
	duration time.Duration
}

func (f *fakeTester) TestChannel(_ context.Context, ch int, d time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channel, f.duration = ch, d
	return f.err
}

func (f *fakeTester) fail(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

type memJournal struct{ recs []journal.Record }

func (m *memJournal) Append(_ context.Context, r journal.Record) error {
	m.recs = append(m.recs, r)
	return nil
}

func (m *memJournal) Query(_ context.Context, q journal.Query) ([]journal.Record, error) {
	var out []journal.Record
	for _, r := range m.recs {
		if q.Match(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memJournal) Close() error { return nil }

type env struct {
	srv     *httptest.Server
	store   *inventory.MemoryStore
	mixer   *fakeMixer
	tester  *fakeTester
	journal *memJournal
}

func newEnv(t *testing.T, opts Options) *env {
	t.Helper()
	store, err := inventory.NewMemoryStore([]model.Ingredient{
		{ID: 1, Name: "Cola", Kind: model.KindLiquid, LevelML: 1000, Channel: model.ChannelPtr(0)},
		{ID: 2, Name: "Havana", Kind: model.KindLiquid, LevelML: 500, Channel: model.ChannelPtr(9)},
		{ID: 3, Name: "Limette", Kind: model.KindManual},
		{ID: 4, Name: "Maracujasaft", Kind: model.KindLiquid, LevelML: 100, Channel: model.ChannelPtr(3)},
	}, inventory.Options{})
	require.NoError(t, err)
	book, err := recipe.NewMemoryBook([]model.Recipe{
		{ID: 1, Name: "Cuba Libre", Alcoholic: true, ServingML: 350, Amounts: map[int]float64{1: 120, 2: 40, 3: 1}},
		{ID: 2, Name: "Zitronenlimo", ServingML: 350, Amounts: map[int]float64{1: 200}},
		{ID: 3, Name: "Maracuja Schorle", ServingML: 350, Amounts: map[int]float64{4: 150}},
	})
	require.NoError(t, err)
	res := recipe.NewResolver(book, store, recipe.DefaultInstructions())
	e := &env{
		store:   store,
		mixer:   &fakeMixer{plans: res, jobs: map[string]mixing.Job{}},
		tester:  &fakeTester{},
		journal: &memJournal{},
	}
	h := NewHandler(res, availability.NewEvaluator(store), store, e.mixer, e.tester, e.journal, opts, nil)
	e.srv = httptest.NewServer(h)
	t.Cleanup(e.srv.Close)
	return e
}

func (e *env) do(t *testing.T, method, path, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, e.srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func (e *env) list(t *testing.T, path string) []map[string]any {
	t.Helper()
	resp, err := http.Get(e.srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestListCocktailsOnlyAvailable(t *testing.T) {
	e := newEnv(t, Options{})
	got := e.list(t, "/api/cocktails")
	require.Len(t, got, 2)
	names := []string{got[0]["name"].(string), got[1]["name"].(string)}
	assert.ElementsMatch(t, []string{"Cuba Libre", "Zitronenlimo"}, names)

	for _, c := range got {
		if c["name"] == "Cuba Libre" {
			assert.Equal(t, "../images/Cuba Libre.png", c["image_path"])
			assert.Equal(t, true, c["requires_manual_steps"])
			assert.Equal(t, float64(350), c["glass_size_ml"])
			assert.Equal(t, true, c["alkoholisch"])
		}
	}
}

func TestListCocktailsFilter(t *testing.T) {
	e := newEnv(t, Options{ImageDir: "/static"})
	got := e.list(t, "/api/cocktails?alkoholisch=false")
	require.Len(t, got, 1)
	assert.Equal(t, "Zitronenlimo", got[0]["name"])
	assert.Equal(t, "/static/Zitronenlimo.png", got[0]["image_path"])

	got = e.list(t, "/api/cocktails?alcoholic=true")
	require.Len(t, got, 1)
	assert.Equal(t, "Cuba Libre", got[0]["name"])

	resp, _ := e.do(t, http.MethodGet, "/api/cocktails?alcoholic=maybe", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCocktailIngredientsReportsShortages(t *testing.T) {
	e := newEnv(t, Options{})
	resp, body := e.do(t, http.MethodGet, "/api/cocktails/3/ingredients", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["available"])
	short := body["shortages"].([]any)
	require.Len(t, short, 1)
	assert.Equal(t, float64(4), short[0].(map[string]any)["ingredient_id"])

	resp, _ = e.do(t, http.MethodGet, "/api/cocktails/99/ingredients", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestIngredientsStatus(t *testing.T) {
	e := newEnv(t, Options{})
	got := e.list(t, "/api/ingredients")
	require.Len(t, got, 4)
	assert.Equal(t, "Cola", got[0]["ingredient_name"])
	assert.Equal(t, true, got[0]["is_liquid"])
	assert.Equal(t, false, got[2]["is_liquid"])
	assert.Nil(t, got[2]["pump_id"])
}

func TestSetLevel(t *testing.T) {
	e := newEnv(t, Options{})
	resp, body := e.do(t, http.MethodPost, "/api/ingredients/set", `{"ingredient_id":2,"level":750}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(750), body["new_level"])
	lvl, err := e.store.Level(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 750.0, lvl)

	cases := []string{
		`{"ingredient_id":2}`,
		`{"level":10}`,
		`{"ingredient_id":2,"level":-1}`,
		`{"ingredient_id":42,"level":10}`,
		`not json`,
	}
	for _, c := range cases {
		resp, _ := e.do(t, http.MethodPost, "/api/ingredients/set", c)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, c)
	}
}

func TestRefill(t *testing.T) {
	e := newEnv(t, Options{})
	resp, body := e.do(t, http.MethodPost, "/api/ingredients/refill", `{"ingredient_id":1,"amount":250}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(250), body["added_amount"])
	assert.Equal(t, float64(1250), body["new_level"])

	resp, _ = e.do(t, http.MethodPost, "/api/ingredients/refill", `{"ingredient_id":77,"amount":250}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRefillAll(t *testing.T) {
	e := newEnv(t, Options{})
	resp, body := e.do(t, http.MethodPost, "/api/ingredients/refill_all", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(2000), body["level_set"])
	assert.Equal(t, float64(4), body["updated_count"])
	assert.Len(t, body["ingredients_status"], 4)

	resp, body = e.do(t, http.MethodPost, "/api/ingredients/refill_all", `{"level":500}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(500), body["level_set"])

	resp, _ = e.do(t, http.MethodPost, "/api/ingredients/refill_all", `{"level":-3}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestOrderAccepted(t *testing.T) {
	e := newEnv(t, Options{})
	resp, body := e.do(t, http.MethodPost, "/api/order", `{"cocktail_id":1}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "mixing", body["status"])
	assert.Equal(t, "job-1", body["job_id"])
	assert.Equal(t, "Cuba Libre", body["cocktail"])
	assert.Equal(t, "350ml", body["volume"])
	assert.Len(t, body["liquid_ingredients"], 2)
	assert.Len(t, body["manual_steps"], 1)
	assert.Len(t, body["instructions"], 1)

	resp, body = e.do(t, http.MethodPost, "/api/order", `{"cocktail_id":2}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	_, ok := body["instructions"]
	assert.False(t, ok, "no instructions without manual steps")
}

func TestOrderErrors(t *testing.T) {
	e := newEnv(t, Options{})
	resp, _ := e.do(t, http.MethodPost, "/api/order", `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	e.mixer.fail(&mixing.UnavailableError{CocktailID: 3, Cocktail: "Maracuja Schorle", Shortages: []availability.Shortage{{IngredientID: 4, RequiredML: 150, AvailableML: 100}}})
	resp, body := e.do(t, http.MethodPost, "/api/order", `{"cocktail_id":3}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Len(t, body["shortages"], 1)

	e.mixer.fail(fmt.Errorf("%w: %w", mixing.ErrCocktailUnavailable, model.ErrNotFound))
	resp, _ = e.do(t, http.MethodPost, "/api/order", `{"cocktail_id":99}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	e.mixer.fail(mixing.ErrBusy)
	resp, _ = e.do(t, http.MethodPost, "/api/order", `{"cocktail_id":1}`)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "30", resp.Header.Get("Retry-After"))
}

func TestOrderThrottled(t *testing.T) {
	e := newEnv(t, Options{OrderLimiter: rate.NewLimiter(rate.Every(time.Hour), 1)})
	resp, _ := e.do(t, http.MethodPost, "/api/order", `{"cocktail_id":2}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	resp, _ = e.do(t, http.MethodPost, "/api/order", `{"cocktail_id":2}`)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, 1, e.mixer.accepted())
}

func TestStatus(t *testing.T) {
	e := newEnv(t, Options{})
	e.mixer.mu.Lock()
	e.mixer.mixing = true
	e.mixer.mu.Unlock()
	resp, body := e.do(t, http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["is_mixing"])
	assert.Equal(t, float64(2), body["total_cocktails"])
	assert.Equal(t, float64(1), body["alcoholic_cocktails"])
	assert.Equal(t, float64(1), body["non_alcoholic_cocktails"])
}

func TestTestPump(t *testing.T) {
	e := newEnv(t, Options{TestDuration: 3 * time.Second})
	resp, body := e.do(t, http.MethodPost, "/api/test-pump/4", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(4), body["pump_id"])
	e.tester.mu.Lock()
	assert.Equal(t, 4, e.tester.channel)
	assert.Equal(t, 3*time.Second, e.tester.duration)
	e.tester.mu.Unlock()

	e.tester.fail(fmt.Errorf("channel 40: %w", actuation.ErrInvalidChannel))
	resp, _ = e.do(t, http.MethodPost, "/api/test-pump/40", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	e.tester.fail(fmt.Errorf("channel 4: %w", actuation.ErrChannelBusy))
	resp, body = e.do(t, http.MethodPost, "/api/test-pump/4", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, false, body["success"])

	resp, _ = e.do(t, http.MethodPost, "/api/test-pump/abc", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestJobs(t *testing.T) {
	e := newEnv(t, Options{})
	e.mixer.mu.Lock()
	e.mixer.jobs["abc"] = mixing.Job{ID: "abc", CocktailID: 1, Cocktail: "Cuba Libre", State: mixing.JobDone}
	e.mixer.mu.Unlock()
	resp, body := e.do(t, http.MethodGet, "/api/jobs/abc", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "done", body["state"])

	resp, _ = e.do(t, http.MethodGet, "/api/jobs/nope", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Len(t, e.list(t, "/api/jobs"), 1)
}

func TestJournalQuery(t *testing.T) {
	e := newEnv(t, Options{})
	base := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	e.journal.recs = []journal.Record{
		{Timestamp: base, JobID: "a", CocktailID: 1, State: "done"},
		{Timestamp: base.Add(time.Hour), JobID: "b", CocktailID: 2, State: "partial"},
	}
	assert.Len(t, e.list(t, "/api/journal"), 2)
	got := e.list(t, "/api/journal?state=partial")
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0]["job_id"])
	assert.Len(t, e.list(t, "/api/journal?start="+base.Add(30*time.Minute).Format(time.RFC3339)), 1)
	assert.Len(t, e.list(t, "/api/journal?cocktail_id=1"), 1)

	resp, _ := e.do(t, http.MethodGet, "/api/journal?state=shaken", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestBannerAndCORS(t *testing.T) {
	e := newEnv(t, Options{Version: "1.2.0"})
	resp, body := e.do(t, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "1.2.0", body["version"])
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	resp, _ = e.do(t, http.MethodOptions, "/api/order", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), "POST")
}
