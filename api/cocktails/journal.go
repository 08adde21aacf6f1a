package cocktails

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/kilianp07/mixbot/core/mixing"
	"github.com/kilianp07/mixbot/core/mixing/journal"
)

// NewJournalHandler exposes finished mix jobs via GET /api/journal.
// Supported filters: start, end (RFC3339), job_id, cocktail_id and state.
func NewJournalHandler(store journal.Store) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := journal.Query{}
		params := r.URL.Query()
		if s := params.Get("start"); s != "" {
			if t, err := time.Parse(time.RFC3339, s); err == nil {
				q.Start = t
			}
		}
		if s := params.Get("end"); s != "" {
			if t, err := time.Parse(time.RFC3339, s); err == nil {
				q.End = t
			}
		}
		q.JobID = params.Get("job_id")
		if s := params.Get("cocktail_id"); s != "" {
			id, err := strconv.Atoi(s)
			if err != nil {
				http.Error(w, "invalid cocktail_id", http.StatusBadRequest)
				return
			}
			q.CocktailID = id
		}
		if s := params.Get("state"); s != "" {
			var st mixing.JobState
			if err := st.UnmarshalText([]byte(s)); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			q.State = st.String()
		}
		records, err := store.Query(r.Context(), q)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if records == nil {
			records = []journal.Record{}
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(records); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}
