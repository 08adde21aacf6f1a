// Package export writes mix journal records for spreadsheets and scripts.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"time"

	"github.com/kilianp07/mixbot/core/mixing/journal"
)

// WriteJSON writes the records to w as one JSON array.
func WriteJSON(w io.Writer, records []journal.Record) error {
	if records == nil {
		records = []journal.Record{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

// WriteCSV writes one row per channel of every record, so a job pouring
// three liquids yields three rows. Jobs without liquids get a single row.
func WriteCSV(w io.Writer, records []journal.Record) error {
	cw := csv.NewWriter(w)
	header := []string{"timestamp", "job_id", "cocktail_id", "cocktail", "state", "pump_id", "ingredient", "amount_ml", "committed_ml", "error"}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range records {
		base := []string{
			r.Timestamp.Format(time.RFC3339),
			r.JobID,
			strconv.Itoa(r.CocktailID),
			r.Cocktail,
			r.State,
		}
		if len(r.Channels) == 0 {
			if err := cw.Write(append(base, "", "", "", "", r.Error)); err != nil {
				return err
			}
			continue
		}
		for _, ch := range r.Channels {
			row := append(append([]string(nil), base...),
				strconv.Itoa(ch.Channel),
				ch.Ingredient,
				strconv.FormatFloat(ch.AmountML, 'f', -1, 64),
				strconv.FormatFloat(ch.CommittedML, 'f', -1, 64),
				ch.Error,
			)
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}
