package export

import (
	"encoding/json"
	"fmt"

	"github.com/rickgao/chartflow/internal/model"
)

// Row is one unified event in columnar form.
type Row struct {
	RunID         string  `json:"run_id" parquet:"run_id,dict"`
	Day           string  `json:"day" parquet:"day,dict"`
	BucketT       float64 `json:"bucket_t" parquet:"bucket_t"`
	T             float64 `json:"t" parquet:"t"`
	Symbol        string  `json:"sym" parquet:"sym,dict"`
	Type          string  `json:"type" parquet:"type,dict"`
	Discriminator string  `json:"disc,omitempty" parquet:"disc,optional"`
	BarIndex      int64   `json:"i" parquet:"i"`
	Source        string  `json:"chart" parquet:"chart,dict"`
	Payload       string  `json:"payload" parquet:"payload"`
}

// Rows converts unified events. Events without a bucket time use their own
// timestamp.
func Rows(runID, day string, events []model.Event) ([]Row, error) {
	rows := make([]Row, 0, len(events))
	for _, ev := range events {
		if ev.Payload == nil {
			return nil, fmt.Errorf("%s event at %v: %w", ev.Symbol, ev.Timestamp, model.ErrNilPayload)
		}
		payload, err := json.Marshal(ev.Payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", ev.Type(), err)
		}
		bucket := ev.Timestamp
		if ev.BucketT != nil {
			bucket = *ev.BucketT
		}
		rows = append(rows, Row{
			RunID:         runID,
			Day:           day,
			BucketT:       bucket,
			T:             ev.Timestamp,
			Symbol:        ev.Symbol,
			Type:          string(ev.Type()),
			Discriminator: ev.Discriminator(),
			BarIndex:      int64(ev.BarIndex),
			Source:        ev.SourceID,
			Payload:       string(payload),
		})
	}
	return rows, nil
}
