package httpgateway

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

type workOrder struct {
	ID           int64     `json:"id"`
	ProductCode  string    `json:"product_code"`
	LotNo        string    `json:"lot_no"`
	Qty          int       `json:"qty"`
	ProducedQty  int       `json:"produced_qty"`
	PlannedStart timestamp `json:"planned_start"`
	PlannedEnd   timestamp `json:"planned_end"`
	MachineID    int64     `json:"machine_id"`
}

type stage struct {
	ID           int64     `json:"id"`
	WorkOrderID  int64     `json:"work_order_id"`
	StageName    string    `json:"stage_name"`
	Seq          int       `json:"seq"`
	PlannedStart timestamp `json:"planned_start"`
	PlannedEnd   timestamp `json:"planned_end"`
	ActualStart  timestamp `json:"actual_start"`
	ActualEnd    timestamp `json:"actual_end"`
	Status       string    `json:"status"`
	PausedAt     timestamp `json:"paused_at"`
}

type machine struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	MachineType string `json:"machine_type"`
	Location    string `json:"location"`
	Status      string `json:"status"`
}

type reading struct {
	ID          int64      `json:"id"`
	MachineID   int64      `json:"machine_id"`
	ReadingType string     `json:"reading_type"`
	Value       flexString `json:"value"`
	Timestamp   timestamp  `json:"timestamp"`
}

type issue struct {
	ID               int64     `json:"id"`
	WorkOrderStageID int64     `json:"work_order_stage_id"`
	Type             string    `json:"type"`
	Description      string    `json:"description"`
	Status           string    `json:"status"`
	CreatedAt        timestamp `json:"created_at"`
}

type product struct {
	ID          int64  `json:"id"`
	Code        string `json:"code"`
	ProductCode string `json:"product_code"`
	Name        string `json:"name"`
}

type mold struct {
	ID        int64  `json:"id"`
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	MoldNo    string `json:"mold_no"`
}

// timestamp decodes the backend's timestamps, which arrive either as RFC 3339
// or as a bare "2006-01-02T15:04:05" without offset (treated as UTC). Null,
// empty and unparseable values decode to the zero time.
type timestamp struct {
	t time.Time
}

func (ts *timestamp) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}

	var s string
	if json.Unmarshal(b, &s) != nil || s == "" {
		return nil
	}

	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		t, err := time.Parse(layout, s)
		if err == nil {
			ts.t = t
			return nil
		}
	}

	// NoReturnErr: an unparseable timestamp reads as unset.
	return nil
}

func (ts timestamp) time() time.Time {
	return ts.t
}

// flexString decodes a JSON string or number into a string, since machine
// readings report numeric values without a consistent type.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	var s string
	if json.Unmarshal(b, &s) == nil {
		*f = flexString(s)
		return nil
	}

	var n float64
	if json.Unmarshal(b, &n) == nil {
		*f = flexString(strconv.FormatFloat(n, 'f', -1, 64))
		return nil
	}

	return nil
}
