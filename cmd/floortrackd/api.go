package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/luno/jettison/errors"

	"github.com/andrewwormald/floortrack"
)

// recordView is the JSON shape served to dashboard consumers.
type recordView struct {
	ID           string            `json:"id"`
	WorkOrderID  int64             `json:"work_order_id"`
	MachineID    int64             `json:"machine_id"`
	MachineName  string            `json:"machine_name"`
	OperatorID   string            `json:"operator_id,omitempty"`
	OperatorName string            `json:"operator_name,omitempty"`
	ProductName  string            `json:"product_name"`
	MoldID       int64             `json:"mold_id,omitempty"`
	StartTime    *time.Time        `json:"start_time,omitempty"`
	EndTime      *time.Time        `json:"end_time,omitempty"`
	PartCount    int               `json:"part_count"`
	TargetCount  int               `json:"target_count"`
	CycleTime    int               `json:"cycle_time"`
	HourlyOutput int               `json:"hourly_output"`
	Status       string            `json:"status"`
	Stages       []stageView       `json:"stages"`
	Issue        string            `json:"issue,omitempty"`
	PausedAt     *time.Time        `json:"paused_at,omitempty"`
	Readings     map[string]string `json:"readings,omitempty"`
	Version      int64             `json:"version"`
}

type stageView struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	Seq       int        `json:"seq"`
	Status    string     `json:"status"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

func toView(r *floortrack.ProductionRecord) recordView {
	stages := make([]stageView, 0, len(r.Stages))
	for _, s := range r.Stages {
		stages = append(stages, stageView{
			ID:        s.ID,
			Name:      s.Name,
			Seq:       s.Seq,
			Status:    string(s.Status),
			StartedAt: optional(s.StartedAt),
			EndedAt:   optional(s.EndedAt),
		})
	}

	return recordView{
		ID:           r.ID,
		WorkOrderID:  r.WorkOrderID,
		MachineID:    r.MachineID,
		MachineName:  r.MachineName,
		OperatorID:   r.OperatorID,
		OperatorName: r.OperatorName,
		ProductName:  r.ProductName,
		MoldID:       r.MoldID,
		StartTime:    optional(r.StartTime),
		EndTime:      optional(r.EndTime),
		PartCount:    r.PartCount,
		TargetCount:  r.TargetCount,
		CycleTime:    r.CycleTime,
		HourlyOutput: r.HourlyOutput(),
		Status:       r.Status.String(),
		Stages:       stages,
		Issue:        r.Issue,
		PausedAt:     optional(r.PausedAt),
		Readings:     r.Readings,
		Version:      r.Version,
	}
}

func optional(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func listRecords(tracker *floortrack.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var (
			records []*floortrack.ProductionRecord
			err     error
		)
		if req.URL.Query().Get("active") == "true" {
			records, err = tracker.ActiveRecords(req.Context())
		} else {
			records, err = tracker.Records(req.Context())
		}
		if errors.Is(err, floortrack.ErrStoreNotInitialised) {
			// NoReturnErr: nothing reconciled yet, serve an empty list.
			records = nil
		} else if err != nil {
			writeError(w, err)
			return
		}

		views := make([]recordView, 0, len(records))
		for _, r := range records {
			views = append(views, toView(r))
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"total": len(views),
			"data":  views,
		})
	}
}

func getRecord(tracker *floortrack.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		record, err := tracker.Lookup(req.Context(), mux.Vars(req)["id"])
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toView(record))
	}
}

func reportIssue(tracker *floortrack.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Description string `json:"description"`
		}
		err := json.NewDecoder(req.Body).Decode(&body)
		if err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}

		err = tracker.ReportIssue(req.Context(), mux.Vars(req)["id"], body.Description)
		if err != nil {
			writeError(w, err)
			return
		}

		w.WriteHeader(http.StatusAccepted)
	}
}

func resumeProduction(tracker *floortrack.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := tracker.ResumeProduction(req.Context(), mux.Vars(req)["id"])
		if err != nil {
			writeError(w, err)
			return
		}

		w.WriteHeader(http.StatusAccepted)
	}
}

func refreshNow(tracker *floortrack.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := tracker.RefreshNow(req.Context())
		if err != nil {
			writeError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, floortrack.ErrRecordNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, floortrack.ErrEmptyDescription),
		errors.Is(err, floortrack.ErrNoReportableStage),
		errors.Is(err, floortrack.ErrNoResumableStage):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, floortrack.ErrStoreNotInitialised):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// NoReturnErr: header already written.
	_ = json.NewEncoder(w).Encode(v)
}
