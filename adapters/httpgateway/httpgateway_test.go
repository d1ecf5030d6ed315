package httpgateway_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/luno/jettison/errors"
	"github.com/stretchr/testify/require"

	"github.com/andrewwormald/floortrack"
	"github.com/andrewwormald/floortrack/adapters/httpgateway"
)

func TestListWorkOrdersEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/workorders", r.URL.Path)
		require.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		require.NotEmpty(t, r.Header.Get("X-Request-ID"))

		_, _ = w.Write([]byte(`{
			"total": 1,
			"data": [{
				"id": 9,
				"product_code": "P-100",
				"lot_no": "L-7",
				"qty": 80,
				"produced_qty": 12,
				"planned_start": "2026-08-31T08:00:00",
				"machine_id": 3
			}]
		}`))
	}))
	defer srv.Close()

	g := httpgateway.New(srv.URL, httpgateway.WithToken("tok-123"))

	wos, err := g.ListWorkOrders(context.Background())
	require.NoError(t, err)
	require.Len(t, wos, 1)
	require.Equal(t, floortrack.WorkOrder{
		ID:           9,
		ProductCode:  "P-100",
		LotNo:        "L-7",
		Qty:          80,
		ProducedQty:  12,
		PlannedStart: time.Date(2026, time.August, 31, 8, 0, 0, 0, time.UTC),
		MachineID:    3,
	}, wos[0])
}

func TestListWorkOrdersBareArray(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id": 1, "product_code": "P-100"}]`))
	}))
	defer srv.Close()

	wos, err := httpgateway.New(srv.URL).ListWorkOrders(context.Background())
	require.NoError(t, err)
	require.Len(t, wos, 1)
	require.Equal(t, int64(1), wos[0].ID)
}

func TestNonArrayPayloadReadsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"detail": "unexpected shape"}`))
	}))
	defer srv.Close()

	wos, err := httpgateway.New(srv.URL).ListWorkOrders(context.Background())
	require.NoError(t, err)
	require.Empty(t, wos)
}

func TestErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := httpgateway.New(srv.URL).ListWorkOrders(context.Background())
	require.True(t, errors.Is(err, floortrack.ErrGatewayStatus))
}

func TestListStagesSeqFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/workorders/9/stages", r.URL.Path)
		_, _ = w.Write([]byte(`[
			{"id": 21, "work_order_id": 9, "stage_name": "Injection", "status": "in_progress", "actual_start": "2026-08-31T08:00:00Z"},
			{"id": 22, "work_order_id": 9, "stage_name": "Inspection", "status": "planned", "paused_at": null}
		]`))
	}))
	defer srv.Close()

	stages, err := httpgateway.New(srv.URL).ListStages(context.Background(), 9)
	require.NoError(t, err)
	require.Len(t, stages, 2)
	require.Equal(t, 1, stages[0].Seq)
	require.Equal(t, 2, stages[1].Seq)
	require.Equal(t, floortrack.StageInProgress, stages[0].Status)
	require.False(t, stages[0].ActualStart.IsZero())
	require.True(t, stages[1].PausedAt.IsZero())
}

func TestListReadingsNumericValues(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/machines/3/readings", r.URL.Path)
		require.Equal(t, "10", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`[
			{"id": 1, "machine_id": 3, "reading_type": "mold_temp", "value": 184.5},
			{"id": 2, "machine_id": 3, "reading_type": "material", "value": "PP-H"}
		]`))
	}))
	defer srv.Close()

	readings, err := httpgateway.New(srv.URL).ListReadings(context.Background(), 3, 10)
	require.NoError(t, err)
	require.Len(t, readings, 2)
	require.Equal(t, "184.5", readings[0].Value)
	require.Equal(t, "PP-H", readings[1].Value)
}

func TestReportIssue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/stages/21/issue", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "machine_stop", body["type"])
		require.Equal(t, "material jam", body["description"])

		_, _ = w.Write([]byte(`{"id": 42}`))
	}))
	defer srv.Close()

	id, err := httpgateway.New(srv.URL).ReportIssue(context.Background(), 21, "machine_stop", "material jam")
	require.NoError(t, err)
	require.Equal(t, int64(42), id)
}

func TestStageVerbs(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		paths = append(paths, r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	ctx := context.Background()
	g := httpgateway.New(srv.URL)
	require.NoError(t, g.StartStage(ctx, 1))
	require.NoError(t, g.DoneStage(ctx, 1))
	require.NoError(t, g.PauseStage(ctx, 1))
	require.NoError(t, g.ResumeStage(ctx, 1))

	require.Equal(t, []string{
		"/stages/1/start",
		"/stages/1/done",
		"/stages/1/pause",
		"/stages/1/resume",
	}, paths)
}
