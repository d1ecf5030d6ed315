// Package httpgateway implements the Gateway interface against the factory
// backend's REST API.
//
// The backend is loose with its list payloads: some endpoints wrap results in
// a {"total": n, "data": [...]} envelope, some return a bare array, and some
// return an object on error paths. Lists are unwrapped accordingly and any
// payload that is not a list decodes as empty, so a misbehaving endpoint
// degrades to "no data" instead of poisoning a snapshot pass.
package httpgateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/luno/jettison/errors"
	"github.com/luno/jettison/j"

	"github.com/andrewwormald/floortrack"
)

func New(baseURL string, opts ...Option) *Gateway {
	g := &Gateway{
		baseURL: baseURL,
		client:  &http.Client{Timeout: time.Second * 10},
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

var _ floortrack.Gateway = (*Gateway)(nil)

type Gateway struct {
	baseURL string
	token   string
	client  *http.Client
}

type Option func(*Gateway)

func WithToken(token string) Option {
	return func(g *Gateway) { g.token = token }
}

func WithClient(client *http.Client) Option {
	return func(g *Gateway) { g.client = client }
}

func (g *Gateway) ListWorkOrders(ctx context.Context) ([]floortrack.WorkOrder, error) {
	var ws []workOrder
	err := g.getList(ctx, "/workorders", &ws)
	if err != nil {
		return nil, err
	}

	out := make([]floortrack.WorkOrder, 0, len(ws))
	for _, w := range ws {
		out = append(out, floortrack.WorkOrder{
			ID:           w.ID,
			ProductCode:  w.ProductCode,
			LotNo:        w.LotNo,
			Qty:          w.Qty,
			ProducedQty:  w.ProducedQty,
			PlannedStart: w.PlannedStart.time(),
			PlannedEnd:   w.PlannedEnd.time(),
			MachineID:    w.MachineID,
		})
	}

	return out, nil
}

func (g *Gateway) ListStages(ctx context.Context, workOrderID int64) ([]floortrack.Stage, error) {
	var ss []stage
	err := g.getList(ctx, fmt.Sprintf("/workorders/%d/stages", workOrderID), &ss)
	if err != nil {
		return nil, err
	}

	out := make([]floortrack.Stage, 0, len(ss))
	for i, s := range ss {
		seq := s.Seq
		if seq == 0 {
			// The backend omits sequence numbers; list order is authoritative.
			seq = i + 1
		}
		out = append(out, floortrack.Stage{
			ID:           s.ID,
			WorkOrderID:  s.WorkOrderID,
			Name:         s.StageName,
			Seq:          seq,
			PlannedStart: s.PlannedStart.time(),
			PlannedEnd:   s.PlannedEnd.time(),
			ActualStart:  s.ActualStart.time(),
			ActualEnd:    s.ActualEnd.time(),
			Status:       floortrack.StageStatus(s.Status),
			PausedAt:     s.PausedAt.time(),
		})
	}

	return out, nil
}

func (g *Gateway) ListMachines(ctx context.Context) ([]floortrack.Machine, error) {
	var ms []machine
	err := g.getList(ctx, "/machines", &ms)
	if err != nil {
		return nil, err
	}

	out := make([]floortrack.Machine, 0, len(ms))
	for _, m := range ms {
		out = append(out, floortrack.Machine{
			ID:       m.ID,
			Name:     m.Name,
			Type:     m.MachineType,
			Location: m.Location,
			Status:   floortrack.MachineStatus(m.Status),
		})
	}

	return out, nil
}

func (g *Gateway) ListReadings(ctx context.Context, machineID int64, limit int) ([]floortrack.Reading, error) {
	var rs []reading
	err := g.getList(ctx, fmt.Sprintf("/machines/%d/readings?limit=%d", machineID, limit), &rs)
	if err != nil {
		return nil, err
	}

	out := make([]floortrack.Reading, 0, len(rs))
	for _, r := range rs {
		out = append(out, floortrack.Reading{
			ID:        r.ID,
			MachineID: r.MachineID,
			Type:      r.ReadingType,
			Value:     string(r.Value),
			Timestamp: r.Timestamp.time(),
		})
	}

	return out, nil
}

func (g *Gateway) ListIssues(ctx context.Context) ([]floortrack.Issue, error) {
	var is []issue
	err := g.getList(ctx, "/issues", &is)
	if err != nil {
		return nil, err
	}

	out := make([]floortrack.Issue, 0, len(is))
	for _, i := range is {
		out = append(out, floortrack.Issue{
			ID:          i.ID,
			StageID:     i.WorkOrderStageID,
			Type:        i.Type,
			Description: i.Description,
			Status:      floortrack.IssueStatus(i.Status),
			CreatedAt:   i.CreatedAt.time(),
		})
	}

	return out, nil
}

func (g *Gateway) ListProducts(ctx context.Context) ([]floortrack.Product, error) {
	var ps []product
	err := g.getList(ctx, "/products", &ps)
	if err != nil {
		return nil, err
	}

	out := make([]floortrack.Product, 0, len(ps))
	for _, p := range ps {
		code := p.Code
		if code == "" {
			code = p.ProductCode
		}
		out = append(out, floortrack.Product{
			ID:   p.ID,
			Code: code,
			Name: p.Name,
		})
	}

	return out, nil
}

func (g *Gateway) ListMolds(ctx context.Context) ([]floortrack.Mold, error) {
	var ms []mold
	err := g.getList(ctx, "/molds", &ms)
	if err != nil {
		return nil, err
	}

	out := make([]floortrack.Mold, 0, len(ms))
	for _, m := range ms {
		name := m.Name
		if name == "" {
			name = m.MoldNo
		}
		out = append(out, floortrack.Mold{
			ID:        m.ID,
			ProductID: m.ProductID,
			Name:      name,
		})
	}

	return out, nil
}

func (g *Gateway) StartStage(ctx context.Context, stageID int64) error {
	return g.post(ctx, fmt.Sprintf("/stages/%d/start", stageID), nil, nil)
}

func (g *Gateway) DoneStage(ctx context.Context, stageID int64) error {
	return g.post(ctx, fmt.Sprintf("/stages/%d/done", stageID), nil, nil)
}

func (g *Gateway) PauseStage(ctx context.Context, stageID int64) error {
	return g.post(ctx, fmt.Sprintf("/stages/%d/pause", stageID), nil, nil)
}

func (g *Gateway) ResumeStage(ctx context.Context, stageID int64) error {
	return g.post(ctx, fmt.Sprintf("/stages/%d/resume", stageID), nil, nil)
}

func (g *Gateway) ReportIssue(ctx context.Context, stageID int64, issueType, description string) (int64, error) {
	req := struct {
		Type        string `json:"type"`
		Description string `json:"description"`
	}{
		Type:        issueType,
		Description: description,
	}

	var resp struct {
		ID int64 `json:"id"`
	}
	err := g.post(ctx, fmt.Sprintf("/stages/%d/issue", stageID), req, &resp)
	if err != nil {
		return 0, err
	}

	return resp.ID, nil
}

// getList fetches path and decodes a list payload into out (a pointer to a
// slice), unwrapping the {"total", "data"} envelope when present. Payloads
// that are neither an envelope nor an array leave out empty.
func (g *Gateway) getList(ctx context.Context, path string, out any) error {
	body, err := g.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}

	var envelope struct {
		Total *int            `json:"total"`
		Data  json.RawMessage `json:"data"`
	}
	if json.Unmarshal(body, &envelope) == nil && envelope.Data != nil {
		body = envelope.Data
	}

	// NoReturnErr: a non-array payload reads as an empty list.
	_ = json.Unmarshal(body, out)
	return nil
}

func (g *Gateway) post(ctx context.Context, path string, req, resp any) error {
	var payload io.Reader
	if req != nil {
		b, err := json.Marshal(req)
		if err != nil {
			return errors.Wrap(err, "marshal request", j.KV("path", path))
		}
		payload = bytes.NewReader(b)
	}

	body, err := g.do(ctx, http.MethodPost, path, payload)
	if err != nil {
		return err
	}

	if resp != nil {
		// NoReturnErr: the write succeeded; response details are best effort.
		_ = json.Unmarshal(body, resp)
	}

	return nil
}

func (g *Gateway) do(ctx context.Context, method, path string, payload io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, payload)
	if err != nil {
		return nil, errors.Wrap(err, "build request", j.KV("path", path))
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.New().String())
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "request failed", j.KV("path", path))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read response", j.KV("path", path))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.Wrap(floortrack.ErrGatewayStatus, "",
			j.KV("path", path),
			j.KV("status", resp.StatusCode),
		)
	}

	return body, nil
}
