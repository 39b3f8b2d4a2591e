package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/networkearth/fishflow/internal/blob"
	"github.com/networkearth/fishflow/internal/blob/memory"
	"github.com/networkearth/fishflow/internal/catalog"
	"github.com/networkearth/fishflow/internal/dataset"
)

func seed(t *testing.T, store blob.Store, key, payload string) {
	t.Helper()
	if _, err := store.Put(context.Background(), key, strings.NewReader(payload), blob.PutOptions{ContentType: "application/json"}); err != nil {
		t.Fatalf("seed %s: %v", key, err)
	}
}

func testServer(t *testing.T) *Server {
	t.Helper()
	store := memory.New()

	seed(t, store, "movement/sockeye/metadata.json", `{
		"scenario_id": "sockeye",
		"name": "Sockeye Bristol Bay",
		"dates": ["2024-06-10"],
		"maximum_window_size": 7,
		"grid_size": 2
	}`)
	seed(t, store, "movement/sockeye/geometries.geojson", `{"features":[
		{"properties":{"cell_id":0},"geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}},
		{"properties":{"cell_id":1},"geometry":{"type":"Polygon","coordinates":[[[1,1],[2,1],[2,2],[1,1]]]}}
	]}`)
	seed(t, store, "movement/sockeye/habitat.json", `[
		{"date":"2024-06-10","r":0.05,"probability":[0.6,0.4]}
	]`)
	seed(t, store, "movement/sockeye/matrices/2024-06-10.json", `[[0.9,0.1],[0.2,0.8]]`)
	seed(t, store, "movement/sockeye/matrices/2024-06-11.json", `[[1,0],[0,1]]`)

	seed(t, store, "movement/chinook/metadata.json", `{
		"scenario_id": "chinook",
		"name": "Chinook Gulf of Alaska",
		"dates": ["2024-06-10"],
		"maximum_window_size": 40,
		"grid_size": 2
	}`)

	seed(t, store, "depth/halibut/metadata.json", `{
		"scenario_id": "halibut",
		"name": "Pacific Halibut",
		"time_window": ["2024-01-01", "2024-12-31"],
		"grid_size": 3,
		"depth_bins": [0, 25]
	}`)
	seed(t, store, "depth/halibut/max_depths.json", `[25, 0, -1]`)
	seed(t, store, "depth/halibut/occupancy/2024-01/0.json", `{
		"timestamps": ["2024-01-10T06:00:00Z", "2024-01-10T18:00:00Z"],
		"cells": {"0": [0.4, 0.1], "1": [0.2, 0.3]}
	}`)
	seed(t, store, "depth/halibut/occupancy/2024-01/25.json", `{
		"timestamps": ["2024-01-10T06:00:00Z", "2024-01-10T18:00:00Z"],
		"cells": {"0": [0.1, 0.2], "1": [0.05, 0.15]}
	}`)

	data := dataset.New(store, catalog.NewMemoryStore(), nil)
	if _, err := data.Discover(context.Background()); err != nil {
		t.Fatalf("discover: %v", err)
	}
	return New(data, nil, Options{CORSOrigins: []string{"http://localhost:3000"}})
}

func do(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
}

func TestHealth(t *testing.T) {
	s := testServer(t)
	w := do(t, s, http.MethodGet, "/", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]any
	decode(t, w, &body)
	if body["version"] != Version {
		t.Fatalf("body = %v", body)
	}
}

func TestMovementScenariosList(t *testing.T) {
	s := testServer(t)
	w := do(t, s, http.MethodGet, "/v1/movement/scenarios", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var body struct {
		Scenarios []map[string]any `json:"scenarios"`
	}
	decode(t, w, &body)
	if len(body.Scenarios) != 2 {
		t.Fatalf("scenarios = %v", body.Scenarios)
	}
	if body.Scenarios[0]["scenario_id"] != "chinook" || body.Scenarios[1]["scenario_id"] != "sockeye" {
		t.Fatalf("scenarios not id-ascending: %v", body.Scenarios)
	}
}

func TestMovementGeometries(t *testing.T) {
	s := testServer(t)
	w := do(t, s, http.MethodGet, "/v1/movement/scenario/sockeye/geometries", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if w := do(t, s, http.MethodGet, "/v1/movement/scenario/ghost/geometries", nil); w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestMatricesValidation(t *testing.T) {
	s := testServer(t)
	cases := []struct {
		name  string
		query string
		want  int
	}{
		{"missing params", "", http.StatusBadRequest},
		{"malformed date", "?start_date=June-10&end_date=2024-06-11", http.StatusBadRequest},
		{"inverted range", "?start_date=2024-06-11&end_date=2024-06-10", http.StatusBadRequest},
		{"before available", "?start_date=2024-05-01&end_date=2024-06-11", http.StatusBadRequest},
		{"after available", "?start_date=2024-06-10&end_date=2024-07-30", http.StatusBadRequest},
		{"ok", "?start_date=2024-06-10&end_date=2024-06-11", http.StatusOK},
	}
	for _, tc := range cases {
		w := do(t, s, http.MethodGet, "/v1/movement/scenario/sockeye/matrices"+tc.query, nil)
		if w.Code != tc.want {
			t.Fatalf("%s: status = %d, want %d: %s", tc.name, w.Code, tc.want, w.Body.String())
		}
	}
	if w := do(t, s, http.MethodGet, "/v1/movement/scenario/ghost/matrices?start_date=2024-06-10&end_date=2024-06-11", nil); w.Code != http.StatusNotFound {
		t.Fatalf("unknown scenario: status = %d, want 404", w.Code)
	}
	// 62 days inside chinook's validity still exceeds the range cap.
	if w := do(t, s, http.MethodGet, "/v1/movement/scenario/chinook/matrices?start_date=2024-05-15&end_date=2024-07-15", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("oversized range: status = %d, want 400: %s", w.Code, w.Body.String())
	}
}

func TestMatricesResponseSkipsGaps(t *testing.T) {
	s := testServer(t)
	w := do(t, s, http.MethodGet, "/v1/movement/scenario/sockeye/matrices?start_date=2024-06-10&end_date=2024-06-12", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var body struct {
		Matrices []struct {
			Date string `json:"date"`
		} `json:"matrices"`
	}
	decode(t, w, &body)
	if len(body.Matrices) != 2 {
		t.Fatalf("matrices = %v, want the 2 held dates", body.Matrices)
	}
	for _, entry := range body.Matrices {
		if entry.Date == "2024-06-12" {
			t.Fatal("absent date materialized in response")
		}
	}
}

func TestMovementAnalysisForward(t *testing.T) {
	s := testServer(t)
	w := do(t, s, http.MethodPost, "/v1/movement/scenario/sockeye/analysis", map[string]any{
		"direction":  "forward",
		"cells":      []int{0},
		"pivot_date": "2024-06-10",
		"window":     1,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var body struct {
		Results map[string]float64 `json:"results"`
	}
	decode(t, w, &body)
	if body.Results["0"] != 0.9 || body.Results["1"] != 0.1 {
		t.Fatalf("results = %v, want row 0 of the matrix", body.Results)
	}
}

func TestMovementAnalysisMissingData(t *testing.T) {
	s := testServer(t)
	// Window reaches 2024-06-13, which no published matrix covers.
	w := do(t, s, http.MethodPost, "/v1/movement/scenario/sockeye/analysis", map[string]any{
		"direction":  "forward",
		"cells":      []int{0},
		"pivot_date": "2024-06-10",
		"window":     4,
	})
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409: %s", w.Code, w.Body.String())
	}
	var body struct {
		MissingKind string   `json:"missing_kind"`
		MissingKeys []string `json:"missing_keys"`
	}
	decode(t, w, &body)
	if body.MissingKind != "transition matrix" {
		t.Fatalf("missing_kind = %q", body.MissingKind)
	}
	if len(body.MissingKeys) != 2 {
		t.Fatalf("missing_keys = %v, want the 2 unpublished dates", body.MissingKeys)
	}
}

func TestMovementAnalysisValidation(t *testing.T) {
	s := testServer(t)
	cases := []struct {
		name string
		body map[string]any
		want int
	}{
		{"bad direction", map[string]any{"direction": "sideways", "pivot_date": "2024-06-10", "window": 1}, http.StatusBadRequest},
		{"bad pivot", map[string]any{"direction": "forward", "pivot_date": "June 10", "window": 1}, http.StatusBadRequest},
		{"window too large", map[string]any{"direction": "forward", "pivot_date": "2024-06-10", "window": 30}, http.StatusBadRequest},
		{"missing body fields", map[string]any{"direction": "forward"}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		w := do(t, s, http.MethodPost, "/v1/movement/scenario/sockeye/analysis", tc.body)
		if w.Code != tc.want {
			t.Fatalf("%s: status = %d, want %d: %s", tc.name, w.Code, tc.want, w.Body.String())
		}
	}
}

func TestDepthScenariosAndMaxDepths(t *testing.T) {
	s := testServer(t)
	w := do(t, s, http.MethodGet, "/v1/depth/scenarios", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	w = do(t, s, http.MethodGet, "/v1/depth/scenario/halibut/max_depths", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var body struct {
		MaxDepths []int `json:"max_depths"`
	}
	decode(t, w, &body)
	if len(body.MaxDepths) != 3 || body.MaxDepths[2] != -1 {
		t.Fatalf("max_depths = %v", body.MaxDepths)
	}
}

func TestOccupancyChunkValidation(t *testing.T) {
	s := testServer(t)
	cases := []struct {
		name  string
		query string
		want  int
	}{
		{"bad month", "?month=January&depth_bin=0", http.StatusBadRequest},
		{"bad bin", "?month=2024-01&depth_bin=abc", http.StatusBadRequest},
		{"foreign bin", "?month=2024-01&depth_bin=75", http.StatusBadRequest},
		{"absent chunk", "?month=2024-02&depth_bin=0", http.StatusNotFound},
		{"ok", "?month=2024-01&depth_bin=0", http.StatusOK},
	}
	for _, tc := range cases {
		w := do(t, s, http.MethodGet, "/v1/depth/scenario/halibut/occupancy"+tc.query, nil)
		if w.Code != tc.want {
			t.Fatalf("%s: status = %d, want %d: %s", tc.name, w.Code, tc.want, w.Body.String())
		}
	}
}

func TestCellRisk(t *testing.T) {
	s := testServer(t)
	w := do(t, s, http.MethodPost, "/v1/depth/scenario/halibut/risk", map[string]any{
		"depth_selection": map[string][]int{"25": {0, 25}, "0": {0}},
		"start_date":      "2024-01-01",
		"end_date":        "2024-01-31",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var body struct {
		Risks map[string]float64 `json:"risks"`
	}
	decode(t, w, &body)
	// Cell 0 (max depth 25): min over sums 0.5 and 0.3 across both bins.
	if got := body.Risks["0"]; got < 0.299 || got > 0.301 {
		t.Fatalf("risks[0] = %v, want 0.3", got)
	}
	// Cell 1 (max depth 0): only bin 0 selected; min of 0.2 and 0.3.
	if got := body.Risks["1"]; got < 0.199 || got > 0.201 {
		t.Fatalf("risks[1] = %v, want 0.2", got)
	}
	// Cell 2 has no depth assignment and must be absent.
	if _, ok := body.Risks["2"]; ok {
		t.Fatal("unassigned cell present in risks")
	}
}

func TestCellRiskFilterValidation(t *testing.T) {
	s := testServer(t)
	cases := []struct {
		name string
		body map[string]any
	}{
		{"inverted dates", map[string]any{"depth_selection": map[string][]int{"25": {0}}, "start_date": "2024-02-01", "end_date": "2024-01-01"}},
		{"bad clock", map[string]any{"depth_selection": map[string][]int{"25": {0}}, "start_date": "2024-01-01", "end_date": "2024-01-31", "times_of_day": []map[string]string{{"start": "6am", "end": "09:00"}}}},
		{"non-integer category", map[string]any{"depth_selection": map[string][]int{"shallow": {0}}, "start_date": "2024-01-01", "end_date": "2024-01-31"}},
		{"missing dates", map[string]any{"depth_selection": map[string][]int{"25": {0}}}},
	}
	for _, tc := range cases {
		w := do(t, s, http.MethodPost, "/v1/depth/scenario/halibut/risk", tc.body)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s: status = %d, want 400: %s", tc.name, w.Code, w.Body.String())
		}
	}
}

func TestCellTimeSeries(t *testing.T) {
	s := testServer(t)
	w := do(t, s, http.MethodPost, "/v1/depth/scenario/halibut/timeseries", map[string]any{
		"depth_selection": map[string][]int{"25": {0, 25}},
		"start_date":      "2024-01-01",
		"end_date":        "2024-01-31",
		"times_of_day":    []map[string]string{{"start": "05:00", "end": "07:00"}},
		"cell":            0,
		"tolerance":       0.1,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var body struct {
		Series struct {
			Points []struct {
				Value           float64 `json:"value"`
				WithinTimeOfDay bool    `json:"within_time_of_day"`
			} `json:"points"`
			Minimum            float64 `json:"minimum"`
			ToleranceThreshold float64 `json:"tolerance_threshold"`
		} `json:"series"`
	}
	decode(t, w, &body)
	if len(body.Series.Points) != 2 {
		t.Fatalf("points = %v, want both timestamps", body.Series.Points)
	}
	if !body.Series.Points[0].WithinTimeOfDay || body.Series.Points[1].WithinTimeOfDay {
		t.Fatalf("time-of-day tags wrong: %+v", body.Series.Points)
	}
}

func TestCellTimeSeriesNotComputable(t *testing.T) {
	s := testServer(t)
	w := do(t, s, http.MethodPost, "/v1/depth/scenario/halibut/timeseries", map[string]any{
		"depth_selection": map[string][]int{"25": {0}},
		"start_date":      "2024-01-01",
		"end_date":        "2024-01-31",
		"cell":            2,
	})
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404: %s", w.Code, w.Body.String())
	}
}
