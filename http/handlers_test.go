package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"cardioscope/db"
	"cardioscope/heart"
	"cardioscope/ml"
	"cardioscope/monitoring"
)

func TestMain(m *testing.M) {
	if err := db.InitDB("./test.db"); err != nil {
		panic(err)
	}
	code := m.Run()
	db.CloseDB()
	os.Remove("./test.db")
	os.Exit(code)
}

type fakeModel struct {
	label int
	probs []float64
	err   error
	calls int
}

func (f *fakeModel) Predict(rec heart.Record) (int, []float64, error) {
	f.calls++
	return f.label, f.probs, f.err
}

func (f *fakeModel) FeatureImportances() []ml.FeatureWeight {
	return []ml.FeatureWeight{
		{Feature: "ST_Slope", Weight: 0.4},
		{Feature: "ChestPainType", Weight: 0.3},
		{Feature: "Cholesterol", Weight: 0.2},
		{Feature: "Age", Weight: 0.1},
	}
}

func (f *fakeModel) Source() string { return "artifact" }

func (f *fakeModel) Metrics() ml.Metrics {
	return ml.Metrics{Accuracy: 0.9, Precision: 0.88, Recall: 0.86}
}

func (f *fakeModel) TrainedAt() time.Time {
	return time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
}

func (f *fakeModel) Rows() int { return 918 }

func withFakeModel(t *testing.T, fake *fakeModel) {
	t.Helper()
	orig := loadModel
	loadModel = func() Model { return fake }
	t.Cleanup(func() { loadModel = orig })
}

func newTestMux() *http.ServeMux {
	mux := http.NewServeMux()
	RegisterHandlers(mux)
	RegisterDashboardRoutes(mux)
	return mux
}

func validRecord() heart.Record {
	return heart.Record{
		Age:            54,
		Sex:            "M",
		ChestPainType:  "ATA",
		RestingBP:      130,
		Cholesterol:    240,
		FastingBS:      "No",
		RestingECG:     "Normal",
		MaxHR:          150,
		ExerciseAngina: "No",
		Oldpeak:        1.2,
		STSlope:        "Flat",
	}
}

func postPredict(t *testing.T, mux *http.ServeMux, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/predict", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func TestHandleHealth(t *testing.T) {
	mux := newTestMux()
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var payload map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if payload["status"] != "ok" {
		t.Fatalf("unexpected status: %q", payload["status"])
	}
}

func TestHandlePredict(t *testing.T) {
	fake := &fakeModel{label: 1, probs: []float64{0.2, 0.8}}
	withFakeModel(t, fake)
	mux := newTestMux()

	body, _ := json.Marshal(validRecord())
	w := postPredict(t, mux, body)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var pred heart.Prediction
	if err := json.Unmarshal(w.Body.Bytes(), &pred); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if pred.Diagnosis != "At Risk" {
		t.Fatalf("unexpected diagnosis: %q", pred.Diagnosis)
	}
	if pred.Risk != heart.RiskHigh {
		t.Fatalf("unexpected risk tier: %q", pred.Risk)
	}
	if pred.DiseaseProb != 0.8 || pred.Confidence != 0.8 {
		t.Fatalf("unexpected probabilities: %+v", pred)
	}
	if pred.ModelSource != "artifact" {
		t.Fatalf("unexpected model source: %q", pred.ModelSource)
	}
	if fake.calls != 1 {
		t.Fatalf("expected one model call, got %d", fake.calls)
	}

	records, err := db.RecentPredictions(50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	found := false
	for _, rec := range records {
		if rec.Result.ID == pred.ID {
			found = true
			if rec.Input != validRecord() {
				t.Fatalf("stored input mismatch: %+v", rec.Input)
			}
		}
	}
	if !found {
		t.Fatalf("prediction %s not persisted", pred.ID)
	}
}

func TestHandlePredictValidation(t *testing.T) {
	fake := &fakeModel{label: 0, probs: []float64{0.9, 0.1}}
	withFakeModel(t, fake)
	mux := newTestMux()

	rec := validRecord()
	rec.Age = 500
	rec.Sex = "X"
	body, _ := json.Marshal(rec)
	w := postPredict(t, mux, body)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}

	var payload struct {
		Errors []heart.FieldError `json:"errors"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(payload.Errors) != 2 {
		t.Fatalf("expected 2 field errors, got %+v", payload.Errors)
	}
	if fake.calls != 0 {
		t.Fatalf("model must not run on invalid input, got %d calls", fake.calls)
	}
}

func TestHandlePredictRejectsBadBody(t *testing.T) {
	fake := &fakeModel{}
	withFakeModel(t, fake)
	mux := newTestMux()

	for _, body := range []string{"{not json", `{"age":"old"}`} {
		w := postPredict(t, mux, []byte(body))
		if w.Code != http.StatusBadRequest {
			t.Fatalf("body %q: expected 400, got %d", body, w.Code)
		}
	}
	if fake.calls != 0 {
		t.Fatalf("model must not run on rejected body, got %d calls", fake.calls)
	}
}

func TestHandleModelInfo(t *testing.T) {
	withFakeModel(t, &fakeModel{})
	mux := newTestMux()

	req := httptest.NewRequest(http.MethodGet, "/api/model", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if payload["source"] != "artifact" {
		t.Fatalf("unexpected source: %v", payload["source"])
	}
	if payload["accuracy"].(float64) != 0.9 {
		t.Fatalf("unexpected accuracy: %v", payload["accuracy"])
	}
	if payload["rows"].(float64) != 918 {
		t.Fatalf("unexpected rows: %v", payload["rows"])
	}
	features, ok := payload["features"].([]interface{})
	if !ok || len(features) != 11 {
		t.Fatalf("expected 11 feature names, got %v", payload["features"])
	}
}

func TestHandleModelImportance(t *testing.T) {
	withFakeModel(t, &fakeModel{})
	mux := newTestMux()

	req := httptest.NewRequest(http.MethodGet, "/api/model/importance", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var payload struct {
		Importances []ml.FeatureWeight `json:"importances"`
		Count       int                `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if payload.Count != 4 || len(payload.Importances) != 4 {
		t.Fatalf("expected all 4 weights, got %+v", payload)
	}

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/model/importance?top=2", nil))
	payload.Importances = nil
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if payload.Count != 2 || len(payload.Importances) != 2 {
		t.Fatalf("expected top 2, got %+v", payload)
	}
	if payload.Importances[0].Feature != "ST_Slope" {
		t.Fatalf("expected strongest feature first, got %q", payload.Importances[0].Feature)
	}
}

func TestHandleRecentPredictions(t *testing.T) {
	input := validRecord()
	for i := 0; i < 3; i++ {
		pred, err := heart.BuildResult(0, []float64{0.9, 0.1})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		pred.ModelSource = "synthetic"
		if err := db.SavePrediction(input, pred); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	mux := newTestMux()
	req := httptest.NewRequest(http.MethodGet, "/api/predictions?limit=2", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var payload struct {
		Predictions []db.PredictionRecord `json:"predictions"`
		Count       int                   `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if payload.Count != 2 || len(payload.Predictions) != 2 {
		t.Fatalf("expected 2 rows, got %d", payload.Count)
	}
}

func TestHandleDashboardStats(t *testing.T) {
	mux := newTestMux()

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/dashboard/stats", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without monitor, got %d", w.Code)
	}

	dm := monitoring.NewDashboardMonitor()
	if err := dm.Start(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	SetDashboardMonitor(dm)
	t.Cleanup(func() {
		SetDashboardMonitor(nil)
		dm.Stop()
	})

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/dashboard/stats", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if _, ok := payload["risk_breakdown"]; !ok {
		t.Fatalf("missing risk_breakdown: %v", payload)
	}
	if _, ok := payload["monitor"].(map[string]interface{}); !ok {
		t.Fatalf("missing monitor stats: %v", payload)
	}
	if payload["total_predictions"].(float64) < 0 {
		t.Fatalf("unexpected total: %v", payload["total_predictions"])
	}
}

func TestHandleMetrics(t *testing.T) {
	mux := newTestMux()

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/metrics", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without collector, got %d", w.Code)
	}

	fake := &fakeModel{label: 1, probs: []float64{0.1, 0.9}}
	withFakeModel(t, fake)
	SetMetricsCollector(monitoring.NewMetricsCollector())
	t.Cleanup(func() { SetMetricsCollector(nil) })

	body, _ := json.Marshal(validRecord())
	if w := postPredict(t, mux, body); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `predictions_total{risk="High"} 1`) {
		t.Fatalf("missing prediction counter:\n%s", w.Body.String())
	}
}

func TestHandlePredictBroadcasts(t *testing.T) {
	fake := &fakeModel{label: 0, probs: []float64{0.6, 0.4}}
	withFakeModel(t, fake)

	dm := monitoring.NewDashboardMonitor()
	if err := dm.Start(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	SetDashboardMonitor(dm)
	t.Cleanup(func() {
		SetDashboardMonitor(nil)
		dm.Stop()
	})

	mux := newTestMux()
	body, _ := json.Marshal(validRecord())
	w := postPredict(t, mux, body)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	if sent := dm.GetStats().MessagesSent; sent != 1 {
		t.Fatalf("expected one broadcast message, got %d", sent)
	}
}
