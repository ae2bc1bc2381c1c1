package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"cardioscope/db"
	"cardioscope/heart"
	"cardioscope/ml"
)

// Model 处理器依赖的推理模型接口
type Model interface {
	Predict(rec heart.Record) (int, []float64, error)
	FeatureImportances() []ml.FeatureWeight
	Source() string
	Metrics() ml.Metrics
	TrainedAt() time.Time
	Rows() int
}

var (
	modelPath string
	loadModel = defaultModel
)

// SetModelPath 设置模型文件路径，处理器按需加载模型
func SetModelPath(path string) {
	modelPath = path
}

func defaultModel() Model {
	return ml.Provision(modelPath)
}

func RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", handleHealth)
	mux.HandleFunc("POST /api/predict", handlePredict)
	mux.HandleFunc("GET /api/model", handleModelInfo)
	mux.HandleFunc("GET /api/model/importance", handleModelImportance)
	mux.HandleFunc("GET /api/predictions", handleRecentPredictions)
	mux.HandleFunc("GET /api/metrics", handleMetrics)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func handlePredict(w http.ResponseWriter, r *http.Request) {
	var rec heart.Record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}

	// 输入不合法时直接拒绝，不触发模型加载
	if fieldErrs := heart.Validate(rec); len(fieldErrs) > 0 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]interface{}{"errors": fieldErrs})
		return
	}

	model := loadModel()
	label, probs, err := model.Predict(rec)
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}

	pred, err := heart.BuildResult(label, probs)
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}
	pred.ModelSource = model.Source()

	// 持久化与推送失败不应阻断响应
	if err := db.SavePrediction(rec, pred); err != nil {
		zap.L().Warn("failed to persist prediction",
			zap.String("request_id", GetRequestID(r.Context())),
			zap.Error(err))
	}
	if dashboardMonitor != nil {
		if err := dashboardMonitor.SendPrediction(pred); err != nil {
			zap.L().Debug("prediction broadcast skipped", zap.Error(err))
		}
	}
	if metricsCollector != nil {
		metricsCollector.IncrCounter("predictions_total", 1, map[string]string{"risk": string(pred.Risk)})
	}

	respondJSON(w, pred)
}

func handleModelInfo(w http.ResponseWriter, r *http.Request) {
	model := loadModel()
	metrics := model.Metrics()

	respondJSON(w, map[string]interface{}{
		"source":     model.Source(),
		"accuracy":   metrics.Accuracy,
		"precision":  metrics.Precision,
		"recall":     metrics.Recall,
		"rows":       model.Rows(),
		"trained_at": model.TrainedAt(),
		"features":   heart.FeatureNames(),
	})
}

func handleModelImportance(w http.ResponseWriter, r *http.Request) {
	top := 8
	if t := r.URL.Query().Get("top"); t != "" {
		if v, err := strconv.Atoi(t); err == nil && v > 0 {
			top = v
		}
	}

	weights := loadModel().FeatureImportances()
	if top < len(weights) {
		weights = weights[:top]
	}

	respondJSON(w, map[string]interface{}{
		"importances": weights,
		"count":       len(weights),
	})
}

func handleRecentPredictions(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 {
			limit = v
		}
	}

	records, err := db.RecentPredictions(limit)
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}

	respondJSON(w, map[string]interface{}{
		"predictions": records,
		"count":       len(records),
	})
}

func handleMetrics(w http.ResponseWriter, r *http.Request) {
	if metricsCollector == nil {
		http.Error(w, `{"error":"metrics collector not initialized"}`, http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	w.Write([]byte(metricsCollector.ExportPrometheus()))
}

// respondJSON 统一JSON响应
func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Warn("failed to encode response", zap.Error(err))
	}
}
