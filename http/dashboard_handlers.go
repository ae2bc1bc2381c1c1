package http

import (
	"net/http"
	"time"

	"cardioscope/db"
	"cardioscope/monitoring"
)

var (
	dashboardMonitor *monitoring.DashboardMonitor
	metricsCollector *monitoring.MetricsCollector
)

// SetDashboardMonitor 注入实时监控器，WebSocket路由与统计接口都依赖它
func SetDashboardMonitor(dm *monitoring.DashboardMonitor) {
	dashboardMonitor = dm
}

// SetMetricsCollector 注入指标收集器
func SetMetricsCollector(mc *monitoring.MetricsCollector) {
	metricsCollector = mc
}

func handleDashboardWS(w http.ResponseWriter, r *http.Request) {
	if dashboardMonitor == nil {
		http.Error(w, `{"error":"dashboard monitor not initialized"}`, http.StatusServiceUnavailable)
		return
	}

	dashboardMonitor.GetWebSocketHub().HandleWebSocket(w, r)
}

func handleDashboardStats(w http.ResponseWriter, r *http.Request) {
	if dashboardMonitor == nil {
		http.Error(w, `{"error":"dashboard monitor not initialized"}`, http.StatusServiceUnavailable)
		return
	}

	total, err := db.CountPredictions()
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}

	breakdown, err := db.RiskBreakdown()
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}

	payload := map[string]interface{}{
		"monitor":           dashboardMonitor.GetStats(),
		"total_predictions": total,
		"risk_breakdown":    breakdown,
		"timestamp":         time.Now().UTC(),
	}
	if metricsCollector != nil {
		payload["system"] = metricsCollector.GetSystemStats()
	}

	respondJSON(w, payload)
}

func RegisterDashboardRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/ws/dashboard", handleDashboardWS)
	mux.HandleFunc("GET /api/dashboard/stats", handleDashboardStats)
}
