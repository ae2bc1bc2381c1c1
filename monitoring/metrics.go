package monitoring

import (
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"
)

// MetricType 指标类型
type MetricType string

const (
	MetricTypeCounter MetricType = "counter"
	MetricTypeGauge   MetricType = "gauge"
)

// Metric 单个序列的当前值
type Metric struct {
	Name      string            `json:"name"`
	Type      MetricType        `json:"type"`
	Value     float64           `json:"value"`
	Labels    map[string]string `json:"labels,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Help      string            `json:"help,omitempty"`
}

// MetricsCollector 指标收集器。计数器按序列累加，仪表保留最新值，
// 系统指标在导出时现场采样。
type MetricsCollector struct {
	mu        sync.RWMutex
	series    map[string]*Metric
	startTime time.Time
}

// NewMetricsCollector 创建指标收集器
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		series:    make(map[string]*Metric),
		startTime: time.Now(),
	}
}

// IncrCounter 增加计数器
func (mc *MetricsCollector) IncrCounter(name string, value float64, labels map[string]string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	key := seriesKey(name, labels)
	if existing, ok := mc.series[key]; ok {
		existing.Value += value
		existing.Timestamp = time.Now()
		return
	}
	mc.series[key] = newMetric(name, MetricTypeCounter, value, labels, "")
}

// SetGauge 设置仪表
func (mc *MetricsCollector) SetGauge(name string, value float64, labels map[string]string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.series[seriesKey(name, labels)] = newMetric(name, MetricTypeGauge, value, labels, "")
}

func (mc *MetricsCollector) setSystemGauge(name string, value float64, help string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.series[seriesKey(name, nil)] = newMetric(name, MetricTypeGauge, value, nil, help)
}

// GetMetric 获取某一名称下全部序列的当前值
func (mc *MetricsCollector) GetMetric(name string) ([]Metric, error) {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	var result []Metric
	for _, m := range mc.series {
		if m.Name == name {
			result = append(result, copyMetric(m))
		}
	}
	if len(result) == 0 {
		return nil, fmt.Errorf("metric %s not found", name)
	}
	return result, nil
}

// Snapshot 返回全部序列的排序副本
func (mc *MetricsCollector) Snapshot() []Metric {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	result := make([]Metric, 0, len(mc.series))
	for _, m := range mc.series {
		result = append(result, copyMetric(m))
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Name != result[j].Name {
			return result[i].Name < result[j].Name
		}
		return formatLabels(result[i].Labels) < formatLabels(result[j].Labels)
	})
	return result
}

// ExportPrometheus 导出Prometheus文本格式
func (mc *MetricsCollector) ExportPrometheus() string {
	mc.sampleSystemMetrics()

	var b strings.Builder
	var lastName string
	for _, m := range mc.Snapshot() {
		if m.Name != lastName {
			help := m.Help
			if help == "" {
				help = "Metric " + m.Name
			}
			fmt.Fprintf(&b, "# HELP %s %s\n", m.Name, help)
			fmt.Fprintf(&b, "# TYPE %s %s\n", m.Name, m.Type)
			lastName = m.Name
		}
		fmt.Fprintf(&b, "%s%s %v\n", m.Name, formatLabels(m.Labels), m.Value)
	}
	return b.String()
}

// sampleSystemMetrics 采样运行时指标
func (mc *MetricsCollector) sampleSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	mc.setSystemGauge("system_goroutines", float64(runtime.NumGoroutine()), "Number of goroutines")
	mc.setSystemGauge("memory_heap_alloc", float64(m.HeapAlloc), "Memory heap allocated in bytes")
	mc.setSystemGauge("memory_heap_sys", float64(m.HeapSys), "Memory heap system bytes")
	mc.setSystemGauge("memory_gc_count", float64(m.NumGC), "Number of garbage collections")
}

// GetUptime 获取运行时间
func (mc *MetricsCollector) GetUptime() time.Duration {
	return time.Since(mc.startTime)
}

// GetSystemStats 获取系统统计
func (mc *MetricsCollector) GetSystemStats() map[string]interface{} {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return map[string]interface{}{
		"uptime":     mc.GetUptime().String(),
		"goroutines": runtime.NumGoroutine(),
		"memory": map[string]interface{}{
			"alloc":        m.Alloc,
			"total_alloc":  m.TotalAlloc,
			"sys":          m.Sys,
			"heap_alloc":   m.HeapAlloc,
			"heap_sys":     m.HeapSys,
			"heap_inuse":   m.HeapInuse,
			"heap_objects": m.HeapObjects,
			"gc_count":     m.NumGC,
			"gc_pause_ns":  m.PauseTotalNs,
		},
		"num_cpu": runtime.NumCPU(),
	}
}

func newMetric(name string, kind MetricType, value float64, labels map[string]string, help string) *Metric {
	return &Metric{
		Name:      name,
		Type:      kind,
		Value:     value,
		Labels:    labels,
		Timestamp: time.Now(),
		Help:      help,
	}
}

func copyMetric(m *Metric) Metric {
	out := *m
	if m.Labels != nil {
		out.Labels = make(map[string]string, len(m.Labels))
		for k, v := range m.Labels {
			out.Labels[k] = v
		}
	}
	return out
}

func seriesKey(name string, labels map[string]string) string {
	return name + formatLabels(labels)
}

func formatLabels(labels map[string]string) string {
	if len(labels) == 0 {
		return ""
	}
	pairs := make([]string, 0, len(labels))
	for k, v := range labels {
		pairs = append(pairs, fmt.Sprintf("%s=%q", k, v))
	}
	sort.Strings(pairs)
	return "{" + strings.Join(pairs, ",") + "}"
}
