package monitoring

import (
	"testing"
	"time"

	"cardioscope/heart"
)

func TestDashboardMonitorLifecycle(t *testing.T) {
	monitor := NewDashboardMonitor()

	if err := monitor.SendHeartbeat(); err == nil {
		t.Fatal("expected error before Start")
	}
	if err := monitor.Start(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := monitor.Start(); err == nil {
		t.Fatal("expected error on double Start")
	}
	if err := monitor.Stop(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := monitor.Stop(); err == nil {
		t.Fatal("expected error on double Stop")
	}
}

func TestDashboardMonitorCountsMessages(t *testing.T) {
	monitor := NewDashboardMonitor()
	if err := monitor.Start(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer monitor.Stop()

	pred := heart.Prediction{
		ID:          "evt-1",
		Label:       1,
		Diagnosis:   "At Risk",
		HealthyProb: 0.2,
		DiseaseProb: 0.8,
		Confidence:  0.8,
		Risk:        heart.RiskHigh,
		ModelSource: "artifact",
		Timestamp:   time.Now().UTC(),
	}
	if err := monitor.SendPrediction(pred); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := monitor.SendHeartbeat(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stats := monitor.GetStats()
	if stats.MessagesSent != 2 {
		t.Errorf("expected 2 messages sent, got %d", stats.MessagesSent)
	}
	if stats.ConnectedClients != 0 {
		t.Errorf("expected 0 clients, got %d", stats.ConnectedClients)
	}
	if stats.Uptime <= 0 {
		t.Errorf("expected positive uptime, got %v", stats.Uptime)
	}
}

func TestClientSubscriptionFilter(t *testing.T) {
	client := &Client{subscriptions: make(map[string]bool)}

	if !client.wants(PredictionEvent) {
		t.Error("client without subscriptions should receive everything")
	}

	client.handleClientMessage(ClientMessage{Type: "subscribe", Topic: string(Heartbeat)})
	if client.wants(PredictionEvent) {
		t.Error("subscribed client should not receive other topics")
	}
	if !client.wants(Heartbeat) {
		t.Error("subscribed client should receive its topic")
	}

	client.handleClientMessage(ClientMessage{Type: "unsubscribe", Topic: string(Heartbeat)})
	if !client.wants(PredictionEvent) {
		t.Error("client with no remaining subscriptions should receive everything")
	}
}
