package prometheus

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"

	"github.com/AltairaLabs/roboshen/runtime/events"
)

func TestRecordTransition_ActiveGauge(t *testing.T) {
	sessionsActive.Set(0)
	sessionTransitionsTotal.Reset()

	RecordTransition("IDLE", "CONNECTING")
	RecordTransition("CONNECTING", "CONNECTED")
	if got := testutil.ToFloat64(sessionsActive); got != 1 {
		t.Errorf("Expected 1 active session, got %f", got)
	}

	RecordTransition("CONNECTED", "ERROR")
	if got := testutil.ToFloat64(sessionsActive); got != 0 {
		t.Errorf("Expected 0 active sessions, got %f", got)
	}

	if got := testutil.ToFloat64(sessionTransitionsTotal.WithLabelValues("CONNECTING", "CONNECTED")); got != 1 {
		t.Errorf("Expected 1 transition, got %f", got)
	}
}

func TestRecordToolCall(t *testing.T) {
	toolCallDuration.Reset()
	toolCallsTotal.Reset()

	RecordToolStart("generateImage")
	RecordToolCall("generateImage", statusSuccess, 2.5)
	RecordToolCall("generateImage", statusError, 0.1)

	for status, want := range map[string]float64{statusStarted: 1, statusSuccess: 1, statusError: 1} {
		if got := testutil.ToFloat64(toolCallsTotal.WithLabelValues("generateImage", status)); got != want {
			t.Errorf("status %s: expected %f, got %f", status, want, got)
		}
	}
	if count := testutil.CollectAndCount(toolCallDuration); count != 1 {
		t.Errorf("Expected 1 histogram series, got %d", count)
	}
}

func findFamily(families []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, f := range families {
		if f.GetName() == name {
			return f
		}
	}
	return nil
}

func TestToolCallHistogram_Buckets(t *testing.T) {
	toolCallDuration.Reset()
	reg := prometheus.NewRegistry()
	reg.MustRegister(toolCallDuration)

	RecordToolCall("generateContent", statusSuccess, 0.5)
	RecordToolCall("generateContent", statusSuccess, 45)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	family := findFamily(families, "roboshen_tool_call_duration_seconds")
	if family == nil {
		t.Fatal("Expected tool call histogram family")
	}
	if family.GetType() != dto.MetricType_HISTOGRAM {
		t.Fatalf("Expected histogram, got %v", family.GetType())
	}
	h := family.GetMetric()[0].GetHistogram()
	if h.GetSampleCount() != 2 {
		t.Errorf("Expected 2 samples, got %d", h.GetSampleCount())
	}
	if h.GetSampleSum() != 45.5 {
		t.Errorf("Expected sum 45.5, got %f", h.GetSampleSum())
	}
	for _, b := range h.GetBucket() {
		if b.GetUpperBound() == 0.5 && b.GetCumulativeCount() != 1 {
			t.Errorf("Expected 1 sample under 0.5s, got %d", b.GetCumulativeCount())
		}
		if b.GetUpperBound() == 60 && b.GetCumulativeCount() != 2 {
			t.Errorf("Expected 2 samples under 60s, got %d", b.GetCumulativeCount())
		}
	}
}

func TestRecordInterruption(t *testing.T) {
	before := testutil.ToFloat64(interruptionsTotal)
	beforeSegments := testutil.ToFloat64(segmentsInterruptedTotal)

	RecordInterruption(2)
	RecordInterruption(0)

	if got := testutil.ToFloat64(interruptionsTotal) - before; got != 2 {
		t.Errorf("Expected 2 interruptions, got %f", got)
	}
	if got := testutil.ToFloat64(segmentsInterruptedTotal) - beforeSegments; got != 2 {
		t.Errorf("Expected 2 interrupted segments, got %f", got)
	}
}

func TestMetricsListener(t *testing.T) {
	sessionsActive.Set(0)
	sessionErrorsTotal.Reset()
	toolCallsTotal.Reset()
	toolAcksDroppedTotal.Reset()
	audioChunksDroppedTotal.Reset()
	transcriptEntriesTotal.Reset()
	segmentsBefore := testutil.ToFloat64(audioSegmentsTotal)
	secondsBefore := testutil.ToFloat64(audioScheduledSeconds)
	framesBefore := testutil.ToFloat64(captureFramesTotal)

	handle := NewMetricsListener().Listener()
	for _, e := range []*events.Event{
		{Type: events.EventSessionStateChanged, Data: &events.StateChangedData{From: "CONNECTING", To: "CONNECTED"}},
		{Type: events.EventToolCallStarted, Data: &events.ToolCallEventData{ToolName: "generateContent"}},
		{Type: events.EventToolCallCompleted, Data: &events.ToolCallEventData{ToolName: "generateContent", Duration: time.Second}},
		{Type: events.EventToolCallFailed, Data: &events.ToolCallEventData{ToolName: "generateContent", Error: "boom"}},
		{Type: events.EventToolAckDropped, Data: &events.ToolCallEventData{ToolName: "generateContent"}},
		{Type: events.EventAudioScheduled, Data: &events.AudioEventData{SegmentID: 1, Duration: 500 * time.Millisecond}},
		{Type: events.EventAudioDropped, Data: &events.AudioEventData{Bytes: 3, Reason: "malformed"}},
		{Type: events.EventCaptureStopped, Data: &events.CaptureStoppedData{Frames: 12}},
		{Type: events.EventTranscriptAppended, Data: &events.TranscriptEventData{Role: "model", Kind: "image"}},
		{Type: events.EventSessionError, Data: &events.SessionErrorData{Kind: "transport_dropped"}},
		{Type: events.EventSessionStateChanged, Data: &events.StateChangedData{From: "CONNECTED", To: "ERROR"}},
	} {
		handle(e)
	}

	checks := []struct {
		name string
		c    prometheus.Collector
		want float64
	}{
		{"active", sessionsActive, 0},
		{"started", toolCallsTotal.WithLabelValues("generateContent", statusStarted), 1},
		{"success", toolCallsTotal.WithLabelValues("generateContent", statusSuccess), 1},
		{"error", toolCallsTotal.WithLabelValues("generateContent", statusError), 1},
		{"ack dropped", toolAcksDroppedTotal.WithLabelValues("generateContent"), 1},
		{"chunk dropped", audioChunksDroppedTotal.WithLabelValues("malformed"), 1},
		{"transcript", transcriptEntriesTotal.WithLabelValues("model", "image"), 1},
		{"session error", sessionErrorsTotal.WithLabelValues("transport_dropped"), 1},
	}
	for _, c := range checks {
		if got := testutil.ToFloat64(c.c); got != c.want {
			t.Errorf("%s: expected %f, got %f", c.name, c.want, got)
		}
	}

	if got := testutil.ToFloat64(audioSegmentsTotal) - segmentsBefore; got != 1 {
		t.Errorf("Expected 1 segment, got %f", got)
	}
	if got := testutil.ToFloat64(audioScheduledSeconds) - secondsBefore; got != 0.5 {
		t.Errorf("Expected 0.5 scheduled seconds, got %f", got)
	}
	if got := testutil.ToFloat64(captureFramesTotal) - framesBefore; got != 12 {
		t.Errorf("Expected 12 capture frames, got %f", got)
	}
}

func TestMetricsListenerIgnoresUnknownData(t *testing.T) {
	l := NewMetricsListener()
	l.Handle(&events.Event{Type: "custom.event"})
	l.Handle(&events.Event{Type: events.EventToolCallStarted})
}

func TestMetricsListener_OnBus(t *testing.T) {
	toolAcksDroppedTotal.Reset()
	bus := events.NewEventBus()
	defer bus.Close()
	bus.SubscribeAll(NewMetricsListener().Listener())

	events.NewEmitter(bus, "s1", 1).ToolAckDropped("generateImage", "c1")
	bus.Flush()

	if got := testutil.ToFloat64(toolAcksDroppedTotal.WithLabelValues("generateImage")); got != 1 {
		t.Errorf("Expected 1 dropped ack, got %f", got)
	}
}

func TestNewExporter(t *testing.T) {
	exporter := NewExporter(":0")
	if exporter.Registry() == nil {
		t.Fatal("Expected registry")
	}
	families, err := exporter.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if len(families) == 0 {
		t.Error("Expected runtime collectors to be registered")
	}
}

func TestExporterHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(Collectors()...)
	exporter := NewExporterWithRegistry(":0", reg)
	RecordSessionError("permission_denied")

	rec := httptest.NewRecorder()
	exporter.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "roboshen_session_errors_total") {
		t.Error("Expected roboshen_session_errors_total in output")
	}

	rec = httptest.NewRecorder()
	exporter.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Errorf("Unexpected health response %d %q", rec.Code, rec.Body.String())
	}
}

func TestExporterMustRegister(t *testing.T) {
	exporter := NewExporterWithRegistry(":0", prometheus.NewRegistry())
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "extra_total", Help: "extra"})
	exporter.MustRegister(counter)

	defer func() {
		if recover() == nil {
			t.Error("Expected panic on duplicate registration")
		}
	}()
	exporter.MustRegister(counter)
}

func TestExporterServe(t *testing.T) {
	exporter := NewExporterWithRegistry("127.0.0.1:0", prometheus.NewRegistry())
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- exporter.Serve(ctx) }()

	var resp *http.Response
	deadline := time.Now().Add(2 * time.Second)
	for {
		addr := exporter.Addr()
		if addr != "127.0.0.1:0" {
			var err error
			resp, err = http.Get("http://" + addr + "/health")
			if err == nil {
				break
			}
		}
		if time.Now().After(deadline) {
			t.Fatal("exporter did not start")
		}
		time.Sleep(10 * time.Millisecond)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if string(body) != "ok" {
		t.Errorf("Expected ok, got %q", body)
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Serve returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return")
	}
}

func TestExporterServe_BadAddress(t *testing.T) {
	exporter := NewExporterWithRegistry("256.0.0.1:bad", prometheus.NewRegistry())
	err := exporter.Serve(context.Background())
	if err == nil || errors.Is(err, http.ErrServerClosed) {
		t.Errorf("Expected listen error, got %v", err)
	}
}
