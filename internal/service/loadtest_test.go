package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"cors-dev-proxy/internal/client"
	"cors-dev-proxy/internal/metrics"
)

func newTestLoadTestService(endpoint string, m *metrics.Metrics) *LoadTestService {
	cfg := testConfig("https://upstream.example.com")
	cfg.LoadTest.EndpointURL = endpoint
	cfg.LoadTest.SubscriptionKey = "test-sub-key"
	cfg.LoadTest.Concurrency = 3
	cfg.LoadTest.MaxIterations = 20
	logger := discardLogger()
	return NewLoadTestService(client.NewUpstreamClient(cfg, logger, nil), cfg, logger, m)
}

func intPtr(n int) *int { return &n }

func TestLoadTestService_Validate(t *testing.T) {
	s := newTestLoadTestService("https://localhost:7049/x", nil)

	tests := []struct {
		name    string
		req     LoadTestRequest
		want    int
		wantErr error
	}{
		{"default iterations", LoadTestRequest{Payload: json.RawMessage(`{"a":1}`)}, 1, nil},
		{"explicit iterations", LoadTestRequest{Iterations: intPtr(5), Payload: json.RawMessage(`{"a":1}`)}, 5, nil},
		{"max iterations", LoadTestRequest{Iterations: intPtr(20), Payload: json.RawMessage(`[1]`)}, 20, nil},
		{"missing payload", LoadTestRequest{Iterations: intPtr(2)}, 0, ErrMissingPayload},
		{"null payload", LoadTestRequest{Payload: json.RawMessage(`null`)}, 0, ErrMissingPayload},
		{"false payload", LoadTestRequest{Payload: json.RawMessage(`false`)}, 0, ErrMissingPayload},
		{"empty string payload", LoadTestRequest{Payload: json.RawMessage(`""`)}, 0, ErrMissingPayload},
		{"zero payload", LoadTestRequest{Payload: json.RawMessage(`0`)}, 0, ErrMissingPayload},
		{"negative zero payload", LoadTestRequest{Payload: json.RawMessage(`-0`)}, 0, ErrMissingPayload},
		{"decimal zero payload", LoadTestRequest{Payload: json.RawMessage(`0.0`)}, 0, ErrMissingPayload},
		{"exponent zero payload", LoadTestRequest{Payload: json.RawMessage(`0e0`)}, 0, ErrMissingPayload},
		{"non-zero number payload", LoadTestRequest{Payload: json.RawMessage(`0.5`)}, 1, nil},
		{"true payload", LoadTestRequest{Payload: json.RawMessage(`true`)}, 1, nil},
		{"string zero payload", LoadTestRequest{Payload: json.RawMessage(`"0"`)}, 1, nil},
		{"zero iterations", LoadTestRequest{Iterations: intPtr(0), Payload: json.RawMessage(`{}`)}, 0, ErrIterations},
		{"negative iterations", LoadTestRequest{Iterations: intPtr(-3), Payload: json.RawMessage(`{}`)}, 0, ErrIterations},
		{"too many iterations", LoadTestRequest{Iterations: intPtr(21), Payload: json.RawMessage(`{}`)}, 0, ErrIterations},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Validate(&tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate() error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Validate() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestLoadTestService_Run(t *testing.T) {
	var calls atomic.Int32
	upstream := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Method != http.MethodPost {
			t.Errorf("method = %q, want POST", r.Method)
		}
		if got := r.Header.Get(SubscriptionKeyHeader); got != "test-sub-key" {
			t.Errorf("%s = %q, want %q", SubscriptionKeyHeader, got, "test-sub-key")
		}
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("Content-Type = %q, want application/json", got)
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != `{"caso":42}` {
			t.Errorf("body = %q, want %q", body, `{"caso":42}`)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"radicado":"R-1"}`))
	}))
	defer upstream.Close()

	m := metrics.New("/api")
	s := newTestLoadTestService(upstream.URL+"/RadicacionMercurio/RadicarCaso", m)

	res, err := s.Run(context.Background(), &LoadTestRequest{
		Iterations: intPtr(7),
		Payload:    json.RawMessage(`{"caso":42}`),
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if got := calls.Load(); got != 7 {
		t.Errorf("upstream calls = %d, want 7", got)
	}
	if res.Total != 7 || len(res.Attempts) != 7 {
		t.Fatalf("result = %+v, want 7 attempts", res)
	}
	for i, a := range res.Attempts {
		if a.Number != i+1 {
			t.Errorf("attempts[%d].Number = %d, want %d", i, a.Number, i+1)
		}
		if a.Status != http.StatusOK {
			t.Errorf("attempts[%d].Status = %v, want 200", i, a.Status)
		}
		raw, ok := a.Data.(json.RawMessage)
		if !ok || string(raw) != `{"radicado":"R-1"}` {
			t.Errorf("attempts[%d].Data = %#v, want raw JSON", i, a.Data)
		}
	}
}

func TestLoadTestService_Run_SettlesFailures(t *testing.T) {
	var calls atomic.Int32
	upstream := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1)%2 == 0 {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("plain text ok"))
	}))
	defer upstream.Close()

	s := newTestLoadTestService(upstream.URL, nil)
	res, err := s.Run(context.Background(), &LoadTestRequest{
		Iterations: intPtr(4),
		Payload:    json.RawMessage(`{"x":1}`),
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	var ok, failed int
	for _, a := range res.Attempts {
		switch a.Status {
		case http.StatusOK:
			ok++
			if a.Data != "plain text ok" {
				t.Errorf("Data = %#v, want plain string", a.Data)
			}
		case "error":
			failed++
			if a.Error != "request failed with status code 500" {
				t.Errorf("Error = %q", a.Error)
			}
		default:
			t.Errorf("unexpected status %v", a.Status)
		}
	}
	if ok != 2 || failed != 2 {
		t.Errorf("ok = %d, failed = %d; want 2 and 2", ok, failed)
	}
}

func TestLoadTestService_Run_Unreachable(t *testing.T) {
	m := metrics.New("/api")
	s := newTestLoadTestService("https://127.0.0.1:1/x", m)

	res, err := s.Run(context.Background(), &LoadTestRequest{
		Iterations: intPtr(2),
		Payload:    json.RawMessage(`{"x":1}`),
	})
	if err != nil {
		t.Fatalf("Run() error = %v; transport failures settle per attempt", err)
	}
	for _, a := range res.Attempts {
		if a.Status != "error" || a.Error == "" {
			t.Errorf("attempt = %+v, want error entry with message", a)
		}
	}

	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, f := range families {
		if f.GetName() != "devproxy_loadtest_attempts_total" {
			continue
		}
		for _, metric := range f.GetMetric() {
			if metric.GetLabel()[0].GetValue() == "error" && metric.GetCounter().GetValue() == 2 {
				return
			}
		}
	}
	t.Error("expected devproxy_loadtest_attempts_total{outcome=\"error\"} = 2")
}

func TestLoadTestService_Run_InvalidMakesNoCalls(t *testing.T) {
	var calls atomic.Int32
	upstream := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer upstream.Close()

	s := newTestLoadTestService(upstream.URL, nil)
	_, err := s.Run(context.Background(), &LoadTestRequest{Iterations: intPtr(3)})
	if !errors.Is(err, ErrMissingPayload) {
		t.Fatalf("Run() error = %v, want ErrMissingPayload", err)
	}
	if calls.Load() != 0 {
		t.Errorf("upstream calls = %d, want 0", calls.Load())
	}
}

func TestAttempt_JSONShape(t *testing.T) {
	tests := []struct {
		name string
		a    Attempt
		want string
	}{
		{
			"success",
			Attempt{Number: 1, Status: 200, Data: json.RawMessage(`{"ok":true}`)},
			`{"intento":1,"status":200,"data":{"ok":true}}`,
		},
		{
			"failure",
			Attempt{Number: 2, Status: "error", Error: "request failed with status code 500"},
			`{"intento":2,"status":"error","error":"request failed with status code 500"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := json.Marshal(tt.a)
			if err != nil {
				t.Fatalf("Marshal: %v", err)
			}
			if string(b) != tt.want {
				t.Errorf("json = %s, want %s", b, tt.want)
			}
		})
	}
}
