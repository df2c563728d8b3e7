package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dd0wney/cluso-attackgraph/pkg/loader"
	"github.com/dd0wney/cluso-attackgraph/pkg/model"
	"github.com/dd0wney/cluso-attackgraph/pkg/snapshot/snapshottest"
)

func TestChecksAreScopedByEndpoint(t *testing.T) {
	hc := NewHealthChecker()

	var calls []string
	hc.RegisterCheck("general", func() Check { calls = append(calls, "general"); return Check{Status: StatusHealthy} })
	hc.RegisterReadinessCheck("ready", func() Check { calls = append(calls, "ready"); return Check{Status: StatusHealthy} })
	hc.RegisterLivenessCheck("live", func() Check { calls = append(calls, "live"); return Check{Status: StatusHealthy} })

	if resp := hc.CheckReadiness(); len(resp.Checks) != 1 || resp.Checks["ready"].Status != StatusHealthy {
		t.Errorf("readiness response = %+v", resp)
	}
	hc.CheckLiveness()
	hc.Check()

	if strings.Join(calls, ",") != "ready,live,general" {
		t.Errorf("unexpected call order %v", calls)
	}
}

func TestWorstStatusWins(t *testing.T) {
	tests := []struct {
		name     string
		statuses []Status
		want     Status
	}{
		{"no checks", nil, StatusHealthy},
		{"all healthy", []Status{StatusHealthy, StatusHealthy}, StatusHealthy},
		{"one degraded", []Status{StatusHealthy, StatusDegraded}, StatusDegraded},
		{"unhealthy beats degraded", []Status{StatusDegraded, StatusUnhealthy, StatusHealthy}, StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hc := NewHealthChecker()
			for i, s := range tt.statuses {
				status := s
				hc.RegisterCheck(string(rune('a'+i)), func() Check { return Check{Status: status} })
			}
			if got := hc.Check().Status; got != tt.want {
				t.Errorf("status = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestCheckTimingAndUptime(t *testing.T) {
	hc := NewHealthChecker()
	hc.RegisterCheck("process", func() Check { return Check{Status: StatusHealthy} })

	resp := hc.Check()
	c := resp.Checks["process"]
	if c.Name != "process" {
		t.Errorf("name = %q, want the registered name", c.Name)
	}
	if c.LastChecked.IsZero() || c.DurationMS < 0 {
		t.Errorf("timing not recorded: %+v", c)
	}
	if resp.Uptime < 0 {
		t.Errorf("uptime = %v", resp.Uptime)
	}
}

func TestRegister_Scopes(t *testing.T) {
	hc := NewHealthChecker()
	hc.Register("kb", func() Check { return Check{Status: StatusUnhealthy} }, ScopeHealth|ScopeReadiness)

	if hc.Check().Status != StatusUnhealthy || hc.CheckReadiness().Status != StatusUnhealthy {
		t.Fatal("check should be served on both scopes")
	}
	if resp := hc.CheckLiveness(); len(resp.Checks) != 0 {
		t.Errorf("liveness should have no checks, got %v", resp.Checks)
	}

	// replacing on one scope leaves the other in place
	hc.RegisterReadinessCheck("kb", func() Check { return Check{Status: StatusHealthy} })
	if got := hc.CheckReadiness().Status; got != StatusHealthy {
		t.Errorf("readiness = %s, want healthy", got)
	}
	if got := hc.Check().Status; got != StatusUnhealthy {
		t.Errorf("health = %s, want unhealthy", got)
	}
}

func TestWorst(t *testing.T) {
	if Worst(StatusDegraded, StatusHealthy) != StatusDegraded {
		t.Error("degraded should beat healthy")
	}
	if Worst(StatusHealthy, Status("bogus")) != Status("bogus") {
		t.Error("unknown status should rank as unhealthy")
	}
}

func TestLoaderCheck(t *testing.T) {
	tests := []struct {
		name   string
		status loader.Status
		want   Status
		msg    string
	}{
		{"unloaded", loader.Status{State: loader.StateUnloaded}, StatusUnhealthy, "Not loaded"},
		{"first load failed", loader.Status{State: loader.StateUnloaded, LastError: "malformed bundle"}, StatusUnhealthy, "Load failed: malformed bundle"},
		{"initial load", loader.Status{State: loader.StateLoading}, StatusUnhealthy, "Initial load in progress"},
		{"ready", loader.Status{State: loader.StateReady, SnapshotID: "abc"}, StatusHealthy, "Snapshot ready"},
		{"reloading", loader.Status{State: loader.StateLoading, SnapshotID: "abc"}, StatusHealthy, "Snapshot ready"},
		{"reload failed", loader.Status{State: loader.StateReady, SnapshotID: "abc", LastError: "timeout"}, StatusDegraded, "Serving previous snapshot after failed reload: timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check := LoaderCheck(func() loader.Status { return tt.status })()
			if check.Status != tt.want || check.Message != tt.msg {
				t.Errorf("got %s %q, want %s %q", check.Status, check.Message, tt.want, tt.msg)
			}
			if check.Details["state"] != string(tt.status.State) {
				t.Errorf("state detail = %v", check.Details["state"])
			}
		})
	}
}

func TestLoaderCheck_WithManager(t *testing.T) {
	m := loader.NewManager(loader.NewStaticSource("fixture", snapshottest.ScenarioBundle()), loader.Options{})
	hc := NewHealthChecker()
	hc.RegisterReadinessCheck("knowledge_base", LoaderCheck(m.Status))

	rec := httptest.NewRecorder()
	hc.ReadinessHandler()(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("before load: code = %d, want 503", rec.Code)
	}

	if _, err := m.Load(context.Background()); err != nil {
		t.Fatal(err)
	}

	rec = httptest.NewRecorder()
	hc.ReadinessHandler()(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("after load: code = %d, want 200", rec.Code)
	}
	var resp Response
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if id, _ := resp.Checks["knowledge_base"].Details["snapshot_id"].(string); id == "" {
		t.Error("snapshot_id missing from details")
	}
}

func TestLoaderCheck_FailedLoad(t *testing.T) {
	m := loader.NewManager(loader.NewStaticSource("empty", nil), loader.Options{})
	if _, err := m.Load(context.Background()); !errors.Is(err, model.ErrMalformedBundle) {
		t.Fatalf("expected malformed bundle, got %v", err)
	}

	check := LoaderCheck(m.Status)()
	if check.Status != StatusUnhealthy || !strings.HasPrefix(check.Message, "Load failed:") {
		t.Errorf("unexpected check %+v", check)
	}
	if check.Details["failures"] != 1 {
		t.Errorf("failures = %v", check.Details["failures"])
	}
}

func TestDataQualityCheck(t *testing.T) {
	tests := []struct {
		name          string
		kept, dropped int
		want          Status
	}{
		{"empty bundle", 0, 0, StatusHealthy},
		{"nothing dropped", 18, 0, StatusHealthy},
		{"within tolerance", 18, 2, StatusHealthy},
		{"too many dropped", 10, 10, StatusDegraded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check := DataQualityCheck(func() (int, int) { return tt.kept, tt.dropped }, 0.1)()
			if check.Status != tt.want {
				t.Errorf("status = %s, want %s (%s)", check.Status, tt.want, check.Message)
			}
		})
	}
}

func TestMemoryCheck(t *testing.T) {
	tests := []struct {
		alloc, sys uint64
		want       Status
	}{
		{50, 100, StatusHealthy},
		{90, 100, StatusHealthy},
		{91, 100, StatusDegraded},
		{10, 0, StatusHealthy},
	}
	for _, tt := range tests {
		check := MemoryCheck(func() (uint64, uint64) { return tt.alloc, tt.sys })()
		if check.Status != tt.want {
			t.Errorf("alloc=%d sys=%d: status = %s, want %s", tt.alloc, tt.sys, check.Status, tt.want)
		}
	}

	if alloc, sys := RuntimeMemory(); alloc == 0 || sys == 0 {
		t.Errorf("runtime memory not read: %d/%d", alloc, sys)
	}
}

func TestHandlerStatusCodes(t *testing.T) {
	type handlerFor func(hc *HealthChecker, status Status) http.HandlerFunc

	general := func(hc *HealthChecker, s Status) http.HandlerFunc {
		hc.RegisterCheck("c", func() Check { return Check{Status: s} })
		return hc.HTTPHandler()
	}
	ready := func(hc *HealthChecker, s Status) http.HandlerFunc {
		hc.RegisterReadinessCheck("c", func() Check { return Check{Status: s} })
		return hc.ReadinessHandler()
	}
	live := func(hc *HealthChecker, s Status) http.HandlerFunc {
		hc.RegisterLivenessCheck("c", func() Check { return Check{Status: s} })
		return hc.LivenessHandler()
	}

	tests := []struct {
		name    string
		handler handlerFor
		status  Status
		code    int
	}{
		{"health healthy", general, StatusHealthy, http.StatusOK},
		{"health degraded", general, StatusDegraded, http.StatusOK},
		{"health unhealthy", general, StatusUnhealthy, http.StatusServiceUnavailable},
		{"ready degraded", ready, StatusDegraded, http.StatusServiceUnavailable},
		{"ready healthy", ready, StatusHealthy, http.StatusOK},
		{"live degraded", live, StatusDegraded, http.StatusServiceUnavailable},
		{"live healthy", live, StatusHealthy, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.handler(NewHealthChecker(), tt.status)(rec, httptest.NewRequest(http.MethodGet, "/", nil))

			if rec.Code != tt.code {
				t.Errorf("code = %d, want %d", rec.Code, tt.code)
			}
			if rec.Header().Get("Content-Type") != "application/json" {
				t.Error("expected Content-Type application/json")
			}
			var resp Response
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp.Status != tt.status {
				t.Errorf("body status = %s, want %s", resp.Status, tt.status)
			}
		})
	}
}
