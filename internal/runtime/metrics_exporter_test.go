package runtime

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestStartMetricsServer_ServesManagerMetrics(t *testing.T) {
	m, err := NewManager()
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	defer m.Shutdown()

	r := m.OpenRegion("session")
	r.Create(1)
	ptr, _ := m.Allocate(64)
	defer m.Deallocate(ptr)

	addr, stop, err := StartMetricsServer(":0", ManagerCollectors(m))
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer func() { _ = stop(context.Background()) }()

	cli := &http.Client{Timeout: 2 * time.Second}
	resp, err := cli.Get("http://" + addr + "/metrics")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("status: %v", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	got := string(body)

	for _, want := range []string{
		"allocator_bytes_in_use",
		"analyzer_live_objects",
		"regions_open 1",
		"regions_session_live 1",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("missing metric %q in exposition:\n%s", want, got)
		}
	}
}

func TestStartMetricsServer_StableOrder(t *testing.T) {
	collectors := map[string]MetricFunc{
		"zeta":  func() map[string]float64 { return map[string]float64{"b": 2, "a": 1} },
		"alpha": func() map[string]float64 { return map[string]float64{"x": 9} },
	}

	addr, stop, err := StartMetricsServer(":0", collectors)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer func() { _ = stop(context.Background()) }()

	cli := &http.Client{Timeout: 2 * time.Second}
	resp, err := cli.Get("http://" + addr + "/metrics")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	want := []string{"alpha_x 9", "zeta_a 1", "zeta_b 2"}
	if len(lines) != len(want) {
		t.Fatalf("lines = %v, want %v", lines, want)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestSanitizeMetricToken(t *testing.T) {
	in := " metric name (bad)!"
	out := sanitizeMetricToken(in)
	if strings.ContainsAny(out, " !()") {
		t.Fatalf("token not sanitized: %q", out)
	}
	if out == "" {
		t.Fatalf("empty token")
	}

	if got := sanitizeMetricToken("9lives"); !strings.HasPrefix(got, "_") {
		t.Fatalf("leading digit not prefixed: %q", got)
	}
}
