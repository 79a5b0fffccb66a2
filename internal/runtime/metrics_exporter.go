package runtime

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"
	"strings"
	"time"
)

// MetricFunc returns a map of metric name -> value (float64 for compatibility).
// Names should be simple tokens using [a-zA-Z0-9_:] to ease exposition.
type MetricFunc func() map[string]float64

// ManagerCollectors builds the standard collector set for a manager:
// allocator counters, analyzer counters, and per-region live counts.
func ManagerCollectors(m *MemoryManager) map[string]MetricFunc {
	return map[string]MetricFunc{
		"allocator": func() map[string]float64 {
			s := m.alloc.Stats()

			return map[string]float64{
				"total_allocated":    float64(s.TotalAllocated),
				"total_freed":        float64(s.TotalFreed),
				"active_allocations": float64(s.ActiveAllocations),
				"peak_allocations":   float64(s.PeakAllocations),
				"allocation_count":   float64(s.AllocationCount),
				"free_count":         float64(s.FreeCount),
				"bytes_in_use":       float64(s.BytesInUse),
			}
		},
		"analyzer": func() map[string]float64 {
			s := m.analyzer.Stats()

			return map[string]float64{
				"active_regions":  float64(s.ActiveRegions),
				"active_refs":     float64(s.ActiveRefs),
				"active_linears":  float64(s.ActiveLinears),
				"live_objects":    float64(s.LiveObjects),
				"live_bytes":      float64(s.LiveBytes),
				"peak_live_bytes": float64(s.PeakLiveBytes),
				"total_allocs":    float64(s.TotalAllocs),
				"total_frees":     float64(s.TotalFrees),
				"double_frees":    float64(s.DoubleFrees),
			}
		},
		"regions": func() map[string]float64 {
			regions := m.Regions()
			out := make(map[string]float64, 2*len(regions)+1)
			out["open"] = float64(len(regions))
			for _, r := range regions {
				stats := r.Stats()
				out[r.Name()+"_live"] = float64(stats.Live)
				out[r.Name()+"_generation"] = float64(stats.Generation)
			}

			return out
		},
	}
}

// writeMetrics renders every collector in text exposition format. Output
// order is sorted by collector name, then metric name, so identical state
// produces identical bytes. Example line: allocator_bytes_in_use 4096
func writeMetrics(w io.Writer, collectors map[string]MetricFunc) {
	names := make([]string, 0, len(collectors))
	for name := range collectors {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		fn := collectors[name]
		if fn == nil {
			continue
		}

		snapshot := fn()
		keys := make([]string, 0, len(snapshot))
		for k := range snapshot {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			fmt.Fprintf(w, "%s %g\n", sanitizeMetricToken(name+"_"+k), snapshot[k])
		}
	}
}

// StartMetricsServer serves the collectors under "/metrics" on addr
// (host:port) in text exposition format. It returns the bound address
// (which may differ if port 0 was used) and a shutdown function.
func StartMetricsServer(addr string, collectors map[string]MetricFunc) (string, func(ctx context.Context) error, error) {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		writeMetrics(w, collectors)
	})

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 3 * time.Second}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", nil, err
	}
	bound := ln.Addr().String()

	go func() {
		_ = srv.Serve(ln)
	}()

	stop := func(ctx context.Context) error {
		return srv.Shutdown(ctx)
	}

	return bound, stop, nil
}

func sanitizeMetricToken(s string) string {
	b := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' || c == ':' {
			b[i] = c
		} else {
			b[i] = '_'
		}
	}
	// Metric tokens must not start with a digit
	if len(b) > 0 && b[0] >= '0' && b[0] <= '9' {
		return "_" + string(b)
	}
	// Collapse repeated underscores for readability
	out := strings.ReplaceAll(string(b), "__", "_")
	return out
}
