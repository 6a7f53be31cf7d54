package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"runtime"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/cellgraph-dev/cellgraph/pkg/cell"
	"github.com/cellgraph-dev/cellgraph/pkg/lens"
)

type benchProfile struct {
	Name       string
	Depth      int
	FanOut     int
	Writes     int
	CursorKeys int
}

var benchProfiles = map[string]benchProfile{
	"fast": {
		Name:       "fast",
		Depth:      16,
		FanOut:     16,
		Writes:     1_000,
		CursorKeys: 8,
	},
	"standard": {
		Name:       "standard",
		Depth:      64,
		FanOut:     64,
		Writes:     10_000,
		CursorKeys: 32,
	},
	"stress": {
		Name:       "stress",
		Depth:      256,
		FanOut:     256,
		Writes:     100_000,
		CursorKeys: 128,
	},
}

func benchCmd() *cobra.Command {
	var (
		profileFlag string
		depthFlag   int
		fanOutFlag  int
		writesFlag  int
		cursorsFlag int
		jsonFlag    string
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Benchmark write propagation through chain, fan-out and cursor graphs",
		RunE: func(cmd *cobra.Command, args []string) error {
			base, ok := benchProfiles[profileFlag]
			if !ok {
				return fmt.Errorf("unknown profile %q (want fast, standard or stress)", profileFlag)
			}
			if depthFlag > 0 {
				base.Depth = depthFlag
			}
			if fanOutFlag > 0 {
				base.FanOut = fanOutFlag
			}
			if writesFlag > 0 {
				base.Writes = writesFlag
			}
			if cursorsFlag > 0 {
				base.CursorKeys = cursorsFlag
			}

			report := runBench(base)
			writeBenchSummary(os.Stderr, report)
			return writeBenchJSON(jsonFlag, report)
		},
	}

	cmd.Flags().StringVar(&profileFlag, "profile", "standard", "profile: fast|standard|stress")
	cmd.Flags().IntVar(&depthFlag, "depth", 0, "chain depth (overrides profile)")
	cmd.Flags().IntVar(&fanOutFlag, "fanout", 0, "fan-out width (overrides profile)")
	cmd.Flags().IntVar(&writesFlag, "writes", 0, "writes per phase (overrides profile)")
	cmd.Flags().IntVar(&cursorsFlag, "cursors", 0, "cursor key count (overrides profile)")
	cmd.Flags().StringVar(&jsonFlag, "json", "-", "JSON output path ('-' for stdout)")
	return cmd
}

type benchReport struct {
	Version  string            `json:"version"`
	Run      benchRunInfo      `json:"run"`
	Workload benchWorkloadInfo `json:"workload"`
	Phases   []benchPhaseInfo  `json:"phases"`
	Engine   benchEngineInfo   `json:"engine"`
	GC       benchGCInfo       `json:"gc"`
}

type benchRunInfo struct {
	Timestamp string `json:"timestamp"`
	Go        string `json:"go"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
	CPUCount  int    `json:"cpu_count"`
}

type benchWorkloadInfo struct {
	Profile    string `json:"profile"`
	Depth      int    `json:"depth"`
	FanOut     int    `json:"fan_out"`
	Writes     int    `json:"writes"`
	CursorKeys int    `json:"cursor_keys"`
}

type benchPhaseInfo struct {
	Name         string  `json:"name"`
	Writes       int     `json:"writes"`
	DurationMS   float64 `json:"duration_ms"`
	WritesPerSec float64 `json:"writes_per_sec"`
	P50US        float64 `json:"p50_us"`
	P95US        float64 `json:"p95_us"`
	P99US        float64 `json:"p99_us"`
	MaxUS        float64 `json:"max_us"`
}

type benchEngineInfo struct {
	Computes     uint64 `json:"computes"`
	Cutoffs      uint64 `json:"cutoffs"`
	Reclaims     uint64 `json:"reclaims"`
	Transactions uint64 `json:"transactions"`
}

type benchGCInfo struct {
	AllocMB      float64 `json:"alloc_mb"`
	HeapLiveMB   float64 `json:"heap_live_mb"`
	NumGC        uint32  `json:"num_gc"`
	PauseTotalMS float64 `json:"pause_total_ms"`
}

func runBench(p benchProfile) benchReport {
	var before runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&before)
	statsBefore := cell.ReadStats()

	phases := []benchPhaseInfo{
		runChainPhase(p.Depth, p.Writes),
		runFanOutPhase(p.FanOut, p.Writes),
		runCursorPhase(p.CursorKeys, p.Writes),
	}

	statsAfter := cell.ReadStats()
	var after runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&after)

	return benchReport{
		Version: "1",
		Run: benchRunInfo{
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
			Go:        runtime.Version(),
			OS:        runtime.GOOS,
			Arch:      runtime.GOARCH,
			CPUCount:  runtime.NumCPU(),
		},
		Workload: benchWorkloadInfo{
			Profile:    p.Name,
			Depth:      p.Depth,
			FanOut:     p.FanOut,
			Writes:     p.Writes,
			CursorKeys: p.CursorKeys,
		},
		Phases: phases,
		Engine: benchEngineInfo{
			Computes:     statsAfter.Computes - statsBefore.Computes,
			Cutoffs:      statsAfter.Cutoffs - statsBefore.Cutoffs,
			Reclaims:     statsAfter.Reclaims - statsBefore.Reclaims,
			Transactions: statsAfter.Transactions - statsBefore.Transactions,
		},
		GC: benchGCInfo{
			AllocMB:      float64(after.TotalAlloc-before.TotalAlloc) / (1024 * 1024),
			HeapLiveMB:   float64(after.HeapAlloc) / (1024 * 1024),
			NumGC:        after.NumGC - before.NumGC,
			PauseTotalMS: float64(after.PauseTotalNs-before.PauseTotalNs) / float64(time.Millisecond),
		},
	}
}

// runChainPhase pushes writes through a linear chain: src -> e1 -> ... -> eN,
// each link adding one. Every write recomputes all N links.
func runChainPhase(depth, writes int) benchPhaseInfo {
	src := cell.NewCell(0)
	var tail *cell.Expr[int]
	for i := 0; i < depth; i++ {
		prev := tail
		if prev == nil {
			tail = cell.NewExpr(func() int { return src.Get() + 1 })
		} else {
			tail = cell.NewExpr(func() int { return prev.Get() + 1 })
		}
	}
	tail.Watch("bench", func(key any, src *cell.Expr[int], old, new int) {})
	defer tail.Unwatch("bench")

	samples := make([]time.Duration, 0, writes)
	start := time.Now()
	for i := 0; i < writes; i++ {
		t0 := time.Now()
		src.Set(i + 1)
		samples = append(samples, time.Since(t0))
	}
	return phaseInfo("chain", writes, time.Since(start), samples)
}

// runFanOutPhase writes into a two-level graph: src fans out to W leaves
// and a sum expression reads them all back.
func runFanOutPhase(width, writes int) benchPhaseInfo {
	src := cell.NewCell(0)
	leaves := make([]*cell.Expr[int], width)
	for i := range leaves {
		k := i + 1
		leaves[i] = cell.NewExpr(func() int { return src.Get() * k })
	}
	sum := cell.NewExpr(func() int {
		total := 0
		for _, leaf := range leaves {
			total += leaf.Get()
		}
		return total
	})
	sum.Watch("bench", func(key any, src *cell.Expr[int], old, new int) {})
	defer sum.Unwatch("bench")

	samples := make([]time.Duration, 0, writes)
	start := time.Now()
	for i := 0; i < writes; i++ {
		t0 := time.Now()
		src.Set(i + 1)
		samples = append(samples, time.Since(t0))
	}
	return phaseInfo("fanout", writes, time.Since(start), samples)
}

// runCursorPhase writes through cursors into a shared map state, round-robin
// across K keys. Each write rebuilds the root map and cuts off the other
// K-1 cursors.
func runCursorPhase(keys, writes int) benchPhaseInfo {
	state := make(map[string]any, keys)
	names := make([]string, keys)
	for i := 0; i < keys; i++ {
		names[i] = fmt.Sprintf("k%d", i)
		state[names[i]] = 0
	}
	root := cell.NewCell[any](state)

	cursors := make([]*cell.Expr[any], keys)
	for i, name := range names {
		cursors[i] = lens.Cursor(root, name)
		cursors[i].Watch("bench", func(key any, src *cell.Expr[any], old, new any) {})
	}
	defer func() {
		for _, c := range cursors {
			c.Unwatch("bench")
		}
	}()

	samples := make([]time.Duration, 0, writes)
	start := time.Now()
	for i := 0; i < writes; i++ {
		t0 := time.Now()
		cursors[i%keys].Reset(i)
		samples = append(samples, time.Since(t0))
	}
	return phaseInfo("cursor", writes, time.Since(start), samples)
}

func phaseInfo(name string, writes int, elapsed time.Duration, samples []time.Duration) benchPhaseInfo {
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	elapsedSeconds := math.Max(0.001, elapsed.Seconds())
	info := benchPhaseInfo{
		Name:         name,
		Writes:       writes,
		DurationMS:   float64(elapsed) / float64(time.Millisecond),
		WritesPerSec: float64(writes) / elapsedSeconds,
	}
	if len(samples) > 0 {
		info.P50US = us(percentile(samples, 0.50))
		info.P95US = us(percentile(samples, 0.95))
		info.P99US = us(percentile(samples, 0.99))
		info.MaxUS = us(samples[len(samples)-1])
	}
	return info
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[len(sorted)-1]
	}
	idx := int(math.Ceil(float64(len(sorted))*p)) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func us(d time.Duration) float64 {
	return float64(d) / float64(time.Microsecond)
}

func writeBenchSummary(w io.Writer, report benchReport) {
	fmt.Fprintln(w, "=== Cellgraph Benchmark ===")
	fmt.Fprintf(w, "Profile: %s (depth=%d fanout=%d cursors=%d, %d writes/phase)\n",
		report.Workload.Profile, report.Workload.Depth, report.Workload.FanOut,
		report.Workload.CursorKeys, report.Workload.Writes)
	fmt.Fprintln(w)

	for _, phase := range report.Phases {
		fmt.Fprintf(w, "%-8s %10.0f writes/s  p50 %8.1fµs  p95 %8.1fµs  p99 %8.1fµs  max %8.1fµs\n",
			phase.Name, phase.WritesPerSec, phase.P50US, phase.P95US, phase.P99US, phase.MaxUS)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Engine:")
	fmt.Fprintf(w, "  computes:     %d\n", report.Engine.Computes)
	fmt.Fprintf(w, "  cutoffs:      %d\n", report.Engine.Cutoffs)
	fmt.Fprintf(w, "  reclaims:     %d\n", report.Engine.Reclaims)
	fmt.Fprintf(w, "  transactions: %d\n", report.Engine.Transactions)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Go runtime / GC (process-wide):")
	fmt.Fprintf(w, "  alloc:     %.2f MB\n", report.GC.AllocMB)
	fmt.Fprintf(w, "  heap_live: %.2f MB\n", report.GC.HeapLiveMB)
	fmt.Fprintf(w, "  num_gc:    %d\n", report.GC.NumGC)
	fmt.Fprintf(w, "  gc_pause:  %.2f ms (total)\n", report.GC.PauseTotalMS)
}

func writeBenchJSON(path string, report benchReport) error {
	var out io.Writer
	if path == "-" {
		out = os.Stdout
	} else {
		file, err := os.Create(path)
		if err != nil {
			return err
		}
		defer file.Close()
		out = file
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
