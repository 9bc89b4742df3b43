package stats

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"spikegrid/internal/network"
	"spikegrid/internal/platform"
)

func TestWriteRunArtifacts(t *testing.T) {
	baseDir := t.TempDir()
	artifacts := RunArtifacts{
		Config: RunConfig{RunID: "run-1", ScenarioPath: "chain.yaml", Seed: 7, Workers: 2, StoreKind: "memory"},
		Result: platform.ScenarioResult{
			Neurons:       map[string]string{"a": "id-a"},
			RewardValue:   2,
			RewardHistory: []int{0, 1, 2},
			Stats:         network.Stats{Neurons: 1},
		},
	}

	runDir, err := WriteRunArtifacts(baseDir, artifacts)
	if err != nil {
		t.Fatalf("write artifacts: %v", err)
	}
	for _, file := range []string{runConfigFile, runResultFile, rewardSeriesFile} {
		if _, err := os.Stat(filepath.Join(runDir, file)); err != nil {
			t.Fatalf("expected file %s: %v", file, err)
		}
	}

	cfg, ok, err := ReadRunConfig(baseDir, "run-1")
	if err != nil || !ok {
		t.Fatalf("read config: ok=%t err=%v", ok, err)
	}
	if cfg.Seed != 7 || cfg.ScenarioPath != "chain.yaml" {
		t.Fatalf("unexpected config: %+v", cfg)
	}

	series, ok, err := ReadRewardSeries(baseDir, "run-1")
	if err != nil || !ok {
		t.Fatalf("read series: ok=%t err=%v", ok, err)
	}
	if len(series) != 3 || series[2] != 2 {
		t.Fatalf("unexpected series: %v", series)
	}

	if _, err := WriteRunArtifacts(baseDir, RunArtifacts{}); err == nil {
		t.Fatal("expected missing run id to fail")
	}
}

func TestReadMissingArtifacts(t *testing.T) {
	baseDir := t.TempDir()
	if _, ok, err := ReadRunConfig(baseDir, "ghost"); err != nil || ok {
		t.Fatalf("expected missing config; ok=%t err=%v", ok, err)
	}
	if _, ok, err := ReadRewardSeries(baseDir, "ghost"); err != nil || ok {
		t.Fatalf("expected missing series; ok=%t err=%v", ok, err)
	}
}

func TestRunIndexAppendListAndUpsert(t *testing.T) {
	baseDir := t.TempDir()

	if err := AppendRunIndex(baseDir, RunIndexEntry{RunID: "run-1", FinalReward: 1, CreatedAtUTC: "2026-02-10T12:00:00Z"}); err != nil {
		t.Fatalf("append run-1: %v", err)
	}
	if err := AppendRunIndex(baseDir, RunIndexEntry{RunID: "run-2", FinalReward: 2, CreatedAtUTC: "2026-02-10T11:00:00Z"}); err != nil {
		t.Fatalf("append run-2: %v", err)
	}
	if err := AppendRunIndex(baseDir, RunIndexEntry{RunID: "run-1", FinalReward: 9, CreatedAtUTC: "2026-02-10T12:00:00Z"}); err != nil {
		t.Fatalf("upsert run-1: %v", err)
	}

	entries, err := ListRunIndex(baseDir)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries after upsert, got %d", len(entries))
	}
	if entries[0].RunID != "run-1" || entries[0].FinalReward != 9 {
		t.Fatalf("unexpected upsert result: %+v", entries[0])
	}
	if err := AppendRunIndex(baseDir, RunIndexEntry{}); err == nil {
		t.Fatal("expected missing run id to fail")
	}
}

func TestRunIndexEqualTimestampPrefersLaterAppend(t *testing.T) {
	baseDir := t.TempDir()
	ts := "2026-02-10T12:00:00Z"

	if err := AppendRunIndex(baseDir, RunIndexEntry{RunID: "run-a", CreatedAtUTC: ts}); err != nil {
		t.Fatalf("append run-a: %v", err)
	}
	if err := AppendRunIndex(baseDir, RunIndexEntry{RunID: "run-b", CreatedAtUTC: ts}); err != nil {
		t.Fatalf("append run-b: %v", err)
	}

	entries, err := ListRunIndex(baseDir)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 || entries[0].RunID != "run-b" {
		t.Fatalf("expected latest appended run-b first, got %+v", entries)
	}
}

func TestListRunIndexEmptyDir(t *testing.T) {
	entries, err := ListRunIndex(t.TempDir())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty index, got %+v", entries)
	}
}

func TestSummarizeSeries(t *testing.T) {
	if got := SummarizeSeries(nil); got != (SeriesSummary{}) {
		t.Fatalf("expected zero summary, got %+v", got)
	}
	got := SummarizeSeries([]int{0, 2, -2, 4})
	if got.Count != 4 || got.Min != -2 || got.Max != 4 || got.Mean != 1 {
		t.Fatalf("unexpected summary: %+v", got)
	}
	if math.Abs(got.Std-math.Sqrt(5)) > 1e-9 {
		t.Fatalf("unexpected std: %v", got.Std)
	}
}
