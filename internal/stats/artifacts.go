// Package stats writes per-run artifacts for scenario runs and keeps an index
// of past runs under a base directory.
package stats

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"spikegrid/internal/platform"
)

const (
	runIndexFile     = "run_index.json"
	runConfigFile    = "config.json"
	runResultFile    = "result.json"
	rewardSeriesFile = "reward_series.csv"
)

type RunConfig struct {
	RunID         string `json:"run_id"`
	ScenarioPath  string `json:"scenario_path"`
	Seed          int64  `json:"seed"`
	Workers       int    `json:"workers"`
	MaxShellLevel int    `json:"max_shell_level"`
	StoreKind     string `json:"store_kind"`
	ClockFor      string `json:"clock_for,omitempty"`
}

type RunArtifacts struct {
	Config     RunConfig               `json:"config"`
	Result     platform.ScenarioResult `json:"result"`
	SnapshotID string                  `json:"snapshot_id,omitempty"`
}

type RunIndexEntry struct {
	RunID        string  `json:"run_id"`
	ScenarioPath string  `json:"scenario_path"`
	Seed         int64   `json:"seed"`
	Neurons      int     `json:"neurons"`
	Synapses     int     `json:"synapses"`
	Fires        int64   `json:"fires"`
	FinalReward  int     `json:"final_reward"`
	MeanReward   float64 `json:"mean_reward"`
	SnapshotID   string  `json:"snapshot_id,omitempty"`
	CreatedAtUTC string  `json:"created_at_utc"`
}

// SeriesSummary describes a reward value series.
type SeriesSummary struct {
	Count int     `json:"count"`
	Mean  float64 `json:"mean"`
	Std   float64 `json:"std"`
	Min   int     `json:"min"`
	Max   int     `json:"max"`
}

func SummarizeSeries(values []int) SeriesSummary {
	if len(values) == 0 {
		return SeriesSummary{}
	}
	s := SeriesSummary{Count: len(values), Min: values[0], Max: values[0]}
	sum := 0.0
	for _, v := range values {
		sum += float64(v)
		if v < s.Min {
			s.Min = v
		}
		if v > s.Max {
			s.Max = v
		}
	}
	s.Mean = sum / float64(len(values))
	variance := 0.0
	for _, v := range values {
		d := float64(v) - s.Mean
		variance += d * d
	}
	s.Std = math.Sqrt(variance / float64(len(values)))
	return s
}

// WriteRunArtifacts writes config.json, result.json and reward_series.csv
// into baseDir/<run id> and returns that directory.
func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Config.RunID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, artifacts.Config.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, runConfigFile), artifacts.Config); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, runResultFile), map[string]any{
		"result":        artifacts.Result,
		"snapshot_id":   artifacts.SnapshotID,
		"reward_series": SummarizeSeries(artifacts.Result.RewardHistory),
	}); err != nil {
		return "", err
	}
	if err := WriteRewardSeries(runDir, artifacts.Result.RewardHistory); err != nil {
		return "", err
	}
	return runDir, nil
}

func ReadRunConfig(baseDir, runID string) (RunConfig, bool, error) {
	data, err := os.ReadFile(filepath.Join(baseDir, runID, runConfigFile))
	if err != nil {
		if os.IsNotExist(err) {
			return RunConfig{}, false, nil
		}
		return RunConfig{}, false, err
	}
	var cfg RunConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return RunConfig{}, false, err
	}
	return cfg, true, nil
}

// AppendRunIndex adds entry to the index, replacing an entry with the same run id.
func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := readRunIndex(baseDir)
	if err != nil {
		return err
	}
	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}
	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

// ListRunIndex returns the index newest first. Entries with equal timestamps
// keep the later append first.
func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	entries, err := readRunIndex(baseDir)
	if err != nil {
		return nil, err
	}

	type indexedEntry struct {
		entry RunIndexEntry
		idx   int
	}
	indexed := make([]indexedEntry, len(entries))
	for i := range entries {
		indexed[i] = indexedEntry{entry: entries[i], idx: i}
	}
	sort.Slice(indexed, func(i, j int) bool {
		if indexed[i].entry.CreatedAtUTC == indexed[j].entry.CreatedAtUTC {
			return indexed[i].idx > indexed[j].idx
		}
		return indexed[i].entry.CreatedAtUTC > indexed[j].entry.CreatedAtUTC
	})

	sorted := make([]RunIndexEntry, 0, len(indexed))
	for _, item := range indexed {
		sorted = append(sorted, item.entry)
	}
	return sorted, nil
}

func readRunIndex(baseDir string) ([]RunIndexEntry, error) {
	data, err := os.ReadFile(filepath.Join(baseDir, runIndexFile))
	if err != nil {
		if os.IsNotExist(err) {
			return []RunIndexEntry{}, nil
		}
		return nil, err
	}
	var entries []RunIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing run index: %w", err)
	}
	return entries, nil
}

func WriteRewardSeries(runDir string, series []int) error {
	file, err := os.Create(filepath.Join(runDir, rewardSeriesFile))
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"change", "reward_value"}); err != nil {
		return err
	}
	for i, v := range series {
		if err := writer.Write([]string{strconv.Itoa(i), strconv.Itoa(v)}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func ReadRewardSeries(baseDir, runID string) ([]int, bool, error) {
	file, err := os.Open(filepath.Join(baseDir, runID, rewardSeriesFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return []int{}, true, nil
		}
		return nil, false, err
	}
	if len(header) < 2 {
		return nil, false, fmt.Errorf("reward series header must have at least 2 columns")
	}

	series := make([]int, 0, 64)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, false, err
		}
		if len(record) < 2 {
			return nil, false, fmt.Errorf("reward series row must have at least 2 columns")
		}
		v, err := strconv.Atoi(record[1])
		if err != nil {
			return nil, false, err
		}
		series = append(series, v)
	}
	return series, true, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}
