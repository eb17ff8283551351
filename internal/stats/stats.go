// Package stats tracks per-request metrics for kx: which operation ran,
// how long the first chunk took, how the call ended. Records persist to
// ~/.kx/stats.json.
package stats

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/kodescruxx/kx-cli/internal/config"
)

const (
	fileName   = "stats.json"
	maxRecords = 1000
)

// Record is a single instrumented request.
type Record struct {
	Timestamp time.Time `json:"timestamp"`
	Operation string    `json:"operation"`
	Language  string    `json:"language,omitempty"`
	Outcome   string    `json:"outcome"`
	// FirstChunkMs is zero when no chunk arrived.
	FirstChunkMs int64 `json:"first_chunk_ms,omitempty"`
	TotalMs      int64 `json:"total_ms"`
	Chunks       int   `json:"chunks"`
	Chars        int   `json:"chars"`
}

// Summary is the aggregated stats dashboard.
type Summary struct {
	TotalRequests     int            `json:"total_requests"`
	SuccessRate       float64        `json:"success_rate"`
	AvgFirstChunkMs   int64          `json:"avg_first_chunk_ms"`
	AvgTotalMs        int64          `json:"avg_total_ms"`
	OutcomeBreakdown  map[string]int `json:"outcome_breakdown"`
	LanguageBreakdown map[string]int `json:"language_breakdown"`
	TopOperations     []OpCount      `json:"top_operations"`
	TodayCount        int            `json:"today_count"`
	ThisWeekCount     int            `json:"this_week_count"`
}

// OpCount pairs an operation with its usage count.
type OpCount struct {
	Operation string `json:"operation"`
	Count     int    `json:"count"`
}

var fileMu sync.Mutex

func statsPath() string {
	return filepath.Join(config.Dir(), fileName)
}

// Save appends a new record to the stats file.
func Save(r Record) error {
	fileMu.Lock()
	defer fileMu.Unlock()

	r.Timestamp = time.Now()

	records, _ := loadAll()
	records = append(records, r)

	if len(records) > maxRecords {
		records = records[len(records)-maxRecords:]
	}

	if err := os.MkdirAll(config.Dir(), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(statsPath(), data, 0o600)
}

// LoadAll returns all stored records.
func LoadAll() ([]Record, error) {
	return loadAll()
}

func loadAll() ([]Record, error) {
	data, err := os.ReadFile(statsPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// Summarize computes aggregated stats from all records.
func Summarize() (*Summary, error) {
	records, err := loadAll()
	if err != nil {
		return nil, err
	}
	return summarize(records, time.Now()), nil
}

func summarize(records []Record, now time.Time) *Summary {
	s := &Summary{
		TotalRequests:     len(records),
		OutcomeBreakdown:  map[string]int{},
		LanguageBreakdown: map[string]int{},
	}
	if len(records) == 0 {
		return s
	}

	var totalFirst, totalAll int64
	var firstCount, successCount int
	opFreq := map[string]int{}
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	weekAgo := now.AddDate(0, 0, -7)

	for _, r := range records {
		if r.Outcome == "completed" {
			successCount++
		}
		totalAll += r.TotalMs
		if r.FirstChunkMs > 0 {
			totalFirst += r.FirstChunkMs
			firstCount++
		}
		if r.Outcome != "" {
			s.OutcomeBreakdown[r.Outcome]++
		}
		if r.Language != "" {
			s.LanguageBreakdown[r.Language]++
		}
		if r.Operation != "" {
			opFreq[r.Operation]++
		}
		if !r.Timestamp.Before(today) {
			s.TodayCount++
		}
		if r.Timestamp.After(weekAgo) {
			s.ThisWeekCount++
		}
	}

	s.SuccessRate = float64(successCount) / float64(len(records)) * 100
	s.AvgTotalMs = totalAll / int64(len(records))
	if firstCount > 0 {
		s.AvgFirstChunkMs = totalFirst / int64(firstCount)
	}

	s.TopOperations = topN(opFreq, 5)

	return s
}

func topN(freq map[string]int, n int) []OpCount {
	var all []OpCount
	for op, count := range freq {
		all = append(all, OpCount{Operation: op, Count: count})
	}
	// Simple selection sort for small N. Ties break by name so output is stable.
	for i := 0; i < len(all) && i < n; i++ {
		maxIdx := i
		for j := i + 1; j < len(all); j++ {
			if all[j].Count > all[maxIdx].Count ||
				(all[j].Count == all[maxIdx].Count && all[j].Operation < all[maxIdx].Operation) {
				maxIdx = j
			}
		}
		all[i], all[maxIdx] = all[maxIdx], all[i]
	}
	if len(all) > n {
		all = all[:n]
	}
	return all
}
