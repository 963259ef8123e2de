package quarantine

import (
	"fmt"
	"os"
	"time"

	"github.com/ethpandaops/flakeguard/pkg/analyzer"
	"gopkg.in/yaml.v3"
)

// SkipList is the YAML rendering of a quarantine decision. CI runners
// consume it to skip quarantined tests without deleting them.
type SkipList struct {
	GeneratedAt time.Time   `yaml:"generated_at"`
	Entries     []SkipEntry `yaml:"quarantined"`
}

// SkipEntry annotates one quarantined test with the evidence behind
// the decision.
type SkipEntry struct {
	TestID           string  `yaml:"test_id"`
	FlipRate         float64 `yaml:"flip_rate"`
	Classification   string  `yaml:"classification,omitempty"`
	EstimatedCostUSD float64 `yaml:"estimated_cost_usd"`
}

// BuildSkipList assembles a SkipList for the selected test IDs,
// preserving their order. generatedAt is caller-supplied so the
// decision content stays a pure function of the statistics.
func BuildSkipList(
	stats []analyzer.TestStatistics,
	selected []string,
	generatedAt time.Time,
) *SkipList {
	byID := make(map[string]analyzer.TestStatistics, len(stats))

	for _, st := range stats {
		byID[st.TestID] = st
	}

	list := &SkipList{
		GeneratedAt: generatedAt,
		Entries:     make([]SkipEntry, 0, len(selected)),
	}

	for _, id := range selected {
		st := byID[id]
		list.Entries = append(list.Entries, SkipEntry{
			TestID:           id,
			FlipRate:         st.FlipRate,
			Classification:   st.Classification,
			EstimatedCostUSD: st.EstimatedCostUSD,
		})
	}

	return list
}

// WriteSkipList marshals the skip list as YAML to the given path.
func WriteSkipList(path string, list *SkipList) error {
	data, err := yaml.Marshal(list)
	if err != nil {
		return fmt.Errorf("marshaling skip list: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing skip list: %w", err)
	}

	return nil
}
