package insights

import (
	"strings"

	"github.com/aevon-lab/aevon-insights/internal/core/period"
	"github.com/aevon-lab/aevon-insights/internal/core/storage"
)

// Category names one insight analytic.
type Category string

const (
	Errors    Category = "errors"
	Network   Category = "network"
	Rage      Category = "rage"
	Resources Category = "resources"
)

// Categories lists every category in build order.
var Categories = []Category{Errors, Network, Rage, Resources}

// ParseCategories parses a comma separated category list. Duplicates collapse;
// the result follows build order.
func ParseCategories(csv string) ([]Category, error) {
	var names []string
	for _, part := range strings.Split(csv, ",") {
		if part = strings.TrimSpace(part); part != "" {
			names = append(names, part)
		}
	}
	return normalizeCategories(names)
}

func normalizeCategories[S ~string](names []S) ([]Category, error) {
	if len(names) == 0 {
		return nil, ErrEmptySelection
	}

	selected := make(map[Category]struct{}, len(names))
	for _, name := range names {
		c := Category(name)
		if _, ok := analytics[c]; !ok {
			return nil, invalidf(ErrInvalidCategory, "%q", string(name))
		}
		selected[c] = struct{}{}
	}

	out := make([]Category, 0, len(selected))
	for _, c := range Categories {
		if _, ok := selected[c]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

var sessions = storage.MetricSpec{Name: "sessions", Op: storage.OpCount, Field: "session_id"}

// analytic describes how one category is queried and compared.
type analytic struct {
	eventType  string
	conditions []storage.Condition
	dimensions []string
	metrics    []storage.MetricSpec
	key        period.KeyFunc
	// compare is nil for categories reported as resource deltas.
	compare *period.Options
}

var analytics = map[Category]analytic{
	Errors: {
		eventType:  "ERROR",
		dimensions: []string{"name"},
		metrics:    []storage.MetricSpec{sessions},
		key:        period.DimKey("name"),
		compare: &period.Options{
			Metrics:     []string{"sessions"},
			Direction:   period.Descending,
			Ratio:       period.RatioShare,
			RatioMetric: "sessions",
		},
	},
	Network: {
		eventType:  "REQUEST",
		dimensions: []string{"url_host", "url_path"},
		metrics: []storage.MetricSpec{
			sessions,
			{Name: "success_rate", Op: storage.OpAvg, Field: "success"},
			{Name: "avg_duration", Op: storage.OpAvg, Field: "duration"},
		},
		key: period.ConcatKey("url_host", "url_path"),
		compare: &period.Options{
			Metrics:     []string{"success_rate", "avg_duration"},
			Direction:   period.Ascending,
			Ratio:       period.RatioRate,
			RatioMetric: "success_rate",
		},
	},
	Rage: {
		eventType:  "ISSUE",
		conditions: []storage.Condition{{Field: "name", Value: "click_rage"}},
		dimensions: []string{"url_host"},
		metrics:    []storage.MetricSpec{sessions},
		key:        period.DimKey("url_host"),
		compare: &period.Options{
			Metrics:     []string{"sessions"},
			Direction:   period.Descending,
			Ratio:       period.RatioShare,
			RatioMetric: "sessions",
		},
	},
	Resources: {
		eventType:  "PERFORMANCE",
		dimensions: []string{"url_host"},
		metrics: []storage.MetricSpec{
			sessions,
			{Name: "cpu_used", Op: storage.OpAvg, Field: "avg_cpu"},
			{Name: "memory_used", Op: storage.OpAvg, Field: "avg_used_js_heap_size"},
		},
		key: period.DimKey("url_host"),
	},
}
