package dataset

import (
	"fmt"
	"log/slog"
)

// maxReasons caps the number of skip reasons kept per report.
const maxReasons = 20

// LoadReport summarises the validation of one dataset file.
type LoadReport struct {
	Dataset string   `json:"dataset"`
	Source  string   `json:"source"`
	Total   int      `json:"total"`
	Loaded  int      `json:"loaded"`
	Skipped int      `json:"skipped"`
	Reasons []string `json:"reasons,omitempty"`
}

func (r *LoadReport) skip(index int, err error) {
	r.Skipped++
	if len(r.Reasons) < maxReasons {
		r.Reasons = append(r.Reasons, fmt.Sprintf("feature %d: %v", index, err))
	}
}

// Log writes the report at info level, or warn level when features were skipped.
func (r LoadReport) Log(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	attrs := []any{
		"dataset", r.Dataset,
		"source", r.Source,
		"total", r.Total,
		"loaded", r.Loaded,
		"skipped", r.Skipped,
	}
	if r.Skipped == 0 {
		logger.Info("Dataset loaded", attrs...)
		return
	}
	logger.Warn("Dataset loaded with invalid features", append(attrs, "first_reasons", r.Reasons)...)
}
