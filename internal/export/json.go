package export

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/eralp/pomotron/internal/ledger"
)

type jsonExport struct {
	ExportedAt string        `json:"exported_at"`
	Count      int           `json:"count"`
	Sessions   []jsonSession `json:"sessions"`
}

type jsonSession struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Date        string `json:"date"`
	StartTime   string `json:"start_time,omitempty"`
	DurationMin int    `json:"duration_minutes"`
	Duration    string `json:"duration"`
	Completed   bool   `json:"completed"`
	Interrupted bool   `json:"interrupted"`
}

func ToJSON(sessions []ledger.Session, path string) error {
	export := jsonExport{
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
		Count:      len(sessions),
	}

	for _, s := range sessions {
		export.Sessions = append(export.Sessions, jsonSession{
			ID:          s.ID,
			Type:        string(s.Type),
			Date:        s.Date,
			StartTime:   s.StartTime,
			DurationMin: s.DurationMinutes,
			Duration:    formatMinutes(s.DurationMinutes),
			Completed:   s.Completed,
			Interrupted: s.Interrupted,
		})
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write json file: %w", err)
	}
	return nil
}
