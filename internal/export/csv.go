package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"time"

	"github.com/eralp/pomotron/internal/ledger"
)

func ToCSV(sessions []ledger.Session, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	// Header
	if err := w.Write([]string{"ID", "Type", "Date", "Start", "Duration (min)", "Duration", "Completed", "Interrupted"}); err != nil {
		return err
	}

	for _, s := range sessions {
		row := []string{
			s.ID,
			string(s.Type),
			s.Date,
			s.StartTime,
			fmt.Sprintf("%d", s.DurationMinutes),
			formatMinutes(s.DurationMinutes),
			fmt.Sprintf("%t", s.Completed),
			fmt.Sprintf("%t", s.Interrupted),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	return w.Error()
}

func formatMinutes(mins int) string {
	d := time.Duration(mins) * time.Minute
	h := int(d.Hours())
	m := mins % 60
	return fmt.Sprintf("%02d:%02d", h, m)
}
