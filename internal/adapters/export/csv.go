package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"manyame-permits/internal/core/services"
)

// WriteCSV writes the header and one record per entry
func WriteCSV(w io.Writer, entries []*services.ActivityEntry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, e := range entries {
		if err := cw.Write(Row(e)); err != nil {
			return fmt.Errorf("write csv row %d: %w", e.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
