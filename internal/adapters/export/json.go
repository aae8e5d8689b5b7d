package export

import (
	"io"
	"time"

	"github.com/goccy/go-json"

	"manyame-permits/internal/core/services"
)

type jsonDocument struct {
	GeneratedAt time.Time                 `json:"generated_at"`
	GeneratedBy string                    `json:"generated_by"`
	Total       int                       `json:"total"`
	Stats       *services.ActivityStats   `json:"stats"`
	Logs        []*services.ActivityEntry `json:"logs"`
}

// WriteJSON writes the export as one indented document
func WriteJSON(w io.Writer, exp *services.ActivityExport) error {
	doc := jsonDocument{
		GeneratedAt: exp.GeneratedAt,
		GeneratedBy: exp.GeneratedBy,
		Total:       len(exp.Entries),
		Stats:       exp.Stats,
		Logs:        exp.Entries,
	}
	if doc.Logs == nil {
		doc.Logs = []*services.ActivityEntry{}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
