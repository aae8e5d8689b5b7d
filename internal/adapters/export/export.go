// Package export renders activity logs and permits into downloadable files.
package export

import (
	"fmt"
	"strings"
	"time"

	"manyame-permits/internal/core/domain"
	"manyame-permits/internal/core/services"
)

// Format is a supported activity log export format
type Format string

const (
	FormatCSV   Format = "csv"
	FormatExcel Format = "excel"
	FormatJSON  Format = "json"
)

const timestampLayout = "2006-01-02 15:04:05"

// Columns is the header row shared by the tabular formats
var Columns = []string{"Timestamp", "Application", "User", "Role", "Action", "Details"}

// ParseFormat accepts csv, excel (or xlsx) and json, case-insensitively
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "csv":
		return FormatCSV, nil
	case "excel", "xlsx":
		return FormatExcel, nil
	case "json":
		return FormatJSON, nil
	}
	return "", domain.NewValidationError("format", "unsupported export format %q", s)
}

// ContentType returns the MIME type of the rendered file
func (f Format) ContentType() string {
	switch f {
	case FormatExcel:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatJSON:
		return "application/json"
	default:
		return "text/csv; charset=utf-8"
	}
}

// Extension returns the file extension without the dot
func (f Format) Extension() string {
	if f == FormatExcel {
		return "xlsx"
	}
	return string(f)
}

// Filename names an activity log export, e.g. activity_logs_20250512_093000.csv
func Filename(f Format, at time.Time) string {
	return fmt.Sprintf("activity_logs_%s.%s", at.Format("20060102_150405"), f.Extension())
}

// Row flattens one entry into the Columns order
func Row(e *services.ActivityEntry) []string {
	app := e.PermitNumber
	if app == "" {
		app = fmt.Sprintf("#%d", e.ApplicationID)
	}
	return []string{
		e.Timestamp.Format(timestampLayout),
		app,
		e.Username,
		e.Role,
		e.Action,
		e.Details,
	}
}
