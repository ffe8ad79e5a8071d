package storage

import (
	"database/sql"
	"time"
)

// EventColumns lists the insertable events columns in the order of Event.Args.
var EventColumns = []string{
	"project_id", "event_type", "datetime", "session_id",
	"name", "source", "message", "url_host", "url_path",
	"success", "duration", "avg_cpu", "avg_used_js_heap_size",
}

// Event is one row of the events table. Empty strings and nil pointers are stored as NULL.
type Event struct {
	ProjectID         int64     `yaml:"project_id" json:"project_id"`
	Type              string    `yaml:"event_type" json:"event_type"`
	Datetime          time.Time `yaml:"datetime" json:"datetime"`
	SessionID         int64     `yaml:"session_id" json:"session_id"`
	Name              string    `yaml:"name,omitempty" json:"name,omitempty"`
	Source            string    `yaml:"source,omitempty" json:"source,omitempty"`
	Message           string    `yaml:"message,omitempty" json:"message,omitempty"`
	URLHost           string    `yaml:"url_host,omitempty" json:"url_host,omitempty"`
	URLPath           string    `yaml:"url_path,omitempty" json:"url_path,omitempty"`
	Success           *bool     `yaml:"success,omitempty" json:"success,omitempty"`
	Duration          *float64  `yaml:"duration,omitempty" json:"duration,omitempty"`
	AvgCPU            *float64  `yaml:"avg_cpu,omitempty" json:"avg_cpu,omitempty"`
	AvgUsedJSHeapSize *float64  `yaml:"avg_used_js_heap_size,omitempty" json:"avg_used_js_heap_size,omitempty"`
}

// Text returns a string column by name; false means NULL or not a text column.
func (e Event) Text(column string) (string, bool) {
	var v string
	switch column {
	case "name":
		v = e.Name
	case "source":
		v = e.Source
	case "message":
		v = e.Message
	case "url_host":
		v = e.URLHost
	case "url_path":
		v = e.URLPath
	default:
		return "", false
	}
	return v, v != ""
}

// Number returns a numeric column by name; false means NULL. success reads as 0 or 1.
func (e Event) Number(column string) (float64, bool) {
	switch column {
	case "session_id":
		return float64(e.SessionID), true
	case "success":
		if e.Success == nil {
			return 0, false
		}
		if *e.Success {
			return 1, true
		}
		return 0, true
	case "duration":
		return deref(e.Duration)
	case "avg_cpu":
		return deref(e.AvgCPU)
	case "avg_used_js_heap_size":
		return deref(e.AvgUsedJSHeapSize)
	default:
		return 0, false
	}
}

func deref(v *float64) (float64, bool) {
	if v == nil {
		return 0, false
	}
	return *v, true
}

// Args returns the insert arguments matching EventColumns.
func (e Event) Args() []interface{} {
	success := sql.NullInt16{}
	if e.Success != nil {
		success.Valid = true
		if *e.Success {
			success.Int16 = 1
		}
	}
	return []interface{}{
		e.ProjectID,
		e.Type,
		e.Datetime.UTC(),
		e.SessionID,
		nullString(e.Name),
		nullString(e.Source),
		nullString(e.Message),
		nullString(e.URLHost),
		nullString(e.URLPath),
		success,
		nullFloat(e.Duration),
		nullFloat(e.AvgCPU),
		nullFloat(e.AvgUsedJSHeapSize),
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
