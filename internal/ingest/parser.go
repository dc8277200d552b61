// Package ingest parses newline-delimited JSON email events into the
// canonical model types and routes them to the engine. Extraction is
// deliberately defensive: producer payloads vary in shape, and a missing or
// mistyped field must never take down the ingestion path.
package ingest

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/tinytelemetry/pulse/internal/model"
)

// ErrNotEvent is returned for lines that are not JSON objects.
var ErrNotEvent = errors.New("ingest: line is not a JSON event object")

// ParseEventLine decodes one event line. The sender fields, subject, and
// receipt time are read from the top level; the optional intelligence block
// is extracted field by field with defaults, so a malformed sub-object
// degrades to absence rather than an error.
func ParseEventLine(line string) (model.EmailEvent, *model.Intelligence, error) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return model.EmailEvent{}, nil, ErrNotEvent
	}

	event := model.EmailEvent{
		Sender:      getString(raw, "sender", "sender_name", "from"),
		SenderEmail: getString(raw, "sender_email", "email"),
		Subject:     getString(raw, "subject"),
		ReceivedAt:  getTime(raw, "received_at", "timestamp"),
	}

	return event, extractIntelligence(raw), nil
}

// extractIntelligence pulls the optional enrichment block. Producers nest it
// under "intelligence" or "intelligence_data"; both are accepted.
func extractIntelligence(raw map[string]any) *model.Intelligence {
	block := getMap(raw, "intelligence", "intelligence_data")
	if block == nil {
		return nil
	}

	intel := &model.Intelligence{}

	if cls := getMap(block, "classification", "nano_classification"); cls != nil {
		if category := getString(cls, "category"); category != "" {
			intel.Classification = &model.Classification{
				Category:   category,
				Confidence: getFloat(cls, "confidence"),
			}
		}
		// Some producers nest urgency inside the classification block.
		if urg := extractUrgency(getMap(cls, "urgency")); urg != nil {
			intel.Urgency = urg
		}
	}
	if intel.Urgency == nil {
		intel.Urgency = extractUrgency(getMap(block, "urgency"))
	}

	if ms, ok := lookupFloat(block, "processing_time_ms"); ok {
		intel.ProcessingTimeMS = &ms
	}

	if intel.Classification == nil && intel.Urgency == nil && intel.ProcessingTimeMS == nil {
		return nil
	}
	return intel
}

func extractUrgency(block map[string]any) *model.Urgency {
	if block == nil {
		return nil
	}
	urg := &model.Urgency{
		Value: int(getFloat(block, "value")),
		Name:  getString(block, "name"),
	}
	if urg.Value == 0 && urg.Name != "" {
		urg.Value = NormalizeUrgency(urg.Name)
	}
	if urg.Value == 0 && urg.Name == "" {
		return nil
	}
	return urg
}

// NormalizeUrgency maps human urgency labels onto the 1-5 scale.
// Unrecognized labels map to 0 (unknown).
func NormalizeUrgency(name string) int {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "CRITICAL", "CRIT", "URGENT":
		return 5
	case "HIGH":
		return 4
	case "MEDIUM", "MED", "NORMAL":
		return 3
	case "LOW":
		return 2
	case "MINIMAL", "NONE", "IGNORE":
		return 1
	}
	return 0
}

func getString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func getFloat(m map[string]any, keys ...string) float64 {
	for _, k := range keys {
		if v, ok := lookupFloat(m, k); ok {
			return v
		}
	}
	return 0
}

func lookupFloat(m map[string]any, key string) (float64, bool) {
	switch v := m[key].(type) {
	case float64:
		return v, true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	}
	return 0, false
}

func getMap(m map[string]any, keys ...string) map[string]any {
	for _, k := range keys {
		if sub, ok := m[k].(map[string]any); ok {
			return sub
		}
	}
	return nil
}

// getTime accepts RFC3339 strings or Unix-epoch seconds (integer or
// fractional). Anything else yields the zero time, which callers replace
// with the ingestion time.
func getTime(m map[string]any, keys ...string) time.Time {
	for _, k := range keys {
		switch v := m[k].(type) {
		case string:
			if ts, err := time.Parse(time.RFC3339, v); err == nil {
				return ts
			}
		case float64:
			if v > 0 {
				sec := int64(v)
				nsec := int64((v - float64(sec)) * float64(time.Second))
				return time.Unix(sec, nsec)
			}
		}
	}
	return time.Time{}
}
