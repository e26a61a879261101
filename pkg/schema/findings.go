package schema

import (
	"encoding/json"
	"fmt"
)

// FindingKind classifies a finding. The numeric values are part of the
// report format.
type FindingKind int

const (
	FindingWarning FindingKind = 0
	FindingError   FindingKind = 1
)

func (k FindingKind) String() string {
	switch k {
	case FindingWarning:
		return "warning"
	case FindingError:
		return "error"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

func (k FindingKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *FindingKind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "warning":
		*k = FindingWarning
	case "error":
		*k = FindingError
	default:
		return fmt.Errorf("unknown finding kind %q", text)
	}
	return nil
}

// Finding is one reported warning or error.
type Finding struct {
	Kind FindingKind `json:"type"`
	Text string      `json:"text"`
}

// FindingLog is an append-only collector of findings with running counts.
// It is not safe for concurrent use.
type FindingLog struct {
	messages []Finding
	warnings int
	errors   int
}

// NewFindingLog returns an empty log.
func NewFindingLog() *FindingLog {
	return &FindingLog{messages: []Finding{}}
}

// Warning records a warning.
func (l *FindingLog) Warning(text string) {
	l.warnings++
	l.messages = append(l.messages, Finding{Kind: FindingWarning, Text: text})
}

// Error records an error.
func (l *FindingLog) Error(text string) {
	l.errors++
	l.messages = append(l.messages, Finding{Kind: FindingError, Text: text})
}

// Findings returns a copy of the findings in insertion order.
func (l *FindingLog) Findings() []Finding {
	out := make([]Finding, len(l.messages))
	copy(out, l.messages)
	return out
}

// Warnings is the number of warnings recorded.
func (l *FindingLog) Warnings() int { return l.warnings }

// Errors is the number of errors recorded.
func (l *FindingLog) Errors() int { return l.errors }

// Len is the total number of findings.
func (l *FindingLog) Len() int { return len(l.messages) }

type findingLogJSON struct {
	Messages []Finding `json:"messages"`
	Warnings int       `json:"warnings"`
	Errors   int       `json:"errors"`
}

func (l *FindingLog) MarshalJSON() ([]byte, error) {
	return json.Marshal(findingLogJSON{
		Messages: l.Findings(),
		Warnings: l.warnings,
		Errors:   l.errors,
	})
}
