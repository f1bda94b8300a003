package models

import "fmt"

// ResumeStatus is the processing state of a resume.
//
//	pending ──► uploaded ──► processing ──► parsed
//	   │            │             │
//	   └────────────┴─────────────┴──────► failed
//
// parsed and failed are terminal.
type ResumeStatus string

const (
	ResumeStatusPending    ResumeStatus = "pending"
	ResumeStatusUploaded   ResumeStatus = "uploaded"
	ResumeStatusProcessing ResumeStatus = "processing"
	ResumeStatusParsed     ResumeStatus = "parsed"
	ResumeStatusFailed     ResumeStatus = "failed"
)

var resumeTransitions = map[ResumeStatus][]ResumeStatus{
	ResumeStatusPending:    {ResumeStatusPending, ResumeStatusUploaded, ResumeStatusFailed},
	ResumeStatusUploaded:   {ResumeStatusProcessing, ResumeStatusFailed},
	ResumeStatusProcessing: {ResumeStatusParsed, ResumeStatusFailed},
}

// ParseResumeStatus converts a raw string, rejecting unknown values.
func ParseResumeStatus(s string) (ResumeStatus, error) {
	st := ResumeStatus(s)
	switch st {
	case ResumeStatusPending, ResumeStatusUploaded, ResumeStatusProcessing, ResumeStatusParsed, ResumeStatusFailed:
		return st, nil
	}
	return "", fmt.Errorf("unknown resume status %q", s)
}

// CanTransition reports whether from → to is allowed. pending → pending is
// allowed so clients can report progress.
func (from ResumeStatus) CanTransition(to ResumeStatus) bool {
	for _, s := range resumeTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ClientCanTransition reports whether a client may move a resume from → to.
// Clients only act before the pipeline claims a resume.
func (from ResumeStatus) ClientCanTransition(to ResumeStatus) bool {
	if from != ResumeStatusPending && from != ResumeStatusUploaded {
		return false
	}
	return to.ClientSettable() && from.CanTransition(to)
}

// IsTerminal is true for parsed and failed.
func (s ResumeStatus) IsTerminal() bool {
	return s == ResumeStatusParsed || s == ResumeStatusFailed
}

// ClientSettable lists the statuses a client may report; the rest belong to the pipeline.
func (s ResumeStatus) ClientSettable() bool {
	return s == ResumeStatusPending || s == ResumeStatusUploaded || s == ResumeStatusFailed
}
