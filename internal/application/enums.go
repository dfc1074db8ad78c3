package application

import "fmt"

// Status values mirror the status column of the applications table.
type Status string

const (
	StatusApplied   Status = "applied"
	StatusInterview Status = "interview"
	StatusOffer     Status = "offer"
	StatusRejected  Status = "rejected"
	StatusAccepted  Status = "accepted"
	StatusWithdrawn Status = "withdrawn"
)

// Statuses lists every status in declaration order. Breakdowns use this order
// to break ties between equal counts.
var Statuses = []Status{
	StatusApplied, StatusInterview, StatusOffer,
	StatusRejected, StatusAccepted, StatusWithdrawn,
}

// ParseStatus converts a raw string to a Status, returning an error for
// unknown values. Matching is case-sensitive.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	switch st {
	case StatusApplied, StatusInterview, StatusOffer, StatusRejected, StatusAccepted, StatusWithdrawn:
		return st, nil
	}
	return "", fmt.Errorf("unknown application status %q", s)
}

// IsOffer reports whether s counts as a successful outcome.
func (s Status) IsOffer() bool { return s == StatusOffer || s == StatusAccepted }

// IsResponse reports whether the employer has answered the application.
// Withdrawn is neither a response nor a non-response.
func (s Status) IsResponse() bool {
	switch s {
	case StatusInterview, StatusOffer, StatusAccepted, StatusRejected:
		return true
	}
	return false
}

// IsOpen reports whether the application is still in progress.
func (s Status) IsOpen() bool {
	return s == StatusApplied || s == StatusInterview || s == StatusOffer
}

// JobType is the kind of position applied for.
type JobType string

const (
	JobTypeInternship JobType = "internship"
	JobTypeFullTime   JobType = "full-time"
	JobTypePartTime   JobType = "part-time"
	JobTypeContract   JobType = "contract"
	JobTypeFreelance  JobType = "freelance"
)

var JobTypes = []JobType{
	JobTypeInternship, JobTypeFullTime, JobTypePartTime, JobTypeContract, JobTypeFreelance,
}

func ParseJobType(s string) (JobType, error) {
	for _, jt := range JobTypes {
		if string(jt) == s {
			return jt, nil
		}
	}
	return "", fmt.Errorf("unknown job type %q", s)
}

// Priority is the user's own ranking of an application.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh}

func ParsePriority(s string) (Priority, error) {
	for _, p := range Priorities {
		if string(p) == s {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown priority %q", s)
}

// Source is the channel through which the job was found.
type Source string

const (
	SourceLinkedIn       Source = "linkedin"
	SourceIndeed         Source = "indeed"
	SourceCompanyWebsite Source = "company-website"
	SourceReferral       Source = "referral"
	SourceOther          Source = "other"
)

var Sources = []Source{
	SourceLinkedIn, SourceIndeed, SourceCompanyWebsite, SourceReferral, SourceOther,
}

func ParseSource(s string) (Source, error) {
	for _, src := range Sources {
		if string(src) == s {
			return src, nil
		}
	}
	return "", fmt.Errorf("unknown source %q", s)
}

// Defaults applied to fields left empty at creation time.
const (
	DefaultStatus   = StatusApplied
	DefaultJobType  = JobTypeInternship
	DefaultPriority = PriorityMedium
	DefaultSource   = SourceOther
	DefaultCurrency = "USD"
)
