// Package export defines the core domain of the report export worker: the
// export job parsed from a queue message, the error taxonomy shared across the
// pipeline, the builder and sink registries and the router that drives a job
// from PROCESSING to its terminal audit state.
package export

import "strings"

type (
	// Mode selects how a finished artifact is delivered to the user.
	Mode string

	// Module identifies the analytics domain a report is built from.
	Module string

	// Status is the audit state machine variable. The upstream producer owns
	// PENDING and QUEUED; this worker only ever writes PROCESSING, SUCCESS and
	// FAILED.
	Status string

	// Condition is a single filter predicate keyed by field path. Data is
	// opaque to everything except the delimiter parsers below.
	Condition struct {
		Field     string `json:"field"`
		Data      string `json:"data"`
		Operation string `json:"operation"`
	}

	// Filter is an ordered set of conditions plus an optional regex.
	Filter struct {
		Conditions map[string]Condition `json:"conditions"`
		Regex      string               `json:"regex"`
	}

	// Job is the unit of work, materialized from one queue message and
	// immutable after parse.
	Job struct {
		EventID    string  `json:"eventId"`
		Mode       Mode    `json:"mode"`
		Module     Module  `json:"module"`
		Type       string  `json:"type"`
		SubType    string  `json:"subType"`
		UserID     int     `json:"user_id"`
		ClientID   int     `json:"clientId"`
		ProductID  int     `json:"productId"`
		Filter     *Filter `json:"filter,omitempty"`
		PageFilter *Filter `json:"pageFilter,omitempty"`
	}
)

const (
	ModeDownload Mode = "download"
	ModeEmail    Mode = "email"
)

const (
	ModuleInsights  Module = "insights"
	ModuleUsageLogs Module = "usageLogs"
)

const (
	StatusProcessing Status = "PROCESSING"
	StatusSuccess    Status = "SUCCESS"
	StatusFailed     Status = "FAILED"
)

// Report type and sub-type values recognized by the registry wiring.
const (
	TypeResponseGeneration = "responseGeneration"
	TypeAnswer             = "answer"
	TypeAutofill           = "autofill"
	TypeAITeammate         = "AITeammate"

	SubTypeFrequentAskedQuestions = "frequentAskedQuestions"
)

// ValueDelimiter separates multi-value selections and range bounds inside
// Condition.Data, e.g. "ANSWERED#@#PARTIAL" or "1746297000000#@#1748888999999".
const ValueDelimiter = "#@#"

// Condition returns the condition registered under the given field path.
func (f *Filter) Condition(path string) (Condition, bool) {
	if f == nil || f.Conditions == nil {
		return Condition{}, false
	}
	c, ok := f.Conditions[path]
	return c, ok
}

// SplitValues splits a multi-value condition payload on the delimiter. Empty
// input yields nil.
func SplitValues(data string) []string {
	if data == "" {
		return nil
	}
	return strings.Split(data, ValueDelimiter)
}

// SplitRange interprets a condition payload as a "start#@#end" pair.
func SplitRange(data string) (start, end string, ok bool) {
	parts := SplitValues(data)
	if len(parts) != 2 {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// Validate checks the fields the consumer requires before a job may be routed.
// The returned error is an InvalidMessage domain error naming the first
// missing field.
func (j *Job) Validate() error {
	switch {
	case j.EventID == "":
		return InvalidMessage("missing required field eventId")
	case j.ClientID == 0:
		return InvalidMessage("missing required field clientId")
	case j.UserID == 0:
		return InvalidMessage("missing required field user_id")
	case j.Module == "":
		return InvalidMessage("missing required field module")
	case j.Type == "":
		return InvalidMessage("missing required field type")
	case j.Mode == "":
		return InvalidMessage("missing required field mode")
	}
	return nil
}
