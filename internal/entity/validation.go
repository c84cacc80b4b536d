package entity

import (
	"bytes"
	"fmt"
)

// Reachability is the tri-state outcome of an SMTP probe. The zero value is unknown.
type Reachability int8

const (
	ReachabilityUnknown Reachability = iota
	Reachable
	Unreachable
)

// Known reports whether the probe reached a definitive answer.
func (r Reachability) Known() bool {
	return r != ReachabilityUnknown
}

func (r Reachability) String() string {
	switch r {
	case Reachable:
		return "reachable"
	case Unreachable:
		return "unreachable"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes reachable as true, unreachable as false and unknown as null.
func (r Reachability) MarshalJSON() ([]byte, error) {
	switch r {
	case Reachable:
		return []byte("true"), nil
	case Unreachable:
		return []byte("false"), nil
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts true, false or null.
func (r *Reachability) UnmarshalJSON(data []byte) error {
	switch string(bytes.TrimSpace(data)) {
	case "true":
		*r = Reachable
	case "false":
		*r = Unreachable
	case "null":
		*r = ReachabilityUnknown
	default:
		return fmt.Errorf("invalid reachability %q", data)
	}
	return nil
}

// ProbeResult describes what the SMTP conversation revealed about a mailbox.
type ProbeResult struct {
	Reachable  Reachability `json:"reachable"`
	CatchAll   bool         `json:"is_catch_all"`
	Confidence int          `json:"confidence"`
	SMTPCode   int          `json:"smtp_code,omitempty"`
	MXHost     string       `json:"mx_host,omitempty"`
	Reason     string       `json:"reason,omitempty"`
}

// ValidationResult is the outcome of validating a single address.
type ValidationResult struct {
	Email       string       `json:"email"`
	Domain      string       `json:"domain"`
	SyntaxValid bool         `json:"syntax_valid"`
	Valid       bool         `json:"valid"`
	Reachable   Reachability `json:"reachable"`
	Disposable  bool         `json:"disposable"`
	HasMX       bool         `json:"has_mx_records"`
	CatchAll    bool         `json:"is_catch_all"`
	Score       int          `json:"score"`
	Details     ProbeResult  `json:"verification_details"`
}
