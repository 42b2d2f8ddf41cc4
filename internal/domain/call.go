package domain

import (
	"fmt"
	"time"
)

// AnomalyType labels a call record.
type AnomalyType string

const (
	AnomalyNone    AnomalyType = "normal"
	AnomalyShort   AnomalyType = "short_call"
	AnomalyLong    AnomalyType = "long_call"
	AnomalyOffHour AnomalyType = "off_hour_call"
	AnomalyBurst   AnomalyType = "burst_call"
)

// AnomalyTypes lists the injected categories in injection order.
var AnomalyTypes = []AnomalyType{AnomalyShort, AnomalyLong, AnomalyOffHour, AnomalyBurst}

// CallRecord is a single call detail record.
type CallRecord struct {
	CallID          string
	CallerID        string
	CalleeID        string
	Start           time.Time
	End             time.Time
	DurationSeconds int
	FirstCellID     string
	LastCellID      string
	CallerIMEI      string
	CallerIMSI      string
	CalleeIMSI      string
	IsAnomaly       bool
	AnomalyType     AnomalyType
}

// CallID formats the sequential identifier for the n-th record.
func CallID(n int) string {
	return fmt.Sprintf("call_%06d", n)
}

// NewCallRecord fills the subscriber fields of a record from the caller and callee profiles
// and derives the end timestamp from the duration.
func NewCallRecord(id string, caller, callee User, start time.Time, durationSeconds int, firstCell, lastCell string, anomaly AnomalyType) CallRecord {
	return CallRecord{
		CallID:          id,
		CallerID:        caller.ID,
		CalleeID:        callee.ID,
		Start:           start,
		End:             start.Add(time.Duration(durationSeconds) * time.Second),
		DurationSeconds: durationSeconds,
		FirstCellID:     firstCell,
		LastCellID:      lastCell,
		CallerIMEI:      caller.IMEI,
		CallerIMSI:      caller.IMSI,
		CalleeIMSI:      callee.IMSI,
		IsAnomaly:       anomaly != AnomalyNone,
		AnomalyType:     anomaly,
	}
}

// Validate checks the record invariants.
func (c CallRecord) Validate() error {
	if c.CallerID == c.CalleeID {
		return fmt.Errorf("call %s: caller and callee are both %s", c.CallID, c.CallerID)
	}
	if !c.End.Equal(c.Start.Add(time.Duration(c.DurationSeconds) * time.Second)) {
		return fmt.Errorf("call %s: end %s does not match start %s + %ds", c.CallID, c.End, c.Start, c.DurationSeconds)
	}
	return nil
}
