package models

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestStatusRankOrdering(t *testing.T) {
	seq := []RequestStatus{StatusPending, StatusAssigned, StatusArrived, StatusDeparted, StatusCompleted}
	for i := 1; i < len(seq); i++ {
		if seq[i].Rank() <= seq[i-1].Rank() {
			t.Fatalf("%s should rank after %s", seq[i], seq[i-1])
		}
	}
	if RequestStatus("cancelled").Valid() {
		t.Fatal("unknown status must not validate")
	}
	if RequestStatus("bogus").Rank() != -1 {
		t.Fatal("unknown status rank")
	}
}

func TestDriverStatusValid(t *testing.T) {
	if !DriverAvailable.Valid() || !DriverBusy.Valid() {
		t.Fatal("known statuses must validate")
	}
	if DriverStatus("offline").Valid() {
		t.Fatal("unknown driver status must not validate")
	}
}

func TestUnsetStageTimestampsSerializeAsNull(t *testing.T) {
	r := Request{ID: "r1", Status: StatusPending, CreatedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)}
	b, err := json.Marshal(r)
	if err != nil {
		t.Fatal(err)
	}
	s := string(b)
	for _, field := range []string{"assigned_at", "arrived_at", "departed_at", "completed_at"} {
		if !strings.Contains(s, `"`+field+`":null`) {
			t.Fatalf("%s should serialize as null: %s", field, s)
		}
	}
	if !strings.Contains(s, `"created_at":"2026-08-01T12:00:00Z"`) {
		t.Fatalf("created_at not ISO-8601: %s", s)
	}
}
