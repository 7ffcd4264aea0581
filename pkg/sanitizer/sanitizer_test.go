package sanitizer

import (
	"testing"
	"time"

	"escaperoom/pkg/model"
)

func TestNormalizeIdentifier(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "already clean", input: "s-1", want: "s-1"},
		{name: "surrounding spaces", input: "  alice  ", want: "alice"},
		{name: "tabs and newlines", input: "\ts-1\n", want: "s-1"},
		{name: "inner space kept", input: " a b ", want: "a b"},
		{name: "only whitespace", input: " \t ", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeIdentifier(tt.input); got != tt.want {
				t.Errorf("NormalizeIdentifier(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeRequests(t *testing.T) {
	create := &model.CreateHoldRequest{SlotID: " s-1 ", UserID: "alice\n"}
	NormalizeCreateHold(create)
	if create.SlotID != "s-1" || create.UserID != "alice" {
		t.Errorf("NormalizeCreateHold() = %+v", create)
	}

	action := &model.HoldActionRequest{UserID: "  bob"}
	NormalizeHoldAction(action)
	if action.UserID != "bob" {
		t.Errorf("NormalizeHoldAction() = %+v", action)
	}
}

func TestNormalizeSlot(t *testing.T) {
	jerusalem := time.FixedZone("IDT", 3*60*60)
	start := time.Date(2026, 5, 1, 21, 0, 0, 0, jerusalem)

	slot := &model.Slot{ID: " s-1", RoomID: "r-101 ", StartTime: start, EndTime: start.Add(time.Hour)}
	NormalizeSlot(slot)

	if slot.ID != "s-1" || slot.RoomID != "r-101" {
		t.Errorf("ids not trimmed: %+v", slot)
	}
	if slot.StartTime.Location() != time.UTC || !slot.StartTime.Equal(start) {
		t.Errorf("StartTime = %v, want %v in UTC", slot.StartTime, start)
	}

	empty := &model.Slot{}
	NormalizeSlot(empty)
	if !empty.StartTime.IsZero() || !empty.EndTime.IsZero() {
		t.Errorf("zero times should stay zero: %+v", empty)
	}
}
