package sanitizer

import (
	"strings"

	"escaperoom/pkg/model"
)

// NormalizeIdentifier strips surrounding whitespace. Inner characters are
// left alone so the validator still rejects them.
func NormalizeIdentifier(s string) string {
	return strings.TrimSpace(s)
}

func NormalizeCreateHold(req *model.CreateHoldRequest) {
	req.SlotID = NormalizeIdentifier(req.SlotID)
	req.UserID = NormalizeIdentifier(req.UserID)
}

func NormalizeHoldAction(req *model.HoldActionRequest) {
	req.UserID = NormalizeIdentifier(req.UserID)
}

// NormalizeSlot trims ids and stores the window in UTC.
func NormalizeSlot(slot *model.Slot) {
	slot.ID = NormalizeIdentifier(slot.ID)
	slot.RoomID = NormalizeIdentifier(slot.RoomID)
	if !slot.StartTime.IsZero() {
		slot.StartTime = slot.StartTime.UTC()
	}
	if !slot.EndTime.IsZero() {
		slot.EndTime = slot.EndTime.UTC()
	}
}
