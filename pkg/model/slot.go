package model

import (
	"time"
)

type Slot struct {
	ID        string    `json:"id" bson:"_id" yaml:"id" validate:"required,identifier"`
	RoomID    string    `json:"room_id" bson:"room_id" yaml:"room_id" validate:"required,identifier"`
	StartTime time.Time `json:"start_time" bson:"start_time" yaml:"start_time" validate:"required"`
	EndTime   time.Time `json:"end_time" bson:"end_time" yaml:"end_time" validate:"required,gtfield=StartTime"`
	Booked    bool      `json:"booked" bson:"booked" yaml:"-"`
	CreatedAt time.Time `json:"created_at" bson:"created_at" yaml:"-"`
}

// SlotStatus is the externally visible availability of a slot, relative to a viewer.
type SlotStatus string

const (
	SlotAvailable     SlotStatus = "AVAILABLE"
	SlotHeld          SlotStatus = "HELD"
	SlotHeldByMe      SlotStatus = "HELD_BY_ME"
	SlotHeldByOther   SlotStatus = "HELD_BY_OTHER"
	SlotBooked        SlotStatus = "BOOKED"
	SlotBookedByMe    SlotStatus = "BOOKED_BY_ME"
	SlotBookedByOther SlotStatus = "BOOKED_BY_OTHER"
)

type SlotView struct {
	SlotID    string     `json:"slot_id"`
	RoomID    string     `json:"room_id"`
	StartTime time.Time  `json:"start_time"`
	EndTime   time.Time  `json:"end_time"`
	Status    SlotStatus `json:"status"`
}
