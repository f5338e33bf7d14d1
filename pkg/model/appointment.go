package model

import (
	"time"
)

// DateLayout is the calendar-day format used for appointment dates.
const DateLayout = "2006-01-02"

type Appointment struct {
	ID        string    `json:"id,omitempty" bson:"_id,omitempty"`
	PatientID string    `json:"patient_id" bson:"patient_id"`
	DoctorID  string    `json:"doctor_id" bson:"doctor_id"`
	Date      string    `json:"date" bson:"date"`
	TimeSlot  string    `json:"time_slot" bson:"time_slot"`
	SlotIndex int       `json:"-" bson:"slot_index"`
	Status    Status    `json:"status" bson:"status"`
	Active    bool      `json:"-" bson:"active"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// SlotKey identifies the (doctor, date, slot) triple guarded against double booking.
type SlotKey struct {
	DoctorID string
	Date     string
	TimeSlot string
}

func (a *Appointment) SlotKey() SlotKey {
	return SlotKey{DoctorID: a.DoctorID, Date: a.Date, TimeSlot: a.TimeSlot}
}

// IsParty reports whether the user is the patient or the doctor of the appointment.
func (a *Appointment) IsParty(userID string) bool {
	return userID != "" && (a.PatientID == userID || a.DoctorID == userID)
}

type BookRequest struct {
	DoctorID string `json:"doctor_id" validate:"required,max=64"`
	Date     string `json:"date" validate:"required,isodate"`
	TimeSlot string `json:"time_slot" validate:"required,timeslot"`
}

type ChangeStatusRequest struct {
	Status string `json:"status" validate:"required,appointment_status"`
}
