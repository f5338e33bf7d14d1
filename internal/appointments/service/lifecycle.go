package service

import (
	"fmt"

	apperrors "medislot/pkg/errors"
	"medislot/pkg/model"
	"medislot/pkg/sanitizer"
)

// authorize runs before checkTransition so callers unrelated to the
// appointment get Forbidden without learning its status.
func authorize(actor model.Actor, appt *model.Appointment, next model.Status) error {
	patientOwner := actor.IsPatient() && appt.PatientID == actor.ID
	doctorOwner := actor.IsDoctor() && appt.DoctorID == actor.ID

	switch next {
	case model.StatusCancelled:
		if actor.IsAdmin() || patientOwner || doctorOwner {
			return nil
		}
		return apperrors.Forbidden("You do not have permission to cancel this appointment")
	case model.StatusAccepted, model.StatusCompleted:
		if doctorOwner {
			return nil
		}
		return apperrors.Forbidden(fmt.Sprintf("Only the appointment's doctor can mark it %s", next))
	default:
		if actor.IsAdmin() || patientOwner || doctorOwner {
			return nil
		}
		return apperrors.Forbidden("You do not have permission to change this appointment")
	}
}

func checkTransition(current, next model.Status) error {
	if current.IsTerminal() {
		return apperrors.InvalidTransition(fmt.Sprintf("Appointment is already %s", current), current.String())
	}
	if !current.CanTransitionTo(next) {
		return apperrors.InvalidTransition(
			fmt.Sprintf("Cannot change appointment from %s to %s", current, next),
			current.String(),
		)
	}
	return nil
}

type notification struct {
	recipientID string
	message     string
}

// statusNotifications addresses the other party. An admin is a third party,
// so both the patient and the doctor hear about it.
func statusNotifications(actor model.Actor, appt *model.Appointment) []notification {
	name := sanitizer.NormalizeName(actor.Name, "")

	switch {
	case actor.IsDoctor():
		by := "your doctor"
		if name != "" {
			by = "Dr. " + name
		}
		return []notification{{
			recipientID: appt.PatientID,
			message:     fmt.Sprintf("Your appointment on %s at %s was %s by %s", appt.Date, appt.TimeSlot, appt.Status, by),
		}}
	case actor.IsAdmin():
		message := fmt.Sprintf("Appointment on %s at %s was %s by %s", appt.Date, appt.TimeSlot, appt.Status, withName("admin", name))
		return []notification{
			{recipientID: appt.PatientID, message: message},
			{recipientID: appt.DoctorID, message: message},
		}
	default:
		return []notification{{
			recipientID: appt.DoctorID,
			message:     fmt.Sprintf("Appointment on %s at %s was %s by %s", appt.Date, appt.TimeSlot, appt.Status, withName("patient", name)),
		}}
	}
}

func withName(role, name string) string {
	if name == "" {
		return role
	}
	return role + " " + name
}
