package calendar

import (
	"time"
)

// Evaluate computes whether the event qualifies for automatic recording
// under the calendar's policy. It is a pure function over the calendar and
// the event's attendee data.
//
// The returned evaluated flag is false when the event has already ended; in
// that case the existing eligibility flag must be left untouched, since
// recording a finished meeting is meaningless.
func Evaluate(cal *Calendar, ev *CalendarEvent, now time.Time) (eligible bool, evaluated bool, err error) {
	if ev.Ended(now) {
		return false, false, nil
	}

	attendees, err := ExtractAttendees(cal.Platform, ev.RawPayload)
	if err != nil {
		return false, false, err
	}

	external, err := isExternal(cal, attendees)
	if err != nil {
		return false, false, err
	}

	// Both flags are independent gates on their respective classes.
	eligible = (cal.Policy.RecordExternal && external) ||
		(cal.Policy.RecordInternal && !external)

	if eligible && cal.Policy.OnlyConfirmed {
		eligible = ownerConfirmed(cal, attendees)
	}

	return eligible, true, nil
}

// isExternal reports whether at least one attendee's email domain differs
// from the calendar owner's. An event with no attendees beyond the organizer
// is never external.
//
// Classification is exact domain-string equality; subdomains and corporate
// alias domains are treated as distinct. See DESIGN.md.
func isExternal(cal *Calendar, attendees []Attendee) (bool, error) {
	ownerDomain := cal.OwnerDomain()

	for _, a := range attendees {
		domain, err := a.Domain()
		if err != nil {
			return false, err
		}
		if domain != ownerDomain {
			return true, nil
		}
	}
	return false, nil
}

// ownerConfirmed reports whether the calendar owner's own attendee record
// shows an accepted response. A missing owner record counts as unconfirmed.
func ownerConfirmed(cal *Calendar, attendees []Attendee) bool {
	owner := normalizeEmail(cal.OwnerEmail)
	for _, a := range attendees {
		if a.Email == owner {
			return a.Accepted
		}
	}
	return false
}
