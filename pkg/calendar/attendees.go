package calendar

import (
	"encoding/json"
	"fmt"
	"strings"

	recallerrors "github.com/tindevelopers/recall-sub000/pkg/errors"
)

// Attendee is a normalized meeting attendee.
type Attendee struct {
	Email    string
	Accepted bool
}

// googleEventPayload is the attendee-bearing subset of a Google Calendar
// raw event payload.
type googleEventPayload struct {
	Organizer *struct {
		Email string `json:"email"`
	} `json:"organizer"`
	Attendees []struct {
		Email          string `json:"email"`
		ResponseStatus string `json:"responseStatus"`
		Organizer      bool   `json:"organizer"`
	} `json:"attendees"`
}

// microsoftEventPayload is the attendee-bearing subset of a Microsoft
// Outlook raw event payload.
type microsoftEventPayload struct {
	Organizer *struct {
		EmailAddress struct {
			Address string `json:"address"`
		} `json:"emailAddress"`
	} `json:"organizer"`
	Attendees []struct {
		EmailAddress struct {
			Address string `json:"address"`
		} `json:"emailAddress"`
		Status struct {
			Response string `json:"response"`
		} `json:"status"`
	} `json:"attendees"`
}

// ExtractAttendees parses the platform-specific raw payload into a
// normalized attendee list. The organizer is always included as an implicit
// accepted attendee. An unsupported platform is a hard error.
func ExtractAttendees(platform Platform, raw json.RawMessage) ([]Attendee, error) {
	switch platform {
	case PlatformGoogle:
		return extractGoogleAttendees(raw)
	case PlatformMicrosoft:
		return extractMicrosoftAttendees(raw)
	default:
		return nil, fmt.Errorf("%w: %q", recallerrors.ErrUnsupportedPlatform, platform)
	}
}

func extractGoogleAttendees(raw json.RawMessage) ([]Attendee, error) {
	var payload googleEventPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("parsing google event payload: %w", err)
	}

	var attendees []Attendee
	if payload.Organizer != nil && payload.Organizer.Email != "" {
		attendees = append(attendees, Attendee{Email: normalizeEmail(payload.Organizer.Email), Accepted: true})
	}
	for _, a := range payload.Attendees {
		if a.Email == "" {
			continue
		}
		attendees = appendAttendee(attendees, Attendee{
			Email:    normalizeEmail(a.Email),
			Accepted: a.ResponseStatus == "accepted" || a.Organizer,
		})
	}
	return attendees, nil
}

func extractMicrosoftAttendees(raw json.RawMessage) ([]Attendee, error) {
	var payload microsoftEventPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("parsing outlook event payload: %w", err)
	}

	var attendees []Attendee
	if payload.Organizer != nil && payload.Organizer.EmailAddress.Address != "" {
		attendees = append(attendees, Attendee{Email: normalizeEmail(payload.Organizer.EmailAddress.Address), Accepted: true})
	}
	for _, a := range payload.Attendees {
		if a.EmailAddress.Address == "" {
			continue
		}
		response := strings.ToLower(a.Status.Response)
		attendees = appendAttendee(attendees, Attendee{
			Email:    normalizeEmail(a.EmailAddress.Address),
			Accepted: response == "accepted" || response == "organizer",
		})
	}
	return attendees, nil
}

// appendAttendee adds a to the list, keeping a single record per email. An
// accepted record wins over a non-accepted duplicate (the organizer appears
// in both positions on some platforms).
func appendAttendee(attendees []Attendee, a Attendee) []Attendee {
	for i := range attendees {
		if attendees[i].Email == a.Email {
			attendees[i].Accepted = attendees[i].Accepted || a.Accepted
			return attendees
		}
	}
	return append(attendees, a)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Domain returns the domain part of the attendee's email. An email with no
// @ is an upstream data defect and raises rather than misclassifying.
func (a Attendee) Domain() (string, error) {
	_, domain, ok := strings.Cut(a.Email, "@")
	if !ok || domain == "" {
		return "", fmt.Errorf("%w: %q", recallerrors.ErrMalformedAttendee, a.Email)
	}
	return strings.ToLower(domain), nil
}
