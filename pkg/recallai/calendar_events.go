package recallai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"
)

// CalendarEvent is one remote calendar occurrence as the provider returns it.
type CalendarEvent struct {
	ID         string          `json:"id"`
	CalendarID string          `json:"calendar_id"`
	StartTime  time.Time       `json:"start_time"`
	EndTime    time.Time       `json:"end_time"`
	MeetingURL string          `json:"meeting_url"`
	IsDeleted  bool            `json:"is_deleted"`
	UpdatedAt  time.Time       `json:"updated_at"`
	Raw        json.RawMessage `json:"raw"`
	Bots       json.RawMessage `json:"bots,omitempty"`
}

// eventPage is one page of the paginated list-events response.
type eventPage struct {
	Next    *string         `json:"next"`
	Results []CalendarEvent `json:"results"`
}

// ListCalendarEvents returns all remote events for the calendar updated at or
// after updatedSince. It transparently follows `next` page cursors,
// normalizing the cursor scheme back to https when the origin request used
// https.
func (c *Client) ListCalendarEvents(ctx context.Context, remoteCalendarID string, updatedSince time.Time) ([]CalendarEvent, error) {
	query := url.Values{}
	query.Set("calendar_id", remoteCalendarID)
	query.Set("updated_at__gte", updatedSince.UTC().Format(time.RFC3339))

	pageURL := c.endpoint("calendar-events") + "?" + query.Encode()

	var events []CalendarEvent
	for page := 0; page < maxPages; page++ {
		var resp eventPage
		if err := c.do(ctx, "GET", pageURL, nil, &resp); err != nil {
			return nil, fmt.Errorf("listing calendar events: %w", err)
		}
		events = append(events, resp.Results...)

		if resp.Next == nil || *resp.Next == "" {
			return events, nil
		}

		next, err := c.normalizeCursor(*resp.Next)
		if err != nil {
			return nil, err
		}
		pageURL = next
	}

	return nil, fmt.Errorf("listing calendar events: exceeded %d pages", maxPages)
}
