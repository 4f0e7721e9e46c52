// Package google binds the scheduler to Google Calendar: free/busy periods
// become an extra busy source and committed slots are published as events.
package google

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/harrisonrobin/effitime/pkg/index"
)

// PrimaryCalendar selects the account's primary calendar.
const PrimaryCalendar = "primary"

// NewClient builds a calendar client on an authenticated HTTP client and
// resolves calendarName to its id. An empty name or "primary" uses the
// primary calendar without a lookup.
func NewClient(ctx context.Context, httpClient *http.Client, calendarName string, idx *index.EventIndex, log *zap.Logger, opts ...option.ClientOption) (*CalendarClient, error) {
	opts = append([]option.ClientOption{option.WithHTTPClient(httpClient)}, opts...)
	srv, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}

	if calendarName == "" || calendarName == PrimaryCalendar {
		return NewCalendarClient(srv, PrimaryCalendar, idx, log), nil
	}

	list, err := srv.CalendarList.List().Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("list calendars: %w", err)
	}
	for _, item := range list.Items {
		if item.Summary == calendarName {
			return NewCalendarClient(srv, item.Id, idx, log), nil
		}
	}
	return nil, fmt.Errorf("calendar %q not found", calendarName)
}
