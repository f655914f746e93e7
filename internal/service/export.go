package service

import (
	"context"
	"fmt"

	"github.com/pkordes/rideplanner/internal/ridesync"
)

// CalendarFile is a rendered calendar export.
type CalendarFile struct {
	Filename string
	Body     string
}

// ExportCalendar renders a ride as an iCalendar file.
func (s *RideService) ExportCalendar(ctx context.Context, userID, rideID string) (CalendarFile, error) {
	var f CalendarFile
	err := s.withController(ctx, userID, rideID, func(c *ridesync.Controller) error {
		name, body, err := c.ExportCalendar()
		if err != nil {
			return err
		}
		f = CalendarFile{Filename: name, Body: body}
		return nil
	})
	if err != nil {
		return CalendarFile{}, fmt.Errorf("service.RideService.ExportCalendar: %w", err)
	}
	return f, nil
}

// GoogleCalendarLink returns a Google Calendar "create event" link for a ride.
func (s *RideService) GoogleCalendarLink(ctx context.Context, userID, rideID string) (string, error) {
	var link string
	err := s.withController(ctx, userID, rideID, func(c *ridesync.Controller) error {
		l, err := c.GoogleCalendarLink()
		link = l
		return err
	})
	if err != nil {
		return "", fmt.Errorf("service.RideService.GoogleCalendarLink: %w", err)
	}
	return link, nil
}
