package integrations

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/chxlky/contract-kanban/internal/config"
	"github.com/chxlky/contract-kanban/internal/models"
	"go.uber.org/zap"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// CalendarClient mirrors card due dates as all-day events.
type CalendarClient struct {
	service    *calendar.Service
	calendarID string
	boardURL   string
}

func NewCalendarClient(ctx context.Context, cfg config.GoogleConfig, frontURL string) (*CalendarClient, error) {
	if cfg.CalendarID == "" {
		return nil, fmt.Errorf("google calendar ID is not configured")
	}

	jsonBytes, err := json.Marshal(cfg.ServiceAccount)
	if err != nil {
		return nil, fmt.Errorf("unable to marshal service account settings to JSON: %w", err)
	}

	// create credentials from JSON data
	jwtConfig, err := google.JWTConfigFromJSON(jsonBytes, calendar.CalendarScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse service account credentials from JSON: %w", err)
	}

	srv, err := calendar.NewService(ctx, option.WithHTTPClient(jwtConfig.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve Calendar client: %w", err)
	}

	return newCalendarClient(srv, cfg.CalendarID, frontURL), nil
}

func newCalendarClient(srv *calendar.Service, calendarID, frontURL string) *CalendarClient {
	return &CalendarClient{service: srv, calendarID: calendarID, boardURL: frontURL}
}

func (c *CalendarClient) eventFor(card *models.Card) (*calendar.Event, error) {
	due := card.DueDate()
	if due == nil {
		return nil, fmt.Errorf("card does not have a due date, cannot build event")
	}
	return &calendar.Event{
		Summary:     fmt.Sprintf("[%s] %s", card.Lane, card.Title),
		Description: fmt.Sprintf("Estágio: %s\n%s/cards/%s", card.CurrentStage, c.boardURL, card.ID),
		Start: &calendar.EventDateTime{
			Date: due.Format("2006-01-02"),
		},
		End: &calendar.EventDateTime{
			Date: due.AddDate(0, 0, 1).Format("2006-01-02"), // all-day event ends the next day
		},
	}, nil
}

// SyncCard updates the card's event, or creates it when the card has none
// or the stored one is gone.
func (c *CalendarClient) SyncCard(ctx context.Context, card *models.Card) (string, error) {
	event, err := c.eventFor(card)
	if err != nil {
		return "", err
	}

	if card.CalendarEventID != "" {
		updated, err := c.service.Events.Update(c.calendarID, card.CalendarEventID, event).Context(ctx).Do()
		if err == nil {
			return updated.Id, nil
		}
		if !isNotFound(err) {
			return "", fmt.Errorf("unable to update event in Google Calendar: %w", err)
		}
		zap.L().Info("Event not found in Google Calendar. Recreating.", zap.String("eventID", card.CalendarEventID))
	}

	created, err := c.service.Events.Insert(c.calendarID, event).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("unable to create event in Google Calendar: %w", err)
	}
	return created.Id, nil
}

func (c *CalendarClient) RemoveCard(ctx context.Context, card *models.Card) error {
	if card.CalendarEventID == "" {
		return nil
	}
	err := c.service.Events.Delete(c.calendarID, card.CalendarEventID).Context(ctx).Do()
	if err != nil {
		// It's possible the event was already deleted
		if isNotFound(err) {
			zap.L().Info("Event not found in Google Calendar. Already deleted.", zap.String("eventID", card.CalendarEventID))
			return nil
		}
		return fmt.Errorf("unable to delete event from Google Calendar: %w", err)
	}
	return nil
}

func isNotFound(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && (gerr.Code == http.StatusNotFound || gerr.Code == http.StatusGone)
}
