package client

import (
	"context"
	"fmt"
	"net/url"

	"vizit/models"
)

func visitPath(visitID, suffix string) string {
	return fmt.Sprintf("/visits/%s%s", url.PathEscape(visitID), suffix)
}

func (c *RestAPI) CreateVisit(ctx context.Context, input models.CreateVisitInput) (*models.Visit, error) {
	var out models.Visit
	if err := c.sendJSON(ctx, "POST", "/visits", input, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *RestAPI) GetVisit(ctx context.Context, visitID string) (*models.Visit, error) {
	var out models.Visit
	if err := c.getJSON(ctx, visitPath(visitID, ""), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *RestAPI) UpdateVisitStatus(ctx context.Context, visitID string, body StatusUpdate) (*models.Visit, error) {
	var out models.Visit
	if err := c.sendJSON(ctx, "PUT", visitPath(visitID, "/status"), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *RestAPI) RescheduleVisit(ctx context.Context, visitID, date, timeOfDay string) (*models.Visit, error) {
	body := map[string]string{
		"scheduled_date": date,
		"scheduled_time": timeOfDay,
	}
	var out models.Visit
	if err := c.sendJSON(ctx, "PUT", visitPath(visitID, "/reschedule"), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *RestAPI) CancelVisit(ctx context.Context, visitID, reason string) (*models.Visit, error) {
	body := map[string]string{"reason": reason}
	var out models.Visit
	if err := c.sendJSON(ctx, "PUT", visitPath(visitID, "/cancel"), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *RestAPI) CompleteVisit(ctx context.Context, visitID, notes string) (*models.Visit, error) {
	body := map[string]string{"notes": notes}
	var out models.Visit
	if err := c.sendJSON(ctx, "PUT", visitPath(visitID, "/complete"), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *RestAPI) DeleteVisit(ctx context.Context, visitID string) error {
	return c.do(ctx, "DELETE", visitPath(visitID, ""), nil, "", nil)
}

func (c *RestAPI) GetVisitHistory(ctx context.Context, visitID string) ([]models.VisitHistoryEntry, error) {
	var out []models.VisitHistoryEntry
	if err := c.getJSON(ctx, visitPath(visitID, "/history"), &out); err != nil {
		return nil, err
	}
	return out, nil
}
