package client

import (
	"context"
	"fmt"
	"net/url"

	"vizit/models"
)

// GetAvailability fetches the raw availability window for a provider.
// Degradation decisions (not found, own-service) belong to the resolver.
func (c *RestAPI) GetAvailability(ctx context.Context, providerID, startDate, endDate string) (*models.AvailabilityResponse, error) {
	q := url.Values{}
	q.Set("startDate", startDate)
	q.Set("endDate", endDate)
	path := fmt.Sprintf("/providers/%s/availability?%s", url.PathEscape(providerID), q.Encode())

	var out models.AvailabilityResponse
	if err := c.getJSON(ctx, path, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
