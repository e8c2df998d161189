package client

import "context"

// RefreshToken exchanges a refresh token for a fresh credential pair.
// Consumed exclusively by the realtime channel's single-flight refresh.
func (c *RestAPI) RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	body := map[string]string{"refreshToken": refreshToken}
	var out TokenPair
	if err := c.sendJSON(ctx, "POST", "/auth/refresh", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
