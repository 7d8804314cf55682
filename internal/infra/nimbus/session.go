package nimbus

import (
	"context"
	"fmt"
)

type loginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type loginResponse struct {
	SessionID string `json:"sessionid"`
	ErrorCode int    `json:"errorCode"`
	Message   string `json:"message"`
}

// Login acquires a session token for subsequent calls. A failed login
// aborts the run; there is no point continuing without a session.
func (c *Client) Login(ctx context.Context, email, password string) error {
	var resp loginResponse
	if err := c.doJSON(ctx, "POST", "/auth/api/auth", "auth.login", loginRequest{Login: email, Password: password}, &resp); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if resp.SessionID == "" {
		if resp.Message != "" {
			return fmt.Errorf("login rejected: %s", resp.Message)
		}
		return fmt.Errorf("login rejected (code %d)", resp.ErrorCode)
	}
	c.token = resp.SessionID
	c.log.Debug("session established")
	return nil
}
