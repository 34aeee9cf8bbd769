package domain

import "time"

// ShareLink grants room access to holders of its token, without an account.
type ShareLink struct {
	Token     string    `json:"token"`
	ProjectID string    `json:"project_id"`
	Role      Role      `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

func (l *ShareLink) Expired(now time.Time) bool {
	return !l.ExpiresAt.IsZero() && now.After(l.ExpiresAt)
}

type CreateShareLinkRequest struct {
	Role      string `json:"role,omitempty" validate:"omitempty,oneof=VIEWER EDITOR"`
	ExpiresIn string `json:"expires_in,omitempty"`
}

type ShareLinkResponse struct {
	Token     string    `json:"token"`
	ProjectID string    `json:"project_id"`
	Role      Role      `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}
