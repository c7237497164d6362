package api

import "console/cmd/internal/auth/session"

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Image string `json:"image"`
}

type sessionResponse struct {
	User        *userResponse `json:"user"`
	AccessToken string        `json:"access_token,omitempty"`
	Error       string        `json:"error,omitempty"`
	CSRFToken   string        `json:"csrf_token,omitempty"`
}

func toSessionResponse(v session.View) sessionResponse {
	out := sessionResponse{AccessToken: v.AccessToken, Error: v.Error}
	if v.User != nil {
		out.User = &userResponse{
			ID:    v.User.ID,
			Name:  v.User.Name,
			Email: v.User.Email,
			Image: v.User.Image,
		}
	}
	return out
}
