package http

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"github.com/sirupsen/logrus"

	"opentales/app/internal/auth"
)

type signUpInput struct {
	Body struct {
		Email       string `json:"email"`
		Password    string `json:"password"`
		DisplayName string `json:"display_name,omitempty"`
	}
}

type signInInput struct {
	Body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
}

type sessionResponse struct {
	Body struct {
		Token string     `json:"token"`
		User  *auth.User `json:"user"`
	}
}

type userResponse struct {
	Body *auth.User
}

func (s *Server) registerAuthRoutes() {
	huma.Post(s.api, "/auth/signup", s.signUpHandler, operation("Create an account"))
	huma.Post(s.api, "/auth/signin", s.signInHandler, operation("Sign in"))
	huma.Get(s.api, "/auth/me", s.meHandler, operation("Fetch the signed-in account"))
}

func (s *Server) signUpHandler(ctx context.Context, input *signUpInput) (*sessionResponse, error) {
	user, token, err := s.auth.SignUp(ctx, input.Body.Email, input.Body.Password, input.Body.DisplayName)
	if err != nil {
		return nil, s.fail(ctx, err, "signing up", logrus.Fields{"email": input.Body.Email})
	}

	resp := &sessionResponse{}
	resp.Body.Token = token
	resp.Body.User = user
	return resp, nil
}

func (s *Server) signInHandler(ctx context.Context, input *signInInput) (*sessionResponse, error) {
	user, token, err := s.auth.SignIn(ctx, input.Body.Email, input.Body.Password)
	if err != nil {
		return nil, s.fail(ctx, err, "signing in", logrus.Fields{"email": input.Body.Email})
	}

	resp := &sessionResponse{}
	resp.Body.Token = token
	resp.Body.User = user
	return resp, nil
}

func (s *Server) meHandler(ctx context.Context, _ *struct{}) (*userResponse, error) {
	user, err := s.requireUser(ctx)
	if err != nil {
		return nil, err
	}
	return &userResponse{Body: user}, nil
}
