package http

import (
	"context"
	stdhttp "net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/sirupsen/logrus"

	"opentales/app/internal/db"
)

type healthResponse struct {
	Status int
	Body   struct {
		Status   string `json:"status"`
		Database string `json:"database"`
		Storage  string `json:"storage"`
		Mode     string `json:"mode"`
	}
}

func (s *Server) registerHealthRoute() {
	huma.Get(s.api, "/healthz", s.healthHandler, func(op *huma.Operation) {
		op.Summary = "Health check"
	})
}

func (s *Server) healthHandler(ctx context.Context, _ *struct{}) (*healthResponse, error) {
	resp := &healthResponse{}
	resp.Body.Status = "ok"
	resp.Body.Database = "ok"
	resp.Body.Storage = "ok"
	resp.Body.Mode = "hosted"
	if s.fallbackMode {
		resp.Body.Mode = "fallback"
	}

	sqlDB, err := db.SQLDB(s.db)
	if err != nil {
		s.recordError(ctx, err, "obtaining sql db", nil)
		resp.Body.Status = "degraded"
		resp.Body.Database = "error"
		resp.Status = stdhttp.StatusServiceUnavailable
	} else if pingErr := sqlDB.PingContext(ctx); pingErr != nil {
		s.recordError(ctx, pingErr, "pinging database", nil)
		resp.Body.Status = "degraded"
		resp.Body.Database = "error"
		resp.Status = stdhttp.StatusServiceUnavailable
	}

	if s.uploader == nil {
		resp.Body.Storage = "unconfigured"
	}

	if resp.Status == 0 {
		resp.Status = stdhttp.StatusOK
	}

	return resp, nil
}

// operation builds the minimal Huma metadata for a JSON route.
func operation(summary string) func(op *huma.Operation) {
	return func(op *huma.Operation) {
		op.Summary = summary
	}
}

// fail translates a domain error into its HTTP shape and records it when it
// is a server-side failure rather than a client mistake.
func (s *Server) fail(ctx context.Context, err error, message string, fields logrus.Fields) error {
	apiErr := classifyError(err)
	if apiErr.GetStatus() >= stdhttp.StatusInternalServerError {
		s.recordError(ctx, err, message, fields)
	}
	return apiErr
}
