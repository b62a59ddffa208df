package http

import (
	"encoding/json"
	stdhttp "net/http"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"opentales/app/internal/storage"
)

// maxUploadBytes caps portrait and map image uploads at 10 MiB.
const maxUploadBytes = 10 << 20

// The upload route speaks multipart rather than JSON, so it hangs off the
// mux directly instead of going through Huma.
func (s *Server) registerUploadRoute() {
	s.mux.HandleFunc("POST /upload", s.uploadHandler)
}

func (s *Server) uploadHandler(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	ctx := r.Context()

	if s.uploader == nil {
		writeUploadError(w, stdhttp.StatusServiceUnavailable, "image uploads are not configured in this mode")
		return
	}

	if _, err := s.userFromRequest(r); err != nil {
		writeUploadError(w, stdhttp.StatusUnauthorized, "authentication required")
		return
	}

	r.Body = stdhttp.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeUploadError(w, stdhttp.StatusRequestEntityTooLarge, "the uploaded file is too large")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeUploadError(w, stdhttp.StatusUnprocessableEntity, "a file form field is required")
		return
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			s.recordError(ctx, closeErr, "closing uploaded file", nil)
		}
	}()

	url, err := s.uploader.Upload(ctx, header.Filename, header.Header.Get("Content-Type"), header.Size, file)
	if err != nil {
		status := stdhttp.StatusInternalServerError
		message := errorFallbackMessage
		if eris.Is(err, storage.ErrBucketMissing) {
			message = "the storage bucket does not exist yet; create it and retry the upload"
		}
		s.recordError(ctx, err, "uploading file", logrus.Fields{"filename": header.Filename})
		writeUploadError(w, status, message)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(stdhttp.StatusCreated)
	if err := json.NewEncoder(w).Encode(map[string]string{"url": url}); err != nil {
		s.recordError(ctx, err, "encoding upload response", nil)
	}
}

// userFromRequest resolves the account for routes outside the Huma
// middleware chain.
func (s *Server) userFromRequest(r *stdhttp.Request) (uint, error) {
	if s.fallbackMode {
		guest, err := s.auth.EnsureGuest(r.Context())
		if err != nil {
			return 0, err
		}
		return guest.ID, nil
	}

	token := bearerToken(r.Header.Get("Authorization"))
	if token == "" {
		return 0, eris.New("missing bearer token")
	}
	user, err := s.auth.UserFromToken(r.Context(), token)
	if err != nil {
		return 0, err
	}
	return user.ID, nil
}

func writeUploadError(w stdhttp.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
