package handler

import (
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/chronicae/chronicler/errors"
	usecasesession "github.com/chronicae/chronicler/internal/usecase/session"
)

// Clips handles per-speaker clip ingestion
type Clips struct {
	svc           *usecasesession.Service
	recordingsDir string
	logger        *zap.Logger
}

// NewClips creates the clip ingestion handler
func NewClips(svc *usecasesession.Service, recordingsDir string, logger *zap.Logger) *Clips {
	return &Clips{svc: svc, recordingsDir: recordingsDir, logger: logger}
}

// Ingest accepts a multipart clip upload: the audio file plus session_id,
// speaker_id and captured_at (epoch ms) form fields. The file lands in the
// capture directory and a transcription job is queued.
func (h *Clips) Ingest(c echo.Context) error {
	sessionID := c.FormValue("session_id")
	speakerID := c.FormValue("speaker_id")
	if sessionID == "" || speakerID == "" {
		return respondError(c, errors.ErrInvalidArgument("session_id and speaker_id are required"))
	}

	capturedAt, err := strconv.ParseInt(c.FormValue("captured_at"), 10, 64)
	if err != nil || capturedAt <= 0 {
		return respondError(c, errors.ErrInvalidArgument("captured_at must be a positive epoch millisecond timestamp"))
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return respondError(c, errors.ErrInvalidArgument("audio file is required"))
	}

	// The upload's base name is the clip's identity across the whole
	// pipeline; strip any path the client sent
	filename := filepath.Base(fileHeader.Filename)
	if filename == "" || filename == "." || filename == string(filepath.Separator) {
		return respondError(c, errors.ErrInvalidArgument("invalid clip filename"))
	}

	if err := h.saveUpload(fileHeader, filename); err != nil {
		h.logger.Error("Failed to store uploaded clip",
			zap.String("filename", filename), zap.Error(err))
		return respondError(c, errors.ErrInternal(err))
	}

	clip, err := h.svc.IngestClip(c.Request().Context(), sessionID, speakerID, filename, capturedAt)
	if err != nil {
		// The row failed, keep the directory consistent with the store
		os.Remove(filepath.Join(h.recordingsDir, filename))
		return respondError(c, err)
	}

	return c.JSON(http.StatusCreated, clip)
}

func (h *Clips) saveUpload(fileHeader *multipart.FileHeader, filename string) error {
	src, err := fileHeader.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	if err := os.MkdirAll(h.recordingsDir, 0o755); err != nil {
		return err
	}
	dst, err := os.Create(filepath.Join(h.recordingsDir, filename))
	if err != nil {
		return err
	}
	defer dst.Close()

	_, err = io.Copy(dst, src)
	return err
}
