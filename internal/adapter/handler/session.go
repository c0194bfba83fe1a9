package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/chronicae/chronicler/errors"
	"github.com/chronicae/chronicler/internal/adapter/dto/common"
	dtosession "github.com/chronicae/chronicler/internal/adapter/dto/session"
	"github.com/chronicae/chronicler/internal/domain/entities"
	"github.com/chronicae/chronicler/internal/infrastructure/storage"
	usecasesession "github.com/chronicae/chronicler/internal/usecase/session"
)

// Sessions handles the session lifecycle API
type Sessions struct {
	svc          *usecasesession.Service
	blobs        *storage.BlobStore
	signedURLTTL time.Duration
	logger       *zap.Logger
}

// NewSessions creates the session handler
func NewSessions(svc *usecasesession.Service, blobs *storage.BlobStore, signedURLTTL time.Duration, logger *zap.Logger) *Sessions {
	return &Sessions{svc: svc, blobs: blobs, signedURLTTL: signedURLTTL, logger: logger}
}

// Create opens a new recording session
func (h *Sessions) Create(c echo.Context) error {
	var req dtosession.CreateRequest
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, err)
	}

	sess, err := h.svc.Start(c.Request().Context(), req.Campaign, toEntityContext(req.Context))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, dtosession.SessionResponse{Session: sess})
}

// End closes the capture phase and starts the completion monitor
func (h *Sessions) End(c echo.Context) error {
	sessionID := c.Param("id")

	sess, err := h.svc.End(c.Request().Context(), sessionID)
	if err != nil {
		return respondError(c, err)
	}

	// The monitor outlives the request; it drains the queues and builds the
	// master in the background
	go func() {
		if err := h.svc.WaitAndFinalize(context.Background(), sessionID); err != nil {
			h.logger.Error("Session finalization failed",
				zap.String("session_id", sessionID), zap.Error(err))
		}
	}()

	return c.JSON(http.StatusOK, dtosession.SessionResponse{Session: sess})
}

// Status reports clip progress and queue depths
func (h *Sessions) Status(c echo.Context) error {
	status, err := h.svc.Status(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, status)
}

// Transcript returns the cleaned, time-ordered transcript
func (h *Sessions) Transcript(c echo.Context) error {
	lines, err := h.svc.Transcript(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"session_id": c.Param("id"),
		"lines":      lines,
	})
}

// Master returns a signed download URL for the mixed master track
func (h *Sessions) Master(c echo.Context) error {
	sessionID := c.Param("id")

	sess, err := h.svc.Get(c.Request().Context(), sessionID)
	if err != nil {
		return respondError(c, err)
	}
	if sess.MasterObject == nil {
		return respondError(c, errors.ErrMasterNotReady(sessionID))
	}

	url, err := h.blobs.SignedURL(c.Request().Context(), *sess.MasterObject, h.signedURLTTL)
	if err != nil {
		return respondError(c, errors.ErrInternal(err))
	}
	return c.JSON(http.StatusOK, dtosession.MasterResponse{
		SessionID: sessionID,
		URL:       url,
		ExpiresIn: int64(h.signedURLTTL.Seconds()),
	})
}

// UpdateContext replaces the session's narrative context
func (h *Sessions) UpdateContext(c echo.Context) error {
	var req dtosession.ContextRequest
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, err)
	}

	if err := h.svc.UpdateContext(c.Request().Context(), c.Param("id"), toEntityContext(&req.ContextPayload)); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, common.SuccessResponse{Message: "context updated"})
}

// AddNote attaches a timestamped note to the session
func (h *Sessions) AddNote(c echo.Context) error {
	var req dtosession.NoteRequest
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, err)
	}

	if err := h.svc.AddNote(c.Request().Context(), c.Param("id"), req.AuthorID, req.Content, req.NotedAt); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, common.SuccessResponse{Message: "note recorded"})
}

// Reset wipes the session's clips, notes and queued jobs
func (h *Sessions) Reset(c echo.Context) error {
	result, err := h.svc.Reset(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, common.SuccessResponse{
		Message: "session reset",
		Data:    result,
	})
}

func toEntityContext(p *dtosession.ContextPayload) *entities.SessionContext {
	if p == nil {
		return nil
	}
	return &entities.SessionContext{
		Campaign:      p.Campaign,
		LocationMacro: p.LocationMacro,
		LocationMicro: p.LocationMicro,
		Speakers:      p.Speakers,
	}
}
