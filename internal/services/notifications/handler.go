package notifications

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/events2go/notify-hub/internal/auth"
	"github.com/events2go/notify-hub/internal/domain/notification"
)

// APIError is the stable error envelope: Kind is machine-readable, Message
// is for humans.
type APIError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	Error APIError `json:"error"`
}

type listResponse struct {
	Items      []*notification.Notification `json:"items"`
	NextCursor string                       `json:"next_cursor,omitempty"`
}

type countResponse struct {
	Count int64 `json:"count"`
}

type createRequest struct {
	RecipientID string         `json:"recipient_id" validate:"required,max=64"`
	ActorID     *string        `json:"actor_id,omitempty"`
	Title       string         `json:"title" validate:"required,max=255"`
	Body        string         `json:"body" validate:"required"`
	Metadata    map[string]any `json:"metadata"`
	Channel     string         `json:"channel" validate:"omitempty,oneof=in_app email sms push"`
}

type sendTestRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Handler exposes the query API. Every route requires the same bearer
// credential as the push endpoint and only ever operates on the caller's
// own records, except Create which addresses an explicit recipient.
type Handler struct {
	log *zap.Logger
	uc  *Usecase
}

func NewHandler(log *zap.Logger, uc *Usecase) *Handler {
	return &Handler{log: log, uc: uc}
}

func (h *Handler) Register(g *echo.Group) {
	g.GET("", h.List)
	g.GET("/unread-count", h.UnreadCount)
	g.GET("/:id", h.Get)
	g.POST("", h.Create)
	g.POST("/send-test", h.SendTest)
	g.POST("/:id/read", h.MarkRead)
	g.POST("/:id/archive", h.Archive)
	g.POST("/read-all", h.MarkAllRead)
}

func (h *Handler) List(c echo.Context) error {
	recipientID, ok := auth.RecipientID(c)
	if !ok {
		return notification.ErrUnauthenticated
	}

	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be an integer")
		}
		limit = n
	}

	res, err := h.uc.List(c.Request().Context(), recipientID, limit, c.QueryParam("cursor"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, listResponse{Items: res.Items, NextCursor: res.NextCursor})
}

func (h *Handler) Get(c echo.Context) error {
	recipientID, ok := auth.RecipientID(c)
	if !ok {
		return notification.ErrUnauthenticated
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}

	rec, err := h.uc.Get(c.Request().Context(), recipientID, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) UnreadCount(c echo.Context) error {
	recipientID, ok := auth.RecipientID(c)
	if !ok {
		return notification.ErrUnauthenticated
	}
	n, err := h.uc.UnreadCount(c.Request().Context(), recipientID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, countResponse{Count: n})
}

func (h *Handler) Create(c echo.Context) error {
	if _, ok := auth.RecipientID(c); !ok {
		return notification.ErrUnauthenticated
	}

	var req createRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	rec, err := h.uc.Create(c.Request().Context(), CreateInput{
		RecipientID: req.RecipientID,
		ActorID:     req.ActorID,
		Title:       req.Title,
		Body:        req.Body,
		Metadata:    req.Metadata,
		Channel:     notification.Channel(req.Channel),
	})
	if err != nil {
		return err
	}

	h.log.Info("notification created",
		zap.Int64("id", rec.ID),
		zap.String("recipient_id", rec.RecipientID),
		zap.String("channel", string(rec.Channel)),
	)
	return c.JSON(http.StatusCreated, rec)
}

// SendTest creates a self-addressed notification, handy for verifying the
// push pipeline end to end from a client.
func (h *Handler) SendTest(c echo.Context) error {
	recipientID, ok := auth.RecipientID(c)
	if !ok {
		return notification.ErrUnauthenticated
	}

	req := sendTestRequest{Title: "Hello", Body: "Welcome to Events2Go"}
	_ = c.Bind(&req)

	rec, err := h.uc.Create(c.Request().Context(), CreateInput{
		RecipientID: recipientID,
		Title:       req.Title,
		Body:        req.Body,
		Metadata:    map[string]any{},
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, rec)
}

func (h *Handler) MarkRead(c echo.Context) error {
	recipientID, ok := auth.RecipientID(c)
	if !ok {
		return notification.ErrUnauthenticated
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}

	rec, err := h.uc.MarkRead(c.Request().Context(), recipientID, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) Archive(c echo.Context) error {
	recipientID, ok := auth.RecipientID(c)
	if !ok {
		return notification.ErrUnauthenticated
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}

	rec, err := h.uc.Archive(c.Request().Context(), recipientID, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) MarkAllRead(c echo.Context) error {
	recipientID, ok := auth.RecipientID(c)
	if !ok {
		return notification.ErrUnauthenticated
	}
	n, err := h.uc.MarkAllRead(c.Request().Context(), recipientID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, countResponse{Count: n})
}

func pathID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		// Malformed ids are indistinguishable from absent records.
		return 0, notification.ErrNotFound
	}
	return id, nil
}

// HTTPErrorHandler maps domain errors to the stable JSON envelope.
func HTTPErrorHandler(log *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, apiErr := mapError(err)
		if status >= http.StatusInternalServerError {
			log.Error("request failed", zap.String("path", c.Request().URL.Path), zap.Error(err))
		}
		if jsonErr := c.JSON(status, errorEnvelope{Error: apiErr}); jsonErr != nil {
			log.Error("write error response", zap.Error(jsonErr))
		}
	}
}

func mapError(err error) (int, APIError) {
	var echoErr *echo.HTTPError
	if errors.As(err, &echoErr) {
		msg, _ := echoErr.Message.(string)
		if msg == "" {
			msg = http.StatusText(echoErr.Code)
		}
		return echoErr.Code, APIError{Kind: "invalid_argument", Message: msg}
	}

	switch {
	case errors.Is(err, notification.ErrNotFound):
		return http.StatusNotFound, APIError{
			Kind:    "not_found",
			Message: "notification not found",
		}
	case errors.Is(err, notification.ErrInvalidTransition):
		return http.StatusConflict, APIError{
			Kind:    "invalid_transition",
			Message: "status can only move forward in the lifecycle",
		}
	case errors.Is(err, notification.ErrUnauthenticated):
		return http.StatusUnauthorized, APIError{
			Kind:    "unauthenticated",
			Message: "a valid bearer credential is required",
		}
	case errors.Is(err, notification.ErrUnavailable):
		return http.StatusServiceUnavailable, APIError{
			Kind:    "unavailable",
			Message: "the service is temporarily unavailable",
		}
	case errors.Is(err, ErrInvalidCursor), errors.Is(err, ErrEmptyField):
		return http.StatusBadRequest, APIError{
			Kind:    "invalid_argument",
			Message: err.Error(),
		}
	default:
		var ve *ValidationError
		if errors.As(err, &ve) {
			return http.StatusBadRequest, APIError{
				Kind:    "invalid_argument",
				Message: ve.Error(),
			}
		}
		return http.StatusInternalServerError, APIError{
			Kind:    "internal",
			Message: "an unexpected error occurred",
		}
	}
}
