package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"linguachat/client/internal/backend"
	"linguachat/client/internal/composer"
	"linguachat/client/internal/livechannel"
	"linguachat/client/internal/localization"
	"linguachat/client/internal/models"
	"linguachat/client/internal/session"
	"linguachat/client/internal/store"
)

type statusResponse struct {
	Room         string `json:"room,omitempty"`
	Language     string `json:"language,omitempty"`
	Generation   uint64 `json:"generation"`
	Connection   string `json:"connection"`
	Label        string `json:"label"`
	Error        string `json:"error,omitempty"`
	Loaded       bool   `json:"loaded"`
	Fetching     bool   `json:"fetching"`
	Messages     int    `json:"messages"`
	Disconnected bool   `json:"disconnected"`
}

type viewResponse struct {
	Status  statusResponse `json:"status"`
	Entries []store.Entry  `json:"entries"`
}

type textRequest struct {
	Text string `json:"text"`
}

type languageRequest struct {
	Language string `json:"language" binding:"required"`
}

func (h *Handler) statusResponse(st session.Status) statusResponse {
	key := localization.ConnectionKey(st.Connection)
	if st.HasRoom && st.Fetching && !st.Loaded {
		key = localization.StatusLoading
	}

	resp := statusResponse{
		Connection:   st.Connection.String(),
		Label:        h.Labels.Label(st.Room.Language, key),
		Loaded:       st.Loaded,
		Fetching:     st.Fetching,
		Messages:     st.Messages,
		Disconnected: st.Disconnected(),
	}
	if st.HasRoom {
		resp.Room = st.Room.RoomID
		resp.Language = string(st.Room.Language)
		resp.Generation = st.Room.Generation
	}
	if st.ConnectionErr != nil {
		resp.Error = st.ConnectionErr.Error()
	}
	return resp
}

// errorStatus maps session errors to HTTP status codes.
func errorStatus(err error) int {
	var statusErr *backend.StatusError
	switch {
	case errors.Is(err, livechannel.ErrNotOpen), errors.Is(err, session.ErrNoRoom), errors.Is(err, session.ErrRoomChanged):
		return http.StatusConflict
	case errors.Is(err, composer.ErrEmptyMessage), errors.Is(err, composer.ErrMessageTooLong),
		errors.Is(err, models.ErrUnsupportedLanguage):
		return http.StatusBadRequest
	case errors.Is(err, livechannel.ErrSendQueueFull):
		return http.StatusTooManyRequests
	case errors.Is(err, session.ErrStopped):
		return http.StatusServiceUnavailable
	case errors.As(err, &statusErr), backend.IsTransient(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) fail(c *gin.Context, err error) {
	code := errorStatus(err)
	if code >= http.StatusInternalServerError {
		h.log.Warn("Bridge request failed", "path", c.FullPath(), "error", err)
	}
	c.AbortWithStatusJSON(code, gin.H{"error": err.Error()})
}

// GetLanguages lists the selectable display languages.
func (h *Handler) GetLanguages(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"languages": models.SupportedLanguages})
}

// GetRooms lists the rooms of the chat service.
func (h *Handler) GetRooms(c *gin.Context) {
	rooms, err := h.Rooms.ListRooms(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}

// OpenRoom opens the room in the ?language= display language.
func (h *Handler) OpenRoom(c *gin.Context) {
	lang := models.Language(c.Query("language"))
	if err := h.Chat.OpenRoom(c.Request.Context(), c.Param("id"), lang); err != nil {
		h.fail(c, err)
		return
	}
	h.GetView(c)
}

func (h *Handler) CloseRoom(c *gin.Context) {
	if err := h.Chat.CloseRoom(c.Request.Context()); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) Reload(c *gin.Context) {
	if err := h.Chat.Reload(c.Request.Context()); err != nil {
		h.fail(c, err)
		return
	}
	h.GetView(c)
}

// SetLanguage changes the display language of the open room.
func (h *Handler) SetLanguage(c *gin.Context) {
	var req languageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "language is required"})
		return
	}
	if err := h.Chat.SetDisplayLanguage(c.Request.Context(), models.Language(req.Language)); err != nil {
		h.fail(c, err)
		return
	}
	h.GetView(c)
}

func (h *Handler) GetStatus(c *gin.Context) {
	st, err := h.Chat.Status(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, h.statusResponse(st))
}

func (h *Handler) GetView(c *gin.Context) {
	resp, err := h.snapshot(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// PostMessage sends a message without touching the shared draft.
func (h *Handler) PostMessage(c *gin.Context) {
	var req textRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}

	oneShot := composer.New(h.Chat)
	oneShot.SetDraft(req.Text)
	if err := oneShot.Submit(c.Request.Context()); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

func (h *Handler) GetDraft(c *gin.Context) {
	c.JSON(http.StatusOK, textRequest{Text: h.Draft.Draft()})
}

func (h *Handler) PutDraft(c *gin.Context) {
	var req textRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	h.Draft.SetDraft(req.Text)
	c.Status(http.StatusNoContent)
}

// SubmitDraft sends the shared draft; it is kept when the send is rejected.
func (h *Handler) SubmitDraft(c *gin.Context) {
	if err := h.Draft.Submit(c.Request.Context()); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

func (h *Handler) snapshot(ctx context.Context) (viewResponse, error) {
	st, err := h.Chat.Status(ctx)
	if err != nil {
		return viewResponse{}, err
	}
	entries, err := h.Chat.View(ctx)
	if err != nil {
		return viewResponse{}, err
	}
	if entries == nil {
		entries = []store.Entry{}
	}
	return viewResponse{Status: h.statusResponse(st), Entries: entries}, nil
}
