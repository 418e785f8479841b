// Package handler exposes a session over a local HTTP and websocket bridge
// for browser front-ends.
package handler

import (
	"context"
	"log/slog"

	"github.com/gin-gonic/gin"

	"linguachat/client/internal/composer"
	"linguachat/client/internal/localization"
	"linguachat/client/internal/models"
	"linguachat/client/internal/session"
	"linguachat/client/internal/store"
)

// Chat is the session API served by the bridge.
type Chat interface {
	OpenRoom(ctx context.Context, roomID string, lang models.Language) error
	CloseRoom(ctx context.Context) error
	SetDisplayLanguage(ctx context.Context, lang models.Language) error
	Reload(ctx context.Context) error
	Send(ctx context.Context, text string) error
	View(ctx context.Context) ([]store.Entry, error)
	Status(ctx context.Context) (session.Status, error)
}

// RoomLister lists the rooms the viewer can open.
type RoomLister interface {
	ListRooms(ctx context.Context) ([]models.ChatRoom, error)
}

// Handler holds the bridge dependencies.
type Handler struct {
	Chat   Chat
	Rooms  RoomLister
	Draft  *composer.Composer
	Labels *localization.Localizer
	Feed   *Feed
	log    *slog.Logger
}

func NewHandler(chat Chat, rooms RoomLister, labels *localization.Localizer, feed *Feed, log *slog.Logger) *Handler {
	return &Handler{
		Chat:   chat,
		Rooms:  rooms,
		Draft:  composer.New(chat),
		Labels: labels,
		Feed:   feed,
		log:    log,
	}
}

// Register mounts the bridge routes on r.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/languages", h.GetLanguages)
	r.GET("/rooms", h.GetRooms)
	r.POST("/rooms/:id/open", h.OpenRoom)
	r.POST("/room/close", h.CloseRoom)
	r.POST("/room/reload", h.Reload)
	r.PUT("/language", h.SetLanguage)
	r.GET("/status", h.GetStatus)
	r.GET("/view", h.GetView)
	r.POST("/messages", h.PostMessage)
	r.GET("/draft", h.GetDraft)
	r.PUT("/draft", h.PutDraft)
	r.POST("/draft/submit", h.SubmitDraft)
	r.GET("/ws", h.ServeWebSocket)
}
