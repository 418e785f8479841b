package handler_test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"linguachat/client/internal/models"
	"linguachat/client/internal/session"
	"linguachat/client/internal/store"
)

type MockChat struct {
	mock.Mock
}

func (m *MockChat) OpenRoom(ctx context.Context, roomID string, lang models.Language) error {
	args := m.Called(ctx, roomID, lang)
	return args.Error(0)
}

func (m *MockChat) CloseRoom(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockChat) SetDisplayLanguage(ctx context.Context, lang models.Language) error {
	args := m.Called(ctx, lang)
	return args.Error(0)
}

func (m *MockChat) Reload(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockChat) Send(ctx context.Context, text string) error {
	args := m.Called(ctx, text)
	return args.Error(0)
}

func (m *MockChat) View(ctx context.Context) ([]store.Entry, error) {
	args := m.Called(ctx)
	entries, _ := args.Get(0).([]store.Entry)
	return entries, args.Error(1)
}

func (m *MockChat) Status(ctx context.Context) (session.Status, error) {
	args := m.Called(ctx)
	return args.Get(0).(session.Status), args.Error(1)
}

type MockRooms struct {
	mock.Mock
}

func (m *MockRooms) ListRooms(ctx context.Context) ([]models.ChatRoom, error) {
	args := m.Called(ctx)
	rooms, _ := args.Get(0).([]models.ChatRoom)
	return rooms, args.Error(1)
}
