package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/modboard/internal/model"
)

// mockAuthService はAuthServiceInterfaceのテスト用モック。
type mockAuthService struct {
	getLoginURLFn    func(ctx context.Context, state string) (string, error)
	handleCallbackFn func(ctx context.Context, code string) (*model.Session, error)
}

func (m *mockAuthService) GetLoginURL(ctx context.Context, state string) (string, error) {
	if m.getLoginURLFn != nil {
		return m.getLoginURLFn(ctx, state)
	}
	return "https://accounts.google.com/o/oauth2/auth?state=" + state, nil
}

func (m *mockAuthService) HandleCallback(ctx context.Context, code string) (*model.Session, error) {
	if m.handleCallbackFn != nil {
		return m.handleCallbackFn(ctx, code)
	}
	return nil, nil
}

// mockSessionWriter はSessionWriterのテスト用モック。
type mockSessionWriter struct {
	written []*model.Session
	cleared int
	writeFn func(w http.ResponseWriter, session *model.Session) error
}

func (m *mockSessionWriter) Write(w http.ResponseWriter, session *model.Session) error {
	if m.writeFn != nil {
		return m.writeFn(w, session)
	}
	m.written = append(m.written, session)
	return nil
}

func (m *mockSessionWriter) Clear(w http.ResponseWriter) {
	m.cleared++
}

// mockPostService はPostServiceInterfaceのテスト用モック。
type mockPostService struct {
	listFn      func(ctx context.Context) (json.RawMessage, error)
	getFn       func(ctx context.Context, id string) (json.RawMessage, error)
	createFn    func(ctx context.Context, sess *model.Session, in model.PostInput) error
	updateFn    func(ctx context.Context, sess *model.Session, id string, in model.PostInput) error
	deleteFn    func(ctx context.Context, sess *model.Session, id string) error
	deleteAllFn func(ctx context.Context, sess *model.Session) error
}

func (m *mockPostService) List(ctx context.Context) (json.RawMessage, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return json.RawMessage(`[]`), nil
}

func (m *mockPostService) Get(ctx context.Context, id string) (json.RawMessage, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return json.RawMessage(`{}`), nil
}

func (m *mockPostService) Create(ctx context.Context, sess *model.Session, in model.PostInput) error {
	if m.createFn != nil {
		return m.createFn(ctx, sess, in)
	}
	return nil
}

func (m *mockPostService) Update(ctx context.Context, sess *model.Session, id string, in model.PostInput) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, sess, id, in)
	}
	return nil
}

func (m *mockPostService) Delete(ctx context.Context, sess *model.Session, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, sess, id)
	}
	return nil
}

func (m *mockPostService) DeleteAll(ctx context.Context, sess *model.Session) error {
	if m.deleteAllFn != nil {
		return m.deleteAllFn(ctx, sess)
	}
	return nil
}

// pingerFunc は関数をPingerとして扱う。
type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }
