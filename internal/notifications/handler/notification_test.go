package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/julienschmidt/httprouter"

	"medislot/pkg/auth"
	apperrors "medislot/pkg/errors"
	"medislot/pkg/logger"
	"medislot/pkg/model"
)

// Mock service for testing
type mockNotificationService struct {
	listForUserFunc func(ctx context.Context, userID string, limit int, offset int64) ([]*model.Notification, int64, error)
	markReadFunc    func(ctx context.Context, id, actorID string) error
}

func (m *mockNotificationService) Notify(ctx context.Context, recipientID, message string) (*model.Notification, error) {
	return nil, nil
}

func (m *mockNotificationService) DeliverLocal(n *model.Notification) bool {
	return false
}

func (m *mockNotificationService) ListForUser(ctx context.Context, userID string, limit int, offset int64) ([]*model.Notification, int64, error) {
	if m.listForUserFunc != nil {
		return m.listForUserFunc(ctx, userID, limit, offset)
	}
	return []*model.Notification{}, 0, nil
}

func (m *mockNotificationService) ListUnread(ctx context.Context, userID string) ([]*model.Notification, error) {
	return []*model.Notification{}, nil
}

func (m *mockNotificationService) MarkRead(ctx context.Context, id, actorID string) error {
	if m.markReadFunc != nil {
		return m.markReadFunc(ctx, id, actorID)
	}
	return nil
}

func (m *mockNotificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	return 0, nil
}

func newRouter(svc *mockNotificationService) *httprouter.Router {
	router := httprouter.New()
	NewNotificationHandler(svc, logger.Discard()).RegisterRoutes(router)
	return router
}

func asUser(r *http.Request, id string) *http.Request {
	return r.WithContext(auth.WithActor(r.Context(), model.Actor{ID: id, Role: model.RolePatient}))
}

func TestListMine(t *testing.T) {
	var gotUser string
	var gotLimit int
	svc := &mockNotificationService{
		listForUserFunc: func(ctx context.Context, userID string, limit int, offset int64) ([]*model.Notification, int64, error) {
			gotUser, gotLimit = userID, limit
			return []*model.Notification{{ID: "n1", RecipientID: userID, Message: "m"}}, 7, nil
		},
	}
	router := newRouter(svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodGet, "/api/v1/notifications/my?limit=5", nil), "u1"))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if gotUser != "u1" || gotLimit != 5 {
		t.Errorf("service called with user=%q limit=%d", gotUser, gotLimit)
	}

	var body struct {
		Data       []model.Notification `json:"data"`
		TotalCount int64                `json:"total_count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("bad json: %v", err)
	}
	if body.TotalCount != 7 || len(body.Data) != 1 {
		t.Errorf("unexpected body: %+v", body)
	}
}

func TestListMine_InvalidLimit(t *testing.T) {
	rec := httptest.NewRecorder()
	newRouter(&mockNotificationService{}).ServeHTTP(rec,
		asUser(httptest.NewRequest(http.MethodGet, "/api/v1/notifications/my?limit=abc", nil), "u1"))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestMarkRead(t *testing.T) {
	tests := []struct {
		name       string
		serviceErr error
		wantCode   int
	}{
		{"ok", nil, http.StatusNoContent},
		{"forbidden", apperrors.Forbidden("no"), http.StatusForbidden},
		{"not found", apperrors.NotFound("Notification"), http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotID, gotActor string
			svc := &mockNotificationService{
				markReadFunc: func(ctx context.Context, id, actorID string) error {
					gotID, gotActor = id, actorID
					return tt.serviceErr
				},
			}

			rec := httptest.NewRecorder()
			newRouter(svc).ServeHTTP(rec,
				asUser(httptest.NewRequest(http.MethodPatch, "/api/v1/notifications/id/abc123/read", nil), "u1"))

			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if gotID != "abc123" || gotActor != "u1" {
				t.Errorf("service called with id=%q actor=%q", gotID, gotActor)
			}
		})
	}
}

func TestRequiresActor(t *testing.T) {
	rec := httptest.NewRecorder()
	newRouter(&mockNotificationService{}).ServeHTTP(rec,
		httptest.NewRequest(http.MethodPatch, "/api/v1/notifications/read-all", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}
