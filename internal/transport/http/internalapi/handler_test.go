package internalapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/livechat/internal/domain"
	"github.com/xiaot623/livechat/internal/hub"
	"github.com/xiaot623/livechat/internal/notify"
	"github.com/xiaot623/livechat/internal/service"
	"github.com/xiaot623/livechat/internal/stream"
	"github.com/xiaot623/livechat/tests/helpers"
)

func newTestHandler(t *testing.T) (*Handler, *hub.Hub) {
	db := helpers.NewTestSQLiteStore(t)
	h := hub.NewHub(4)
	svc := service.New(db, stream.NewManager(h), notify.New(db, h), 0)
	return NewHandler(svc, h), h
}

func post(t *testing.T, h *Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/internal/notifications", bytes.NewBufferString(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	if err := h.CreateNotification(e.NewContext(req, rec)); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	return rec
}

func TestCreateNotificationPushesToAdmins(t *testing.T) {
	h, hb := newTestHandler(t)
	admin := hb.NewConnection(nil)
	hb.Register(admin)
	hb.Join(admin, domain.AdminsRoom)

	rec := post(t, h, `{"type":"contact","title":"New contact","body":"from Ha Noi","link":"/admin/contacts/3"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var n domain.Notification
	if err := json.Unmarshal(rec.Body.Bytes(), &n); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if n.NotificationID == "" || n.IsRead {
		t.Fatalf("unexpected notification: %+v", n)
	}
	if len(admin.Send) != 1 {
		t.Fatalf("expected one pushed frame, got %d", len(admin.Send))
	}
}

func TestCreateNotificationValidation(t *testing.T) {
	h, _ := newTestHandler(t)

	for _, body := range []string{
		`{"type":"order","title":"x"}`,
		`{"type":"comment"}`,
		`not json`,
	} {
		rec := post(t, h, body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("body %q: expected 400, got %d", body, rec.Code)
		}
	}
}

func TestHealthReportsCounters(t *testing.T) {
	h, hb := newTestHandler(t)
	conn := hb.NewConnection(nil)
	hb.Register(conn)
	hb.Join(conn, domain.AdminsRoom)

	e := echo.New()
	rec := httptest.NewRecorder()
	if err := h.Health(e.NewContext(httptest.NewRequest(http.MethodGet, "/health", nil), rec)); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	var resp struct {
		Status      string `json:"status"`
		Connections int    `json:"connections"`
		Rooms       int    `json:"rooms"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Connections != 1 || resp.Rooms != 1 {
		t.Fatalf("unexpected health: %+v", resp)
	}
}
