package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/MStee09/BoltFreightCSP-sub004/internal/model"
	"github.com/MStee09/BoltFreightCSP-sub004/internal/service"
)

type stubThreadFinder struct {
	thread *model.Thread
}

func (s *stubThreadFinder) FindLiveByCode(_ context.Context, _ string) (*model.Thread, error) {
	if s.thread == nil {
		return nil, pgx.ErrNoRows
	}
	return s.thread, nil
}

type stubStarterFinder struct{}

func (s *stubStarterFinder) FindStarter(_ context.Context, _ string) (*model.EmailActivity, error) {
	return nil, pgx.ErrNoRows
}

type stubInboundStore struct{}

func (s *stubInboundStore) SaveInbound(_ context.Context, _ int, a *model.EmailActivity) (int64, error) {
	a.ID = 11
	return 1, nil
}

func newInboundTestRouter(thread *model.Thread) *gin.Engine {
	receiver := service.NewInboundReceiver(
		&stubThreadFinder{thread: thread},
		&stubStarterFinder{},
		&stubInboundStore{},
		zap.NewNop(),
	)
	h := NewInboundHandler(receiver, zap.NewNop())

	r := gin.New()
	r.POST("/inbound/email", h.ReceiveEmail)
	return r
}

func postInbound(r *gin.Engine, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/inbound/email", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestInboundWebhookCorrelated(t *testing.T) {
	r := newInboundTestRouter(&model.Thread{ID: 5, TrackingCode: "FO-A1B2C3D4"})

	w := postInbound(r, `{
		"from": "ops@carrier.example",
		"to": ["sales@forwarder.example"],
		"subject": "Re: Booking [FO-A1B2C3D4]",
		"body": "Confirmed",
		"messageId": "<m1@carrier.example>",
		"inReplyTo": "<m0@forwarder.example>"
	}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"success":true`)
	assert.Contains(t, w.Body.String(), "FO-A1B2C3D4")
	assert.Contains(t, w.Body.String(), `"emailId":11`)
}

func TestInboundWebhookNoTrackingCode(t *testing.T) {
	r := newInboundTestRouter(nil)

	w := postInbound(r, `{
		"from": "newsletter@example.com",
		"subject": "Weekly rates",
		"body": "..."
	}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "no tracking code")
}

func TestInboundWebhookUnknownToken(t *testing.T) {
	r := newInboundTestRouter(nil)

	w := postInbound(r, `{
		"from": "ops@carrier.example",
		"subject": "Re: [FO-ZZZZ9999]",
		"body": "..."
	}`)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), `"success":false`)
}

func TestInboundWebhookBadPayload(t *testing.T) {
	r := newInboundTestRouter(nil)

	w := postInbound(r, `{not json`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
