package service

import (
	"context"
	"errors"
	"testing"

	"github.com/emersion/go-smtp"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/MStee09/BoltFreightCSP-sub004/internal/model"
	"github.com/MStee09/BoltFreightCSP-sub004/internal/repository"
	"github.com/MStee09/BoltFreightCSP-sub004/pkg/circuitbreaker"
	"github.com/MStee09/BoltFreightCSP-sub004/pkg/mailer"
	"github.com/MStee09/BoltFreightCSP-sub004/pkg/token"
)

type fakeCreds struct {
	cred *model.MailboxCredential
	err  error
}

func (f *fakeCreds) Get(_ context.Context, _ int) (*model.MailboxCredential, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.cred, nil
}

type sentMail struct {
	account mailer.Account
	msg     *mailer.Message
}

type fakeTransport struct {
	sent []sentMail
	errs []error
}

func (f *fakeTransport) Send(account mailer.Account, msg *mailer.Message) error {
	f.sent = append(f.sent, sentMail{account: account, msg: msg})
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return err
	}
	return nil
}

type fakeOutboundStore struct {
	activities []*model.EmailActivity
	threads    []*model.Thread
	errs       []error
}

func (f *fakeOutboundStore) SaveOutbound(_ context.Context, _ int, a *model.EmailActivity, newThread *model.Thread) error {
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return err
		}
	}
	a.ID = len(f.activities) + 1
	f.activities = append(f.activities, a)
	if newThread != nil {
		f.threads = append(f.threads, newThread)
	}
	return nil
}

func testCred() *model.MailboxCredential {
	return &model.MailboxCredential{
		UserID:       1,
		EmailAddress: "sales@forwarder.example",
		AuthType:     model.CredentialSMTP,
		AppPassword:  "app-pass",
	}
}

func liveThreads(codes ...string) *fakeThreadFinder {
	threads := make(map[string]*model.Thread, len(codes))
	for i, code := range codes {
		threads[code] = &model.Thread{ID: i + 1, TrackingCode: code}
	}
	return &fakeThreadFinder{threads: threads}
}

func newTestSender(creds CredentialSource, threads ThreadFinder, store OutboundStore, transport MailTransport) *OutboundSender {
	breaker := circuitbreaker.NewCircuitBreaker(circuitbreaker.DefaultConfig())
	return NewOutboundSender(creds, threads, store, transport, breaker, zap.NewNop())
}

func TestSendFreshThread(t *testing.T) {
	transport := &fakeTransport{}
	store := &fakeOutboundStore{}
	s := newTestSender(&fakeCreds{cred: testCred()}, liveThreads(), store, transport)

	one := 7
	result, err := s.Send(context.Background(), 1, &OutboundRequest{
		To:         []string{"ops@carrier.example"},
		Subject:    "Rate confirmation Hamburg",
		Body:       "Please confirm.",
		CSPEventID: &one,
	})

	require.NoError(t, err)
	assert.NotEmpty(t, result.TrackingCode)
	assert.Equal(t, result.TrackingCode, token.Extract("x ["+result.TrackingCode+"]"))

	require.Len(t, transport.sent, 1)
	sent := transport.sent[0]
	assert.Equal(t, "sales@forwarder.example", sent.account.Address)
	assert.Equal(t, "app-pass", sent.account.Secret)
	assert.Equal(t, result.TrackingCode, token.Extract(sent.msg.Subject))
	assert.NotEmpty(t, sent.msg.MessageID)

	require.Len(t, store.activities, 1)
	assert.True(t, store.activities[0].IsThreadStarter)
	assert.Equal(t, model.DirectionOutbound, store.activities[0].Direction)

	require.Len(t, store.threads, 1)
	assert.Equal(t, model.ThreadActive, store.threads[0].Status)
	require.NotNil(t, store.threads[0].CSPEventID)
	assert.Equal(t, 7, *store.threads[0].CSPEventID)
}

func TestSendFollowUpReusesCode(t *testing.T) {
	transport := &fakeTransport{}
	store := &fakeOutboundStore{}
	s := newTestSender(&fakeCreds{cred: testCred()}, liveThreads("FO-A1B2C3D4"), store, transport)

	result, err := s.Send(context.Background(), 1, &OutboundRequest{
		TrackingCode: "FO-A1B2C3D4",
		To:           []string{"ops@carrier.example"},
		Subject:      "Any news?",
		Body:         "Following up.",
	})

	require.NoError(t, err)
	assert.Equal(t, "FO-A1B2C3D4", result.TrackingCode)
	require.Len(t, transport.sent, 1)
	assert.Equal(t, "FO-A1B2C3D4", token.Extract(transport.sent[0].msg.Subject))

	require.Len(t, store.activities, 1)
	assert.False(t, store.activities[0].IsThreadStarter)
	assert.Empty(t, store.threads)
}

func TestSendFollowUpUnknownThread(t *testing.T) {
	transport := &fakeTransport{}
	store := &fakeOutboundStore{}
	s := newTestSender(&fakeCreds{cred: testCred()}, liveThreads(), store, transport)

	_, err := s.Send(context.Background(), 1, &OutboundRequest{
		TrackingCode: "FO-DEADBEEF",
		To:           []string{"ops@carrier.example"},
		Subject:      "Any news?",
		Body:         "Following up.",
	})

	assert.ErrorIs(t, err, ErrUnknownThread)
	assert.Empty(t, transport.sent)
	assert.Empty(t, store.activities)
}

func TestSendSubjectAlreadyCarriesCode(t *testing.T) {
	transport := &fakeTransport{}
	store := &fakeOutboundStore{}
	s := newTestSender(&fakeCreds{cred: testCred()}, liveThreads("FO-A1B2C3D4"), store, transport)

	_, err := s.Send(context.Background(), 1, &OutboundRequest{
		TrackingCode: "FO-A1B2C3D4",
		To:           []string{"ops@carrier.example"},
		Subject:      "Re: Any news? [FO-A1B2C3D4]",
		Body:         "Still waiting.",
	})

	require.NoError(t, err)
	require.Len(t, transport.sent, 1)
	// not embedded a second time
	assert.Equal(t, "Re: Any news? [FO-A1B2C3D4]", transport.sent[0].msg.Subject)
}

func TestSendWithoutCredential(t *testing.T) {
	s := newTestSender(&fakeCreds{err: pgx.ErrNoRows}, liveThreads(), &fakeOutboundStore{}, &fakeTransport{})

	_, err := s.Send(context.Background(), 1, &OutboundRequest{
		To:      []string{"ops@carrier.example"},
		Subject: "hi",
		Body:    "hi",
	})

	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestSendCredentialRejected(t *testing.T) {
	transport := &fakeTransport{errs: []error{
		mailer.Classify(&smtp.SMTPError{Code: 535, Message: "authentication failed"}),
	}}
	store := &fakeOutboundStore{}
	s := newTestSender(&fakeCreds{cred: testCred()}, liveThreads(), store, transport)

	_, err := s.Send(context.Background(), 1, &OutboundRequest{
		To:      []string{"ops@carrier.example"},
		Subject: "hi",
		Body:    "hi",
	})

	assert.ErrorIs(t, err, mailer.ErrCredentialInvalid)
	assert.Empty(t, store.activities)
}

func TestSendRetriesOnceOnCodeCollision(t *testing.T) {
	transport := &fakeTransport{}
	store := &fakeOutboundStore{errs: []error{repository.ErrDuplicateTrackingCode}}
	s := newTestSender(&fakeCreds{cred: testCred()}, liveThreads(), store, transport)

	result, err := s.Send(context.Background(), 1, &OutboundRequest{
		To:      []string{"ops@carrier.example"},
		Subject: "Rate confirmation",
		Body:    "Please confirm.",
	})

	require.NoError(t, err)
	// the collided attempt was transmitted too; the retry used a new
	// code so the recorded email matches what actually went out
	require.Len(t, transport.sent, 2)
	firstCode := token.Extract(transport.sent[0].msg.Subject)
	secondCode := token.Extract(transport.sent[1].msg.Subject)
	assert.NotEqual(t, firstCode, secondCode)
	assert.Equal(t, secondCode, result.TrackingCode)

	require.Len(t, store.activities, 1)
	assert.Equal(t, secondCode, store.activities[0].TrackingCode)
}

func TestSendCollisionOnFollowUpIsFatal(t *testing.T) {
	transport := &fakeTransport{}
	store := &fakeOutboundStore{errs: []error{repository.ErrDuplicateTrackingCode}}
	s := newTestSender(&fakeCreds{cred: testCred()}, liveThreads("FO-A1B2C3D4"), store, transport)

	_, err := s.Send(context.Background(), 1, &OutboundRequest{
		TrackingCode: "FO-A1B2C3D4",
		To:           []string{"ops@carrier.example"},
		Subject:      "hi",
		Body:         "hi",
	})

	assert.ErrorIs(t, err, repository.ErrDuplicateTrackingCode)
	assert.Len(t, transport.sent, 1)
}

func TestSendRecordingFailure(t *testing.T) {
	transport := &fakeTransport{}
	store := &fakeOutboundStore{errs: []error{errors.New("connection reset")}}
	s := newTestSender(&fakeCreds{cred: testCred()}, liveThreads(), store, transport)

	_, err := s.Send(context.Background(), 1, &OutboundRequest{
		To:      []string{"ops@carrier.example"},
		Subject: "hi",
		Body:    "hi",
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not recorded")
}
