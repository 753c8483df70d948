package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alanyoungcy/hotpot/internal/crypto"
	"github.com/alanyoungcy/hotpot/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingSender struct {
	name string
	err  error

	mu   sync.Mutex
	got  []domain.Toast
	sent chan struct{}
}

func newRecordingSender(name string, err error) *recordingSender {
	return &recordingSender{name: name, err: err, sent: make(chan struct{}, 10)}
}

func (s *recordingSender) Send(ctx context.Context, t domain.Toast) error {
	s.mu.Lock()
	s.got = append(s.got, t)
	s.mu.Unlock()
	s.sent <- struct{}{}
	return s.err
}

func (s *recordingSender) Name() string { return s.name }

func (s *recordingSender) toasts() []domain.Toast {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Toast(nil), s.got...)
}

var successToast = domain.Toast{Kind: domain.ToastSuccess, Title: "Success!", Message: "Your item was listed successfully"}

func TestNotifierDispatchesToAllSenders(t *testing.T) {
	failing := newRecordingSender("failing", errors.New("down"))
	ok := newRecordingSender("ok", nil)
	n := NewNotifier([]Sender{failing, ok}, nil, discardLogger())

	err := n.Notify(context.Background(), successToast)
	if err == nil || !strings.Contains(err.Error(), "failing") {
		t.Fatalf("Notify error = %v, want failing sender named", err)
	}
	if got := ok.toasts(); len(got) != 1 || got[0] != successToast {
		t.Fatalf("ok sender got %v", got)
	}
}

func TestNotifierKindFilter(t *testing.T) {
	s := newRecordingSender("s", nil)
	n := NewNotifier([]Sender{s}, []string{" error "}, discardLogger())

	if err := n.Notify(context.Background(), successToast); err != nil {
		t.Fatal(err)
	}
	if len(s.toasts()) != 0 {
		t.Fatal("filtered toast was delivered")
	}
	if err := n.Notify(context.Background(), domain.Toast{Kind: domain.ToastError, Title: "x"}); err != nil {
		t.Fatal(err)
	}
	if len(s.toasts()) != 1 {
		t.Fatal("allowed toast was not delivered")
	}
}

func TestNotifierToastIsAsyncAndSurvivesCancel(t *testing.T) {
	s := newRecordingSender("s", nil)
	n := NewNotifier([]Sender{s}, nil, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	n.Toast(ctx, successToast)
	cancel()

	select {
	case <-s.sent:
	case <-time.After(2 * time.Second):
		t.Fatal("toast was not delivered")
	}
}

type fakeBus struct {
	mu        sync.Mutex
	published map[string][][]byte
}

func (b *fakeBus) Publish(ctx context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.published == nil {
		b.published = make(map[string][][]byte)
	}
	b.published[channel] = append(b.published[channel], payload)
	return nil
}

func (b *fakeBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	return nil, errors.New("not implemented")
}

func TestBusSender(t *testing.T) {
	bus := &fakeBus{}
	if err := NewBusSender(bus).Send(context.Background(), successToast); err != nil {
		t.Fatal(err)
	}
	msgs := bus.published[domain.ChannelToast]
	if len(msgs) != 1 {
		t.Fatalf("published %d messages", len(msgs))
	}
	var got domain.Toast
	if err := json.Unmarshal(msgs[0], &got); err != nil {
		t.Fatal(err)
	}
	if got != successToast {
		t.Fatalf("got %+v", got)
	}
}

func TestDiscordSender(t *testing.T) {
	var got discordPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	s := NewDiscordSender(srv.URL)
	s.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	if err := s.Send(context.Background(), successToast); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(got.Embeds) != 1 {
		t.Fatalf("embeds = %+v", got.Embeds)
	}
	e := got.Embeds[0]
	if e.Title != "Success!" || e.Description != "Your item was listed successfully" {
		t.Fatalf("embed = %+v", e)
	}
	if e.Color != discordColors[domain.ToastSuccess] || e.Timestamp != "2024-05-01T12:00:00Z" {
		t.Fatalf("embed colour/timestamp = %d %s", e.Color, e.Timestamp)
	}
}

func TestTelegramSenderRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/botTOKEN/sendMessage" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewTelegramSender("TOKEN", "42").WithAPIURL(srv.URL)
	if err := s.Send(context.Background(), successToast); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("calls = %d, want 2", calls.Load())
	}
}

func TestTelegramText(t *testing.T) {
	got := telegramText(domain.Toast{Kind: domain.ToastError, Title: "Error!", Message: "<script> & co"})
	want := "❌ <b>Error!</b>\n&lt;script&gt; &amp; co"
	if got != want {
		t.Fatalf("telegramText = %q, want %q", got, want)
	}
	if got := telegramText(domain.Toast{Title: "plain"}); got != "<b>plain</b>" {
		t.Fatalf("no kind = %q", got)
	}
}

func TestTelegramSenderHidesToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	err := NewTelegramSender("SECRET-TOKEN", "42").WithAPIURL(srv.URL).Send(context.Background(), successToast)
	if err == nil {
		t.Fatal("400 should fail")
	}
	if strings.Contains(err.Error(), "SECRET-TOKEN") {
		t.Fatalf("error leaks token: %v", err)
	}
}

func TestWebhookSenderSignsBody(t *testing.T) {
	signer := &crypto.WebhookSigner{Secret: "s3cret"}
	verified := make(chan bool, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		verified <- signer.Verify(body, r.Header.Get(crypto.HeaderTimestamp), r.Header.Get(crypto.HeaderSignature))
	}))
	defer srv.Close()

	if err := NewWebhookSender(srv.URL, "s3cret").Send(context.Background(), successToast); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !<-verified {
		t.Fatal("signature did not verify")
	}
}

func TestWebhookSenderClientError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad", http.StatusBadRequest)
	}))
	defer srv.Close()

	if err := NewWebhookSender(srv.URL, "").Send(context.Background(), successToast); err == nil {
		t.Fatal("expected error on 400")
	}
}
