package mailer

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/emersion/go-smtp"

	"github.com/secsim/phishportal/internal/config"
)

type testBackend struct {
	received chan []byte
}

func (b *testBackend) NewSession(c *smtp.Conn) (smtp.Session, error) {
	return &testSession{backend: b}, nil
}

type testSession struct {
	backend *testBackend
}

func (s *testSession) Mail(from string, opts *smtp.MailOptions) error { return nil }
func (s *testSession) Rcpt(to string, opts *smtp.RcptOptions) error   { return nil }
func (s *testSession) Reset()                                         {}
func (s *testSession) Logout() error                                  { return nil }

func (s *testSession) Data(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.backend.received <- data
	return nil
}

func TestSendSubmitsToRelay(t *testing.T) {
	received := make(chan []byte, 1)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	srv := smtp.NewServer(&testBackend{received: received})
	srv.Domain = "localhost"
	go srv.Serve(ln)
	t.Cleanup(func() { srv.Close() })

	cfg := config.MailerConfig{
		RelayAddr: ln.Addr().String(),
		FromEmail: "it-support@example.com",
		FromName:  "IT Support",
		Timeout:   5 * time.Second,
	}
	m, err := New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	env := &Envelope{
		To:       "alice@x.com",
		Subject:  "Password expiry notice",
		BodyText: "please review",
		BodyHTML: "<p>please review</p>",
	}
	if err := m.Send(context.Background(), env); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	select {
	case msg := <-received:
		if !bytes.Contains(msg, []byte("To: alice@x.com")) {
			t.Error("message missing To header")
		}
		if !bytes.Contains(msg, []byte("please review")) {
			t.Error("message missing body")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("relay never received the message")
	}
}
