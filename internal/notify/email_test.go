package notify

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"adgate/internal/config"
	"adgate/internal/retry"
	"adgate/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func testEmailConfig(endpoint string) *config.EmailConfig {
	return &config.EmailConfig{
		Provider: config.EmailProviderHTTP,
		From:     "noreply@example.com",
		HTTP: config.HTTPEmailConfig{
			Endpoint: endpoint,
			APIKey:   "secret",
			Timeout:  time.Second,
		},
		Retry: retry.Config{
			Enable:      true,
			MaxAttempts: 3,
			Interval:    time.Millisecond,
			Multiplier:  2,
		},
	}
}

func testMessage() *types.EmailMessage {
	return &types.EmailMessage{
		To:      "user@example.com",
		Subject: "Welcome",
		HTML:    "<p>hi</p>",
		ReplyTo: "support@example.com",
	}
}

func TestHTTPProviderSend(t *testing.T) {
	var got httpEmailRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"id":"msg_123"}`))
	}))
	defer srv.Close()

	p := NewHTTPProvider(testEmailConfig(srv.URL), zaptest.NewLogger(t))
	id, err := p.Send(context.Background(), testMessage())
	require.NoError(t, err)

	assert.Equal(t, "msg_123", id)
	assert.Equal(t, "noreply@example.com", got.From)
	assert.Equal(t, []string{"user@example.com"}, got.To)
	assert.Equal(t, "Welcome", got.Subject)
	assert.Equal(t, "<p>hi</p>", got.HTML)
	assert.Equal(t, "support@example.com", got.ReplyTo)
}

func TestHTTPProviderExplicitSender(t *testing.T) {
	var got httpEmailRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"id":"x"}`))
	}))
	defer srv.Close()

	msg := testMessage()
	msg.From = "team@example.com"
	_, err := NewHTTPProvider(testEmailConfig(srv.URL), zaptest.NewLogger(t)).Send(context.Background(), msg)
	require.NoError(t, err)
	assert.Equal(t, "team@example.com", got.From)
}

func TestHTTPProviderRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"id":"third"}`))
	}))
	defer srv.Close()

	id, err := NewHTTPProvider(testEmailConfig(srv.URL), zaptest.NewLogger(t)).Send(context.Background(), testMessage())
	require.NoError(t, err)
	assert.Equal(t, "third", id)
	assert.Equal(t, int32(3), calls.Load())
}

func TestHTTPProviderClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"invalid from"}`))
	}))
	defer srv.Close()

	_, err := NewHTTPProvider(testEmailConfig(srv.URL), zaptest.NewLogger(t)).Send(context.Background(), testMessage())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProviderFailure)
	assert.Contains(t, err.Error(), "422")
	assert.Equal(t, int32(1), calls.Load())
}

func TestHTTPProviderGivesUp(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewHTTPProvider(testEmailConfig(srv.URL), zaptest.NewLogger(t)).Send(context.Background(), testMessage())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProviderFailure)
	assert.Equal(t, int32(3), calls.Load())
}

func TestNewProvider(t *testing.T) {
	logger := zaptest.NewLogger(t)
	cfg := testEmailConfig("http://localhost")

	p, err := NewProvider(cfg, logger)
	require.NoError(t, err)
	assert.Equal(t, config.EmailProviderHTTP, p.Name())

	cfg.Provider = config.EmailProviderSMTP
	p, err = NewProvider(cfg, logger)
	require.NoError(t, err)
	assert.Equal(t, config.EmailProviderSMTP, p.Name())

	cfg.Provider = "pigeon"
	_, err = NewProvider(cfg, logger)
	assert.Error(t, err)

	_, err = NewProvider(nil, logger)
	assert.Error(t, err)
}

func TestBuildEmailMessage(t *testing.T) {
	msg := testMessage()
	msg.Subject = "Hello\r\nBcc: victim@example.com"
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	raw := string(buildEmailMessage("abc", "Team <team@example.com>", msg, now))

	assert.Contains(t, raw, "Message-ID: <abc@adgate>\r\n")
	assert.Contains(t, raw, "From: Team <team@example.com>\r\n")
	assert.Contains(t, raw, "To: user@example.com\r\n")
	assert.Contains(t, raw, "Subject: HelloBcc: victim@example.com\r\n")
	assert.Contains(t, raw, "Reply-To: support@example.com\r\n")
	assert.Contains(t, raw, "Content-Type: text/html; charset=UTF-8\r\n")
	assert.True(t, strings.HasSuffix(raw, "\r\n\r\n<p>hi</p>\r\n"))
}

func TestCleanEmailAddress(t *testing.T) {
	assert.Equal(t, "team@example.com", cleanEmailAddress("Team <team@example.com>"))
	assert.Equal(t, "team@example.com", cleanEmailAddress(" team@example.com "))
}

// fakeSMTPServer accepts a single plain SMTP transaction and records the DATA section
type fakeSMTPServer struct {
	ln   net.Listener
	mu   sync.Mutex
	data string
	rcpt string
}

func newFakeSMTPServer(t *testing.T) *fakeSMTPServer {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	s := &fakeSMTPServer{ln: ln}
	go s.serve()
	t.Cleanup(func() { ln.Close() })
	return s
}

func (s *fakeSMTPServer) port() int {
	return s.ln.Addr().(*net.TCPAddr).Port
}

func (s *fakeSMTPServer) serve() {
	conn, err := s.ln.Accept()
	if err != nil {
		return
	}
	defer conn.Close()

	r := bufio.NewReader(conn)
	reply := func(line string) { _, _ = conn.Write([]byte(line + "\r\n")) }
	reply("220 localhost ESMTP")

	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		cmd := strings.ToUpper(strings.TrimSpace(line))
		switch {
		case strings.HasPrefix(cmd, "EHLO"), strings.HasPrefix(cmd, "HELO"):
			reply("250 localhost")
		case strings.HasPrefix(cmd, "MAIL FROM"):
			reply("250 OK")
		case strings.HasPrefix(cmd, "RCPT TO"):
			s.mu.Lock()
			s.rcpt = strings.TrimSpace(line)
			s.mu.Unlock()
			reply("250 OK")
		case cmd == "DATA":
			reply("354 go ahead")
			var b strings.Builder
			for {
				l, err := r.ReadString('\n')
				if err != nil {
					return
				}
				if l == ".\r\n" {
					break
				}
				b.WriteString(l)
			}
			s.mu.Lock()
			s.data = b.String()
			s.mu.Unlock()
			reply("250 queued")
		case cmd == "QUIT":
			reply("221 bye")
			return
		default:
			reply("250 OK")
		}
	}
}

func TestSMTPProviderSend(t *testing.T) {
	srv := newFakeSMTPServer(t)

	cfg := testEmailConfig("")
	cfg.Provider = config.EmailProviderSMTP
	cfg.SMTP = config.SMTPConfig{Host: "127.0.0.1", Port: srv.port()}
	cfg.Retry.Enable = false

	id, err := NewSMTPProvider(cfg, zaptest.NewLogger(t)).Send(context.Background(), testMessage())
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	srv.mu.Lock()
	defer srv.mu.Unlock()
	assert.Contains(t, srv.rcpt, "<user@example.com>")
	assert.Contains(t, srv.data, "Message-ID: <"+id+"@adgate>")
	assert.Contains(t, srv.data, "<p>hi</p>")
}

func TestSMTPProviderUnreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	cfg := testEmailConfig("")
	cfg.SMTP = config.SMTPConfig{Host: "127.0.0.1", Port: port}
	cfg.Retry.MaxAttempts = 2

	_, err = NewSMTPProvider(cfg, zaptest.NewLogger(t)).Send(context.Background(), testMessage())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProviderFailure)
	assert.Contains(t, err.Error(), strconv.Itoa(port))
}
