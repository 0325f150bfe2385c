package notify

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/CosmoTheDev/tasknotify/models"
	"github.com/golang-jwt/jwt/v5"
)

func testMessage(provider string) models.NotificationMessage {
	return models.NotificationMessage{ProviderType: provider, RenderedText: "Write docs created [urgent]", EventName: "task.created"}
}

func TestRegistryLookupAndDuplicates(t *testing.T) {
	reg := DefaultRegistry(Options{})
	want := []string{"email", "slack", "telegram", "webhook"}
	if got := reg.Types(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("Types() = %v, want %v", got, want)
	}
	if err := reg.Register(NewSlack(http.DefaultClient)); err == nil {
		t.Fatalf("expected duplicate registration to fail")
	}
	if v := reg.Validate(models.ProviderConfig{Type: "pager"}); v.Valid {
		t.Fatalf("unknown provider type should be invalid")
	}
}

func TestValidateConfigs(t *testing.T) {
	reg := DefaultRegistry(Options{})
	cases := []struct {
		name  string
		cfg   models.ProviderConfig
		valid bool
	}{
		{"slack ok", models.ProviderConfig{Type: "slack", Settings: map[string]string{"webhook_url": "https://hooks.example.com/T1/B2"}}, true},
		{"slack missing url", models.ProviderConfig{Type: "slack"}, false},
		{"slack plain http", models.ProviderConfig{Type: "slack", Settings: map[string]string{"webhook_url": "http://hooks.example.com/x"}}, false},
		{"slack relative", models.ProviderConfig{Type: "slack", Settings: map[string]string{"webhook_url": "not a url"}}, false},
		{"webhook ok", models.ProviderConfig{Type: "webhook", Settings: map[string]string{"url": "http://10.0.0.1:8080/hook"}}, true},
		{"webhook ftp", models.ProviderConfig{Type: "webhook", Settings: map[string]string{"url": "ftp://example.com"}}, false},
		{"telegram ok", models.ProviderConfig{Type: "telegram", Settings: map[string]string{"bot_token": "123456:ABCdefGhIJKlmNoPQRstuVWxyz", "chat_id": "-100200"}}, true},
		{"telegram bad token", models.ProviderConfig{Type: "telegram", Settings: map[string]string{"bot_token": "nope", "chat_id": "1"}}, false},
		{"telegram bad chat", models.ProviderConfig{Type: "telegram", Settings: map[string]string{"bot_token": "123456:ABCdefGhIJKlmNoPQRstuVWxyz", "chat_id": "@chan"}}, false},
		{"email ok", models.ProviderConfig{Type: "email", Settings: map[string]string{"smtp_host": "smtp.example.com", "from": "bot@example.com", "to": "a@example.com, b@example.com"}}, true},
		{"email bad to", models.ProviderConfig{Type: "email", Settings: map[string]string{"smtp_host": "smtp.example.com", "from": "bot@example.com", "to": "not-an-address"}}, false},
		{"email bad port", models.ProviderConfig{Type: "email", Settings: map[string]string{"smtp_host": "smtp.example.com", "smtp_port": "99999", "from": "bot@example.com", "to": "a@example.com"}}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := reg.Validate(tc.cfg)
			if v.Valid != tc.valid {
				t.Fatalf("Valid = %v, want %v (errors: %v)", v.Valid, tc.valid, v.Errors)
			}
			if !v.Valid && len(v.Errors) == 0 {
				t.Fatalf("invalid result must carry errors")
			}
		})
	}
}

func TestEmailValidateCollectsAllErrors(t *testing.T) {
	v := NewEmail().Validate(models.ProviderConfig{Type: "email"})
	if v.Valid || len(v.Errors) != 3 {
		t.Fatalf("expected 3 errors, got %+v", v)
	}
}

func TestSlackSend(t *testing.T) {
	var got map[string]any
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := NewSlack(srv.Client())
	cfg := models.ProviderConfig{Type: "slack", Enabled: true, Settings: map[string]string{"webhook_url": srv.URL, "channel": "#dev"}}
	res := p.Send(context.Background(), cfg, testMessage("slack"))
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
	if got["text"] != "Write docs created [urgent]" || got["channel"] != "#dev" {
		t.Fatalf("unexpected payload %+v", got)
	}
	if res.ProviderType != "slack" || res.SentAt.IsZero() {
		t.Fatalf("result not populated: %+v", res)
	}
}

func TestSlackSendClassifiesStatus(t *testing.T) {
	cases := []struct {
		status int
		prefix string
	}{
		{http.StatusServiceUnavailable, "transient:"},
		{http.StatusForbidden, "auth:"},
		{http.StatusNotFound, "target:"},
	}
	for _, tc := range cases {
		srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", tc.status)
		}))
		p := NewSlack(srv.Client())
		cfg := models.ProviderConfig{Type: "slack", Settings: map[string]string{"webhook_url": srv.URL}}
		res := p.Send(context.Background(), cfg, testMessage("slack"))
		srv.Close()
		if res.Success {
			t.Fatalf("status %d: expected failure", tc.status)
		}
		if !strings.HasPrefix(res.ErrorDetail, tc.prefix) {
			t.Fatalf("status %d: detail %q lacks prefix %q", tc.status, res.ErrorDetail, tc.prefix)
		}
	}
}

func TestSendWithInvalidConfigFailsWithoutIO(t *testing.T) {
	res := NewWebhook(http.DefaultClient).Send(context.Background(),
		models.ProviderConfig{Type: "webhook", Settings: map[string]string{"url": "::bad"}}, testMessage("webhook"))
	if res.Success || !strings.HasPrefix(res.ErrorDetail, "auth:") {
		t.Fatalf("expected auth/config failure, got %+v", res)
	}
}

func TestWebhookSignsBodyAndToken(t *testing.T) {
	var (
		body   []byte
		sig    string
		bearer string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
		sig = r.Header.Get(SignatureHeader)
		bearer = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	cfg := models.ProviderConfig{Type: "webhook", Settings: map[string]string{
		"url": srv.URL, "secret": "s3cret", "jwt_secret": "jwt-key",
	}}
	res := NewWebhook(srv.Client()).Send(context.Background(), cfg, testMessage("webhook"))
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
	if sig != "sha256="+Sign([]byte("s3cret"), body) {
		t.Fatalf("signature mismatch: %q", sig)
	}
	tok, err := jwt.Parse(bearer, func(*jwt.Token) (any, error) { return []byte("jwt-key"), nil },
		jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !tok.Valid {
		t.Fatalf("bearer token invalid: %v", err)
	}
	claims := tok.Claims.(jwt.MapClaims)
	if claims["evt"] != "task.created" {
		t.Fatalf("unexpected claims %+v", claims)
	}
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if payload["event"] != "task.created" || payload["text"] != "Write docs created [urgent]" {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestWebhookHonoursCancellation(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	res := NewWebhook(srv.Client()).Send(ctx, models.ProviderConfig{Type: "webhook", Settings: map[string]string{"url": srv.URL}}, testMessage("webhook"))
	if res.Success || !strings.HasPrefix(res.ErrorDetail, "transient:") {
		t.Fatalf("expected transient failure, got %+v", res)
	}
}

func TestTelegramSend(t *testing.T) {
	var (
		path string
		form map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&form)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":7,"date":1700000000,"chat":{"id":42,"type":"private"}}}`)
	}))
	defer srv.Close()

	token := "123456:ABCdefGhIJKlmNoPQRstuVWxyz"
	cfg := models.ProviderConfig{Type: "telegram", Settings: map[string]string{"bot_token": token, "chat_id": "42"}}
	res := NewTelegram(srv.Client(), srv.URL).Send(context.Background(), cfg, testMessage("telegram"))
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
	if path != "/bot"+token+"/sendMessage" {
		t.Fatalf("unexpected path %q", path)
	}
	if form["text"] != "Write docs created [urgent]" {
		t.Fatalf("unexpected request %+v", form)
	}
}

func TestTelegramAPIErrorIsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`)
	}))
	defer srv.Close()

	cfg := models.ProviderConfig{Type: "telegram", Settings: map[string]string{"bot_token": "123456:ABCdefGhIJKlmNoPQRstuVWxyz", "chat_id": "1"}}
	res := NewTelegram(srv.Client(), srv.URL).Send(context.Background(), cfg, testMessage("telegram"))
	if res.Success || res.ErrorDetail == "" {
		t.Fatalf("expected failure with detail, got %+v", res)
	}
}

func TestTruncateRunes(t *testing.T) {
	s := strings.Repeat("é", 10)
	if got := truncateRunes(s, 5); got != "éé..." {
		t.Fatalf("truncateRunes = %q", got)
	}
	if got := truncateRunes("short", 10); got != "short" {
		t.Fatalf("truncateRunes = %q", got)
	}
}

func TestKindOf(t *testing.T) {
	if KindOf(errors.New("plain")) != FailureTransient {
		t.Fatalf("plain errors are transient")
	}
	wrapped := errors.Join(errors.New("ctx"), &SendError{Kind: FailureTarget, Err: errors.New("x")})
	if KindOf(wrapped) != FailureTarget {
		t.Fatalf("wrapped SendError kind lost")
	}
}

// fakeSMTP is a minimal SMTP server that accepts one session per connection
// and rejects recipients containing "bounce".
type fakeSMTP struct {
	ln   net.Listener
	mu   sync.Mutex
	data []string
}

func newFakeSMTP(t *testing.T) *fakeSMTP {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	f := &fakeSMTP{ln: ln}
	go f.serve()
	t.Cleanup(func() { _ = ln.Close() })
	return f
}

func (f *fakeSMTP) port() string {
	_, port, _ := net.SplitHostPort(f.ln.Addr().String())
	return port
}

func (f *fakeSMTP) messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.data...)
}

func (f *fakeSMTP) serve() {
	for {
		conn, err := f.ln.Accept()
		if err != nil {
			return
		}
		go f.session(conn)
	}
}

func (f *fakeSMTP) session(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	reply := func(s string) { _, _ = io.WriteString(conn, s+"\r\n") }
	reply("220 fake ESMTP")
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		cmd := strings.ToUpper(strings.TrimSpace(line))
		switch {
		case strings.HasPrefix(cmd, "EHLO"), strings.HasPrefix(cmd, "HELO"):
			reply("250 fake")
		case strings.HasPrefix(cmd, "MAIL FROM"):
			reply("250 OK")
		case strings.HasPrefix(cmd, "RCPT TO"):
			if strings.Contains(cmd, "BOUNCE") {
				reply("550 no such user")
			} else {
				reply("250 OK")
			}
		case cmd == "DATA":
			reply("354 go ahead")
			var sb strings.Builder
			for {
				l, err := r.ReadString('\n')
				if err != nil {
					return
				}
				if l == ".\r\n" {
					break
				}
				sb.WriteString(l)
			}
			f.mu.Lock()
			f.data = append(f.data, sb.String())
			f.mu.Unlock()
			reply("250 OK queued")
		case cmd == "QUIT":
			reply("221 bye")
			return
		case cmd == "RSET", cmd == "NOOP":
			reply("250 OK")
		default:
			reply("502 not implemented")
		}
	}
}

func TestEmailSend(t *testing.T) {
	srv := newFakeSMTP(t)
	cfg := models.ProviderConfig{Type: "email", Settings: map[string]string{
		"smtp_host": "127.0.0.1", "smtp_port": srv.port(),
		"from": "bot@example.com", "to": "dev@example.com",
	}}
	res := NewEmail().Send(context.Background(), cfg, testMessage("email"))
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
	msgs := srv.messages()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if !strings.Contains(msgs[0], "Subject: [tasknotify] task.created") || !strings.Contains(msgs[0], "Write docs created [urgent]") {
		t.Fatalf("unexpected message:\n%s", msgs[0])
	}
}

func TestEmailRejectedRecipientIsTargetFailure(t *testing.T) {
	srv := newFakeSMTP(t)
	cfg := models.ProviderConfig{Type: "email", Settings: map[string]string{
		"smtp_host": "127.0.0.1", "smtp_port": srv.port(),
		"from": "bot@example.com", "to": "bounce@example.com",
	}}
	res := NewEmail().Send(context.Background(), cfg, testMessage("email"))
	if res.Success || !strings.HasPrefix(res.ErrorDetail, "target:") {
		t.Fatalf("expected target failure, got %+v", res)
	}
}

func TestEmailUnreachableIsTransient(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	_, port, _ := net.SplitHostPort(ln.Addr().String())
	_ = ln.Close()
	if _, err := strconv.Atoi(port); err != nil {
		t.Fatalf("port: %v", err)
	}
	cfg := models.ProviderConfig{Type: "email", Settings: map[string]string{
		"smtp_host": "127.0.0.1", "smtp_port": port,
		"from": "bot@example.com", "to": "dev@example.com",
	}}
	res := NewEmail().Send(context.Background(), cfg, testMessage("email"))
	if res.Success || !strings.HasPrefix(res.ErrorDetail, "transient:") {
		t.Fatalf("expected transient failure, got %+v", res)
	}
}
