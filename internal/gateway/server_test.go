package gateway

import (
	"bufio"
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/foldergate/foldergate/internal/credentials"
	"github.com/foldergate/foldergate/internal/engine"
	"github.com/foldergate/foldergate/internal/events"
	"github.com/foldergate/foldergate/internal/logging"
	"github.com/foldergate/foldergate/internal/provider/memory"
	"github.com/foldergate/foldergate/internal/session"
)

const testSecret = "0123456789abcdef-test"

func init() {
	logging.InitNop()
}

type fixture struct {
	srv      *httptest.Server
	token    string
	provider *memory.Provider
	events   *events.Broadcaster
}

func newFixture(t *testing.T, maxUpload int64) *fixture {
	t.Helper()
	p := memory.New(
		memory.Folder{ID: "f1", Name: "Reports", Children: []memory.Folder{{ID: "f3", Name: "2024"}}},
		memory.Folder{ID: "f2", Name: "Photos"},
	)
	b := events.NewBroadcaster()
	eng := engine.New(engine.Deps{
		Sessions:    session.NewStore(time.Minute),
		Credentials: credentials.Open(filepath.Join(t.TempDir(), "security.json")),
		Provider:    p,
		Events:      b,
	})
	auth := NewAuth(testSecret)
	token, err := auth.IssueToken("test-bot", time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	srv := httptest.NewServer(NewServer(eng, auth, b, maxUpload).Handler())
	t.Cleanup(srv.Close)
	return &fixture{srv: srv, token: token, provider: p, events: b}
}

func (f *fixture) post(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	data, _ := json.Marshal(body)
	req, _ := http.NewRequest(http.MethodPost, f.srv.URL+path, bytes.NewReader(data))
	req.Header.Set("Authorization", "Bearer "+f.token)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

func decodeResponse(t *testing.T, resp *http.Response) engine.Response {
	t.Helper()
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var out engine.Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return out
}

func TestHealthNeedsNoAuth(t *testing.T) {
	f := newFixture(t, 1<<20)
	resp, err := http.Get(f.srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestAuthRequired(t *testing.T) {
	f := newFixture(t, 1<<20)

	other, _ := NewAuth("another-secret-value").IssueToken("x", time.Hour)
	// IssueToken only sets an expiry for a positive ttl.
	noExpiry, _ := NewAuth(testSecret).IssueToken("x", 0)
	stale := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		Client: "x",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})
	staleStr, _ := stale.SignedString([]byte(testSecret))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong secret", "Bearer " + other, http.StatusUnauthorized},
		{"expired", "Bearer " + staleStr, http.StatusUnauthorized},
		{"no expiry", "Bearer " + noExpiry, http.StatusOK},
		{"valid", "Bearer " + f.token, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodPost, f.srv.URL+"/api/v1/messages",
				strings.NewReader(`{"user_id":"u1","text":"hi"}`))
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatalf("request: %v", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
			if tt.want == http.StatusUnauthorized {
				var e ErrorResponse
				json.NewDecoder(resp.Body).Decode(&e)
				if e.Code != http.StatusUnauthorized || e.Error == "" {
					t.Errorf("error body = %+v", e)
				}
			}
		})
	}
}

func TestMessagesAndActions(t *testing.T) {
	f := newFixture(t, 1<<20)

	out := decodeResponse(t, f.post(t, "/api/v1/messages", map[string]string{"user_id": "u1", "text": "/start"}))
	if !strings.HasPrefix(out.Text, "Welcome!") {
		t.Errorf("Text = %q", out.Text)
	}

	out = decodeResponse(t, f.post(t, "/api/v1/actions", map[string]string{"user_id": "u1", "action": "welcome:browse"}))
	if len(out.NavigableFolders) != 2 || out.NavigableFolders[0].Name != "Reports" {
		t.Errorf("folders = %+v", out.NavigableFolders)
	}

	out = decodeResponse(t, f.post(t, "/api/v1/actions", map[string]string{"user_id": "u1", "action": "bogus"}))
	if out.Text != "Unknown action." {
		t.Errorf("Text = %q", out.Text)
	}
}

func TestBadRequests(t *testing.T) {
	f := newFixture(t, 1<<20)

	resp := f.post(t, "/api/v1/messages", map[string]string{"text": "hi"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing user_id: status = %d", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodPost, f.srv.URL+"/api/v1/actions", strings.NewReader("{"))
	req.Header.Set("Authorization", "Bearer "+f.token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad json: status = %d", resp.StatusCode)
	}
}

func TestJSONBodyTooLarge(t *testing.T) {
	f := newFixture(t, 1<<20)
	for path, field := range map[string]string{"/api/v1/messages": "text", "/api/v1/actions": "action"} {
		t.Run(path, func(t *testing.T) {
			resp := f.post(t, path, map[string]string{"user_id": "u1", field: strings.Repeat("x", maxJSONBody)})
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusRequestEntityTooLarge {
				t.Errorf("status = %d, want 413", resp.StatusCode)
			}
		})
	}
}

func multipartBody(t *testing.T, userID, name string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("user_id", userID)
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	fw.Write(content)
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestFileUpload(t *testing.T) {
	f := newFixture(t, 1<<20)
	decodeResponse(t, f.post(t, "/api/v1/actions", map[string]string{"user_id": "u1", "action": "welcome:browse"}))
	decodeResponse(t, f.post(t, "/api/v1/actions", map[string]string{"user_id": "u1", "action": "folder:f3"}))

	body, ctype := multipartBody(t, "u1", "report.txt", []byte("quarterly"))
	req, _ := http.NewRequest(http.MethodPost, f.srv.URL+"/api/v1/files", body)
	req.Header.Set("Authorization", "Bearer "+f.token)
	req.Header.Set("Content-Type", ctype)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	out := decodeResponse(t, resp)
	if !strings.Contains(out.Text, "File uploaded to: 2024") {
		t.Errorf("Text = %q", out.Text)
	}

	ups := f.provider.Uploads()
	if len(ups) != 1 || ups[0].Name != "report.txt" || string(ups[0].Data) != "quarterly" {
		t.Errorf("uploads = %+v", ups)
	}
}

func TestFileUploadTooLarge(t *testing.T) {
	f := newFixture(t, 64)
	body, ctype := multipartBody(t, "u1", "big.bin", bytes.Repeat([]byte("x"), 1024))
	req, _ := http.NewRequest(http.MethodPost, f.srv.URL+"/api/v1/files", body)
	req.Header.Set("Authorization", "Bearer "+f.token)
	req.Header.Set("Content-Type", ctype)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if len(f.provider.Uploads()) != 0 {
		t.Error("nothing should be uploaded")
	}
}

func TestAuditStream(t *testing.T) {
	f := newFixture(t, 1<<20)

	resp, err := http.Get(f.srv.URL + "/api/v1/audit?token=" + f.token)
	if err != nil {
		t.Fatalf("GET audit: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}

	// Headers arrive only after the subscription is registered.
	f.events.Publish(events.Event{Type: events.EventSessionFinished, UserID: "u9"})

	sc := bufio.NewScanner(resp.Body)
	var lines []string
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			break
		}
		lines = append(lines, line)
	}
	if len(lines) != 2 || lines[0] != "event: session_finished" || !strings.HasPrefix(lines[1], "data: ") {
		t.Fatalf("lines = %q", lines)
	}
	var ev events.Event
	if err := json.Unmarshal([]byte(strings.TrimPrefix(lines[1], "data: ")), &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ev.UserID != "u9" || ev.ID == "" {
		t.Errorf("event = %+v", ev)
	}
}

func TestAuditRecent(t *testing.T) {
	f := newFixture(t, 1<<20)
	f.events.Publish(events.Event{Type: events.EventAdminLogin, UserID: "u1"})

	req, _ := http.NewRequest(http.MethodGet, f.srv.URL+"/api/v1/audit/recent", nil)
	req.Header.Set("Authorization", "Bearer "+f.token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	var got []events.Event
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 || got[0].Type != events.EventAdminLogin {
		t.Errorf("recent = %+v", got)
	}
}
