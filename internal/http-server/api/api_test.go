package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"qrattend/entity"
	"qrattend/impl/auth"
	"qrattend/impl/core"
	"qrattend/internal/config"
	"qrattend/internal/database"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

type envelope struct {
	Data          json.RawMessage `json:"data"`
	Success       bool            `json:"success"`
	StatusMessage string          `json:"status_message"`
	Code          string          `json:"code"`
}

type fixedLocator struct{}

func (fixedLocator) Resolve(_ context.Context, ip string) string {
	return "Somewhere " + ip
}

type testServer struct {
	t   *testing.T
	srv *httptest.Server
	db  *database.Memory
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	conf := &config.Config{
		TrustProxy: true,
		Cors:       config.Cors{AllowedOrigins: []string{"*"}},
	}
	db := database.NewMemory()
	passwords := auth.NewPasswords(bcrypt.MinCost)
	hash, err := passwords.Hash("admin-pass")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	err = db.SaveMember(context.Background(), &entity.Member{
		Id:       "admin-1",
		Name:     "Admin",
		Email:    "admin@example.com",
		Password: hash,
		Role:     entity.RoleAdmin,
	})
	if err != nil {
		t.Fatalf("seed admin: %v", err)
	}

	c := core.New(db, auth.NewTokens("api-test-secret", time.Hour), passwords, fixedLocator{}, log)
	srv := httptest.NewServer(NewRouter(conf, log, c))
	t.Cleanup(srv.Close)
	return &testServer{t: t, srv: srv, db: db}
}

func (s *testServer) do(method, path, token, ip string, body interface{}) (*http.Response, envelope) {
	s.t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			s.t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, s.srv.URL+path, reader)
	if err != nil {
		s.t.Fatalf("request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if ip != "" {
		req.Header.Set("X-Forwarded-For", ip)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		s.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)

	var env envelope
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		if err = json.Unmarshal(raw, &env); err != nil {
			s.t.Fatalf("%s %s: decode %q: %v", method, path, raw, err)
		}
	} else {
		env.Data = raw
	}
	return resp, env
}

func (s *testServer) login(email, password, ip string) string {
	s.t.Helper()
	resp, env := s.do("POST", "/api/auth/login", "", ip, map[string]string{"email": email, "password": password})
	if resp.StatusCode != http.StatusOK {
		s.t.Fatalf("login %s: status %d %s", email, resp.StatusCode, env.StatusMessage)
	}
	var result struct {
		Token string `json:"token"`
	}
	_ = json.Unmarshal(env.Data, &result)
	if result.Token == "" {
		s.t.Fatalf("login %s: empty token", email)
	}
	return result.Token
}

func (s *testServer) register(name, email, password string) {
	s.t.Helper()
	resp, env := s.do("POST", "/api/auth/register", "", "", map[string]string{"name": name, "email": email, "password": password})
	if resp.StatusCode != http.StatusCreated {
		s.t.Fatalf("register %s: status %d %s", email, resp.StatusCode, env.StatusMessage)
	}
}

func (s *testServer) createMeeting(token string, body map[string]interface{}) *entity.Meeting {
	s.t.Helper()
	resp, env := s.do("POST", "/api/meetings", token, "", body)
	if resp.StatusCode != http.StatusCreated {
		s.t.Fatalf("create meeting: status %d %s", resp.StatusCode, env.StatusMessage)
	}
	var meeting entity.Meeting
	if err := json.Unmarshal(env.Data, &meeting); err != nil {
		s.t.Fatalf("decode meeting: %v", err)
	}
	return &meeting
}

func openWindow() map[string]interface{} {
	now := time.Now().UTC()
	return map[string]interface{}{
		"title":      "Open meeting",
		"type":       "offline",
		"start_time": now.Add(-time.Hour),
		"end_time":   now.Add(time.Hour),
	}
}

func expect(t *testing.T, resp *http.Response, env envelope, status int, code string) {
	t.Helper()
	if resp.StatusCode != status {
		t.Fatalf("expected status %d, got %d (%s %s)", status, resp.StatusCode, env.Code, env.StatusMessage)
	}
	if env.Code != code {
		t.Fatalf("expected code %q, got %q (%s)", code, env.Code, env.StatusMessage)
	}
}

func TestHealthAndNotFound(t *testing.T) {
	s := newTestServer(t)
	resp, env := s.do("GET", "/health", "", "", nil)
	if resp.StatusCode != http.StatusOK || !env.Success {
		t.Fatalf("health: %d %+v", resp.StatusCode, env)
	}
	resp, env = s.do("GET", "/api/nothing-here", "", "", nil)
	if resp.StatusCode != http.StatusNotFound || env.Success {
		t.Fatalf("expected 404 envelope, got %d %+v", resp.StatusCode, env)
	}
}

func TestAuthFlowAndSessionReplacement(t *testing.T) {
	s := newTestServer(t)
	s.register("Ann", "ann@example.com", "ann-pass")

	resp, env := s.do("POST", "/api/auth/register", "", "", map[string]string{"name": "Ann", "email": "ANN@example.com", "password": "x"})
	expect(t, resp, env, http.StatusBadRequest, "CONFLICT")

	resp, env = s.do("POST", "/api/auth/login", "", "", map[string]string{"email": "ann@example.com", "password": "wrong"})
	expect(t, resp, env, http.StatusBadRequest, "CONFLICT")

	resp, env = s.do("POST", "/api/auth/login", "", "", map[string]string{"email": "not-an-email"})
	expect(t, resp, env, http.StatusBadRequest, "VALIDATION_ERROR")

	first := s.login("ann@example.com", "ann-pass", "198.51.100.1")
	resp, env = s.do("GET", "/api/auth/me", first, "", nil)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(env.Data), "ann@example.com") {
		t.Fatalf("me: %d %s", resp.StatusCode, env.Data)
	}
	if strings.Contains(string(env.Data), "password") || strings.Contains(string(env.Data), first) {
		t.Fatalf("me must not expose secrets: %s", env.Data)
	}

	second := s.login("ann@example.com", "ann-pass", "198.51.100.2")
	resp, env = s.do("GET", "/api/auth/me", first, "", nil)
	expect(t, resp, env, http.StatusUnauthorized, "SESSION_REPLACED")
	resp, _ = s.do("GET", "/api/auth/me", second, "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("second token must work, got %d", resp.StatusCode)
	}

	resp, _ = s.do("POST", "/api/auth/logout", second, "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("logout: %d", resp.StatusCode)
	}

	resp, env = s.do("GET", "/api/auth/me", "", "", nil)
	expect(t, resp, env, http.StatusUnauthorized, "UNAUTHENTICATED")
	resp, env = s.do("GET", "/api/auth/me", "garbage", "", nil)
	expect(t, resp, env, http.StatusUnauthorized, "UNAUTHENTICATED")
}

func TestRoles(t *testing.T) {
	s := newTestServer(t)
	s.register("Ann", "ann@example.com", "ann-pass")
	member := s.login("ann@example.com", "ann-pass", "")

	resp, env := s.do("POST", "/api/meetings", member, "", openWindow())
	expect(t, resp, env, http.StatusForbidden, "FORBIDDEN")
	resp, env = s.do("GET", "/api/members", member, "", nil)
	expect(t, resp, env, http.StatusForbidden, "FORBIDDEN")

	resp, _ = s.do("GET", "/api/meetings", member, "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("members may list meetings, got %d", resp.StatusCode)
	}
}

func TestMarkAttendance(t *testing.T) {
	s := newTestServer(t)
	admin := s.login("admin@example.com", "admin-pass", "")
	s.register("Ann", "ann@example.com", "ann-pass")
	s.register("Bob", "bob@example.com", "bob-pass")
	ann := s.login("ann@example.com", "ann-pass", "")
	bob := s.login("bob@example.com", "bob-pass", "")

	meeting := s.createMeeting(admin, openWindow())
	if len(meeting.Code) != 6 || meeting.CreatedBy != "admin-1" {
		t.Fatalf("unexpected meeting %+v", meeting)
	}

	resp, env := s.do("POST", "/api/attendance", ann, "203.0.113.10", map[string]string{"code": "000000"})
	expect(t, resp, env, http.StatusNotFound, "NOT_FOUND")

	resp, env = s.do("POST", "/api/attendance", ann, "203.0.113.10", map[string]string{"code": meeting.Code})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("mark: %d %s", resp.StatusCode, env.StatusMessage)
	}
	var record entity.Attendance
	_ = json.Unmarshal(env.Data, &record)
	if record.DeviceIP != "203.0.113.10" || record.Location != "Somewhere 203.0.113.10" {
		t.Fatalf("unexpected record %+v", record)
	}

	resp, env = s.do("POST", "/api/attendance", ann, "203.0.113.99", map[string]string{"code": meeting.Code})
	expect(t, resp, env, http.StatusBadRequest, "ALREADY_MARKED")
	resp, env = s.do("POST", "/api/attendance", bob, "203.0.113.10", map[string]string{"code": meeting.Code})
	expect(t, resp, env, http.StatusBadRequest, "DUPLICATE_DEVICE")

	resp, env = s.do("GET", "/api/attendance/count/"+meeting.Id, bob, "", nil)
	if resp.StatusCode != http.StatusOK || string(env.Data) != `{"count":1}` {
		t.Fatalf("count: %d %s", resp.StatusCode, env.Data)
	}

	resp, env = s.do("GET", "/api/attendance/my", ann, "", nil)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(env.Data), "Open meeting") {
		t.Fatalf("my: %d %s", resp.StatusCode, env.Data)
	}

	resp, _ = s.do("PATCH", "/api/meetings/"+meeting.Id+"/toggle", admin, "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("toggle: %d", resp.StatusCode)
	}
	resp, env = s.do("POST", "/api/attendance", bob, "203.0.113.11", map[string]string{"code": meeting.Code})
	expect(t, resp, env, http.StatusForbidden, "MEETING_INACTIVE")
}

func TestTimeWindow(t *testing.T) {
	s := newTestServer(t)
	admin := s.login("admin@example.com", "admin-pass", "")
	now := time.Now().UTC()

	future := s.createMeeting(admin, map[string]interface{}{
		"title": "Later", "type": "online",
		"start_time": now.Add(time.Hour), "end_time": now.Add(2 * time.Hour),
	})
	past := s.createMeeting(admin, map[string]interface{}{
		"title": "Earlier", "type": "online",
		"start_time": now.Add(-2 * time.Hour), "end_time": now.Add(-time.Hour),
	})

	resp, env := s.do("POST", "/api/attendance", admin, "203.0.113.1", map[string]string{"code": future.Code})
	expect(t, resp, env, http.StatusForbidden, "NOT_STARTED")
	resp, env = s.do("POST", "/api/attendance", admin, "203.0.113.1", map[string]string{"code": past.Code})
	expect(t, resp, env, http.StatusForbidden, "EXPIRED")

	resp, env = s.do("POST", "/api/meetings", admin, "", map[string]interface{}{
		"title": "Backwards", "type": "online",
		"start_time": now, "end_time": now.Add(-time.Minute),
	})
	expect(t, resp, env, http.StatusBadRequest, "VALIDATION_ERROR")
}

func TestGeofence(t *testing.T) {
	s := newTestServer(t)
	admin := s.login("admin@example.com", "admin-pass", "")
	s.register("Ann", "ann@example.com", "ann-pass")
	ann := s.login("ann@example.com", "ann-pass", "")

	body := openWindow()
	body["latitude"] = 48.8584
	body["longitude"] = 2.2945
	body["allowed_radius"] = 100
	meeting := s.createMeeting(admin, body)

	resp, env := s.do("POST", "/api/attendance", ann, "203.0.113.5", map[string]string{"code": meeting.Code})
	expect(t, resp, env, http.StatusBadRequest, "LOCATION_REQUIRED")

	resp, env = s.do("POST", "/api/attendance", ann, "203.0.113.5", map[string]interface{}{
		"code": meeting.Code, "latitude": 48.8738, "longitude": 2.2950,
	})
	expect(t, resp, env, http.StatusForbidden, "OUT_OF_RANGE")
	var info struct {
		Distance float64 `json:"distance"`
		Limit    float64 `json:"limit"`
	}
	_ = json.Unmarshal(env.Data, &info)
	if info.Limit != 100 || info.Distance <= 100 {
		t.Fatalf("unexpected range payload %s", env.Data)
	}

	resp, env = s.do("POST", "/api/attendance", ann, "203.0.113.5", map[string]interface{}{
		"code": meeting.Code, "latitude": 48.8585, "longitude": 2.2946,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("inside the fence: %d %s", resp.StatusCode, env.StatusMessage)
	}

	resp, env = s.do("PUT", "/api/meetings/"+meeting.Id, admin, "", map[string]interface{}{"latitude": nil, "longitude": nil})
	if resp.StatusCode != http.StatusOK || strings.Contains(string(env.Data), `"latitude":48`) {
		t.Fatalf("clear geofence: %d %s", resp.StatusCode, env.Data)
	}
}

func TestExports(t *testing.T) {
	s := newTestServer(t)
	admin := s.login("admin@example.com", "admin-pass", "")
	meeting := s.createMeeting(admin, openWindow())

	resp, env := s.do("GET", "/api/attendance/export/"+meeting.Id, admin, "", nil)
	expect(t, resp, env, http.StatusNotFound, "NOT_FOUND")

	resp, _ = s.do("POST", "/api/attendance", admin, "203.0.113.7", map[string]string{"code": meeting.Code})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("mark: %d", resp.StatusCode)
	}

	resp, env = s.do("GET", "/api/attendance/export/"+meeting.Id, admin, "", nil)
	if resp.StatusCode != http.StatusOK || !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/csv") {
		t.Fatalf("csv: %d %s", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
	if !strings.Contains(string(env.Data), "admin@example.com") {
		t.Fatalf("csv must list the attendee: %s", env.Data)
	}

	resp, env = s.do("GET", "/api/attendance/export-excel/"+meeting.Id, admin, "", nil)
	if resp.StatusCode != http.StatusOK || !strings.Contains(resp.Header.Get("Content-Disposition"), "Open-meeting-attendance.xlsx") {
		t.Fatalf("xlsx: %d %s", resp.StatusCode, resp.Header.Get("Content-Disposition"))
	}
	if !bytes.HasPrefix(env.Data, []byte("PK")) {
		t.Fatalf("xlsx body must be a zip archive")
	}
}

func TestMembersAdmin(t *testing.T) {
	s := newTestServer(t)
	admin := s.login("admin@example.com", "admin-pass", "")

	resp, env := s.do("POST", "/api/members", admin, "", map[string]string{"name": "Pat", "email": "pat@example.com", "password": "x", "role": "pr"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create member: %d %s", resp.StatusCode, env.StatusMessage)
	}
	var pat entity.MemberInfo
	_ = json.Unmarshal(env.Data, &pat)

	resp, env = s.do("POST", "/api/members", admin, "", map[string]string{"name": "X", "email": "x@example.com", "password": "x", "role": "root"})
	expect(t, resp, env, http.StatusBadRequest, "VALIDATION_ERROR")

	resp, env = s.do("DELETE", "/api/members/admin-1", admin, "", nil)
	expect(t, resp, env, http.StatusBadRequest, "VALIDATION_ERROR")

	prToken := s.login("pat@example.com", "x", "")
	meeting := s.createMeeting(admin, openWindow())
	resp, env = s.do("PATCH", "/api/meetings/"+meeting.Id+"/set-location", prToken, "", map[string]float64{"latitude": 1, "longitude": 2})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("pr may set the venue: %d %s", resp.StatusCode, env.StatusMessage)
	}

	resp, env = s.do("GET", "/api/members/admin/stats", admin, "", nil)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(env.Data), `"total_members":2`) {
		t.Fatalf("stats: %d %s", resp.StatusCode, env.Data)
	}

	resp, _ = s.do("DELETE", "/api/members/"+pat.Id, admin, "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete member: %d", resp.StatusCode)
	}
	resp, env = s.do("GET", "/api/auth/me", prToken, "", nil)
	expect(t, resp, env, http.StatusUnauthorized, "IDENTITY_NOT_FOUND")
}
