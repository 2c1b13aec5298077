package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/crypto/bcrypt"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mohamedS2020/lifetag/internal/authz"
	"github.com/mohamedS2020/lifetag/internal/httpapi"
	"github.com/mohamedS2020/lifetag/internal/lifetag/service"
	"github.com/mohamedS2020/lifetag/internal/lifetag/store"
	"github.com/mohamedS2020/lifetag/internal/lifetag/store/memory"
	"github.com/mohamedS2020/lifetag/internal/lifetag/types"
)

const (
	testSecret   = "test-admin-secret"
	testPassword = "hunter22"
)

var errDown = errors.New("storage down")

// flakyKV is an in-memory KV whose writes fail while failWrites is set.
type flakyKV struct {
	*memory.KVStore
	failWrites atomic.Bool
}

func (k *flakyKV) Set(ctx context.Context, key string, value []byte) error {
	if k.failWrites.Load() {
		return errDown
	}
	return k.KVStore.Set(ctx, key, value)
}

type testEnv struct {
	ts     *httptest.Server
	clock  *clockwork.FakeClock
	kv     *flakyKV
	audit  *memory.AuditLogStore
	tokens *authz.TokenManager
}

// newTestServer wires up the full dependency graph using in-memory stores
// and a fake clock, and seeds profile "alice".
func newTestServer(t *testing.T, ratePerMinute int) *testEnv {
	t.Helper()

	clock := clockwork.NewFakeClockAt(time.Date(2026, 2, 15, 9, 0, 0, 0, time.UTC))
	kv := &flakyKV{KVStore: memory.NewKVStore()}
	audit := memory.NewAuditLogStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	gate := service.NewAccessGate(kv, service.GateConfig{Clock: clock})
	profiles := service.NewProfileRegistry(memory.NewProfileStore(), bcrypt.MinCost, clock)
	tokens := authz.NewTokenManager(testSecret, time.Hour)

	_, err := profiles.Create(context.Background(), types.CreateProfileRequest{
		ProfileID:   "alice",
		DisplayName: "Alice",
		BloodType:   "o+",
		Allergies:   []string{"penicillin"},
		Password:    testPassword,
	})
	if err != nil {
		t.Fatalf("seed profile: %v", err)
	}

	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger:   logger,
		Addr:     ":0",
		Gate:     gate,
		Sessions: service.NewSessionRegistry(gate, 0, clock),
		Profiles: profiles,
		Audit:    service.NewAuditRecorder(audit, "", clock, logger),
		Retention: service.NewRetentionManager(audit, memory.NewRunStore(), service.RetentionConfig{
			Policy: service.RetentionPolicy{RetentionDays: 90, MaxLogsPerProfile: 1000},
			Clock:  clock,
			Logger: logger,
		}),
		Tokens:              tokens,
		Metrics:             http.NotFoundHandler(),
		VerifyRatePerMinute: ratePerMinute,
		Clock:               clock,
	})

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &testEnv{ts: ts, clock: clock, kv: kv, audit: audit, tokens: tokens}
}

func (e *testEnv) do(t *testing.T, method, path, body string, header map[string]string) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = bytes.NewReader([]byte(body))
	}
	req, err := http.NewRequest(method, e.ts.URL+path, rd)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (e *testEnv) adminHeader(t *testing.T) map[string]string {
	t.Helper()
	tok, _, err := e.tokens.Issue("ops")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return map[string]string{"Authorization": "Bearer " + tok}
}

func (e *testEnv) openSession(t *testing.T, profileID string) string {
	t.Helper()
	resp := e.do(t, http.MethodPost, "/v1/profiles/"+profileID+"/sessions", "", nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("open session: expected 201, got %d", resp.StatusCode)
	}
	var out types.OpenSessionResponse
	decode(t, resp, &out)
	if out.AttemptsRemaining != 3 {
		t.Fatalf("expected 3 attempts, got %d", out.AttemptsRemaining)
	}
	return out.SessionID
}

func (e *testEnv) verify(t *testing.T, sessionID, password string) *http.Response {
	t.Helper()
	body, _ := json.Marshal(types.VerifyRequest{Password: password})
	return e.do(t, http.MethodPost, "/v1/sessions/"+sessionID+"/verify", string(body), nil)
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func expectError(t *testing.T, resp *http.Response, status int, code string) {
	t.Helper()
	if resp.StatusCode != status {
		t.Fatalf("expected %d, got %d", status, resp.StatusCode)
	}
	var e types.ErrorResponse
	decode(t, resp, &e)
	if e.Error != code {
		t.Errorf("expected error=%q, got %q", code, e.Error)
	}
}

// ── View / verify flow ───────────────────────────────────────────────────────

func TestViewProfile_RequiresAccess(t *testing.T) {
	env := newTestServer(t, 0)

	resp := env.do(t, http.MethodGet, "/v1/profiles/alice", "", nil)
	expectError(t, resp, http.StatusForbidden, "access_required")

	if n, _ := env.audit.CountEntries(context.Background()); n != 0 {
		t.Errorf("refused view must not be audited, got %d entries", n)
	}
}

func TestViewProfile_UnknownProfile(t *testing.T) {
	env := newTestServer(t, 0)
	resp := env.do(t, http.MethodGet, "/v1/profiles/nobody", "", nil)
	expectError(t, resp, http.StatusNotFound, "profile_not_found")
}

func TestVerify_GrantThenViewUntilWindowEnds(t *testing.T) {
	env := newTestServer(t, 0)
	sid := env.openSession(t, "alice")

	resp := env.verify(t, sid, testPassword)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var vr types.VerifyResponse
	decode(t, resp, &vr)
	if !vr.Granted || vr.Outcome != "granted" {
		t.Fatalf("expected granted, got %+v", vr)
	}
	if vr.RemainingMinutes == nil || *vr.RemainingMinutes != 15 {
		t.Errorf("expected 15 remaining minutes, got %v", vr.RemainingMinutes)
	}

	// Granted sessions are closed.
	resp = env.verify(t, sid, testPassword)
	expectError(t, resp, http.StatusNotFound, "session_not_found")

	env.clock.Advance(5 * time.Minute)
	resp = env.do(t, http.MethodGet, "/v1/profiles/alice?method=link", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var view types.ProfileView
	decode(t, resp, &view)
	if view.DisplayName != "Alice" || view.BloodType != "O+" {
		t.Errorf("unexpected view: %+v", view)
	}

	resp = env.do(t, http.MethodGet, "/v1/profiles/alice/access", "", nil)
	var st types.AccessStatusResponse
	decode(t, resp, &st)
	if !st.HasAccess || st.State != "active" || st.RemainingMinutes == nil || *st.RemainingMinutes != 10 {
		t.Errorf("unexpected access status: %+v", st)
	}

	// One nanosecond before expiry the status still rounds up to a minute.
	env.clock.Advance(10*time.Minute - time.Nanosecond)
	resp = env.do(t, http.MethodGet, "/v1/profiles/alice/access", "", nil)
	st = types.AccessStatusResponse{}
	decode(t, resp, &st)
	if st.State != "active" || st.RemainingMinutes == nil || *st.RemainingMinutes != 1 {
		t.Errorf("unexpected access status before expiry: %+v", st)
	}

	env.clock.Advance(time.Nanosecond)
	resp = env.do(t, http.MethodGet, "/v1/profiles/alice", "", nil)
	expectError(t, resp, http.StatusForbidden, "access_required")

	resp = env.do(t, http.MethodGet, "/v1/profiles/alice/access", "", nil)
	st = types.AccessStatusResponse{}
	decode(t, resp, &st)
	if st.HasAccess || st.State != "expired" || st.RemainingMinutes != nil {
		t.Errorf("unexpected access status after expiry: %+v", st)
	}

	entries := env.audit.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected unlock and view entries, got %d", len(entries))
	}
	if entries[0].AccessType != service.AccessUnlock || entries[1].AccessType != service.AccessView {
		t.Errorf("unexpected audit order: %s, %s", entries[0].AccessType, entries[1].AccessType)
	}
	if entries[1].Method != service.MethodLink {
		t.Errorf("expected method link, got %q", entries[1].Method)
	}
	if len(entries[1].AccessorHash) == 0 {
		t.Error("expected accessor hash on view entry")
	}
}

func TestVerify_LockoutAfterThreeMismatches(t *testing.T) {
	env := newTestServer(t, 0)
	sid := env.openSession(t, "alice")

	for i, want := range []struct {
		outcome   string
		remaining int
	}{{"mismatch", 2}, {"mismatch", 1}, {"locked_out", 0}} {
		resp := env.verify(t, sid, "wrong-password")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("attempt %d: expected 200, got %d", i+1, resp.StatusCode)
		}
		var vr types.VerifyResponse
		decode(t, resp, &vr)
		if vr.Outcome != want.outcome || vr.AttemptsRemaining != want.remaining || vr.Granted {
			t.Errorf("attempt %d: unexpected %+v", i+1, vr)
		}
	}

	// Even the right password is refused now.
	resp := env.verify(t, sid, testPassword)
	expectError(t, resp, http.StatusTooManyRequests, "too_many_attempts")

	// The three compared attempts are audited; the refused one is not.
	entries := env.audit.Entries()
	if len(entries) != 3 {
		t.Fatalf("expected 3 audit entries, got %d", len(entries))
	}
	for _, e := range entries {
		if e.AccessType != service.AccessUnlock || e.ProfileID != "alice" {
			t.Errorf("unexpected audit entry: %+v", e)
		}
	}

	// A fresh session starts over.
	sid = env.openSession(t, "alice")
	resp = env.verify(t, sid, testPassword)
	var vr types.VerifyResponse
	decode(t, resp, &vr)
	if !vr.Granted {
		t.Errorf("expected grant on new session, got %+v", vr)
	}
}

func TestVerify_EmptyPassword(t *testing.T) {
	env := newTestServer(t, 0)
	sid := env.openSession(t, "alice")

	resp := env.verify(t, sid, "")
	expectError(t, resp, http.StatusBadRequest, "password_required")

	// Not counted as an attempt.
	resp = env.verify(t, sid, "wrong-password")
	var vr types.VerifyResponse
	decode(t, resp, &vr)
	if vr.AttemptsRemaining != 2 {
		t.Errorf("expected 2 attempts remaining, got %d", vr.AttemptsRemaining)
	}
}

func TestVerify_BadJSON(t *testing.T) {
	env := newTestServer(t, 0)
	sid := env.openSession(t, "alice")

	resp := env.do(t, http.MethodPost, "/v1/sessions/"+sid+"/verify", `{"password":"x","extra":1}`, nil)
	expectError(t, resp, http.StatusBadRequest, "bad_json")
}

func TestVerify_StorageUnavailable(t *testing.T) {
	env := newTestServer(t, 0)
	sid := env.openSession(t, "alice")

	env.kv.failWrites.Store(true)
	resp := env.verify(t, sid, testPassword)
	expectError(t, resp, http.StatusServiceUnavailable, "storage_unavailable")

	env.kv.failWrites.Store(false)
	resp = env.verify(t, sid, testPassword)
	var vr types.VerifyResponse
	decode(t, resp, &vr)
	if !vr.Granted || vr.AttemptsRemaining != 3 {
		t.Errorf("expected retry to grant with counter intact, got %+v", vr)
	}
}

func TestSession_CloseAndUnknown(t *testing.T) {
	env := newTestServer(t, 0)

	resp := env.do(t, http.MethodPost, "/v1/profiles/nobody/sessions", "", nil)
	expectError(t, resp, http.StatusNotFound, "profile_not_found")

	sid := env.openSession(t, "alice")
	resp = env.do(t, http.MethodDelete, "/v1/sessions/"+sid, "", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	resp = env.do(t, http.MethodDelete, "/v1/sessions/"+sid, "", nil)
	expectError(t, resp, http.StatusNotFound, "session_not_found")
}

func TestSession_ExpiresAfterTTL(t *testing.T) {
	env := newTestServer(t, 0)
	sid := env.openSession(t, "alice")

	env.clock.Advance(service.DefaultSessionTTL)
	resp := env.verify(t, sid, testPassword)
	expectError(t, resp, http.StatusNotFound, "session_not_found")
}

func TestVerify_RateLimitedPerIP(t *testing.T) {
	env := newTestServer(t, 2)

	for i := 0; i < 2; i++ {
		resp := env.verify(t, "missing", testPassword)
		expectError(t, resp, http.StatusNotFound, "session_not_found")
	}

	resp := env.verify(t, "missing", testPassword)
	if resp.Header.Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
	expectError(t, resp, http.StatusTooManyRequests, "rate_limited")

	env.clock.Advance(time.Minute)
	resp = env.verify(t, "missing", testPassword)
	expectError(t, resp, http.StatusNotFound, "session_not_found")
}

func TestVerify_Protobuf(t *testing.T) {
	env := newTestServer(t, 0)
	sid := env.openSession(t, "alice")

	msg, err := structpb.NewStruct(map[string]any{"password": testPassword})
	if err != nil {
		t.Fatalf("struct: %v", err)
	}
	body, err := proto.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	req, _ := http.NewRequest(http.MethodPost, env.ts.URL+"/v1/sessions/"+sid+"/verify", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/x-protobuf")
	req.Header.Set("Accept", "application/x-protobuf")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/x-protobuf" {
		t.Errorf("expected protobuf content type, got %q", ct)
	}

	raw, _ := io.ReadAll(resp.Body)
	var out structpb.Struct
	if err := proto.Unmarshal(raw, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got := out.GetFields()["outcome"].GetStringValue(); got != "granted" {
		t.Errorf("expected outcome=granted, got %q", got)
	}
}

// ── Admin ────────────────────────────────────────────────────────────────────

func TestCreateProfile_RequiresToken(t *testing.T) {
	env := newTestServer(t, 0)
	body := `{"profile_id":"bob","display_name":"Bob","password":"secret1"}`

	resp := env.do(t, http.MethodPost, "/v1/profiles", body, nil)
	expectError(t, resp, http.StatusUnauthorized, "unauthorized")

	resp = env.do(t, http.MethodPost, "/v1/profiles", body, map[string]string{"Authorization": "Bearer junk"})
	expectError(t, resp, http.StatusUnauthorized, "unauthorized")

	resp = env.do(t, http.MethodPost, "/v1/profiles", body, env.adminHeader(t))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var view types.ProfileView
	decode(t, resp, &view)
	if view.ProfileID != "bob" {
		t.Errorf("expected profile_id=bob, got %q", view.ProfileID)
	}

	resp = env.do(t, http.MethodPost, "/v1/profiles", body, env.adminHeader(t))
	expectError(t, resp, http.StatusConflict, "profile_exists")

	resp = env.do(t, http.MethodPost, "/v1/profiles", `{"profile_id":"x y","display_name":"X","password":"secret1"}`, env.adminHeader(t))
	expectError(t, resp, http.StatusBadRequest, "invalid_profile")
}

func TestRetention_StatusAndCleanup(t *testing.T) {
	env := newTestServer(t, 0)
	ctx := context.Background()

	old := env.clock.Now().Add(-100 * 24 * time.Hour)
	for _, id := range []string{"a", "b"} {
		if err := env.audit.RecordEntry(ctx, store.AuditLogEntry{
			ID: id, ProfileID: "alice", Timestamp: old, AccessType: "view", Method: "qr",
		}); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	resp := env.do(t, http.MethodGet, "/v1/admin/retention", "", nil)
	expectError(t, resp, http.StatusUnauthorized, "unauthorized")

	resp = env.do(t, http.MethodGet, "/v1/admin/retention", "", env.adminHeader(t))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var st types.RetentionStatusResponse
	decode(t, resp, &st)
	if !st.Status.NeedsCleanup || st.Current.ExpiredEntries != 2 || st.Policy.RetentionDays != 90 {
		t.Errorf("unexpected status: %+v", st)
	}

	resp = env.do(t, http.MethodPost, "/v1/admin/retention/cleanup", "", env.adminHeader(t))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var run types.RetentionRun
	decode(t, resp, &run)
	if !run.Success || run.DeletedCount != 2 || run.ProfilesProcessed != 1 {
		t.Errorf("unexpected run: %+v", run)
	}

	resp = env.do(t, http.MethodGet, "/v1/admin/retention", "", env.adminHeader(t))
	decode(t, resp, &st)
	if st.Status.NeedsCleanup || st.Status.LastCleanupAt == "" || len(st.RecentRuns) != 1 {
		t.Errorf("unexpected status after cleanup: %+v", st)
	}
}

func TestAdmin_DisabledWithoutSecret(t *testing.T) {
	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Addr:   ":0",
		Tokens: authz.NewTokenManager("", time.Hour),
	})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/v1/admin/retention/cleanup", "application/json", nil)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}
