package httptransport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"

	"vpntrack-server-go/internal/domain/registry"
	"vpntrack-server-go/internal/platform/config"
	platformtesting "vpntrack-server-go/internal/platform/testing"
)

func setupServer(t *testing.T) (*gin.Engine, *registry.Dispatcher, *registry.Store) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	if err := mr.Set("user:id", "1000"); err != nil {
		t.Fatalf("preset counter: %v", err)
	}

	store, err := registry.NewStore(&config.RedisConfig{Addr: mr.Addr()})
	if err != nil {
		t.Fatalf("NewStore error: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	logger := platformtesting.SetupTestLogger(t)
	dispatcher := registry.NewDispatcher(16)
	worker := registry.NewWorker(store, dispatcher, logger)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() {
		_ = worker.Run(ctx)
	}()

	router := Build(Options{Logger: logger})
	NewReportHandler(dispatcher, logger).Register(router.Engine)
	NewStatusHandler(dispatcher).Register(router.API)

	return router.Engine, dispatcher, store
}

func issueToken(t *testing.T, dispatcher *registry.Dispatcher, userID int64) string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cmd := registry.NewIssueCredential(userID)
	if err := dispatcher.Submit(ctx, cmd); err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	res, err := cmd.Wait(ctx)
	if err != nil || !res.OK {
		t.Fatalf("issue failed: res=%+v err=%v", res, err)
	}
	return res.Text
}

func postReport(engine *gin.Engine, credential, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/app", strings.NewReader(body))
	if credential != "" {
		req.Header.Set("Credential", credential)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestReportSuccess(t *testing.T) {
	engine, dispatcher, _ := setupServer(t)

	token := issueToken(t, dispatcher, 42)
	if w := postReport(engine, token, "203.0.113.7"); w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	cmd := registry.NewQueryAddress(42)
	if err := dispatcher.Submit(ctx, cmd); err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	res, err := cmd.Wait(ctx)
	if err != nil || !res.OK {
		t.Fatalf("query failed: res=%+v err=%v", res, err)
	}
	if !strings.Contains(res.Text, "203.0.113.7") {
		t.Errorf("query response %q missing reported address", res.Text)
	}
}

func TestReportRejectsIPv6BeforeDispatch(t *testing.T) {
	engine, dispatcher, _ := setupServer(t)

	token := issueToken(t, dispatcher, 42)
	if w := postReport(engine, token, "2001:db8::1"); w.Code != http.StatusNotAcceptable {
		t.Errorf("status = %d, want 406", w.Code)
	}
}

func TestReportRejectsNonIPBody(t *testing.T) {
	engine, _, _ := setupServer(t)

	if w := postReport(engine, "1000:abc", "not-an-ip"); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestReportRejectsMalformedCredential(t *testing.T) {
	engine, _, _ := setupServer(t)

	// No separator at all.
	if w := postReport(engine, "WRONG", "203.0.113.7"); w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	// Missing header behaves the same.
	if w := postReport(engine, "", "203.0.113.7"); w.Code != http.StatusInternalServerError {
		t.Errorf("status without header = %d, want 500", w.Code)
	}
}

func TestReportMismatchLeavesAddressUnchanged(t *testing.T) {
	engine, dispatcher, store := setupServer(t)

	issueToken(t, dispatcher, 42)
	if w := postReport(engine, "1000:WRONG", "203.0.113.7"); w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}

	_, found, err := store.Address(context.Background(), registry.AppKey(1000))
	if err != nil {
		t.Fatalf("Address error: %v", err)
	}
	if found {
		t.Error("mismatched report must not record an address")
	}
}

func TestStatusEndpoint(t *testing.T) {
	engine, _, _ := setupServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "queue_depth") {
		t.Errorf("body %q missing queue_depth", w.Body.String())
	}
}
