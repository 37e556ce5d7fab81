package downloader

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"hostfetch/hoster"
	"hostfetch/internal"
	"hostfetch/utils"
)

// fakeModule returns scripted outcomes; the last one repeats once the script
// runs out.
type fakeModule struct {
	name     string
	caps     hoster.Capabilities
	outcomes []fakeOutcome
	calls    int
}

type fakeOutcome struct {
	payload *internal.FilePayload
	err     error
}

func (m *fakeModule) Name() string                      { return m.name }
func (m *fakeModule) CanHandle(rawURL string) bool      { return true }
func (m *fakeModule) Capabilities() hoster.Capabilities { return m.caps }

func (m *fakeModule) ResolveDownload(ctx context.Context, sess *hoster.Session, rawURL string) (*internal.FilePayload, error) {
	idx := m.calls
	if idx >= len(m.outcomes) {
		idx = len(m.outcomes) - 1
	}
	m.calls++
	out := m.outcomes[idx]
	return out.payload, out.err
}

func newTestLadder(t *testing.T, cfg *internal.Config, slept *[]int) *Ladder {
	t.Helper()
	transfer := NewTransfer(utils.NewHTTPClient(), nil, true)
	ladder := NewLadder(cfg, transfer)
	ladder.budget.sleep = instantSleeper(slept)
	return ladder
}

func testSession(t *testing.T) *hoster.Session {
	t.Helper()
	sess, err := hoster.NewSession(utils.NewHTTPClient(), "", "")
	if err != nil {
		t.Fatalf("cannot build session: %v", err)
	}
	return sess
}

func TestLadderRetryCapAllowsNPlusOneAttempts(t *testing.T) {
	for _, n := range []int{1, 2, 5} {
		var slept []int
		cfg := internal.DefaultConfig()
		cfg.MaxRetries = n

		module := &fakeModule{
			name:     "stub",
			outcomes: []fakeOutcome{{err: internal.NewHosterError(internal.ErrLinkTempUnavailable, "busy").WithWait(1)}},
		}

		ladder := newTestLadder(t, cfg, &slept)
		_, err := ladder.Run(context.Background(), module, testSession(t), "http://x/file")

		if !internal.IsKind(err, internal.ErrMaxTriesReached) {
			t.Errorf("maxRetries=%d: expected MAX_TRIES_REACHED, got %v", n, err)
		}
		if module.calls != n+1 {
			t.Errorf("maxRetries=%d: expected %d attempts, got %d", n, n+1, module.calls)
		}
	}
}

func TestLadderZeroRetriesReturnsFirstKindVerbatim(t *testing.T) {
	var slept []int
	cfg := internal.DefaultConfig()
	cfg.MaxRetries = 0

	module := &fakeModule{
		name:     "stub",
		outcomes: []fakeOutcome{{err: internal.NewHosterError(internal.ErrLinkTempUnavailable, "busy").WithWait(30)}},
	}

	ladder := newTestLadder(t, cfg, &slept)
	_, err := ladder.Run(context.Background(), module, testSession(t), "http://x/file")

	if !internal.IsKind(err, internal.ErrLinkTempUnavailable) {
		t.Errorf("expected the module's own kind verbatim, got %v", err)
	}
	if module.calls != 1 {
		t.Errorf("expected exactly 1 attempt, got %d", module.calls)
	}
	if len(slept) != 0 {
		t.Errorf("no-retry run must not wait, slept %v", slept)
	}
}

func TestLadderBudgetExhaustionScenario(t *testing.T) {
	// Budget of 100 against a module always asking for 60: one wait fits
	// (100->40), the second fails MAX_WAIT_REACHED.
	var slept []int
	cfg := internal.DefaultConfig()
	cfg.Timeout = 100

	module := &fakeModule{
		name:     "stub",
		outcomes: []fakeOutcome{{err: internal.NewHosterError(internal.ErrLinkTempUnavailable, "busy").WithWait(60)}},
	}

	ladder := newTestLadder(t, cfg, &slept)
	_, err := ladder.Run(context.Background(), module, testSession(t), "http://x/file")

	if !internal.IsKind(err, internal.ErrMaxWaitReached) {
		t.Fatalf("expected MAX_WAIT_REACHED, got %v", err)
	}
	if len(slept) != 1 || slept[0] != 60 {
		t.Errorf("expected exactly one 60s wait, got %v", slept)
	}
	if module.calls != 2 {
		t.Errorf("expected 2 attempts, got %d", module.calls)
	}
}

func TestLadderWaitHintThenSuccess(t *testing.T) {
	var slept []int
	cfg := internal.DefaultConfig()
	cfg.Timeout = 100

	payload := &internal.FilePayload{ResolvedURL: "http://x/file", Filename: "file.bin"}
	module := &fakeModule{
		name: "stub",
		outcomes: []fakeOutcome{
			{err: internal.NewHosterError(internal.ErrLinkTempUnavailable, "busy").WithWait(45)},
			{payload: payload},
		},
	}

	ladder := newTestLadder(t, cfg, &slept)
	got, err := ladder.Run(context.Background(), module, testSession(t), "http://x/file")

	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if got.ResolvedURL != payload.ResolvedURL || got.Filename != payload.Filename {
		t.Errorf("unexpected payload %+v", got)
	}
	if len(slept) != 1 || slept[0] != 45 {
		t.Errorf("expected one 45s wait, got %v", slept)
	}
	if ladder.Budget().Remaining() != 55 {
		t.Errorf("expected 55s budget remaining, got %d", ladder.Budget().Remaining())
	}
}

func TestLadderDefaultWaitWhenNoHint(t *testing.T) {
	var slept []int
	cfg := internal.DefaultConfig()

	module := &fakeModule{
		name: "stub",
		outcomes: []fakeOutcome{
			{err: internal.NewHosterError(internal.ErrLinkTempUnavailable, "busy")},
			{payload: &internal.FilePayload{ResolvedURL: "http://x/f", Filename: "f"}},
		},
	}

	ladder := newTestLadder(t, cfg, &slept)
	if _, err := ladder.Run(context.Background(), module, testSession(t), "http://x/f"); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if len(slept) != 1 || slept[0] != defaultRetryWait {
		t.Errorf("expected one %ds default wait, got %v", defaultRetryWait, slept)
	}
}

func TestLadderNoExtraWaitAborts(t *testing.T) {
	var slept []int
	cfg := internal.DefaultConfig()
	cfg.NoExtraWait = true

	module := &fakeModule{
		name:     "stub",
		outcomes: []fakeOutcome{{err: internal.NewHosterError(internal.ErrLinkTempUnavailable, "busy").WithWait(10)}},
	}

	ladder := newTestLadder(t, cfg, &slept)
	_, err := ladder.Run(context.Background(), module, testSession(t), "http://x/f")

	if !internal.IsKind(err, internal.ErrLinkTempUnavailable) {
		t.Errorf("expected LINK_TEMP_UNAVAILABLE, got %v", err)
	}
	if module.calls != 1 || len(slept) != 0 {
		t.Errorf("no-extra-wait must abort on first attempt without sleeping: calls=%d slept=%v", module.calls, slept)
	}
}

func TestLadderCaptchaDisabledAborts(t *testing.T) {
	var slept []int
	cfg := internal.DefaultConfig()
	cfg.CaptchaMethod = internal.CaptchaMethodNone

	module := &fakeModule{
		name:     "stub",
		outcomes: []fakeOutcome{{err: internal.NewHosterError(internal.ErrCaptcha, "captcha failed")}},
	}

	ladder := newTestLadder(t, cfg, &slept)
	_, err := ladder.Run(context.Background(), module, testSession(t), "http://x/f")

	if !internal.IsKind(err, internal.ErrCaptcha) {
		t.Errorf("expected CAPTCHA, got %v", err)
	}
	if module.calls != 1 {
		t.Errorf("expected exactly 1 attempt with captcha disabled, got %d", module.calls)
	}
}

func TestLadderCaptchaRetriesWhenEnabled(t *testing.T) {
	var slept []int
	cfg := internal.DefaultConfig()

	module := &fakeModule{
		name: "stub",
		outcomes: []fakeOutcome{
			{err: internal.NewHosterError(internal.ErrCaptcha, "captcha failed")},
			{err: internal.NewHosterError(internal.ErrCaptcha, "captcha failed")},
			{payload: &internal.FilePayload{ResolvedURL: "http://x/f", Filename: "f"}},
		},
	}

	ladder := newTestLadder(t, cfg, &slept)
	if _, err := ladder.Run(context.Background(), module, testSession(t), "http://x/f"); err != nil {
		t.Fatalf("expected success after captcha retries, got %v", err)
	}
	if module.calls != 3 {
		t.Errorf("expected 3 attempts, got %d", module.calls)
	}
	if len(slept) != 0 {
		t.Errorf("captcha retries must not wait, slept %v", slept)
	}
}

func TestLadderNonRetryableKindsAbortImmediately(t *testing.T) {
	kinds := []internal.ErrorKind{
		internal.ErrFatal,
		internal.ErrNoModule,
		internal.ErrLoginFailed,
		internal.ErrLinkDead,
		internal.ErrLinkPasswordRequired,
		internal.ErrSizeLimitExceeded,
	}

	for _, kind := range kinds {
		t.Run(kind.String(), func(t *testing.T) {
			var slept []int
			cfg := internal.DefaultConfig()

			module := &fakeModule{
				name:     "stub",
				outcomes: []fakeOutcome{{err: internal.NewHosterError(kind, "boom")}},
			}

			ladder := newTestLadder(t, cfg, &slept)
			_, err := ladder.Run(context.Background(), module, testSession(t), "http://x/f")

			if !internal.IsKind(err, kind) {
				t.Errorf("expected %v surfaced unchanged, got %v", kind, err)
			}
			if module.calls != 1 {
				t.Errorf("expected exactly 1 attempt, got %d", module.calls)
			}
			if len(slept) != 0 {
				t.Errorf("abort path must not wait, slept %v", slept)
			}
		})
	}
}

func TestLadderPayloadValidation(t *testing.T) {
	tests := []struct {
		name    string
		payload *internal.FilePayload
	}{
		{"empty URL", &internal.FilePayload{ResolvedURL: "", Filename: "f"}},
		{"URL equals filename", &internal.FilePayload{ResolvedURL: "file.bin", Filename: "file.bin"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var slept []int
			module := &fakeModule{name: "stub", outcomes: []fakeOutcome{{payload: tt.payload}}}
			ladder := newTestLadder(t, internal.DefaultConfig(), &slept)

			_, err := ladder.Run(context.Background(), module, testSession(t), "http://x/f")
			if !internal.IsKind(err, internal.ErrFatal) {
				t.Errorf("expected FATAL for broken module output, got %v", err)
			}
			if err == nil || !strings.Contains(err.Error(), "module") {
				t.Errorf("expected module-bug message, got %v", err)
			}
		})
	}
}

func TestDownload503TriggersOneSafetyWaitAndReinvoke(t *testing.T) {
	hits := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if hits == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("hello world"))
	}))
	defer server.Close()

	var slept []int
	cfg := internal.DefaultConfig()
	payload := &internal.FilePayload{ResolvedURL: server.URL + "/f", Filename: "f.bin"}
	module := &fakeModule{
		name:     "stub",
		caps:     hoster.Capabilities{Resume: true},
		outcomes: []fakeOutcome{{payload: payload}},
	}

	ladder := newTestLadder(t, cfg, &slept)
	dir := t.TempDir()

	path, err := ladder.Download(context.Background(), module, testSession(t), "http://x/f", dir)
	if err != nil {
		t.Fatalf("expected recovery after 503, got %v", err)
	}
	if module.calls != 2 {
		t.Errorf("expected the module re-invoked once after 503, got %d calls", module.calls)
	}
	if len(slept) != 1 || slept[0] != safetyWait503 {
		t.Errorf("expected exactly one %ds safety wait, got %v", safetyWait503, slept)
	}

	data, readErr := os.ReadFile(path)
	if readErr != nil || string(data) != "hello world" {
		t.Errorf("unexpected downloaded content %q (err %v)", data, readErr)
	}
}

func TestDownloadDoesNotClobberExistingFile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("new content"))
	}))
	defer server.Close()

	var slept []int
	payload := &internal.FilePayload{ResolvedURL: server.URL + "/f", Filename: "f.bin"}
	module := &fakeModule{name: "stub", outcomes: []fakeOutcome{{payload: payload}}}

	ladder := newTestLadder(t, internal.DefaultConfig(), &slept)
	dir := t.TempDir()

	existing := filepath.Join(dir, "f.bin")
	if err := os.WriteFile(existing, []byte("old content"), 0644); err != nil {
		t.Fatal(err)
	}

	path, err := ladder.Download(context.Background(), module, testSession(t), "http://x/f", dir)
	if err != nil {
		t.Fatalf("download failed: %v", err)
	}
	if filepath.Base(path) != "f.1.bin" {
		t.Errorf("expected a numbered alternative name, got %s", path)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "new content" {
		t.Errorf("unexpected downloaded content %q", data)
	}
	old, _ := os.ReadFile(existing)
	if string(old) != "old content" {
		t.Errorf("existing file was clobbered: %q", old)
	}
}

func TestDownloadRepeated503SurfacesTempUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	var slept []int
	cfg := internal.DefaultConfig()
	payload := &internal.FilePayload{ResolvedURL: server.URL + "/f", Filename: "f.bin"}
	module := &fakeModule{
		name:     "stub",
		caps:     hoster.Capabilities{Resume: true},
		outcomes: []fakeOutcome{{payload: payload}},
	}

	ladder := newTestLadder(t, cfg, &slept)

	_, err := ladder.Download(context.Background(), module, testSession(t), "http://x/f", t.TempDir())
	if !internal.IsKind(err, internal.ErrLinkTempUnavailable) {
		t.Errorf("expected LINK_TEMP_UNAVAILABLE after second 503, got kind %v (%v)",
			internal.KindOf(err), err)
	}
	if errors.Is(err, errServiceUnavailable) {
		t.Error("transfer sentinel must not escape the download path")
	}
	if module.calls != 2 {
		t.Errorf("expected exactly one re-resolution, got %d calls", module.calls)
	}
	if len(slept) != 1 || slept[0] != safetyWait503 {
		t.Errorf("expected exactly one %ds safety wait, got %v", safetyWait503, slept)
	}
}

func TestDownloadRepeated416SurfacesNetwork(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
	}))
	defer server.Close()

	var slept []int
	cfg := internal.DefaultConfig()
	payload := &internal.FilePayload{ResolvedURL: server.URL + "/f", Filename: "f.bin"}
	module := &fakeModule{
		name:     "stub",
		outcomes: []fakeOutcome{{payload: payload}},
	}

	ladder := newTestLadder(t, cfg, &slept)

	_, err := ladder.Download(context.Background(), module, testSession(t), "http://x/f", t.TempDir())
	if !internal.IsKind(err, internal.ErrNetwork) {
		t.Errorf("expected NETWORK after 416 on a fresh restart, got kind %v (%v)",
			internal.KindOf(err), err)
	}
	if errors.Is(err, errRangeNotSatisfiable) {
		t.Error("transfer sentinel must not escape the download path")
	}
}

func TestDownload416ResumableMeansComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
	}))
	defer server.Close()

	var slept []int
	cfg := internal.DefaultConfig()
	payload := &internal.FilePayload{ResolvedURL: server.URL + "/f", Filename: "done.bin"}
	module := &fakeModule{
		name:     "stub",
		caps:     hoster.Capabilities{Resume: true},
		outcomes: []fakeOutcome{{payload: payload}},
	}

	ladder := newTestLadder(t, cfg, &slept)
	dir := t.TempDir()

	// A fully transferred .part from an earlier run.
	partPath := filepath.Join(dir, "done.bin.part")
	if err := os.WriteFile(partPath, []byte("complete content"), 0644); err != nil {
		t.Fatal(err)
	}

	path, err := ladder.Download(context.Background(), module, testSession(t), "http://x/f", dir)
	if err != nil {
		t.Fatalf("expected completion, got %v", err)
	}
	if filepath.Base(path) != "done.bin" {
		t.Errorf("unexpected output path %s", path)
	}
	data, readErr := os.ReadFile(path)
	if readErr != nil || string(data) != "complete content" {
		t.Errorf("part file was not promoted: %q (err %v)", data, readErr)
	}
	if _, err := os.Stat(partPath); !os.IsNotExist(err) {
		t.Errorf(".part file should be gone after promotion")
	}
}

func TestDownload416NonResumableRestartsFromScratch(t *testing.T) {
	hits := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if hits == 1 {
			w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
			return
		}
		w.Write([]byte("fresh content"))
	}))
	defer server.Close()

	var slept []int
	cfg := internal.DefaultConfig()
	payload := &internal.FilePayload{ResolvedURL: server.URL + "/f", Filename: "fresh.bin"}
	module := &fakeModule{
		name:     "stub",
		outcomes: []fakeOutcome{{payload: payload}},
	}

	ladder := newTestLadder(t, cfg, &slept)
	dir := t.TempDir()

	path, err := ladder.Download(context.Background(), module, testSession(t), "http://x/f", dir)
	if err != nil {
		t.Fatalf("expected restart to succeed, got %v", err)
	}
	data, readErr := os.ReadFile(path)
	if readErr != nil || string(data) != "fresh content" {
		t.Errorf("unexpected content %q (err %v)", data, readErr)
	}
	if module.calls != 1 {
		t.Errorf("416 restart must not re-invoke the module, got %d calls", module.calls)
	}
}
