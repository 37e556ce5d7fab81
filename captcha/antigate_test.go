package captcha

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"hostfetch/internal"
	"hostfetch/utils"
)

func newTestAntigate(serverURL string) *AntigateProvider {
	p := NewAntigateProvider("test-key", utils.NewHTTPClient())
	p.apiBase = serverURL
	p.sleep = func(ctx context.Context, seconds int) error { return nil }
	return p
}

func TestAntigateSolveSuccess(t *testing.T) {
	polls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/in.php":
			fmt.Fprint(w, "OK|12345")
		case "/res.php":
			if r.URL.Query().Get("action") != "get" {
				t.Errorf("unexpected action %q", r.URL.Query().Get("action"))
			}
			polls++
			if polls < 3 {
				fmt.Fprint(w, "CAPCHA_NOT_READY")
			} else {
				fmt.Fprint(w, "OK|dragon42")
			}
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	provider := newTestAntigate(server.URL)
	word, ticket, err := provider.Solve(context.Background(), testChallenge())
	if err != nil {
		t.Fatalf("solve failed: %v", err)
	}
	if word != "dragon42" {
		t.Errorf("expected dragon42, got %q", word)
	}
	if ticket.ID != "12345" || ticket.ProviderTag != "a" {
		t.Errorf("unexpected ticket %+v", ticket)
	}
	if polls != 3 {
		t.Errorf("expected 3 polls, got %d", polls)
	}
}

func TestAntigatePollExhaustionIsCaptcha(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/in.php" {
			fmt.Fprint(w, "OK|99")
			return
		}
		fmt.Fprint(w, "CAPCHA_NOT_READY")
	}))
	defer server.Close()

	provider := newTestAntigate(server.URL)
	_, _, err := provider.Solve(context.Background(), testChallenge())
	if !internal.IsKind(err, internal.ErrCaptcha) {
		t.Errorf("poll exhaustion must be CAPTCHA, got %v", err)
	}
}

func TestAntigateErrorNormalization(t *testing.T) {
	tests := []struct {
		response string
		want     internal.ErrorKind
	}{
		{"ERROR_ZERO_BALANCE", internal.ErrFatal},
		{"ERROR_NO_SLOT_AVAILABLE", internal.ErrCaptcha},
		{"ERROR_CAPTCHA_UNSOLVABLE", internal.ErrCaptcha},
		{"ERROR_KEY_DOES_NOT_EXIST", internal.ErrFatal},
		{"ERROR_SOMETHING_NEW", internal.ErrFatal},
	}

	for _, tt := range tests {
		t.Run(tt.response, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, tt.response)
			}))
			defer server.Close()

			provider := newTestAntigate(server.URL)
			_, _, err := provider.Solve(context.Background(), testChallenge())
			if !internal.IsKind(err, tt.want) {
				t.Errorf("response %s: expected %v, got %v", tt.response, tt.want, err)
			}
		})
	}
}

func TestAntigateBalance(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("action") != "getbalance" {
			t.Errorf("unexpected action %q", r.URL.Query().Get("action"))
		}
		fmt.Fprint(w, "3.75")
	}))
	defer server.Close()

	provider := newTestAntigate(server.URL)
	balance, err := provider.Balance(context.Background())
	if err != nil {
		t.Fatalf("balance check failed: %v", err)
	}
	if balance != 3.75 {
		t.Errorf("expected 3.75, got %v", balance)
	}
}

func TestAntigateNackReportsTransaction(t *testing.T) {
	reported := ""
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("action") == "reportbad" {
			reported = r.URL.Query().Get("id")
		}
		fmt.Fprint(w, "OK_REPORT_RECORDED")
	}))
	defer server.Close()

	provider := newTestAntigate(server.URL)
	if err := provider.Nack(context.Background(), Ticket{ProviderTag: "a", ID: "555"}); err != nil {
		t.Fatalf("nack failed: %v", err)
	}
	if reported != "555" {
		t.Errorf("expected report for transaction 555, got %q", reported)
	}
}
