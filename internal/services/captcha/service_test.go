package captcha

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/tubescope/internal/common"
	"github.com/ternarybob/tubescope/internal/models"
)

func newTestService(t *testing.T, handler http.Handler) *Service {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewService(common.CaptchaConfig{
		APIKey:       "test-key",
		BaseURL:      server.URL,
		Timeout:      "250ms",
		PollInterval: "10ms",
	}, arbor.NewLogger())
}

// writeJSON replies the way the real service does: a JSON body under a
// text/html content type, which the client must decode regardless.
func writeJSON(w http.ResponseWriter, status int, request string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  status,
		"request": request,
	})
}

func TestSubmit(t *testing.T) {
	svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/in.php", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "test-key", r.FormValue("key"))
		assert.Equal(t, "userrecaptcha", r.FormValue("method"))
		assert.Equal(t, "sitekey-abc", r.FormValue("googlekey"))
		assert.Equal(t, "https://www.youtube.com/@chan/about", r.FormValue("pageurl"))
		writeJSON(w, 1, "12345")
	}))

	handle, err := svc.Submit(context.Background(), models.ChallengeRequest{
		SiteKey: "sitekey-abc",
		PageURL: "https://www.youtube.com/@chan/about",
	})
	require.NoError(t, err)
	assert.Equal(t, "12345", handle)
}

func TestSubmit_ZeroBalance(t *testing.T) {
	svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 0, "ERROR_ZERO_BALANCE")
	}))

	_, err := svc.Submit(context.Background(), models.ChallengeRequest{})
	assert.ErrorIs(t, err, ErrInsufficientBalance)
}

func TestPoll_Statuses(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		request    string
		wantStatus models.ChallengeStatus
		wantToken  string
	}{
		{"solved", 1, "token-xyz", models.ChallengeSolved, "token-xyz"},
		{"pending", 0, "CAPCHA_NOT_READY", models.ChallengePending, ""},
		{"zero balance", 0, "ERROR_ZERO_BALANCE", models.ChallengeInsufficientBalance, ""},
		{"unsolvable", 0, "ERROR_CAPTCHA_UNSOLVABLE", models.ChallengeFailed, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				require.Equal(t, "/res.php", r.URL.Path)
				assert.Equal(t, "get", r.URL.Query().Get("action"))
				writeJSON(w, tt.status, tt.request)
			}))

			result, err := svc.Poll(context.Background(), "12345")
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, result.Status)
			assert.Equal(t, tt.wantToken, result.Token)
		})
	}
}

func TestSolve_PollsUntilSolved(t *testing.T) {
	var polls int32
	svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/in.php" {
			writeJSON(w, 1, "12345")
			return
		}
		if atomic.AddInt32(&polls, 1) < 3 {
			writeJSON(w, 0, "CAPCHA_NOT_READY")
			return
		}
		writeJSON(w, 1, "token-xyz")
	}))

	result := svc.Solve(context.Background(), models.ChallengeRequest{SiteKey: "k", PageURL: "u"})
	assert.Equal(t, models.ChallengeSolved, result.Status)
	assert.Equal(t, "token-xyz", result.Token)
	assert.GreaterOrEqual(t, atomic.LoadInt32(&polls), int32(3))
}

func TestSolve_TimesOut(t *testing.T) {
	svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/in.php" {
			writeJSON(w, 1, "12345")
			return
		}
		writeJSON(w, 0, "CAPCHA_NOT_READY")
	}))

	result := svc.Solve(context.Background(), models.ChallengeRequest{SiteKey: "k", PageURL: "u"})
	assert.Equal(t, models.ChallengeTimedOut, result.Status)
}

func TestSolve_InsufficientBalanceIsNotRetried(t *testing.T) {
	var submits int32
	svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/in.php" {
			atomic.AddInt32(&submits, 1)
			writeJSON(w, 0, "ERROR_ZERO_BALANCE")
			return
		}
		t.Errorf("unexpected poll after zero-balance submit: %s", r.URL.Path)
	}))

	result := svc.Solve(context.Background(), models.ChallengeRequest{SiteKey: "k", PageURL: "u"})
	assert.Equal(t, models.ChallengeInsufficientBalance, result.Status)
	assert.Equal(t, int32(1), atomic.LoadInt32(&submits))
}

func TestSolve_FailedResultEndsPolling(t *testing.T) {
	var polls int32
	svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/in.php" {
			writeJSON(w, 1, "12345")
			return
		}
		atomic.AddInt32(&polls, 1)
		writeJSON(w, 0, "ERROR_CAPTCHA_UNSOLVABLE")
	}))

	result := svc.Solve(context.Background(), models.ChallengeRequest{SiteKey: "k", PageURL: "u"})
	assert.Equal(t, models.ChallengeFailed, result.Status)
	assert.Equal(t, "ERROR_CAPTCHA_UNSOLVABLE", result.Reason)
	assert.Equal(t, int32(1), atomic.LoadInt32(&polls))
}

func TestBalance(t *testing.T) {
	svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "getbalance", r.URL.Query().Get("action"))
		writeJSON(w, 1, "2.75")
	}))

	balance, err := svc.Balance(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 2.75, balance, 0.001)
}

func TestReportBad(t *testing.T) {
	svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "reportbad", r.URL.Query().Get("action"))
		assert.Equal(t, "12345", r.URL.Query().Get("id"))
		writeJSON(w, 1, "OK_REPORT_RECORDED")
	}))

	assert.NoError(t, svc.ReportBad(context.Background(), "12345"))
}
