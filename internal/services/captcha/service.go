// -----------------------------------------------------------------------
// Challenge Solver - 2Captcha request/poll client for reCAPTCHA tokens
// -----------------------------------------------------------------------

package captcha

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/tubescope/internal/common"
	"github.com/ternarybob/tubescope/internal/models"
)

const (
	responseNotReady    = "CAPCHA_NOT_READY"
	responseZeroBalance = "ERROR_ZERO_BALANCE"
)

// ErrInsufficientBalance is returned by Submit when the service account has
// run out of funds. It is never retried: topping up is an operator action.
var ErrInsufficientBalance = errors.New("captcha service balance exhausted")

// Service is a stateless client for the 2Captcha solving API. A challenge is
// submitted once, then polled on a fixed interval until a terminal result or
// the configured deadline.
type Service struct {
	client       *resty.Client
	apiKey       string
	timeout      time.Duration
	pollInterval time.Duration
	logger       arbor.ILogger
}

// apiResponse is the JSON envelope every 2Captcha endpoint returns.
// Status 1 means success and Request carries the payload; status 0 means
// Request carries an ERROR_* code.
type apiResponse struct {
	Status  int    `json:"status"`
	Request string `json:"request"`
}

// NewService creates a solver client from configuration.
func NewService(config common.CaptchaConfig, logger arbor.ILogger) *Service {
	client := resty.New().
		SetBaseURL(config.BaseURL).
		SetTimeout(30 * time.Second)

	return &Service{
		client:       client,
		apiKey:       config.APIKey,
		timeout:      config.TimeoutDuration(),
		pollInterval: config.PollIntervalDuration(),
		logger:       logger,
	}
}

// Submit sends the challenge to the service and returns the solve job ID.
// The service replies text/html even with json=1, so every request forces
// JSON decoding of the body.
func (s *Service) Submit(ctx context.Context, req models.ChallengeRequest) (string, error) {
	var body apiResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"key":       s.apiKey,
			"method":    "userrecaptcha",
			"googlekey": req.SiteKey,
			"pageurl":   req.PageURL,
			"json":      "1",
		}).
		SetResult(&body).
		ForceContentType("application/json").
		Post("/in.php")
	if err != nil {
		return "", fmt.Errorf("captcha submit request failed: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("captcha submit returned HTTP %d", resp.StatusCode())
	}

	if body.Status != 1 {
		if body.Request == responseZeroBalance {
			return "", ErrInsufficientBalance
		}
		return "", fmt.Errorf("captcha submit rejected: %s", body.Request)
	}

	s.logger.Debug().Str("handle", body.Request).Msg("Challenge submitted to solving service")
	return body.Request, nil
}

// Poll checks one submitted challenge. A pending result is returned as
// status pending, not as an error.
func (s *Service) Poll(ctx context.Context, handle string) (models.ChallengeResult, error) {
	var body apiResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"key":    s.apiKey,
			"action": "get",
			"id":     handle,
			"json":   "1",
		}).
		SetResult(&body).
		ForceContentType("application/json").
		Get("/res.php")
	if err != nil {
		return models.ChallengeResult{}, fmt.Errorf("captcha poll request failed: %w", err)
	}
	if resp.IsError() {
		return models.ChallengeResult{}, fmt.Errorf("captcha poll returned HTTP %d", resp.StatusCode())
	}

	switch {
	case body.Status == 1:
		return models.ChallengeResult{Status: models.ChallengeSolved, Token: body.Request}, nil
	case body.Request == responseNotReady:
		return models.ChallengeResult{Status: models.ChallengePending}, nil
	case body.Request == responseZeroBalance:
		return models.ChallengeResult{Status: models.ChallengeInsufficientBalance, Reason: body.Request}, nil
	default:
		return models.ChallengeResult{Status: models.ChallengeFailed, Reason: body.Request}, nil
	}
}

// Solve composes Submit and Poll with the configured interval, bounded by the
// configured timeout. It always returns a terminal result; transport errors
// during polling are retried until the deadline.
func (s *Service) Solve(ctx context.Context, req models.ChallengeRequest) models.ChallengeResult {
	solveCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	handle, err := s.Submit(solveCtx, req)
	if err != nil {
		if errors.Is(err, ErrInsufficientBalance) {
			s.logger.Warn().Msg("Captcha service balance exhausted, not retrying")
			return models.ChallengeResult{Status: models.ChallengeInsufficientBalance, Reason: responseZeroBalance}
		}
		return models.ChallengeResult{Status: models.ChallengeFailed, Reason: err.Error()}
	}

	started := time.Now()
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-solveCtx.Done():
			s.logger.Warn().
				Str("handle", handle).
				Dur("elapsed", time.Since(started)).
				Msg("Challenge solving timed out")
			return models.ChallengeResult{Status: models.ChallengeTimedOut, Handle: handle, Reason: "deadline exceeded"}
		case <-ticker.C:
			result, err := s.Poll(solveCtx, handle)
			if err != nil {
				// Transient transport failure; keep polling until the deadline.
				s.logger.Debug().Err(err).Str("handle", handle).Msg("Challenge poll failed, retrying")
				continue
			}
			if result.Terminal() {
				result.Handle = handle
				s.logger.Debug().
					Str("handle", handle).
					Str("status", string(result.Status)).
					Dur("elapsed", time.Since(started)).
					Msg("Challenge reached terminal state")
				return result
			}
		}
	}
}

// Balance returns the service account balance in USD.
func (s *Service) Balance(ctx context.Context) (float64, error) {
	var body apiResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"key":    s.apiKey,
			"action": "getbalance",
			"json":   "1",
		}).
		SetResult(&body).
		ForceContentType("application/json").
		Get("/res.php")
	if err != nil {
		return 0, fmt.Errorf("balance request failed: %w", err)
	}
	if resp.IsError() || body.Status != 1 {
		return 0, fmt.Errorf("balance check rejected: %s", body.Request)
	}

	balance, err := strconv.ParseFloat(body.Request, 64)
	if err != nil {
		return 0, fmt.Errorf("unparseable balance %q: %w", body.Request, err)
	}
	return balance, nil
}

// ReportBad flags a solved token that failed to work, for refund.
func (s *Service) ReportBad(ctx context.Context, handle string) error {
	var body apiResponse
	_, err := s.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"key":    s.apiKey,
			"action": "reportbad",
			"id":     handle,
			"json":   "1",
		}).
		SetResult(&body).
		ForceContentType("application/json").
		Get("/res.php")
	if err != nil {
		return fmt.Errorf("reportbad request failed: %w", err)
	}
	if body.Status != 1 {
		return fmt.Errorf("reportbad rejected: %s", body.Request)
	}
	return nil
}
