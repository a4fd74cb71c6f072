// -----------------------------------------------------------------------
// Profile Fetcher - per-target browser lifecycle as an explicit state machine
// -----------------------------------------------------------------------

package fetch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/tubescope/internal/common"
	"github.com/ternarybob/tubescope/internal/interfaces"
	"github.com/ternarybob/tubescope/internal/models"
)

// State names one phase of the fetch pipeline. Each state has exactly one
// step method; failures from any state land in StateErrored carrying the
// originating state's name.
type State string

const (
	StateInit            State = "Init"
	StateNavigating      State = "Navigating"
	StateConsentCheck    State = "ConsentCheck"
	StateLoaded          State = "Loaded"
	StateRevealRequested State = "RevealRequested"
	StateChallengeCheck  State = "ChallengeCheck"
	StateExtracting      State = "Extracting"
	StateDone            State = "Done"
	StateErrored         State = "Errored"
)

const signInToSeeEmail = "Sign in to see email address"

// Service fetches one profile per call: launch a browser with engine
// fallback, navigate, dismiss consent, reveal the gated email (solving a
// challenge when one appears), extract, and assemble the record. The browser
// is torn down on every exit path.
type Service struct {
	sessions  interfaces.SessionStore
	solver    interfaces.ChallengeSolver
	extractor interfaces.Extractor
	launchers []EngineLauncher
	config    common.ScraperConfig
	logger    arbor.ILogger
	now       func() time.Time
}

// NewService wires the fetcher from its collaborators.
func NewService(sessions interfaces.SessionStore, solver interfaces.ChallengeSolver, extractor interfaces.Extractor, launchers []EngineLauncher, config common.ScraperConfig, logger arbor.ILogger) *Service {
	return &Service{
		sessions:  sessions,
		solver:    solver,
		extractor: extractor,
		launchers: launchers,
		config:    config,
		logger:    logger,
		now:       time.Now,
	}
}

// fetchJob carries the mutable state of one fetch through the machine.
type fetchJob struct {
	target models.Target

	page     page
	teardown func()

	authenticated bool
	html          string // page snapshot taken in Loaded, feeds the extractor

	// email is pre-decided (unavailable_auth / unavailable_public / already
	// visible) when set; otherwise searchEmail asks Extracting to scan the
	// post-reveal page.
	email       *models.FieldValue
	searchEmail bool

	// challengeSubmitted enforces at most one outstanding challenge per target.
	challengeSubmitted bool
	solvedHandle       string

	record     *models.ProfileRecord
	failState  State
	failReason string
}

func (j *fetchJob) fail(state State, reason string) State {
	j.failState = state
	j.failReason = reason
	return StateErrored
}

func (j *fetchJob) setEmail(v models.FieldValue) {
	j.email = &v
}

// Fetch runs the state machine for one target. It returns either a record or
// a failure, never both and never neither.
func (s *Service) Fetch(ctx context.Context, target models.Target) (record *models.ProfileRecord, failure *models.TargetFailure) {
	job := &fetchJob{target: target}
	state := StateInit

	defer func() {
		if job.teardown != nil {
			job.teardown()
		}
		// A crashed renderer or any other panic still yields exactly one
		// failure entry for the target.
		if r := recover(); r != nil {
			s.logger.Error().
				Str("url", target.URL).
				Str("state", string(state)).
				Str("panic", fmt.Sprintf("%v", r)).
				Msg("Fetch panicked")
			record = nil
			failure = &models.TargetFailure{Target: target, State: string(state), Reason: models.ReasonPanic}
		}
	}()

	for state != StateDone && state != StateErrored {
		state = s.step(ctx, state, job)
	}

	if state == StateErrored {
		s.logger.Warn().
			Str("url", target.URL).
			Str("state", string(job.failState)).
			Str("reason", job.failReason).
			Msg("Fetch failed")
		return nil, &models.TargetFailure{Target: target, State: string(job.failState), Reason: job.failReason}
	}

	return job.record, nil
}

func (s *Service) step(ctx context.Context, state State, job *fetchJob) State {
	switch state {
	case StateInit:
		return s.stepInit(ctx, job)
	case StateNavigating:
		return s.stepNavigating(ctx, job)
	case StateConsentCheck:
		return s.stepConsentCheck(ctx, job)
	case StateLoaded:
		return s.stepLoaded(ctx, job)
	case StateRevealRequested:
		return s.stepRevealRequested(ctx, job)
	case StateChallengeCheck:
		return s.stepChallengeCheck(ctx, job)
	case StateExtracting:
		return s.stepExtracting(ctx, job)
	default:
		return job.fail(state, "unknown state")
	}
}

// stepInit launches the browser, trying each engine in order, and injects
// session cookies when the persisted session is valid.
func (s *Service) stepInit(ctx context.Context, job *fetchJob) State {
	var lastErr error
	for _, launcher := range s.launchers {
		p, teardown, err := launcher.Launch(ctx)
		if err != nil {
			lastErr = err
			s.logger.Warn().Str("engine", launcher.Name).Err(err).Msg("Engine launch failed, trying next")
			continue
		}
		s.logger.Debug().Str("engine", launcher.Name).Msg("Browser engine launched")
		job.page = p
		job.teardown = teardown
		break
	}
	if job.page == nil {
		if lastErr != nil {
			s.logger.Error().Err(lastErr).Msg("All browser engines failed to launch")
		}
		return job.fail(StateInit, models.ReasonBrowserLaunchFailure)
	}

	session := s.sessions.Load()
	if s.sessions.IsValid(session) {
		if err := job.page.SetCookies(ctx, session.Cookies); err != nil {
			// Injection failure degrades to an unauthenticated fetch.
			s.logger.Warn().Err(err).Msg("Cookie injection failed, continuing unauthenticated")
		} else {
			job.authenticated = true
		}
	} else {
		s.logger.Debug().Str("url", job.target.URL).Msg("No valid session, fetching unauthenticated")
	}

	return StateNavigating
}

// stepNavigating loads the About page under the navigation timeout.
func (s *Service) stepNavigating(ctx context.Context, job *fetchJob) State {
	navCtx, cancel := context.WithTimeout(ctx, s.config.NavigationTimeoutDuration())
	defer cancel()

	if err := job.page.Navigate(navCtx, job.target.AboutURL); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return job.fail(StateNavigating, models.ReasonNavigationTimeout)
		}
		return job.fail(StateNavigating, "navigation failed: "+err.Error())
	}

	// Let client-side rendering settle before inspecting the page.
	if err := job.page.Sleep(ctx, s.config.SettleDelayDuration()); err != nil {
		return job.fail(StateNavigating, "page settle interrupted: "+err.Error())
	}

	return StateConsentCheck
}

// stepConsentCheck accepts the consent prompt when one is shown. Absence of a
// prompt is not an error, and a failed dismissal is logged but never fatal.
func (s *Service) stepConsentCheck(ctx context.Context, job *fetchJob) State {
	url, _ := job.page.CurrentURL(ctx)
	html, err := job.page.HTML(ctx)
	if err != nil {
		return job.fail(StateConsentCheck, "page read failed: "+err.Error())
	}

	if !strings.Contains(url, "consent.") && !strings.Contains(html, "Before you continue") {
		return StateLoaded
	}

	var clicked bool
	if err := job.page.Evaluate(ctx, consentClickJS, &clicked); err != nil || !clicked {
		s.logger.Warn().Str("url", job.target.URL).Str("reason", models.ReasonConsentFailure).Msg("Could not dismiss consent prompt")
		return StateLoaded
	}

	_ = job.page.Sleep(ctx, 2*time.Second)
	s.logger.Debug().Str("url", job.target.URL).Msg("Consent prompt accepted")
	return StateLoaded
}

// stepLoaded snapshots the page for extraction and decides the email path:
// gated behind sign-in, already visible, not offered, or behind the reveal
// control.
func (s *Service) stepLoaded(ctx context.Context, job *fetchJob) State {
	html, err := job.page.HTML(ctx)
	if err != nil {
		return job.fail(StateLoaded, "page snapshot failed: "+err.Error())
	}
	job.html = html

	text, _ := job.page.VisibleText(ctx)
	if strings.Contains(text, signInToSeeEmail) {
		job.setEmail(models.Unavailable(models.FieldUnavailableAuth))
		s.logger.Debug().Str("url", job.target.URL).Msg("Email requires sign-in, marking unavailable_auth")
		return StateExtracting
	}

	if email := findEmail(text); email != "" {
		job.setEmail(models.Extracted(email))
		s.logger.Debug().Str("url", job.target.URL).Msg("Email already visible without reveal")
		return StateExtracting
	}

	var present bool
	if err := job.page.Evaluate(ctx, revealControlScript(false), &present); err != nil || !present {
		// Channel does not offer a contact email.
		job.setEmail(models.Unavailable(models.FieldUnavailablePublic))
		s.logger.Debug().Str("url", job.target.URL).Str("reason", models.ReasonRevealUnavailable).Msg("No reveal control on page")
		return StateExtracting
	}

	return StateRevealRequested
}

// stepRevealRequested clicks the reveal control.
func (s *Service) stepRevealRequested(ctx context.Context, job *fetchJob) State {
	var clicked bool
	if err := job.page.Evaluate(ctx, revealControlScript(true), &clicked); err != nil || !clicked {
		job.setEmail(models.Unavailable(models.FieldExtractionFailed))
		s.logger.Warn().Str("url", job.target.URL).Msg("Reveal control click failed")
		return StateExtracting
	}

	_ = job.page.Sleep(ctx, s.config.SettleDelayDuration())
	return StateChallengeCheck
}

// stepChallengeCheck solves the reCAPTCHA when one gates the reveal. Solver
// failure of any kind marks the email extraction_failed and never aborts the
// rest of the record.
func (s *Service) stepChallengeCheck(ctx context.Context, job *fetchJob) State {
	html, err := job.page.HTML(ctx)
	if err != nil {
		return job.fail(StateChallengeCheck, "page read failed: "+err.Error())
	}

	if !hasChallenge(html) {
		job.searchEmail = true
		return StateExtracting
	}

	siteKey := findSiteKey(html)
	if siteKey == "" {
		job.setEmail(models.Unavailable(models.FieldExtractionFailed))
		s.logger.Warn().Str("url", job.target.URL).Msg("Challenge present but no site key found")
		return StateExtracting
	}

	if job.challengeSubmitted {
		// Never submit a second challenge for the same page load.
		job.setEmail(models.Unavailable(models.FieldExtractionFailed))
		s.logger.Warn().Str("url", job.target.URL).Msg("Challenge already submitted for this target, not retrying")
		return StateExtracting
	}
	job.challengeSubmitted = true

	pageURL, err := job.page.CurrentURL(ctx)
	if err != nil || pageURL == "" {
		pageURL = job.target.AboutURL
	}

	result := s.solver.Solve(ctx, models.ChallengeRequest{SiteKey: siteKey, PageURL: pageURL})
	switch result.Status {
	case models.ChallengeSolved:
		job.solvedHandle = result.Handle
		if err := job.page.Evaluate(ctx, injectTokenJS(result.Token), nil); err != nil {
			job.setEmail(models.Unavailable(models.FieldExtractionFailed))
			s.logger.Warn().Err(err).Str("url", job.target.URL).Msg("Token injection failed")
			return StateExtracting
		}
		_ = job.page.Evaluate(ctx, submitClickJS, nil)
		_ = job.page.Sleep(ctx, s.config.SettleDelayDuration())
		job.searchEmail = true
		s.logger.Debug().Str("url", job.target.URL).Msg("Challenge solved and token submitted")
	case models.ChallengeInsufficientBalance:
		job.setEmail(models.Unavailable(models.FieldExtractionFailed))
		s.logger.Error().Str("url", job.target.URL).Str("reason", models.ReasonInsufficientBalance).Msg("Challenge solver balance exhausted")
	case models.ChallengeTimedOut:
		job.setEmail(models.Unavailable(models.FieldExtractionFailed))
		s.logger.Warn().Str("url", job.target.URL).Str("reason", models.ReasonChallengeTimedOut).Msg("Challenge solving timed out")
	default:
		job.setEmail(models.Unavailable(models.FieldExtractionFailed))
		s.logger.Warn().Str("url", job.target.URL).Str("reason", result.Reason).Msg("Challenge solving failed")
	}

	return StateExtracting
}

// stepExtracting runs the page extractor on the Loaded snapshot and merges
// the email outcome into the record.
func (s *Service) stepExtracting(ctx context.Context, job *fetchJob) State {
	record := s.extractor.Extract(job.html, job.target, s.now())

	switch {
	case job.email != nil:
		record.SetField(models.FieldEmail, *job.email)
	case job.searchEmail:
		email := s.searchRevealedEmail(ctx, job)
		if email != "" {
			record.SetField(models.FieldEmail, models.Extracted(email))
		} else {
			record.SetField(models.FieldEmail, models.Unavailable(models.FieldExtractionFailed))
			if job.solvedHandle != "" {
				// The token was accepted but no email appeared; flag the
				// solve for refund.
				if err := s.solver.ReportBad(ctx, job.solvedHandle); err != nil {
					s.logger.Debug().Err(err).Msg("ReportBad failed")
				}
			}
		}
	default:
		record.SetField(models.FieldEmail, models.Unavailable(models.FieldExtractionFailed))
	}

	job.record = record
	return StateDone
}

// searchRevealedEmail scans the post-reveal page, visible text first, raw
// HTML as fallback.
func (s *Service) searchRevealedEmail(ctx context.Context, job *fetchJob) string {
	if text, err := job.page.VisibleText(ctx); err == nil {
		if email := findEmail(text); email != "" {
			return email
		}
	}
	if html, err := job.page.HTML(ctx); err == nil {
		if email := findEmail(html); email != "" {
			return email
		}
	}
	return ""
}
