package guard

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	application "crowdstage/contexts/trust-safety/vote-admission/application"
	"crowdstage/contexts/trust-safety/vote-admission/domain/entities"
	domainerrors "crowdstage/contexts/trust-safety/vote-admission/domain/errors"
	"crowdstage/contexts/trust-safety/vote-admission/ports"
)

// Suspicion weights. Accumulated score is clamped to [0,1].
const (
	weightMissingUserAgent  = 0.2
	weightSharedFingerprint = 0.3
	weightSharedIP          = 0.3
	weightCountryMismatch   = 0.2
)

// Sharing thresholds for the suspicion rules: a fingerprint seen with more
// than fingerprintEmailLimit distinct emails, or an IP seen with more than
// ipEmailLimit distinct emails, inside the sharing window.
const (
	fingerprintEmailLimit = 3
	ipEmailLimit          = 5
)

type Config struct {
	// VelocityThreshold is the number of admitted records per fingerprint or
	// IP inside VelocityWindow at which further attempts are rate limited.
	VelocityThreshold int
	VelocityWindow    time.Duration
	// MinBotScore rejects attempts whose external bot score falls below it.
	// Attempts without a score skip the rule.
	MinBotScore float64
	// FlagThreshold is the suspicion score at which an admitted vote is
	// persisted flagged for human review.
	FlagThreshold float64
	// SharingWindow bounds the fingerprint/IP email-sharing lookback.
	SharingWindow time.Duration
}

func DefaultConfig() Config {
	return Config{
		VelocityThreshold: 10,
		VelocityWindow:    60 * time.Second,
		MinBotScore:       0.5,
		FlagThreshold:     0.7,
		SharingWindow:     24 * time.Hour,
	}
}

func (c Config) normalized() Config {
	defaults := DefaultConfig()
	if c.VelocityThreshold <= 0 {
		c.VelocityThreshold = defaults.VelocityThreshold
	}
	if c.VelocityWindow <= 0 {
		c.VelocityWindow = defaults.VelocityWindow
	}
	if c.MinBotScore <= 0 {
		c.MinBotScore = defaults.MinBotScore
	}
	if c.FlagThreshold <= 0 {
		c.FlagThreshold = defaults.FlagThreshold
	}
	if c.SharingWindow <= 0 {
		c.SharingWindow = defaults.SharingWindow
	}
	return c
}

// Guard decides whether an incoming vote attempt is admitted, rate limited,
// or rejected as fraudulent, and computes the suspicion score feeding the
// moderation review queue.
//
// Evaluate is a pure function of the attempt, the ledger snapshot, and the
// supplied clock reading: it mutates nothing, so it is safe to invoke
// concurrently for unrelated attempts. Persistence stays with the caller.
type Guard struct {
	Catalog  ports.ContentCatalog
	Denylist ports.DomainDenylist
	Config   Config
	Logger   *slog.Logger
}

// Evaluate runs the fixed rule order: input validation, duplicate vote,
// velocity, bot score, suspicion accumulation, flag threshold. Business
// rejections come back as decision values; the only error paths are a
// malformed attempt (ErrInvalidAttempt) and ledger/catalog failures.
func (g Guard) Evaluate(
	ctx context.Context,
	attempt entities.VoteAttempt,
	ledger ports.LedgerQuery,
	now time.Time,
) (entities.AdmissionDecision, error) {
	logger := application.ResolveLogger(g.Logger)
	cfg := g.Config.normalized()

	email, domain, err := normalizeEmail(attempt.Email)
	if err != nil {
		logger.Warn("vote attempt email rejected",
			"event", "admission_email_invalid",
			"module", "trust-safety/vote-admission",
			"layer", "application",
			"target_type", string(attempt.Target.Type),
			"target_id", attempt.Target.ID,
		)
		return entities.AdmissionDecision{}, domainerrors.ErrInvalidAttempt
	}
	if !attempt.Target.Type.Valid() || attempt.Target.ID <= 0 {
		return entities.AdmissionDecision{}, domainerrors.ErrInvalidAttempt
	}

	// Disposable-domain check fails open: an unreachable checker only costs
	// us the check, never the vote.
	if g.Denylist != nil {
		disposable, err := g.Denylist.IsDisposable(ctx, domain)
		switch {
		case err != nil:
			logger.Warn("denylist check degraded",
				"event", "admission_denylist_degraded",
				"module", "trust-safety/vote-admission",
				"layer", "application",
				"domain", domain,
				"error", err.Error(),
			)
		case disposable:
			logger.Warn("vote attempt from disposable domain",
				"event", "admission_disposable_domain",
				"module", "trust-safety/vote-admission",
				"layer", "application",
				"domain", domain,
			)
			return entities.AdmissionDecision{}, domainerrors.ErrInvalidAttempt
		}
	}

	content, err := g.Catalog.GetContent(ctx, attempt.Target)
	if err != nil {
		if errors.Is(err, domainerrors.ErrTargetNotFound) {
			return entities.AdmissionDecision{}, domainerrors.ErrInvalidAttempt
		}
		return entities.AdmissionDecision{}, err
	}
	if !strings.EqualFold(strings.TrimSpace(content.Status), "approved") {
		return entities.AdmissionDecision{}, domainerrors.ErrInvalidAttempt
	}

	windowStart, windowEnd, windowKey := votingWindow(now, content.Timezone, logger)

	// Rule 1: one vote per (email, target) per calendar day in the target's
	// timezone. Hard reject; the ledger's unique index is the actual source
	// of truth under concurrency.
	duplicate, err := ledger.HasDuplicateVote(ctx, email, attempt.Target, windowStart, windowEnd)
	if err != nil {
		return entities.AdmissionDecision{}, err
	}
	if duplicate {
		logger.Info("vote attempt rejected as duplicate",
			"event", "admission_duplicate_vote",
			"module", "trust-safety/vote-admission",
			"layer", "application",
			"target_type", string(attempt.Target.Type),
			"target_id", attempt.Target.ID,
			"window_key", windowKey,
		)
		return entities.Rejected(entities.RejectDuplicateVote), nil
	}

	// Rule 2: fingerprint/IP velocity over a sliding window. Best-effort
	// reads; a small overshoot under concurrency is acceptable.
	velocityCutoff := now.Add(-cfg.VelocityWindow)
	if fingerprint := strings.TrimSpace(attempt.DeviceFingerprint); fingerprint != "" {
		count, err := ledger.CountByFingerprintSince(ctx, fingerprint, velocityCutoff)
		if err != nil {
			return entities.AdmissionDecision{}, err
		}
		if count >= cfg.VelocityThreshold {
			logger.Info("vote attempt rate limited by fingerprint",
				"event", "admission_rate_limited",
				"module", "trust-safety/vote-admission",
				"layer", "application",
				"dimension", "fingerprint",
				"count", count,
			)
			return entities.Rejected(entities.RejectRateLimited), nil
		}
	}
	if ip := strings.TrimSpace(attempt.IPAddress); ip != "" {
		count, err := ledger.CountByIPSince(ctx, ip, velocityCutoff)
		if err != nil {
			return entities.AdmissionDecision{}, err
		}
		if count >= cfg.VelocityThreshold {
			logger.Info("vote attempt rate limited by ip",
				"event", "admission_rate_limited",
				"module", "trust-safety/vote-admission",
				"layer", "application",
				"dimension", "ip",
				"count", count,
			)
			return entities.Rejected(entities.RejectRateLimited), nil
		}
	}

	// Rule 3: external bot score, evaluated only when present.
	if attempt.BotScore != nil && *attempt.BotScore < cfg.MinBotScore {
		logger.Info("vote attempt rejected for low trust score",
			"event", "admission_low_trust_score",
			"module", "trust-safety/vote-admission",
			"layer", "application",
			"bot_score", *attempt.BotScore,
		)
		return entities.Rejected(entities.RejectLowTrustScore), nil
	}

	// Rule 4: suspicion accumulation. These never reject on their own.
	suspicion, err := g.accumulateSuspicion(ctx, attempt, email, ledger, now, cfg)
	if err != nil {
		return entities.AdmissionDecision{}, err
	}

	// Rule 5: flag threshold.
	decision := entities.AdmissionDecision{
		Outcome:   entities.OutcomeAdmitted,
		Suspicion: suspicion,
		WindowKey: windowKey,
	}
	if suspicion >= cfg.FlagThreshold {
		decision.Outcome = entities.OutcomeAdmittedFlagged
		logger.Info("vote attempt admitted flagged",
			"event", "admission_flagged",
			"module", "trust-safety/vote-admission",
			"layer", "application",
			"suspicion", suspicion,
			"target_type", string(attempt.Target.Type),
			"target_id", attempt.Target.ID,
		)
	}
	return decision, nil
}

func (g Guard) accumulateSuspicion(
	ctx context.Context,
	attempt entities.VoteAttempt,
	email string,
	ledger ports.LedgerQuery,
	now time.Time,
	cfg Config,
) (float64, error) {
	suspicion := 0.0
	sharingCutoff := now.Add(-cfg.SharingWindow)

	if strings.TrimSpace(attempt.UserAgent) == "" {
		suspicion += weightMissingUserAgent
	}

	if fingerprint := strings.TrimSpace(attempt.DeviceFingerprint); fingerprint != "" {
		emails, err := ledger.DistinctEmailsByFingerprintSince(ctx, fingerprint, sharingCutoff)
		if err != nil {
			return 0, err
		}
		if emails > fingerprintEmailLimit {
			suspicion += weightSharedFingerprint
		}
	}

	if ip := strings.TrimSpace(attempt.IPAddress); ip != "" {
		emails, err := ledger.DistinctEmailsByIPSince(ctx, ip, sharingCutoff)
		if err != nil {
			return 0, err
		}
		if emails > ipEmailLimit {
			suspicion += weightSharedIP
		}
	}

	if country := strings.TrimSpace(attempt.Geo.Country); country != "" {
		previous, err := ledger.CountriesForEmail(ctx, email)
		if err != nil {
			return 0, err
		}
		if len(previous) > 0 && !containsFold(previous, country) {
			suspicion += weightCountryMismatch
		}
	}

	if suspicion > 1 {
		suspicion = 1
	}
	return suspicion, nil
}

// NormalizeEmail lowercases and syntax-checks the identity signal, returning
// the canonical address and its domain part.
func NormalizeEmail(raw string) (string, string, error) {
	return normalizeEmail(raw)
}

func normalizeEmail(raw string) (string, string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", "", domainerrors.ErrInvalidAttempt
	}
	parsed, err := mail.ParseAddress(trimmed)
	if err != nil {
		return "", "", domainerrors.ErrInvalidAttempt
	}
	address := strings.ToLower(parsed.Address)
	at := strings.LastIndex(address, "@")
	if at <= 0 || at == len(address)-1 {
		return "", "", domainerrors.ErrInvalidAttempt
	}
	return address, address[at+1:], nil
}

// votingWindow computes the calendar-day window at the target's configured
// timezone. An unparseable timezone degrades to UTC rather than blocking the
// vote.
func votingWindow(now time.Time, timezone string, logger *slog.Logger) (time.Time, time.Time, string) {
	location := time.UTC
	if name := strings.TrimSpace(timezone); name != "" {
		if loaded, err := time.LoadLocation(name); err == nil {
			location = loaded
		} else if logger != nil {
			logger.Warn("target timezone unparseable; using UTC window",
				"event", "admission_timezone_degraded",
				"module", "trust-safety/vote-admission",
				"layer", "application",
				"timezone", name,
			)
		}
	}
	local := now.In(location)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, location)
	end := start.AddDate(0, 0, 1)
	return start, end, start.Format("2006-01-02")
}

func containsFold(values []string, target string) bool {
	for _, value := range values {
		if strings.EqualFold(strings.TrimSpace(value), target) {
			return true
		}
	}
	return false
}
