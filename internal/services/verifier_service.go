// Package services – VerifierService
//
// This file implements evidence verification: resolving a submission's image
// references, invoking the external judgment oracle, and reducing its output
// to the two-valued verdict plus a human-readable reason. The service owns
// three contracts the oracle itself does not:
//
//   - input validation: every reference must resolve to a retrievable,
//     non-empty image before any judgment call is spent;
//   - retry policy: transient oracle failures (network, rate limit, 5xx) are
//     retried with backoff, a confident "rejected" judgment never is;
//   - vocabulary reduction: the lifecycle engine sees only
//     approved/rejected + reason, never the oracle's own wording.
//
// If the oracle stays unreachable (or inconclusive) after retries, the
// caller gets ErrVerificationUnavailable and the submission stays pending —
// no evidence is lost, a later retry of judgment alone completes the cycle.
package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-cooler-backend/internal/domain"
	"github.com/tbourn/go-cooler-backend/internal/observability"
	"github.com/tbourn/go-cooler-backend/internal/oracle"
)

// VerifierService judges evidence submissions via the external oracle.
type VerifierService struct {
	Oracle oracle.Client
	Images oracle.ImageStore

	// MaxAttempts bounds oracle retries on transient failure. Values <= 0
	// default to 3.
	MaxAttempts int
	// RetryBackoff is the base delay between oracle retries, doubled per
	// attempt. Values <= 0 default to 500ms.
	RetryBackoff time.Duration
}

// ValidateRefs resolves every reference through the image store and fails
// with ErrInvalidEvidence on the first one that is missing or empty.
func (s *VerifierService) ValidateRefs(ctx context.Context, refs ...string) error {
	for _, ref := range refs {
		if strings.TrimSpace(ref) == "" {
			return ErrInvalidEvidence
		}
		if _, err := s.Images.Resolve(ctx, ref); err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidEvidence, ref)
		}
	}
	return nil
}

// Judge produces the verdict for a pending submission.
//
// The after image is compared against the clean reference; when the
// submission carries a TDS meter photo, the safety reading must also pass.
// Both legs must approve for an approved verdict; any failing leg
// contributes to the combined reason string so the technician knows what to
// fix before resubmitting.
func (s *VerifierService) Judge(ctx context.Context, sub *domain.Submission) (domain.Verdict, string, error) {
	tr := otel.Tracer("services/VerifierService")
	ctx, span := tr.Start(ctx, "Judge",
		trace.WithAttributes(attribute.String("submission.id", sub.ID)),
	)
	defer span.End()

	refs := []string{sub.BeforeImageRef, sub.AfterImageRef}
	if sub.TDSImageRef != nil {
		refs = append(refs, *sub.TDSImageRef)
	}
	if err := s.ValidateRefs(ctx, refs...); err != nil {
		return domain.VerdictPending, "", err
	}

	after, err := s.Images.Resolve(ctx, sub.AfterImageRef)
	if err != nil {
		return domain.VerdictPending, "", fmt.Errorf("%w: %s", ErrInvalidEvidence, sub.AfterImageRef)
	}

	cleanliness, cleanRaw, err := s.judgeWithRetry(ctx, func(ctx context.Context) (oracle.Outcome, string, error) {
		return s.Oracle.CompareCleanliness(ctx, after)
	})
	if err != nil {
		return domain.VerdictPending, "", err
	}

	tds := oracle.OutcomeSafe
	tdsRaw := ""
	if sub.TDSImageRef != nil {
		img, err := s.Images.Resolve(ctx, *sub.TDSImageRef)
		if err != nil {
			return domain.VerdictPending, "", fmt.Errorf("%w: %s", ErrInvalidEvidence, *sub.TDSImageRef)
		}
		tds, tdsRaw, err = s.judgeWithRetry(ctx, func(ctx context.Context) (oracle.Outcome, string, error) {
			return s.Oracle.ReadTDS(ctx, img)
		})
		if err != nil {
			return domain.VerdictPending, "", err
		}
	}

	return reduceVerdict(cleanliness, tds, sub.TDSImageRef != nil, cleanRaw, tdsRaw)
}

// Precheck judges a single "before" photo against the clean reference
// without touching any record — used by technicians to decide whether a
// cooler actually needs work before starting.
func (s *VerifierService) Precheck(ctx context.Context, beforeRef string) (oracle.Outcome, string, error) {
	tr := otel.Tracer("services/VerifierService")
	ctx, span := tr.Start(ctx, "Precheck",
		trace.WithAttributes(attribute.String("image.ref", beforeRef)),
	)
	defer span.End()

	if err := s.ValidateRefs(ctx, beforeRef); err != nil {
		return oracle.OutcomeUnknown, "", err
	}
	img, err := s.Images.Resolve(ctx, beforeRef)
	if err != nil {
		return oracle.OutcomeUnknown, "", fmt.Errorf("%w: %s", ErrInvalidEvidence, beforeRef)
	}

	outcome, raw, err := s.judgeWithRetry(ctx, func(ctx context.Context) (oracle.Outcome, string, error) {
		return s.Oracle.CompareCleanliness(ctx, img)
	})
	if err != nil {
		return oracle.OutcomeUnknown, "", err
	}
	if outcome == oracle.OutcomeUnknown {
		return oracle.OutcomeUnknown, raw, ErrVerificationUnavailable
	}
	return outcome, raw, nil
}

// judgeWithRetry runs one oracle leg under the bounded retry policy. Only
// transient failures are retried; a decisive reply (including a negative
// one) returns immediately.
func (s *VerifierService) judgeWithRetry(ctx context.Context, call func(context.Context) (oracle.Outcome, string, error)) (oracle.Outcome, string, error) {
	attempts := s.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}
	backoff := s.RetryBackoff
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		outcome, raw, err := call(ctx)
		if err == nil {
			observability.OracleCallsTotal.WithLabelValues("ok").Inc()
			return outcome, raw, nil
		}
		if !oracle.IsTransient(err) {
			observability.OracleCallsTotal.WithLabelValues("failed").Inc()
			return oracle.OutcomeUnknown, "", fmt.Errorf("%w: %s", ErrVerificationUnavailable, err)
		}
		observability.OracleCallsTotal.WithLabelValues("transient").Inc()
		lastErr = err
		log.Warn().Err(err).Int("attempt", i+1).Msg("oracle call failed, retrying")

		select {
		case <-ctx.Done():
			return oracle.OutcomeUnknown, "", ctx.Err()
		case <-time.After(backoff << i):
		}
	}
	return oracle.OutcomeUnknown, "", fmt.Errorf("%w: %s", ErrVerificationUnavailable, lastErr)
}

// reduceVerdict collapses the oracle's per-leg outcomes into the two-valued
// verdict. An inconclusive cleanliness or TDS reading is not a rejection —
// the submission stays pending and the caller is told to retry judgment.
func reduceVerdict(cleanliness, tds oracle.Outcome, hasTDS bool, cleanRaw, tdsRaw string) (domain.Verdict, string, error) {
	if cleanliness == oracle.OutcomeUnknown || (hasTDS && tds == oracle.OutcomeUnknown) {
		return domain.VerdictPending, "", ErrVerificationUnavailable
	}

	isClean := cleanliness == oracle.OutcomeClean
	isSafe := !hasTDS || tds == oracle.OutcomeSafe

	if isClean && isSafe {
		reason := "tank matches the clean reference"
		if hasTDS {
			reason = "tank is clean and TDS reading is safe"
		}
		return domain.VerdictApproved, reason, nil
	}

	var problems []string
	if !isClean {
		problems = append(problems, "tank still looks like it needs cleaning")
		if r := strings.TrimSpace(cleanRaw); r != "" {
			problems[len(problems)-1] += " (" + r + ")"
		}
	}
	if !isSafe {
		problems = append(problems, "TDS reading is unsafe")
		if r := strings.TrimSpace(tdsRaw); r != "" {
			problems[len(problems)-1] += " (" + r + ")"
		}
	}
	reason := strings.Join(problems, "; ") + ". Fix the issues and resubmit."
	return domain.VerdictRejected, reason, nil
}
