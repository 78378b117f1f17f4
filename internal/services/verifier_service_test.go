package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/tbourn/go-cooler-backend/internal/domain"
	"github.com/tbourn/go-cooler-backend/internal/oracle"
)

// mapStore resolves references out of an in-memory map.
type mapStore struct {
	images map[string][]byte
}

func (m *mapStore) Resolve(_ context.Context, ref string) (oracle.Image, error) {
	data, ok := m.images[ref]
	if !ok || len(data) == 0 {
		return oracle.Image{}, oracle.ErrUnresolvable
	}
	return oracle.Image{Data: data, MIME: "image/jpeg"}, nil
}

// scriptedOracle replays a fixed sequence of replies per leg.
type scriptedOracle struct {
	clean      []legReply
	tds        []legReply
	cleanCalls int
	tdsCalls   int
}

type legReply struct {
	outcome oracle.Outcome
	raw     string
	err     error
}

func (o *scriptedOracle) CompareCleanliness(_ context.Context, _ oracle.Image) (oracle.Outcome, string, error) {
	r := o.clean[min(o.cleanCalls, len(o.clean)-1)]
	o.cleanCalls++
	return r.outcome, r.raw, r.err
}

func (o *scriptedOracle) ReadTDS(_ context.Context, _ oracle.Image) (oracle.Outcome, string, error) {
	r := o.tds[min(o.tdsCalls, len(o.tds)-1)]
	o.tdsCalls++
	return r.outcome, r.raw, r.err
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func testSubmission(tdsRef *string) *domain.Submission {
	return &domain.Submission{
		ID:             "sub-1",
		CoolerID:       "cooler-1",
		BeforeImageRef: "before.jpg",
		AfterImageRef:  "after.jpg",
		TDSImageRef:    tdsRef,
		Verdict:        domain.VerdictPending,
	}
}

func testStore() *mapStore {
	return &mapStore{images: map[string][]byte{
		"before.jpg": []byte("b"),
		"after.jpg":  []byte("a"),
		"tds.jpg":    []byte("t"),
	}}
}

func TestValidateRefs(t *testing.T) {
	svc := &VerifierService{Images: testStore()}
	ctx := context.Background()

	if err := svc.ValidateRefs(ctx, "before.jpg", "after.jpg"); err != nil {
		t.Fatalf("valid refs rejected: %v", err)
	}
	if err := svc.ValidateRefs(ctx, "before.jpg", "missing.jpg"); !errors.Is(err, ErrInvalidEvidence) {
		t.Fatalf("missing ref must fail with ErrInvalidEvidence, got %v", err)
	}
	if err := svc.ValidateRefs(ctx, "   "); !errors.Is(err, ErrInvalidEvidence) {
		t.Fatalf("blank ref must fail with ErrInvalidEvidence, got %v", err)
	}
}

func TestJudge_CleanlinessOnly_Approves(t *testing.T) {
	o := &scriptedOracle{clean: []legReply{{oracle.OutcomeClean, "CLEAN", nil}}}
	svc := &VerifierService{Oracle: o, Images: testStore()}

	verdict, reason, err := svc.Judge(context.Background(), testSubmission(nil))
	if err != nil {
		t.Fatalf("Judge: %v", err)
	}
	if verdict != domain.VerdictApproved {
		t.Fatalf("expected approved, got %s (%s)", verdict, reason)
	}
	if o.tdsCalls != 0 {
		t.Fatalf("no TDS photo, no TDS call; got %d", o.tdsCalls)
	}
}

func TestJudge_ConfidentRejection_NeverRetried(t *testing.T) {
	o := &scriptedOracle{clean: []legReply{{oracle.OutcomeNeedsCleaning, "NEEDS CLEANING", nil}}}
	svc := &VerifierService{Oracle: o, Images: testStore(), MaxAttempts: 5, RetryBackoff: time.Millisecond}

	verdict, reason, err := svc.Judge(context.Background(), testSubmission(nil))
	if err != nil {
		t.Fatalf("Judge: %v", err)
	}
	if verdict != domain.VerdictRejected {
		t.Fatalf("expected rejected, got %s", verdict)
	}
	if !strings.Contains(reason, "needs cleaning") || !strings.Contains(reason, "resubmit") {
		t.Fatalf("reason must tell the technician what to fix: %q", reason)
	}
	if o.cleanCalls != 1 {
		t.Fatalf("a decisive negative reply must not be retried; %d calls", o.cleanCalls)
	}
}

func TestJudge_TransientFailure_RetriesThenSucceeds(t *testing.T) {
	o := &scriptedOracle{clean: []legReply{
		{oracle.OutcomeUnknown, "", &oracle.TransientError{Err: errors.New("429")}},
		{oracle.OutcomeUnknown, "", &oracle.TransientError{Err: errors.New("503")}},
		{oracle.OutcomeClean, "CLEAN", nil},
	}}
	svc := &VerifierService{Oracle: o, Images: testStore(), MaxAttempts: 3, RetryBackoff: time.Millisecond}

	verdict, _, err := svc.Judge(context.Background(), testSubmission(nil))
	if err != nil {
		t.Fatalf("Judge: %v", err)
	}
	if verdict != domain.VerdictApproved {
		t.Fatalf("expected approved after retries, got %s", verdict)
	}
	if o.cleanCalls != 3 {
		t.Fatalf("expected 3 attempts, got %d", o.cleanCalls)
	}
}

func TestJudge_TransientFailure_ExhaustsToUnavailable(t *testing.T) {
	o := &scriptedOracle{clean: []legReply{
		{oracle.OutcomeUnknown, "", &oracle.TransientError{Err: errors.New("boom")}},
	}}
	svc := &VerifierService{Oracle: o, Images: testStore(), MaxAttempts: 2, RetryBackoff: time.Millisecond}

	verdict, _, err := svc.Judge(context.Background(), testSubmission(nil))
	if !errors.Is(err, ErrVerificationUnavailable) {
		t.Fatalf("expected ErrVerificationUnavailable, got %v", err)
	}
	if verdict != domain.VerdictPending {
		t.Fatalf("unreachable oracle must leave the verdict pending, got %s", verdict)
	}
	if o.cleanCalls != 2 {
		t.Fatalf("expected 2 attempts, got %d", o.cleanCalls)
	}
}

func TestJudge_PermanentOracleError_NotRetried(t *testing.T) {
	o := &scriptedOracle{clean: []legReply{
		{oracle.OutcomeUnknown, "", errors.New("oracle returned 400: bad request")},
	}}
	svc := &VerifierService{Oracle: o, Images: testStore(), MaxAttempts: 4, RetryBackoff: time.Millisecond}

	_, _, err := svc.Judge(context.Background(), testSubmission(nil))
	if !errors.Is(err, ErrVerificationUnavailable) {
		t.Fatalf("expected ErrVerificationUnavailable, got %v", err)
	}
	if o.cleanCalls != 1 {
		t.Fatalf("permanent errors must not be retried; %d calls", o.cleanCalls)
	}
}

func TestJudge_UnknownReply_IsNotRejection(t *testing.T) {
	o := &scriptedOracle{clean: []legReply{{oracle.OutcomeUnknown, "I am not sure", nil}}}
	svc := &VerifierService{Oracle: o, Images: testStore()}

	verdict, _, err := svc.Judge(context.Background(), testSubmission(nil))
	if !errors.Is(err, ErrVerificationUnavailable) {
		t.Fatalf("inconclusive judgment must surface as unavailable, got %v", err)
	}
	if verdict != domain.VerdictPending {
		t.Fatalf("inconclusive judgment must not decide; got %s", verdict)
	}
}

func TestJudge_TDSLeg_BothMustPass(t *testing.T) {
	tdsRef := "tds.jpg"

	t.Run("clean but unsafe rejects with combined reason", func(t *testing.T) {
		o := &scriptedOracle{
			clean: []legReply{{oracle.OutcomeClean, "CLEAN", nil}},
			tds:   []legReply{{oracle.OutcomeUnsafe, "UNSAFE, 650 ppm", nil}},
		}
		svc := &VerifierService{Oracle: o, Images: testStore()}
		verdict, reason, err := svc.Judge(context.Background(), testSubmission(&tdsRef))
		if err != nil {
			t.Fatalf("Judge: %v", err)
		}
		if verdict != domain.VerdictRejected {
			t.Fatalf("unsafe water must reject, got %s", verdict)
		}
		if !strings.Contains(reason, "TDS reading is unsafe") {
			t.Fatalf("reason must name the failing leg: %q", reason)
		}
	})

	t.Run("clean and safe approves", func(t *testing.T) {
		o := &scriptedOracle{
			clean: []legReply{{oracle.OutcomeClean, "CLEAN", nil}},
			tds:   []legReply{{oracle.OutcomeSafe, "SAFE", nil}},
		}
		svc := &VerifierService{Oracle: o, Images: testStore()}
		verdict, reason, err := svc.Judge(context.Background(), testSubmission(&tdsRef))
		if err != nil {
			t.Fatalf("Judge: %v", err)
		}
		if verdict != domain.VerdictApproved {
			t.Fatalf("expected approved, got %s (%s)", verdict, reason)
		}
	})

	t.Run("inconclusive TDS stays pending", func(t *testing.T) {
		o := &scriptedOracle{
			clean: []legReply{{oracle.OutcomeClean, "CLEAN", nil}},
			tds:   []legReply{{oracle.OutcomeUnknown, "blurry", nil}},
		}
		svc := &VerifierService{Oracle: o, Images: testStore()}
		_, _, err := svc.Judge(context.Background(), testSubmission(&tdsRef))
		if !errors.Is(err, ErrVerificationUnavailable) {
			t.Fatalf("expected ErrVerificationUnavailable, got %v", err)
		}
	})
}

func TestJudge_MissingImage_FailsBeforeOracle(t *testing.T) {
	o := &scriptedOracle{clean: []legReply{{oracle.OutcomeClean, "CLEAN", nil}}}
	svc := &VerifierService{Oracle: o, Images: &mapStore{images: map[string][]byte{}}}

	_, _, err := svc.Judge(context.Background(), testSubmission(nil))
	if !errors.Is(err, ErrInvalidEvidence) {
		t.Fatalf("expected ErrInvalidEvidence, got %v", err)
	}
	if o.cleanCalls != 0 {
		t.Fatalf("no judgment call may be spent on bad evidence; %d calls", o.cleanCalls)
	}
}

func TestPrecheck(t *testing.T) {
	t.Run("dirty cooler", func(t *testing.T) {
		o := &scriptedOracle{clean: []legReply{{oracle.OutcomeNeedsCleaning, "NEEDS CLEANING", nil}}}
		svc := &VerifierService{Oracle: o, Images: testStore()}
		outcome, raw, err := svc.Precheck(context.Background(), "before.jpg")
		if err != nil {
			t.Fatalf("Precheck: %v", err)
		}
		if outcome != oracle.OutcomeNeedsCleaning || raw != "NEEDS CLEANING" {
			t.Fatalf("unexpected outcome %s (%q)", outcome, raw)
		}
	})

	t.Run("inconclusive reply surfaces as unavailable", func(t *testing.T) {
		o := &scriptedOracle{clean: []legReply{{oracle.OutcomeUnknown, "shrug", nil}}}
		svc := &VerifierService{Oracle: o, Images: testStore()}
		outcome, _, err := svc.Precheck(context.Background(), "before.jpg")
		if !errors.Is(err, ErrVerificationUnavailable) {
			t.Fatalf("expected ErrVerificationUnavailable, got %v", err)
		}
		if outcome != oracle.OutcomeUnknown {
			t.Fatalf("expected unknown, got %s", outcome)
		}
	})

	t.Run("missing image", func(t *testing.T) {
		svc := &VerifierService{Oracle: &scriptedOracle{}, Images: testStore()}
		if _, _, err := svc.Precheck(context.Background(), "nope.jpg"); !errors.Is(err, ErrInvalidEvidence) {
			t.Fatalf("expected ErrInvalidEvidence, got %v", err)
		}
	})
}

func TestReduceVerdict(t *testing.T) {
	cases := []struct {
		name        string
		cleanliness oracle.Outcome
		tds         oracle.Outcome
		hasTDS      bool
		want        domain.Verdict
		wantErr     error
	}{
		{"clean, no tds", oracle.OutcomeClean, oracle.OutcomeUnknown, false, domain.VerdictApproved, nil},
		{"clean and safe", oracle.OutcomeClean, oracle.OutcomeSafe, true, domain.VerdictApproved, nil},
		{"dirty", oracle.OutcomeNeedsCleaning, oracle.OutcomeSafe, true, domain.VerdictRejected, nil},
		{"clean but unsafe", oracle.OutcomeClean, oracle.OutcomeUnsafe, true, domain.VerdictRejected, nil},
		{"dirty and unsafe", oracle.OutcomeNeedsCleaning, oracle.OutcomeUnsafe, true, domain.VerdictRejected, nil},
		{"inconclusive cleanliness", oracle.OutcomeUnknown, oracle.OutcomeSafe, true, domain.VerdictPending, ErrVerificationUnavailable},
		{"inconclusive tds", oracle.OutcomeClean, oracle.OutcomeUnknown, true, domain.VerdictPending, ErrVerificationUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			verdict, _, err := reduceVerdict(tc.cleanliness, tc.tds, tc.hasTDS, "", "")
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("reduceVerdict: %v", err)
			}
			if verdict != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, verdict)
			}
		})
	}
}
