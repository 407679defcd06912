package attend

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/diagnosis/attendance-beacon/internal/domain"
	"github.com/diagnosis/attendance-beacon/internal/token"
)

type mockStore struct {
	mu     sync.Mutex
	calls  int
	tokens []string
	result *domain.AttendanceResult
	err    error
}

func (m *mockStore) SubmitAttendance(_ context.Context, tok string, memberID, memberOrgID int64) (*domain.AttendanceResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.tokens = append(m.tokens, tok)
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

func successResult() *domain.AttendanceResult {
	recordedAt := time.Now()
	return &domain.AttendanceResult{
		Success:      true,
		AttendanceID: "att-1",
		EventID:      "event-1",
		EventTitle:   "Weekly Meeting",
		OrgSlug:      "nhs",
		RecordedAt:   &recordedAt,
	}
}

func newTestSubmitter(store Store) *Submitter {
	policy := token.DefaultPolicy()
	codec := token.NewCodec(policy, token.NewMetrics(policy))
	return NewSubmitter(codec, NewDuplicateCache(30*time.Second), store, 5*time.Second)
}

func TestSubmit_success(t *testing.T) {
	store := &mockStore{result: successResult()}
	submitter := newTestSubmitter(store)

	result := submitter.Submit(context.Background(), "ABCDEFGH2345", 7, 1)
	if !result.Success {
		t.Fatalf("result = %+v, want success", result)
	}
	if result.AttendanceID != "att-1" || result.EventTitle != "Weekly Meeting" {
		t.Errorf("server fields not passed through: %+v", result)
	}
	if store.calls != 1 {
		t.Errorf("store calls = %d, want 1", store.calls)
	}
}

func TestSubmit_sanitizesBeforeStorage(t *testing.T) {
	store := &mockStore{result: successResult()}
	submitter := newTestSubmitter(store)

	submitter.Submit(context.Background(), "  abcdefgh2345\n", 7, 1)
	if len(store.tokens) != 1 || store.tokens[0] != "ABCDEFGH2345" {
		t.Errorf("store received %v, want the sanitized token", store.tokens)
	}
}

func TestSubmit_invalidTokenNeverReachesStorage(t *testing.T) {
	store := &mockStore{result: successResult()}
	submitter := newTestSubmitter(store)

	inputs := []string{
		"",
		"short",
		"ABCDEFGH234@",
		"AAAAAAAAAAAA",
		"'; DROP TABLE events; --",
	}
	for _, input := range inputs {
		result := submitter.Submit(context.Background(), input, 7, 1)
		if result.Success || result.Code != domain.ErrInvalidToken {
			t.Errorf("Submit(%q) = %+v, want invalid_token", input, result)
		}
	}
	if store.calls != 0 {
		t.Errorf("store calls = %d, malformed input must not reach storage", store.calls)
	}
}

func TestSubmit_rapidDuplicateSuppressedLocally(t *testing.T) {
	store := &mockStore{result: successResult()}
	submitter := newTestSubmitter(store)

	first := submitter.Submit(context.Background(), "ABCDEFGH2345", 7, 1)
	if !first.Success {
		t.Fatalf("first submission = %+v, want success", first)
	}

	second := submitter.Submit(context.Background(), "ABCDEFGH2345", 7, 1)
	if second.Success || second.Code != domain.ErrDuplicateSubmission {
		t.Errorf("second submission = %+v, want duplicate_submission", second)
	}
	if store.calls != 1 {
		t.Errorf("store calls = %d, the duplicate must not produce a second remote call", store.calls)
	}
}

// Many devices scanning the same beacon is the normal case, not a
// duplicate: every member's claim for the same token must reach storage.
func TestSubmit_sameTokenDifferentMembersBothRecorded(t *testing.T) {
	store := &mockStore{result: successResult()}
	submitter := newTestSubmitter(store)

	first := submitter.Submit(context.Background(), "ABCDEFGH2345", 7, 1)
	if !first.Success {
		t.Fatalf("member 7's submission = %+v, want success", first)
	}

	second := submitter.Submit(context.Background(), "ABCDEFGH2345", 8, 1)
	if !second.Success {
		t.Fatalf("member 8's submission = %+v, want success", second)
	}
	if store.calls != 2 {
		t.Errorf("store calls = %d, want 2: each member's claim must reach storage", store.calls)
	}

	// Each member's own repeat is still suppressed locally.
	repeat := submitter.Submit(context.Background(), "ABCDEFGH2345", 8, 1)
	if repeat.Success || repeat.Code != domain.ErrDuplicateSubmission {
		t.Errorf("member 8's repeat = %+v, want duplicate_submission", repeat)
	}
	if store.calls != 2 {
		t.Errorf("store calls = %d, the repeat must not produce a third remote call", store.calls)
	}
}

func TestSubmit_serverResultPassedThroughVerbatim(t *testing.T) {
	codes := []domain.ErrorCode{
		domain.ErrSessionExpired,
		domain.ErrSessionNotFound,
		domain.ErrOrgMismatch,
		domain.ErrOrgInactive,
		domain.ErrUnauthorized,
		domain.ErrDuplicateSubmission,
	}
	for _, code := range codes {
		store := &mockStore{result: domain.AttendanceFailure(code, "server says no")}
		submitter := newTestSubmitter(store)

		result := submitter.Submit(context.Background(), "ABCDEFGH2345", 7, 1)
		if result.Code != code || result.Message != "server says no" {
			t.Errorf("result = %+v, want code %s surfaced verbatim", result, code)
		}
	}
}

func TestSubmit_transportFailureIsRetryable(t *testing.T) {
	store := &mockStore{err: errors.New("connection reset")}
	submitter := newTestSubmitter(store)

	result := submitter.Submit(context.Background(), "ABCDEFGH2345", 7, 1)
	if result.Success || result.Code != domain.ErrNetwork {
		t.Fatalf("result = %+v, want network_error", result)
	}

	// Nothing reached storage, so a retry must not be blocked by the
	// duplicate window.
	store.err = nil
	store.result = successResult()
	retry := submitter.Submit(context.Background(), "ABCDEFGH2345", 7, 1)
	if !retry.Success {
		t.Errorf("retry after transport failure = %+v, want success", retry)
	}
	if store.calls != 2 {
		t.Errorf("store calls = %d, want 2", store.calls)
	}
}

func TestSubmit_concurrentSameTokenSingleRemoteCall(t *testing.T) {
	store := &mockStore{result: successResult()}
	submitter := newTestSubmitter(store)

	const goroutines = 16
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			submitter.Submit(context.Background(), "ABCDEFGH2345", 7, 1)
		}()
	}
	close(start)
	wg.Wait()

	if store.calls != 1 {
		t.Errorf("store calls = %d, concurrent duplicates must collapse to 1", store.calls)
	}
}
