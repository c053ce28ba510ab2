package session

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
)

func TestNormalizeCallID(t *testing.T) {
	if got := NormalizeCallID("  "); got != UnknownCallID {
		t.Fatalf("expected sentinel, got %q", got)
	}
	if got := NormalizeCallID(" CA1 "); got != "CA1" {
		t.Fatalf("expected trimmed id, got %q", got)
	}
}

func TestMemoryStore_GetCreatesDefaults(t *testing.T) {
	m := NewMemoryStore()
	s, err := m.Get(context.Background(), "CA1")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if s.State != StateAwaitingUsername || s.Verification != VerificationNone || s.FailedAttempts != 0 {
		t.Fatalf("unexpected defaults: %+v", s)
	}
	if m.Len() != 1 {
		t.Fatalf("expected session to be stored")
	}
}

func TestMemoryStore_UpdateShallowMerges(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	if _, err := m.Update(ctx, "CA1", Patch{Username: Ptr("arvind"), FailedAttempts: Ptr(1)}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	s, err := m.Update(ctx, "CA1", Patch{State: Ptr(StateAwaitingPassword)})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if s.Username != "arvind" || s.FailedAttempts != 1 {
		t.Fatalf("expected untouched fields preserved, got %+v", s)
	}
	if s.State != StateAwaitingPassword {
		t.Fatalf("expected state updated, got %q", s.State)
	}
}

func TestMemoryStore_DeleteThenGetIsFresh(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	_, _ = m.Update(ctx, "CA1", Patch{State: Ptr(StateAnswering)})

	if err := m.Delete(ctx, "CA1"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if _, ok, _ := m.Lookup(ctx, "CA1"); ok {
		t.Fatalf("expected session gone")
	}
	s, _ := m.Get(ctx, "CA1")
	if s.State != StateAwaitingUsername {
		t.Fatalf("expected fresh session, got %+v", s)
	}
	if err := m.Delete(ctx, "missing"); err != nil {
		t.Fatalf("delete of missing session should not fail: %v", err)
	}
}

func TestMemoryStore_RejectsEmptyID(t *testing.T) {
	m := NewMemoryStore()
	if _, err := m.Get(context.Background(), ""); err != ErrInvalidCallID {
		t.Fatalf("expected ErrInvalidCallID, got %v", err)
	}
}

func mustJSON(t *testing.T, s Session) string {
	t.Helper()
	b, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(b)
}

func TestRedisStore_GetCreatesOnMiss(t *testing.T) {
	db, mock := redismock.NewClientMock()
	st := NewRedisStore(db, time.Hour, nil)

	mock.ExpectGet("ivr:session:CA1").RedisNil()
	mock.ExpectSet("ivr:session:CA1", mustJSON(t, New("CA1")), time.Hour).SetVal("OK")

	s, err := st.Get(context.Background(), "CA1")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if s.State != StateAwaitingUsername {
		t.Fatalf("unexpected state %q", s.State)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRedisStore_UpdateMergesExisting(t *testing.T) {
	db, mock := redismock.NewClientMock()
	st := NewRedisStore(db, time.Hour, nil)

	existing := New("CA1")
	existing.Username = "arvind"
	existing.State = StateAwaitingPassword
	merged := existing
	merged.FailedAttempts = 1

	mock.ExpectGet("ivr:session:CA1").SetVal(mustJSON(t, existing))
	mock.ExpectSet("ivr:session:CA1", mustJSON(t, merged), time.Hour).SetVal("OK")

	s, err := st.Update(context.Background(), "CA1", Patch{FailedAttempts: Ptr(1)})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if s != merged {
		t.Fatalf("expected %+v, got %+v", merged, s)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRedisStore_CorruptRecordIsAbsent(t *testing.T) {
	db, mock := redismock.NewClientMock()
	st := NewRedisStore(db, time.Hour, nil)

	mock.ExpectGet("ivr:session:CA1").SetVal("{not json")

	_, ok, err := st.Lookup(context.Background(), "CA1")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if ok {
		t.Fatalf("expected corrupt record to be treated as absent")
	}
}

func TestRedisStore_Delete(t *testing.T) {
	db, mock := redismock.NewClientMock()
	st := NewRedisStore(db, time.Hour, nil)

	mock.ExpectDel("ivr:session:CA1").SetVal(1)
	if err := st.Delete(context.Background(), "CA1"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
