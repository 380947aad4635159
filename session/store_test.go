package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const testTTL = 30 * 24 * time.Hour

func newSessionStoreTest(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewStore(rdb, "sg"), mr
}

func hashOf(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func newSession(id, userID, token string, createdMs int64) *Session {
	return &Session{
		SessionID: id,
		UserID:    userID,
		TokenHash: hashOf(token),
		CreatedAt: createdMs,
		ExpiresAt: createdMs + testTTL.Milliseconds(),
	}
}

func mustCreate(t *testing.T, s *Store, sess *Session, max int) []string {
	t.Helper()
	evicted, err := s.Create(context.Background(), sess, testTTL, max)
	if err != nil {
		t.Fatalf("create %s: %v", sess.SessionID, err)
	}
	return evicted
}

func TestCreateAndGetByToken(t *testing.T) {
	store, _ := newSessionStoreTest(t)
	ctx := context.Background()
	now := time.Now().UnixMilli()

	mustCreate(t, store, newSession("s1", "u1", "tok-1", now), 20)

	got, err := store.GetByToken(ctx, hashOf("tok-1"))
	if err != nil {
		t.Fatalf("get by token: %v", err)
	}
	if got.SessionID != "s1" || got.UserID != "u1" || got.CreatedAt != now {
		t.Fatalf("unexpected session: %+v", got)
	}

	if _, err := store.GetByToken(ctx, hashOf("tok-unknown")); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestCreateRejectsDuplicateToken(t *testing.T) {
	store, _ := newSessionStoreTest(t)
	now := time.Now().UnixMilli()
	mustCreate(t, store, newSession("s1", "u1", "same", now), 20)

	_, err := store.Create(context.Background(), newSession("s2", "u2", "same", now), testTTL, 20)
	if !errors.Is(err, ErrTokenConflict) {
		t.Fatalf("expected ErrTokenConflict, got %v", err)
	}
	n, _ := store.CountForUser(context.Background(), "u2")
	if n != 0 {
		t.Fatalf("expected conflicting create to leave no session, got %d", n)
	}
}

func TestCreateEvictsOldestAtCapacity(t *testing.T) {
	store, _ := newSessionStoreTest(t)
	ctx := context.Background()
	base := time.Now().UnixMilli()

	// Insert out of creation order; eviction must follow creation time.
	mustCreate(t, store, newSession("s-b", "u1", "tok-b", base+20), 3)
	mustCreate(t, store, newSession("s-a", "u1", "tok-a", base+10), 3)
	mustCreate(t, store, newSession("s-c", "u1", "tok-c", base+30), 3)

	evicted := mustCreate(t, store, newSession("s-d", "u1", "tok-d", base+40), 3)
	if len(evicted) != 1 || evicted[0] != "s-a" {
		t.Fatalf("expected s-a evicted, got %v", evicted)
	}

	if _, err := store.GetByToken(ctx, hashOf("tok-a")); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected evicted token to be gone, got %v", err)
	}
	for _, tok := range []string{"tok-b", "tok-c", "tok-d"} {
		if _, err := store.GetByToken(ctx, hashOf(tok)); err != nil {
			t.Fatalf("expected %s to remain: %v", tok, err)
		}
	}

	n, err := store.CountForUser(ctx, "u1")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 sessions, got %d", n)
	}
}

func TestCreateTieBreaksOnLowestSessionID(t *testing.T) {
	store, _ := newSessionStoreTest(t)
	at := time.Now().UnixMilli()

	mustCreate(t, store, newSession("s-3", "u1", "t3", at), 3)
	mustCreate(t, store, newSession("s-1", "u1", "t1", at), 3)
	mustCreate(t, store, newSession("s-2", "u1", "t2", at), 3)

	evicted := mustCreate(t, store, newSession("s-4", "u1", "t4", at), 3)
	if len(evicted) != 1 || evicted[0] != "s-1" {
		t.Fatalf("expected lowest id s-1 evicted on tie, got %v", evicted)
	}
}

func TestCreateShrinksToLoweredCap(t *testing.T) {
	store, _ := newSessionStoreTest(t)
	base := time.Now().UnixMilli()
	for i := 0; i < 4; i++ {
		mustCreate(t, store, newSession(fmt.Sprintf("s%d", i), "u1", fmt.Sprintf("t%d", i), base+int64(i)), 10)
	}

	evicted := mustCreate(t, store, newSession("s9", "u1", "t9", base+9), 2)
	if len(evicted) != 3 || evicted[0] != "s0" || evicted[1] != "s1" || evicted[2] != "s2" {
		t.Fatalf("expected s0,s1,s2 evicted, got %v", evicted)
	}
	n, _ := store.CountForUser(context.Background(), "u1")
	if n != 2 {
		t.Fatalf("expected 2 sessions, got %d", n)
	}
}

func TestCreateUnlimitedWhenMaxIsZero(t *testing.T) {
	store, _ := newSessionStoreTest(t)
	base := time.Now().UnixMilli()
	for i := 0; i < 5; i++ {
		if ev := mustCreate(t, store, newSession(fmt.Sprintf("s%d", i), "u1", fmt.Sprintf("t%d", i), base), 0); len(ev) != 0 {
			t.Fatalf("expected no eviction, got %v", ev)
		}
	}
	n, _ := store.CountForUser(context.Background(), "u1")
	if n != 5 {
		t.Fatalf("expected 5 sessions, got %d", n)
	}
}

func TestConcurrentCreateNeverExceedsCap(t *testing.T) {
	store, _ := newSessionStoreTest(t)
	const (
		max     = 3
		workers = 25
	)
	base := time.Now().UnixMilli()

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sess := newSession(fmt.Sprintf("s%02d", i), "u1", fmt.Sprintf("tok-%d", i), base+int64(i))
			if _, err := store.Create(context.Background(), sess, testTTL, max); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("create: %v", err)
	}

	n, err := store.CountForUser(context.Background(), "u1")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != max {
		t.Fatalf("expected exactly %d sessions, got %d", max, n)
	}
}

func TestExpiredSessionsDoNotCountOrEvict(t *testing.T) {
	store, mr := newSessionStoreTest(t)
	ctx := context.Background()
	base := time.Now().UnixMilli()

	if _, err := store.Create(ctx, newSession("old", "u1", "t-old", base), time.Minute, 2); err != nil {
		t.Fatalf("create old: %v", err)
	}
	mustCreate(t, store, newSession("new", "u1", "t-new", base+1), 2)

	mr.FastForward(2 * time.Minute)

	n, err := store.CountForUser(ctx, "u1")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected expired session pruned, got %d", n)
	}

	evicted := mustCreate(t, store, newSession("next", "u1", "t-next", base+2), 2)
	if len(evicted) != 0 {
		t.Fatalf("expected room after expiry, got evicted %v", evicted)
	}
	if _, err := store.GetByToken(ctx, hashOf("t-old")); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected expired token rejected, got %v", err)
	}
}

func TestDeleteByToken(t *testing.T) {
	store, mr := newSessionStoreTest(t)
	ctx := context.Background()
	mustCreate(t, store, newSession("s1", "u1", "tok", time.Now().UnixMilli()), 20)

	sess, err := store.DeleteByToken(ctx, hashOf("tok"))
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if sess.SessionID != "s1" || sess.UserID != "u1" {
		t.Fatalf("unexpected deleted session: %+v", sess)
	}
	if mr.Exists("sg:s:s1") || mr.Exists("sg:t:"+hashOf("tok")) {
		t.Fatal("expected session and token keys removed")
	}
	if n, _ := store.CountForUser(ctx, "u1"); n != 0 {
		t.Fatalf("expected index cleared, got %d", n)
	}

	if _, err := store.DeleteByToken(ctx, hashOf("tok")); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound on second delete, got %v", err)
	}
}

func TestListAndDeleteAllForUser(t *testing.T) {
	store, _ := newSessionStoreTest(t)
	ctx := context.Background()
	base := time.Now().UnixMilli()
	mustCreate(t, store, newSession("s2", "u1", "t2", base+2), 20)
	mustCreate(t, store, newSession("s1", "u1", "t1", base+1), 20)
	mustCreate(t, store, newSession("x1", "u2", "x1", base), 20)

	list, err := store.ListForUser(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].SessionID != "s1" || list[1].SessionID != "s2" {
		t.Fatalf("expected [s1 s2], got %+v", list)
	}

	removed, err := store.DeleteAllForUser(ctx, "u1")
	if err != nil {
		t.Fatalf("delete all: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 removed, got %d", removed)
	}
	if _, err := store.GetByToken(ctx, hashOf("t1")); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected t1 revoked, got %v", err)
	}
	if _, err := store.GetByToken(ctx, hashOf("x1")); err != nil {
		t.Fatalf("expected other user untouched: %v", err)
	}
}

func TestRedisFailureIsWrapped(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	store := NewStore(rdb, "sg")
	mr.Close()

	_, err = store.Create(context.Background(), newSession("s1", "u1", "t", time.Now().UnixMilli()), testTTL, 1)
	if !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
	if _, err := store.GetByToken(context.Background(), hashOf("t")); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
	if _, err := store.Ping(context.Background()); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable from ping, got %v", err)
	}
}
