// Package storetest holds behavior checks shared by every credential.Store
// implementation.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/sessiongate/credential"
	"github.com/MrEthical07/sessiongate/settings"
	"github.com/google/uuid"
)

// Factory returns a fresh, empty store. The store is closed by the caller.
type Factory func(t *testing.T) credential.Store

// Run exercises the full credential.Store contract against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()
	t.Run("CreateAndFind", func(t *testing.T) { testCreateAndFind(t, newStore(t)) })
	t.Run("DuplicateEmail", func(t *testing.T) { testDuplicateEmail(t, newStore(t)) })
	t.Run("UpdatePasswordHash", func(t *testing.T) { testUpdatePasswordHash(t, newStore(t)) })
	t.Run("SettingsCapacity", func(t *testing.T) { testSettingsCapacity(t, newStore(t)) })
	t.Run("SettingsRoundTrip", func(t *testing.T) { testSettingsRoundTrip(t, newStore(t)) })
	t.Run("SettingsDeleteIdempotent", func(t *testing.T) { testSettingsDelete(t, newStore(t)) })
	t.Run("SettingsConcurrentInsert", func(t *testing.T) { testSettingsConcurrentInsert(t, newStore(t)) })
	t.Run("UnknownUser", func(t *testing.T) { testUnknownUser(t, newStore(t)) })
}

// NewUser returns a user with a unique id and email.
func NewUser(email string) *credential.User {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &credential.User{
		ID:             uuid.NewString(),
		FullName:       "Test User",
		Email:          email,
		PasswordHash:   "$argon2id$placeholder",
		MaxConnections: credential.DefaultMaxConnections,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func mustCreate(t *testing.T, s credential.Store, email string) *credential.User {
	t.Helper()
	u := NewUser(email)
	if err := s.Create(context.Background(), u); err != nil {
		t.Fatalf("create %s: %v", email, err)
	}
	return u
}

func testCreateAndFind(t *testing.T, s credential.Store) {
	defer s.Close()
	ctx := context.Background()
	u := NewUser("a@x.com")
	u.AvatarURL = "https://cdn.example.com/a.png"
	u.MaxConnections = 3
	if err := s.Create(ctx, u); err != nil {
		t.Fatalf("create: %v", err)
	}

	byEmail, err := s.FindByEmail(ctx, "a@x.com")
	if err != nil {
		t.Fatalf("find by email: %v", err)
	}
	if byEmail.ID != u.ID || byEmail.FullName != u.FullName || byEmail.AvatarURL != u.AvatarURL {
		t.Fatalf("unexpected user: %+v", byEmail)
	}
	if byEmail.MaxConnections != 3 {
		t.Fatalf("expected max connections 3, got %d", byEmail.MaxConnections)
	}
	if !byEmail.CreatedAt.Equal(u.CreatedAt) {
		t.Fatalf("expected created_at %v, got %v", u.CreatedAt, byEmail.CreatedAt)
	}

	byID, err := s.FindByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("find by id: %v", err)
	}
	if byID.Email != "a@x.com" {
		t.Fatalf("unexpected email %q", byID.Email)
	}
	if len(byID.Settings) != 0 {
		t.Fatalf("expected empty settings, got %d", len(byID.Settings))
	}
}

func testDuplicateEmail(t *testing.T, s credential.Store) {
	defer s.Close()
	mustCreate(t, s, "dup@x.com")
	if err := s.Create(context.Background(), NewUser("dup@x.com")); !errors.Is(err, credential.ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
}

func testUpdatePasswordHash(t *testing.T, s credential.Store) {
	defer s.Close()
	ctx := context.Background()
	u := mustCreate(t, s, "pw@x.com")
	if err := s.UpdatePasswordHash(ctx, u.ID, "$argon2id$next"); err != nil {
		t.Fatalf("update hash: %v", err)
	}
	got, err := s.FindByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.PasswordHash != "$argon2id$next" {
		t.Fatalf("expected updated hash, got %q", got.PasswordHash)
	}
}

func testSettingsCapacity(t *testing.T, s credential.Store) {
	defer s.Close()
	ctx := context.Background()
	u := mustCreate(t, s, "cap@x.com")

	for i := 0; i < settings.MaxEntries; i++ {
		idx, _ := settings.IndexFromInt(int64(i))
		m, err := s.PutSetting(ctx, u.ID, idx, settings.MustParse(fmt.Sprintf(`{"n":%d}`, i)))
		if err != nil {
			t.Fatalf("put %d: %v", i, err)
		}
		if len(m) != i+1 {
			t.Fatalf("expected %d entries, got %d", i+1, len(m))
		}
	}

	if _, err := s.PutSetting(ctx, u.ID, "sixth", settings.MustParse(`{}`)); !errors.Is(err, settings.ErrFull) {
		t.Fatalf("expected settings.ErrFull, got %v", err)
	}

	m, err := s.PutSetting(ctx, u.ID, "4", settings.MustParse(`["overwritten"]`))
	if err != nil {
		t.Fatalf("overwrite at capacity: %v", err)
	}
	if len(m) != settings.MaxEntries {
		t.Fatalf("expected %d entries after overwrite, got %d", settings.MaxEntries, len(m))
	}
	if v, _ := m.Get("4"); v.Kind() != settings.KindList {
		t.Fatalf("expected overwritten value to be a list, got %s", v.Kind())
	}
}

func testSettingsRoundTrip(t *testing.T, s credential.Store) {
	defer s.Close()
	ctx := context.Background()
	u := mustCreate(t, s, "rt@x.com")
	want := settings.MustParse(`{"theme":"dark","sizes":[1,2.5,3],"nested":{"z":null,"a":"b"}}`)

	if _, err := s.PutSetting(ctx, u.ID, "x", want); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := s.FindByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	v, ok := got.Settings.Get("x")
	if !ok {
		t.Fatal("expected setting x to be stored")
	}
	if !v.Equal(want) {
		t.Fatalf("expected %s, got %s", want.JSON(), v.JSON())
	}
}

func testSettingsDelete(t *testing.T, s credential.Store) {
	defer s.Close()
	ctx := context.Background()
	u := mustCreate(t, s, "del@x.com")
	if _, err := s.PutSetting(ctx, u.ID, "keep", settings.MustParse(`{}`)); err != nil {
		t.Fatalf("put: %v", err)
	}

	m, err := s.DeleteSetting(ctx, u.ID, "missing")
	if err != nil {
		t.Fatalf("delete missing: %v", err)
	}
	if len(m) != 1 {
		t.Fatalf("expected map unchanged, got %d entries", len(m))
	}

	m, err = s.DeleteSetting(ctx, u.ID, "keep")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(m) != 0 {
		t.Fatalf("expected empty map, got %d entries", len(m))
	}
}

func testSettingsConcurrentInsert(t *testing.T, s credential.Store) {
	defer s.Close()
	ctx := context.Background()
	u := mustCreate(t, s, "race@x.com")

	const writers = 12
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			idx, _ := settings.IndexFromInt(int64(i))
			_, err := s.PutSetting(ctx, u.ID, idx, settings.MustParse(`{}`))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	ok := 0
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, settings.ErrFull):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != settings.MaxEntries {
		t.Fatalf("expected exactly %d successful inserts, got %d", settings.MaxEntries, ok)
	}

	got, err := s.FindByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(got.Settings) != settings.MaxEntries {
		t.Fatalf("expected %d stored entries, got %d", settings.MaxEntries, len(got.Settings))
	}
}

func testUnknownUser(t *testing.T, s credential.Store) {
	defer s.Close()
	ctx := context.Background()
	if _, err := s.FindByEmail(ctx, "nobody@x.com"); !errors.Is(err, credential.ErrNotFound) {
		t.Fatalf("find by email: expected ErrNotFound, got %v", err)
	}
	if _, err := s.FindByID(ctx, "missing"); !errors.Is(err, credential.ErrNotFound) {
		t.Fatalf("find by id: expected ErrNotFound, got %v", err)
	}
	if _, err := s.PutSetting(ctx, "missing", "a", settings.MustParse(`{}`)); !errors.Is(err, credential.ErrNotFound) {
		t.Fatalf("put setting: expected ErrNotFound, got %v", err)
	}
	if _, err := s.DeleteSetting(ctx, "missing", "a"); !errors.Is(err, credential.ErrNotFound) {
		t.Fatalf("delete setting: expected ErrNotFound, got %v", err)
	}
	if err := s.UpdatePasswordHash(ctx, "missing", "h"); !errors.Is(err, credential.ErrNotFound) {
		t.Fatalf("update hash: expected ErrNotFound, got %v", err)
	}
}
