package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/nexus-geo/nexus-gateway/internal/scope"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() {
		//nolint:errcheck
		s.Close()
	})
	return s
}

func TestAddGrant_AndQuery(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	id, err := s.AddGrant(ctx, &scope.Grant{SubjectID: "user-1", MunicipalityID: 3550308})
	if err != nil {
		t.Fatalf("AddGrant(municipality) error: %v", err)
	}
	if id == 0 {
		t.Error("expected non-zero grant id")
	}
	if _, err := s.AddGrant(ctx, &scope.Grant{SubjectID: "user-1", StateCode: "rj"}); err != nil {
		t.Fatalf("AddGrant(uf) error: %v", err)
	}
	if _, err := s.AddGrant(ctx, &scope.Grant{SubjectID: "user-2", StateCode: "BA"}); err != nil {
		t.Fatalf("AddGrant(other subject) error: %v", err)
	}

	grants, err := s.GrantsForSubject(ctx, "user-1")
	if err != nil {
		t.Fatalf("GrantsForSubject() error: %v", err)
	}
	if len(grants) != 2 {
		t.Fatalf("got %d grants, want 2", len(grants))
	}
	if grants[0].MunicipalityID != 3550308 {
		t.Errorf("municipality id = %d", grants[0].MunicipalityID)
	}
	// State codes are stored uppercased.
	if grants[1].StateCode != "RJ" {
		t.Errorf("state code = %q, want RJ", grants[1].StateCode)
	}

	all, err := s.ListGrants(ctx)
	if err != nil {
		t.Fatalf("ListGrants() error: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("got %d grants in total, want 3", len(all))
	}
}

func TestAddGrant_Validation(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	past := time.Now().Add(-time.Hour)

	tests := []struct {
		name  string
		grant scope.Grant
		want  error
	}{
		{"empty subject", scope.Grant{MunicipalityID: 1}, nil},
		{"neither target", scope.Grant{SubjectID: "u"}, ErrInvalidGrant},
		{"both targets", scope.Grant{SubjectID: "u", MunicipalityID: 1, StateCode: "SP"}, ErrInvalidGrant},
		{"past valid_until", scope.Grant{SubjectID: "u", StateCode: "SP", ValidUntil: &past}, nil},
	}
	for _, tt := range tests {
		_, err := s.AddGrant(ctx, &tt.grant)
		if err == nil {
			t.Errorf("%s: expected error", tt.name)
			continue
		}
		if tt.want != nil && !errors.Is(err, tt.want) {
			t.Errorf("%s: err = %v, want %v", tt.name, err, tt.want)
		}
	}
}

func TestGrant_ValidUntilRoundtrip(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	until := time.Now().Add(24 * time.Hour).UTC().Truncate(time.Second)
	if _, err := s.AddGrant(ctx, &scope.Grant{SubjectID: "u", StateCode: "SP", ValidUntil: &until}); err != nil {
		t.Fatalf("AddGrant() error: %v", err)
	}

	grants, err := s.GrantsForSubject(ctx, "u")
	if err != nil {
		t.Fatalf("GrantsForSubject() error: %v", err)
	}
	if len(grants) != 1 || grants[0].ValidUntil == nil {
		t.Fatalf("grants = %+v", grants)
	}
	if !grants[0].ValidUntil.Equal(until) {
		t.Errorf("valid_until = %v, want %v", grants[0].ValidUntil, until)
	}
}

func TestGrantsForSubject_EmptyIsNotAnError(t *testing.T) {
	s := newTestStorage(t)
	grants, err := s.GrantsForSubject(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("GrantsForSubject() error: %v", err)
	}
	if grants == nil || len(grants) != 0 {
		t.Errorf("grants = %v, want empty slice", grants)
	}
}

func TestDeleteGrant(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	id, err := s.AddGrant(ctx, &scope.Grant{SubjectID: "u", MunicipalityID: 1})
	if err != nil {
		t.Fatalf("AddGrant() error: %v", err)
	}
	if err := s.DeleteGrant(ctx, id); err != nil {
		t.Fatalf("DeleteGrant() error: %v", err)
	}
	if err := s.DeleteGrant(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestAdminTokens(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	id, err := s.CreateAdminToken(ctx, "ops", "secret-one")
	if err != nil {
		t.Fatalf("CreateAdminToken() error: %v", err)
	}
	if id == 0 {
		t.Error("expected non-zero token id")
	}

	if _, err := s.CreateAdminToken(ctx, "ops", "secret-two"); !errors.Is(err, ErrDuplicate) {
		t.Errorf("duplicate name err = %v, want ErrDuplicate", err)
	}

	tok, err := s.VerifyAdminToken(ctx, "secret-one")
	if err != nil {
		t.Fatalf("VerifyAdminToken() error: %v", err)
	}
	if tok.Name != "ops" {
		t.Errorf("token name = %q", tok.Name)
	}
	if _, err := s.VerifyAdminToken(ctx, "wrong"); !errors.Is(err, ErrNotFound) {
		t.Errorf("wrong secret err = %v, want ErrNotFound", err)
	}

	list, err := s.ListAdminTokens(ctx)
	if err != nil {
		t.Fatalf("ListAdminTokens() error: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("got %d tokens, want 1", len(list))
	}

	if err := s.DeleteAdminToken(ctx, id); err != nil {
		t.Fatalf("DeleteAdminToken() error: %v", err)
	}
	if err := s.DeleteAdminToken(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestVerifyAdminToken_LookupByTokenHash(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	secrets := map[string]string{
		"alpha": "secret-alpha",
		"beta":  "secret-beta",
		"gamma": "secret-gamma",
	}
	for name, secret := range secrets {
		if _, err := s.CreateAdminToken(ctx, name, secret); err != nil {
			t.Fatalf("CreateAdminToken(%q) error: %v", name, err)
		}
	}

	// Each secret must resolve to its own token via the indexed hash.
	for name, secret := range secrets {
		tok, err := s.VerifyAdminToken(ctx, secret)
		if err != nil {
			t.Fatalf("VerifyAdminToken(%q) error: %v", name, err)
		}
		if tok.Name != name {
			t.Errorf("secret for %q resolved to token %q", name, tok.Name)
		}
	}

	// The stored lookup key is the sha256 hash of the secret.
	var stored string
	err := s.db.QueryRowContext(ctx,
		"SELECT token_hash FROM admin_tokens WHERE name = ?", "alpha").Scan(&stored)
	if err != nil {
		t.Fatalf("query token_hash: %v", err)
	}
	if stored != HashToken("secret-alpha") {
		t.Errorf("token_hash = %q, want sha256 of the secret", stored)
	}

	if _, err := s.VerifyAdminToken(ctx, "secret-unknown"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown secret err = %v, want ErrNotFound", err)
	}
}

func TestHashToken_Deterministic(t *testing.T) {
	if HashToken("tok") != HashToken("tok") {
		t.Error("HashToken must be deterministic")
	}
	if HashToken("tok") == HashToken("other") {
		t.Error("distinct tokens must hash differently")
	}
	if len(HashToken("tok")) != 64 {
		t.Errorf("hash length = %d, want 64 hex chars", len(HashToken("tok")))
	}
}

func TestCacheValues(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	if _, ok, err := s.GetCacheValue(ctx, "k"); err != nil || ok {
		t.Fatalf("GetCacheValue(absent) = ok=%v err=%v", ok, err)
	}
	if err := s.SetCacheValue(ctx, "k", `{"v":1}`); err != nil {
		t.Fatalf("SetCacheValue() error: %v", err)
	}
	v, ok, err := s.GetCacheValue(ctx, "k")
	if err != nil || !ok || v != `{"v":1}` {
		t.Fatalf("GetCacheValue() = %q ok=%v err=%v", v, ok, err)
	}

	// Upsert replaces the value.
	if err := s.SetCacheValue(ctx, "k", `{"v":2}`); err != nil {
		t.Fatalf("SetCacheValue(update) error: %v", err)
	}
	v, _, _ = s.GetCacheValue(ctx, "k")
	if v != `{"v":2}` {
		t.Errorf("value after upsert = %q", v)
	}

	if err := s.DeleteCacheValue(ctx, "k"); err != nil {
		t.Fatalf("DeleteCacheValue() error: %v", err)
	}
	if _, ok, _ := s.GetCacheValue(ctx, "k"); ok {
		t.Error("value survived delete")
	}
	// Deleting an absent key is not an error.
	if err := s.DeleteCacheValue(ctx, "k"); err != nil {
		t.Errorf("DeleteCacheValue(absent) error: %v", err)
	}
}

func TestCacheKV_Adapter(t *testing.T) {
	s := newTestStorage(t)
	kv := CacheKV{S: s}
	ctx := context.Background()

	if err := kv.Set(ctx, "doc", "payload"); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	v, ok, err := kv.Get(ctx, "doc")
	if err != nil || !ok || v != "payload" {
		t.Fatalf("Get() = %q ok=%v err=%v", v, ok, err)
	}
	if err := kv.Delete(ctx, "doc"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
}

func TestHashSecret_Roundtrip(t *testing.T) {
	hash, err := HashSecret("hunter2")
	if err != nil {
		t.Fatalf("HashSecret() error: %v", err)
	}
	if hash == "hunter2" {
		t.Fatal("hash must not equal the plaintext")
	}
	if err := VerifySecret("hunter2", hash); err != nil {
		t.Errorf("VerifySecret(correct) error: %v", err)
	}
	if err := VerifySecret("wrong", hash); err == nil {
		t.Error("VerifySecret(wrong) should fail")
	}
}

func TestPing(t *testing.T) {
	s := newTestStorage(t)
	if err := s.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error: %v", err)
	}
}
