package tenant

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/edgard/jaiminho/internal/domain"
)

type fakeStore struct {
	mu        sync.Mutex
	instances map[string]domain.TenantInstance
	owners    map[string]domain.PhoneOwner
	lookupErr  error
	versionErr error
	lookups    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		instances: map[string]domain.TenantInstance{
			"inst-real": {
				InstanceID:     "inst-real",
				TenantID:       "real-tenant",
				UserID:         "user-1",
				PhoneNumber:    "+55 (11) 99999-0000",
				Status:         domain.TenantActive,
				CredentialHash: HashCredential("s3cret"),
				Version:        1,
			},
			"inst-suspended": {
				InstanceID: "inst-suspended", TenantID: "t2", UserID: "u2",
				PhoneNumber: "5511988880000", Status: domain.TenantSuspended, Version: 1,
			},
			"inst-disabled": {
				InstanceID: "inst-disabled", TenantID: "t3", UserID: "u3",
				PhoneNumber: "5511977770000", Status: domain.TenantDisabled, Version: 1,
			},
		},
		owners: map[string]domain.PhoneOwner{
			"5511999990000": {TenantID: "real-tenant", UserID: "user-1"},
		},
	}
}

func (f *fakeStore) GetByInstanceID(_ context.Context, id string) (*domain.TenantInstance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	inst, ok := f.instances[id]
	if !ok {
		return nil, nil
	}
	return &inst, nil
}

func (f *fakeStore) GetOwnerByPhone(_ context.Context, phone string) (*domain.PhoneOwner, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	owner, ok := f.owners[phone]
	if !ok {
		return nil, nil
	}
	return &owner, nil
}

func (f *fakeStore) InstanceVersion(_ context.Context, id string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.versionErr != nil {
		return 0, f.versionErr
	}
	return f.instances[id].Version, nil
}

// update mutates a stored instance and bumps its version the way the database does.
func (f *fakeStore) update(id string, mutate func(*domain.TenantInstance)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inst := f.instances[id]
	mutate(&inst)
	inst.Version++
	f.instances[id] = inst
}

func (f *fakeStore) lookupCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lookups
}

func TestResolver(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		instanceID string
		credential string
		wantReason map[string]string
		wantTenant string
	}{
		{"active without credential", "inst-real", "", nil, "real-tenant"},
		{"active with credential", "inst-real", "s3cret", nil, "real-tenant"},
		{"wrong credential", "inst-real", "guess", map[string]string{ReasonInstance: "credential_mismatch"}, ""},
		{"unknown instance", "inst-missing", "", map[string]string{ReasonInstance: "invalid"}, ""},
		{"blank instance", "   ", "", map[string]string{ReasonInstance: "invalid"}, ""},
		{"suspended resolves", "inst-suspended", "", nil, "t2"},
		{"disabled rejected", "inst-disabled", "", map[string]string{ReasonStatus: "disabled"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := NewResolver(newFakeStore(), nil, 0)
			tc, rej := r.Resolve(context.Background(), tt.instanceID, tt.credential)

			if tt.wantReason != nil {
				if tc != nil {
					t.Fatalf("expected rejection, got context %+v", tc)
				}
				for k, v := range tt.wantReason {
					if rej[k] != v {
						t.Errorf("rejection[%q] = %q, want %q (all: %v)", k, rej[k], v, rej)
					}
				}
				return
			}
			if rej.Rejected() {
				t.Fatalf("unexpected rejection %v", rej)
			}
			if tc.TenantID != tt.wantTenant {
				t.Errorf("TenantID = %q, want %q", tc.TenantID, tt.wantTenant)
			}
		})
	}
}

func TestResolverStoreFailure(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.lookupErr = errors.New("database is locked")
	tc, rej := NewResolver(store, nil, 0).Resolve(context.Background(), "inst-real", "")
	if tc != nil || rej[ReasonInstance] != "unavailable" {
		t.Errorf("Resolve() = %v, %v; want unavailable rejection", tc, rej)
	}
}

func TestResolverCache(t *testing.T) {
	t.Parallel()

	t.Run("active entries are served from cache", func(t *testing.T) {
		t.Parallel()
		store := newFakeStore()
		r := NewResolver(store, nil, 0)
		ctx := context.Background()

		r.Resolve(ctx, "inst-real", "")
		r.Resolve(ctx, "inst-real", "")
		if got := store.lookupCount(); got != 1 {
			t.Errorf("store lookups = %d, want 1", got)
		}

		_, rej := r.Resolve(ctx, "inst-real", "wrong")
		if rej[ReasonInstance] != "credential_mismatch" {
			t.Errorf("cache hit must still verify credentials, got %v", rej)
		}
	})

	t.Run("status change and key rotation end the entry", func(t *testing.T) {
		t.Parallel()
		store := newFakeStore()
		r := NewResolver(store, nil, 0)
		ctx := context.Background()

		if _, rej := r.Resolve(ctx, "inst-real", "s3cret"); rej.Rejected() {
			t.Fatalf("initial resolve rejected: %v", rej)
		}
		store.update("inst-real", func(inst *domain.TenantInstance) {
			inst.Status = domain.TenantDisabled
			inst.CredentialHash = HashCredential("rotated")
		})

		if tc, rej := r.Resolve(ctx, "inst-real", "s3cret"); tc != nil || rej[ReasonInstance] != "credential_mismatch" {
			t.Errorf("old key after rotation = %v, %v; want credential_mismatch", tc, rej)
		}
		if tc, rej := r.Resolve(ctx, "inst-real", "rotated"); tc != nil || rej[ReasonStatus] != "disabled" {
			t.Errorf("new key on disabled instance = %v, %v; want status rejection", tc, rej)
		}
		if r.CacheSize() != 0 {
			t.Errorf("CacheSize() = %d, stale entry kept", r.CacheSize())
		}

		store.update("inst-real", func(inst *domain.TenantInstance) {
			inst.Status = domain.TenantActive
		})
		if tc, rej := r.Resolve(ctx, "inst-real", "rotated"); rej.Rejected() || tc.Status != domain.TenantActive {
			t.Errorf("new key after reactivation = %v, %v", tc, rej)
		}
		if _, rej := r.Resolve(ctx, "inst-real", "s3cret"); rej[ReasonInstance] != "credential_mismatch" {
			t.Errorf("old key after reactivation = %v, want credential_mismatch", rej)
		}
	})

	t.Run("version check failure falls back to the store", func(t *testing.T) {
		t.Parallel()
		store := newFakeStore()
		r := NewResolver(store, nil, 0)
		ctx := context.Background()

		r.Resolve(ctx, "inst-real", "")
		store.mu.Lock()
		store.versionErr = errors.New("database is locked")
		store.mu.Unlock()

		if _, rej := r.Resolve(ctx, "inst-real", "s3cret"); rej.Rejected() {
			t.Errorf("Resolve() rejected: %v", rej)
		}
		if got := store.lookupCount(); got != 2 {
			t.Errorf("store lookups = %d, want 2", got)
		}
	})

	t.Run("suspended entries are not cached", func(t *testing.T) {
		t.Parallel()
		store := newFakeStore()
		r := NewResolver(store, nil, 0)
		r.Resolve(context.Background(), "inst-suspended", "")
		r.Resolve(context.Background(), "inst-suspended", "")
		if got := store.lookupCount(); got != 2 {
			t.Errorf("store lookups = %d, want 2", got)
		}
	})

	t.Run("flushes when full", func(t *testing.T) {
		t.Parallel()
		store := newFakeStore()
		for _, id := range []string{"a", "b", "c"} {
			store.instances[id] = domain.TenantInstance{
				InstanceID: id, TenantID: "t-" + id, UserID: "u-" + id,
				PhoneNumber: "5511900000000", Status: domain.TenantActive, Version: 1,
			}
		}
		r := NewResolver(store, nil, 2)
		for _, id := range []string{"a", "b", "c"} {
			r.Resolve(context.Background(), id, "")
		}
		if got := r.CacheSize(); got != 1 {
			t.Errorf("CacheSize() = %d, want 1 after flush", got)
		}
	})

	t.Run("invalidate and reset", func(t *testing.T) {
		t.Parallel()
		store := newFakeStore()
		r := NewResolver(store, nil, 0)
		r.Resolve(context.Background(), "inst-real", "")
		r.Invalidate("inst-real")
		if r.CacheSize() != 0 {
			t.Error("Invalidate() left entry in cache")
		}
		r.Resolve(context.Background(), "inst-real", "")
		if n := r.Reset(); n != 1 {
			t.Errorf("Reset() = %d, want 1", n)
		}
	})
}

func TestGate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		req     GateRequest
		wantKey string
		wantSub string
	}{
		{
			name: "clean request",
			req:  GateRequest{InstanceID: "inst-real", Credential: "s3cret"},
		},
		{
			name: "matching tenant id in payload",
			req:  GateRequest{InstanceID: "inst-real", Payload: map[string]any{"tenant_id": "real-tenant", "text": "hi"}},
		},
		{
			name:    "cross tenant payload",
			req:     GateRequest{InstanceID: "inst-real", Payload: map[string]any{"tenant_id": "attacker-tenant"}},
			wantKey: ReasonPayload,
			wantSub: "tenant_id",
		},
		{
			name:    "user id forbidden even with matching tenant",
			req:     GateRequest{InstanceID: "inst-real", Payload: map[string]any{"tenant_id": "real-tenant", "user_id": "user-1"}},
			wantKey: ReasonPayload,
			wantSub: "forbidden",
		},
		{
			name: "nested user id",
			req: GateRequest{InstanceID: "inst-real", Payload: map[string]any{
				"data": []any{map[string]any{"key": map[string]any{"user_id": "x"}}},
			}},
			wantKey: ReasonPayload,
			wantSub: "forbidden",
		},
		{
			name: "formatted phone matches",
			req:  GateRequest{InstanceID: "inst-real", SenderPhone: "5511999990000"},
		},
		{
			name:    "phone mismatch",
			req:     GateRequest{InstanceID: "inst-real", SenderPhone: "5511911112222"},
			wantKey: ReasonPhoneOwnership,
			wantSub: "mismatch",
		},
		{
			name:    "unparseable phone",
			req:     GateRequest{InstanceID: "inst-real", SenderPhone: "unknown"},
			wantKey: ReasonPhoneOwnership,
			wantSub: "unverifiable",
		},
		{
			name:    "unknown instance wins over payload",
			req:     GateRequest{InstanceID: "nope", Payload: map[string]any{"user_id": "x"}},
			wantKey: ReasonInstance,
			wantSub: "invalid",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			store := newFakeStore()
			gate := NewGate(NewResolver(store, nil, 0), store, nil)
			tc, rej := gate.Resolve(context.Background(), tt.req)

			if tt.wantKey == "" {
				if rej.Rejected() || tc == nil {
					t.Fatalf("unexpected rejection %v", rej)
				}
				return
			}
			if tc != nil {
				t.Fatalf("expected rejection, got %+v", tc)
			}
			if len(rej) != 1 || !strings.Contains(rej[tt.wantKey], tt.wantSub) {
				t.Errorf("rejection = %v, want %s containing %q", rej, tt.wantKey, tt.wantSub)
			}
		})
	}
}

func TestGatePhoneOwnedByOtherUser(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.owners["5511999990000"] = domain.PhoneOwner{TenantID: "real-tenant", UserID: "intruder"}
	gate := NewGate(NewResolver(store, nil, 0), store, nil)

	_, rej := gate.Resolve(context.Background(), GateRequest{InstanceID: "inst-real", SenderPhone: "+55 11 99999-0000"})
	if rej[ReasonPhoneOwnership] != "owned_by_other_user" {
		t.Errorf("rejection = %v, want owned_by_other_user", rej)
	}
	if got := severityOf(rej); got != SeverityCritical {
		t.Errorf("severity = %q, want critical", got)
	}
}

func TestHelpers(t *testing.T) {
	t.Parallel()

	if got := NormalizePhone("+55 (11) 99999-0000"); got != "5511999990000" {
		t.Errorf("NormalizePhone() = %q", got)
	}
	if got := NormalizePhone("٣٤٥"); got != "" {
		t.Errorf("NormalizePhone() kept non-ASCII digits: %q", got)
	}

	h := HashCredential("s3cret")
	if len(h) != 64 || h != HashCredential("s3cret") || h == HashCredential("other") {
		t.Errorf("HashCredential() = %q", h)
	}
	if !credentialMatches("s3cret", strings.ToUpper(h)) {
		t.Error("credential comparison should ignore hex case")
	}
}
