// Package tenant resolves transport instances to verified tenant identities and
// guards the pipeline against cross-tenant access.
package tenant

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/edgard/jaiminho/internal/domain"
)

// DefaultCacheCapacity is the number of cached instances kept before the cache is flushed.
const DefaultCacheCapacity = 1000

// Rejection reason keys.
const (
	ReasonInstance       = "instance_id"
	ReasonStatus         = "status"
	ReasonPhoneOwnership = "phone_ownership"
	ReasonPayload        = "payload_forbidden_fields"
)

// Store is the tenant mapping the resolver and gate read from.
// Both lookups return nil, nil when nothing matches.
type Store interface {
	GetByInstanceID(ctx context.Context, instanceID string) (*domain.TenantInstance, error)
	GetOwnerByPhone(ctx context.Context, phone string) (*domain.PhoneOwner, error)
	// InstanceVersion returns the row version of instanceID, or 0 when it does not exist.
	InstanceVersion(ctx context.Context, instanceID string) (int64, error)
}

type cacheEntry struct {
	tenant         domain.TenantContext
	credentialHash string
	version        int64
}

// Resolver maps instance ids to tenant contexts with a bounded cache.
// Only active instances are cached. Every hit is checked against the stored
// row version, so status changes and key rotations made by another process
// take effect on the next request.
type Resolver struct {
	store    Store
	logger   *slog.Logger
	capacity int

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

// NewResolver creates a resolver. A non-positive capacity uses DefaultCacheCapacity.
func NewResolver(store Store, logger *slog.Logger, capacity int) *Resolver {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	return &Resolver{
		store:    store,
		logger:   logger.With("component", "tenant_resolver"),
		capacity: capacity,
		cache:    make(map[string]cacheEntry),
	}
}

// HashCredential returns the hex SHA-256 digest stored for instance credentials.
func HashCredential(credential string) string {
	sum := sha256.Sum256([]byte(credential))
	return hex.EncodeToString(sum[:])
}

func credentialMatches(credential, storedHash string) bool {
	got := HashCredential(credential)
	return subtle.ConstantTimeCompare([]byte(got), []byte(strings.ToLower(storedHash))) == 1
}

// Resolve looks up instanceID and verifies the optional credential and status.
// It returns either a context or a non-empty rejection, never both.
func (r *Resolver) Resolve(ctx context.Context, instanceID, credential string) (*domain.TenantContext, domain.Rejection) {
	instanceID = strings.TrimSpace(instanceID)
	if instanceID == "" {
		return nil, domain.Rejection{ReasonInstance: "invalid"}
	}

	if entry, ok := r.cached(instanceID); ok {
		if r.fresh(ctx, instanceID, entry) {
			if credential != "" && !credentialMatches(credential, entry.credentialHash) {
				return nil, domain.Rejection{ReasonInstance: "credential_mismatch"}
			}
			tc := entry.tenant
			return &tc, nil
		}
		r.Invalidate(instanceID)
	}

	inst, err := r.store.GetByInstanceID(ctx, instanceID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Tenant lookup failed", "instance_id", instanceID, "error", err)
		return nil, domain.Rejection{ReasonInstance: "unavailable"}
	}
	if inst == nil {
		return nil, domain.Rejection{ReasonInstance: "invalid"}
	}

	if credential != "" && !credentialMatches(credential, inst.CredentialHash) {
		return nil, domain.Rejection{ReasonInstance: "credential_mismatch"}
	}

	if !inst.Status.Resolvable() {
		return nil, domain.Rejection{ReasonStatus: string(inst.Status)}
	}

	tc := domain.TenantContext{
		TenantID:    inst.TenantID,
		UserID:      inst.UserID,
		InstanceID:  inst.InstanceID,
		PhoneNumber: inst.PhoneNumber,
		Status:      inst.Status,
	}
	if inst.Status == domain.TenantActive {
		r.put(instanceID, cacheEntry{tenant: tc, credentialHash: inst.CredentialHash, version: inst.Version})
	}
	return &tc, nil
}

// fresh reports whether the cached entry still matches the stored row.
func (r *Resolver) fresh(ctx context.Context, instanceID string, entry cacheEntry) bool {
	version, err := r.store.InstanceVersion(ctx, instanceID)
	if err != nil {
		r.logger.WarnContext(ctx, "Tenant version check failed", "instance_id", instanceID, "error", err)
		return false
	}
	if version != entry.version {
		r.logger.DebugContext(ctx, "Tenant cache entry stale", "instance_id", instanceID,
			"cached_version", entry.version, "stored_version", version)
		return false
	}
	return true
}

func (r *Resolver) cached(instanceID string) (cacheEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.cache[instanceID]
	return entry, ok
}

func (r *Resolver) put(instanceID string, entry cacheEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.cache[instanceID]; !exists && len(r.cache) >= r.capacity {
		r.logger.Info("Tenant cache full, flushing", "entries", len(r.cache))
		r.cache = make(map[string]cacheEntry)
	}
	r.cache[instanceID] = entry
}

// Invalidate drops one instance from the cache.
func (r *Resolver) Invalidate(instanceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cache, instanceID)
}

// Reset empties the cache and returns how many entries were dropped.
func (r *Resolver) Reset() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.cache)
	r.cache = make(map[string]cacheEntry)
	return n
}

// CacheSize reports the current number of cached entries.
func (r *Resolver) CacheSize() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cache)
}
