// Package scope resolves a caller's access boundary from its current grants.
package scope

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nexus-geo/nexus-gateway/internal/auth"
)

// ErrUnavailable indicates the grant store could not be reached. Callers must
// treat this as "undecided" and fail closed; it never defaults to unrestricted
// or to an empty scope.
var ErrUnavailable = errors.New("scope: grant store unavailable")

// Grant is a persisted permission record scoping a subject to a municipality
// or a state. Exactly one of MunicipalityID and StateCode is set.
type Grant struct {
	ID             int64
	SubjectID      string
	MunicipalityID int64  // IBGE municipality code; 0 when the grant is state-wide
	StateCode      string // two-letter UF code; empty for municipality grants
	Exclusive      bool
	ValidUntil     *time.Time // nil = unbounded
	CreatedAt      time.Time
}

// ActiveAt reports whether the grant is active at the given instant.
// A grant whose ValidUntil has passed is never active.
func (g Grant) ActiveAt(now time.Time) bool {
	return g.ValidUntil == nil || g.ValidUntil.After(now)
}

// Scope is the resolved, request-time access boundary. It is derived from the
// grant snapshot at resolution time and is never cached across requests.
type Scope struct {
	Unrestricted    bool
	MunicipalityIDs map[int64]struct{}
	StateCodes      map[string]struct{}
}

// Empty reports whether a restricted scope carries no access at all.
// This is distinct from Unrestricted: an empty scope means "no access".
func (s *Scope) Empty() bool {
	return !s.Unrestricted && len(s.MunicipalityIDs) == 0 && len(s.StateCodes) == 0
}

// HasGrants reports whether a restricted scope carries at least one grant.
func (s *Scope) HasGrants() bool {
	return !s.Unrestricted && !s.Empty()
}

// AllowsMunicipality reports whether the scope covers a municipality, either
// directly or through its state.
func (s *Scope) AllowsMunicipality(id int64, stateCode string) bool {
	if s.Unrestricted {
		return true
	}
	if _, ok := s.MunicipalityIDs[id]; ok {
		return true
	}
	_, ok := s.StateCodes[strings.ToUpper(stateCode)]
	return ok
}

// GrantStore is the query capability for a subject's current grants.
// Implementations return an empty slice, not an error, when no grants exist.
type GrantStore interface {
	GrantsForSubject(ctx context.Context, subjectID string) ([]Grant, error)
}

// Resolver turns verified claims into a Scope.
type Resolver struct {
	store GrantStore
}

// NewResolver creates a Resolver over the given grant store.
func NewResolver(store GrantStore) *Resolver {
	return &Resolver{store: store}
}

// Resolve computes the access scope for the given claims at the given
// instant. Unrestricted roles short-circuit without consulting the store.
// Resolution is a pure function of (claims, grant snapshot, now).
func (r *Resolver) Resolve(ctx context.Context, claims *auth.Claims, now time.Time) (*Scope, error) {
	if claims == nil || claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", auth.ErrMalformedCredential)
	}

	if claims.Role.Unrestricted() {
		return &Scope{Unrestricted: true}, nil
	}

	grants, err := r.store.GrantsForSubject(ctx, claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	s := &Scope{
		MunicipalityIDs: make(map[int64]struct{}),
		StateCodes:      make(map[string]struct{}),
	}
	for _, g := range grants {
		if !g.ActiveAt(now) {
			continue
		}
		switch {
		case g.MunicipalityID != 0:
			s.MunicipalityIDs[g.MunicipalityID] = struct{}{}
		case g.StateCode != "":
			s.StateCodes[strings.ToUpper(g.StateCode)] = struct{}{}
		}
	}
	return s, nil
}
