package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"busclient/internal/domain"
	"busclient/internal/domain/models"
	"busclient/internal/utils"
)

const DefaultProbeTimeout = 5 * time.Second

// SessionAuthority is the backend that owns the session cookie.
// Check* return models.NoPrincipal() with a nil error when the role has no active session.
type SessionAuthority interface {
	CheckUserSession(ctx context.Context) (models.Principal, error)
	CheckOperatorSession(ctx context.Context) (models.Principal, error)
	Login(ctx context.Context, kind models.PrincipalKind, email, password string) error
	Logout(ctx context.Context, kind models.PrincipalKind) error
}

// SessionResolver decides which principal owns the session: user first, then operator, else none.
// Every resolution carries a token from a monotonic counter; a result is committed only if no
// newer resolution has been committed already, so a slow stale probe never overwrites a newer one.
type SessionResolver struct {
	Authority SessionAuthority
	Store     *PrincipalStore
	Timeout   time.Duration

	issued  atomic.Uint64
	mu      sync.Mutex
	applied uint64
}

func NewSessionResolver(authority SessionAuthority, store *PrincipalStore, timeout time.Duration) *SessionResolver {
	if store == nil {
		store = NewPrincipalStore()
	}
	return &SessionResolver{Authority: authority, Store: store, Timeout: timeout}
}

func (r *SessionResolver) timeout() time.Duration {
	if r.Timeout > 0 {
		return r.Timeout
	}
	return DefaultProbeTimeout
}

// Resolve probes the authority and returns the principal current after this call.
// It never fails: probe errors and timeouts resolve to models.NoPrincipal().
func (r *SessionResolver) Resolve(ctx context.Context) models.Principal {
	token := r.issued.Add(1)
	p := r.probe(ctx)
	if ctx.Err() != nil {
		utils.LogEvent(utils.RequestIDFrom(ctx), "session", "resolve_cancelled", fmt.Sprintf("token=%d", token))
		return r.Store.Current()
	}
	r.commit(ctx, token, p)
	return r.Store.Current()
}

// probe order is the tie-break: an active user session wins without asking the operator endpoint.
func (r *SessionResolver) probe(ctx context.Context) models.Principal {
	if p, ok := r.probeOne(ctx, models.PrincipalUser); ok {
		return p
	}
	if p, ok := r.probeOne(ctx, models.PrincipalOperator); ok {
		return p
	}
	return models.NoPrincipal()
}

func (r *SessionResolver) probeOne(ctx context.Context, kind models.PrincipalKind) (models.Principal, bool) {
	if r.Authority == nil {
		return models.NoPrincipal(), false
	}
	pctx, cancel := context.WithTimeout(ctx, r.timeout())
	defer cancel()

	var (
		p   models.Principal
		err error
	)
	switch kind {
	case models.PrincipalUser:
		p, err = r.Authority.CheckUserSession(pctx)
	case models.PrincipalOperator:
		p, err = r.Authority.CheckOperatorSession(pctx)
	default:
		return models.NoPrincipal(), false
	}
	if err != nil {
		utils.LogEvent(utils.RequestIDFrom(ctx), "session", "probe_failed", fmt.Sprintf("role=%s err=%v", kind, err))
		return models.NoPrincipal(), false
	}
	if p.Kind != kind {
		return models.NoPrincipal(), false
	}
	return p, true
}

func (r *SessionResolver) commit(ctx context.Context, token uint64, p models.Principal) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if token <= r.applied {
		utils.LogEvent(utils.RequestIDFrom(ctx), "session", "resolve_stale", fmt.Sprintf("token=%d applied=%d", token, r.applied))
		return false
	}
	r.applied = token
	if r.Store.set(p) {
		utils.LogEvent(utils.RequestIDFrom(ctx), "session", "principal_changed", fmt.Sprintf("kind=%s id=%d", p.Kind, p.ID()))
	}
	return true
}

// overwrite invalidates every in-flight resolution and stores p.
func (r *SessionResolver) overwrite(p models.Principal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.applied = r.issued.Load()
	r.Store.set(p)
}

// Cancel discards all resolutions still in flight. Used when the page owning the session goes away.
func (r *SessionResolver) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.applied = r.issued.Load()
}

// Expire clears the principal after the authority rejected the session credentials elsewhere.
func (r *SessionResolver) Expire(reason string) {
	utils.LogEvent("", "session", "expire", reason)
	r.overwrite(models.NoPrincipal())
}

// Login authenticates against the authority for the given role and then re-resolves.
// Credential rejections come back as domain.AuthError with the server message.
func (r *SessionResolver) Login(ctx context.Context, kind models.PrincipalKind, email, password string) (models.Principal, error) {
	if kind != models.PrincipalUser && kind != models.PrincipalOperator {
		return r.Store.Current(), domain.ValidationError{Field: "role", Msg: "must be user or admin"}
	}
	if r.Authority == nil {
		return r.Store.Current(), domain.InternalError{Msg: "session authority is not configured"}
	}
	lctx, cancel := context.WithTimeout(ctx, r.timeout())
	err := r.Authority.Login(lctx, kind, email, password)
	cancel()
	if err != nil {
		utils.LogEvent(utils.RequestIDFrom(ctx), "session", "login_failed", fmt.Sprintf("role=%s err=%v", kind, err))
		return r.Store.Current(), err
	}
	return r.Resolve(ctx), nil
}

// Logout invalidates the session at the authority and clears the principal locally even when the
// request fails, so the client never stays signed in on an error.
func (r *SessionResolver) Logout(ctx context.Context) error {
	cur := r.Store.Current()
	var err error
	if !cur.IsNone() && r.Authority != nil {
		lctx, cancel := context.WithTimeout(ctx, r.timeout())
		err = r.Authority.Logout(lctx, cur.Kind)
		cancel()
		if err != nil {
			utils.LogEvent(utils.RequestIDFrom(ctx), "session", "logout_failed", err.Error())
		}
	}
	r.overwrite(models.NoPrincipal())
	return err
}

// Watch re-resolves every interval until ctx is done. interval <= 0 returns immediately.
func (r *SessionResolver) Watch(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Resolve(ctx)
		}
	}
}
