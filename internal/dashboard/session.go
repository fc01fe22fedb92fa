package dashboard

import (
	"sync"

	"github.com/shelfsight/querydeck/internal/analytics"
)

// Theme values accepted by the session.
const (
	ThemeLight = "light"
	ThemeDark  = "dark"
)

// SessionSnapshot is an immutable copy of the session preferences.
type SessionSnapshot struct {
	BrandID     string             `json:"brand_id,omitempty"`
	Marketplace string             `json:"marketplace,omitempty"`
	Theme       string             `json:"theme"`
	CVRBasis    analytics.CVRBasis `json:"cvr_basis"`
}

// Session holds the mutable per-client preferences that scope every
// dashboard request: selected brand, marketplace, theme and the CVR
// denominator. Subscribers are notified with a snapshot after each
// change.
type Session struct {
	mu    sync.Mutex
	state SessionSnapshot
	subs  []func(SessionSnapshot)
}

// NewSession creates a session with no brand selected, the light theme
// and the given CVR basis.
func NewSession(basis analytics.CVRBasis) *Session {
	if !basis.Valid() {
		basis = analytics.CVRBasisClicks
	}
	return &Session{
		state: SessionSnapshot{
			Theme:    ThemeLight,
			CVRBasis: basis,
		},
	}
}

// Subscribe registers a callback invoked after every state change.
func (s *Session) Subscribe(fn func(SessionSnapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
}

// Snapshot returns the current preferences.
func (s *Session) Snapshot() SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetBrand selects a brand; empty clears the selection.
func (s *Session) SetBrand(brandID string) SessionSnapshot {
	return s.update(func(st *SessionSnapshot) {
		st.BrandID = brandID
	})
}

// SetMarketplace scopes the session to one marketplace; empty clears it.
func (s *Session) SetMarketplace(marketplace string) SessionSnapshot {
	return s.update(func(st *SessionSnapshot) {
		st.Marketplace = marketplace
	})
}

// SetTheme switches the theme. Unknown values keep the current theme.
func (s *Session) SetTheme(theme string) SessionSnapshot {
	return s.update(func(st *SessionSnapshot) {
		if theme == ThemeLight || theme == ThemeDark {
			st.Theme = theme
		}
	})
}

// SetCVRBasis switches the conversion-rate denominator. Invalid values
// keep the current basis.
func (s *Session) SetCVRBasis(basis analytics.CVRBasis) SessionSnapshot {
	return s.update(func(st *SessionSnapshot) {
		if basis.Valid() {
			st.CVRBasis = basis
		}
	})
}

func (s *Session) update(mutate func(*SessionSnapshot)) SessionSnapshot {
	s.mu.Lock()
	mutate(&s.state)
	snap := s.state
	subs := make([]func(SessionSnapshot), len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
	return snap
}
