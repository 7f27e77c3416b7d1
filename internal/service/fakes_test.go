package service

import (
	"bytes"
	"context"
	"sync"
	"time"

	"taskhive/api/internal/cache"
	"taskhive/api/internal/models"
	"taskhive/api/internal/repository"
)

// In-memory store fakes. They return the repository sentinel errors so the
// services exercise the same branches as against postgres.

type fakeUserStore struct {
	mu    sync.Mutex
	users map[string]models.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: map[string]models.User{}}
}

func (s *fakeUserStore) Create(_ context.Context, user models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	s.users[user.ID] = user
	return nil
}

func (s *fakeUserStore) FindByEmail(_ context.Context, email string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.Email == email {
			return user, nil
		}
	}
	return models.User{}, repository.ErrUserNotFound
}

func (s *fakeUserStore) GetByID(_ context.Context, id string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return models.User{}, repository.ErrUserNotFound
	}
	return user, nil
}

func (s *fakeUserStore) UpdateStatus(_ context.Context, id string, status models.UserStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	user.Status = status
	s.users[id] = user
	return nil
}

func (s *fakeUserStore) MarkEmailVerified(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	if user.Status == models.UserStatusPendingVerify {
		user.Status = models.UserStatusActive
	}
	user.EmailVerifiedAt = &at
	s.users[id] = user
	return nil
}

type fakeAccountStore struct {
	mu       sync.Mutex
	accounts map[string]models.Account
}

func newFakeAccountStore() *fakeAccountStore {
	return &fakeAccountStore{accounts: map[string]models.Account{}}
}

func (s *fakeAccountStore) Create(_ context.Context, account models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	account.CreatedAt = time.Now()
	account.UpdatedAt = account.CreatedAt
	s.accounts[account.ID] = account
	return nil
}

func (s *fakeAccountStore) FindByProviderAccount(_ context.Context, provider models.Provider, providerAccountID string) (models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, account := range s.accounts {
		if account.Provider == provider && account.ProviderAccountID == providerAccountID {
			return account, nil
		}
	}
	return models.Account{}, repository.ErrAccountNotFound
}

func (s *fakeAccountStore) FindByUserAndProvider(_ context.Context, userID string, provider models.Provider) (models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, account := range s.accounts {
		if account.UserID == userID && account.Provider == provider {
			return account, nil
		}
	}
	return models.Account{}, repository.ErrAccountNotFound
}

func (s *fakeAccountStore) ListByUser(_ context.Context, userID string) ([]models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var accounts []models.Account
	for _, account := range s.accounts {
		if account.UserID == userID {
			accounts = append(accounts, account)
		}
	}
	return accounts, nil
}

func (s *fakeAccountStore) UpdatePasswordHash(_ context.Context, id string, hash []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[id]
	if !ok {
		return repository.ErrAccountNotFound
	}
	account.PasswordHash = hash
	s.accounts[id] = account
	return nil
}

func (s *fakeAccountStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[id]; !ok {
		return repository.ErrAccountNotFound
	}
	delete(s.accounts, id)
	return nil
}

type fakeSessionStore struct {
	mu       sync.Mutex
	sessions map[string]models.Session
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: map[string]models.Session{}}
}

func (s *fakeSessionStore) Create(_ context.Context, session models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session.CreatedAt = time.Now()
	session.LastUsedAt = session.CreatedAt
	s.sessions[session.ID] = session
	return nil
}

func (s *fakeSessionStore) GetByID(_ context.Context, id string) (models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return models.Session{}, repository.ErrSessionNotFound
	}
	return session, nil
}

func (s *fakeSessionStore) FindByRefreshTokenHash(_ context.Context, hash []byte) (models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, session := range s.sessions {
		if bytes.Equal(session.RefreshTokenHash, hash) {
			return session, nil
		}
	}
	return models.Session{}, repository.ErrSessionNotFound
}

func (s *fakeSessionStore) FindByPreviousTokenHash(_ context.Context, hash []byte) (models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, session := range s.sessions {
		if bytes.Equal(session.PreviousTokenHash, hash) {
			return session, nil
		}
	}
	return models.Session{}, repository.ErrSessionNotFound
}

func (s *fakeSessionStore) FindByTokenFamily(_ context.Context, tokenFamily string) ([]models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sessions []models.Session
	for _, session := range s.sessions {
		if session.TokenFamily == tokenFamily {
			sessions = append(sessions, session)
		}
	}
	return sessions, nil
}

func (s *fakeSessionStore) FindActiveByUserID(_ context.Context, userID string) ([]models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	var sessions []models.Session
	for _, session := range s.sessions {
		if session.UserID == userID && session.Active(now) {
			sessions = append(sessions, session)
		}
	}
	return sessions, nil
}

func (s *fakeSessionStore) UpdateRefreshTokenHash(_ context.Context, id string, hash []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return repository.ErrSessionNotFound
	}
	session.RefreshTokenHash = hash
	s.sessions[id] = session
	return nil
}

// RotateToken mirrors the conditional UPDATE: it applies only while the
// row still carries the expected version and is not revoked.
func (s *fakeSessionStore) RotateToken(_ context.Context, id string, input repository.RotateTokenInput) (models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok || session.RevokedAt != nil || session.TokenVersion != input.ExpectedTokenVersion {
		return models.Session{}, repository.ErrSessionNotFound
	}
	session.RefreshTokenHash = input.RefreshTokenHash
	session.PreviousTokenHash = input.PreviousTokenHash
	session.TokenVersion = input.TokenVersion
	session.ExpiresAt = input.ExpiresAt
	session.LastUsedAt = time.Now()
	s.sessions[id] = session
	return session, nil
}

func (s *fakeSessionStore) Revoke(_ context.Context, id string, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok || session.RevokedAt != nil {
		return repository.ErrSessionNotFound
	}
	now := time.Now()
	session.RevokedAt = &now
	session.RevokedReason = reason
	s.sessions[id] = session
	return nil
}

func (s *fakeSessionStore) RevokeByTokenFamily(_ context.Context, tokenFamily string, reason string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	count := 0
	for id, session := range s.sessions {
		if session.TokenFamily == tokenFamily && session.RevokedAt == nil {
			session.RevokedAt = &now
			session.RevokedReason = reason
			s.sessions[id] = session
			count++
		}
	}
	return count, nil
}

func (s *fakeSessionStore) RevokeAllByUserID(_ context.Context, userID string, reason string, excludeID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	count := 0
	for id, session := range s.sessions {
		if session.UserID == userID && session.RevokedAt == nil && id != excludeID {
			session.RevokedAt = &now
			session.RevokedReason = reason
			s.sessions[id] = session
			count++
		}
	}
	return count, nil
}

func (s *fakeSessionStore) DeleteExpired(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	count := 0
	for id, session := range s.sessions {
		if now.After(session.ExpiresAt) {
			delete(s.sessions, id)
			count++
		}
	}
	return count, nil
}

type fakeCodeStore struct {
	mu    sync.Mutex
	codes map[string]models.VerificationCode
}

func newFakeCodeStore() *fakeCodeStore {
	return &fakeCodeStore{codes: map[string]models.VerificationCode{}}
}

func (s *fakeCodeStore) Create(_ context.Context, code models.VerificationCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, existing := range s.codes {
		if existing.UserID == code.UserID && existing.Purpose == code.Purpose && existing.ConsumedAt == nil {
			existing.ConsumedAt = &now
			s.codes[id] = existing
		}
	}
	code.CreatedAt = now
	s.codes[code.ID] = code
	return nil
}

func (s *fakeCodeStore) FindCurrent(_ context.Context, userID string, purpose models.CodePurpose) (models.VerificationCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *models.VerificationCode
	for _, code := range s.codes {
		code := code
		if code.UserID == userID && code.Purpose == purpose && code.ConsumedAt == nil {
			if latest == nil || code.CreatedAt.After(latest.CreatedAt) {
				latest = &code
			}
		}
	}
	if latest == nil {
		return models.VerificationCode{}, repository.ErrCodeNotFound
	}
	return *latest, nil
}

func (s *fakeCodeStore) IncrementAttempts(_ context.Context, id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	code, ok := s.codes[id]
	if !ok || code.ConsumedAt != nil {
		return 0, repository.ErrCodeNotFound
	}
	code.Attempts++
	s.codes[id] = code
	return code.Attempts, nil
}

func (s *fakeCodeStore) Consume(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	code, ok := s.codes[id]
	if !ok || code.ConsumedAt != nil {
		return repository.ErrCodeNotFound
	}
	now := time.Now()
	code.ConsumedAt = &now
	s.codes[id] = code
	return nil
}

func (s *fakeCodeStore) DeleteExpired(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	count := 0
	for id, code := range s.codes {
		if now.After(code.ExpiresAt) || code.ConsumedAt != nil {
			delete(s.codes, id)
			count++
		}
	}
	return count, nil
}

type fakeAttemptStore struct {
	mu       sync.Mutex
	attempts []models.LoginAttempt
}

func newFakeAttemptStore() *fakeAttemptStore {
	return &fakeAttemptStore{}
}

func (s *fakeAttemptStore) Create(_ context.Context, attempt models.LoginAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	attempt.CreatedAt = time.Now()
	s.attempts = append(s.attempts, attempt)
	return nil
}

func (s *fakeAttemptStore) CountRecentFailuresByEmail(_ context.Context, email string, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, attempt := range s.attempts {
		if attempt.Email == email && !attempt.Success && attempt.CreatedAt.After(since) {
			count++
		}
	}
	return count, nil
}

type fakeSecurityLogStore struct {
	mu      sync.Mutex
	entries []models.SecurityLogEntry
}

func newFakeSecurityLogStore() *fakeSecurityLogStore {
	return &fakeSecurityLogStore{}
}

func (s *fakeSecurityLogStore) Create(_ context.Context, entry models.SecurityLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.CreatedAt = time.Now()
	s.entries = append(s.entries, entry)
	return nil
}

func (s *fakeSecurityLogStore) byEvent(event models.SecurityEvent) []models.SecurityLogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []models.SecurityLogEntry
	for _, entry := range s.entries {
		if entry.Event == event {
			matched = append(matched, entry)
		}
	}
	return matched
}

type fakeValidityCache struct {
	mu      sync.Mutex
	entries map[string]cache.SessionValidity
}

func newFakeValidityCache() *fakeValidityCache {
	return &fakeValidityCache{entries: map[string]cache.SessionValidity{}}
}

func (c *fakeValidityCache) Get(_ context.Context, sessionID string) (cache.SessionValidity, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	validity, ok := c.entries[sessionID]
	return validity, ok
}

func (c *fakeValidityCache) Set(_ context.Context, sessionID string, validity cache.SessionValidity) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[sessionID] = validity
	return nil
}

func (c *fakeValidityCache) Delete(_ context.Context, sessionIDs ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range sessionIDs {
		delete(c.entries, id)
	}
	return nil
}

type fakeCooldown struct {
	mu    sync.Mutex
	until map[string]time.Time
}

func newFakeCooldown() *fakeCooldown {
	return &fakeCooldown{until: map[string]time.Time{}}
}

func (c *fakeCooldown) Allow(_ context.Context, key string, window time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if deadline, ok := c.until[key]; ok && time.Now().Before(deadline) {
		return false, nil
	}
	c.until[key] = time.Now().Add(window)
	return true, nil
}

func (c *fakeCooldown) Reset(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.until, key)
	return nil
}

// passthroughTx runs the function directly; the fakes have no transaction
// semantics to enforce.
type passthroughTx struct{}

func (passthroughTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type capturingSender struct {
	mu    sync.Mutex
	codes map[string]string // "email|purpose" -> last code
	fail  bool
}

func newCapturingSender() *capturingSender {
	return &capturingSender{codes: map[string]string{}}
}

func (s *capturingSender) Send(_ context.Context, to string, purpose models.CodePurpose, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return context.DeadlineExceeded
	}
	s.codes[to+"|"+string(purpose)] = code
	return nil
}

func (s *capturingSender) lastCode(to string, purpose models.CodePurpose) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.codes[to+"|"+string(purpose)]
}
