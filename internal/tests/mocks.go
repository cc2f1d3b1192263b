package tests

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"travelsync/internal/domain"
	"travelsync/internal/redis"
	"travelsync/internal/repository"
)

// ──────────────────────────────────────────────
// MOCK TRIP REPOSITORY
// ──────────────────────────────────────────────

// MockTripRepository is an in-memory implementation of TripRepository.
type MockTripRepository struct {
	mu    sync.RWMutex
	trips map[string]*domain.Trip

	// Counters for verification
	CreateCallCount int32
	UpdateCallCount int32

	// Error injection
	CreateError error
	UpdateError error
}

// NewMockTripRepository creates a new mock trip repository.
func NewMockTripRepository() *MockTripRepository {
	return &MockTripRepository{
		trips: make(map[string]*domain.Trip),
	}
}

// AddTrip seeds a trip into the mock repository.
func (m *MockTripRepository) AddTrip(trip *domain.Trip) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *trip
	m.trips[trip.ID] = &copy
}

func (m *MockTripRepository) Create(ctx context.Context, trip *domain.Trip) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *trip
	m.trips[trip.ID] = &copy
	return nil
}

func (m *MockTripRepository) GetByID(ctx context.Context, id string) (*domain.Trip, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	trip, ok := m.trips[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	// Return a copy to avoid mutation issues.
	copy := *trip
	return &copy, nil
}

func (m *MockTripRepository) ListByOwner(ctx context.Context, ownerID string) ([]*domain.Trip, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.Trip
	for _, t := range m.trips {
		if t.OwnerID == ownerID {
			copy := *t
			result = append(result, &copy)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].StartTime.After(result[j].StartTime)
	})
	return result, nil
}

func (m *MockTripRepository) Update(ctx context.Context, trip *domain.Trip, expectedRevision int64) error {
	atomic.AddInt32(&m.UpdateCallCount, 1)
	if m.UpdateError != nil {
		return m.UpdateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.trips[trip.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if stored.Revision != expectedRevision {
		return repository.ErrRevisionMismatch
	}
	copy := *trip
	m.trips[trip.ID] = &copy
	return nil
}

func (m *MockTripRepository) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.trips[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.trips, id)
	return nil
}

// GetTrip returns a trip for test assertions.
func (m *MockTripRepository) GetTrip(id string) *domain.Trip {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.trips[id]
}

// CountTrips returns the number of stored trips.
func (m *MockTripRepository) CountTrips() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.trips)
}

// ──────────────────────────────────────────────
// MOCK EXPENSE REPOSITORY
// ──────────────────────────────────────────────

// MockExpenseRepository is an in-memory implementation of ExpenseRepository.
type MockExpenseRepository struct {
	mu       sync.RWMutex
	expenses map[string]*domain.Expense

	// Error injection
	CreateError error
	UpdateError error
}

// NewMockExpenseRepository creates a new mock expense repository.
func NewMockExpenseRepository() *MockExpenseRepository {
	return &MockExpenseRepository{
		expenses: make(map[string]*domain.Expense),
	}
}

// AddExpense seeds an expense into the mock repository.
func (m *MockExpenseRepository) AddExpense(expense *domain.Expense) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *expense
	m.expenses[expense.ID] = &copy
}

func (m *MockExpenseRepository) Create(ctx context.Context, expense *domain.Expense) error {
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *expense
	m.expenses[expense.ID] = &copy
	return nil
}

func (m *MockExpenseRepository) GetByID(ctx context.Context, id string) (*domain.Expense, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	expense, ok := m.expenses[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *expense
	return &copy, nil
}

func (m *MockExpenseRepository) ListByOwner(ctx context.Context, ownerID string) ([]*domain.Expense, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.Expense
	for _, e := range m.expenses {
		if e.OwnerID == ownerID {
			copy := *e
			result = append(result, &copy)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Date.After(result[j].Date)
	})
	return result, nil
}

func (m *MockExpenseRepository) Update(ctx context.Context, expense *domain.Expense, expectedRevision int64) error {
	if m.UpdateError != nil {
		return m.UpdateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.expenses[expense.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if stored.Revision != expectedRevision {
		return repository.ErrRevisionMismatch
	}
	copy := *expense
	m.expenses[expense.ID] = &copy
	return nil
}

func (m *MockExpenseRepository) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.expenses[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.expenses, id)
	return nil
}

// GetExpense returns an expense for test assertions.
func (m *MockExpenseRepository) GetExpense(id string) *domain.Expense {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.expenses[id]
}

// ──────────────────────────────────────────────
// MOCK LOCATION REPOSITORY
// ──────────────────────────────────────────────

// MockLocationRepository is an in-memory implementation of
// LocationRepository with the same (tripID, timestamp) uniqueness the
// real table enforces.
type MockLocationRepository struct {
	mu     sync.RWMutex
	points []*domain.LocationPoint

	// Error injection
	InsertError error
}

// NewMockLocationRepository creates a new mock location repository.
func NewMockLocationRepository() *MockLocationRepository {
	return &MockLocationRepository{}
}

func (m *MockLocationRepository) InsertBatch(ctx context.Context, points []*domain.LocationPoint) (int, error) {
	if m.InsertError != nil {
		return 0, m.InsertError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	inserted := 0
	for _, p := range points {
		if m.hasLocked(p.TripID, p.Timestamp) {
			continue
		}
		copy := *p
		m.points = append(m.points, &copy)
		inserted++
	}
	return inserted, nil
}

func (m *MockLocationRepository) hasLocked(tripID string, ts time.Time) bool {
	for _, p := range m.points {
		if p.TripID == tripID && p.Timestamp.Equal(ts) {
			return true
		}
	}
	return false
}

func (m *MockLocationRepository) ListByTrip(ctx context.Context, tripID string) ([]*domain.LocationPoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.LocationPoint
	for _, p := range m.points {
		if p.TripID == tripID {
			copy := *p
			result = append(result, &copy)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp.Before(result[j].Timestamp)
	})
	return result, nil
}

func (m *MockLocationRepository) DeleteByTrip(ctx context.Context, tripID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.points[:0]
	for _, p := range m.points {
		if p.TripID != tripID {
			kept = append(kept, p)
		}
	}
	m.points = kept
	return nil
}

// CountPoints returns the number of points stored for a trip.
func (m *MockLocationRepository) CountPoints(tripID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, p := range m.points {
		if p.TripID == tripID {
			count++
		}
	}
	return count
}

// ──────────────────────────────────────────────
// MOCK CONFLICT REPOSITORY
// ──────────────────────────────────────────────

// MockConflictRepository is an in-memory implementation of ConflictRepository.
type MockConflictRepository struct {
	mu        sync.RWMutex
	conflicts map[string]*domain.ConflictRecord

	// Error injection
	CreateError error
}

// NewMockConflictRepository creates a new mock conflict repository.
func NewMockConflictRepository() *MockConflictRepository {
	return &MockConflictRepository{
		conflicts: make(map[string]*domain.ConflictRecord),
	}
}

// AddConflict seeds a conflict into the mock repository.
func (m *MockConflictRepository) AddConflict(conflict *domain.ConflictRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *conflict
	m.conflicts[conflict.ID] = &copy
}

func (m *MockConflictRepository) Create(ctx context.Context, conflict *domain.ConflictRecord) error {
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *conflict
	m.conflicts[conflict.ID] = &copy
	return nil
}

func (m *MockConflictRepository) GetByID(ctx context.Context, id string) (*domain.ConflictRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	conflict, ok := m.conflicts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *conflict
	return &copy, nil
}

func (m *MockConflictRepository) ListByOwner(ctx context.Context, ownerID string, status domain.ConflictStatus) ([]*domain.ConflictRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.ConflictRecord
	for _, c := range m.conflicts {
		if c.OwnerID != ownerID {
			continue
		}
		if status != "" && c.Status != status {
			continue
		}
		copy := *c
		result = append(result, &copy)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].DetectedAt.Before(result[j].DetectedAt)
	})
	return result, nil
}

func (m *MockConflictRepository) MarkResolved(ctx context.Context, id string, resolution domain.Resolution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	conflict, ok := m.conflicts[id]
	if !ok || conflict.Status != domain.ConflictPending {
		return repository.ErrNotFound
	}
	conflict.Status = domain.ConflictResolved
	conflict.Resolution = resolution
	conflict.ResolvedAt = time.Now().UTC()
	return nil
}

func (m *MockConflictRepository) CountPending(ctx context.Context, ownerID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, c := range m.conflicts {
		if c.OwnerID == ownerID && c.Status == domain.ConflictPending {
			count++
		}
	}
	return count, nil
}

// GetConflict returns a conflict for test assertions.
func (m *MockConflictRepository) GetConflict(id string) *domain.ConflictRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.conflicts[id]
}

// PendingConflicts returns all pending conflicts for assertions.
func (m *MockConflictRepository) PendingConflicts() []*domain.ConflictRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.ConflictRecord
	for _, c := range m.conflicts {
		if c.Status == domain.ConflictPending {
			result = append(result, c)
		}
	}
	return result
}

// ──────────────────────────────────────────────
// MOCK REVISION LOG
// ──────────────────────────────────────────────

// MockRevisionLogRepository is an in-memory implementation of
// RevisionLogRepository.
type MockRevisionLogRepository struct {
	mu        sync.RWMutex
	snapshots map[string]domain.FieldMap
}

// NewMockRevisionLogRepository creates a new mock revision log.
func NewMockRevisionLogRepository() *MockRevisionLogRepository {
	return &MockRevisionLogRepository{
		snapshots: make(map[string]domain.FieldMap),
	}
}

func revisionKey(entityType domain.EntityType, entityID string, revision int64) string {
	return string(entityType) + "|" + entityID + "|" + strconv.FormatInt(revision, 10)
}

func (m *MockRevisionLogRepository) Record(ctx context.Context, entityType domain.EntityType, entityID string, revision int64, fields domain.FieldMap) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[revisionKey(entityType, entityID, revision)] = fields.Clone()
	return nil
}

func (m *MockRevisionLogRepository) GetSnapshot(ctx context.Context, entityType domain.EntityType, entityID string, revision int64) (domain.FieldMap, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snapshot, ok := m.snapshots[revisionKey(entityType, entityID, revision)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return snapshot.Clone(), nil
}

func (m *MockRevisionLogRepository) DeleteByEntity(ctx context.Context, entityType domain.EntityType, entityID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := string(entityType) + "|" + entityID + "|"
	for key := range m.snapshots {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			delete(m.snapshots, key)
		}
	}
	return nil
}

// ──────────────────────────────────────────────
// MOCK USER REPOSITORY
// ──────────────────────────────────────────────

// MockUserRepository is an in-memory implementation of UserRepository.
type MockUserRepository struct {
	mu    sync.RWMutex
	users map[string]*domain.User

	// Error injection
	CreateError error
}

// NewMockUserRepository creates a new mock user repository.
func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{
		users: make(map[string]*domain.User),
	}
}

func (m *MockUserRepository) Create(ctx context.Context, user *domain.User) error {
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *user
	m.users[user.ID] = &copy
	return nil
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	user, ok := m.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *user
	return &copy, nil
}

func (m *MockUserRepository) GetByPhone(ctx context.Context, phone string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Phone == phone {
			copy := *u
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

// CountUsers returns the number of stored users.
func (m *MockUserRepository) CountUsers() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users)
}

// ──────────────────────────────────────────────
// MOCK LOCK STORE
// ──────────────────────────────────────────────

// MockLockStore is an in-memory implementation of LockStoreInterface.
type MockLockStore struct {
	mu    sync.Mutex
	locks map[string]time.Time

	// Counters
	AcquireCallCount int32
	ReleaseCallCount int32

	// Error injection
	AcquireError error

	// Aggregate keys that always fail to acquire, simulating a lock
	// held by another session past the bounded wait.
	BlockedKeys map[string]bool
}

// NewMockLockStore creates a new mock lock store.
func NewMockLockStore() *MockLockStore {
	return &MockLockStore{
		locks:       make(map[string]time.Time),
		BlockedKeys: make(map[string]bool),
	}
}

// AcquireAggregateLock retries a held lock until maxWait elapses,
// mirroring the Redis store's bounded wait. BlockedKeys fail
// immediately, simulating a lock held well past any wait budget.
func (m *MockLockStore) AcquireAggregateLock(ctx context.Context, ownerID, aggregateKey string, ttl, maxWait time.Duration) (bool, error) {
	atomic.AddInt32(&m.AcquireCallCount, 1)
	if m.AcquireError != nil {
		return false, m.AcquireError
	}

	deadline := time.Now().Add(maxWait)
	for {
		m.mu.Lock()
		if m.BlockedKeys[aggregateKey] {
			m.mu.Unlock()
			return false, nil
		}
		key := ownerID + ":" + aggregateKey
		expiry, held := m.locks[key]
		if !held || time.Now().After(expiry) {
			m.locks[key] = time.Now().Add(ttl)
			m.mu.Unlock()
			return true, nil
		}
		m.mu.Unlock()

		if time.Now().After(deadline) || ctx.Err() != nil {
			return false, nil
		}
		time.Sleep(time.Millisecond)
	}
}

func (m *MockLockStore) ReleaseAggregateLock(ctx context.Context, ownerID, aggregateKey string) error {
	atomic.AddInt32(&m.ReleaseCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, ownerID+":"+aggregateKey)
	return nil
}

// IsLocked reports whether an aggregate is currently locked.
func (m *MockLockStore) IsLocked(ownerID, aggregateKey string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	expiry, exists := m.locks[ownerID+":"+aggregateKey]
	return exists && time.Now().Before(expiry)
}

// ──────────────────────────────────────────────
// MOCK OTP STORE
// ──────────────────────────────────────────────

// MockOTPStore is an in-memory implementation of OTPStoreInterface.
type MockOTPStore struct {
	mu    sync.Mutex
	codes map[string]string
}

// NewMockOTPStore creates a new mock OTP store.
func NewMockOTPStore() *MockOTPStore {
	return &MockOTPStore{codes: make(map[string]string)}
}

func (m *MockOTPStore) Put(ctx context.Context, phone, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes[phone] = code
	return nil
}

func (m *MockOTPStore) Verify(ctx context.Context, phone, code string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.codes[phone]
	if !ok || stored != code {
		return false, nil
	}
	delete(m.codes, phone) // single use
	return true, nil
}

// Code returns the stored code for a phone (for test assertions).
func (m *MockOTPStore) Code(phone string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.codes[phone]
}

// ──────────────────────────────────────────────
// MOCK SYNC STATUS STORE
// ──────────────────────────────────────────────

// MockSyncStatusStore is an in-memory implementation of
// SyncStatusStoreInterface.
type MockSyncStatusStore struct {
	mu       sync.Mutex
	statuses map[string]*redis.OwnerSyncStatus
}

// NewMockSyncStatusStore creates a new mock sync status store.
func NewMockSyncStatusStore() *MockSyncStatusStore {
	return &MockSyncStatusStore{statuses: make(map[string]*redis.OwnerSyncStatus)}
}

func (m *MockSyncStatusStore) Get(ctx context.Context, ownerID string) (*redis.OwnerSyncStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	status, ok := m.statuses[ownerID]
	if !ok {
		return nil, nil
	}
	copy := *status
	return &copy, nil
}

func (m *MockSyncStatusStore) Set(ctx context.Context, ownerID string, status *redis.OwnerSyncStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *status
	m.statuses[ownerID] = &copy
	return nil
}

// ──────────────────────────────────────────────
// MOCK TX RUNNER
// ──────────────────────────────────────────────

// MockTxRunner runs the commit function directly against the shared
// mocks. It does not roll back partial writes; tests that exercise
// commit failure inject the error before any write happens.
type MockTxRunner struct {
	Stores repository.Stores

	// Error injection: returned before fn runs.
	BeginError error
}

// NewMockTxRunner creates a mock transaction runner over the given stores.
func NewMockTxRunner(stores repository.Stores) *MockTxRunner {
	return &MockTxRunner{Stores: stores}
}

func (m *MockTxRunner) WithinTx(ctx context.Context, fn func(ctx context.Context, st repository.Stores) error) error {
	if m.BeginError != nil {
		return m.BeginError
	}
	return fn(ctx, m.Stores)
}

// ──────────────────────────────────────────────
// HELPER ERRORS
// ──────────────────────────────────────────────

var (
	ErrMockDBConstraint = errors.New("mock: unique constraint violation")
	ErrMockTimeout      = errors.New("mock: operation timeout")
)
