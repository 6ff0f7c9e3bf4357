package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Freeeeeet/homeconnect/internal/model"
	"github.com/Freeeeeet/homeconnect/internal/repository"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// memDB is an in-memory stand-in for the PostgreSQL schema. It emulates the
// conditional updates and partial unique indexes the repositories rely on.
type memDB struct {
	txMu sync.Mutex
	mu   sync.Mutex

	nextID    int64
	users     map[int64]model.User
	locations map[int64]model.Location
	providers map[int64]model.Provider
	slots     map[int64]model.TimeSlot
	bookings  map[int64]model.Booking
	reviews   map[int64]model.Review

	failures map[string]error
}

func newMemDB() *memDB {
	return &memDB{
		users:     map[int64]model.User{},
		locations: map[int64]model.Location{},
		providers: map[int64]model.Provider{},
		slots:     map[int64]model.TimeSlot{},
		bookings:  map[int64]model.Booking{},
		reviews:   map[int64]model.Review{},
		failures:  map[string]error{},
	}
}

func (db *memDB) id() int64 {
	db.nextID++
	return db.nextID
}

// fail makes the next call of op, e.g. "slots.Reserve", return err.
func (db *memDB) fail(op string, err error) {
	db.mu.Lock()
	db.failures[op] = err
	db.mu.Unlock()
}

func (db *memDB) takeFailure(op string) error {
	err := db.failures[op]
	delete(db.failures, op)
	return err
}

type memSnapshot struct {
	nextID    int64
	users     map[int64]model.User
	locations map[int64]model.Location
	providers map[int64]model.Provider
	slots     map[int64]model.TimeSlot
	bookings  map[int64]model.Booking
	reviews   map[int64]model.Review
}

func cloneMap[V any](m map[int64]V) map[int64]V {
	out := make(map[int64]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// WithinTx выполняет транзакции строго по очереди, поэтому конкурентные тесты
// над memDB не перемешивают проверку и резервирование внутри одной транзакции.
// Гонки на настоящей базе проверяют тесты с тегом integration
func (db *memDB) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	db.txMu.Lock()
	defer db.txMu.Unlock()

	db.mu.Lock()
	snap := memSnapshot{
		nextID:    db.nextID,
		users:     cloneMap(db.users),
		locations: cloneMap(db.locations),
		providers: cloneMap(db.providers),
		slots:     cloneMap(db.slots),
		bookings:  cloneMap(db.bookings),
		reviews:   cloneMap(db.reviews),
	}
	db.mu.Unlock()

	if err := fn(ctx); err != nil {
		db.mu.Lock()
		db.nextID = snap.nextID
		db.users = snap.users
		db.locations = snap.locations
		db.providers = snap.providers
		db.slots = snap.slots
		db.bookings = snap.bookings
		db.reviews = snap.reviews
		db.mu.Unlock()
		return err
	}
	return nil
}

// users

type memUsers struct{ db *memDB }

func (s memUsers) Create(ctx context.Context, user *model.User) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.takeFailure("users.Create"); err != nil {
		return err
	}
	for _, u := range s.db.users {
		if strings.EqualFold(u.Username, user.Username) {
			return repository.ErrUsernameTaken
		}
	}
	user.ID = s.db.id()
	user.CreatedAt = time.Now()
	s.db.users[user.ID] = *user
	return nil
}

func (s memUsers) GetByID(ctx context.Context, id int64) (*model.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if u, ok := s.db.users[id]; ok {
		return &u, nil
	}
	return nil, nil
}

func (s memUsers) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, u := range s.db.users {
		if strings.EqualFold(u.Username, username) {
			return &u, nil
		}
	}
	return nil, nil
}

func (s memUsers) UpdateContacts(ctx context.Context, user *model.User) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	u, ok := s.db.users[user.ID]
	if !ok {
		return errors.New("user not found")
	}
	u.FullName, u.Phone, u.Email, u.Address = user.FullName, user.Phone, user.Email, user.Address
	s.db.users[u.ID] = u
	return nil
}

// locations

type memLocations struct{ db *memDB }

func (s memLocations) GetByCity(ctx context.Context, city string) (*model.Location, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, l := range s.db.locations {
		if strings.EqualFold(l.City, city) {
			return &l, nil
		}
	}
	return nil, nil
}

func (s memLocations) Ensure(ctx context.Context, city string) (*model.Location, error) {
	if l, _ := s.GetByCity(ctx, city); l != nil {
		return l, nil
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	l := model.Location{ID: s.db.id(), City: city, CreatedAt: time.Now()}
	s.db.locations[l.ID] = l
	return &l, nil
}

// providers

type memProviders struct{ db *memDB }

func (s memProviders) Create(ctx context.Context, provider *model.Provider) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.takeFailure("providers.Create"); err != nil {
		return err
	}
	provider.ID = s.db.id()
	s.db.providers[provider.ID] = *provider
	return nil
}

func (s memProviders) withUser(p model.Provider) *model.Provider {
	u := s.db.users[p.UserID]
	p.FullName, p.Phone, p.Email, p.Address = u.FullName, u.Phone, u.Email, u.Address
	if p.LocationID != nil {
		p.City = s.db.locations[*p.LocationID].City
	} else {
		p.City = ""
	}
	return &p
}

func (s memProviders) GetByID(ctx context.Context, id int64) (*model.Provider, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.takeFailure("providers.GetByID"); err != nil {
		return nil, err
	}
	if p, ok := s.db.providers[id]; ok {
		return s.withUser(p), nil
	}
	return nil, nil
}

func (s memProviders) GetByUserID(ctx context.Context, userID int64) (*model.Provider, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, p := range s.db.providers {
		if p.UserID == userID {
			return s.withUser(p), nil
		}
	}
	return nil, nil
}

// Lock ничего не делает: memDB и так сериализует транзакции
func (s memProviders) Lock(ctx context.Context, providerID int64) error {
	return nil
}

func (s memProviders) Update(ctx context.Context, provider *model.Provider) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	p, ok := s.db.providers[provider.ID]
	if !ok {
		return errors.New("provider not found")
	}
	p.ServiceType, p.Experience, p.Description = provider.ServiceType, provider.Experience, provider.Description
	p.CertFilePath, p.LocationID = provider.CertFilePath, provider.LocationID
	s.db.providers[p.ID] = p
	return nil
}

func (s memProviders) ListAvailableAt(ctx context.Context, serviceType string, at time.Time, blocking []model.BookingStatus) ([]*model.ProviderSummary, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.takeFailure("providers.ListAvailableAt"); err != nil {
		return nil, err
	}

	var out []*model.ProviderSummary
	for _, p := range s.db.providers {
		if p.ServiceType != serviceType {
			continue
		}
		busy := false
		for _, b := range s.db.bookings {
			if b.ProviderID == p.ID && b.ServiceDate.Equal(at) && statusIn(b.Status, blocking) {
				busy = true
				break
			}
		}
		if busy {
			continue
		}
		out = append(out, &model.ProviderSummary{
			ProviderID:  p.ID,
			FullName:    s.db.users[p.UserID].FullName,
			ServiceType: p.ServiceType,
			Experience:  p.Experience,
			Description: p.Description,
			Rating:      p.Rating,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProviderID < out[j].ProviderID })
	return out, nil
}

func (s memProviders) RecomputeRating(ctx context.Context, providerID int64) (float64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.takeFailure("providers.RecomputeRating"); err != nil {
		return 0, err
	}
	var sum, n int
	for _, r := range s.db.reviews {
		if s.db.bookings[r.BookingID].ProviderID == providerID {
			sum += r.Rating
			n++
		}
	}
	p := s.db.providers[providerID]
	p.Rating = 0
	if n > 0 {
		p.Rating = float64(sum) / float64(n)
	}
	s.db.providers[providerID] = p
	return p.Rating, nil
}

// slots

type memSlots struct{ db *memDB }

func (s memSlots) Create(ctx context.Context, slot *model.TimeSlot) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.takeFailure("slots.Create"); err != nil {
		return err
	}
	slot.ID = s.db.id()
	slot.IsAvailable = true
	slot.CreatedAt = time.Now()
	s.db.slots[slot.ID] = *slot
	return nil
}

func (s memSlots) GetByID(ctx context.Context, id int64) (*model.TimeSlot, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.takeFailure("slots.GetByID"); err != nil {
		return nil, err
	}
	if slot, ok := s.db.slots[id]; ok {
		return &slot, nil
	}
	return nil, nil
}

func (s memSlots) FindByStart(ctx context.Context, providerID int64, start time.Time) (*model.TimeSlot, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var found *model.TimeSlot
	for _, slot := range s.db.slots {
		if slot.ProviderID != providerID || !slot.Start.Equal(start) {
			continue
		}
		slot := slot
		if found == nil || (slot.IsAvailable && !found.IsAvailable) {
			found = &slot
		}
	}
	return found, nil
}

func (s memSlots) ListByProvider(ctx context.Context, providerID int64) ([]*model.TimeSlot, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.takeFailure("slots.ListByProvider"); err != nil {
		return nil, err
	}
	var out []*model.TimeSlot
	for _, slot := range s.db.slots {
		if slot.ProviderID == providerID {
			slot := slot
			out = append(out, &slot)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func (s memSlots) ListOpen(ctx context.Context, filter model.SlotFilter) ([]*model.SlotWithProvider, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.takeFailure("slots.ListOpen"); err != nil {
		return nil, err
	}
	var out []*model.SlotWithProvider
	for _, slot := range s.db.slots {
		p := s.db.providers[slot.ProviderID]
		if !slot.IsAvailable || p.ServiceType != filter.ServiceType {
			continue
		}
		if slot.Start.Before(filter.From) || !slot.Start.Before(filter.To) {
			continue
		}
		if filter.LocationID != nil && (p.LocationID == nil || *p.LocationID != *filter.LocationID) {
			continue
		}
		out = append(out, &model.SlotWithProvider{
			SlotID:      slot.ID,
			Start:       slot.Start,
			End:         slot.End,
			ProviderID:  p.ID,
			FullName:    s.db.users[p.UserID].FullName,
			ServiceType: p.ServiceType,
			Experience:  p.Experience,
			Description: p.Description,
			Rating:      p.Rating,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func (s memSlots) Reserve(ctx context.Context, slotID int64) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.takeFailure("slots.Reserve"); err != nil {
		return false, err
	}
	slot, ok := s.db.slots[slotID]
	if !ok || !slot.IsAvailable {
		return false, nil
	}
	slot.IsAvailable = false
	s.db.slots[slotID] = slot
	return true, nil
}

func (s memSlots) Release(ctx context.Context, slotID int64) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.takeFailure("slots.Release"); err != nil {
		return err
	}
	if slot, ok := s.db.slots[slotID]; ok {
		slot.IsAvailable = true
		s.db.slots[slotID] = slot
	}
	return nil
}

func (s memSlots) ReleaseByStart(ctx context.Context, providerID int64, start time.Time) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	held := make(map[int64]bool)
	for _, b := range s.db.bookings {
		if b.SlotID != nil && b.Status != model.BookingStatusCancelled {
			held[*b.SlotID] = true
		}
	}

	var match *model.TimeSlot
	for _, slot := range s.db.slots {
		if slot.ProviderID != providerID || !slot.Start.Equal(start) || slot.IsAvailable || held[slot.ID] {
			continue
		}
		if match == nil || slot.ID < match.ID {
			slot := slot
			match = &slot
		}
	}
	if match == nil {
		return false, nil
	}
	match.IsAvailable = true
	s.db.slots[match.ID] = *match
	return true, nil
}

// bookings

type memBookings struct{ db *memDB }

func (s memBookings) Create(ctx context.Context, booking *model.Booking) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.takeFailure("bookings.Create"); err != nil {
		return err
	}
	for _, b := range s.db.bookings {
		if b.Status == model.BookingStatusCancelled {
			continue
		}
		if b.CustomerID == booking.CustomerID && b.ProviderID == booking.ProviderID && b.ServiceDate.Equal(booking.ServiceDate) {
			return repository.ErrDuplicateBooking
		}
		if b.SlotID != nil && booking.SlotID != nil && *b.SlotID == *booking.SlotID {
			return repository.ErrSlotTaken
		}
	}
	booking.ID = s.db.id()
	booking.CreatedAt = time.Now()
	booking.UpdatedAt = booking.CreatedAt
	s.db.bookings[booking.ID] = *booking
	return nil
}

func (s memBookings) GetByID(ctx context.Context, id int64) (*model.Booking, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if b, ok := s.db.bookings[id]; ok {
		return &b, nil
	}
	return nil, nil
}

func (s memBookings) ExistsActive(ctx context.Context, customerID, providerID int64, serviceDate time.Time) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, b := range s.db.bookings {
		if b.CustomerID == customerID && b.ProviderID == providerID && b.ServiceDate.Equal(serviceDate) && b.Status != model.BookingStatusCancelled {
			return true, nil
		}
	}
	return false, nil
}

func (s memBookings) ExistsActiveAt(ctx context.Context, providerID int64, at time.Time) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, b := range s.db.bookings {
		if b.ProviderID == providerID && b.ServiceDate.Equal(at) && b.Status != model.BookingStatusCancelled {
			return true, nil
		}
	}
	return false, nil
}

func (s memBookings) Transition(ctx context.Context, id int64, to model.BookingStatus, from []model.BookingStatus) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.takeFailure("bookings.Transition"); err != nil {
		return false, err
	}
	b, ok := s.db.bookings[id]
	if !ok || !statusIn(b.Status, from) {
		return false, nil
	}
	b.Status = to
	b.UpdatedAt = time.Now()
	s.db.bookings[id] = b
	return true, nil
}

func (s memBookings) list(match func(model.Booking) bool) []*model.Booking {
	var out []*model.Booking
	for _, b := range s.db.bookings {
		if match(b) {
			b := b
			out = append(out, &b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ServiceDate.After(out[j].ServiceDate) })
	return out
}

func (s memBookings) ListByCustomer(ctx context.Context, customerID int64) ([]*model.Booking, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.takeFailure("bookings.ListByCustomer"); err != nil {
		return nil, err
	}
	return s.list(func(b model.Booking) bool { return b.CustomerID == customerID }), nil
}

func (s memBookings) ListByProvider(ctx context.Context, providerID int64) ([]*model.Booking, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	return s.list(func(b model.Booking) bool { return b.ProviderID == providerID }), nil
}

// reviews

type memReviews struct{ db *memDB }

func (s memReviews) Create(ctx context.Context, review *model.Review) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, r := range s.db.reviews {
		if r.BookingID == review.BookingID {
			return repository.ErrReviewExists
		}
	}
	review.ID = s.db.id()
	review.CreatedAt = time.Now().Add(time.Duration(review.ID) * time.Millisecond)
	s.db.reviews[review.ID] = *review
	return nil
}

func (s memReviews) ListByProvider(ctx context.Context, providerID int64) ([]*model.Review, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []*model.Review
	for _, r := range s.db.reviews {
		if s.db.bookings[r.BookingID].ProviderID == providerID {
			r := r
			out = append(out, &r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func statusIn(s model.BookingStatus, set []model.BookingStatus) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

// notifier and metrics

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *recordingNotifier) record(kind string, b *model.Booking) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, kind)
}

func (n *recordingNotifier) BookingCreated(ctx context.Context, b *model.Booking)   { n.record("created", b) }
func (n *recordingNotifier) BookingConfirmed(ctx context.Context, b *model.Booking) { n.record("confirmed", b) }
func (n *recordingNotifier) BookingCancelled(ctx context.Context, b *model.Booking) { n.record("cancelled", b) }

func (n *recordingNotifier) Events() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.events...)
}

type countingMetrics struct {
	mu          sync.Mutex
	created     int
	rejected    map[string]int
	transitions map[model.BookingStatus]int
	slots       int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{rejected: map[string]int{}, transitions: map[model.BookingStatus]int{}}
}

func (m *countingMetrics) BookingCreated() {
	m.mu.Lock()
	m.created++
	m.mu.Unlock()
}

func (m *countingMetrics) BookingRejected(reason string) {
	m.mu.Lock()
	m.rejected[reason]++
	m.mu.Unlock()
}

func (m *countingMetrics) BookingTransition(status model.BookingStatus) {
	m.mu.Lock()
	m.transitions[status]++
	m.mu.Unlock()
}

func (m *countingMetrics) SlotAdded() {
	m.mu.Lock()
	m.slots++
	m.mu.Unlock()
}

// fixture wires every service over one memDB.

type fixture struct {
	db           *memDB
	notifier     *recordingNotifier
	metrics      *countingMetrics
	auth         *AuthService
	availability *AvailabilityService
	bookings     *BookingService
	matching     *MatchingService
	providers    *ProviderService
	reviews      *ReviewService
}

func newFixture(policy model.AvailabilityPolicy) *fixture {
	return newFixtureWithLogger(policy, zap.NewNop())
}

func newFixtureWithLogger(policy model.AvailabilityPolicy, logger *zap.Logger) *fixture {
	db := newMemDB()
	notifier := &recordingNotifier{}
	metrics := newCountingMetrics()
	retry := ReadRetry{MaxRetries: 1, Base: time.Millisecond}

	users, locations := memUsers{db}, memLocations{db}
	providerStore, slots := memProviders{db}, memSlots{db}
	bookings, reviews := memBookings{db}, memReviews{db}

	availability := NewAvailabilityService(db, providerStore, slots, bookings, metrics, retry, logger)
	return &fixture{
		db:           db,
		notifier:     notifier,
		metrics:      metrics,
		auth:         NewAuthService(db, users, providerStore, locations, AuthConfig{Secret: []byte("test-secret"), TokenTTL: time.Hour, HashCost: 4}, logger),
		availability: availability,
		bookings:     NewBookingService(db, providerStore, slots, bookings, availability, notifier, metrics, retry, logger),
		matching:     NewMatchingService(providerStore, slots, locations, reviews, policy, time.UTC, retry, logger),
		providers:    NewProviderService(db, users, providerStore, locations, reviews, retry, logger),
		reviews:      NewReviewService(db, bookings, reviews, providerStore, logger),
	}
}

func (f *fixture) provider(t *testing.T, username, serviceType, city string) (model.Actor, *model.Provider) {
	t.Helper()
	user, provider, err := f.auth.RegisterProvider(context.Background(),
		Registration{FullName: "Provider " + username, Username: username, Password: "secret"},
		ProviderRegistration{ServiceType: serviceType, Experience: 5, City: city},
	)
	require.NoError(t, err)
	return model.Actor{UserID: user.ID, Role: model.RoleProvider}, provider
}

func (f *fixture) customer(t *testing.T, username string) model.Actor {
	t.Helper()
	user, err := f.auth.RegisterCustomer(context.Background(),
		Registration{FullName: "Customer " + username, Username: username, Password: "secret"},
	)
	require.NoError(t, err)
	return model.Actor{UserID: user.ID, Role: model.RoleCustomer}
}

func (f *fixture) slot(t *testing.T, provider model.Actor, start time.Time) *model.TimeSlot {
	t.Helper()
	slot, err := f.availability.AddSlot(context.Background(), provider, start, start.Add(time.Hour))
	require.NoError(t, err)
	return slot
}

// legacyBooking stores a booking without slot_id, bypassing the service.
func (f *fixture) legacyBooking(t *testing.T, customer model.Actor, providerID int64, at time.Time) *model.Booking {
	t.Helper()
	booking := &model.Booking{
		CustomerID:  customer.UserID,
		ProviderID:  providerID,
		ServiceDate: at,
		Status:      model.BookingStatusPending,
	}
	require.NoError(t, memBookings{f.db}.Create(context.Background(), booking))
	return booking
}

func (f *fixture) slotAvailable(t *testing.T, slotID int64) bool {
	t.Helper()
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	slot, ok := f.db.slots[slotID]
	require.True(t, ok)
	return slot.IsAvailable
}

func (f *fixture) slots() memSlots {
	return memSlots{f.db}
}

// setStatus forces a booking into status, bypassing the transition rules.
func (f *fixture) setStatus(t *testing.T, bookingID int64, status model.BookingStatus) {
	t.Helper()
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	b, ok := f.db.bookings[bookingID]
	require.True(t, ok)
	b.Status = status
	f.db.bookings[bookingID] = b
}

// transientErr looks like a pgconn error that is safe to retry.
type transientErr struct{}

func (transientErr) Error() string     { return "conn busy" }
func (transientErr) SafeToRetry() bool { return true }
