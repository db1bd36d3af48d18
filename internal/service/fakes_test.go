package service

import (
	"context"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kursadbilgin/cadence-dispatch/internal/domain"
	"github.com/kursadbilgin/cadence-dispatch/internal/observability"
	"github.com/kursadbilgin/cadence-dispatch/internal/provider"
	"github.com/kursadbilgin/cadence-dispatch/internal/repository"
)

// memStore is an in-memory recipient directory and delivery record store.
// WithinTx snapshots state and restores it when fn fails.
type memStore struct {
	mu         sync.Mutex
	recipients map[string]domain.Recipient
	order      []string
	deliveries []domain.DeliveryRecord

	createCalls      int
	createBatchCalls int
	getByIDsCalls    int
	txCalls          int

	beginFn              func(ctx context.Context) error
	createFn             func(d *domain.DeliveryRecord) error
	createBatchFn        func(records []*domain.DeliveryRecord) error
	getByIDFn            func(id string) error
	getByIDsFn           func(ids []string) error
	listFn               func(filter repository.RecipientFilter) error
	markDeliveredFn      func(ids []string) error
	updateLastNotifiedFn func(ids []string, at time.Time) error
	createRecipientFn    func(r *domain.Recipient) error
	setOptedInFn         func(id string, optedIn bool) error
}

func newMemStore(recipients ...domain.Recipient) *memStore {
	s := &memStore{recipients: make(map[string]domain.Recipient)}
	for _, r := range recipients {
		s.recipients[r.ID] = r
		s.order = append(s.order, r.ID)
	}
	return s
}

func (s *memStore) deliveryRepo() *memDeliveryRepo   { return &memDeliveryRepo{s: s} }
func (s *memStore) recipientRepo() *memRecipientRepo { return &memRecipientRepo{s: s} }
func (s *memStore) transactor() *memTransactor       { return &memTransactor{s: s} }

func (s *memStore) recipient(id string) domain.Recipient {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recipients[id]
}

func (s *memStore) records() []domain.DeliveryRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.deliveries)
}

func (s *memStore) recordsFor(recipientID string) []domain.DeliveryRecord {
	var out []domain.DeliveryRecord
	for _, d := range s.records() {
		if d.RecipientID == recipientID {
			out = append(out, d)
		}
	}
	return out
}

type memDeliveryRepo struct{ s *memStore }

func (r *memDeliveryRepo) Create(ctx context.Context, d *domain.DeliveryRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.createCalls++
	if r.s.createFn != nil {
		if err := r.s.createFn(d); err != nil {
			return err
		}
	}
	d.CreatedAt = time.Now().UTC()
	d.UpdatedAt = d.CreatedAt
	r.s.deliveries = append(r.s.deliveries, *d)
	return nil
}

func (r *memDeliveryRepo) CreateBatch(ctx context.Context, records []*domain.DeliveryRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.createBatchCalls++
	if r.s.createBatchFn != nil {
		if err := r.s.createBatchFn(records); err != nil {
			return err
		}
	}
	for _, d := range records {
		d.CreatedAt = time.Now().UTC()
		d.UpdatedAt = d.CreatedAt
		r.s.deliveries = append(r.s.deliveries, *d)
	}
	return nil
}

func (r *memDeliveryRepo) MarkDelivered(ctx context.Context, ids []string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.markDeliveredFn != nil {
		if err := r.s.markDeliveredFn(ids); err != nil {
			return err
		}
	}
	for i := range r.s.deliveries {
		if slices.Contains(ids, r.s.deliveries[i].ID) && !r.s.deliveries[i].Delivered {
			r.s.deliveries[i].Delivered = true
		}
	}
	return nil
}

func (r *memDeliveryRepo) List(ctx context.Context) ([]domain.DeliveryRecord, error) {
	out := r.s.records()
	slices.Reverse(out)
	return out, nil
}

func (r *memDeliveryRepo) ListByRecipient(ctx context.Context, recipientID string) ([]domain.DeliveryRecord, error) {
	out := r.s.recordsFor(recipientID)
	slices.Reverse(out)
	return out, nil
}

type memRecipientRepo struct{ s *memStore }

func (r *memRecipientRepo) Create(ctx context.Context, rec *domain.Recipient) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.createRecipientFn != nil {
		if err := r.s.createRecipientFn(rec); err != nil {
			return err
		}
	}
	for _, existing := range r.s.recipients {
		if existing.Email == rec.Email {
			return domain.ErrConflict
		}
	}
	r.s.recipients[rec.ID] = *rec
	r.s.order = append(r.s.order, rec.ID)
	return nil
}

func (r *memRecipientRepo) GetByID(ctx context.Context, id string) (*domain.Recipient, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.getByIDFn != nil {
		if err := r.s.getByIDFn(id); err != nil {
			return nil, err
		}
	}
	rec, ok := r.s.recipients[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &rec, nil
}

func (r *memRecipientRepo) GetByIDs(ctx context.Context, ids []string) ([]domain.Recipient, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.getByIDsCalls++
	if r.s.getByIDsFn != nil {
		if err := r.s.getByIDsFn(ids); err != nil {
			return nil, err
		}
	}
	var out []domain.Recipient
	for _, id := range ids {
		if rec, ok := r.s.recipients[id]; ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *memRecipientRepo) List(ctx context.Context, filter repository.RecipientFilter) ([]domain.Recipient, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.listFn != nil {
		if err := r.s.listFn(filter); err != nil {
			return nil, err
		}
	}
	var out []domain.Recipient
	for _, id := range r.s.order {
		rec := r.s.recipients[id]
		if filter.OptedIn != nil && rec.OptedIn != *filter.OptedIn {
			continue
		}
		if filter.AnniversaryMonth != 0 || filter.AnniversaryDay != 0 {
			if rec.Anniversary == nil {
				continue
			}
			if filter.AnniversaryMonth != 0 && rec.Anniversary.Month() != filter.AnniversaryMonth {
				continue
			}
			if filter.AnniversaryDay != 0 && rec.Anniversary.Day() != filter.AnniversaryDay {
				continue
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r *memRecipientRepo) UpdateLastNotified(ctx context.Context, ids []string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.updateLastNotifiedFn != nil {
		if err := r.s.updateLastNotifiedFn(ids, at); err != nil {
			return err
		}
	}
	for _, id := range ids {
		if rec, ok := r.s.recipients[id]; ok {
			stamp := at
			rec.LastNotifiedAt = &stamp
			r.s.recipients[id] = rec
		}
	}
	return nil
}

func (r *memRecipientRepo) SetOptedIn(ctx context.Context, id string, optedIn bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.setOptedInFn != nil {
		if err := r.s.setOptedInFn(id, optedIn); err != nil {
			return err
		}
	}
	rec, ok := r.s.recipients[id]
	if !ok {
		return domain.ErrNotFound
	}
	rec.OptedIn = optedIn
	r.s.recipients[id] = rec
	return nil
}

type memTransactor struct{ s *memStore }

func (t *memTransactor) WithinTx(ctx context.Context, fn repository.TxFunc) error {
	if t.s.beginFn != nil {
		if err := t.s.beginFn(ctx); err != nil {
			return err
		}
	}
	t.s.mu.Lock()
	t.s.txCalls++
	savedRecipients := make(map[string]domain.Recipient, len(t.s.recipients))
	for k, v := range t.s.recipients {
		savedRecipients[k] = v
	}
	savedDeliveries := slices.Clone(t.s.deliveries)
	t.s.mu.Unlock()

	if err := fn(ctx, t.s.deliveryRepo(), t.s.recipientRepo()); err != nil {
		t.s.mu.Lock()
		t.s.recipients = savedRecipients
		t.s.deliveries = savedDeliveries
		t.s.mu.Unlock()
		return err
	}
	return nil
}

// fakeGate mimics provider.Gate: failures come back as *domain.DeliveryError.
type fakeGate struct {
	mu        sync.Mutex
	deliverFn func(ctx context.Context, recipientID string, msg provider.Message) error
	sent      []provider.Message
}

func (g *fakeGate) Deliver(ctx context.Context, recipientID string, msg provider.Message) (*provider.ProviderResponse, error) {
	if g.deliverFn != nil {
		if err := g.deliverFn(ctx, recipientID, msg); err != nil {
			return nil, &domain.DeliveryError{RecipientID: recipientID, Cause: err}
		}
	}
	g.mu.Lock()
	g.sent = append(g.sent, msg)
	g.mu.Unlock()
	return &provider.ProviderResponse{MessageID: "msg-" + recipientID}, nil
}

func (g *fakeGate) sentTo() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, 0, len(g.sent))
	for _, m := range g.sent {
		out = append(out, m.To)
	}
	slices.Sort(out)
	return out
}

type fakeLinker struct {
	urlFn func(recipientID string) (string, error)
}

func (f *fakeLinker) UnsubscribeURL(recipientID string) (string, error) {
	if f.urlFn != nil {
		return f.urlFn(recipientID)
	}
	return "https://dispatch.example.com/v1/recipients/unsubscribe?token=tok-" + recipientID, nil
}

type fakeGenerator struct {
	calls      int
	generateFn func(ctx context.Context, kind domain.PromptKind) (string, error)
}

func (f *fakeGenerator) Generate(ctx context.Context, kind domain.PromptKind) (string, error) {
	f.calls++
	if f.generateFn != nil {
		return f.generateFn(ctx, kind)
	}
	return "<p>generated " + kind.String() + "</p>", nil
}

type fakeVerifier struct {
	verifyFn func(token string) (string, error)
}

func (f *fakeVerifier) Verify(token string) (string, error) {
	if f.verifyFn != nil {
		return f.verifyFn(token)
	}
	return token, nil
}

type fakeSingleSender struct {
	sendOneFn func(ctx context.Context, recipientID, subject, body string, includeUnsubscribe bool) error
}

func (f *fakeSingleSender) SendOne(ctx context.Context, recipientID, subject, body string, includeUnsubscribe bool) error {
	if f.sendOneFn != nil {
		return f.sendOneFn(ctx, recipientID, subject, body, includeUnsubscribe)
	}
	return nil
}

type fakeBatchSender struct {
	calls       int
	items       []domain.BatchItem
	sendBatchFn func(ctx context.Context, items []domain.BatchItem) (domain.BatchResult, error)
}

func (f *fakeBatchSender) SendBatch(ctx context.Context, items []domain.BatchItem) (domain.BatchResult, error) {
	f.calls++
	f.items = items
	if f.sendBatchFn != nil {
		return f.sendBatchFn(ctx, items)
	}
	return domain.BatchResult{Attempted: len(items), Delivered: len(items)}, nil
}

func recipientFixture(id, name, email string, optedIn bool) domain.Recipient {
	return domain.Recipient{ID: id, Name: name, Email: email, OptedIn: optedIn}
}

func dateOf(year int, month time.Month, day int) *time.Time {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return &t
}

func assertMetric(t *testing.T, metrics *observability.Metrics, line string) {
	t.Helper()

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if !strings.Contains(rec.Body.String(), line) {
		t.Fatalf("metrics output missing %q:\n%s", line, rec.Body.String())
	}
}
