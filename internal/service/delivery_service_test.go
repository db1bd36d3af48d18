package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kursadbilgin/cadence-dispatch/internal/domain"
	"github.com/kursadbilgin/cadence-dispatch/internal/observability"
	"github.com/kursadbilgin/cadence-dispatch/internal/provider"
)

func newTestDeliveryService(t *testing.T, store *memStore, gate *fakeGate) *DeliveryService {
	t.Helper()

	svc, err := NewDeliveryService(store.deliveryRepo(), store.recipientRepo(), store.transactor(), gate, &fakeLinker{}, nil)
	if err != nil {
		t.Fatalf("NewDeliveryService() error = %v", err)
	}
	return svc
}

func TestDeliveryServiceSendOneHappyPath(t *testing.T) {
	t.Parallel()

	store := newMemStore(recipientFixture("r-1", "Mona", "mona@example.com", true))
	gate := &fakeGate{}
	svc := newTestDeliveryService(t, store, gate)

	fixed := time.Date(2026, time.March, 14, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	if err := svc.SendOne(context.Background(), "r-1", "Hi", "<p>Hello</p>", false); err != nil {
		t.Fatalf("SendOne() error = %v", err)
	}

	records := store.records()
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1", len(records))
	}
	if !records[0].Delivered {
		t.Fatal("record should be delivered")
	}
	if records[0].Body != "<p>Hello</p>" {
		t.Fatalf("body = %q, want untouched body", records[0].Body)
	}

	got := store.recipient("r-1").LastNotifiedAt
	if got == nil || !got.Equal(fixed) {
		t.Fatalf("LastNotifiedAt = %v, want %v", got, fixed)
	}
	if sent := gate.sentTo(); len(sent) != 1 || sent[0] != "mona@example.com" {
		t.Fatalf("sent to = %v, want [mona@example.com]", sent)
	}
}

func TestDeliveryServiceSendOneAppendsUnsubscribeFooter(t *testing.T) {
	t.Parallel()

	store := newMemStore(recipientFixture("r-1", "Mona", "mona@example.com", true))
	gate := &fakeGate{}
	svc := newTestDeliveryService(t, store, gate)

	if err := svc.SendOne(context.Background(), "r-1", "Welcome!", "<p>Hi</p>", true); err != nil {
		t.Fatalf("SendOne() error = %v", err)
	}

	body := store.records()[0].Body
	if !strings.HasPrefix(body, "<p>Hi</p><p>To unsubscribe") {
		t.Fatalf("body = %q, want footer appended", body)
	}
	if !strings.Contains(body, "token=tok-r-1") {
		t.Fatalf("body = %q, want recipient token", body)
	}
	if gate.sent[0].HTMLBody != body {
		t.Fatal("transport should receive the persisted body")
	}
}

func TestDeliveryServiceSendOneUnknownRecipient(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	gate := &fakeGate{}
	svc := newTestDeliveryService(t, store, gate)

	err := svc.SendOne(context.Background(), "missing", "Hi", "<p>Hello</p>", true)
	if !errors.Is(err, domain.ErrRecipientNotFound) {
		t.Fatalf("SendOne() error = %v, want ErrRecipientNotFound", err)
	}
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("SendOne() error = %v, want ErrNotFound in chain", err)
	}
	if store.createCalls != 0 {
		t.Fatalf("create calls = %d, want 0", store.createCalls)
	}
	if len(gate.sentTo()) != 0 {
		t.Fatal("transport should not be called")
	}
}

func TestDeliveryServiceSendOneTransportFailure(t *testing.T) {
	t.Parallel()

	store := newMemStore(recipientFixture("r-1", "Mona", "mona@example.com", true))
	gate := &fakeGate{deliverFn: func(ctx context.Context, recipientID string, msg provider.Message) error {
		return context.DeadlineExceeded
	}}
	svc := newTestDeliveryService(t, store, gate)
	metrics := observability.NewMetrics()
	svc.SetMetrics(metrics)

	err := svc.SendOne(context.Background(), "r-1", "Hi", "<p>Hello</p>", false)
	if !errors.Is(err, domain.ErrDeliveryFailed) {
		t.Fatalf("SendOne() error = %v, want ErrDeliveryFailed", err)
	}

	records := store.records()
	if len(records) != 1 {
		t.Fatalf("records = %d, want the undelivered record to remain", len(records))
	}
	if records[0].Delivered {
		t.Fatal("record should stay undelivered")
	}
	if store.recipient("r-1").LastNotifiedAt != nil {
		t.Fatal("LastNotifiedAt should not change on failure")
	}

	assertMetric(t, metrics, `cadence_dispatch_deliveries_failed_total{mode="single",reason="timeout"} 1`)
}

func TestDeliveryServiceSendOneRecordCreateFailure(t *testing.T) {
	t.Parallel()

	store := newMemStore(recipientFixture("r-1", "Mona", "mona@example.com", true))
	store.createFn = func(d *domain.DeliveryRecord) error { return errors.New("disk full") }
	gate := &fakeGate{}
	svc := newTestDeliveryService(t, store, gate)

	err := svc.SendOne(context.Background(), "r-1", "Hi", "<p>Hello</p>", false)
	if !errors.Is(err, domain.ErrStorage) {
		t.Fatalf("SendOne() error = %v, want ErrStorage", err)
	}
	if len(gate.sentTo()) != 0 {
		t.Fatal("transport should not be called when the record cannot be stored")
	}
}

func TestDeliveryServiceSendOneReconcileFailureRollsBack(t *testing.T) {
	t.Parallel()

	store := newMemStore(recipientFixture("r-1", "Mona", "mona@example.com", true))
	store.updateLastNotifiedFn = func(ids []string, at time.Time) error { return errors.New("deadlock") }
	svc := newTestDeliveryService(t, store, &fakeGate{})

	err := svc.SendOne(context.Background(), "r-1", "Hi", "<p>Hello</p>", false)
	if !errors.Is(err, domain.ErrStorage) {
		t.Fatalf("SendOne() error = %v, want ErrStorage", err)
	}
	if errors.Is(err, domain.ErrDeliveryFailed) {
		t.Fatal("storage failure must not be reported as a delivery failure")
	}
	if store.records()[0].Delivered {
		t.Fatal("delivered flag should be rolled back with last-notified")
	}
}

func TestDeliveryServiceSendOneValidatesPayload(t *testing.T) {
	t.Parallel()

	store := newMemStore(recipientFixture("r-1", "Mona", "mona@example.com", true))
	svc := newTestDeliveryService(t, store, &fakeGate{})

	err := svc.SendOne(context.Background(), "r-1", " ", "<p>Hello</p>", false)
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("SendOne() error = %v, want ErrValidation", err)
	}
	if store.createCalls != 0 {
		t.Fatal("invalid payload should not be persisted")
	}
}

func TestDeliveryServiceListing(t *testing.T) {
	t.Parallel()

	store := newMemStore(
		recipientFixture("r-1", "Mona", "mona@example.com", true),
		recipientFixture("r-2", "Omar", "omar@example.com", true),
	)
	svc := newTestDeliveryService(t, store, &fakeGate{})

	for _, id := range []string{"r-1", "r-2", "r-1"} {
		if err := svc.SendOne(context.Background(), id, "Hi", "<p>Hello</p>", false); err != nil {
			t.Fatalf("SendOne(%s) error = %v", id, err)
		}
	}

	all, err := svc.ListAll(context.Background())
	if err != nil {
		t.Fatalf("ListAll() error = %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("ListAll() = %d records, want 3", len(all))
	}

	mine, err := svc.ListByRecipient(context.Background(), "r-1")
	if err != nil {
		t.Fatalf("ListByRecipient() error = %v", err)
	}
	if len(mine) != 2 {
		t.Fatalf("ListByRecipient() = %d records, want 2", len(mine))
	}

	none, err := svc.ListByRecipient(context.Background(), "r-404")
	if err != nil || len(none) != 0 {
		t.Fatalf("ListByRecipient(unknown) = %v, %v, want empty", none, err)
	}
}
