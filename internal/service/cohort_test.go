package service

import (
	"context"
	"errors"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/kursadbilgin/cadence-dispatch/internal/domain"
	"github.com/kursadbilgin/cadence-dispatch/internal/repository"
)

func TestCohortSelectorAnniversaryUsesSchedulerTimezone(t *testing.T) {
	t.Parallel()

	tokyo, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Fatalf("LoadLocation() error = %v", err)
	}

	today := recipientFixture("r-1", "Hana", "hana@example.com", true)
	today.Anniversary = dateOf(2019, time.March, 15)
	yesterday := recipientFixture("r-2", "Ken", "ken@example.com", true)
	yesterday.Anniversary = dateOf(2019, time.March, 14)
	optedOut := recipientFixture("r-3", "Yui", "yui@example.com", false)
	optedOut.Anniversary = dateOf(2021, time.March, 15)
	noDate := recipientFixture("r-4", "Ren", "ren@example.com", true)

	store := newMemStore(today, yesterday, optedOut, noDate)
	selector, err := NewCohortSelector(store.recipientRepo(), tokyo)
	if err != nil {
		t.Fatalf("NewCohortSelector() error = %v", err)
	}
	// 20:00 UTC on the 14th is already the 15th in Tokyo.
	selector.now = func() time.Time { return time.Date(2026, time.March, 14, 20, 0, 0, 0, time.UTC) }

	cohort, err := selector.AnniversaryToday(context.Background())
	if err != nil {
		t.Fatalf("AnniversaryToday() error = %v", err)
	}
	if len(cohort) != 1 || cohort[0].ID != "r-1" {
		t.Fatalf("AnniversaryToday() = %v, want only r-1", cohort)
	}
}

func TestCohortSelectorAnniversaryFilter(t *testing.T) {
	t.Parallel()

	var got repository.RecipientFilter
	store := newMemStore()
	store.listFn = func(filter repository.RecipientFilter) error {
		got = filter
		return nil
	}

	selector, err := NewCohortSelector(store.recipientRepo(), nil)
	if err != nil {
		t.Fatalf("NewCohortSelector() error = %v", err)
	}
	selector.now = func() time.Time { return time.Date(2026, time.February, 28, 23, 59, 0, 0, time.UTC) }

	if _, err := selector.AnniversaryToday(context.Background()); err != nil {
		t.Fatalf("AnniversaryToday() error = %v", err)
	}
	if got.OptedIn == nil || !*got.OptedIn {
		t.Fatal("anniversary cohort must be restricted to opted-in recipients")
	}
	if got.AnniversaryMonth != time.February || got.AnniversaryDay != 28 {
		t.Fatalf("filter = %+v, want February 28", got)
	}
}

func TestCohortSelectorOptedIn(t *testing.T) {
	t.Parallel()

	store := newMemStore(
		recipientFixture("r-1", "A", "a@example.com", true),
		recipientFixture("r-2", "B", "b@example.com", false),
		recipientFixture("r-3", "C", "c@example.com", true),
	)
	selector, err := NewCohortSelector(store.recipientRepo(), time.UTC)
	if err != nil {
		t.Fatalf("NewCohortSelector() error = %v", err)
	}

	cohort, err := selector.OptedIn(context.Background())
	if err != nil {
		t.Fatalf("OptedIn() error = %v", err)
	}
	if len(cohort) != 2 || cohort[0].ID != "r-1" || cohort[1].ID != "r-3" {
		t.Fatalf("OptedIn() = %v, want [r-1 r-3]", cohort)
	}
}

func TestCohortSelectorStorageError(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	store.listFn = func(repository.RecipientFilter) error { return errors.New("db down") }
	selector, err := NewCohortSelector(store.recipientRepo(), time.UTC)
	if err != nil {
		t.Fatalf("NewCohortSelector() error = %v", err)
	}

	if _, err := selector.OptedIn(context.Background()); !errors.Is(err, domain.ErrStorage) {
		t.Fatalf("OptedIn() error = %v, want ErrStorage", err)
	}
	if _, err := selector.AnniversaryToday(context.Background()); !errors.Is(err, domain.ErrStorage) {
		t.Fatalf("AnniversaryToday() error = %v, want ErrStorage", err)
	}
}

func TestNewCohortSelectorRequiresRepository(t *testing.T) {
	t.Parallel()

	if _, err := NewCohortSelector(nil, time.UTC); err == nil {
		t.Fatal("expected error for nil repository")
	}
}
