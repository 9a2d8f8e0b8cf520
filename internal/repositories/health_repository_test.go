package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cafe-delivery/storefront/internal/domain"
)

func TestDependencyHealthRepositoryAggregatesStatuses(t *testing.T) {
	checks := []DependencyCheck{
		{Name: "storage", Check: func(context.Context) error { return nil }},
		{Name: "cafe_api", Check: func(context.Context) error { return errors.New("502 bad gateway") }},
	}
	repo, err := NewDependencyHealthRepository(checks)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	report, err := repo.Collect(context.Background())
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if report.Status != domain.HealthStatusDegraded {
		t.Fatalf("expected degraded, got %s", report.Status)
	}
	if report.Checks["storage"].Status != domain.HealthStatusOK {
		t.Fatalf("expected storage ok, got %+v", report.Checks["storage"])
	}
	if report.Checks["cafe_api"].Detail != "502 bad gateway" {
		t.Fatalf("unexpected detail %+v", report.Checks["cafe_api"])
	}
}

func TestDependencyHealthRepositoryTimesOut(t *testing.T) {
	checks := []DependencyCheck{{
		Name:    "slow",
		Timeout: 10 * time.Millisecond,
		Check: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}}
	repo, err := NewDependencyHealthRepository(checks)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	report, _ := repo.Collect(context.Background())
	if report.Status != domain.HealthStatusError || report.Checks["slow"].Detail != "timeout" {
		t.Fatalf("expected timeout error, got %+v", report)
	}
}

func TestNewDependencyHealthRepositoryValidatesChecks(t *testing.T) {
	if _, err := NewDependencyHealthRepository(nil); err == nil {
		t.Fatal("expected error for empty checks")
	}
	if _, err := NewDependencyHealthRepository([]DependencyCheck{{Name: "x"}}); err == nil {
		t.Fatal("expected error for missing check func")
	}
	if _, err := NewDependencyHealthRepository([]DependencyCheck{{Check: func(context.Context) error { return nil }}}); err == nil {
		t.Fatal("expected error for missing name")
	}
}
