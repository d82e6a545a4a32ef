package postgres

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"serialization failure", &pgconn.PgError{Code: "40001"}, true},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, true},
		{"wrapped serialization failure", fmt.Errorf("commit accept: %w", &pgconn.PgError{Code: "40001"}), true},
		{"concurrent winner on accepted index", &pgconn.PgError{Code: "23505", ConstraintName: oneAcceptedPerLeadIndex}, true},
		{"other unique violation", &pgconn.PgError{Code: "23505", ConstraintName: "services_name_key"}, false},
		{"check violation", &pgconn.PgError{Code: "23514"}, false},
		{"plain error", errors.New("connection reset"), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsRetryable(tc.err); got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestLockingQueriesTakeRowLocks(t *testing.T) {
	for name, query := range map[string]string{
		"lead":       lockLead,
		"assignment": lockAssignment,
		"balance":    lockBalance,
	} {
		if !strings.HasSuffix(strings.TrimSpace(query), "FOR UPDATE") {
			t.Fatalf("%s lock query must end with FOR UPDATE: %s", name, query)
		}
	}
	if strings.Contains(selectLead, "FOR UPDATE") || strings.Contains(selectBalance, "FOR UPDATE") {
		t.Fatal("plain reads must not lock")
	}
}

func TestDebitIsConditionalOnBalance(t *testing.T) {
	if !strings.Contains(debitBalance, "credit_balance >= $2") {
		t.Fatalf("debit must guard against overdraft: %s", debitBalance)
	}
	if strings.Contains(creditBalance, ">=") {
		t.Fatalf("credit must be unconditional: %s", creditBalance)
	}
}

func TestFanOutInsertIgnoresExistingPairs(t *testing.T) {
	if !strings.Contains(insertAssignment, "ON CONFLICT (lead_id, professional_id) DO NOTHING") {
		t.Fatalf("assignment insert must be idempotent per pair: %s", insertAssignment)
	}
}

func TestMarkMissedOnlyTouchesPendingRows(t *testing.T) {
	if !strings.Contains(markPendingMissed, "status = 'PENDING'") || !strings.Contains(markPendingMissed, "id <> $2") {
		t.Fatalf("unexpected missed flip query: %s", markPendingMissed)
	}
}

func TestOutboxClaimSkipsLockedRows(t *testing.T) {
	if !strings.Contains(claimOutbox, "FOR UPDATE SKIP LOCKED") {
		t.Fatalf("claim must skip rows held by another dispatcher: %s", claimOutbox)
	}
}
