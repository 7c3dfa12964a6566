package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestIsUniqueViolationPgConn(t *testing.T) {
	err := fmt.Errorf("insert order: %w", &pgconn.PgError{Code: "23505", ConstraintName: "orders_payment_intent_id_key"})
	if !IsUniqueViolation(err, "") {
		t.Fatal("expected unique violation")
	}
	if !IsUniqueViolation(err, "orders_payment_intent_id_key") {
		t.Fatal("expected named constraint match")
	}
	if IsUniqueViolation(&pgconn.PgError{Code: "23503"}, "") {
		t.Fatal("foreign key violation must not match")
	}
}

func TestIsUniqueViolationPQ(t *testing.T) {
	err := &pq.Error{Code: "23505", Constraint: "orders_order_number_key"}
	if !IsUniqueViolation(err, "orders_order_number_key") {
		t.Fatal("expected pq unique violation")
	}
}

func TestIsUniqueViolationSQLite(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file:unique_test?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := conn.Exec(`CREATE TABLE IF NOT EXISTS uniq (code TEXT UNIQUE)`).Error; err != nil {
		t.Fatalf("create table: %v", err)
	}
	if err := conn.Exec(`INSERT INTO uniq (code) VALUES ('a')`).Error; err != nil {
		t.Fatalf("first insert: %v", err)
	}
	err = conn.Exec(`INSERT INTO uniq (code) VALUES ('a')`).Error
	if !IsUniqueViolation(err, "") {
		t.Fatalf("expected sqlite unique violation, got %v", err)
	}
}

func TestIsTransactionConflict(t *testing.T) {
	if !IsTransactionConflict(&pgconn.PgError{Code: "40001"}) {
		t.Fatal("serialization failure should be a conflict")
	}
	if !IsTransactionConflict(fmt.Errorf("wrap: %w", &pgconn.PgError{Code: "40P01"})) {
		t.Fatal("deadlock should be a conflict")
	}
	if IsTransactionConflict(errors.New("boom")) {
		t.Fatal("plain errors are not conflicts")
	}
	if IsTransactionConflict(nil) {
		t.Fatal("nil is not a conflict")
	}
}
