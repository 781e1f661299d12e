package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestTranslateWriteErr_UniqueViolation(t *testing.T) {
	err := translateWriteErr(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"}))
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	other := errors.New("boom")
	if got := translateWriteErr(other); got != other {
		t.Fatalf("unexpected translation %v", got)
	}
	if translateWriteErr(nil) != nil {
		t.Fatalf("nil must stay nil")
	}
}

func TestPageBounds(t *testing.T) {
	cases := []struct {
		page          Page
		limit, offset int
	}{
		{Page{}, 20, 0},
		{Page{Limit: 5, Offset: 10}, 5, 10},
		{Page{Limit: 1000, Offset: -3}, 100, 0},
	}
	for _, tc := range cases {
		limit, offset := tc.page.bounds()
		if limit != tc.limit || offset != tc.offset {
			t.Fatalf("%+v: got %d/%d", tc.page, limit, offset)
		}
	}
}

func TestWhereBuilder(t *testing.T) {
	w := &whereBuilder{}
	if w.sql() != "1=1" {
		t.Fatalf("empty builder should match everything")
	}
	w.add("status=$%d", "active")
	w.addSearch("  ", "name")
	w.addSearch("Ana", "name", "email")
	w.add("(assigned_to=$%[1]d OR created_by=$%[1]d)", "u-1")

	want := "status=$1 AND (LOWER(name) LIKE $2 OR LOWER(email) LIKE $2) AND (assigned_to=$3 OR created_by=$3)"
	if got := w.sql(); got != want {
		t.Fatalf("unexpected where clause:\n got %s\nwant %s", got, want)
	}
	if len(w.args) != 3 || w.args[1] != "%ana%" {
		t.Fatalf("unexpected args %v", w.args)
	}
}
