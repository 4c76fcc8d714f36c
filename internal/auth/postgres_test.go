package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
)

func userRows(u User) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"user_id", "email", "user_name", "member_of", "level_of_access",
		"password_hash", "created_at", "updated_at",
	}).AddRow(u.UserID, u.Email, u.UserName, u.MemberOf, u.LevelOfAccess,
		u.PasswordHash, u.CreatedAt, u.UpdatedAt)
}

func TestPGFindUserNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("select user_id, email, user_name, member_of, level_of_access, password_hash, created_at, updated_at from users where user_id=").
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{
			"user_id", "email", "user_name", "member_of", "level_of_access",
			"password_hash", "created_at", "updated_at",
		}))

	store := NewPGStore(db)
	_, err = store.Users(context.Background()).Find(context.Background(), "ghost")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGCreateUserConflict(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("insert into users").
		WithArgs("mia", "mia@example.com", "", "org:public", 0, "hash").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_pkey"})

	store := NewPGStore(db)
	err = store.Users(context.Background()).Create(context.Background(), &User{
		UserID: "mia", Email: "mia@example.com", MemberOf: "org:public", PasswordHash: "hash",
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("want ErrConflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGMutateRunsInTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	before := User{UserID: "mia", Email: "mia@example.com", MemberOf: "org:public",
		LevelOfAccess: 0, PasswordHash: "h", CreatedAt: now, UpdatedAt: now}
	after := before
	after.LevelOfAccess = 1

	mock.ExpectBegin()
	mock.ExpectQuery("select user_id, .* from users where user_id=.* for update").
		WithArgs("mia").
		WillReturnRows(userRows(before))
	mock.ExpectQuery("update users set").
		WithArgs("mia", "", "mia@example.com", "org:public", 1).
		WillReturnRows(userRows(after))
	mock.ExpectCommit()

	store := NewPGStore(db)
	got, err := store.Users(context.Background()).Mutate(context.Background(), "mia", func(u *User) error {
		u.LevelOfAccess++
		return nil
	})
	if err != nil {
		t.Fatalf("Mutate: %v", err)
	}
	if got.LevelOfAccess != 1 {
		t.Fatalf("level = %d, want 1", got.LevelOfAccess)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGMutateRollsBackOnCallbackError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("select user_id, .* for update").
		WithArgs("mia").
		WillReturnRows(userRows(User{UserID: "mia", MemberOf: "org:public"}))
	mock.ExpectRollback()

	store := NewPGStore(db)
	boom := errors.New("nope")
	_, err = store.Users(context.Background()).Mutate(context.Background(), "mia", func(u *User) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("want callback error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGDeleteOrgWithMembers(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("select count").
		WithArgs("org:acme").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectRollback()

	store := NewPGStore(db)
	err = store.Orgs(context.Background()).Delete(context.Background(), "org:acme")
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("want ErrConflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGDeleteExpiredTokens(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	now := time.Now()
	mock.ExpectExec("delete from tokens where expires_at").
		WithArgs(now).
		WillReturnResult(sqlmock.NewResult(0, 3))

	store := NewPGStore(db)
	n, err := store.Tokens(context.Background()).DeleteExpired(context.Background(), now)
	if err != nil {
		t.Fatalf("DeleteExpired: %v", err)
	}
	if n != 3 {
		t.Fatalf("deleted %d, want 3", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
