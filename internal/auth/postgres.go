package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Users(ctx context.Context) UserStore     { return &pgUsers{db: s.db} }
func (s *PGStore) Orgs(ctx context.Context) OrgStore       { return &pgOrgs{db: s.db} }
func (s *PGStore) Tokens(ctx context.Context) TokenStore   { return &pgTokens{db: s.db} }
func (s *PGStore) Invites(ctx context.Context) InviteStore { return &pgInvites{db: s.db} }

// asStoreErr maps driver errors onto the package sentinels. Unique
// violations become ErrConflict.
func asStoreErr(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s already exists", ErrConflict, what)
	}
	return err
}

// User store ---------------------------------------------------------------
type pgUsers struct{ db *sql.DB }

const userColumns = `user_id, email, user_name, member_of, level_of_access, password_hash, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*User, error) {
	var u User
	err := row.Scan(&u.UserID, &u.Email, &u.UserName, &u.MemberOf, &u.LevelOfAccess,
		&u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *pgUsers) Create(ctx context.Context, u *User) error {
	row := s.db.QueryRowContext(ctx,
		`insert into users(user_id, email, user_name, member_of, level_of_access, password_hash)
		 values($1,$2,$3,$4,$5,$6)
		 returning created_at, updated_at`,
		u.UserID, u.Email, u.UserName, u.MemberOf, u.LevelOfAccess, u.PasswordHash,
	)
	if err := row.Scan(&u.CreatedAt, &u.UpdatedAt); err != nil {
		return asStoreErr(err, "user "+u.UserID)
	}
	return nil
}

func (s *pgUsers) Find(ctx context.Context, userID string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where user_id=$1`, userID)
	u, err := scanUser(row)
	if err != nil {
		return nil, asStoreErr(err, "user "+userID)
	}
	return u, nil
}

func (s *pgUsers) FindByEmail(ctx context.Context, email string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where email=$1`, email)
	u, err := scanUser(row)
	if err != nil {
		return nil, asStoreErr(err, "user with email "+email)
	}
	return u, nil
}

func (s *pgUsers) List(ctx context.Context) ([]*User, error) {
	return s.queryUsers(ctx, `select `+userColumns+` from users order by user_id asc`)
}

func (s *pgUsers) ListByOrg(ctx context.Context, orgID string) ([]*User, error) {
	return s.queryUsers(ctx,
		`select `+userColumns+` from users where member_of=$1 order by user_id asc`, orgID)
}

func (s *pgUsers) queryUsers(ctx context.Context, query string, args ...any) ([]*User, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, u)
	}
	return res, rows.Err()
}

func (s *pgUsers) Update(ctx context.Context, userID string, upd UserUpdate) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`update users set
			user_id = coalesce($2, user_id),
			user_name = coalesce($3, user_name),
			email = coalesce($4, email),
			member_of = coalesce($5, member_of),
			level_of_access = coalesce($6, level_of_access),
			updated_at = now()
		 where user_id=$1
		 returning `+userColumns,
		userID, upd.UserID, upd.UserName, upd.Email, upd.MemberOf, upd.Level,
	)
	u, err := scanUser(row)
	if err != nil {
		return nil, asStoreErr(err, "user "+userID)
	}
	return u, nil
}

func (s *pgUsers) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	res, err := s.db.ExecContext(ctx,
		`update users set password_hash=$2, updated_at=now() where user_id=$1`,
		userID, passwordHash)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: user %s", ErrNotFound, userID)
	}
	return nil
}

// Mutate runs fn on the current row inside a transaction holding a row lock,
// so concurrent level or membership changes of the same user serialise.
func (s *pgUsers) Mutate(ctx context.Context, userID string, fn func(*User) error) (*User, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`select `+userColumns+` from users where user_id=$1 for update`, userID)
	u, err := scanUser(row)
	if err != nil {
		return nil, asStoreErr(err, "user "+userID)
	}
	if err := fn(u); err != nil {
		return nil, err
	}
	row = tx.QueryRowContext(ctx,
		`update users set
			user_name=$2, email=$3, member_of=$4, level_of_access=$5, updated_at=now()
		 where user_id=$1
		 returning `+userColumns,
		userID, u.UserName, u.Email, u.MemberOf, u.LevelOfAccess,
	)
	u, err = scanUser(row)
	if err != nil {
		return nil, asStoreErr(err, "user "+userID)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *pgUsers) Delete(ctx context.Context, userID string) error {
	res, err := s.db.ExecContext(ctx, `delete from users where user_id=$1`, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: user %s", ErrNotFound, userID)
	}
	return nil
}

// Organisation store -------------------------------------------------------
type pgOrgs struct{ db *sql.DB }

func (s *pgOrgs) Create(ctx context.Context, org *Organisation) error {
	row := s.db.QueryRowContext(ctx,
		`insert into organisations(org_id, name) values($1,$2) returning created_at, updated_at`,
		org.OrgID, org.Name)
	if err := row.Scan(&org.CreatedAt, &org.UpdatedAt); err != nil {
		return asStoreErr(err, "organisation "+org.OrgID)
	}
	return nil
}

func (s *pgOrgs) Find(ctx context.Context, orgID string) (*Organisation, error) {
	row := s.db.QueryRowContext(ctx,
		`select org_id, name, created_at, updated_at from organisations where org_id=$1`, orgID)
	var org Organisation
	if err := row.Scan(&org.OrgID, &org.Name, &org.CreatedAt, &org.UpdatedAt); err != nil {
		return nil, asStoreErr(err, "organisation "+orgID)
	}
	return &org, nil
}

func (s *pgOrgs) List(ctx context.Context) ([]*Organisation, error) {
	rows, err := s.db.QueryContext(ctx,
		`select org_id, name, created_at, updated_at from organisations order by created_at asc`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*Organisation
	for rows.Next() {
		var org Organisation
		if err := rows.Scan(&org.OrgID, &org.Name, &org.CreatedAt, &org.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, &org)
	}
	return res, rows.Err()
}

func (s *pgOrgs) Update(ctx context.Context, orgID string, upd OrgUpdate) (*Organisation, error) {
	row := s.db.QueryRowContext(ctx,
		`update organisations set
			org_id = coalesce($2, org_id),
			name = coalesce($3, name),
			updated_at = now()
		 where org_id=$1
		 returning org_id, name, created_at, updated_at`,
		orgID, upd.OrgID, upd.Name)
	var org Organisation
	if err := row.Scan(&org.OrgID, &org.Name, &org.CreatedAt, &org.UpdatedAt); err != nil {
		return nil, asStoreErr(err, "organisation "+orgID)
	}
	return &org, nil
}

// Delete refuses to remove an organisation that still has members. The
// membership check and the delete run in one transaction.
func (s *pgOrgs) Delete(ctx context.Context, orgID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var members int
	if err := tx.QueryRowContext(ctx,
		`select count(*) from users where member_of=$1`, orgID).Scan(&members); err != nil {
		return err
	}
	if members > 0 {
		return fmt.Errorf("%w: organisation %s still has members", ErrConflict, orgID)
	}
	res, err := tx.ExecContext(ctx, `delete from organisations where org_id=$1`, orgID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: organisation %s", ErrNotFound, orgID)
	}
	return tx.Commit()
}

// Token store --------------------------------------------------------------
type pgTokens struct{ db *sql.DB }

const tokenColumns = `token_id, user_id, issued_at, expires_at, device, location`

func (s *pgTokens) Create(ctx context.Context, t *Token) error {
	_, err := s.db.ExecContext(ctx,
		`insert into tokens(token_id, user_id, issued_at, expires_at, device, location)
		 values($1,$2,$3,$4,$5,$6)`,
		t.TokenID, t.UserID, t.IssuedAt, t.ExpiresAt, t.Device, t.Location)
	return asStoreErr(err, "token")
}

func (s *pgTokens) Find(ctx context.Context, tokenID string) (*Token, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+tokenColumns+` from tokens where token_id=$1`, tokenID)
	var t Token
	if err := row.Scan(&t.TokenID, &t.UserID, &t.IssuedAt, &t.ExpiresAt, &t.Device, &t.Location); err != nil {
		return nil, asStoreErr(err, "token")
	}
	return &t, nil
}

func (s *pgTokens) ListByUser(ctx context.Context, userID string) ([]*Token, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+tokenColumns+` from tokens where user_id=$1 order by issued_at asc`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*Token
	for rows.Next() {
		var t Token
		if err := rows.Scan(&t.TokenID, &t.UserID, &t.IssuedAt, &t.ExpiresAt, &t.Device, &t.Location); err != nil {
			return nil, err
		}
		res = append(res, &t)
	}
	return res, rows.Err()
}

func (s *pgTokens) Delete(ctx context.Context, tokenID string) error {
	res, err := s.db.ExecContext(ctx, `delete from tokens where token_id=$1`, tokenID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: token", ErrNotFound)
	}
	return nil
}

func (s *pgTokens) DeleteByUser(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `delete from tokens where user_id=$1`, userID)
	return err
}

func (s *pgTokens) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `delete from tokens where expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// Invite store -------------------------------------------------------------
type pgInvites struct{ db *sql.DB }

const inviteColumns = `code, issuer_id, add_to, num_registered, created_at`

func (s *pgInvites) Create(ctx context.Context, inv *InviteCode) error {
	row := s.db.QueryRowContext(ctx,
		`insert into invite_codes(code, issuer_id, add_to) values($1,$2,$3) returning created_at`,
		inv.Code, inv.IssuerID, inv.AddTo)
	if err := row.Scan(&inv.CreatedAt); err != nil {
		return asStoreErr(err, "invite code")
	}
	return nil
}

func (s *pgInvites) Find(ctx context.Context, code string) (*InviteCode, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+inviteColumns+` from invite_codes where code=$1`, code)
	var inv InviteCode
	if err := row.Scan(&inv.Code, &inv.IssuerID, &inv.AddTo, &inv.NumRegistered, &inv.CreatedAt); err != nil {
		return nil, asStoreErr(err, "invite code")
	}
	return &inv, nil
}

func (s *pgInvites) List(ctx context.Context) ([]*InviteCode, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+inviteColumns+` from invite_codes order by created_at asc`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*InviteCode
	for rows.Next() {
		var inv InviteCode
		if err := rows.Scan(&inv.Code, &inv.IssuerID, &inv.AddTo, &inv.NumRegistered, &inv.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, &inv)
	}
	return res, rows.Err()
}

func (s *pgInvites) Increment(ctx context.Context, code string) error {
	res, err := s.db.ExecContext(ctx,
		`update invite_codes set num_registered = num_registered + 1 where code=$1`, code)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: invite code", ErrNotFound)
	}
	return nil
}

func (s *pgInvites) Delete(ctx context.Context, code string) error {
	res, err := s.db.ExecContext(ctx, `delete from invite_codes where code=$1`, code)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: invite code", ErrNotFound)
	}
	return nil
}
