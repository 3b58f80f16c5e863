package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"gatekey.org/internal/iam"
	"gatekey.org/internal/ids"
	"gatekey.org/internal/perm"
)

// --- sessions ---

func scanSession(row interface{ Scan(...any) error }) (iam.Session, error) {
	var (
		s         iam.Session
		ip        sql.NullString
		userAgent sql.NullString
		lastSeen  sql.NullTime
		revoked   sql.NullTime
	)
	if err := row.Scan(&s.ID, &s.UserID, &ip, &userAgent, &lastSeen, &revoked, &s.CreatedAt); err != nil {
		return iam.Session{}, err
	}
	s.IP = ip.String
	s.UserAgent = userAgent.String
	s.LastSeenAt = timePtr(lastSeen)
	s.RevokedAt = timePtr(revoked)
	return s, nil
}

func (s *Store) CreateSession(ctx context.Context, sess iam.Session) (iam.Session, error) {
	if s.db == nil {
		return iam.Session{}, errors.New("database connection unavailable")
	}
	out, err := scanSession(s.db.QueryRowContext(ctx, `
		insert into sessions (id, user_id, ip, user_agent)
		values ($1, $2, $3, $4)
		returning id, user_id, ip, user_agent, last_seen_at, revoked_at, created_at
	`, sess.ID, sess.UserID, nullIfEmpty(sess.IP), nullIfEmpty(sess.UserAgent)))
	if err != nil {
		return iam.Session{}, mapWriteErr(err)
	}
	return out, nil
}

func (s *Store) GetSession(ctx context.Context, id string) (iam.Session, error) {
	if s.db == nil {
		return iam.Session{}, errors.New("database connection unavailable")
	}
	out, err := scanSession(s.db.QueryRowContext(ctx, `
		select id, user_id, ip, user_agent, last_seen_at, revoked_at, created_at
		from sessions
		where id = $1
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return iam.Session{}, iam.ErrNotFound
	}
	return out, err
}

func (s *Store) ListSessions(ctx context.Context, userID *string, page iam.Page) ([]iam.Session, int, error) {
	if s.db == nil {
		return nil, 0, errors.New("database connection unavailable")
	}
	var (
		total int
		err   error
	)
	if userID != nil {
		total, err = s.countRows(ctx, `select count(*) from sessions where user_id = $1`, *userID)
	} else {
		total, err = s.countRows(ctx, `select count(*) from sessions`)
	}
	if err != nil {
		return nil, 0, err
	}

	query := `
		select id, user_id, ip, user_agent, last_seen_at, revoked_at, created_at
		from sessions
		order by created_at desc
		limit $1 offset $2
	`
	args := []any{page.Limit, page.Offset()}
	if userID != nil {
		query = `
			select id, user_id, ip, user_agent, last_seen_at, revoked_at, created_at
			from sessions
			where user_id = $1
			order by created_at desc
			limit $2 offset $3
		`
		args = []any{*userID, page.Limit, page.Offset()}
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var sessions []iam.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, 0, err
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return sessions, total, nil
}

func (s *Store) RevokeSession(ctx context.Context, id string, at time.Time) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	res, err := s.db.ExecContext(ctx, `
		update sessions set revoked_at = $1
		where id = $2 and revoked_at is null
	`, at, id)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res)
}

func (s *Store) TouchSession(ctx context.Context, id string, at time.Time) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	res, err := s.db.ExecContext(ctx, `
		update sessions set last_seen_at = $1
		where id = $2
	`, at, id)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res)
}

// --- refresh tokens ---

func (s *Store) CreateRefreshToken(ctx context.Context, tok iam.RefreshToken) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	_, err := s.db.ExecContext(ctx, `
		insert into refresh_tokens (id, user_id, session_id, token_hash, issued_at, expires_at)
		values ($1, $2, $3, $4, $5, $6)
	`, tok.ID, tok.UserID, tok.SessionID, tok.TokenHash, tok.IssuedAt, tok.ExpiresAt)
	return mapWriteErr(err)
}

func (s *Store) FindRefreshToken(ctx context.Context, id string) (iam.RefreshToken, error) {
	if s.db == nil {
		return iam.RefreshToken{}, errors.New("database connection unavailable")
	}
	var (
		tok     iam.RefreshToken
		revoked sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		select id, user_id, session_id, token_hash, issued_at, expires_at, revoked_at
		from refresh_tokens
		where id = $1
	`, id).Scan(&tok.ID, &tok.UserID, &tok.SessionID, &tok.TokenHash, &tok.IssuedAt, &tok.ExpiresAt, &revoked)
	if errors.Is(err, sql.ErrNoRows) {
		return iam.RefreshToken{}, iam.ErrNotFound
	}
	if err != nil {
		return iam.RefreshToken{}, err
	}
	tok.RevokedAt = timePtr(revoked)
	return tok, nil
}

func (s *Store) RevokeRefreshToken(ctx context.Context, id string, at time.Time) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	res, err := s.db.ExecContext(ctx, `
		update refresh_tokens set revoked_at = $1
		where id = $2 and revoked_at is null
	`, at, id)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res)
}

func (s *Store) RevokeSessionRefreshTokens(ctx context.Context, sessionID string, at time.Time) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	_, err := s.db.ExecContext(ctx, `
		update refresh_tokens set revoked_at = $1
		where session_id = $2 and revoked_at is null
	`, at, sessionID)
	return err
}

// --- token denylist ---

func (s *Store) AddDenylistEntry(ctx context.Context, entry iam.DenylistEntry) (iam.DenylistEntry, error) {
	if s.db == nil {
		return iam.DenylistEntry{}, errors.New("database connection unavailable")
	}
	id := entry.ID
	if id == "" {
		id = ids.New()
	}
	var (
		out    iam.DenylistEntry
		reason sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		insert into token_denylist (id, jti, reason, expires_at)
		values ($1, $2, $3, $4)
		returning id, jti, reason, expires_at, created_at
	`, id, entry.JTI, entry.Reason, entry.ExpiresAt).
		Scan(&out.ID, &out.JTI, &reason, &out.ExpiresAt, &out.CreatedAt)
	if err != nil {
		return iam.DenylistEntry{}, mapWriteErr(err)
	}
	out.Reason = reason.String
	return out, nil
}

func (s *Store) ListDenylist(ctx context.Context, page iam.Page) ([]iam.DenylistEntry, int, error) {
	if s.db == nil {
		return nil, 0, errors.New("database connection unavailable")
	}
	total, err := s.countRows(ctx, `select count(*) from token_denylist`)
	if err != nil {
		return nil, 0, err
	}
	rows, err := s.db.QueryContext(ctx, `
		select id, jti, reason, expires_at, created_at
		from token_denylist
		order by created_at desc
		limit $1 offset $2
	`, page.Limit, page.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var entries []iam.DenylistEntry
	for rows.Next() {
		var (
			entry  iam.DenylistEntry
			reason sql.NullString
		)
		if err := rows.Scan(&entry.ID, &entry.JTI, &reason, &entry.ExpiresAt, &entry.CreatedAt); err != nil {
			return nil, 0, err
		}
		entry.Reason = reason.String
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

func (s *Store) DeleteDenylistEntry(ctx context.Context, id string) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	res, err := s.db.ExecContext(ctx, `delete from token_denylist where id = $1`, id)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res)
}

// --- signing keys ---

func scanSigningKey(row interface{ Scan(...any) error }) (iam.SigningKey, error) {
	var (
		key     iam.SigningKey
		rotated sql.NullTime
		expires sql.NullTime
	)
	if err := row.Scan(&key.Kid, &key.Alg, &key.PublicPEM, &key.PrivatePEM, &key.IsActive, &rotated, &expires, &key.CreatedAt); err != nil {
		return iam.SigningKey{}, err
	}
	key.RotatedAt = timePtr(rotated)
	if expires.Valid {
		key.ExpiresAt = expires.Time
	}
	return key, nil
}

func (s *Store) InsertSigningKey(ctx context.Context, key iam.SigningKey) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	var expires any
	if !key.ExpiresAt.IsZero() {
		expires = key.ExpiresAt
	}
	_, err := s.db.ExecContext(ctx, `
		insert into jwt_keys (kid, alg, public_pem, private_pem, is_active, expires_at)
		values ($1, $2, $3, $4, $5, $6)
	`, key.Kid, key.Alg, key.PublicPEM, key.PrivatePEM, key.IsActive, expires)
	return mapWriteErr(err)
}

func (s *Store) ActiveSigningKey(ctx context.Context) (iam.SigningKey, error) {
	if s.db == nil {
		return iam.SigningKey{}, errors.New("database connection unavailable")
	}
	key, err := scanSigningKey(s.db.QueryRowContext(ctx, `
		select kid, alg, public_pem, private_pem, is_active, rotated_at, expires_at, created_at
		from jwt_keys
		where is_active
		order by created_at desc
		limit 1
	`))
	if errors.Is(err, sql.ErrNoRows) {
		return iam.SigningKey{}, iam.ErrNotFound
	}
	return key, err
}

func (s *Store) SigningKeyByKid(ctx context.Context, kid string) (iam.SigningKey, error) {
	if s.db == nil {
		return iam.SigningKey{}, errors.New("database connection unavailable")
	}
	key, err := scanSigningKey(s.db.QueryRowContext(ctx, `
		select kid, alg, public_pem, private_pem, is_active, rotated_at, expires_at, created_at
		from jwt_keys
		where kid = $1
	`, kid))
	if errors.Is(err, sql.ErrNoRows) {
		return iam.SigningKey{}, iam.ErrNotFound
	}
	return key, err
}

func (s *Store) RetireSigningKeys(ctx context.Context, at time.Time) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	_, err := s.db.ExecContext(ctx, `
		update jwt_keys set is_active = false, rotated_at = $1
		where is_active
	`, at)
	return err
}

func (s *Store) ListSigningKeys(ctx context.Context, page iam.Page) ([]iam.SigningKey, int, error) {
	if s.db == nil {
		return nil, 0, errors.New("database connection unavailable")
	}
	total, err := s.countRows(ctx, `select count(*) from jwt_keys`)
	if err != nil {
		return nil, 0, err
	}
	rows, err := s.db.QueryContext(ctx, `
		select kid, alg, public_pem, private_pem, is_active, rotated_at, expires_at, created_at
		from jwt_keys
		order by created_at desc
		limit $1 offset $2
	`, page.Limit, page.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var keys []iam.SigningKey
	for rows.Next() {
		key, err := scanSigningKey(rows)
		if err != nil {
			return nil, 0, err
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return keys, total, nil
}

func (s *Store) DeleteSigningKey(ctx context.Context, kid string) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	res, err := s.db.ExecContext(ctx, `delete from jwt_keys where kid = $1`, kid)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res)
}

// --- principal ---

// LoadPrincipal hydrates the user, its role memberships and the union of
// permission codes in one round trip per collection. Grants from every role
// count, whatever organization the role belongs to.
func (s *Store) LoadPrincipal(ctx context.Context, userID string) (iam.Principal, error) {
	if s.db == nil {
		return iam.Principal{}, errors.New("database connection unavailable")
	}
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return iam.Principal{}, err
	}
	principal := iam.Principal{User: user, Permissions: perm.CodeSet{}}

	rows, err := s.db.QueryContext(ctx, `
		select r.id, r.code, r.organization_id
		from user_roles ur
		join roles r on r.id = ur.role_id and r.deleted_at is null
		where ur.user_id = $1
		order by r.code
	`, userID)
	if err != nil {
		return iam.Principal{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			pr  iam.PrincipalRole
			org sql.NullString
		)
		if err := rows.Scan(&pr.RoleID, &pr.RoleCode, &org); err != nil {
			return iam.Principal{}, err
		}
		pr.OrganizationID = strPtr(org)
		principal.Roles = append(principal.Roles, pr)
	}
	if err := rows.Err(); err != nil {
		return iam.Principal{}, err
	}

	permRows, err := s.db.QueryContext(ctx, `
		select distinct r.code, a.code
		from user_roles ur
		join role_permissions rp on rp.role_id = ur.role_id
		join permissions p on p.id = rp.permission_id and p.deleted_at is null
		join resources r on r.id = p.resource_id
		join actions a on a.id = p.action_id
		where ur.user_id = $1
	`, userID)
	if err != nil {
		return iam.Principal{}, err
	}
	defer permRows.Close()
	for permRows.Next() {
		var resource, action string
		if err := permRows.Scan(&resource, &action); err != nil {
			return iam.Principal{}, err
		}
		principal.Permissions[perm.Encode(resource, action)] = struct{}{}
	}
	if err := permRows.Err(); err != nil {
		return iam.Principal{}, err
	}
	return principal, nil
}
