package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"gatekey.org/internal/iam"
	"gatekey.org/internal/ids"
)

// --- organizations ---

func (s *Store) CreateOrganization(ctx context.Context, org iam.Organization) (iam.Organization, error) {
	if s.db == nil {
		return iam.Organization{}, errors.New("database connection unavailable")
	}
	row := s.db.QueryRowContext(ctx, `
		insert into organizations (id, code, name, status)
		values ($1, $2, $3, $4)
		returning id, code, name, status, created_at, updated_at
	`, ids.New(), org.Code, org.Name, org.Status)
	var out iam.Organization
	if err := row.Scan(&out.ID, &out.Code, &out.Name, &out.Status, &out.CreatedAt, &out.UpdatedAt); err != nil {
		return iam.Organization{}, mapWriteErr(err)
	}
	return out, nil
}

func (s *Store) GetOrganization(ctx context.Context, id string) (iam.Organization, error) {
	if s.db == nil {
		return iam.Organization{}, errors.New("database connection unavailable")
	}
	var out iam.Organization
	err := s.db.QueryRowContext(ctx, `
		select id, code, name, status, created_at, updated_at
		from organizations
		where id = $1 and deleted_at is null
	`, id).Scan(&out.ID, &out.Code, &out.Name, &out.Status, &out.CreatedAt, &out.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return iam.Organization{}, iam.ErrNotFound
	}
	if err != nil {
		return iam.Organization{}, err
	}
	return out, nil
}

func (s *Store) ListOrganizations(ctx context.Context, page iam.Page) ([]iam.Organization, int, error) {
	if s.db == nil {
		return nil, 0, errors.New("database connection unavailable")
	}
	total, err := s.countRows(ctx, `select count(*) from organizations where deleted_at is null`)
	if err != nil {
		return nil, 0, err
	}
	rows, err := s.db.QueryContext(ctx, `
		select id, code, name, status, created_at, updated_at
		from organizations
		where deleted_at is null
		order by code
		limit $1 offset $2
	`, page.Limit, page.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []iam.Organization
	for rows.Next() {
		var org iam.Organization
		if err := rows.Scan(&org.ID, &org.Code, &org.Name, &org.Status, &org.CreatedAt, &org.UpdatedAt); err != nil {
			return nil, 0, err
		}
		result = append(result, org)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return result, total, nil
}

func (s *Store) UpdateOrganization(ctx context.Context, id string, upd iam.OrganizationUpdate) (iam.Organization, error) {
	if s.db == nil {
		return iam.Organization{}, errors.New("database connection unavailable")
	}
	var (
		sets []string
		args []any
		idx  = 1
	)
	if upd.Code != nil {
		sets = append(sets, fmt.Sprintf("code = $%d", idx))
		args = append(args, *upd.Code)
		idx++
	}
	if upd.Name != nil {
		sets = append(sets, fmt.Sprintf("name = $%d", idx))
		args = append(args, *upd.Name)
		idx++
	}
	if upd.Status != nil {
		sets = append(sets, fmt.Sprintf("status = $%d", idx))
		args = append(args, *upd.Status)
		idx++
	}
	if len(sets) > 0 {
		sets = append(sets, "updated_at = now()")
		query := fmt.Sprintf(`update organizations set %s where id = $%d and deleted_at is null`, strings.Join(sets, ", "), idx)
		args = append(args, id)
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return iam.Organization{}, mapWriteErr(err)
		}
		if err := affectedOrNotFound(res); err != nil {
			return iam.Organization{}, err
		}
	}
	return s.GetOrganization(ctx, id)
}

func (s *Store) DeleteOrganization(ctx context.Context, id string) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	res, err := s.db.ExecContext(ctx, `
		update organizations set deleted_at = now(), updated_at = now()
		where id = $1 and deleted_at is null
	`, id)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res)
}

// --- users ---

func (s *Store) CreateUser(ctx context.Context, user iam.User, passwordHash string) (iam.User, error) {
	if s.db == nil {
		return iam.User{}, errors.New("database connection unavailable")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return iam.User{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var out iam.User
	var userType sql.NullString
	row := tx.QueryRowContext(ctx, `
		insert into users (id, email, full_name, type, status)
		values ($1, $2, $3, $4, $5)
		returning id, email, full_name, type, status, created_at, updated_at
	`, ids.New(), user.Email, user.FullName, nullIfEmpty(user.Type), user.Status)
	if err := row.Scan(&out.ID, &out.Email, &out.FullName, &userType, &out.Status, &out.CreatedAt, &out.UpdatedAt); err != nil {
		return iam.User{}, mapWriteErr(err)
	}
	out.Type = userType.String

	if _, err := tx.ExecContext(ctx, `
		insert into user_credentials (user_id, password_hash)
		values ($1, $2)
	`, out.ID, passwordHash); err != nil {
		return iam.User{}, mapWriteErr(err)
	}
	if err := tx.Commit(); err != nil {
		return iam.User{}, err
	}
	return out, nil
}

const userColumns = `id, email, full_name, type, status, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (iam.User, error) {
	var user iam.User
	var userType sql.NullString
	if err := row.Scan(&user.ID, &user.Email, &user.FullName, &userType, &user.Status, &user.CreatedAt, &user.UpdatedAt); err != nil {
		return iam.User{}, err
	}
	user.Type = userType.String
	return user, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (iam.User, error) {
	if s.db == nil {
		return iam.User{}, errors.New("database connection unavailable")
	}
	user, err := scanUser(s.db.QueryRowContext(ctx, `
		select `+userColumns+`
		from users
		where id = $1 and deleted_at is null
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return iam.User{}, iam.ErrNotFound
	}
	return user, err
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (iam.User, error) {
	if s.db == nil {
		return iam.User{}, errors.New("database connection unavailable")
	}
	user, err := scanUser(s.db.QueryRowContext(ctx, `
		select `+userColumns+`
		from users
		where email = $1 and deleted_at is null
	`, email))
	if errors.Is(err, sql.ErrNoRows) {
		return iam.User{}, iam.ErrNotFound
	}
	return user, err
}

func (s *Store) ListUsers(ctx context.Context, page iam.Page) ([]iam.User, int, error) {
	if s.db == nil {
		return nil, 0, errors.New("database connection unavailable")
	}
	total, err := s.countRows(ctx, `select count(*) from users where deleted_at is null`)
	if err != nil {
		return nil, 0, err
	}
	rows, err := s.db.QueryContext(ctx, `
		select `+userColumns+`
		from users
		where deleted_at is null
		order by email
		limit $1 offset $2
	`, page.Limit, page.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var users []iam.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (s *Store) UpdateUser(ctx context.Context, id string, upd iam.UserUpdate) (iam.User, error) {
	if s.db == nil {
		return iam.User{}, errors.New("database connection unavailable")
	}
	var (
		sets []string
		args []any
		idx  = 1
	)
	if upd.Email != nil {
		sets = append(sets, fmt.Sprintf("email = $%d", idx))
		args = append(args, *upd.Email)
		idx++
	}
	if upd.FullName != nil {
		sets = append(sets, fmt.Sprintf("full_name = $%d", idx))
		args = append(args, *upd.FullName)
		idx++
	}
	if upd.Type != nil {
		sets = append(sets, fmt.Sprintf("type = $%d", idx))
		args = append(args, nullIfEmpty(*upd.Type))
		idx++
	}
	if upd.Status != nil {
		sets = append(sets, fmt.Sprintf("status = $%d", idx))
		args = append(args, *upd.Status)
		idx++
	}
	if len(sets) > 0 {
		sets = append(sets, "updated_at = now()")
		query := fmt.Sprintf(`update users set %s where id = $%d and deleted_at is null`, strings.Join(sets, ", "), idx)
		args = append(args, id)
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return iam.User{}, mapWriteErr(err)
		}
		if err := affectedOrNotFound(res); err != nil {
			return iam.User{}, err
		}
	}
	return s.GetUser(ctx, id)
}

func (s *Store) DeleteUser(ctx context.Context, id string) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	res, err := s.db.ExecContext(ctx, `
		update users set deleted_at = now(), updated_at = now()
		where id = $1 and deleted_at is null
	`, id)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res)
}

// --- credentials ---

func (s *Store) PasswordHash(ctx context.Context, userID string) (string, error) {
	if s.db == nil {
		return "", errors.New("database connection unavailable")
	}
	var hash string
	err := s.db.QueryRowContext(ctx, `
		select c.password_hash
		from user_credentials c
		join users u on u.id = c.user_id
		where c.user_id = $1 and u.deleted_at is null
	`, userID).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", iam.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return hash, nil
}

func (s *Store) SetPassword(ctx context.Context, userID, hash string) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		insert into password_history (id, user_id, password_hash)
		select $1, user_id, password_hash from user_credentials where user_id = $2
	`, ids.New(), userID); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `
		update user_credentials set password_hash = $1, updated_at = now()
		where user_id = $2
	`, hash, userID)
	if err != nil {
		return err
	}
	if err := affectedOrNotFound(res); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) CreatePasswordReset(ctx context.Context, reset iam.PasswordReset) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	_, err := s.db.ExecContext(ctx, `
		insert into password_resets (id, user_id, code_hash, expires_at)
		values ($1, $2, $3, $4)
	`, reset.ID, reset.UserID, reset.CodeHash, reset.ExpiresAt)
	return mapWriteErr(err)
}

func (s *Store) FindPasswordReset(ctx context.Context, id string) (iam.PasswordReset, error) {
	if s.db == nil {
		return iam.PasswordReset{}, errors.New("database connection unavailable")
	}
	var (
		reset    iam.PasswordReset
		consumed sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		select id, user_id, code_hash, expires_at, consumed_at, created_at
		from password_resets
		where id = $1
	`, id).Scan(&reset.ID, &reset.UserID, &reset.CodeHash, &reset.ExpiresAt, &consumed, &reset.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return iam.PasswordReset{}, iam.ErrNotFound
	}
	if err != nil {
		return iam.PasswordReset{}, err
	}
	reset.ConsumedAt = timePtr(consumed)
	return reset, nil
}

func (s *Store) ConsumePasswordReset(ctx context.Context, id string, at time.Time) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	res, err := s.db.ExecContext(ctx, `
		update password_resets set consumed_at = $1
		where id = $2 and consumed_at is null
	`, at, id)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res)
}

// --- roles ---

func (s *Store) CreateRole(ctx context.Context, role iam.Role) (iam.Role, error) {
	if s.db == nil {
		return iam.Role{}, errors.New("database connection unavailable")
	}
	row := s.db.QueryRowContext(ctx, `
		insert into roles (id, organization_id, code, name, description)
		values ($1, $2, $3, $4, $5)
		returning id, organization_id, code, name, description, created_at, updated_at
	`, ids.New(), nullIfNil(role.OrganizationID), role.Code, role.Name, role.Description)
	return scanRole(row)
}

func scanRole(row interface{ Scan(...any) error }) (iam.Role, error) {
	var (
		role iam.Role
		org  sql.NullString
		desc sql.NullString
	)
	if err := row.Scan(&role.ID, &org, &role.Code, &role.Name, &desc, &role.CreatedAt, &role.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return iam.Role{}, iam.ErrNotFound
		}
		return iam.Role{}, mapWriteErr(err)
	}
	role.OrganizationID = strPtr(org)
	role.Description = desc.String
	return role, nil
}

func (s *Store) GetRole(ctx context.Context, id string) (iam.Role, error) {
	if s.db == nil {
		return iam.Role{}, errors.New("database connection unavailable")
	}
	return scanRole(s.db.QueryRowContext(ctx, `
		select id, organization_id, code, name, description, created_at, updated_at
		from roles
		where id = $1 and deleted_at is null
	`, id))
}

func (s *Store) ListRoles(ctx context.Context, organizationID *string, page iam.Page) ([]iam.Role, int, error) {
	if s.db == nil {
		return nil, 0, errors.New("database connection unavailable")
	}
	var (
		total int
		err   error
	)
	if organizationID != nil {
		total, err = s.countRows(ctx, `select count(*) from roles where organization_id = $1 and deleted_at is null`, *organizationID)
	} else {
		total, err = s.countRows(ctx, `select count(*) from roles where deleted_at is null`)
	}
	if err != nil {
		return nil, 0, err
	}

	query := `
		select id, organization_id, code, name, description, created_at, updated_at
		from roles
		where deleted_at is null
		order by code
		limit $1 offset $2
	`
	args := []any{page.Limit, page.Offset()}
	if organizationID != nil {
		query = `
			select id, organization_id, code, name, description, created_at, updated_at
			from roles
			where organization_id = $1 and deleted_at is null
			order by code
			limit $2 offset $3
		`
		args = []any{*organizationID, page.Limit, page.Offset()}
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var roles []iam.Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, 0, err
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return roles, total, nil
}

func (s *Store) UpdateRole(ctx context.Context, id string, upd iam.RoleUpdate) (iam.Role, error) {
	if s.db == nil {
		return iam.Role{}, errors.New("database connection unavailable")
	}
	var (
		sets []string
		args []any
		idx  = 1
	)
	if upd.Code != nil {
		sets = append(sets, fmt.Sprintf("code = $%d", idx))
		args = append(args, *upd.Code)
		idx++
	}
	if upd.Name != nil {
		sets = append(sets, fmt.Sprintf("name = $%d", idx))
		args = append(args, *upd.Name)
		idx++
	}
	if upd.Description != nil {
		sets = append(sets, fmt.Sprintf("description = $%d", idx))
		args = append(args, *upd.Description)
		idx++
	}
	if len(sets) > 0 {
		sets = append(sets, "updated_at = now()")
		query := fmt.Sprintf(`update roles set %s where id = $%d and deleted_at is null`, strings.Join(sets, ", "), idx)
		args = append(args, id)
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return iam.Role{}, mapWriteErr(err)
		}
		if err := affectedOrNotFound(res); err != nil {
			return iam.Role{}, err
		}
	}
	return s.GetRole(ctx, id)
}

func (s *Store) DeleteRole(ctx context.Context, id string) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		update roles set deleted_at = now(), updated_at = now()
		where id = $1 and deleted_at is null
	`, id)
	if err != nil {
		return err
	}
	if err := affectedOrNotFound(res); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `delete from role_permissions where role_id = $1`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `delete from user_roles where role_id = $1`, id); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) SetRolePermissions(ctx context.Context, roleID string, permissionIDs []string) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	if err := tx.QueryRowContext(ctx, `select 1 from roles where id = $1 and deleted_at is null`, roleID).Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return iam.ErrNotFound
		}
		return err
	}
	if _, err := tx.ExecContext(ctx, `delete from role_permissions where role_id = $1`, roleID); err != nil {
		return err
	}
	for _, permID := range permissionIDs {
		if _, err := tx.ExecContext(ctx, `
			insert into role_permissions (role_id, permission_id)
			values ($1, $2)
		`, roleID, permID); err != nil {
			return mapWriteErr(err)
		}
	}
	return tx.Commit()
}

func (s *Store) RolePermissions(ctx context.Context, roleID string) ([]iam.Permission, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	var exists int
	if err := s.db.QueryRowContext(ctx, `select 1 from roles where id = $1 and deleted_at is null`, roleID).Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, iam.ErrNotFound
		}
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		select `+permissionColumns+`
		from role_permissions rp
		join permissions p on p.id = rp.permission_id and p.deleted_at is null
		join resources r on r.id = p.resource_id
		join actions a on a.id = p.action_id
		where rp.role_id = $1
		order by r.code, a.code
	`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPermissions(rows)
}

func (s *Store) AssignRole(ctx context.Context, assignment iam.UserRole) (iam.UserRole, error) {
	if s.db == nil {
		return iam.UserRole{}, errors.New("database connection unavailable")
	}
	var (
		out iam.UserRole
		org sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		insert into user_roles (user_id, role_id, organization_id)
		values ($1, $2, $3)
		returning user_id, role_id, organization_id, created_at
	`, assignment.UserID, assignment.RoleID, nullIfNil(assignment.OrganizationID)).
		Scan(&out.UserID, &out.RoleID, &org, &out.CreatedAt)
	if err != nil {
		return iam.UserRole{}, mapWriteErr(err)
	}
	out.OrganizationID = strPtr(org)
	return out, nil
}

func (s *Store) RemoveUserRole(ctx context.Context, userID, roleID string) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	res, err := s.db.ExecContext(ctx, `
		delete from user_roles
		where user_id = $1 and role_id = $2
	`, userID, roleID)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res)
}

func (s *Store) ListUserRoles(ctx context.Context, userID string) ([]iam.UserRole, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	rows, err := s.db.QueryContext(ctx, `
		select user_id, role_id, organization_id, created_at
		from user_roles
		where user_id = $1
		order by role_id
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assignments []iam.UserRole
	for rows.Next() {
		var (
			a   iam.UserRole
			org sql.NullString
		)
		if err := rows.Scan(&a.UserID, &a.RoleID, &org, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.OrganizationID = strPtr(org)
		assignments = append(assignments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return assignments, nil
}

// --- permissions ---

const permissionColumns = `p.id, p.resource_id, p.action_id, r.code, a.code, p.description, p.created_at, p.updated_at`

const permissionFrom = `
	from permissions p
	join resources r on r.id = p.resource_id
	join actions a on a.id = p.action_id
`

func scanPermission(row interface{ Scan(...any) error }) (iam.Permission, error) {
	var (
		p    iam.Permission
		desc sql.NullString
	)
	if err := row.Scan(&p.ID, &p.ResourceID, &p.ActionID, &p.ResourceCode, &p.ActionCode, &desc, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return iam.Permission{}, err
	}
	p.Description = desc.String
	return p, nil
}

func collectPermissions(rows *sql.Rows) ([]iam.Permission, error) {
	var perms []iam.Permission
	for rows.Next() {
		p, err := scanPermission(rows)
		if err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return perms, nil
}

func (s *Store) CreatePermission(ctx context.Context, p iam.Permission) (iam.Permission, error) {
	if s.db == nil {
		return iam.Permission{}, errors.New("database connection unavailable")
	}
	var id string
	err := s.db.QueryRowContext(ctx, `
		insert into permissions (id, resource_id, action_id, description)
		values ($1, $2, $3, $4)
		returning id
	`, ids.New(), p.ResourceID, p.ActionID, p.Description).Scan(&id)
	if err != nil {
		return iam.Permission{}, mapWriteErr(err)
	}
	return s.GetPermission(ctx, id)
}

func (s *Store) GetPermission(ctx context.Context, id string) (iam.Permission, error) {
	if s.db == nil {
		return iam.Permission{}, errors.New("database connection unavailable")
	}
	p, err := scanPermission(s.db.QueryRowContext(ctx, `
		select `+permissionColumns+permissionFrom+`
		where p.id = $1 and p.deleted_at is null
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return iam.Permission{}, iam.ErrNotFound
	}
	return p, err
}

func (s *Store) ListPermissions(ctx context.Context, page iam.Page) ([]iam.Permission, int, error) {
	if s.db == nil {
		return nil, 0, errors.New("database connection unavailable")
	}
	total, err := s.countRows(ctx, `select count(*) from permissions where deleted_at is null`)
	if err != nil {
		return nil, 0, err
	}
	rows, err := s.db.QueryContext(ctx, `
		select `+permissionColumns+permissionFrom+`
		where p.deleted_at is null
		order by r.code, a.code
		limit $1 offset $2
	`, page.Limit, page.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	perms, err := collectPermissions(rows)
	if err != nil {
		return nil, 0, err
	}
	return perms, total, nil
}

func (s *Store) UpdatePermission(ctx context.Context, id string, upd iam.PermissionUpdate) (iam.Permission, error) {
	if s.db == nil {
		return iam.Permission{}, errors.New("database connection unavailable")
	}
	if upd.Description != nil {
		res, err := s.db.ExecContext(ctx, `
			update permissions set description = $1, updated_at = now()
			where id = $2 and deleted_at is null
		`, *upd.Description, id)
		if err != nil {
			return iam.Permission{}, err
		}
		if err := affectedOrNotFound(res); err != nil {
			return iam.Permission{}, err
		}
	}
	return s.GetPermission(ctx, id)
}

func (s *Store) DeletePermission(ctx context.Context, id string) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		update permissions set deleted_at = now(), updated_at = now()
		where id = $1 and deleted_at is null
	`, id)
	if err != nil {
		return err
	}
	if err := affectedOrNotFound(res); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `delete from role_permissions where permission_id = $1`, id); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) FindPermissionsByIDs(ctx context.Context, permIDs []string) ([]iam.Permission, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	if len(permIDs) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		select `+permissionColumns+permissionFrom+`
		where p.id = any($1) and p.deleted_at is null
		order by r.code, a.code
	`, permIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPermissions(rows)
}

func (s *Store) UpsertPermission(ctx context.Context, resourceID, actionID, description string) (iam.Permission, bool, error) {
	if s.db == nil {
		return iam.Permission{}, false, errors.New("database connection unavailable")
	}
	var (
		id      string
		created bool
	)
	err := s.db.QueryRowContext(ctx, `
		insert into permissions (id, resource_id, action_id, description)
		values ($1, $2, $3, $4)
		on conflict (resource_id, action_id) do update
		set description = excluded.description, updated_at = now(), deleted_at = null
		returning id, (xmax = 0)
	`, ids.New(), resourceID, actionID, description).Scan(&id, &created)
	if err != nil {
		return iam.Permission{}, false, mapWriteErr(err)
	}
	p, err := s.GetPermission(ctx, id)
	return p, created, err
}

// --- resources ---

func (s *Store) CreateResource(ctx context.Context, r iam.Resource) (iam.Resource, error) {
	if s.db == nil {
		return iam.Resource{}, errors.New("database connection unavailable")
	}
	row := s.db.QueryRowContext(ctx, `
		insert into resources (id, code, name, active)
		values ($1, $2, $3, $4)
		returning id, code, name, active, created_at, updated_at
	`, ids.New(), r.Code, r.Name, r.Active)
	var out iam.Resource
	if err := row.Scan(&out.ID, &out.Code, &out.Name, &out.Active, &out.CreatedAt, &out.UpdatedAt); err != nil {
		return iam.Resource{}, mapWriteErr(err)
	}
	return out, nil
}

func (s *Store) GetResource(ctx context.Context, id string) (iam.Resource, error) {
	if s.db == nil {
		return iam.Resource{}, errors.New("database connection unavailable")
	}
	var out iam.Resource
	err := s.db.QueryRowContext(ctx, `
		select id, code, name, active, created_at, updated_at
		from resources
		where id = $1 and deleted_at is null
	`, id).Scan(&out.ID, &out.Code, &out.Name, &out.Active, &out.CreatedAt, &out.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return iam.Resource{}, iam.ErrNotFound
	}
	if err != nil {
		return iam.Resource{}, err
	}
	return out, nil
}

func (s *Store) FindResourceByCode(ctx context.Context, code string) (iam.Resource, error) {
	if s.db == nil {
		return iam.Resource{}, errors.New("database connection unavailable")
	}
	var out iam.Resource
	err := s.db.QueryRowContext(ctx, `
		select id, code, name, active, created_at, updated_at
		from resources
		where code = $1 and deleted_at is null
	`, code).Scan(&out.ID, &out.Code, &out.Name, &out.Active, &out.CreatedAt, &out.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return iam.Resource{}, iam.ErrNotFound
	}
	if err != nil {
		return iam.Resource{}, err
	}
	return out, nil
}

func (s *Store) ListResources(ctx context.Context, page iam.Page) ([]iam.Resource, int, error) {
	if s.db == nil {
		return nil, 0, errors.New("database connection unavailable")
	}
	total, err := s.countRows(ctx, `select count(*) from resources where deleted_at is null`)
	if err != nil {
		return nil, 0, err
	}
	rows, err := s.db.QueryContext(ctx, `
		select id, code, name, active, created_at, updated_at
		from resources
		where deleted_at is null
		order by code
		limit $1 offset $2
	`, page.Limit, page.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []iam.Resource
	for rows.Next() {
		var r iam.Resource
		if err := rows.Scan(&r.ID, &r.Code, &r.Name, &r.Active, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, 0, err
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return result, total, nil
}

func (s *Store) UpdateResource(ctx context.Context, id string, upd iam.ResourceUpdate) (iam.Resource, error) {
	if s.db == nil {
		return iam.Resource{}, errors.New("database connection unavailable")
	}
	var (
		sets []string
		args []any
		idx  = 1
	)
	if upd.Code != nil {
		sets = append(sets, fmt.Sprintf("code = $%d", idx))
		args = append(args, *upd.Code)
		idx++
	}
	if upd.Name != nil {
		sets = append(sets, fmt.Sprintf("name = $%d", idx))
		args = append(args, *upd.Name)
		idx++
	}
	if upd.Active != nil {
		sets = append(sets, fmt.Sprintf("active = $%d", idx))
		args = append(args, *upd.Active)
		idx++
	}
	if len(sets) > 0 {
		sets = append(sets, "updated_at = now()")
		query := fmt.Sprintf(`update resources set %s where id = $%d and deleted_at is null`, strings.Join(sets, ", "), idx)
		args = append(args, id)
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return iam.Resource{}, mapWriteErr(err)
		}
		if err := affectedOrNotFound(res); err != nil {
			return iam.Resource{}, err
		}
	}
	return s.GetResource(ctx, id)
}

func (s *Store) DeleteResource(ctx context.Context, id string) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	res, err := s.db.ExecContext(ctx, `
		update resources set deleted_at = now(), updated_at = now()
		where id = $1 and deleted_at is null
	`, id)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res)
}

func (s *Store) UpsertResource(ctx context.Context, code, name string) (iam.Resource, error) {
	if s.db == nil {
		return iam.Resource{}, errors.New("database connection unavailable")
	}
	var out iam.Resource
	err := s.db.QueryRowContext(ctx, `
		insert into resources (id, code, name, active)
		values ($1, $2, $3, true)
		on conflict (code) do update
		set name = excluded.name, updated_at = now(), deleted_at = null
		returning id, code, name, active, created_at, updated_at
	`, ids.New(), code, name).Scan(&out.ID, &out.Code, &out.Name, &out.Active, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		return iam.Resource{}, mapWriteErr(err)
	}
	return out, nil
}

// --- actions ---

func (s *Store) CreateAction(ctx context.Context, a iam.Action) (iam.Action, error) {
	if s.db == nil {
		return iam.Action{}, errors.New("database connection unavailable")
	}
	row := s.db.QueryRowContext(ctx, `
		insert into actions (id, code, name, active)
		values ($1, $2, $3, $4)
		returning id, code, name, active, created_at, updated_at
	`, ids.New(), a.Code, a.Name, a.Active)
	var out iam.Action
	if err := row.Scan(&out.ID, &out.Code, &out.Name, &out.Active, &out.CreatedAt, &out.UpdatedAt); err != nil {
		return iam.Action{}, mapWriteErr(err)
	}
	return out, nil
}

func (s *Store) GetAction(ctx context.Context, id string) (iam.Action, error) {
	if s.db == nil {
		return iam.Action{}, errors.New("database connection unavailable")
	}
	var out iam.Action
	err := s.db.QueryRowContext(ctx, `
		select id, code, name, active, created_at, updated_at
		from actions
		where id = $1 and deleted_at is null
	`, id).Scan(&out.ID, &out.Code, &out.Name, &out.Active, &out.CreatedAt, &out.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return iam.Action{}, iam.ErrNotFound
	}
	if err != nil {
		return iam.Action{}, err
	}
	return out, nil
}

func (s *Store) FindActionByCode(ctx context.Context, code string) (iam.Action, error) {
	if s.db == nil {
		return iam.Action{}, errors.New("database connection unavailable")
	}
	var out iam.Action
	err := s.db.QueryRowContext(ctx, `
		select id, code, name, active, created_at, updated_at
		from actions
		where code = $1 and deleted_at is null
	`, code).Scan(&out.ID, &out.Code, &out.Name, &out.Active, &out.CreatedAt, &out.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return iam.Action{}, iam.ErrNotFound
	}
	if err != nil {
		return iam.Action{}, err
	}
	return out, nil
}

func (s *Store) ListActions(ctx context.Context, page iam.Page) ([]iam.Action, int, error) {
	if s.db == nil {
		return nil, 0, errors.New("database connection unavailable")
	}
	total, err := s.countRows(ctx, `select count(*) from actions where deleted_at is null`)
	if err != nil {
		return nil, 0, err
	}
	rows, err := s.db.QueryContext(ctx, `
		select id, code, name, active, created_at, updated_at
		from actions
		where deleted_at is null
		order by code
		limit $1 offset $2
	`, page.Limit, page.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []iam.Action
	for rows.Next() {
		var a iam.Action
		if err := rows.Scan(&a.ID, &a.Code, &a.Name, &a.Active, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, 0, err
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return result, total, nil
}

func (s *Store) UpdateAction(ctx context.Context, id string, upd iam.ActionUpdate) (iam.Action, error) {
	if s.db == nil {
		return iam.Action{}, errors.New("database connection unavailable")
	}
	var (
		sets []string
		args []any
		idx  = 1
	)
	if upd.Code != nil {
		sets = append(sets, fmt.Sprintf("code = $%d", idx))
		args = append(args, *upd.Code)
		idx++
	}
	if upd.Name != nil {
		sets = append(sets, fmt.Sprintf("name = $%d", idx))
		args = append(args, *upd.Name)
		idx++
	}
	if upd.Active != nil {
		sets = append(sets, fmt.Sprintf("active = $%d", idx))
		args = append(args, *upd.Active)
		idx++
	}
	if len(sets) > 0 {
		sets = append(sets, "updated_at = now()")
		query := fmt.Sprintf(`update actions set %s where id = $%d and deleted_at is null`, strings.Join(sets, ", "), idx)
		args = append(args, id)
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return iam.Action{}, mapWriteErr(err)
		}
		if err := affectedOrNotFound(res); err != nil {
			return iam.Action{}, err
		}
	}
	return s.GetAction(ctx, id)
}

func (s *Store) DeleteAction(ctx context.Context, id string) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	res, err := s.db.ExecContext(ctx, `
		update actions set deleted_at = now(), updated_at = now()
		where id = $1 and deleted_at is null
	`, id)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res)
}

func (s *Store) UpsertAction(ctx context.Context, code, name string) (iam.Action, error) {
	if s.db == nil {
		return iam.Action{}, errors.New("database connection unavailable")
	}
	var out iam.Action
	err := s.db.QueryRowContext(ctx, `
		insert into actions (id, code, name, active)
		values ($1, $2, $3, true)
		on conflict (code) do update
		set name = excluded.name, updated_at = now(), deleted_at = null
		returning id, code, name, active, created_at, updated_at
	`, ids.New(), code, name).Scan(&out.ID, &out.Code, &out.Name, &out.Active, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		return iam.Action{}, mapWriteErr(err)
	}
	return out, nil
}

// --- groups ---

func scanGroup(row interface{ Scan(...any) error }) (iam.Group, error) {
	var (
		g    iam.Group
		desc sql.NullString
	)
	if err := row.Scan(&g.ID, &g.OrganizationID, &g.Code, &g.Name, &desc, &g.CreatedAt, &g.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return iam.Group{}, iam.ErrNotFound
		}
		return iam.Group{}, mapWriteErr(err)
	}
	g.Description = desc.String
	return g, nil
}

func (s *Store) CreateGroup(ctx context.Context, g iam.Group) (iam.Group, error) {
	if s.db == nil {
		return iam.Group{}, errors.New("database connection unavailable")
	}
	return scanGroup(s.db.QueryRowContext(ctx, `
		insert into groups (id, organization_id, code, name, description)
		values ($1, $2, $3, $4, $5)
		returning id, organization_id, code, name, description, created_at, updated_at
	`, ids.New(), g.OrganizationID, g.Code, g.Name, g.Description))
}

func (s *Store) GetGroup(ctx context.Context, id string) (iam.Group, error) {
	if s.db == nil {
		return iam.Group{}, errors.New("database connection unavailable")
	}
	return scanGroup(s.db.QueryRowContext(ctx, `
		select id, organization_id, code, name, description, created_at, updated_at
		from groups
		where id = $1 and deleted_at is null
	`, id))
}

func (s *Store) ListGroups(ctx context.Context, organizationID *string, page iam.Page) ([]iam.Group, int, error) {
	if s.db == nil {
		return nil, 0, errors.New("database connection unavailable")
	}
	var (
		total int
		err   error
	)
	if organizationID != nil {
		total, err = s.countRows(ctx, `select count(*) from groups where organization_id = $1 and deleted_at is null`, *organizationID)
	} else {
		total, err = s.countRows(ctx, `select count(*) from groups where deleted_at is null`)
	}
	if err != nil {
		return nil, 0, err
	}

	query := `
		select id, organization_id, code, name, description, created_at, updated_at
		from groups
		where deleted_at is null
		order by code
		limit $1 offset $2
	`
	args := []any{page.Limit, page.Offset()}
	if organizationID != nil {
		query = `
			select id, organization_id, code, name, description, created_at, updated_at
			from groups
			where organization_id = $1 and deleted_at is null
			order by code
			limit $2 offset $3
		`
		args = []any{*organizationID, page.Limit, page.Offset()}
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var groups []iam.Group
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, 0, err
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return groups, total, nil
}

func (s *Store) UpdateGroup(ctx context.Context, id string, upd iam.GroupUpdate) (iam.Group, error) {
	if s.db == nil {
		return iam.Group{}, errors.New("database connection unavailable")
	}
	var (
		sets []string
		args []any
		idx  = 1
	)
	if upd.Code != nil {
		sets = append(sets, fmt.Sprintf("code = $%d", idx))
		args = append(args, *upd.Code)
		idx++
	}
	if upd.Name != nil {
		sets = append(sets, fmt.Sprintf("name = $%d", idx))
		args = append(args, *upd.Name)
		idx++
	}
	if upd.Description != nil {
		sets = append(sets, fmt.Sprintf("description = $%d", idx))
		args = append(args, *upd.Description)
		idx++
	}
	if len(sets) > 0 {
		sets = append(sets, "updated_at = now()")
		query := fmt.Sprintf(`update groups set %s where id = $%d and deleted_at is null`, strings.Join(sets, ", "), idx)
		args = append(args, id)
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return iam.Group{}, mapWriteErr(err)
		}
		if err := affectedOrNotFound(res); err != nil {
			return iam.Group{}, err
		}
	}
	return s.GetGroup(ctx, id)
}

func (s *Store) DeleteGroup(ctx context.Context, id string) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		update groups set deleted_at = now(), updated_at = now()
		where id = $1 and deleted_at is null
	`, id)
	if err != nil {
		return err
	}
	if err := affectedOrNotFound(res); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `delete from group_members where group_id = $1`, id); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) AddGroupMember(ctx context.Context, member iam.GroupMember) (iam.GroupMember, error) {
	if s.db == nil {
		return iam.GroupMember{}, errors.New("database connection unavailable")
	}
	var out iam.GroupMember
	err := s.db.QueryRowContext(ctx, `
		insert into group_members (group_id, user_id)
		values ($1, $2)
		returning group_id, user_id, created_at
	`, member.GroupID, member.UserID).Scan(&out.GroupID, &out.UserID, &out.CreatedAt)
	if err != nil {
		return iam.GroupMember{}, mapWriteErr(err)
	}
	return out, nil
}

func (s *Store) RemoveGroupMember(ctx context.Context, groupID, userID string) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	res, err := s.db.ExecContext(ctx, `
		delete from group_members
		where group_id = $1 and user_id = $2
	`, groupID, userID)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res)
}

func (s *Store) ListGroupMembers(ctx context.Context, groupID string, page iam.Page) ([]iam.GroupMember, int, error) {
	if s.db == nil {
		return nil, 0, errors.New("database connection unavailable")
	}
	total, err := s.countRows(ctx, `select count(*) from group_members where group_id = $1`, groupID)
	if err != nil {
		return nil, 0, err
	}
	rows, err := s.db.QueryContext(ctx, `
		select group_id, user_id, created_at
		from group_members
		where group_id = $1
		order by user_id
		limit $2 offset $3
	`, groupID, page.Limit, page.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var members []iam.GroupMember
	for rows.Next() {
		var member iam.GroupMember
		if err := rows.Scan(&member.GroupID, &member.UserID, &member.CreatedAt); err != nil {
			return nil, 0, err
		}
		members = append(members, member)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return members, total, nil
}
