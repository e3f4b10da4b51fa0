package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/Surfinbird-star/aas2/internal/model"
)

const profileColumns = `id, email, password_hash, first_name, last_name, name, phone, address,
	is_admin, created_at, updated_at`

func scanProfile(row interface{ Scan(...any) error }) (*model.Profile, error) {
	p := &model.Profile{}
	err := row.Scan(&p.ID, &p.Email, &p.PasswordHash, &p.FirstName, &p.LastName, &p.Name,
		&p.Phone, &p.Address, &p.IsAdmin, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// CreateProfile inserts a new profile. An empty id gets a fresh UUID.
func CreateProfile(ctx context.Context, db *sql.DB, id string, in model.ProfileInput, passwordHash string, isAdmin bool) (*model.Profile, error) {
	if id == "" {
		id = uuid.NewString()
	}

	_, err := db.ExecContext(ctx,
		`INSERT INTO profiles (id, email, password_hash, first_name, last_name, phone, address, is_admin)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, in.Email, passwordHash, in.FirstName, in.LastName, in.Phone, in.Address, isAdmin,
	)
	if isUniqueViolation(err) {
		return nil, model.ErrEmailTaken
	}
	if err != nil {
		return nil, fmt.Errorf("creating profile: %w", err)
	}

	return GetProfile(ctx, db, id)
}

// GetProfile returns a profile by ID.
func GetProfile(ctx context.Context, db *sql.DB, id string) (*model.Profile, error) {
	p, err := scanProfile(db.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting profile: %w", err)
	}
	return p, nil
}

// GetProfileByEmail returns a profile by email, case-insensitively.
func GetProfileByEmail(ctx context.Context, db *sql.DB, email string) (*model.Profile, error) {
	p, err := scanProfile(db.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE email = ? COLLATE NOCASE`,
		strings.TrimSpace(email),
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting profile by email: %w", err)
	}
	return p, nil
}

// ListProfiles returns all profiles, newest first.
func ListProfiles(ctx context.Context, db *sql.DB) ([]model.Profile, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+profileColumns+` FROM profiles ORDER BY created_at DESC, email`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing profiles: %w", err)
	}
	defer rows.Close()

	var profiles []model.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning profile: %w", err)
		}
		profiles = append(profiles, *p)
	}
	return profiles, rows.Err()
}

// UpdateProfile updates the contact fields of a profile.
func UpdateProfile(ctx context.Context, db *sql.DB, id string, in model.ProfileInput) error {
	res, err := db.ExecContext(ctx,
		`UPDATE profiles
		 SET email = ?, first_name = ?, last_name = ?, phone = ?, address = ?,
		     updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		in.Email, in.FirstName, in.LastName, in.Phone, in.Address, id,
	)
	if isUniqueViolation(err) {
		return model.ErrEmailTaken
	}
	if err != nil {
		return fmt.Errorf("updating profile: %w", err)
	}
	return requireAffected(res, "profile")
}

// UpsertProfile creates the profile with the given id or updates it when it
// already exists. A non-empty passwordHash is stored on both paths; an empty
// one leaves an existing password unchanged.
func UpsertProfile(ctx context.Context, db *sql.DB, id string, in model.ProfileInput, passwordHash string) (*model.Profile, bool, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var count int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM profiles WHERE id = ?`, id,
	).Scan(&count); err != nil {
		return nil, false, fmt.Errorf("checking profile: %w", err)
	}
	created := count == 0

	if created {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO profiles (id, email, password_hash, first_name, last_name, phone, address, is_admin)
			 VALUES (?, ?, ?, ?, ?, ?, ?, 0)`,
			id, in.Email, passwordHash, in.FirstName, in.LastName, in.Phone, in.Address,
		)
	} else {
		_, err = tx.ExecContext(ctx,
			`UPDATE profiles
			 SET email = ?, first_name = ?, last_name = ?, phone = ?, address = ?,
			     updated_at = CURRENT_TIMESTAMP
			 WHERE id = ?`,
			in.Email, in.FirstName, in.LastName, in.Phone, in.Address, id,
		)
	}
	if isUniqueViolation(err) {
		return nil, false, model.ErrEmailTaken
	}
	if err != nil {
		return nil, false, fmt.Errorf("saving profile: %w", err)
	}

	if !created && passwordHash != "" {
		if _, err := tx.ExecContext(ctx,
			`UPDATE profiles SET password_hash = ? WHERE id = ?`, passwordHash, id,
		); err != nil {
			return nil, false, fmt.Errorf("updating password: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("committing profile upsert: %w", err)
	}

	p, err := GetProfile(ctx, db, id)
	return p, created, err
}

// UpdateProfilePassword sets a new password hash.
func UpdateProfilePassword(ctx context.Context, db *sql.DB, id, passwordHash string) error {
	res, err := db.ExecContext(ctx,
		`UPDATE profiles SET password_hash = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		passwordHash, id,
	)
	if err != nil {
		return fmt.Errorf("updating password: %w", err)
	}
	return requireAffected(res, "profile")
}

// SetAdmin grants or revokes administrator privileges.
func SetAdmin(ctx context.Context, db *sql.DB, id string, isAdmin bool) error {
	res, err := db.ExecContext(ctx,
		`UPDATE profiles SET is_admin = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		isAdmin, id,
	)
	if err != nil {
		return fmt.Errorf("setting admin flag: %w", err)
	}
	return requireAffected(res, "profile")
}

// GetAdminFlag reads the administrator flag. A missing profile yields
// model.ErrNotFound.
func GetAdminFlag(ctx context.Context, db *sql.DB, id string) (bool, error) {
	var isAdmin bool
	err := db.QueryRowContext(ctx,
		`SELECT is_admin FROM profiles WHERE id = ?`, id,
	).Scan(&isAdmin)
	if err == sql.ErrNoRows {
		return false, model.ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("reading admin flag: %w", err)
	}
	return isAdmin, nil
}
