package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/playconnect/apiserver/types"
)

// Postgres error code for unique constraint violations.
const uniqueViolation = "23505"

// Search results are capped so a broad filter cannot dump the whole
// directory.
const searchLimit = 50

// UserRepository handles persistence for user accounts and player
// profiles. Email uniqueness is enforced by the users_email_key index,
// so concurrent registrations with the same address race safely:
// exactly one insert wins, the other observes ErrDuplicateEmail.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, name, email, role, position, age, height, weight, dominant_foot, team, location, skills, bio, profile_image, is_verified, password_hash, created_at, updated_at`

func (r *UserRepository) GetByID(ctx context.Context, id int) (types.User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = $1`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	return user, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users
		WHERE email = $1`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, normalizeEmail(email)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	return user, nil
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	now := time.Now()
	user.Email = normalizeEmail(user.Email)
	user.CreatedAt = now
	user.UpdatedAt = now

	locationJSON, err := json.Marshal(user.Location)
	if err != nil {
		return types.User{}, err
	}
	skillsJSON, err := json.Marshal(user.Skills)
	if err != nil {
		return types.User{}, err
	}

	const query = `
		INSERT INTO users (name, email, role, position, age, height, weight, dominant_foot, team, location, skills, bio, profile_image, is_verified, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		user.Name,
		user.Email,
		user.Role,
		user.Position,
		user.Age,
		user.Height,
		user.Weight,
		user.DominantFoot,
		user.Team,
		string(locationJSON),
		string(skillsJSON),
		user.Bio,
		user.ProfileImage,
		user.IsVerified,
		user.PasswordHash,
		user.CreatedAt,
		user.UpdatedAt,
	).Scan(&user.ID); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return types.User{}, ErrDuplicateEmail
		}
		return types.User{}, err
	}
	return user, nil
}

// UpdateProfile applies a partial profile edit to one account. Absent
// fields are passed as NULL and COALESCE keeps the stored value, so a
// request touching only age never blanks the rest of the profile.
func (r *UserRepository) UpdateProfile(ctx context.Context, id int, update types.ProfileUpdate) (types.User, error) {
	var locationArg, skillsArg any
	if update.Location != nil {
		data, err := json.Marshal(update.Location)
		if err != nil {
			return types.User{}, err
		}
		locationArg = string(data)
	}
	if update.Skills != nil {
		data, err := json.Marshal(update.Skills)
		if err != nil {
			return types.User{}, err
		}
		skillsArg = string(data)
	}

	const query = `
		UPDATE users
		SET position = COALESCE($1, position),
			age = COALESCE($2::int, age),
			height = COALESCE($3::int, height),
			weight = COALESCE($4::int, weight),
			dominant_foot = COALESCE($5, dominant_foot),
			team = COALESCE($6, team),
			location = COALESCE($7::jsonb, location),
			skills = COALESCE($8::jsonb, skills),
			bio = COALESCE($9, bio),
			updated_at = $10
		WHERE id = $11
		RETURNING ` + userColumns
	user, err := scanUser(r.db.QueryRowContext(
		ctx,
		query,
		update.Position,
		update.Age,
		update.Height,
		update.Weight,
		update.DominantFoot,
		update.Team,
		locationArg,
		skillsArg,
		update.Bio,
		time.Now(),
		id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	return user, nil
}

// SetProfileImage records the object key of an uploaded profile
// picture and returns the previous key so the caller can delete the
// replaced object.
func (r *UserRepository) SetProfileImage(ctx context.Context, id int, key string) (types.User, string, error) {
	const query = `
		UPDATE users u
		SET profile_image = $1,
			updated_at = $2
		FROM (SELECT profile_image AS previous_image FROM users WHERE id = $3) prev
		WHERE u.id = $3
		RETURNING ` + userColumns + `, prev.previous_image`
	row := r.db.QueryRowContext(ctx, query, key, time.Now(), id)

	var user types.User
	var previous string
	var locationJSON, skillsJSON []byte
	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.Role,
		&user.Position,
		&user.Age,
		&user.Height,
		&user.Weight,
		&user.DominantFoot,
		&user.Team,
		&locationJSON,
		&skillsJSON,
		&user.Bio,
		&user.ProfileImage,
		&user.IsVerified,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
		&previous,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, "", ErrNotFound
		}
		return types.User{}, "", err
	}
	_ = json.Unmarshal(locationJSON, &user.Location)
	_ = json.Unmarshal(skillsJSON, &user.Skills)
	return user, previous, nil
}

// Search returns players matching the filter, ordered by id and capped
// at 50 records. Email and password hash are never selected.
func (r *UserRepository) Search(ctx context.Context, filter types.PlayerFilter) ([]types.User, error) {
	minRating := 0
	if filter.MinRating != nil {
		minRating = *filter.MinRating
	}

	const query = `
		SELECT id, name, role, position, age, height, weight, dominant_foot, team, location, skills, bio, profile_image, is_verified, created_at, updated_at
		FROM users
		WHERE role = 'player'
			AND ($1 = '' OR position = $1)
			AND ($2::int IS NULL OR age >= $2)
			AND ($3::int IS NULL OR age <= $3)
			AND ($4 = '' OR (skills->>$4)::int >= $5)
		ORDER BY id
		LIMIT $6`
	rows, err := r.db.QueryContext(
		ctx,
		query,
		filter.Position,
		filter.MinAge,
		filter.MaxAge,
		filter.Skill,
		minRating,
		searchLimit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	players := make([]types.User, 0)
	for rows.Next() {
		var user types.User
		var locationJSON, skillsJSON []byte
		if err := rows.Scan(
			&user.ID,
			&user.Name,
			&user.Role,
			&user.Position,
			&user.Age,
			&user.Height,
			&user.Weight,
			&user.DominantFoot,
			&user.Team,
			&locationJSON,
			&skillsJSON,
			&user.Bio,
			&user.ProfileImage,
			&user.IsVerified,
			&user.CreatedAt,
			&user.UpdatedAt,
		); err != nil {
			return nil, err
		}
		_ = json.Unmarshal(locationJSON, &user.Location)
		_ = json.Unmarshal(skillsJSON, &user.Skills)
		players = append(players, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return players, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (types.User, error) {
	var user types.User
	var locationJSON, skillsJSON []byte
	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.Role,
		&user.Position,
		&user.Age,
		&user.Height,
		&user.Weight,
		&user.DominantFoot,
		&user.Team,
		&locationJSON,
		&skillsJSON,
		&user.Bio,
		&user.ProfileImage,
		&user.IsVerified,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return types.User{}, err
	}
	_ = json.Unmarshal(locationJSON, &user.Location)
	_ = json.Unmarshal(skillsJSON, &user.Skills)
	return user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
