package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"matchup/internal/app/backend"
	"matchup/internal/app/model"
)

const userColumns = "user_id, user_name, user_nick_name, email, user_password"

// Repository is the PostgreSQL implementation of backend.Repository.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository returns a repository using pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanUser(row pgx.CollectableRow) (model.User, error) {
	var u model.User
	err := row.Scan(&u.UserID, &u.UserName, &u.UserNickName, &u.Email, &u.UserPassword)
	return u, err
}

func (r *Repository) FindUsers(ctx context.Context, filter backend.UserFilter) ([]model.User, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE ($1 = '' OR email = $1 OR user_name = $1)
		  AND ($2 = '' OR email = $2)
		ORDER BY user_id`,
		filter.Identifier, filter.Email,
	)
	if err != nil {
		return nil, fmt.Errorf("querying users: %w", err)
	}

	users, err := pgx.CollectRows(rows, scanUser)
	if err != nil {
		return nil, fmt.Errorf("scanning users: %w", err)
	}
	return users, nil
}

func (r *Repository) CreateUser(ctx context.Context, u model.User) (model.User, error) {
	rows, err := r.pool.Query(ctx, `
		INSERT INTO users (user_name, user_nick_name, email, user_password)
		VALUES ($1, $2, $3, $4)
		RETURNING `+userColumns,
		u.UserName, u.UserNickName, u.Email, u.UserPassword,
	)
	if err != nil {
		return model.User{}, fmt.Errorf("inserting user: %w", err)
	}

	created, err := pgx.CollectExactlyOneRow(rows, scanUser)
	if err != nil {
		if IsUniqueViolation(err) {
			return model.User{}, backend.ErrDuplicate
		}
		return model.User{}, fmt.Errorf("inserting user: %w", err)
	}
	return created, nil
}

func (r *Repository) UpdateUser(ctx context.Context, userID int, update model.UpdateUserRequest) (model.User, error) {
	rows, err := r.pool.Query(ctx, `
		UPDATE users
		SET user_name = $1, user_nick_name = $2, email = $3
		WHERE user_id = $4
		RETURNING `+userColumns,
		update.UserName, update.UserNickName, update.Email, userID,
	)
	if err != nil {
		return model.User{}, fmt.Errorf("updating user: %w", err)
	}

	updated, err := pgx.CollectExactlyOneRow(rows, scanUser)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return model.User{}, backend.ErrNotFound
	case IsUniqueViolation(err):
		return model.User{}, backend.ErrDuplicate
	case err != nil:
		return model.User{}, fmt.Errorf("updating user: %w", err)
	}
	return updated, nil
}

func (r *Repository) ListLocations(ctx context.Context) ([]model.Location, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT location_id, location_name, address, zip_code, active_player_count, reviews
		FROM locations
		ORDER BY location_id`)
	if err != nil {
		return nil, fmt.Errorf("querying locations: %w", err)
	}

	locations, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Location, error) {
		var l model.Location
		err := row.Scan(&l.LocationID, &l.LocationName, &l.Address, &l.ZipCode, &l.ActivePlayerCount, &l.Reviews)
		return l, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning locations: %w", err)
	}
	return locations, nil
}

// SeedLocations inserts the locations whose name is not yet catalogued.
func (r *Repository) SeedLocations(ctx context.Context, locations []model.Location) error {
	batch := &pgx.Batch{}
	for _, l := range locations {
		batch.Queue(`
			INSERT INTO locations (location_name, address, zip_code, active_player_count, reviews)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (location_name) DO NOTHING`,
			l.LocationName, l.Address, l.ZipCode, l.ActivePlayerCount, l.Reviews,
		)
	}

	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("seeding locations: %w", err)
	}
	return nil
}

func (r *Repository) ListUserLocations(ctx context.Context, userID int) ([]model.UserLocation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, location_id
		FROM user_locations
		WHERE user_id = $1
		ORDER BY id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying user locations: %w", err)
	}

	memberships, err := pgx.CollectRows(rows, pgx.RowToStructByPos[model.UserLocation])
	if err != nil {
		return nil, fmt.Errorf("scanning user locations: %w", err)
	}
	return memberships, nil
}

func (r *Repository) CreateUserLocation(ctx context.Context, userID, locationID int) (model.UserLocation, error) {
	var ul model.UserLocation
	err := r.pool.QueryRow(ctx, `
		INSERT INTO user_locations (user_id, location_id)
		VALUES ($1, $2)
		RETURNING id, user_id, location_id`,
		userID, locationID,
	).Scan(&ul.ID, &ul.UserID, &ul.LocationID)

	switch {
	case IsUniqueViolation(err):
		return model.UserLocation{}, backend.ErrDuplicate
	case IsForeignKeyViolation(err):
		return model.UserLocation{}, backend.ErrNotFound
	case err != nil:
		return model.UserLocation{}, fmt.Errorf("inserting user location: %w", err)
	}
	return ul, nil
}

var _ backend.Repository = (*Repository)(nil)
