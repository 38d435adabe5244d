package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"update-broadcast-go/internal/models"

	"github.com/lib/pq"
)

//go:embed schema.sql
var schemaSQL string

const pqUniqueViolation = "23505"

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// RunMigrations creates tables if they don't exist and applies schema updates
func (s *PostgresStore) RunMigrations(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return err
	}

	// Apply migrations for existing tables
	migrations := []string{
		`ALTER TABLE push_subscriptions ADD COLUMN IF NOT EXISTS tenant_id VARCHAR(64) NOT NULL DEFAULT '';`,
		`ALTER TABLE push_subscriptions ADD COLUMN IF NOT EXISTS expires_at TIMESTAMP WITH TIME ZONE;`,
		`ALTER TABLE app_updates ADD COLUMN IF NOT EXISTS deleted_at TIMESTAMP WITH TIME ZONE;`,
	}

	for _, migration := range migrations {
		if _, err := s.db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

// Subscription methods

func (s *PostgresStore) SavePushSubscription(ctx context.Context, userID int, tenantID, endpoint, p256dh, auth string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO push_subscriptions (user_id, tenant_id, endpoint, p256dh_key, auth_key, is_active, created_at)
		 VALUES ($1, $2, $3, $4, $5, TRUE, NOW())
		 ON CONFLICT (endpoint) DO UPDATE
		 SET user_id = EXCLUDED.user_id, tenant_id = EXCLUDED.tenant_id,
		     p256dh_key = EXCLUDED.p256dh_key, auth_key = EXCLUDED.auth_key,
		     is_active = TRUE, expires_at = NULL`,
		userID, tenantID, endpoint, p256dh, auth,
	)
	return err
}

func (s *PostgresStore) FindActiveSubscriptions(ctx context.Context, tenantIDs []string) ([]models.PushSubscription, error) {
	query := `SELECT id, user_id, tenant_id, endpoint, p256dh_key, auth_key, is_active, expires_at, created_at
	          FROM push_subscriptions
	          WHERE is_active = TRUE AND (expires_at IS NULL OR expires_at > NOW())`
	args := []any{}
	if len(tenantIDs) > 0 {
		query += ` AND tenant_id = ANY($1)`
		args = append(args, pq.Array(tenantIDs))
	}
	query += ` ORDER BY id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []models.PushSubscription
	for rows.Next() {
		var sub models.PushSubscription
		var expiresAt sql.NullTime
		if err := rows.Scan(&sub.ID, &sub.UserID, &sub.TenantID, &sub.Endpoint, &sub.P256dh, &sub.Auth, &sub.IsActive, &expiresAt, &sub.CreatedAt); err != nil {
			continue
		}
		if expiresAt.Valid {
			t := expiresAt.Time
			sub.ExpiresAt = &t
		}
		subs = append(subs, sub)
	}

	return subs, rows.Err()
}

func (s *PostgresStore) DeactivateSubscriptions(ctx context.Context, ids []int) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE push_subscriptions SET is_active = FALSE WHERE id = ANY($1)`,
		pq.Array(ids),
	)
	return err
}

// Broadcast record methods

func (s *PostgresStore) FindBroadcastRecordByVersion(ctx context.Context, version string) (*models.BroadcastRecord, error) {
	var rec models.BroadcastRecord
	var notes pq.StringArray
	var details []byte

	err := s.db.QueryRowContext(ctx,
		`SELECT id, version, release_notes, priority, broadcast_by,
		        total_recipients, successful_sends, failed_sends, error_details,
		        created_at, updated_at
		 FROM app_updates WHERE version = $1 AND deleted_at IS NULL`,
		version,
	).Scan(&rec.ID, &rec.Version, &notes, &rec.Priority, &rec.BroadcastBy,
		&rec.TotalRecipients, &rec.SuccessfulSends, &rec.FailedSends, &details,
		&rec.CreatedAt, &rec.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rec.ReleaseNotes = notes
	if len(details) > 0 {
		if err := json.Unmarshal(details, &rec.ErrorDetails); err != nil {
			return nil, fmt.Errorf("decoding error_details: %w", err)
		}
	}
	return &rec, nil
}

func (s *PostgresStore) InsertBroadcastRecord(ctx context.Context, rec *models.BroadcastRecord) error {
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO app_updates (version, release_notes, priority, broadcast_by,
		                          total_recipients, successful_sends, failed_sends, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		 RETURNING id, created_at, updated_at`,
		rec.Version, pq.Array(rec.ReleaseNotes), rec.Priority, rec.BroadcastBy,
		rec.TotalRecipients, rec.SuccessfulSends, rec.FailedSends,
	).Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
		return ErrDuplicateVersion
	}
	return err
}

func (s *PostgresStore) UpdateBroadcastRecord(ctx context.Context, rec *models.BroadcastRecord) error {
	var details any
	if len(rec.ErrorDetails) > 0 {
		encoded, err := json.Marshal(rec.ErrorDetails)
		if err != nil {
			return fmt.Errorf("encoding error_details: %w", err)
		}
		details = encoded
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE app_updates
		 SET successful_sends = $1, failed_sends = $2, error_details = $3, updated_at = NOW()
		 WHERE id = $4`,
		rec.SuccessfulSends, rec.FailedSends, details, rec.ID,
	)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}

// User methods

func (s *PostgresStore) CreateUser(ctx context.Context, username, password, role string) (models.User, error) {
	passwordHash, err := models.HashPassword(password)
	if err != nil {
		return models.User{}, err
	}
	token, err := models.GenerateToken()
	if err != nil {
		return models.User{}, err
	}

	var user models.User
	err = s.db.QueryRowContext(ctx,
		`INSERT INTO users (username, password_hash, role, api_token, created_at)
		 VALUES ($1, $2, $3, $4, NOW())
		 RETURNING id, username, password_hash, role, api_token, created_at`,
		username, passwordHash, role, token,
	).Scan(&user.ID, &user.Username, &user.PasswordHash, &user.Role, &user.APIToken, &user.CreatedAt)

	if err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (s *PostgresStore) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	return s.getUser(ctx, `username = $1`, username)
}

func (s *PostgresStore) GetUserByToken(ctx context.Context, token string) (models.User, error) {
	return s.getUser(ctx, `api_token = $1`, token)
}

func (s *PostgresStore) getUser(ctx context.Context, where string, arg any) (models.User, error) {
	var user models.User
	var token sql.NullString

	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, role, api_token, created_at FROM users WHERE `+where,
		arg,
	).Scan(&user.ID, &user.Username, &user.PasswordHash, &user.Role, &token, &user.CreatedAt)

	if err == sql.ErrNoRows {
		return models.User{}, ErrNotFound
	}
	if err != nil {
		return models.User{}, err
	}
	if token.Valid {
		user.APIToken = token.String
	}
	return user, nil
}

func (s *PostgresStore) GetUsers(ctx context.Context) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, username, password_hash, role, api_token, created_at FROM users ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var user models.User
		var token sql.NullString
		if err := rows.Scan(&user.ID, &user.Username, &user.PasswordHash, &user.Role, &token, &user.CreatedAt); err != nil {
			continue
		}
		if token.Valid {
			user.APIToken = token.String
		}
		users = append(users, user)
	}

	return users, nil
}
