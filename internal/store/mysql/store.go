// Package mysql implements store.Store on MySQL through gorm.
package mysql

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/clairecatohanson/rock-of-ages-api/internal/domain"
	"github.com/clairecatohanson/rock-of-ages-api/internal/store"
)

const (
	errDuplicateEntry   = 1062
	errNoReferencedRow  = 1452
	errRowIsReferenced  = 1451
	defaultMaxOpenConns = 10
)

// Store provides MySQL-backed persistence.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

var _ store.Store = (*Store)(nil)

// Open connects to dsn and migrates the schema.
func Open(dsn string, logger *slog.Logger) (*Store, error) {
	prepared, err := prepareDSN(dsn)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(gormmysql.Open(prepared), &gorm.Config{
		Logger:         newSlogLogger(logger),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("mysql pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(defaultMaxOpenConns)
	sqlDB.SetMaxIdleConns(defaultMaxOpenConns / 2)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&userModel{}, &sessionModel{}, &typeModel{}, &rockModel{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	if logger != nil {
		logger.Info("MySQL database opened", "addr", addrOf(prepared))
	}

	return &Store{db: db, logger: logger}, nil
}

// prepareDSN forces the driver options the store relies on: time parsing
// in UTC, and matched rather than changed row counts so that an update
// writing identical values still reports the row as found.
func prepareDSN(dsn string) (string, error) {
	cfg, err := mysqldriver.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.ClientFoundRows = true
	return cfg.FormatDSN(), nil
}

func addrOf(dsn string) string {
	cfg, err := mysqldriver.ParseDSN(dsn)
	if err != nil {
		return ""
	}
	return cfg.Addr + "/" + cfg.DBName
}

// mapError converts driver and gorm errors to store errors.
func mapError(err error, notFound, duplicate *store.Error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return duplicate.WithCause(err)
	}

	var me *mysqldriver.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case errDuplicateEntry:
			return duplicate.WithCause(err)
		case errNoReferencedRow, errRowIsReferenced:
			return store.ErrInvalidInput.WithCause(err)
		}
	}
	return err
}

// Close closes the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Stats counts the rows in every table.
func (s *Store) Stats(ctx context.Context) (store.Stats, error) {
	var users, sessions, types, rocks int64
	db := s.db.WithContext(ctx)

	for _, c := range []struct {
		model any
		dest  *int64
	}{
		{&userModel{}, &users},
		{&sessionModel{}, &sessions},
		{&typeModel{}, &types},
		{&rockModel{}, &rocks},
	} {
		if err := db.Model(c.model).Count(c.dest).Error; err != nil {
			return store.Stats{}, fmt.Errorf("count rows: %w", err)
		}
	}

	return store.Stats{Users: int(users), Sessions: int(sessions), Types: int(types), Rocks: int(rocks)}, nil
}

// Users

// CreateUser inserts a new user.
func (s *Store) CreateUser(ctx context.Context, user *domain.User) error {
	err := s.db.WithContext(ctx).Create(newUserModel(user)).Error
	return mapError(err, store.ErrUserNotFound, store.ErrEmailExists)
}

// GetUser retrieves a user by ID.
func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	var m userModel
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, mapError(err, store.ErrUserNotFound, store.ErrAlreadyExists)
	}
	return m.toDomain(), nil
}

// GetUserByEmail retrieves a user by email, ignoring case.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	var m userModel
	err := s.db.WithContext(ctx).Where("email_lower = ?", store.NormalizeEmail(email)).First(&m).Error
	if err != nil {
		return nil, mapError(err, store.ErrUserNotFound, store.ErrAlreadyExists)
	}
	return m.toDomain(), nil
}

// UpdateUser performs a full row update on an existing user.
func (s *Store) UpdateUser(ctx context.Context, user *domain.User) error {
	m := newUserModel(user)
	result := s.db.WithContext(ctx).Model(&userModel{}).Where("id = ?", user.ID).Updates(map[string]any{
		"email":         m.Email,
		"email_lower":   m.EmailLower,
		"password_hash": m.PasswordHash,
		"first_name":    m.FirstName,
		"last_name":     m.LastName,
		"updated_at":    m.UpdatedAt,
		"last_login_at": m.LastLoginAt,
	})
	if result.Error != nil {
		return mapError(result.Error, store.ErrUserNotFound, store.ErrEmailExists)
	}
	if result.RowsAffected == 0 {
		return store.ErrUserNotFound
	}
	return nil
}

// ListUsers returns all users, oldest first.
func (s *Store) ListUsers(ctx context.Context) ([]*domain.User, error) {
	var models []userModel
	if err := s.db.WithContext(ctx).Order("created_at ASC, id ASC").Find(&models).Error; err != nil {
		return nil, err
	}

	users := make([]*domain.User, 0, len(models))
	for i := range models {
		users = append(users, models[i].toDomain())
	}
	return users, nil
}

// Sessions

// CreateSession inserts a new session.
func (s *Store) CreateSession(ctx context.Context, session *domain.Session) error {
	err := s.db.WithContext(ctx).Omit("User").Create(newSessionModel(session)).Error
	return mapError(err, store.ErrSessionNotFound, store.ErrAlreadyExists)
}

func (s *Store) firstSession(ctx context.Context, query string, args ...any) (*domain.Session, error) {
	var m sessionModel
	if err := s.db.WithContext(ctx).Where(query, args...).First(&m).Error; err != nil {
		return nil, mapError(err, store.ErrSessionNotFound, store.ErrAlreadyExists)
	}
	return m.toDomain(), nil
}

// GetSession retrieves a session by ID.
func (s *Store) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	return s.firstSession(ctx, "id = ?", id)
}

// GetSessionByRefreshToken finds the unexpired session holding tokenHash.
func (s *Store) GetSessionByRefreshToken(ctx context.Context, tokenHash string) (*domain.Session, error) {
	return s.firstSession(ctx, "refresh_token_hash = ? AND expires_at > ?", tokenHash, time.Now().UTC())
}

// UpdateSession performs a full row update on an existing session.
func (s *Store) UpdateSession(ctx context.Context, session *domain.Session) error {
	result := s.db.WithContext(ctx).Model(&sessionModel{}).Where("id = ?", session.ID).Updates(map[string]any{
		"refresh_token_hash": session.RefreshTokenHash,
		"expires_at":         session.ExpiresAt,
		"last_seen_at":       session.LastSeenAt,
		"ip_address":         session.IPAddress,
		"user_agent":         session.UserAgent,
	})
	if result.Error != nil {
		return mapError(result.Error, store.ErrSessionNotFound, store.ErrAlreadyExists)
	}
	if result.RowsAffected == 0 {
		return store.ErrSessionNotFound
	}
	return nil
}

// DeleteSession removes a session.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&sessionModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return store.ErrSessionNotFound
	}
	return nil
}

// ListUserSessions returns a user's sessions, most recently used first.
func (s *Store) ListUserSessions(ctx context.Context, userID string) ([]*domain.Session, error) {
	var models []sessionModel
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("last_seen_at DESC").Find(&models).Error
	if err != nil {
		return nil, err
	}

	sessions := make([]*domain.Session, 0, len(models))
	for i := range models {
		sessions = append(sessions, models[i].toDomain())
	}
	return sessions, nil
}

// DeleteExpiredSessions removes sessions past their expiry and returns how many.
func (s *Store) DeleteExpiredSessions(ctx context.Context) (int, error) {
	result := s.db.WithContext(ctx).Where("expires_at <= ?", time.Now().UTC()).Delete(&sessionModel{})
	if result.Error != nil {
		return 0, result.Error
	}
	return int(result.RowsAffected), nil
}
