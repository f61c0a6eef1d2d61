package mysql

import (
	"time"

	"github.com/clairecatohanson/rock-of-ages-api/internal/domain"
	"github.com/clairecatohanson/rock-of-ages-api/internal/store"
)

type userModel struct {
	ID           string     `gorm:"primaryKey;size:64"`
	Email        string     `gorm:"size:255;not null"`
	EmailLower   string     `gorm:"size:255;not null;uniqueIndex"`
	PasswordHash string     `gorm:"size:255;not null"`
	FirstName    string     `gorm:"size:100;not null"`
	LastName     string     `gorm:"size:100;not null"`
	CreatedAt    time.Time  `gorm:"not null"`
	UpdatedAt    time.Time  `gorm:"not null"`
	LastLoginAt  *time.Time // NULL until the first login
}

func (userModel) TableName() string { return "users" }

type sessionModel struct {
	ID               string    `gorm:"primaryKey;size:64"`
	UserID           string    `gorm:"size:64;not null;index"`
	User             userModel `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	RefreshTokenHash string    `gorm:"size:64;not null;uniqueIndex"`
	ExpiresAt        time.Time `gorm:"not null;index"`
	CreatedAt        time.Time `gorm:"not null"`
	LastSeenAt       time.Time `gorm:"not null"`
	IPAddress        string    `gorm:"size:64"`
	UserAgent        string    `gorm:"size:512"`
}

func (sessionModel) TableName() string { return "sessions" }

type typeModel struct {
	ID         int64  `gorm:"primaryKey;autoIncrement"`
	Label      string `gorm:"size:100;not null"`
	LabelLower string `gorm:"size:100;not null;uniqueIndex"`
}

func (typeModel) TableName() string { return "types" }

type rockModel struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	Name      string    `gorm:"size:155;not null"`
	Weight    float64   `gorm:"not null"`
	TypeID    int64     `gorm:"not null;index"`
	Type      typeModel `gorm:"foreignKey:TypeID;constraint:OnDelete:RESTRICT"`
	UserID    string    `gorm:"size:64;not null;index"`
	Owner     userModel `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time `gorm:"not null"`
}

func (rockModel) TableName() string { return "rocks" }

func newUserModel(u *domain.User) *userModel {
	m := &userModel{
		ID:           u.ID,
		Email:        u.Email,
		EmailLower:   store.NormalizeEmail(u.Email),
		PasswordHash: u.PasswordHash,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
	if !u.LastLoginAt.IsZero() {
		t := u.LastLoginAt
		m.LastLoginAt = &t
	}
	return m
}

func (m *userModel) toDomain() *domain.User {
	u := &domain.User{
		ID:           m.ID,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		FirstName:    m.FirstName,
		LastName:     m.LastName,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
	if m.LastLoginAt != nil {
		u.LastLoginAt = *m.LastLoginAt
	}
	return u
}

func newSessionModel(s *domain.Session) *sessionModel {
	return &sessionModel{
		ID:               s.ID,
		UserID:           s.UserID,
		RefreshTokenHash: s.RefreshTokenHash,
		ExpiresAt:        s.ExpiresAt,
		CreatedAt:        s.CreatedAt,
		LastSeenAt:       s.LastSeenAt,
		IPAddress:        s.IPAddress,
		UserAgent:        s.UserAgent,
	}
}

func (m *sessionModel) toDomain() *domain.Session {
	return &domain.Session{
		ID:               m.ID,
		UserID:           m.UserID,
		RefreshTokenHash: m.RefreshTokenHash,
		ExpiresAt:        m.ExpiresAt,
		CreatedAt:        m.CreatedAt,
		LastSeenAt:       m.LastSeenAt,
		IPAddress:        m.IPAddress,
		UserAgent:        m.UserAgent,
	}
}

func (m *typeModel) toDomain() *domain.Type {
	return &domain.Type{ID: m.ID, Label: m.Label}
}

// toDomain expects Type and Owner to have been preloaded.
func (m *rockModel) toDomain() *domain.Rock {
	return &domain.Rock{
		ID:        m.ID,
		Name:      m.Name,
		Weight:    m.Weight,
		TypeID:    m.TypeID,
		UserID:    m.UserID,
		CreatedAt: m.CreatedAt,
		Type:      m.Type.toDomain(),
		Owner: &domain.User{
			ID:        m.Owner.ID,
			Email:     m.Owner.Email,
			FirstName: m.Owner.FirstName,
			LastName:  m.Owner.LastName,
		},
	}
}
