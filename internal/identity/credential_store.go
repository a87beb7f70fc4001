package identity

import (
	"errors"
	"fmt"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const currentSlot = "current"

// ErrNoCredential reports that no credential has been persisted.
var ErrNoCredential = errors.New("identity: no stored credential")

// StoredCredential is the persisted form of the signed-in credential.
type StoredCredential struct {
	Slot         string    `gorm:"column:slot;primaryKey;size:32;not null"`
	UserID       string    `gorm:"column:user_id;size:190;not null"`
	Email        string    `gorm:"column:user_email;size:320"`
	DisplayName  string    `gorm:"column:user_display_name;size:320"`
	PhotoURL     string    `gorm:"column:user_photo_url;size:512"`
	IDToken      string    `gorm:"column:id_token;type:text"`
	RefreshToken string    `gorm:"column:refresh_token;type:text"`
	ExpiresAt    time.Time `gorm:"column:expires_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName exposes the table backing the persisted credential.
func (StoredCredential) TableName() string {
	return "session_credentials"
}

// CredentialStore keeps the single current credential across process runs.
type CredentialStore struct {
	db *gorm.DB
}

// OpenCredentialStore opens (or creates) the sqlite file at path.
func OpenCredentialStore(path string) (*CredentialStore, error) {
	if path == "" {
		return nil, fmt.Errorf("identity: credential store path is required")
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return NewCredentialStore(db)
}

// NewCredentialStore wraps an existing connection and ensures the schema is present.
func NewCredentialStore(db *gorm.DB) (*CredentialStore, error) {
	if db == nil {
		return nil, fmt.Errorf("identity: database connection required")
	}
	if err := db.AutoMigrate(&StoredCredential{}); err != nil {
		return nil, err
	}
	return &CredentialStore{db: db}, nil
}

// Load returns the persisted credential or ErrNoCredential.
func (s *CredentialStore) Load() (Credential, error) {
	var record StoredCredential
	err := s.db.Where("slot = ?", currentSlot).Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Credential{}, ErrNoCredential
	}
	if err != nil {
		return Credential{}, err
	}
	return Credential{
		UserID:       record.UserID,
		Email:        record.Email,
		DisplayName:  record.DisplayName,
		PhotoURL:     record.PhotoURL,
		IDToken:      record.IDToken,
		RefreshToken: record.RefreshToken,
		ExpiresAt:    record.ExpiresAt,
	}, nil
}

// Save replaces the persisted credential.
func (s *CredentialStore) Save(credential Credential) error {
	record := StoredCredential{
		Slot:         currentSlot,
		UserID:       credential.UserID,
		Email:        credential.Email,
		DisplayName:  credential.DisplayName,
		PhotoURL:     credential.PhotoURL,
		IDToken:      credential.IDToken,
		RefreshToken: credential.RefreshToken,
		ExpiresAt:    credential.ExpiresAt.UTC(),
	}
	return s.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&record).Error
}

// Clear removes the persisted credential. Clearing an empty store is not an error.
func (s *CredentialStore) Clear() error {
	return s.db.Where("slot = ?", currentSlot).Delete(&StoredCredential{}).Error
}

// Close releases the underlying connection.
func (s *CredentialStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
