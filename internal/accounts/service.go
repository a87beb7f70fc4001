package accounts

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// MinPasswordLength is the shortest password the service accepts.
const MinPasswordLength = 6

// ProviderGoogle is the provider id recorded for Google identities.
const ProviderGoogle = "google.com"

const (
	defaultRefreshTTL = 30 * 24 * time.Hour
	refreshTokenBytes = 32
)

var (
	ErrInvalidEmail        = errors.New("accounts: invalid email")
	ErrWeakPassword        = errors.New("accounts: password too short")
	ErrEmailExists         = errors.New("accounts: email already registered")
	ErrEmailNotFound       = errors.New("accounts: no account for email")
	ErrInvalidPassword     = errors.New("accounts: invalid password")
	ErrUserNotFound        = errors.New("accounts: user not found")
	ErrInvalidRefreshToken = errors.New("accounts: invalid refresh token")
	ErrInvalidIdentity     = errors.New("accounts: invalid identity")
)

// ServiceConfig describes the dependencies required by Service.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	RefreshTTL time.Duration
	// PasswordCost is the bcrypt cost; bcrypt.DefaultCost when zero.
	PasswordCost int
	Logger       *zap.Logger
}

// Service registers users and authenticates them by password, federated
// identity, or refresh token.
type Service struct {
	db         *gorm.DB
	now        func() time.Time
	refreshTTL time.Duration
	cost       int
	logger     *zap.Logger
}

// NewService constructs the account service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("accounts: database connection required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	refreshTTL := cfg.RefreshTTL
	if refreshTTL <= 0 {
		refreshTTL = defaultRefreshTTL
	}
	cost := cfg.PasswordCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: cfg.Database, now: clock, refreshTTL: refreshTTL, cost: cost, logger: logger}, nil
}

// SignUp registers an email/password account.
func (s *Service) SignUp(ctx context.Context, email, password string) (Account, error) {
	address, err := parseEmail(email)
	if err != nil {
		return Account{}, err
	}
	if len(password) < MinPasswordLength {
		return Account{}, ErrWeakPassword
	}
	if _, err := s.byEmail(ctx, address); err == nil {
		return Account{}, ErrEmailExists
	} else if !errors.Is(err, ErrEmailNotFound) {
		return Account{}, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return Account{}, fmt.Errorf("accounts: hash password: %w", err)
	}
	account, err := s.create(ctx, Account{Email: address, PasswordHash: string(hashed)})
	if err != nil {
		return Account{}, err
	}
	s.logger.Info("account registered", zap.String("user_id", account.UserID))
	return account, nil
}

// SignInWithPassword authenticates an email/password account.
func (s *Service) SignInWithPassword(ctx context.Context, email, password string) (Account, error) {
	address, err := parseEmail(email)
	if err != nil {
		return Account{}, err
	}
	account, err := s.byEmail(ctx, address)
	if err != nil {
		return Account{}, err
	}
	if account.PasswordHash == "" {
		return Account{}, ErrInvalidPassword
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return Account{}, ErrInvalidPassword
	}
	return account, nil
}

// UpdateProfile sets the display name and photo of an account. An empty
// displayName keeps the current one; clearPhoto removes the photo.
func (s *Service) UpdateProfile(ctx context.Context, userID, displayName, photoURL string, clearPhoto bool) (Account, error) {
	account, err := s.Lookup(ctx, userID)
	if err != nil {
		return Account{}, err
	}
	updates := map[string]interface{}{}
	if name := normalize(displayName); name != "" {
		updates["display_name"] = name
		account.DisplayName = name
	}
	if photo := normalize(photoURL); photo != "" {
		updates["photo_url"] = photo
		account.PhotoURL = photo
	} else if clearPhoto {
		updates["photo_url"] = ""
		account.PhotoURL = ""
	}
	if len(updates) == 0 {
		return account, nil
	}
	if err := s.db.WithContext(ctx).Model(&Account{}).Where("user_id = ?", account.UserID).Updates(updates).Error; err != nil {
		return Account{}, fmt.Errorf("accounts: update profile: %w", err)
	}
	return account, nil
}

// SignInWithGoogle resolves a verified Google profile to an account, linking it
// to an existing account with the same email or creating one.
func (s *Service) SignInWithGoogle(ctx context.Context, profile GoogleProfile) (Account, error) {
	subject := normalize(profile.Subject)
	if subject == "" {
		return Account{}, ErrInvalidIdentity
	}
	now := s.now().UTC()

	var identity Identity
	err := s.db.WithContext(ctx).
		Where("provider = ? AND subject = ?", ProviderGoogle, subject).
		Take(&identity).Error
	if err == nil {
		_ = s.db.WithContext(ctx).Model(&Identity{}).
			Where("provider = ? AND subject = ?", ProviderGoogle, subject).
			Update("last_seen_at", now).Error
		return s.Lookup(ctx, identity.UserID)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return Account{}, fmt.Errorf("accounts: identity lookup: %w", err)
	}

	address, err := parseEmail(profile.Email)
	if err != nil {
		return Account{}, ErrInvalidIdentity
	}
	account, err := s.byEmail(ctx, address)
	if errors.Is(err, ErrEmailNotFound) {
		account, err = s.create(ctx, Account{
			Email:       address,
			DisplayName: normalize(profile.Name),
			PhotoURL:    normalize(profile.Picture),
		})
	}
	if err != nil {
		return Account{}, err
	}

	identity = Identity{Provider: ProviderGoogle, Subject: subject, UserID: account.UserID, LastSeenAt: now}
	if err := s.db.WithContext(ctx).Create(&identity).Error; err != nil {
		return Account{}, fmt.Errorf("accounts: link identity: %w", err)
	}
	s.logger.Info("google identity linked", zap.String("user_id", account.UserID))
	return account, nil
}

// Lookup returns the account with userID.
func (s *Service) Lookup(ctx context.Context, userID string) (Account, error) {
	var account Account
	err := s.db.WithContext(ctx).Where("user_id = ?", normalize(userID)).Take(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Account{}, ErrUserNotFound
	}
	if err != nil {
		return Account{}, fmt.Errorf("accounts: lookup: %w", err)
	}
	return account, nil
}

// IssueRefreshToken mints a refresh token for userID.
func (s *Service) IssueRefreshToken(ctx context.Context, userID string) (string, error) {
	raw := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("accounts: refresh token entropy: %w", err)
	}
	token := base64.RawURLEncoding.EncodeToString(raw)
	record := RefreshToken{
		TokenHash:        hashToken(token),
		UserID:           userID,
		ExpiresAtSeconds: s.now().UTC().Add(s.refreshTTL).Unix(),
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return "", fmt.Errorf("accounts: store refresh token: %w", err)
	}
	return token, nil
}

// Refresh resolves a refresh token to its account.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Account, error) {
	token := normalize(refreshToken)
	if token == "" {
		return Account{}, ErrInvalidRefreshToken
	}
	var record RefreshToken
	err := s.db.WithContext(ctx).Where("token_hash = ?", hashToken(token)).Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Account{}, ErrInvalidRefreshToken
	}
	if err != nil {
		return Account{}, fmt.Errorf("accounts: refresh lookup: %w", err)
	}
	if s.now().UTC().Unix() >= record.ExpiresAtSeconds {
		return Account{}, ErrInvalidRefreshToken
	}
	account, err := s.Lookup(ctx, record.UserID)
	if errors.Is(err, ErrUserNotFound) {
		return Account{}, ErrInvalidRefreshToken
	}
	return account, err
}

func (s *Service) byEmail(ctx context.Context, address string) (Account, error) {
	var account Account
	err := s.db.WithContext(ctx).Where("email = ?", address).Take(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Account{}, ErrEmailNotFound
	}
	if err != nil {
		return Account{}, fmt.Errorf("accounts: email lookup: %w", err)
	}
	return account, nil
}

func (s *Service) create(ctx context.Context, account Account) (Account, error) {
	userID, err := uuid.NewV7()
	if err != nil {
		return Account{}, fmt.Errorf("accounts: user id: %w", err)
	}
	account.UserID = userID.String()
	if err := s.db.WithContext(ctx).Create(&account).Error; err != nil {
		return Account{}, fmt.Errorf("accounts: create: %w", err)
	}
	return account, nil
}

func parseEmail(value string) (string, error) {
	address := normalizeEmail(value)
	if address == "" {
		return "", ErrInvalidEmail
	}
	parsed, err := mail.ParseAddress(address)
	if err != nil || parsed.Address != address {
		return "", ErrInvalidEmail
	}
	return address, nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
