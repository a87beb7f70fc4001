package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/bookhaven/internal/apperr"
	"go.uber.org/zap"
)

const (
	defaultTimeout     = 5 * time.Second
	defaultRequestURI  = "http://localhost"
	formContentType    = "application/x-www-form-urlencoded"
	jsonContentType    = "application/json"
	pathSignInPassword = "/v1/accounts:signInWithPassword"
	pathSignUp         = "/v1/accounts:signUp"
	pathUpdate         = "/v1/accounts:update"
	pathSignInWithIdp  = "/v1/accounts:signInWithIdp"
	pathLookup         = "/v1/accounts:lookup"
	pathToken          = "/v1/token"
)

var (
	errMissingBaseURL = errors.New("identity: base url required")
	errEmptyLookup    = errors.New("identity: lookup returned no users")
)

// APIError is an identity service error response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("identity service returned %d: %s", e.Status, e.Message)
}

// HTTPProviderConfig configures HTTPProvider.
type HTTPProviderConfig struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	Timeout    time.Duration
	Logger     *zap.Logger
	Clock      func() time.Time
}

// HTTPProvider implements Provider against an Identity Toolkit style REST API.
type HTTPProvider struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
	clock      func() time.Time
}

// NewHTTPProvider constructs an HTTPProvider.
func NewHTTPProvider(cfg HTTPProviderConfig) (*HTTPProvider, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errMissingBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &HTTPProvider{
		baseURL:    baseURL,
		apiKey:     strings.TrimSpace(cfg.APIKey),
		httpClient: httpClient,
		logger:     logger,
		clock:      clock,
	}, nil
}

type passwordRequest struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

type updateRequest struct {
	IDToken           string   `json:"idToken"`
	DisplayName       string   `json:"displayName,omitempty"`
	PhotoURL          string   `json:"photoUrl,omitempty"`
	DeleteAttribute   []string `json:"deleteAttribute,omitempty"`
	ReturnSecureToken bool     `json:"returnSecureToken"`
}

type idpRequest struct {
	PostBody          string `json:"postBody"`
	RequestURI        string `json:"requestUri"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

type lookupRequest struct {
	IDToken string `json:"idToken"`
}

type accountResponse struct {
	LocalID        string `json:"localId"`
	Email          string `json:"email"`
	DisplayName    string `json:"displayName"`
	PhotoURL       string `json:"photoUrl"`
	ProfilePicture string `json:"profilePicture"`
	IDToken        string `json:"idToken"`
	RefreshToken   string `json:"refreshToken"`
	ExpiresIn      string `json:"expiresIn"`
}

type lookupResponse struct {
	Users []accountResponse `json:"users"`
}

type tokenResponse struct {
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    string `json:"expires_in"`
	UserID       string `json:"user_id"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// SignInWithPassword authenticates with email and password.
func (p *HTTPProvider) SignInWithPassword(ctx context.Context, email, password string) (Credential, error) {
	var response accountResponse
	request := passwordRequest{Email: strings.TrimSpace(email), Password: password, ReturnSecureToken: true}
	if err := p.postJSON(ctx, pathSignInPassword, request, &response); err != nil {
		return Credential{}, err
	}
	return p.credentialFrom(response), nil
}

// SignUp registers a new email/password account.
func (p *HTTPProvider) SignUp(ctx context.Context, email, password string) (Credential, error) {
	var response accountResponse
	request := passwordRequest{Email: strings.TrimSpace(email), Password: password, ReturnSecureToken: true}
	if err := p.postJSON(ctx, pathSignUp, request, &response); err != nil {
		return Credential{}, err
	}
	return p.credentialFrom(response), nil
}

// UpdateProfile sets the display name and photo of the account behind idToken.
func (p *HTTPProvider) UpdateProfile(ctx context.Context, idToken string, profile Profile) (Credential, error) {
	request := updateRequest{
		IDToken:           idToken,
		DisplayName:       strings.TrimSpace(profile.DisplayName),
		PhotoURL:          strings.TrimSpace(profile.PhotoURL),
		ReturnSecureToken: true,
	}
	if request.PhotoURL == "" {
		request.DeleteAttribute = []string{"PHOTO_URL"}
	}
	var response accountResponse
	if err := p.postJSON(ctx, pathUpdate, request, &response); err != nil {
		return Credential{}, err
	}
	return p.credentialFrom(response), nil
}

// SignInWithIDToken exchanges an external provider's ID token for a session.
func (p *HTTPProvider) SignInWithIDToken(ctx context.Context, providerID, idToken string) (Credential, error) {
	postBody := url.Values{}
	postBody.Set("id_token", idToken)
	postBody.Set("providerId", providerID)
	request := idpRequest{PostBody: postBody.Encode(), RequestURI: defaultRequestURI, ReturnSecureToken: true}
	var response accountResponse
	if err := p.postJSON(ctx, pathSignInWithIdp, request, &response); err != nil {
		return Credential{}, err
	}
	return p.credentialFrom(response), nil
}

// Lookup returns the profile of the account behind idToken.
func (p *HTTPProvider) Lookup(ctx context.Context, idToken string) (Credential, error) {
	var response lookupResponse
	if err := p.postJSON(ctx, pathLookup, lookupRequest{IDToken: idToken}, &response); err != nil {
		return Credential{}, err
	}
	if len(response.Users) == 0 {
		return Credential{}, apperr.Auth(apperr.CodeUnauthenticated, errEmptyLookup)
	}
	user := response.Users[0]
	return Credential{
		UserID:      user.LocalID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		PhotoURL:    firstNonEmpty(user.PhotoURL, user.ProfilePicture),
	}, nil
}

// Refresh exchanges a refresh token for a fresh ID token.
func (p *HTTPProvider) Refresh(ctx context.Context, refreshToken string) (Credential, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	var response tokenResponse
	if err := p.post(ctx, pathToken, formContentType, strings.NewReader(form.Encode()), &response); err != nil {
		return Credential{}, err
	}
	return Credential{
		UserID:       response.UserID,
		IDToken:      response.IDToken,
		RefreshToken: response.RefreshToken,
		ExpiresAt:    expiryFor(response.IDToken, response.ExpiresIn, p.clock()),
	}, nil
}

func (p *HTTPProvider) credentialFrom(response accountResponse) Credential {
	return Credential{
		UserID:       response.LocalID,
		Email:        response.Email,
		DisplayName:  response.DisplayName,
		PhotoURL:     firstNonEmpty(response.PhotoURL, response.ProfilePicture),
		IDToken:      response.IDToken,
		RefreshToken: response.RefreshToken,
		ExpiresAt:    expiryFor(response.IDToken, response.ExpiresIn, p.clock()),
	}
}

func (p *HTTPProvider) postJSON(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return apperr.Network(fmt.Errorf("identity: encode %s request: %w", path, err))
	}
	return p.post(ctx, path, jsonContentType, bytes.NewReader(body), out)
}

func (p *HTTPProvider) post(ctx context.Context, path, contentType string, body io.Reader, out any) error {
	endpoint := p.baseURL + path
	if p.apiKey != "" {
		endpoint += "?key=" + url.QueryEscape(p.apiKey)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return apperr.Network(err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		p.logger.Warn("identity request failed", zap.String("path", path), zap.Error(err))
		return apperr.Network(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var errResp errorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		message := strings.TrimSpace(errResp.Error.Message)
		if message == "" {
			message = resp.Status
		}
		apiErr := &APIError{Status: resp.StatusCode, Message: message}
		if resp.StatusCode >= http.StatusInternalServerError {
			p.logger.Warn("identity service unavailable", zap.String("path", path), zap.Int("status", resp.StatusCode))
			return apperr.Network(apiErr)
		}
		return &apperr.Error{Kind: apperr.KindAuth, Code: codeForMessage(message), Err: apiErr}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperr.Network(fmt.Errorf("identity: decode %s response: %w", path, err))
	}
	return nil
}

// codeForMessage maps identity service error messages such as
// "WEAK_PASSWORD : Password should be at least 6 characters" onto auth codes.
func codeForMessage(message string) apperr.Code {
	reason := message
	if index := strings.Index(reason, " : "); index >= 0 {
		reason = reason[:index]
	}
	switch strings.ToUpper(strings.TrimSpace(reason)) {
	case "INVALID_LOGIN_CREDENTIALS", "INVALID_PASSWORD", "INVALID_CREDENTIAL":
		return apperr.CodeInvalidCredentials
	case "EMAIL_NOT_FOUND", "USER_NOT_FOUND":
		return apperr.CodeUserNotFound
	case "EMAIL_EXISTS":
		return apperr.CodeEmailAlreadyInUse
	case "INVALID_EMAIL", "MISSING_EMAIL":
		return apperr.CodeInvalidEmail
	case "WEAK_PASSWORD":
		return apperr.CodeWeakPassword
	case "INVALID_REFRESH_TOKEN", "TOKEN_EXPIRED", "INVALID_ID_TOKEN", "USER_DISABLED":
		return apperr.CodeUnauthenticated
	default:
		return apperr.CodeNetworkOrUnknown
	}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
