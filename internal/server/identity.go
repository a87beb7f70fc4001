package server

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/MarcoPoloResearchLab/bookhaven/internal/accounts"
	"github.com/MarcoPoloResearchLab/bookhaven/internal/auth"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	actionSignUp             = "accounts:signUp"
	actionSignInWithPassword = "accounts:signInWithPassword"
	actionUpdate             = "accounts:update"
	actionSignInWithIdp      = "accounts:signInWithIdp"
	actionLookup             = "accounts:lookup"
	actionToken              = "token"

	attributePhotoURL = "PHOTO_URL"
	grantRefreshToken = "refresh_token"
)

// Identity error messages, in the identity service's wire vocabulary.
const (
	reasonInvalidEmail        = "INVALID_EMAIL"
	reasonWeakPassword        = "WEAK_PASSWORD : Password should be at least 6 characters"
	reasonEmailExists         = "EMAIL_EXISTS"
	reasonEmailNotFound       = "EMAIL_NOT_FOUND"
	reasonInvalidPassword     = "INVALID_PASSWORD"
	reasonUserNotFound        = "USER_NOT_FOUND"
	reasonInvalidRefreshToken = "INVALID_REFRESH_TOKEN"
	reasonInvalidGrantType    = "INVALID_GRANT_TYPE"
	reasonInvalidIDToken      = "INVALID_ID_TOKEN"
	reasonTokenExpired        = "TOKEN_EXPIRED"
	reasonInvalidIdpResponse  = "INVALID_IDP_RESPONSE"
	reasonInvalidProviderID   = "INVALID_PROVIDER_ID"
	reasonOperationNotAllowed = "OPERATION_NOT_ALLOWED"
	reasonInvalidRequest      = "INVALID_REQUEST"
	reasonNotFound            = "NOT_FOUND"
	reasonInternal            = "INTERNAL_ERROR"
)

type passwordRequestPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type updateRequestPayload struct {
	IDToken         string   `json:"idToken"`
	DisplayName     string   `json:"displayName"`
	PhotoURL        string   `json:"photoUrl"`
	DeleteAttribute []string `json:"deleteAttribute"`
}

type idpRequestPayload struct {
	PostBody   string `json:"postBody"`
	RequestURI string `json:"requestUri"`
}

type lookupRequestPayload struct {
	IDToken string `json:"idToken"`
}

type accountPayload struct {
	LocalID      string `json:"localId"`
	Email        string `json:"email"`
	DisplayName  string `json:"displayName,omitempty"`
	PhotoURL     string `json:"photoUrl,omitempty"`
	IDToken      string `json:"idToken,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
	ExpiresIn    string `json:"expiresIn,omitempty"`
}

type lookupResponsePayload struct {
	Users []accountPayload `json:"users"`
}

type tokenResponsePayload struct {
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    string `json:"expires_in"`
	TokenType    string `json:"token_type"`
	UserID       string `json:"user_id"`
}

type identityErrorPayload struct {
	Error identityErrorBody `json:"error"`
}

type identityErrorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (h *httpHandler) handleIdentity(c *gin.Context) {
	switch c.Param("action") {
	case actionSignUp:
		h.handleSignUp(c)
	case actionSignInWithPassword:
		h.handleSignInWithPassword(c)
	case actionUpdate:
		h.handleUpdateAccount(c)
	case actionSignInWithIdp:
		h.handleSignInWithIdp(c)
	case actionLookup:
		h.handleLookup(c)
	case actionToken:
		h.handleRefreshToken(c)
	default:
		writeIdentityError(c, http.StatusNotFound, reasonNotFound)
	}
}

func (h *httpHandler) handleSignUp(c *gin.Context) {
	var request passwordRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		writeIdentityError(c, http.StatusBadRequest, reasonInvalidRequest)
		return
	}
	account, err := h.accounts.SignUp(c.Request.Context(), request.Email, request.Password)
	if err != nil {
		h.writeAccountError(c, err)
		return
	}
	h.respondWithSession(c, account)
}

func (h *httpHandler) handleSignInWithPassword(c *gin.Context) {
	var request passwordRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		writeIdentityError(c, http.StatusBadRequest, reasonInvalidRequest)
		return
	}
	account, err := h.accounts.SignInWithPassword(c.Request.Context(), request.Email, request.Password)
	if err != nil {
		h.writeAccountError(c, err)
		return
	}
	h.respondWithSession(c, account)
}

func (h *httpHandler) handleUpdateAccount(c *gin.Context) {
	var request updateRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		writeIdentityError(c, http.StatusBadRequest, reasonInvalidRequest)
		return
	}
	claims, ok := h.idTokenClaims(c, request.IDToken)
	if !ok {
		return
	}
	clearPhoto := false
	for _, attribute := range request.DeleteAttribute {
		if strings.EqualFold(attribute, attributePhotoURL) {
			clearPhoto = true
		}
	}
	account, err := h.accounts.UpdateProfile(c.Request.Context(), claims.UserID, request.DisplayName, request.PhotoURL, clearPhoto)
	if err != nil {
		h.writeAccountError(c, err)
		return
	}
	payload, err := h.accountSession(c.Request.Context(), account, false)
	if err != nil {
		h.writeAccountError(c, err)
		return
	}
	c.JSON(http.StatusOK, payload)
}

func (h *httpHandler) handleSignInWithIdp(c *gin.Context) {
	var request idpRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		writeIdentityError(c, http.StatusBadRequest, reasonInvalidRequest)
		return
	}
	if h.verifier == nil {
		writeIdentityError(c, http.StatusBadRequest, reasonOperationNotAllowed)
		return
	}
	values, err := url.ParseQuery(request.PostBody)
	if err != nil {
		writeIdentityError(c, http.StatusBadRequest, reasonInvalidRequest)
		return
	}
	if values.Get("providerId") != accounts.ProviderGoogle {
		writeIdentityError(c, http.StatusBadRequest, reasonInvalidProviderID)
		return
	}
	claims, err := h.verifier.Verify(c.Request.Context(), values.Get("id_token"))
	if err != nil {
		h.logger.Warn("google token verification failed", zap.Error(err))
		writeIdentityError(c, http.StatusBadRequest, reasonInvalidIdpResponse)
		return
	}
	account, err := h.accounts.SignInWithGoogle(c.Request.Context(), accounts.GoogleProfile{
		Subject: claims.Subject,
		Email:   claims.Email,
		Name:    claims.Name,
		Picture: claims.Picture,
	})
	if err != nil {
		h.writeAccountError(c, err)
		return
	}
	h.respondWithSession(c, account)
}

func (h *httpHandler) handleLookup(c *gin.Context) {
	var request lookupRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		writeIdentityError(c, http.StatusBadRequest, reasonInvalidRequest)
		return
	}
	claims, ok := h.idTokenClaims(c, request.IDToken)
	if !ok {
		return
	}
	account, err := h.accounts.Lookup(c.Request.Context(), claims.UserID)
	if err != nil {
		h.writeAccountError(c, err)
		return
	}
	c.JSON(http.StatusOK, lookupResponsePayload{Users: []accountPayload{profilePayload(account)}})
}

func (h *httpHandler) handleRefreshToken(c *gin.Context) {
	if c.PostForm("grant_type") != grantRefreshToken {
		writeIdentityError(c, http.StatusBadRequest, reasonInvalidGrantType)
		return
	}
	refreshToken := c.PostForm("refresh_token")
	account, err := h.accounts.Refresh(c.Request.Context(), refreshToken)
	if err != nil {
		h.writeAccountError(c, err)
		return
	}
	idToken, expiresIn, err := h.tokens.IssueIDToken(c.Request.Context(), profileFor(account))
	if err != nil {
		h.writeAccountError(c, err)
		return
	}
	c.JSON(http.StatusOK, tokenResponsePayload{
		IDToken:      idToken,
		RefreshToken: refreshToken,
		ExpiresIn:    strconv.FormatInt(expiresIn, 10),
		TokenType:    "Bearer",
		UserID:       account.UserID,
	})
}

func (h *httpHandler) respondWithSession(c *gin.Context, account accounts.Account) {
	payload, err := h.accountSession(c.Request.Context(), account, true)
	if err != nil {
		h.writeAccountError(c, err)
		return
	}
	c.JSON(http.StatusOK, payload)
}

// accountSession mints an ID token for account and, when withRefresh is set, a refresh token.
func (h *httpHandler) accountSession(ctx context.Context, account accounts.Account, withRefresh bool) (accountPayload, error) {
	payload := profilePayload(account)
	idToken, expiresIn, err := h.tokens.IssueIDToken(ctx, profileFor(account))
	if err != nil {
		return accountPayload{}, err
	}
	payload.IDToken = idToken
	payload.ExpiresIn = strconv.FormatInt(expiresIn, 10)
	if withRefresh {
		refreshToken, err := h.accounts.IssueRefreshToken(ctx, account.UserID)
		if err != nil {
			return accountPayload{}, err
		}
		payload.RefreshToken = refreshToken
	}
	return payload, nil
}

func (h *httpHandler) idTokenClaims(c *gin.Context, idToken string) (auth.IDTokenClaims, bool) {
	claims, err := h.tokens.ValidateToken(idToken)
	if err == nil {
		return claims, true
	}
	if errors.Is(err, auth.ErrExpiredToken) {
		writeIdentityError(c, http.StatusBadRequest, reasonTokenExpired)
	} else {
		h.logger.Warn("id token validation failed", zap.Error(err))
		writeIdentityError(c, http.StatusBadRequest, reasonInvalidIDToken)
	}
	return auth.IDTokenClaims{}, false
}

func (h *httpHandler) writeAccountError(c *gin.Context, err error) {
	reason := ""
	switch {
	case errors.Is(err, accounts.ErrInvalidEmail):
		reason = reasonInvalidEmail
	case errors.Is(err, accounts.ErrWeakPassword):
		reason = reasonWeakPassword
	case errors.Is(err, accounts.ErrEmailExists):
		reason = reasonEmailExists
	case errors.Is(err, accounts.ErrEmailNotFound):
		reason = reasonEmailNotFound
	case errors.Is(err, accounts.ErrInvalidPassword):
		reason = reasonInvalidPassword
	case errors.Is(err, accounts.ErrUserNotFound):
		reason = reasonUserNotFound
	case errors.Is(err, accounts.ErrInvalidRefreshToken):
		reason = reasonInvalidRefreshToken
	case errors.Is(err, accounts.ErrInvalidIdentity):
		reason = reasonInvalidIdpResponse
	}
	if reason != "" {
		writeIdentityError(c, http.StatusBadRequest, reason)
		return
	}
	h.logger.Error("identity request failed", zap.String("action", c.Param("action")), zap.Error(err))
	writeIdentityError(c, http.StatusInternalServerError, reasonInternal)
}

func writeIdentityError(c *gin.Context, status int, message string) {
	c.JSON(status, identityErrorPayload{Error: identityErrorBody{Code: status, Message: message}})
}

func profileFor(account accounts.Account) auth.Profile {
	return auth.Profile{
		UserID:  account.UserID,
		Email:   account.Email,
		Name:    account.DisplayName,
		Picture: account.PhotoURL,
	}
}

func profilePayload(account accounts.Account) accountPayload {
	return accountPayload{
		LocalID:     account.UserID,
		Email:       account.Email,
		DisplayName: account.DisplayName,
		PhotoURL:    account.PhotoURL,
	}
}
