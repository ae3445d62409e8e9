// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/yomira-passport/internal/platform/apperr"
	"github.com/taibuivan/yomira-passport/internal/platform/ctxutil"
	"github.com/taibuivan/yomira-passport/internal/platform/middleware"
	requestutil "github.com/taibuivan/yomira-passport/internal/platform/request"
	"github.com/taibuivan/yomira-passport/internal/platform/respond"
	"github.com/taibuivan/yomira-passport/internal/platform/validate"
	"github.com/taibuivan/yomira-passport/internal/sms"
)

// # Definitions & Constructors

// CodeIssuer is the delivery seam for the send endpoint. Implemented by
// [sms.Controller].
type CodeIssuer interface {
	Issue(ctx context.Context, scene sms.Scene, mobile string) (int64, error)
}

// Handler implements authentication-related HTTP endpoints.
//
// # Scope
//
// This handler manages the account lifecycle entry points (code delivery,
// registration, both login paths, rotation, logout, credential reset) plus
// the token-validation sidecar used by peer services.
type Handler struct {
	authService *Service
	codeIssuer  CodeIssuer
}

// NewHandler constructs a new [Handler] with its dependencies.
func NewHandler(service *Service, issuer CodeIssuer) *Handler {
	return &Handler{authService: service, codeIssuer: issuer}
}

// Routes returns a [chi.Router] configured with authentication routes.
//
// # Endpoints
//   - POST /sms/send       : Issues a one-time code.
//   - POST /register       : Creates a new account.
//   - POST /login          : Authenticates by password.
//   - POST /login/code     : Authenticates by SMS code.
//   - POST /refresh        : Rotates the refresh token.
//   - POST /logout         : Revokes one refresh token.
//   - POST /reset-password : Replaces the password after SMS proof.
//   - POST /validate-token : Verifies an access token for peer services.
//   - POST /logout-all     : Revokes every session (bearer-guarded).
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	// Public endpoints
	router.Post("/sms/send", handler.sendCode)
	router.Post("/register", handler.register)
	router.Post("/login", handler.loginByPassword)
	router.Post("/login/code", handler.loginByCode)
	router.Post("/refresh", handler.refresh)
	router.Post("/logout", handler.logout)
	router.Post("/reset-password", handler.resetPassword)
	router.Post("/validate-token", handler.validateToken)

	// Protected endpoints
	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth())
		r.Post("/logout-all", handler.logoutAll)
	})

	return router
}

// # Request Payloads

type sendCodeRequest struct {
	Mobile string `json:"mobile"`
	Scene  string `json:"scene"`
}

type registerRequest struct {
	Mobile      string `json:"mobile"`
	Code        string `json:"code"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

type passwordLoginRequest struct {
	Mobile   string `json:"mobile"`
	Password string `json:"password"`
}

type codeLoginRequest struct {
	Mobile string `json:"mobile"`
	Code   string `json:"code"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type resetPasswordRequest struct {
	Mobile      string `json:"mobile"`
	Code        string `json:"code"`
	NewPassword string `json:"new_password"`
}

type validateTokenRequest struct {
	AccessToken string `json:"access_token"`
}

type sendCodeResponse struct {
	RetryAfterSeconds int64 `json:"retry_after_seconds"`
}

// # Endpoints

/*
sendCode issues a one-time verification code.

POST /api/v1/auth/sms/send

Request:
  - Body: sendCodeRequest (Mobile, Scene)

Response:
  - 200: sendCodeResponse with the cooldown in seconds
  - 400: Invalid mobile or unknown scene
  - 429: RateLimited while cooling down or locked out
*/
func (handler *Handler) sendCode(writer http.ResponseWriter, request *http.Request) {
	var input sendCodeRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	if err := validator.Mobile(FieldMobile, input.Mobile).Required(FieldScene, input.Scene).Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	scene, ok := sms.ParseScene(input.Scene)
	if !ok {
		respond.Error(writer, request, validate.RequiredError(FieldScene, "Unknown scene"))
		return
	}

	retryAfter, err := handler.codeIssuer.Issue(request.Context(), scene, input.Mobile)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, sendCodeResponse{RetryAfterSeconds: retryAfter})
}

/*
register creates a new account from a verified mobile number.

POST /api/v1/auth/register

Request:
  - Body: registerRequest (Mobile, Code, Password, DisplayName)

Response:
  - 201: AuthResult (user plus tokens)
  - 400: Validation failure
  - 401: Wrong or expired code
  - 409: Mobile already registered
*/
func (handler *Handler) register(writer http.ResponseWriter, request *http.Request) {
	var input registerRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	result, err := handler.authService.Register(request.Context(), RegisterInput{
		Mobile:      input.Mobile,
		Code:        input.Code,
		Password:    input.Password,
		DisplayName: input.DisplayName,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, result)
}

/*
loginByPassword authenticates with mobile number and password.

POST /api/v1/auth/login

Response:
  - 200: AuthResult
  - 401: WrongPassword (also for unknown mobiles)
  - 403: AccountLocked / UserDisabled
*/
func (handler *Handler) loginByPassword(writer http.ResponseWriter, request *http.Request) {
	var input passwordLoginRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	if err := validator.Mobile(FieldMobile, input.Mobile).Required(FieldPassword, input.Password).Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	result, err := handler.authService.LoginByPassword(request.Context(), input.Mobile, input.Password)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, result)
}

/*
loginByCode authenticates with mobile number and a one-time SMS code.

POST /api/v1/auth/login/code

Response:
  - 200: AuthResult
  - 401: CaptchaWrong / CaptchaExpired
  - 404: UserNotFound
*/
func (handler *Handler) loginByCode(writer http.ResponseWriter, request *http.Request) {
	var input codeLoginRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	if err := validator.Mobile(FieldMobile, input.Mobile).Code(FieldCode, input.Code).Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	result, err := handler.authService.LoginByCode(request.Context(), input.Mobile, input.Code)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, result)
}

/*
refresh rotates a refresh token into a fresh pair.

POST /api/v1/auth/refresh

Response:
  - 200: AuthResult with rotated tokens
  - 401: TokenInvalid / TokenExpired / TokenRevoked
*/
func (handler *Handler) refresh(writer http.ResponseWriter, request *http.Request) {
	var input refreshRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	result, err := handler.authService.RefreshToken(request.Context(), input.RefreshToken)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, result)
}

/*
logout revokes one refresh token. Idempotent; an empty body token is fine.

POST /api/v1/auth/logout
*/
func (handler *Handler) logout(writer http.ResponseWriter, request *http.Request) {
	var input refreshRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.authService.Logout(request.Context(), input.RefreshToken); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}

/*
logoutAll revokes every session of the authenticated caller.

POST /api/v1/auth/logout-all
*/
func (handler *Handler) logoutAll(writer http.ResponseWriter, request *http.Request) {
	principal := ctxutil.GetPrincipal(request.Context())
	if principal == nil {
		respond.Error(writer, request, apperr.TokenMissing())
		return
	}

	if err := handler.authService.LogoutAll(request.Context(), principal.UUID); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}

/*
resetPassword replaces the password after SMS proof of mobile ownership.

POST /api/v1/auth/reset-password

Response:
  - 204: Password replaced, all sessions revoked
  - 400: Policy violation
  - 401: Wrong or expired code
*/
func (handler *Handler) resetPassword(writer http.ResponseWriter, request *http.Request) {
	var input resetPasswordRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	err := handler.authService.ResetPassword(request.Context(), input.Mobile, input.Code, input.NewPassword)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}

/*
validateToken verifies an access token on behalf of a peer service.

POST /api/v1/auth/validate-token

Response:
  - 200: sec.Principal (uuid, mobile, role, expires_at)
  - 401: TokenMissing / TokenInvalid / TokenExpired
*/
func (handler *Handler) validateToken(writer http.ResponseWriter, request *http.Request) {
	var input validateTokenRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	principal, err := handler.authService.ValidateAccessToken(request.Context(), input.AccessToken)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, principal)
}
