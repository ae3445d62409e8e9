// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package account

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/yomira-passport/internal/platform/apperr"
	"github.com/taibuivan/yomira-passport/internal/platform/ctxutil"
	"github.com/taibuivan/yomira-passport/internal/platform/middleware"
	requestutil "github.com/taibuivan/yomira-passport/internal/platform/request"
	"github.com/taibuivan/yomira-passport/internal/platform/respond"
	"github.com/taibuivan/yomira-passport/internal/platform/sec"
	"github.com/taibuivan/yomira-passport/pkg/pagination"
)

// Handler implements the HTTP layer for account management.
//
// # Security
//
// Every route requires a verified bearer token; the admin subtree
// additionally requires the admin role.
type Handler struct {
	accountService *Service
}

// NewHandler constructs a new account [Handler].
func NewHandler(service *Service) *Handler {
	return &Handler{accountService: service}
}

// Routes returns a [chi.Router] configured with the account endpoints.
//
// # Endpoints
//   - GET    /me                    : Own profile
//   - PATCH  /me                    : Update own profile
//   - POST   /me/change-password    : Replace own password
//   - DELETE /me                    : Soft-delete own account (SMS-proved)
//   - GET    /users                 : List accounts (admin)
//   - GET    /users/{uuid}          : Lookup one account (admin)
//   - POST   /users/{uuid}/disable  : Block an account (admin)
//   - POST   /users/{uuid}/enable   : Unblock an account (admin)
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.RequireAuth())

	// Self-service
	router.Get("/me", handler.getMe)
	router.Patch("/me", handler.updateMe)
	router.Post("/me/change-password", handler.changePassword)
	router.Delete("/me", handler.deleteMe)

	// Administration
	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireRole(sec.RoleAdmin))
		r.Get("/users", handler.listUsers)
		r.Get("/users/{uuid}", handler.getUser)
		r.Post("/users/{uuid}/disable", handler.disableUser)
		r.Post("/users/{uuid}/enable", handler.enableUser)
	})

	return router
}

// # Request Payloads

type updateMeRequest struct {
	DisplayName *string `json:"display_name"`
}

type changePasswordRequest struct {
	OldPassword  string `json:"old_password"`
	NewPassword  string `json:"new_password"`
	RefreshToken string `json:"refresh_token"`
}

type deleteMeRequest struct {
	Code string `json:"code"`
}

// # Self-Service Endpoints

/*
getMe retrieves the full private profile of the caller.

GET /api/v1/account/me

Response:
  - 200: auth.User
  - 401: Missing or invalid bearer token
*/
func (handler *Handler) getMe(writer http.ResponseWriter, request *http.Request) {
	principal := ctxutil.GetPrincipal(request.Context())
	if principal == nil {
		respond.Error(writer, request, apperr.TokenMissing())
		return
	}

	user, err := handler.accountService.GetCurrentUser(request.Context(), principal.UUID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, user)
}

/*
updateMe applies partial updates to the caller's profile.

PATCH /api/v1/account/me

Request:
  - Body: updateMeRequest (partial JSON)

Response:
  - 200: auth.User with the changes applied
  - 400: Validation failure
*/
func (handler *Handler) updateMe(writer http.ResponseWriter, request *http.Request) {
	principal := ctxutil.GetPrincipal(request.Context())
	if principal == nil {
		respond.Error(writer, request, apperr.TokenMissing())
		return
	}

	var input updateMeRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, err := handler.accountService.UpdateUser(request.Context(), principal.UUID, UpdateUserInput{
		DisplayName: input.DisplayName,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, user)
}

/*
changePassword replaces the caller's password.

POST /api/v1/account/me/change-password

Request:
  - Body: changePasswordRequest. RefreshToken identifies the calling
    session so it survives the revocation of all other sessions.

Response:
  - 204: Password replaced
  - 400: Policy violation
  - 401: Wrong old password
*/
func (handler *Handler) changePassword(writer http.ResponseWriter, request *http.Request) {
	principal := ctxutil.GetPrincipal(request.Context())
	if principal == nil {
		respond.Error(writer, request, apperr.TokenMissing())
		return
	}

	var input changePasswordRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	err := handler.accountService.ChangePassword(request.Context(),
		principal.UUID, input.OldPassword, input.NewPassword, input.RefreshToken)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}

/*
deleteMe soft-deletes the caller's account after SMS proof.

DELETE /api/v1/account/me

Request:
  - Body: deleteMeRequest (Code for the delete_user scene)

Response:
  - 204: Account deleted, all sessions revoked
  - 401: Wrong or expired code
*/
func (handler *Handler) deleteMe(writer http.ResponseWriter, request *http.Request) {
	principal := ctxutil.GetPrincipal(request.Context())
	if principal == nil {
		respond.Error(writer, request, apperr.TokenMissing())
		return
	}

	var input deleteMeRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.accountService.DeleteUser(request.Context(), principal.UUID, input.Code); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}

// # Administration Endpoints

/*
listUsers returns one page of accounts.

GET /api/v1/account/users?page=&limit=

Response:
  - 200: Paginated []auth.User
  - 403: Caller is not an admin
*/
func (handler *Handler) listUsers(writer http.ResponseWriter, request *http.Request) {
	params := pagination.FromRequest(request)

	users, meta, err := handler.accountService.ListUsers(request.Context(), params)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Paginated(writer, users, meta)
}

/*
getUser retrieves one account by public identifier.

GET /api/v1/account/users/{uuid}

Response:
  - 200: auth.User
  - 404: Unknown account
*/
func (handler *Handler) getUser(writer http.ResponseWriter, request *http.Request) {
	userUUID := chi.URLParam(request, "uuid")

	user, err := handler.accountService.GetUser(request.Context(), userUUID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, user)
}

/*
disableUser blocks an account and revokes its sessions.

POST /api/v1/account/users/{uuid}/disable
*/
func (handler *Handler) disableUser(writer http.ResponseWriter, request *http.Request) {
	userUUID := chi.URLParam(request, "uuid")

	if err := handler.accountService.DisableUser(request.Context(), userUUID); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}

/*
enableUser lifts the disabled flag from an account.

POST /api/v1/account/users/{uuid}/enable
*/
func (handler *Handler) enableUser(writer http.ResponseWriter, request *http.Request) {
	userUUID := chi.URLParam(request, "uuid")

	if err := handler.accountService.EnableUser(request.Context(), userUUID); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}
