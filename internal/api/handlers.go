/**
 * @description
 * HTTP handlers for the ledger-service's API endpoints. Handlers parse
 * incoming requests, resolve the caller's composite account status, call
 * the application service, and map its errors onto stable HTTP statuses.
 * No handler mutates state directly; all writes go through the service and
 * its repository.
 *
 * @dependencies
 * - encoding/json, net/http: Standard Go libraries.
 * - internal/app, internal/domain, internal/store: Service logic, models, and custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lumenbank/ledger-service/internal/app"
	"github.com/lumenbank/ledger-service/internal/domain"
	"github.com/lumenbank/ledger-service/internal/store"
)

// LedgerHandlers holds the application service that handlers will use.
type LedgerHandlers struct {
	service      *app.Service
	adminLimiter *app.RateLimiter
}

// NewLedgerHandlers creates a new instance of LedgerHandlers. The admin
// limiter may be nil, which disables terminal rate limiting.
func NewLedgerHandlers(service *app.Service, adminLimiter *app.RateLimiter) *LedgerHandlers {
	return &LedgerHandlers{service: service, adminLimiter: adminLimiter}
}

// resolveCaller loads the authenticated caller and their composite status.
// A missing or invalid bearer subject resolves to StatusUnauthenticated.
func (h *LedgerHandlers) resolveCaller(r *http.Request) (*domain.User, domain.AccountStatus) {
	subject, ok := CallerID(r.Context())
	if !ok {
		return nil, domain.StatusUnauthenticated
	}
	callerID, err := uuid.Parse(subject)
	if err != nil {
		return nil, domain.StatusUnauthenticated
	}
	user, status, err := h.service.ResolveIdentity(r.Context(), callerID)
	if err != nil {
		log.Printf("level=error component=api msg=\"identity resolution failed\" caller_id=%s err=%v", callerID, err)
		return nil, domain.StatusLoading
	}
	return user, status
}

// requireStatus resolves the caller and enforces an allowed status set,
// writing the error response itself when the caller does not qualify.
func (h *LedgerHandlers) requireStatus(w http.ResponseWriter, r *http.Request, allowed ...domain.AccountStatus) (*domain.User, bool) {
	user, status := h.resolveCaller(r)
	for _, s := range allowed {
		if status == s {
			return user, true
		}
	}
	switch status {
	case domain.StatusUnauthenticated:
		h.writeError(w, http.StatusUnauthorized, "User not authenticated")
	case domain.StatusLoading:
		h.writeError(w, http.StatusServiceUnavailable, "Identity not available, retry")
	default:
		h.writeError(w, http.StatusForbidden, "Account status "+string(status)+" does not permit this operation")
	}
	return nil, false
}

// RegisterHandler handles explicit email/password registration.
func (h *LedgerHandlers) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if _, err := h.service.Register(r.Context(), req.Email, req.Password); err != nil {
		switch {
		case errors.Is(err, app.ErrMissingCredentials):
			h.writeError(w, http.StatusBadRequest, "Email and password are required")
		case errors.Is(err, store.ErrEmailTaken):
			h.writeError(w, http.StatusConflict, "User already registered")
		default:
			log.Printf("level=error component=api endpoint=register err=%v", err)
			h.writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]string{"message": "Registered Successfully"})
}

// AssertIdentityHandler records a verified sign-in from the external
// identity provider, creating the user on first assertion.
func (h *LedgerHandlers) AssertIdentityHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Name     string `json:"name"`
		Provider string `json:"provider"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := h.service.AssertExternalIdentity(r.Context(), req.Email, req.Name, req.Provider)
	if err != nil {
		if errors.Is(err, app.ErrMissingCredentials) {
			h.writeError(w, http.StatusBadRequest, "Email is required")
			return
		}
		log.Printf("level=error component=api endpoint=assert_identity err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	h.writeJSON(w, http.StatusOK, user)
}

// TransferHandler handles balance transfers between two accounts.
func (h *LedgerHandlers) TransferHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.requireStatus(w, r, domain.StatusAuthenticated)
	if !ok {
		return
	}

	var req domain.TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Missing required fields")
		return
	}
	// No transferring on behalf of another principal.
	if req.Sender != caller.ID {
		h.writeError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	_, err := h.service.Transfer(r.Context(), caller.ID, req.Recipient, req.Amount)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrUserNotFound):
			h.writeError(w, http.StatusNotFound, "Sender or recipient not found")
		case errors.Is(err, store.ErrInsufficientFunds):
			h.writeError(w, http.StatusBadRequest, "Insufficient funds")
		case errors.Is(err, app.ErrInvalidAmount), errors.Is(err, app.ErrMissingRecipient), errors.Is(err, app.ErrSelfTransfer):
			h.writeError(w, http.StatusBadRequest, err.Error())
		default:
			log.Printf("level=error component=api endpoint=transfer sender_id=%s err=%v", caller.ID, err)
			h.writeError(w, http.StatusInternalServerError, "Failed to process transaction")
		}
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"message": "Transaction successful"})
}

// TransactionsHandler returns the caller's recent transfer history.
func (h *LedgerHandlers) TransactionsHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.requireStatus(w, r, domain.StatusAuthenticated, domain.StatusIncomplete)
	if !ok {
		return
	}

	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			h.writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = parsed
	}

	transfers, err := h.service.RecentTransfers(r.Context(), caller.ID, limit)
	if err != nil {
		log.Printf("level=error component=api endpoint=transactions user_id=%s err=%v", caller.ID, err)
		h.writeError(w, http.StatusInternalServerError, "Failed to fetch transactions")
		return
	}
	if transfers == nil {
		transfers = []domain.TransferView{}
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"transactions": transfers})
}

// IssueCardHandler provisions a new credit card for the caller.
func (h *LedgerHandlers) IssueCardHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.requireStatus(w, r, domain.StatusAuthenticated)
	if !ok {
		return
	}

	var req struct {
		UserID uuid.UUID `json:"userId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	card, err := h.service.IssueCard(r.Context(), caller.ID, req.UserID)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrNotCardOwner), errors.Is(err, app.ErrCardLimitReached):
			h.writeError(w, http.StatusForbidden, err.Error())
		case errors.Is(err, store.ErrUserNotFound):
			h.writeError(w, http.StatusNotFound, "User not found")
		case errors.Is(err, app.ErrCardProvisioning):
			h.writeError(w, http.StatusInternalServerError, err.Error())
		default:
			log.Printf("level=error component=api endpoint=issue_card owner_id=%s err=%v", req.UserID, err)
			h.writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"creditCard": card})
}

// VerificationEmailHandler issues an activation token for the given email.
// The status codes for invalid input mirror the previous system's contract.
func (h *LedgerHandlers) VerificationEmailHandler(w http.ResponseWriter, r *http.Request) {
	var body map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	raw, present := body["email"]
	if !present || raw == nil {
		h.writeError(w, http.StatusUnauthorized, "Email is required")
		return
	}
	email, isString := raw.(string)
	if !isString {
		h.writeError(w, http.StatusPaymentRequired, "Email must be a string")
		return
	}

	verificationURL, err := h.service.IssueVerificationToken(r.Context(), email)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrEmailRequired):
			h.writeError(w, http.StatusUnauthorized, "Email is required")
		case errors.Is(err, app.ErrEmailInvalid):
			h.writeError(w, http.StatusForbidden, "Email is invalid")
		case errors.Is(err, app.ErrRateLimited):
			h.writeError(w, http.StatusTooManyRequests, "Too many verification requests")
		case errors.Is(err, store.ErrUserNotFound):
			h.writeError(w, http.StatusNotFound, "User not found")
		default:
			log.Printf("level=error component=api endpoint=verification_email err=%v", err)
			h.writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"verificationUrl": verificationURL})
}

// ActivateHandler redeems a single-use activation token.
func (h *LedgerHandlers) ActivateHandler(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if err := h.service.RedeemVerificationToken(r.Context(), token); err != nil {
		if errors.Is(err, store.ErrTokenInvalid) {
			h.writeError(w, http.StatusBadRequest, "Invalid or expired token")
			return
		}
		log.Printf("level=error component=api endpoint=activate err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error during verification")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Account activated successfully",
	})
}

// AdminCommandHandler runs one admin terminal line.
func (h *LedgerHandlers) AdminCommandHandler(w http.ResponseWriter, r *http.Request) {
	caller, status := h.resolveCaller(r)
	// The capability check inside ExecuteCommand is authoritative, but a
	// caller without an active session is rejected here like everywhere else.
	if status != domain.StatusAuthenticated && status != domain.StatusIncomplete {
		h.writeError(w, http.StatusForbidden, "Unauthorized - Admin access required")
		return
	}

	if h.adminLimiter != nil {
		allowed, err := h.adminLimiter.Allow(r.Context(), "admin_cmd", caller.ID.String())
		if err != nil {
			log.Printf("level=warn component=api endpoint=cmd msg=\"rate limiter unavailable\" err=%v", err)
		} else if !allowed {
			h.writeError(w, http.StatusTooManyRequests, "Too many commands")
			return
		}
	}

	var req struct {
		Cmd string `json:"cmd"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.service.ExecuteCommand(r.Context(), caller, req.Cmd)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrForbidden):
			h.writeError(w, http.StatusForbidden, "Unauthorized - Admin access required")
		case errors.Is(err, app.ErrUnknownCommand):
			h.writeJSON(w, http.StatusNotFound, map[string]interface{}{"message": result})
		case errors.Is(err, app.ErrInvalidCommand):
			h.writeJSON(w, http.StatusBadRequest, map[string]interface{}{"message": result})
		case errors.Is(err, store.ErrUserNotFound):
			h.writeError(w, http.StatusNotFound, "User not found")
		default:
			log.Printf("level=error component=api endpoint=cmd err=%v", err)
			h.writeError(w, http.StatusInternalServerError, "Terminal error, contact an operator")
		}
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"message": result})
}

// PurgeHandler wipes all four tables and reports per-table counts.
func (h *LedgerHandlers) PurgeHandler(w http.ResponseWriter, r *http.Request) {
	caller, _ := h.resolveCaller(r)
	result, err := h.service.PurgeAll(r.Context(), caller)
	if err != nil {
		if errors.Is(err, app.ErrForbidden) {
			h.writeError(w, http.StatusForbidden, "Unauthorized - Admin access required")
			return
		}
		log.Printf("level=error component=api endpoint=purge err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"deletedCounts": result})
}

// SubmitUserDataHandler completes the caller's profile.
func (h *LedgerHandlers) SubmitUserDataHandler(w http.ResponseWriter, r *http.Request) {
	caller, status := h.resolveCaller(r)
	if caller == nil {
		h.writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	targetID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil || targetID != caller.ID {
		h.writeError(w, http.StatusUnauthorized, "Unauthorized access")
		return
	}

	var req struct {
		FormData *domain.ProfileForm  `json:"formData"`
		Status   domain.AccountStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.FormData == nil {
		h.writeError(w, http.StatusBadRequest, "No form data provided")
		return
	}
	if req.Status != domain.StatusIncomplete {
		h.writeError(w, http.StatusBadRequest, "Invalid user status")
		return
	}

	if err := h.service.CompleteProfile(r.Context(), caller.ID, *req.FormData, status); err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidProfileState):
			h.writeError(w, http.StatusBadRequest, "Invalid user status")
		case errors.Is(err, app.ErrProfileFieldsMissing):
			h.writeError(w, http.StatusBadRequest, "Required fields are missing")
		case errors.Is(err, app.ErrInvalidGender):
			h.writeError(w, http.StatusBadRequest, "Invalid gender value")
		case errors.Is(err, store.ErrUserNotFound):
			h.writeError(w, http.StatusNotFound, "User not found")
		case errors.Is(err, store.ErrEmailTaken):
			h.writeError(w, http.StatusConflict, "Email already in use")
		default:
			log.Printf("level=error component=api endpoint=submit_user_data user_id=%s err=%v", caller.ID, err)
			h.writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"message": "User data updated successfully"})
}

// writeJSON writes a JSON response with the given status code.
func (h *LedgerHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing JSON error responses.
func (h *LedgerHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"message": message})
}
