package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-manager/internal/auth"
	"github.com/ukydev/fleet-manager/internal/db"
	"github.com/ukydev/fleet-manager/internal/errs"
	"github.com/ukydev/fleet-manager/internal/middleware"
	"github.com/ukydev/fleet-manager/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	errBadCredentials = fmt.Errorf("invalid credentials: %w", errs.ErrUnauthenticated)
	errInactive       = fmt.Errorf("account is deactivated: %w", errs.ErrUnauthenticated)
	errNoSession      = fmt.Errorf("no session: %w", errs.ErrUnauthenticated)
)

// AuthHandler serves the two-step login (password, then one-time code)
// and the account endpoints of the signed-in user.
type AuthHandler struct {
	tokens *auth.Service
	otp    *auth.OTPService
	users  db.UserCollection
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(tokens *auth.Service, otp *auth.OTPService, users db.UserCollection) *AuthHandler {
	return &AuthHandler{tokens: tokens, otp: otp, users: users}
}

// Login checks the password and sends a one-time code to the user's
// phone. The session token is issued by VerifyOTP.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}

	var req models.LoginRequest
	if err := readJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeMessage(w, http.StatusBadRequest, "username and password are required")
		return
	}

	user, err := h.users.FindUserByUsername(r.Context(), req.Username)
	switch {
	case errors.Is(err, errs.ErrNotFound):
		writeError(w, r, errBadCredentials)
		return
	case err != nil:
		writeError(w, r, err)
		return
	case !user.IsActive:
		writeError(w, r, errInactive)
		return
	case !h.tokens.CheckPassword(req.Password, user.PasswordHash):
		writeError(w, r, errBadCredentials)
		return
	}

	challenge, err := h.otp.Start(r.Context(), user)
	if errors.Is(err, auth.ErrNoOTPDestination) {
		writeMessage(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err != nil {
		log.WithError(err).WithField("username", user.Username).Error("Failed to start OTP challenge")
		writeMessage(w, http.StatusServiceUnavailable, "failed to send verification code")
		return
	}

	log.WithField("username", user.Username).Info("Login challenge issued")
	writeJSON(w, http.StatusAccepted, challenge)
}

// VerifyOTP completes a login challenge and issues the tokens.
func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}

	var req models.VerifyOTPRequest
	if err := readJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.ChallengeID == "" || req.Code == "" {
		writeMessage(w, http.StatusBadRequest, "challenge id and code are required")
		return
	}

	userID, err := h.otp.Verify(r.Context(), req.ChallengeID, req.Code)
	switch {
	case err == nil:
	case errors.Is(err, auth.ErrInvalidOTP):
		writeMessage(w, http.StatusUnauthorized, "invalid verification code")
		return
	case errors.Is(err, auth.ErrChallengeNotFound), errors.Is(err, auth.ErrTooManyAttempts):
		writeMessage(w, http.StatusUnauthorized, err.Error()+", please log in again")
		return
	default:
		log.WithError(err).Error("Failed to verify OTP")
		writeMessage(w, http.StatusServiceUnavailable, "failed to verify code")
		return
	}

	user, err := h.users.FindUserByID(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := models.LoginResponse{User: *user}
	if resp.Token, err = h.tokens.GenerateToken(user); err != nil {
		writeError(w, r, err)
		return
	}
	if resp.RefreshToken, err = h.tokens.GenerateRefreshToken(); err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.users.UpdateLastLogin(r.Context(), userID); err != nil {
		log.WithError(err).WithField("user_id", userID).Warn("Failed to update last login")
	}
	writeJSON(w, http.StatusOK, resp)
}

// Register creates an account. Driver accounts must name the driver
// record they act for.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}

	var req models.RegisterRequest
	if err := readJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := auth.ValidateRegistration(req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.checkUnique(r, req.Username, req.Email); err != nil {
		writeError(w, r, err)
		return
	}

	hash, err := h.tokens.HashPassword(req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	now := time.Now()
	user := models.User{
		ID:           primitive.NewObjectID(),
		Username:     req.Username,
		Email:        req.Email,
		Phone:        req.Phone,
		PasswordHash: hash,
		Role:         req.Role,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if user.Role == models.RoleDriver {
		user.DriverID = req.DriverID
	}

	if err := h.users.InsertUser(r.Context(), user); err != nil {
		writeError(w, r, fmt.Errorf("create user %s: %w", user.Username, err))
		return
	}

	log.WithFields(log.Fields{"username": user.Username, "role": user.Role}).Info("User registered")
	writeJSON(w, http.StatusCreated, user)
}

// checkUnique fails with ErrConflict when username or email is taken.
func (h *AuthHandler) checkUnique(r *http.Request, username, email string) error {
	if _, err := h.users.FindUserByUsername(r.Context(), username); err == nil {
		return fmt.Errorf("username %q: %w", username, errs.ErrConflict)
	}
	if _, err := h.users.FindUserByEmail(r.Context(), email); err == nil {
		return fmt.Errorf("email %q: %w", email, errs.ErrConflict)
	}
	return nil
}

// currentUser loads the account of the signed-in caller.
func (h *AuthHandler) currentUser(r *http.Request) (*models.User, error) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		return nil, errNoSession
	}
	return h.users.FindUserByID(r.Context(), claims.UserID)
}

// GetProfile returns the signed-in user's account.
func (h *AuthHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	user, err := h.currentUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// UpdateProfile changes the name, email or phone of the signed-in user.
// Empty fields are left as they are.
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPut) {
		return
	}

	var req struct {
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Email     string `json:"email"`
		Phone     string `json:"phone"`
	}
	if err := readJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	user, err := h.currentUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	verr := &errs.ValidationError{}
	if req.Email != "" {
		if err := auth.ValidateEmail(req.Email); err != nil {
			verr.Add("email", err.Error())
		}
	}
	if req.Phone != "" {
		if err := auth.ValidatePhone(req.Phone); err != nil {
			verr.Add("phone", err.Error())
		}
	}
	if err := verr.Err(); err != nil {
		writeError(w, r, err)
		return
	}

	if req.Email != "" && req.Email != user.Email {
		if _, err := h.users.FindUserByEmail(r.Context(), req.Email); err == nil {
			writeError(w, r, fmt.Errorf("email %q: %w", req.Email, errs.ErrConflict))
			return
		}
		user.Email = req.Email
	}
	if req.FirstName != "" {
		user.FirstName = req.FirstName
	}
	if req.LastName != "" {
		user.LastName = req.LastName
	}
	if req.Phone != "" {
		user.Phone = req.Phone
	}

	if err := h.users.UpdateUser(r.Context(), user.ID.Hex(), *user); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// ChangePassword replaces the signed-in user's password after checking
// the current one.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}

	var req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if err := readJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.CurrentPassword == "" {
		writeMessage(w, http.StatusBadRequest, "current password is required")
		return
	}
	if err := auth.ValidatePassword(req.NewPassword); err != nil {
		verr := &errs.ValidationError{}
		verr.Add("new_password", err.Error())
		writeError(w, r, verr)
		return
	}

	user, err := h.currentUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !h.tokens.CheckPassword(req.CurrentPassword, user.PasswordHash) {
		writeMessage(w, http.StatusUnauthorized, "current password is incorrect")
		return
	}

	if user.PasswordHash, err = h.tokens.HashPassword(req.NewPassword); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.users.UpdateUser(r.Context(), user.ID.Hex(), *user); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "password changed"})
}
