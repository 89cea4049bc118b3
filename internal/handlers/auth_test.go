package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/fleet-manager/internal/auth"
	"github.com/ukydev/fleet-manager/internal/db"
	"github.com/ukydev/fleet-manager/internal/errs"
	"github.com/ukydev/fleet-manager/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MockUserCollection is a mock implementation of UserCollection
type MockUserCollection struct {
	mock.Mock
}

var _ db.UserCollection = (*MockUserCollection)(nil)

func (m *MockUserCollection) InsertUser(ctx context.Context, user models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserCollection) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserCollection) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserCollection) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserCollection) UpdateUser(ctx context.Context, id string, user models.User) error {
	args := m.Called(ctx, id, user)
	return args.Error(0)
}

func (m *MockUserCollection) UpdateLastLogin(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// captureSender keeps the last code sent so tests can complete a login.
type captureSender struct {
	mu   sync.Mutex
	dest string
	code string
}

func (s *captureSender) SendOTP(_ context.Context, destination, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dest, s.code = destination, code
	return nil
}

func (s *captureSender) last() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.code
}

const testSecret = "handlers-test-secret"

func newTestAuthHandler(users db.UserCollection) (*AuthHandler, *auth.Service, *captureSender) {
	authService := auth.NewService(testSecret, time.Hour)
	sender := &captureSender{}
	otp := auth.NewOTPService(auth.NewMemoryOTPStore(), sender, 5*time.Minute)
	return NewAuthHandler(authService, otp, users), authService, sender
}

func testUser(t *testing.T, authService *auth.Service, password string) *models.User {
	t.Helper()
	hash, err := authService.HashPassword(password)
	require.NoError(t, err)
	return &models.User{
		ID:           primitive.NewObjectID(),
		Username:     "testuser",
		Email:        "test@example.com",
		Phone:        "9876543210",
		PasswordHash: hash,
		Role:         models.RoleManager,
		IsActive:     true,
	}
}

func jsonBody(t *testing.T, v interface{}) *bytes.Buffer {
	t.Helper()
	body, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewBuffer(body)
}

func withClaims(req *http.Request, claims *models.Claims) *http.Request {
	return req.WithContext(auth.WithClaims(req.Context(), claims))
}

func TestAuthHandler_LoginAndVerify(t *testing.T) {
	users := new(MockUserCollection)
	handler, authService, sender := newTestAuthHandler(users)
	user := testUser(t, authService, "password123")

	users.On("FindUserByUsername", mock.Anything, "testuser").Return(user, nil)
	users.On("FindUserByID", mock.Anything, user.ID.Hex()).Return(user, nil)
	users.On("UpdateLastLogin", mock.Anything, user.ID.Hex()).Return(nil)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
		jsonBody(t, models.LoginRequest{Username: "testuser", Password: "password123"}))
	w := httptest.NewRecorder()
	handler.Login(w, req)

	require.Equal(t, http.StatusAccepted, w.Code)
	var challenge models.LoginChallenge
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &challenge))
	assert.NotEmpty(t, challenge.ChallengeID)
	assert.NotContains(t, challenge.Destination, "98765")
	assert.Len(t, sender.last(), auth.OTPLength)

	req = httptest.NewRequest(http.MethodPost, "/api/auth/otp/verify",
		jsonBody(t, models.VerifyOTPRequest{ChallengeID: challenge.ChallengeID, Code: sender.last()}))
	w = httptest.NewRecorder()
	handler.VerifyOTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var response models.LoginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.NotEmpty(t, response.RefreshToken)
	assert.Equal(t, "testuser", response.User.Username)

	claims, err := authService.ValidateToken(response.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID.Hex(), claims.UserID)
	assert.Equal(t, models.RoleManager, claims.Role)

	// A challenge cannot be replayed.
	req = httptest.NewRequest(http.MethodPost, "/api/auth/otp/verify",
		jsonBody(t, models.VerifyOTPRequest{ChallengeID: challenge.ChallengeID, Code: sender.last()}))
	w = httptest.NewRecorder()
	handler.VerifyOTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	users.AssertExpectations(t)
}

func TestAuthHandler_Login(t *testing.T) {
	t.Run("unknown user", func(t *testing.T) {
		users := new(MockUserCollection)
		handler, _, _ := newTestAuthHandler(users)
		users.On("FindUserByUsername", mock.Anything, "testuser").Return(nil, errs.ErrNotFound)

		req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
			jsonBody(t, models.LoginRequest{Username: "testuser", Password: "wrongpassword"}))
		w := httptest.NewRecorder()
		handler.Login(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		users.AssertExpectations(t)
	})

	t.Run("wrong password", func(t *testing.T) {
		users := new(MockUserCollection)
		handler, authService, sender := newTestAuthHandler(users)
		users.On("FindUserByUsername", mock.Anything, "testuser").Return(testUser(t, authService, "password123"), nil)

		req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
			jsonBody(t, models.LoginRequest{Username: "testuser", Password: "wrongpassword"}))
		w := httptest.NewRecorder()
		handler.Login(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Empty(t, sender.last())
	})

	t.Run("inactive user", func(t *testing.T) {
		users := new(MockUserCollection)
		handler, authService, _ := newTestAuthHandler(users)
		user := testUser(t, authService, "password123")
		user.IsActive = false
		users.On("FindUserByUsername", mock.Anything, "testuser").Return(user, nil)

		req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
			jsonBody(t, models.LoginRequest{Username: "testuser", Password: "password123"}))
		w := httptest.NewRecorder()
		handler.Login(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("no phone on file", func(t *testing.T) {
		users := new(MockUserCollection)
		handler, authService, _ := newTestAuthHandler(users)
		user := testUser(t, authService, "password123")
		user.Phone = ""
		users.On("FindUserByUsername", mock.Anything, "testuser").Return(user, nil)

		req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
			jsonBody(t, models.LoginRequest{Username: "testuser", Password: "password123"}))
		w := httptest.NewRecorder()
		handler.Login(w, req)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("store unavailable", func(t *testing.T) {
		users := new(MockUserCollection)
		handler, _, _ := newTestAuthHandler(users)
		users.On("FindUserByUsername", mock.Anything, "testuser").
			Return(nil, errs.Unavailable("find", models.CollectionUsers, assert.AnError))

		req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
			jsonBody(t, models.LoginRequest{Username: "testuser", Password: "password123"}))
		w := httptest.NewRecorder()
		handler.Login(w, req)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("method not allowed", func(t *testing.T) {
		handler, _, _ := newTestAuthHandler(new(MockUserCollection))
		w := httptest.NewRecorder()
		handler.Login(w, httptest.NewRequest(http.MethodGet, "/api/auth/login", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	})
}

func TestAuthHandler_VerifyOTP_WrongCode(t *testing.T) {
	users := new(MockUserCollection)
	handler, authService, sender := newTestAuthHandler(users)
	user := testUser(t, authService, "password123")
	users.On("FindUserByUsername", mock.Anything, "testuser").Return(user, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
		jsonBody(t, models.LoginRequest{Username: "testuser", Password: "password123"}))
	w := httptest.NewRecorder()
	handler.Login(w, req)
	require.Equal(t, http.StatusAccepted, w.Code)

	var challenge models.LoginChallenge
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &challenge))

	wrong := "000000"
	if sender.last() == wrong {
		wrong = "111111"
	}
	req = httptest.NewRequest(http.MethodPost, "/api/auth/otp/verify",
		jsonBody(t, models.VerifyOTPRequest{ChallengeID: challenge.ChallengeID, Code: wrong}))
	w = httptest.NewRecorder()
	handler.VerifyOTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	users.AssertNotCalled(t, "FindUserByID", mock.Anything, mock.Anything)
}

func TestAuthHandler_Register(t *testing.T) {
	valid := models.RegisterRequest{
		Username:  "newuser",
		Email:     "newuser@example.com",
		Phone:     "9123456780",
		Password:  "password123",
		FirstName: "New",
		LastName:  "User",
		Role:      models.RoleManager,
	}

	t.Run("successful registration", func(t *testing.T) {
		users := new(MockUserCollection)
		handler, _, _ := newTestAuthHandler(users)
		users.On("FindUserByUsername", mock.Anything, "newuser").Return(nil, errs.ErrNotFound)
		users.On("FindUserByEmail", mock.Anything, "newuser@example.com").Return(nil, errs.ErrNotFound)
		users.On("InsertUser", mock.Anything, mock.AnythingOfType("models.User")).Return(nil)

		w := httptest.NewRecorder()
		handler.Register(w, httptest.NewRequest(http.MethodPost, "/api/auth/register", jsonBody(t, valid)))

		require.Equal(t, http.StatusCreated, w.Code)
		var created models.User
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
		assert.Equal(t, "newuser", created.Username)
		assert.Equal(t, "9123456780", created.Phone)
		assert.Empty(t, created.DriverID)
		assert.NotContains(t, w.Body.String(), "password")
		users.AssertExpectations(t)
	})

	t.Run("driver keeps driver id", func(t *testing.T) {
		users := new(MockUserCollection)
		handler, _, _ := newTestAuthHandler(users)
		users.On("FindUserByUsername", mock.Anything, "newuser").Return(nil, errs.ErrNotFound)
		users.On("FindUserByEmail", mock.Anything, "newuser@example.com").Return(nil, errs.ErrNotFound)
		users.On("InsertUser", mock.Anything, mock.MatchedBy(func(u models.User) bool {
			return u.Role == models.RoleDriver && u.DriverID == "d1"
		})).Return(nil)

		req := valid
		req.Role = models.RoleDriver
		req.DriverID = "d1"
		w := httptest.NewRecorder()
		handler.Register(w, httptest.NewRequest(http.MethodPost, "/api/auth/register", jsonBody(t, req)))

		assert.Equal(t, http.StatusCreated, w.Code)
		users.AssertExpectations(t)
	})

	t.Run("rejected requests", func(t *testing.T) {
		cases := map[string]func(*models.RegisterRequest){
			"short username":        func(r *models.RegisterRequest) { r.Username = "ab" },
			"bad email":             func(r *models.RegisterRequest) { r.Email = "nope" },
			"bad phone":             func(r *models.RegisterRequest) { r.Phone = "12345" },
			"short password":        func(r *models.RegisterRequest) { r.Password = "short" },
			"unknown role":          func(r *models.RegisterRequest) { r.Role = "viewer" },
			"driver without record": func(r *models.RegisterRequest) { r.Role = models.RoleDriver },
		}
		for name, mutate := range cases {
			t.Run(name, func(t *testing.T) {
				handler, _, _ := newTestAuthHandler(new(MockUserCollection))
				req := valid
				mutate(&req)
				w := httptest.NewRecorder()
				handler.Register(w, httptest.NewRequest(http.MethodPost, "/api/auth/register", jsonBody(t, req)))
				assert.Equal(t, http.StatusBadRequest, w.Code)
				assert.Contains(t, w.Body.String(), `"fields"`)
			})
		}
	})

	t.Run("duplicate username", func(t *testing.T) {
		users := new(MockUserCollection)
		handler, _, _ := newTestAuthHandler(users)
		users.On("FindUserByUsername", mock.Anything, "newuser").Return(&models.User{Username: "newuser"}, nil)

		w := httptest.NewRecorder()
		handler.Register(w, httptest.NewRequest(http.MethodPost, "/api/auth/register", jsonBody(t, valid)))

		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("duplicate email", func(t *testing.T) {
		users := new(MockUserCollection)
		handler, _, _ := newTestAuthHandler(users)
		users.On("FindUserByUsername", mock.Anything, "newuser").Return(nil, errs.ErrNotFound)
		users.On("FindUserByEmail", mock.Anything, "newuser@example.com").Return(&models.User{Username: "other"}, nil)

		w := httptest.NewRecorder()
		handler.Register(w, httptest.NewRequest(http.MethodPost, "/api/auth/register", jsonBody(t, valid)))

		assert.Equal(t, http.StatusConflict, w.Code)
		users.AssertNotCalled(t, "InsertUser", mock.Anything, mock.Anything)
	})
}

func TestAuthHandler_GetProfile(t *testing.T) {
	users := new(MockUserCollection)
	handler, authService, _ := newTestAuthHandler(users)
	user := testUser(t, authService, "password123")
	users.On("FindUserByID", mock.Anything, user.ID.Hex()).Return(user, nil)

	t.Run("with claims", func(t *testing.T) {
		req := withClaims(httptest.NewRequest(http.MethodGet, "/api/auth/profile", nil),
			&models.Claims{UserID: user.ID.Hex(), Username: user.Username, Role: user.Role})
		w := httptest.NewRecorder()
		handler.GetProfile(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"username":"testuser"`)
	})

	t.Run("without claims", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.GetProfile(w, httptest.NewRequest(http.MethodGet, "/api/auth/profile", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestAuthHandler_UpdateProfile(t *testing.T) {
	users := new(MockUserCollection)
	handler, authService, _ := newTestAuthHandler(users)
	user := testUser(t, authService, "password123")
	claims := &models.Claims{UserID: user.ID.Hex(), Username: user.Username, Role: user.Role}

	users.On("FindUserByID", mock.Anything, user.ID.Hex()).Return(user, nil)
	users.On("UpdateUser", mock.Anything, user.ID.Hex(), mock.MatchedBy(func(u models.User) bool {
		return u.FirstName == "Updated" && u.Phone == "9000000001"
	})).Return(nil)

	req := withClaims(httptest.NewRequest(http.MethodPut, "/api/auth/profile",
		jsonBody(t, map[string]string{"first_name": "Updated", "phone": "9000000001"})), claims)
	w := httptest.NewRecorder()
	handler.UpdateProfile(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	users.AssertExpectations(t)

	req = withClaims(httptest.NewRequest(http.MethodPut, "/api/auth/profile",
		jsonBody(t, map[string]string{"phone": "12"})), claims)
	w = httptest.NewRecorder()
	handler.UpdateProfile(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthHandler_ChangePassword(t *testing.T) {
	users := new(MockUserCollection)
	handler, authService, _ := newTestAuthHandler(users)
	user := testUser(t, authService, "oldpassword")
	claims := &models.Claims{UserID: user.ID.Hex(), Username: user.Username, Role: user.Role}
	users.On("FindUserByID", mock.Anything, user.ID.Hex()).Return(user, nil)

	t.Run("wrong current password", func(t *testing.T) {
		req := withClaims(httptest.NewRequest(http.MethodPost, "/api/auth/change-password",
			jsonBody(t, map[string]string{"current_password": "notthisone", "new_password": "newpassword"})), claims)
		w := httptest.NewRecorder()
		handler.ChangePassword(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("successful change", func(t *testing.T) {
		users.On("UpdateUser", mock.Anything, user.ID.Hex(), mock.MatchedBy(func(u models.User) bool {
			return authService.CheckPassword("newpassword", u.PasswordHash)
		})).Return(nil)

		req := withClaims(httptest.NewRequest(http.MethodPost, "/api/auth/change-password",
			jsonBody(t, map[string]string{"current_password": "oldpassword", "new_password": "newpassword"})), claims)
		w := httptest.NewRecorder()
		handler.ChangePassword(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
		users.AssertExpectations(t)
	})
}
