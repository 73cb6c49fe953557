package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"spendsnap/internal/domain"
	apperrors "spendsnap/internal/errors"
	"spendsnap/internal/middleware"
	"spendsnap/internal/services"
)

// AuthHandler handles authentication-related requests
type AuthHandler struct {
	userService  services.UserServicer
	auditService services.AuditServicer
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(userService services.UserServicer, auditService services.AuditServicer) *AuthHandler {
	return &AuthHandler{userService: userService, auditService: auditService}
}

// Signup handles user registration
// @Summary     Register a new user
// @Description Create an account and return a session token
// @Tags        auth
// @Accept      json
// @Produce     json
// @Param       request body domain.SignupRequest true "User registration data"
// @Success     201 {object} domain.AuthResponse "User registered and token generated"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     409 {object} ErrorResponse "Email already registered"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /auth/signup [post]
func (h *AuthHandler) Signup(c *gin.Context) {
	var req domain.SignupRequest
	if err := bindJSON(c, &req); err != nil {
		respondWithError(c, err)
		return
	}

	user, err := h.userService.CreateUser(req.Name, req.Email, req.Password)
	if err != nil {
		respondWithError(c, err)
		return
	}

	token, err := middleware.GenerateToken(user)
	if err != nil {
		respondWithError(c, apperrors.Wrap(apperrors.ErrInternalServer, err))
		return
	}

	h.auditService.Log(user.ID, services.AuditSignup, "user", user.ID, c.ClientIP(), nil)

	c.JSON(http.StatusCreated, domain.AuthResponse{
		Success: true,
		User:    user.ToDomain(),
		Token:   token,
		Message: "Account created successfully",
	})
}

// Login handles user login
// @Summary     Login user
// @Description Authenticate a user and get a token
// @Tags        auth
// @Accept      json
// @Produce     json
// @Param       request body domain.LoginRequest true "User login credentials"
// @Success     200 {object} domain.AuthResponse "User authenticated and token generated"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Invalid credentials"
// @Failure     429 {object} ErrorResponse "Account locked"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req domain.LoginRequest
	if err := bindJSON(c, &req); err != nil {
		respondWithError(c, err)
		return
	}

	user, err := h.userService.AttemptLogin(req.Email, req.Password)
	if err != nil {
		respondWithError(c, err)
		return
	}

	token, err := middleware.GenerateToken(user)
	if err != nil {
		respondWithError(c, apperrors.Wrap(apperrors.ErrInternalServer, err))
		return
	}

	h.auditService.Log(user.ID, services.AuditLogin, "user", user.ID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, domain.AuthResponse{
		Success: true,
		User:    user.ToDomain(),
		Token:   token,
		Message: "Login successful",
	})
}

// Logout revokes the caller's token
// @Summary     Logout user
// @Description Invalidate the bearer token for the rest of its lifetime
// @Tags        auth
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} MessageResponse "Logged out"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	token := middleware.CurrentToken(c)
	expires := time.Now().Add(24 * time.Hour)
	if claims, err := middleware.ParseToken(token); err == nil && claims.ExpiresAt != nil {
		expires = claims.ExpiresAt.Time
	}
	middleware.RevokeToken(token, expires)

	c.JSON(http.StatusOK, MessageResponse{Success: true, Message: "Logged out successfully"})
}

// GetProfile returns the user's profile
// @Summary     Get user profile
// @Description Get the authenticated user's profile information
// @Tags        auth
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} domain.APIResponse[domain.User] "User profile"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /auth/profile [get]
func (h *AuthHandler) GetProfile(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	user, err := h.userService.GetUserByID(userID)
	if err != nil {
		// A token for a vanished account ends the session.
		if apperrors.CodeOf(err) == apperrors.ErrUserNotFound.Code {
			err = apperrors.WithMessage(apperrors.ErrUnauthorized, "User no longer exists")
		}
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, domain.APIResponse[domain.User]{Success: true, Data: user.ToDomain()})
}
