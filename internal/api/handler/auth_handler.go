package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/aicompanion/companion/internal/api/metrics"
	"github.com/aicompanion/companion/internal/core/domain"
	"github.com/aicompanion/companion/internal/core/ports"
)

type AuthHandler struct {
	authService ports.AuthService
}

func NewAuthHandler(authService ports.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates a new account and signs it in.
//
// @Summary      Register a new account
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      registerRequest  true  "Account details"
// @Success      201   {object}  domain.Authenticated
// @Failure      400   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Failure      429   {object}  map[string]string
// @Router       /auth/register [post]
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}

	auth, err := h.authService.CreateAccount(c.Request().Context(), req.Email, req.Password, req.Name)
	if err != nil {
		countAttempt("register", err)
		return err
	}
	countAttempt("register", nil)
	return c.JSON(http.StatusCreated, auth)
}

// Login authenticates with email and password and returns a bearer token.
//
// @Summary      Login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Login credentials"
// @Success      200   {object}  domain.Authenticated
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      429   {object}  map[string]string
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}

	auth, err := h.authService.VerifyCredential(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		countAttempt("login", err)
		return err
	}
	countAttempt("login", nil)
	return c.JSON(http.StatusOK, auth)
}

// Logout revokes the bearer token used for this request.
//
// @Summary      Logout
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      204
// @Failure      401   {object}  map[string]string
// @Router       /auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	claims, err := ctxClaims(c)
	if err != nil {
		return err
	}
	if err := h.authService.Logout(c.Request().Context(), *claims); err != nil {
		countAttempt("logout", err)
		return err
	}
	countAttempt("logout", nil)
	return c.NoContent(http.StatusNoContent)
}

func countAttempt(op string, err error) {
	result := "success"
	var authErr *domain.AuthenticationError
	var regErr *domain.RegistrationError
	switch {
	case err == nil:
	case errors.As(err, &authErr), errors.As(err, &regErr):
		result = "rejected"
	default:
		result = "error"
	}
	metrics.AuthAttemptsTotal.WithLabelValues(op, result).Inc()
}
