package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/aicompanion/companion/internal/api/metrics"
	"github.com/aicompanion/companion/internal/core/domain"
	"github.com/aicompanion/companion/internal/core/ports"
)

// ProfileHandler serves the signed-in user's own identity and onboarding.
type ProfileHandler struct {
	authService       ports.AuthService
	onboardingService ports.OnboardingService
}

func NewProfileHandler(authService ports.AuthService, onboardingService ports.OnboardingService) *ProfileHandler {
	return &ProfileHandler{authService: authService, onboardingService: onboardingService}
}

type updateProfileRequest struct {
	Email  *string `json:"email,omitempty"`
	Name   *string `json:"name,omitempty"`
	Avatar *string `json:"avatar,omitempty"`
}

type setRoleRequest struct {
	Role string `json:"role" validate:"required"`
}

// Me returns the current identity.
//
// @Summary      Current identity
// @Tags         profile
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  domain.Identity
// @Failure      401  {object}  map[string]string
// @Router       /v1/me [get]
func (h *ProfileHandler) Me(c echo.Context) error {
	if identity := ctxIdentity(c); identity != nil {
		return c.JSON(http.StatusOK, identity)
	}
	userID, err := ctxUserID(c)
	if err != nil {
		return err
	}
	identity, err := h.authService.Identity(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, identity)
}

// Update merges name, email and avatar into the current identity.
//
// @Summary      Update identity
// @Tags         profile
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        body  body      updateProfileRequest  true  "Fields to change"
// @Success      200   {object}  domain.Identity
// @Failure      400   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Router       /v1/me [patch]
func (h *ProfileHandler) Update(c echo.Context) error {
	userID, err := ctxUserID(c)
	if err != nil {
		return err
	}
	var req updateProfileRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}

	identity, err := h.authService.UpdateProfile(c.Request().Context(), userID, domain.IdentityPatch{
		Email:  req.Email,
		Name:   req.Name,
		Avatar: req.Avatar,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, identity)
}

// SetRole picks the individual or organization flow.
//
// @Summary      Set role
// @Tags         profile
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        body  body      setRoleRequest  true  "individual or organization"
// @Success      200   {object}  domain.Identity
// @Failure      400   {object}  map[string]string
// @Router       /v1/me/role [put]
func (h *ProfileHandler) SetRole(c echo.Context) error {
	userID, err := ctxUserID(c)
	if err != nil {
		return err
	}
	var req setRoleRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	role, err := domain.ParseRole(req.Role)
	if err != nil {
		return err
	}

	identity, err := h.authService.SetRole(c.Request().Context(), userID, role)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, identity)
}

// OnboardIndividual stores the individual onboarding answers.
//
// @Summary      Complete individual onboarding
// @Tags         onboarding
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        body  body      domain.IndividualProfile  true  "Onboarding answers"
// @Success      200   {object}  domain.Identity
// @Failure      400   {object}  map[string]string
// @Failure      403   {object}  map[string]string
// @Router       /v1/me/onboarding/individual [post]
func (h *ProfileHandler) OnboardIndividual(c echo.Context) error {
	userID, err := ctxUserID(c)
	if err != nil {
		return err
	}
	var profile domain.IndividualProfile
	if err := c.Bind(&profile); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}

	identity, err := h.onboardingService.CompleteIndividual(c.Request().Context(), userID, profile)
	if err != nil {
		return err
	}
	metrics.OnboardingCompletedTotal.WithLabelValues(string(domain.RoleIndividual)).Inc()
	return c.JSON(http.StatusOK, identity)
}

// OnboardOrganization stores the organization onboarding answers.
//
// @Summary      Complete organization onboarding
// @Tags         onboarding
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        body  body      domain.OrganizationProfile  true  "Onboarding answers"
// @Success      200   {object}  domain.Identity
// @Failure      400   {object}  map[string]string
// @Failure      403   {object}  map[string]string
// @Router       /v1/me/onboarding/organization [post]
func (h *ProfileHandler) OnboardOrganization(c echo.Context) error {
	userID, err := ctxUserID(c)
	if err != nil {
		return err
	}
	var profile domain.OrganizationProfile
	if err := c.Bind(&profile); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}

	identity, err := h.onboardingService.CompleteOrganization(c.Request().Context(), userID, profile)
	if err != nil {
		return err
	}
	metrics.OnboardingCompletedTotal.WithLabelValues(string(domain.RoleOrganization)).Inc()
	return c.JSON(http.StatusOK, identity)
}
