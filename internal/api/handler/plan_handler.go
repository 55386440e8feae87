package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/aicompanion/companion/internal/core/domain"
)

type PlanHandler struct{}

func NewPlanHandler() *PlanHandler {
	return &PlanHandler{}
}

type plansResponse struct {
	Plans         []domain.Plan `json:"plans"`
	DefaultPlanID string        `json:"default_plan_id"`
}

// List returns the subscription plan catalog.
//
// @Summary      List plans
// @Tags         plans
// @Produce      json
// @Success      200  {object}  plansResponse
// @Router       /v1/plans [get]
func (h *PlanHandler) List(c echo.Context) error {
	return c.JSON(http.StatusOK, plansResponse{Plans: domain.Plans(), DefaultPlanID: domain.DefaultPlanID})
}
