package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	plandomain "github.com/lvlrf/radpanel/internal/plan/domain"
)

type createPlanRequest struct {
	Name        string          `json:"name"`
	Days        int             `json:"days"`
	QuotaGB     decimal.Decimal `json:"quota_gb"`
	PriceAgent  decimal.Decimal `json:"price_agent"`
	PricePublic decimal.Decimal `json:"price_public"`
}

func (s *Server) CreatePlan(c *gin.Context) {
	var req createPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if strings.TrimSpace(req.Name) == "" {
		AbortWithError(c, newValidationError("name", "required", "name is required"))
		return
	}
	if req.Days <= 0 {
		AbortWithError(c, newValidationError("days", "invalid_days", "days must be positive"))
		return
	}
	if req.QuotaGB.IsNegative() || req.PriceAgent.IsNegative() || req.PricePublic.IsNegative() {
		AbortWithError(c, newValidationError("price", "invalid_amount", "quota and prices must not be negative"))
		return
	}

	plan := &plandomain.Plan{
		ID:          s.genID.Generate(),
		Name:        strings.TrimSpace(req.Name),
		Days:        req.Days,
		QuotaGB:     req.QuotaGB,
		PriceAgent:  req.PriceAgent,
		PricePublic: req.PricePublic,
		Status:      plandomain.PlanStatusActive,
	}
	if err := s.plans.Create(c.Request.Context(), s.db, plan); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": plan})
}

func (s *Server) ListPlans(c *gin.Context) {
	var query struct {
		Status string `form:"status"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	plans, err := s.plans.List(c.Request.Context(), s.db, plandomain.ListFilter{
		Status: plandomain.PlanStatus(strings.ToUpper(strings.TrimSpace(query.Status))),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": plans})
}

func (s *Server) GetPlanByID(c *gin.Context) {
	id, err := parseSnowflakeID(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid plan id"))
		return
	}

	plan, err := s.plans.FindByID(c.Request.Context(), s.db, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if plan == nil {
		AbortWithError(c, plandomain.ErrPlanNotFound)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": plan})
}

func (s *Server) SetPlanStatus(c *gin.Context) {
	id, err := parseSnowflakeID(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid plan id"))
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	status := plandomain.PlanStatus(strings.ToUpper(strings.TrimSpace(req.Status)))
	if status != plandomain.PlanStatusActive && status != plandomain.PlanStatusInactive {
		AbortWithError(c, newValidationError("status", "invalid_status", "status must be ACTIVE or INACTIVE"))
		return
	}

	if err := s.plans.SetStatus(c.Request.Context(), s.db, id, status); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"id": id, "status": status}})
}
