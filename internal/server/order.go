package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	orderdomain "github.com/lvlrf/radpanel/internal/order/domain"
	orderservice "github.com/lvlrf/radpanel/internal/order/service"
	"github.com/lvlrf/radpanel/pkg/db/pagination"
)

type createOrderRequest struct {
	AccountID string `json:"account_id"`
	PlanID    string `json:"plan_id"`
	Username  string `json:"username"`
	Note      string `json:"note"`
	OnHold    bool   `json:"on_hold"`
}

func (s *Server) CreateOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	accountID, err := parseSnowflakeID(req.AccountID)
	if err != nil {
		AbortWithError(c, newValidationError("account_id", "invalid_id", "invalid account id"))
		return
	}
	planID, err := parseSnowflakeID(req.PlanID)
	if err != nil {
		AbortWithError(c, newValidationError("plan_id", "invalid_id", "invalid plan id"))
		return
	}
	username := strings.TrimSpace(req.Username)
	if username == "" {
		AbortWithError(c, newValidationError("username", "required", "username is required"))
		return
	}

	detail, err := s.orderSvc.Create(c.Request.Context(), orderservice.CreateRequest{
		AccountID: accountID,
		PlanID:    planID,
		Username:  username,
		Note:      strings.TrimSpace(req.Note),
		OnHold:    req.OnHold,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": detail})
}

func (s *Server) GetOrderByID(c *gin.Context) {
	id, err := parseSnowflakeID(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid order id"))
		return
	}

	detail, err := s.orderSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": detail})
}

func (s *Server) ListOrders(c *gin.Context) {
	var query struct {
		AccountID string `form:"account_id"`
		Status    string `form:"status"`
		pagination.Pagination
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	filter := orderdomain.ListFilter{
		Status:     orderdomain.OrderStatus(strings.ToUpper(strings.TrimSpace(query.Status))),
		Pagination: query.Pagination,
	}
	if accountID, err := parseOptionalSnowflakeID(query.AccountID); err != nil {
		AbortWithError(c, newValidationError("account_id", "invalid_id", "invalid account id"))
		return
	} else if accountID != nil {
		filter.AccountID = *accountID
	}

	orders, total, err := s.orderSvc.List(c.Request.Context(), filter)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	page := filter.Pagination.Normalize()
	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"orders": orders,
		"page_info": pagination.PageInfo{
			Page:     page.Page,
			PageSize: page.PageSize,
			Total:    total,
		},
	}})
}

func (s *Server) DeleteOrder(c *gin.Context) {
	id, err := parseSnowflakeID(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid order id"))
		return
	}

	order, err := s.orderSvc.Delete(c.Request.Context(), id, actorFrom(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": order})
}

func (s *Server) DisableOrder(c *gin.Context) {
	id, err := parseSnowflakeID(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid order id"))
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = "disabled by operator"
	}

	if err := s.orderSvc.Disable(c.Request.Context(), id, reason); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"id": id, "status": orderdomain.OrderStatusDisabled}})
}
