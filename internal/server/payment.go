package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	paymentdomain "github.com/lvlrf/radpanel/internal/payment/domain"
	paymentservice "github.com/lvlrf/radpanel/internal/payment/service"
	walletdomain "github.com/lvlrf/radpanel/internal/wallet/domain"
	"github.com/lvlrf/radpanel/pkg/db/pagination"
)

type submitPaymentRequest struct {
	AccountID   string          `json:"account_id"`
	MethodID    string          `json:"method_id"`
	Amount      decimal.Decimal `json:"amount"`
	ReceiptPath string          `json:"receipt_path"`
	Notes       string          `json:"notes"`
}

func (s *Server) SubmitPayment(c *gin.Context) {
	var req submitPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	accountID, err := parseSnowflakeID(req.AccountID)
	if err != nil {
		AbortWithError(c, newValidationError("account_id", "invalid_id", "invalid account id"))
		return
	}
	methodID, err := parseOptionalSnowflakeID(req.MethodID)
	if err != nil {
		AbortWithError(c, newValidationError("method_id", "invalid_id", "invalid method id"))
		return
	}

	if allowed, err := s.limiter.AllowSubmit(c.Request.Context(), accountID); err != nil {
		// Limiter errors degrade to allow, same as the scheduler's job guard.
		s.log.Warn("submit limiter unavailable", zap.Error(err))
	} else if !allowed {
		AbortWithError(c, ErrRateLimited)
		return
	}

	payment, err := s.paymentSvc.Submit(c.Request.Context(), paymentservice.SubmitRequest{
		AccountID:   accountID,
		MethodID:    methodID,
		Amount:      req.Amount,
		ReceiptPath: strings.TrimSpace(req.ReceiptPath),
		Notes:       strings.TrimSpace(req.Notes),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": payment})
}

func (s *Server) GetPaymentByID(c *gin.Context) {
	id, err := parseSnowflakeID(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid payment id"))
		return
	}

	payment, err := s.paymentSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": payment})
}

func (s *Server) ListPayments(c *gin.Context) {
	var query struct {
		AccountID string `form:"account_id"`
		Status    string `form:"status"`
		pagination.Pagination
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	filter := paymentservice.ListFilter{
		Status:     paymentdomain.PaymentStatus(strings.ToUpper(strings.TrimSpace(query.Status))),
		Pagination: query.Pagination,
	}
	if accountID, err := parseOptionalSnowflakeID(query.AccountID); err != nil {
		AbortWithError(c, newValidationError("account_id", "invalid_id", "invalid account id"))
		return
	} else if accountID != nil {
		filter.AccountID = *accountID
	}

	payments, total, err := s.paymentSvc.List(c.Request.Context(), filter)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	page := filter.Pagination.Normalize()
	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"payments": payments,
		"page_info": pagination.PageInfo{
			Page:     page.Page,
			PageSize: page.PageSize,
			Total:    total,
		},
	}})
}

func (s *Server) ApprovePayment(c *gin.Context) {
	s.reviewPayment(c, s.paymentSvc.Approve)
}

func (s *Server) RejectPayment(c *gin.Context) {
	s.reviewPayment(c, s.paymentSvc.Reject)
}

type reviewFn func(ctx context.Context, paymentID snowflake.ID, actor walletdomain.Actor, notes string) (*paymentdomain.Payment, error)

func (s *Server) reviewPayment(c *gin.Context, review reviewFn) {
	id, err := parseSnowflakeID(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid payment id"))
		return
	}

	var req struct {
		Notes string `json:"notes"`
	}
	// Review works without a body; notes are optional.
	_ = c.ShouldBindJSON(&req)

	payment, err := review(c.Request.Context(), id, actorFrom(c), strings.TrimSpace(req.Notes))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": payment})
}

type createPaymentMethodRequest struct {
	Name    string         `json:"name"`
	Kind    string         `json:"kind"`
	Config  map[string]any `json:"config"`
	Enabled *bool          `json:"enabled"`
}

func (s *Server) CreatePaymentMethod(c *gin.Context) {
	var req createPaymentMethodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		AbortWithError(c, newValidationError("name", "required", "name is required"))
		return
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	method := &paymentdomain.PaymentMethod{
		ID:      s.genID.Generate(),
		Name:    name,
		Kind:    strings.TrimSpace(req.Kind),
		Config:  datatypes.JSONMap(req.Config),
		Enabled: enabled,
	}
	if err := s.paymentSvc.CreateMethod(c.Request.Context(), method); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": method})
}

func (s *Server) ListPaymentMethods(c *gin.Context) {
	enabledOnly, err := parseOptionalBool(c.Query("enabled_only"))
	if err != nil {
		AbortWithError(c, newValidationError("enabled_only", "invalid_bool", "invalid enabled_only"))
		return
	}

	methods, err := s.paymentSvc.ListMethods(c.Request.Context(), enabledOnly != nil && *enabledOnly)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": methods})
}

func (s *Server) SetPaymentMethodEnabled(c *gin.Context) {
	id, err := parseSnowflakeID(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid method id"))
		return
	}

	var req struct {
		Enabled *bool `json:"enabled"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Enabled == nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if err := s.paymentSvc.SetMethodEnabled(c.Request.Context(), id, *req.Enabled); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"id": id, "enabled": *req.Enabled}})
}
