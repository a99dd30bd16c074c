package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	accountdomain "github.com/lvlrf/radpanel/internal/account/domain"
	walletdomain "github.com/lvlrf/radpanel/internal/wallet/domain"
	"github.com/lvlrf/radpanel/pkg/db/pagination"
)

type createAccountRequest struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

func (s *Server) CreateAccount(c *gin.Context) {
	var req createAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		AbortWithError(c, newValidationError("name", "required", "name is required"))
		return
	}

	kind := accountdomain.AccountKind(strings.ToUpper(strings.TrimSpace(req.Kind)))
	if kind != accountdomain.AccountKindAgent && kind != accountdomain.AccountKindCustomer {
		AbortWithError(c, newValidationError("kind", "invalid_kind", "kind must be AGENT or CUSTOMER"))
		return
	}

	account := &accountdomain.Account{
		ID:              s.genID.Generate(),
		Name:            name,
		Kind:            kind,
		CreditConfirmed: decimal.Zero,
		CreditPending:   decimal.Zero,
		Status:          accountdomain.AccountStatusActive,
	}
	if err := s.accounts.Create(c.Request.Context(), s.db, account); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": account})
}

func (s *Server) GetAccountByID(c *gin.Context) {
	id, err := parseSnowflakeID(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid account id"))
		return
	}

	account, err := s.accounts.FindByID(c.Request.Context(), s.db, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if account == nil {
		AbortWithError(c, accountdomain.ErrAccountNotFound)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": account})
}

func (s *Server) GetAccountBalance(c *gin.Context) {
	id, err := parseSnowflakeID(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid account id"))
		return
	}

	balance, err := s.walletSvc.Balance(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": balance})
}

func (s *Server) ListAccountTransactions(c *gin.Context) {
	id, err := parseSnowflakeID(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid account id"))
		return
	}

	var query struct {
		Kind string `form:"kind"`
		pagination.Pagination
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.walletSvc.ListTransactions(c.Request.Context(), walletdomain.ListTransactionsRequest{
		AccountID:  id,
		Kind:       walletdomain.TransactionKind(strings.TrimSpace(query.Kind)),
		Pagination: query.Pagination,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type adjustCreditRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Notes  string          `json:"notes"`
}

func (s *Server) AdjustAccountCredit(c *gin.Context) {
	id, err := parseSnowflakeID(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid account id"))
		return
	}

	var req adjustCreditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	txn, err := s.walletSvc.ManualAdjust(c.Request.Context(), id, req.Amount, actorFrom(c), strings.TrimSpace(req.Notes))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": txn})
}
