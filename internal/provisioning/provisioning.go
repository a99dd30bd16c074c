// Package provisioning talks to the external panel that hosts the actual
// service resources. The rest of the system only sees the Service interface;
// the Marzban client is one implementation of it.
package provisioning

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusOnHold   Status = "on_hold"
	StatusDisabled Status = "disabled"
	StatusExpired  Status = "expired"
	StatusLimited  Status = "limited"
)

const bytesPerGB = int64(1) << 30

func GBToBytes(gb decimal.Decimal) int64 {
	return gb.Mul(decimal.NewFromInt(bytesPerGB)).IntPart()
}

func BytesToGB(b int64) decimal.Decimal {
	return decimal.NewFromInt(b).Div(decimal.NewFromInt(bytesPerGB))
}

type CreateRequest struct {
	Username string
	Days     int
	QuotaGB  decimal.Decimal
	Note     string
	// OnHold defers activation: no expiry is set until first use.
	OnHold bool
}

// Record is the panel's view of one resource.
type Record struct {
	Username        string
	Status          Status
	ExpireAt        *time.Time
	DataLimit       int64 // bytes
	UsedTraffic     int64 // bytes
	SubscriptionURL string
	Note            string
}

func (r Record) UsedGB() decimal.Decimal  { return BytesToGB(r.UsedTraffic) }
func (r Record) LimitGB() decimal.Decimal { return BytesToGB(r.DataLimit) }

// Service is the provisioning boundary. Implementations must distinguish a
// missing resource (ErrNotFound) from the panel being unreachable
// (ErrUnavailable): callers treat the two very differently.
type Service interface {
	Exists(ctx context.Context, username string) (bool, error)
	Create(ctx context.Context, req CreateRequest) (*Record, error)
	Get(ctx context.Context, username string) (*Record, error)
	Disable(ctx context.Context, username string) error
	Enable(ctx context.Context, username string) error
	Delete(ctx context.Context, username string) error
}

var (
	ErrNotFound      = errors.New("provisioning_not_found")
	ErrUsernameTaken = errors.New("provisioning_username_taken")
	ErrUnavailable   = errors.New("provisioning_unavailable")
)
