package domain

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrEmptyCart        = errors.New("cart is empty")
	ErrOrderNotFound    = errors.New("order not found")
	ErrForbidden        = errors.New("forbidden")
	ErrAlreadyCancelled = errors.New("order already cancelled")
)

// ValidationError reports a missing or malformed order field.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid order field %q", e.Field)
}

// InvalidLineError reports a cart line whose product cannot be resolved.
type InvalidLineError struct {
	ProductID string
}

func (e *InvalidLineError) Error() string {
	return fmt.Sprintf("cart line references unknown product %q", e.ProductID)
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusShipped   Status = "shipped"
	StatusCancelled Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusShipped, StatusCancelled:
		return true
	}
	return false
}

type PaymentMethod string

const (
	PaymentCreditCard   PaymentMethod = "CreditCard"
	PaymentPayPal       PaymentMethod = "PayPal"
	PaymentBankTransfer PaymentMethod = "BankTransfer"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCreditCard, PaymentPayPal, PaymentBankTransfer:
		return true
	}
	return false
}

// RequiresGateway reports whether the method settles through an external
// payment gateway. Confirmation mail for gateway methods waits for
// settlement.
func (m PaymentMethod) RequiresGateway() bool {
	return m != PaymentBankTransfer
}

type Address struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zipCode"`
	Country string `json:"country"`
}

// Validate requires all five fields to be non-blank after trimming.
func (a Address) Validate() error {
	fields := []struct {
		name, value string
	}{
		{"shippingAddress.street", a.Street},
		{"shippingAddress.city", a.City},
		{"shippingAddress.state", a.State},
		{"shippingAddress.zipCode", a.ZipCode},
		{"shippingAddress.country", a.Country},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return &ValidationError{Field: f.name}
		}
	}
	return nil
}

// PaymentResult is the settlement data returned by the payment gateway.
type PaymentResult struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	PaymentMethod string `json:"paymentMethod"`
	ReceiptURL    string `json:"receiptUrl"`
}

// OrderLine is a denormalized snapshot of a product at order-creation time.
// Catalog price changes never alter an existing order.
type OrderLine struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity"`
}

type Order struct {
	ID                 string          `json:"id"`
	CustomerID         string          `json:"customerId"`
	Lines              []OrderLine     `json:"lines"`
	ShippingAddress    Address         `json:"shippingAddress"`
	PaymentMethod      PaymentMethod   `json:"paymentMethod"`
	ItemsPrice         decimal.Decimal `json:"itemsPrice"`
	ShippingPrice      decimal.Decimal `json:"shippingPrice"`
	TaxPrice           decimal.Decimal `json:"taxPrice"`
	TotalPrice         decimal.Decimal `json:"totalPrice"`
	Status             Status          `json:"status"`
	IsPaid             bool            `json:"isPaid"`
	PaidAt             *time.Time      `json:"paidAt,omitempty"`
	PaymentResult      *PaymentResult  `json:"paymentResult,omitempty"`
	CancellationReason string          `json:"cancellationReason,omitempty"`
	CancelledAt        *time.Time      `json:"cancelledAt,omitempty"`
	CreatedAt          time.Time       `json:"createdAt"`
	UpdatedAt          time.Time       `json:"updatedAt"`
}

var orderIDPattern = regexp.MustCompile(`^[0-9a-f]{24}$`)

// NewOrderID returns a fresh 24-hex-character identifier.
func NewOrderID() string {
	var b [12]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err) // crypto/rand never fails on supported platforms
	}
	return hex.EncodeToString(b[:])
}

// ValidOrderID reports whether s has the shape of an order identifier.
// Malformed ids are treated as not-found, never as storage errors.
func ValidOrderID(s string) bool {
	return orderIDPattern.MatchString(s)
}
