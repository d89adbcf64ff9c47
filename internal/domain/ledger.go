package domain

import (
	"math"
	"strings"
	"time"
)

const (
	emiTermDays    = 30
	creditTermDays = 15
)

// MaxStock is the most units one product may hold. It is the range of the
// stock column in every store.
const MaxStock = math.MaxInt32

// RestockedStock adds qty to current, reporting false when qty is not
// positive or the result would exceed MaxStock.
func RestockedStock(current int, qty int) (int, bool) {
	if qty < 1 || current < 0 || current > MaxStock-qty {
		return 0, false
	}
	return current + qty, true
}

// SaleTotal reports false when priceCents*qty does not fit in int64.
func SaleTotal(priceCents int64, qty int) (int64, bool) {
	if qty < 1 || priceCents < 0 {
		return 0, false
	}
	if priceCents > math.MaxInt64/int64(qty) {
		return 0, false
	}
	return priceCents * int64(qty), true
}

// PaidAfter adds a payment to the amount already paid, reporting false on
// int64 overflow.
func PaidAfter(alreadyPaid int64, amountCents int64) (int64, bool) {
	if amountCents < 1 || alreadyPaid > math.MaxInt64-amountCents {
		return 0, false
	}
	return alreadyPaid + amountCents, true
}

// NormalizePaymentType maps user input onto one of the three payment types.
// Matching is case-insensitive; anything unrecognized becomes Cash and the
// second return value reports false so callers can log the fallback.
func NormalizePaymentType(raw string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "cash":
		return PaymentTypeCash, true
	case "emi":
		return PaymentTypeEMI, true
	case "credit":
		return PaymentTypeCredit, true
	default:
		return PaymentTypeCash, false
	}
}

func InitialStatus(paymentType string) string {
	if paymentType == PaymentTypeCash {
		return SaleStatusPaid
	}
	return SaleStatusPending
}

// DueDate returns the calendar date a deferred sale falls due, or nil for
// Cash.
func DueDate(paymentType string, saleDate time.Time) *time.Time {
	var days int
	switch paymentType {
	case PaymentTypeEMI:
		days = emiTermDays
	case PaymentTypeCredit:
		days = creditTermDays
	default:
		return nil
	}
	due := CalendarDate(saleDate).AddDate(0, 0, days)
	return &due
}

func StatusAfterPayment(totalCents int64, paidCents int64) string {
	if totalCents-paidCents <= 0 {
		return SaleStatusPaid
	}
	return SaleStatusPending
}

func OutstandingCents(totalCents int64, paidCents int64) int64 {
	remaining := totalCents - paidCents
	if remaining < 0 {
		return 0
	}
	return remaining
}

func IsOverdue(sale Sale, asOf time.Time) bool {
	if sale.Status != SaleStatusPending || sale.DueDate == nil {
		return false
	}
	return sale.DueDate.Before(CalendarDate(asOf))
}

func IsValidStatus(status string) bool {
	switch status {
	case SaleStatusPaid, SaleStatusPending, SaleStatusBadDebt:
		return true
	default:
		return false
	}
}

func CalendarDate(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
