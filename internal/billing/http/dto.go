package http

import (
	"time"

	"github.com/nekogravitycat/facility-booking-backend/internal/billing"
)

type ListChargesRequest struct {
	Status        string `form:"status"`
	ReferenceType string `form:"reference_type"`
	Page          int    `form:"page,default=1"`
	PageSize      int    `form:"page_size,default=20"`
}

type StartPaymentRequest struct {
	InstallmentID string `json:"installment_id" binding:"required,uuid"`
	Provider      string `json:"provider" binding:"required"`
	Method        string `json:"method"`
}

type InstallmentResponse struct {
	ID                string     `json:"id"`
	SequenceNumber    int        `json:"sequence_number"`
	TotalInstallments int        `json:"total_installments"`
	Amount            string     `json:"amount"`
	PaidAmount        string     `json:"paid_amount"`
	Status            string     `json:"status"`
	DueDate           *time.Time `json:"due_date,omitempty"`
}

type ChargeResponse struct {
	ID            string                `json:"id"`
	UserID        string                `json:"user_id"`
	ReferenceType string                `json:"reference_type,omitempty"`
	ReferenceID   *string               `json:"reference_id,omitempty"`
	Description   string                `json:"description"`
	TotalAmount   string                `json:"total_amount"`
	PaidAmount    string                `json:"paid_amount"`
	Status        string                `json:"status"`
	DueDate       *time.Time            `json:"due_date,omitempty"`
	CreatedAt     time.Time             `json:"created_at"`
	Installments  []InstallmentResponse `json:"installments,omitempty"`
}

type PaymentResponse struct {
	ID            string     `json:"id"`
	InstallmentID string     `json:"installment_id"`
	Provider      string     `json:"provider"`
	Method        string     `json:"method,omitempty"`
	Amount        string     `json:"amount"`
	Status        string     `json:"status"`
	CheckoutURL   string     `json:"checkout_url,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

func NewChargeResponse(c *billing.Charge, installments []billing.Installment) ChargeResponse {
	resp := ChargeResponse{
		ID:            c.ID,
		UserID:        c.UserID,
		ReferenceType: string(c.ReferenceType),
		ReferenceID:   c.ReferenceID,
		Description:   c.Description,
		TotalAmount:   c.TotalAmount.StringFixed(2),
		PaidAmount:    c.PaidAmount.StringFixed(2),
		Status:        string(c.Status),
		DueDate:       c.DueDate,
		CreatedAt:     c.CreatedAt,
	}
	for _, inst := range installments {
		resp.Installments = append(resp.Installments, NewInstallmentResponse(inst))
	}
	return resp
}

func NewInstallmentResponse(inst billing.Installment) InstallmentResponse {
	return InstallmentResponse{
		ID:                inst.ID,
		SequenceNumber:    inst.SequenceNumber,
		TotalInstallments: inst.TotalInstallments,
		Amount:            inst.Amount.StringFixed(2),
		PaidAmount:        inst.PaidAmount.StringFixed(2),
		Status:            string(inst.Status),
		DueDate:           inst.DueDate,
	}
}

func NewPaymentResponse(p *billing.Payment) PaymentResponse {
	return PaymentResponse{
		ID:            p.ID,
		InstallmentID: p.InstallmentID,
		Provider:      p.Provider,
		Method:        p.Method,
		Amount:        p.Amount.StringFixed(2),
		Status:        string(p.Status),
		CheckoutURL:   p.CheckoutURL,
		ExpiresAt:     p.ExpiresAt,
		CreatedAt:     p.CreatedAt,
	}
}
