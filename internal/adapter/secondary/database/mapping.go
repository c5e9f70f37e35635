package database

import (
	"encoding/json"
	"strings"

	"github.com/schoolpay/payment-gateway/internal/constant/model/db"
	"github.com/schoolpay/payment-gateway/internal/core"
)

func paymentToCore(p *db.Payment) *core.Payment {
	var details []core.DetailSnapshot
	if len(p.Details) > 0 {
		_ = json.Unmarshal(p.Details, &details)
	}
	return &core.Payment{
		ID:              p.ID,
		InvoiceNumber:   p.InvoiceNumber,
		Paymentable:     core.Paymentable{Kind: p.PaymentableKind, ID: p.PaymentableID},
		Amount:          p.Amount,
		DiscountAmount:  p.DiscountAmount,
		FineAmount:      p.FineAmount,
		TaxAmount:       p.TaxAmount,
		FeeAmount:       p.FeeAmount,
		TotalAmount:     p.TotalAmount,
		PaidAmount:      p.PaidAmount,
		DueAmount:       p.DueAmount,
		Currency:        core.Currency(p.Currency),
		Method:          p.Method,
		Status:          core.PaymentStatus(p.Status),
		PaymentDate:     p.PaymentDate,
		ReferenceNumber: p.ReferenceNumber,
		TransactionID:   p.TransactionID,
		Description:     p.Description,
		Details:         details,
		SuccessURL:      p.SuccessURL,
		CancelURL:       p.CancelURL,
		NeedsReview:     p.NeedsReview,
		ReviewReason:    p.ReviewReason,
		CreatedBy:       p.CreatedBy,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
}

func paymentFromCore(p *core.Payment) *db.Payment {
	var details []byte
	if len(p.Details) > 0 {
		details, _ = json.Marshal(p.Details)
	}
	return &db.Payment{
		ID:              p.ID,
		InvoiceNumber:   p.InvoiceNumber,
		PaymentableKind: p.Paymentable.Kind,
		PaymentableID:   p.Paymentable.ID,
		Amount:          p.Amount,
		DiscountAmount:  p.DiscountAmount,
		FineAmount:      p.FineAmount,
		TaxAmount:       p.TaxAmount,
		FeeAmount:       p.FeeAmount,
		TotalAmount:     p.TotalAmount,
		PaidAmount:      p.PaidAmount,
		DueAmount:       p.DueAmount,
		Currency:        string(p.Currency),
		Method:          p.Method,
		Status:          string(p.Status),
		PaymentDate:     p.PaymentDate,
		ReferenceNumber: p.ReferenceNumber,
		TransactionID:   p.TransactionID,
		Description:     p.Description,
		Details:         details,
		SuccessURL:      p.SuccessURL,
		CancelURL:       p.CancelURL,
		NeedsReview:     p.NeedsReview,
		ReviewReason:    p.ReviewReason,
		CreatedBy:       p.CreatedBy,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
}

func refundToCore(r *db.Refund) *core.Refund {
	var metadata map[string]string
	if len(r.Metadata) > 0 {
		_ = json.Unmarshal(r.Metadata, &metadata)
	}
	return &core.Refund{
		ID:            r.ID,
		PaymentID:     r.PaymentID,
		Amount:        r.Amount,
		Currency:      core.Currency(r.Currency),
		Reason:        r.Reason,
		Status:        core.RefundStatus(r.Status),
		Manual:        r.Manual,
		TransactionID: r.TransactionID,
		FailureReason: r.FailureReason,
		ProcessedBy:   r.ProcessedBy,
		ProcessedAt:   r.ProcessedAt,
		Metadata:      metadata,
		CreatedBy:     r.CreatedBy,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

func refundFromCore(r *core.Refund) *db.Refund {
	var metadata []byte
	if len(r.Metadata) > 0 {
		metadata, _ = json.Marshal(r.Metadata)
	}
	return &db.Refund{
		ID:            r.ID,
		PaymentID:     r.PaymentID,
		Amount:        r.Amount,
		Currency:      string(r.Currency),
		Reason:        r.Reason,
		Status:        string(r.Status),
		Manual:        r.Manual,
		TransactionID: r.TransactionID,
		FailureReason: r.FailureReason,
		ProcessedBy:   r.ProcessedBy,
		ProcessedAt:   r.ProcessedAt,
		Metadata:      metadata,
		CreatedBy:     r.CreatedBy,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

func gatewayToCore(g *db.GatewayConfig) *core.PaymentGatewayConfig {
	var creds map[string]string
	if len(g.Credentials) > 0 {
		_ = json.Unmarshal(g.Credentials, &creds)
	}
	var currencies []core.Currency
	if g.SupportedCurrencies != "" {
		for _, c := range strings.Split(g.SupportedCurrencies, ",") {
			if c = strings.TrimSpace(c); c != "" {
				currencies = append(currencies, core.Currency(c))
			}
		}
	}
	return &core.PaymentGatewayConfig{
		Code:                g.Code,
		Type:                g.Type,
		Name:                g.Name,
		IsActive:            g.IsActive,
		IsOnline:            g.IsOnline,
		Credentials:         creds,
		FeePercentage:       g.FeePercentage,
		FeeFixed:            g.FeeFixed,
		MinAmount:           g.MinAmount,
		MaxAmount:           g.MaxAmount,
		SupportedCurrencies: currencies,
	}
}

func gatewayFromCore(g *core.PaymentGatewayConfig) *db.GatewayConfig {
	var creds []byte
	if len(g.Credentials) > 0 {
		creds, _ = json.Marshal(g.Credentials)
	}
	codes := make([]string, 0, len(g.SupportedCurrencies))
	for _, c := range g.SupportedCurrencies {
		codes = append(codes, string(c))
	}
	return &db.GatewayConfig{
		Code:                g.Code,
		Type:                g.Type,
		Name:                g.Name,
		IsActive:            g.IsActive,
		IsOnline:            g.IsOnline,
		Credentials:         creds,
		FeePercentage:       g.FeePercentage,
		FeeFixed:            g.FeeFixed,
		MinAmount:           g.MinAmount,
		MaxAmount:           g.MaxAmount,
		SupportedCurrencies: strings.Join(codes, ","),
	}
}

func profileToCore(p *db.RecurringProfile) *core.RecurringPaymentProfile {
	return &core.RecurringPaymentProfile{
		ID:               p.ID,
		Owner:            core.Paymentable{Kind: p.OwnerKind, ID: p.OwnerID},
		GatewayCode:      p.GatewayCode,
		Amount:           p.Amount,
		Currency:         core.Currency(p.Currency),
		Description:      p.Description,
		BillingPeriod:    core.BillingPeriod(p.BillingPeriod),
		BillingFrequency: p.BillingFrequency,
		StartDate:        p.StartDate,
		NextBillingDate:  p.NextBillingDate,
		EndDate:          p.EndDate,
		Status:           core.ProfileStatus(p.Status),
		MethodToken:      p.MethodToken,
		FailureCount:     p.FailureCount,
		MaxFailures:      p.MaxFailures,
		CreatedBy:        p.CreatedBy,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
}

func profileFromCore(p *core.RecurringPaymentProfile) *db.RecurringProfile {
	return &db.RecurringProfile{
		ID:               p.ID,
		OwnerKind:        p.Owner.Kind,
		OwnerID:          p.Owner.ID,
		GatewayCode:      p.GatewayCode,
		Amount:           p.Amount,
		Currency:         string(p.Currency),
		Description:      p.Description,
		BillingPeriod:    string(p.BillingPeriod),
		BillingFrequency: p.BillingFrequency,
		StartDate:        p.StartDate,
		NextBillingDate:  p.NextBillingDate,
		EndDate:          p.EndDate,
		Status:           string(p.Status),
		MethodToken:      p.MethodToken,
		FailureCount:     p.FailureCount,
		MaxFailures:      p.MaxFailures,
		CreatedBy:        p.CreatedBy,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
}
