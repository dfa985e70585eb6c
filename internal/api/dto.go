package api

import (
	"reflect"
	"strings"

	"courtside/internal/models"
	"courtside/internal/service"

	"github.com/go-playground/validator/v10"
)

type createBookingRequest struct {
	Sport         string  `json:"sport" validate:"required,max=100"`
	Date          string  `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime     string  `json:"start_time" validate:"required,clock"`
	Duration      float64 `json:"duration" validate:"required,gt=0,lte=24"`
	CustomerName  string  `json:"customer_name" validate:"required,min=2,max=100"`
	CustomerPhone string  `json:"customer_phone" validate:"required,min=7,max=20"`
	CustomerEmail string  `json:"customer_email" validate:"omitempty,email"`
	PaymentMethod string  `json:"payment_method" validate:"omitempty,max=50"`
	Notes         string  `json:"notes" validate:"omitempty,max=500"`
}

func (r createBookingRequest) toService() service.BookingRequest {
	return service.BookingRequest{
		Sport:         r.Sport,
		Date:          r.Date,
		StartTime:     r.StartTime,
		Duration:      r.Duration,
		CustomerName:  r.CustomerName,
		CustomerPhone: r.CustomerPhone,
		CustomerEmail: r.CustomerEmail,
		PaymentMethod: r.PaymentMethod,
		Notes:         r.Notes,
	}
}

type rescheduleRequest struct {
	Date      string  `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime string  `json:"start_time" validate:"required,clock"`
	Duration  float64 `json:"duration" validate:"required,gt=0,lte=24"`
}

type paymentRequest struct {
	Status     string  `json:"status" validate:"required,oneof=pending partial paid refunded"`
	Method     string  `json:"method" validate:"omitempty,max=50"`
	PaidAmount float64 `json:"paid_amount" validate:"gte=0"`
	Verified   bool    `json:"verified"`
}

func (r paymentRequest) toModel() models.PaymentUpdate {
	return models.PaymentUpdate{Status: r.Status, Method: r.Method, PaidAmount: r.PaidAmount, Verified: r.Verified}
}

type blockRequest struct {
	Sport     string `json:"sport" validate:"required"`
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime string `json:"start_time" validate:"required,clock"`
	EndTime   string `json:"end_time" validate:"required,clock"`
	Reason    string `json:"reason" validate:"omitempty,max=200"`
}

type sportRequest struct {
	Name            string    `json:"name" validate:"required,max=100"`
	BasePrice       float64   `json:"base_price" validate:"required,gt=0"`
	SortOrder       int64     `json:"sort_order" validate:"gte=0"`
	DurationOptions []float64 `json:"duration_options" validate:"omitempty,dive,gt=0,lte=24"`
	IsActive        *bool     `json:"is_active"`
}

func (r sportRequest) toModel(id int64) *models.Sport {
	active := true
	if r.IsActive != nil {
		active = *r.IsActive
	}
	return &models.Sport{
		ID:              id,
		Name:            r.Name,
		BasePrice:       r.BasePrice,
		SortOrder:       r.SortOrder,
		DurationOptions: r.DurationOptions,
		IsActive:        active,
	}
}

type pricingRuleRequest struct {
	Type            string   `json:"type" validate:"required,oneof=weekday weekend special"`
	StartTime       string   `json:"start_time" validate:"omitempty,clock"`
	EndTime         string   `json:"end_time" validate:"omitempty,clock"`
	PriceMultiplier float64  `json:"price_multiplier" validate:"gte=0"`
	OverridePrice   *float64 `json:"override_price" validate:"omitempty,gt=0"`
}

func (r pricingRuleRequest) toModel(sportID int64) *models.PricingRule {
	return &models.PricingRule{
		SportID:         sportID,
		Type:            r.Type,
		StartTime:       r.StartTime,
		EndTime:         r.EndTime,
		PriceMultiplier: r.PriceMultiplier,
		OverridePrice:   r.OverridePrice,
		IsActive:        true,
	}
}

// newValidator returns a validator that reports JSON field names and knows
// the "clock" tag for HH:MM values.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
		_, err := models.ParseClock(fl.Field().String())
		return err == nil
	})
	return v
}
