// Package client is an HTTP client for the courtside booking API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"courtside/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// APIError is a non-2xx response from the API.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"error"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("http %d", e.Status)
	}
	return fmt.Sprintf("http %d %s: %s", e.Status, e.Code, e.Message)
}

// IsCode reports whether err is an APIError carrying code.
func IsCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

type BookingRequest struct {
	Sport         string  `json:"sport"`
	Date          string  `json:"date"`
	StartTime     string  `json:"start_time"`
	Duration      float64 `json:"duration"`
	CustomerName  string  `json:"customer_name"`
	CustomerPhone string  `json:"customer_phone"`
	CustomerEmail string  `json:"customer_email,omitempty"`
	PaymentMethod string  `json:"payment_method,omitempty"`
	Notes         string  `json:"notes,omitempty"`
}

type RescheduleResult struct {
	Old *models.Booking `json:"old"`
	New *models.Booking `json:"new"`
}

// Client calls the booking API. Catalogue and availability reads can be
// cached in Redis for a short TTL.
type Client struct {
	baseURL    string
	apiKey     string
	apiExtra   string
	ownerID    string
	httpClient *http.Client

	redis    *redis.Client
	cacheTTL time.Duration
}

// New constructs a client with baseURL, API key and extra header.
func New(baseURL, apiKey, apiExtra string) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		apiExtra:   apiExtra,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// UseRedisCache configures optional Redis caching for GET endpoints.
func (c *Client) UseRedisCache(redisClient *redis.Client, ttl time.Duration) {
	c.redis = redisClient
	c.cacheTTL = ttl
}

// ActAs sets the guest identity sent with customer requests.
func (c *Client) ActAs(guestID string) {
	c.ownerID = guestID
}

func (c *Client) ListSports(ctx context.Context) ([]models.Sport, error) {
	var wrap struct {
		Sports []models.Sport `json:"sports"`
	}
	if c.readCache(ctx, "sports", &wrap) {
		return wrap.Sports, nil
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/sports", nil, nil, &wrap); err != nil {
		return nil, err
	}
	c.writeCache(ctx, "sports", wrap)
	return wrap.Sports, nil
}

// GetPrice returns the hourly price of sport on date (YYYY-MM-DD).
func (c *Client) GetPrice(ctx context.Context, sport, date string) (float64, error) {
	var resp struct {
		Price float64 `json:"price"`
	}
	path := fmt.Sprintf("/api/v1/sports/%s/price?date=%s", url.PathEscape(sport), url.QueryEscape(date))
	if err := c.doJSON(ctx, http.MethodGet, path, nil, nil, &resp); err != nil {
		return 0, err
	}
	return resp.Price, nil
}

// GetAvailability fetches the 24-slot grid for sport on date.
func (c *Client) GetAvailability(ctx context.Context, sport, date string) ([]models.Slot, error) {
	cacheKey := fmt.Sprintf("availability:%s:%s", sport, date)
	var wrap struct {
		Slots []models.Slot `json:"slots"`
	}
	if c.readCache(ctx, cacheKey, &wrap) {
		return wrap.Slots, nil
	}
	path := fmt.Sprintf("/api/v1/sports/%s/availability?date=%s", url.PathEscape(sport), url.QueryEscape(date))
	if err := c.doJSON(ctx, http.MethodGet, path, nil, nil, &wrap); err != nil {
		return nil, err
	}
	c.writeCache(ctx, cacheKey, wrap)
	return wrap.Slots, nil
}

// CreateBooking submits an online booking under a fresh Idempotency-Key.
// Callers that retry should keep their own key and use CreateBookingWithKey.
func (c *Client) CreateBooking(ctx context.Context, req BookingRequest) (*models.Booking, error) {
	return c.CreateBookingWithKey(ctx, req, uuid.NewString())
}

func (c *Client) CreateBookingWithKey(ctx context.Context, req BookingRequest, idempotencyKey string) (*models.Booking, error) {
	var b models.Booking
	headers := map[string]string{"Idempotency-Key": idempotencyKey}
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/bookings", headers, req, &b); err != nil {
		return nil, err
	}
	c.dropAvailability(ctx, b.SportName, b.Date)
	return &b, nil
}

// CreateWalkIn records a confirmed, paid booking at the front desk.
func (c *Client) CreateWalkIn(ctx context.Context, req BookingRequest) (*models.Booking, error) {
	var b models.Booking
	headers := map[string]string{"Idempotency-Key": uuid.NewString()}
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/admin/walk-ins", headers, req, &b); err != nil {
		return nil, err
	}
	c.dropAvailability(ctx, b.SportName, b.Date)
	return &b, nil
}

func (c *Client) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	var b models.Booking
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/bookings/"+strconv.FormatInt(id, 10), nil, nil, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (c *Client) CancelBooking(ctx context.Context, id int64) (*models.Booking, error) {
	var b models.Booking
	path := fmt.Sprintf("/api/v1/bookings/%d/cancel", id)
	if err := c.doJSON(ctx, http.MethodPost, path, nil, nil, &b); err != nil {
		return nil, err
	}
	c.dropAvailability(ctx, b.SportName, b.Date)
	return &b, nil
}

func (c *Client) Reschedule(ctx context.Context, id int64, date, startTime string, duration float64) (*RescheduleResult, error) {
	body := map[string]any{"date": date, "start_time": startTime, "duration": duration}
	var res RescheduleResult
	path := fmt.Sprintf("/api/v1/bookings/%d/reschedule", id)
	if err := c.doJSON(ctx, http.MethodPost, path, nil, body, &res); err != nil {
		return nil, err
	}
	if res.Old != nil {
		c.dropAvailability(ctx, res.Old.SportName, res.Old.Date)
	}
	if res.New != nil {
		c.dropAvailability(ctx, res.New.SportName, res.New.Date)
	}
	return &res, nil
}

// DaySchedule lists every booking on date. Requires an admin key.
func (c *Client) DaySchedule(ctx context.Context, date string) ([]models.Booking, error) {
	var wrap struct {
		Bookings []models.Booking `json:"bookings"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/admin/bookings?date="+url.QueryEscape(date), nil, nil, &wrap); err != nil {
		return nil, err
	}
	return wrap.Bookings, nil
}

func (c *Client) readCache(ctx context.Context, key string, out any) bool {
	if c.redis == nil || c.cacheTTL <= 0 {
		return false
	}
	val, err := c.redis.Get(ctx, key).Result()
	if err != nil {
		return false
	}
	if err := json.Unmarshal([]byte(val), out); err != nil {
		return false
	}
	return true
}

func (c *Client) writeCache(ctx context.Context, key string, val any) {
	if c.redis == nil || c.cacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, key, data, c.cacheTTL).Err()
}

// dropAvailability evicts the cached grid a write just changed. Sport keys are
// cached under the name the caller used, so both spellings are dropped.
func (c *Client) dropAvailability(ctx context.Context, sportName, date string) {
	if c.redis == nil || sportName == "" {
		return
	}
	keys := []string{
		fmt.Sprintf("availability:%s:%s", sportName, date),
		fmt.Sprintf("availability:%s:%s", strings.ToLower(sportName), date),
	}
	_ = c.redis.Del(ctx, keys...).Err()
}

func (c *Client) doJSON(ctx context.Context, method, path string, headers map[string]string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	c.addHeaders(req)
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		_ = json.NewDecoder(resp.Body).Decode(apiErr)
		return apiErr
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) addHeaders(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}
	if c.apiExtra != "" {
		req.Header.Set("x-api-extra", c.apiExtra)
	}
	if c.ownerID != "" {
		req.Header.Set("X-Guest-ID", c.ownerID)
	}
}
