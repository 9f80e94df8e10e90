package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/shopspring/decimal"

	"owner-statements-server/finance"
)

// ChannelAPI is the contract with the booking-channel manager. Reservations
// arrive already filtered for the requested period and, in calendar mode,
// with ClientRevenue prorated upstream. Expense rows may carry no property
// attribution; they are pre-filtered per property by the API and the engine
// never re-filters them.
type ChannelAPI interface {
	GetReservations(ctx context.Context, propertyID uint, start, end time.Time, calculationType string) ([]finance.Reservation, error)
	GetReservation(ctx context.Context, propertyID uint, reservationID string) (*finance.Reservation, error)
	GetExpenses(ctx context.Context, propertyID uint, start, end time.Time) ([]finance.ExpenseRecord, error)
}

// ChannelClient talks to the channel-manager REST API with a client-credentials
// bearer token. The token is itself a JWT; its exp claim drives refresh.
type ChannelClient struct {
	baseURL      string
	clientID     string
	clientSecret string
	http         *http.Client

	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time
}

func NewChannelClient() *ChannelClient {
	return &ChannelClient{
		baseURL:      strings.TrimRight(os.Getenv("CHANNEL_API_URL"), "/"),
		clientID:     os.Getenv("CHANNEL_CLIENT_ID"),
		clientSecret: os.Getenv("CHANNEL_CLIENT_SECRET"),
		http:         &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *ChannelClient) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Add(time.Minute).Before(c.expiresAt) {
		return c.accessToken, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)
	form.Set("scope", "general")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/accessTokens", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("channel auth failed: status %d", resp.StatusCode)
	}

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}

	c.accessToken = body.AccessToken
	c.expiresAt = tokenExpiry(body.AccessToken, body.ExpiresIn)
	log.Printf("channel API token refreshed, valid until %s", c.expiresAt.Format(time.RFC3339))
	return c.accessToken, nil
}

// tokenExpiry prefers the exp claim inside the bearer JWT; expires_in is the
// fallback when the token is opaque.
func tokenExpiry(token string, expiresIn int64) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err == nil {
		if exp, ok := claims["exp"].(float64); ok && exp > 0 {
			return time.Unix(int64(exp), 0)
		}
	}
	if expiresIn <= 0 {
		expiresIn = 3600
	}
	return time.Now().Add(time.Duration(expiresIn) * time.Second)
}

func (c *ChannelClient) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	token, err := c.token(ctx)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("channel API %s: status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// wireReservation is the channel manager's reservation payload.
type wireReservation struct {
	ID                      int64    `json:"id"`
	GuestName               string   `json:"guestName"`
	ArrivalDate             string   `json:"arrivalDate"`
	DepartureDate           string   `json:"departureDate"`
	ChannelName             string   `json:"channelName"`
	Status                  string   `json:"status"`
	TotalPrice              float64  `json:"totalPrice"`
	HasDetailedFinance      bool     `json:"hasDetailedFinance"`
	BaseRate                float64  `json:"baseRate"`
	CleaningAndOtherFees    float64  `json:"cleaningAndOtherFees"`
	PlatformFees            float64  `json:"platformFees"`
	ClientRevenue           float64  `json:"clientRevenue"`
	ClientTaxResponsibility float64  `json:"clientTaxResponsibility"`
	CleaningFee             *float64 `json:"cleaningFee"`
}

func (c *ChannelClient) GetReservations(ctx context.Context, propertyID uint, start, end time.Time, calculationType string) ([]finance.Reservation, error) {
	query := url.Values{}
	query.Set("listingId", strconv.FormatUint(uint64(propertyID), 10))
	query.Set("startDate", start.Format("2006-01-02"))
	query.Set("endDate", end.Format("2006-01-02"))
	query.Set("dateType", calculationType)

	var body struct {
		Result []wireReservation `json:"result"`
	}
	if err := c.get(ctx, "/v1/reservations", query, &body); err != nil {
		return nil, err
	}

	reservations := make([]finance.Reservation, 0, len(body.Result))
	for _, w := range body.Result {
		r, err := w.toReservation(propertyID)
		if err != nil {
			log.Printf("skipping reservation %d: %v", w.ID, err)
			continue
		}
		reservations = append(reservations, r)
	}
	return reservations, nil
}

// GetReservation fetches a single reservation by id, for attaching stays the
// original period query missed.
func (c *ChannelClient) GetReservation(ctx context.Context, propertyID uint, reservationID string) (*finance.Reservation, error) {
	var body struct {
		Result *wireReservation `json:"result"`
	}
	if err := c.get(ctx, "/v1/reservations/"+url.PathEscape(reservationID), url.Values{}, &body); err != nil {
		return nil, err
	}
	if body.Result == nil {
		return nil, nil
	}
	r, err := body.Result.toReservation(propertyID)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (w *wireReservation) toReservation(propertyID uint) (finance.Reservation, error) {
	checkIn, err := time.Parse("2006-01-02", w.ArrivalDate)
	if err != nil {
		return finance.Reservation{}, fmt.Errorf("bad arrivalDate %q", w.ArrivalDate)
	}
	checkOut, err := time.Parse("2006-01-02", w.DepartureDate)
	if err != nil {
		return finance.Reservation{}, fmt.Errorf("bad departureDate %q", w.DepartureDate)
	}
	r := finance.Reservation{
		ID:                      strconv.FormatInt(w.ID, 10),
		PropertyID:              propertyID,
		GuestName:               w.GuestName,
		CheckIn:                 checkIn,
		CheckOut:                checkOut,
		Source:                  w.ChannelName,
		Status:                  w.Status,
		GrossAmount:             decimal.NewFromFloat(w.TotalPrice),
		HasDetailedFinance:      w.HasDetailedFinance,
		BaseRate:                decimal.NewFromFloat(w.BaseRate),
		CleaningAndOtherFees:    decimal.NewFromFloat(w.CleaningAndOtherFees),
		PlatformFees:            decimal.NewFromFloat(w.PlatformFees),
		ClientRevenue:           decimal.NewFromFloat(w.ClientRevenue),
		ClientTaxResponsibility: decimal.NewFromFloat(w.ClientTaxResponsibility),
	}
	if w.CleaningFee != nil {
		fee := decimal.NewFromFloat(*w.CleaningFee)
		r.CleaningFee = &fee
	}
	return r, nil
}

type wireExpense struct {
	ID          int64   `json:"id"`
	ListingID   *uint   `json:"listingId"`
	Date        string  `json:"date"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Amount      float64 `json:"amount"`
	Type        string  `json:"type"`
}

func (c *ChannelClient) GetExpenses(ctx context.Context, propertyID uint, start, end time.Time) ([]finance.ExpenseRecord, error) {
	query := url.Values{}
	query.Set("listingId", strconv.FormatUint(uint64(propertyID), 10))
	query.Set("startDate", start.Format("2006-01-02"))
	query.Set("endDate", end.Format("2006-01-02"))

	var body struct {
		Result []wireExpense `json:"result"`
	}
	if err := c.get(ctx, "/v1/expenses", query, &body); err != nil {
		return nil, err
	}

	records := make([]finance.ExpenseRecord, 0, len(body.Result))
	for _, w := range body.Result {
		if w.ID < 0 {
			log.Printf("skipping expense %d: negative id", w.ID)
			continue
		}
		date, err := time.Parse("2006-01-02", w.Date)
		if err != nil {
			log.Printf("skipping expense %d: bad date %q", w.ID, w.Date)
			continue
		}
		// Rows without a listing id are already scoped to this property by
		// the API; attribute them so category exclusions still apply.
		recordProperty := propertyID
		if w.ListingID != nil {
			recordProperty = *w.ListingID
		}
		records = append(records, finance.ExpenseRecord{
			ID:          uint(w.ID),
			PropertyID:  recordProperty,
			Date:        date,
			Description: w.Description,
			Category:    w.Category,
			Amount:      decimal.NewFromFloat(w.Amount),
			Type:        w.Type,
		})
	}
	return records, nil
}
