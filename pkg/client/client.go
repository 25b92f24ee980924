// Package client is a Go client for the OrderBuddy REST API. A Client holds at
// most one Session: Login and Register start it, Logout ends it.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/orderbuddy/orderbuddy/internal/assistant"
	"github.com/orderbuddy/orderbuddy/internal/domain"
	"github.com/orderbuddy/orderbuddy/internal/location"
	"github.com/orderbuddy/orderbuddy/internal/service"
)

type Client struct {
	baseURL    string
	httpClient *http.Client

	mu      sync.RWMutex
	session *domain.Session
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Session returns a copy of the active session.
func (c *Client) Session() (domain.Session, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return domain.Session{}, false
	}
	return *c.session, true
}

type authResponse struct {
	AccessToken string      `json:"access_token"`
	ExpiresAt   time.Time   `json:"expires_at"`
	User        domain.User `json:"user"`
}

func (c *Client) openSession(resp authResponse) *domain.Session {
	s := &domain.Session{User: resp.User, Token: resp.AccessToken, ExpiresAt: resp.ExpiresAt}
	c.mu.Lock()
	c.session = s
	c.mu.Unlock()
	return s
}

func (c *Client) Register(ctx context.Context, req service.RegisterRequest) (*domain.Session, error) {
	var resp authResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/register", req, &resp, false); err != nil {
		return nil, err
	}
	return c.openSession(resp), nil
}

func (c *Client) Login(ctx context.Context, email, password string) (*domain.Session, error) {
	var resp authResponse
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", body, &resp, false); err != nil {
		return nil, err
	}
	return c.openSession(resp), nil
}

// Logout revokes the token on the server and always drops the local session,
// even when the server call fails.
func (c *Client) Logout(ctx context.Context) error {
	if _, ok := c.Session(); !ok {
		return ErrNoSession
	}
	err := c.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil, true)
	c.mu.Lock()
	c.session = nil
	c.mu.Unlock()
	return err
}

func (c *Client) Me(ctx context.Context) (*domain.User, error) {
	var u domain.User
	if err := c.do(ctx, http.MethodGet, "/api/auth/me", nil, &u, true); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) Locations(ctx context.Context) (map[string]location.District, error) {
	var out map[string]location.District
	if err := c.do(ctx, http.MethodGet, "/api/locations", nil, &out, false); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListShops(ctx context.Context, filter domain.Location) ([]domain.Shop, error) {
	q := url.Values{}
	setIf(q, "district", filter.District)
	setIf(q, "taluk", filter.Taluk)
	setIf(q, "village_city", filter.VillageCity)
	var out []domain.Shop
	if err := c.do(ctx, http.MethodGet, withQuery("/api/shops", q), nil, &out, false); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) MyShops(ctx context.Context) ([]domain.Shop, error) {
	var out []domain.Shop
	if err := c.do(ctx, http.MethodGet, "/api/shops/my", nil, &out, true); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateShop(ctx context.Context, in service.ShopInput) (*domain.Shop, error) {
	var out domain.Shop
	if err := c.do(ctx, http.MethodPost, "/api/shops", in, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SetShopOpen(ctx context.Context, shopID string, open bool) (*domain.Shop, error) {
	var out domain.Shop
	body := map[string]bool{"is_open": open}
	if err := c.do(ctx, http.MethodPatch, "/api/shops/"+url.PathEscape(shopID)+"/open", body, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListProducts(ctx context.Context, shopID string) ([]domain.Product, error) {
	var out []domain.Product
	if err := c.do(ctx, http.MethodGet, "/api/shops/"+url.PathEscape(shopID)+"/products", nil, &out, false); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateProduct(ctx context.Context, shopID string, in service.ProductInput) (*domain.Product, error) {
	var out domain.Product
	if err := c.do(ctx, http.MethodPost, "/api/shops/"+url.PathEscape(shopID)+"/products", in, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SearchProducts(ctx context.Context, query domain.ProductQuery) ([]domain.Product, error) {
	q := url.Values{}
	setIf(q, "query", query.Text)
	setIf(q, "district", query.District)
	setIf(q, "taluk", query.Taluk)
	setIf(q, "category", query.Category)
	var out []domain.Product
	if err := c.do(ctx, http.MethodGet, withQuery("/api/products/search", q), nil, &out, false); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetCart(ctx context.Context) (*domain.CartView, error) {
	var out domain.CartView
	if err := c.do(ctx, http.MethodGet, "/api/cart", nil, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AddToCart(ctx context.Context, productID string, quantity int) (*domain.CartView, error) {
	var out domain.CartView
	body := map[string]interface{}{"product_id": productID, "quantity": quantity}
	if err := c.do(ctx, http.MethodPost, "/api/cart", body, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) RemoveFromCart(ctx context.Context, itemID string) (*domain.CartView, error) {
	var out domain.CartView
	if err := c.do(ctx, http.MethodDelete, "/api/cart/"+url.PathEscape(itemID), nil, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateOrder orders the whole cart. shopID may be empty; when set the server
// rejects carts from any other shop.
func (c *Client) CreateOrder(ctx context.Context, shopID string) (*domain.Order, error) {
	var out domain.Order
	if err := c.do(ctx, http.MethodPost, "/api/orders", service.PlaceOrderRequest{ShopID: shopID}, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListOrders(ctx context.Context) ([]domain.Order, error) {
	var out []domain.Order
	if err := c.do(ctx, http.MethodGet, "/api/orders", nil, &out, true); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	var out domain.Order
	if err := c.do(ctx, http.MethodGet, "/api/orders/"+url.PathEscape(orderID), nil, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateOrderStatus checks the step against the transition table for the
// session's role before calling the server. The check is advisory: the
// server enforces the same rules, including shop ownership.
func (c *Client) UpdateOrderStatus(ctx context.Context, order *domain.Order, to domain.OrderStatus) (*domain.Order, error) {
	s, ok := c.Session()
	if !ok {
		return nil, ErrNoSession
	}
	role, ok := domain.TransitionRule(order.Status, to)
	if !ok {
		return nil, &domain.TransitionError{From: order.Status, To: to, Role: s.User.Role, Reason: "not a permitted step"}
	}
	if role != s.User.Role {
		return nil, &domain.TransitionError{From: order.Status, To: to, Role: s.User.Role, Reason: "requires " + role.String()}
	}

	var out domain.Order
	body := map[string]string{"status": string(to)}
	if err := c.do(ctx, http.MethodPatch, "/api/orders/"+url.PathEscape(order.ID)+"/status", body, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ClaimOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	var out domain.Order
	if err := c.do(ctx, http.MethodPost, "/api/orders/"+url.PathEscape(orderID)+"/claim", nil, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) OrderHistory(ctx context.Context, orderID string) ([]domain.StatusChange, error) {
	var out []domain.StatusChange
	if err := c.do(ctx, http.MethodGet, "/api/orders/"+url.PathEscape(orderID)+"/history", nil, &out, true); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) DashboardStats(ctx context.Context) (*domain.Stats, error) {
	var out domain.Stats
	if err := c.do(ctx, http.MethodGet, "/api/dashboard/stats", nil, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DashboardView(ctx context.Context) ([]domain.OrderView, error) {
	var out []domain.OrderView
	if err := c.do(ctx, http.MethodGet, "/api/dashboard/view", nil, &out, true); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Ask(ctx context.Context, message, hint string) (*assistant.Response, error) {
	var out assistant.Response
	body := map[string]string{"message": message, "context": hint}
	if err := c.do(ctx, http.MethodPost, "/api/ai/assistant", body, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}, authed bool) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if authed {
		s, ok := c.Session()
		if !ok {
			return ErrNoSession
		}
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var payload struct {
			Error   string `json:"error"`
			Code    string `json:"code"`
			Details string `json:"details"`
		}
		if json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&payload) == nil {
			apiErr.Code, apiErr.Message, apiErr.Details = payload.Code, payload.Error, payload.Details
		} else {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %w", ErrNetwork, err)
	}
	return nil
}

func setIf(q url.Values, key, value string) {
	if value != "" {
		q.Set(key, value)
	}
}

func withQuery(path string, q url.Values) string {
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}
