package routes

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/checkout-backend/internal/cart"
	"github.com/angelmondragon/checkout-backend/internal/orders"
	pkgauth "github.com/angelmondragon/checkout-backend/pkg/auth"
	"github.com/angelmondragon/checkout-backend/pkg/config"
	"github.com/angelmondragon/checkout-backend/pkg/enums"
	"github.com/angelmondragon/checkout-backend/pkg/logger"
	"github.com/angelmondragon/checkout-backend/pkg/metrics"
	"github.com/angelmondragon/checkout-backend/pkg/pagination"
)

type memoryRedis struct {
	mu   sync.Mutex
	data map[string]string
}

func (m *memoryRedis) Ping(context.Context) error { return nil }

func (m *memoryRedis) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", goredis.Nil
	}
	return v, nil
}

func (m *memoryRedis) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = fmt.Sprint(value)
	return nil
}

func (m *memoryRedis) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = fmt.Sprint(value)
	return true, nil
}

func (m *memoryRedis) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memoryRedis) IdempotencyKey(scope, id string) string { return scope + ":" + id }

type stubCart struct{ cart.Service }

func (stubCart) GetCart(_ context.Context, userID uuid.UUID) (*cart.CartDTO, error) {
	return &cart.CartDTO{UserID: userID, Items: []cart.CartItemDTO{}}, nil
}

type stubOrders struct {
	orders.Service
	placed int
}

func (s *stubOrders) PlaceOrder(_ context.Context, _ uuid.UUID, input orders.PlaceOrderInput) (*orders.OrderDTO, error) {
	s.placed++
	return &orders.OrderDTO{ID: uuid.New(), OrderNumber: fmt.Sprintf("ORD-%d", s.placed), PaymentMethod: input.PaymentMethod}, nil
}

func (s *stubOrders) List(context.Context, uuid.UUID, pagination.Params) (*orders.OrderList, error) {
	return &orders.OrderList{Orders: []orders.OrderDTO{}}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App:      config.AppConfig{Env: "dev"},
		JWT:      config.JWTConfig{Secret: "secret", Issuer: "checkout", ExpirationMinutes: 60},
		Checkout: config.CheckoutConfig{IdempotencyTTL: time.Hour},
	}
}

func newTestRouter(t *testing.T, ordersSvc *stubOrders) (http.Handler, string) {
	t.Helper()
	cfg := testConfig()
	reg := prometheus.NewRegistry()
	metrics.NewCheckoutMetrics(reg).OrderCreated("bank_transfer", time.Millisecond)

	handler := NewRouter(RouterParams{
		Config:   cfg,
		Logger:   logger.New(logger.Options{ServiceName: "router-test", Output: io.Discard}),
		Redis:    &memoryRedis{data: map[string]string{}},
		Gatherer: reg,
		Cart:     stubCart{},
		Orders:   ordersSvc,
	})

	token, err := pkgauth.MintAccessToken(cfg.JWT, time.Now(), pkgauth.AccessTokenPayload{UserID: uuid.New()})
	require.NoError(t, err)
	return handler, token
}

func do(handler http.Handler, method, path, token, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestRouterHealthAndMetrics(t *testing.T) {
	handler, _ := newTestRouter(t, &stubOrders{})

	live := do(handler, http.MethodGet, "/health/live", "", "", nil)
	assert.Equal(t, http.StatusOK, live.Code)
	assert.NotEmpty(t, live.Header().Get("X-Request-Id"))

	ready := do(handler, http.MethodGet, "/health/ready", "", "", nil)
	assert.Equal(t, http.StatusOK, ready.Code)

	m := do(handler, http.MethodGet, "/metrics", "", "", nil)
	require.Equal(t, http.StatusOK, m.Code)
	assert.Contains(t, m.Body.String(), "checkout_orders_created_total")
}

func TestRouterRequiresAuth(t *testing.T) {
	handler, token := newTestRouter(t, &stubOrders{})

	assert.Equal(t, http.StatusUnauthorized, do(handler, http.MethodGet, "/api/v1/cart", "", "", nil).Code)
	assert.Equal(t, http.StatusOK, do(handler, http.MethodGet, "/api/v1/cart", token, "", nil).Code)
	assert.Equal(t, http.StatusOK, do(handler, http.MethodGet, "/api/v1/orders", token, "", nil).Code)
}

func TestRouterOrderCreationIsIdempotent(t *testing.T) {
	ordersSvc := &stubOrders{}
	handler, token := newTestRouter(t, ordersSvc)
	body := fmt.Sprintf(`{"payment_method":"%s","shipping_address_id":"%s"}`, enums.PaymentMethodBankTransfer, uuid.New())

	missing := do(handler, http.MethodPost, "/api/v1/orders", token, body, nil)
	assert.Equal(t, http.StatusBadRequest, missing.Code)

	key := map[string]string{"Idempotency-Key": "order-1"}
	first := do(handler, http.MethodPost, "/api/v1/orders", token, body, key)
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())
	second := do(handler, http.MethodPost, "/api/v1/orders", token, body, key)
	require.Equal(t, http.StatusCreated, second.Code)

	assert.Equal(t, 1, ordersSvc.placed)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
}

func TestRouterWebhookIsPublic(t *testing.T) {
	handler, _ := newTestRouter(t, &stubOrders{})
	rec := do(handler, http.MethodPost, "/api/v1/webhooks/stripe", "", `{}`, nil)
	assert.NotEqual(t, http.StatusUnauthorized, rec.Code)
}
