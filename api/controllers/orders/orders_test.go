package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/checkout-backend/api/middleware"
	internalorders "github.com/angelmondragon/checkout-backend/internal/orders"
	"github.com/angelmondragon/checkout-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/checkout-backend/pkg/errors"
	"github.com/angelmondragon/checkout-backend/pkg/pagination"
)

type stubOrdersService struct {
	order   *internalorders.OrderDTO
	list    *internalorders.OrderList
	summary *internalorders.OrderSummary
	err     error

	lastInput  internalorders.PlaceOrderInput
	lastParams pagination.Params
	lastReason string
	lastUser   uuid.UUID
}

func (s *stubOrdersService) PlaceOrder(ctx context.Context, userID uuid.UUID, input internalorders.PlaceOrderInput) (*internalorders.OrderDTO, error) {
	s.lastUser = userID
	s.lastInput = input
	return s.order, s.err
}

func (s *stubOrdersService) Get(ctx context.Context, userID, orderID uuid.UUID) (*internalorders.OrderDTO, error) {
	s.lastUser = userID
	return s.order, s.err
}

func (s *stubOrdersService) List(ctx context.Context, userID uuid.UUID, params pagination.Params) (*internalorders.OrderList, error) {
	s.lastParams = params
	return s.list, s.err
}

func (s *stubOrdersService) Cancel(ctx context.Context, userID, orderID uuid.UUID, reason string) (*internalorders.OrderSummary, error) {
	s.lastReason = reason
	return s.summary, s.err
}

func (s *stubOrdersService) Advance(ctx context.Context, orderID uuid.UUID, target enums.OrderStatus) (*internalorders.OrderDTO, error) {
	return s.order, s.err
}

func authedRequest(method, target, body string, userID uuid.UUID, params map[string]string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rc := chi.NewRouteContext()
	for k, v := range params {
		rc.URLParams.Add(k, v)
	}
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rc)
	return req.WithContext(middleware.WithUserID(ctx, userID.String()))
}

type errorEnvelope struct {
	Error struct {
		Code    string         `json:"code"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func TestCreateOrderSuccess(t *testing.T) {
	userID := uuid.New()
	shippingID := uuid.New()
	billingID := uuid.New()
	order := &internalorders.OrderDTO{ID: uuid.New(), OrderNumber: "ORD-1", Status: enums.OrderStatusPending, TotalCents: 5413}
	svc := &stubOrdersService{order: order}

	body := fmt.Sprintf(`{"payment_method":"bank_transfer","shipping_address_id":"%s","billing_address_id":"%s"}`, shippingID, billingID)
	resp := httptest.NewRecorder()
	Create(svc, nil).ServeHTTP(resp, authedRequest(http.MethodPost, "/api/v1/orders", body, userID, nil))

	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	assert.Equal(t, userID, svc.lastUser)
	assert.Equal(t, enums.PaymentMethodBankTransfer, svc.lastInput.PaymentMethod)
	assert.Equal(t, shippingID, svc.lastInput.ShippingAddressID)
	require.NotNil(t, svc.lastInput.BillingAddressID)
	assert.Equal(t, billingID, *svc.lastInput.BillingAddressID)

	var envelope struct {
		Data internalorders.OrderDTO `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	assert.Equal(t, "ORD-1", envelope.Data.OrderNumber)
	assert.EqualValues(t, 5413, envelope.Data.TotalCents)
}

func TestCreateOrderRejectsUnknownPaymentMethod(t *testing.T) {
	svc := &stubOrdersService{}
	body := fmt.Sprintf(`{"payment_method":"barter","shipping_address_id":"%s"}`, uuid.New())
	resp := httptest.NewRecorder()
	Create(svc, nil).ServeHTTP(resp, authedRequest(http.MethodPost, "/api/v1/orders", body, uuid.New(), nil))

	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, uuid.Nil, svc.lastUser)
}

func TestCreateOrderSurfacesInsufficientStock(t *testing.T) {
	productID := uuid.New()
	svc := &stubOrdersService{err: pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").
		WithDetails(map[string]any{"product_id": productID.String(), "requested": 2, "available": 1})}
	body := fmt.Sprintf(`{"payment_method":"cash_on_delivery","shipping_address_id":"%s"}`, uuid.New())
	resp := httptest.NewRecorder()
	Create(svc, nil).ServeHTTP(resp, authedRequest(http.MethodPost, "/api/v1/orders", body, uuid.New(), nil))

	require.Equal(t, http.StatusConflict, resp.Code)
	var envelope errorEnvelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	assert.Equal(t, string(pkgerrors.CodeInsufficientStock), envelope.Error.Code)
	assert.Equal(t, productID.String(), envelope.Error.Details["product_id"])
	assert.EqualValues(t, 1, envelope.Error.Details["available"])
}

func TestCreateOrderRequiresUser(t *testing.T) {
	resp := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(`{}`))
	Create(&stubOrdersService{}, nil).ServeHTTP(resp, req)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestListOrdersPassesPagination(t *testing.T) {
	svc := &stubOrdersService{list: &internalorders.OrderList{Orders: []internalorders.OrderDTO{}, NextCursor: "next"}}
	resp := httptest.NewRecorder()
	List(svc, nil).ServeHTTP(resp, authedRequest(http.MethodGet, "/api/v1/orders?limit=10&cursor=abc", "", uuid.New(), nil))

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, 10, svc.lastParams.Limit)
	assert.Equal(t, "abc", svc.lastParams.Cursor)
}

func TestListOrdersRejectsLimitOutOfRange(t *testing.T) {
	resp := httptest.NewRecorder()
	List(&stubOrdersService{}, nil).ServeHTTP(resp, authedRequest(http.MethodGet, "/api/v1/orders?limit=1000", "", uuid.New(), nil))
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestDetailNotFound(t *testing.T) {
	orderID := uuid.New()
	svc := &stubOrdersService{err: pkgerrors.New(pkgerrors.CodeNotFound, "order not found")}
	resp := httptest.NewRecorder()
	Detail(svc, nil).ServeHTTP(resp, authedRequest(http.MethodGet, "/api/v1/orders/"+orderID.String(), "", uuid.New(), map[string]string{"orderId": orderID.String()}))
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestCancelOrderWithReason(t *testing.T) {
	orderID := uuid.New()
	cancelledAt := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	svc := &stubOrdersService{summary: &internalorders.OrderSummary{ID: orderID, Status: enums.OrderStatusCancelled, CancelledAt: &cancelledAt}}
	resp := httptest.NewRecorder()
	Cancel(svc, nil).ServeHTTP(resp, authedRequest(http.MethodPost, "/api/v1/orders/"+orderID.String()+"/cancel", `{"reason":"changed my mind"}`, uuid.New(), map[string]string{"orderId": orderID.String()}))

	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, "changed my mind", svc.lastReason)
}

func TestCancelOrderWithoutBody(t *testing.T) {
	orderID := uuid.New()
	svc := &stubOrdersService{summary: &internalorders.OrderSummary{ID: orderID, Status: enums.OrderStatusCancelled}}
	resp := httptest.NewRecorder()
	Cancel(svc, nil).ServeHTTP(resp, authedRequest(http.MethodPost, "/api/v1/orders/"+orderID.String()+"/cancel", "", uuid.New(), map[string]string{"orderId": orderID.String()}))

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Empty(t, svc.lastReason)
}

func TestCancelOrderInvalidTransition(t *testing.T) {
	orderID := uuid.New()
	svc := &stubOrdersService{err: internalorders.InvalidTransition("shipped", "cancelled")}
	resp := httptest.NewRecorder()
	Cancel(svc, nil).ServeHTTP(resp, authedRequest(http.MethodPost, "/api/v1/orders/"+orderID.String()+"/cancel", "", uuid.New(), map[string]string{"orderId": orderID.String()}))

	require.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	var envelope errorEnvelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	assert.Equal(t, string(pkgerrors.CodeInvalidTransition), envelope.Error.Code)
	assert.Equal(t, "shipped", envelope.Error.Details["current"])
}
