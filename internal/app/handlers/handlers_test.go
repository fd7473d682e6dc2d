package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"github.com/akorchagin/market-api/internal/apperr"
	"github.com/akorchagin/market-api/internal/app/handlers"
	"github.com/akorchagin/market-api/internal/domain/models"
	"github.com/akorchagin/market-api/internal/jwt-new/jwtmiddleware"
	"github.com/akorchagin/market-api/internal/lib/api"
	"github.com/akorchagin/market-api/internal/service"
	"github.com/akorchagin/market-api/internal/storage"
)

// fakeAuthService — фиктивная реализация для тестирования.
type fakeAuthService struct {
	user  *models.User
	token string
	err   error
}

var _ service.AuthServiceInterface = (*fakeAuthService)(nil)

func (f *fakeAuthService) Register(ctx context.Context, input service.RegisterInput) (*models.User, string, error) {
	return f.user, f.token, f.err
}

func (f *fakeAuthService) Login(ctx context.Context, email, password string) (*models.User, string, error) {
	return f.user, f.token, f.err
}

// fakeCartService — фиктивная реализация интерфейса CartService
type fakeCartService struct {
	cart       *models.Cart
	validation *service.CartValidation
	err        error
}

var _ service.CartService = (*fakeCartService)(nil)

func (f *fakeCartService) GetCart(ctx context.Context, userID int64) (*models.Cart, error) {
	return f.cart, f.err
}

func (f *fakeCartService) AddItem(ctx context.Context, userID, productID int64, quantity int) (*models.Cart, error) {
	return f.cart, f.err
}

func (f *fakeCartService) UpdateItem(ctx context.Context, userID, productID int64, quantity int) (*models.Cart, error) {
	return f.cart, f.err
}

func (f *fakeCartService) RemoveItem(ctx context.Context, userID, productID int64) (*models.Cart, error) {
	return f.cart, f.err
}

func (f *fakeCartService) Clear(ctx context.Context, userID int64) error {
	return f.err
}

func (f *fakeCartService) Validate(ctx context.Context, userID int64) (*service.CartValidation, error) {
	return f.validation, f.err
}

// fakeOrderService — фиктивная реализация интерфейса OrderService
type fakeOrderService struct {
	order  *models.Order
	page   *service.PaginatedOrders
	stats  *service.OrderStats
	err    error
	status string // последний статус, переданный в UpdateStatus
}

var _ service.OrderService = (*fakeOrderService)(nil)

func (f *fakeOrderService) Create(ctx context.Context, userID int64, input service.CreateOrderInput) (*models.Order, error) {
	return f.order, f.err
}

func (f *fakeOrderService) GetByID(ctx context.Context, orderID, userID int64) (*models.Order, error) {
	return f.order, f.err
}

func (f *fakeOrderService) List(ctx context.Context, userID int64, page, limit int) (*service.PaginatedOrders, error) {
	return f.page, f.err
}

func (f *fakeOrderService) History(ctx context.Context, userID int64, page, limit int, status string) (*service.PaginatedOrders, error) {
	return f.page, f.err
}

func (f *fakeOrderService) UpdateStatus(ctx context.Context, orderID, userID int64, status string) (*models.Order, error) {
	f.status = status
	return f.order, f.err
}

func (f *fakeOrderService) Cancel(ctx context.Context, orderID, userID int64) (*models.Order, error) {
	return f.order, f.err
}

func (f *fakeOrderService) Stats(ctx context.Context, userID int64) (*service.OrderStats, error) {
	return f.stats, f.err
}

// fakeProductService — фиктивная реализация интерфейса ProductService
type fakeProductService struct {
	product *models.Product
	list    *service.ProductList
	err     error
}

var _ service.ProductService = (*fakeProductService)(nil)

func (f *fakeProductService) List(ctx context.Context, filter storage.ProductFilter) (*service.ProductList, error) {
	return f.list, f.err
}

func (f *fakeProductService) GetByID(ctx context.Context, id int64) (*models.Product, error) {
	return f.product, f.err
}

func (f *fakeProductService) Create(ctx context.Context, sellerID int64, input service.ProductInput) (*models.Product, error) {
	return f.product, f.err
}

func (f *fakeProductService) Update(ctx context.Context, id int64, input service.ProductInput) (*models.Product, error) {
	return f.product, f.err
}

func (f *fakeProductService) Delete(ctx context.Context, id int64) error {
	return f.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

// withUserID эмулирует JWT middleware, устанавливая userID в контекст.
func withUserID(req *http.Request, userID int64) *http.Request {
	return req.WithContext(context.WithValue(req.Context(), jwtmiddleware.UserIDKey, userID))
}

func withURLParam(req *http.Request, name, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(name, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func decodeEnvelope(t *testing.T, body *bytes.Buffer) api.Response {
	t.Helper()
	var resp api.Response
	assert.NoError(t, json.NewDecoder(body).Decode(&resp), "Response decoding should succeed")
	return resp
}

func TestRegisterHandler_Success(t *testing.T) {
	fakeSvc := &fakeAuthService{
		user:  &models.User{ID: 1, Email: "new@example.com", Role: models.RoleUser},
		token: "test-token",
	}
	handler := handlers.RegisterHandler(testLogger(), "local", fakeSvc)

	reqBody := `{"email":"new@example.com","password":"password123","firstName":"Ivan","lastName":"Petrov"}`
	req := httptest.NewRequest("POST", "/api/auth/register", bytes.NewBufferString(reqBody))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusCreated, rr.Code, "Expected status 201 Created")
	resp := decodeEnvelope(t, rr.Body)
	assert.True(t, resp.Success)
	assert.Equal(t, "User registered successfully", resp.Message)
}

func TestRegisterHandler_ValidationError(t *testing.T) {
	handler := handlers.RegisterHandler(testLogger(), "local", &fakeAuthService{})

	// пароль короче шести символов
	reqBody := `{"email":"new@example.com","password":"123","firstName":"Ivan","lastName":"Petrov"}`
	req := httptest.NewRequest("POST", "/api/auth/register", bytes.NewBufferString(reqBody))
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code, "Expected status 400 for validation error")
	resp := decodeEnvelope(t, rr.Body)
	assert.False(t, resp.Success)
}

func TestLoginHandler_InvalidCredentials(t *testing.T) {
	fakeSvc := &fakeAuthService{err: apperr.Unauthorized("Invalid email or password")}
	handler := handlers.LoginHandler(testLogger(), "local", fakeSvc)

	reqBody := `{"email":"user@example.com","password":"wrongpassword"}`
	req := httptest.NewRequest("POST", "/api/auth/login", bytes.NewBufferString(reqBody))
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code, "Expected status 401")
	resp := decodeEnvelope(t, rr.Body)
	assert.False(t, resp.Success)
	assert.Equal(t, "Invalid email or password", resp.Message)
}

func TestLoginHandler_InvalidJSON(t *testing.T) {
	handler := handlers.LoginHandler(testLogger(), "local", &fakeAuthService{})

	req := httptest.NewRequest("POST", "/api/auth/login", bytes.NewBufferString(`{"email":`))
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code, "Expected status 400 for invalid JSON")
}

func TestAddCartItemHandler_Success(t *testing.T) {
	fakeSvc := &fakeCartService{
		cart: &models.Cart{
			ID:     1,
			UserID: 1,
			Items: []*models.CartItem{
				{ProductID: 2, ProductName: "Keyboard", Quantity: 2, Price: 49.90},
			},
			TotalAmount: 99.80,
			TotalItems:  2,
		},
	}
	handler := handlers.AddCartItemHandler(testLogger(), "local", fakeSvc)

	reqBody := `{"productId": 2, "quantity": 2}`
	req := httptest.NewRequest("POST", "/api/cart", bytes.NewBufferString(reqBody))
	req = withUserID(req, 1)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	resp := decodeEnvelope(t, rr.Body)
	assert.True(t, resp.Success)
	assert.Equal(t, "Item added to cart", resp.Message)
}

func TestAddCartItemHandler_MissingUserID(t *testing.T) {
	handler := handlers.AddCartItemHandler(testLogger(), "local", &fakeCartService{})

	req := httptest.NewRequest("POST", "/api/cart", bytes.NewBufferString(`{"productId": 2, "quantity": 2}`))
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code, "Expected 401 when userID is missing")
}

func TestAddCartItemHandler_ZeroQuantity(t *testing.T) {
	handler := handlers.AddCartItemHandler(testLogger(), "local", &fakeCartService{})

	req := httptest.NewRequest("POST", "/api/cart", bytes.NewBufferString(`{"productId": 2, "quantity": 0}`))
	req = withUserID(req, 1)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code, "Zero quantity should fail validation")
}

func TestUpdateCartItemHandler_InvalidProductID(t *testing.T) {
	handler := handlers.UpdateCartItemHandler(testLogger(), "local", &fakeCartService{})

	req := httptest.NewRequest("PUT", "/api/cart/abc", bytes.NewBufferString(`{"quantity": 3}`))
	req = withURLParam(req, "productId", "abc")
	req = withUserID(req, 1)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code, "Non-numeric product id should give 400")
}

func TestValidateCartHandler_ReportsIssues(t *testing.T) {
	fakeSvc := &fakeCartService{
		validation: &service.CartValidation{
			Valid:  false,
			Issues: []string{"Only 3 units of Mouse available"},
		},
	}
	handler := handlers.ValidateCartHandler(testLogger(), "local", fakeSvc)

	req := httptest.NewRequest("GET", "/api/cart/validate", nil)
	req = withUserID(req, 1)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code, "Validation issues are a report, not an error")
	resp := decodeEnvelope(t, rr.Body)
	assert.True(t, resp.Success)
}

func TestCreateOrderHandler_Success(t *testing.T) {
	fakeSvc := &fakeOrderService{
		order: &models.Order{ID: 10, UserID: 1, Status: models.OrderStatusPending, TotalAmount: 140},
	}
	handler := handlers.CreateOrderHandler(testLogger(), "local", fakeSvc)

	reqBody := `{
		"items": [{"productId": 1, "quantity": 2}],
		"shippingAddress": {"street": "Lenina 1", "city": "Moscow", "state": "MSK", "zipCode": "101000", "country": "RU"},
		"paymentMethod": "card"
	}`
	req := httptest.NewRequest("POST", "/api/orders", bytes.NewBufferString(reqBody))
	req = withUserID(req, 1)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusCreated, rr.Code)
	resp := decodeEnvelope(t, rr.Body)
	assert.True(t, resp.Success)
	assert.Equal(t, "Order created successfully", resp.Message)
}

func TestCreateOrderHandler_EmptyItems(t *testing.T) {
	handler := handlers.CreateOrderHandler(testLogger(), "local", &fakeOrderService{})

	reqBody := `{
		"items": [],
		"shippingAddress": {"street": "Lenina 1", "city": "Moscow", "state": "MSK", "zipCode": "101000", "country": "RU"},
		"paymentMethod": "card"
	}`
	req := httptest.NewRequest("POST", "/api/orders", bytes.NewBufferString(reqBody))
	req = withUserID(req, 1)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code, "Empty items should fail validation")
}

func TestCreateOrderHandler_InsufficientStock(t *testing.T) {
	fakeSvc := &fakeOrderService{err: apperr.BadRequest("Only 1 units of Mouse available")}
	handler := handlers.CreateOrderHandler(testLogger(), "local", fakeSvc)

	reqBody := `{
		"items": [{"productId": 1, "quantity": 5}],
		"shippingAddress": {"street": "Lenina 1", "city": "Moscow", "state": "MSK", "zipCode": "101000", "country": "RU"},
		"paymentMethod": "card"
	}`
	req := httptest.NewRequest("POST", "/api/orders", bytes.NewBufferString(reqBody))
	req = withUserID(req, 1)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	resp := decodeEnvelope(t, rr.Body)
	assert.False(t, resp.Success)
	assert.Equal(t, "Only 1 units of Mouse available", resp.Message)
}

func TestUpdateOrderStatusHandler_Success(t *testing.T) {
	fakeSvc := &fakeOrderService{
		order: &models.Order{ID: 10, UserID: 1, Status: models.OrderStatusConfirmed},
	}
	handler := handlers.UpdateOrderStatusHandler(testLogger(), "local", fakeSvc)

	req := httptest.NewRequest("PUT", "/api/orders/10/status", bytes.NewBufferString(`{"status": "confirmed"}`))
	req = withURLParam(req, "id", "10")
	req = withUserID(req, 1)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "confirmed", fakeSvc.status, "Handler should pass the requested status to the service")
}

func TestCancelOrderHandler_NotFound(t *testing.T) {
	fakeSvc := &fakeOrderService{err: apperr.NotFound("Order not found")}
	handler := handlers.CancelOrderHandler(testLogger(), "local", fakeSvc)

	req := httptest.NewRequest("PUT", "/api/orders/99/cancel", nil)
	req = withURLParam(req, "id", "99")
	req = withUserID(req, 1)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
	resp := decodeEnvelope(t, rr.Body)
	assert.False(t, resp.Success)
	assert.Equal(t, "Order not found", resp.Message)
}

func TestGetProductHandler_Success(t *testing.T) {
	fakeSvc := &fakeProductService{
		product: &models.Product{ID: 1, Name: "Keyboard", Price: 49.90, Stock: 10, IsActive: true},
	}
	handler := handlers.GetProductHandler(testLogger(), "local", fakeSvc)

	req := httptest.NewRequest("GET", "/api/products/1", nil)
	req = withURLParam(req, "id", "1")
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	resp := decodeEnvelope(t, rr.Body)
	assert.True(t, resp.Success)
}

func TestGetProductHandler_ServiceError(t *testing.T) {
	// Нетипизированная ошибка сервиса должна давать 500.
	fakeSvc := &fakeProductService{err: assert.AnError}
	handler := handlers.GetProductHandler(testLogger(), "local", fakeSvc)

	req := httptest.NewRequest("GET", "/api/products/1", nil)
	req = withURLParam(req, "id", "1")
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusInternalServerError, rr.Code, "Untyped errors should map to 500")
}

func TestCreateProductHandler_MissingUserID(t *testing.T) {
	handler := handlers.CreateProductHandler(testLogger(), "local", &fakeProductService{})

	reqBody := `{"name": "Keyboard", "price": 49.90, "category": "electronics", "stock": 10}`
	req := httptest.NewRequest("POST", "/api/products", bytes.NewBufferString(reqBody))
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code, "Expected 401 when seller is not authenticated")
}

// fakeAnalyticsService — фиктивная реализация интерфейса AnalyticsService
type fakeAnalyticsService struct {
	results    []service.DayGenerationResult
	err        error
	start, end time.Time // диапазон, переданный в GenerateRange
}

var _ service.AnalyticsService = (*fakeAnalyticsService)(nil)

func (f *fakeAnalyticsService) TrackSession(ctx context.Context, input service.SessionInput) (string, error) {
	return "", f.err
}

func (f *fakeAnalyticsService) TrackPageView(ctx context.Context, sessionID, path string) error {
	return f.err
}

func (f *fakeAnalyticsService) TrackProductView(ctx context.Context, input service.ProductViewInput) error {
	return f.err
}

func (f *fakeAnalyticsService) TrackEvent(ctx context.Context, sessionID string, event models.AnalyticsEvent) error {
	return f.err
}

func (f *fakeAnalyticsService) GenerateDaily(ctx context.Context, date time.Time) (*models.SalesAnalytics, error) {
	return nil, f.err
}

func (f *fakeAnalyticsService) GenerateRange(ctx context.Context, start, end time.Time) ([]service.DayGenerationResult, error) {
	f.start, f.end = start, end
	return f.results, f.err
}

func (f *fakeAnalyticsService) Dashboard(ctx context.Context, days int) (*service.DashboardStats, error) {
	return nil, f.err
}

func (f *fakeAnalyticsService) ProductAnalytics(ctx context.Context, productID int64, days int) (*service.ProductAnalytics, error) {
	return nil, f.err
}

func TestGenerateBatchHandler_Success(t *testing.T) {
	fakeSvc := &fakeAnalyticsService{
		results: []service.DayGenerationResult{
			{Date: "2026-08-01", Success: true},
			{Date: "2026-08-02", Success: false, Error: "no orders"},
		},
	}
	handler := handlers.GenerateBatchHandler(testLogger(), "local", fakeSvc)

	reqBody := `{"startDate": "2026-08-01", "endDate": "2026-08-02"}`
	req := httptest.NewRequest("POST", "/api/analytics/generate/batch", bytes.NewBufferString(reqBody))
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	resp := decodeEnvelope(t, rr.Body)
	assert.True(t, resp.Success)
	assert.Equal(t, "Analytics generated successfully", resp.Message)
	assert.Equal(t, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC), fakeSvc.start)
	assert.Equal(t, time.Date(2026, 8, 2, 0, 0, 0, 0, time.UTC), fakeSvc.end)
}

func TestGenerateBatchHandler_MissingDates(t *testing.T) {
	handler := handlers.GenerateBatchHandler(testLogger(), "local", &fakeAnalyticsService{})

	reqBody := `{"startDate": "2026-08-01"}`
	req := httptest.NewRequest("POST", "/api/analytics/generate/batch", bytes.NewBufferString(reqBody))
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	resp := decodeEnvelope(t, rr.Body)
	assert.Equal(t, "startDate and endDate are required", resp.Message)
}

func TestGenerateBatchHandler_InvalidRange(t *testing.T) {
	fakeSvc := &fakeAnalyticsService{err: apperr.BadRequest("startDate must be before endDate")}
	handler := handlers.GenerateBatchHandler(testLogger(), "local", fakeSvc)

	reqBody := `{"startDate": "2026-08-02", "endDate": "2026-08-01"}`
	req := httptest.NewRequest("POST", "/api/analytics/generate/batch", bytes.NewBufferString(reqBody))
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	resp := decodeEnvelope(t, rr.Body)
	assert.Equal(t, "startDate must be before endDate", resp.Message)
}
