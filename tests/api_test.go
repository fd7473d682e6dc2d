package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// Сценарные тесты против запущенного сервера (go run ./cmd/server с локальной БД).

const baseURL = "http://localhost:8080"

// Envelope — единый конверт ответов API
type Envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type AuthData struct {
	User struct {
		ID    int64  `json:"id"`
		Email string `json:"email"`
		Role  string `json:"role"`
	} `json:"user"`
	Token string `json:"token"`
}

func registerUser(t *testing.T, email, password string) AuthData {
	reqBody := []byte(fmt.Sprintf(
		`{"email": %q, "password": %q, "firstName": "Test", "lastName": "User"}`, email, password))
	resp, err := http.Post(baseURL+"/api/auth/register", "application/json", bytes.NewBuffer(reqBody))
	assert.NoError(t, err, "Register request should not error")
	defer resp.Body.Close()

	assert.Equal(t, http.StatusCreated, resp.StatusCode, "Expected 201 Created for valid registration")

	var env Envelope
	err = json.NewDecoder(resp.Body).Decode(&env)
	assert.NoError(t, err, "Decoding register response should succeed")
	assert.True(t, env.Success)

	var data AuthData
	err = json.Unmarshal(env.Data, &data)
	assert.NoError(t, err)
	assert.NotEmpty(t, data.Token, "Token should not be empty")
	return data
}

// uniqueEmail даёт новый email на каждый прогон, чтобы тесты не конфликтовали по данным.
func uniqueEmail(prefix string) string {
	return fmt.Sprintf("%s+%d@test.com", prefix, time.Now().UnixNano())
}

func doAuth(t *testing.T, method, path, token string, body []byte) *http.Response {
	req, err := http.NewRequest(method, baseURL+path, bytes.NewBuffer(body))
	assert.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{}
	resp, err := client.Do(req)
	assert.NoError(t, err)
	return resp
}

// сценарий с успешной регистрацией и входом
func TestRegisterAndLogin(t *testing.T) {
	email := uniqueEmail("login")
	registerUser(t, email, "testpass123")

	reqBody := []byte(fmt.Sprintf(`{"email": %q, "password": "testpass123"}`, email))
	resp, err := http.Post(baseURL+"/api/auth/login", "application/json", bytes.NewBuffer(reqBody))
	assert.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode, "expected 200 OK for valid login")
}

// сценарий с безуспешным входом
func TestLoginInvalid(t *testing.T) {
	reqBody := []byte(`{"email": "nobody@test.com", "password": "wrongpass"}`)
	resp, err := http.Post(baseURL+"/api/auth/login", "application/json", bytes.NewBuffer(reqBody))
	assert.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "expected 401 for invalid credentials")
}

// сценарий с повторной регистрацией того же email
func TestRegisterDuplicate(t *testing.T) {
	email := uniqueEmail("dup")
	registerUser(t, email, "testpass123")

	reqBody := []byte(fmt.Sprintf(
		`{"email": %q, "password": "testpass123", "firstName": "Test", "lastName": "User"}`, email))
	resp, err := http.Post(baseURL+"/api/auth/register", "application/json", bytes.NewBuffer(reqBody))
	assert.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "expected 400 for duplicate email")
}

// публичный каталог доступен без токена
func TestListProductsPublic(t *testing.T) {
	resp, err := http.Get(baseURL + "/api/products")
	assert.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode, "expected 200 OK for public catalog")

	var env Envelope
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	assert.True(t, env.Success)
}

// корзина без токена недоступна
func TestGetCartUnauthorized(t *testing.T) {
	resp, err := http.Get(baseURL + "/api/cart")
	assert.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "expected 401 for missing token")
}

// обычному пользователю нельзя создавать товары
func TestCreateProductForbiddenForUser(t *testing.T) {
	auth := registerUser(t, uniqueEmail("plain"), "testpass123")

	body := []byte(`{"name": "Keyboard", "price": 49.90, "category": "electronics", "stock": 10}`)
	resp := doAuth(t, "POST", "/api/products", auth.Token, body)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode, "expected 403 for non-seller product creation")
}

// сценарий добавления несуществующего товара в корзину
func TestAddToCartUnknownProduct(t *testing.T) {
	auth := registerUser(t, uniqueEmail("cart"), "testpass123")

	body := []byte(`{"productId": 999999999, "quantity": 1}`)
	resp := doAuth(t, "POST", "/api/cart", auth.Token, body)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "expected 404 for unknown product")

	var env Envelope
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	assert.False(t, env.Success)
	assert.Equal(t, "Product not found or inactive", env.Message)
}

// валидация пустой корзины — валидна
func TestValidateEmptyCart(t *testing.T) {
	auth := registerUser(t, uniqueEmail("validate"), "testpass123")

	resp := doAuth(t, "GET", "/api/cart/validate", auth.Token, nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var env Envelope
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	assert.True(t, env.Success)

	var validation struct {
		Valid  bool     `json:"valid"`
		Issues []string `json:"issues"`
	}
	assert.NoError(t, json.Unmarshal(env.Data, &validation))
	assert.True(t, validation.Valid, "empty cart should be valid")
	assert.Empty(t, validation.Issues)
}

// заказ без позиций отклоняется
func TestCreateOrderEmptyItems(t *testing.T) {
	auth := registerUser(t, uniqueEmail("order"), "testpass123")

	body := []byte(`{
		"items": [],
		"shippingAddress": {"street": "Lenina 1", "city": "Moscow", "state": "MSK", "zipCode": "101000", "country": "RU"},
		"paymentMethod": "card"
	}`)
	resp := doAuth(t, "POST", "/api/orders", auth.Token, body)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "expected 400 for order without items")
}

// история заказов с мусорным статусом отклоняется
func TestOrderHistoryInvalidStatus(t *testing.T) {
	auth := registerUser(t, uniqueEmail("history"), "testpass123")

	resp := doAuth(t, "GET", "/api/orders/history?status=bogus", auth.Token, nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "expected 400 for unknown status filter")

	var env Envelope
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	assert.Equal(t, "Invalid order status", env.Message)
}

// статистика по заказам нового пользователя пуста
func TestOrderStatsEmpty(t *testing.T) {
	auth := registerUser(t, uniqueEmail("stats"), "testpass123")

	resp := doAuth(t, "GET", "/api/orders/stats", auth.Token, nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var env Envelope
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&env))

	var stats struct {
		TotalOrders int     `json:"totalOrders"`
		TotalSpent  float64 `json:"totalSpent"`
	}
	assert.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Equal(t, 0, stats.TotalOrders)
	assert.Equal(t, 0.0, stats.TotalSpent)
}

// аналитика закрыта для обычных пользователей
func TestDashboardForbidden(t *testing.T) {
	auth := registerUser(t, uniqueEmail("dash"), "testpass123")

	resp := doAuth(t, "GET", "/api/analytics/dashboard", auth.Token, nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode, "expected 403 for non-admin dashboard access")
}
