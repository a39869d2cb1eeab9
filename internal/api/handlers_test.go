package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/ec-storefront/internal/apiclient"
	"github.com/example/ec-storefront/internal/apperrors"
	"github.com/example/ec-storefront/internal/auth"
	"github.com/example/ec-storefront/internal/domain/cart"
	"github.com/example/ec-storefront/internal/domain/product"
	"github.com/example/ec-storefront/internal/infrastructure/store"
)

type fakeSource struct {
	listing *product.Listing
	err     error
}

func (f *fakeSource) ListProducts(ctx context.Context, q product.Query) (*product.Listing, error) {
	if f.err != nil {
		return nil, f.err
	}
	copied := *f.listing
	return &copied, nil
}

type fakeLookup struct {
	products map[product.ID]product.Product
}

func (f *fakeLookup) GetProduct(ctx context.Context, id product.ID) (*product.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return nil, apperrors.FromStatus(404, "Product not found")
	}
	return &p, nil
}

// fakeRemote acknowledges every call without returning a cart
type fakeRemote struct {
	lines    []cart.Line
	err      error
	rejected map[product.ID]bool
	added    []product.ID
}

func (f *fakeRemote) GetCart(ctx context.Context) ([]cart.Line, error) {
	return f.lines, f.err
}

func (f *fakeRemote) AddItem(ctx context.Context, id product.ID, qty int) ([]cart.Line, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.rejected[id] {
		return nil, apperrors.FromStatus(400, "Insufficient stock")
	}
	f.added = append(f.added, id)
	return nil, nil
}

func (f *fakeRemote) UpdateItem(ctx context.Context, id product.ID, qty int) ([]cart.Line, error) {
	return nil, f.err
}

func (f *fakeRemote) RemoveItem(ctx context.Context, id product.ID) ([]cart.Line, error) {
	return nil, f.err
}

func (f *fakeRemote) ClearCart(ctx context.Context) ([]cart.Line, error) {
	return nil, f.err
}

type fakeAuthenticator struct {
	result     *apiclient.AuthResult
	err        error
	profile    *auth.User
	profileErr error
	logouts    int
}

func (f *fakeAuthenticator) Register(ctx context.Context, r apiclient.Registration) (*apiclient.AuthResult, error) {
	return f.result, f.err
}

func (f *fakeAuthenticator) Login(ctx context.Context, c apiclient.Credentials) (*apiclient.AuthResult, error) {
	return f.result, f.err
}

func (f *fakeAuthenticator) Profile(ctx context.Context) (*auth.User, error) {
	return f.profile, f.profileErr
}

func (f *fakeAuthenticator) Logout(ctx context.Context) error {
	f.logouts++
	return nil
}

type testEnv struct {
	router   http.Handler
	catalog  *product.Service
	source   *fakeSource
	carts    *cart.Service
	remote   *fakeRemote
	session  *auth.Session
	backend  *fakeAuthenticator
	fallback *cart.Fallback
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		source: &fakeSource{listing: &product.Listing{
			Items: []product.Product{
				{ID: "1", Title: "Phone", Price: decimal.NewFromInt(10), Category: "Electronics", Rating: 4.8, Stock: 3},
				{ID: "2", Title: "Apron", Price: decimal.NewFromInt(5), Category: "Home", Rating: 4.2, Stock: 1},
				{ID: "3", Title: "Tablet", Price: decimal.NewFromInt(20), Category: "Electronics", Rating: 4.6, Stock: 2},
			},
			Page: 1, TotalPages: 1, Total: 3,
		}},
		remote:   &fakeRemote{rejected: map[product.ID]bool{}},
		session:  auth.NewSession(nil),
		backend:  &fakeAuthenticator{},
		fallback: cart.NewFallback(store.NewMemoryBlobStore(), ""),
	}
	env.catalog = product.NewService(env.source)
	env.carts = cart.NewService(env.remote, env.session, env.fallback)
	lookup := &fakeLookup{products: map[product.ID]product.Product{
		"99": {ID: "99", Title: "Remote Only", Price: decimal.NewFromInt(7)},
	}}
	env.router = NewRouter(
		NewHandlers(env.catalog, env.carts, lookup),
		NewSessionHandlers(env.session, env.backend, env.carts),
		"",
	)
	_, err := env.catalog.Fetch(context.Background(), product.Query{})
	require.NoError(t, err)
	return env
}

func (env *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

type cartResult struct {
	Source   string `json:"source"`
	Degraded bool   `json:"degraded"`
	Cart     struct {
		Items []struct {
			ProductID string          `json:"productId"`
			Title     string          `json:"title"`
			Quantity  int             `json:"quantity"`
			Price     decimal.Decimal `json:"price"`
		} `json:"items"`
		Total decimal.Decimal `json:"total"`
		Count int             `json:"count"`
	} `json:"cart"`
}

// ============================================
// Product Handler Tests
// ============================================

func TestGetProducts_AppliesCriteria(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/products?category=Electronics&sort=price&order=desc", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[ProductsResponse](t, rec)
	require.Len(t, resp.Items, 2)
	assert.Equal(t, product.ID("3"), resp.Items[0].ID)
	assert.Equal(t, product.ID("1"), resp.Items[1].ID)
	assert.Equal(t, "Electronics", resp.Criteria.Category)
	assert.Equal(t, product.StatusSucceeded, resp.Status)
}

func TestGetProducts_InvalidSort(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/products?sort=color", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRefreshProducts_NetworkError(t *testing.T) {
	env := newTestEnv(t)
	env.source.err = apperrors.Network(errors.New("offline"))

	rec := env.do(t, http.MethodPost, "/products/refresh", nil)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "network", decode[map[string]string](t, rec)["kind"])
}

func TestRefreshProducts_Success(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/products/refresh", map[string]any{"page": 1, "sort": "rating"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[ProductsResponse](t, rec).Items, 3)
}

func TestCatalogViews(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/products/categories", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"All", "Electronics", "Home"}, decode[map[string][]string](t, rec)["categories"])

	rec = env.do(t, http.MethodGet, "/products/popular", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	popular := decode[map[string][]product.Product](t, rec)["items"]
	require.Len(t, popular, 2)
	assert.Equal(t, product.ID("1"), popular[0].ID)

	rec = env.do(t, http.MethodGet, "/products/1/related", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	related := decode[map[string][]product.Product](t, rec)["items"]
	require.Len(t, related, 1)
	assert.Equal(t, product.ID("3"), related[0].ID)
}

func TestGetProduct(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/products/2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Apron", decode[product.Product](t, rec).Title)

	rec = env.do(t, http.MethodGet, "/products/99", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Remote Only", decode[product.Product](t, rec).Title)

	rec = env.do(t, http.MethodGet, "/products/404", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// ============================================
// Cart Handler Tests
// ============================================

func TestAddToCart_UsesCatalogSnapshot(t *testing.T) {
	env := newTestEnv(t)

	env.do(t, http.MethodPost, "/cart/items", map[string]any{"productId": "1", "quantity": 2})
	rec := env.do(t, http.MethodPost, "/cart/items", map[string]any{"productId": "1", "quantity": 3})

	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[cartResult](t, rec)
	assert.Equal(t, "local", res.Source)
	require.Len(t, res.Cart.Items, 1)
	assert.Equal(t, "Phone", res.Cart.Items[0].Title)
	assert.Equal(t, 5, res.Cart.Items[0].Quantity)
	assert.True(t, decimal.NewFromInt(50).Equal(res.Cart.Total))
}

func TestAddToCart_DefaultQuantityAndRequestSnapshot(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/cart/items", map[string]any{"productId": "unknown", "title": "Gift card", "price": "25"})

	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[cartResult](t, rec)
	require.Len(t, res.Cart.Items, 1)
	assert.Equal(t, 1, res.Cart.Items[0].Quantity)
	assert.Equal(t, "Gift card", res.Cart.Items[0].Title)
	assert.True(t, decimal.NewFromInt(25).Equal(res.Cart.Total))
}

func TestAddToCart_InvalidQuantity(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/cart/items", map[string]any{"productId": "1", "quantity": 0})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[map[string]string](t, rec)
	assert.Equal(t, "quantity must be positive", body["error"])
	assert.Equal(t, "validation", body["kind"])
}

func TestAddToCart_BadBody(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/cart/items", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()

	env.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAddToCart_DegradedWhenServerUnreachable(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.session.SignIn("opaque-token", &auth.User{ID: "u-1"}))
	env.remote.err = apperrors.Network(errors.New("offline"))

	rec := env.do(t, http.MethodPost, "/cart/items", map[string]any{"productId": "1", "quantity": 1})

	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[cartResult](t, rec)
	assert.True(t, res.Degraded)
	assert.Equal(t, "local", res.Source)
	assert.Equal(t, 1, res.Cart.Count)
}

func TestAddToCart_AuthErrorSignsOut(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.session.SignIn("opaque-token", nil))
	env.remote.err = apperrors.FromStatus(401, "Token expired")

	rec := env.do(t, http.MethodPost, "/cart/items", map[string]any{"productId": "1"})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, env.session.Authenticated())
}

func TestUpdateAndRemoveCartItem(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/cart/items", map[string]any{"productId": "1", "quantity": 1})
	env.do(t, http.MethodPost, "/cart/items", map[string]any{"productId": "2", "quantity": 1})

	rec := env.do(t, http.MethodPut, "/cart/items/1", map[string]any{"quantity": 4})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, decode[cartResult](t, rec).Cart.Count)

	rec = env.do(t, http.MethodPut, "/cart/items/2", map[string]any{"quantity": 0})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[cartResult](t, rec).Cart.Items, 1)

	rec = env.do(t, http.MethodDelete, "/cart/items/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[cartResult](t, rec).Cart.Items)
}

func TestUpdateCartItem_MissingQuantity(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPut, "/cart/items/1", map[string]any{})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestClearCartAndSnapshot(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/cart/items", map[string]any{"productId": "3", "quantity": 2})

	rec := env.do(t, http.MethodDelete, "/cart", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/cart", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	snap := decode[map[string]any](t, rec)
	assert.Equal(t, "succeeded", snap["status"])
	assert.True(t, env.fallback.Load(context.Background()).IsEmpty())

	rec = env.do(t, http.MethodPost, "/cart/acknowledge", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "idle", decode[map[string]any](t, rec)["status"])
}

func TestRefreshCartLoadsMirror(t *testing.T) {
	env := newTestEnv(t)
	env.fallback.Save(context.Background(), cart.NewCart([]cart.Line{{ProductID: "1", Price: decimal.NewFromInt(10), Quantity: 3}}))

	rec := env.do(t, http.MethodPost, "/cart/refresh", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, decode[cartResult](t, rec).Cart.Count)
}

func TestMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPatch, "/cart", nil)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

// ============================================
// Session Handler Tests
// ============================================

func signedToken(t *testing.T, userID string) string {
	t.Helper()
	claims := auth.Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("k"))
	require.NoError(t, err)
	return token
}

func TestLogin_MergesLocalCart(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/cart/items", map[string]any{"productId": "1", "quantity": 2})
	env.do(t, http.MethodPost, "/cart/items", map[string]any{"productId": "2", "quantity": 1})
	env.remote.rejected["2"] = true
	env.remote.lines = []cart.Line{{ProductID: "1", Title: "Phone", Price: decimal.NewFromInt(10), Quantity: 2}}
	env.backend.result = &apiclient.AuthResult{Token: signedToken(t, "u-1"), User: auth.User{ID: "u-1", Name: "Ada"}, Message: "Welcome"}

	rec := env.do(t, http.MethodPost, "/session/login", apiclient.Credentials{Email: "ada@example.com", Password: "pw"})

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[SessionResponse](t, rec)
	assert.True(t, resp.Authenticated)
	assert.Equal(t, "Ada", resp.User.Name)
	assert.Equal(t, "Welcome", resp.Message)
	assert.NotNil(t, resp.ExpiresAt)
	require.NotNil(t, resp.Cart)
	assert.Equal(t, cart.SourceRemote, resp.Cart.Source)
	assert.Equal(t, 2, resp.Cart.Cart.Count)
	require.Len(t, resp.Skipped, 1)
	assert.Contains(t, resp.Skipped[0], "Insufficient stock")
	assert.Equal(t, []product.ID{"1"}, env.remote.added)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	env := newTestEnv(t)
	env.backend.err = apperrors.FromStatus(401, "Invalid credentials")

	rec := env.do(t, http.MethodPost, "/session/login", apiclient.Credentials{Email: "a", Password: "b"})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid credentials", decode[map[string]string](t, rec)["error"])
	assert.False(t, env.session.Authenticated())
}

func TestLogin_AdoptsBearerToken(t *testing.T) {
	env := newTestEnv(t)
	env.backend.profile = &auth.User{ID: "u-2", Name: "Grace"}
	req := httptest.NewRequest(http.MethodPost, "/session/login", nil)
	req.Header.Set("Authorization", "Bearer "+signedToken(t, "u-2"))
	rec := httptest.NewRecorder()

	env.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u-2", env.session.UserID())
	assert.Equal(t, "Grace", decode[SessionResponse](t, rec).User.Name)
}

func TestLogin_AdoptedTokenRejectedByBackend(t *testing.T) {
	env := newTestEnv(t)
	env.backend.profileErr = apperrors.FromStatus(401, "Invalid token")
	req := httptest.NewRequest(http.MethodPost, "/session/login", nil)
	req.Header.Set("Authorization", "Bearer opaque")
	rec := httptest.NewRecorder()

	env.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, env.session.Authenticated())
}

func TestLogin_MissingCredentials(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/session/login", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegister(t *testing.T) {
	env := newTestEnv(t)
	env.backend.result = &apiclient.AuthResult{Token: "opaque", User: auth.User{ID: "u-3", Name: "Linus"}}

	rec := env.do(t, http.MethodPost, "/session/register", apiclient.Registration{Name: "Linus", Email: "l@example.com", Password: "pw"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.session.Authenticated())

	rec = env.do(t, http.MethodPost, "/session/register", apiclient.Registration{Email: "x@example.com"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogoutReturnsToMirror(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.session.SignIn("opaque", &auth.User{ID: "u-1"}))
	env.fallback.Save(context.Background(), cart.NewCart([]cart.Line{{ProductID: "2", Price: decimal.NewFromInt(5), Quantity: 1}}))

	rec := env.do(t, http.MethodPost, "/session/logout", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[SessionResponse](t, rec)
	assert.False(t, resp.Authenticated)
	require.NotNil(t, resp.Cart)
	assert.Equal(t, cart.SourceLocal, resp.Cart.Source)
	assert.Equal(t, 1, resp.Cart.Cart.Count)
	assert.Equal(t, 1, env.backend.logouts)

	rec = env.do(t, http.MethodGet, "/session", nil)
	assert.False(t, decode[SessionResponse](t, rec).Authenticated)
}

func TestLogoutAfterMergeStartsEmpty(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/cart/items", map[string]any{"productId": "1", "quantity": 2})
	env.remote.lines = []cart.Line{{ProductID: "1", Title: "Phone", Price: decimal.NewFromInt(10), Quantity: 2}}
	env.backend.result = &apiclient.AuthResult{Token: signedToken(t, "u-1"), User: auth.User{ID: "u-1"}}

	rec := env.do(t, http.MethodPost, "/session/login", apiclient.Credentials{Email: "ada@example.com", Password: "pw"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/session/logout", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[SessionResponse](t, rec)
	require.NotNil(t, resp.Cart)
	assert.True(t, resp.Cart.Cart.IsEmpty())
	assert.True(t, env.fallback.Load(context.Background()).IsEmpty())
}

func TestRouter_LocalKey(t *testing.T) {
	env := newTestEnv(t)
	router := NewRouter(NewHandlers(env.catalog, env.carts, nil), NewSessionHandlers(env.session, env.backend, env.carts), "secret")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cart", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	req.Header.Set("X-Local-Key", "secret")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
