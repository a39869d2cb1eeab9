package api

import (
	"net/http"

	"github.com/example/ec-storefront/internal/api/middleware"
)

func NewRouter(handlers *Handlers, sessions *SessionHandlers, localKey string) http.Handler {
	mux := http.NewServeMux()

	// Products
	mux.HandleFunc("GET /products", handlers.GetProducts)
	mux.HandleFunc("POST /products/refresh", handlers.RefreshProducts)
	mux.HandleFunc("GET /products/categories", handlers.ListCategories)
	mux.HandleFunc("GET /products/popular", handlers.PopularProducts)
	mux.HandleFunc("GET /products/{id}", handlers.GetProduct)
	mux.HandleFunc("GET /products/{id}/related", handlers.RelatedProducts)

	// Cart
	mux.HandleFunc("GET /cart", handlers.GetCart)
	mux.HandleFunc("DELETE /cart", handlers.ClearCart)
	mux.HandleFunc("POST /cart/refresh", handlers.RefreshCart)
	mux.HandleFunc("POST /cart/acknowledge", handlers.AcknowledgeCart)
	mux.HandleFunc("POST /cart/items", handlers.AddToCart)
	mux.HandleFunc("PUT /cart/items/{id}", handlers.UpdateCartItem)
	mux.HandleFunc("DELETE /cart/items/{id}", handlers.RemoveFromCart)

	// Session
	mux.HandleFunc("GET /session", sessions.GetSession)
	mux.HandleFunc("POST /session/login", sessions.Login)
	mux.HandleFunc("POST /session/register", sessions.Register)
	mux.HandleFunc("POST /session/logout", sessions.Logout)

	var h http.Handler = mux
	h = middleware.RequireLocalKey(localKey)(h)
	h = middleware.Recover(h)
	return middleware.Logging(h)
}
