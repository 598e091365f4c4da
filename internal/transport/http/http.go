package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/corray333/backend-labs/floor/internal/service/models/order"
	"github.com/corray333/backend-labs/floor/internal/service/services/billsvc"
	"github.com/corray333/backend-labs/floor/internal/service/services/ordersvc"
	advancestatus "github.com/corray333/backend-labs/floor/internal/transport/http/advance_status"
	"github.com/corray333/backend-labs/floor/internal/transport/http/checkout"
	createorder "github.com/corray333/backend-labs/floor/internal/transport/http/create_order"
	getbill "github.com/corray333/backend-labs/floor/internal/transport/http/get_bill"
	getorder "github.com/corray333/backend-labs/floor/internal/transport/http/get_order"
	listtableorders "github.com/corray333/backend-labs/floor/internal/transport/http/list_table_orders"
	markserved "github.com/corray333/backend-labs/floor/internal/transport/http/mark_served"
	paybill "github.com/corray333/backend-labs/floor/internal/transport/http/pay_bill"
	replaceitems "github.com/corray333/backend-labs/floor/internal/transport/http/replace_items"
	"github.com/corray333/backend-labs/floor/internal/transport/http/stream"
	"github.com/corray333/backend-labs/floor/internal/transport/sse"
	"github.com/corray333/backend-labs/floor/pkg/http/middleware/trace"
	"github.com/corray333/backend-labs/floor/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/viper"
)

type orderService interface {
	CreateOrder(ctx context.Context, req ordersvc.CreateOrderRequest) (ordersvc.OrderResponse, error)
	GetOrder(ctx context.Context, orderID int64) (order.Order, error)
	ReplaceItems(ctx context.Context, orderID int64, items []ordersvc.ItemRequest) (ordersvc.OrderResponse, error)
	AdvanceStatus(ctx context.Context, orderID int64, to order.Status) (ordersvc.OrderResponse, error)
	MarkServed(ctx context.Context, orderID int64) (ordersvc.OrderResponse, error)
	ListTableOrders(ctx context.Context, req ordersvc.ListTableOrdersRequest) ([]order.Order, error)
}

type billService interface {
	Checkout(ctx context.Context, tableID int64) (billsvc.BillResponse, error)
	Pay(ctx context.Context, billID int64) (billsvc.BillResponse, error)
	GetPendingBillForTable(ctx context.Context, tableID int64) (billsvc.BillResponse, error)
}

// HTTPTransport serves the order, billing and stream endpoints.
type HTTPTransport struct {
	server *http.Server
	router *chi.Mux
	orders orderService
	bills  billService
	hubs   map[string]*sse.Hub
}

// NewHTTPTransport builds the transport. hubs maps a role name to its broadcast hub.
func NewHTTPTransport(orders orderService, bills billService, hubs map[string]*sse.Hub) *HTTPTransport {
	router := newRouter()
	server := newServer(router)

	return &HTTPTransport{
		server: server,
		router: router,
		orders: orders,
		bills:  bills,
		hubs:   hubs,
	}
}

// Run listens until the server is shut down.
func (h *HTTPTransport) Run() error {
	slog.Info("HTTP server started", "addr", h.server.Addr)

	return h.server.ListenAndServe()
}

// Shutdown stops accepting requests and waits for in-flight ones until ctx is done.
func (h *HTTPTransport) Shutdown(ctx context.Context) error {
	return h.server.Shutdown(ctx)
}

// Handler exposes the router for in-process use.
func (h *HTTPTransport) Handler() http.Handler {
	return h.router
}

// RegisterRoutes registers the routes for the HTTPTransport.
func (h *HTTPTransport) RegisterRoutes() {
	h.router.Route("/api", func(r chi.Router) {
		r.Route("/orders", func(r chi.Router) {
			r.Post("/", h.createOrder)
			r.Get("/{orderID}", h.getOrder)
			r.Put("/{orderID}/items", h.replaceItems)
			r.Patch("/{orderID}/status", h.advanceStatus)
			r.Post("/{orderID}/serve", h.markServed)
		})
		r.Route("/tables/{tableID}", func(r chi.Router) {
			r.Get("/orders", h.listTableOrders)
			r.Post("/checkout", h.checkout)
			r.Get("/bill", h.getBill)
		})
		r.Post("/bills/{billID}/pay", h.payBill)

		for role, hub := range h.hubs {
			r.Get("/"+role+"/stream", func(w http.ResponseWriter, r *http.Request) {
				stream.Stream(w, r, hub)
			})
		}
	})
}

func (h *HTTPTransport) createOrder(w http.ResponseWriter, r *http.Request) {
	createorder.CreateOrder(w, r, h.orders)
}

func (h *HTTPTransport) getOrder(w http.ResponseWriter, r *http.Request) {
	getorder.GetOrder(w, r, h.orders)
}

func (h *HTTPTransport) replaceItems(w http.ResponseWriter, r *http.Request) {
	replaceitems.ReplaceItems(w, r, h.orders)
}

func (h *HTTPTransport) advanceStatus(w http.ResponseWriter, r *http.Request) {
	advancestatus.AdvanceStatus(w, r, h.orders)
}

func (h *HTTPTransport) markServed(w http.ResponseWriter, r *http.Request) {
	markserved.MarkServed(w, r, h.orders)
}

func (h *HTTPTransport) listTableOrders(w http.ResponseWriter, r *http.Request) {
	listtableorders.ListTableOrders(w, r, h.orders)
}

func (h *HTTPTransport) checkout(w http.ResponseWriter, r *http.Request) {
	checkout.Checkout(w, r, h.bills)
}

func (h *HTTPTransport) getBill(w http.ResponseWriter, r *http.Request) {
	getbill.GetPendingBill(w, r, h.bills)
}

func (h *HTTPTransport) payBill(w http.ResponseWriter, r *http.Request) {
	paybill.PayBill(w, r, h.bills)
}

func newRouter() *chi.Mux {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(logger.NewLoggerMiddleware(slog.Default()))
	router.Use(trace.NewTraceMiddleware)

	allowedOrigins := viper.GetStringSlice("server.http.cors.allowed_origins")
	allowedMethods := viper.GetStringSlice("server.http.cors.allowed_methods")
	allowedHeaders := viper.GetStringSlice("server.http.cors.allowed_headers")
	exposedHeaders := viper.GetStringSlice("server.http.cors.exposed_headers")
	allowCredentials := viper.GetBool("server.http.cors.allow_credentials")
	maxAge := viper.GetInt("server.http.cors.max_age")

	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   allowedMethods,
		AllowedHeaders:   allowedHeaders,
		ExposedHeaders:   exposedHeaders,
		AllowCredentials: allowCredentials,
		MaxAge:           maxAge,
	})

	router.Use(c.Handler)

	return router
}

func newServer(router http.Handler) *http.Server {
	return &http.Server{
		Addr:              "0.0.0.0:" + viper.GetString("server.http.port"),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
