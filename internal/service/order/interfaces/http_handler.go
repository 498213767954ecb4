package interfaces

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"ordersystem/internal/pkg/httpx"
	"ordersystem/internal/pkg/logger"
	"ordersystem/internal/service/order/application"
	"ordersystem/internal/service/order/domain"
)

const (
	serviceName     = "order-service"
	userEmailHeader = "X-User-Email"
)

// orderLineRequest 是下单请求体中的一行
type orderLineRequest struct {
	ProductID    int64 `json:"productId"`
	ProductCount int   `json:"productCount"`
}

// OrderHandler 封装了订单服务的 HTTP 处理器
type OrderHandler struct {
	service  *application.OrderApplicationService
	gatherer prometheus.Gatherer
	tracer   trace.Tracer
}

// NewOrderHandler 创建一个新的 HTTP 处理器实例，gatherer 为 nil 时使用默认注册表
func NewOrderHandler(service *application.OrderApplicationService, gatherer prometheus.Gatherer) *OrderHandler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &OrderHandler{service: service, gatherer: gatherer, tracer: otel.Tracer(serviceName)}
}

// RegisterRoutes 在 chi 路由上注册所有路由
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))

	r.Route("/ordering", func(r chi.Router) {
		r.Post("/create", h.createOrder)
		r.Get("/list", h.listOrders)
		r.Get("/myorders", h.myOrders)
		r.Get("/{id}", h.getOrder)
		r.Patch("/{id}/cancel", h.cancelOrder)
	})
}

func (h *OrderHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	ctx, span := h.tracer.Start(ctx, "http.CreateOrder", trace.WithSpanKind(trace.SpanKindServer))
	defer span.End()

	email := strings.TrimSpace(r.Header.Get(userEmailHeader))
	if email == "" {
		httpx.WriteError(w, http.StatusUnauthorized, "missing "+userEmailHeader+" header")
		return
	}

	var body []orderLineRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	lines := make([]domain.RequestedLine, 0, len(body))
	for _, l := range body {
		lines = append(lines, domain.RequestedLine{ProductID: l.ProductID, Quantity: l.ProductCount})
	}
	span.SetAttributes(attribute.String("user.email", email), attribute.Int("order.lines", len(lines)))

	resp, err := h.service.CreateOrder(ctx, &application.CreateOrderRequest{OwnerEmail: email, Lines: lines})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	httpx.WriteResult(w, http.StatusCreated, "order is successfully created", resp.OrderID)
}

func (h *OrderHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.ListOrders(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	httpx.WriteResult(w, http.StatusOK, "orders are found", orders)
}

func (h *OrderHandler) myOrders(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.Header.Get(userEmailHeader))
	if email == "" {
		httpx.WriteError(w, http.StatusUnauthorized, "missing "+userEmailHeader+" header")
		return
	}
	orders, err := h.service.MyOrders(r.Context(), email)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	httpx.WriteResult(w, http.StatusOK, "my orders are found", orders)
}

func (h *OrderHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	order, err := h.service.GetOrder(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	httpx.WriteResult(w, http.StatusOK, "order is found", order)
}

func (h *OrderHandler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	email := strings.TrimSpace(r.Header.Get(userEmailHeader))
	if email == "" {
		httpx.WriteError(w, http.StatusUnauthorized, "missing "+userEmailHeader+" header")
		return
	}
	order, err := h.service.CancelOrder(r.Context(), id, email)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	httpx.WriteResult(w, http.StatusOK, "order is canceled", order)
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.WriteError(w, http.StatusBadRequest, "invalid order id")
		return 0, false
	}
	return id, true
}

// writeDomainError 把领域错误映射为 HTTP 状态码
func (h *OrderHandler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal server error"
	}
	httpx.WriteError(w, status, message)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidOrder),
		errors.Is(err, domain.ErrLineRejected),
		errors.Is(err, domain.ErrInsufficientStock):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrProductNotFound),
		errors.Is(err, domain.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInventoryUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
