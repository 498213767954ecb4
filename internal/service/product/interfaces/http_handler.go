package interfaces

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"ordersystem/internal/pkg/httpx"
	"ordersystem/internal/pkg/logger"
	"ordersystem/internal/service/product/application"
	"ordersystem/internal/service/product/domain"
)

const userEmailHeader = "X-User-Email"

type updateStockRequest struct {
	ProductID    int64 `json:"productId"`
	ProductCount int   `json:"productCount"`
}

// ProductHandler 封装了商品服务的 HTTP 处理器
type ProductHandler struct {
	service     *application.ProductService
	detailDelay time.Duration
}

// NewProductHandler detailDelay 是商品详情接口人为注入的延迟，用来演练调用方的超时与熔断
func NewProductHandler(service *application.ProductService, detailDelay time.Duration) *ProductHandler {
	return &ProductHandler{service: service, detailDelay: detailDelay}
}

func (h *ProductHandler) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/product", func(r chi.Router) {
		r.Use(extractTrace)
		r.Post("/create", h.create)
		r.Get("/list", h.list)
		r.Get("/detail/{id}", h.detail)
		r.Put("/update/{id}", h.update)
		r.Put("/updatestock", h.updateStock)
	})
}

// extractTrace 从请求头中恢复上游的 trace 上下文
func extractTrace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *ProductHandler) create(w http.ResponseWriter, r *http.Request) {
	email := r.Header.Get(userEmailHeader)
	if email == "" {
		httpx.WriteError(w, http.StatusUnauthorized, "missing "+userEmailHeader+" header")
		return
	}
	var req application.CreateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	id, err := h.service.Create(r.Context(), req, email)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	httpx.WriteResult(w, http.StatusCreated, "product is created", id)
}

func (h *ProductHandler) list(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.List(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	httpx.WriteResult(w, http.StatusOK, "products are found", products)
}

func (h *ProductHandler) detail(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.WriteError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	if h.detailDelay > 0 {
		timer := time.NewTimer(h.detailDelay)
		select {
		case <-timer.C:
		case <-r.Context().Done():
			timer.Stop()
			return
		}
	}

	product, err := h.service.Detail(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	httpx.WriteResult(w, http.StatusOK, "product is found", product)
}

func (h *ProductHandler) update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.WriteError(w, http.StatusBadRequest, "invalid product id")
		return
	}
	var req application.UpdateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := h.service.Update(r.Context(), id, req); err != nil {
		writeDomainError(w, r, err)
		return
	}
	httpx.WriteResult(w, http.StatusOK, "product is updated", id)
}

func (h *ProductHandler) updateStock(w http.ResponseWriter, r *http.Request) {
	var req updateStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := h.service.UpdateStock(r.Context(), req.ProductID, req.ProductCount); err != nil {
		writeDomainError(w, r, err)
		return
	}
	httpx.WriteResult(w, http.StatusOK, "stock is updated", req.ProductID)
}

func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrProductNotFound):
		httpx.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidProduct), errors.Is(err, domain.ErrInsufficientStock):
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
	default:
		logger.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		httpx.WriteError(w, http.StatusInternalServerError, "internal server error")
	}
}
