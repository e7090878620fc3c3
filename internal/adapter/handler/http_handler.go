package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/nmanh/voucherhub/internal/core/domain"
	"github.com/nmanh/voucherhub/internal/core/service"
)

type HTTPHandler struct {
	shops  *service.ShopService
	orders *service.OrderService
	logger zerolog.Logger
}

type SeckillResponse struct {
	Success bool   `json:"success"`
	OrderID int64  `json:"order_id,omitempty"`
	Message string `json:"message,omitempty"`
}

func NewHTTPHandler(shops *service.ShopService, orders *service.OrderService, logger zerolog.Logger) *HTTPHandler {
	return &HTTPHandler{
		shops:  shops,
		orders: orders,
		logger: logger.With().Str("component", "http").Logger(),
	}
}

func (h *HTTPHandler) Routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/shops/{id:[0-9]+}", h.GetShop).Methods(http.MethodGet)
	r.HandleFunc("/shops", h.UpdateShop).Methods(http.MethodPut)
	r.HandleFunc("/vouchers/{id:[0-9]+}", h.GetVoucher).Methods(http.MethodGet)
	r.HandleFunc("/vouchers/{id:[0-9]+}/seckill", h.Seckill).Methods(http.MethodPost)
	return r
}

func (h *HTTPHandler) GetShop(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	shop, err := h.shops.GetShopByID(r.Context(), id)
	if err != nil {
		h.logger.Error().Err(err).Int64("shop", id).Msg("get shop failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if shop == nil {
		http.Error(w, "shop not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, shop)
}

func (h *HTTPHandler) UpdateShop(w http.ResponseWriter, r *http.Request) {
	var shop domain.Shop
	if err := json.NewDecoder(r.Body).Decode(&shop); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.shops.UpdateShop(r.Context(), &shop); err != nil {
		if errors.Is(err, service.ErrMissingID) {
			http.Error(w, "missing shop id", http.StatusBadRequest)
			return
		}
		h.logger.Error().Err(err).Int64("shop", shop.ID).Msg("update shop failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) GetVoucher(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	voucher, err := h.shops.GetVoucherByID(r.Context(), id)
	if err != nil {
		h.logger.Error().Err(err).Int64("voucher", id).Msg("get voucher failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if voucher == nil {
		http.Error(w, "voucher not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, voucher)
}

// Seckill identifies the buyer from the X-User-ID header; authentication
// itself lives in middleware outside this service.
func (h *HTTPHandler) Seckill(w http.ResponseWriter, r *http.Request) {
	voucherID, err := pathID(r)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	userID, err := strconv.ParseInt(r.Header.Get("X-User-ID"), 10, 64)
	if err != nil || userID <= 0 {
		http.Error(w, "missing or invalid X-User-ID", http.StatusBadRequest)
		return
	}

	orderID, err := h.orders.SeckillVoucher(r.Context(), userID, voucherID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSoldOut):
			writeJSON(w, http.StatusGone, SeckillResponse{Success: false, Message: "sold out"})
		case errors.Is(err, service.ErrDuplicateOrder):
			writeJSON(w, http.StatusConflict, SeckillResponse{Success: false, Message: "already ordered"})
		default:
			h.logger.Error().Err(err).Int64("voucher", voucherID).Msg("seckill failed")
			writeJSON(w, http.StatusInternalServerError, SeckillResponse{Success: false, Message: "internal error"})
		}
		return
	}

	writeJSON(w, http.StatusOK, SeckillResponse{Success: true, OrderID: orderID})
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
