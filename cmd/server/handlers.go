package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Simplici0/pricedesk/internal/pricing"
	"github.com/Simplici0/pricedesk/internal/store"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	u, valid, err := s.auth.validateCredentials(r.Context(), strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if !valid {
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid email or password")
		return
	}

	s.auth.setSessionCookie(w, u.Email)
	writeJSON(w, http.StatusOK, u)
}

func (s *server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.auth.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.db.PingContext(r.Context()); err != nil {
		s.logger.Warn("health check failed", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "unhealthy", "database unreachable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type configResponse struct {
	pricing.OverheadConfig
	PendingApproval bool `json:"isPendingApproval"`
}

func newConfigResponse(cfg pricing.OverheadConfig) configResponse {
	return configResponse{OverheadConfig: cfg, PendingApproval: !cfg.Approved}
}

func (s *server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.configs.Current(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newConfigResponse(cfg))
}

type configRequest struct {
	OverheadPercentage json.RawMessage            `json:"overheadPercentage"`
	Margins            map[string]json.RawMessage `json:"marginsByPriceType"`
}

func (req configRequest) parse() (decimal.Decimal, pricing.Margins, error) {
	overhead, err := parseDecimal(req.OverheadPercentage, "overheadPercentage", pricing.ErrInvalidCostInput)
	if err != nil {
		return decimal.Zero, nil, err
	}

	raw := make(map[string]decimal.Decimal, len(req.Margins))
	for key, value := range req.Margins {
		margin, err := parseDecimal(value, key, pricing.ErrInvalidMargin)
		if err != nil {
			return decimal.Zero, nil, err
		}
		raw[key] = margin
	}
	margins, err := pricing.NewMargins(raw)
	if err != nil {
		return decimal.Zero, nil, err
	}
	return overhead, margins, nil
}

func (s *server) handleCreateConfig(w http.ResponseWriter, r *http.Request) {
	var req configRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	overhead, margins, err := req.parse()
	if err != nil {
		s.metrics.ObservePricingError(err)
		s.respondError(w, r, err)
		return
	}

	u, _ := userFrom(r.Context())
	cfg, err := s.configs.Create(r.Context(), overhead, margins, u.Email)
	if err != nil {
		s.metrics.ObservePricingError(err)
		s.respondError(w, r, err)
		return
	}

	s.logger.Info("pricing config created",
		zap.Int64("version", cfg.Version),
		zap.String("created_by", u.Email),
	)
	writeJSON(w, http.StatusCreated, newConfigResponse(cfg))
}

func (s *server) handleApproveConfig(w http.ResponseWriter, r *http.Request) {
	version, err := strconv.ParseInt(chi.URLParam(r, "version"), 10, 64)
	if err != nil {
		s.respondError(w, r, fmt.Errorf("%w: version must be an integer", store.ErrInvalidInput))
		return
	}

	u, _ := userFrom(r.Context())
	cfg, err := s.configs.Approve(r.Context(), version, u.Email)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.logger.Info("pricing config approved",
		zap.Int64("version", cfg.Version),
		zap.String("approved_by", cfg.ApprovedBy),
	)
	writeJSON(w, http.StatusOK, newConfigResponse(cfg))
}

type costRequest struct {
	UnitCostOriginalCurrency      json.RawMessage `json:"unitCostOriginalCurrency"`
	OriginalCurrency              string          `json:"originalCurrency"`
	ExchangeRate                  json.RawMessage `json:"exchangeRate"`
	FreightAndClearingCostPerUnit json.RawMessage `json:"freightAndClearingCostPerUnit"`
}

func (req costRequest) parse() (pricing.CostInput, error) {
	cost := pricing.CostInput{OriginalCurrency: strings.ToUpper(strings.TrimSpace(req.OriginalCurrency))}

	var err error
	if cost.UnitCostOriginalCurrency, err = parseDecimal(req.UnitCostOriginalCurrency, "unitCostOriginalCurrency", pricing.ErrInvalidCostInput); err != nil {
		return pricing.CostInput{}, err
	}
	if cost.ExchangeRate, err = parseDecimal(req.ExchangeRate, "exchangeRate", pricing.ErrInvalidCostInput); err != nil {
		return pricing.CostInput{}, err
	}
	if cost.FreightAndClearingCostPerUnit, err = parseDecimal(req.FreightAndClearingCostPerUnit, "freightAndClearingCostPerUnit", pricing.ErrInvalidCostInput); err != nil {
		return pricing.CostInput{}, err
	}
	return cost, nil
}

func (s *server) handlePreview(w http.ResponseWriter, r *http.Request) {
	var req costRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	cost, err := req.parse()
	if err != nil {
		s.metrics.ObservePricingError(err)
		s.respondError(w, r, err)
		return
	}

	set, err := s.quotes.Preview(r.Context(), cost)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, set)
}

type productRequest struct {
	SKU  string `json:"sku"`
	Name string `json:"name"`
	costRequest
}

func (s *server) handlePutCost(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	cost, err := req.costRequest.parse()
	if err != nil {
		s.metrics.ObservePricingError(err)
		s.respondError(w, r, err)
		return
	}

	p, err := s.products.Upsert(r.Context(), store.Product{
		ID:   chi.URLParam(r, "id"),
		SKU:  req.SKU,
		Name: req.Name,
		Cost: cost,
	})
	if err != nil {
		s.metrics.ObservePricingError(err)
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type quoteResponse struct {
	ProductID string `json:"productId"`
	pricing.Quote
	PendingApproval bool `json:"isPendingApproval"`
}

func (s *server) handleProductPrices(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "id")
	q, err := s.quotes.ProductPrices(r.Context(), productID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quoteResponse{ProductID: productID, Quote: q, PendingApproval: q.PendingApproval()})
}

type overrideRequest struct {
	Prices map[string]json.RawMessage `json:"prices"`
}

func (s *server) handleCreateOverride(w http.ResponseWriter, r *http.Request) {
	var req overrideRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	prices := make(map[pricing.PriceType]decimal.Decimal, len(req.Prices))
	for key, raw := range req.Prices {
		pt, err := pricing.ParsePriceType(key)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		amount, err := parseDecimal(raw, key, pricing.ErrInvalidCostInput)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		prices[pt] = amount
	}

	u, _ := userFrom(r.Context())
	productID := chi.URLParam(r, "id")
	o, err := s.overrides.Create(r.Context(), productID, prices, u.Email)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.logger.Info("direct pricing enabled", zap.String("product_id", productID), zap.String("editor", u.Email))
	writeJSON(w, http.StatusCreated, o)
}

type overridePriceRequest struct {
	Amount json.RawMessage `json:"amount"`
}

func (s *server) handlePatchOverride(w http.ResponseWriter, r *http.Request) {
	pt, err := pricing.ParsePriceType(chi.URLParam(r, "priceType"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	var req overridePriceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	amount, err := parseDecimal(req.Amount, "amount", pricing.ErrInvalidCostInput)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	u, _ := userFrom(r.Context())
	o, err := s.overrides.SetPrice(r.Context(), chi.URLParam(r, "id"), pt, amount, u.Email)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (s *server) handleDeleteOverride(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "id")
	if err := s.overrides.Delete(r.Context(), productID); err != nil {
		s.respondError(w, r, err)
		return
	}

	u, _ := userFrom(r.Context())
	s.logger.Info("direct pricing removed", zap.String("product_id", productID), zap.String("editor", u.Email))
	w.WriteHeader(http.StatusNoContent)
}

type rateRequest struct {
	ExchangeRate json.RawMessage `json:"exchangeRate"`
}

func (s *server) handleSetRate(w http.ResponseWriter, r *http.Request) {
	var req rateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	rate, err := parseDecimal(req.ExchangeRate, "exchangeRate", pricing.ErrInvalidExchangeRate)
	if err != nil {
		s.metrics.ObservePricingError(err)
		s.respondError(w, r, err)
		return
	}

	u, _ := userFrom(r.Context())
	currency := strings.ToUpper(chi.URLParam(r, "code"))
	report, err := s.quotes.UpdateExchangeRate(r.Context(), currency, rate, u.Email)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
