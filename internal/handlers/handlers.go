package handlers

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"pricefolio/internal/models"
	"pricefolio/internal/providers"
	"pricefolio/internal/resolver"
	"pricefolio/internal/service"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	svc *service.Portfolio
	db  Pinger
	log *logrus.Logger
}

func NewHandler(svc *service.Portfolio, db Pinger, log *logrus.Logger) *Handler {
	return &Handler{svc: svc, db: db, log: log}
}

func (h *Handler) Register(r *gin.Engine) {
	r.GET("/health", h.Health)
	r.GET("/holdings", h.ListHoldings)
	r.POST("/holdings", h.CreateHolding)
	r.PUT("/holdings/:id", h.UpdateHolding)
	r.DELETE("/holdings/:id", h.DeleteHolding)
	r.POST("/refresh", h.RefreshPrices)
	r.GET("/summary", h.GetSummary)
	r.GET("/quotes", h.GetQuotes)
	r.GET("/history/:class/:symbol", h.GetHistory)
	r.POST("/symbols/validate", h.ValidateSymbol)
	r.DELETE("/cache/prices", h.ClearPriceCache)
}

type HoldingRequest struct {
	AssetClass   string     `json:"asset_class" binding:"required"`
	Symbol       string     `json:"symbol"`
	Quantity     string     `json:"quantity" binding:"required"`
	CostBasis    string     `json:"cost_basis"`
	ManualPrice  string     `json:"manual_price"`
	Currency     string     `json:"currency"`
	Sector       string     `json:"sector"`
	Country      string     `json:"country"`
	MaturityDate *time.Time `json:"maturity_date"`
	InterestRate string     `json:"interest_rate"`
}

func (req *HoldingRequest) toHolding(id string) (models.Holding, error) {
	class, ok := models.ParseAssetClass(req.AssetClass)
	if !ok {
		return models.Holding{}, errors.New("unknown asset class")
	}
	if class.Priced() && strings.TrimSpace(req.Symbol) == "" {
		return models.Holding{}, errors.New("symbol is required for equity, crypto and metal holdings")
	}

	qty, err := decimal.NewFromString(req.Quantity)
	if err != nil {
		return models.Holding{}, errors.New("invalid quantity format")
	}
	if !qty.IsPositive() {
		return models.Holding{}, errors.New("quantity must be positive")
	}

	costBasis, err := optionalDecimal(req.CostBasis, "cost_basis")
	if err != nil {
		return models.Holding{}, err
	}
	manualPrice, err := optionalDecimal(req.ManualPrice, "manual_price")
	if err != nil {
		return models.Holding{}, err
	}
	interestRate, err := optionalDecimal(req.InterestRate, "interest_rate")
	if err != nil {
		return models.Holding{}, err
	}

	return models.Holding{
		ID:           id,
		AssetClass:   class,
		Symbol:       req.Symbol,
		Quantity:     qty,
		CostBasis:    costBasis,
		ManualPrice:  manualPrice,
		Currency:     strings.ToUpper(strings.TrimSpace(req.Currency)),
		Sector:       strings.TrimSpace(req.Sector),
		Country:      strings.TrimSpace(req.Country),
		MaturityDate: req.MaturityDate,
		InterestRate: interestRate,
	}, nil
}

func optionalDecimal(s, field string) (decimal.NullDecimal, error) {
	if strings.TrimSpace(s) == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}, errors.New("invalid " + field + " format")
	}
	if d.IsNegative() {
		return decimal.NullDecimal{}, errors.New(field + " cannot be negative")
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}, nil
}

func (h *Handler) Health(c *gin.Context) {
	if err := h.db.Ping(c.Request.Context()); err != nil {
		h.log.Errorf("db ping failed: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": "down"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) ListHoldings(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.ListHoldings())
}

func (h *Handler) CreateHolding(c *gin.Context) {
	var req HoldingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warnf("invalid post body: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	holding, err := req.toHolding("")
	if err != nil {
		h.log.Warnf("invalid holding: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	saved, err := h.svc.PutHolding(c.Request.Context(), holding)
	if err != nil {
		h.holdingError(c, err)
		return
	}
	c.JSON(http.StatusCreated, saved)
}

func (h *Handler) UpdateHolding(c *gin.Context) {
	var req HoldingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warnf("invalid put body: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	holding, err := req.toHolding(c.Param("id"))
	if err != nil {
		h.log.Warnf("invalid holding: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	saved, err := h.svc.PutHolding(c.Request.Context(), holding)
	if err != nil {
		h.holdingError(c, err)
		return
	}
	c.JSON(http.StatusOK, saved)
}

func (h *Handler) DeleteHolding(c *gin.Context) {
	if err := h.svc.DeleteHolding(c.Param("id")); err != nil {
		if errors.Is(err, service.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "holding not found"})
			return
		}
		h.log.Errorf("delete holding failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (h *Handler) RefreshPrices(c *gin.Context) {
	quotes, err := h.svc.RefreshPrices(c.Request.Context())

	refreshed := make([]models.PriceQuote, 0, len(quotes))
	for _, q := range quotes {
		refreshed = append(refreshed, q)
	}
	sort.Slice(refreshed, func(i, j int) bool {
		if refreshed[i].AssetClass != refreshed[j].AssetClass {
			return refreshed[i].AssetClass < refreshed[j].AssetClass
		}
		return refreshed[i].Symbol < refreshed[j].Symbol
	})

	// A canceled or timed out refresh still refreshed whatever it got to.
	c.JSON(http.StatusOK, gin.H{
		"count":    len(refreshed),
		"complete": err == nil,
		"quotes":   refreshed,
	})
}

func (h *Handler) GetSummary(c *gin.Context) {
	if refresh := c.Query("refresh"); refresh == "1" || refresh == "true" {
		if _, err := h.svc.RefreshPrices(c.Request.Context()); err != nil {
			h.log.Debugf("refresh before summary ended early: %v", err)
		}
	}
	c.JSON(http.StatusOK, h.svc.Summary())
}

func (h *Handler) GetQuotes(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Quotes())
}

func (h *Handler) GetHistory(c *gin.Context) {
	class, ok := models.ParseAssetClass(c.Param("class"))
	if !ok {
		h.log.Warnf("invalid history class: %s", c.Param("class"))
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown asset class"})
		return
	}
	days := 30
	if s := c.Query("days"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > 365 {
			h.log.Warnf("invalid history days: %s", s)
			c.JSON(http.StatusBadRequest, gin.H{"error": "days must be between 1 and 365"})
			return
		}
		days = n
	}

	symbol := strings.ToUpper(strings.TrimSpace(c.Param("symbol")))
	points, err := h.svc.History(c.Request.Context(), symbol, class, days)
	if err != nil {
		if errors.Is(err, providers.ErrNoData) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no history available"})
			return
		}
		h.log.Errorf("history %s/%s failed: %v", class, symbol, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "history failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"symbol":      symbol,
		"asset_class": class,
		"days":        days,
		"points":      points,
	})
}

type ValidateRequest struct {
	Symbol     string `json:"symbol" binding:"required"`
	AssetClass string `json:"asset_class" binding:"required"`
}

func (h *Handler) ValidateSymbol(c *gin.Context) {
	var req ValidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warnf("invalid post body: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	class, ok := models.ParseAssetClass(req.AssetClass)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown asset class"})
		return
	}

	resolved, err := h.svc.ValidateSymbol(c.Request.Context(), req.Symbol, class)
	if err != nil {
		if errors.Is(err, resolver.ErrSymbolNotFound) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"valid": false, "error": "symbol not found"})
			return
		}
		h.log.Warnf("validate %s failed: %v", req.Symbol, err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"valid": false, "error": "symbol lookup unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"valid":    true,
		"symbol":   strings.ToUpper(strings.TrimSpace(req.Symbol)),
		"resolved": resolved,
	})
}

func (h *Handler) ClearPriceCache(c *gin.Context) {
	if err := h.svc.ClearPriceCache(c.Request.Context()); err != nil {
		h.log.Errorf("clear price cache failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "clear failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cleared"})
}

func (h *Handler) holdingError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, resolver.ErrSymbolNotFound):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "symbol not found"})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "holding not found"})
	case errors.Is(err, providers.ErrNoData):
		h.log.Warnf("symbol resolution unavailable: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "symbol lookup unavailable"})
	default:
		h.log.Errorf("save holding failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
	}
}
