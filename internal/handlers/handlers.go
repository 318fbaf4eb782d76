package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"investdash/internal/models"
	"investdash/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	defaultLimit = 100
	maxLimit     = 1000
)

func init() {
	// the dashboard reads amounts and prices as JSON numbers
	decimal.MarshalJSONWithoutQuotes = true
}

type Handler struct {
	svc         *service.InvestmentService
	log         *logrus.Logger
	requireAuth bool
}

func NewHandler(svc *service.InvestmentService, log *logrus.Logger, requireAuth bool) *Handler {
	return &Handler{svc: svc, log: log, requireAuth: requireAuth}
}

type BuyRequest struct {
	UserID         *int64              `json:"user_id"`
	Name           string              `json:"name" binding:"required"`
	Symbol         string              `json:"symbol" binding:"required"`
	InvestmentType string              `json:"investment_type"`
	Amount         decimal.Decimal     `json:"amount"`
	PurchasePrice  decimal.Decimal     `json:"purchase_price"`
	CurrentPrice   decimal.NullDecimal `json:"current_price"`
	PurchaseDate   *models.Date        `json:"purchase_date"`
	Description    *string             `json:"description"`
}

type SellRequest struct {
	UserID      *int64          `json:"user_id"`
	Symbol      string          `json:"symbol" binding:"required"`
	Amount      decimal.Decimal `json:"amount"`
	SalePrice   decimal.Decimal `json:"sale_price"`
	SaleDate    *models.Date    `json:"sale_date"`
	Description *string         `json:"description"`
}

type UpdateRequest struct {
	UserID         *int64           `json:"user_id"`
	Name           *string          `json:"name"`
	Symbol         *string          `json:"symbol"`
	InvestmentType *string          `json:"investment_type"`
	Amount         *decimal.Decimal `json:"amount"`
	PurchasePrice  *decimal.Decimal `json:"purchase_price"`
	CurrentPrice   *decimal.Decimal `json:"current_price"`
	PurchaseDate   *models.Date     `json:"purchase_date"`
	Description    *string          `json:"description"`
	Side           *string          `json:"side"`
}

type PriceRequest struct {
	UserID       *int64          `json:"user_id"`
	CurrentPrice decimal.Decimal `json:"current_price"`
}

func (h *Handler) CreateInvestment(c *gin.Context) {
	var req BuyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warnf("invalid buy body: %v", err)
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}
	rec, err := h.svc.Buy(c.Request.Context(), service.BuyInput{
		UserID:         h.scope(c, req.UserID),
		Name:           req.Name,
		Symbol:         req.Symbol,
		InvestmentType: req.InvestmentType,
		Amount:         req.Amount,
		PurchasePrice:  req.PurchasePrice,
		CurrentPrice:   req.CurrentPrice,
		PurchaseDate:   req.PurchaseDate,
		Description:    req.Description,
	})
	if err != nil {
		h.fail(c, "create investment", err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

func (h *Handler) SellInvestment(c *gin.Context) {
	var req SellRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warnf("invalid sell body: %v", err)
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}
	rec, err := h.svc.Sell(c.Request.Context(), service.SellInput{
		UserID:      h.scope(c, req.UserID),
		Symbol:      req.Symbol,
		Amount:      req.Amount,
		SalePrice:   req.SalePrice,
		SaleDate:    req.SaleDate,
		Description: req.Description,
	})
	if err != nil {
		h.fail(c, "sell investment", err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

func (h *Handler) ListInvestments(c *gin.Context) {
	q, ok := h.query(c)
	if !ok {
		return
	}
	rows, err := h.svc.List(c.Request.Context(), q)
	if err != nil {
		h.fail(c, "list investments", err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (h *Handler) GetInvestment(c *gin.Context) {
	id, ok := h.id(c)
	if !ok {
		return
	}
	userID, ok := h.userParam(c)
	if !ok {
		return
	}
	rec, err := h.svc.Get(c.Request.Context(), h.scope(c, userID), id)
	if err != nil {
		h.fail(c, "get investment", err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *Handler) UpdateInvestment(c *gin.Context) {
	id, ok := h.id(c)
	if !ok {
		return
	}
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warnf("invalid update body: %v", err)
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}
	userID, ok := h.userParam(c)
	if !ok {
		return
	}
	if userID == nil {
		userID = req.UserID
	}
	rec, err := h.svc.Update(c.Request.Context(), h.scope(c, userID), id, service.UpdateInput{
		Name:           req.Name,
		Symbol:         req.Symbol,
		InvestmentType: req.InvestmentType,
		Amount:         req.Amount,
		PurchasePrice:  req.PurchasePrice,
		CurrentPrice:   req.CurrentPrice,
		PurchaseDate:   req.PurchaseDate,
		Description:    req.Description,
		Side:           req.Side,
	})
	if err != nil {
		h.fail(c, "update investment", err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *Handler) DeleteInvestment(c *gin.Context) {
	id, ok := h.id(c)
	if !ok {
		return
	}
	userID, ok := h.userParam(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), h.scope(c, userID), id); err != nil {
		h.fail(c, "delete investment", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) GetPositions(c *gin.Context) {
	q, ok := h.query(c)
	if !ok {
		return
	}
	positions, err := h.svc.Positions(c.Request.Context(), q)
	if err != nil {
		h.fail(c, "get positions", err)
		return
	}
	c.JSON(http.StatusOK, positions)
}

func (h *Handler) GetOverview(c *gin.Context) {
	q, ok := h.query(c)
	if !ok {
		return
	}
	ov, err := h.svc.Overview(c.Request.Context(), q)
	if err != nil {
		h.fail(c, "get overview", err)
		return
	}
	c.JSON(http.StatusOK, ov)
}

func (h *Handler) GetEarnings(c *gin.Context) {
	q, ok := h.query(c)
	if !ok {
		return
	}
	series, err := h.svc.Earnings(c.Request.Context(), q, c.DefaultQuery("aggregate_by", "day"))
	if err != nil {
		h.fail(c, "get earnings", err)
		return
	}
	c.JSON(http.StatusOK, series)
}

func (h *Handler) SetPrice(c *gin.Context) {
	var req PriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warnf("invalid price body: %v", err)
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}
	symbol := models.NormalizeSymbol(c.Param("symbol"))
	n, err := h.svc.SetCurrentPrice(c.Request.Context(), h.scope(c, req.UserID), symbol, req.CurrentPrice)
	if err != nil {
		h.fail(c, "set price", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbol": symbol, "current_price": req.CurrentPrice, "updated": n})
}

func (h *Handler) Health(c *gin.Context) {
	if err := h.svc.Ping(c.Request.Context()); err != nil {
		h.log.Errorf("health check failed: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// fail maps service errors onto status codes. Validation problems are the
// caller's fault and logged at warn; anything unexpected is an error.
func (h *Handler) fail(c *gin.Context, op string, err error) {
	var ve *service.ValidationError
	var nf *service.NotFoundError
	switch {
	case errors.As(err, &ve):
		h.log.Warnf("%s rejected: %v", op, err)
		c.JSON(http.StatusBadRequest, gin.H{"detail": ve.Reason})
	case errors.As(err, &nf):
		c.JSON(http.StatusNotFound, gin.H{"detail": nf.Error()})
	default:
		h.log.WithField("request_id", c.GetString(requestIDKey)).Errorf("%s failed: %v", op, err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": op + " failed"})
	}
}

func (h *Handler) id(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "id must be an integer"})
		return 0, false
	}
	return id, true
}

// userParam reads the optional user_id query parameter.
func (h *Handler) userParam(c *gin.Context) (*int64, bool) {
	v := c.Query("user_id")
	if v == "" {
		return nil, true
	}
	uid, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "user_id must be an integer"})
		return nil, false
	}
	return &uid, true
}

// query reads the shared listing filters from the query string.
func (h *Handler) query(c *gin.Context) (service.Query, bool) {
	q := service.Query{
		Type:   c.Query("type"),
		Symbol: c.Query("symbol"),
		Limit:  defaultLimit,
	}
	explicit, ok := h.userParam(c)
	if !ok {
		return q, false
	}
	q.UserID = h.scope(c, explicit)

	for name, dst := range map[string]**models.Date{"start_date": &q.StartDate, "end_date": &q.EndDate} {
		v := c.Query(name)
		if v == "" {
			continue
		}
		d, err := models.ParseDate(v)
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": name + ": " + err.Error()})
			return q, false
		}
		*dst = &d
	}
	for name, dst := range map[string]*int{"skip": &q.Skip, "limit": &q.Limit} {
		v := c.Query(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": name + " must be a non-negative integer"})
			return q, false
		}
		*dst = n
	}
	if q.Limit == 0 || q.Limit > maxLimit {
		q.Limit = maxLimit
	}
	return q, true
}

// scope picks the user whose records a request works on: the token's user
// when authenticated, otherwise the one named in the request, otherwise the
// global scope. Naming a user is only honoured when auth is optional.
func (h *Handler) scope(c *gin.Context, explicit *int64) *int64 {
	if v, ok := c.Get(userIDKey); ok {
		if id, ok := v.(int64); ok {
			return &id
		}
	}
	if h.requireAuth {
		return nil
	}
	return explicit
}
