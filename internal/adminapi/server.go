package adminapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/lumicall/coinledger/pkg/coinledger"
	"go.uber.org/zap"
)

// LedgerService is the slice of the domain service the admin API consumes.
type LedgerService interface {
	Settle(ctx context.Context, input coinledger.CallInput) (coinledger.Call, error)
	PreviewRefund(ctx context.Context, callID coinledger.CallID) (coinledger.RefundPreview, error)
	Refund(ctx context.Context, callID coinledger.CallID, reason coinledger.Reason, adminID string, adminEmail string) (coinledger.RefundResult, error)
	Adjust(ctx context.Context, userID coinledger.UserID, amount int64, reason coinledger.Reason, adminID string, adminEmail string) (coinledger.AdjustResult, error)
	Ledger(ctx context.Context, userID coinledger.UserID) (coinledger.LedgerView, error)
	Economy(ctx context.Context) (coinledger.Economy, error)
	Calls(ctx context.Context, page coinledger.Page, anomaliesOnly bool) (coinledger.CallPage, error)
	ActionLog(ctx context.Context, page coinledger.Page) (coinledger.ActionPage, error)
	Counters(ctx context.Context) (coinledger.PlatformCounters, error)
	CheckGlobal(ctx context.Context) (coinledger.GlobalCheck, error)
}

// DatabasePinger reports connectivity of the backing store.
type DatabasePinger interface {
	Ping(ctx context.Context) error
}

// Run boots the admin HTTP API using the supplied configuration.
func Run(ctx context.Context, cfg Config, service LedgerService, pinger DatabasePinger, logger *zap.Logger) error {
	if service == nil {
		return fmt.Errorf("ledger service is required")
	}
	if logger == nil {
		var err error
		logger, err = zap.NewProduction()
		if err != nil {
			return fmt.Errorf("zap init: %w", err)
		}
		defer func() { _ = logger.Sync() }()
	}

	validator, err := NewTokenValidator([]byte(cfg.AdminSigningKey), cfg.AdminTokenIssuer)
	if err != nil {
		return fmt.Errorf("token validator: %w", err)
	}

	handler := &httpHandler{
		logger:    logger,
		service:   service,
		pinger:    pinger,
		startedAt: time.Now().UTC(),
	}

	router := setupRouter(cfg, handler, validator)

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("admin api listening", zap.String("addr", cfg.ListenAddr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.Warn("server shutdown error", zap.Error(shutdownErr))
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func setupRouter(cfg Config, handler *httpHandler, validator *TokenValidator) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Origin", "Accept", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	admin := router.Group("/admin")
	admin.Use(validator.GinMiddleware())

	admin.GET("/coins", handler.handleEconomy)
	admin.GET("/calls", handler.handleCalls)
	admin.GET("/calls/:id/refund-preview", handler.handleRefundPreview)
	admin.POST("/calls/:id/refund", handler.handleRefund)
	admin.POST("/users/:id/adjust-coins", handler.handleAdjustCoins)
	admin.GET("/users/:id/ledger", handler.handleUserLedger)
	admin.GET("/actions/log", handler.handleActionLog)
	admin.GET("/system/health", handler.handleSystemHealth)

	internal := router.Group("/internal")
	internal.Use(validator.GinMiddleware())

	internal.POST("/calls/settle", handler.handleSettleCall)

	return router
}

type httpHandler struct {
	logger    *zap.Logger
	service   LedgerService
	pinger    DatabasePinger
	startedAt time.Time
}

func (handler *httpHandler) handleEconomy(ctx *gin.Context) {
	economy, err := handler.service.Economy(ctx.Request.Context())
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	respondData(ctx, http.StatusOK, mapEconomyPayload(economy))
}

func (handler *httpHandler) handleCalls(ctx *gin.Context) {
	page := coinledger.Page{
		Number: queryInt(ctx, "page"),
		Limit:  queryInt(ctx, "limit"),
	}
	anomaliesOnly := ctx.Query("anomaly") == "true"
	callPage, err := handler.service.Calls(ctx.Request.Context(), page, anomaliesOnly)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	respondData(ctx, http.StatusOK, callPagePayload{
		Calls: mapCallPayloads(callPage.Calls),
		Pagination: paginationPayload{
			Page:       callPage.Page,
			Limit:      callPage.Limit,
			Total:      callPage.Total,
			TotalPages: callPage.TotalPages,
		},
	})
}

func (handler *httpHandler) handleRefundPreview(ctx *gin.Context) {
	callID, err := coinledger.NewCallID(ctx.Param("id"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_request", "call id is required"))
		return
	}
	preview, err := handler.service.PreviewRefund(ctx.Request.Context(), callID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	respondData(ctx, http.StatusOK, mapRefundPreviewPayload(preview))
}

func (handler *httpHandler) handleRefund(ctx *gin.Context) {
	claims := getAdminClaims(ctx)
	if claims == nil {
		ctx.JSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing admin identity"))
		return
	}
	callID, err := coinledger.NewCallID(ctx.Param("id"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_request", "call id is required"))
		return
	}
	var request refundRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	if len(request.Reason) < minimumReasonLength {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_reason", fmt.Sprintf("reason must be at least %d characters", minimumReasonLength)))
		return
	}
	reason, err := coinledger.NewReason(request.Reason)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_reason", "reason is required"))
		return
	}
	result, err := handler.service.Refund(ctx.Request.Context(), callID, reason, claims.AdminID, claims.Email)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	respondData(ctx, http.StatusOK, mapRefundResultPayload(result))
}

func (handler *httpHandler) handleAdjustCoins(ctx *gin.Context) {
	claims := getAdminClaims(ctx)
	if claims == nil {
		ctx.JSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing admin identity"))
		return
	}
	userID, err := coinledger.NewUserID(ctx.Param("id"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_request", "user id is required"))
		return
	}
	var request adjustRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	if len(request.Reason) < minimumReasonLength {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_reason", fmt.Sprintf("reason must be at least %d characters", minimumReasonLength)))
		return
	}
	reason, err := coinledger.NewReason(request.Reason)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_reason", "reason is required"))
		return
	}
	result, err := handler.service.Adjust(ctx.Request.Context(), userID, request.Amount, reason, claims.AdminID, claims.Email)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	respondData(ctx, http.StatusOK, adjustResultPayload{
		TransactionID: result.TransactionID,
		OldBalance:    result.OldBalance,
		NewBalance:    result.NewBalance,
	})
}

func (handler *httpHandler) handleUserLedger(ctx *gin.Context) {
	userID, err := coinledger.NewUserID(ctx.Param("id"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_request", "user id is required"))
		return
	}
	view, err := handler.service.Ledger(ctx.Request.Context(), userID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	respondData(ctx, http.StatusOK, mapLedgerPayload(view))
}

func (handler *httpHandler) handleActionLog(ctx *gin.Context) {
	page := coinledger.Page{
		Number: queryInt(ctx, "page"),
		Limit:  queryInt(ctx, "limit"),
	}
	actionPage, err := handler.service.ActionLog(ctx.Request.Context(), page)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	respondData(ctx, http.StatusOK, actionPagePayload{
		Actions: mapAdminActionPayloads(actionPage.Actions),
		Pagination: paginationPayload{
			Page:       actionPage.Page,
			Limit:      actionPage.Limit,
			Total:      actionPage.Total,
			TotalPages: actionPage.TotalPages,
		},
	})
}

func (handler *httpHandler) handleSystemHealth(ctx *gin.Context) {
	requestCtx := ctx.Request.Context()

	database := databaseHealthPayload{Status: "up"}
	if handler.pinger != nil {
		pingStarted := time.Now()
		if err := handler.pinger.Ping(requestCtx); err != nil {
			database.Status = "down"
			handler.logger.Error("database ping failed", zap.Error(err))
		}
		database.LatencyMs = time.Since(pingStarted).Milliseconds()
	}

	counters, err := handler.service.Counters(requestCtx)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	check, err := handler.service.CheckGlobal(requestCtx)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}

	status := "healthy"
	if database.Status != "up" || !check.Healthy() {
		status = "degraded"
	}
	respondData(ctx, http.StatusOK, healthPayload{
		Status:   status,
		Database: database,
		Counters: countersPayload{
			FailedTransactionsLastHour: counters.FailedTransactionsLastHour,
			NegativeBalanceAccounts:    counters.NegativeBalanceAccounts,
		},
		Reconciliation: reconciliationHealthPayload{
			Drift:           check.Drift,
			SampledAccounts: len(check.SampledAccounts),
			DriftedAccounts: check.DriftedAccounts,
			Healthy:         check.Healthy(),
		},
		ServerTimeUnixUTC: time.Now().UTC().Unix(),
		UptimeSeconds:     int64(time.Since(handler.startedAt).Seconds()),
	})
}

func (handler *httpHandler) handleSettleCall(ctx *gin.Context) {
	var request settleRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	callID, err := coinledger.NewCallID(request.CallID)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_request", "call id is required"))
		return
	}
	payerUserID, err := coinledger.NewUserID(request.PayerUserID)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_request", "payer user id is required"))
		return
	}
	earnerUserID, err := coinledger.NewUserID(request.EarnerUserID)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_request", "earner user id is required"))
		return
	}
	input, err := coinledger.NewCallInput(callID, payerUserID, earnerUserID, request.DurationSeconds, request.PricePerMinute)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	call, err := handler.service.Settle(ctx.Request.Context(), input)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	respondData(ctx, http.StatusOK, mapCallPayload(call))
}

func (handler *httpHandler) respondError(ctx *gin.Context, err error) {
	status, code, message := domainErrorStatus(err)
	if status == http.StatusInternalServerError {
		handler.logger.Error("request failed", zap.String("path", ctx.FullPath()), zap.Error(err))
	}
	ctx.JSON(status, errorResponse(code, message))
}

func domainErrorStatus(err error) (int, string, string) {
	switch {
	case errors.Is(err, coinledger.ErrCallNotFound):
		return http.StatusNotFound, "call_not_found", "call not found"
	case errors.Is(err, coinledger.ErrAccountNotFound):
		return http.StatusNotFound, "account_not_found", "account not found"
	case errors.Is(err, coinledger.ErrInsufficientFunds):
		return http.StatusConflict, "insufficient_funds", "insufficient balance"
	case errors.Is(err, coinledger.ErrAlreadyRefunded):
		return http.StatusConflict, "already_refunded", "call already refunded"
	case errors.Is(err, coinledger.ErrCallNotRefundable):
		return http.StatusConflict, "not_refundable", err.Error()
	case errors.Is(err, coinledger.ErrCallAlreadySettled):
		return http.StatusConflict, "already_settled", "call already settled"
	case errors.Is(err, coinledger.ErrInvalidAmount),
		errors.Is(err, coinledger.ErrInvalidUserID),
		errors.Is(err, coinledger.ErrInvalidCallID),
		errors.Is(err, coinledger.ErrInvalidCallInput),
		errors.Is(err, coinledger.ErrInvalidReason):
		return http.StatusBadRequest, "invalid_request", err.Error()
	}
	return http.StatusInternalServerError, "internal_error", "internal error"
}

func queryInt(ctx *gin.Context, key string) int {
	raw := ctx.Query(key)
	if raw == "" {
		return 0
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0
	}
	return value
}

func respondData(ctx *gin.Context, status int, data any) {
	ctx.JSON(status, gin.H{"data": data})
}

func errorResponse(code string, message string) gin.H {
	return gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	}
}
