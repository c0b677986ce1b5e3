package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"speckle-inspector/internal/config"
	apperrors "speckle-inspector/internal/errors"
	"speckle-inspector/internal/factory"
	"speckle-inspector/internal/logger"
	"speckle-inspector/internal/service"
	"speckle-inspector/pkg/models"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// MetricsProvider exposes analysis counters
type MetricsProvider interface {
	GetMetrics() map[string]interface{}
}

func NewHandler(svc service.SpeckleAnalysisService, strategies factory.StrategyFactory, metrics MetricsProvider, cfg *config.Config) http.Handler {
	r := gin.Default()

	// Add middleware
	r.Use(
		requestSizeLimiter(cfg.MaxRequestBodySize),
		errorHandler(),
	)

	// Configure routes
	r.GET("/health", healthCheck)
	if metrics != nil {
		r.GET("/metrics", metricsHandler(metrics))
	}
	r.POST("/analyze", analyzeMeasurement(svc, strategies, cfg))
	r.POST("/batch", analyzeBatch(svc, strategies, cfg))

	return r
}

func analyzeMeasurement(svc service.SpeckleAnalysisService, strategies factory.StrategyFactory, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.RequestTimeout)
		defer cancel()

		// Log request start
		logger.WithFields(logrus.Fields{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"user_agent": c.Request.UserAgent(),
			"ip":         c.ClientIP(),
		}).Info("Processing speckle analysis request")

		var req models.AnalyzeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			logger.WithError(err).WithFields(logrus.Fields{
				"ip": c.ClientIP(),
			}).Error("Invalid request format")
			respondError(c, http.StatusBadRequest, "invalid request format", err)
			return
		}

		if err := svc.ValidateMeasurement(req.Measurement); err != nil {
			respondError(c, apperrors.GetStatusCode(err), "invalid measurement", err)
			return
		}

		chooser, err := strategies.CreateStrategy(req.Strategy, thresholdOrDefault(req.Threshold, cfg))
		if err != nil {
			respondError(c, http.StatusBadRequest, "invalid threshold strategy", err)
			return
		}

		record, err := svc.AnalyzeMeasurement(ctx, req.Measurement, chooser)
		if err != nil {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) && !apperrors.IsType(err, apperrors.ErrorTypeTimeout) {
				err = apperrors.NewTimeoutError("speckle analysis timed out", err)
			}
			respondError(c, determineStatusCode(err), "speckle analysis failed", err)
			return
		}

		// Log successful completion
		logger.WithFields(logrus.Fields{
			"img_name":           req.Measurement.ImgName,
			"strategy":           chooser.GetStrategyName(),
			"processing_time_ms": time.Since(startTime).Milliseconds(),
			"dif_speck":          record.Result.CorrectedContrast,
			"persisted":          record.Persisted,
		}).Info("Speckle analysis completed successfully")

		c.JSON(http.StatusOK, record)
	}
}

func analyzeBatch(svc service.SpeckleAnalysisService, strategies factory.StrategyFactory, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.RequestTimeout)
		defer cancel()

		var req models.BatchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "invalid request format", err)
			return
		}

		chooser, err := strategies.CreateStrategy(req.Strategy, thresholdOrDefault(req.Threshold, cfg))
		if err != nil {
			respondError(c, http.StatusBadRequest, "invalid threshold strategy", err)
			return
		}

		// Failed entries are reported per outcome, the batch itself succeeds
		c.JSON(http.StatusOK, svc.AnalyzeBatch(ctx, req.Measurements, chooser))
	}
}

func thresholdOrDefault(threshold int, cfg *config.Config) int {
	if threshold == 0 {
		return cfg.DefaultThreshold
	}
	return threshold
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "available",
		"version": "1.0.0",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

func metricsHandler(metrics MetricsProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, metrics.GetMetrics())
	}
}

// Middleware and helper functions
func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func errorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			err := c.Errors.Last()
			respondError(c, determineStatusCode(err.Err), "request processing failed", err)
		}
	}
}

func determineStatusCode(err error) int {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	// Fallback to context-based errors
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, code int, message string, err error) {
	// Log the error with context
	logger.WithError(err).WithFields(logrus.Fields{
		"status_code": code,
		"message":     message,
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
		"ip":          c.ClientIP(),
	}).Error("Request failed")

	c.AbortWithStatusJSON(code, models.ErrorResponse{
		Error:   http.StatusText(code),
		Message: fmt.Sprintf("%s: %v", message, err),
	})
}
