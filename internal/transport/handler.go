package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/anime-shed/mockup-compositor-go/internal/config"
	apperrors "github.com/anime-shed/mockup-compositor-go/internal/errors"
	"github.com/anime-shed/mockup-compositor-go/internal/logger"
	"github.com/anime-shed/mockup-compositor-go/internal/placement"
	"github.com/anime-shed/mockup-compositor-go/internal/service"
	"github.com/anime-shed/mockup-compositor-go/pkg/models"
)

// Response headers describing how a mockup was produced
const (
	HeaderMethod         = "X-Processing-Method"
	HeaderRationale      = "X-Detection-Rationale"
	HeaderDimensions     = "X-Image-Dimensions"
	HeaderProcessingTime = "X-Processing-Time"
	HeaderPrimaryError   = "X-Primary-Error"
	HeaderCache          = "X-Cache"
)

const maxHeaderValue = 512

func NewHandler(svc service.MockupService, cfg *config.Config) http.Handler {
	r := gin.Default()

	r.Use(
		requestSizeLimiter(cfg.MaxRequestBodySize),
		errorHandler(),
	)

	r.GET("/health", healthCheck)

	api := r.Group("/api/v1")
	api.POST("/mockups", createMockup(svc, cfg))
	api.POST("/mockups/remote", createRemoteMockup(svc, cfg))
	api.GET("/stats", stats(svc))

	return r
}

func createMockup(svc service.MockupService, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.RequestTimeout)
		defer cancel()

		logRequest(c, "Processing mockup upload")

		template, templateName, err := readUpload(c, "template", cfg.MaxUploadSize)
		if err != nil {
			respondError(c, apperrors.GetStatusCode(err), "invalid template upload", err)
			return
		}
		artwork, _, err := readUpload(c, "artwork", cfg.MaxUploadSize)
		if err != nil {
			respondError(c, apperrors.GetStatusCode(err), "invalid artwork upload", err)
			return
		}

		filename := strings.TrimSpace(c.PostForm("filename"))
		if filename == "" {
			filename = templateName
		}

		out, err := svc.CreateMockup(ctx, placement.PlacementRequest{
			Template: template,
			Artwork:  artwork,
			Filename: filename,
		})
		if err != nil {
			respondError(c, determineStatusCode(err), "mockup generation failed", err)
			return
		}
		respondMockup(c, filename, out)
	}
}

func createRemoteMockup(svc service.MockupService, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.RequestTimeout)
		defer cancel()

		logRequest(c, "Processing remote mockup request")

		var req models.RemoteMockupRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, bodyErrorStatus(err), "invalid request format", err)
			return
		}

		out, err := svc.CreateMockupFromURLs(ctx, req)
		if err != nil {
			respondError(c, determineStatusCode(err), "mockup generation failed", err)
			return
		}
		respondMockup(c, req.TemplateURL, out)
	}
}

func stats(svc service.MockupService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, svc.Stats())
	}
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "available",
		"version": "1.0.0",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// readUpload reads one multipart file field, refusing anything over limit
func readUpload(c *gin.Context, field string, limit int64) ([]byte, string, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, "", newTooLargeError("request body too large", err)
		}
		return nil, "", apperrors.NewValidationError(fmt.Sprintf("missing %s file", field), err)
	}
	if fh.Size > limit {
		return nil, "", newTooLargeError(fmt.Sprintf("%s exceeds %d bytes", field, limit), nil)
	}
	data, err := readFileHeader(fh, limit)
	if err != nil {
		return nil, "", apperrors.NewValidationError(fmt.Sprintf("failed to read %s", field), err)
	}
	return data, fh.Filename, nil
}

func readFileHeader(fh *multipart.FileHeader, limit int64) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("upload exceeds %d bytes", limit)
	}
	return data, nil
}

func newTooLargeError(message string, cause error) *apperrors.AppError {
	err := apperrors.NewValidationError(message, cause)
	err.StatusCode = http.StatusRequestEntityTooLarge
	return err
}

func respondMockup(c *gin.Context, source string, out *service.Outcome) {
	result := out.Result

	cacheState := "MISS"
	if out.Cached {
		cacheState = "HIT"
	}

	logger.WithFields(logrus.Fields{
		"source":             source,
		"method":             result.Method,
		"rationale":          result.Rationale,
		"primary_error":      result.PrimaryError,
		"width":              result.Width,
		"height":             result.Height,
		"cached":             out.Cached,
		"processing_time_ms": result.ProcessingTime.Milliseconds(),
	}).Info("Mockup generated")

	if c.Query("format") == "json" {
		c.JSON(http.StatusOK, models.MockupResponse{
			Method:           string(result.Method),
			Rationale:        result.Rationale,
			PrimaryError:     result.PrimaryError,
			Width:            result.Width,
			Height:           result.Height,
			DPI:              result.DPI,
			Region:           result.Region,
			ProcessingTimeMs: result.ProcessingTime.Milliseconds(),
			Cached:           out.Cached,
			ContentType:      "image/jpeg",
			Image:            result.Image,
		})
		return
	}

	h := c.Writer.Header()
	h.Set(HeaderMethod, string(result.Method))
	h.Set(HeaderDimensions, fmt.Sprintf("%dx%d", result.Width, result.Height))
	h.Set(HeaderProcessingTime, strconv.FormatInt(result.ProcessingTime.Milliseconds(), 10)+"ms")
	h.Set(HeaderCache, cacheState)
	if result.Rationale != "" {
		h.Set(HeaderRationale, headerValue(result.Rationale))
	}
	if result.PrimaryError != "" {
		h.Set(HeaderPrimaryError, headerValue(result.PrimaryError))
	}
	c.Data(http.StatusOK, "image/jpeg", result.Image)
}

// headerValue keeps free text safe for a single header line
func headerValue(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > maxHeaderValue {
		s = s[:maxHeaderValue]
	}
	return s
}

func logRequest(c *gin.Context, message string) {
	logger.WithFields(logrus.Fields{
		"method":     c.Request.Method,
		"path":       c.Request.URL.Path,
		"user_agent": c.Request.UserAgent(),
		"ip":         c.ClientIP(),
	}).Info(message)
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

		if len(c.Errors) > 0 && !c.Writer.Written() {
			err := c.Errors.Last()
			respondError(c, determineStatusCode(err.Err), "request processing failed", err.Err)
		}
	}
}

func bodyErrorStatus(err error) int {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

func determineStatusCode(err error) int {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, code int, message string, err error) {
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
