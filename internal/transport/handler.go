package transport

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/anime-shed/plant-classifier-go/internal/config"
	apperrors "github.com/anime-shed/plant-classifier-go/internal/errors"
	"github.com/anime-shed/plant-classifier-go/internal/form"
	"github.com/anime-shed/plant-classifier-go/internal/labels"
	"github.com/anime-shed/plant-classifier-go/internal/logger"
	"github.com/anime-shed/plant-classifier-go/internal/observer"
	"github.com/anime-shed/plant-classifier-go/internal/preview"
	"github.com/anime-shed/plant-classifier-go/internal/session"
	"github.com/anime-shed/plant-classifier-go/pkg/models"
)

// SessionCookie carries the session id between requests.
const SessionCookie = "plant_session"

const (
	formKey      = "form"
	sessionIDKey = "session_id"

	defaultSuggestions = 5
	maxSuggestions     = 50

	// Multipart framing and the other form fields on top of the file itself.
	multipartOverhead = 1 << 20
)

//go:embed templates/*.html
var templateFS embed.FS

// Deps are the collaborators the HTTP layer needs.
type Deps struct {
	Sessions *session.Manager
	Previews preview.Store
	Catalog  *labels.Catalog
	Metrics  *observer.MetricsObserver
	Config   *config.Config
}

type pageData struct {
	View            models.FormView
	CanClassify     bool
	CanGiveFeedback bool
	JudgedCorrect   bool
	JudgedWrong     bool
	Labels          []string
}

func NewHandler(d Deps) http.Handler {
	r := gin.New()
	r.SetHTMLTemplate(template.Must(template.ParseFS(templateFS, "templates/*.html")))

	// Add middleware
	r.Use(
		gin.Recovery(),
		requestLogger(),
		requestSizeLimiter(d.Config.MaxUploadSize+multipartOverhead),
		errorHandler(),
	)

	// Configure routes
	r.GET("/health", healthCheck)
	r.GET("/metrics", metrics(d))
	r.GET("/api/labels", suggestLabels(d.Catalog))

	s := r.Group("/", sessionMiddleware(d.Sessions))
	s.GET("/", index(d.Catalog))
	s.GET("/api/state", state)
	s.GET("/preview/:id", servePreview(d.Previews))
	s.POST("/image", selectImage(d.Config))
	s.POST("/classify", classify(d.Config))
	s.POST("/feedback", submitFeedback(d.Config, d.Catalog))
	s.POST("/session/close", closeSession(d.Sessions))

	return r
}

func sessionMiddleware(sessions *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		cookie, _ := c.Cookie(SessionCookie)
		f, id, created := sessions.Get(cookie)
		if created {
			logger.WithFields(logrus.Fields{
				"session_id": id,
				"ip":         c.ClientIP(),
			}).Debug("Started session")
		}
		if id != cookie {
			setSessionCookie(c, id, 0)
		}
		c.Set(formKey, f)
		c.Set(sessionIDKey, id)
		c.Next()
	}
}

func setSessionCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookie, value, maxAge, "/", "", c.Request.TLS != nil, true)
}

func currentForm(c *gin.Context) *form.Form {
	return c.MustGet(formKey).(*form.Form)
}

func index(catalog *labels.Catalog) gin.HandlerFunc {
	return func(c *gin.Context) {
		st := currentForm(c).Snapshot()
		data := pageData{
			View:            st.View(),
			CanClassify:     st.CanClassify(),
			CanGiveFeedback: st.CanGiveFeedback(),
			Labels:          catalog.Labels(),
		}
		if st.UserJudgment != nil {
			data.JudgedCorrect = *st.UserJudgment
			data.JudgedWrong = !*st.UserJudgment
		}
		c.Header("Cache-Control", "no-store")
		c.HTML(http.StatusOK, "index.html", data)
	}
}

func state(c *gin.Context) {
	c.JSON(http.StatusOK, currentForm(c).Snapshot().View())
}

func selectImage(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		f := currentForm(c)

		header, err := c.FormFile("file")
		switch {
		case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
			// Nothing picked: keep the current selection.
			respondForm(c, f, nil)
			return
		case err != nil:
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				_ = c.Error(apperrors.NewTooLargeError("file exceeds upload limit", err))
				return
			}
			_ = c.Error(apperrors.NewValidationError("invalid multipart upload", err))
			return
		}
		if header.Size > cfg.MaxUploadSize {
			_ = c.Error(tooLargeError(cfg.MaxUploadSize))
			return
		}

		file, err := header.Open()
		if err != nil {
			_ = c.Error(apperrors.NewValidationError("invalid multipart upload", err))
			return
		}
		defer file.Close()

		data, err := io.ReadAll(io.LimitReader(file, cfg.MaxUploadSize+1))
		if err != nil {
			_ = c.Error(apperrors.NewValidationError("failed to read upload", err))
			return
		}
		if int64(len(data)) > cfg.MaxUploadSize {
			_ = c.Error(tooLargeError(cfg.MaxUploadSize))
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.RequestTimeout)
		defer cancel()

		img := &models.Image{
			Name:        header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Data:        data,
		}
		respondForm(c, f, f.SelectImage(ctx, img))
	}
}

func classify(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		f := currentForm(c)
		ctx, cancel := upstreamContext(c, cfg)
		defer cancel()

		startTime := time.Now()
		err := f.Classify(ctx)
		logger.WithFields(logrus.Fields{
			"session_id":         c.GetString(sessionIDKey),
			"generation":         f.Generation(),
			"processing_time_ms": time.Since(startTime).Milliseconds(),
			"ok":                 err == nil,
		}).Debug("Classify request handled")

		respondForm(c, f, err)
	}
}

func submitFeedback(cfg *config.Config, catalog *labels.Catalog) gin.HandlerFunc {
	return func(c *gin.Context) {
		f := currentForm(c)

		judgment, err := strconv.ParseBool(strings.TrimSpace(c.PostForm("is_correct")))
		if err != nil {
			respondForm(c, f, f.RejectFeedback(c.Request.Context()))
			return
		}
		corrected := catalog.Clean(c.PostForm("correct_label"))
		if known, ok := catalog.Canonical(corrected); ok {
			corrected = known
		}

		ctx, cancel := upstreamContext(c, cfg)
		defer cancel()

		respondForm(c, f, f.SubmitFeedback(ctx, judgment, corrected))
	}
}

func servePreview(previews preview.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")

		// Only the session's current preview is served.
		st := currentForm(c).Snapshot()
		if id == "" || st.PreviewURL != form.DefaultPreviewPrefix+id {
			_ = c.Error(apperrors.NewNotFoundError("unknown preview", nil))
			return
		}

		img, err := previews.Get(c.Request.Context(), id)
		if err != nil {
			if errors.Is(err, preview.ErrNotFound) {
				_ = c.Error(apperrors.NewNotFoundError("unknown preview", err))
				return
			}
			_ = c.Error(err)
			return
		}

		c.Header("Cache-Control", "private, max-age=300")
		c.Data(http.StatusOK, preview.ContentType(*img), img.Data)
	}
}

func closeSession(sessions *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetString(sessionIDKey)
		sessions.Close(c.Request.Context(), id)
		setSessionCookie(c, "", -1)

		if wantsJSON(c) {
			c.JSON(http.StatusOK, gin.H{"closed": true})
			return
		}
		c.Redirect(http.StatusSeeOther, "/")
	}
}

func suggestLabels(catalog *labels.Catalog) gin.HandlerFunc {
	return func(c *gin.Context) {
		q := c.Query("q")
		limit := defaultSuggestions
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				_ = c.Error(apperrors.NewValidationError("limit must be a positive integer", err))
				return
			}
			limit = n
		}
		if limit > maxSuggestions {
			limit = maxSuggestions
		}

		suggestions := catalog.Suggest(q, limit)
		if suggestions == nil {
			suggestions = []string{}
		}
		c.JSON(http.StatusOK, models.LabelSuggestions{Query: q, Labels: suggestions})
	}
}

func metrics(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		m := d.Metrics.GetMetrics()
		m["active_sessions"] = d.Sessions.Len()
		c.JSON(http.StatusOK, m)
	}
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "available",
		"version": "1.0.0",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// upstreamContext detaches the outbound call from the browser request so a
// client navigating away does not abort a classification mid-flight.
func upstreamContext(c *gin.Context, cfg *config.Config) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(c.Request.Context()), cfg.UpstreamTimeout)
}

func wantsJSON(c *gin.Context) bool {
	return strings.Contains(c.GetHeader("Accept"), "application/json")
}

// respondForm answers a form action. JSON clients get the view with a status
// derived from err; browsers are redirected back to the page, which already
// shows any user-facing message.
func respondForm(c *gin.Context, f *form.Form, err error) {
	if err != nil && apperrors.IsType(err, apperrors.ErrorTypeInternal) {
		_ = c.Error(err)
		return
	}

	if wantsJSON(c) {
		code := http.StatusOK
		if err != nil {
			code = apperrors.GetStatusCode(err)
		}
		c.JSON(code, f.Snapshot().View())
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

// Middleware and helper functions
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := logger.WithFields(logrus.Fields{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status_code": c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
			"user_agent":  c.Request.UserAgent(),
			"ip":          c.ClientIP(),
		})
		if c.Request.URL.Path == "/health" {
			entry.Debug("Request handled")
			return
		}
		entry.Info("Request handled")
	}
}

func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// errorHandler renders the last error a handler recorded with c.Error.
func errorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			err := c.Errors.Last().Err
			respondError(c, determineStatusCode(err), err)
		}
	}
}

func tooLargeError(limit int64) *apperrors.AppError {
	return apperrors.NewTooLargeError(fmt.Sprintf("file exceeds %d bytes", limit), nil)
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

func respondError(c *gin.Context, code int, err error) {
	logger.WithError(err).WithFields(logrus.Fields{
		"status_code": code,
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
		"ip":          c.ClientIP(),
	}).Error("Request failed")

	// Only typed client errors carry a message worth showing.
	resp := models.ErrorResponse{Error: http.StatusText(code)}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.Type != apperrors.ErrorTypeInternal {
		resp.Message = appErr.Message
	}
	c.AbortWithStatusJSON(code, resp)
}
