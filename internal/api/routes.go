package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/mathvoice/domain/repositories"
	"github.com/satriahrh/mathvoice/internal/auth"
	"github.com/satriahrh/mathvoice/internal/jobs"
	"github.com/satriahrh/mathvoice/internal/jobs/narration"
	"github.com/satriahrh/mathvoice/internal/speechtext"
	"github.com/satriahrh/mathvoice/internal/websocket"
	"github.com/satriahrh/mathvoice/usecase"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// Dependencies are the collaborators the routes need. Authenticator may be
// nil, which leaves the API open.
type Dependencies struct {
	Narration     *usecase.NarrationService
	Jobs          *jobs.Manager
	Hub           *websocket.Hub
	Authenticator *auth.Authenticator
}

type handlers struct {
	Dependencies
	logger *zap.Logger
}

// InitRoutes initializes all API routes
func InitRoutes(e *echo.Echo, deps Dependencies, logger *zap.Logger) {
	h := &handlers{Dependencies: deps, logger: logger}
	e.HTTPErrorHandler = h.errorHandler

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "mathvoice-server",
		})
	})

	// API v1 routes
	v1 := e.Group("/api/v1")
	v1.POST("/auth/token", h.issueToken)

	protected := v1.Group("")
	if deps.Authenticator != nil {
		protected.Use(deps.Authenticator.Middleware())
	}

	protected.POST("/speech/convert", h.convertLatex)
	protected.POST("/speech/text", h.speechText)
	protected.POST("/speech/synthesize", h.synthesize)

	protected.POST("/documents", h.narrateDocument)
	protected.GET("/documents", h.listDocuments)
	protected.GET("/documents/:id", h.getDocument)
	protected.DELETE("/documents/:id", h.deleteDocument)

	protected.POST("/jobs", h.startJob)
	protected.GET("/jobs/:id", h.getJob)
	protected.GET("/jobs/:id/audio", h.getJobAudio)

	protected.GET("/samples", h.listSamples)
	protected.GET("/samples/:kind", h.getSample)
	protected.GET("/voices", h.listVoices)

	// WebSocket endpoint, JWT in the Authorization header or ?token=
	e.GET("/ws", h.websocket)
}

func errorJSON(c echo.Context, status int, code, message string) error {
	return c.JSON(status, ErrorResponse{Error: code, Message: message})
}

// errorHandler renders echo errors, auth middleware included, as ErrorResponse
func (h *handlers) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status, message := http.StatusInternalServerError, "internal server error"
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		status = httpErr.Code
		message = fmt.Sprint(httpErr.Message)
	} else {
		h.logger.Error("Unhandled error", zap.String("path", c.Path()), zap.Error(err))
	}

	code := "internal_error"
	switch status {
	case http.StatusUnauthorized:
		code = "unauthorized"
	case http.StatusNotFound:
		code = "not_found"
	case http.StatusMethodNotAllowed:
		code = "method_not_allowed"
	case http.StatusRequestEntityTooLarge:
		code = "upload_too_large"
	default:
		if status < http.StatusInternalServerError {
			code = "invalid_request"
		}
	}

	if err := errorJSON(c, status, code, message); err != nil {
		h.logger.Error("Failed to write error response", zap.Error(err))
	}
}

// narrationError maps narration failures to a status and error code
func (h *handlers) narrationError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, usecase.ErrEmptyUpload):
		return errorJSON(c, http.StatusBadRequest, "empty_upload", err.Error())
	case errors.Is(err, usecase.ErrUploadTooLarge):
		return errorJSON(c, http.StatusRequestEntityTooLarge, "upload_too_large", err.Error())
	case errors.Is(err, usecase.ErrUnsupportedContentType):
		return errorJSON(c, http.StatusUnsupportedMediaType, "unsupported_content_type", err.Error())
	case errors.Is(err, usecase.ErrNothingToNarrate):
		return errorJSON(c, http.StatusUnprocessableEntity, "nothing_to_narrate", err.Error())
	case errors.Is(err, repositories.ErrDocumentNotFound):
		return errorJSON(c, http.StatusNotFound, "document_not_found", err.Error())
	case errors.Is(err, jobs.ErrJobNotFound):
		return errorJSON(c, http.StatusNotFound, "job_not_found", err.Error())
	}

	h.logger.Error("Narration request failed", zap.String("path", c.Path()), zap.Error(err))
	return errorJSON(c, http.StatusBadGateway, "narration_failed", err.Error())
}

func (h *handlers) issueToken(c echo.Context) error {
	if h.Authenticator == nil {
		return errorJSON(c, http.StatusNotFound, "auth_disabled", "Authentication is not enabled on this server")
	}

	var req TokenRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid_request", "Invalid request format")
	}
	if req.ClientID == "" || req.ClientSecret == "" {
		return errorJSON(c, http.StatusBadRequest, "missing_fields", "client_id and client_secret are required")
	}

	token, expiresAt, err := h.Authenticator.Authenticate(req.ClientID, req.ClientSecret)
	if err != nil {
		h.logger.Warn("Client authentication failed", zap.String("clientID", req.ClientID), zap.Error(err))
		if errors.Is(err, auth.ErrInvalidCredentials) {
			return errorJSON(c, http.StatusUnauthorized, "authentication_failed", "Invalid client credentials")
		}
		return errorJSON(c, http.StatusInternalServerError, "token_generation_failed", "Failed to generate authentication token")
	}

	h.logger.Info("Client authenticated", zap.String("clientID", req.ClientID))
	return c.JSON(http.StatusOK, TokenResponse{
		Token:     token,
		TokenType: "Bearer",
		ExpiresAt: expiresAt,
		ClientID:  req.ClientID,
	})
}

func (h *handlers) convertLatex(c echo.Context) error {
	var req ConvertRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid_request", "Invalid request format")
	}
	return c.JSON(http.StatusOK, SpeechTextResponse{
		SpeechText: speechtext.ConvertLatexToSpeech(req.Latex),
	})
}

func (h *handlers) speechText(c echo.Context) error {
	var req SpeechTextRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid_request", "Invalid request format")
	}
	return c.JSON(http.StatusOK, SpeechTextResponse{
		SpeechText: h.Narration.ComposeSpeech(req.Text, req.Latex),
	})
}

func (h *handlers) synthesize(c echo.Context) error {
	var req SynthesizeRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid_request", "Invalid request format")
	}

	ctx := c.Request().Context()
	_, stream, err := h.Narration.Speak(ctx, req.Text, req.Latex, req.Voice)
	if err != nil {
		return h.narrationError(c, err)
	}
	audio, err := usecase.CollectAudio(ctx, stream)
	if err != nil {
		return h.narrationError(c, err)
	}

	return c.Blob(http.StatusOK, h.Narration.AudioContentType(), audio)
}

// readUpload builds an Upload from the multipart "image" field
func readUpload(c echo.Context) (usecase.Upload, error) {
	file, err := c.FormFile("image")
	if err != nil {
		return usecase.Upload{}, usecase.ErrEmptyUpload
	}
	if file.Size > usecase.MaxUploadBytes {
		return usecase.Upload{}, usecase.ErrUploadTooLarge
	}

	src, err := file.Open()
	if err != nil {
		return usecase.Upload{}, fmt.Errorf("failed to open upload: %w", err)
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, usecase.MaxUploadBytes+1))
	if err != nil {
		return usecase.Upload{}, fmt.Errorf("failed to read upload: %w", err)
	}

	explain, _ := strconv.ParseBool(c.FormValue("explain"))
	upload := usecase.Upload{
		Filename:    file.Filename,
		ContentType: file.Header.Get(echo.HeaderContentType),
		Data:        data,
		Voice:       c.FormValue("voice"),
		Explain:     explain,
	}
	return upload, upload.Validate()
}

func (h *handlers) narrateDocument(c echo.Context) error {
	upload, err := readUpload(c)
	if err != nil {
		return h.narrationError(c, err)
	}

	doc, audio, err := h.Narration.NarrateImage(c.Request().Context(), upload)
	if doc != nil {
		c.Response().Header().Set("X-Document-ID", doc.ID)
	}
	if err != nil {
		return h.narrationError(c, err)
	}

	return c.Blob(http.StatusOK, h.Narration.AudioContentType(), audio)
}

func (h *handlers) listDocuments(c echo.Context) error {
	limit := defaultListLimit
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return errorJSON(c, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
		}
		limit = min(parsed, maxListLimit)
	}

	docs, err := h.Narration.ListDocuments(c.Request().Context(), limit)
	if err != nil {
		return h.narrationError(c, err)
	}
	return c.JSON(http.StatusOK, docs)
}

func (h *handlers) getDocument(c echo.Context) error {
	doc, err := h.Narration.GetDocument(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.narrationError(c, err)
	}
	return c.JSON(http.StatusOK, doc)
}

func (h *handlers) deleteDocument(c echo.Context) error {
	if err := h.Narration.DeleteDocument(c.Request().Context(), c.Param("id")); err != nil {
		return h.narrationError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *handlers) startJob(c echo.Context) error {
	upload, err := readUpload(c)
	if err != nil {
		return h.narrationError(c, err)
	}

	jobID, err := h.Jobs.Start(c.Request().Context(), narration.DefinitionID, narration.NewData(upload))
	if err != nil {
		return h.narrationError(c, err)
	}

	h.logger.Info("Narration job accepted", zap.String("jobID", string(jobID)))
	return c.JSON(http.StatusAccepted, JobAcceptedResponse{
		JobID:     string(jobID),
		StatusURL: "/api/v1/jobs/" + string(jobID),
	})
}

func (h *handlers) getJob(c echo.Context) error {
	job, ok := h.Jobs.Get(jobs.JobID(c.Param("id")))
	if !ok {
		return h.narrationError(c, jobs.ErrJobNotFound)
	}

	resp := JobResponse{Job: job, DocumentID: narration.DocumentID(job)}
	if _, ok := narration.Audio(job); ok {
		resp.AudioURL = "/api/v1/jobs/" + string(job.ID) + "/audio"
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *handlers) getJobAudio(c echo.Context) error {
	job, ok := h.Jobs.Get(jobs.JobID(c.Param("id")))
	if !ok {
		return h.narrationError(c, jobs.ErrJobNotFound)
	}

	audio, ok := narration.Audio(job)
	if !ok || job.State != jobs.JobStateCompleted {
		return errorJSON(c, http.StatusConflict, "audio_not_ready", fmt.Sprintf("job is %s", job.State))
	}
	return c.Blob(http.StatusOK, h.Narration.AudioContentType(), audio)
}

func (h *handlers) listSamples(c echo.Context) error {
	return c.JSON(http.StatusOK, h.Narration.Samples())
}

// getSample answers unknown kinds with the fallback problem
func (h *handlers) getSample(c echo.Context) error {
	return c.JSON(http.StatusOK, h.Narration.Sample(c.Param("kind")))
}

func (h *handlers) listVoices(c echo.Context) error {
	return c.JSON(http.StatusOK, h.Narration.Voices())
}

// websocket upgrades the connection, checking the JWT first when auth is on
func (h *handlers) websocket(c echo.Context) error {
	if h.Authenticator != nil {
		token, err := auth.BearerToken(c.Request())
		if err != nil {
			token = c.QueryParam("token")
		}
		if token == "" {
			h.logger.Warn("WebSocket connection rejected: missing token")
			return errorJSON(c, http.StatusUnauthorized, "missing_token", "JWT token is required")
		}

		claims, err := h.Authenticator.ValidateToken(token)
		if err != nil {
			h.logger.Warn("WebSocket connection rejected: invalid token", zap.Error(err))
			return errorJSON(c, http.StatusUnauthorized, "invalid_token", "Invalid or expired JWT token")
		}
		h.logger.Info("WebSocket connection authenticated", zap.String("clientID", claims.ClientID))
	}

	return websocket.HandleWebSocket(h.Hub, c, h.logger)
}
