package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/tcgvault/backend/internal/domain"
	"github.com/tcgvault/backend/internal/usecase"
	"go.uber.org/zap"
)

const defaultMaxFileBytes = 5 << 20

// Handler holds dependencies for HTTP handlers
type Handler struct {
	runs         *usecase.RunManager
	parser       *usecase.CSVParser
	collection   *usecase.CollectionService
	defaultGame  domain.Game
	maxFileBytes int64
	logger       *zap.Logger
}

// HandlerConfig holds request limits and defaults
type HandlerConfig struct {
	DefaultGame  domain.Game
	MaxFileBytes int64
}

// NewHandler creates a new HTTP handler
func NewHandler(
	runs *usecase.RunManager,
	parser *usecase.CSVParser,
	collection *usecase.CollectionService,
	logger *zap.Logger,
	config HandlerConfig,
) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if parser == nil {
		parser = usecase.NewCSVParser(logger)
	}
	if collection == nil {
		collection = usecase.NewCollectionService(nil, logger)
	}
	game := config.DefaultGame
	if game == "" {
		game = domain.GameMagic
	}
	limit := config.MaxFileBytes
	if limit <= 0 {
		limit = defaultMaxFileBytes
	}
	return &Handler{
		runs:         runs,
		parser:       parser,
		collection:   collection,
		defaultGame:  game,
		maxFileBytes: limit,
		logger:       logger.Named("http"),
	}
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "healthy",
		"service":     "tcgvault-importer",
		"version":     "1.0.0",
		"persistence": h.collection.Enabled(),
	})
}

// ParseCSV parses an uploaded file and returns the mapped rows without searching
func (h *Handler) ParseCSV(c *gin.Context) {
	text, err := h.readUpload(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	cards, err := h.parser.Parse(text)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"cards": cards,
		"count": len(cards),
	})
}

// StartImport starts a background import and returns its id
func (h *Handler) StartImport(c *gin.Context) {
	if h.runs == nil {
		h.respondError(c, usecase.ErrManagerClosed)
		return
	}

	game := h.defaultGame
	if g := firstNonEmpty(c.PostForm("game"), c.Query("game")); g != "" {
		parsed, err := domain.ParseGame(g)
		if err != nil {
			h.respondError(c, err)
			return
		}
		game = parsed
	}

	text, err := h.readUpload(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	run, err := h.runs.Start(text, game)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.Header("Location", "/api/v1/imports/"+run.ID)
	c.JSON(http.StatusAccepted, gin.H{
		"id":   run.ID,
		"game": run.Game,
		"rows": run.Rows,
	})
}

// GetImport returns the state of a run and, once finished, its report
func (h *Handler) GetImport(c *gin.Context) {
	run, ok := h.lookupRun(c)
	if !ok {
		return
	}

	events, _, _ := run.EventsSince(0)
	body := gin.H{
		"id":         run.ID,
		"game":       run.Game,
		"state":      run.State(),
		"rows":       run.Rows,
		"processed":  countFinished(events),
		"created_at": run.CreatedAt,
	}
	if report := run.Report(); report != nil {
		body["summary"] = report.Summary
		body["results"] = report.Results
	}
	c.JSON(http.StatusOK, body)
}

// StreamEvents streams progress events as server-sent events.
// Past events are replayed first; the stream ends with a "complete" event.
func (h *Handler) StreamEvents(c *gin.Context) {
	run, ok := h.lookupRun(c)
	if !ok {
		return
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	sent := 0
	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		events, changed, finished := run.EventsSince(sent)
		for _, e := range events {
			c.SSEvent("progress", e)
		}
		sent += len(events)

		if finished {
			c.SSEvent("complete", run.Report().Summary)
			return false
		}
		if len(events) > 0 {
			return true
		}

		select {
		case <-changed:
			return true
		case <-ctx.Done():
			return false
		}
	})
}

// CancelImport requests cooperative cancellation of a run
func (h *Handler) CancelImport(c *gin.Context) {
	run, ok := h.lookupRun(c)
	if !ok {
		return
	}
	run.Cancel()

	c.JSON(http.StatusAccepted, gin.H{
		"id":    run.ID,
		"state": run.State(),
	})
}

// CommitImport saves the successful rows of a finished run to a user's collection
func (h *Handler) CommitImport(c *gin.Context) {
	run, ok := h.lookupRun(c)
	if !ok {
		return
	}

	userID := firstNonEmpty(c.PostForm("user_id"), c.Query("user_id"))
	saved, err := h.collection.Commit(c.Request.Context(), userID, run.Report())
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":    run.ID,
		"saved": saved,
	})
}

// FailedCSV downloads the failed rows of a finished run as CSV
func (h *Handler) FailedCSV(c *gin.Context) {
	run, ok := h.lookupRun(c)
	if !ok {
		return
	}

	report := run.Report()
	if report == nil {
		h.respondError(c, domain.ErrRunInProgress)
		return
	}

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="failed-%s.csv"`, run.ID))
	c.Status(http.StatusOK)
	if _, err := usecase.WriteFailedRows(c.Writer, report.Results); err != nil {
		h.logger.Warn("failed to write failed rows", zap.String("run_id", run.ID), zap.Error(err))
	}
}

func (h *Handler) lookupRun(c *gin.Context) (*usecase.Run, bool) {
	if h.runs == nil {
		h.respondError(c, domain.ErrRunNotFound)
		return nil, false
	}
	run, err := h.runs.Get(c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return nil, false
	}
	return run, true
}

var errFileTooLarge = errors.New("file too large")

// readUpload returns the CSV text from the multipart "file" field, or the raw
// body for text/csv and text/plain requests
func (h *Handler) readUpload(c *gin.Context) (string, error) {
	var r io.Reader
	ct := c.ContentType()
	switch {
	case ct == "text/csv" || ct == "text/plain":
		r = c.Request.Body
	default:
		fh, err := c.FormFile("file")
		if err != nil {
			return "", fmt.Errorf("%w: multipart field \"file\" is required", domain.ErrInvalidRequest)
		}
		if fh.Size > h.maxFileBytes {
			return "", errFileTooLarge
		}
		f, err := fh.Open()
		if err != nil {
			return "", fmt.Errorf("failed to open upload: %w", err)
		}
		defer f.Close()
		r = f
	}

	data, err := io.ReadAll(io.LimitReader(r, h.maxFileBytes+1))
	if err != nil {
		return "", fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(data)) > h.maxFileBytes {
		return "", errFileTooLarge
	}
	return string(data), nil
}

// respondError maps domain errors to HTTP status codes
func (h *Handler) respondError(c *gin.Context, err error) {
	var formatErr *domain.FormatError
	switch {
	case errors.As(err, &formatErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":   formatErr.Error(),
			"headers": formatErr.Headers,
		})
	case errors.Is(err, errFileTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error": fmt.Sprintf("file exceeds %d bytes", h.maxFileBytes),
		})
	case errors.Is(err, domain.ErrInvalidRequest), errors.Is(err, domain.ErrUnsupportedGame):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrRunNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrRunInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrPersistenceUnavailable), errors.Is(err, usecase.ErrManagerClosed):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		h.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

// countFinished counts rows that reached a terminal phase
func countFinished(events []domain.ProgressEvent) int {
	n := 0
	for _, e := range events {
		if e.Phase != domain.PhaseProcessing {
			n++
		}
	}
	return n
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
