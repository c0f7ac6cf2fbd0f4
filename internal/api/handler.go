package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/insightdelivered/hsbc-statement-converter/internal/cache"
	"github.com/insightdelivered/hsbc-statement-converter/internal/extractor"
	"github.com/insightdelivered/hsbc-statement-converter/internal/logger"
	"github.com/insightdelivered/hsbc-statement-converter/internal/models"
	"github.com/insightdelivered/hsbc-statement-converter/internal/parser"
	"github.com/insightdelivered/hsbc-statement-converter/internal/writer"
)

// ConvertResponse is the JSON response from the /api/convert endpoint.
type ConvertResponse struct {
	Success      bool                 `json:"success"`
	Error        string               `json:"error,omitempty"`
	ID           string               `json:"id,omitempty"`
	AccountInfo  *AccountInfo         `json:"accountInfo,omitempty"`
	Records      []models.Record      `json:"records"`
	Diagnostics  []models.Diagnostic  `json:"diagnostics"`
	FailedPages  []models.PageFailure `json:"failedPages,omitempty"`
	CSV          string               `json:"csv,omitempty"`
	TotalPaidOut decimal.Decimal      `json:"totalPaidOut"`
	TotalPaidIn  decimal.Decimal      `json:"totalPaidIn"`
	Count        int                  `json:"count"`
	Incomplete   int                  `json:"incomplete"`
	Warnings     []string             `json:"warnings,omitempty"`
	Cached       bool                 `json:"cached"`
	Version      string               `json:"version,omitempty"`
}

// AccountInfo holds account metadata for the JSON response.
type AccountInfo struct {
	Holder   string `json:"holder,omitempty"`
	Number   string `json:"number,omitempty"`
	SortCode string `json:"sortCode,omitempty"`
	Period   string `json:"period,omitempty"`
}

// Handler holds the HTTP handlers for the API.
type Handler struct {
	Engine *parser.Engine
	Cache  cache.Cache
	Writer writer.Options
	// ExtractMethod and CharWidth configure server side PDF extraction.
	ExtractMethod string
	CharWidth     float64
	Log           zerolog.Logger
	Version       string
}

// NewApp builds the fiber app serving the API.
func NewApp(h *Handler, bodyLimitMB int) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "hsbc-statement-converter",
		BodyLimit:             bodyLimitMB << 20,
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				code = fe.Code
			}
			return writeError(c, code, err.Error())
		},
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "POST, GET, OPTIONS",
		AllowHeaders: "Content-Type",
	}))
	app.Use(h.requestLogger)

	app.Get("/api/health", h.HandleHealth)
	app.Post("/api/convert", h.HandleConvert)
	return app
}

// requestLogger tags every request with an ID and puts a logger carrying
// it in the request context.
func (h *Handler) requestLogger(c *fiber.Ctx) error {
	id := uuid.NewString()
	c.Locals("requestID", id)
	log := h.Log.With().Str("request_id", id).Logger()
	c.SetUserContext(logger.WithContext(c.UserContext(), log))

	start := time.Now()
	err := c.Next()
	log.Info().
		Str("method", c.Method()).
		Str("path", c.Path()).
		Int("status", c.Response().StatusCode()).
		Dur("duration", time.Since(start)).
		Msg("request")
	return err
}

func (h *Handler) HandleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"engine":  "fiber",
		"version": h.Version,
	})
}

func (h *Handler) HandleConvert(c *fiber.Ctx) error {
	ctx := c.UserContext()
	log := logger.FromContext(ctx)

	includeHeader := c.FormValue("header") != "false"

	engine := h.Engine
	if v := c.FormValue("visThreshold"); v != "" {
		threshold, err := strconv.Atoi(v)
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, fmt.Sprintf("Invalid visThreshold %q.", v))
		}
		opts := h.Engine.Options()
		opts.VISThreshold = threshold
		if engine, err = parser.NewEngine(opts, log); err != nil {
			return writeError(c, fiber.StatusBadRequest, err.Error())
		}
	}

	// Pre-extracted text (pdftotext output or pasted text) wins over the file.
	content, isPDF, err := readInput(c)
	if err != nil {
		return writeError(c, fiber.StatusBadRequest, err.Error())
	}

	key := cache.Key(content, []byte(fmt.Sprintf("%v|%+v|%+v|%v|%s", isPDF, engine.Options(), h.Writer, includeHeader, h.Version)))
	if h.Cache != nil {
		cached, ok, err := h.Cache.Get(ctx, key)
		if err != nil {
			log.Warn().Err(err).Msg("cache lookup failed")
		}
		if ok {
			var resp ConvertResponse
			if err := json.Unmarshal(cached, &resp); err == nil {
				resp.ID = requestID(c)
				resp.Cached = true
				return c.JSON(resp)
			}
			log.Warn().Msg("discarding unreadable cache entry")
		}
	}

	var pages [][]string
	if isPDF {
		pages, err = h.extractPDF(c, content, log)
		if err != nil {
			return writeError(c, fiber.StatusUnprocessableEntity, fmt.Sprintf("PDF extraction failed: %v", err))
		}
	} else {
		pages = extractor.SplitPages(string(content), extractor.PageBreak)
	}
	if len(pages) == 0 {
		return writeError(c, fiber.StatusUnprocessableEntity, "No text found in the upload.")
	}

	res, err := engine.Parse(ctx, pages)
	if err != nil {
		return writeError(c, fiber.StatusInternalServerError, fmt.Sprintf("Parsing failed: %v", err))
	}
	info := res.Statement

	opts := h.Writer
	opts.IncludeHeader = includeHeader
	csvWriter, err := writer.New(writer.FormatCSV, opts)
	if err != nil {
		return writeError(c, fiber.StatusInternalServerError, err.Error())
	}
	var csvBuf bytes.Buffer
	if err := csvWriter.Write(&csvBuf, info); err != nil {
		return writeError(c, fiber.StatusInternalServerError, fmt.Sprintf("CSV generation failed: %v", err))
	}

	resp := buildResponse(info, csvBuf.String(), h.Version)
	if !parser.LooksLikeHSBC(pages, engine.Options()) {
		resp.Warnings = append(resp.Warnings, "The document does not look like an HSBC statement.")
	}
	if len(info.Records) == 0 {
		resp.Warnings = append(resp.Warnings, "No transactions found. The text may not match the expected layout.")
	}

	if h.Cache != nil {
		if data, err := json.Marshal(resp); err == nil {
			if err := h.Cache.Set(ctx, key, data); err != nil {
				log.Warn().Err(err).Msg("cache store failed")
			}
		}
	}

	resp.ID = requestID(c)
	return c.JSON(resp)
}

// readInput returns the uploaded content and whether it is a PDF.
func readInput(c *fiber.Ctx) ([]byte, bool, error) {
	if text := c.FormValue("extractedText"); strings.TrimSpace(text) != "" {
		return []byte(text), false, nil
	}

	header, err := c.FormFile("file")
	if err != nil {
		return nil, false, errors.New("No file uploaded. Use form field 'file' or 'extractedText'.")
	}
	if !strings.HasSuffix(strings.ToLower(header.Filename), ".pdf") {
		return nil, false, errors.New("Only PDF files are supported.")
	}

	f, err := header.Open()
	if err != nil {
		return nil, false, fmt.Errorf("Failed to read uploaded file: %v", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, false, fmt.Errorf("Failed to read uploaded file: %v", err)
	}
	return data, true, nil
}

// extractPDF saves the upload to a temp file for the extractors, which
// work on paths.
func (h *Handler) extractPDF(c *fiber.Ctx, data []byte, log zerolog.Logger) ([][]string, error) {
	tmpFile, err := os.CreateTemp("", "statement-*.pdf")
	if err != nil {
		return nil, errors.New("failed to create temp file")
	}
	defer os.Remove(tmpFile.Name())

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return nil, errors.New("failed to save uploaded file")
	}
	if err := tmpFile.Close(); err != nil {
		return nil, err
	}

	src := extractor.NewPDFSource(tmpFile.Name(), log)
	if h.ExtractMethod != "" {
		src.Method = h.ExtractMethod
	}
	if h.CharWidth > 0 {
		src.CharWidth = h.CharWidth
	}
	return src.Pages(c.UserContext())
}

func buildResponse(info *models.StatementInfo, csv, version string) ConvertResponse {
	// nil slices marshal to null, not []
	records := info.Records
	if records == nil {
		records = []models.Record{}
	}
	diags := info.Diagnostics
	if diags == nil {
		diags = []models.Diagnostic{}
	}

	totalOut, totalIn := decimal.Zero, decimal.Zero
	for _, r := range records {
		if r.PaidOut.Valid {
			totalOut = totalOut.Add(r.PaidOut.Decimal)
		}
		if r.PaidIn.Valid {
			totalIn = totalIn.Add(r.PaidIn.Decimal)
		}
	}

	resp := ConvertResponse{
		Success:      true,
		Records:      records,
		Diagnostics:  diags,
		FailedPages:  info.FailedPages,
		CSV:          csv,
		TotalPaidOut: totalOut,
		TotalPaidIn:  totalIn,
		Count:        len(records),
		Incomplete:   info.CountDiagnostics(models.KindIncompleteTransaction),
		Version:      version,
	}

	if info.AccountHolder != "" || info.AccountNumber != "" || info.SortCode != "" || info.StatementPeriod != "" {
		resp.AccountInfo = &AccountInfo{
			Holder:   info.AccountHolder,
			Number:   info.AccountNumber,
			SortCode: info.SortCode,
			Period:   info.StatementPeriod,
		}
	}
	return resp
}

// requestID returns the ID set by requestLogger, or a fresh one when the
// handler is mounted without it.
func requestID(c *fiber.Ctx) string {
	if id, ok := c.Locals("requestID").(string); ok && id != "" {
		return id
	}
	return uuid.NewString()
}

func writeError(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(ConvertResponse{
		Success: false,
		Error:   msg,
	})
}
