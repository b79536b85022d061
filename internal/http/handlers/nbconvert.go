package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"nbconvert/internal/bundle"
	"nbconvert/internal/cache"
	"nbconvert/internal/config"
	"nbconvert/internal/domain"
	"nbconvert/internal/exporters"
	"nbconvert/internal/infra/chrome"
	"nbconvert/internal/infra/logging"
	"nbconvert/internal/metrics"
	"nbconvert/internal/nbformat"
	"nbconvert/internal/storage"
)

var formatPattern = regexp.MustCompile(`^\w+$`)

// StatsProvider reports the state of the PDF renderer.
type StatsProvider interface {
	Stats() chrome.Stats
}

// Deps are the collaborators of ConvertService. Cache, Metrics and Chrome
// are optional.
type Deps struct {
	Config   config.Config
	Registry *exporters.Registry
	Store    *storage.Store
	Cache    *cache.Results
	Metrics  *metrics.Metrics
	Chrome   StatsProvider
}

// ConvertService serves the conversion endpoints. It keeps no per-request
// state.
type ConvertService struct {
	deps Deps
}

// NewConvertService returns a service over deps.
func NewConvertService(deps Deps) *ConvertService {
	return &ConvertService{deps: deps}
}

// FileConversion converts a stored notebook:
// GET /nbconvert/:format/<path>/<name>.ipynb[?download=true].
func (s *ConvertService) FileConversion(c *fiber.Ctx) error {
	format := c.Params("format")
	rest, err := url.PathUnescape(c.Params("*"))
	if err != nil || !formatPattern.MatchString(format) {
		return fiber.ErrNotFound
	}
	dir, name := path.Split(rest)
	if !strings.HasSuffix(name, storage.Extension) || name == storage.Extension {
		return fiber.ErrNotFound
	}

	exp, err := s.deps.Registry.Get(format)
	if err != nil {
		return toHTTPError(err, format, name)
	}

	info, err := s.deps.Store.Stat(name, dir)
	if err != nil {
		return toHTTPError(err, format, name)
	}
	c.Set(fiber.HeaderLastModified, info.Modified.UTC().Format(http.TimeFormat))

	download := strings.EqualFold(c.Query("download"), "true")
	base := strings.TrimSuffix(name, storage.Extension)

	key := cache.FileKey(format, info.OSPath, info.Size, info.Modified, download)
	if hit, _ := s.deps.Cache.Get(c.UserContext(), key); hit != nil {
		s.deps.Metrics.Observe(format, metrics.SourceFile, metrics.ResultCached, 0)
		return send(c, *hit)
	}

	start := time.Now()
	output, res, err := exporters.FromFile(c.UserContext(), exp, info.OSPath)
	if err != nil {
		s.deps.Metrics.Observe(format, metrics.SourceFile, metrics.ResultError, time.Since(start))
		logging.Error("Conversion failed", "format", format, "name", name, "path", info.Path, "error", err)
		if errors.Is(err, domain.ErrInvalidNotebook) || errors.Is(err, domain.ErrUnsupportedVersion) {
			return fiber.NewError(fiber.StatusInternalServerError, "Notebook could not be read: "+err.Error())
		}
		return toHTTPError(err, format, name)
	}

	entry, err := s.entry(exp, base, download, output, res)
	if err != nil {
		s.deps.Metrics.Observe(format, metrics.SourceFile, metrics.ResultError, time.Since(start))
		return err
	}
	s.deps.Metrics.Observe(format, metrics.SourceFile, metrics.ResultOK, time.Since(start))
	s.deps.Cache.Set(c.UserContext(), key, entry)

	logging.Info("Notebook converted", "format", format, "name", name, "path", info.Path,
		"bytes", len(entry.Body), "request_id", requestID(c))
	return send(c, entry)
}

type inlineRequest struct {
	Content json.RawMessage `json:"content"`
}

// InlineConversion converts the notebook posted as {"content": ...}:
// POST /nbconvert/:format.
func (s *ConvertService) InlineConversion(c *fiber.Ctx) error {
	format := c.Params("format")
	if !formatPattern.MatchString(format) {
		return fiber.ErrNotFound
	}
	exp, err := s.deps.Registry.Get(format)
	if err != nil {
		return toHTTPError(err, format, "")
	}

	var req inlineRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid JSON in body of request")
	}
	if len(req.Content) == 0 || string(req.Content) == "null" {
		return fiber.NewError(fiber.StatusBadRequest, "Missing content in body of request")
	}

	key := cache.InlineKey(format, req.Content)
	if hit, _ := s.deps.Cache.Get(c.UserContext(), key); hit != nil {
		s.deps.Metrics.Observe(format, metrics.SourceInline, metrics.ResultCached, 0)
		return send(c, *hit)
	}

	nb, err := nbformat.Read(req.Content)
	if err != nil {
		s.deps.Metrics.Observe(format, metrics.SourceInline, metrics.ResultError, 0)
		return toHTTPError(err, format, "")
	}

	start := time.Now()
	output, res, err := exp.FromNotebook(c.UserContext(), nb, exporters.NewResources(exporters.DefaultName))
	if err != nil {
		s.deps.Metrics.Observe(format, metrics.SourceInline, metrics.ResultError, time.Since(start))
		logging.Error("Conversion failed", "format", format, "error", err)
		return toHTTPError(err, format, "")
	}

	entry, err := s.entry(exp, exporters.DefaultName, false, output, res)
	if err != nil {
		s.deps.Metrics.Observe(format, metrics.SourceInline, metrics.ResultError, time.Since(start))
		return err
	}
	s.deps.Metrics.Observe(format, metrics.SourceInline, metrics.ResultOK, time.Since(start))
	s.deps.Cache.Set(c.UserContext(), key, entry)

	logging.Info("Notebook converted", "format", format, "bytes", len(entry.Body), "request_id", requestID(c))
	return send(c, entry)
}

// FormatCatalog lists the registered formats and their output MIME types:
// GET /nbconvert.
func (s *ConvertService) FormatCatalog(c *fiber.Ctx) error {
	out := make(map[string]fiber.Map)
	for name, mime := range s.deps.Registry.Mimetypes() {
		out[name] = fiber.Map{"output_mimetype": mime}
	}
	return c.JSON(out)
}

// ChromeStats exposes the PDF renderer pool state.
func (s *ConvertService) ChromeStats(c *fiber.Ctx) error {
	if s.deps.Chrome == nil {
		return c.JSON(chrome.Stats{
			PoolSizeConf: s.deps.Config.PDF.ChromePoolSize,
			TimeoutSecs:  s.deps.Config.PDF.TimeoutSecs,
		})
	}
	return c.JSON(s.deps.Chrome.Stats())
}

// entry builds the response for a finished conversion. Auxiliary files are
// zipped together with the output when bundling is enabled and rejected
// otherwise.
func (s *ConvertService) entry(exp exporters.Exporter, base string, download bool, output []byte, res *exporters.Resources) (cache.Entry, error) {
	filename := base + "." + exp.FileExtension()
	e := cache.Entry{Body: output}
	if mime := exp.OutputMimetype(); mime != "" {
		e.ContentType = mime + "; charset=utf-8"
	}
	if download {
		e.Filename = filename
	}

	if res.HasFiles() {
		if !s.deps.Config.Conversion.BundleResources {
			return cache.Entry{}, fiber.NewError(fiber.StatusNotImplemented,
				"Conversion produced resource files; bundling is disabled")
		}
		zipped, err := bundle.Zip(filename, output, res)
		if err != nil {
			logging.Error("Bundling resources failed", "error", err)
			return cache.Entry{}, fiber.NewError(fiber.StatusInternalServerError, "Bundling resources failed")
		}
		e = cache.Entry{ContentType: bundle.ContentType, Filename: bundle.Filename(base), Body: zipped}
	}

	if limit := s.deps.Config.Conversion.MaxOutputBytes; limit > 0 && int64(len(e.Body)) > limit {
		return cache.Entry{}, fiber.NewError(fiber.StatusRequestEntityTooLarge, "Conversion output exceeds allowed size")
	}
	return e, nil
}

func send(c *fiber.Ctx, e cache.Entry) error {
	if e.ContentType != "" {
		c.Set(fiber.HeaderContentType, e.ContentType)
	}
	if e.Filename != "" {
		c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, e.Filename))
	}
	return c.Send(e.Body)
}

func requestID(c *fiber.Ctx) string {
	if id := c.GetRespHeader(fiber.HeaderXRequestID); id != "" {
		return id
	}
	return c.Get(fiber.HeaderXRequestID)
}

// toHTTPError maps conversion errors to status codes.
func toHTTPError(err error, format, name string) error {
	switch {
	case errors.Is(err, domain.ErrUnknownFormat):
		return fiber.NewError(fiber.StatusNotFound, "Unknown format: "+format)
	case errors.Is(err, domain.ErrNotebookNotFound):
		return fiber.NewError(fiber.StatusNotFound, "Notebook does not exist: "+name)
	case errors.Is(err, domain.ErrInvalidNotebook), errors.Is(err, domain.ErrUnsupportedVersion):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.NewError(fiber.StatusRequestTimeout, "Conversion took too long")
	case chrome.IsSessionInterrupted(err):
		return fiber.NewError(fiber.StatusServiceUnavailable, "Chrome session interrupted")
	default:
		return fiber.NewError(fiber.StatusInternalServerError, "Conversion failed: "+err.Error())
	}
}
