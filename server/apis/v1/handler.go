package v1

import (
	"fmt"
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	json "github.com/goccy/go-json"

	"github.com/vivekanand1101/statscache/pkg/aggregator"
	"github.com/vivekanand1101/statscache/pkg/model"
	"github.com/vivekanand1101/statscache/pkg/plugin"
	sharedutil "github.com/vivekanand1101/statscache/pkg/shared/util"
	"github.com/vivekanand1101/statscache/pkg/store"
	"github.com/vivekanand1101/statscache/pkg/window"
)

const (
	defaultRowsPerPage = 100
	maxRowsPerPage     = 100
)

type Handler struct {
	store   store.Store
	plugins func() []plugin.Plugin
	runners func() []aggregator.RunnerInfo
	clock   window.Clock
}

// HandlerOption customizes a handler.
type HandlerOption func(*Handler)

// WithRunnerInfo wires in per-plugin runner state for the runners endpoint
// and readiness.
func WithRunnerInfo(fn func() []aggregator.RunnerInfo) HandlerOption {
	return func(h *Handler) {
		h.runners = fn
	}
}

// WithClock overrides the time source, for tests.
func WithClock(clock window.Clock) HandlerOption {
	return func(h *Handler) {
		h.clock = clock
	}
}

// NewHandler creates a handler serving the models of the given plugins.
// The plugin set is re-read per request so a config reload is visible
// without restarting the server.
func NewHandler(s store.Store, plugins func() []plugin.Plugin, opts ...HandlerOption) *Handler {
	h := &Handler{
		store:   s,
		plugins: plugins,
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// respondJSON marshals through goccy and writes, bypassing gin's default
// encoder.
func respondJSON(c *gin.Context, code int, obj interface{}) {
	b, err := json.Marshal(obj)
	if err != nil {
		c.String(http.StatusInternalServerError, "failed to marshal response: %v", err)
		return
	}
	c.Data(code, "application/json; charset=utf-8", b)
}

func errResponse(c *gin.Context, code int, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	respondJSON(c, code, NewStatscacheAPIResponse(&msg, nil))
}

// acceptsAny reports whether the Accept header admits one of the given
// media types. An empty header or a wildcard admits anything.
func acceptsAny(c *gin.Context, types ...string) bool {
	accept := c.GetHeader("Accept")
	if accept == "" {
		return true
	}
	for _, part := range strings.Split(accept, ",") {
		mt := strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
		if mt == "*/*" {
			return true
		}
		for _, want := range types {
			if mt == want {
				return true
			}
			if strings.HasSuffix(mt, "/*") && strings.HasPrefix(want, strings.TrimSuffix(mt, "*")) {
				return true
			}
		}
	}
	return false
}

// wantsCSV requires an explicit CSV media type; a wildcard stays JSON.
func wantsCSV(c *gin.Context) bool {
	for _, part := range strings.Split(c.GetHeader("Accept"), ",") {
		mt := strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
		if mt == "text/csv" || mt == "application/csv" {
			return true
		}
	}
	return false
}

func notAcceptable(c *gin.Context) {
	errResponse(c, http.StatusNotAcceptable, "content-type(s) not available")
}

func (h *Handler) find(ident string) plugin.Plugin {
	for _, p := range h.plugins() {
		if p.Ident() == ident {
			return p
		}
	}
	return nil
}

// Index is JSON-only and points API clients at the plugin listing.
func (h *Handler) Index(c *gin.Context) {
	if !acceptsAny(c, "application/json", "text/json") {
		notAcceptable(c)
		return
	}
	respondJSON(c, http.StatusOK, NewStatscacheAPIResponse(nil, gin.H{"plugins": "/api/v1/plugins"}))
}

// ListPlugins returns the idents of all registered plugins.
func (h *Handler) ListPlugins(c *gin.Context) {
	idents := []string{}
	for _, p := range h.plugins() {
		idents = append(idents, p.Ident())
	}
	sort.Strings(idents)
	respondJSON(c, http.StatusOK, NewStatscacheAPIResponse(nil, idents))
}

// GetPluginLayout returns the column layout of one plugin's model.
// Layouts are JSON-only.
func (h *Handler) GetPluginLayout(c *gin.Context) {
	if !acceptsAny(c, "application/json", "text/json") {
		notAcceptable(c)
		return
	}
	p := h.find(c.Param("ident"))
	if p == nil {
		errResponse(c, http.StatusNotFound, "plugin %q is not registered", c.Param("ident"))
		return
	}
	respondJSON(c, http.StatusOK, NewStatscacheAPIResponse(nil, p.Layout()))
}

// ListRunners returns the live state of every plugin runner.
func (h *Handler) ListRunners(c *gin.Context) {
	if h.runners == nil {
		respondJSON(c, http.StatusOK, NewStatscacheAPIResponse(nil, []aggregator.RunnerInfo{}))
		return
	}
	respondJSON(c, http.StatusOK, NewStatscacheAPIResponse(nil, h.runners()))
}

// Readyz reports ready once every runner has caught up.
func (h *Handler) Readyz(c *gin.Context) {
	if h.runners != nil {
		for _, r := range h.runners() {
			if r.State != aggregator.StateSteady {
				errResponse(c, http.StatusServiceUnavailable, "plugin %q is still catching up", r.Ident)
				return
			}
		}
	}
	c.Status(http.StatusOK)
}

// GetPluginRows pages through one plugin's model rows.
func (h *Handler) GetPluginRows(c *gin.Context) {
	p := h.find(c.Param("ident"))
	if p == nil {
		errResponse(c, http.StatusNotFound, "plugin %q is not registered", c.Param("ident"))
		return
	}

	f, err := h.parseFilter(c)
	if err != nil {
		errResponse(c, http.StatusBadRequest, "%v", err)
		return
	}
	rows, err := h.store.Query(c.Request.Context(), p.Ident(), f)
	if err != nil {
		errResponse(c, http.StatusInternalServerError, "failed to query model %q: %v", p.Ident(), err)
		return
	}
	if rows == nil {
		rows = []model.Row{}
	}
	if wantsPagination(c) {
		rows, err = h.paginate(c, rows)
		if err != nil {
			errResponse(c, http.StatusBadRequest, "%v", err)
			return
		}
	}
	h.render(c, p, rows)
}

func (h *Handler) parseFilter(c *gin.Context) (store.RowFilter, error) {
	f := store.RowFilter{Order: store.OrderDesc, Stop: h.clock()}
	switch c.Query("order") {
	case "", "desc":
	case "asc":
		f.Order = store.OrderAsc
	default:
		return f, fmt.Errorf("order must be asc or desc, got %q", c.Query("order"))
	}
	if v := c.Query("start"); v != "" {
		t, err := sharedutil.ParseTimestamp(v)
		if err != nil {
			return f, fmt.Errorf("unparseable start %q: %w", v, err)
		}
		f.Start = t
	}
	if v := c.Query("stop"); v != "" {
		t, err := sharedutil.ParseTimestamp(v)
		if err != nil {
			return f, fmt.Errorf("unparseable stop %q: %w", v, err)
		}
		f.Stop = t
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, fmt.Errorf("limit must be a non-negative integer, got %q", v)
		}
		f.Limit = n
	}
	return f, nil
}

// wantsPagination mirrors the query surface: an explicit paginate flag or
// the presence of either paging parameter opts in.
func wantsPagination(c *gin.Context) bool {
	switch c.Query("paginate") {
	case "yes", "true":
		return true
	}
	_, hasPage := c.GetQuery("page")
	_, hasPerPage := c.GetQuery("rows_per_page")
	return hasPage || hasPerPage
}

func (h *Handler) paginate(c *gin.Context, rows []model.Row) ([]model.Row, error) {
	page := 1
	if v := c.Query("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("page must be a positive integer, got %q", v)
		}
		page = n
	}
	perPage := defaultRowsPerPage
	if v := c.Query("rows_per_page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("rows_per_page must be a positive integer, got %q", v)
		}
		if n > maxRowsPerPage {
			n = maxRowsPerPage
		}
		perPage = n
	}

	pages := int(math.Ceil(float64(len(rows)) / float64(perPage)))
	if pages == 0 {
		pages = 1
	}
	c.Header("X-Link-Number", strconv.Itoa(page))
	c.Header("X-Link-Count", strconv.Itoa(pages))
	var links []string
	if page > 1 {
		links = append(links, pageLink(c, page-1, perPage, "prev"))
	}
	if page < pages {
		links = append(links, pageLink(c, page+1, perPage, "next"))
	}
	if len(links) > 0 {
		c.Header("Link", strings.Join(links, ", "))
	}

	lo := (page - 1) * perPage
	if lo >= len(rows) {
		return []model.Row{}, nil
	}
	hi := lo + perPage
	if hi > len(rows) {
		hi = len(rows)
	}
	return rows[lo:hi], nil
}

func pageLink(c *gin.Context, page, perPage int, rel string) string {
	u := *c.Request.URL
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	q.Set("rows_per_page", strconv.Itoa(perPage))
	u.RawQuery = q.Encode()
	return fmt.Sprintf("<%s>; rel=%q", u.String(), rel)
}

func (h *Handler) render(c *gin.Context, p plugin.Plugin, rows []model.Row) {
	if wantsCSV(c) {
		c.Header("Content-Type", "text/csv; charset=utf-8")
		c.Status(http.StatusOK)
		if err := model.WriteCSV(c.Writer, rows); err != nil {
			_ = c.Error(err)
		}
		return
	}
	if !acceptsAny(c, "application/json", "text/json", "application/javascript", "text/javascript") {
		notAcceptable(c)
		return
	}
	if callback := c.Query("callback"); callback != "" {
		c.JSONP(http.StatusOK, NewStatscacheAPIResponse(nil, rows))
		return
	}
	respondJSON(c, http.StatusOK, NewStatscacheAPIResponse(nil, rows))
}
