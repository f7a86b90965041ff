// Package httpapi serves the intake operations as a JSON API over fasthttp.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"github.com/go-ports/casefile/internal/buildinfo"
	"github.com/go-ports/casefile/internal/config"
	"github.com/go-ports/casefile/internal/db"
	"github.com/go-ports/casefile/internal/formstore"
	"github.com/go-ports/casefile/internal/metrics"
	"github.com/go-ports/casefile/internal/models"
	"github.com/go-ports/casefile/internal/schema"
	"github.com/go-ports/casefile/internal/service"
	"github.com/go-ports/casefile/internal/spouse"
)

const contentTypeJSON = "application/json"

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Status  int               `json:"status"`
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// Server routes requests to a service.Service.
type Server struct {
	svc     *service.Service
	limiter *RateLimiter
	prom    fasthttp.RequestHandler
}

// New returns a Server for svc, rate limited per cfg.
func New(svc *service.Service, cfg config.ServerConfig) *Server {
	return &Server{
		svc:     svc,
		limiter: NewRateLimiter(cfg.RateLimit, cfg.Burst),
		prom:    fasthttpadaptor.NewFastHTTPHandler(metrics.Handler()),
	}
}

// Handler returns the root request handler: rate limit, route, record
// metrics.
func (s *Server) Handler() fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		start := time.Now()
		method := string(ctx.Method())
		route := "unmatched"

		if !s.limiter.Allow(ctx.RemoteIP().String()) {
			metrics.RecordRateLimited()
			writeError(ctx, fasthttp.StatusTooManyRequests, "rate limit exceeded")
		} else {
			route = s.route(ctx)
		}

		ctx.Response.Header.Set(fasthttp.HeaderServer, "casefile/"+buildinfo.Version)
		metrics.ObserveRequest(method, route, ctx.Response.StatusCode(), time.Since(start))
	}
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &fasthttp.Server{
		Handler:            s.Handler(),
		Name:               "casefile",
		ReadTimeout:        15 * time.Second,
		WriteTimeout:       15 * time.Second,
		MaxRequestBodySize: 1 << 20,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.ShutdownWithContext(shutdownCtx); err != nil {
		return fmt.Errorf("httpapi: shutdown: %w", err)
	}
	return <-errc
}

// ListenAndServe listens on addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("httpapi: listen: %w", err)
	}
	slog.Info("httpapi: listening", "addr", ln.Addr().String())
	return s.Serve(ctx, ln)
}

// ---------------------------------------------------------------------------
// Routing
// ---------------------------------------------------------------------------

// route dispatches the request and returns the matched route pattern.
func (s *Server) route(ctx *fasthttp.RequestCtx) string {
	path := strings.Trim(string(ctx.Path()), "/")
	parts := strings.Split(path, "/")

	switch {
	case path == "healthz":
		ctx.SetStatusCode(fasthttp.StatusOK)
		ctx.SetBodyString("ok")
		return "/healthz"

	case path == "metrics":
		if !allow(ctx, fasthttp.MethodGet) {
			return "/metrics"
		}
		s.prom(ctx)
		return "/metrics"

	case len(parts) < 2 || parts[0] != "v1":
		writeError(ctx, fasthttp.StatusNotFound, "no route for "+string(ctx.Path()))
		return "unmatched"
	}

	switch {
	case len(parts) == 2 && parts[1] == "derive":
		if allow(ctx, fasthttp.MethodPost) {
			s.derive(ctx)
		}
		return "/v1/derive"

	case len(parts) == 2 && parts[1] == "validate":
		if allow(ctx, fasthttp.MethodPost) {
			s.validate(ctx)
		}
		return "/v1/validate"

	case len(parts) == 2 && parts[1] == "dashboard":
		if allow(ctx, fasthttp.MethodGet) {
			s.dashboard(ctx)
		}
		return "/v1/dashboard"

	case len(parts) == 3 && parts[1] == "sessions":
		if allow(ctx, fasthttp.MethodGet, fasthttp.MethodPatch, fasthttp.MethodDelete) {
			s.session(ctx, parts[2])
		}
		return "/v1/sessions/{id}"

	case len(parts) == 4 && parts[1] == "sessions" && parts[3] == "submit":
		if allow(ctx, fasthttp.MethodPost) {
			s.submit(ctx, parts[2])
		}
		return "/v1/sessions/{id}/submit"

	case len(parts) == 4 && parts[1] == "sessions" && parts[3] == "spouse":
		if allow(ctx, fasthttp.MethodGet, fasthttp.MethodPut, fasthttp.MethodDelete) {
			s.spouse(ctx, parts[2])
		}
		return "/v1/sessions/{id}/spouse"

	case len(parts) == 2 && parts[1] == "clients":
		if allow(ctx, fasthttp.MethodGet) {
			s.searchClients(ctx)
		}
		return "/v1/clients"

	case len(parts) == 3 && parts[1] == "clients":
		if allow(ctx, fasthttp.MethodGet) {
			s.client(ctx, parts[2])
		}
		return "/v1/clients/{id}"
	}

	writeError(ctx, fasthttp.StatusNotFound, "no route for "+string(ctx.Path()))
	return "unmatched"
}

// allow writes a 405 and returns false unless the method is one of methods.
func allow(ctx *fasthttp.RequestCtx, methods ...string) bool {
	m := string(ctx.Method())
	for _, want := range methods {
		if m == want {
			return true
		}
	}
	ctx.Response.Header.Set(fasthttp.HeaderAllow, strings.Join(methods, ", "))
	writeError(ctx, fasthttp.StatusMethodNotAllowed, "method "+m+" not allowed")
	return false
}

// ---------------------------------------------------------------------------
// Handlers
// ---------------------------------------------------------------------------

func (s *Server) derive(ctx *fasthttp.RequestCtx) {
	var form models.IntakeForm
	if !decodeBody(ctx, &form) {
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, s.svc.DeriveFields(&form))
}

func (s *Server) validate(ctx *fasthttp.RequestCtx) {
	var form models.IntakeForm
	if !decodeBody(ctx, &form) {
		return
	}
	mode := schema.ParseMode(string(ctx.QueryArgs().Peek("mode")))
	writeJSON(ctx, fasthttp.StatusOK, s.svc.ValidateForm(&form, mode))
}

func (s *Server) session(ctx *fasthttp.RequestCtx, id string) {
	switch string(ctx.Method()) {
	case fasthttp.MethodGet:
		res, err := s.svc.ShowIntake(ctx, id)
		if err != nil {
			writeServiceError(ctx, err)
			return
		}
		writeJSON(ctx, fasthttp.StatusOK, res)
	case fasthttp.MethodPatch:
		res, err := s.svc.UpdateIntake(ctx, id, ctx.PostBody())
		if err != nil {
			writeServiceError(ctx, err)
			return
		}
		writeJSON(ctx, fasthttp.StatusOK, res)
	case fasthttp.MethodDelete:
		if err := s.svc.ClearIntake(ctx, id); err != nil {
			writeServiceError(ctx, err)
			return
		}
		ctx.SetStatusCode(fasthttp.StatusNoContent)
	}
}

func (s *Server) submit(ctx *fasthttp.RequestCtx, id string) {
	res, err := s.svc.SubmitIntake(ctx, id)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, fasthttp.StatusCreated, res)
}

func (s *Server) spouse(ctx *fasthttp.RequestCtx, id string) {
	switch string(ctx.Method()) {
	case fasthttp.MethodGet:
		summary, err := s.svc.SpouseSummary(ctx, id)
		if err != nil {
			writeServiceError(ctx, err)
			return
		}
		writeJSON(ctx, fasthttp.StatusOK, summary)
	case fasthttp.MethodPut:
		var body struct {
			Client string `json:"client"`
		}
		if !decodeBody(ctx, &body) {
			return
		}
		if strings.TrimSpace(body.Client) == "" {
			writeError(ctx, fasthttp.StatusBadRequest, "client is required")
			return
		}
		res, err := s.svc.LinkSpouse(ctx, id, body.Client)
		if err != nil {
			writeServiceError(ctx, err)
			return
		}
		writeJSON(ctx, fasthttp.StatusOK, res)
	case fasthttp.MethodDelete:
		res, err := s.svc.UnlinkSpouse(ctx, id)
		if err != nil {
			writeServiceError(ctx, err)
			return
		}
		writeJSON(ctx, fasthttp.StatusOK, res)
	}
}

func (s *Server) searchClients(ctx *fasthttp.RequestCtx) {
	args := ctx.QueryArgs()
	limit, _ := strconv.Atoi(string(args.Peek("limit")))
	clients, err := s.svc.SearchClients(ctx, string(args.Peek("q")), limit)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, clients)
}

func (s *Server) client(ctx *fasthttp.RequestCtx, id string) {
	c, err := s.svc.GetClient(ctx, id)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, c)
}

func (s *Server) dashboard(ctx *fasthttp.RequestCtx) {
	d, err := s.svc.Dashboard(ctx)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, d)
}

// ---------------------------------------------------------------------------
// Encoding
// ---------------------------------------------------------------------------

func decodeBody(ctx *fasthttp.RequestCtx, v any) bool {
	body := ctx.PostBody()
	if len(body) == 0 {
		writeError(ctx, fasthttp.StatusBadRequest, "request body is required")
		return false
	}
	if err := json.Unmarshal(body, v); err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func writeJSON(ctx *fasthttp.RequestCtx, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		writeError(ctx, fasthttp.StatusInternalServerError, err.Error())
		return
	}
	ctx.SetContentType(contentTypeJSON)
	ctx.SetStatusCode(status)
	ctx.SetBody(b)
}

func writeError(ctx *fasthttp.RequestCtx, status int, message string) {
	writeErrorResponse(ctx, ErrorResponse{Status: status, Message: message})
}

func writeErrorResponse(ctx *fasthttp.RequestCtx, resp ErrorResponse) {
	b, _ := json.Marshal(resp)
	ctx.SetContentType(contentTypeJSON)
	ctx.SetStatusCode(resp.Status)
	ctx.SetBody(b)
}

// writeServiceError maps a service error to its HTTP status. Anything not
// recognised is a collaborator failure.
func writeServiceError(ctx *fasthttp.RequestCtx, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		writeErrorResponse(ctx, ErrorResponse{
			Status:  fasthttp.StatusUnprocessableEntity,
			Message: service.ErrInvalidForm.Error(),
			Errors:  verr.Result.Errors,
		})
	case errors.Is(err, formstore.ErrBadPatch), errors.Is(err, service.ErrInvalidHousingStatus):
		writeError(ctx, fasthttp.StatusBadRequest, err.Error())
	case errors.Is(err, db.ErrNotFound), errors.Is(err, spouse.ErrNotLinked):
		writeError(ctx, fasthttp.StatusNotFound, err.Error())
	case errors.Is(err, spouse.ErrNotLinkable), errors.Is(err, spouse.ErrSelfLink):
		writeError(ctx, fasthttp.StatusConflict, err.Error())
	default:
		slog.Warn("httpapi: request failed", "path", string(ctx.Path()), "err", err)
		writeError(ctx, fasthttp.StatusBadGateway, err.Error())
	}
}
