// Package httpserver is the HTTP boundary of the catalog: public read
// routes, admin login, and admin routes that accept multipart uploads.
package httpserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/spf13/afero"

	"github.com/dmitrijs2005/autolot/internal/logging"
	"github.com/dmitrijs2005/autolot/internal/server/models"
	"github.com/dmitrijs2005/autolot/internal/server/repositories/vehicles"
	"github.com/dmitrijs2005/autolot/internal/server/services"
)

// VehicleService is the lifecycle API the handlers call.
type VehicleService interface {
	Create(ctx context.Context, req services.CreateVehicleRequest) (*services.Result, error)
	Edit(ctx context.Context, req services.EditVehicleRequest) (*services.Result, error)
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*models.Vehicle, error)
	List(ctx context.Context, q vehicles.ListQuery) (*services.Inventory, error)
	Featured(ctx context.Context) (*models.Vehicle, error)
}

// AdminService authenticates the administrator.
type AdminService interface {
	Login(ctx context.Context, user, password string) (string, error)
	Authorize(token string) (string, error)
}

// Options configures limits and optional static serving.
type Options struct {
	RequestTimeout     time.Duration
	MaxFiles           int
	MaxFileBytes       int64
	LoginRatePerMinute int
	LoginBurst         int

	// UploadsFs, when set, is served read-only under UploadsPrefix.
	UploadsFs     afero.Fs
	UploadsPrefix string
}

type HTTPServer struct {
	address  string
	vehicles VehicleService
	admin    AdminService
	opts     Options
	logger   logging.Logger
	limiter  *loginLimiter
	handler  http.Handler
}

func NewHTTPServer(addr string, l logging.Logger, vs VehicleService, as AdminService, opts Options) *HTTPServer {
	if opts.UploadsPrefix == "" {
		opts.UploadsPrefix = "/uploads"
	}
	s := &HTTPServer{
		address:  addr,
		vehicles: vs,
		admin:    as,
		opts:     opts,
		logger:   l.With("module", "http_server"),
		limiter:  newLoginLimiter(opts.LoginRatePerMinute, opts.LoginBurst),
	}
	s.handler = s.routes()
	return s
}

// Handler exposes the routed handler, mainly for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.handler
}

func (s *HTTPServer) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.health)
	mux.HandleFunc("GET /vehicles", s.listVehicles)
	mux.HandleFunc("GET /vehicles/featured", s.featuredVehicle)
	mux.HandleFunc("GET /vehicles/{id}", s.getVehicle)

	mux.HandleFunc("POST /admin/login", s.login)
	mux.Handle("POST /admin/vehicles", s.requireAdmin(s.withTimeout(http.HandlerFunc(s.createVehicle))))
	mux.Handle("PATCH /admin/vehicles/{id}", s.requireAdmin(s.withTimeout(http.HandlerFunc(s.editVehicle))))
	mux.Handle("DELETE /admin/vehicles/{id}", s.requireAdmin(s.withTimeout(http.HandlerFunc(s.deleteVehicle))))

	if s.opts.UploadsFs != nil {
		prefix := s.opts.UploadsPrefix
		files := http.StripPrefix(prefix, http.FileServer(afero.NewHttpFs(s.opts.UploadsFs)))
		mux.Handle("GET "+prefix+"/{name}", noDirListing(files))
	}

	return s.accessLog(mux)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *HTTPServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.serve(ctx, listen)
}

func (s *HTTPServer) serve(ctx context.Context, listen net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "HTTP shutdown", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
