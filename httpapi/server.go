package httpapi

import (
	"io"
	"net/http"

	"github.com/MrEthical07/sessiongate"
	"github.com/MrEthical07/sessiongate/middleware"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// Options configures a Server.
type Options struct {
	Logger logrus.FieldLogger
	// MetricsHandler is mounted at MetricsPath when set.
	MetricsHandler http.Handler
	// MetricsPath defaults to /metrics.
	MetricsPath  string
	MaxBodyBytes int64
	// CORSOrigins lists the origins browsers may call from. Empty disables
	// the CORS headers but preflight requests are still answered.
	CORSOrigins []string
}

// Server holds the HTTP handlers of the engine.
type Server struct {
	engine       *sessiongate.Engine
	log          logrus.FieldLogger
	metrics      http.Handler
	metricsPath  string
	maxBodyBytes int64
	corsOrigins  []string
}

// NewServer returns a Server for engine.
func NewServer(engine *sessiongate.Engine, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	limit := opts.MaxBodyBytes
	if limit <= 0 {
		limit = DefaultMaxBodyBytes
	}
	metricsPath := opts.MetricsPath
	if metricsPath == "" {
		metricsPath = DefaultMetricsPath
	}
	return &Server{
		engine:       engine,
		log:          logger,
		metrics:      opts.MetricsHandler,
		metricsPath:  metricsPath,
		maxBodyBytes: limit,
		corsOrigins:  append([]string(nil), opts.CORSOrigins...),
	}
}

// DefaultMetricsPath is where the metrics handler is mounted by default.
const DefaultMetricsPath = "/metrics"

// Router returns the complete route table wrapped in request logging, panic
// recovery and CORS. Every route also matches OPTIONS so that preflight
// requests reach the CORS middleware.
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()
	router.Use(s.recoveryMiddleware, s.loggingMiddleware, s.corsMiddleware)
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorResponse{Message: "route not found"})
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Message: "method not allowed"})
	})

	public := func(path string, h http.Handler, method string) {
		router.Handle(path, h).Methods(method, http.MethodOptions)
	}
	public("/auth/register", http.HandlerFunc(s.register), http.MethodPost)
	public("/auth/login", http.HandlerFunc(s.login), http.MethodPost)
	public("/healthz", http.HandlerFunc(s.healthz), http.MethodGet)
	if s.metrics != nil {
		public(s.metricsPath, s.metrics, http.MethodGet)
	}

	guard := middleware.Guard(s.engine, middleware.WithErrorHandler(s.writeError))
	protected := func(path string, h http.HandlerFunc, method string) {
		router.Handle(path, guard(h)).Methods(method, http.MethodOptions)
	}
	protected("/auth/logout", s.logout, http.MethodGet)
	protected("/auth/logout-all", s.logoutAll, http.MethodPost)
	protected("/auth/me", s.me, http.MethodGet)
	protected("/auth/sessions", s.sessions, http.MethodGet)
	protected("/save-settings", s.saveSettings, http.MethodPost)
	protected("/get-settings", s.getSettings, http.MethodPost)
	protected("/delete-settings", s.deleteSettings, http.MethodPost)

	return router
}
