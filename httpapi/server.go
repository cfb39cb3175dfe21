package httpapi

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	goIdentity "github.com/MrEthical07/goIdentity"
	"github.com/MrEthical07/goIdentity/admission"
	"github.com/MrEthical07/goIdentity/logging"
	"github.com/MrEthical07/goIdentity/metrics/export/prometheus"
	"github.com/MrEthical07/goIdentity/middleware"
)

const maxBodyBytes = 1 << 20

// Options wires optional collaborators into [New].
type Options struct {
	// Limiter enables admission control on /connect routes.
	Limiter *admission.Limiter
	// Metrics serves /metrics. Defaults to the Prometheus exporter of the
	// engine.
	Metrics http.Handler
	Logger  logging.Logger
}

// Server routes HTTP requests to an engine.
type Server struct {
	engine *goIdentity.Engine
	log    logging.Logger
	mux    *http.ServeMux
}

// New returns the HTTP handler for engine.
func New(engine *goIdentity.Engine, opts Options) http.Handler {
	log := opts.Logger
	if log == nil {
		log = engine.Logger()
	}
	s := &Server{
		engine: engine,
		log:    log,
		mux:    http.NewServeMux(),
	}

	guard := middleware.Guard(engine)
	connect := http.NewServeMux()
	connect.HandleFunc("POST /connect/register", s.register)
	connect.HandleFunc("GET /connect/confirm-email", s.confirmEmail)
	connect.HandleFunc("POST /connect/logout", s.logout)
	connect.HandleFunc("POST /connect/password-reset-request", s.passwordResetRequest)
	connect.HandleFunc("POST /connect/password-reset-confirm", s.passwordResetConfirm)
	connect.Handle("POST /connect/update-user-info", guard(http.HandlerFunc(s.updateUserInfo)))
	connect.Handle("GET /connect/user-info", guard(http.HandlerFunc(s.userInfo)))
	connect.Handle("POST /connect/change-password", guard(http.HandlerFunc(s.changePassword)))
	connect.HandleFunc("POST /connect/resend-confirmation", s.resendConfirmation)
	connect.Handle("POST /connect/change-email", guard(http.HandlerFunc(s.changeEmail)))
	connect.HandleFunc("GET /connect/confirm-email-change", s.confirmEmailChange)
	connect.HandleFunc("POST /connect/token", s.token)

	var admitted http.Handler = connect
	if opts.Limiter != nil {
		admitted = middleware.Admission(opts.Limiter, middleware.AdmissionOptions{
			Logger: log,
			OnReject: func(admission.Tier) {
				engine.RecordAdmissionRejected()
			},
		})(connect)
		engine.ObserveInFlight(opts.Limiter.InFlight)
	}
	s.mux.Handle("/connect/", middleware.Authenticate(engine)(admitted))

	metrics := opts.Metrics
	if metrics == nil {
		metrics = prometheus.NewPrometheusExporter(engine).Handler()
	}
	s.mux.Handle("GET /metrics", metrics)
	s.mux.HandleFunc("GET /healthz", s.healthz)

	return s.requestContext(s.mux)
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Ping(r.Context()); err != nil {
		s.log.Warn(r.Context(), "health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// requestContext attaches request id, client IP and user agent for audit
// events and writes one access log line per request.
func (s *Server) requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" || len(requestID) > 128 {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)

		ctx := goIdentity.WithRequestID(r.Context(), requestID)
		ctx = goIdentity.WithClientIP(ctx, middleware.ClientIP(r))
		ctx = goIdentity.WithUserAgent(ctx, r.UserAgent())

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))

		s.log.Info(ctx, "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", requestID,
		)
	})
}
