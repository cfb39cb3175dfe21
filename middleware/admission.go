package middleware

import (
	"errors"
	"math"
	"net"
	"net/http"
	"strconv"

	"github.com/MrEthical07/goIdentity/admission"
	"github.com/MrEthical07/goIdentity/logging"
)

// AdmissionOptions tunes [Admission].
type AdmissionOptions struct {
	Logger logging.Logger
	// OnReject is called once per rejected request.
	OnReject func(admission.Tier)
}

// Admission charges each request to the authenticated tier when
// [Authenticate] recorded a principal, and to the anonymous tier keyed by
// client IP otherwise. Rejected requests get 429 with Retry-After. A backend
// failure admits the request.
func Admission(l *admission.Limiter, opts AdmissionOptions) func(http.Handler) http.Handler {
	log := opts.Logger
	if log == nil {
		log = logging.Nop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if l == nil {
				next.ServeHTTP(w, r)
				return
			}

			tier, key := admission.TierAnonymous, ClientIP(r)
			if p, ok := PrincipalFromContext(r.Context()); ok && p.Subject != "" {
				tier, key = admission.TierAuthenticated, p.Subject
			}

			lease, err := l.Acquire(r.Context(), tier, key)
			if err != nil {
				var rejected *admission.RejectedError
				if errors.As(err, &rejected) {
					if opts.OnReject != nil {
						opts.OnReject(tier)
					}
					secs := int(math.Ceil(rejected.RetryAfter.Seconds()))
					if secs < 1 {
						secs = 1
					}
					w.Header().Set("Retry-After", strconv.Itoa(secs))
					writeError(w, http.StatusTooManyRequests, "rate_limited", "Too many requests. Please slow down.")
					return
				}
				log.Warn(r.Context(), "admission backend failed, admitting request", "tier", tier.String(), "error", err)
				next.ServeHTTP(w, r)
				return
			}
			defer lease.Release()

			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP is the host part of r.RemoteAddr.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
