package gamificationhandlers

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// clientIdleTTL is how long a client may stay quiet before its budget is dropped.
const clientIdleTTL = 10 * time.Minute

type clientBudget struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// clientBudgets hands out one token bucket per client address of the query
// surface. Quiet clients are swept at most once per clientIdleTTL.
type clientBudgets struct {
	mu        sync.Mutex
	perSecond rate.Limit
	burst     int
	budgets   map[string]*clientBudget
	lastSweep time.Time
	now       func() time.Time
}

func newClientBudgets(perSecond rate.Limit, burst int) *clientBudgets {
	return &clientBudgets{
		perSecond: perSecond,
		burst:     burst,
		budgets:   make(map[string]*clientBudget),
		now:       time.Now,
	}
}

func (c *clientBudgets) forClient(addr string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if now.Sub(c.lastSweep) >= clientIdleTTL {
		for key, b := range c.budgets {
			if now.Sub(b.lastSeen) >= clientIdleTTL {
				delete(c.budgets, key)
			}
		}
		c.lastSweep = now
	}

	b, ok := c.budgets[addr]
	if !ok {
		b = &clientBudget{limiter: rate.NewLimiter(c.perSecond, c.burst)}
		c.budgets[addr] = b
	}
	b.lastSeen = now
	return b.limiter
}

func (c *clientBudgets) tracked() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.budgets)
}

// limitByClient answers 429 once a client has spent its budget.
func limitByClient(budgets *clientBudgets) func(http.Handler) http.Handler {
	retryAfter := "1"
	if budgets.perSecond > 0 && budgets.perSecond < 1 {
		retryAfter = strconv.Itoa(int(1/float64(budgets.perSecond) + 0.5))
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			addr := r.RemoteAddr
			if host, _, err := net.SplitHostPort(addr); err == nil {
				addr = host
			}

			if !budgets.forClient(addr).Allow() {
				w.Header().Set("Retry-After", retryAfter)
				http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// withCORS lets browsers on the given origins read the query surface and
// short-circuits preflight requests.
func withCORS(allowedOrigins []string) func(http.Handler) http.Handler {
	allowAll := false
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Add("Vary", "Origin")
			if origin := r.Header.Get("Origin"); origin != "" && (allowAll || allowed[origin]) {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Methods", "GET, OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Content-Type")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
