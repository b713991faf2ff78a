package nbfix

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tmc/nbfix/internal/logger"
	"github.com/tmc/nbfix/notebooks"
)

// Handler repairs notebooks posted to it. It never touches the filesystem,
// so there is no backup: the caller still has its copy.
type Handler struct {
	Options      notebooks.Options
	MaxBodyBytes int64

	log      *logger.Logger
	router   http.Handler
	gatherer prometheus.Gatherer
	repairs  *prometheus.CounterVec
	failures *prometheus.CounterVec
}

// NewHandler registers the handler's metrics on reg.
func NewHandler(opts notebooks.Options, maxBodyBytes int64, log *logger.Logger, reg *prometheus.Registry) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	factory := promauto.With(reg)
	h := &Handler{
		Options:      opts,
		MaxBodyBytes: maxBodyBytes,
		log:          log.WithComponent("handler"),
		gatherer:     reg,
		repairs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "nbfix_repairs_total",
			Help: "Notebooks processed, by the rule that fired.",
		}, []string{"rule"}),
		failures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "nbfix_repair_failures_total",
			Help: "Notebooks that could not be repaired, by reason.",
		}, []string{"reason"}),
	}
	h.router = h.newRouter()
	return h
}

// Routes returns the handler's router.
//
//	POST /repair   body is a notebook; responds with the repaired notebook
//	GET  /health
//	GET  /metrics
func (h *Handler) Routes() http.Handler {
	return h.router
}

func (h *Handler) newRouter() http.Handler {
	r := chi.NewRouter()
	r.Post("/repair", h.serveRepair)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, "ok\n")
	})
	r.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	return r
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) serveRepair(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-Id")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	w.Header().Set("X-Request-Id", requestID)
	log := h.log.WithFields("request_id", requestID)

	body := io.Reader(r.Body)
	if h.MaxBodyBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, h.MaxBodyBytes)
	}
	in, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.failures.WithLabelValues("too_large").Inc()
			http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
			return
		}
		h.failures.WithLabelValues("read").Inc()
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	res, err := notebooks.RepairBytes(in, h.Options)
	if err != nil {
		h.failures.WithLabelValues("malformed").Inc()
		log.WithError(err).Info("rejected notebook")
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	h.repairs.WithLabelValues(string(res.Rule)).Inc()
	log.Infow("repaired notebook", "rule", res.Rule, "modified", res.Modified, "bytes", len(in))

	out := in
	if res.Modified {
		out = res.Output
	}
	w.Header().Set("Content-Type", "application/x-ipynb+json")
	w.Header().Set("X-Nbfix-Rule", string(res.Rule))
	w.Header().Set("X-Nbfix-Modified", strconv.FormatBool(res.Modified))
	w.WriteHeader(http.StatusOK)
	w.Write(out)
}
