package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/danielgtaylor/huma/v2"
	"github.com/felixge/httpsnoop"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/oaiiae/contacts-web/datastores"
	"github.com/oaiiae/contacts-web/flows"
	"github.com/oaiiae/contacts-web/handlers"
	"github.com/oaiiae/contacts-web/localstore"
	"github.com/oaiiae/contacts-web/pages"
	"github.com/oaiiae/contacts-web/router"
)

type ServerOptions struct {
	Host              string        `short:"H" doc:"host to listen on"                    default:""`
	Port              string        `short:"p" doc:"port to listen on"                    default:"8888"`
	ReadHeaderTimeout time.Duration `          doc:"time allowed to read request headers" default:"15s"`
}

func NewServer(options *ServerOptions, handler http.Handler, logger *slog.Logger) *http.Server {
	return &http.Server{
		Addr:              options.Host + ":" + options.Port,
		ReadHeaderTimeout: options.ReadHeaderTimeout,
		Handler:           handler,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}
}

type BackendOptions struct {
	Backend         string        `doc:"contacts backend: graphql or inmem"                  default:"graphql"`
	GraphqlEndpoint string        `doc:"GraphQL endpoint of the contacts service"            default:"https://wpe-hiring.tokopedia.net/graphql"`
	GraphqlTimeout  time.Duration `doc:"time allowed for one GraphQL request"                default:"10s"`
	GraphqlRPS      int           `doc:"GraphQL requests per second, 0 for unlimited"        default:"0"`
	GraphqlCache    string        `doc:"contact reads: cache-first or network-only"          default:"cache-first"`
}

// NewStore returns the contacts store selected by options. GraphQL calls are metered into set.
func NewStore(options *BackendOptions, set *metrics.Set) (datastores.ContactsStore, error) {
	switch strings.ToLower(options.Backend) {
	case "inmem":
		return datastores.NewContactsInmem(&datastores.Contact{
			Firstname: "John",
			Lastname:  "Smith",
			Phones:    []datastores.Phone{{Number: "0812345678"}},
		}), nil
	case "graphql":
	default:
		return nil, fmt.Errorf("unknown backend %q", options.Backend)
	}

	var policy datastores.CachePolicy
	switch strings.ToLower(options.GraphqlCache) {
	case "cache-first", "":
		policy = datastores.CacheFirst
	case "network-only":
		policy = datastores.NetworkOnly
	default:
		return nil, fmt.Errorf("unknown cache policy %q", options.GraphqlCache)
	}

	var limiter *rate.Limiter
	if options.GraphqlRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(options.GraphqlRPS), options.GraphqlRPS)
	}

	return datastores.NewContactsGraphQL(datastores.GraphQLOptions{
		Endpoint:   options.GraphqlEndpoint,
		HTTPClient: &http.Client{Timeout: options.GraphqlTimeout},
		Cache:      policy,
		Limiter:    limiter,
		Metrics:    set,
	}), nil
}

type LocalStoreOptions struct {
	LocalStore string `doc:"directory of the local display cache, :memory: keeps it in memory" default:":memory:"`
}

func OpenLocalStore(options *LocalStoreOptions, logger *slog.Logger) (*localstore.Badger, error) {
	return localstore.OpenBadger(options.LocalStore, logger.With("component", "badger"))
}

type RouterOptions struct {
	EndpointsPrefix string        `doc:"mount endpoints at a prefix"                                  default:"/api"`
	PaintTimeout    time.Duration `doc:"time the list page waits for fresh contacts before painting the local copy" default:"1s"`
	SessionTTL      time.Duration `doc:"idle time after which a browser session is dropped"            default:"30m"`
	MaxSessions     int           `doc:"browser sessions kept in memory"                              default:"1000"`
}

func NewRouter(
	options *RouterOptions,
	deps flows.Deps,
	set *metrics.Set,
	title string,
	version string,
	revision string,
	created string,
	logger *slog.Logger,
) (http.Handler, huma.API) {
	buildinfoMetric := joinQuote("build_info{goversion=", runtime.Version(),
		",title=", title,
		",version=", version,
		",revision=", revision,
		",created=", created,
		"} 1\n")

	sessions := pages.NewSessions(deps, pages.SessionsOptions{
		TTL:      options.SessionTTL,
		Capacity: options.MaxSessions,
	})
	set.NewGauge("contacts_sessions", func() float64 { return float64(sessions.Len()) })

	site := &pages.Pages{
		Deps:         deps,
		Sessions:     sessions,
		PaintTimeout: options.PaintTimeout,
		ErrorHandler: ctxlog{}.errorHandler(logger),
	}

	return router.New(title, version,
		func(_ http.ResponseWriter, _ *http.Request) {},
		func(w io.Writer) {
			fmt.Fprint(w, buildinfoMetric)
			set.WritePrometheus(w)
			metrics.WriteProcessMetrics(w)
		},
		ctxlog{}.siteMiddleware(logger, set, site.Handler()),
		router.OptUseMiddleware(
			ctxlog{}.loggerMiddleware(logger),
			meterRequests(set),
			ctxlog{}.recoverMiddleware(logger),
		),
		router.OptGroup(options.EndpointsPrefix,
			router.OptGroup("/contacts", router.OptAutoRegister(&handlers.Contacts{
				Deps:         deps,
				ErrorHandler: ctxlog{}.errorHandler(logger),
			})),
		),
	)
}

// ctxlog is a [context.Context] key and acts as a virtual package for operations related to it.
type ctxlog struct{}

func requestID(header string) string {
	if header != "" {
		return header
	}
	return uuid.NewString()
}

// loggerMiddleware returns a middleware that sets a [slog.Logger] in
// the [context.Context] and logs the request after it has terminated.
func (key ctxlog) loggerMiddleware(parent *slog.Logger) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		logger := parent.With("x-request-id", requestID(ctx.Header("X-Request-Id")))

		start := time.Now()
		next(huma.WithValue(ctx, key, logger.WithGroup("op").With("id", ctx.Operation().OperationID)))

		logger.LogAttrs(context.Background(), slog.LevelInfo,
			joinSpace(ctx.Operation().Method, ctx.Operation().Path, ctx.Version().Proto),
			slog.String("from", ctx.RemoteAddr()),
			slog.String("ref", ctx.Header("Referer")),
			slog.String("ua", ctx.Header("User-Agent")),
			slog.Int("status", ctx.Status()),
			slog.Duration("dur", time.Since(start)),
		)
	}
}

// recoverMiddleware returns a middleware that recovers and logs the value from panic.
// Also sets status response to [http.StatusInternalServerError].
func (key ctxlog) recoverMiddleware(fallback *slog.Logger) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		defer func() {
			v := recover()
			if v != nil {
				logger, ok := ctx.Context().Value(key).(*slog.Logger)
				if !ok {
					logger = fallback
				}
				logger.LogAttrs(context.Background(), slog.LevelError, "panic occurred", slog.Any("recovered", v))
				ctx.SetStatus(http.StatusInternalServerError)
			}
		}()
		next(ctx)
	}
}

// siteMiddleware is the [http.Handler] counterpart of the API middlewares for pages.
func (key ctxlog) siteMiddleware(parent *slog.Logger, set *metrics.Set, next http.Handler) http.Handler {
	buckets := metrics.ExponentialBuckets(1e-3, 5, 6) //nolint: mnd // arbitrary

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := parent.With("x-request-id", requestID(r.Header.Get("X-Request-Id")))
		r = r.WithContext(context.WithValue(r.Context(), key, logger.WithGroup("page").With("path", r.URL.Path)))

		safe := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				v := recover()
				if v != nil {
					if v == http.ErrAbortHandler { //nolint: errorlint // sentinel panic value
						panic(v)
					}
					logger.LogAttrs(context.Background(), slog.LevelError, "panic occurred", slog.Any("recovered", v))
					w.WriteHeader(http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
		m := httpsnoop.CaptureMetrics(safe, w, r)

		// r.Pattern is "METHOD /path" as set by the mux that served the page
		pattern := r.Pattern
		if _, path, ok := strings.Cut(pattern, " "); ok {
			pattern = path
		}
		labels := joinQuote("{method=", r.Method, ",path=", pattern, ",status=", strconv.Itoa(m.Code), "}")
		set.GetOrCreateCounter("http_requests_total" + labels).Inc()
		set.GetOrCreatePrometheusHistogramExt("http_request_duration_seconds"+labels, buckets).Update(m.Duration.Seconds())

		logger.LogAttrs(context.Background(), slog.LevelInfo,
			joinSpace(r.Method, r.URL.Path, r.Proto),
			slog.String("from", r.RemoteAddr),
			slog.String("ref", r.Referer()),
			slog.String("ua", r.UserAgent()),
			slog.Int("status", m.Code),
			slog.Duration("dur", m.Duration),
		)
	})
}

// errorHandler returns a function that gets the [slog.Logger] from [context.Context] and logs the error.
func (key ctxlog) errorHandler(fallback *slog.Logger) func(context.Context, error) {
	return func(ctx context.Context, err error) {
		level := slog.LevelError
		attrs := []slog.Attr{slog.Any("err", err)}

		var statusErr huma.StatusError
		if errors.As(err, &statusErr) {
			switch statusErr.GetStatus() / 100 {
			case 5: //nolint: mnd // 5XX HTTP Status Codes
				level = slog.LevelError
			case 4: //nolint: mnd // 4XX HTTP Status Codes
				level = slog.LevelWarn
			case 3: //nolint: mnd // 3XX HTTP Status Codes
				level = slog.LevelInfo
			}
			attrs = append(attrs, slog.Int("status", statusErr.GetStatus()))
		}

		logger, ok := ctx.Value(key).(*slog.Logger)
		if !ok {
			logger = fallback
		}
		logger.LogAttrs(context.Background(), level, "error occurred", attrs...)
	}
}

func meterRequests(set *metrics.Set) func(huma.Context, func(huma.Context)) {
	type ref struct {
		*metrics.Counter
		*metrics.PrometheusHistogram
	}

	refs := sync.Map{}
	refsMu := sync.Mutex{}
	buckets := metrics.ExponentialBuckets(1e-3, 5, 6) //nolint: mnd // arbitrary

	return func(ctx huma.Context, next func(huma.Context)) {
		op, start := ctx.Operation(), time.Now()
		next(ctx)

		uid := op.OperationID + http.StatusText(ctx.Status())
		val, ok := refs.Load(uid)
		if !ok {
			refsMu.Lock()
			val, ok = refs.Load(uid)
			if !ok {
				labels := joinQuote("{method=", op.Method, ",path=", op.Path, ",status=", strconv.Itoa(ctx.Status()), "}") //nolint: golines
				val = ref{
					set.GetOrCreateCounter("http_requests_total" + labels),
					set.GetOrCreatePrometheusHistogramExt("http_request_duration_seconds"+labels, buckets),
				}
				refs.Store(uid, val)
			}
			refsMu.Unlock()
		}
		valref := val.(ref) //nolint: errcheck // always true
		valref.Counter.Inc()
		valref.PrometheusHistogram.UpdateDuration(start)
	}
}

// joinQuote is [strings.Join] with " as separator.
func joinQuote(elems ...string) string { return strings.Join(elems, `"`) }

// joinSpace is [strings.Join] with space as separator.
func joinSpace(elems ...string) string { return strings.Join(elems, ` `) }
