package middleware

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"

	"sacco/pkg/telemetry"
)

// Tracing opens a server span per request, continuing any incoming trace
// context. Service spans nest under it. Register it with Router.Use so the
// matched route is known.
func Tracing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		ctx, span := telemetry.StartSpan(ctx, r.Method+" "+routeName(r))
		defer span.End()

		span.SetAttributes(
			attribute.String("http.request.method", r.Method),
			attribute.String("url.path", r.URL.Path),
		)
		if id := RequestIDFromContext(ctx); id != "" {
			span.SetAttributes(attribute.String("request_id", id))
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// routeName prefers the mux path template so span names stay low-cardinality.
func routeName(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return r.URL.Path
}
