package i18n

import "net/http"

// Middleware injects a localizer into every request context. A "lang" query
// parameter wins, then the Accept-Language header, then the given default.
func Middleware(lang string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			prefs := make([]string, 0, 3)
			if q := r.URL.Query().Get("lang"); q != "" && Supported(q) {
				prefs = append(prefs, q)
			}
			if accept := r.Header.Get("Accept-Language"); accept != "" {
				prefs = append(prefs, accept)
			}
			prefs = append(prefs, lang)
			ctx := WithLocalizer(r.Context(), NewLocalizer(prefs...))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
