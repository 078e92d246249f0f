package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// statusRecorder wraps http.ResponseWriter to capture the status code.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.written {
		r.statusCode = code
		r.written = true
		r.ResponseWriter.WriteHeader(code)
	}
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if !r.written {
		r.statusCode = http.StatusOK
		r.written = true
	}
	return r.ResponseWriter.Write(b)
}

// Middleware returns an HTTP middleware that records request count and
// latency for each request, with the path normalized to avoid cardinality
// explosion from dataset keys and subject ids.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}
		start := time.Now()

		defer func() {
			duration := time.Since(start).Seconds()

			statusCode := recorder.statusCode
			if statusCode == 0 {
				statusCode = http.StatusInternalServerError
			}

			normalizedPath := normalizePath(r.URL.Path)
			statusStr := strconv.Itoa(statusCode)

			RecordRequest(r.Method, normalizedPath, statusStr)
			RecordRequestDuration(r.Method, normalizedPath, statusStr, duration)

			if err := recover(); err != nil {
				if !recorder.written {
					recorder.WriteHeader(http.StatusInternalServerError)
				}
			}
		}()

		next.ServeHTTP(recorder, r)
	})
}

// normalizePath collapses variable trailing segments under known collection
// routes into a placeholder label.
// Examples:
//
//	/datasets/geo_sp_2024 -> /datasets/:key
//	/grants/42            -> /grants/:id
func normalizePath(path string) string {
	for _, prefix := range []string{"/datasets/", "/api/grants/", "/api/tokens/"} {
		if strings.HasPrefix(path, prefix) {
			return prefix + placeholderFor(prefix)
		}
	}
	return path
}

func placeholderFor(prefix string) string {
	if strings.HasPrefix(prefix, "/datasets") {
		return ":key"
	}
	return ":id"
}
