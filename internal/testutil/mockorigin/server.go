// Package mockorigin provides a fake dataset origin server for testing and
// local development.
package mockorigin

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// Document is one resource served by the mock origin.
type Document struct {
	Body         string
	ETag         string
	LastModified string
}

// Origin is an http.Handler serving JSON documents with conditional-request
// metadata and failure injection.
type Origin struct {
	mu        sync.Mutex
	docs      map[string]Document
	failHead  bool
	failGet   bool
	headCount int
	getCount  int
}

// NewOrigin creates an empty Origin.
func NewOrigin() *Origin {
	return &Origin{docs: make(map[string]Document)}
}

// SetDocument installs or replaces a document at path.
func (o *Origin) SetDocument(path string, doc Document) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if doc.LastModified == "" {
		doc.LastModified = time.Now().UTC().Format(http.TimeFormat)
	}
	o.docs[path] = doc
}

// SetJSON installs a JSON document at path with a derived entity tag.
func (o *Origin) SetJSON(path, body string) {
	o.SetDocument(path, Document{
		Body: body,
		ETag: fmt.Sprintf("%q", fmt.Sprintf("len%d-%s", len(body), path)),
	})
}

// FailHead makes subsequent HEAD requests return 500.
func (o *Origin) FailHead(fail bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failHead = fail
}

// FailGet makes subsequent GET requests return 500.
func (o *Origin) FailGet(fail bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failGet = fail
}

// Counts reports how many HEAD and GET requests the origin has served.
func (o *Origin) Counts() (head, get int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.headCount, o.getCount
}

// ServeHTTP implements http.Handler.
func (o *Origin) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	o.mu.Lock()
	doc, ok := o.docs[r.URL.Path]
	failHead, failGet := o.failHead, o.failGet
	switch r.Method {
	case http.MethodHead:
		o.headCount++
	case http.MethodGet:
		o.getCount++
	}
	o.mu.Unlock()

	switch r.Method {
	case http.MethodHead:
		if failHead {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeMeta(w, doc)
		w.WriteHeader(http.StatusOK)

	case http.MethodGet:
		if failGet {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeMeta(w, doc)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		//nolint:errcheck
		w.Write([]byte(doc.Body))

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func writeMeta(w http.ResponseWriter, doc Document) {
	if doc.ETag != "" {
		w.Header().Set("ETag", doc.ETag)
	}
	if doc.LastModified != "" {
		w.Header().Set("Last-Modified", doc.LastModified)
	}
}

// Server is an Origin bound to an httptest listener, for tests.
type Server struct {
	*httptest.Server
	*Origin
}

// New creates a started mock origin. Call Close when done.
func New() *Server {
	o := NewOrigin()
	return &Server{Server: httptest.NewServer(o), Origin: o}
}
