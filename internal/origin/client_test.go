package origin

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nexus-geo/nexus-gateway/internal/testutil/mockorigin"
)

func TestHead_ReturnsMeta(t *testing.T) {
	srv := mockorigin.New()
	defer srv.Close()
	srv.SetDocument("/datasets/geo_sp.json", mockorigin.Document{
		Body:         `{"ok":true}`,
		ETag:         `"v1"`,
		LastModified: "Mon, 02 Jan 2006 15:04:05 GMT",
	})

	c := NewClient(srv.URL)
	meta, err := c.Head(context.Background(), "/datasets/geo_sp.json")
	if err != nil {
		t.Fatalf("Head() error: %v", err)
	}
	if meta.ETag != `"v1"` {
		t.Errorf("ETag = %q", meta.ETag)
	}
	if meta.LastModified != "Mon, 02 Jan 2006 15:04:05 GMT" {
		t.Errorf("LastModified = %q", meta.LastModified)
	}
}

func TestGet_ReturnsPayloadAndMeta(t *testing.T) {
	srv := mockorigin.New()
	defer srv.Close()
	srv.SetJSON("/municipalities.json", `[{"id":3550308}]`)

	c := NewClient(srv.URL)
	body, meta, err := c.Get(context.Background(), "/municipalities.json")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if string(body) != `[{"id":3550308}]` {
		t.Errorf("body = %s", body)
	}
	if meta.ETag == "" {
		t.Error("expected derived ETag")
	}
}

func TestGet_NotFound(t *testing.T) {
	srv := mockorigin.New()
	defer srv.Close()

	c := NewClient(srv.URL)
	_, _, err := c.Get(context.Background(), "/datasets/missing.json")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if _, err := c.Head(context.Background(), "/datasets/missing.json"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Head err = %v, want ErrNotFound", err)
	}
}

func TestGet_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, _, err := c.Get(context.Background(), "/datasets/geo_sp.json")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
}

func TestGet_ServerErrorIsStatusError(t *testing.T) {
	srv := mockorigin.New()
	defer srv.Close()
	srv.SetJSON("/doc.json", `{}`)
	srv.FailGet(true)

	c := NewClient(srv.URL)
	_, _, err := c.Get(context.Background(), "/doc.json")
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want *StatusError", err)
	}
	if se.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d", se.StatusCode)
	}
}

func TestGet_RejectsInvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		//nolint:errcheck
		w.Write([]byte("<html>not json</html>"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, _, err := c.Get(context.Background(), "/doc.json")
	if err == nil {
		t.Fatal("expected error for non-JSON payload")
	}
}

func TestNewRequest_SendsAccessKeyAndAccept(t *testing.T) {
	var gotKey, gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("AccessKey")
		gotAccept = r.Header.Get("Accept")
		//nolint:errcheck
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", WithAccessKey("sekrit"))
	if _, _, err := c.Get(context.Background(), "doc.json"); err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if gotKey != "sekrit" {
		t.Errorf("AccessKey = %q", gotKey)
	}
	if gotAccept != "application/json" {
		t.Errorf("Accept = %q", gotAccept)
	}
}
