package api

import (
	"bytes"
	"compress/gzip"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestGzipRequestMiddlewareInflatesBody(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write([]byte(`{"sourceLane":"todo"}`)); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, routeMoves, &buf)
	req.Header.Set(echo.HeaderContentEncoding, "identity, gzip")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var got string
	handler := GzipRequestMiddleware()(func(c echo.Context) error {
		body, err := io.ReadAll(c.Request().Body)
		got = string(body)
		return err
	})
	if err := handler(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if got != `{"sourceLane":"todo"}` {
		t.Fatalf("unexpected body %q", got)
	}
	if c.Request().Header.Get(echo.HeaderContentEncoding) != "" {
		t.Fatalf("expected content encoding header to be removed")
	}
}

func TestGzipRequestMiddlewareRejectsInvalidBody(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, routeMoves, strings.NewReader("plain"))
	req.Header.Set(echo.HeaderContentEncoding, "gzip")
	c := e.NewContext(req, httptest.NewRecorder())

	err := GzipRequestMiddleware()(func(echo.Context) error {
		t.Fatalf("next handler must not run")
		return nil
	})(c)
	var httpErr *echo.HTTPError
	if !errors.As(err, &httpErr) || httpErr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 HTTPError, got %v", err)
	}
}

func TestGzippedMoveIsApplied(t *testing.T) {
	s := newTestServer(t, todoTasks(1, 2))

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, _ = zw.Write([]byte(`{"sourceLane":"todo","sourceIndex":0,"destinationLane":"todo","destinationIndex":1}`))
	if err := zw.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, routeMoves, &buf)
	req.Header.Set(echo.HeaderAuthorization, "Bearer a.b.c")
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(echo.HeaderContentEncoding, "gzip")
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202 got %d: %s", rec.Code, rec.Body.String())
	}
	waitSettled(t, s)
	if n := len(s.backend.recordedUpdates()); n != 2 {
		t.Fatalf("expected 2 updates, got %d", n)
	}
}
