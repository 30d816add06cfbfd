package api

import (
	"compress/gzip"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// GzipRequestMiddleware lets clients send move and preview bodies with
// Content-Encoding gzip. Handlers always see the inflated JSON; a body that
// does not inflate fails with 400 before any handler runs.
func GzipRequestMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if err := inflateBody(c.Request()); err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid gzip body")
			}
			return next(c)
		}
	}
}

func inflateBody(req *http.Request) error {
	if req.Body == nil || !encodedWith(req.Header, "gzip") {
		return nil
	}
	zr, err := gzip.NewReader(req.Body)
	if err != nil {
		_ = req.Body.Close()
		return err
	}
	req.Body = inflatedBody{Reader: zr, compressed: req.Body}
	req.ContentLength = -1
	req.Header.Del(echo.HeaderContentEncoding)
	req.Header.Del(echo.HeaderContentLength)
	return nil
}

// encodedWith reports whether coding appears in any Content-Encoding value.
func encodedWith(h http.Header, coding string) bool {
	for _, v := range h.Values(echo.HeaderContentEncoding) {
		for _, part := range strings.Split(v, ",") {
			if strings.EqualFold(strings.TrimSpace(part), coding) {
				return true
			}
		}
	}
	return false
}

type inflatedBody struct {
	*gzip.Reader
	compressed io.ReadCloser
}

func (b inflatedBody) Close() error {
	return errors.Join(b.Reader.Close(), b.compressed.Close())
}
