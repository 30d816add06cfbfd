package api

import (
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
)

const routeStream = "/api/board/stream"

// streamBoard pushes the session's board as server-sent events, one frame
// per controller change. The token may be passed as a query parameter since
// EventSource cannot set headers. Notices are drained into the frames, so a
// client following the stream should not also poll GET /api/board.
func streamBoard(sessions *Sessions, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get(echo.HeaderAuthorization)
		if token := c.QueryParam("token"); header == "" && token != "" {
			header = "Bearer " + token
		}
		p, err := auth.Authenticate(header)
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		flusher, ok := c.Response().Writer.(http.Flusher)
		if !ok {
			return c.String(http.StatusInternalServerError, "stream unsupported")
		}

		sess := sessions.Acquire(p)
		ctx := c.Request().Context()
		entry := logger.WithFields(log.Fields{"user": p.UserID, "route": routeStream})
		if err := sess.Controller.Load(ctx); err != nil {
			entry.WithError(err).Warn("stream opened on unloaded board")
		}

		c.Response().Header().Set(echo.HeaderContentType, "text/event-stream")
		c.Response().Header().Set(echo.HeaderCacheControl, "no-cache")
		c.Response().Header().Set(echo.HeaderConnection, "keep-alive")
		c.Response().Header().Set("X-Accel-Buffering", "no")
		c.Response().WriteHeader(http.StatusOK)

		for {
			// Grab the channel before the snapshot so no change slips between them.
			changed := sess.Controller.Changed()
			frame := boardOf(sess)
			data, err := sonic.Marshal(frame)
			if err != nil {
				entry.WithError(err).Error("encode board frame")
				return err
			}
			if _, err := c.Response().Write([]byte("event: board\ndata: ")); err != nil {
				return nil
			}
			if _, err := c.Response().Write(data); err != nil {
				return nil
			}
			if _, err := c.Response().Write([]byte("\n\n")); err != nil {
				return nil
			}
			flusher.Flush()
			if frame.Closed {
				return nil
			}

			select {
			case <-ctx.Done():
				return nil
			case <-changed:
			}
		}
	}
}
