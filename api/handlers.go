package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"prism-board/board"
	"prism-board/domain"
	"prism-board/storage"
)

const (
	routeBoard   = "/api/board"
	routeMoves   = "/api/board/moves"
	routePreview = "/api/board/preview"
	routeReload  = "/api/board/reload"
	routeSummary = "/api/board/summary"
)

// Register wires up all board routes on the provided Echo instance. A nil
// deduper disables move deduplication.
func Register(e *echo.Echo, sessions *Sessions, auth Authenticator, deduper Deduper, logger *log.Logger) {
	e.GET(routeBoard, getBoard(sessions, auth, logger))
	e.DELETE(routeBoard, deleteBoard(sessions, auth, logger))
	e.POST(routeMoves, postMove(sessions, auth, deduper, logger))
	e.POST(routePreview, postPreview(sessions, auth, logger))
	e.POST(routeReload, postReload(sessions, auth, logger))
	e.GET(routeSummary, getSummary(sessions, auth, logger))
	e.GET(routeStream, streamBoard(sessions, auth, logger))
	e.GET("/healthz", healthz())
}

func healthz() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}
}

func getBoard(sessions *Sessions, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		metrics := newBoardRequestMetrics(logger, routeBoard)
		var cause error
		defer func() { metrics.Log(c.Response().Status, cause) }()

		p, err := authenticate(c, auth, metrics)
		if err != nil {
			cause = err
			return c.String(http.StatusUnauthorized, err.Error())
		}
		sess := sessions.Acquire(p)
		if err := loadBoard(c.Request().Context(), sess, metrics); err != nil {
			cause = err
			return respondBoard(c, statusFor(err), sess, metrics)
		}
		return respondBoard(c, http.StatusOK, sess, metrics)
	}
}

func postMove(sessions *Sessions, auth Authenticator, deduper Deduper, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		metrics := newBoardRequestMetrics(logger, routeMoves)
		var cause error
		defer func() { metrics.Log(c.Response().Status, cause) }()

		p, err := authenticate(c, auth, metrics)
		if err != nil {
			cause = err
			return c.String(http.StatusUnauthorized, err.Error())
		}

		var req moveRequest
		if err := decodeBody(c, &req); err != nil {
			cause = err
			metrics.SetErrorStage("decode")
			return c.String(http.StatusBadRequest, "invalid body")
		}
		if req.IdempotencyKey == "" {
			req.IdempotencyKey = uuid.NewString()
		}

		held := false
		if deduper != nil {
			added, derr := deduper.Add(ctx, p.UserID, req.IdempotencyKey)
			switch {
			case derr != nil:
				logger.WithError(derr).WithField("user", p.UserID).Warn("move deduper unavailable")
			case !added:
				metrics.SetDuplicate(true)
				return c.JSON(http.StatusOK, moveResponse{IdempotencyKey: req.IdempotencyKey, Duplicate: true})
			default:
				held = true
			}
		}
		release := func() {
			if !held {
				return
			}
			if rerr := deduper.Remove(context.WithoutCancel(ctx), p.UserID, req.IdempotencyKey); rerr != nil {
				logger.Errorf("dedupe rollback failed, err: %v, key: %s, user: %s", rerr, req.IdempotencyKey, p.UserID)
			}
		}

		sess := sessions.Acquire(p)
		if err := loadBoard(ctx, sess, metrics); err != nil {
			cause = err
			release()
			return c.String(statusFor(err), messageFor(err))
		}

		applyStart := time.Now()
		changed, err := sess.Controller.Move(req.Gesture)
		metrics.ObserveApply(time.Since(applyStart))
		if err != nil {
			cause = err
			metrics.SetErrorStage("apply")
			release()
			return c.String(statusFor(err), messageFor(err))
		}
		metrics.SetChanged(changed)

		encodeStart := time.Now()
		resp := moveResponse{IdempotencyKey: req.IdempotencyKey, Changed: changed, Board: boardOf(sess)}
		err = c.JSON(http.StatusAccepted, resp)
		metrics.ObserveEncode(time.Since(encodeStart))
		return err
	}
}

func postPreview(sessions *Sessions, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		metrics := newBoardRequestMetrics(logger, routePreview)
		var cause error
		defer func() { metrics.Log(c.Response().Status, cause) }()

		p, err := authenticate(c, auth, metrics)
		if err != nil {
			cause = err
			return c.String(http.StatusUnauthorized, err.Error())
		}
		var req previewRequest
		if err := decodeBody(c, &req); err != nil {
			cause = err
			metrics.SetErrorStage("decode")
			return c.String(http.StatusBadRequest, "invalid body")
		}

		sess := sessions.Acquire(p)
		if err := loadBoard(c.Request().Context(), sess, metrics); err != nil {
			cause = err
			return c.String(statusFor(err), messageFor(err))
		}
		ordering, changed, err := sess.Controller.Preview(req.Gesture, req.Hover)
		if err != nil {
			cause = err
			metrics.SetErrorStage("apply")
			return c.String(statusFor(err), messageFor(err))
		}
		return c.JSON(http.StatusOK, previewResponse{Ordering: ordering, Changed: changed})
	}
}

func postReload(sessions *Sessions, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		metrics := newBoardRequestMetrics(logger, routeReload)
		var cause error
		defer func() { metrics.Log(c.Response().Status, cause) }()

		p, err := authenticate(c, auth, metrics)
		if err != nil {
			cause = err
			return c.String(http.StatusUnauthorized, err.Error())
		}
		sess := sessions.Acquire(p)

		loadStart := time.Now()
		err = sess.Controller.Reload(c.Request().Context())
		metrics.ObserveLoad(time.Since(loadStart))
		if err != nil {
			cause = err
			metrics.SetErrorStage("load")
			if errors.Is(err, board.ErrNotReady) {
				return c.String(http.StatusConflict, messageFor(err))
			}
			return respondBoard(c, statusFor(err), sess, metrics)
		}
		return respondBoard(c, http.StatusOK, sess, metrics)
	}
}

func deleteBoard(sessions *Sessions, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		metrics := newBoardRequestMetrics(logger, routeBoard)
		var cause error
		defer func() { metrics.Log(c.Response().Status, cause) }()

		p, err := authenticate(c, auth, metrics)
		if err != nil {
			cause = err
			return c.String(http.StatusUnauthorized, err.Error())
		}
		sessions.Close(p.UserID)
		return c.NoContent(http.StatusNoContent)
	}
}

func getSummary(sessions *Sessions, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		metrics := newBoardRequestMetrics(logger, routeSummary)
		var cause error
		defer func() { metrics.Log(c.Response().Status, cause) }()

		p, err := authenticate(c, auth, metrics)
		if err != nil {
			cause = err
			return c.String(http.StatusUnauthorized, err.Error())
		}
		today := domain.DateOf(time.Now())
		if raw := c.QueryParam("today"); raw != "" {
			today, err = domain.ParseDate(raw)
			if err != nil {
				cause = err
				metrics.SetErrorStage("invalid_today")
				return c.String(http.StatusBadRequest, "invalid today")
			}
		}

		sess := sessions.Acquire(p)
		if err := loadBoard(c.Request().Context(), sess, metrics); err != nil {
			cause = err
			return c.String(statusFor(err), messageFor(err))
		}
		tasks := sess.Controller.Tasks()
		return c.JSON(http.StatusOK, summaryResponse{
			Today:   today,
			Buckets: domain.Bucketize(tasks, today),
			Stats:   domain.ComputeStats(tasks),
		})
	}
}

func authenticate(c echo.Context, auth Authenticator, metrics *boardRequestMetrics) (Principal, error) {
	start := time.Now()
	p, err := auth.Authenticate(c.Request().Header.Get(echo.HeaderAuthorization))
	metrics.ObserveAuth(time.Since(start))
	if err != nil {
		metrics.SetErrorStage("auth")
	}
	return p, err
}

func loadBoard(ctx context.Context, sess *Session, metrics *boardRequestMetrics) error {
	start := time.Now()
	err := sess.Controller.Load(ctx)
	metrics.ObserveLoad(time.Since(start))
	if err != nil {
		metrics.SetErrorStage("load")
	}
	return err
}

func decodeBody(c echo.Context, dst any) error {
	lr := io.LimitReader(c.Request().Body, postMoveMaxSize)
	dec := sonic.ConfigStd.NewDecoder(lr)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func boardOf(sess *Session) *boardResponse {
	return &boardResponse{Snapshot: sess.Controller.Snapshot(), Notices: sess.DrainNotices()}
}

func respondBoard(c echo.Context, status int, sess *Session, metrics *boardRequestMetrics) error {
	start := time.Now()
	err := c.JSON(status, boardOf(sess))
	metrics.ObserveEncode(time.Since(start))
	if err != nil {
		metrics.SetErrorStage("encode_response")
	}
	return err
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidGesture):
		return http.StatusBadRequest
	case errors.Is(err, board.ErrNotReady), errors.Is(err, board.ErrClosed):
		return http.StatusConflict
	case errors.Is(err, storage.ErrUnauthorized), errors.Is(err, storage.ErrNoToken):
		return http.StatusUnauthorized
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func messageFor(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidGesture):
		return err.Error()
	case errors.Is(err, board.ErrNotReady):
		return "board is not ready"
	case errors.Is(err, board.ErrClosed):
		return "board session closed"
	default:
		return "Failed to load tasks"
	}
}
