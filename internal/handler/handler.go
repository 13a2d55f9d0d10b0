// Package handler implements the REST surface.  Handlers depend on the small
// store interfaces below so they can be exercised against in-memory fakes.
package handler

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/akabemail-hash/asutkosks/internal/apperr"
	"github.com/akabemail-hash/asutkosks/internal/logging"
	"github.com/akabemail-hash/asutkosks/internal/middleware"
	"github.com/akabemail-hash/asutkosks/internal/model"
	"github.com/akabemail-hash/asutkosks/internal/queue"
	"github.com/akabemail-hash/asutkosks/internal/repository"
	"github.com/akabemail-hash/asutkosks/internal/service"
	"github.com/akabemail-hash/asutkosks/internal/stats"
	"github.com/akabemail-hash/asutkosks/internal/utils"
	"github.com/akabemail-hash/asutkosks/internal/validation"
)

type UserStore interface {
	GetByUsername(ctx context.Context, username string) (model.Account, error)
	GetByID(ctx context.Context, id uint64) (model.Account, error)
	List(ctx context.Context) ([]model.User, error)
	Create(ctx context.Context, u *model.User) error
	Update(ctx context.Context, id uint64, upd repository.UserUpdate) error
	Delete(ctx context.Context, id uint64) error
}

type RoleStore interface {
	List(ctx context.Context) ([]model.Role, error)
	GetByID(ctx context.Context, id uint64) (model.Role, error)
	Create(ctx context.Context, r *model.Role) error
	Update(ctx context.Context, r model.Role) error
	Delete(ctx context.Context, id uint64) error
}

type KioskStore interface {
	List(ctx context.Context, f model.KioskFilter) ([]model.Kiosk, int, error)
	GetByID(ctx context.Context, id uint64) (model.Kiosk, error)
	Create(ctx context.Context, k *model.Kiosk) error
	Update(ctx context.Context, k model.Kiosk) error
	SetCoordinates(ctx context.Context, id uint64, lat, lon float64) error
	Delete(ctx context.Context, id uint64) error
	DeleteAll(ctx context.Context) (int64, error)
	Import(ctx context.Context, kiosks []model.Kiosk) (int, error)
	Options(ctx context.Context) ([]model.KioskOption, error)
}

type VisitStore interface {
	Create(ctx context.Context, v *model.Visit) error
	Update(ctx context.Context, v model.Visit, replacePhotos bool) ([]string, error)
	Delete(ctx context.Context, id uint64) ([]string, error)
	GetByID(ctx context.Context, id uint64) (model.VisitDetail, error)
	Report(ctx context.Context, f model.VisitReportFilter) ([]model.VisitDetail, error)
	ListByUser(ctx context.Context, userID uint64) ([]model.VisitDetail, error)
}

type VisitTypeStore interface {
	List(ctx context.Context) ([]model.VisitType, error)
	Create(ctx context.Context, vt *model.VisitType) error
	Update(ctx context.Context, vt model.VisitType) error
	Delete(ctx context.Context, id uint64) error
}

type ProblemTypeStore interface {
	List(ctx context.Context) ([]model.ProblemType, error)
	Create(ctx context.Context, pt *model.ProblemType) error
	Update(ctx context.Context, pt model.ProblemType) error
	Delete(ctx context.Context, id uint64) error
}

type Geocoder interface {
	Geocode(ctx context.Context, address string) (service.Point, error)
}

type PhotoStore interface {
	Save(ctx context.Context, fh *multipart.FileHeader) (string, error)
	Remove(ctx context.Context, urls []string)
}

type EventPublisher interface {
	PublishVisitRecorded(ctx context.Context, ev queue.VisitRecordedEvent) error
}

type StatsProvider interface {
	Admin(ctx context.Context) (stats.AdminStats, error)
	User(ctx context.Context, userID uint64, username string) (stats.UserStats, error)
}

type TokenIssuer interface {
	Issue(id utils.Identity, remember bool) (string, time.Time, error)
}

// ErrorHandler renders every error as {"message": ...}.  Upstream causes are
// added as "error" outside production.
func ErrorHandler(production bool) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status, body := renderError(err, production)
		if status >= 500 {
			logging.Ctx(c.Request().Context()).Error().Err(err).Str("path", c.Request().URL.Path).Msg("request failed")
		}
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(status)
			return
		}
		_ = c.JSON(status, body)
	}
}

func renderError(err error, production bool) (int, echo.Map) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg, ok := he.Message.(string)
		if !ok || msg == "" {
			msg = http.StatusText(he.Code)
		}
		return he.Code, echo.Map{"message": msg}
	}
	ae := apperr.From(err)
	body := echo.Map{"message": ae.Message}
	if !production && ae.Err != nil {
		body["error"] = ae.Err.Error()
	}
	return ae.Status(), body
}

// storeErr maps repository errors onto the HTTP taxonomy.
func storeErr(err error, notFound, conflict string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return apperr.NotFound(notFound)
	case errors.Is(err, repository.ErrConflict):
		return apperr.Conflict(conflict)
	case errors.Is(err, repository.ErrInvalidReference):
		return apperr.Validation("Referenced record does not exist")
	case errors.Is(err, repository.ErrValueTooLong):
		return apperr.Validation("A value exceeds the allowed length")
	case errors.Is(err, repository.ErrProblemTypeRequired), errors.Is(err, repository.ErrProblemTypeNotAllowed):
		return apperr.Validation(err.Error())
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return ae
	}
	return apperr.Upstream("Internal Server Error", err)
}

func parseID(c echo.Context) (uint64, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.Validation("Invalid id")
	}
	return id, nil
}

// parseOptionalID reads an optional positive id; "" and "null" mean absent.
func parseOptionalID(raw, field string) (*uint64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" || raw == "undefined" {
		return nil, nil
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return nil, apperr.Validation(field + " is invalid")
	}
	return &id, nil
}

func bind(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return apperr.Validation("Invalid request body")
	}
	if err := validation.Struct(dst); err != nil {
		return apperr.Validation(err.Error())
	}
	return nil
}

func identity(c echo.Context) (utils.Identity, error) {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		return utils.Identity{}, apperr.ErrTokenMissing
	}
	return id, nil
}

func message(c echo.Context, msg string) error {
	return c.JSON(http.StatusOK, echo.Map{"message": msg})
}
