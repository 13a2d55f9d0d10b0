package handler

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/akabemail-hash/asutkosks/internal/apperr"
	"github.com/akabemail-hash/asutkosks/internal/logging"
	"github.com/akabemail-hash/asutkosks/internal/metrics"
	"github.com/akabemail-hash/asutkosks/internal/model"
	"github.com/akabemail-hash/asutkosks/internal/queue"
	"github.com/akabemail-hash/asutkosks/internal/service"
	"github.com/akabemail-hash/asutkosks/internal/utils"
	"github.com/akabemail-hash/asutkosks/internal/validation"
)

// MaxPhotoBytes bounds each uploaded visit photo.
const MaxPhotoBytes = 5 << 20

type VisitHandler struct {
	Visits       VisitStore
	Kiosks       KioskStore
	VisitTypes   VisitTypeStore
	ProblemTypes ProblemTypeStore
	Photos       PhotoStore
	Events       EventPublisher
	Now          func() time.Time
}

func NewVisitHandler(visits VisitStore, kiosks KioskStore, vts VisitTypeStore, pts ProblemTypeStore,
	photos PhotoStore, events EventPublisher) *VisitHandler {
	return &VisitHandler{
		Visits:       visits,
		Kiosks:       kiosks,
		VisitTypes:   vts,
		ProblemTypes: pts,
		Photos:       photos,
		Events:       events,
		Now:          time.Now,
	}
}

type visitForm struct {
	KioskID       uint64 `json:"kiosk_id" validate:"required"`
	VisitDate     string `json:"visit_date" validate:"required,datetime=2006-01-02"`
	VisitTime     string `json:"visit_time" validate:"required"`
	VisitTypeID   uint64 `json:"visit_type_id" validate:"required"`
	ProblemTypeID *uint64
	Description   string `json:"description" validate:"max=2000"`
}

// normalizeTime accepts HH:MM or HH:MM:SS and returns HH:MM:SS.
func normalizeTime(s string) (string, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("15:04:05"), true
		}
	}
	return "", false
}

// readVisitForm reads the multipart (or urlencoded) visit fields.
func readVisitForm(c echo.Context) (visitForm, error) {
	var f visitForm
	kioskID, err := parseOptionalID(c.FormValue("kiosk_id"), "kiosk_id")
	if err != nil {
		return f, err
	}
	visitTypeID, err := parseOptionalID(c.FormValue("visit_type_id"), "visit_type_id")
	if err != nil {
		return f, err
	}
	if f.ProblemTypeID, err = parseOptionalID(c.FormValue("problem_type_id"), "problem_type_id"); err != nil {
		return f, err
	}
	if kioskID != nil {
		f.KioskID = *kioskID
	}
	if visitTypeID != nil {
		f.VisitTypeID = *visitTypeID
	}
	f.VisitDate = strings.TrimSpace(c.FormValue("visit_date"))
	f.VisitTime = strings.TrimSpace(c.FormValue("visit_time"))
	f.Description = strings.TrimSpace(c.FormValue("description"))

	if err := validation.Struct(f); err != nil {
		return f, apperr.Validation(err.Error())
	}
	t, ok := normalizeTime(f.VisitTime)
	if !ok {
		return f, apperr.Validation("visit_time must match HH:MM")
	}
	f.VisitTime = t
	return f, nil
}

// uploadedPhotos returns the attached photos after checking count, size
// and type.  Requests that are not multipart carry none.
func uploadedPhotos(c echo.Context) ([]*multipart.FileHeader, error) {
	form, err := c.MultipartForm()
	if err != nil || form == nil {
		return nil, nil
	}
	files := form.File["photos"]
	if len(files) > model.MaxVisitPhotos {
		return nil, apperr.Validation("At most 2 photos are allowed")
	}
	for _, fh := range files {
		if fh.Size > MaxPhotoBytes {
			return nil, apperr.TooLarge("Each photo must be 5MB or smaller")
		}
		if !strings.HasPrefix(fh.Header.Get("Content-Type"), "image/") {
			return nil, apperr.Validation("Only image files are allowed")
		}
	}
	return files, nil
}

// savePhotos stores every file or none.
func (h *VisitHandler) savePhotos(ctx context.Context, files []*multipart.FileHeader) ([]string, error) {
	urls := make([]string, 0, len(files))
	for _, fh := range files {
		u, err := h.Photos.Save(ctx, fh)
		if err != nil {
			h.Photos.Remove(ctx, urls)
			return nil, apperr.Upstream("Photo upload failed", err)
		}
		urls = append(urls, u)
	}
	return urls, nil
}

// Create records a visit for the caller.  Photos are written first and
// removed again when the row cannot be inserted.
func (h *VisitHandler) Create(c echo.Context) error {
	id, err := identity(c)
	if err != nil {
		return err
	}
	f, err := readVisitForm(c)
	if err != nil {
		return err
	}
	files, err := uploadedPhotos(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	urls, err := h.savePhotos(ctx, files)
	if err != nil {
		return err
	}
	v := model.Visit{
		KioskID:       f.KioskID,
		UserID:        id.ID,
		VisitDate:     f.VisitDate,
		VisitTime:     f.VisitTime,
		VisitTypeID:   f.VisitTypeID,
		ProblemTypeID: f.ProblemTypeID,
		Description:   f.Description,
		Photos:        urls,
	}
	if err := h.Visits.Create(ctx, &v); err != nil {
		h.Photos.Remove(ctx, urls)
		return storeErr(err, "", "")
	}
	metrics.VisitsRecorded.Inc()
	h.publish(ctx, id, v)

	return c.JSON(http.StatusCreated, echo.Map{"message": "Visit recorded successfully", "id": v.ID})
}

func (h *VisitHandler) publish(ctx context.Context, id utils.Identity, v model.Visit) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	err := h.Events.PublishVisitRecorded(ctx, queue.VisitRecordedEvent{
		VisitID:       v.ID,
		KioskID:       v.KioskID,
		UserID:        id.ID,
		Username:      id.Username,
		VisitDate:     v.VisitDate,
		VisitTime:     v.VisitTime,
		VisitTypeID:   v.VisitTypeID,
		ProblemTypeID: v.ProblemTypeID,
		PhotoCount:    len(v.Photos),
		RecordedAt:    h.Now().UTC().Format(time.RFC3339),
	})
	if err != nil && !errors.Is(err, service.ErrEventsDisabled) {
		logging.Ctx(ctx).Warn().Err(err).Uint64("visit_id", v.ID).Msg("visit event not published")
	}
}

// Update rewrites a visit.  Stored photos are replaced only when new ones
// are attached, and the old files are removed after the update commits.
func (h *VisitHandler) Update(c echo.Context) error {
	visitID, err := parseID(c)
	if err != nil {
		return err
	}
	f, err := readVisitForm(c)
	if err != nil {
		return err
	}
	files, err := uploadedPhotos(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	urls, err := h.savePhotos(ctx, files)
	if err != nil {
		return err
	}
	v := model.Visit{
		ID:            visitID,
		KioskID:       f.KioskID,
		VisitDate:     f.VisitDate,
		VisitTime:     f.VisitTime,
		VisitTypeID:   f.VisitTypeID,
		ProblemTypeID: f.ProblemTypeID,
		Description:   f.Description,
		Photos:        urls,
	}
	old, err := h.Visits.Update(ctx, v, len(files) > 0)
	if err != nil {
		h.Photos.Remove(ctx, urls)
		return storeErr(err, "Visit not found", "")
	}
	h.Photos.Remove(ctx, old)
	return message(c, "Visit updated successfully")
}

func (h *VisitHandler) Delete(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	photos, err := h.Visits.Delete(ctx, id)
	if err != nil {
		return storeErr(err, "Visit not found", "")
	}
	h.Photos.Remove(ctx, photos)
	return message(c, "Visit deleted successfully")
}

func (h *VisitHandler) Get(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	v, err := h.Visits.GetByID(c.Request().Context(), id)
	if err != nil {
		return storeErr(err, "Visit not found", "")
	}
	return c.JSON(http.StatusOK, v)
}

type reportQuery struct {
	StartDate   string `query:"start_date" json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate     string `query:"end_date" json:"end_date" validate:"omitempty,datetime=2006-01-02"`
	KioskNumber string `query:"kiosk_number" json:"kiosk_number" validate:"max=64"`
}

// Report lists visits for the admin report, newest first.
func (h *VisitHandler) Report(c echo.Context) error {
	var q reportQuery
	if err := bind(c, &q); err != nil {
		return err
	}
	rows, err := h.Visits.Report(c.Request().Context(), model.VisitReportFilter{
		StartDate:   q.StartDate,
		EndDate:     q.EndDate,
		KioskNumber: q.KioskNumber,
	})
	if err != nil {
		return storeErr(err, "", "")
	}
	return c.JSON(http.StatusOK, rows)
}

// MyVisits lists the caller's own visits, most recently recorded first.
func (h *VisitHandler) MyVisits(c echo.Context) error {
	id, err := identity(c)
	if err != nil {
		return err
	}
	rows, err := h.Visits.ListByUser(c.Request().Context(), id.ID)
	if err != nil {
		return storeErr(err, "", "")
	}
	return c.JSON(http.StatusOK, rows)
}

// FormOptions returns what a field user needs to fill in the visit form.
func (h *VisitHandler) FormOptions(c echo.Context) error {
	ctx := c.Request().Context()
	kiosks, err := h.Kiosks.Options(ctx)
	if err != nil {
		return storeErr(err, "", "")
	}
	vts, err := h.VisitTypes.List(ctx)
	if err != nil {
		return storeErr(err, "", "")
	}
	pts, err := h.ProblemTypes.List(ctx)
	if err != nil {
		return storeErr(err, "", "")
	}
	return c.JSON(http.StatusOK, echo.Map{
		"kiosks":        kiosks,
		"visit_types":   vts,
		"problem_types": pts,
	})
}
