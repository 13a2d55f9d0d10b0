package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/akabemail-hash/asutkosks/internal/apperr"
	"github.com/akabemail-hash/asutkosks/internal/logging"
	"github.com/akabemail-hash/asutkosks/internal/model"
	"github.com/akabemail-hash/asutkosks/internal/service"
	"github.com/akabemail-hash/asutkosks/internal/utils"
	"github.com/akabemail-hash/asutkosks/internal/validation"
)

const defaultKioskPageSize = 10

type KioskHandler struct {
	Kiosks   KioskStore
	Geocoder Geocoder
}

func NewKioskHandler(kiosks KioskStore, geocoder Geocoder) *KioskHandler {
	return &KioskHandler{Kiosks: kiosks, Geocoder: geocoder}
}

// kioskNumber accepts a JSON string or number; spreadsheet imports send
// numbers such as 1024.0.
type kioskNumber string

func (k *kioskNumber) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*k = kioskNumber(utils.NormalizeKioskNumber(s))
		return nil
	}
	if bytes.Equal(b, []byte("null")) {
		*k = ""
		return nil
	}
	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return err
	}
	*k = kioskNumber(utils.KioskNumberFromFloat(f))
	return nil
}

type kioskReq struct {
	KioskNumber  kioskNumber `json:"kiosk_number" validate:"required,max=64"`
	Supervisor   *string     `json:"supervisor" validate:"omitempty,max=100"`
	MobileNumber *string     `json:"mobile_number" validate:"omitempty,max=32"`
	Address      *string     `json:"address" validate:"omitempty,max=255"`
	Shelf        *string     `json:"shelf" validate:"omitempty,max=64"`
	IsActive     *bool       `json:"is_active"`
	Latitude     *float64    `json:"latitude" validate:"omitempty,latitude"`
	Longitude    *float64    `json:"longitude" validate:"omitempty,longitude"`
}

func blankToNil(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}

func (r kioskReq) toKiosk() model.Kiosk {
	k := model.Kiosk{
		KioskNumber:  string(r.KioskNumber),
		Supervisor:   blankToNil(r.Supervisor),
		MobileNumber: blankToNil(r.MobileNumber),
		Address:      blankToNil(r.Address),
		Shelf:        blankToNil(r.Shelf),
		IsActive:     true,
		Latitude:     r.Latitude,
		Longitude:    r.Longitude,
	}
	if r.IsActive != nil {
		k.IsActive = *r.IsActive
	}
	return k
}

func kioskFilter(c echo.Context) model.KioskFilter {
	f := model.KioskFilter{
		KioskNumber:  c.QueryParam("kiosk_number"),
		Address:      c.QueryParam("address"),
		Supervisor:   c.QueryParam("supervisor"),
		MobileNumber: c.QueryParam("mobile_number"),
		Shelf:        c.QueryParam("shelf"),
		Page:         1,
		Limit:        defaultKioskPageSize,
	}
	if v := c.QueryParam("is_active"); v != "" {
		active := v == "true" || v == "1"
		f.IsActive = &active
	}
	if p, err := strconv.Atoi(c.QueryParam("page")); err == nil && p > 0 {
		f.Page = p
	}
	switch l := c.QueryParam("limit"); l {
	case "":
	case "all", "0":
		f.Limit = 0
	default:
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			f.Limit = n
		}
	}
	return f
}

// List returns one page of kiosks.  limit=0 or limit=all returns every match.
func (h *KioskHandler) List(c echo.Context) error {
	f := kioskFilter(c)
	kiosks, total, err := h.Kiosks.List(c.Request().Context(), f)
	if err != nil {
		return storeErr(err, "", "")
	}
	totalPages := 1
	if f.Limit > 0 {
		totalPages = int(math.Ceil(float64(total) / float64(f.Limit)))
	}
	return c.JSON(http.StatusOK, echo.Map{
		"data": kiosks,
		"pagination": echo.Map{
			"total":      total,
			"page":       f.Page,
			"limit":      f.Limit,
			"totalPages": totalPages,
		},
	})
}

func (h *KioskHandler) Get(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	k, err := h.Kiosks.GetByID(c.Request().Context(), id)
	if err != nil {
		return storeErr(err, "Kiosk not found", "")
	}
	return c.JSON(http.StatusOK, k)
}

func (h *KioskHandler) Create(c echo.Context) error {
	var req kioskReq
	if err := bind(c, &req); err != nil {
		return err
	}
	k := req.toKiosk()
	if err := h.Kiosks.Create(c.Request().Context(), &k); err != nil {
		return storeErr(err, "", "Kiosk number already exists")
	}
	return c.JSON(http.StatusCreated, k)
}

// Update replaces the kiosk.  Omitted is_active and coordinates keep their
// stored values; coordinates are cleared when the address changes.
func (h *KioskHandler) Update(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req kioskReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	cur, err := h.Kiosks.GetByID(ctx, id)
	if err != nil {
		return storeErr(err, "Kiosk not found", "")
	}

	k := req.toKiosk()
	k.ID = id
	if req.IsActive == nil {
		k.IsActive = cur.IsActive
	}
	if req.Latitude == nil && req.Longitude == nil && sameAddress(cur.Address, k.Address) {
		k.Latitude, k.Longitude = cur.Latitude, cur.Longitude
	}
	if err := h.Kiosks.Update(ctx, k); err != nil {
		return storeErr(err, "Kiosk not found", "Kiosk number already exists")
	}
	return message(c, "Kiosk updated")
}

func sameAddress(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func (h *KioskHandler) Delete(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.Kiosks.Delete(c.Request().Context(), id); err != nil {
		return storeErr(err, "Kiosk not found", "Kiosk has recorded visits")
	}
	return message(c, "Kiosk deleted")
}

func (h *KioskHandler) DeleteAll(c echo.Context) error {
	n, err := h.Kiosks.DeleteAll(c.Request().Context())
	if err != nil {
		return storeErr(err, "", "Kiosks with recorded visits cannot be deleted")
	}
	logging.Ctx(c.Request().Context()).Info().Int64("deleted", n).Msg("all kiosks deleted")
	return message(c, "All kiosks deleted")
}

// Import inserts a JSON array of kiosks, skipping rows without a kiosk
// number and rows whose number already exists.
func (h *KioskHandler) Import(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return apperr.Validation("Invalid request body")
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 || body[0] != '[' {
		return apperr.Validation("Input must be an array of kiosks")
	}
	var rows []kioskReq
	if err := json.Unmarshal(body, &rows); err != nil {
		return apperr.Validation("Input must be an array of kiosks")
	}

	kiosks := make([]model.Kiosk, 0, len(rows))
	for i, r := range rows {
		if r.KioskNumber == "" {
			continue
		}
		if err := validation.Struct(r); err != nil {
			return apperr.Validation("row " + strconv.Itoa(i+1) + ": " + err.Error())
		}
		kiosks = append(kiosks, r.toKiosk())
	}
	n, err := h.Kiosks.Import(c.Request().Context(), kiosks)
	if err != nil {
		return storeErr(err, "", "")
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Imported successfully.", "imported": n})
}

// Geocode resolves an address and, with kiosk_id, stores the result on the
// kiosk.
func (h *KioskHandler) Geocode(c echo.Context) error {
	address := strings.TrimSpace(c.QueryParam("address"))
	if address == "" {
		return apperr.Validation("Address required")
	}
	kioskID, err := parseOptionalID(c.QueryParam("kiosk_id"), "kiosk_id")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	p, err := h.Geocoder.Geocode(ctx, address)
	switch {
	case errors.Is(err, service.ErrAddressNotFound):
		return apperr.NotFound("Address not found")
	case err != nil:
		return apperr.Upstream("Geocoding failed", err)
	}
	if kioskID != nil {
		if err := h.Kiosks.SetCoordinates(ctx, *kioskID, p.Lat, p.Lon); err != nil {
			return storeErr(err, "Kiosk not found", "")
		}
	}
	return c.JSON(http.StatusOK, p)
}
