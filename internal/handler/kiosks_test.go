package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akabemail-hash/asutkosks/internal/validation"
)

func TestKioskNumberUnmarshal(t *testing.T) {
	cases := map[string]string{
		`"  K-01 "`: "K-01",
		`"1024.0"`:  "1024",
		`1024`:      "1024",
		`1024.0`:    "1024",
		`1024.7`:    "1024",
		`null`:      "",
	}
	for in, want := range cases {
		var k kioskNumber
		require.NoError(t, json.Unmarshal([]byte(in), &k), in)
		assert.Equal(t, want, string(k), in)
	}
	var k kioskNumber
	assert.Error(t, json.Unmarshal([]byte(`true`), &k))
}

func TestKioskReqDefaults(t *testing.T) {
	var req kioskReq
	require.NoError(t, json.Unmarshal([]byte(`{"kiosk_number":"7","supervisor":"  ","address":" Main St "}`), &req))
	k := req.toKiosk()
	assert.Equal(t, "7", k.KioskNumber)
	assert.True(t, k.IsActive)
	assert.Nil(t, k.Supervisor)
	require.NotNil(t, k.Address)
	assert.Equal(t, "Main St", *k.Address)
}

func TestKioskFilterFromQuery(t *testing.T) {
	e := echo.New()
	get := func(q string) echo.Context {
		return e.NewContext(httptest.NewRequest(http.MethodGet, "/api/kiosks?"+q, nil), httptest.NewRecorder())
	}

	f := kioskFilter(get(""))
	assert.Equal(t, 1, f.Page)
	assert.Equal(t, defaultKioskPageSize, f.Limit)
	assert.Nil(t, f.IsActive)

	f = kioskFilter(get("limit=all&page=3&is_active=1&address=baku"))
	assert.Equal(t, 0, f.Limit)
	assert.Equal(t, 3, f.Page)
	require.NotNil(t, f.IsActive)
	assert.True(t, *f.IsActive)
	assert.Equal(t, "baku", f.Address)

	f = kioskFilter(get("limit=25&page=-2&is_active=no"))
	assert.Equal(t, 25, f.Limit)
	assert.Equal(t, 1, f.Page)
	require.NotNil(t, f.IsActive)
	assert.False(t, *f.IsActive)
}

func TestSameAddress(t *testing.T) {
	a, b := "x", "x"
	c := "y"
	assert.True(t, sameAddress(nil, nil))
	assert.True(t, sameAddress(&a, &b))
	assert.False(t, sameAddress(&a, &c))
	assert.False(t, sameAddress(&a, nil))
}

// Limits mirror the VARCHAR widths in schema.sql.
func TestRequestLimitsFitColumns(t *testing.T) {
	str := func(n int) *string { s := strings.Repeat("a", n); return &s }
	cases := []struct {
		name string
		req  any
		ok   bool
	}{
		{"address at width", kioskReq{KioskNumber: "1", Address: str(255)}, true},
		{"address over", kioskReq{KioskNumber: "1", Address: str(256)}, false},
		{"supervisor at width", kioskReq{KioskNumber: "1", Supervisor: str(100)}, true},
		{"supervisor over", kioskReq{KioskNumber: "1", Supervisor: str(101)}, false},
		{"mobile at width", kioskReq{KioskNumber: "1", MobileNumber: str(32)}, true},
		{"mobile over", kioskReq{KioskNumber: "1", MobileNumber: str(33)}, false},
		{"shelf over", kioskReq{KioskNumber: "1", Shelf: str(65)}, false},
		{"kiosk number over", kioskReq{KioskNumber: kioskNumber(*str(65))}, false},
		{"visit type at width", visitTypeReq{Name: *str(100)}, true},
		{"visit type over", visitTypeReq{Name: *str(101)}, false},
		{"problem type at width", problemTypeReq{Name: *str(100)}, true},
		{"problem type over", problemTypeReq{Name: *str(101)}, false},
		{"role over", roleReq{Name: *str(65)}, false},
		{"multibyte at width", kioskReq{KioskNumber: "1", Supervisor: func() *string { s := strings.Repeat("ş", 100); return &s }()}, true},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			err := validation.Struct(tt.req)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
