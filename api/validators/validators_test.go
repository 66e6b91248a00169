package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	pkgerrors "github.com/angelmondragon/tastebud-backend/pkg/errors"
	"github.com/stretchr/testify/require"
)

type addItemBody struct {
	MenuItemID string `json:"menu_item_id" validate:"required,uuid"`
	Quantity   int    `json:"quantity" validate:"gt=0"`
}

func TestDecodeJSONBodyReportsFieldErrors(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"menu_item_id":"nope","quantity":0}`))
	var body addItemBody
	err := DecodeJSONBody(r, &body)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	details, ok := pkgerrors.As(err).Details().(map[string]string)
	require.True(t, ok)
	require.Equal(t, "must be a valid uuid", details["menu_item_id"])
	require.Equal(t, "must be greater than 0", details["quantity"])
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"quantity":1,"price":1}`))
	var body addItemBody
	require.True(t, pkgerrors.IsCode(DecodeJSONBody(r, &body), pkgerrors.CodeValidation))
}

func TestParseQueryHelpers(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?limit=500&status=pending,%20confirmed,,", nil)
	_, err := ParseQueryInt(r, "limit", 20, 1, 100)
	require.Error(t, err)
	require.Equal(t, []string{"pending", "confirmed"}, ParseQueryList(r, "status"))

	limit, err := ParseQueryInt(httptest.NewRequest(http.MethodGet, "/", nil), "limit", 20, 1, 100)
	require.NoError(t, err)
	require.Equal(t, 20, limit)
}

func TestSanitizeStringKeepsMultibyteNames(t *testing.T) {
	name := "a" + strings.Repeat("अ", 60)
	require.Equal(t, name, SanitizeString("  "+name+" ", 120))

	capped := SanitizeString(strings.Repeat("अ", 130), 120)
	require.True(t, utf8.ValidString(capped))
	require.Equal(t, 120, utf8.RuneCountInString(capped))

	require.Equal(t, "Asha", SanitizeString(" Asha ", 0))
}
