package responses

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	pkgerrors "github.com/angelmondragon/tastebud-backend/pkg/errors"
	"github.com/angelmondragon/tastebud-backend/pkg/types"
	"github.com/stretchr/testify/require"
)

func TestWriteSuccess(t *testing.T) {
	w := httptest.NewRecorder()
	WriteSuccess(w, map[string]string{"hello": "world"})

	require.Equal(t, http.StatusOK, w.Code)
	var body types.SuccessEnvelope
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	require.Equal(t, "world", body.Data.(map[string]any)["hello"])
}

func TestWriteErrorMapsTypedError(t *testing.T) {
	w := httptest.NewRecorder()
	err := pkgerrors.New(pkgerrors.CodeIllegalTransition, "cannot move delivered to preparing").
		WithDetails(map[string]any{"from": "delivered", "to": "preparing"})
	WriteError(t.Context(), nil, w, err)

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var body types.ErrorEnvelope
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	require.Equal(t, string(pkgerrors.CodeIllegalTransition), body.Error.Code)
	require.Equal(t, "cannot move delivered to preparing", body.Error.Message)
	require.NotNil(t, body.Error.Details)
}

func TestWriteErrorHidesInternalDetails(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(t.Context(), nil, w, errors.New("pq: connection reset"))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	var body types.ErrorEnvelope
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	require.Equal(t, string(pkgerrors.CodeInternal), body.Error.Code)
	require.Equal(t, "internal server error", body.Error.Message)
	require.Nil(t, body.Error.Details)
}

func TestWriteErrorTransactionFailureIsRetryable(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(t.Context(), nil, w, pkgerrors.New(pkgerrors.CodeTransaction, "commit failed after 3 attempts"))

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	var body types.ErrorEnvelope
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	require.Equal(t, "order could not be saved, try again", body.Error.Message)
}
