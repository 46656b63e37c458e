package errutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCodeOfWrapped(t *testing.T) {
	cause := errors.New("no rows")
	err := fmt.Errorf("load agent: %w", NotFound("agent not found", cause))

	require.Equal(t, StatusNotFound, CodeOf(err))
	require.True(t, IsNotFound(err))
	require.ErrorIs(t, err, cause)

	require.Equal(t, StatusInternal, CodeOf(errors.New("plain")))
	require.False(t, IsNotFound(nil))
}

func TestJSONHidesCause(t *testing.T) {
	err := BadRequest("limit must be an integer", errors.New("strconv: bad"),
		WithDetails(Detail{Field: "limit", Message: "must be an integer"}))

	be, ok := As(err)
	require.True(t, ok)
	require.Equal(t, http.StatusBadRequest, be.Code.HTTPStatus())

	body := be.JSON().(map[string]any)
	require.Equal(t, "limit must be an integer", body["error"])
	require.Equal(t, StatusBadRequest, body["code"])
	require.Equal(t, []Detail{{Field: "limit", Message: "must be an integer"}}, body["details"])
	require.NotContains(t, body, "err")
}

func TestHTTPStatusMapping(t *testing.T) {
	cases := map[CoreStatus]int{
		StatusBadRequest:  http.StatusBadRequest,
		StatusNotFound:    http.StatusNotFound,
		StatusConflict:    http.StatusConflict,
		StatusUnavailable: http.StatusServiceUnavailable,
		StatusInternal:    http.StatusInternalServerError,
		CoreStatus("??"):  http.StatusInternalServerError,
	}
	for code, want := range cases {
		require.Equal(t, want, code.HTTPStatus(), string(code))
	}
}
