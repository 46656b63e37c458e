package httpapi

import (
	"encoding/json"
	"errors"
	"strconv"

	"mission-control/pkg/db/pagination"
	"mission-control/pkg/errutil"

	"github.com/gin-gonic/gin"
)

// BindJSON decodes the request body into req, reporting malformed input as a
// 400. Type mismatches name the offending field.
func BindJSON(c *gin.Context, req any) error {
	err := c.ShouldBindJSON(req)
	if err == nil {
		return nil
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return errutil.BadRequest("invalid request body", err, errutil.WithDetails(errutil.Detail{
			Field:   typeErr.Field,
			Message: "expected " + typeErr.Type.String(),
		}))
	}
	return errutil.BadRequest("invalid request body", err)
}

func invalidQuery(key, msg string, err error) error {
	return errutil.BadRequest(key+" "+msg, err, errutil.WithDetails(errutil.Detail{Field: key, Message: msg}))
}

func QueryInt(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, invalidQuery(key, "must be an integer", err)
	}
	return v, nil
}

func QueryInt64(c *gin.Context, key string, def int64) (int64, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, invalidQuery(key, "must be an integer", err)
	}
	return v, nil
}

func QueryFloat(c *gin.Context, key string, def float64) (float64, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, invalidQuery(key, "must be a number", err)
	}
	return v, nil
}

func QueryBool(c *gin.Context, key string) bool {
	v, _ := strconv.ParseBool(c.Query(key))
	return v
}

// Page reads ?limit=&cursor= into a Pagination.
func Page(c *gin.Context) (pagination.Pagination, error) {
	limit, err := QueryInt(c, "limit", 0)
	if err != nil {
		return pagination.Pagination{}, err
	}
	return pagination.Pagination{Cursor: c.Query("cursor"), Limit: limit}, nil
}

// Abort attaches err for the error middleware.
func Abort(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}
