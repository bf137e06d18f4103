package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"food-marketplace-api/apperr"
	"food-marketplace-api/middleware"
	"food-marketplace-api/models"
	"food-marketplace-api/services"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

// Response is the envelope every endpoint returns
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Errors  []string    `json:"errors,omitempty"`
}

type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int64 `json:"pages"`
}

// Responder writes envelopes and maps errors onto status codes
type Responder struct {
	Log logrus.FieldLogger
	// Production hides internal error detail from clients
	Production bool
}

func (r Responder) OK(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, Response{Success: true, Message: message, Data: data})
}

func (r Responder) Error(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		c.JSON(http.StatusBadRequest, Response{Message: "Validation failed", Errors: fieldErrors(verrs)})
		return
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) || errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, Response{Message: "Invalid request body", Errors: []string{err.Error()}})
		return
	}

	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		appErr = apperr.Internal("Internal server error", err)
	}
	status := appErr.Kind.Status()
	resp := Response{Message: appErr.Message}
	if status >= http.StatusInternalServerError {
		r.Log.WithError(err).WithFields(logrus.Fields{
			"path":       c.FullPath(),
			"request_id": middleware.GetRequestID(c),
		}).Error("request failed")
		if !r.Production && appErr.Err != nil {
			resp.Errors = []string{appErr.Err.Error()}
		}
	}
	c.JSON(status, resp)
}

func fieldErrors(verrs validator.ValidationErrors) []string {
	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			out = append(out, fmt.Sprintf("%s is required", fe.Field()))
		case "email":
			out = append(out, fmt.Sprintf("%s must be a valid email", fe.Field()))
		case "min", "gte":
			out = append(out, fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param()))
		case "max", "lte":
			out = append(out, fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param()))
		case "len":
			out = append(out, fmt.Sprintf("%s must be exactly %s characters", fe.Field(), fe.Param()))
		case "oneof":
			out = append(out, fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param()))
		case "numeric":
			out = append(out, fmt.Sprintf("%s must contain digits only", fe.Field()))
		default:
			out = append(out, fmt.Sprintf("%s failed on '%s'", fe.Field(), fe.Tag()))
		}
	}
	return out
}

// RegisterValidation makes validator report JSON field names
func RegisterValidation() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
}

func pageOf(page, limit int, total int64) Pagination {
	pages := int64(0)
	if limit > 0 {
		pages = (total + int64(limit) - 1) / int64(limit)
	}
	return Pagination{Page: page, Limit: limit, Total: total, Pages: pages}
}

// pageQuery reads page and limit with the service defaults applied
func pageQuery(c *gin.Context) (services.Page, error) {
	p := services.Page{Page: 1, Limit: 10}
	if v := c.Query("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return p, apperr.Validation("page must be a positive integer")
		}
		p.Page = n
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return p, apperr.Validation("limit must be a positive integer")
		}
		if n > 100 {
			n = 100
		}
		p.Limit = n
	}
	return p, nil
}

func parseID(c *gin.Context, param string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(param), 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.Validation("Invalid %s", param)
	}
	return uint(id), nil
}

func optionalBool(c *gin.Context, key string) (*bool, error) {
	v := c.Query(key)
	if v == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil, apperr.Validation("%s must be true or false", key)
	}
	return &b, nil
}

// actorOf reads the authenticated caller
func actorOf(c *gin.Context) services.Actor {
	role, _ := middleware.GetRole(c)
	return services.Actor{Role: role, ID: middleware.GetAccountID(c)}
}

func roleParam(v string) models.Role {
	return models.Role(strings.ToLower(strings.TrimSpace(v)))
}
