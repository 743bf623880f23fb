package web

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/AndresFMC/Canvas-Users-Manager/internal/core"
	"github.com/go-playground/validator/v10"
)

// listUsersQuery holds the decoded query string of GET /api/users.
type listUsersQuery struct {
	Page    int    `json:"page" validate:"min=1"`
	PerPage int    `json:"per_page" validate:"min=1"`
	Courses string `json:"courses"`
}

// backupRequest is the body of POST /api/backup. An empty list is left to
// the service so the rejection is counted like any other export outcome.
type backupRequest struct {
	UserIDs []int64 `json:"user_ids" validate:"max_ids"`
}

// requestValidator wraps a validator configured for this server's limits.
type requestValidator struct {
	validate *validator.Validate
	maxIDs   int
}

func newRequestValidator(maxIDs int) *requestValidator {
	v := validator.New()

	// Report fields by their wire names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	rv := &requestValidator{validate: v, maxIDs: maxIDs}
	_ = v.RegisterValidation("max_ids", func(fl validator.FieldLevel) bool {
		return rv.maxIDs <= 0 || fl.Field().Len() <= rv.maxIDs
	})
	return rv
}

// Check validates req and translates the first failure into the core error
// the rest of the stack already knows how to report.
func (v *requestValidator) Check(req any) error {
	err := v.validate.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("%w: %v", core.ErrInvalidRequest, err)
	}

	fe := fieldErrs[0]
	switch fe.Field() {
	case "page":
		return fmt.Errorf("%w: got %v", core.ErrInvalidPage, fe.Value())
	case "per_page":
		return fmt.Errorf("%w: got %v", core.ErrInvalidPerPage, fe.Value())
	case "user_ids":
		return fmt.Errorf("%w: at most %d user_ids per backup", core.ErrInvalidRequest, v.maxIDs)
	default:
		return fmt.Errorf("%w: %s failed %s", core.ErrInvalidRequest, fe.Field(), fe.Tag())
	}
}
