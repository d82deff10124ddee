package api

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ajitpratap0/brain-access/internal/catalog"
	"github.com/ajitpratap0/brain-access/internal/models"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("plan", func(fl validator.FieldLevel) bool {
		_, ok := catalog.ParsePlan(fl.Field().String())
		return ok
	})
	_ = v.RegisterValidation("destination", func(fl validator.FieldLevel) bool {
		return models.SharingDestination(fl.Field().String()).IsValid()
	})
	return v
}

// validateStruct runs struct tag validation and flattens the result into
// one readable error.
func validateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "max":
			msgs = append(msgs, field+" must be at most "+fe.Param()+" characters")
		case "email":
			msgs = append(msgs, field+" must be a valid email")
		case "plan":
			msgs = append(msgs, field+" must be a known plan")
		case "destination":
			msgs = append(msgs, field+" must be a known sharing destination")
		default:
			msgs = append(msgs, field+" is invalid")
		}
	}
	return errors.New(strings.Join(msgs, ", "))
}
