package validator

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/andreyrocca-psiq/qsm-h-app/internal/model"
)

// RegisterCustom installs enum validations on gin's binding engine so
// invalid role/consent/deletion values are rejected before they reach
// business logic.
func RegisterCustom() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}

	if err := v.RegisterValidation("role", func(fl validator.FieldLevel) bool {
		return model.Role(fl.Field().String()).Valid()
	}); err != nil {
		return err
	}

	if err := v.RegisterValidation("consent_type", func(fl validator.FieldLevel) bool {
		return model.ConsentType(fl.Field().String()).Valid()
	}); err != nil {
		return err
	}

	return v.RegisterValidation("deletion_mode", func(fl validator.FieldLevel) bool {
		return model.DeletionMode(fl.Field().String()).Valid()
	})
}
