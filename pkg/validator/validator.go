// Package validator installs the engine's custom binding rules on gin's
// request validator.
package validator

import (
	"fmt"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/medisched/scheduling-api/internal/model"
)

// RegisterRules adds the custom rules request bindings rely on. Call once at
// startup, before the router takes traffic.
//
// clocktime: a wall-clock "HH:MM" time of day, the format appointment and
// schedule-block times travel in.
func RegisterRules() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("unexpected gin validator engine %T", binding.Validator.Engine())
	}

	return v.RegisterValidation("clocktime", func(fl validator.FieldLevel) bool {
		return model.ClockTime(fl.Field().String()).Valid()
	})
}
