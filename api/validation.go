package api

import (
	"regexp"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// msisdnPattern accepts the phone formats the gateway emits: 07XXXXXXXX,
// 01XXXXXXXX, 2547XXXXXXXX, 2541XXXXXXXX, with or without a leading plus.
var msisdnPattern = regexp.MustCompile(`^\+?(254|0)[17]\d{8}$`)

// registerValidators installs custom binding rules on gin's validator
func registerValidators() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	_ = v.RegisterValidation("msisdn", func(fl validator.FieldLevel) bool {
		return msisdnPattern.MatchString(fl.Field().String())
	})
}
