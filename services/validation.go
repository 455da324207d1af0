package services

import (
	"chat-room/domain/chat"
	"chat-room/errors"
	stderrors "errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

var validate = newValidator()

// newValidator names fields after their json tag, so violations read like the request body.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateCommand checks every constraint and reports all the violations at once.
func validateCommand(cmd any) error {
	err := validate.Struct(cmd)
	if err == nil {
		return nil
	}
	var fieldErrors validator.ValidationErrors
	if !stderrors.As(err, &fieldErrors) {
		return err
	}
	return errors.NewValidationError(lo.Map(fieldErrors, func(fe validator.FieldError, _ int) string {
		return violation(fe)
	})...)
}

func violation(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%q is required", fe.Field())
	case "oneof":
		return fmt.Sprintf("%q must be one of [%s]", fe.Field(), fe.Param())
	case "gt":
		return fmt.Sprintf("%q must be greater than %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%q failed on the %q rule", fe.Field(), fe.Tag())
	}
}

// mostRecentFirst keeps the limit most recent messages of a chronological slice
// and returns them newest first.
func mostRecentFirst(messages []chat.Message, limit *int) []chat.Message {
	if limit != nil && *limit < len(messages) {
		messages = messages[len(messages)-*limit:]
	}
	out := make([]chat.Message, len(messages))
	copy(out, messages)
	return lo.Reverse(out)
}
