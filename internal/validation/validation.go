package validation

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Platforms are the promotion channels a promoter can be registered for.
var Platforms = []string{"Instagram", "TikTok", "YouTube", "Facebook", "X", "Snapchat", "Pinterest", "Threads", "Other"}

var simpleEmail = regexp.MustCompile(`^\S+@\S+\.\S+$`)

// New returns a validator that reports json field names and knows the
// simpleemail and platform tags.
func New() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	_ = v.RegisterValidation("simpleemail", func(fl validator.FieldLevel) bool {
		return simpleEmail.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("platform", func(fl validator.FieldLevel) bool {
		return IsPlatform(fl.Field().String())
	})
	return v
}

func IsPlatform(name string) bool {
	for _, p := range Platforms {
		if p == name {
			return true
		}
	}
	return false
}

// Messages maps "field" or "field.tag" to a user-facing message.
type Messages map[string]string

// Fields flattens validator errors into field -> message, first error per
// field wins. It returns nil when err is not a validation error.
func Fields(err error, messages Messages) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		field := fe.Field()
		if strings.HasSuffix(fe.Namespace(), "]") {
			// dive errors are reported against the parent slice.
			field, _, _ = strings.Cut(field, "[")
		}
		if _, seen := out[field]; seen {
			continue
		}
		switch {
		case messages[field+"."+fe.Tag()] != "":
			out[field] = messages[field+"."+fe.Tag()]
		case messages[field] != "":
			out[field] = messages[field]
		default:
			out[field] = field + " is invalid"
		}
	}
	return out
}

// First returns a deterministic single message, following order.
func First(fields map[string]string, order ...string) string {
	for _, name := range order {
		if msg, ok := fields[name]; ok {
			return msg
		}
	}
	for _, msg := range fields {
		return msg
	}
	return ""
}
