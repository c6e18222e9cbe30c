// Package validate wraps a process-wide go-playground validator with english
// messages. Field names in messages come from the `env` tag when present so a
// bad option reads as the variable the operator has to fix, then from `json`.
package validate

import (
	"reflect"
	"strings"
	"sync"

	perr "repoharvest/internal/platform/errors"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// Svc holds the validator and its translator
type Svc struct {
	Validator  *validator.Validate
	Translator ut.Translator
}

var (
	once sync.Once
	svc  *Svc
)

// Get returns the singleton, building it on first use
func Get() *Svc {
	once.Do(func() {
		loc := en.New()
		trans, _ := ut.New(loc, loc).GetTranslator("en")

		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(fieldName)
		_ = en_translations.RegisterDefaultTranslations(v, trans)

		short(v, trans, "min", "{0} must be at least {1}")
		short(v, trans, "max", "{0} must be at most {1}")
		short(v, trans, "gte", "{0} must be at least {1}")
		short(v, trans, "lte", "{0} must be at most {1}")

		_ = v.RegisterValidation("owner_repo", ownerRepo)
		_ = v.RegisterTranslation("owner_repo", trans,
			func(t ut.Translator) error { return t.Add("owner_repo", "{0} must look like owner/name", true) },
			func(t ut.Translator, fe validator.FieldError) string {
				msg, _ := t.T("owner_repo", fe.Field())
				return msg
			},
		)

		svc = &Svc{Validator: v, Translator: trans}
	})
	return svc
}

// Struct validates v and returns an ErrorCodeValidation error listing every violation
func Struct(v any) error {
	err := Get().Validator.Struct(v)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return perr.Wrap(err, perr.ErrorCodeInvalidArgument, "validator misuse")
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fe.Translate(Get().Translator))
	}
	return perr.New(perr.ErrorCodeValidation, strings.Join(msgs, "; "))
}

func fieldName(f reflect.StructField) string {
	for _, key := range []string{"env", "json"} {
		tag := f.Tag.Get(key)
		if tag == "" || tag == "-" {
			continue
		}
		if i := strings.IndexByte(tag, ','); i >= 0 {
			tag = tag[:i]
		}
		if tag != "" {
			return tag
		}
	}
	return f.Name
}

func ownerRepo(fl validator.FieldLevel) bool {
	owner, name, ok := strings.Cut(fl.Field().String(), "/")
	return ok && owner != "" && name != "" && !strings.Contains(name, "/")
}

func short(v *validator.Validate, trans ut.Translator, tag, text string) {
	_ = v.RegisterTranslation(tag, trans,
		func(t ut.Translator) error { return t.Add(tag, text, true) },
		func(t ut.Translator, fe validator.FieldError) string {
			msg, _ := t.T(tag, fe.Field(), fe.Param())
			return msg
		},
	)
}
