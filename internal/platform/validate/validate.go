// Package validate wraps a go-playground/validator singleton with English
// translations and the collector's custom rules
package validate

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"sync"

	perr "keystat/internal/platform/errors"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// FieldLevel aliases validator.FieldLevel
type FieldLevel = validator.FieldLevel

// Svc holds a singleton validator and translator
type Svc struct {
	Validator  *validator.Validate
	Translator ut.Translator
}

var (
	once sync.Once
	svc  *Svc
)

// Get returns the validator singleton, initializing on first use
func Get() *Svc {
	once.Do(func() {
		enLoc := en.New()
		uni := ut.New(enLoc, enLoc)
		trans, _ := uni.GetTranslator("en")

		v := validator.New(validator.WithRequiredStructEnabled())

		// report env var names when present, json names otherwise
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			for _, key := range []string{"env", "json"} {
				tag := fld.Tag.Get(key)
				if idx := strings.Index(tag, ","); idx >= 0 {
					tag = tag[:idx]
				}
				if tag != "" && tag != "-" {
					return tag
				}
			}
			return fld.Name
		})
		_ = en_translations.RegisterDefaultTranslations(v, trans)

		s := &Svc{Validator: v, Translator: trans}
		s.register("minute_aligned", minuteAligned, "{0} must divide 60 evenly or be a whole number of minutes")
		s.register("regexp", compiles, "{0} must be a valid regular expression")
		s.register("ws_url", wsURL, "{0} must be a ws:// or wss:// URL")
		shortMessage(v, trans, "min", "{0} must be at least {1}")
		shortMessage(v, trans, "max", "{0} must be at most {1}")
		svc = s
	})
	return svc
}

// Struct validates s and returns the first violation as a Config error
// carrying the offending field name
func Struct(s any) error {
	err := Get().Validator.Struct(s)
	if err == nil {
		return nil
	}
	var inv *validator.InvalidValidationError
	if errors.As(err, &inv) {
		return perr.Wrap(inv, perr.ErrorCodeUnknown, "validator internal error")
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return perr.Configf(fe.Field(), "%s", fe.Translate(Get().Translator))
	}
	return perr.Wrap(err, perr.ErrorCodeConfig, "invalid configuration")
}

func (s *Svc) register(tag string, fn validator.Func, msg string) {
	_ = s.Validator.RegisterValidation(tag, fn)
	shortMessage(s.Validator, s.Translator, tag, msg)
}

func shortMessage(v *validator.Validate, trans ut.Translator, tag, msg string) {
	_ = v.RegisterTranslation(tag, trans,
		func(u ut.Translator) error { return u.Add(tag, msg, true) },
		func(u ut.Translator, fe validator.FieldError) string {
			out, _ := u.T(tag, fe.Field(), fe.Param())
			return out
		},
	)
}

// MinuteAligned reports whether secs lines flush boundaries up with clock minutes:
// a divisor of 60 below a minute, a multiple of 60 at or above
func MinuteAligned(secs int64) bool {
	switch {
	case secs <= 0:
		return false
	case secs < 60:
		return 60%secs == 0
	default:
		return secs%60 == 0
	}
}

func minuteAligned(fl FieldLevel) bool {
	f := fl.Field()
	switch f.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return MinuteAligned(f.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return MinuteAligned(int64(f.Uint()))
	default:
		return false
	}
}

func compiles(fl FieldLevel) bool {
	_, err := regexp.Compile(fl.Field().String())
	return err == nil
}

func wsURL(fl FieldLevel) bool {
	s := strings.ToLower(fl.Field().String())
	return strings.HasPrefix(s, "ws://") || strings.HasPrefix(s, "wss://")
}
