// Package validation содержит проверку входных данных, очистку текста и выпуск идентификаторов меток.
package validation

import (
	"errors"
	"fmt"
	"html"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
)

// Error описывает ошибку валидации, текст которой можно отдать клиенту.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

var (
	validate = newValidator()
	strict   = bluemonday.StrictPolicy()

	nonSlugChars = regexp.MustCompile(`[^a-z0-9]`)
	underscores  = regexp.MustCompile(`_+`)
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// Struct проверяет структуру по тегам validate и возвращает *Error для первой ошибки.
func Struct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("validate: %w", err)
	}

	fe := fieldErrs[0]
	return &Error{Field: fe.Field(), Message: message(fe)}
}

func message(fe validator.FieldError) string {
	field := humanize(fe.Field())
	isString := fe.Kind() == reflect.String

	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return "Invalid email address"
	case "uuid", "uuid4", "url":
		return "Invalid " + field
	case "min":
		if isString {
			return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		if isString {
			return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	default:
		return field + " is invalid"
	}
}

// humanize превращает имя поля вида prize_id в "Prize ID".
func humanize(field string) string {
	parts := strings.Split(field, "_")
	for i, p := range parts {
		switch p {
		case "id", "nfc", "url":
			parts[i] = strings.ToUpper(p)
		default:
			if p != "" {
				parts[i] = strings.ToUpper(p[:1]) + p[1:]
			}
		}
	}
	return strings.Join(parts, " ")
}

// IsUUID сообщает, является ли строка UUID.
func IsUUID(s string) bool {
	return uuid.Validate(s) == nil
}

// Sanitize удаляет HTML-разметку и крайние пробелы из пользовательского текста.
func Sanitize(s string) string {
	return strings.TrimSpace(html.UnescapeString(strict.Sanitize(s)))
}

// NormalizeEmail приводит email к каноническому виду.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Slugify приводит название заведения к виду, пригодному для идентификатора метки.
func Slugify(name string) string {
	slug := nonSlugChars.ReplaceAllString(strings.ToLower(name), "_")
	return underscores.ReplaceAllString(slug, "_")
}

// NewTagID выпускает идентификатор NFC-метки для нового заведения.
func NewTagID(name string, now time.Time) string {
	return fmt.Sprintf("nfc_%s_%d", Slugify(name), now.UnixMilli())
}
