package api

import (
	"fmt"
	"net/url"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/MagnunAVF/shortlink-service/internal/shortlink"
)

type createRequest struct {
	URL       string `json:"url" validate:"required,url,httpurl"`
	Validity  *int   `json:"validity" validate:"omitempty,validity"`
	Shortcode string `json:"shortcode" validate:"omitempty,shortcode"`
}

// ReservedShortcodes are path segments taken by fixed routes.
var ReservedShortcodes = []string{"health", "shorturls"}

var fieldMessages = map[string]string{
	"url":       "Invalid URL format. Must include protocol (http/https)",
	"validity":  fmt.Sprintf("Validity must be a positive integer (minutes) no greater than %d", shortlink.MaxValidityMinutes),
	"shortcode": "Shortcode must be alphanumeric, 3-20 characters, and not a reserved word",
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	mustRegister(v, "httpurl", func(fl validator.FieldLevel) bool {
		u, err := url.Parse(fl.Field().String())
		return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
	})
	mustRegister(v, "validity", func(fl validator.FieldLevel) bool {
		return shortlink.ValidValidity(int(fl.Field().Int()))
	})
	mustRegister(v, "shortcode", func(fl validator.FieldLevel) bool {
		code := fl.Field().String()
		return shortlink.ValidShortcode(code) && !isReserved(code)
	})
	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register %q validation: %v", tag, err))
	}
}

func isReserved(code string) bool {
	for _, word := range ReservedShortcodes {
		if strings.EqualFold(code, word) {
			return true
		}
	}
	return false
}

// validateCreate returns the message of the first failing field, or "".
func (h *Handler) validateCreate(req *createRequest) string {
	err := h.validate.Struct(req)
	if err == nil {
		return ""
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	first := verrs[0]
	if first.Field() == "url" && first.Tag() == "required" {
		return "URL is required"
	}
	if msg, ok := fieldMessages[first.Field()]; ok {
		return msg
	}
	return first.Error()
}
