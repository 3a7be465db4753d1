/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package log

import (
	"errors"
	"fmt"
	"io"
	"reflect"
	"regexp"
	"strings"
	"unsafe"

	"github.com/ssgreg/logf"
)

// Mask is used to mask a secret in strings.
type Mask struct {
	RegExp *regexp.Regexp
	Mask   string
}

// NewMask creates a new Mask. It panics if the regular expression cannot be compiled.
func NewMask(cfg MaskConfig) Mask {
	return Mask{regexp.MustCompile(cfg.RegExp), cfg.Mask}
}

// RecipientMask hides the local part of e-mail addresses except the first character.
var RecipientMask = NewMask(MaskConfig{
	RegExp: `([A-Za-z0-9._%+\-])[A-Za-z0-9._%+\-]*@([A-Za-z0-9\-]+(?:\.[A-Za-z0-9\-]+)+)`,
	Mask:   "$1***@$2",
})

// FieldMasker is used to mask a field in different formats.
type FieldMasker struct {
	Field string // Field is a name of a field used in RegExp, must be lowercase
	Masks []Mask
}

// NewFieldMasker creates a new FieldMasker from the masking rule.
func NewFieldMasker(cfg MaskingRuleConfig) FieldMasker {
	fMask := FieldMasker{Field: strings.ToLower(cfg.Field), Masks: make([]Mask, 0, len(cfg.Masks))}
	for _, repCfg := range cfg.Masks {
		fMask.Masks = append(fMask.Masks, NewMask(repCfg))
	}
	for _, format := range cfg.Formats {
		switch format {
		case FieldMaskFormatHTTPHeader:
			fMask.Masks = append(fMask.Masks, NewMask(MaskConfig{`(?i)` + cfg.Field + `: .+?\r\n`, cfg.Field + ": ***\r\n"}))
		case FieldMaskFormatJSON:
			fMask.Masks = append(fMask.Masks, NewMask(MaskConfig{`(?i)"` + cfg.Field + `"\s*:\s*".*?[^\\]"`, `"` + cfg.Field + `": "***"`}))
		case FieldMaskFormatURLEncoded:
			fMask.Masks = append(fMask.Masks, NewMask(MaskConfig{`(?i)` + cfg.Field + `\s*=\s*[^&\s]+`, cfg.Field + "=***"}))
		}
	}
	return fMask
}

// Masker is used to mask secrets and recipients in strings.
type Masker struct {
	// FieldMasks are applied only if the string contains the name of the field.
	FieldMasks []FieldMasker

	// Masks are applied to every string.
	Masks []Mask
}

// NewMasker creates a new Masker with the given field rules.
func NewMasker(rules []MaskingRuleConfig, masks ...Mask) *Masker {
	r := &Masker{FieldMasks: make([]FieldMasker, 0, len(rules)), Masks: masks}
	for _, rule := range rules {
		r.FieldMasks = append(r.FieldMasks, NewFieldMasker(rule))
	}
	return r
}

// NewMaskerFromConfig creates a new Masker according to the configuration.
// It returns nil if masking is not needed.
func NewMaskerFromConfig(cfg MaskingConfig) *Masker {
	var rules []MaskingRuleConfig
	if cfg.Enabled {
		rules = append(rules, cfg.Rules...)
		if cfg.UseDefaultRules {
			rules = append(rules, DefaultMasks...)
		}
	}
	var masks []Mask
	if cfg.Recipients {
		masks = append(masks, RecipientMask)
	}
	if len(rules) == 0 && len(masks) == 0 {
		return nil
	}
	return NewMasker(rules, masks...)
}

// Mask masks all secrets in the string.
func (r *Masker) Mask(s string) string {
	lower := strings.ToLower(s)
	for _, fieldMask := range r.FieldMasks {
		if strings.Contains(lower, fieldMask.Field) {
			for _, rep := range fieldMask.Masks {
				s = rep.RegExp.ReplaceAllString(s, rep.Mask)
			}
		}
	}
	for _, rep := range r.Masks {
		s = rep.RegExp.ReplaceAllString(s, rep.Mask)
	}
	return s
}

// DefaultMasks are masking rules for common credentials.
var DefaultMasks = []MaskingRuleConfig{
	{
		Field:   "Authorization",
		Formats: []FieldMaskFormat{FieldMaskFormatHTTPHeader},
	},
	{
		Field:   "password",
		Formats: []FieldMaskFormat{FieldMaskFormatJSON, FieldMaskFormatURLEncoded},
	},
	{
		Field:   "api_key",
		Formats: []FieldMaskFormat{FieldMaskFormatJSON, FieldMaskFormatURLEncoded},
	},
	{
		Field:   "access_token",
		Formats: []FieldMaskFormat{FieldMaskFormatJSON, FieldMaskFormatURLEncoded},
	},
}

// StringMasker masks secrets in strings.
type StringMasker interface {
	Mask(s string) string
}

// MaskingLogger is a logger that masks secrets and recipients in log messages and fields.
type MaskingLogger struct {
	log    FieldLogger
	masker StringMasker
}

// NewMaskingLogger creates a new MaskingLogger.
func NewMaskingLogger(l FieldLogger, r StringMasker) FieldLogger {
	return MaskingLogger{l, r}
}

// With returns a new logger with the given additional fields.
func (l MaskingLogger) With(fs ...Field) FieldLogger {
	return MaskingLogger{l.log.With(l.maskFields(fs)...), l.masker}
}

// Debug logs a formatted Message at "debug" level.
func (l MaskingLogger) Debug(text string, fs ...Field) {
	l.log.Debug(l.masker.Mask(text), l.maskFields(fs)...)
}

// Info logs a formatted Message at "info" level.
func (l MaskingLogger) Info(text string, fs ...Field) {
	l.log.Info(l.masker.Mask(text), l.maskFields(fs)...)
}

// Warn logs a formatted Message at "warn" level.
func (l MaskingLogger) Warn(text string, fs ...Field) {
	l.log.Warn(l.masker.Mask(text), l.maskFields(fs)...)
}

// Error logs a formatted Message at "error" level.
func (l MaskingLogger) Error(text string, fs ...Field) {
	l.log.Error(l.masker.Mask(text), l.maskFields(fs)...)
}

var stringSliceType = reflect.TypeOf([]string{})

// maskFields masks string, error and []string fields. Other field types are logged as is.
func (l MaskingLogger) maskFields(fields []Field) []Field {
	var newFields []Field
	replace := func(i int, f Field) {
		if newFields == nil {
			newFields = make([]Field, len(fields))
			copy(newFields, fields)
		}
		newFields[i] = f
	}

	for i, field := range fields {
		field := field // Important when working with unsafe.Pointer
		switch field.Type {
		case logf.FieldTypeBytesToString:
			s := *(*string)(unsafe.Pointer(&field.Bytes)) // nolint: gosec
			if masked := l.masker.Mask(s); masked != s {
				replace(i, String(field.Key, masked))
			}
		case logf.FieldTypeError:
			if err, ok := field.Any.(error); ok && err != nil {
				s := err.Error()
				if masked := l.masker.Mask(s); masked != s {
					replace(i, logf.NamedError(field.Key, newMaskedError(err, l.masker, masked)))
				}
			}
		case logf.FieldTypeArray:
			if field.Any == nil {
				continue
			}
			value := reflect.ValueOf(field.Any)
			if !value.CanConvert(stringSliceType) {
				continue
			}
			ss := value.Convert(stringSliceType).Interface().([]string)
			var changed bool
			masked := make([]string, len(ss))
			for j, s := range ss {
				masked[j] = l.masker.Mask(s)
				changed = changed || masked[j] != s
			}
			if changed {
				replace(i, Strings(field.Key, masked))
			}
		}
	}

	if newFields == nil {
		return fields
	}
	return newFields
}

func newMaskedError(err error, r StringMasker, masked string) error {
	if _, ok := err.(fmt.Formatter); ok {
		return maskedError{s: masked, verboseS: r.Mask(fmt.Sprintf("%+v", err))}
	}
	return errors.New(masked)
}

// maskedError is needed to support logf "error_verbose" field.
type maskedError struct {
	s        string
	verboseS string
}

func (e maskedError) Error() string {
	return e.s
}

func (e maskedError) Format(f fmt.State, _ rune) {
	_, _ = io.WriteString(f, e.verboseS)
}
