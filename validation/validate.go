// Package validation runs field validators and reports their outcome to a
// form engine.
package validation

import (
	"context"
	"errors"
	"fmt"

	cache "github.com/mxcd/go-formcache"
)

var ErrValidatorPanic = errors.New("validation: validator panicked")

// Engine receives validation outcomes for a field.
type Engine interface {
	SetError(field, message string)
	ClearError(field string)
}

// Validator returns an error message for value, or "" when it is valid.
// A returned error is reported as the field's message.
type Validator func(value any) (string, error)

// ValidateField runs validator on value and reports to engine:
// a message sets the field error, an empty message clears it and an error
// (or a panic) sets its text. A nil validator leaves the engine untouched.
func ValidateField(engine Engine, field string, value any, validator Validator) {
	if validator == nil {
		return
	}
	message, err := run(validator, value)
	report(engine, field, message, err)
}

// ValidateFieldCached is ValidateField with validator results memoized in the
// value cache of svc. Entries are keyed by field, validatorID and value, so
// several validators can share a field as long as their IDs differ.
// Failed validations are not cached. Clearing field with ClearForPath
// drops the results of every validator on it.
func ValidateFieldCached(ctx context.Context, svc *cache.CacheService, engine Engine, field, validatorID string, value any, validator Validator) {
	if validator == nil {
		return
	}

	key, err := svc.CreateValueKey(field, []any{validatorID, value})
	if err != nil {
		ValidateField(engine, field, value, validator)
		return
	}

	message, err := cache.GetValueAs(ctx, svc, key, func(context.Context) (string, error) {
		return run(validator, value)
	})
	report(engine, field, message, err)
}

func run(validator Validator, value any) (message string, err error) {
	defer func() {
		if r := recover(); r != nil {
			message = ""
			err = fmt.Errorf("%w: %v", ErrValidatorPanic, r)
		}
	}()
	return validator(value)
}

func report(engine Engine, field, message string, err error) {
	switch {
	case err != nil:
		engine.SetError(field, err.Error())
	case message != "":
		engine.SetError(field, message)
	default:
		engine.ClearError(field)
	}
}
