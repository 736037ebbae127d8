package cacheinfra

import (
	"context"
	"reflect"

	goerrors "github.com/goliatone/go-errors"
)

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

func invalidFetchFn(message string) error {
	return goerrors.New("fetchFn "+message, goerrors.CategoryBadInput).
		WithTextCode("CACHE_INVALID_FETCH_FN")
}

// validateFetchFn checks that fetchFn has the signature
// func(context.Context) (T, error).
func validateFetchFn(fetchFn any) error {
	if fetchFn == nil {
		return invalidFetchFn("cannot be nil")
	}

	fnType := reflect.TypeOf(fetchFn)
	if fnType.Kind() != reflect.Func {
		return invalidFetchFn("must be a function")
	}

	if fnType.NumIn() != 1 || fnType.NumOut() != 2 {
		return invalidFetchFn("must have signature func(context.Context) (T, error)")
	}

	if !fnType.In(0).Implements(contextType) {
		return invalidFetchFn("first parameter must be context.Context")
	}

	if !fnType.Out(1).Implements(errorType) {
		return invalidFetchFn("second return value must be error")
	}

	return nil
}

// resultType is the T of a validated fetchFn.
func resultType(fetchFn any) reflect.Type {
	return reflect.TypeOf(fetchFn).Out(0)
}

// callFetchFunctionWithReflection calls a validated fetchFn and returns its
// result as any.
func callFetchFunctionWithReflection(ctx context.Context, fetchFn any) (any, error) {
	if fn, ok := fetchFn.(func(context.Context) (any, error)); ok {
		return fn(ctx)
	}

	results := reflect.ValueOf(fetchFn).Call([]reflect.Value{reflect.ValueOf(&ctx).Elem()})

	var result any
	if rv := results[0]; rv.IsValid() && rv.CanInterface() {
		result = rv.Interface()
	}

	var err error
	if ev := results[1]; !ev.IsNil() {
		err = ev.Interface().(error)
	}

	return result, err
}
