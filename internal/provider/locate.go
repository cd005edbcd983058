package provider

import (
	"reflect"

	"github.com/Iron-Ham/tandem/internal/pipeline"
)

// Locate returns the first well-formed provider in plugins.
//
// Only top-level entries are inspected. Nil entries and deferred entries are
// skipped, and nested groups are skipped without looking inside them, so a
// provider placed in a group is not found. An entry matches when its name is
// Name, it carries a non-nil API, and that API reports a resolved URL set.
//
// Locate only reads; it never modifies the list or its entries.
func Locate(plugins []pipeline.Plugin) (Provider, bool) {
	for _, p := range plugins {
		if IsProvider(p) {
			return p.(Provider), true
		}
	}
	return nil, false
}

// IsProvider reports whether p is a well-formed provider entry.
func IsProvider(p pipeline.Plugin) bool {
	if pipeline.IsNil(p) {
		return false
	}
	switch p.(type) {
	case pipeline.Group, *pipeline.Deferred:
		return false
	}

	prov, ok := p.(Provider)
	if !ok || prov.Name() != Name {
		return false
	}
	api := prov.API()
	if api == nil || isNilAPI(api) {
		return false
	}
	return api.ResolvedURLs() != nil
}

func isNilAPI(api API) bool {
	v := reflect.ValueOf(api)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Interface, reflect.Chan:
		return v.IsNil()
	}
	return false
}
