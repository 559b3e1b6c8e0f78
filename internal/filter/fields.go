package filter

import (
	"fmt"
	"strings"

	"github.com/vyuha/vyuha-catalog/internal/catalog"
)

// extensionPrefix introduces keys addressing record extensions.
const extensionPrefix = "extensions."

// fieldValue is what a field holds on one record. present is false when the
// field is absent altogether; list distinguishes array fields from strings.
type fieldValue struct {
	values  []string
	list    bool
	present bool
}

// empty reports whether the value counts as %empty%: absent, an empty
// string or an empty array. An array holding one empty string is not empty.
func (v fieldValue) empty() bool {
	if !v.present {
		return true
	}
	if v.list {
		return len(v.values) == 0
	}
	return len(v.values) == 0 || v.values[0] == ""
}

// field reads one record field.
type field func(r *catalog.ServiceRecord) fieldValue

func stringField(get func(*catalog.ServiceRecord) string) field {
	return func(r *catalog.ServiceRecord) fieldValue {
		v := get(r)
		return fieldValue{values: []string{v}, present: v != ""}
	}
}

func listField(get func(*catalog.ServiceRecord) []string) field {
	return func(r *catalog.ServiceRecord) fieldValue {
		v := get(r)
		return fieldValue{values: v, list: true, present: v != nil}
	}
}

func extensionField(name string) field {
	return func(r *catalog.ServiceRecord) fieldValue {
		values, list, ok := r.ExtensionStrings(name)
		return fieldValue{values: values, list: list, present: ok}
	}
}

// fields is the allow-list of filterable record fields, keyed by lowercase
// name. List fields accept both singular and plural spellings.
var fields = map[string]field{
	"name":                     stringField(func(r *catalog.ServiceRecord) string { return r.Name }),
	"group":                    stringField(func(r *catalog.ServiceRecord) string { return r.Group }),
	"responsibleteam":          stringField(func(r *catalog.ServiceRecord) string { return r.ResponsibleTeam }),
	"repository":               stringField(func(r *catalog.ServiceRecord) string { return r.Repository }),
	"taskboard":                stringField(func(r *catalog.ServiceRecord) string { return r.TaskBoard }),
	"developmentdocumentation": stringField(func(r *catalog.ServiceRecord) string { return r.DevelopmentDocumentation }),
	"deploymentdocumentation":  stringField(func(r *catalog.ServiceRecord) string { return r.DeploymentDocumentation }),
	"apidocumentation":         stringField(func(r *catalog.ServiceRecord) string { return r.APIDocumentation }),

	"tag":              listField(func(r *catalog.ServiceRecord) []string { return r.Tags }),
	"tags":             listField(func(r *catalog.ServiceRecord) []string { return r.Tags }),
	"providedapi":      listField(func(r *catalog.ServiceRecord) []string { return r.ProvidedAPIs }),
	"providedapis":     listField(func(r *catalog.ServiceRecord) []string { return r.ProvidedAPIs }),
	"consumedapi":      listField(func(r *catalog.ServiceRecord) []string { return r.ConsumedAPIs }),
	"consumedapis":     listField(func(r *catalog.ServiceRecord) []string { return r.ConsumedAPIs }),
	"publishedevent":   listField(func(r *catalog.ServiceRecord) []string { return r.PublishedEvents }),
	"publishedevents":  listField(func(r *catalog.ServiceRecord) []string { return r.PublishedEvents }),
	"subscribedevent":  listField(func(r *catalog.ServiceRecord) []string { return r.SubscribedEvents }),
	"subscribedevents": listField(func(r *catalog.ServiceRecord) []string { return r.SubscribedEvents }),
	"responsible":      listField(func(r *catalog.ServiceRecord) []string { return r.Responsibles }),
	"responsibles":     listField(func(r *catalog.ServiceRecord) []string { return r.Responsibles }),
}

// lookupField resolves a query key. Field names are case-insensitive;
// extension names after the prefix are taken verbatim.
func lookupField(key string) (field, error) {
	if len(key) > len(extensionPrefix) && strings.EqualFold(key[:len(extensionPrefix)], extensionPrefix) {
		return extensionField(key[len(extensionPrefix):]), nil
	}
	if f, ok := fields[strings.ToLower(key)]; ok {
		return f, nil
	}
	return nil, fmt.Errorf("unknown filter key %q", key)
}

// Keys lists the accepted field keys in their canonical spelling.
func Keys() []string {
	return []string{
		"name", "group", "tags", "providedAPIs", "consumedAPIs",
		"publishedEvents", "subscribedEvents", "responsibles", "responsibleTeam",
		"repository", "taskBoard", "developmentDocumentation",
		"deploymentDocumentation", "apiDocumentation", extensionPrefix + "<name>",
	}
}
