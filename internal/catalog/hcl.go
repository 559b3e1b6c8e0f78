package catalog

import (
	"fmt"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"
)

// hclCatalogFile is the top-level structure of an HCL records file:
//
//	service "billing" {
//	  group         = "finance.payments"
//	  provided_apis = ["invoices"]
//	  extensions    = { tier = 1 }
//	}
type hclCatalogFile struct {
	Services []*hclService `hcl:"service,block"`
}

type hclService struct {
	Name                     string    `hcl:"name,label"`
	Group                    string    `hcl:"group,optional"`
	Tags                     []string  `hcl:"tags,optional"`
	ProvidedAPIs             []string  `hcl:"provided_apis,optional"`
	ConsumedAPIs             []string  `hcl:"consumed_apis,optional"`
	PublishedEvents          []string  `hcl:"published_events,optional"`
	SubscribedEvents         []string  `hcl:"subscribed_events,optional"`
	Responsibles             []string  `hcl:"responsibles,optional"`
	ResponsibleTeam          string    `hcl:"responsible_team,optional"`
	Repository               string    `hcl:"repository,optional"`
	TaskBoard                string    `hcl:"task_board,optional"`
	DevelopmentDocumentation string    `hcl:"development_documentation,optional"`
	DeploymentDocumentation  string    `hcl:"deployment_documentation,optional"`
	APIDocumentation         string    `hcl:"api_documentation,optional"`
	Extensions               cty.Value `hcl:"extensions,optional"`
}

// LoadHCL decodes `service` blocks from HCL source. filename is used only in
// diagnostics.
func LoadHCL(src []byte, filename string) ([]ServiceRecord, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("catalog: parse hcl %s: %w", filename, diags)
	}

	var parsed hclCatalogFile
	diags = gohcl.DecodeBody(file.Body, nil, &parsed)
	if diags.HasErrors() {
		return nil, fmt.Errorf("catalog: decode hcl %s: %w", filename, diags)
	}

	records := make([]ServiceRecord, 0, len(parsed.Services))
	for _, svc := range parsed.Services {
		ext, err := ctyToExtensions(svc.Extensions)
		if err != nil {
			return nil, fmt.Errorf("catalog: service %q extensions: %w", svc.Name, err)
		}
		records = append(records, ServiceRecord{
			Name:                     svc.Name,
			Group:                    svc.Group,
			Tags:                     svc.Tags,
			ProvidedAPIs:             svc.ProvidedAPIs,
			ConsumedAPIs:             svc.ConsumedAPIs,
			PublishedEvents:          svc.PublishedEvents,
			SubscribedEvents:         svc.SubscribedEvents,
			Responsibles:             svc.Responsibles,
			ResponsibleTeam:          svc.ResponsibleTeam,
			Repository:               svc.Repository,
			TaskBoard:                svc.TaskBoard,
			DevelopmentDocumentation: svc.DevelopmentDocumentation,
			DeploymentDocumentation:  svc.DeploymentDocumentation,
			APIDocumentation:         svc.APIDocumentation,
			Extensions:               ext,
		})
	}
	return records, nil
}

// ctyToExtensions converts the extensions object into the same shapes the
// JSON decoder produces.
func ctyToExtensions(v cty.Value) (map[string]any, error) {
	if v.IsNull() || !v.IsKnown() {
		return nil, nil
	}
	ty := v.Type()
	if !ty.IsObjectType() && !ty.IsMapType() {
		return nil, fmt.Errorf("expected an object, got %s", ty.FriendlyName())
	}

	out := make(map[string]any)
	it := v.ElementIterator()
	for it.Next() {
		key, val := it.Element()
		native, err := ctyToNative(val)
		if err != nil {
			return nil, fmt.Errorf("in attribute %q: %w", key.AsString(), err)
		}
		out[key.AsString()] = native
	}
	return out, nil
}

// ctyToNative handles the primitive and list shapes extensions may take.
func ctyToNative(v cty.Value) (any, error) {
	if v.IsNull() || !v.IsKnown() {
		return nil, nil
	}

	ty := v.Type()
	switch {
	case ty == cty.String:
		return v.AsString(), nil

	case ty == cty.Number:
		var f float64
		if err := gocty.FromCtyValue(v, &f); err != nil {
			return nil, fmt.Errorf("convert number: %w", err)
		}
		return f, nil

	case ty == cty.Bool:
		return v.True(), nil

	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		items := make([]any, 0, v.LengthInt())
		it := v.ElementIterator()
		for it.Next() {
			_, elem := it.Element()
			native, err := ctyToNative(elem)
			if err != nil {
				return nil, err
			}
			items = append(items, native)
		}
		return items, nil

	default:
		return nil, fmt.Errorf("unsupported type %s", ty.FriendlyName())
	}
}
