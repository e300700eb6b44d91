package apidocs

import (
	"encoding/json"
	"reflect"
	"sort"
	"strings"
	"testing"

	"github.com/swaggo/swag"

	"storybox/pkg/types"
)

type document struct {
	Swagger     string                                `json:"swagger"`
	BasePath    string                                `json:"basePath"`
	Schemes     []string                              `json:"schemes"`
	Info        struct{ Title, Version string }       `json:"info"`
	Paths       map[string]map[string]json.RawMessage `json:"paths"`
	Definitions map[string]struct {
		Properties map[string]struct {
			Example any `json:"example"`
		} `json:"properties"`
	} `json:"definitions"`
}

func readDocument(t *testing.T) document {
	t.Helper()
	raw, err := swag.ReadDoc(SwaggerInfo.InstanceName())
	if err != nil {
		t.Fatalf("read doc: %v", err)
	}
	var doc document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		t.Fatalf("doc is not valid JSON: %v\n%s", err, raw)
	}
	return doc
}

func TestDocumentRendersInfo(t *testing.T) {
	doc := readDocument(t)
	if doc.Swagger != "2.0" || doc.BasePath != "/" || doc.Info.Title != SwaggerInfo.Title || doc.Info.Version != "1.0" {
		t.Fatalf("unexpected header: %+v", doc)
	}
	if !reflect.DeepEqual(doc.Schemes, []string{"http"}) {
		t.Fatalf("schemes = %v", doc.Schemes)
	}
}

func TestDocumentCoversRoutes(t *testing.T) {
	doc := readDocument(t)
	for _, p := range []string{"/status", "/events", "/healthz", "/readyz", "/metrics"} {
		if _, ok := doc.Paths[p]["get"]; !ok {
			t.Fatalf("GET %s not documented", p)
		}
	}
}

// jsonFields returns the JSON property names of a struct type.
func jsonFields(t reflect.Type) []string {
	var out []string
	for i := 0; i < t.NumField(); i++ {
		name, _, _ := strings.Cut(t.Field(i).Tag.Get("json"), ",")
		if name != "" && name != "-" {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func TestDefinitionsMatchTypes(t *testing.T) {
	doc := readDocument(t)
	for name, v := range map[string]any{
		"types.Status":           types.Status{},
		"types.ModelStatus":      types.ModelStatus{},
		"types.GenerationStatus": types.GenerationStatus{},
		"types.ErrorResponse":    types.ErrorResponse{},
		"types.EventRecord":      types.EventRecord{},
	} {
		def, ok := doc.Definitions[name]
		if !ok {
			t.Fatalf("definition %s missing", name)
		}
		var got []string
		for p := range def.Properties {
			got = append(got, p)
		}
		sort.Strings(got)
		if want := jsonFields(reflect.TypeOf(v)); !reflect.DeepEqual(got, want) {
			t.Fatalf("%s properties = %v, want %v", name, got, want)
		}
	}
}

// Every `example` struct tag must show up as the property example.
func TestExamplesMatchStructTags(t *testing.T) {
	doc := readDocument(t)
	for name, v := range map[string]any{
		"types.Status":           types.Status{},
		"types.ModelStatus":      types.ModelStatus{},
		"types.GenerationStatus": types.GenerationStatus{},
		"types.ErrorResponse":    types.ErrorResponse{},
		"types.EventRecord":      types.EventRecord{},
	} {
		rt := reflect.TypeOf(v)
		for i := 0; i < rt.NumField(); i++ {
			f := rt.Field(i)
			ex, ok := f.Tag.Lookup("example")
			if !ok {
				continue
			}
			prop, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			got := doc.Definitions[name].Properties[prop].Example
			var gotText string
			switch g := got.(type) {
			case string:
				gotText = g
			default:
				b, _ := json.Marshal(g)
				gotText = string(b)
			}
			if gotText != ex {
				t.Fatalf("%s.%s example = %q, want %q", name, prop, gotText, ex)
			}
		}
	}
}
