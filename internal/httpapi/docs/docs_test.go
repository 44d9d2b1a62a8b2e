package docs

import (
	"encoding/json"
	"testing"

	"github.com/swaggo/swag"
)

func TestSwaggerDocRenders(t *testing.T) {
	raw, err := swag.ReadDoc(SwaggerInfo.InstanceName())
	if err != nil {
		t.Fatalf("read doc: %v", err)
	}
	var doc struct {
		Swagger     string                     `json:"swagger"`
		Schemes     []string                   `json:"schemes"`
		Paths       map[string]json.RawMessage `json:"paths"`
		Definitions map[string]json.RawMessage `json:"definitions"`
	}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		t.Fatalf("doc is not valid JSON: %v", err)
	}
	if doc.Swagger != "2.0" || len(doc.Schemes) != 1 || doc.Schemes[0] != "http" {
		t.Fatalf("unexpected header: swagger=%q schemes=%v", doc.Swagger, doc.Schemes)
	}
	for _, p := range []string{"/models", "/select", "/chat", "/cancel", "/reset", "/session", "/status", "/events"} {
		if _, ok := doc.Paths[p]; !ok {
			t.Errorf("missing path %s", p)
		}
	}
	for _, d := range []string{"types.ChatChunk", "types.StatusResponse", "types.ErrorResponse", "types.EventMessage"} {
		if _, ok := doc.Definitions[d]; !ok {
			t.Errorf("missing definition %s", d)
		}
	}
}
