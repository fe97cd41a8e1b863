package acceptance

import (
	"encoding/json"
	"os/exec"
	"testing"
)

func TestSchemaCommand(t *testing.T) {
	cmd := exec.Command(binaryPath, "schema")
	output, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("Failed to execute schema command: %v\n%s", err, output)
	}

	var schema struct {
		Properties map[string]json.RawMessage `json:"properties"`
		Required   []string                   `json:"required"`
	}
	if err := json.Unmarshal(output, &schema); err != nil {
		t.Fatalf("Schema output should be JSON: %v\nOutput: %s", err, output)
	}

	for _, field := range []string{"description", "mode", "tools", "permission"} {
		if _, ok := schema.Properties[field]; !ok {
			t.Errorf("Schema should describe the %q field. Got properties: %v", field, schema.Properties)
		}
	}

	requiredSeen := false
	for _, field := range schema.Required {
		if field == "description" {
			requiredSeen = true
		}
	}
	if !requiredSeen {
		t.Errorf("Schema should require description. Got required: %v", schema.Required)
	}
}
