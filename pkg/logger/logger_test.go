package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"
)

func TestJSONOutputCarriesComponentAndFields(t *testing.T) {
	var buf bytes.Buffer
	Configure(&buf, "json", "debug")
	defer Configure(os.Stderr, "console", "info")

	InfoCF("reconciler", "Cycle completed", map[string]interface{}{
		"retired": 2,
		"error":   errors.New("boom"),
	})

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if line["component"] != "reconciler" {
		t.Errorf("component = %v, want reconciler", line["component"])
	}
	if line["message"] != "Cycle completed" {
		t.Errorf("message = %v", line["message"])
	}
	if line["retired"] != float64(2) {
		t.Errorf("retired = %v, want 2", line["retired"])
	}
	if line["error"] != "boom" {
		t.Errorf("error = %v, want boom", line["error"])
	}
}

func TestLevelFiltersLowerSeverities(t *testing.T) {
	var buf bytes.Buffer
	Configure(&buf, "json", "warn")
	defer Configure(os.Stderr, "console", "info")

	DebugC("probe", "hidden")
	InfoC("probe", "hidden too")
	WarnC("probe", "visible")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug/info lines leaked at warn level: %s", out)
	}
	if !strings.Contains(out, "visible") {
		t.Errorf("warn line missing: %s", out)
	}
}

func TestParseLevelDefaultsToInfo(t *testing.T) {
	if got := parseLevel("nonsense"); got.String() != "info" {
		t.Errorf("parseLevel(nonsense) = %s, want info", got)
	}
	if got := parseLevel("WARNING"); got.String() != "warn" {
		t.Errorf("parseLevel(WARNING) = %s, want warn", got)
	}
}
