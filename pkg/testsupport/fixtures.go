package testsupport

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

// KeyScenario groups key fixtures that exercise one aspect of hashing.
type KeyScenario struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Cases       []KeyCase `json:"cases"`
}

// KeyCase is a JSON encoded query key and the hash it must produce.
type KeyCase struct {
	Name         string          `json:"name"`
	Key          json.RawMessage `json:"key"`
	ExpectedHash string          `json:"expectedHash"`
}

// LoadFixture loads test data from a fixture file.
// The path is relative to the test package directory.
func LoadFixture(t testing.TB, path string) []byte {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to load fixture from %s: %v", path, err)
	}

	return data
}

// LoadFixtureJSON loads JSON test data from a fixture file and unmarshals it.
func LoadFixtureJSON(t testing.TB, path string, dest any) {
	t.Helper()

	data := LoadFixture(t, path)
	if err := json.Unmarshal(data, dest); err != nil {
		t.Fatalf("failed to unmarshal JSON fixture from %s: %v", path, err)
	}
}

// LoadKeyScenarios reads a {"scenarios": [...]} fixture from testdata.
// Empty files, unnamed scenarios and cases without an expected hash fail
// the test, as do case names repeated within a scenario.
func LoadKeyScenarios(t testing.TB, filename string) []KeyScenario {
	t.Helper()

	var doc struct {
		Scenarios []KeyScenario `json:"scenarios"`
	}
	path := FixturePath(filename)
	LoadFixtureJSON(t, path, &doc)

	if len(doc.Scenarios) == 0 {
		t.Fatalf("fixture %s has no scenarios", path)
	}
	for _, s := range doc.Scenarios {
		if s.Name == "" {
			t.Fatalf("fixture %s has an unnamed scenario", path)
		}
		seen := make(map[string]bool, len(s.Cases))
		for _, c := range s.Cases {
			if seen[c.Name] {
				t.Fatalf("fixture %s: scenario %q repeats case %q", path, s.Name, c.Name)
			}
			seen[c.Name] = true
			if c.ExpectedHash == "" || len(c.Key) == 0 {
				t.Fatalf("fixture %s: case %s/%s needs key and expectedHash", path, s.Name, c.Name)
			}
		}
	}
	return doc.Scenarios
}

// FixturePath constructs a path to a fixture file relative to the testdata directory.
func FixturePath(filename string) string {
	return filepath.Join("testdata", filename)
}
