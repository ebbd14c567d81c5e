package seed

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const tomlCorpusText = `
[[example]]
description = "brute force directories"
command = "ffuf -u https://t/FUZZ -w common.txt"

[[example]]
description = "find virtual hosts"
command = "ffuf -u https://t -H 'Host: FUZZ.t' -w subdomains.txt -fs 0"
`

func TestParseTOML(t *testing.T) {
	pairs, err := ParseTOML([]byte(tomlCorpusText))
	if err != nil {
		t.Fatalf("ParseTOML: %v", err)
	}
	if len(pairs) != 2 {
		t.Fatalf("len = %d, want 2", len(pairs))
	}
	if pairs[1].Command != "ffuf -u https://t -H 'Host: FUZZ.t' -w subdomains.txt -fs 0" {
		t.Errorf("command = %q", pairs[1].Command)
	}
}

func TestParseJSONL(t *testing.T) {
	in := `{"description":"dirs","command":"ffuf -u http://t/FUZZ -w w.txt"}

{"description":"params","command":"ffuf -u 'http://t/?FUZZ=1' -w p.txt"}
`
	pairs, err := ParseJSONL(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ParseJSONL: %v", err)
	}
	if len(pairs) != 2 || pairs[1].Description != "params" {
		t.Errorf("pairs = %+v", pairs)
	}
}

func TestParseErrors(t *testing.T) {
	if _, err := ParseJSONL(strings.NewReader(`{"description":"x"`)); err == nil || !strings.Contains(err.Error(), "line 1") {
		t.Errorf("malformed line: err = %v", err)
	}
	if _, err := ParseJSONL(strings.NewReader(`{"description":"x","command":""}`)); err == nil {
		t.Error("expected error for missing command")
	}
	if _, err := ParseTOML([]byte("")); err == nil {
		t.Error("expected error for empty corpus")
	}
	if _, err := ParseTOML([]byte("[[example]\n")); err == nil {
		t.Error("expected error for invalid TOML")
	}
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	tomlPath := filepath.Join(dir, "corpus.toml")
	os.WriteFile(tomlPath, []byte(tomlCorpusText), 0o600)
	if pairs, err := ReadFile(tomlPath); err != nil || len(pairs) != 2 {
		t.Errorf("ReadFile(toml) = %d pairs, %v", len(pairs), err)
	}

	csvPath := filepath.Join(dir, "corpus.csv")
	os.WriteFile(csvPath, []byte("a,b"), 0o600)
	if _, err := ReadFile(csvPath); err == nil {
		t.Error("expected error for unsupported extension")
	}
}
