// Package seed reads example corpora from TOML or JSON Lines files.
//
// TOML files hold an array of tables:
//
//	[[example]]
//	description = "brute force directories on example.com"
//	command = "ffuf -u https://example.com/FUZZ -w common.txt"
//
// JSON Lines files hold one {"description": ..., "command": ...} object per line.
package seed

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/kalambet/aist/internal/retrieval"
)

type tomlCorpus struct {
	Example []retrieval.Pair `toml:"example"`
}

// ReadFile parses the corpus at path, choosing the format by extension.
func ReadFile(path string) ([]retrieval.Pair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading corpus: %w", err)
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		return ParseTOML(data)
	case ".jsonl", ".ndjson":
		return ParseJSONL(bytes.NewReader(data))
	default:
		return nil, fmt.Errorf("unsupported corpus format %q (want .toml or .jsonl)", ext)
	}
}

// ParseTOML parses a TOML corpus.
func ParseTOML(data []byte) ([]retrieval.Pair, error) {
	var c tomlCorpus
	if err := toml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing TOML corpus: %w", err)
	}
	if err := validate(c.Example); err != nil {
		return nil, err
	}
	return c.Example, nil
}

// ParseJSONL parses a JSON Lines corpus. Blank lines are skipped.
func ParseJSONL(r io.Reader) ([]retrieval.Pair, error) {
	var pairs []retrieval.Pair
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		var p retrieval.Pair
		if err := json.Unmarshal([]byte(text), &p); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		pairs = append(pairs, p)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading corpus: %w", err)
	}
	if err := validate(pairs); err != nil {
		return nil, err
	}
	return pairs, nil
}

func validate(pairs []retrieval.Pair) error {
	if len(pairs) == 0 {
		return fmt.Errorf("corpus contains no examples")
	}
	for i, p := range pairs {
		if strings.TrimSpace(p.Description) == "" || strings.TrimSpace(p.Command) == "" {
			return fmt.Errorf("example %d: description and command are required", i+1)
		}
	}
	return nil
}
