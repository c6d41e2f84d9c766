// Package intake validates and decodes the JSON the governor reads: analyzed
// documents, corpus snapshots and reassembly actions.
//
// Corpus entries are only checked for shape. A malformed analysis inside an
// entry is kept and simply never matches during recurrence.
package intake

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/assemblage-lab/governor/pkg/contracts"
)

//go:embed schemas/*.json
var schemaFS embed.FS

const schemaBase = "https://governor.schemas.local/intake/"

// ErrInvalidInput wraps schema and decode failures.
var ErrInvalidInput = errors.New("invalid input")

var (
	compileOnce sync.Once
	compiled    map[string]*jsonschema.Schema
	compileErr  error
)

func schemas() (map[string]*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		names := []string{"action", "document", "corpus"}
		for _, name := range names {
			raw, err := schemaFS.ReadFile("schemas/" + name + ".schema.json")
			if err != nil {
				compileErr = err
				return
			}
			if err := c.AddResource(schemaBase+name+".schema.json", bytes.NewReader(raw)); err != nil {
				compileErr = fmt.Errorf("intake schema %s load failed: %w", name, err)
				return
			}
		}
		compiled = make(map[string]*jsonschema.Schema, len(names))
		for _, name := range names {
			s, err := c.Compile(schemaBase + name + ".schema.json")
			if err != nil {
				compileErr = fmt.Errorf("intake schema %s compile failed: %w", name, err)
				return
			}
			compiled[name] = s
		}
	})
	return compiled, compileErr
}

func validate(schema string, raw []byte) error {
	all, err := schemas()
	if err != nil {
		return err
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidInput, schema, err)
	}
	if err := all[schema].Validate(v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidInput, schema, err)
	}
	return nil
}

func decode[T any](schema string, raw []byte) (T, error) {
	var out T
	if err := validate(schema, raw); err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("%w: %s: %v", ErrInvalidInput, schema, err)
	}
	return out, nil
}

// Document validates and decodes an analyzed document.
func Document(raw []byte) (*contracts.AnalysisResult, error) {
	doc, err := decode[contracts.AnalysisResult]("document", raw)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// Corpus validates and decodes a corpus snapshot. An entry whose analysis
// does not decode is kept without one.
func Corpus(raw []byte) ([]contracts.Source, error) {
	entries, err := decode[[]json.RawMessage]("corpus", raw)
	if err != nil {
		return nil, err
	}

	corpus := make([]contracts.Source, 0, len(entries))
	for _, e := range entries {
		var src contracts.Source
		if err := json.Unmarshal(e, &src); err != nil {
			var head struct {
				ID    string `json:"id"`
				Title string `json:"title"`
			}
			_ = json.Unmarshal(e, &head)
			src = contracts.Source{ID: head.ID, Title: head.Title}
		}
		corpus = append(corpus, src)
	}
	return corpus, nil
}

// Action validates and decodes a single reassembly action.
func Action(raw []byte) (contracts.ReassemblyAction, error) {
	a, err := decode[contracts.ReassemblyAction]("action", raw)
	if err != nil {
		return contracts.ReassemblyAction{}, err
	}
	if err := a.Validate(); err != nil {
		return contracts.ReassemblyAction{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return a, nil
}

// ReadDocument reads a document from path, or stdin when path is "-".
func ReadDocument(path string) (*contracts.AnalysisResult, error) {
	raw, err := readAll(path)
	if err != nil {
		return nil, err
	}
	return Document(raw)
}

// ReadCorpus reads a corpus from path. An empty path is an empty corpus.
func ReadCorpus(path string) ([]contracts.Source, error) {
	if path == "" {
		return []contracts.Source{}, nil
	}
	raw, err := readAll(path)
	if err != nil {
		return nil, err
	}
	return Corpus(raw)
}

func readAll(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}
