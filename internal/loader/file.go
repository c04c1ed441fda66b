package loader

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/Adithya-Monish-Kumar-K/querydedup/internal/dedup"
	"gopkg.in/yaml.v3"
)

// Document is the on-disk layout of a query set export. JSON documents with
// the same keys are accepted too.
//
//	subclusters:
//	  - id: paris-tours
//	    name: Paris tours
//	    cluster: France
//	    queries:
//	      - text: tour paris
//	        count: 100
type Document struct {
	Subclusters []dedup.QuerySet `yaml:"subclusters"`
}

// ReadFile loads and normalizes the query sets stored at path.
func ReadFile(path string, maxSets int) ([]dedup.QuerySet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening query set file: %w", err)
	}
	defer f.Close()
	sets, err := Decode(f, maxSets)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return sets, nil
}

// Decode parses a Document from r and normalizes it.
func Decode(r io.Reader, maxSets int) ([]dedup.QuerySet, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading query sets: %w", err)
	}
	var doc Document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && err != io.EOF {
		return nil, fmt.Errorf("parsing query sets: %w", err)
	}
	if err := checkLimit(len(doc.Subclusters), maxSets); err != nil {
		return nil, err
	}
	return Normalize(doc.Subclusters)
}
