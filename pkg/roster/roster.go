// Package roster provides ActorRosterProvider implementations.
package roster

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kaizen-works/kaizen/pkg/improvement"
	"github.com/kaizen-works/kaizen/pkg/models"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// ErrInvalidRoster is returned when a roster document does not match its schema.
var ErrInvalidRoster = errors.New("invalid roster")

// documentSchema describes a roster file.
var documentSchema = map[string]any{
	"type":     "object",
	"required": []any{"actors"},
	"properties": map[string]any{
		"actors": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":     "object",
				"required": []any{"name", "hourly_rate"},
				"properties": map[string]any{
					"name":        map[string]any{"type": "string", "minLength": 1},
					"hourly_rate": map[string]any{"type": "integer", "minimum": 0},
				},
			},
		},
	},
}

type document struct {
	Actors []models.Actor `yaml:"actors" validate:"dive"`
}

// Static serves a fixed roster.
type Static struct {
	actors []models.Actor
}

var _ improvement.ActorRosterProvider = (*Static)(nil)

// NewStatic creates a provider over a copy of actors.
func NewStatic(actors ...models.Actor) *Static {
	return &Static{actors: append([]models.Actor(nil), actors...)}
}

// List returns a copy of the roster.
func (s *Static) List(context.Context) ([]models.Actor, error) {
	return append([]models.Actor(nil), s.actors...), nil
}

// File serves a roster from a YAML or JSON file, reloading it when it changes.
type File struct {
	path string

	mu      sync.Mutex
	modTime time.Time
	actors  []models.Actor
}

var _ improvement.ActorRosterProvider = (*File)(nil)

// NewFile creates a provider and loads the file once to fail fast.
func NewFile(path string) (*File, error) {
	f := &File{path: strings.Replace(path, "file://", "", 1)}

	_, err := f.List(context.Background())
	if err != nil {
		return nil, err
	}

	return f, nil
}

// List returns the roster, reading the file again when its mtime has changed.
func (f *File) List(context.Context) ([]models.Actor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	info, err := os.Stat(f.path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat roster file: %w", err)
	}

	if f.actors == nil || !info.ModTime().Equal(f.modTime) {
		body, err := os.ReadFile(f.path)
		if err != nil {
			return nil, fmt.Errorf("failed to read roster file: %w", err)
		}

		actors, err := Decode(body)
		if err != nil {
			return nil, fmt.Errorf("failed to load roster %s: %w", f.path, err)
		}

		f.actors = actors
		f.modTime = info.ModTime()
	}

	return append([]models.Actor(nil), f.actors...), nil
}

// Decode parses a YAML or JSON roster document and validates it.
func Decode(body []byte) ([]models.Actor, error) {
	var raw any

	err := yaml.Unmarshal(body, &raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse roster: %w", err)
	}

	err = validateSchema(raw)
	if err != nil {
		return nil, err
	}

	var doc document

	err = yaml.Unmarshal(body, &doc)
	if err != nil {
		return nil, fmt.Errorf("failed to decode roster: %w", err)
	}

	err = validator.New(validator.WithRequiredStructEnabled()).Struct(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRoster, err)
	}

	seen := make(map[string]bool, len(doc.Actors))
	for _, actor := range doc.Actors {
		if seen[actor.Name] {
			return nil, fmt.Errorf("%w: duplicate actor %q", ErrInvalidRoster, actor.Name)
		}

		seen[actor.Name] = true
	}

	if doc.Actors == nil {
		doc.Actors = []models.Actor{}
	}

	return doc.Actors, nil
}

func validateSchema(raw any) error {
	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(documentSchema), gojsonschema.NewGoLoader(raw))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRoster, err)
	}

	if !result.Valid() {
		var errs []string
		for _, desc := range result.Errors() {
			errs = append(errs, desc.String())
		}

		return fmt.Errorf("%w: %s", ErrInvalidRoster, strings.Join(errs, "; "))
	}

	return nil
}
