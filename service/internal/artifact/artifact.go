// Package artifact loads the synthesis outputs a study runs on: the product
// game graph, the robot strategy with its adviser annotations, and an
// optional kitchen layout. Files may be YAML or JSON.
package artifact

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	engine "github.com/jason-s-yu/burgerlab/engine"
	"gopkg.in/yaml.v3"
)

// File base names looked up by LoadDir, tried with each extension in order.
const (
	GameFile     = "game"
	StrategyFile = "strategy"
	LayoutFile   = "layout"
)

var extensions = []string{".yaml", ".yml", ".json"}

// Bundle is a validated set of study artifacts.
type Bundle struct {
	Graph    *engine.Graph
	Strategy *engine.Strategy
	Layout   *engine.Layout
	Dir      string
}

// Validate checks the graph, the strategy against the graph, and the layout.
// Every proposition named by the graph must be bound to a layout tile.
func (b *Bundle) Validate() error {
	if err := b.Graph.Validate(); err != nil {
		return fmt.Errorf("game: %w", err)
	}
	if err := b.Strategy.Validate(b.Graph); err != nil {
		return fmt.Errorf("strategy: %w", err)
	}
	if err := b.Layout.Validate(); err != nil {
		return err
	}
	for _, ap := range b.Graph.HumanAP {
		if _, ok := b.Layout.PropositionTile(ap); !ok {
			return fmt.Errorf("layout: human proposition %q has no tile", ap)
		}
	}
	return nil
}

// LoadDir loads game, strategy and (if present) layout files from dir and
// validates them together. A missing layout falls back to the default kitchen.
func LoadDir(dir string) (*Bundle, error) {
	gamePath, err := find(dir, GameFile)
	if err != nil {
		return nil, err
	}
	stratPath, err := find(dir, StrategyFile)
	if err != nil {
		return nil, err
	}

	b := &Bundle{Dir: dir, Layout: engine.DefaultLayout()}
	if b.Graph, err = LoadGame(gamePath); err != nil {
		return nil, err
	}
	if b.Strategy, err = LoadStrategy(stratPath); err != nil {
		return nil, err
	}
	layoutPath, err := find(dir, LayoutFile)
	switch {
	case err == nil:
		if b.Layout, err = LoadLayout(layoutPath); err != nil {
			return nil, err
		}
	case !errors.Is(err, os.ErrNotExist):
		return nil, err
	}

	if err := b.Validate(); err != nil {
		return nil, fmt.Errorf("artifacts in %s: %w", dir, err)
	}
	return b, nil
}

func find(dir, base string) (string, error) {
	for _, ext := range extensions {
		p := filepath.Join(dir, base+ext)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", err
		}
	}
	return "", fmt.Errorf("no %s file in %s: %w", base, dir, os.ErrNotExist)
}

// LoadGame reads a game graph file.
func LoadGame(path string) (*engine.Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	g, err := DecodeGame(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return g, nil
}

// LoadStrategy reads a strategy file.
func LoadStrategy(path string) (*engine.Strategy, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	s, err := DecodeStrategy(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// LoadLayout reads a layout file.
func LoadLayout(path string) (*engine.Layout, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	l, err := DecodeLayout(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return l, nil
}

func decode(r io.Reader, v any) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty document")
		}
		return err
	}
	return nil
}
