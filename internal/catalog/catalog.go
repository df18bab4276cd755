// Package catalog serves technique reference data to the resolver.
//
// A Service is built explicitly, initialised once per player session and
// disposed on logout. Until Init succeeds every lookup misses.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/zxckotee/pvp-arena/internal/engine"
	"github.com/zxckotee/pvp-arena/pkg/types"
)

var ErrNotInitialized = errors.New("technique catalog not initialized")

// Loader fetches the raw catalog.
type Loader interface {
	Load(ctx context.Context) (types.TechniqueCatalog, error)
}

type LoaderFunc func(ctx context.Context) (types.TechniqueCatalog, error)

func (f LoaderFunc) Load(ctx context.Context) (types.TechniqueCatalog, error) { return f(ctx) }

type Service struct {
	loader Loader
	log    *zap.Logger

	mu         sync.RWMutex
	ready      bool
	techniques map[string]engine.Technique
	order      []string
	selfIDs    map[string]bool
}

var _ engine.Catalog = (*Service)(nil)

func New(loader Loader, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{loader: loader, log: log.Named("catalog")}
}

// Init loads the catalog, replacing anything loaded before.
func (s *Service) Init(ctx context.Context) error {
	raw, err := s.loader.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load techniques: %w", err)
	}

	techniques := make(map[string]engine.Technique, len(raw.Techniques))
	order := make([]string, 0, len(raw.Techniques))
	for _, w := range raw.Techniques {
		if w.ID == "" {
			s.log.Warn("skipping technique without id", zap.String("name", w.Name))
			continue
		}
		if _, dup := techniques[w.ID]; !dup {
			order = append(order, w.ID)
		}
		techniques[w.ID] = engine.TechniqueFromWire(w)
	}
	selfIDs := make(map[string]bool, len(raw.SelfTargetIDs))
	for _, id := range raw.SelfTargetIDs {
		selfIDs[id] = true
	}

	s.mu.Lock()
	s.techniques, s.order, s.selfIDs, s.ready = techniques, order, selfIDs, true
	s.mu.Unlock()

	s.log.Info("techniques loaded", zap.Int("count", len(techniques)), zap.Int("self_target", len(selfIDs)))
	return nil
}

func (s *Service) Dispose() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.techniques, s.order, s.selfIDs, s.ready = nil, nil, nil, false
}

func (s *Service) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

func (s *Service) Technique(id string) (engine.Technique, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.techniques[id]
	return t, ok
}

func (s *Service) SelfTargeting(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selfIDs[id]
}

// All returns the techniques in load order.
func (s *Service) All() ([]engine.Technique, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.ready {
		return nil, ErrNotInitialized
	}
	out := make([]engine.Technique, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.techniques[id])
	}
	return out, nil
}

// Wire renders the loaded catalog back into its wire shape.
func (s *Service) Wire() (types.TechniqueCatalog, error) {
	all, err := s.All()
	if err != nil {
		return types.TechniqueCatalog{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := types.TechniqueCatalog{Techniques: make([]types.Technique, 0, len(all))}
	for _, t := range all {
		out.Techniques = append(out.Techniques, techniqueToWire(t))
	}
	for _, id := range s.order {
		if s.selfIDs[id] {
			out.SelfTargetIDs = append(out.SelfTargetIDs, id)
		}
	}
	return out, nil
}

func techniqueToWire(t engine.Technique) types.Technique {
	w := types.Technique{
		ID:         t.ID,
		Name:       t.Name,
		Type:       string(t.Type),
		TargetType: t.TargetType,
		Damage:     t.Damage,
		Healing:    t.Healing,
		EnergyCost: t.EnergyCost,
		Cooldown:   int(t.Cooldown.Seconds()),
	}
	for _, e := range t.Effects {
		w.Effects = append(w.Effects, types.TechniqueEffect{
			Type:       string(e.Type),
			Name:       e.Name,
			Duration:   e.Turns,
			DurationMs: e.Lifetime.Milliseconds(),
			Damage:     e.Damage,
			OnSelf:     e.OnSelf,
		})
	}
	return w
}

// FileLoader reads a YAML catalog from disk.
type FileLoader struct{ Path string }

func (f FileLoader) Load(context.Context) (types.TechniqueCatalog, error) {
	b, err := os.ReadFile(f.Path)
	if err != nil {
		return types.TechniqueCatalog{}, err
	}
	var c types.TechniqueCatalog
	if err := yaml.Unmarshal(b, &c); err != nil {
		return types.TechniqueCatalog{}, fmt.Errorf("failed to parse %s: %w", f.Path, err)
	}
	return c, nil
}

// Static serves a fixed catalog.
func Static(c types.TechniqueCatalog) Loader {
	return LoaderFunc(func(context.Context) (types.TechniqueCatalog, error) { return c, nil })
}
