package config

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/cognicore/cmir/pkg/cmir/assemble"
	"github.com/cognicore/cmir/pkg/cmir/entstr"
	"github.com/cognicore/cmir/pkg/cmir/hashseq"
	"github.com/cognicore/cmir/pkg/cmir/names"
	"github.com/cognicore/cmir/pkg/cmir/registry"
	"github.com/cognicore/cmir/pkg/cmir/store"
	"github.com/cognicore/cmir/pkg/cmir/store/sqlite"
)

const seedSource = "seed"

// Loader loads the config file and constructs components
type Loader struct {
	ConfigPath string
	// DatabasePath, when set, replaces the configured database path.
	DatabasePath string
}

// Components holds all loaded configuration components
type Components struct {
	Config     *Config
	Registry   *registry.Registry
	Store      store.Store // nil when no database is configured
	Tokenizer  *entstr.Tokenizer
	Normalizer *names.Normalizer
	Assembler  *assemble.Assembler
}

// Load reads the configuration and returns initialized components
func (l *Loader) Load(ctx context.Context) (*Components, error) {
	cfg, err := Load(l.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if l.DatabasePath != "" {
		cfg.Database.Path = l.DatabasePath
	}

	comp := &Components{Config: cfg, Registry: registry.New()}

	var seed *RegistrySeed
	if cfg.RegistrySeed != "" {
		seed, err = LoadRegistrySeed(cfg.RegistrySeed)
		if err != nil {
			return nil, fmt.Errorf("load registry seed: %w", err)
		}
		for _, e := range seed.Entities {
			comp.Registry.Add(e.Ref, e.Type, e.Strength)
		}
	}

	if cfg.Database.Path != "" {
		comp.Store, err = sqlite.OpenSQLite(ctx, cfg.Database.Path)
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		if seed != nil {
			for _, e := range seed.Entities {
				src := e.Source
				if src == "" {
					src = seedSource
				}
				ref := store.EntityRef{Ref: e.Ref, Type: e.Type, Source: src, Strength: e.Strength}
				if err := comp.Store.UpsertEntityRef(ctx, ref); err != nil {
					comp.Store.Close()
					return nil, fmt.Errorf("persist registry seed: %w", err)
				}
			}
		}
		n := store.LoadRegistry(comp.Store.EntityRefs(), comp.Registry)
		log.Debug().Int("refs", n).Str("db", cfg.Database.Path).Msg("loaded entity refs")
	}

	comp.Tokenizer = entstr.NewTokenizer(comp.Registry)
	if len(cfg.CondRoles) > 0 {
		comp.Tokenizer.SetCondRoles(cfg.CondRoles)
	}
	comp.Normalizer = names.NewNormalizer(cfg.Names)
	comp.Assembler = assemble.New(comp.Tokenizer, comp.Normalizer)
	if len(cfg.SkipEnsembles) > 0 {
		comp.Assembler.SetSkipEnsembles(cfg.SkipEnsembles)
	}

	return comp, nil
}

// NewSession starts a processing session with a fingerprinter at the
// configured depth.
func (c *Components) NewSession(station string, date time.Time) *hashseq.Session {
	return hashseq.NewSession(station, date, c.Config.HashSeq.Depth)
}

// Close releases the store, if any.
func (c *Components) Close() error {
	if c.Store == nil {
		return nil
	}
	return c.Store.Close()
}
