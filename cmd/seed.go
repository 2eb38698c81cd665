package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/okian/gmassign/internal/adapters/repository"
	"github.com/okian/gmassign/internal/domain/model"
	"github.com/okian/gmassign/pkg/logger"
)

// Fixture is the YAML document accepted by the seed command.
type Fixture struct {
	GameMasters    []model.GameMaster   `yaml:"game_masters"`
	Availabilities []model.Availability `yaml:"availabilities"`
	Competencies   []model.Competency   `yaml:"competencies"`
	Games          []model.Game         `yaml:"games"`
	GameMappings   []model.GameMapping  `yaml:"game_mappings"`
	Activities     []model.Activity     `yaml:"activities"`
}

// DecodeFixture parses a fixture, rejecting unknown keys.
func DecodeFixture(r io.Reader) (Fixture, error) {
	var fx Fixture
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&fx); err != nil && err != io.EOF {
		return Fixture{}, fmt.Errorf("decode fixture: %w", err)
	}
	for i := range fx.Activities {
		if fx.Activities[i].ID == "" {
			return Fixture{}, fmt.Errorf("decode fixture: activity %d (%q) has no id", i, fx.Activities[i].Title)
		}
		if fx.Activities[i].Status == "" {
			fx.Activities[i].Status = model.StatusPending
		}
	}
	return fx, nil
}

// Apply upserts every record. Referenced rows come first so foreign keys hold.
func (fx Fixture) Apply(ctx context.Context, store repository.Store) error {
	for _, gm := range fx.GameMasters {
		if err := store.UpsertGameMaster(ctx, gm); err != nil {
			return err
		}
	}
	for _, g := range fx.Games {
		if err := store.UpsertGame(ctx, g); err != nil {
			return err
		}
	}
	for _, m := range fx.GameMappings {
		if err := store.UpsertGameMapping(ctx, m); err != nil {
			return err
		}
	}
	for _, a := range fx.Availabilities {
		if err := store.UpsertAvailability(ctx, a); err != nil {
			return err
		}
	}
	for _, c := range fx.Competencies {
		if err := store.UpsertCompetency(ctx, c); err != nil {
			return err
		}
	}
	for _, a := range fx.Activities {
		if err := store.UpsertActivity(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

func newSeedCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed FILE",
		Args:  cobra.ExactArgs(1),
		Short: "Load a YAML fixture into the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			return seed(cmd.Context(), opts, args[0], cmd.OutOrStdout())
		},
	}
}

func seed(ctx context.Context, opts *rootOptions, path string, out io.Writer) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open fixture: %w", err)
	}
	defer f.Close()

	fx, err := DecodeFixture(f)
	if err != nil {
		return err
	}

	store, err := repository.Open(ctx, opts.cfg.DatabasePath, repository.WithLogger(logger.Get().Named("store")))
	if err != nil {
		return err
	}
	defer store.Close()

	if err := fx.Apply(ctx, store); err != nil {
		return err
	}
	fmt.Fprintf(out, "seeded %d game masters, %d games, %d mappings, %d availabilities, %d competencies, %d activities\n",
		len(fx.GameMasters), len(fx.Games), len(fx.GameMappings),
		len(fx.Availabilities), len(fx.Competencies), len(fx.Activities))
	return nil
}
