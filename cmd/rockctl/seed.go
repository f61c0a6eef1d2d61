package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/clairecatohanson/rock-of-ages-api/internal/auth"
	"github.com/clairecatohanson/rock-of-ages-api/internal/di/providers"
	"github.com/clairecatohanson/rock-of-ages-api/internal/domain"
	"github.com/clairecatohanson/rock-of-ages-api/internal/id"
	"github.com/clairecatohanson/rock-of-ages-api/internal/store"
)

type demoRock struct {
	name   string
	weight float64
	label  string
}

type demoUser struct {
	email, first, last string
	rocks              []demoRock
}

var demoUsers = []demoUser{
	{
		email: "ada@example.com", first: "Ada", last: "Stone",
		rocks: []demoRock{
			{"Basalt", 1.2, "Igneous"},
			{"Obsidian", 0.8, "Igneous"},
			{"Sandstone", 3.4, "Sedimentary"},
		},
	},
	{
		email: "grace@example.com", first: "Grace", last: "Marble",
		rocks: []demoRock{
			{"Carrara Marble", 5.1, "Metamorphic"},
			{"Rose Quartz", 0.3, "Mineral"},
			{"Slate", 2.2, "Metamorphic"},
		},
	},
}

func newSeedCmd(opts *globalOptions) *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the default types, two demo users and their rocks",
		Long: `seed is idempotent: existing types and users are left alone, and a demo
user who already owns rocks gets no new ones.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if len(password) < 8 {
				return errors.New("password must be at least 8 characters")
			}

			injector, err := opts.container(cmd, false)
			if err != nil {
				return err
			}
			defer shutdown(injector, cmd.ErrOrStderr())

			boot, err := do.Invoke[*providers.Bootstrap](injector)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "types: %d created\n", boot.TypesCreated)

			s := &seeder{
				store:    do.MustInvoke[*providers.StoreHandle](injector).Store,
				index:    do.MustInvoke[*providers.SearchIndexHandle](injector),
				password: password,
				out:      out,
			}
			return s.run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&password, "password", "rock-solid-pass", "Password for the demo users")

	return cmd
}

type seeder struct {
	store    store.Store
	index    *providers.SearchIndexHandle
	password string
	out      io.Writer
}

func (s *seeder) run(ctx context.Context) error {
	types, err := s.store.ListTypes(ctx)
	if err != nil {
		return fmt.Errorf("list types: %w", err)
	}
	byLabel := make(map[string]*domain.Type, len(types))
	for _, t := range types {
		byLabel[t.Label] = t
	}

	var created []*domain.Rock
	for _, du := range demoUsers {
		user, err := s.ensureUser(ctx, du)
		if err != nil {
			return err
		}

		owned, err := s.store.ListRocks(ctx, domain.RockFilter{OwnerID: user.ID})
		if err != nil {
			return fmt.Errorf("list rocks for %s: %w", du.email, err)
		}
		if len(owned) > 0 {
			fmt.Fprintf(s.out, "rocks: %s already owns %d\n", du.email, len(owned))
			continue
		}

		for _, dr := range du.rocks {
			typ, ok := byLabel[dr.label]
			if !ok {
				return fmt.Errorf("type %q is missing", dr.label)
			}
			rock := &domain.Rock{
				Name:      dr.name,
				Weight:    dr.weight,
				TypeID:    typ.ID,
				UserID:    user.ID,
				CreatedAt: time.Now().UTC(),
			}
			if err := s.store.CreateRock(ctx, rock); err != nil {
				return fmt.Errorf("create rock %q: %w", dr.name, err)
			}
			created = append(created, rock)
		}
		fmt.Fprintf(s.out, "rocks: %d created for %s\n", len(du.rocks), du.email)
	}

	if s.index.SearchIndex != nil && len(created) > 0 {
		// Reload so the documents carry resolved type and owner names.
		ids := make([]int64, len(created))
		for i, r := range created {
			ids[i] = r.ID
		}
		rocks, err := s.store.GetRocksByIDs(ctx, ids)
		if err != nil {
			return fmt.Errorf("reload seeded rocks: %w", err)
		}
		if err := s.index.IndexRocks(ctx, rocks); err != nil {
			return fmt.Errorf("index seeded rocks: %w", err)
		}
	}

	return nil
}

func (s *seeder) ensureUser(ctx context.Context, du demoUser) (*domain.User, error) {
	existing, err := s.store.GetUserByEmail(ctx, du.email)
	switch {
	case err == nil:
		fmt.Fprintf(s.out, "users: %s exists\n", du.email)
		return existing, nil
	case !errors.Is(err, store.ErrUserNotFound):
		return nil, fmt.Errorf("lookup %s: %w", du.email, err)
	}

	hash, err := auth.HashPassword(s.password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	userID, err := id.Generate(id.PrefixUser)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	user := &domain.User{
		ID:           userID,
		Email:        du.email,
		PasswordHash: hash,
		FirstName:    du.first,
		LastName:     du.last,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("create %s: %w", du.email, err)
	}

	fmt.Fprintf(s.out, "users: %s created\n", du.email)
	return user, nil
}
