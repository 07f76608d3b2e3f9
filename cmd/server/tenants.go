package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/Abraxas-365/craftable/errx"
	"github.com/Abraxas-365/multistore/pkg/kernel"
	"github.com/Abraxas-365/multistore/shop/shopsrv"
	"github.com/Abraxas-365/multistore/tenancy"
	"github.com/Abraxas-365/multistore/tenancy/scope"
	"github.com/spf13/cobra"
)

func newTenantsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenants",
		Short: "Manage stores and their domains",
	}

	cmd.AddCommand(
		newTenantCreateCmd(a),
		newTenantListCmd(a),
		newTenantDeleteCmd(a),
		newTenantToggleCmd(a, "deactivate"),
		newTenantToggleCmd(a, "activate"),
		newDomainCmd(a),
		newSeedCmd(a),
		newCreateTestCmd(a),
		newTokenCmd(a),
	)
	return cmd
}

// withContainer builds the container, runs fn and releases everything
func (a *app) withContainer(fn func(ctx context.Context, c *Container) error) error {
	c, err := a.container()
	if err != nil {
		return err
	}
	defer c.Cleanup()
	return fn(context.Background(), c)
}

func newTenantCreateCmd(a *app) *cobra.Command {
	var (
		req       tenancy.CreateTenantRequest
		id        string
		storeType string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a store with its storage and domains",
		RunE: func(cmd *cobra.Command, args []string) error {
			req.ID = kernel.NewTenantID(id)
			if storeType != "" {
				req.Data = tenancy.Metadata{"store_type": storeType}
			}
			return a.withContainer(func(ctx context.Context, c *Container) error {
				t, err := c.Registry.Create(ctx, req)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created tenant %s (%s) domains=%s\n",
					t.ID, t.Name, strings.Join(t.Domains, ","))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "tenant key")
	cmd.Flags().StringVar(&req.Name, "name", "", "store name")
	cmd.Flags().StringVar(&req.Email, "email", "", "contact email")
	cmd.Flags().StringSliceVar(&req.Domains, "domain", nil, "domain to attach (repeatable)")
	cmd.Flags().StringVar(&storeType, "store-type", "", "store type (food selects the grocery demo catalog)")
	cmd.Flags().BoolVar(&req.Inactive, "inactive", false, "create the store disabled")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newTenantListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stores",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withContainer(func(ctx context.Context, c *Container) error {
				tenants, err := c.Registry.List(ctx)
				if err != nil {
					return err
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tNAME\tACTIVE\tTYPE\tDOMAINS")
				for _, t := range tenants {
					domains, err := c.Registry.Domains(ctx, t.ID)
					if err != nil {
						return err
					}
					fmt.Fprintf(w, "%s\t%s\t%t\t%s\t%s\n",
						t.ID, t.Name, t.IsActive, t.StoreType(), strings.Join(domains, ","))
				}
				return w.Flush()
			})
		},
	}
}

func newTenantDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a store, its domains and its storage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withContainer(func(ctx context.Context, c *Container) error {
				if err := c.Registry.Delete(ctx, kernel.NewTenantID(args[0])); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted tenant %s\n", args[0])
				return nil
			})
		},
	}
}

func newTenantToggleCmd(a *app, action string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " <id>",
		Short: strings.ToUpper(action[:1]) + action[1:] + " a store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withContainer(func(ctx context.Context, c *Container) error {
				id := kernel.NewTenantID(args[0])
				var err error
				if action == "activate" {
					_, err = c.Registry.Reactivate(ctx, id)
				} else {
					_, err = c.Registry.Deactivate(ctx, id)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%sd tenant %s\n", action, id)
				return nil
			})
		},
	}
}

func newDomainCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "domain",
		Short: "Attach, detach or move domains",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add <tenant-id> <domain>",
		Short: "Attach a domain to a store",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withContainer(func(ctx context.Context, c *Container) error {
				d, err := c.Registry.AddDomain(ctx, kernel.NewTenantID(args[0]), args[1])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", d.Domain, d.TenantID)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <domain>",
		Short: "Detach a domain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withContainer(func(ctx context.Context, c *Container) error {
				if err := c.Registry.RemoveDomain(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", args[0])
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "reassign <domain> <tenant-id>",
		Short: "Move a domain to another store",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withContainer(func(ctx context.Context, c *Container) error {
				d, err := c.Registry.ReassignDomain(ctx, args[0], kernel.NewTenantID(args[1]))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", d.Domain, d.TenantID)
				return nil
			})
		},
	})

	return cmd
}

func newSeedCmd(a *app) *cobra.Command {
	var tenantID string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Migrate and seed existing stores (all active stores by default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withContainer(func(ctx context.Context, c *Container) error {
				seed := func(ctx context.Context, t *tenancy.Tenant) error {
					if err := c.SchemaHook.Provision(ctx, t); err != nil {
						return err
					}
					seeded, err := c.SeedHook.Seed(ctx, t)
					if err != nil {
						return err
					}
					state := "already seeded"
					if seeded {
						state = "seeded"
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", t.ID, state)
					return nil
				}

				if tenantID != "" {
					return c.Switcher.RunByID(ctx, kernel.NewTenantID(tenantID), func(ctx context.Context) error {
						t, err := scope.Current(ctx)
						if err != nil {
							return err
						}
						return seed(ctx, t)
					})
				}

				tenants, err := c.Registry.ListActive(ctx)
				if err != nil {
					return err
				}
				return c.Switcher.RunForEach(ctx, tenants, seed, scope.ContinueOnError())
			})
		},
	}

	cmd.Flags().StringVar(&tenantID, "tenant", "", "seed only this store")
	return cmd
}

// testTenants are the development stores created by create-test
var testTenants = []string{"tenant1", "tenant2"}

func newCreateTestCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "create-test",
		Short: "Create the tenant1 and tenant2 development stores with users",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			return a.withContainer(func(ctx context.Context, c *Container) error {
				for _, id := range testTenants {
					_, err := c.Registry.Create(ctx, tenancy.CreateTenantRequest{
						ID:      kernel.NewTenantID(id),
						Name:    "Demo Store " + id,
						Email:   "info@" + id + ".com",
						Domains: []string{id + ".localhost"},
					})
					switch {
					case errors.Is(err, tenancy.DuplicateKey):
						fmt.Fprintf(out, "tenant %s already exists\n", id)
					case err != nil:
						return err
					default:
						fmt.Fprintf(out, "created tenant %s with domain %s.localhost\n", id, id)
					}
				}

				tenants := make([]*tenancy.Tenant, 0, len(testTenants))
				for _, id := range testTenants {
					t, err := c.Registry.Find(ctx, kernel.NewTenantID(id))
					if err != nil {
						return err
					}
					tenants = append(tenants, t)
				}

				return c.Switcher.RunForEach(ctx, tenants, func(ctx context.Context, t *tenancy.Tenant) error {
					users := []shopsrv.RegisterCustomerRequest{
						{Name: "Admin " + t.ID.String(), Email: "admin@" + t.ID.String() + ".com", Password: shopsrv.DemoPassword, IsAdmin: true},
						{Name: "Customer " + t.ID.String(), Email: "customer@" + t.ID.String() + ".com", Password: shopsrv.DemoPassword},
					}
					for _, u := range users {
						_, err := c.CustomerService.Register(ctx, u)
						if err != nil && !errx.IsType(err, errx.TypeConflict) {
							return err
						}
						fmt.Fprintf(out, "%s: user %s\n", t.ID, u.Email)
					}
					return nil
				})
			})
		},
	}
}

func newTokenCmd(a *app) *cobra.Command {
	var (
		tenantID string
		email    string
		admin    bool
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an access token for a store customer or a platform admin",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withContainer(func(ctx context.Context, c *Container) error {
				if admin {
					token, err := c.TokenService.GenerateAccessToken(kernel.NewUserID("platform:"+email), "", map[string]any{
						"email":    email,
						"name":     "Platform Admin",
						"is_admin": true,
					})
					if err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), token)
					return nil
				}

				if tenantID == "" {
					return fmt.Errorf("--tenant is required unless --admin is set")
				}
				return c.Switcher.RunByID(ctx, kernel.NewTenantID(tenantID), func(ctx context.Context) error {
					customer, err := c.CustomerService.FindByEmail(ctx, email)
					if err != nil {
						return err
					}
					token, err := c.TokenService.GenerateAccessToken(customer.ID, kernel.NewTenantID(tenantID), map[string]any{
						"email":    customer.Email,
						"name":     customer.Name,
						"is_admin": customer.IsAdmin,
					})
					if err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), token)
					return nil
				})
			})
		},
	}

	cmd.Flags().StringVar(&tenantID, "tenant", "", "store the customer belongs to")
	cmd.Flags().StringVar(&email, "email", "", "customer email")
	cmd.Flags().BoolVar(&admin, "admin", false, "issue a platform admin token")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}
