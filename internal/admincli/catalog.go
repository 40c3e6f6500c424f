package admincli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/autolot/internal/server"
	"github.com/dmitrijs2005/autolot/internal/server/models"
	"github.com/dmitrijs2005/autolot/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/autolot/internal/server/repositories/vehicles"
	"github.com/dmitrijs2005/autolot/internal/server/services"
)

var errMissingAssets = errors.New("listings reference missing assets")

func (c *cli) newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Bring the catalog schema up to date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withRepos(cmd, func(ctx context.Context, rm repomanager.RepositoryManager) error {
				if err := rm.RunMigrations(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
				return nil
			})
		},
	}
}

func (c *cli) newListCmd() *cobra.Command {
	var q vehicles.ListQuery

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List listings, newest first unless --sort says otherwise",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withRepos(cmd, func(ctx context.Context, rm repomanager.RepositoryManager) error {
				page, err := rm.Vehicles().List(ctx, q.Normalized())
				if err != nil {
					return fmt.Errorf("failed to list vehicles: %w", err)
				}
				list := page.Vehicles

				out := cmd.OutOrStdout()
				if len(list) == 0 {
					fmt.Fprintln(out, "No vehicles found")
					return nil
				}

				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tMAKE\tMODEL\tYEAR\tPRICE\tIMAGES\tVERSION")
				for _, v := range list {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%.2f\t%d\t%d\n",
						v.ID, v.Make, v.Model, v.Year, v.Price, len(v.Images), v.Version)
				}
				return tw.Flush()
			})
		},
	}

	cmd.Flags().StringVar(&q.Make, "make", "", "only listings of this make")
	cmd.Flags().IntVar(&q.Year, "year", 0, "only listings of this model year")
	cmd.Flags().StringVar(&q.Sort, "sort", "", "price-asc, price-desc, year-asc or year-desc")
	return cmd
}

func (c *cli) newAddCmd() *cobra.Command {
	var (
		fields services.VehicleFields
		images []string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a listing from local image files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			uploads, err := readUploads(images)
			if err != nil {
				return err
			}

			return c.withStack(cmd, func(ctx context.Context, st *server.Stack) error {
				res, err := st.Vehicles.Create(ctx, services.CreateVehicleRequest{Fields: fields, Uploads: uploads})
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "created %s (%d of %d images stored)\n", res.Vehicle.ID, res.Stored, res.Submitted)
				if res.Stored < res.Submitted {
					fmt.Fprintln(cmd.ErrOrStderr(), "some images could not be processed and were skipped")
				}
				return nil
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&fields.Make, "make", "", "manufacturer")
	f.StringVar(&fields.Model, "model", "", "model")
	f.IntVar(&fields.Year, "year", 0, "model year")
	f.Float64Var(&fields.Price, "price", 0, "price, must be positive")
	f.IntVar(&fields.Mileage, "mileage", 0, "mileage")
	f.StringVar(&fields.Description, "description", "", "free-text description")
	f.StringVar(&fields.ExteriorColor, "exterior-color", "", "exterior color")
	f.StringVar(&fields.InteriorColor, "interior-color", "", "interior color")
	f.StringVar(&fields.Engine, "engine-desc", "", "engine")
	f.StringVar(&fields.Transmission, "transmission", "", "transmission")
	f.StringVar(&fields.Drivetrain, "drivetrain", "", "drivetrain")
	f.StringVar(&fields.Fuel, "fuel", "", "fuel type")
	f.StringVar(&fields.BodyStyle, "body-style", "", "body style")
	f.StringVar(&fields.VIN, "vin", "", "vehicle identification number")
	f.StringArrayVar(&images, "image", nil, "image file, repeatable; order is kept")

	_ = cmd.MarkFlagRequired("make")
	_ = cmd.MarkFlagRequired("model")
	_ = cmd.MarkFlagRequired("price")

	return cmd
}

func readUploads(paths []string) ([]models.RawUpload, error) {
	uploads := make([]models.RawUpload, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read image: %w", err)
		}
		// No declared type: the extension decides.
		uploads = append(uploads, models.RawUpload{
			Data:     data,
			Filename: filepath.Base(p),
			Size:     int64(len(data)),
		})
	}
	return uploads, nil
}

func (c *cli) newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a listing and its stored images",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withStack(cmd, func(ctx context.Context, st *server.Stack) error {
				if err := st.Vehicles.Delete(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
				return nil
			})
		},
	}
}

func (c *cli) newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify [id...]",
		Short: "Report image references whose stored asset is gone",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withStack(cmd, func(ctx context.Context, st *server.Stack) error {
				ids := args
				if len(ids) == 0 {
					inv, err := st.Vehicles.List(ctx, vehicles.ListQuery{})
					if err != nil {
						return err
					}
					for _, v := range inv.Vehicles {
						ids = append(ids, v.ID)
					}
				}

				out := cmd.OutOrStdout()
				broken := 0
				for _, id := range ids {
					missing, err := st.Vehicles.MissingAssets(ctx, id)
					if err != nil {
						return fmt.Errorf("verify %s: %w", id, err)
					}
					for _, ref := range missing {
						fmt.Fprintf(out, "%s\t%s\n", id, ref)
					}
					if len(missing) > 0 {
						broken++
					}
				}

				if broken > 0 {
					return fmt.Errorf("%w: %d of %d", errMissingAssets, broken, len(ids))
				}
				fmt.Fprintf(out, "%d listings verified\n", len(ids))
				return nil
			})
		},
	}
}
