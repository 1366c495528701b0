package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/eigerco/rocker/pkg/dispatch"
	"github.com/eigerco/rocker/pkg/rocker"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func (a *app) getCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get [key]",
		Short: "Reads the value for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDB(func(d *rocker.DB) error {
				value, err := d.GetKeyspace(a.v.GetString("keyspace"), []byte(args[0]))
				if errors.Is(err, rocker.ErrNotFound) {
					return fmt.Errorf("key %q not found", args[0])
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\n", value)
				return nil
			})
		},
	}
	keyspaceFlag(cmd)
	return cmd
}

func (a *app) putCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "put [key] [value]",
		Short: "Sets the value for a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDB(func(d *rocker.DB) error {
				return d.PutKeyspace(a.v.GetString("keyspace"), []byte(args[0]), []byte(args[1]))
			})
		},
	}
	keyspaceFlag(cmd)
	return cmd
}

func (a *app) deleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete [key]",
		Short: "Deletes a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDB(func(d *rocker.DB) error {
				return d.DeleteKeyspace(a.v.GetString("keyspace"), []byte(args[0]))
			})
		},
	}
	keyspaceFlag(cmd)
	return cmd
}

func (a *app) scanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Prints key/value pairs in key order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withDB(func(d *rocker.DB) error {
				c, err := a.openCursor(d)
				if err != nil {
					return err
				}
				defer c.Close() //nolint:errcheck // read-only cursor

				return printCursor(cmd.OutOrStdout(), c, a.v.GetInt("limit"))
			})
		},
	}
	keyspaceFlag(cmd)
	cmd.Flags().String("from", "", "start at this key")
	cmd.Flags().Bool("reverse", false, "iterate in descending order")
	cmd.Flags().Bool("end", false, "start at the last key, descending")
	cmd.Flags().String("prefix", "", "only keys sharing this prefix")
	cmd.Flags().Int("limit", 0, "stop after this many entries (0 = all)")
	return cmd
}

func (a *app) openCursor(d *rocker.DB) (*rocker.Cursor, error) {
	name := a.v.GetString("keyspace")
	if prefix := a.v.GetString("prefix"); prefix != "" {
		return d.PrefixIterateKeyspace(name, []byte(prefix))
	}

	mode := rocker.Start()
	switch from := a.v.GetString("from"); {
	case a.v.GetBool("end"):
		mode = rocker.End()
	case from != "" && a.v.GetBool("reverse"):
		mode = rocker.From([]byte(from), rocker.Reverse)
	case from != "":
		mode = rocker.FromKey([]byte(from))
	case a.v.GetBool("reverse"):
		mode = rocker.End()
	}
	return d.IterateKeyspace(name, mode)
}

func printCursor(w io.Writer, c *rocker.Cursor, limit int) error {
	for n := 0; limit <= 0 || n < limit; n++ {
		key, value, err := c.Next()
		if errors.Is(err, rocker.ErrExhausted) {
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s=%s\n", key, value)
	}
	return nil
}

// batchCmd applies a YAML list of operation tuples, e.g.
//
//	- [put, key, value]
//	- [put_cf, users, key, value]
//	- [delete, key]
//	- [delete_cf, users, key]
func (a *app) batchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "batch [file]",
		Short: "Applies a YAML file of operations atomically",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var terms []any
			if err := yaml.Unmarshal(raw, &terms); err != nil {
				return fmt.Errorf("decode %s: %w", args[0], err)
			}
			ops, err := dispatch.DecodeOps(terms)
			if err != nil {
				return err
			}
			return a.withDB(func(d *rocker.DB) error {
				n, err := d.Apply(ops)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "applied %d operations\n", n)
				return nil
			})
		},
	}
}

func (a *app) keyspacesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keyspaces",
		Short: "Lists, creates and drops keyspaces",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "Lists the keyspaces of a database without opening it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := a.path()
			if err != nil {
				return err
			}
			names, err := rocker.ListKeyspaces(path)
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}

	create := &cobra.Command{
		Use:   "create [name]",
		Short: "Creates a keyspace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDB(func(d *rocker.DB) error {
				length := a.v.GetInt("prefix-length")
				if length == 0 {
					return d.CreateKeyspaceDefault(args[0])
				}
				return d.CreateKeyspace(args[0], map[string]any{"prefix_length": length})
			})
		},
	}
	create.Flags().Int("prefix-length", 0, "fixed prefix length for prefix scans")

	drop := &cobra.Command{
		Use:   "drop [name]",
		Short: "Drops a keyspace and all of its data",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDB(func(d *rocker.DB) error {
				return d.DropKeyspace(args[0])
			})
		},
	}

	cmd.AddCommand(list, create, drop)
	return cmd
}

func (a *app) destroyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "destroy",
		Short: "Removes all on-disk state of a database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := a.path()
			if err != nil {
				return err
			}
			return rocker.Destroy(path)
		},
	}
}

func (a *app) repairCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repair",
		Short: "Recovers a damaged database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := a.path()
			if err != nil {
				return err
			}
			return rocker.Repair(path)
		},
	}
}

func keyspaceFlag(cmd *cobra.Command) {
	cmd.Flags().String("keyspace", rocker.DefaultKeyspace, "keyspace to operate on")
}
