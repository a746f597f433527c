package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/kasblog/kasblog/internal/client"
	"github.com/kasblog/kasblog/pkg/libkb"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	version  = "dev"
	revision = "none"
	date     = "unknown"

	cfgfile string
	verbose bool
	dump    bool
	opts    client.PublishOptions
	mode    string
)

func main() {
	c := &cobra.Command{
		Use:     "kbc",
		Short:   "Kaspa blog client",
		Version: fmt.Sprintf("%s - build %.7s @ %s", version, revision, date),
		Args:    cobra.NoArgs,
	}
	c.PersistentFlags().StringVarP(&cfgfile, "config", "c", client.Filename, "Sealed configuration file")
	c.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logs")

	articleFlags(publishCmd)
	publishCmd.Flags().StringVarP(&mode, "mode", "m", string(libkb.PublishSign), "Publish mode (sign|transaction)")
	publishCmd.Flags().BoolVar(&opts.FromDraft, "draft", false, "Publish the saved draft")
	openCmd.Flags().BoolVar(&dump, "dump", false, "Dump the decoded article")
	articleFlags(draftSaveCmd)
	draftCmd.AddCommand(draftSaveCmd)
	draftCmd.AddCommand(draftShowCmd)
	draftCmd.AddCommand(draftClearCmd)

	c.AddCommand(initCmd)
	c.AddCommand(publishCmd)
	c.AddCommand(readCmd)
	c.AddCommand(listCmd)
	c.AddCommand(shareCmd)
	c.AddCommand(openCmd)
	c.AddCommand(recoverCmd)
	c.AddCommand(draftCmd)

	if err := c.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func articleFlags(c *cobra.Command) {
	c.Flags().StringVarP(&opts.Title, "title", "t", "", "Article title")
	c.Flags().StringVar(&opts.Image, "image", "", "Article cover image URL")
	c.Flags().StringSliceVar(&opts.Tags, "tags", nil, "Article tags")
	c.Flags().BoolVar(&opts.Public, "public", false, "Readable by anyone holding a link")
	c.Flags().Int64Var(&opts.Price, "price", 0, "Price of a private article")
}

// run loads the configuration and gives the client to fn.
func run(fn func(ctx context.Context, c *client.Client) error) error {
	cfg, err := client.Load(cfgfile)
	if err != nil {
		return errors.Wrap(err, "could not load config")
	}

	level := logrus.InfoLevel
	if verbose {
		level = logrus.DebugLevel
	}
	logfile := cfg.LogFile
	if logfile == "" {
		logfile = client.LogFilename
	}

	c, err := client.New(cfg, client.NewLogger(logfile, level))
	if err != nil {
		return err
	}
	defer c.Close()

	return fn(context.Background(), c)
}

// input returns the content of the FILE argument, stdin for `-`.
func input(args []string) (io.ReadCloser, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(args[0])
	return f, errors.Wrap(err, "could not open content file")
}

var (
	initCmd = &cobra.Command{
		Use:   "init",
		Short: "Create a wallet and the sealed configuration",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, args []string) error {
			return client.Init(cfgfile)
		},
	}

	publishCmd = &cobra.Command{
		Use:   "publish [FILE]",
		Short: "Encrypt and publish an article",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			opts.Mode = libkb.PublishMode(mode)
			if opts.Mode != libkb.PublishSign && opts.Mode != libkb.PublishTransaction {
				return errors.Errorf("unsupported publish mode: %s", mode)
			}

			return run(func(ctx context.Context, c *client.Client) error {
				if opts.FromDraft {
					return c.Publish(ctx, os.Stdout, nil, opts)
				}

				r, err := input(args)
				if err != nil {
					return err
				}
				defer r.Close()

				return c.Publish(ctx, os.Stdout, r, opts)
			})
		},
	}

	readCmd = &cobra.Command{
		Use:   "read ID",
		Short: "Decrypt a stored article",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return run(func(ctx context.Context, c *client.Client) error {
				return c.Read(ctx, os.Stdout, args[0])
			})
		},
	}

	listCmd = &cobra.Command{
		Use:   "list",
		Short: "List stored articles",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, args []string) error {
			return run(func(_ context.Context, c *client.Client) error {
				return c.List(os.Stdout)
			})
		},
	}

	shareCmd = &cobra.Command{
		Use:   "share ID",
		Short: "Print the links of a public article",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return run(func(ctx context.Context, c *client.Client) error {
				return c.Share(ctx, os.Stdout, args[0])
			})
		},
	}

	openCmd = &cobra.Command{
		Use:   "open URL",
		Short: "Open an article link",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return run(func(ctx context.Context, c *client.Client) error {
				return c.Open(ctx, os.Stdout, args[0], dump)
			})
		},
	}

	recoverCmd = &cobra.Command{
		Use:   "recover ID",
		Short: "Recover the key of a public article from its publish payload",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return run(func(_ context.Context, c *client.Client) error {
				return c.Recover(os.Stdout, args[0])
			})
		},
	}

	draftCmd = &cobra.Command{
		Use:   "draft",
		Short: "Manage the article being written",
	}

	draftSaveCmd = &cobra.Command{
		Use:   "save [FILE]",
		Short: "Save the draft",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return run(func(_ context.Context, c *client.Client) error {
				r, err := input(args)
				if err != nil {
					return err
				}
				defer r.Close()

				return c.SaveDraft(os.Stdout, r, opts)
			})
		},
	}

	draftShowCmd = &cobra.Command{
		Use:   "show",
		Short: "Print the draft",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, args []string) error {
			return run(func(_ context.Context, c *client.Client) error {
				return c.ShowDraft(os.Stdout)
			})
		},
	}

	draftClearCmd = &cobra.Command{
		Use:   "clear",
		Short: "Remove the draft",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, args []string) error {
			return run(func(_ context.Context, c *client.Client) error {
				return c.ClearDraft()
			})
		},
	}
)
