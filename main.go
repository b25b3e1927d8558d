package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"
)

func commonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "lister",
			Value: listerOtool,
			Usage: "how dependencies are listed: otool or macho",
		},
		&cli.StringFlag{
			Name:  "otool",
			Value: "otool",
			Usage: "otool executable",
		},
	}
}

func RootCommand(out io.Writer) *cli.Command {
	flags := append(commonFlags(),
		&cli.StringFlag{
			Name:  "config",
			Usage: "bundle layout file (YAML); the built-in layout when empty",
		},
		&cli.BoolFlag{
			Name:  "strict",
			Usage: "stop at the first missing file or failed tool",
		},
		&cli.BoolFlag{
			Name:  "dry-run",
			Usage: "print the rewrites without patching",
		},
		&cli.BoolFlag{
			Name:  "resign",
			Usage: "ad-hoc re-sign every patched file",
		},
		&cli.StringFlag{
			Name:  "install-name-tool",
			Value: "install_name_tool",
			Usage: "install_name_tool executable",
		},
		&cli.StringFlag{
			Name:  "codesign",
			Value: "codesign",
			Usage: "codesign executable",
		},
		&cli.BoolFlag{
			Name:  "verbose",
			Usage: "log debug messages",
		},
	)

	cmd := &cli.Command{
		Name:      "rpathfix",
		Usage:     "rewrite @rpath install names of a bundle to @loader_path",
		ArgsUsage: "<binary>",
		Flags:     flags,
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			if cmd.Bool("verbose") {
				slog.SetLogLoggerLevel(slog.LevelDebug)
			}
			return ctx, nil
		},
		Commands: []*cli.Command{
			{
				Name:      "inspect",
				Usage:     "list the dependencies of a binary and the rewrite each would get",
				ArgsUsage: "<binary>",
				Flags: append(commonFlags(), &cli.StringFlag{
					Name:  "token",
					Value: "@loader_path",
					Usage: "replacement for @rpath",
				}),
				Action: func(ctx context.Context, cmd *cli.Command) error {
					bin, err := resolveBinary(cmd.Args().Get(0))
					if err != nil {
						return err
					}
					return inspectBinary(ctx, out, bin, inspectOptions{
						lister: cmd.String("lister"),
						otool:  cmd.String("otool"),
						token:  cmd.String("token"),
					})
				},
			},
		},

		Action: func(ctx context.Context, cmd *cli.Command) error {
			bin, err := resolveBinary(cmd.Args().Get(0))
			if err != nil {
				return err
			}

			slog.Info("fix up install names.", "binary", bin)

			return fixBundle(ctx, out, bin, fixOptions{
				config:          cmd.String("config"),
				strict:          cmd.Bool("strict"),
				dryRun:          cmd.Bool("dry-run"),
				resign:          cmd.Bool("resign"),
				lister:          cmd.String("lister"),
				otool:           cmd.String("otool"),
				installNameTool: cmd.String("install-name-tool"),
				codesign:        cmd.String("codesign"),
			})
		},
	}
	return cmd
}

var errMissingBinary = errors.New("missing binary path argument")

func main() {
	cmd := RootCommand(os.Stdout)
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("exited", "error", err)
		os.Exit(1)
	}
}
