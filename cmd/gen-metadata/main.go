// Command gen-metadata stamps build information into the metadata file the
// server reads its version and description from.
package main

import (
	"context"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"aiostreams/internal/logging"
	"aiostreams/pkg/utils"
)

const unknown = "unknown"

type options struct {
	channel     string
	out         string
	version     string
	description string
}

// gitFunc runs git with args and returns trimmed stdout.
type gitFunc func(ctx context.Context, args ...string) (string, error)

func runGit(ctx context.Context, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, "git", args...).Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

func safeGit(ctx context.Context, git gitFunc, args ...string) string {
	out, err := git(ctx, args...)
	if err != nil || out == "" {
		return unknown
	}
	return out
}

func collect(ctx context.Context, git gitFunc, opts options, now time.Time) utils.BuildMetadata {
	var tag string
	if opts.channel == "nightly" {
		tag = safeGit(ctx, git, "describe", "--tags", "--abbrev=0")
	} else {
		tag = unknown
		if tags := safeGit(ctx, git, "tag", "--sort=-version:refname"); tags != unknown {
			tag = strings.SplitN(tags, "\n", 2)[0]
		}
	}

	commitTime := unknown
	if raw := safeGit(ctx, git, "log", "-1", "--format=%cI"); raw != unknown {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			commitTime = t.UTC().Format(time.RFC3339Nano)
		}
	}

	version := opts.version
	if version == "" && tag != unknown {
		version = strings.TrimPrefix(tag, "v")
	}

	return utils.BuildMetadata{
		Version:     version,
		Description: opts.description,
		Tag:         tag,
		CommitHash:  safeGit(ctx, git, "rev-parse", "--short", "HEAD"),
		BuildTime:   now.UTC().Format(time.RFC3339Nano),
		CommitTime:  commitTime,
	}
}

func newRootCmd(git gitFunc) *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:           "gen-metadata",
		Short:         "Write build metadata for the add-on server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := logging.New("info", "console")
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			meta := collect(cmd.Context(), git, opts, time.Now())
			if err := utils.WriteBuildMetadata(opts.out, meta); err != nil {
				return err
			}
			logger.Info("build metadata generated",
				zap.String("path", opts.out),
				zap.String("version", meta.Version),
				zap.String("tag", meta.Tag),
				zap.String("commit", meta.CommitHash))
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.channel, "channel", "stable", "release channel (stable or nightly)")
	cmd.Flags().StringVar(&opts.out, "out", utils.DefaultMetadataPath, "output path")
	cmd.Flags().StringVar(&opts.version, "version", "", "version to stamp (defaults to the latest tag)")
	cmd.Flags().StringVar(&opts.description, "description", "", "description to stamp")
	return cmd
}

func main() {
	if err := newRootCmd(runGit).ExecuteContext(context.Background()); err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
}
