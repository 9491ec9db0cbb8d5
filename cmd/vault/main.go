package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"

	"mediavault/internal/client"

	"github.com/joho/godotenv"
)

const usage = `usage: vault <command> [flags] [args]

commands:
  upload [-folder ID] [-into NAME] [-private] <paths...>
  download [-o DIR] <media-id>
  quota

environment:
  VAULT_URL    server address (default http://localhost:8080)
  VAULT_TOKEN  bearer token from /api/auth/login
`

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	baseURL := os.Getenv("VAULT_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	c := client.New(baseURL, os.Getenv("VAULT_TOKEN"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var err error
	switch os.Args[1] {
	case "upload":
		err = runUpload(ctx, c, os.Args[2:])
	case "download":
		err = runDownload(ctx, c, os.Args[2:])
	case "quota":
		err = runQuota(ctx, c)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runUpload(ctx context.Context, c *client.Client, args []string) error {
	fs := flag.NewFlagSet("upload", flag.ContinueOnError)
	folder := fs.String("folder", "", "upload into an existing folder ID")
	into := fs.String("into", "", "wrap all paths in a new folder with this name")
	private := fs.Bool("private", false, "mark uploads private")
	if err := fs.Parse(args); err != nil {
		return err
	}

	parsedPaths, err := client.ParseArgs(fs.Args())
	if err != nil {
		return err
	}

	tree, err := client.BuildFiletree(parsedPaths, *into)
	if err != nil {
		return fmt.Errorf("building filetree: %w", err)
	}

	files := tree.Files()
	fmt.Printf("Uploading %d files (%s)\n", len(files), client.FormatSize(tree.TotalSize()))

	opts := client.UploadOptions{FolderID: *folder, IsPrivate: *private}
	failed := 0
	for _, f := range files {
		m, err := c.Upload(ctx, f, opts)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			failed++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", f.RelativePath(), err)
			continue
		}
		fmt.Printf("✓ %s → %s (%s)\n", f.RelativePath(), m.ID, m.MediaType)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d uploads failed", failed, len(files))
	}
	return nil
}

func runDownload(ctx context.Context, c *client.Client, args []string) error {
	fs := flag.NewFlagSet("download", flag.ContinueOnError)
	dir := fs.String("o", ".", "directory to save into")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return &client.ValidationError{Arg: "<media-id>", Cause: "exactly one media ID required"}
	}

	dest, err := c.Download(ctx, fs.Arg(0), *dir)
	if client.IsStatus(err, http.StatusForbidden) {
		return fmt.Errorf("download denied: %w", err)
	}
	if err != nil {
		return err
	}
	fmt.Printf("✓ Saved %s\n", dest)
	return nil
}

func runQuota(ctx context.Context, c *client.Client) error {
	q, err := c.Quota(ctx)
	if err != nil {
		return err
	}

	types := make([]string, 0, len(q.Usage))
	for t := range q.Usage {
		types = append(types, t)
	}
	sort.Strings(types)

	fmt.Printf("Downloads for %s (resets %s)\n", q.Day, q.ResetAt.Format("15:04 MST"))
	for _, t := range types {
		u := q.Usage[t]
		if u.Unlimited {
			fmt.Printf("  %-8s %d used, unlimited\n", t, u.Used)
			continue
		}
		fmt.Printf("  %-8s %d/%d used, %d left\n", t, u.Used, u.Limit, u.Remaining)
	}
	return nil
}
