package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"hostfetch/downloader"
	"hostfetch/hoster"
	"hostfetch/internal"
	"hostfetch/utils"
)

var (
	probeWantSize bool
	probeWantHash bool
	listRecursive bool
	uploadModule  string
	uploadName    string
)

var probeCmd = &cobra.Command{
	Use:   "probe <URL>...",
	Short: "Check link health and metadata without downloading",
	Long: `Probe checks whether links are alive and reports the metadata the
site exposes: filename, and optionally size and hash.

Examples:
  hostfetch probe https://example-host.com/file/AbC123
  hostfetch probe --size --hash https://example-host.com/file/AbC123`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		batch := runOpBatch(args, probeOne)
		exitCode = batch.ExitCode()
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list <FOLDER_URL>...",
	Short: "List the files inside a hosted folder",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		batch := runOpBatch(args, listOne)
		exitCode = batch.ExitCode()
		return nil
	},
}

var uploadCmd = &cobra.Command{
	Use:   "upload --to <module> <LOCAL_FILE>",
	Short: "Upload a local file to a hosting site",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		result := uploadOne(args[0])
		batch := &downloader.BatchResult{}
		batch.Add(result)
		exitCode = batch.ExitCode()
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <URL>...",
	Short: "Delete previously uploaded files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		batch := runOpBatch(args, deleteOne)
		exitCode = batch.ExitCode()
		return nil
	},
}

// opFunc processes one item for a non-download operation.
type opFunc func(ctx context.Context, env *environment, item string) downloader.ItemResult

// runOpBatch mirrors the download batch loop for the auxiliary operations:
// sequential items, per-item outcome collection, shared environment.
func runOpBatch(args []string, op opFunc) *downloader.BatchResult {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	batch := &downloader.BatchResult{}
	env, err := buildEnvironment()
	if err != nil {
		for _, item := range args {
			batch.Add(downloader.ItemResult{URL: item, Kind: internal.KindOf(err), Err: err})
		}
		internal.LogError("Setup failed: %v", err)
		return batch
	}

	for _, raw := range args {
		item := utils.NormalizeItemURL(raw)
		if ctx.Err() != nil {
			batch.Add(downloader.ItemResult{
				URL:  item,
				Kind: internal.ErrSystem,
				Err:  internal.WrapHosterError(internal.ErrSystem, "interrupted", ctx.Err()),
			})
			continue
		}
		result := op(ctx, env, item)
		if result.Err != nil {
			internal.LogAbort(item, result.Err)
		}
		batch.Add(result)
	}
	return batch
}

func probeOne(ctx context.Context, env *environment, item string) downloader.ItemResult {
	module, err := findModule(env, item)
	if err != nil {
		return downloader.ItemResult{URL: item, Kind: internal.KindOf(err), Err: err}
	}
	prober, ok := module.(hoster.Prober)
	if !ok {
		err := internal.NewHosterError(internal.ErrFatal,
			fmt.Sprintf("module %s does not support probing", module.Name()))
		return downloader.ItemResult{URL: item, Kind: internal.KindOf(err), Err: err}
	}

	want := internal.ProbeFilename
	if probeWantSize {
		want |= internal.ProbeSize
	}
	if probeWantHash {
		want |= internal.ProbeHash
	}

	info, err := prober.Probe(ctx, env.session, item, want)
	if err != nil {
		return downloader.ItemResult{URL: item, Kind: internal.KindOf(err), Err: err}
	}

	fmt.Printf("%s: alive", item)
	if info.Confirmed.Has(internal.ProbeFilename) {
		fmt.Printf("  name=%s", info.Filename)
	}
	if info.Confirmed.Has(internal.ProbeSize) {
		fmt.Printf("  size=%d", info.Size)
	}
	if info.Confirmed.Has(internal.ProbeHash) {
		fmt.Printf("  hash=%s", info.Hash)
	}
	fmt.Println()
	return downloader.ItemResult{URL: item, Kind: internal.OK}
}

func listOne(ctx context.Context, env *environment, item string) downloader.ItemResult {
	module, err := findModule(env, item)
	if err != nil {
		return downloader.ItemResult{URL: item, Kind: internal.KindOf(err), Err: err}
	}
	lister, ok := module.(hoster.Lister)
	if !ok {
		err := internal.NewHosterError(internal.ErrFatal,
			fmt.Sprintf("module %s does not support folder listing", module.Name()))
		return downloader.ItemResult{URL: item, Kind: internal.KindOf(err), Err: err}
	}

	entries, err := lister.List(ctx, env.session, item, listRecursive)
	if err != nil {
		return downloader.ItemResult{URL: item, Kind: internal.KindOf(err), Err: err}
	}

	for _, entry := range entries {
		if entry.Name != "" {
			fmt.Printf("%s\t%s\n", entry.URL, entry.Name)
		} else {
			fmt.Println(entry.URL)
		}
	}
	return downloader.ItemResult{URL: item, Kind: internal.OK}
}

func uploadOne(localPath string) downloader.ItemResult {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if _, err := os.Stat(localPath); err != nil {
		werr := internal.WrapHosterError(internal.ErrBadCommandLine,
			fmt.Sprintf("cannot read %s", localPath), err)
		internal.LogAbort(localPath, werr)
		return downloader.ItemResult{URL: localPath, Kind: internal.KindOf(werr), Err: werr}
	}

	env, err := buildEnvironment()
	if err != nil {
		internal.LogError("Setup failed: %v", err)
		return downloader.ItemResult{URL: localPath, Kind: internal.KindOf(err), Err: err}
	}

	module, ok := env.registry.Lookup(uploadModule)
	if !ok {
		err := internal.NewHosterError(internal.ErrNoModule,
			fmt.Sprintf("no module named %q", uploadModule))
		internal.LogAbort(localPath, err)
		return downloader.ItemResult{URL: localPath, Kind: internal.KindOf(err), Err: err}
	}
	uploader, ok := module.(hoster.Uploader)
	if !ok {
		err := internal.NewHosterError(internal.ErrFatal,
			fmt.Sprintf("module %s does not support uploads", module.Name()))
		internal.LogAbort(localPath, err)
		return downloader.ItemResult{URL: localPath, Kind: internal.KindOf(err), Err: err}
	}

	remoteName := uploadName
	if remoteName == "" {
		remoteName = filepath.Base(localPath)
	}

	remoteURL, err := uploader.Upload(ctx, env.session, localPath, remoteName)
	if err != nil {
		internal.LogAbort(localPath, err)
		return downloader.ItemResult{URL: localPath, Kind: internal.KindOf(err), Err: err}
	}

	fmt.Println(remoteURL)
	return downloader.ItemResult{URL: localPath, Path: remoteURL, Kind: internal.OK}
}

func deleteOne(ctx context.Context, env *environment, item string) downloader.ItemResult {
	module, err := findModule(env, item)
	if err != nil {
		return downloader.ItemResult{URL: item, Kind: internal.KindOf(err), Err: err}
	}
	deleter, ok := module.(hoster.Deleter)
	if !ok {
		err := internal.NewHosterError(internal.ErrFatal,
			fmt.Sprintf("module %s does not support deletion", module.Name()))
		return downloader.ItemResult{URL: item, Kind: internal.KindOf(err), Err: err}
	}

	if err := deleter.Delete(ctx, env.session, item); err != nil {
		return downloader.ItemResult{URL: item, Kind: internal.KindOf(err), Err: err}
	}

	if !quiet {
		fmt.Printf("Deleted %s\n", item)
	}
	return downloader.ItemResult{URL: item, Kind: internal.OK}
}

// findModule resolves a module with the direct fallback, without requiring
// any particular capability.
func findModule(env *environment, rawURL string) (hoster.Module, error) {
	if err := utils.ValidateItemURL(rawURL); err != nil {
		return nil, err
	}
	module, err := env.registry.Find(rawURL)
	if err != nil {
		if config.Fallback && internal.IsKind(err, internal.ErrNoModule) {
			return env.direct, nil
		}
		return nil, err
	}
	return module, nil
}

func init() {
	probeCmd.Flags().BoolVar(&probeWantSize, "size", false, "Also request the file size")
	probeCmd.Flags().BoolVar(&probeWantHash, "hash", false, "Also request the file hash")
	listCmd.Flags().BoolVarP(&listRecursive, "recursive", "R", false, "Recurse into subfolders")
	uploadCmd.Flags().StringVar(&uploadModule, "to", "", "Target module name (required)")
	uploadCmd.Flags().StringVar(&uploadName, "name", "", "Remote filename, defaults to the local name")
	uploadCmd.MarkFlagRequired("to")
}
