package cli

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/brunobiangulo/docai"
	"github.com/brunobiangulo/docai/internal/server"
	"github.com/brunobiangulo/docai/internal/tui"
	"github.com/brunobiangulo/docai/internal/watch"
)

const rule = "--------------------------------------------------"

func (a *app) reloadCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reload",
		Short: "Forget every document and ingest the source folder again",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := a.engine(cmd, false)
			if err != nil {
				return err
			}
			defer eng.Close()

			docs, err := eng.ReloadAll(cmd.Context())
			if err != nil {
				return err
			}
			sections, err := eng.SectionCount(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Loaded %d documents.\n", docs)
			a.printAvailability(cmd.OutOrStdout(), sections)
			return nil
		},
	}
}

func (a *app) printAvailability(w io.Writer, sections int) {
	if sections > 0 {
		fmt.Fprintf(w, "%d sections of documentation are available for questions.\n", sections)
		return
	}
	fmt.Fprintf(w, "No section loaded. Add documents to the %s folder.\n", a.cfg.SourceDir)
}

func (a *app) ingestCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <path>...",
		Short: "Ingest files, or every supported file of a folder",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := a.engine(cmd, false)
			if err != nil {
				return err
			}
			defer eng.Close()

			out := cmd.OutOrStdout()
			failed := 0
			for _, path := range args {
				info, err := os.Stat(path)
				if err == nil && info.IsDir() {
					n, err := eng.IngestFolder(cmd.Context(), path)
					if err != nil {
						slog.Error("ingest: folder failed", "path", path, "error", err)
						failed++
						continue
					}
					fmt.Fprintf(out, "%s: %d documents stored\n", path, n)
					continue
				}

				stored, err := eng.IngestDocument(cmd.Context(), path)
				switch {
				case err != nil:
					slog.Error("ingest: document failed", "path", path, "error", err)
					fmt.Fprintf(out, "%s: %v\n", path, err)
					failed++
				case stored:
					fmt.Fprintf(out, "%s: stored\n", path)
				default:
					fmt.Fprintf(out, "%s: already known\n", path)
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d paths failed", failed, len(args))
			}
			return nil
		},
	}
}

func (a *app) askCommand() *cobra.Command {
	var (
		asJSON      bool
		showSources bool
	)
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer one question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := a.engine(cmd, false)
			if err != nil {
				return err
			}
			defer eng.Close()

			ans, err := eng.Ask(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(ans)
			}
			fmt.Fprintln(out, ans.Text)
			if showSources {
				printSources(out, ans)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the answer as JSON")
	cmd.Flags().BoolVar(&showSources, "sources", false, "List the sections used as context")
	return cmd
}

func printSources(w io.Writer, ans *docai.Answer) {
	if len(ans.Sources) == 0 {
		return
	}
	fmt.Fprintf(w, "\nSources (%s):\n", ans.Ranker)
	for _, s := range ans.Sources {
		fmt.Fprintf(w, "- %s > %s (%.3f)\n", s.Filename, s.Title, s.Score)
	}
}

func (a *app) statsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show store counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := a.engine(cmd, false)
			if err != nil {
				return err
			}
			defer eng.Close()

			s, err := eng.Stats(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(tw, "documents\t%d\n", s.Documents)
			fmt.Fprintf(tw, "sections\t%d\n", s.Sections)
			fmt.Fprintf(tw, "embedded\t%d\n", s.Embedded)
			fmt.Fprintf(tw, "queries\t%d\n", s.Queries)
			return tw.Flush()
		},
	}
}

func (a *app) summaryCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "List what has been learned, grouped by document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := a.engine(cmd, false)
			if err != nil {
				return err
			}
			defer eng.Close()

			text, err := eng.KnowledgeSummary(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}
}

func (a *app) documentsCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "documents",
		Short: "List ingested documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := a.engine(cmd, false)
			if err != nil {
				return err
			}
			defer eng.Close()

			docs, err := eng.ListDocuments(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				if docs == nil {
					docs = []docai.Document{}
				}
				return json.NewEncoder(cmd.OutOrStdout()).Encode(docs)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tFILE\tSECTIONS\tPATH")
			for _, d := range docs {
				fmt.Fprintf(tw, "%d\t%s\t%d\t%s\n", d.ID, d.Filename, d.Sections, d.Path)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print documents as JSON")
	return cmd
}

func (a *app) indexCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Compute embeddings for sections stored without one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := a.engine(cmd, false)
			if err != nil {
				return err
			}
			defer eng.Close()

			n, err := eng.IndexEmbeddings(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Embedded %d sections.\n", n)
			return nil
		},
	}
}

func (a *app) chatCommand() *cobra.Command {
	var (
		noReload bool
		plain    bool
	)
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Reload the documentation and ask questions interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := a.engine(cmd, false)
			if err != nil {
				return err
			}
			defer eng.Close()

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			if !noReload {
				if _, err := eng.ReloadAll(ctx); err != nil {
					return err
				}
			}
			sections, err := eng.SectionCount(ctx)
			if err != nil {
				return err
			}

			if plain {
				return a.plainChat(cmd, eng, sections)
			}
			header := fmt.Sprintf("%d sections available. Type q to quit, summary for an overview.", sections)
			err = tui.Run(ctx, eng, header, cmd.InOrStdin(), cmd.OutOrStdout())
			if errors.Is(err, ctx.Err()) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&noReload, "no-reload", false, "Keep the stored documents instead of reloading the folder")
	cmd.Flags().BoolVar(&plain, "plain", false, "Line-based prompt instead of the full-screen interface")
	return cmd
}

// plainChat reads one question per line until q, quit, exit or EOF.
func (a *app) plainChat(cmd *cobra.Command, eng docai.Engine, sections int) error {
	out := cmd.OutOrStdout()
	a.printAvailability(out, sections)
	fmt.Fprintln(out, "Type 'q' to quit.")
	fmt.Fprintln(out, rule)

	sc := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(out, "\nYour question: ")
		if !sc.Scan() {
			break
		}
		q := sc.Text()
		if tui.IsQuit(q) {
			break
		}
		if strings.TrimSpace(q) == "" {
			continue
		}
		ans, err := eng.Ask(cmd.Context(), q)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, "\nAnswer:")
		fmt.Fprintln(out, rule)
		fmt.Fprintln(out, ans.Text)
		fmt.Fprintln(out, rule)
	}
	return sc.Err()
}

func (a *app) serveCommand() *cobra.Command {
	var (
		addr     string
		apiKey   string
		cors     string
		noReload bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := a.engine(cmd, true)
			if err != nil {
				return err
			}
			defer eng.Close()

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			if !noReload {
				slog.Info("serve: initial load", "dir", a.cfg.SourceDir)
				if _, err := eng.ReloadAll(ctx); err != nil {
					return err
				}
			}

			scfg := a.cfg.Server
			if cmd.Flags().Changed("addr") {
				scfg.Addr = addr
			}
			if cmd.Flags().Changed("api-key") {
				scfg.APIKey = apiKey
			}
			if cmd.Flags().Changed("cors") {
				scfg.CORSOrigins = cors
			}
			scfg.SourceDir = a.cfg.SourceDir
			return server.New(eng, scfg).Run(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config, 127.0.0.1:5000)")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "Require this Bearer key")
	cmd.Flags().StringVar(&cors, "cors", "", "Allowed CORS origins")
	cmd.Flags().BoolVar(&noReload, "no-reload", false, "Skip the initial reload of the source folder")
	return cmd
}

func (a *app) watchCommand() *cobra.Command {
	var skipInitial bool
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Ingest new files as they appear in the source folder",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := a.engine(cmd, false)
			if err != nil {
				return err
			}
			defer eng.Close()

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			dir := a.cfg.SourceDir
			if !skipInitial {
				n, err := eng.IngestFolder(ctx, dir)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Ingested %d new documents from %s.\n", n, dir)
			}
			return watch.New(eng, dir).Run(ctx)
		},
	}
	cmd.Flags().BoolVar(&skipInitial, "skip-initial", false, "Do not ingest the existing files first")
	return cmd
}
