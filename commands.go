package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/wordsprout/wordsprout/internal/cache"
	"github.com/wordsprout/wordsprout/internal/capability"
	"github.com/wordsprout/wordsprout/internal/content"
	"github.com/wordsprout/wordsprout/internal/diagnostics"
	"github.com/wordsprout/wordsprout/internal/gesture"
	"github.com/wordsprout/wordsprout/internal/speech"
	"github.com/wordsprout/wordsprout/playback"
)

var (
	sayLanguage string
	sayAsset    string

	sayCmd = &cobra.Command{
		Use:     "say <text>",
		Short:   "Pronounce a word or phrase",
		Long:    paragraph(fmt.Sprintf("\n%s a word once. When no audio is possible the word is printed instead.", keyword("Pronounce"))),
		Example: paragraph("wordsprout say apple\nwordsprout say --lang zh 苹果"),
		Args:    cobra.MinimumNArgs(1),
		RunE:    runSay,
	}
)

func runSay(cmd *cobra.Command, args []string) error {
	text := strings.Join(args, " ")
	lang, err := speech.ParseLanguage(sayLanguage)
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context(), loadOptions())
	if err != nil {
		return err
	}
	defer a.close() //nolint:errcheck

	req := playback.Request{Text: text, Language: lang, FallbackAssetKey: sayAsset}
	if e, ok := a.catalog.Find(text); ok {
		if sayAsset == "" {
			req.FallbackAssetKey = e.Asset
		}
		if !cmd.Flags().Changed("lang") {
			req.Language = e.Language
		}
	}

	// Running the command is the user's gesture.
	a.svc.ObserveInput(gesture.Event{Kind: gesture.EventKeyDown})

	o := a.svc.Pronounce(cmd.Context(), req)
	log.Debug("Pronounce finished", "outcome", o.String(), "attempts", len(o.Attempts))

	switch o.Kind {
	case playback.Completed:
		fmt.Println(subtle(fmt.Sprintf("%s via %s", o.Text, o.Strategy)))
	case playback.DegradedToText:
		fmt.Println(heading(o.Text))
		fmt.Println(subtle("no audio available"))
	case playback.Failed:
		if o.Prompt != "" {
			fmt.Fprintln(os.Stderr, o.Prompt)
		}
		return fmt.Errorf("could not pronounce %q: %s", text, o.Reason)
	}
	return nil
}

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Show the detected audio capabilities",
	Args:  cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		opts := loadOptions()
		profile := capability.NewDetector(capability.NativeProbe{
			UserAgent:     opts.UserAgent,
			DisableSpeech: opts.SpeechEngine == "none",
		}, log.Default().WithPrefix("capability")).Detect()
		rec := capability.Estimate(profile, capability.NetworkHint{
			Class:    capability.ParseNetworkClass(opts.Network),
			MemoryGB: opts.MemoryGB,
		})

		platform := profile.PlatformID
		if platform == "" {
			platform = "native"
		}
		rows := [][2]string{
			{"Platform", platform},
			{"Device", string(profile.DeviceClass)},
			{"Speech synthesis", yesNo(profile.HasSpeechSynth)},
			{"Tone synthesis", yesNo(profile.HasToneSynthesis)},
			{"Media playback", yesNo(profile.HasMediaPlayback)},
			{"Needs a gesture", yesNo(profile.RequiresGesture)},
			{"Quality", fmt.Sprintf("%s (score %d)", rec.Tier, rec.Score)},
			{"Format", fmt.Sprintf("%s @ %d kbps", rec.Format, rec.BitrateKbps)},
			{"Preload", string(rec.Preload)},
		}
		printRows(rows)
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show catalog, recording store and diagnostics statistics",
	Args:  cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		opts := loadOptions()
		path, err := opts.catalogPath()
		if err != nil {
			return err
		}
		catalog, err := content.Load(path)
		if err != nil {
			return err
		}

		fmt.Println(heading("Words"))
		rows := [][2]string{{"Total", humanize.Comma(int64(len(catalog.Words)))}}
		for _, c := range catalog.Categories() {
			rows = append(rows, [2]string{c, humanize.Comma(int64(len(catalog.InCategory(c))))})
		}
		printRows(rows)

		fmt.Println(heading("Recordings"))
		dir, err := opts.assetDir()
		if err != nil {
			return err
		}
		ds, err := cache.NewDiskStore(dir, opts.DiskMaxBytes, opts.CompressionLevel, log.Default().WithPrefix("disk"))
		if err != nil {
			return err
		}
		st := ds.Stats()
		_ = ds.Close()
		printRows([][2]string{
			{"Directory", dir},
			{"Stored", humanize.Comma(int64(st.Entries))},
			{"On disk", fmt.Sprintf("%s of %s", humanize.Bytes(uint64(st.Bytes)), humanize.Bytes(uint64(st.Capacity)))}, //nolint:gosec
			{"Uncompressed", humanize.Bytes(uint64(st.RawBytes))},                                                        //nolint:gosec
		})

		fmt.Println(heading("Last session"))
		dlog, err := loadSessionLog(opts)
		if errors.Is(err, os.ErrNotExist) {
			fmt.Println(subtle("  no diagnostics recorded yet"))
			return nil
		} else if err != nil {
			return err
		}
		printLogStats(dlog.Stats())
		return nil
	},
}

var (
	logsCopy bool
	logsLast int

	logsCmd = &cobra.Command{
		Use:   "logs",
		Short: "Inspect the diagnostics of the last session",
		Args:  cobra.NoArgs,
	}

	logsExportCmd = &cobra.Command{
		Use:   "export",
		Short: "Print the diagnostics as JSON",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			dlog, err := loadSessionLog(loadOptions())
			if err != nil {
				return err
			}
			data, err := dlog.Export()
			if err != nil {
				return err
			}
			if logsCopy {
				if err := clipboard.WriteAll(data); err != nil {
					return fmt.Errorf("unable to copy to clipboard: %w", err)
				}
				fmt.Fprintln(os.Stderr, "Copied diagnostics to clipboard")
				return nil
			}
			fmt.Println(data)
			return nil
		},
	}

	logsImportCmd = &cobra.Command{
		Use:   "import <file>",
		Short: "Replace the stored diagnostics with an exported document",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			opts := loadOptions()
			dlog := diagnostics.New(opts.DiagnosticsCapacity)
			if err := dlog.Import(string(data)); err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			if err := saveSessionLog(dlog); err != nil {
				return err
			}
			fmt.Printf("Imported %d records\n", dlog.Len())
			return nil
		},
	}

	logsPatternsCmd = &cobra.Command{
		Use:   "patterns",
		Short: "Summarise warnings and errors by category",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			dlog, err := loadSessionLog(loadOptions())
			if err != nil {
				return err
			}
			printLogStats(dlog.Stats())

			p := dlog.AnalyzePatterns()
			if len(p.ByCategory) > 0 {
				fmt.Println(heading("By category"))
				cats := make([]string, 0, len(p.ByCategory))
				for c := range p.ByCategory {
					cats = append(cats, string(c))
				}
				sort.Strings(cats)
				rows := make([][2]string, 0, len(cats))
				for _, c := range cats {
					rows = append(rows, [2]string{c, fmt.Sprint(p.ByCategory[diagnostics.Category(c)])})
				}
				printRows(rows)
			}
			if len(p.MostCommon) > 0 {
				fmt.Println(heading("Most common"))
				for _, mc := range p.MostCommon {
					fmt.Printf("  %4d  %s\n", mc.Count, mc.Message)
				}
			}
			if recent := dlog.RecentErrors(logsLast); len(recent) > 0 {
				fmt.Println(heading("Recent errors"))
				for _, r := range recent {
					fmt.Printf("  %s  %s\n", subtle(fmt.Sprintf("%-14s", humanize.Time(r.Timestamp))), r.Message)
				}
			}
			return nil
		},
	}
)

func loadSessionLog(opts options) (*diagnostics.Log, error) {
	path, err := sessionLogPath()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("no diagnostics found: %w", err)
	}
	dlog := diagnostics.New(opts.DiagnosticsCapacity)
	if err := dlog.Import(string(data)); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return dlog, nil
}

func saveSessionLog(dlog *diagnostics.Log) error {
	data, err := dlog.Export()
	if err != nil {
		return err
	}
	return writeSessionLog(data)
}

var (
	preloadStrategy string

	preloadCmd = &cobra.Command{
		Use:   "preload",
		Short: "Download recordings ahead of time",
		Long: paragraph(fmt.Sprintf("\n%s recordings of the catalog into the local store. Without --strategy the strategy recommended for this device and network is used.",
			keyword("Download"))),
		Args: cobra.NoArgs,
		RunE: runPreload,
	}
)

func runPreload(cmd *cobra.Command, _ []string) error {
	opts := loadOptions()
	if opts.AssetsBaseURL == "" {
		return errors.New("assets.base_url is not configured")
	}

	var strategy capability.PreloadStrategy
	switch s := capability.PreloadStrategy(preloadStrategy); s {
	case "", capability.PreloadMinimal, capability.PreloadBalanced, capability.PreloadAggressive:
		strategy = s
	default:
		return fmt.Errorf("unknown preload strategy %q", preloadStrategy)
	}

	a, err := newApp(cmd.Context(), opts)
	if err != nil {
		return err
	}
	defer a.close() //nolint:errcheck

	if strategy == "" {
		strategy = a.svc.Quality().Preload
	}

	start := time.Now()
	report, err := a.svc.Preload(cmd.Context(), a.catalog.PreloadItems(), strategy)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	printRows([][2]string{
		{"Strategy", string(strategy)},
		{"Requested", fmt.Sprint(report.Requested)},
		{"Loaded", fmt.Sprint(report.Loaded)},
		{"Skipped", fmt.Sprint(report.Skipped)},
		{"Failed", fmt.Sprint(report.Failed)},
		{"Took", time.Since(start).Round(time.Millisecond).String()},
	})
	keys := make([]string, 0, len(report.Errors))
	for k := range report.Errors {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(os.Stderr, "  %s: %v\n", k, report.Errors[k])
	}
	if report.Failed > 0 {
		return fmt.Errorf("%d recordings could not be loaded", report.Failed)
	}
	return err
}

func printLogStats(st diagnostics.Stats) {
	printRows([][2]string{
		{"Records", fmt.Sprint(st.Total)},
		{"Errors", fmt.Sprint(st.ErrorCount)},
		{"Warnings", fmt.Sprint(st.WarningCount)},
		{"Error rate", fmt.Sprintf("%.0f%%", st.ErrorRate*100)},
	})
}

func printRows(rows [][2]string) {
	width := 0
	for _, r := range rows {
		width = max(width, len(r[0]))
	}
	for _, r := range rows {
		fmt.Printf("  %s  %s\n", subtle(fmt.Sprintf("%-*s", width, r[0])), r[1])
	}
}

func yesNo(b bool) string {
	if b {
		return keyword("yes")
	}
	return "no"
}

func init() {
	sayCmd.Flags().StringVarP(&sayLanguage, "lang", "l", "en", "language of the text")
	sayCmd.Flags().StringVar(&sayAsset, "asset", "", "recording to fall back to")

	logsExportCmd.Flags().BoolVar(&logsCopy, "copy", false, "copy to the clipboard instead of printing")
	logsPatternsCmd.Flags().IntVarP(&logsLast, "last", "n", 5, "number of recent errors to show")
	logsCmd.AddCommand(logsExportCmd, logsImportCmd, logsPatternsCmd)

	preloadCmd.Flags().StringVarP(&preloadStrategy, "strategy", "s", "", "minimal, balanced or aggressive")
}
