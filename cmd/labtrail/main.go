package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/coolbeans/labtrail/pkg/chart"
	"github.com/coolbeans/labtrail/pkg/dates"
	"github.com/coolbeans/labtrail/pkg/export"
	"github.com/coolbeans/labtrail/pkg/journal"
	"github.com/coolbeans/labtrail/pkg/render"
	"github.com/coolbeans/labtrail/pkg/report"
	"github.com/coolbeans/labtrail/pkg/review"
	"github.com/coolbeans/labtrail/pkg/server"
	"github.com/coolbeans/labtrail/pkg/textextract"
	"github.com/coolbeans/labtrail/pkg/watch"
)

var version = "0.1.0"

var cfgFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "labtrail",
		Short: "Lab report tracker",
		Long: `Labtrail turns lab report printouts into a longitudinal health record.

It extracts measurements from PDF and text reports and produces:
  - A reviewable journal of every result, flagged against reference ranges
  - Per-measurement time series and trend charts
  - Delimited-text export for spreadsheets
  - An inbox watcher and HTTP API for continuous ingestion`,
		Version: version,
	}

	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: $HOME/.labtrail.yaml)")

	rootCmd.AddCommand(parseCmd())
	rootCmd.AddCommand(ingestCmd())
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(showCmd())
	rootCmd.AddCommand(amendCmd())
	rootCmd.AddCommand(seriesCmd())
	rootCmd.AddCommand(keysCmd())
	rootCmd.AddCommand(chartCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(watchCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigName(".labtrail")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("labtrail")
	viper.AutomaticEnv()
	_ = viper.ReadInConfig()
}

// journalPath resolves the journal directory: flag, then config, then
// .labtrail in the working directory.
func journalPath(cmd *cobra.Command) string {
	if path, _ := cmd.Flags().GetString("journal"); path != "" {
		return path
	}
	if path := viper.GetString("journal"); path != "" {
		return path
	}
	return ".labtrail"
}

func addJournalFlag(cmd *cobra.Command) {
	cmd.Flags().String("journal", "", "Journal directory (default: config journal or .labtrail)")
}

func parserFromConfig() *report.Parser {
	parser := report.NewParser()
	parser.FlagInequalities = viper.GetBool("parser.flag_inequalities")
	return parser
}

func locationFromConfig() (*time.Location, error) {
	name := viper.GetString("location")
	if name == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("bad location %q in config: %w", name, err)
	}
	return loc, nil
}

func sourceLabel(cmd *cobra.Command) string {
	if s, _ := cmd.Flags().GetString("source"); s != "" {
		return s
	}
	return viper.GetString("source")
}

func openJournal(cmd *cobra.Command) (*journal.Journal, error) {
	path := journalPath(cmd)
	j, err := journal.Open(path, parserFromConfig())
	if err != nil {
		return nil, fmt.Errorf("journal not found at %s: %w", path, err)
	}
	return j, nil
}

func parseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse <file>",
		Short: "Parse a report file without storing it",
		Long: `Parse a lab report and print the measurements found in it.

Nothing is stored; use 'labtrail ingest' to add reports to the journal.

Example:
  labtrail parse bloodwork.pdf
  labtrail parse report.txt --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")

			text, err := textextract.FromFile(args[0])
			if err != nil {
				return err
			}
			cleaned := textextract.CleanText(text)
			measurements := parserFromConfig().Parse(cleaned)

			if format == "json" {
				encoder := json.NewEncoder(os.Stdout)
				encoder.SetIndent("", "  ")
				return encoder.Encode(measurements)
			}

			collectedAt, hasCollected := extractedCollectionTime(cleaned)
			entries := make([]journal.Entry, 0, len(measurements))
			for _, m := range measurements {
				entries = append(entries, journal.Entry{Measurement: m, CollectedAt: collectedAt})
			}
			if err := render.NewTextRenderer(os.Stdout).Render(entries); err != nil {
				return err
			}

			if hasCollected {
				fmt.Printf("\n%d measurement(s), collected %s\n",
					len(measurements), collectedAt.Local().Format("2006-01-02 15:04"))
			} else {
				fmt.Printf("\n%d measurement(s)\n", len(measurements))
			}
			return nil
		},
	}

	cmd.Flags().StringP("format", "f", "text", "Output format (text, json)")

	return cmd
}

func extractedCollectionTime(text string) (time.Time, bool) {
	ct, ok := report.ExtractCollectionTime(text)
	if !ok {
		return time.Time{}, false
	}
	loc, err := locationFromConfig()
	if err != nil {
		return time.Time{}, false
	}
	collected, err := dates.NormalizeCollectionTime(ct, loc)
	if err != nil {
		return time.Time{}, false
	}
	return collected, true
}

func ingestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest <file|glob> ...",
		Short: "Add report files to the journal",
		Long: `Extract, parse and store one or more lab reports.

Arguments may be files or glob patterns, including recursive ** globs.
Identical report text is stored once no matter how often it is ingested.

Example:
  labtrail ingest bloodwork.pdf
  labtrail ingest 'reports/**/*.pdf' --source "City Hospital"
  labtrail ingest report.txt --collected 2026-01-16`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			force, _ := cmd.Flags().GetBool("force")
			collectedStr, _ := cmd.Flags().GetString("collected")

			loc, err := locationFromConfig()
			if err != nil {
				return err
			}
			var collectedAt time.Time
			if collectedStr != "" {
				collectedAt, err = parseCollected(collectedStr, loc)
				if err != nil {
					return err
				}
			}

			files, err := expandArgs(args)
			if err != nil {
				return err
			}

			j, err := journal.OpenOrInit(journalPath(cmd), parserFromConfig())
			if err != nil {
				return fmt.Errorf("failed to open journal: %w", err)
			}

			var bar *progressbar.ProgressBar
			if len(files) > 1 {
				bar = progressbar.NewOptions(len(files),
					progressbar.OptionSetDescription("Ingesting"),
					progressbar.OptionSetWriter(os.Stderr),
					progressbar.OptionSetWidth(40),
					progressbar.OptionShowCount(),
					progressbar.OptionOnCompletion(func() {
						fmt.Fprint(os.Stderr, "\n")
					}),
				)
			}

			source := sourceLabel(cmd)
			var lines []string
			added, duplicates, failed := 0, 0, 0

			for _, file := range files {
				lines = append(lines, ingestFile(j, file, source, collectedAt, loc, force, &added, &duplicates, &failed))
				if bar != nil {
					bar.Add(1)
				}
			}

			for _, line := range lines {
				fmt.Println(line)
			}
			fmt.Printf("\nIngest complete: %d added, %d duplicate(s), %d failed\n", added, duplicates, failed)

			stats := j.Stats()
			fmt.Printf("Journal totals: %d report(s), %d measurement(s), %d flagged\n",
				stats.TotalReports, stats.TotalMeasurements, stats.FlaggedCount)

			if failed > 0 {
				return fmt.Errorf("%d file(s) failed to ingest", failed)
			}
			return nil
		},
	}

	addJournalFlag(cmd)
	cmd.Flags().String("source", "", "Source label recorded on the reports (lab or clinic name)")
	cmd.Flags().Bool("force", false, "Re-ingest reports whose content is already stored")
	cmd.Flags().String("collected", "", "Override the collection time (RFC3339, 2006-01-02 15:04 or 2006-01-02)")

	return cmd
}

func ingestFile(j *journal.Journal, file, source string, collectedAt time.Time, loc *time.Location, force bool, added, duplicates, failed *int) string {
	name := filepath.Base(file)

	text, err := textextract.FromFile(file)
	if err != nil {
		*failed++
		return fmt.Sprintf("  [FAIL] %-28s %v", name, err)
	}
	cleaned := textextract.CleanText(text)
	if strings.TrimSpace(cleaned) == "" {
		*failed++
		return fmt.Sprintf("  [FAIL] %-28s no text extracted", name)
	}

	sourceText := []byte(cleaned)
	if existing := j.GetReport(journal.ReportID(sourceText)); existing != nil && !force {
		*duplicates++
		return fmt.Sprintf("  [SKIP] %-28s already in journal as %s", name, existing.ID)
	}

	label := source
	if label == "" {
		label = name
	}
	entry, err := j.AddReport(sourceText, journal.AddOptions{
		Source:      label,
		CollectedAt: collectedAt,
		Location:    loc,
		Force:       force,
	})
	if err != nil {
		*failed++
		return fmt.Sprintf("  [FAIL] %-28s %v", name, err)
	}

	*added++
	note := ""
	if entry.Status == journal.StatusEmpty {
		note = " (no measurements recognized)"
	} else if entry.FlaggedCount > 0 {
		note = fmt.Sprintf(", %d flagged", entry.FlaggedCount)
	}
	return fmt.Sprintf("  [OK]   %-28s %s  %d measurement(s)%s", name, entry.ID, entry.MeasurementCount, note)
}

// expandArgs resolves file arguments and glob patterns to a deduplicated
// file list, preserving argument order.
func expandArgs(patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string

	for _, pattern := range patterns {
		matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no files match %s", pattern)
		}
		sort.Strings(matches)
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				files = append(files, m)
			}
		}
	}
	return files, nil
}

func parseCollected(value string, loc *time.Location) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized collection time %q (want RFC3339, 2006-01-02 15:04 or 2006-01-02)", value)
}

func listCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List reports in the journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			formatStr, _ := cmd.Flags().GetString("format")

			j, err := openJournal(cmd)
			if err != nil {
				return err
			}
			reports := j.ListReports()

			if formatStr == "json" {
				encoder := json.NewEncoder(os.Stdout)
				encoder.SetIndent("", "  ")
				return encoder.Encode(reports)
			}

			if len(reports) == 0 {
				fmt.Println("Journal is empty. Run 'labtrail ingest <file>' to add reports.")
				return nil
			}

			fmt.Printf("%-14s %-18s %-24s %-7s %8s %8s %9s\n",
				"ID", "COLLECTED", "SOURCE", "STATUS", "RECORDS", "FLAGGED", "REVIEWED")
			fmt.Println(strings.Repeat("-", 96))

			for _, entry := range reports {
				collected := entry.CollectedAt.Local().Format("2006-01-02 15:04")
				if entry.CollectedGuessed {
					collected = "~" + collected
				}
				source := entry.Source
				if source == "" {
					source = "-"
				}
				reviewed := ""
				if entry.Reviewed {
					reviewed = "yes"
				}
				fmt.Printf("%-14s %-18s %-24s %-7s %8d %8d %9s\n",
					entry.ID,
					collected,
					truncateString(source, 24),
					entry.Status,
					entry.MeasurementCount,
					entry.FlaggedCount,
					reviewed,
				)
			}

			fmt.Printf("\n%d report(s)\n", len(reports))
			return nil
		},
	}

	addJournalFlag(cmd)
	cmd.Flags().StringP("format", "f", "table", "Output format (table, json)")

	return cmd
}

func showCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <report-id>",
		Short: "Show one report's records",
		Long: `Show a report's metadata and its effective records, with any saved
corrections applied. Row numbers in the output are the ones 'labtrail
amend' addresses.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatStr, _ := cmd.Flags().GetString("format")
			showRaw, _ := cmd.Flags().GetBool("raw")

			j, err := openJournal(cmd)
			if err != nil {
				return err
			}

			id := args[0]
			entry := j.GetReport(id)
			if entry == nil {
				return fmt.Errorf("report not found: %s", id)
			}

			if showRaw {
				source, err := j.SourceText(id)
				if err != nil {
					return err
				}
				fmt.Print(string(source))
				return nil
			}

			records, err := j.Records(id)
			if err != nil {
				return err
			}

			if formatStr == "json" {
				encoder := json.NewEncoder(os.Stdout)
				encoder.SetIndent("", "  ")
				return encoder.Encode(struct {
					Report  *journal.ReportEntry `json:"report"`
					Records []journal.Entry      `json:"records"`
				}{entry, records})
			}

			fmt.Printf("Report:    %s\n", entry.ID)
			if entry.Source != "" {
				fmt.Printf("Source:    %s\n", entry.Source)
			}
			collected := entry.CollectedAt.Local().Format("2006-01-02 15:04")
			if entry.CollectedGuessed {
				collected += " (guessed)"
			}
			fmt.Printf("Collected: %s\n", collected)
			fmt.Printf("Ingested:  %s\n", entry.IngestedAt.Local().Format("2006-01-02 15:04"))
			fmt.Printf("Status:    %s", entry.Status)
			if entry.Reviewed {
				fmt.Print(", reviewed")
			}
			fmt.Println()
			fmt.Println()

			renderer := render.NewTextRenderer(os.Stdout)
			renderer.WithRowNumbers = true
			return renderer.Render(records)
		},
	}

	addJournalFlag(cmd)
	cmd.Flags().StringP("format", "f", "text", "Output format (text, json)")
	cmd.Flags().Bool("raw", false, "Print the stored source text instead of records")

	return cmd
}

func amendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "amend <report-id>",
		Short: "Correct a report's records",
		Long: `Record corrections against a report without touching the original
parse. Corrections address row numbers as printed by 'labtrail show'.
Row numbers always refer to the original parse, so they never shift as
corrections accumulate.

--set edits add to any corrections already saved; --file replaces them
with the patch list from a YAML file.

Example:
  labtrail amend a1b2c3d4e5f6 --set 0.value=13.2
  labtrail amend a1b2c3d4e5f6 --set 2.unit=mg/dL --drop 5
  labtrail amend a1b2c3d4e5f6 --file corrections.yaml
  labtrail amend a1b2c3d4e5f6 --clear`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patchFile, _ := cmd.Flags().GetString("file")
			setExprs, _ := cmd.Flags().GetStringArray("set")
			dropRows, _ := cmd.Flags().GetIntSlice("drop")
			clearAll, _ := cmd.Flags().GetBool("clear")

			j, err := openJournal(cmd)
			if err != nil {
				return err
			}

			id := args[0]
			if j.GetReport(id) == nil {
				return fmt.Errorf("report not found: %s", id)
			}

			var patches []review.Patch
			switch {
			case clearAll:
				if patchFile != "" || len(setExprs) > 0 || len(dropRows) > 0 {
					return fmt.Errorf("--clear cannot be combined with other corrections")
				}

			case patchFile != "":
				data, err := os.ReadFile(patchFile)
				if err != nil {
					return fmt.Errorf("failed to read corrections: %w", err)
				}
				patches, err = review.ParsePatches(data)
				if err != nil {
					return err
				}

			default:
				if len(setExprs) == 0 && len(dropRows) == 0 {
					return fmt.Errorf("nothing to amend: use --set, --drop, --file or --clear")
				}
				patches, err = j.Patches(id)
				if err != nil {
					return err
				}
			}

			for _, expr := range setExprs {
				patch, err := review.ParseSetExpr(expr)
				if err != nil {
					return err
				}
				patches = append(patches, patch)
			}
			for _, row := range dropRows {
				patches = append(patches, review.Patch{Row: row, Drop: true})
			}

			if err := j.SavePatches(id, patches); err != nil {
				return err
			}

			records, err := j.Records(id)
			if err != nil {
				return err
			}
			entry := j.GetReport(id)
			fmt.Printf("Updated %s: %d record(s), %d flagged\n\n", id, entry.MeasurementCount, entry.FlaggedCount)

			renderer := render.NewTextRenderer(os.Stdout)
			renderer.WithRowNumbers = true
			return renderer.Render(records)
		},
	}

	addJournalFlag(cmd)
	cmd.Flags().String("file", "", "YAML corrections file (replaces saved corrections)")
	cmd.Flags().StringArray("set", nil, "Field edit as ROW.FIELD=VALUE (repeatable)")
	cmd.Flags().IntSlice("drop", nil, "Row number to drop (repeatable)")
	cmd.Flags().Bool("clear", false, "Remove all saved corrections")

	return cmd
}

func seriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "series <key>",
		Short: "Show one measurement over time",
		Long: `Show every stored value of one measurement, oldest first. The key may
be the normalized form or the display name as printed on a report.

Example:
  labtrail series haemoglobin
  labtrail series "Total Cholesterol" --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatStr, _ := cmd.Flags().GetString("format")

			j, err := openJournal(cmd)
			if err != nil {
				return err
			}

			entries, err := j.Series(args[0])
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Printf("No measurements recorded for %q. Run 'labtrail keys' to see what is tracked.\n", args[0])
				return nil
			}

			if formatStr == "json" {
				return render.NewJSONRenderer(os.Stdout).Render(entries)
			}
			renderer := render.NewTextRenderer(os.Stdout)
			renderer.WithTimestamps = true
			return renderer.Render(entries)
		},
	}

	addJournalFlag(cmd)
	cmd.Flags().StringP("format", "f", "text", "Output format (text, json)")

	return cmd
}

func keysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "List tracked measurement keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			formatStr, _ := cmd.Flags().GetString("format")

			j, err := openJournal(cmd)
			if err != nil {
				return err
			}
			keys, err := j.Keys()
			if err != nil {
				return err
			}

			if formatStr == "json" {
				encoder := json.NewEncoder(os.Stdout)
				encoder.SetIndent("", "  ")
				return encoder.Encode(keys)
			}

			if len(keys) == 0 {
				fmt.Println("No measurements in the journal yet.")
				return nil
			}

			fmt.Printf("%-28s %-30s %-14s %6s\n", "KEY", "NAME", "UNIT", "COUNT")
			fmt.Println(strings.Repeat("-", 82))
			for _, info := range keys {
				fmt.Printf("%-28s %-30s %-14s %6d\n",
					truncateString(info.Key, 28),
					truncateString(info.Name, 30),
					truncateString(info.Unit, 14),
					info.Count,
				)
			}
			fmt.Printf("\n%d key(s)\n", len(keys))
			return nil
		},
	}

	addJournalFlag(cmd)
	cmd.Flags().StringP("format", "f", "table", "Output format (table, json)")

	return cmd
}

func chartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chart [key]",
		Short: "Render a trend chart as HTML",
		Long: `Render a line chart of one measurement over time, with the reference
range drawn when the reports quote numeric bounds. With --all, write one
chart per tracked key into a directory.

Example:
  labtrail chart haemoglobin
  labtrail chart haemoglobin --output hb.html
  labtrail chart --all --output charts/`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			all, _ := cmd.Flags().GetBool("all")
			output, _ := cmd.Flags().GetString("output")

			j, err := openJournal(cmd)
			if err != nil {
				return err
			}

			if all {
				if len(args) > 0 {
					return fmt.Errorf("--all takes no key argument")
				}
				if output == "" {
					output = "charts"
				}
				paths, err := chart.RenderAll(j, output)
				if err != nil {
					return err
				}
				for _, path := range paths {
					fmt.Printf("  - %s\n", path)
				}
				fmt.Printf("Wrote %d chart(s) to %s\n", len(paths), output)
				return nil
			}

			if len(args) == 0 {
				return fmt.Errorf("pass a measurement key or use --all")
			}
			key := report.NormalizeKey(args[0])
			if key == "" {
				return fmt.Errorf("invalid measurement key %q", args[0])
			}
			if output == "" {
				output = key + ".html"
			}

			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", output, err)
			}
			renderErr := chart.RenderKey(f, j, key)
			if closeErr := f.Close(); renderErr == nil {
				renderErr = closeErr
			}
			if renderErr != nil {
				os.Remove(output)
				return renderErr
			}
			fmt.Printf("Wrote %s\n", output)
			return nil
		},
	}

	addJournalFlag(cmd)
	cmd.Flags().Bool("all", false, "Render every tracked key")
	cmd.Flags().StringP("output", "o", "", "Output file, or directory with --all")

	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export records as delimited text",
		Long: `Write every record as quoted, comma-delimited text with a fixed
column set, suitable for spreadsheets. Defaults to stdout.

Example:
  labtrail export > labs.csv
  labtrail export --output labs.csv
  labtrail export --report a1b2c3d4e5f6`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output, _ := cmd.Flags().GetString("output")
			reportID, _ := cmd.Flags().GetString("report")

			j, err := openJournal(cmd)
			if err != nil {
				return err
			}

			var entries []journal.Entry
			if reportID != "" {
				entries, err = j.Records(reportID)
			} else {
				entries, err = j.AllRecords()
			}
			if err != nil {
				return err
			}

			if output == "" {
				return export.Write(os.Stdout, entries)
			}

			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", output, err)
			}
			writeErr := export.Write(f, entries)
			if closeErr := f.Close(); writeErr == nil {
				writeErr = closeErr
			}
			if writeErr != nil {
				return writeErr
			}
			fmt.Printf("Exported %d record(s) to %s\n", len(entries), output)
			return nil
		},
	}

	addJournalFlag(cmd)
	cmd.Flags().StringP("output", "o", "", "Output file (default: stdout)")
	cmd.Flags().String("report", "", "Export a single report's records")

	return cmd
}

func watchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [dir]",
		Short: "Watch an inbox directory and ingest new reports",
		Long: `Monitor a directory and ingest report files (*.pdf, *.txt) as they
arrive. Files already present are swept up at startup. Runs until
interrupted.

The directory may also come from the 'inbox' config key.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			debounce, _ := cmd.Flags().GetDuration("debounce")

			inbox := viper.GetString("inbox")
			if len(args) > 0 {
				inbox = args[0]
			}
			if inbox == "" {
				return fmt.Errorf("no inbox directory: pass one or set 'inbox' in the config")
			}

			loc, err := locationFromConfig()
			if err != nil {
				return err
			}
			j, err := journal.OpenOrInit(journalPath(cmd), parserFromConfig())
			if err != nil {
				return fmt.Errorf("failed to open journal: %w", err)
			}

			w, err := watch.New(j, watch.Config{
				Inbox:    inbox,
				Debounce: debounce,
				Source:   sourceLabel(cmd),
				Location: loc,
			})
			if err != nil {
				return err
			}

			// Sweep files that arrived while nothing was watching.
			swept, err := w.Scan()
			if err != nil {
				return err
			}
			for _, ev := range swept {
				printWatchEvent(ev)
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				<-sigCh
				fmt.Fprintln(os.Stderr, "\nStopping watch...")
				cancel()
			}()

			fmt.Printf("Watching %s (ctrl-c to stop)\n", inbox)

			done := make(chan struct{})
			go func() {
				w.Start(ctx)
				close(done)
			}()
			for ev := range w.Events() {
				printWatchEvent(ev)
			}
			<-done
			return nil
		},
	}

	addJournalFlag(cmd)
	cmd.Flags().String("source", "", "Source label prefix for ingested reports")
	cmd.Flags().Duration("debounce", 0, "How long a file must sit unchanged before ingestion")

	return cmd
}

func printWatchEvent(ev watch.Event) {
	name := filepath.Base(ev.Path)
	switch ev.Kind {
	case watch.EventIngested:
		fmt.Printf("  [OK]   %-28s %s  %d measurement(s), %d flagged\n",
			name, ev.ReportID, ev.Measurements, ev.Flagged)
	case watch.EventDuplicate:
		fmt.Printf("  [SKIP] %-28s already in journal as %s\n", name, ev.ReportID)
	case watch.EventFailed:
		if ev.Path == "" {
			fmt.Printf("  [FAIL] %s\n", ev.Error)
			return
		}
		fmt.Printf("  [FAIL] %-28s %s\n", name, ev.Error)
	}
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the journal over HTTP",
		Long: `Run the HTTP API: report listing and review, per-key series, chart
pages, and a websocket feed of live ingest events when the inbox watcher
is enabled with --watch.

Example:
  labtrail serve
  labtrail serve --listen :9000 --watch`,
		RunE: func(cmd *cobra.Command, args []string) error {
			listen, _ := cmd.Flags().GetString("listen")
			watchInbox, _ := cmd.Flags().GetBool("watch")

			if listen == "" {
				listen = viper.GetString("listen")
			}
			if listen == "" {
				listen = ":8080"
			}

			j, err := journal.OpenOrInit(journalPath(cmd), parserFromConfig())
			if err != nil {
				return fmt.Errorf("failed to open journal: %w", err)
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				<-sigCh
				fmt.Fprintln(os.Stderr, "\nShutting down...")
				cancel()
			}()

			var events <-chan watch.Event
			if watchInbox {
				inbox := viper.GetString("inbox")
				if inbox == "" {
					return fmt.Errorf("--watch needs 'inbox' set in the config")
				}
				loc, err := locationFromConfig()
				if err != nil {
					return err
				}
				w, err := watch.New(j, watch.Config{
					Inbox:    inbox,
					Source:   viper.GetString("source"),
					Location: loc,
				})
				if err != nil {
					return err
				}
				swept, err := w.Scan()
				if err != nil {
					return err
				}
				for _, ev := range swept {
					printWatchEvent(ev)
				}
				events = w.Events()
				go w.Start(ctx)
				fmt.Printf("Watching %s\n", inbox)
			}

			srv := server.New(j, events, listen)
			fmt.Printf("Serving on %s\n", listen)
			return srv.Start(ctx)
		},
	}

	addJournalFlag(cmd)
	cmd.Flags().String("listen", "", "Listen address (default: config listen or :8080)")
	cmd.Flags().Bool("watch", false, "Also monitor the inbox and stream ingest events")

	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the labtrail version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("labtrail %s\n", version)
		},
	}
}

func truncateString(inputStr string, maxLength int) string {
	if len(inputStr) <= maxLength {
		return inputStr
	}
	return inputStr[:maxLength-3] + "..."
}
