package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var (
	headline = color.New(color.FgCyan, color.Bold)
	success  = color.New(color.FgGreen)
	warning  = color.New(color.FgYellow)
)

func newRegisterCmd(client *apiClient) *cobra.Command {
	var (
		filename  string
		role      string
		pageCount int
		pdfPath   string
	)

	cmd := &cobra.Command{
		Use:   "register <case-id>",
		Short: "Register a document with a case",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var out struct {
				DocumentID string `json:"documentId"`
			}
			err := client.postJSON("/api/v1/cases/"+args[0]+"/documents", map[string]interface{}{
				"filename":  filename,
				"role":      role,
				"pageCount": pageCount,
				"pdfPath":   pdfPath,
			}, &out)
			if err != nil {
				return err
			}
			success.Printf("Registered %s (%s, %d pages): %s\n", filename, role, pageCount, out.DocumentID)
			return nil
		},
	}

	cmd.Flags().StringVar(&filename, "filename", "", "document filename")
	cmd.Flags().StringVar(&role, "role", "source", "document role: source or target")
	cmd.Flags().IntVar(&pageCount, "pages", 0, "page count")
	cmd.Flags().StringVar(&pdfPath, "pdf", "", "path to the PDF on the server")
	_ = cmd.MarkFlagRequired("filename")
	_ = cmd.MarkFlagRequired("pages")
	return cmd
}

type manifestPayload struct {
	Total             int            `json:"total"`
	Links             int            `json:"links"`
	Dropped           int            `json:"dropped"`
	NeedsReview       int            `json:"needsReview"`
	ByType            map[string]int `json:"byType"`
	MinConfidence     float64        `json:"minConfidence"`
	Seed              int64          `json:"seed"`
	DeterministicHash string         `json:"deterministicHash"`
}

func newProcessCmd(client *apiClient) *cobra.Command {
	return &cobra.Command{
		Use:   "process <case-id>",
		Short: "Run OCR, detection, and linking for a case",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sp := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
			sp.Suffix = " Processing case (OCR can take a while)..."
			sp.Start()

			var m manifestPayload
			err := client.postJSON("/api/v1/cases/"+args[0]+"/process", nil, &m)
			sp.Stop()
			if err != nil {
				return err
			}

			printManifest(&m)
			return nil
		},
	}
}

func printManifest(m *manifestPayload) {
	headline.Println("Linking complete")
	fmt.Printf("  References found: %d\n", m.Total)
	success.Printf("  Linked:           %d\n", m.Links)
	if m.Dropped > 0 {
		warning.Printf("  Dropped:          %d (%d flagged for review)\n", m.Dropped, m.NeedsReview)
	} else {
		fmt.Printf("  Dropped:          0\n")
	}
	if len(m.ByType) > 0 {
		types := make([]string, 0, len(m.ByType))
		for t := range m.ByType {
			types = append(types, t)
		}
		sort.Strings(types)
		fmt.Println("  By type:")
		for _, t := range types {
			fmt.Printf("    %-17s %d\n", t, m.ByType[t])
		}
	}
	fmt.Printf("  Threshold: %.2f  Seed: %d\n", m.MinConfidence, m.Seed)
	if len(m.DeterministicHash) >= 16 {
		fmt.Printf("  Run hash:  %s\n", m.DeterministicHash[:16])
	}
}

type linkRow struct {
	RefType    string  `json:"RefType"`
	RefValue   string  `json:"RefValue"`
	SourceDoc  string  `json:"SourceDocID"`
	SourcePage int     `json:"SourcePage"`
	TargetPage int     `json:"TargetPage"`
	Status     string  `json:"Status"`
	Confidence float64 `json:"Confidence"`
}

func newLinksCmd(client *apiClient) *cobra.Command {
	return &cobra.Command{
		Use:   "links <case-id>",
		Short: "List the persisted links for a case",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var out struct {
				Links []linkRow `json:"links"`
				Count int       `json:"count"`
			}
			if err := client.getJSON("/api/v1/cases/"+args[0]+"/links", &out); err != nil {
				return err
			}
			if out.Count == 0 {
				warning.Println("No links for this case yet.")
				return nil
			}
			headline.Printf("%-16s %-10s %-6s %-6s %-9s %s\n", "TYPE", "VALUE", "SRC PG", "DST PG", "STATUS", "CONF")
			for _, l := range out.Links {
				fmt.Printf("%-16s %-10s %-6d %-6d %-9s %.2f\n",
					l.RefType, l.RefValue, l.SourcePage, l.TargetPage, l.Status, l.Confidence)
			}
			return nil
		},
	}
}

func newOverrideCmd(client *apiClient) *cobra.Command {
	var (
		tab      int
		refType  string
		refValue string
		newPage  int
	)

	cmd := &cobra.Command{
		Use:   "override <case-id>",
		Short: "Correct one link's destination page",
		Long: `Override rewrites the destination of a single link identified by a tab
number or a (type, value) pair. Nothing else is recomputed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]interface{}{"newPage": newPage}
			if cmd.Flags().Changed("tab") {
				body["tabNumber"] = tab
			} else {
				body["refType"] = refType
				body["refValue"] = refValue
			}

			var out struct {
				RefType     string `json:"refType"`
				RefValue    string `json:"refValue"`
				NewPage     int    `json:"newPage"`
				RowsChanged int    `json:"rowsChanged"`
			}
			if err := client.postJSON("/api/v1/cases/"+args[0]+"/links/override", body, &out); err != nil {
				return err
			}
			success.Printf("Overrode %s %s to page %d (%d row(s))\n",
				out.RefType, out.RefValue, out.NewPage, out.RowsChanged)
			return nil
		},
	}

	cmd.Flags().IntVar(&tab, "tab", 0, "tab number identifying the link")
	cmd.Flags().StringVar(&refType, "type", "", "reference type identifying the link")
	cmd.Flags().StringVar(&refValue, "value", "", "reference value identifying the link")
	cmd.Flags().IntVar(&newPage, "page", 0, "corrected destination page")
	_ = cmd.MarkFlagRequired("page")
	return cmd
}

func newStatusCmd(client *apiClient) *cobra.Command {
	return &cobra.Command{
		Use:   "status <case-id>",
		Short: "Show review status counts for a case",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var out struct {
				ByStatus map[string]int `json:"byStatus"`
			}
			if err := client.getJSON("/api/v1/cases/"+args[0]+"/status", &out); err != nil {
				return err
			}
			headline.Println("Review status")
			statuses := make([]string, 0, len(out.ByStatus))
			for s := range out.ByStatus {
				statuses = append(statuses, s)
			}
			sort.Strings(statuses)
			for _, s := range statuses {
				fmt.Printf("  %-9s %d\n", s, out.ByStatus[s])
			}
			return nil
		},
	}
}

func newManifestCmd(client *apiClient) *cobra.Command {
	var (
		asCSV  bool
		output string
	)

	cmd := &cobra.Command{
		Use:   "manifest <case-id>",
		Short: "Download the run manifest or candidate map",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/v1/cases/" + args[0] + "/manifest.json"
			if asCSV {
				path = "/api/v1/cases/" + args[0] + "/manifest.csv"
			}

			body, length, err := client.getRaw(path)
			if err != nil {
				return err
			}
			defer body.Close()

			var dst io.Writer = os.Stdout
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create %s: %w", output, err)
				}
				defer f.Close()

				bar := progressbar.DefaultBytes(length, "downloading")
				dst = io.MultiWriter(f, bar)
			}

			if _, err := io.Copy(dst, body); err != nil {
				return fmt.Errorf("download manifest: %w", err)
			}
			if output != "" {
				fmt.Println()
				success.Printf("Saved to %s\n", output)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asCSV, "csv", false, "download the candidate map CSV instead of JSON")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")
	return cmd
}
