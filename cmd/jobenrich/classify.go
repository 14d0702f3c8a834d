package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobenrich/internal/classifier"
	"github.com/amishk599/jobenrich/internal/model"
	"github.com/amishk599/jobenrich/internal/scorer"
	"github.com/amishk599/jobenrich/internal/taxonomy"
)

var (
	classifyTitle       string
	classifyDescription string
	classifyDescFile    string
	classifyCompany     string
	classifyLocation    string
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Classify and score ad-hoc job text without touching the store",
	Long:  "Useful for tuning taxonomy tables: prints the role, languages and score breakdown the enrich command would compute.",
	RunE:  runClassify,
}

func init() {
	f := classifyCmd.Flags()
	f.StringVar(&classifyTitle, "title", "", "job title")
	f.StringVar(&classifyDescription, "description", "", "job description text")
	f.StringVar(&classifyDescFile, "description-file", "", "read the description from a file (- for stdin)")
	f.StringVar(&classifyCompany, "company", "", "company name")
	f.StringVar(&classifyLocation, "location", "", "location")
	rootCmd.AddCommand(classifyCmd)
}

func runClassify(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	desc := classifyDescription
	if classifyDescFile != "" {
		var data []byte
		if classifyDescFile == "-" {
			data, err = io.ReadAll(os.Stdin)
		} else {
			data, err = os.ReadFile(classifyDescFile)
		}
		if err != nil {
			return fmt.Errorf("reading description: %w", err)
		}
		desc = string(data)
	}

	tax, err := taxonomy.Load(cfg.Enrich.TaxonomyPath)
	if err != nil {
		return err
	}

	job := model.Job{
		Title:       classifyTitle,
		Description: desc,
		Company:     classifyCompany,
		Location:    classifyLocation,
	}
	fmt.Print(classifyReport(classifier.New(tax), scorer.New(cfg.Enrich.MinDescriptionLength), job))
	return nil
}

func classifyReport(cls *classifier.Classifier, sc *scorer.Scorer, job model.Job) string {
	c := cls.Classify(job.Title, job.Description)
	job.RoleFunction = c.RoleFunction
	job.LanguageRequirements = c.LanguageRequirements

	var b strings.Builder
	langs := "–"
	if len(c.LanguageRequirements) > 0 {
		langs = strings.Join(c.LanguageRequirements, ", ")
	}
	fmt.Fprintf(&b, "%-12s %s\n", "role", c.RoleFunction)
	fmt.Fprintf(&b, "%-12s %s\n", "languages", langs)
	fmt.Fprintf(&b, "%-12s %d/100\n", "quality", sc.Score(job))
	b.WriteString(strings.Repeat("─", 30) + "\n")
	for _, cr := range sc.Breakdown(job) {
		mark := "✗"
		if cr.Met {
			mark = "✓"
		}
		fmt.Fprintf(&b, "  %s %-15s %3d\n", mark, cr.Name, cr.Weight)
	}
	return b.String()
}
