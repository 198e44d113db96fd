package ranking

import (
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"

	"cv-ranker/internal/scoring"
	"cv-ranker/internal/types"
)

const reportRule = 80

// WriteReport 输出逐个候选人的得分明细与解释
func WriteReport(w io.Writer, result *types.RankedResult) error {
	rule := strings.Repeat("=", reportRule)
	sep := strings.Repeat("-", reportRule)

	var b strings.Builder
	fmt.Fprintln(&b, rule)
	fmt.Fprintln(&b, "CV RANKING RESULTS")
	fmt.Fprintln(&b, rule)
	fmt.Fprintln(&b)
	fmt.Fprintf(&b, "Excellent: %d | Good: %d | Fair: %d\n", result.ExcellentCount, result.GoodCount, result.FairCount)
	fmt.Fprintln(&b)
	fmt.Fprintln(&b, sep)
	fmt.Fprintln(&b)
	for _, c := range result.Candidates {
		fmt.Fprintf(&b, "Rank #%d: %s\n", c.Rank, c.CandidateName)
		fmt.Fprintf(&b, "Total Score: %.2f/100 (%s)\n", c.TotalScore, c.Bucket)
		fmt.Fprintln(&b)
		fmt.Fprintln(&b, "Score Breakdown:")
		fmt.Fprintf(&b, "  Experience Quality:         %.2f/%.0f\n", c.Scores.Experience, scoring.MaxExperience)
		fmt.Fprintf(&b, "  Technical Skills:           %.2f/%.0f\n", c.Scores.TechnicalSkills, scoring.MaxTechnical)
		fmt.Fprintf(&b, "  Projects & Impact:          %.2f/%.0f\n", c.Scores.Projects, scoring.MaxProjects)
		fmt.Fprintf(&b, "  Education & Certifications: %.2f/%.0f\n", c.Scores.Education, scoring.MaxEducation)
		fmt.Fprintf(&b, "  Signal & Consistency:       %.2f/%.0f\n", c.Scores.Signal, scoring.MaxSignal)
		fmt.Fprintln(&b)
		fmt.Fprintf(&b, "Explanation: %s\n", c.Explanation)
		if len(c.Details.RedFlags) > 0 {
			fmt.Fprintf(&b, "Red flags: %s\n", strings.Join(c.Details.RedFlags, "; "))
		}
		fmt.Fprintln(&b)
		fmt.Fprintln(&b, sep)
		fmt.Fprintln(&b)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// WriteTable 输出排名汇总表
func WriteTable(w io.Writer, result *types.RankedResult) error {
	table := tablewriter.NewWriter(w)
	table.Header("Rank", "Candidate", "Total", "Bucket", "Exp", "Tech", "Proj", "Edu", "Signal")
	for _, c := range result.Candidates {
		if err := table.Append(
			fmt.Sprintf("%d", c.Rank),
			c.CandidateName,
			fmt.Sprintf("%.2f", c.TotalScore),
			string(c.Bucket),
			fmt.Sprintf("%.2f", c.Scores.Experience),
			fmt.Sprintf("%.2f", c.Scores.TechnicalSkills),
			fmt.Sprintf("%.2f", c.Scores.Projects),
			fmt.Sprintf("%.2f", c.Scores.Education),
			fmt.Sprintf("%.2f", c.Scores.Signal),
		); err != nil {
			return fmt.Errorf("写入排名表失败: %w", err)
		}
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("渲染排名表失败: %w", err)
	}
	return nil
}
