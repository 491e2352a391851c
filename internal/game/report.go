// internal/game/report.go
package game

import (
	"strconv"
	"strings"

	"github.com/jason-s-yu/trivia/internal/auth"
)

const (
	reportFieldSep = ";"
	reportRowSep   = "\n"

	reportTeamHeader     = "Team"
	reportTotalHeader    = "Total"
	reportRoundHeader    = "Round "
	reportQuestionHeader = "Question "
)

// DelimitedTextReport serializes table for export.
//
// The header is "Team;Total" followed, per round, by "Round N" and one "Question M"
// column per question. Each body row is name, total, then per round the round sum
// followed by that round's question values. The header is always followed by a line
// break, even when the table is empty.
func (g *Game) DelimitedTextReport(table ScoreTable) string {
	var b strings.Builder

	header := []string{reportTeamHeader, reportTotalHeader}
	for i, r := range g.Rounds {
		header = append(header, reportRoundHeader+strconv.Itoa(i+1))
		for q := 1; q <= r.QuestionCount; q++ {
			header = append(header, reportQuestionHeader+strconv.Itoa(q))
		}
	}
	b.WriteString(strings.Join(header, reportFieldSep))
	b.WriteString(reportRowSep)

	rows := make([]string, 0, len(table))
	for _, row := range table {
		var total float64
		fields := []string{row.TeamName, ""}
		for i := range g.Rounds {
			var values []float64
			if i < len(row.Scores) {
				values = row.Scores[i]
			}
			roundSum := sumRow(values)
			total += roundSum
			fields = append(fields, formatScore(roundSum))
			for _, v := range values {
				fields = append(fields, formatScore(v))
			}
		}
		fields[1] = formatScore(total)
		rows = append(rows, strings.Join(fields, reportFieldSep))
	}
	b.WriteString(strings.Join(rows, reportRowSep))

	return b.String()
}

// ReportFor renders the report of the table the caller is allowed to see.
func (g *Game) ReportFor(c auth.Claims) (string, error) {
	table, err := g.TableFor(c)
	if err != nil {
		return "", err
	}
	return g.DelimitedTextReport(table), nil
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
