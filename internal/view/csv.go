package view

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"expenses/internal/core"
	"expenses/internal/i18n"
)

// CSVFilename is the name offered for downloads.
const CSVFilename = "expenses.csv"

const bom = "\uFEFF"

// WriteCSV writes expenses as UTF-8 CSV with a byte-order mark and a header
// row. Description and category are always quoted.
func WriteCSV(w io.Writer, expenses []core.Expense, msgs *i18n.Messages) error {
	bw := bufio.NewWriter(w)
	bw.WriteString(bom)
	bw.WriteString(strings.Join(msgs.CSVHeader[:], ","))
	bw.WriteByte('\n')
	for _, e := range expenses {
		bw.WriteString(strconv.FormatInt(e.ID, 10))
		bw.WriteByte(',')
		bw.WriteString(quote(e.Description))
		bw.WriteByte(',')
		bw.WriteString(e.Amount.String())
		bw.WriteByte(',')
		bw.WriteString(quote(msgs.CategoryLabel(e.Category)))
		bw.WriteByte(',')
		bw.WriteString(e.Date.String())
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
