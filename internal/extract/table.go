// File: internal/extract/table.go

// Package extract turns rendered DOM markup into structured data. The
// extractor operates on a parsed document rather than a live page, so it is
// a pure function of DOM → data and can be tested without a browser.
package extract

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/voidhawk9/autoteller/api/schemas"
)

// Table extracts the first element matching rootSelector as a header/row
// structure.
//
// Header discovery: cells of the first <thead> row when a header section
// exists, otherwise the cells of the table's first row. Row discovery:
// <tbody> rows when a body section exists, otherwise every row except the
// first (the first was consumed as the header fallback). Cells beyond the
// discovered headers get synthetic column_<index> names; rows with zero
// cells are skipped entirely.
func Table(doc *goquery.Document, rootSelector string) (*schemas.TableResult, error) {
	root := doc.Find(rootSelector).First()
	if root.Length() == 0 {
		return nil, schemas.NewError(schemas.KindElementNotFound,
			"no element matches table selector %q", rootSelector)
	}

	headers, hasHeaderSection := discoverHeaders(root)

	var rows []map[string]string
	for _, rowSel := range discoverRows(root, hasHeaderSection) {
		row := extractRow(rowSel, headers)
		if row != nil {
			rows = append(rows, row)
		}
	}

	if rows == nil {
		rows = []map[string]string{}
	}
	if headers == nil {
		headers = []string{}
	}

	return &schemas.TableResult{
		Headers:  headers,
		Rows:     rows,
		RowCount: len(rows),
	}, nil
}

// discoverHeaders prefers an explicit <thead> section and falls back to the
// table's first row. The boolean reports which form was found, since row
// discovery must avoid re-consuming a fallback header row.
func discoverHeaders(root *goquery.Selection) ([]string, bool) {
	headerCells := root.Find("thead tr").First().Find("th, td")
	hasHeaderSection := headerCells.Length() > 0
	if !hasHeaderSection {
		headerCells = root.Find("tr").First().Find("th, td")
	}

	var headers []string
	headerCells.Each(func(_ int, cell *goquery.Selection) {
		headers = append(headers, cellText(cell))
	})
	return headers, hasHeaderSection
}

// discoverRows picks the data rows. The HTML parser synthesizes a <tbody>
// around bare <tr> elements, so tbody presence alone cannot distinguish the
// two table shapes; the header-section flag does.
func discoverRows(root *goquery.Selection, hasHeaderSection bool) []*goquery.Selection {
	var rows []*goquery.Selection
	appendRow := func(_ int, row *goquery.Selection) {
		rows = append(rows, row)
	}

	if hasHeaderSection {
		body := root.Find("tbody tr")
		if body.Length() > 0 {
			body.Each(appendRow)
		} else {
			root.Find("tr").Not("thead tr").Each(appendRow)
		}
		return rows
	}

	// Fallback headers came from the first row: every row except that one.
	root.Find("tr").Each(func(i int, row *goquery.Selection) {
		if i > 0 {
			rows = append(rows, row)
		}
	})
	return rows
}

// extractRow maps a row's cells onto header names. When two cells share a
// header name the later cell wins; last-write-wins is the documented
// policy. Returns nil for rows with zero cells.
func extractRow(row *goquery.Selection, headers []string) map[string]string {
	cells := row.Find("th, td")
	if cells.Length() == 0 {
		return nil
	}

	record := make(map[string]string, cells.Length())
	cells.Each(func(i int, cell *goquery.Selection) {
		key := syntheticName(i)
		if i < len(headers) && headers[i] != "" {
			key = headers[i]
		}
		record[key] = cellText(cell)
	})
	return record
}

func syntheticName(index int) string {
	return fmt.Sprintf("column_%d", index)
}

func cellText(cell *goquery.Selection) string {
	return strings.TrimSpace(cell.Text())
}
