package sheets

import (
	"fmt"

	"github.com/dvloznov/sheetsync/internal/domain"
	"google.golang.org/api/sheets/v4"
)

// DatetimePattern is the number format applied to the datetime column.
const DatetimePattern = "yyyy-mm-dd hh:mm:ss"

// FormattingRequests builds the batch update that formats a written table:
// datetime number format, bold header row, frozen first row.
func FormattingRequests(sheetID int64, header []string) ([]*sheets.Request, error) {
	col := -1
	for i, name := range header {
		if name == domain.ColDatetime {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, fmt.Errorf("FormattingRequests: header has no %q column", domain.ColDatetime)
	}

	// SheetId 0 is the first tab and must still be sent.
	datetimeFormat := &sheets.Request{
		RepeatCell: &sheets.RepeatCellRequest{
			Range: &sheets.GridRange{
				SheetId:          sheetID,
				StartColumnIndex: int64(col),
				EndColumnIndex:   int64(col + 1),
				ForceSendFields:  []string{"SheetId", "StartColumnIndex"},
			},
			Cell: &sheets.CellData{
				UserEnteredFormat: &sheets.CellFormat{
					NumberFormat: &sheets.NumberFormat{
						Type:    "DATE",
						Pattern: DatetimePattern,
					},
				},
			},
			Fields: "userEnteredFormat.numberFormat",
		},
	}

	headerFormat := &sheets.Request{
		RepeatCell: &sheets.RepeatCellRequest{
			Range: &sheets.GridRange{
				SheetId:         sheetID,
				StartRowIndex:   0,
				EndRowIndex:     1,
				ForceSendFields: []string{"SheetId", "StartRowIndex"},
			},
			Cell: &sheets.CellData{
				UserEnteredFormat: &sheets.CellFormat{
					TextFormat: &sheets.TextFormat{Bold: true},
				},
			},
			Fields: "userEnteredFormat.textFormat",
		},
	}

	freezeHeader := &sheets.Request{
		UpdateSheetProperties: &sheets.UpdateSheetPropertiesRequest{
			Properties: &sheets.SheetProperties{
				SheetId:         sheetID,
				GridProperties:  &sheets.GridProperties{FrozenRowCount: 1},
				ForceSendFields: []string{"SheetId"},
			},
			Fields: "gridProperties.frozenRowCount",
		},
	}

	return []*sheets.Request{datetimeFormat, headerFormat, freezeHeader}, nil
}
