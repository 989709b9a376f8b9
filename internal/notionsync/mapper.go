package notionsync

import (
	"github.com/dvloznov/sheetsync/internal/domain"
	"github.com/jomei/notionapi"
)

// Property names of the mirror database.
const (
	PropName           = "Name"
	PropTransactionID  = "Transaction ID"
	PropDate           = "Date"
	PropAmount         = "Amount"
	PropCurrency       = "Currency"
	PropPending        = "Pending"
	PropAccount        = "Account"
	PropInstitution    = "Institution"
	PropCategory       = "Category"
	PropMerchant       = "Merchant"
	PropPaymentChannel = "Payment Channel"
)

func richText(content string) []notionapi.RichText {
	return []notionapi.RichText{
		{
			Type: notionapi.ObjectTypeText,
			Text: &notionapi.Text{
				Content: content,
			},
		},
	}
}

// RecordToNotionProperties converts a sheet record to Notion page properties.
// Empty optional fields are left out so Notion keeps them blank.
func RecordToNotionProperties(rec *domain.TransactionRecord) notionapi.Properties {
	amount, _ := rec.Amount.Float64()

	props := notionapi.Properties{
		PropName: notionapi.TitleProperty{
			Title: richText(rec.Name),
		},
		PropTransactionID: notionapi.RichTextProperty{
			RichText: richText(rec.TransactionID),
		},
		PropAmount: notionapi.NumberProperty{
			Number: amount,
		},
		PropPending: notionapi.CheckboxProperty{
			Checkbox: rec.Pending,
		},
	}

	if !rec.Datetime.IsZero() {
		d := notionapi.Date(rec.Datetime)
		props[PropDate] = notionapi.DateProperty{
			Date: &notionapi.DateObject{Start: &d},
		}
	} else if !rec.Date.IsZero() {
		d := notionapi.Date(domain.MidnightOf(rec.Date))
		props[PropDate] = notionapi.DateProperty{
			Date: &notionapi.DateObject{Start: &d},
		}
	}

	currency := rec.ISOCurrencyCode
	if currency == "" {
		currency = rec.UnofficialCurrencyCode
	}
	if currency != "" {
		props[PropCurrency] = notionapi.SelectProperty{
			Select: notionapi.Option{Name: currency},
		}
	}

	if rec.AccountName != "" {
		props[PropAccount] = notionapi.RichTextProperty{
			RichText: richText(rec.AccountName),
		}
	}

	if rec.InstitutionName != "" {
		props[PropInstitution] = notionapi.SelectProperty{
			Select: notionapi.Option{Name: rec.InstitutionName},
		}
	}

	// Prefer the personal finance category, fall back to the legacy hierarchy.
	category := rec.PersonalFinanceCategoryPrimary
	if category == "" {
		category = rec.Category1
	}
	if category != "" {
		props[PropCategory] = notionapi.SelectProperty{
			Select: notionapi.Option{Name: category},
		}
	}

	if rec.MerchantName != "" {
		props[PropMerchant] = notionapi.RichTextProperty{
			RichText: richText(rec.MerchantName),
		}
	}

	if rec.PaymentChannel != "" {
		props[PropPaymentChannel] = notionapi.SelectProperty{
			Select: notionapi.Option{Name: rec.PaymentChannel},
		}
	}

	return props
}

// extractTransactionID reads the Transaction ID property of a page.
// Returns empty string if not found.
func extractTransactionID(page notionapi.Page) string {
	prop, ok := page.Properties[PropTransactionID]
	if !ok {
		return ""
	}
	switch p := prop.(type) {
	case *notionapi.RichTextProperty:
		return plainText(p.RichText)
	case notionapi.RichTextProperty:
		return plainText(p.RichText)
	}
	return ""
}

func plainText(rt []notionapi.RichText) string {
	if len(rt) == 0 {
		return ""
	}
	if rt[0].PlainText != "" {
		return rt[0].PlainText
	}
	if rt[0].Text != nil {
		return rt[0].Text.Content
	}
	return ""
}
