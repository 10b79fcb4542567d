// Package i18n holds the user-facing strings of the application. English is
// the default; Arabic reproduces the labels of the first release.
package i18n

import (
	"errors"
	"strings"

	"expenses/internal/core"
)

type Locale string

const (
	English Locale = "en"
	Arabic  Locale = "ar"
)

// Messages is the full set of strings rendered for one locale.
type Messages struct {
	Locale Locale
	Dir    string // text direction, "ltr" or "rtl"

	Title         string
	ErrorPrefix   string
	Dismiss       string
	AddHeading    string
	EditHeading   string
	Description   string
	DescriptionEg string
	Amount        string
	AmountEg      string
	Date          string
	Category      string
	Uncategorized string
	NoCategory    string // short table marker
	Cancel        string
	AddButton     string
	UpdateButton  string
	ListHeading   string
	Total         string
	Actions       string
	Edit          string
	Delete        string
	EmptyState    string
	ConfirmDelete string
	FilterFrom    string
	FilterTo      string
	Filter        string
	ClearFilter   string
	ExportCSV     string

	LoadExpensesFailed   string
	LoadCategoriesFailed string
	AddFailed            string
	UpdateFailed         string
	DeleteFailed         string
	ExportFailed         string
	NothingToExport      string
	WriteInFlight        string
	InvalidFilter        string

	DescriptionRequired string
	DescriptionTooLong  string
	AmountInvalid       string
	DateRequired        string
	CategoryInvalid     string

	// CSVHeader labels the columns id, description, amount, category, date.
	CSVHeader [5]string
}

var english = Messages{
	Locale: English,
	Dir:    "ltr",

	Title:         "Expense Tracker",
	ErrorPrefix:   "Error:",
	Dismiss:       "Dismiss",
	AddHeading:    "Add expense",
	EditHeading:   "Edit expense",
	Description:   "Description",
	DescriptionEg: "e.g. groceries",
	Amount:        "Amount",
	AmountEg:      "e.g. 50.25",
	Date:          "Date",
	Category:      "Category",
	Uncategorized: "uncategorized",
	NoCategory:    "n/a",
	Cancel:        "Cancel",
	AddButton:     "Add expense",
	UpdateButton:  "Update expense",
	ListHeading:   "Expenses",
	Total:         "Total:",
	Actions:       "Actions",
	Edit:          "Edit expense",
	Delete:        "Delete expense",
	EmptyState:    "No expenses recorded yet.",
	ConfirmDelete: "Are you sure you want to delete this expense?",
	FilterFrom:    "From",
	FilterTo:      "To",
	Filter:        "Filter",
	ClearFilter:   "Clear",
	ExportCSV:     "Export CSV",

	LoadExpensesFailed:   "Failed to load expenses.",
	LoadCategoriesFailed: "Failed to load categories.",
	AddFailed:            "Failed to add expense.",
	UpdateFailed:         "Failed to update expense.",
	DeleteFailed:         "Failed to delete expense.",
	ExportFailed:         "Failed to export expenses.",
	NothingToExport:      "There are no expenses to export.",
	WriteInFlight:        "Another change is still being saved.",
	InvalidFilter:        "The filter dates are not valid.",

	DescriptionRequired: "Description is required.",
	DescriptionTooLong:  "Description is too long.",
	AmountInvalid:       "Amount must be a number greater than zero.",
	DateRequired:        "Date is required.",
	CategoryInvalid:     "Unknown category.",

	CSVHeader: [5]string{"id", "description", "amount", "category", "date"},
}

var arabic = Messages{
	Locale: Arabic,
	Dir:    "rtl",

	Title:         "متتبع المصروفات",
	ErrorPrefix:   "خطأ:",
	Dismiss:       "إغلاق",
	AddHeading:    "إضافة مصروف",
	EditHeading:   "تعديل مصروف",
	Description:   "الوصف",
	DescriptionEg: "مثال: مشتريات البقالة",
	Amount:        "المبلغ",
	AmountEg:      "مثال: 50.25",
	Date:          "التاريخ",
	Category:      "الفئة",
	Uncategorized: "غير مصنف",
	NoCategory:    "غ/م",
	Cancel:        "إلغاء",
	AddButton:     "إضافة مصروف",
	UpdateButton:  "تحديث المصروف",
	ListHeading:   "قائمة المصروفات",
	Total:         "الإجمالي:",
	Actions:       "إجراءات",
	Edit:          "تعديل المصروف",
	Delete:        "حذف المصروف",
	EmptyState:    "لم يتم تسجيل أي مصروفات بعد.",
	ConfirmDelete: "هل أنت متأكد من حذف هذا المصروف؟",
	FilterFrom:    "من",
	FilterTo:      "إلى",
	Filter:        "تصفية",
	ClearFilter:   "مسح",
	ExportCSV:     "تصدير CSV",

	LoadExpensesFailed:   "فشل تحميل المصروفات.",
	LoadCategoriesFailed: "فشل تحميل الفئات.",
	AddFailed:            "فشل إضافة المصروف.",
	UpdateFailed:         "فشل تحديث المصروف.",
	DeleteFailed:         "فشل حذف المصروف.",
	ExportFailed:         "فشل تصدير المصروفات.",
	NothingToExport:      "لا توجد مصروفات للتصدير.",
	WriteInFlight:        "لا يزال هناك تغيير قيد الحفظ.",
	InvalidFilter:        "تواريخ التصفية غير صالحة.",

	DescriptionRequired: "الوصف مطلوب.",
	DescriptionTooLong:  "الوصف طويل جداً.",
	AmountInvalid:       "المبلغ المدخل يجب أن يكون رقماً صحيحاً.",
	DateRequired:        "التاريخ مطلوب.",
	CategoryInvalid:     "فئة غير معروفة.",

	CSVHeader: [5]string{"المعرف", "الوصف", "المبلغ", "الفئة", "التاريخ"},
}

// ParseLocale maps a tag such as "ar", "ar-SA" or "en_US" to a supported
// locale. Anything unknown is English.
func ParseLocale(tag string) Locale {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if i := strings.IndexAny(tag, "-_"); i >= 0 {
		tag = tag[:i]
	}
	if Locale(tag) == Arabic {
		return Arabic
	}
	return English
}

// For returns the catalog of l. The returned value is shared and must not be
// modified.
func For(l Locale) *Messages {
	if l == Arabic {
		return &arabic
	}
	return &english
}

// FieldError localizes a validation failure of a single form field.
func (m *Messages) FieldError(err error) string {
	switch {
	case errors.Is(err, core.ErrEmptyDescription):
		return m.DescriptionRequired
	case errors.Is(err, core.ErrDescriptionTooLong):
		return m.DescriptionTooLong
	case errors.Is(err, core.ErrInvalidAmount):
		return m.AmountInvalid
	case errors.Is(err, core.ErrInvalidDate):
		return m.DateRequired
	case errors.Is(err, core.ErrInvalidCategory):
		return m.CategoryInvalid
	case err == nil:
		return ""
	}
	return err.Error()
}

// FieldErrors localizes every field of a validation error, keyed by field
// name.
func (m *Messages) FieldErrors(verr *core.ValidationError) map[string]string {
	if verr.Empty() {
		return nil
	}
	out := make(map[string]string, len(verr.Fields))
	for field, err := range verr.Fields {
		out[field] = m.FieldError(err)
	}
	return out
}

// CategoryLabel is the category name or the localized "uncategorized".
func (m *Messages) CategoryLabel(c *core.Category) string {
	if c == nil {
		return m.Uncategorized
	}
	return c.Name
}
