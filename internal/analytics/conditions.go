package analytics

import (
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
)

// Columns maps filter fields onto alias-qualified columns. An empty name drops
// the matching filter field for that table.
type Columns struct {
	Business     string
	Branch       string
	Date         string
	DeliveryType string
	Platform     string
	Category     string
	Menu         string
	// OrderID enables category/menu matching through order_items when the
	// table has no direct category/menu column.
	OrderID string
}

var (
	orderColumns = Columns{
		Business:     "o.business_id",
		Branch:       "o.branch_id",
		Date:         "o.created_at",
		DeliveryType: "o.delivery_type",
		Platform:     "o.order_source",
		OrderID:      "o.id",
	}
	itemColumns = Columns{
		Business: "i.business_id",
		Category: "i.category_id",
		Menu:     "i.menu_id",
	}
	reservationColumns = Columns{
		Business: "r.business_id",
		Branch:   "r.branch_id",
		Date:     "r.date",
	}
	messageColumns = Columns{
		Business: "m.business_id",
		Date:     "m.created_at",
	}
)

// Conditions is an ordered predicate list with positional arguments.
type Conditions struct {
	Fragments []string
	Args      []any
}

// Add appends a fragment written with "?" placeholders, renumbering them as $n.
func (c *Conditions) Add(fragment string, args ...any) {
	var b strings.Builder
	next := len(c.Args)
	for _, r := range fragment {
		if r == '?' {
			next++
			b.WriteString("$")
			b.WriteString(strconv.Itoa(next))
			continue
		}
		b.WriteRune(r)
	}
	c.Fragments = append(c.Fragments, b.String())
	c.Args = append(c.Args, args...)
}

// Arg appends a bare argument and returns its placeholder, for limit/offset clauses.
func (c *Conditions) Arg(value any) string {
	c.Args = append(c.Args, value)
	return "$" + strconv.Itoa(len(c.Args))
}

func (c Conditions) Where() string {
	if len(c.Fragments) == 0 {
		return "true"
	}
	return strings.Join(c.Fragments, " and ")
}

func (c Conditions) Clone() Conditions {
	return Conditions{
		Fragments: append([]string(nil), c.Fragments...),
		Args:      append([]any(nil), c.Args...),
	}
}

// BuildConditions translates f into predicates. Fragment order is fixed:
// business, branch, start, end, delivery type, platform, category, menu.
func BuildConditions(f Filter, cols Columns) Conditions {
	var c Conditions
	if cols.Business != "" {
		c.Add(cols.Business+" = ?", f.BusinessID)
	}
	if f.BranchID != "" && cols.Branch != "" {
		c.Add(cols.Branch+" = ?", f.BranchID)
	}
	if f.StartDate != nil && cols.Date != "" {
		c.Add(cols.Date+" >= ?", *f.StartDate)
	}
	if f.EndDate != nil && cols.Date != "" {
		c.Add(cols.Date+" <= ?", f.PaddedEnd())
	}
	if f.DeliveryType != "" && cols.DeliveryType != "" {
		c.Add(cols.DeliveryType+" = ?", f.DeliveryType)
	}
	if f.Platform != "" && cols.Platform != "" {
		c.Add(cols.Platform+" = ?", f.Platform)
	}
	if f.CategoryID != "" {
		switch {
		case cols.Category != "":
			c.Add(cols.Category+" = ?", f.CategoryID)
		case cols.OrderID != "":
			c.Add(itemExists(cols.OrderID, "category_id"), f.CategoryID)
		}
	}
	if f.MenuID != "" {
		switch {
		case cols.Menu != "":
			c.Add(cols.Menu+" = ?", f.MenuID)
		case cols.OrderID != "":
			c.Add(itemExists(cols.OrderID, "menu_id"), f.MenuID)
		}
	}
	return c
}

func itemExists(orderIDColumn, itemColumn string) string {
	return "exists (select 1 from order_items fi join items fit on fit.id = fi.item_id where fi.order_id = " +
		orderIDColumn + " and fit." + itemColumn + " = ?)"
}

// DocFields names the document fields used by DocumentQuery.
type DocFields struct {
	Business     string
	Branch       string
	Date         string
	DeliveryType string
	Platform     string
	Category     string
	Menu         string
}

var (
	orderLogFields = DocFields{
		Business:     "businessId",
		Branch:       "branchId",
		Date:         "createdAt",
		DeliveryType: "deliveryType",
		Platform:     "platform",
		Category:     "items.categoryId",
		Menu:         "items.menuId",
	}
	messageLogFields = DocFields{
		Business: "businessId",
		Date:     "createdAt",
	}
)

// DocumentQuery is the document-store counterpart of BuildConditions.
func DocumentQuery(f Filter, fields DocFields) bson.M {
	q := bson.M{}
	if fields.Business != "" {
		q[fields.Business] = f.BusinessID
	}
	if f.BranchID != "" && fields.Branch != "" {
		q[fields.Branch] = f.BranchID
	}
	if fields.Date != "" && (f.StartDate != nil || f.EndDate != nil) {
		r := bson.M{}
		if f.StartDate != nil {
			r["$gte"] = *f.StartDate
		}
		if f.EndDate != nil {
			r["$lte"] = f.PaddedEnd()
		}
		q[fields.Date] = r
	}
	if f.DeliveryType != "" && fields.DeliveryType != "" {
		q[fields.DeliveryType] = f.DeliveryType
	}
	if f.Platform != "" && fields.Platform != "" {
		q[fields.Platform] = f.Platform
	}
	if f.CategoryID != "" && fields.Category != "" {
		q[fields.Category] = f.CategoryID
	}
	if f.MenuID != "" && fields.Menu != "" {
		q[fields.Menu] = f.MenuID
	}
	return q
}
