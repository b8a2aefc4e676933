package analytics

import (
	"context"
	"reflect"
	"strings"
	"sync"
	"time"

	"bizops-analytics/internal/db"
	"bizops-analytics/internal/docstore"
	"bizops-analytics/internal/schema"

	"go.mongodb.org/mongo-driver/bson"
)

type recordedQuery struct {
	sql  string
	args []any
}

type route struct {
	match string
	rows  []db.Row
	err   error
}

// fakeRelational answers queries by the first registered substring match.
type fakeRelational struct {
	mu      sync.Mutex
	routes  []route
	columns map[string]bool
	tables  map[string]bool
	queries []recordedQuery
}

func newFakeRelational() *fakeRelational {
	return &fakeRelational{columns: map[string]bool{}, tables: map[string]bool{}}
}

func (f *fakeRelational) on(match string, rows ...db.Row) *fakeRelational {
	f.routes = append(f.routes, route{match: match, rows: rows})
	return f
}

func (f *fakeRelational) fail(match string, err error) *fakeRelational {
	f.routes = append(f.routes, route{match: match, err: err})
	return f
}

func (f *fakeRelational) Query(_ context.Context, sql string, args ...any) ([]db.Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, recordedQuery{sql: sql, args: args})
	for _, r := range f.routes {
		if strings.Contains(sql, r.match) {
			return r.rows, r.err
		}
	}
	return nil, nil
}

func (f *fakeRelational) HasColumn(_ context.Context, table, column string) (bool, error) {
	return f.columns[table+"."+column], nil
}

func (f *fakeRelational) HasTable(_ context.Context, table string) (bool, error) {
	return f.tables[table], nil
}

func (f *fakeRelational) queriesMatching(match string) []recordedQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []recordedQuery
	for _, q := range f.queries {
		if strings.Contains(q.sql, match) {
			out = append(out, q)
		}
	}
	return out
}

// fakeDocs is an in-memory document store. err makes every collection unavailable.
type fakeDocs struct {
	mu          sync.Mutex
	collections map[string]*fakeCollection
	err         error
}

func newFakeDocs() *fakeDocs {
	return &fakeDocs{collections: map[string]*fakeCollection{}}
}

func (d *fakeDocs) Collection(_ context.Context, name string) (docstore.Collection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	return d.collection(name), nil
}

func (d *fakeDocs) collection(name string) *fakeCollection {
	c := d.collections[name]
	if c == nil {
		c = &fakeCollection{}
		d.collections[name] = c
	}
	return c
}

func (d *fakeDocs) insert(name string, docs ...bson.M) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c := d.collection(name)
	c.docs = append(c.docs, docs...)
}

type fakeCollection struct {
	mu      sync.Mutex
	docs    []bson.M
	err     error
	filters []bson.M
}

func (c *fakeCollection) matching(filter bson.M) ([]bson.M, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filters = append(c.filters, filter)
	if c.err != nil {
		return nil, c.err
	}
	var out []bson.M
	for _, doc := range c.docs {
		if matches(doc, filter) {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (c *fakeCollection) Find(_ context.Context, filter bson.M) ([]bson.M, error) {
	return c.matching(filter)
}

func (c *fakeCollection) FindOne(_ context.Context, filter bson.M) (bson.M, error) {
	docs, err := c.matching(filter)
	if err != nil || len(docs) == 0 {
		return nil, err
	}
	return docs[0], nil
}

func (c *fakeCollection) CountDocuments(_ context.Context, filter bson.M) (int64, error) {
	docs, err := c.matching(filter)
	return int64(len(docs)), err
}

func (c *fakeCollection) Distinct(_ context.Context, field string, filter bson.M) ([]any, error) {
	docs, err := c.matching(filter)
	if err != nil {
		return nil, err
	}
	var out []any
	for _, doc := range docs {
		for _, v := range lookup(doc, strings.Split(field, ".")) {
			dup := false
			for _, seen := range out {
				if equalValues(seen, v) {
					dup = true
					break
				}
			}
			if !dup {
				out = append(out, v)
			}
		}
	}
	return out, nil
}

func matches(doc bson.M, filter bson.M) bool {
	for key, want := range filter {
		values := lookup(doc, strings.Split(key, "."))
		ops, isOps := want.(bson.M)
		ok := false
		for _, v := range values {
			if isOps && evalOps(v, ops) || !isOps && equalValues(v, want) {
				ok = true
				break
			}
		}
		if isOps && len(values) == 0 {
			ok = evalOps(nil, ops)
		}
		if !ok {
			return false
		}
	}
	return true
}

func evalOps(v any, ops bson.M) bool {
	for op, arg := range ops {
		cmp, ordered := compareValues(v, arg)
		switch op {
		case "$gte":
			if !ordered || cmp < 0 {
				return false
			}
		case "$lte":
			if !ordered || cmp > 0 {
				return false
			}
		case "$lt":
			if !ordered || cmp >= 0 {
				return false
			}
		case "$ne":
			if equalValues(v, arg) {
				return false
			}
		case "$in":
			found := false
			for _, candidate := range arg.([]any) {
				if equalValues(v, candidate) {
					found = true
				}
			}
			if !found {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func lookup(doc any, path []string) []any {
	if len(path) == 0 {
		return []any{doc}
	}
	switch d := doc.(type) {
	case bson.M:
		return lookup(d[path[0]], path[1:])
	case map[string]any:
		return lookup(d[path[0]], path[1:])
	case []bson.M:
		var out []any
		for _, el := range d {
			out = append(out, lookup(el, path)...)
		}
		return out
	case []any:
		var out []any
		for _, el := range d {
			out = append(out, lookup(el, path)...)
		}
		return out
	}
	return nil
}

func compareValues(a, b any) (int, bool) {
	switch av := a.(type) {
	case time.Time:
		bv, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		return av.Compare(bv), true
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(av, bv), true
	}
	af, aok := number(a)
	bf, bok := number(b)
	if !aok || !bok {
		return 0, false
	}
	switch {
	case af < bf:
		return -1, true
	case af > bf:
		return 1, true
	}
	return 0, true
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func equalValues(a, b any) bool {
	if cmp, ok := compareValues(a, b); ok {
		return cmp == 0
	}
	return reflect.DeepEqual(a, b)
}

// fixtures

func at(y int, m time.Month, d, h, minute int) time.Time {
	return time.Date(y, m, d, h, minute, 0, 0, time.UTC)
}

func orderDoc(business, id, phone string, total float64, created time.Time, items ...bson.M) bson.M {
	list := make([]any, 0, len(items))
	for _, it := range items {
		list = append(list, it)
	}
	return bson.M{
		"orderId":       id,
		"businessId":    business,
		"customerPhone": phone,
		"customerName":  "Customer " + phone,
		"status":        statusCompleted,
		"deliveryType":  "pickup",
		"platform":      "whatsapp",
		"total":         total,
		"items":         list,
		"createdAt":     created,
		"archivedAt":    created.Add(time.Hour),
	}
}

func itemDoc(id, name string, qty int64, price float64) bson.M {
	return bson.M{"itemId": id, "name": name, "quantity": qty, "price": price}
}

func orderRow(id, phone string, total float64, created time.Time) db.Row {
	return db.Row{
		"id":             id,
		"customer_phone": phone,
		"customer_name":  "Customer " + phone,
		"status":         statusCompleted,
		"delivery_type":  "pickup",
		"order_source":   "whatsapp",
		"total":          total,
		"created_at":     created,
	}
}

func itemRow(orderID, itemID, name string, qty int64, price float64, cost any) db.Row {
	return db.Row{
		"order_id":      orderID,
		"item_id":       itemID,
		"name":          name,
		"quantity":      qty,
		"price_at_time": price,
		"cost_at_time":  cost,
	}
}

func messageDoc(business, phone, direction, kind string, created time.Time, fallback bool) bson.M {
	return bson.M{
		"businessId":    business,
		"customerPhone": phone,
		"direction":     direction,
		"messageType":   kind,
		"fallbackUsed":  fallback,
		"createdAt":     created,
	}
}

type testEnv struct {
	rel  *fakeRelational
	docs *fakeDocs
	svc  *Service
}

func newTestEnv(caps schema.Capabilities, now time.Time) *testEnv {
	env := &testEnv{rel: newFakeRelational(), docs: newFakeDocs()}
	env.svc = NewService(Deps{
		Relational: env.rel,
		Documents:  env.docs,
		Schema:     schema.Static(caps),
		Now:        func() time.Time { return now },
	})
	return env
}

// withoutDocuments makes the document store unreachable.
func (e *testEnv) withoutDocuments() *testEnv {
	e.docs.err = docstore.ErrUnavailable
	return e
}
