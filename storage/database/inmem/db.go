// Package inmemdb keeps every table in process memory. Transactions serialise on a single
// lock and are rolled back by restoring a snapshot of the tables.
package inmemdb

import (
	"context"
	"maps"
	"sort"
	"strings"
	"sync"

	"github.com/uzielB/backend-sistemagem-sub000/core"
	"github.com/uzielB/backend-sistemagem-sub000/core/academic"
	"github.com/uzielB/backend-sistemagem-sub000/core/finance"
	"github.com/uzielB/backend-sistemagem-sub000/core/student"
	"github.com/uzielB/backend-sistemagem-sub000/core/user"
)

type txKey struct{}

type tables struct {
	pks          map[string]int
	users        map[int]user.User
	programs     map[int]academic.Program
	periods      map[int]academic.SchoolPeriod
	groups       map[int]academic.Group
	students     map[int]student.Student
	concepts     map[int]finance.PaymentConcept
	states       map[int]finance.FinancialState
	payments     map[int]finance.Payment
	scholarships map[int]finance.Scholarship
}

func (t tables) clone() tables {
	return tables{
		pks:          maps.Clone(t.pks),
		users:        maps.Clone(t.users),
		programs:     maps.Clone(t.programs),
		periods:      maps.Clone(t.periods),
		groups:       maps.Clone(t.groups),
		students:     maps.Clone(t.students),
		concepts:     maps.Clone(t.concepts),
		states:       maps.Clone(t.states),
		payments:     maps.Clone(t.payments),
		scholarships: maps.Clone(t.scholarships),
	}
}

type DB struct {
	mu sync.Mutex
	t  tables
}

// Open returns an empty database holding the seeded payment concepts.
func Open() *DB {
	db := &DB{t: tables{
		pks:          make(map[string]int),
		users:        make(map[int]user.User),
		programs:     make(map[int]academic.Program),
		periods:      make(map[int]academic.SchoolPeriod),
		groups:       make(map[int]academic.Group),
		students:     make(map[int]student.Student),
		concepts:     make(map[int]finance.PaymentConcept),
		states:       make(map[int]finance.FinancialState),
		payments:     make(map[int]finance.Payment),
		scholarships: make(map[int]finance.Scholarship),
	}}
	for _, c := range []finance.PaymentConcept{
		{ID: finance.ConceptTuition, Code: "COLEGIATURA", Name: "Colegiatura"},
		{ID: finance.ConceptEnrollment, Code: "INSCRIPCION", Name: "Inscripción"},
		{ID: finance.ConceptLateFee, Code: "RECARGO", Name: "Recargo"},
		{ID: finance.ConceptOtherCharge, Code: "OTRO", Name: "Otro"},
	} {
		db.t.concepts[c.ID] = c
	}
	db.t.pks["concepts"] = finance.ConceptOtherCharge
	return db
}

// acquire locks the database unless ctx already runs inside one of its transactions.
// Callers release with the returned func.
func (db *DB) acquire(ctx context.Context) func() {
	if ctx.Value(txKey{}) == db {
		return func() {}
	}
	db.mu.Lock()
	return db.mu.Unlock
}

func (db *DB) nextPK(table string) int {
	db.t.pks[table]++
	return db.t.pks[table]
}

type transactor struct {
	db *DB
}

var _ core.Transactor = (*transactor)(nil) // interface compliance check

func NewTransactor(db *DB) core.Transactor {
	return &transactor{db: db}
}

func (tx *transactor) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) == tx.db {
		return fn(ctx)
	}

	tx.db.mu.Lock()
	defer tx.db.mu.Unlock()

	snapshot := tx.db.t.clone()
	if err := fn(context.WithValue(ctx, txKey{}, tx.db)); err != nil {
		tx.db.t = snapshot
		return err
	}
	return nil
}

// values returns the rows of table sorted by primary key.
func values[T any](table map[int]T) []T {
	ids := make([]int, 0, len(table))
	for id := range table {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	rows := make([]T, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, table[id])
	}
	return rows
}

// orderRows sorts rows by the orderings whose field has a comparator; rows stay in primary key order otherwise.
func orderRows[T any](rows []T, ordering []core.DBOrdering, cmps map[string]func(a, b T) int) {
	if len(ordering) == 0 {
		return
	}
	sort.SliceStable(rows, func(i, j int) bool {
		for _, ord := range ordering {
			cmp, ok := cmps[ord.Field]
			if !ok {
				continue
			}
			if c := cmp(rows[i], rows[j]); c != 0 {
				if ord.Ascending {
					return c < 0
				}
				return c > 0
			}
		}
		return false
	})
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
