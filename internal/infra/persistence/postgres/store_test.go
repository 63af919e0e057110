package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"kincore/internal/infra/persistence/sqlstub"
	"kincore/pkg/domain"
)

func openWith(t *testing.T, db *sql.DB) *Store {
	t.Helper()
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	t.Cleanup(restore)
	store, err := NewStore(context.Background(), "", domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store
}

func TestNewStoreEnsuresTableAndLoadsPersons(t *testing.T) {
	db, conn := sqlstub.Open()
	payload, err := json.Marshal(domain.Person{Name: "Ana", Gender: domain.GenderFemale, OwnerID: "u1", BirthRegion: " ce ", FatherID: domain.Ref("")})
	if err != nil {
		t.Fatalf("marshal fixture: %v", err)
	}
	conn.Tables["persons"] = []map[string]any{{"id": "p1", "owner_id": "u1", "payload": payload}}

	store := openWith(t, db)
	p, ok := store.GetPerson("p1")
	if !ok {
		t.Fatalf("expected person loaded from table")
	}
	if p.ID != "p1" || p.BirthRegion != "CE" || p.FatherID != nil {
		t.Fatalf("expected normalized person, got %+v", p)
	}

	var sawDDL, sawIndex bool
	for _, stmt := range conn.Execs {
		up := strings.ToUpper(stmt)
		sawDDL = sawDDL || strings.Contains(up, "CREATE TABLE IF NOT EXISTS PERSONS")
		sawIndex = sawIndex || strings.Contains(up, "PERSONS_OWNER_IDX")
	}
	if !sawDDL || !sawIndex {
		t.Fatalf("expected persons schema, got execs: %v", conn.Execs)
	}
}

func TestRunInTransactionWritesRows(t *testing.T) {
	db, conn := sqlstub.Open()
	store := openWith(t, db)
	ctx := context.Background()

	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if _, err := tx.CreatePerson(domain.Person{Base: domain.Base{ID: "p1"}, Name: "Ana", Gender: domain.GenderFemale, OwnerID: "u1"}); err != nil {
			return err
		}
		_, err := tx.CreatePerson(domain.Person{Base: domain.Base{ID: "p2"}, Name: "Bia", Gender: domain.GenderFemale, OwnerID: "u2", MotherID: domain.Ref("p1")})
		return err
	}); err != nil {
		t.Fatalf("RunInTransaction: %v", err)
	}

	row, ok := conn.Row("persons", "id", "p2")
	if !ok {
		t.Fatalf("expected p2 row, got %v", conn.Tables)
	}
	if row["owner_id"] != "u2" {
		t.Fatalf("expected owner column, got %v", row)
	}
	var persisted domain.Person
	if err := json.Unmarshal(row["payload"].([]byte), &persisted); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if persisted.Parent(domain.RoleMother) != "p1" {
		t.Fatalf("unexpected persisted payload %+v", persisted)
	}

	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		return tx.DeletePerson("p1")
	}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := conn.Row("persons", "id", "p1"); ok {
		t.Fatalf("deleted person still stored")
	}
	row, _ = conn.Row("persons", "id", "p2")
	if err := json.Unmarshal(row["payload"].([]byte), &persisted); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if persisted.MotherID != nil {
		t.Fatalf("expected mother reference cleared, got %+v", persisted)
	}
	if store.DB() != db {
		t.Fatalf("expected DB accessor to expose handle")
	}
}

func TestRunInTransactionSurfacesPersistFailures(t *testing.T) {
	create := func(tx domain.Transaction) error {
		_, err := tx.CreatePerson(domain.Person{Name: "Ana", Gender: domain.GenderFemale, OwnerID: "u1"})
		return err
	}
	cases := map[string]func(*sqlstub.Conn){
		"begin":  func(c *sqlstub.Conn) { c.FailBegin = true },
		"commit": func(c *sqlstub.Conn) { c.FailCommit = true },
		"upsert": func(c *sqlstub.Conn) { c.FailTables = map[string]bool{"persons": true} },
	}
	for name, breakConn := range cases {
		t.Run(name, func(t *testing.T) {
			db, conn := sqlstub.Open()
			store := openWith(t, db)
			breakConn(conn)
			_, err := store.RunInTransaction(context.Background(), create)
			if err == nil || !strings.Contains(err.Error(), "persist persons") {
				t.Fatalf("expected %s failure, got %v", name, err)
			}
		})
	}
}

func TestRunInTransactionSkipsPersistOnRuleViolation(t *testing.T) {
	db, conn := sqlstub.Open()
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()

	engine := domain.NewRulesEngine()
	engine.Register(blockAll{})
	store, err := NewStore(context.Background(), "dsn", engine)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreatePerson(domain.Person{Name: "Ana"})
		return err
	})
	var violation domain.RuleViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected rule violation, got %v", err)
	}
	if len(conn.Tables["persons"]) != 0 || conn.Commits != 0 {
		t.Fatalf("blocked transaction must not be persisted")
	}
}

type blockAll struct{}

func (blockAll) Name() string { return "block_all" }

func (blockAll) Evaluate(context.Context, domain.RuleView, []domain.Change) (domain.Result, error) {
	return domain.Result{Violations: []domain.Violation{{Rule: "block_all", Severity: domain.SeverityBlock}}}, nil
}

func TestNewStoreErrors(t *testing.T) {
	withStub := func(t *testing.T, breakConn func(*sqlstub.Conn)) error {
		db, conn := sqlstub.Open()
		breakConn(conn)
		restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
		defer restore()
		_, err := NewStore(context.Background(), "", nil)
		return err
	}

	t.Run("open", func(t *testing.T) {
		restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return nil, errors.New("no driver") })
		defer restore()
		if _, err := NewStore(context.Background(), "", nil); err == nil {
			t.Fatalf("expected open error")
		}
	})
	t.Run("nil handle", func(t *testing.T) {
		restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return nil, nil })
		defer restore()
		if _, err := NewStore(context.Background(), "", nil); !errors.Is(err, ErrNilDB) {
			t.Fatalf("expected ErrNilDB, got %v", err)
		}
	})
	t.Run("ping", func(t *testing.T) {
		err := withStub(t, func(c *sqlstub.Conn) { c.FailPing = true })
		if err == nil || !strings.Contains(err.Error(), "ping") {
			t.Fatalf("expected ping error, got %v", err)
		}
	})
	t.Run("ddl", func(t *testing.T) {
		err := withStub(t, func(c *sqlstub.Conn) { c.FailExec = true })
		if err == nil || !strings.Contains(err.Error(), "persons table") {
			t.Fatalf("expected ddl error, got %v", err)
		}
	})
	t.Run("decode", func(t *testing.T) {
		err := withStub(t, func(c *sqlstub.Conn) {
			c.Tables["persons"] = []map[string]any{{"id": "p1", "payload": []byte("{broken")}}
		})
		if err == nil || !strings.Contains(err.Error(), "decode") {
			t.Fatalf("expected decode error, got %v", err)
		}
	})
}
