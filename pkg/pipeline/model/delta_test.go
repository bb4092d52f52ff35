package model

import "testing"

func indexFileWithFunc(path string, usr Usr, shortName string) *IndexFile {
	f := NewIndexFile(path, path)
	id := f.IdCache.Intern(KindFunc, usr)
	f.Funcs = append(f.Funcs, &IndexFunc{ID: id, Usr: usr, ShortName: shortName, DeclaringType: -1})
	return f
}

func TestCreateDeltaFirstImportIsAllAdditions(t *testing.T) {
	db := NewQueryDatabase()
	cur := indexFileWithFunc("a.go", Usr("a.go#func@Foo"), "Foo")
	curMap := NewIdMap(db, cur)

	u := CreateDelta(nil, curMap, nil, cur)

	if len(u.FuncsAdded) != 1 || u.FuncsAdded[0].ShortName != "Foo" {
		t.Fatalf("FuncsAdded = %+v, want one Foo", u.FuncsAdded)
	}
	if len(u.FuncsRemoved) != 0 {
		t.Fatalf("FuncsRemoved = %+v, want none on first import", u.FuncsRemoved)
	}
}

func TestCreateDeltaUnchangedFileIsNoop(t *testing.T) {
	db := NewQueryDatabase()
	usr := Usr("a.go#func@Foo")
	prev := indexFileWithFunc("a.go", usr, "Foo")
	prevMap := NewIdMap(db, prev)
	db.Apply(CreateDelta(nil, prevMap, nil, prev))

	cur := indexFileWithFunc("a.go", usr, "Foo")
	curMap := NewIdMap(db, cur)

	u := CreateDelta(prevMap, curMap, prev, cur)

	if len(u.FuncsAdded) != 0 || len(u.FuncsRemoved) != 0 {
		t.Fatalf("re-parsing an unchanged file produced a delta: added=%+v removed=%+v", u.FuncsAdded, u.FuncsRemoved)
	}
}

func TestCreateDeltaRenamedSymbolIsRemoveAndAdd(t *testing.T) {
	db := NewQueryDatabase()
	prev := indexFileWithFunc("a.go", Usr("a.go#func@Foo"), "Foo")
	prevMap := NewIdMap(db, prev)
	db.Apply(CreateDelta(nil, prevMap, nil, prev))

	cur := indexFileWithFunc("a.go", Usr("a.go#func@Bar"), "Bar")
	curMap := NewIdMap(db, cur)

	u := CreateDelta(prevMap, curMap, prev, cur)

	if len(u.FuncsAdded) != 1 || u.FuncsAdded[0].ShortName != "Bar" {
		t.Fatalf("FuncsAdded = %+v, want one Bar", u.FuncsAdded)
	}
	if len(u.FuncsRemoved) != 1 || u.FuncsRemoved[0].ShortName != "Foo" {
		t.Fatalf("FuncsRemoved = %+v, want one Foo", u.FuncsRemoved)
	}
}

func TestQueryDatabaseApplyThenKnowsPath(t *testing.T) {
	db := NewQueryDatabase()
	cur := indexFileWithFunc("a.go", Usr("a.go#func@Foo"), "Foo")
	curMap := NewIdMap(db, cur)

	db.Apply(CreateDelta(nil, curMap, nil, cur))

	if !db.KnowsPath("a.go") {
		t.Fatal("KnowsPath(a.go) = false after Apply")
	}
	if db.KnowsPath("A.GO") == false {
		t.Fatal("KnowsPath should case-fold paths")
	}
	if len(db.Funcs) != 1 {
		t.Fatalf("Funcs = %+v, want one entry", db.Funcs)
	}
}

func TestQueryDatabaseApplyRemovalDropsSymbol(t *testing.T) {
	db := NewQueryDatabase()
	usr := Usr("a.go#func@Foo")
	prev := indexFileWithFunc("a.go", usr, "Foo")
	prevMap := NewIdMap(db, prev)
	db.Apply(CreateDelta(nil, prevMap, nil, prev))

	if len(db.Funcs) != 1 {
		t.Fatalf("setup: Funcs = %+v, want one entry", db.Funcs)
	}

	empty := NewIndexFile("a.go", "a.go")
	emptyMap := NewIdMap(db, empty)
	db.Apply(CreateDelta(prevMap, emptyMap, prev, empty))

	for _, fn := range db.Funcs {
		if fn != nil && fn.ShortName == "Foo" {
			t.Fatalf("Foo still present in Funcs after its removal was applied: %+v", db.Funcs)
		}
	}
}

func TestIdMapTranslateNegativeSentinel(t *testing.T) {
	db := NewQueryDatabase()
	cur := indexFileWithFunc("a.go", Usr("a.go#func@Foo"), "Foo")
	m := NewIdMap(db, cur)

	if got := m.Translate(KindType, -1); got != -1 {
		t.Fatalf("Translate(-1) = %d, want -1", got)
	}
}

func TestIdCacheInternIsStablePerUsr(t *testing.T) {
	c := NewIdCache()
	usr := Usr("a.go#func@Foo")

	id1 := c.Intern(KindFunc, usr)
	id2 := c.Intern(KindFunc, usr)
	if id1 != id2 {
		t.Fatalf("Intern of the same usr twice returned %d then %d", id1, id2)
	}

	other := c.Intern(KindFunc, Usr("a.go#func@Bar"))
	if other == id1 {
		t.Fatalf("distinct usrs got the same local ID %d", id1)
	}
}
