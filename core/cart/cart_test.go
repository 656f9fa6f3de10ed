package cart

import (
	"errors"
	"io"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/irsalhamdi/raiseup/kv"
	"github.com/sirupsen/logrus"
)

func newLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newStore() (*Store, *kv.Memory) {
	mem := kv.NewMemory()
	return New(newLogger(), mem, StorageKey), mem
}

var courseA = ItemNew{ID: "a", Title: "Advanced Digital Marketing", Price: 99.99}

func TestAddItem(t *testing.T) {
	s, _ := newStore()

	if err := s.AddItem(courseA); err != nil {
		t.Fatal(err)
	}

	exp := []Item{{ID: "a", Title: "Advanced Digital Marketing", Price: 99.99, Quantity: 1}}
	if diff := cmp.Diff(exp, s.Items()); diff != "" {
		t.Fatalf("wrong items (-want +got):\n%s", diff)
	}
	if s.Total() != 99.99 {
		t.Fatalf("expected total 99.99, got %v", s.Total())
	}
}

func TestAddItemTwiceIncrementsQuantity(t *testing.T) {
	s, _ := newStore()

	_ = s.AddItem(courseA)
	renamed := courseA
	renamed.Title = "ignored on increment"
	_ = s.AddItem(renamed)

	items := s.Items()
	if len(items) != 1 {
		t.Fatalf("expected one line, got %d", len(items))
	}
	if items[0].Quantity != 2 {
		t.Fatalf("expected quantity 2, got %d", items[0].Quantity)
	}
	if items[0].Title != courseA.Title {
		t.Fatalf("increment must leave other fields unchanged, got title %q", items[0].Title)
	}
}

func TestCheckoutScenario(t *testing.T) {
	s, _ := newStore()

	steps := []struct {
		name string
		do   func() error
		exp  float64
	}{
		{"add A", func() error { return s.AddItem(courseA) }, 99.99},
		{"add A again", func() error { return s.AddItem(courseA) }, 199.98},
		{"set quantity 5", func() error { return s.UpdateQuantity("a", 5) }, 499.95},
		{"remove A", func() error { return s.RemoveItem("a") }, 0},
	}

	for _, st := range steps {
		if err := st.do(); err != nil {
			t.Fatalf("%s: %v", st.name, err)
		}
		if got := s.Total(); got != st.exp {
			t.Fatalf("%s: expected total %v, got %v", st.name, st.exp, got)
		}
	}
}

func TestUpdateQuantityZeroEqualsRemove(t *testing.T) {
	for _, q := range []int{0, -3} {
		s1, m1 := newStore()
		s2, m2 := newStore()

		for _, s := range []*Store{s1, s2} {
			_ = s.AddItem(courseA)
			_ = s.AddItem(ItemNew{ID: "b", Title: "AWS", Price: 10})
		}

		if err := s1.UpdateQuantity("a", q); err != nil {
			t.Fatal(err)
		}
		if err := s2.RemoveItem("a"); err != nil {
			t.Fatal(err)
		}

		if diff := cmp.Diff(s2.Items(), s1.Items()); diff != "" {
			t.Fatalf("quantity %d: states differ (-remove +update):\n%s", q, diff)
		}

		b1, _ := m1.Get(StorageKey)
		b2, _ := m2.Get(StorageKey)
		if string(b1) != string(b2) {
			t.Fatalf("quantity %d: persisted states differ: %s vs %s", q, b1, b2)
		}
	}
}

func TestRemoveMissingIsNoop(t *testing.T) {
	s, _ := newStore()
	_ = s.AddItem(courseA)

	if err := s.RemoveItem("missing"); err != nil {
		t.Fatal(err)
	}
	if err := s.UpdateQuantity("missing", 4); err != nil {
		t.Fatal(err)
	}
	if s.Len() != 1 {
		t.Fatalf("expected one line, got %d", s.Len())
	}
}

func TestClear(t *testing.T) {
	s, _ := newStore()
	_ = s.AddItem(courseA)
	_ = s.AddItem(ItemNew{ID: "b", Title: "AWS", Price: 10})

	if err := s.Clear(); err != nil {
		t.Fatal(err)
	}
	if s.Total() != 0 {
		t.Fatalf("expected total 0, got %v", s.Total())
	}
	if len(s.Items()) != 0 {
		t.Fatalf("expected no items, got %v", s.Items())
	}
}

func TestItemsKeepInsertionOrder(t *testing.T) {
	s, _ := newStore()
	for _, id := range []string{"c", "a", "b"} {
		_ = s.AddItem(ItemNew{ID: id, Title: id, Price: 1})
	}
	_ = s.AddItem(ItemNew{ID: "c", Title: "c", Price: 1})

	var got []string
	for _, it := range s.Items() {
		got = append(got, it.ID)
	}
	if diff := cmp.Diff([]string{"c", "a", "b"}, got); diff != "" {
		t.Fatalf("wrong order (-want +got):\n%s", diff)
	}
}

func TestTotalNeverDrifts(t *testing.T) {
	s, _ := newStore()
	rnd := rand.New(rand.NewSource(7))
	prices := map[string]float64{"a": 99.99, "b": 0.1, "c": 19.95, "d": 0}

	ids := []string{"a", "b", "c", "d"}
	for i := 0; i < 500; i++ {
		id := ids[rnd.Intn(len(ids))]
		switch rnd.Intn(3) {
		case 0:
			_ = s.AddItem(ItemNew{ID: id, Title: id, Price: prices[id]})
		case 1:
			_ = s.RemoveItem(id)
		case 2:
			_ = s.UpdateQuantity(id, rnd.Intn(8)-2)
		}

		var exp int64
		for _, it := range s.Items() {
			if it.Quantity < 1 {
				t.Fatalf("step %d: line %s has quantity %d", i, it.ID, it.Quantity)
			}
			exp += Cents(it.Price) * int64(it.Quantity)
		}
		if got := s.TotalCents(); got != exp {
			t.Fatalf("step %d: expected %d cents, got %d", i, exp, got)
		}
	}
}

func TestStateSurvivesReload(t *testing.T) {
	s, mem := newStore()
	_ = s.AddItem(courseA)
	_ = s.AddItem(courseA)

	reloaded := New(newLogger(), mem, StorageKey)
	if diff := cmp.Diff(s.Items(), reloaded.Items()); diff != "" {
		t.Fatalf("reloaded cart differs (-want +got):\n%s", diff)
	}
}

func TestCorruptStorageStartsEmpty(t *testing.T) {
	mem := kv.NewMemory()
	_ = mem.Set(StorageKey, []byte("{not json"))

	s := New(newLogger(), mem, StorageKey)
	if s.Len() != 0 {
		t.Fatalf("expected an empty cart, got %v", s.Items())
	}
}

func TestStoredZeroQuantityLinesAreDropped(t *testing.T) {
	mem := kv.NewMemory()
	_ = mem.Set(StorageKey, []byte(`[{"id":"a","title":"A","price":1,"quantity":0},{"id":"b","title":"B","price":2,"quantity":1},{"id":"b","title":"B","price":2,"quantity":4}]`))

	s := New(newLogger(), mem, StorageKey)
	exp := []Item{{ID: "b", Title: "B", Price: 2, Quantity: 1}}
	if diff := cmp.Diff(exp, s.Items()); diff != "" {
		t.Fatalf("wrong items (-want +got):\n%s", diff)
	}
}

type failingStorage struct{ *kv.Memory }

func (failingStorage) Set(string, []byte) error { return errors.New("quota exceeded") }

func TestPersistFailureKeepsMemoryState(t *testing.T) {
	s := New(newLogger(), failingStorage{kv.NewMemory()}, StorageKey)

	if err := s.AddItem(courseA); err == nil {
		t.Fatal("expected the storage error to be returned")
	}
	if s.Len() != 1 || s.Total() != 99.99 {
		t.Fatalf("in-memory state must be kept, got %v", s.Items())
	}
}
