package cart

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/irsalhamdi/raiseup/kv"
	"github.com/sirupsen/logrus"
)

// StorageKey is the fixed key the serialized cart lives under.
const StorageKey = "cart"

var ErrUnknownItem = errors.New("unknown item")

type Item struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Price    float64 `json:"price"`
	Image    string  `json:"image,omitempty"`
	Quantity int     `json:"quantity"`
}

type ItemNew struct {
	ID    string  `json:"id" validate:"required"`
	Title string  `json:"title" validate:"required"`
	Price float64 `json:"price" validate:"gte=0"`
	Image string  `json:"image,omitempty"`
}

type QuantityUp struct {
	Quantity int `json:"quantity"`
}

type Cart struct {
	Items []Item  `json:"items"`
	Total float64 `json:"total"`
}

// Store is the authoritative line-item collection of one browsing context.
// Storage is read once by New and written after every mutation. A failed
// write is returned but the in-memory state is kept.
type Store struct {
	log     logrus.FieldLogger
	storage kv.Storage
	key     string

	mu    sync.Mutex
	items []Item
}

func New(log logrus.FieldLogger, storage kv.Storage, key string) *Store {
	s := &Store{
		log:     log,
		storage: storage,
		key:     key,
		items:   []Item{},
	}
	s.load()
	return s
}

func (s *Store) load() {
	b, err := s.storage.Get(s.key)
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			s.log.WithError(err).Warn("cart: reading storage, starting empty")
		}
		return
	}

	var items []Item
	if err := json.Unmarshal(b, &items); err != nil {
		s.log.WithError(err).Warn("cart: corrupt stored cart, starting empty")
		return
	}

	seen := make(map[string]bool, len(items))
	for _, it := range items {
		if it.ID == "" || it.Quantity < 1 || it.Price < 0 || seen[it.ID] {
			continue
		}
		seen[it.ID] = true
		s.items = append(s.items, it)
	}
}

func (s *Store) persist() error {
	b, err := json.Marshal(s.items)
	if err != nil {
		return fmt.Errorf("encoding cart: %w", err)
	}
	if err := s.storage.Set(s.key, b); err != nil {
		return fmt.Errorf("persisting cart: %w", err)
	}
	return nil
}

func (s *Store) index(id string) int {
	for i := range s.items {
		if s.items[i].ID == id {
			return i
		}
	}
	return -1
}

// AddItem increments the quantity of an existing line or appends a new line
// with quantity one.
func (s *Store) AddItem(in ItemNew) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.index(in.ID); i >= 0 {
		s.items[i].Quantity++
		return s.persist()
	}

	s.items = append(s.items, Item{
		ID:       in.ID,
		Title:    in.Title,
		Price:    in.Price,
		Image:    in.Image,
		Quantity: 1,
	})
	return s.persist()
}

func (s *Store) RemoveItem(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remove(id)
}

func (s *Store) remove(id string) error {
	i := s.index(id)
	if i < 0 {
		return nil
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	return s.persist()
}

// UpdateQuantity sets the quantity of a line. Negative values count as zero
// and zero removes the line.
func (s *Store) UpdateQuantity(id string, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if quantity < 0 {
		quantity = 0
	}
	if quantity == 0 {
		return s.remove(id)
	}

	i := s.index(id)
	if i < 0 {
		return nil
	}
	s.items[i].Quantity = quantity
	return s.persist()
}

func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = []Item{}
	return s.persist()
}

func (s *Store) Items() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]Item, len(s.items))
	copy(items, s.items)
	return items
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// TotalCents sums price × quantity in whole cents.
func (s *Store) TotalCents() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var tot int64
	for _, it := range s.items {
		tot += Cents(it.Price) * int64(it.Quantity)
	}
	return tot
}

func (s *Store) Total() float64 {
	return float64(s.TotalCents()) / 100
}

func (s *Store) Snapshot() Cart {
	return Cart{Items: s.Items(), Total: s.Total()}
}

// Cents converts a price to whole cents, rounding half away from zero.
func Cents(price float64) int64 {
	return int64(math.Round(price * 100))
}
