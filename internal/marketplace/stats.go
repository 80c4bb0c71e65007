package marketplace

import "sync"

// Stats accumulates run counters across all sources and stages. Adapters
// increment it as they process items; the driver prints a snapshot at the
// end of the run.
type Stats struct {
	mu               sync.Mutex
	returnsMerged    int
	ordersMerged     int
	trackingUpdated  int
	inventoryUpdated int
	productsSynced   int
	errors           int
}

func (s *Stats) inc(field *int) {
	s.mu.Lock()
	*field++
	s.mu.Unlock()
}

func (s *Stats) AddReturnMerged()     { s.inc(&s.returnsMerged) }
func (s *Stats) AddOrderMerged()      { s.inc(&s.ordersMerged) }
func (s *Stats) AddTrackingUpdated()  { s.inc(&s.trackingUpdated) }
func (s *Stats) AddInventoryUpdated() { s.inc(&s.inventoryUpdated) }
func (s *Stats) AddProductSynced()    { s.inc(&s.productsSynced) }
func (s *Stats) AddError()            { s.inc(&s.errors) }

// Snapshot is a copyable view of the counters.
type Snapshot struct {
	ReturnsMerged    int
	OrdersMerged     int
	TrackingUpdated  int
	InventoryUpdated int
	ProductsSynced   int
	Errors           int
}

func (s *Stats) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		ReturnsMerged:    s.returnsMerged,
		OrdersMerged:     s.ordersMerged,
		TrackingUpdated:  s.trackingUpdated,
		InventoryUpdated: s.inventoryUpdated,
		ProductsSynced:   s.productsSynced,
		Errors:           s.errors,
	}
}
