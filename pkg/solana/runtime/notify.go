package runtime

import (
	"sync"

	"github.com/gagliardetto/solana-go"
)

// AccountUpdate is published for every account a committed transaction wrote.
type AccountUpdate struct {
	Address   solana.PublicKey `json:"address"`
	Owner     solana.PublicKey `json:"owner"`
	Lamports  uint64           `json:"lamports"`
	Slot      uint64           `json:"slot"`
	Signature solana.Signature `json:"signature"`
}

// Notifier fans committed account updates out to subscribers. Slow
// subscribers miss updates rather than block the bank.
type Notifier struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan AccountUpdate
}

func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[int]chan AccountUpdate)}
}

// Subscribe returns a channel of updates and a function that ends the
// subscription and closes the channel.
func (n *Notifier) Subscribe(buffer int) (<-chan AccountUpdate, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.nextID
	n.nextID++
	ch := make(chan AccountUpdate, buffer)
	n.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			n.mu.Lock()
			defer n.mu.Unlock()
			delete(n.subs, id)
			close(ch)
		})
	}
}

func (n *Notifier) Publish(update AccountUpdate) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for _, ch := range n.subs {
		select {
		case ch <- update:
		default:
		}
	}
}
